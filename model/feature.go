package model

import (
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// Side 车道所在的一侧
type Side string

const (
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideCenter Side = "center"
)

// Centerline 一条道路的参考线折线
type Centerline struct {
	RoadID string     `json:"road_id"`
	Points []vec.Vec2 `json:"points"`
	S      []float64  `json:"s"` // 每个点对应的累计弧长
}

// LaneRun 一段连续的车道多边形 (外边界 + 内边界)
type LaneRun struct {
	RoadID         string     `json:"road_id"`
	Side           Side       `json:"side"`
	LaneID         int        `json:"lane_id"`
	SStart         float64    `json:"s_start"`
	SEnd           float64    `json:"s_end"`
	LaneType       string     `json:"lane_type"`
	ActiveRoadMark *RoadMark  `json:"active_road_mark,omitempty"`
	Outer          []vec.Vec2 `json:"outer"`
	Inner          []vec.Vec2 `json:"inner"`
	S              []float64  `json:"s"` // 边界点对应的弧长, 与 Outer/Inner 一一对应
}

// Polygon 返回车道多边形, 两侧的环绕方向一致
// left: outer + reverse(inner); right: inner + reverse(outer)
func (r *LaneRun) Polygon() []vec.Vec2 {
	first, second := r.Outer, r.Inner
	if r.Side == SideRight {
		first, second = r.Inner, r.Outer
	}
	poly := make([]vec.Vec2, 0, len(first)+len(second))
	poly = append(poly, first...)
	for i := len(second) - 1; i >= 0; i-- {
		poly = append(poly, second[i])
	}
	return poly
}

// Marking 车道标线折线
type Marking struct {
	RoadID string     `json:"road_id"`
	Side   Side       `json:"side"`
	LaneID int        `json:"lane_id"`
	SStart float64    `json:"s_start"`
	SEnd   float64    `json:"s_end"`
	Mark   RoadMark   `json:"mark"`
	Points []vec.Vec2 `json:"points"`
}

// Edge 车行道边缘 (不含人行道), 不按车道拆分
type Edge struct {
	RoadID string     `json:"road_id"`
	Side   Side       `json:"side"`
	Points []vec.Vec2 `json:"points"`
}

// IntersectionPoint 多条编辑轴线的交汇点
type IntersectionPoint struct {
	Position vec.Vec2 `json:"position"`
	Members  []string `json:"members"` // 排序后的轴线 ID
}

// FeatureSet 提供给渲染层的五类要素集合
type FeatureSet struct {
	Centerlines   []Centerline        `json:"centerlines"`
	LanePolygons  []LaneRun           `json:"lane_polygons"`
	Markings      []Marking           `json:"markings"`
	Edges         []Edge              `json:"edges"`
	Intersections []IntersectionPoint `json:"intersections"`
	Bounds        rect.Rect           `json:"bounds"`
}

// Append 合并另一组要素
func (fs *FeatureSet) Append(other FeatureSet) {
	fs.Centerlines = append(fs.Centerlines, other.Centerlines...)
	fs.LanePolygons = append(fs.LanePolygons, other.LanePolygons...)
	fs.Markings = append(fs.Markings, other.Markings...)
	fs.Edges = append(fs.Edges, other.Edges...)
	fs.Intersections = append(fs.Intersections, other.Intersections...)
}

// ClampReport 圆角半径被几何条件截断时的提示 (不是错误)
type ClampReport struct {
	AxisID    string  `json:"axis_id"`
	Vertex    int     `json:"vertex"`
	Requested float64 `json:"requested"` // 期望的切线长度
	Applied   float64 `json:"applied"`   // 实际使用的切线长度
}
