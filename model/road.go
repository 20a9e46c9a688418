package model

// Origin 地理参考原点 (WGS84), 本地平面坐标以此为原点
type Origin struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Header 文档头信息
type Header struct {
	Origin       Origin `json:"origin"`
	GeoReference string `json:"geo_reference,omitempty"` // 原始 PROJ 字符串
}

// RoadModel 解析后的整个路网, 只有结构没有几何
type RoadModel struct {
	Header  Header        `json:"header"`
	Roads   []Road        `json:"roads"`
	Skipped []SkippedRoad `json:"skipped,omitempty"` // 缺少必填字段而被跳过的道路

	// EditorPayload 编辑器扩展块中嵌入的原始数据 (没有则为空)
	EditorPayload string `json:"-"`
}

// SkippedRoad 记录被跳过的道路及原因
type SkippedRoad struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Road 一条道路: 参考线 (planView) + 车道段 + 车道偏移
type Road struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Length       float64             `json:"length"`
	PlanView     []GeometryPrimitive `json:"plan_view"`
	LaneSections []LaneSection       `json:"lane_sections"`
	LaneOffsets  []PolySegment       `json:"lane_offsets,omitempty"`
	Predecessor  *RoadLink           `json:"predecessor,omitempty"`
	Successor    *RoadLink           `json:"successor,omitempty"`
}

// RoadLink 道路之间的连接关系
type RoadLink struct {
	ElementType  string `json:"element_type"` // road | junction
	ElementID    string `json:"element_id"`
	ContactPoint string `json:"contact_point,omitempty"` // start | end
}

// PrimitiveKind 参考线几何元素的类型
type PrimitiveKind int

const (
	PrimitiveLine PrimitiveKind = iota
	PrimitiveArc
	PrimitiveSpiral
	PrimitiveParamPoly3
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimitiveLine:
		return "line"
	case PrimitiveArc:
		return "arc"
	case PrimitiveSpiral:
		return "spiral"
	case PrimitiveParamPoly3:
		return "paramPoly3"
	default:
		return "unknown"
	}
}

// GeometryPrimitive 参考线上的一段几何元素
// 公共字段 (S, X, Y, Heading, Length) 之外, 只有与 Kind 对应的参数有意义
type GeometryPrimitive struct {
	Kind    PrimitiveKind `json:"kind"`
	S       float64       `json:"s"`
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	Heading float64       `json:"hdg"`
	Length  float64       `json:"length"`

	Curvature float64 `json:"curvature,omitempty"` // Arc

	CurvStart float64 `json:"curv_start,omitempty"` // Spiral
	CurvEnd   float64 `json:"curv_end,omitempty"`   // Spiral

	// ParamPoly3: 局部坐标系 (起点为原点, x 轴沿 Heading) 下的 u(p), v(p)
	U          [4]float64 `json:"u,omitempty"`
	V          [4]float64 `json:"v,omitempty"`
	Normalized bool       `json:"normalized,omitempty"` // pRange="normalized" 时 p∈[0,1]
}

// PolySegment a + b·ds + c·ds² + d·ds³, ds = s - SOffset
type PolySegment struct {
	SOffset float64 `json:"s_offset"`
	A       float64 `json:"a"`
	B       float64 `json:"b"`
	C       float64 `json:"c"`
	D       float64 `json:"d"`
}

// LaneSection 一个车道段, 段内车道拓扑不变
type LaneSection struct {
	S      float64 `json:"s"`
	Left   []Lane  `json:"left,omitempty"`   // id > 0, 由内向外升序
	Center []Lane  `json:"center,omitempty"` // id = 0
	Right  []Lane  `json:"right,omitempty"`  // id < 0, 按绝对值由内向外升序
}

// Lane 车道
type Lane struct {
	ID            int           `json:"id"`
	Type          string        `json:"type"`
	Widths        []PolySegment `json:"widths,omitempty"` // SOffset 相对于车道段起点
	RoadMarks     []RoadMark    `json:"road_marks,omitempty"`
	PredecessorID *int          `json:"predecessor_id,omitempty"`
	SuccessorID   *int          `json:"successor_id,omitempty"`
}

// RoadMark 车道标线属性, 原样保留
type RoadMark struct {
	SOffset    float64 `json:"s_offset"`
	Type       string  `json:"type"`
	Color      string  `json:"color,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Material   string  `json:"material,omitempty"`
	LaneChange string  `json:"lane_change,omitempty"`
	Weight     string  `json:"weight,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Rule       string  `json:"rule,omitempty"`
}

// LaneTypeSidewalk 人行道类型, 计算车行道边缘时排除
const LaneTypeSidewalk = "sidewalk"

// SectionEnd 返回第 i 个车道段的结束位置
func (r *Road) SectionEnd(i int) float64 {
	if i+1 < len(r.LaneSections) {
		return r.LaneSections[i+1].S
	}
	return r.Length
}

// SideLanes 返回指定一侧的车道列表
func (ls *LaneSection) SideLanes(side Side) []Lane {
	if side == SideLeft {
		return ls.Left
	}
	return ls.Right
}

// ActiveRoadMark 返回在段内局部偏移 ds 处生效的标线 (没有则为 nil)
func (l *Lane) ActiveRoadMark(ds float64) *RoadMark {
	var active *RoadMark
	for i := range l.RoadMarks {
		if l.RoadMarks[i].SOffset <= ds {
			active = &l.RoadMarks[i]
		}
	}
	if active == nil && len(l.RoadMarks) > 0 {
		active = &l.RoadMarks[0]
	}
	return active
}
