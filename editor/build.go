package editor

import (
	"fmt"
	"math"
	"road-editor/algo"
	"road-editor/model"
	"road-editor/utils"

	"seehuhn.de/go/geom/vec"
)

// minChord 短于该长度的折线段不生成参考线几何
const minChord = 1e-9

// Snapshot 一次重算的完整结果. 生成后不再修改, 可以在多个 goroutine 间共享.
type Snapshot struct {
	Version  uint64               `json:"version"`
	View     View                 `json:"view"`
	Axes     []model.EditableAxis `json:"axes"`
	Features model.FeatureSet     `json:"features"`
	Warnings []model.ClampReport  `json:"warnings"`

	Model   *model.RoadModel `json:"-"`
	Network *algo.Network    `json:"-"`
}

// Build 由轴线快照计算整个路网: 倒圆角, 求交切分, 每段生成一条道路, 再构建拓扑和车道几何.
// 纯函数, 不依赖会话状态.
func Build(axes []model.EditableAxis, proj algo.Projector, opts Options) *Snapshot {
	snap := &Snapshot{Axes: axes, Warnings: []model.ClampReport{}}

	rounder := algo.Rounder{Projector: proj, ChordLength: opts.ArcChord}
	lines := make([]algo.AxisLine, 0, len(axes))
	for i := range axes {
		a := &axes[i]
		if len(a.Vertices) < 2 {
			utils.LogWarn("axis %s has %d vertices, ignored", a.ID, len(a.Vertices))
			continue
		}
		res := rounder.Round(a.Vertices, a.RoundingAt)
		for _, v := range res.Degenerate {
			utils.LogWarn("axis %s: degenerate corner at vertex %d kept sharp", a.ID, v)
		}
		for _, c := range res.Clamps {
			utils.LogInfo("axis %s: vertex %d tangent clamped from %.3f to %.3f", a.ID, c.Vertex, c.Requested, c.Applied)
			snap.Warnings = append(snap.Warnings, model.ClampReport{
				AxisID:    a.ID,
				Vertex:    c.Vertex,
				Requested: c.Requested,
				Applied:   c.Applied,
			})
		}
		lines = append(lines, algo.AxisLine{ID: a.ID, Points: res.Points})
	}

	res := algo.Resolver{Projector: proj, Tolerance: opts.ClusterTolerance}.Resolve(lines)

	rm := &model.RoadModel{Header: model.Header{Origin: opts.Origin}}
	var spans []algo.RoadSpan
	for _, line := range lines {
		for _, seg := range res.Segments[line.ID] {
			id := fmt.Sprintf("%d", len(rm.Roads)+1)
			road, ok := segmentRoad(id, fmt.Sprintf("%s#%d", seg.AxisID, seg.Index), seg.Points, opts.LaneWidth)
			if !ok {
				continue
			}
			rm.Roads = append(rm.Roads, road)
			spans = append(spans, algo.RoadSpan{RoadID: id, Segment: seg})
		}
	}

	network := algo.BuildNetwork(res.Intersections, spans)
	for i := range rm.Roads {
		rm.Roads[i].Predecessor, rm.Roads[i].Successor = network.RoadLinks(rm.Roads[i].ID)
	}

	snap.Features = algo.BuildModel(rm, algo.BuildOptions{Sampler: opts.Sampler, Epsilon: opts.LaneEpsilon})
	snap.Features.Intersections = res.Intersections
	if snap.Features.Intersections == nil {
		snap.Features.Intersections = []model.IntersectionPoint{}
	}
	snap.Model = rm
	snap.Network = network
	return snap
}

// segmentRoad 把一段折线转为一条道路: 每条弦一个直线元素, 加上固定的双车道断面
func segmentRoad(id, name string, pts []vec.Vec2, laneWidth float64) (model.Road, bool) {
	road := model.Road{ID: id, Name: name}
	s := 0.0
	for i := 0; i+1 < len(pts); i++ {
		d := pts[i+1].Sub(pts[i])
		l := d.Length()
		if l < minChord {
			continue
		}
		road.PlanView = append(road.PlanView, model.GeometryPrimitive{
			Kind:    model.PrimitiveLine,
			S:       s,
			X:       pts[i].X,
			Y:       pts[i].Y,
			Heading: math.Atan2(d.Y, d.X),
			Length:  l,
		})
		s += l
	}
	if len(road.PlanView) == 0 {
		return road, false
	}
	road.Length = s
	road.LaneSections = []model.LaneSection{twoLaneSection(laneWidth)}
	return road, true
}

// twoLaneSection 左右各一条等宽行车道, 中心线为黄色实线
func twoLaneSection(width float64) model.LaneSection {
	driving := func(id int) model.Lane {
		return model.Lane{
			ID:        id,
			Type:      "driving",
			Widths:    []model.PolySegment{{A: width}},
			RoadMarks: []model.RoadMark{{Type: "solid", Color: "white", Width: 0.12}},
		}
	}
	return model.LaneSection{
		Left:   []model.Lane{driving(1)},
		Center: []model.Lane{{ID: 0, Type: "none", RoadMarks: []model.RoadMark{{Type: "solid", Color: "yellow", Width: 0.12}}}},
		Right:  []model.Lane{driving(-1)},
	}
}

// translated 返回平移后的路网拷贝, 用于以视图中心为原点导出
func translated(rm *model.RoadModel, dx, dy float64) *model.RoadModel {
	out := *rm
	out.Roads = make([]model.Road, len(rm.Roads))
	for i, r := range rm.Roads {
		r.PlanView = append([]model.GeometryPrimitive(nil), r.PlanView...)
		for j := range r.PlanView {
			r.PlanView[j].X += dx
			r.PlanView[j].Y += dy
		}
		out.Roads[i] = r
	}
	return &out
}
