package algo

import (
	"math"
	"road-editor/model"
	"slices"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// DefaultLaneEpsilon 车道宽度小于该值 (5 mm) 视为消失, 避免出现视觉上为零的楔形
const DefaultLaneEpsilon = 0.005

// BuildOptions 车道几何构建参数
type BuildOptions struct {
	Sampler SamplerOptions
	Epsilon float64
}

// DefaultBuildOptions 默认构建参数
var DefaultBuildOptions = BuildOptions{Sampler: DefaultSamplerOptions, Epsilon: DefaultLaneEpsilon}

// laneNode 车道在某个车道段中的一个实例
type laneNode struct {
	section int
	lane    *model.Lane
}

type nodeKey struct {
	section int
	laneID  int
}

// sectionOffsets 一个车道段内每条车道的宽度及内外边界横向偏移
type sectionOffsets struct {
	width map[int]Spline
	inner map[int]Spline
	outer map[int]Spline
	edge  Spline // 最外侧非人行道车道的外边界
}

type laneBuilder struct {
	road    *model.Road
	cl      Centerline
	eps     float64
	offset  Spline // 全局车道偏移
	offsets map[model.Side][]sectionOffsets
}

// BuildModel 构建整个路网的要素集合, 道路之间相互独立
func BuildModel(rm *model.RoadModel, opts BuildOptions) model.FeatureSet {
	var fs model.FeatureSet
	for i := range rm.Roads {
		fs.Append(BuildRoad(&rm.Roads[i], opts))
	}
	fs.Bounds = FeatureBounds(&fs)
	return fs
}

// BuildRoad 采样参考线并生成该道路的参考线, 车道多边形, 标线和车行道边缘
func BuildRoad(road *model.Road, opts BuildOptions) model.FeatureSet {
	if !(opts.Epsilon > 0) {
		opts.Epsilon = DefaultLaneEpsilon
	}
	cl := Centerline{Samples: SampleRoad(road, opts.Sampler)}
	return BuildLanes(road, cl, opts.Epsilon)
}

// BuildLanes 在已采样的参考线上生成车道要素
func BuildLanes(road *model.Road, cl Centerline, eps float64) model.FeatureSet {
	var fs model.FeatureSet
	if len(cl.Samples) < 2 {
		return fs
	}
	pts, s := cl.Points()
	fs.Centerlines = append(fs.Centerlines, model.Centerline{RoadID: road.ID, Points: pts, S: s})

	b := &laneBuilder{
		road:    road,
		cl:      cl,
		eps:     eps,
		offset:  SplineFromSegments(0, road.LaneOffsets),
		offsets: make(map[model.Side][]sectionOffsets),
	}
	for _, side := range []model.Side{model.SideLeft, model.SideRight} {
		b.offsets[side] = b.computeOffsets(side)
		for _, track := range buildTracks(road, side) {
			for _, run := range b.walkTrack(side, track) {
				fs.LanePolygons = append(fs.LanePolygons, run.LaneRun)
				fs.Markings = append(fs.Markings, run.markings()...)
			}
		}
		if edge, ok := b.carriagewayEdge(side); ok {
			fs.Edges = append(fs.Edges, edge)
		}
	}
	fs.Markings = append(fs.Markings, b.centerMarkings()...)
	return fs
}

// sortedSide 返回按 |id| 由内向外排序的车道
func sortedSide(ls *model.LaneSection, side model.Side) []*model.Lane {
	lanes := ls.SideLanes(side)
	out := make([]*model.Lane, 0, len(lanes))
	for i := range lanes {
		if lanes[i].ID != 0 {
			out = append(out, &lanes[i])
		}
	}
	slices.SortFunc(out, func(a, b *model.Lane) int {
		return absInt(a.ID) - absInt(b.ID)
	})
	return out
}

// computeOffsets 逐段累加车道宽度: 左侧对 id <= 当前车道求和, 右侧对 id >= 当前车道求和,
// 再加上全局车道偏移. 求和通过样条加法完成, 保证节点之间也精确.
func (b *laneBuilder) computeOffsets(side model.Side) []sectionOffsets {
	sign := 1.0
	if side == model.SideRight {
		sign = -1
	}
	out := make([]sectionOffsets, len(b.road.LaneSections))
	for i := range b.road.LaneSections {
		ls := &b.road.LaneSections[i]
		so := sectionOffsets{
			width: make(map[int]Spline),
			inner: make(map[int]Spline),
			outer: make(map[int]Spline),
			edge:  b.offset,
		}
		acc := b.offset
		for _, lane := range sortedSide(ls, side) {
			w := SplineFromSegments(ls.S, lane.Widths)
			so.width[lane.ID] = w
			so.inner[lane.ID] = acc
			acc = AddSplines(acc, w.Scale(sign))
			so.outer[lane.ID] = acc
			if lane.Type != model.LaneTypeSidewalk {
				so.edge = acc
			}
		}
		out[i] = so
	}
	return out
}

// buildTracks 沿前驱/后继关系把各车道段中的同一条逻辑车道串成车道轨迹.
// 先对每个车道段建立 (段下标, 车道 id) -> 节点 的索引, 再一次遍历完成连接.
func buildTracks(road *model.Road, side model.Side) [][]laneNode {
	index := make(map[nodeKey]int) // 节点 -> 所属轨迹
	var tracks [][]laneNode

	for i := range road.LaneSections {
		for _, lane := range sortedSide(&road.LaneSections[i], side) {
			node := laneNode{section: i, lane: lane}
			t, ok := predecessorTrack(road, side, i, lane, index, tracks)
			if !ok {
				t = len(tracks)
				tracks = append(tracks, nil)
			}
			tracks[t] = append(tracks[t], node)
			index[nodeKey{section: i, laneID: lane.ID}] = t
		}
	}
	return tracks
}

// predecessorTrack 查找车道在上一个车道段中的前驱所在的轨迹.
// 当前车道声明的 predecessor 或上一段车道声明的 successor 都可建立连接,
// 前驱必须仍是其轨迹的末尾节点.
func predecessorTrack(road *model.Road, side model.Side, i int, lane *model.Lane, index map[nodeKey]int, tracks [][]laneNode) (int, bool) {
	if i == 0 {
		return 0, false
	}
	isTail := func(t int, laneID int) bool {
		tail := tracks[t][len(tracks[t])-1]
		return tail.section == i-1 && tail.lane.ID == laneID
	}
	if lane.PredecessorID != nil {
		if t, ok := index[nodeKey{section: i - 1, laneID: *lane.PredecessorID}]; ok && isTail(t, *lane.PredecessorID) {
			return t, true
		}
	}
	for _, prev := range sortedSide(&road.LaneSections[i-1], side) {
		if prev.SuccessorID == nil || *prev.SuccessorID != lane.ID {
			continue
		}
		if t, ok := index[nodeKey{section: i - 1, laneID: prev.ID}]; ok && isTail(t, prev.ID) {
			return t, true
		}
	}
	return 0, false
}

// runBuilder 正在构建中的车道段
type runBuilder struct {
	model.LaneRun
	marks []*model.RoadMark // 每个边界点处生效的标线
}

func (b *laneBuilder) openRun(side model.Side, node laneNode, s float64) *runBuilder {
	run := &runBuilder{LaneRun: model.LaneRun{
		RoadID:   b.road.ID,
		Side:     side,
		LaneID:   node.lane.ID,
		SStart:   s,
		LaneType: node.lane.Type,
	}}
	if mark := node.lane.ActiveRoadMark(s - b.road.LaneSections[node.section].S); mark != nil {
		m := *mark
		run.ActiveRoadMark = &m
	}
	return run
}

// addPoint 追加一个边界点. 与上一个点完全重合时忽略; 同一弧长但偏移不同
// (车道段边界处的突变) 则两个点都保留.
func (b *laneBuilder) addPoint(run *runBuilder, side model.Side, node laneNode, s float64) {
	so := &b.offsets[side][node.section]
	pose := b.cl.PoseAt(s)
	outer := pose.Offset(so.outer[node.lane.ID].Evaluate(s))
	inner := pose.Offset(so.inner[node.lane.ID].Evaluate(s))
	if n := len(run.S); n > 0 && math.Abs(run.S[n-1]-s) < sEpsilon && run.Outer[n-1] == outer && run.Inner[n-1] == inner {
		return
	}
	run.Outer = append(run.Outer, outer)
	run.Inner = append(run.Inner, inner)
	run.S = append(run.S, s)
	run.SEnd = s
	run.marks = append(run.marks, node.lane.ActiveRoadMark(s-b.road.LaneSections[node.section].S))
}

// walkTrack 沿参考线遍历一条车道轨迹, 输出互不相交的车道段.
// 宽度跨越 eps 时在弧长上插值出精确的起止点; 车道段边界处强制补点以捕捉偏移突变;
// 车道类型变化或轨迹在某段缺失时结束当前车道段.
func (b *laneBuilder) walkTrack(side model.Side, track []laneNode) []*runBuilder {
	bySection := make(map[int]laneNode, len(track))
	for _, node := range track {
		bySection[node.section] = node
	}

	var runs []*runBuilder
	var cur *runBuilder
	closeRun := func() {
		if cur != nil && len(cur.S) >= 2 {
			runs = append(runs, cur)
		}
		cur = nil
	}

	for i := range b.road.LaneSections {
		node, ok := bySection[i]
		if !ok {
			closeRun()
			continue
		}
		if cur != nil && cur.LaneType != node.lane.Type {
			closeRun()
		}

		width := b.offsets[side][i].width[node.lane.ID]
		s0, s1 := b.road.LaneSections[i].S, b.road.SectionEnd(i)
		var prevS, prevW float64
		havePrev := false
		for _, s := range b.cl.Stations(s0, s1) {
			w := width.Evaluate(s)
			active := w > b.eps
			if havePrev && active != (prevW > b.eps) {
				sx := b.crossing(width, prevS, prevW, s, w)
				if active {
					cur = b.openRun(side, node, sx)
					b.addPoint(cur, side, node, sx)
				} else if cur != nil {
					b.addPoint(cur, side, node, sx)
					closeRun()
				}
			}
			if active {
				if cur == nil {
					cur = b.openRun(side, node, s)
				}
				b.addPoint(cur, side, node, s)
			} else if !havePrev {
				// 车道段边界处宽度突变为零
				closeRun()
			}
			prevS, prevW, havePrev = s, w, true
		}
	}
	closeRun()
	return runs
}

// crossingTolerance 求根区间收敛到该长度以下即停止
const crossingTolerance = 1e-9

// crossing 在 [s0, s1] 内求宽度等于 eps 的弧长位置.
// 宽度在两个采样点之间可能跨越多项式节点 (导数不连续), 普通试位法会有一端停滞,
// 所以用 Illinois 修正: 同一端连续两次不动时把它的残差减半; 插值点落在区间外时退化为二分.
func (b *laneBuilder) crossing(width Spline, s0, w0, s1, w1 float64) float64 {
	lo, flo, hi, fhi := s0, w0-b.eps, s1, w1-b.eps
	if lo > hi {
		lo, flo, hi, fhi = hi, fhi, lo, flo
	}
	last := 0 // 上一次移动的一端: -1 为 lo, 1 为 hi
	for iter := 0; iter < 200 && hi-lo > crossingTolerance; iter++ {
		sx := 0.5 * (lo + hi)
		if fhi != flo {
			if x := lo - flo*(hi-lo)/(fhi-flo); x > lo && x < hi {
				sx = x
			}
		}
		fx := width.Evaluate(sx) - b.eps
		if fx == 0 {
			return sx
		}
		if (fx > 0) == (flo > 0) {
			lo, flo = sx, fx
			if last == -1 {
				fhi /= 2
			}
			last = -1
		} else {
			hi, fhi = sx, fx
			if last == 1 {
				flo /= 2
			}
			last = 1
		}
	}
	return min(max(0.5*(lo+hi), min(s0, s1)), max(s0, s1))
}

// markings 按生效标线把车道段外边界切分为标线折线
func (r *runBuilder) markings() []model.Marking {
	return splitMarkings(r.RoadID, r.Side, r.LaneID, r.Outer, r.S, r.marks)
}

func splitMarkings(roadID string, side model.Side, laneID int, pts []vec.Vec2, s []float64, marks []*model.RoadMark) []model.Marking {
	var out []model.Marking
	var cur *model.Marking
	for i := range pts {
		mark := marks[i]
		if cur != nil && (mark == nil || *mark != cur.Mark) {
			cur.Points = append(cur.Points, pts[i])
			cur.SEnd = s[i]
			if len(cur.Points) >= 2 {
				out = append(out, *cur)
			}
			cur = nil
		}
		if mark == nil || mark.Type == "" || mark.Type == "none" {
			continue
		}
		if cur == nil {
			cur = &model.Marking{RoadID: roadID, Side: side, LaneID: laneID, SStart: s[i], Mark: *mark}
		}
		cur.Points = append(cur.Points, pts[i])
		cur.SEnd = s[i]
	}
	if cur != nil && len(cur.Points) >= 2 {
		out = append(out, *cur)
	}
	return out
}

// centerMarkings 中心车道 (id 0) 的标线沿车道偏移参考线绘制
func (b *laneBuilder) centerMarkings() []model.Marking {
	var out []model.Marking
	for i := range b.road.LaneSections {
		ls := &b.road.LaneSections[i]
		for c := range ls.Center {
			lane := &ls.Center[c]
			if len(lane.RoadMarks) == 0 {
				continue
			}
			stations := b.cl.Stations(ls.S, b.road.SectionEnd(i))
			pts := make([]vec.Vec2, len(stations))
			marks := make([]*model.RoadMark, len(stations))
			for j, s := range stations {
				pts[j] = b.cl.PoseAt(s).Offset(b.offset.Evaluate(s))
				marks[j] = lane.ActiveRoadMark(s - ls.S)
			}
			out = append(out, splitMarkings(b.road.ID, model.SideCenter, lane.ID, pts, stations, marks)...)
		}
	}
	return out
}

// carriagewayEdge 一侧的车行道边缘: 最外侧非人行道车道的外边界, 不按车道拆分
func (b *laneBuilder) carriagewayEdge(side model.Side) (model.Edge, bool) {
	hasLanes := false
	for i := range b.road.LaneSections {
		if len(sortedSide(&b.road.LaneSections[i], side)) > 0 {
			hasLanes = true
			break
		}
	}
	if !hasLanes {
		return model.Edge{}, false
	}

	edge := model.Edge{RoadID: b.road.ID, Side: side}
	for i := range b.road.LaneSections {
		so := &b.offsets[side][i]
		for _, s := range b.cl.Stations(b.road.LaneSections[i].S, b.road.SectionEnd(i)) {
			edge.Points = append(edge.Points, b.cl.PoseAt(s).Offset(so.edge.Evaluate(s)))
		}
	}
	return edge, len(edge.Points) >= 2
}

// FeatureBounds 参考线与车行道边缘的包围盒
func FeatureBounds(fs *model.FeatureSet) rect.Rect {
	first := true
	var r rect.Rect
	extend := func(pts []vec.Vec2) {
		for _, p := range pts {
			if first {
				r = rect.Rect{LLx: p.X, LLy: p.Y, URx: p.X, URy: p.Y}
				first = false
				continue
			}
			r.LLx, r.LLy = min(r.LLx, p.X), min(r.LLy, p.Y)
			r.URx, r.URy = max(r.URx, p.X), max(r.URy, p.Y)
		}
	}
	for _, c := range fs.Centerlines {
		extend(c.Points)
	}
	for _, e := range fs.Edges {
		extend(e.Points)
	}
	return r
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
