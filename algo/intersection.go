package algo

import (
	"math"
	"road-editor/model"
	"slices"
	"sort"

	"seehuhn.de/go/geom/vec"
)

// DedupEpsilon 同一条轴线上弧长差小于该值的锚点视为同一点
const DedupEpsilon = 1e-3

// AxisLine 参与求交的一条轴线 (通常已倒圆角)
type AxisLine struct {
	ID     string
	Points []vec.Vec2
}

// AxisSegment 轴线在交点处切分后的一段.
// StartJunction/EndJunction 为端点所在交点在 Resolution.Intersections 中的下标, 自由端点为 -1.
type AxisSegment struct {
	AxisID        string
	Index         int
	SStart        float64
	SEnd          float64
	Points        []vec.Vec2
	StartJunction int
	EndJunction   int
}

// Resolution 求交结果
type Resolution struct {
	Intersections []model.IntersectionPoint
	Segments      map[string][]AxisSegment
}

// Resolver 轴线求交, 聚类与切分
type Resolver struct {
	Projector Projector // 容差在屏幕空间中度量, 允许各向异性
	Tolerance float64   // 屏幕空间容差 (像素)
}

type candidate struct {
	pos     vec.Vec2
	members []string
}

type cluster struct {
	sum     vec.Vec2
	count   int
	members map[string]bool
}

func (c *cluster) centroid() vec.Vec2 {
	return c.sum.Mul(1 / float64(c.count))
}

// Resolve 对整组轴线重新求交. 每次都全量计算, 不做增量更新.
func (r Resolver) Resolve(axes []AxisLine) Resolution {
	if r.Projector == nil {
		r.Projector = IdentityProjector{}
	}

	var cands []candidate
	for i := range axes {
		for j := i + 1; j < len(axes); j++ {
			cands = append(cands, r.crossings(axes[i], axes[j])...)
			cands = append(cands, r.endpointTouches(axes[i], axes[j])...)
			cands = append(cands, r.endpointTouches(axes[j], axes[i])...)
		}
	}

	clusters := r.cluster(cands)
	res := Resolution{Segments: make(map[string][]AxisSegment)}
	for _, c := range clusters {
		members := make([]string, 0, len(c.members))
		for id := range c.members {
			members = append(members, id)
		}
		slices.Sort(members)
		res.Intersections = append(res.Intersections, model.IntersectionPoint{
			Position: r.snap(c.centroid(), axes),
			Members:  members,
		})
	}

	for _, axis := range axes {
		if segs := splitAxis(axis, res.Intersections); len(segs) > 0 {
			res.Segments[axis.ID] = segs
		}
	}
	return res
}

// crossings 两条轴线所有线段对的标准线段求交
func (r Resolver) crossings(a, b AxisLine) []candidate {
	var out []candidate
	for i := 0; i+1 < len(a.Points); i++ {
		for j := 0; j+1 < len(b.Points); j++ {
			if p, ok := segmentIntersection(a.Points[i], a.Points[i+1], b.Points[j], b.Points[j+1]); ok {
				out = append(out, candidate{pos: p, members: []string{a.ID, b.ID}})
			}
		}
	}
	return out
}

// endpointTouches a 的端点落在 b 的内部 (横向距离在容差内, 且不在 b 的端点上)
func (r Resolver) endpointTouches(a, b AxisLine) []candidate {
	if len(a.Points) == 0 || len(b.Points) < 2 {
		return nil
	}
	var out []candidate
	bStart, bEnd := b.Points[0], b.Points[len(b.Points)-1]
	for _, end := range []vec.Vec2{a.Points[0], a.Points[len(a.Points)-1]} {
		q, _, _ := nearestOnPolyline(b.Points, end)
		if screenDistance(r.Projector, end, q) > r.Tolerance {
			continue
		}
		if screenDistance(r.Projector, q, bStart) <= r.Tolerance || screenDistance(r.Projector, q, bEnd) <= r.Tolerance {
			continue
		}
		out = append(out, candidate{pos: q, members: []string{a.ID, b.ID}})
	}
	return out
}

// cluster 单遍聚类: 候选点落在已有簇的质心容差内则并入并更新质心, 否则新建簇.
// 簇建立之后不再合并.
func (r Resolver) cluster(cands []candidate) []*cluster {
	var clusters []*cluster
	for _, cand := range cands {
		var target *cluster
		for _, c := range clusters {
			if screenDistance(r.Projector, c.centroid(), cand.pos) <= r.Tolerance {
				target = c
				break
			}
		}
		if target == nil {
			target = &cluster{members: make(map[string]bool)}
			clusters = append(clusters, target)
		}
		target.sum = target.sum.Add(cand.pos)
		target.count++
		for _, id := range cand.members {
			target.members[id] = true
		}
	}
	return clusters
}

// snap 容差内存在轴线顶点时优先使用最近的顶点, 使路口与用户绘制的几何对齐
func (r Resolver) snap(p vec.Vec2, axes []AxisLine) vec.Vec2 {
	best, bestDist := p, math.Inf(1)
	for _, axis := range axes {
		for _, v := range axis.Points {
			d := screenDistance(r.Projector, p, v)
			if d <= r.Tolerance && d < bestDist {
				best, bestDist = v, d
			}
		}
	}
	return best
}

// segmentIntersection 线段 ab 与 cd 的交点 (含端点), 平行或共线时没有交点
func segmentIntersection(a, b, c, d vec.Vec2) (vec.Vec2, bool) {
	da, db := b.Sub(a), d.Sub(c)
	div := cross(da, db)
	if math.Abs(div) < 1e-12 {
		return vec.Vec2{}, false
	}
	ac := c.Sub(a)
	ta := cross(ac, db) / div
	tb := cross(ac, da) / div
	if ta < 0 || ta > 1 || tb < 0 || tb > 1 {
		return vec.Vec2{}, false
	}
	return a.Add(da.Mul(ta)), true
}

// nearestOnPolyline 折线上离 p 最近的点, 所在线段下标及该点的弧长
func nearestOnPolyline(pts []vec.Vec2, p vec.Vec2) (vec.Vec2, int, float64) {
	best, bestSeg, bestS := pts[0], 0, 0.0
	bestDist := math.Inf(1)
	acc := 0.0
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		ab := b.Sub(a)
		l := ab.Length()
		t := 0.0
		if l > zeroLengthEdge {
			t = max(0, min(1, p.Sub(a).Dot(ab)/(l*l)))
		}
		q := a.Add(ab.Mul(t))
		if d := q.Sub(p).Length(); d < bestDist {
			best, bestSeg, bestS, bestDist = q, i, acc+t*l, d
		}
		acc += l
	}
	return best, bestSeg, bestS
}

func polylineLength(pts []vec.Vec2) float64 {
	total := 0.0
	for i := 0; i+1 < len(pts); i++ {
		total += pts[i+1].Sub(pts[i]).Length()
	}
	return total
}

type anchor struct {
	s        float64
	seg      int
	pos      vec.Vec2
	junction int  // 交点下标, 端点为 -1
	endpoint bool // 轴线自身的端点
}

// splitAxis 把相关交点投影到轴线上, 与两个端点一起按弧长排序去重, 相邻锚点之间即为一段
func splitAxis(axis AxisLine, xs []model.IntersectionPoint) []AxisSegment {
	pts := axis.Points
	if len(pts) < 2 {
		return nil
	}
	n := len(pts)
	anchors := []anchor{
		{s: 0, seg: 0, pos: pts[0], junction: -1, endpoint: true},
		{s: polylineLength(pts), seg: n - 2, pos: pts[n-1], junction: -1, endpoint: true},
	}
	for i, x := range xs {
		if !slices.Contains(x.Members, axis.ID) {
			continue
		}
		q, seg, s := nearestOnPolyline(pts, x.Position)
		anchors = append(anchors, anchor{s: s, seg: seg, pos: q, junction: i})
	}
	sort.SliceStable(anchors, func(i, j int) bool { return anchors[i].s < anchors[j].s })

	dedup := anchors[:1]
	for _, a := range anchors[1:] {
		last := &dedup[len(dedup)-1]
		if a.s-last.s < DedupEpsilon {
			// 合并: 位置以轴线端点为准, 交点信息保留
			if a.endpoint {
				last.s, last.seg, last.pos, last.endpoint = a.s, a.seg, a.pos, true
			}
			if last.junction < 0 {
				last.junction = a.junction
			}
			continue
		}
		dedup = append(dedup, a)
	}
	if len(dedup) < 2 {
		return nil
	}

	segs := make([]AxisSegment, 0, len(dedup)-1)
	for i := 0; i+1 < len(dedup); i++ {
		from, to := dedup[i], dedup[i+1]
		points := []vec.Vec2{from.pos}
		for k := from.seg + 1; k <= to.seg; k++ {
			if pts[k] != from.pos && pts[k] != to.pos {
				points = append(points, pts[k])
			}
		}
		points = append(points, to.pos)
		segs = append(segs, AxisSegment{
			AxisID:        axis.ID,
			Index:         i,
			SStart:        from.s,
			SEnd:          to.s,
			Points:        points,
			StartJunction: from.junction,
			EndJunction:   to.junction,
		})
	}
	return segs
}
