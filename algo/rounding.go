package algo

import (
	"math"

	"seehuhn.de/go/geom/vec"
)

const (
	// minTurnAngle 小于约 0.06° 的转角视为共线, 顶点保持不变
	minTurnAngle = 0.06 * math.Pi / 180
	// maxEdgeShare 一个圆弧最多占用相邻边长度的比例
	maxEdgeShare = 0.49
	// minTangent 切线长度下限, 避免零长度圆弧影响后续采样
	minTangent     = 1.0
	zeroLengthEdge = 1e-9
)

// Rounder 折线倒圆角
type Rounder struct {
	Projector   Projector // 在屏幕空间中计算, nil 表示世界坐标
	ChordLength float64   // 圆弧离散的目标弦长 (与 Projector 同一空间)
}

// Clamp 某个顶点的切线长度被截断. 可用长度为零时 Applied 为 0, 顶点不倒角.
type Clamp struct {
	Vertex    int
	Requested float64
	Applied   float64
}

// RoundResult 倒圆角结果
type RoundResult struct {
	Points     []vec.Vec2
	Tangents   []float64 // 每个顶点的切线长度, 未倒角为 0
	Clamps     []Clamp
	Degenerate []int // 因零长度边或掉头而原样保留的顶点
}

type corner struct {
	ok         bool
	degenerate bool
	u1, u2     vec.Vec2 // 入边, 出边的单位切向
	l1, l2     float64  // 入边, 出边长度
	alpha      float64  // 转角
	goal, tMax float64
}

// Round 把每个内部顶点替换为与两条相邻边相切的圆弧.
// factor(i) 给出顶点 i 的圆角系数 k ∈ [0,1]; k = 0 时顶点保持不变.
func (r Rounder) Round(points []vec.Vec2, factor func(i int) float64) RoundResult {
	proj := r.Projector
	if proj == nil {
		proj = IdentityProjector{}
	}
	chord := r.ChordLength
	if !(chord > 0) {
		chord = 1
	}

	n := len(points)
	res := RoundResult{Tangents: make([]float64, n)}
	if n < 3 {
		res.Points = append(res.Points, points...)
		return res
	}

	scr := make([]vec.Vec2, n)
	for i, p := range points {
		scr[i] = proj.ToScreen(p)
	}

	corners := make([]corner, n)
	for i := 1; i < n-1; i++ {
		corners[i] = makeCorner(scr[i-1], scr[i], scr[i+1], factor(i))
		if corners[i].degenerate {
			res.Degenerate = append(res.Degenerate, i)
		}
	}

	// 先按 0.49 倍边长截断, 再结合相邻顶点的切线长度, 保证相邻圆弧不重叠
	for i := 1; i < n-1; i++ {
		c := &corners[i]
		if !c.ok {
			continue
		}
		tMax := maxEdgeShare * min(c.l1, c.l2)
		tMax = min(tMax, c.l1-res.Tangents[i-1])
		if next := corners[i+1]; next.ok && i+1 < n-1 {
			tMax = min(tMax, c.l2-min(next.goal, maxEdgeShare*min(next.l1, next.l2)))
		}
		if tMax <= zeroLengthEdge {
			res.Clamps = append(res.Clamps, Clamp{Vertex: i, Requested: c.goal})
			c.ok = false
			continue
		}
		t := min(max(c.goal, minTangent), tMax)
		if c.goal > tMax {
			res.Clamps = append(res.Clamps, Clamp{Vertex: i, Requested: c.goal, Applied: t})
		}
		c.tMax = tMax
		res.Tangents[i] = t
	}

	res.Points = append(res.Points, points[0])
	for i := 1; i < n-1; i++ {
		c := corners[i]
		if !c.ok || res.Tangents[i] == 0 {
			res.Points = append(res.Points, points[i])
			continue
		}
		for _, p := range arcPoints(scr[i], c, res.Tangents[i], chord) {
			res.Points = append(res.Points, proj.ToWorld(p))
		}
	}
	res.Points = append(res.Points, points[n-1])
	return res
}

// makeCorner 计算顶点的转角与目标切线长度. 不需要倒角 (k = 0, 共线) 时返回 ok=false,
// 退化情况 (零长度边, 掉头) 另外标记 degenerate.
func makeCorner(prev, p, next vec.Vec2, k float64) corner {
	if !(k > 0) {
		return corner{}
	}
	e1, e2 := p.Sub(prev), next.Sub(p)
	l1, l2 := e1.Length(), e2.Length()
	if l1 < zeroLengthEdge || l2 < zeroLengthEdge {
		return corner{degenerate: true}
	}
	k = min(k, 1)
	u1, u2 := e1.Mul(1/l1), e2.Mul(1/l2)
	alpha := math.Acos(max(-1, min(1, u1.Dot(u2))))
	if math.IsNaN(alpha) {
		return corner{degenerate: true}
	}
	if alpha < minTurnAngle {
		return corner{}
	}
	half := math.Tan(alpha / 2)
	if math.IsInf(half, 0) || math.IsNaN(half) || half > 1e6 {
		return corner{degenerate: true}
	}
	goal := k * min(l1, l2) / alpha * half
	return corner{ok: true, u1: u1, u2: u2, l1: l1, l2: l2, alpha: alpha, goal: goal}
}

// arcPoints 以切线长度 t 在顶点 p 处生成圆弧, 方向由入/出切向叉积的符号决定
func arcPoints(p vec.Vec2, c corner, t, chord float64) []vec.Vec2 {
	radius := t / math.Tan(c.alpha/2)
	start := p.Sub(c.u1.Mul(t))
	turn := cross(c.u1, c.u2)
	normal := vec.Vec2{X: -c.u1.Y, Y: c.u1.X} // 左法向
	sweep := c.alpha
	if turn < 0 {
		normal = normal.Mul(-1)
		sweep = -sweep
	}
	center := start.Add(normal.Mul(radius))
	startDir := start.Sub(center)

	segs := int(math.Ceil(radius * c.alpha / chord))
	segs = max(segs, 1)
	pts := make([]vec.Vec2, 0, segs+1)
	for j := 0; j <= segs; j++ {
		a := sweep * float64(j) / float64(segs)
		cos, sin := math.Cos(a), math.Sin(a)
		dir := vec.Vec2{
			X: startDir.X*cos - startDir.Y*sin,
			Y: startDir.X*sin + startDir.Y*cos,
		}
		pts = append(pts, center.Add(dir))
	}
	pts[len(pts)-1] = p.Add(c.u2.Mul(t))
	return pts
}

func cross(a, b vec.Vec2) float64 {
	return a.X*b.Y - a.Y*b.X
}
