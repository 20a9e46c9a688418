package algo

import (
	"road-editor/model"
	"slices"
	"sort"
)

// Poly3 三次多项式 a + b·t + c·t² + d·t³
type Poly3 struct {
	A, B, C, D float64
}

// ValueAt 函数值
func (p Poly3) ValueAt(t float64) float64 {
	return p.A + t*(p.B+t*(p.C+t*p.D))
}

// SlopeAt 一阶导数
func (p Poly3) SlopeAt(t float64) float64 {
	return p.B + t*(2*p.C+3*p.D*t)
}

// CurvatureProxyAt 二阶导数
func (p Poly3) CurvatureProxyAt(t float64) float64 {
	return 2*p.C + 6*p.D*t
}

// ThirdDerivative 三阶导数 (常数)
func (p Poly3) ThirdDerivative() float64 {
	return 6 * p.D
}

// Rebase 泰勒平移: 返回 q, 满足 q(t-delta) == p(t)
func (p Poly3) Rebase(delta float64) Poly3 {
	return Poly3{
		A: p.ValueAt(delta),
		B: p.SlopeAt(delta),
		C: p.CurvatureProxyAt(delta) / 2,
		D: p.D,
	}
}

// Add 逐项相加 (两者必须以同一个原点为基准)
func (p Poly3) Add(q Poly3) Poly3 {
	return Poly3{A: p.A + q.A, B: p.B + q.B, C: p.C + q.C, D: p.D + q.D}
}

// Scale 乘以常数
func (p Poly3) Scale(k float64) Poly3 {
	return Poly3{A: p.A * k, B: p.B * k, C: p.C * k, D: p.D * k}
}

// Spline 分段三次多项式. 第 i 段在 [Knots[i], Knots[i+1]) 上有效,
// 以 t - Knots[i] 为自变量
type Spline struct {
	Knots []float64
	Polys []Poly3
}

// NewSpline 由 (节点, 多项式) 构造样条, 节点按升序排列, 重复节点保留后者
func NewSpline(knots []float64, polys []Poly3) Spline {
	idx := make([]int, len(knots))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return knots[idx[a]] < knots[idx[b]] })

	var s Spline
	for _, i := range idx {
		if n := len(s.Knots); n > 0 && s.Knots[n-1] == knots[i] {
			s.Polys[n-1] = polys[i]
			continue
		}
		s.Knots = append(s.Knots, knots[i])
		s.Polys = append(s.Polys, polys[i])
	}
	return s
}

// SplineFromSegments 由 PolySegment 列表构造样条, base 为 SOffset 的参考起点
func SplineFromSegments(base float64, segs []model.PolySegment) Spline {
	knots := make([]float64, len(segs))
	polys := make([]Poly3, len(segs))
	for i, seg := range segs {
		knots[i] = base + seg.SOffset
		polys[i] = Poly3{A: seg.A, B: seg.B, C: seg.C, D: seg.D}
	}
	return NewSpline(knots, polys)
}

// Empty 没有任何分段时样条恒为 0
func (s Spline) Empty() bool {
	return len(s.Knots) == 0
}

// segmentAt 返回最后一个 <= t 的节点下标; t 在首节点之前时返回 0 (首段向左延伸)
func (s Spline) segmentAt(t float64) int {
	i := sort.Search(len(s.Knots), func(i int) bool { return s.Knots[i] > t }) - 1
	if i < 0 {
		i = 0
	}
	return i
}

// PolyAt 返回在 t 处生效的多项式, 已平移到以 origin 为原点
func (s Spline) PolyAt(t, origin float64) Poly3 {
	if s.Empty() {
		return Poly3{}
	}
	i := s.segmentAt(t)
	return s.Polys[i].Rebase(origin - s.Knots[i])
}

// Evaluate 样条在 t 处的值
func (s Spline) Evaluate(t float64) float64 {
	if s.Empty() {
		return 0
	}
	i := s.segmentAt(t)
	return s.Polys[i].ValueAt(t - s.Knots[i])
}

// Slope 样条在 t 处的一阶导数
func (s Spline) Slope(t float64) float64 {
	if s.Empty() {
		return 0
	}
	i := s.segmentAt(t)
	return s.Polys[i].SlopeAt(t - s.Knots[i])
}

// Scale 整体乘以常数
func (s Spline) Scale(k float64) Spline {
	out := Spline{Knots: slices.Clone(s.Knots), Polys: make([]Poly3, len(s.Polys))}
	for i, p := range s.Polys {
		out.Polys[i] = p.Scale(k)
	}
	return out
}

// AddSplines 两个样条求和. 合并节点集合, 并在每个节点处把两个操作数的多项式
// 都平移到该节点后再相加, 使结果在任意 t 上等于 a(t)+b(t), 而不只是在节点上.
func AddSplines(a, b Spline) Spline {
	switch {
	case a.Empty():
		return Spline{Knots: slices.Clone(b.Knots), Polys: slices.Clone(b.Polys)}
	case b.Empty():
		return Spline{Knots: slices.Clone(a.Knots), Polys: slices.Clone(a.Polys)}
	}

	knots := append(slices.Clone(a.Knots), b.Knots...)
	slices.Sort(knots)
	knots = slices.Compact(knots)

	out := Spline{Knots: knots, Polys: make([]Poly3, len(knots))}
	for i, k := range knots {
		out.Polys[i] = a.PolyAt(k, k).Add(b.PolyAt(k, k))
	}
	return out
}
