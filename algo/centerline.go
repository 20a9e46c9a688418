package algo

import (
	"math"
	"sort"

	"seehuhn.de/go/geom/vec"
)

// Centerline 已采样的参考线, 支持按弧长插值
type Centerline struct {
	Samples []Sample
}

// Length 参考线终点的弧长
func (c Centerline) Length() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	return c.Samples[len(c.Samples)-1].S
}

// PoseAt 在弧长 s 处线性插值位置和航向, 超出范围时取端点
func (c Centerline) PoseAt(s float64) Sample {
	n := len(c.Samples)
	switch {
	case n == 0:
		return Sample{S: s}
	case s <= c.Samples[0].S:
		smp := c.Samples[0]
		return Sample{Pos: smp.Pos, Heading: smp.Heading, S: s}
	case s >= c.Samples[n-1].S:
		smp := c.Samples[n-1]
		return Sample{Pos: smp.Pos, Heading: smp.Heading, S: s}
	}

	i := sort.Search(n, func(i int) bool { return c.Samples[i].S >= s })
	b := c.Samples[i]
	if b.S == s {
		return b
	}
	a := c.Samples[i-1]
	t := (s - a.S) / (b.S - a.S)
	return Sample{
		Pos:     a.Pos.Add(b.Pos.Sub(a.Pos).Mul(t)),
		Heading: a.Heading + angleDiff(a.Heading, b.Heading)*t,
		S:       s,
	}
}

// Offset 参考线 s 处向左偏移 lateral 后的点 (负值向右)
func (smp Sample) Offset(lateral float64) vec.Vec2 {
	normal := vec.Vec2{X: -math.Sin(smp.Heading), Y: math.Cos(smp.Heading)}
	return smp.Pos.Add(normal.Mul(lateral))
}

// Stations 返回 [from, to] 内所有采样点的弧长, 并补上 from/to 两个端点
func (c Centerline) Stations(from, to float64) []float64 {
	out := []float64{from}
	for _, smp := range c.Samples {
		if smp.S > from+sEpsilon && smp.S < to-sEpsilon {
			out = append(out, smp.S)
		}
	}
	if to > from+sEpsilon {
		out = append(out, to)
	}
	return out
}

// Points 采样点坐标与弧长
func (c Centerline) Points() ([]vec.Vec2, []float64) {
	pts := make([]vec.Vec2, len(c.Samples))
	s := make([]float64, len(c.Samples))
	for i, smp := range c.Samples {
		pts[i] = smp.Pos
		s[i] = smp.S
	}
	return pts, s
}

// angleDiff b - a 归一化到 (-π, π]
func angleDiff(a, b float64) float64 {
	d := math.Mod(b-a, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
