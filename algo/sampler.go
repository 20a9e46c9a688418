package algo

import (
	"math"
	"road-editor/model"
	"road-editor/utils"

	"seehuhn.de/go/geom/vec"
)

// Sample 曲线上的一个采样点
type Sample struct {
	Pos     vec.Vec2
	Heading float64
	S       float64 // 弧长 (单个几何元素内为局部弧长, 整条道路为绝对弧长)
}

// SamplerOptions 采样精度参数
type SamplerOptions struct {
	ChordLength float64 // 目标弦长 (最大步长)
	AngleStep   float64 // 每步允许的最大航向变化 (弧度)
}

// DefaultSamplerOptions 默认采样精度
var DefaultSamplerOptions = SamplerOptions{ChordLength: 1.0, AngleStep: 0.02}

const (
	minSpiralStep   = 0.05
	straightEpsilon = 1e-12 // 曲率小于该值按直线处理
	sEpsilon        = 1e-9
)

func (o SamplerOptions) normalized() SamplerOptions {
	if !(o.ChordLength > 0) {
		o.ChordLength = DefaultSamplerOptions.ChordLength
	}
	if !(o.AngleStep > 0) {
		o.AngleStep = DefaultSamplerOptions.AngleStep
	}
	return o
}

// SamplePrimitive 把一个几何元素离散为有序采样点, S 为元素内的局部弧长.
// 最后一个采样点的 S 恰好等于元素长度. 长度为 0 或无效的元素返回 nil.
func SamplePrimitive(g model.GeometryPrimitive, opts SamplerOptions) []Sample {
	opts = opts.normalized()
	if !(g.Length > 0) || math.IsInf(g.Length, 0) {
		return nil
	}

	switch g.Kind {
	case model.PrimitiveArc:
		if math.Abs(g.Curvature) < straightEpsilon {
			return sampleLine(g, opts)
		}
		return sampleArc(g, opts)
	case model.PrimitiveSpiral:
		if math.Abs(g.CurvStart) < straightEpsilon && math.Abs(g.CurvEnd) < straightEpsilon {
			return sampleLine(g, opts)
		}
		return sampleSpiral(g, opts)
	case model.PrimitiveParamPoly3:
		return sampleParamPoly3(g, opts)
	default:
		return sampleLine(g, opts)
	}
}

func sampleLine(g model.GeometryPrimitive, opts SamplerOptions) []Sample {
	n := int(math.Ceil(g.Length / opts.ChordLength))
	n = max(n, 1)
	dir := vec.Vec2{X: math.Cos(g.Heading), Y: math.Sin(g.Heading)}
	start := vec.Vec2{X: g.X, Y: g.Y}

	samples := make([]Sample, 0, n+1)
	for i := 0; i <= n; i++ {
		s := g.Length * float64(i) / float64(n)
		if i == n {
			s = g.Length
		}
		samples = append(samples, Sample{Pos: start.Add(dir.Mul(s)), Heading: g.Heading, S: s})
	}
	return samples
}

// arcPose 圆弧上弧长 s 处的位姿 (闭式解)
func arcPose(g model.GeometryPrimitive, s float64) Sample {
	k := g.Curvature
	h := g.Heading + k*s
	return Sample{
		Pos: vec.Vec2{
			X: g.X + (math.Sin(h)-math.Sin(g.Heading))/k,
			Y: g.Y - (math.Cos(h)-math.Cos(g.Heading))/k,
		},
		Heading: h,
		S:       s,
	}
}

func sampleArc(g model.GeometryPrimitive, opts SamplerOptions) []Sample {
	step := min(opts.AngleStep/math.Abs(g.Curvature), opts.ChordLength)
	n := int(math.Ceil(g.Length / step))
	n = max(n, 1)

	samples := make([]Sample, 0, n+1)
	for i := 0; i <= n; i++ {
		s := g.Length * float64(i) / float64(n)
		if i == n {
			s = g.Length
		}
		samples = append(samples, arcPose(g, s))
	}
	return samples
}

// spiralState 回旋线积分状态
type spiralState struct {
	x, y, theta float64
}

func (st spiralState) add(d spiralState, h float64) spiralState {
	return spiralState{x: st.x + d.x*h, y: st.y + d.y*h, theta: st.theta + d.theta*h}
}

// spiralStep 四阶 Runge-Kutta 积分一步, 曲率 k(s) = k0 + dk·s
func spiralStep(st spiralState, s, h, k0, dk float64) spiralState {
	f := func(st spiralState, s float64) spiralState {
		return spiralState{x: math.Cos(st.theta), y: math.Sin(st.theta), theta: k0 + dk*s}
	}
	k1 := f(st, s)
	k2 := f(st.add(k1, h/2), s+h/2)
	k3 := f(st.add(k2, h/2), s+h/2)
	k4 := f(st.add(k3, h), s+h)
	return spiralState{
		x:     st.x + h/6*(k1.x+2*k2.x+2*k3.x+k4.x),
		y:     st.y + h/6*(k1.y+2*k2.y+2*k3.y+k4.y),
		theta: st.theta + h/6*(k1.theta+2*k2.theta+2*k3.theta+k4.theta),
	}
}

// spiralStepLength 满足 |k·h + 0.5·dk·h²| <= angleStep 的最大步长 (二次方程闭式解)
func spiralStepLength(k, dk, angleStep float64) float64 {
	ak, adk := math.Abs(k), math.Abs(dk)
	switch {
	case adk < straightEpsilon && ak < straightEpsilon:
		return math.Inf(1)
	case adk < straightEpsilon:
		return angleStep / ak
	default:
		return (-ak + math.Sqrt(ak*ak+2*adk*angleStep)) / adk
	}
}

func sampleSpiral(g model.GeometryPrimitive, opts SamplerOptions) []Sample {
	k0 := g.CurvStart
	dk := (g.CurvEnd - g.CurvStart) / g.Length
	lo := min(minSpiralStep, opts.ChordLength)

	st := spiralState{x: g.X, y: g.Y, theta: g.Heading}
	s := 0.0
	samples := []Sample{{Pos: vec.Vec2{X: st.x, Y: st.y}, Heading: st.theta, S: 0}}
	for g.Length-s > sEpsilon {
		h := spiralStepLength(k0+dk*s, dk, opts.AngleStep)
		h = max(lo, min(h, opts.ChordLength))
		last := false
		if s+h >= g.Length-sEpsilon {
			h = g.Length - s
			last = true
		}
		st = spiralStep(st, s, h, k0, dk)
		s += h
		if last {
			s = g.Length
		}
		samples = append(samples, Sample{Pos: vec.Vec2{X: st.x, Y: st.y}, Heading: st.theta, S: s})
	}
	return samples
}

// paramPoly3 在局部坐标系下的 u(p), v(p) 及其导数
type paramPoly3 struct {
	u, v Poly3
}

func newParamPoly3(g model.GeometryPrimitive) paramPoly3 {
	return paramPoly3{
		u: Poly3{A: g.U[0], B: g.U[1], C: g.U[2], D: g.U[3]},
		v: Poly3{A: g.V[0], B: g.V[1], C: g.V[2], D: g.V[3]},
	}
}

// pose 参数 p 处的绝对位置与航向
func (pp paramPoly3) pose(g model.GeometryPrimitive, p float64) (vec.Vec2, float64) {
	u, v := pp.u.ValueAt(p), pp.v.ValueAt(p)
	du, dv := pp.u.SlopeAt(p), pp.v.SlopeAt(p)
	cos, sin := math.Cos(g.Heading), math.Sin(g.Heading)
	pos := vec.Vec2{X: g.X + u*cos - v*sin, Y: g.Y + u*sin + v*cos}
	heading := g.Heading
	if du != 0 || dv != 0 {
		heading += math.Atan2(dv, du)
	}
	return pos, heading
}

// speedAndCurvature |(u',v')| 以及曲率 (u'v'' - v'u'') / |d|³
func (pp paramPoly3) speedAndCurvature(p float64) (speed, curvature float64) {
	du, dv := pp.u.SlopeAt(p), pp.v.SlopeAt(p)
	ddu, ddv := pp.u.CurvatureProxyAt(p), pp.v.CurvatureProxyAt(p)
	speed = math.Hypot(du, dv)
	if speed < straightEpsilon {
		return speed, 0
	}
	return speed, (du*ddv - dv*ddu) / (speed * speed * speed)
}

func sampleParamPoly3(g model.GeometryPrimitive, opts SamplerOptions) []Sample {
	pp := newParamPoly3(g)
	pMax := g.Length
	if g.Normalized {
		pMax = 1
	}
	scale := g.Length / pMax // 参数到弧长的换算

	pos, heading := pp.pose(g, 0)
	samples := []Sample{{Pos: pos, Heading: heading, S: 0}}
	p := 0.0
	for pMax-p > sEpsilon*pMax {
		speed, k := pp.speedAndCurvature(p)
		ds := opts.ChordLength
		if math.Abs(k) > straightEpsilon {
			ds = min(opts.AngleStep/math.Abs(k), ds)
		}
		dp := ds / scale
		if speed > straightEpsilon {
			dp = ds / speed
		}
		dp = max(dp, 1e-6*pMax)
		if p+dp >= pMax-sEpsilon*pMax {
			dp = pMax - p
		}
		p += dp
		pos, heading := pp.pose(g, p)
		samples = append(samples, Sample{Pos: pos, Heading: heading, S: p * scale})
	}
	// 末点修正: 导数步进会累积截断误差, 最后一个点必须精确落在 p = pMax
	last := &samples[len(samples)-1]
	last.Pos, last.Heading = pp.pose(g, pMax)
	last.S = g.Length
	return samples
}

// SampleRoad 依次采样道路参考线的所有几何元素, 局部弧长加上元素起点 s 转为绝对弧长,
// 并去掉元素衔接处重复的点. 无效的元素被跳过.
func SampleRoad(road *model.Road, opts SamplerOptions) []Sample {
	var out []Sample
	for _, g := range road.PlanView {
		samples := SamplePrimitive(g, opts)
		if len(samples) == 0 {
			utils.LogWarn("road %s: skipping degenerate %s geometry at s=%g", road.ID, g.Kind, g.S)
			continue
		}
		for i, smp := range samples {
			smp.S += g.S
			if i == 0 && len(out) > 0 && smp.S <= out[len(out)-1].S+sEpsilon {
				continue
			}
			out = append(out, smp)
		}
	}
	return out
}
