package algo

import (
	"math"
	"road-editor/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleLine(t *testing.T) {
	g := model.GeometryPrimitive{Kind: model.PrimitiveLine, Length: 10}
	samples := SamplePrimitive(g, SamplerOptions{ChordLength: 1, AngleStep: 0.02})
	require.Len(t, samples, 11)
	for i, smp := range samples {
		assert.InDelta(t, float64(i), smp.Pos.X, 1e-12)
		assert.Equal(t, 0.0, smp.Pos.Y)
		assert.Equal(t, 0.0, smp.Heading)
		assert.InDelta(t, float64(i), smp.S, 1e-12)
	}
}

func TestSampleEndArcLength(t *testing.T) {
	primitives := []model.GeometryPrimitive{
		{Kind: model.PrimitiveLine, X: 3, Y: -2, Heading: 0.3, Length: 7.3},
		{Kind: model.PrimitiveArc, Heading: 1, Length: 12.7, Curvature: 0.08},
		{Kind: model.PrimitiveArc, Length: 3.3, Curvature: -0.5},
		{Kind: model.PrimitiveSpiral, Length: 25.1, CurvStart: 0, CurvEnd: 0.04},
		{Kind: model.PrimitiveSpiral, Length: 9.9, CurvStart: 0.1, CurvEnd: -0.2},
		{Kind: model.PrimitiveParamPoly3, Length: 15.4, U: [4]float64{0, 1, 0, 0}, V: [4]float64{0, 0, 0.01, -0.0004}},
		{Kind: model.PrimitiveParamPoly3, Length: 40.2, Normalized: true, U: [4]float64{0, 40, 0, 0}, V: [4]float64{0, 0, 3, -1}},
	}
	for _, opts := range []SamplerOptions{DefaultSamplerOptions, {ChordLength: 0.37, AngleStep: 0.005}, {ChordLength: 5, AngleStep: 0.1}} {
		for _, g := range primitives {
			samples := SamplePrimitive(g, opts)
			require.GreaterOrEqual(t, len(samples), 2, "%s", g.Kind)
			assert.InDelta(t, g.Length, samples[len(samples)-1].S, 1e-6*g.Length, "%s", g.Kind)
			assert.Equal(t, 0.0, samples[0].S)
			for i := 1; i < len(samples); i++ {
				assert.Greater(t, samples[i].S, samples[i-1].S, "%s sample %d", g.Kind, i)
			}
		}
	}
}

func TestSampleArcClosedForm(t *testing.T) {
	// 半径 10 的四分之一圆
	g := model.GeometryPrimitive{Kind: model.PrimitiveArc, Length: 10 * math.Pi / 2, Curvature: 0.1}
	samples := SamplePrimitive(g, DefaultSamplerOptions)
	last := samples[len(samples)-1]
	assert.InDelta(t, 10, last.Pos.X, 1e-9)
	assert.InDelta(t, 10, last.Pos.Y, 1e-9)
	assert.InDelta(t, math.Pi/2, last.Heading, 1e-12)

	// 步长受角度限制: 0.02 / 0.1 = 0.2 < 1
	assert.GreaterOrEqual(t, len(samples), int(math.Ceil(g.Length/0.2))+1)
}

func TestSampleSpiralHeading(t *testing.T) {
	g := model.GeometryPrimitive{Kind: model.PrimitiveSpiral, Heading: 0.2, Length: 30, CurvStart: 0.01, CurvEnd: 0.05}
	samples := SamplePrimitive(g, DefaultSamplerOptions)
	dk := (g.CurvEnd - g.CurvStart) / g.Length
	for _, smp := range samples {
		want := g.Heading + g.CurvStart*smp.S + 0.5*dk*smp.S*smp.S
		assert.InDelta(t, want, smp.Heading, 1e-9)
	}
	for i := 1; i < len(samples); i++ {
		step := samples[i].S - samples[i-1].S
		assert.LessOrEqual(t, step, DefaultSamplerOptions.ChordLength+1e-12)
		if i < len(samples)-1 {
			assert.GreaterOrEqual(t, step, minSpiralStep-1e-12)
		}
	}
}

func TestSampleSpiralMatchesArc(t *testing.T) {
	// 曲率不变的回旋线就是圆弧
	spiral := model.GeometryPrimitive{Kind: model.PrimitiveSpiral, Length: 20, CurvStart: 0.05, CurvEnd: 0.05}
	arc := model.GeometryPrimitive{Kind: model.PrimitiveArc, Length: 20, Curvature: 0.05}
	a := SamplePrimitive(spiral, DefaultSamplerOptions)
	b := SamplePrimitive(arc, DefaultSamplerOptions)
	endA, endB := a[len(a)-1].Pos, b[len(b)-1].Pos
	assert.InDelta(t, endB.X, endA.X, 1e-6)
	assert.InDelta(t, endB.Y, endA.Y, 1e-6)
}

func TestSampleParamPoly3EndPoint(t *testing.T) {
	g := model.GeometryPrimitive{
		Kind: model.PrimitiveParamPoly3, X: 1, Y: 2, Heading: math.Pi / 2, Length: 10,
		Normalized: true,
		U:          [4]float64{0, 10, 0, 0},
		V:          [4]float64{0, 0, 0, 0},
	}
	samples := SamplePrimitive(g, DefaultSamplerOptions)
	last := samples[len(samples)-1]
	assert.Equal(t, 10.0, last.S)
	assert.InDelta(t, 1, last.Pos.X, 1e-9)
	assert.InDelta(t, 12, last.Pos.Y, 1e-9)
	assert.InDelta(t, math.Pi/2, last.Heading, 1e-12)
}

func TestSampleDegenerate(t *testing.T) {
	assert.Nil(t, SamplePrimitive(model.GeometryPrimitive{Kind: model.PrimitiveArc, Length: 0, Curvature: 1}, DefaultSamplerOptions))
	assert.Nil(t, SamplePrimitive(model.GeometryPrimitive{Kind: model.PrimitiveLine, Length: math.NaN()}, DefaultSamplerOptions))

	// 零曲率的圆弧按直线处理
	samples := SamplePrimitive(model.GeometryPrimitive{Kind: model.PrimitiveArc, Length: 4}, DefaultSamplerOptions)
	require.Len(t, samples, 5)
	assert.InDelta(t, 4, samples[4].Pos.X, 1e-12)
}

func TestSampleRoadJoints(t *testing.T) {
	road := &model.Road{
		ID:     "r",
		Length: 20,
		PlanView: []model.GeometryPrimitive{
			{Kind: model.PrimitiveLine, S: 0, Length: 10},
			{Kind: model.PrimitiveLine, S: 10, X: 10, Length: 0},
			{Kind: model.PrimitiveLine, S: 10, X: 10, Length: 10},
		},
	}
	samples := SampleRoad(road, DefaultSamplerOptions)
	require.Len(t, samples, 21)
	for i, smp := range samples {
		assert.InDelta(t, float64(i), smp.S, 1e-12)
		assert.InDelta(t, float64(i), smp.Pos.X, 1e-12)
	}
}

func TestCenterlinePoseAt(t *testing.T) {
	road := &model.Road{PlanView: []model.GeometryPrimitive{{Kind: model.PrimitiveLine, Length: 4}}}
	cl := Centerline{Samples: SampleRoad(road, DefaultSamplerOptions)}
	assert.Equal(t, 4.0, cl.Length())

	p := cl.PoseAt(2.5)
	assert.InDelta(t, 2.5, p.Pos.X, 1e-12)
	assert.InDelta(t, 0, p.Heading, 1e-12)

	// 超出范围取端点
	assert.Equal(t, 0.0, cl.PoseAt(-1).Pos.X)
	assert.Equal(t, 4.0, cl.PoseAt(9).Pos.X)

	assert.Equal(t, []float64{0.5, 1, 2, 3, 3.5}, cl.Stations(0.5, 3.5))
	assert.Equal(t, []float64{2}, cl.Stations(2, 2))

	left := p.Offset(1.5)
	assert.InDelta(t, 1.5, left.Y, 1e-12)
}

func TestAngleDiff(t *testing.T) {
	assert.InDelta(t, 0.2, angleDiff(math.Pi-0.1, -math.Pi+0.1), 1e-12)
	assert.InDelta(t, -0.2, angleDiff(-math.Pi+0.1, math.Pi-0.1), 1e-12)
	assert.InDelta(t, 1, angleDiff(0, 1), 1e-12)
}
