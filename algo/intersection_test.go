package algo

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/vec"
)

func TestResolveSingleCrossing(t *testing.T) {
	axes := []AxisLine{
		{ID: "a", Points: []vec.Vec2{{X: -10, Y: 0}, {X: 10, Y: 0}}},
		{ID: "b", Points: []vec.Vec2{{X: 0, Y: -10}, {X: 0, Y: 10}}},
	}
	res := Resolver{Tolerance: 8}.Resolve(axes)
	require.Len(t, res.Intersections, 1)
	x := res.Intersections[0]
	assert.Equal(t, []string{"a", "b"}, x.Members)
	assert.InDelta(t, 0, x.Position.X, 1e-12)
	assert.InDelta(t, 0, x.Position.Y, 1e-12)

	require.Len(t, res.Segments["a"], 2)
	segA := res.Segments["a"]
	assert.Equal(t, 0.0, segA[0].SStart)
	assert.InDelta(t, 10, segA[0].SEnd, 1e-12)
	assert.Equal(t, []vec.Vec2{{X: -10, Y: 0}, {X: 0, Y: 0}}, segA[0].Points)
	assert.Equal(t, 1, segA[1].Index)
	assert.InDelta(t, 20, segA[1].SEnd, 1e-12)
	assert.Len(t, res.Segments["b"], 2)
}

func TestResolveCrossingStableUnderPerturbation(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	jitter := func(p vec.Vec2) vec.Vec2 {
		return vec.Vec2{X: p.X + (r.Float64()*2-1)*2, Y: p.Y + (r.Float64()*2-1)*2}
	}
	for iter := 0; iter < 100; iter++ {
		a := []vec.Vec2{jitter(vec.Vec2{X: -30, Y: 0}), jitter(vec.Vec2{X: 30, Y: 0})}
		b := []vec.Vec2{jitter(vec.Vec2{X: 0, Y: -30}), jitter(vec.Vec2{X: 0, Y: 0}), jitter(vec.Vec2{X: 0, Y: 30})}
		res := Resolver{Tolerance: 8}.Resolve([]AxisLine{{ID: "a", Points: a}, {ID: "b", Points: b}})
		require.Len(t, res.Intersections, 1, "iter %d", iter)
		assert.Len(t, res.Segments["a"], 2)
	}
}

func TestResolveCrossingAtVertex(t *testing.T) {
	// 两条线段在共享顶点处都与 a 相交, 聚类后只剩一个交点, 并吸附到该顶点
	axes := []AxisLine{
		{ID: "a", Points: []vec.Vec2{{X: -10, Y: 0.3}, {X: 10, Y: -0.3}}},
		{ID: "b", Points: []vec.Vec2{{X: 0, Y: -10}, {X: 0, Y: 0}, {X: 0, Y: 10}}},
	}
	res := Resolver{Tolerance: 8}.Resolve(axes)
	require.Len(t, res.Intersections, 1)
	assert.Equal(t, vec.Vec2{X: 0, Y: 0}, res.Intersections[0].Position)
}

func TestResolveEndpointTouch(t *testing.T) {
	axes := []AxisLine{
		{ID: "main", Points: []vec.Vec2{{X: -10, Y: 0}, {X: 10, Y: 0}}},
		{ID: "branch", Points: []vec.Vec2{{X: 0, Y: 0.5}, {X: 0, Y: 10}}},
	}
	res := Resolver{Tolerance: 8}.Resolve(axes)
	require.Len(t, res.Intersections, 1)
	x := res.Intersections[0]
	assert.Equal(t, []string{"branch", "main"}, x.Members)
	// 优先吸附到容差内已有的顶点
	assert.Equal(t, vec.Vec2{X: 0, Y: 0.5}, x.Position)

	assert.Len(t, res.Segments["main"], 2)
	require.Len(t, res.Segments["branch"], 1)
	assert.InDelta(t, 9.5, res.Segments["branch"][0].SEnd, 1e-12)
}

func TestResolveToleranceInScreenSpace(t *testing.T) {
	axes := []AxisLine{
		{ID: "main", Points: []vec.Vec2{{X: -100, Y: 0}, {X: 100, Y: 0}}},
		{ID: "branch", Points: []vec.Vec2{{X: 0, Y: 1}, {X: 0, Y: 100}}},
	}
	near := Resolver{Tolerance: 8}.Resolve(axes)
	assert.Len(t, near.Intersections, 1)

	// 放大 10 倍后间隙为 10 像素, 超出容差
	far := Resolver{Projector: NewViewProjector(0, 0, 10, 10), Tolerance: 8}.Resolve(axes)
	assert.Empty(t, far.Intersections)
	assert.Len(t, far.Segments["main"], 1)

	// 各向异性: 只在 y 方向放大
	aniso := Resolver{Projector: NewViewProjector(0, 0, 0.1, 10), Tolerance: 8}.Resolve(axes)
	assert.Empty(t, aniso.Intersections)
}

func TestResolveNoIntersections(t *testing.T) {
	axes := []AxisLine{
		{ID: "a", Points: []vec.Vec2{{X: 0, Y: 0}, {X: 100, Y: 0}}},
		{ID: "b", Points: []vec.Vec2{{X: 0, Y: 50}, {X: 100, Y: 50}}},
		{ID: "c", Points: []vec.Vec2{{X: 500, Y: 500}}},
	}
	res := Resolver{Tolerance: 8}.Resolve(axes)
	assert.Empty(t, res.Intersections)
	assert.Len(t, res.Segments["a"], 1)
	assert.Len(t, res.Segments["b"], 1)
	assert.NotContains(t, res.Segments, "c")
}

func TestResolveThreeWayJunction(t *testing.T) {
	axes := []AxisLine{
		{ID: "a", Points: []vec.Vec2{{X: -30, Y: 0}, {X: 30, Y: 0}}},
		{ID: "b", Points: []vec.Vec2{{X: 0, Y: -30}, {X: 0, Y: 30}}},
		{ID: "c", Points: []vec.Vec2{{X: -30, Y: -30}, {X: 30, Y: 30}}},
	}
	res := Resolver{Tolerance: 8}.Resolve(axes)
	require.Len(t, res.Intersections, 1)
	assert.Equal(t, []string{"a", "b", "c"}, res.Intersections[0].Members)
	for _, id := range []string{"a", "b", "c"} {
		assert.Len(t, res.Segments[id], 2, id)
	}
}

func TestSegmentIntersection(t *testing.T) {
	p, ok := segmentIntersection(vec.Vec2{X: 0, Y: 0}, vec.Vec2{X: 2, Y: 2}, vec.Vec2{X: 0, Y: 2}, vec.Vec2{X: 2, Y: 0})
	require.True(t, ok)
	assert.InDelta(t, 1, p.X, 1e-12)
	assert.InDelta(t, 1, p.Y, 1e-12)

	_, ok = segmentIntersection(vec.Vec2{X: 0, Y: 0}, vec.Vec2{X: 1, Y: 0}, vec.Vec2{X: 0, Y: 1}, vec.Vec2{X: 1, Y: 1})
	assert.False(t, ok)
	_, ok = segmentIntersection(vec.Vec2{X: 0, Y: 0}, vec.Vec2{X: 1, Y: 1}, vec.Vec2{X: 3, Y: 0}, vec.Vec2{X: 2, Y: 1})
	assert.False(t, ok)
}

func TestProjectorRoundTrip(t *testing.T) {
	p := NewViewProjector(100, 50, 2, -3)
	w := vec.Vec2{X: 101, Y: 49}
	s := p.ToScreen(w)
	assert.InDelta(t, 2, s.X, 1e-12)
	assert.InDelta(t, 3, s.Y, 1e-12)
	back := p.ToWorld(s)
	assert.InDelta(t, w.X, back.X, 1e-12)
	assert.InDelta(t, w.Y, back.Y, 1e-12)

	singular := NewAffineProjector([6]float64{0, 0, 0, 0, 1, 1})
	assert.Equal(t, w, singular.ToScreen(w))
	assert.Equal(t, w, singular.ToWorld(w))
}
