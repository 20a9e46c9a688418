package algo

import (
	"math"
	"road-editor/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/vec"
)

func intPtr(v int) *int { return &v }

func straightRoad(length float64, sections ...model.LaneSection) *model.Road {
	return &model.Road{
		ID:           "r1",
		Length:       length,
		PlanView:     []model.GeometryPrimitive{{Kind: model.PrimitiveLine, Length: length}},
		LaneSections: sections,
	}
}

func constWidth(a float64) []model.PolySegment {
	return []model.PolySegment{{A: a}}
}

func TestSingleLeftLane(t *testing.T) {
	road := straightRoad(10, model.LaneSection{
		Left: []model.Lane{{ID: 1, Type: "driving", Widths: constWidth(3.5)}},
	})
	fs := BuildRoad(road, DefaultBuildOptions)

	require.Len(t, fs.Centerlines, 1)
	require.Len(t, fs.LanePolygons, 1)
	run := fs.LanePolygons[0]
	assert.Equal(t, model.SideLeft, run.Side)
	assert.Equal(t, 1, run.LaneID)
	assert.Equal(t, "driving", run.LaneType)
	assert.Equal(t, 0.0, run.SStart)
	assert.Equal(t, 10.0, run.SEnd)
	require.Len(t, run.Outer, 11)
	for i := range run.Outer {
		assert.InDelta(t, 3.5, run.Outer[i].Y, 1e-12)
		assert.InDelta(t, 0, run.Inner[i].Y, 1e-12)
		assert.InDelta(t, run.S[i], run.Outer[i].X, 1e-12)
	}

	require.Len(t, fs.Edges, 1)
	assert.Equal(t, model.SideLeft, fs.Edges[0].Side)
	assert.Equal(t, 10.0, fs.Bounds.URx)
	assert.InDelta(t, 3.5, fs.Bounds.URy, 1e-12)
}

func TestRightLaneAndOffset(t *testing.T) {
	road := straightRoad(10, model.LaneSection{
		Right: []model.Lane{
			{ID: -2, Type: "driving", Widths: constWidth(2)},
			{ID: -1, Type: "driving", Widths: constWidth(3)},
		},
	})
	road.LaneOffsets = []model.PolySegment{{A: 1}}
	fs := BuildRoad(road, DefaultBuildOptions)
	require.Len(t, fs.LanePolygons, 2)

	byID := map[int]model.LaneRun{}
	for _, run := range fs.LanePolygons {
		byID[run.LaneID] = run
	}
	assert.InDelta(t, 1, byID[-1].Inner[0].Y, 1e-12)
	assert.InDelta(t, -2, byID[-1].Outer[0].Y, 1e-12)
	assert.InDelta(t, -2, byID[-2].Inner[0].Y, 1e-12)
	assert.InDelta(t, -4, byID[-2].Outer[0].Y, 1e-12)
}

func signedArea(poly []vec.Vec2) float64 {
	a := 0.0
	for i := range poly {
		p, q := poly[i], poly[(i+1)%len(poly)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

func TestPolygonWinding(t *testing.T) {
	road := straightRoad(10, model.LaneSection{
		Left:  []model.Lane{{ID: 1, Type: "driving", Widths: constWidth(3)}},
		Right: []model.Lane{{ID: -1, Type: "driving", Widths: constWidth(3)}},
	})
	fs := BuildRoad(road, DefaultBuildOptions)
	require.Len(t, fs.LanePolygons, 2)
	a0 := signedArea(fs.LanePolygons[0].Polygon())
	a1 := signedArea(fs.LanePolygons[1].Polygon())
	assert.InDelta(t, 30, math.Abs(a0), 1e-9)
	assert.InDelta(t, 30, math.Abs(a1), 1e-9)
	assert.Equal(t, a0 > 0, a1 > 0)
}

func TestVanishingLaneBoundaries(t *testing.T) {
	// w(s) = s - 0.1·s², 在 s=0 和 s=10 处为 0
	road := straightRoad(10, model.LaneSection{
		Left: []model.Lane{{ID: 1, Type: "driving", Widths: []model.PolySegment{{B: 1, C: -0.1}}}},
	})
	opts := DefaultBuildOptions
	fs := BuildRoad(road, opts)
	require.Len(t, fs.LanePolygons, 1)
	run := fs.LanePolygons[0]

	width := SplineFromSegments(0, road.LaneSections[0].Left[0].Widths)
	assert.InDelta(t, opts.Epsilon, width.Evaluate(run.SStart), 1e-6)
	assert.InDelta(t, opts.Epsilon, width.Evaluate(run.SEnd), 1e-6)
	assert.Greater(t, run.SStart, 0.0)
	assert.Less(t, run.SEnd, 10.0)
	for _, s := range run.S {
		w := width.Evaluate(s)
		assert.Greater(t, w, 0.0)
		assert.GreaterOrEqual(t, w, opts.Epsilon-1e-6)
	}
	// 边界点处外边界与内边界的距离就是宽度
	first := run.Outer[0].Sub(run.Inner[0]).Length()
	assert.InDelta(t, opts.Epsilon, first, 1e-6)
}

func TestLaneDisappearsMidSection(t *testing.T) {
	// 宽度线性减小到 0 之后车道段结束, 之后保持为 0
	road := straightRoad(20, model.LaneSection{
		Left: []model.Lane{{ID: 1, Type: "driving", Widths: []model.PolySegment{
			{SOffset: 0, A: 2, B: -0.2},
			{SOffset: 10, A: 0},
		}}},
	})
	fs := BuildRoad(road, DefaultBuildOptions)
	require.Len(t, fs.LanePolygons, 1)
	run := fs.LanePolygons[0]
	assert.Equal(t, 0.0, run.SStart)
	assert.InDelta(t, (2-DefaultLaneEpsilon)/0.2, run.SEnd, 1e-9)
	assertRunBoundaries(t, road, fs, DefaultLaneEpsilon)
}

// assertRunBoundaries 每个车道段的起止点要么落在车道段边界上, 要么宽度等于 eps
func assertRunBoundaries(t *testing.T, road *model.Road, fs model.FeatureSet, eps float64) {
	t.Helper()
	onSection := func(s float64) bool {
		for i := range road.LaneSections {
			if math.Abs(s-road.LaneSections[i].S) < 1e-9 || math.Abs(s-road.SectionEnd(i)) < 1e-9 {
				return true
			}
		}
		return false
	}
	for _, run := range fs.LanePolygons {
		for _, s := range []float64{run.SStart, run.SEnd} {
			if onSection(s) {
				continue
			}
			var section *model.LaneSection
			for i := range road.LaneSections {
				if road.LaneSections[i].S <= s {
					section = &road.LaneSections[i]
				}
			}
			require.NotNil(t, section)
			for _, lane := range section.SideLanes(run.Side) {
				if lane.ID != run.LaneID {
					continue
				}
				w := SplineFromSegments(section.S, lane.Widths).Evaluate(s)
				assert.InDelta(t, eps, w, 1e-6, "lane %d boundary at s=%v", run.LaneID, s)
			}
		}
	}
}

func TestLaneVanishesBetweenStations(t *testing.T) {
	// 宽度节点 s=10 不在采样点上, 宽度在两个采样点之间有拐点
	widths := []model.PolySegment{
		{SOffset: 0, A: 3.5, B: -0.35},
		{SOffset: 10, A: 0},
	}
	want := (3.5 - DefaultLaneEpsilon) / 0.35

	tests := []struct {
		name      string
		primitive model.GeometryPrimitive
		sampler   SamplerOptions
	}{
		{"line", model.GeometryPrimitive{Kind: model.PrimitiveLine, Length: 20}, SamplerOptions{ChordLength: 0.8, AngleStep: 0.02}},
		{"arc", model.GeometryPrimitive{Kind: model.PrimitiveArc, Length: 20, Curvature: 0.0345}, SamplerOptions{ChordLength: 1, AngleStep: 0.02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			road := &model.Road{
				ID:           "r1",
				Length:       20,
				PlanView:     []model.GeometryPrimitive{tt.primitive},
				LaneSections: []model.LaneSection{{Left: []model.Lane{{ID: 1, Type: "driving", Widths: widths}}}},
			}
			opts := BuildOptions{Sampler: tt.sampler, Epsilon: DefaultLaneEpsilon}
			fs := BuildRoad(road, opts)
			require.Len(t, fs.LanePolygons, 1)
			run := fs.LanePolygons[0]
			assert.Equal(t, 0.0, run.SStart)
			assert.InDelta(t, want, run.SEnd, 1e-6)
			assertRunBoundaries(t, road, fs, opts.Epsilon)

			last := len(run.Outer) - 1
			assert.InDelta(t, opts.Epsilon, run.Outer[last].Sub(run.Inner[last]).Length(), 1e-6)
		})
	}
}

func TestTypeChangeSplitsRun(t *testing.T) {
	road := straightRoad(10,
		model.LaneSection{S: 0, Left: []model.Lane{{ID: 1, Type: "driving", Widths: constWidth(3), SuccessorID: intPtr(1)}}},
		model.LaneSection{S: 5, Left: []model.Lane{{ID: 1, Type: "shoulder", Widths: constWidth(3), PredecessorID: intPtr(1)}}},
	)
	fs := BuildRoad(road, DefaultBuildOptions)
	require.Len(t, fs.LanePolygons, 2)
	assert.Equal(t, "driving", fs.LanePolygons[0].LaneType)
	assert.Equal(t, 0.0, fs.LanePolygons[0].SStart)
	assert.Equal(t, 5.0, fs.LanePolygons[0].SEnd)
	assert.Equal(t, "shoulder", fs.LanePolygons[1].LaneType)
	assert.Equal(t, 5.0, fs.LanePolygons[1].SStart)
	assert.Equal(t, 10.0, fs.LanePolygons[1].SEnd)
}

func TestSectionBoundaryOffsetJump(t *testing.T) {
	road := straightRoad(10,
		model.LaneSection{S: 0, Left: []model.Lane{{ID: 1, Type: "driving", Widths: constWidth(3)}}},
		model.LaneSection{S: 5, Left: []model.Lane{{ID: 1, Type: "driving", Widths: constWidth(4), PredecessorID: intPtr(1)}}},
	)
	fs := BuildRoad(road, DefaultBuildOptions)
	require.Len(t, fs.LanePolygons, 1)
	run := fs.LanePolygons[0]
	assert.Equal(t, 0.0, run.SStart)
	assert.Equal(t, 10.0, run.SEnd)

	// s=5 处有两个点, 分别对应两个车道段的宽度
	var ys []float64
	for i, s := range run.S {
		if s == 5 {
			ys = append(ys, run.Outer[i].Y)
		}
	}
	require.Len(t, ys, 2)
	assert.InDelta(t, 3, ys[0], 1e-12)
	assert.InDelta(t, 4, ys[1], 1e-12)
}

func TestTrackPauseAndUnlinkedLanes(t *testing.T) {
	road := straightRoad(15,
		model.LaneSection{S: 0, Left: []model.Lane{{ID: 1, Type: "driving", Widths: constWidth(3)}}},
		model.LaneSection{S: 5},
		model.LaneSection{S: 10, Left: []model.Lane{{ID: 1, Type: "driving", Widths: constWidth(3)}}},
	)
	fs := BuildRoad(road, DefaultBuildOptions)
	require.Len(t, fs.LanePolygons, 2)
	assert.Equal(t, 5.0, fs.LanePolygons[0].SEnd)
	assert.Equal(t, 10.0, fs.LanePolygons[1].SStart)
}

func TestBuildTracksLinkage(t *testing.T) {
	road := straightRoad(10,
		model.LaneSection{S: 0, Left: []model.Lane{
			{ID: 1, Type: "driving", SuccessorID: intPtr(2)},
			{ID: 2, Type: "driving"},
		}},
		model.LaneSection{S: 5, Left: []model.Lane{
			{ID: 1, Type: "driving"},
			{ID: 2, Type: "driving"},
			{ID: 3, Type: "driving", PredecessorID: intPtr(2)},
		}},
	)
	tracks := buildTracks(road, model.SideLeft)
	var lens []int
	for _, tr := range tracks {
		lens = append(lens, len(tr))
	}
	// 0:1 -> 1:2 (后继), 0:2 -> 1:3 (前驱), 1:1 新轨迹
	assert.Equal(t, []int{2, 2, 1}, lens)
	assert.Equal(t, 2, tracks[0][1].lane.ID)
	assert.Equal(t, 3, tracks[1][1].lane.ID)
	assert.Equal(t, 1, tracks[2][0].lane.ID)
}

func TestMarkingsAndEdges(t *testing.T) {
	road := straightRoad(10, model.LaneSection{
		Left: []model.Lane{
			{ID: 1, Type: "driving", Widths: constWidth(3), RoadMarks: []model.RoadMark{
				{SOffset: 0, Type: "solid", Color: "white"},
				{SOffset: 4, Type: "broken", Color: "white"},
			}},
			{ID: 2, Type: model.LaneTypeSidewalk, Widths: constWidth(2)},
		},
		Center: []model.Lane{{ID: 0, Type: "none", RoadMarks: []model.RoadMark{{Type: "solid", Color: "yellow"}}}},
		Right:  []model.Lane{{ID: -1, Type: "driving", Widths: constWidth(3)}},
	})
	fs := BuildRoad(road, DefaultBuildOptions)

	var laneMarks, centerMarks []model.Marking
	for _, m := range fs.Markings {
		if m.Side == model.SideCenter {
			centerMarks = append(centerMarks, m)
		} else {
			laneMarks = append(laneMarks, m)
		}
	}
	require.Len(t, laneMarks, 2)
	assert.Equal(t, "solid", laneMarks[0].Mark.Type)
	assert.Equal(t, 0.0, laneMarks[0].SStart)
	assert.Equal(t, 4.0, laneMarks[0].SEnd)
	assert.Equal(t, "broken", laneMarks[1].Mark.Type)
	assert.Equal(t, 10.0, laneMarks[1].SEnd)
	for _, p := range laneMarks[1].Points {
		assert.InDelta(t, 3, p.Y, 1e-12)
	}

	require.Len(t, centerMarks, 1)
	assert.Equal(t, "yellow", centerMarks[0].Mark.Color)
	assert.InDelta(t, 0, centerMarks[0].Points[0].Y, 1e-12)

	// 左侧车行道边缘不含人行道
	require.Len(t, fs.Edges, 2)
	for _, e := range fs.Edges {
		want := 3.0
		if e.Side == model.SideRight {
			want = -3
		}
		for _, p := range e.Points {
			assert.InDelta(t, want, p.Y, 1e-12)
		}
	}

	// 第一个车道段的生效标线
	for _, run := range fs.LanePolygons {
		if run.LaneID == 1 {
			require.NotNil(t, run.ActiveRoadMark)
			assert.Equal(t, "solid", run.ActiveRoadMark.Type)
		}
	}
}

func TestBuildModelSkipsEmptyRoads(t *testing.T) {
	rm := &model.RoadModel{Roads: []model.Road{
		*straightRoad(5, model.LaneSection{Left: []model.Lane{{ID: 1, Type: "driving", Widths: constWidth(1)}}}),
		{ID: "empty", Length: 0},
	}}
	fs := BuildModel(rm, DefaultBuildOptions)
	assert.Len(t, fs.Centerlines, 1)
	assert.Len(t, fs.LanePolygons, 1)
}
