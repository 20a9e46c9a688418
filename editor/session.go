// Package editor 管理可编辑的道路轴线, 并在编辑停止后整体重算路网几何
package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"road-editor/algo"
	"road-editor/model"
	"road-editor/opendrive"
	"road-editor/utils"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"seehuhn.de/go/geom/vec"
)

var (
	ErrAxisNotFound   = errors.New("axis not found")
	ErrDuplicateAxis  = errors.New("axis already exists")
	ErrVertexIndex    = errors.New("vertex index out of range")
	ErrTooFewVertices = errors.New("axis needs at least two vertices")
	ErrInvalidFactor  = errors.New("rounding factor must be a number")
	ErrInvalidView    = errors.New("view scale must be positive")
	ErrNoPayload      = opendrive.ErrNoPayload
)

// AxisStore 轴线持久化. 每次重算完成后保存整组轴线.
type AxisStore interface {
	SaveAxes(ctx context.Context, sessionID string, axes []model.EditableAxis) error
	LoadAxes(ctx context.Context, sessionID string) ([]model.EditableAxis, error)
}

// Options 编辑会话参数
type Options struct {
	Sampler          algo.SamplerOptions
	LaneEpsilon      float64
	ArcChord         float64       // 圆角离散弦长 (屏幕像素)
	ClusterTolerance float64       // 求交聚类容差 (屏幕像素)
	RebuildDelay     time.Duration // 最后一次编辑之后等待多久再重算
	LaneWidth        float64       // 导出道路的车道宽度 (米)
	Origin           model.Origin  // 本地平面坐标的地理原点

	// OnRebuild 每次重算完成后调用 (在重算所在的 goroutine 中)
	OnRebuild func(*Snapshot)
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		Sampler:          algo.DefaultSamplerOptions,
		LaneEpsilon:      algo.DefaultLaneEpsilon,
		ArcChord:         1,
		ClusterTolerance: 8,
		RebuildDelay:     150 * time.Millisecond,
		LaneWidth:        3.5,
	}
}

// View 当前视图: 中心点 (本地平面坐标) 与每米对应的像素数, 两个方向可以不同
type View struct {
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	ScaleX  float64 `json:"scale_x"`
	ScaleY  float64 `json:"scale_y"`
}

// Projector 视图对应的投影
func (v View) Projector() algo.Projector {
	return algo.NewViewProjector(v.CenterX, v.CenterY, v.ScaleX, v.ScaleY)
}

// Session 一个编辑会话. 轴线集合归会话所有, 所有修改串行执行;
// 连续的快速修改只触发一次重算, 重算总是基于修改后的完整快照.
type Session struct {
	ID    string
	opts  Options
	store AxisStore

	mu       sync.Mutex
	axes     []*model.EditableAxis // 按创建顺序
	view     View
	version  uint64 // 每次修改加一
	timer    *time.Timer
	snapshot *Snapshot
	rebuilds int
	closed   bool

	buildMu sync.Mutex // 串行化重算
}

// NewSession 创建会话, store 为 nil 时不做持久化
func NewSession(id string, opts Options, store AxisStore) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	def := DefaultOptions()
	if !(opts.ArcChord > 0) {
		opts.ArcChord = def.ArcChord
	}
	if !(opts.ClusterTolerance > 0) {
		opts.ClusterTolerance = def.ClusterTolerance
	}
	if !(opts.LaneWidth > 0) {
		opts.LaneWidth = def.LaneWidth
	}
	if !(opts.LaneEpsilon > 0) {
		opts.LaneEpsilon = def.LaneEpsilon
	}
	if opts.RebuildDelay < 0 {
		opts.RebuildDelay = 0
	}
	return &Session{
		ID:    id,
		opts:  opts,
		store: store,
		view:  View{ScaleX: 1, ScaleY: 1},
	}
}

// Options 返回会话参数
func (s *Session) Options() Options {
	return s.opts
}

// Load 从存储中恢复轴线
func (s *Session) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	axes, err := s.store.LoadAxes(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("加载轴线失败: %w", err)
	}
	return s.mutate(func() error {
		s.replaceLocked(axes)
		return nil
	})
}

// Close 停止尚未触发的重算
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Axes 当前轴线的深拷贝
func (s *Session) Axes() []model.EditableAxis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneAxesLocked()
}

// Axis 按 ID 返回一条轴线的拷贝
func (s *Session) Axis(id string) (model.EditableAxis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, _, err := s.findLocked(id)
	if err != nil {
		return model.EditableAxis{}, err
	}
	return a.Clone(), nil
}

// View 当前视图
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Version 当前修改版本号
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Rebuilds 已完成的重算次数
func (s *Session) Rebuilds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuilds
}

// AddAxis 新建轴线, id 为空时自动生成
func (s *Session) AddAxis(id string, vertices []vec.Vec2) (model.EditableAxis, error) {
	if len(vertices) < 2 {
		return model.EditableAxis{}, ErrTooFewVertices
	}
	if id == "" {
		id = uuid.NewString()
	}
	axis := &model.EditableAxis{ID: id, Vertices: slices.Clone(vertices)}
	err := s.mutate(func() error {
		if _, _, err := s.findLocked(id); err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateAxis, id)
		}
		s.axes = append(s.axes, axis)
		return nil
	})
	if err != nil {
		return model.EditableAxis{}, err
	}
	return axis.Clone(), nil
}

// DeleteAxis 删除轴线
func (s *Session) DeleteAxis(id string) error {
	return s.mutate(func() error {
		_, i, err := s.findLocked(id)
		if err != nil {
			return err
		}
		s.axes = slices.Delete(s.axes, i, i+1)
		return nil
	})
}

// InsertVertex 在下标 idx 处插入顶点 (idx == len 时追加到末尾), 之后的圆角系数随之后移
func (s *Session) InsertVertex(id string, idx int, p vec.Vec2) error {
	return s.mutate(func() error {
		a, _, err := s.findLocked(id)
		if err != nil {
			return err
		}
		if idx < 0 || idx > len(a.Vertices) {
			return fmt.Errorf("%w: %d", ErrVertexIndex, idx)
		}
		a.Vertices = slices.Insert(a.Vertices, idx, p)
		a.Rounding = shiftRounding(a.Rounding, idx, 1)
		return nil
	})
}

// AppendVertex 在轴线末尾追加顶点
func (s *Session) AppendVertex(id string, p vec.Vec2) error {
	return s.mutate(func() error {
		a, _, err := s.findLocked(id)
		if err != nil {
			return err
		}
		a.Vertices = append(a.Vertices, p)
		return nil
	})
}

// MoveVertex 移动顶点
func (s *Session) MoveVertex(id string, idx int, p vec.Vec2) error {
	return s.mutate(func() error {
		a, _, err := s.findLocked(id)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(a.Vertices) {
			return fmt.Errorf("%w: %d", ErrVertexIndex, idx)
		}
		a.Vertices[idx] = p
		return nil
	})
}

// DeleteVertex 删除顶点, 轴线至少保留两个顶点
func (s *Session) DeleteVertex(id string, idx int) error {
	return s.mutate(func() error {
		a, _, err := s.findLocked(id)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(a.Vertices) {
			return fmt.Errorf("%w: %d", ErrVertexIndex, idx)
		}
		if len(a.Vertices) <= 2 {
			return ErrTooFewVertices
		}
		a.Vertices = slices.Delete(a.Vertices, idx, idx+1)
		delete(a.Rounding, idx)
		a.Rounding = shiftRounding(a.Rounding, idx+1, -1)
		return nil
	})
}

// SetRoundingFactor 设置内部顶点的圆角系数, 超出 [0,1] 的值被截断
func (s *Session) SetRoundingFactor(id string, idx int, k float64) error {
	if math.IsNaN(k) {
		return ErrInvalidFactor
	}
	k = min(max(k, 0), 1)
	return s.mutate(func() error {
		a, _, err := s.findLocked(id)
		if err != nil {
			return err
		}
		if idx <= 0 || idx >= len(a.Vertices)-1 {
			return fmt.Errorf("%w: %d is not an internal vertex", ErrVertexIndex, idx)
		}
		if a.Rounding == nil {
			a.Rounding = make(map[int]float64)
		}
		a.Rounding[idx] = k
		return nil
	})
}

// SetView 更新视图. 容差都在屏幕空间中度量, 所以视图变化也会触发重算.
func (s *Session) SetView(v View) error {
	if !(v.ScaleX > 0) || !(v.ScaleY > 0) || math.IsInf(v.ScaleX, 0) || math.IsInf(v.ScaleY, 0) {
		return ErrInvalidView
	}
	return s.mutate(func() error {
		s.view = v
		return nil
	})
}

// Reset 清空所有轴线
func (s *Session) Reset() error {
	return s.mutate(func() error {
		s.axes = nil
		return nil
	})
}

// Snapshot 最近一次重算的结果, 可能落后于最新的修改
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Flush 取消等待中的重算并立即执行, 返回与当前轴线一致的快照
func (s *Session) Flush() *Snapshot {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.rebuild()
	return s.Snapshot()
}

// mutate 在锁内执行修改, 成功后递增版本号并安排一次延迟重算
func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	s.version++
	s.scheduleLocked()
	return nil
}

// scheduleLocked 延迟重算: 计时器已存在时重新计时, 连续修改只触发一次
func (s *Session) scheduleLocked() {
	if s.closed {
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.opts.RebuildDelay, s.rebuild)
		return
	}
	s.timer.Reset(s.opts.RebuildDelay)
}

func (s *Session) rebuild() {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	s.mu.Lock()
	if s.snapshot != nil && s.snapshot.Version == s.version {
		s.mu.Unlock()
		return
	}
	version := s.version
	axes := s.cloneAxesLocked()
	view := s.view
	s.mu.Unlock()

	start := time.Now()
	snap := Build(axes, view.Projector(), s.opts)
	snap.Version = version
	snap.View = view

	s.mu.Lock()
	s.snapshot = snap
	s.rebuilds++
	s.mu.Unlock()

	utils.LogInfo("session %s: rebuilt version %d (%d axes, %d roads, %d intersections) in %v",
		s.ID, version, len(axes), len(snap.Model.Roads), len(snap.Features.Intersections), time.Since(start))
	if s.opts.OnRebuild != nil {
		s.opts.OnRebuild(snap)
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.SaveAxes(ctx, s.ID, axes); err != nil {
			utils.LogError("session %s: saving axes failed: %v", s.ID, err)
		}
	}
}

func (s *Session) findLocked(id string) (*model.EditableAxis, int, error) {
	for i, a := range s.axes {
		if a.ID == id {
			return a, i, nil
		}
	}
	return nil, -1, fmt.Errorf("%w: %s", ErrAxisNotFound, id)
}

func (s *Session) cloneAxesLocked() []model.EditableAxis {
	out := make([]model.EditableAxis, len(s.axes))
	for i, a := range s.axes {
		out[i] = a.Clone()
	}
	return out
}

func (s *Session) replaceLocked(axes []model.EditableAxis) {
	s.axes = make([]*model.EditableAxis, len(axes))
	for i := range axes {
		a := axes[i].Clone()
		s.axes[i] = &a
	}
}

// shiftRounding 下标 >= from 的圆角系数整体移动 delta
func shiftRounding(r map[int]float64, from, delta int) map[int]float64 {
	if len(r) == 0 {
		return r
	}
	out := make(map[int]float64, len(r))
	for i, k := range r {
		if i >= from {
			i += delta
		}
		out[i] = k
	}
	return out
}
