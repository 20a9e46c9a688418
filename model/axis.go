package model

import (
	"maps"
	"slices"
	"time"

	"github.com/lib/pq"
	"seehuhn.de/go/geom/vec"
)

// EditableAxis 编辑器中用户绘制的道路轴线
type EditableAxis struct {
	ID       string          `json:"id"`
	Vertices []vec.Vec2      `json:"vertices"`
	Rounding map[int]float64 `json:"rounding,omitempty"` // 顶点下标 -> 圆角系数 [0,1], 缺省为 1
}

// DefaultRounding 未设置圆角系数时使用的值
const DefaultRounding = 1.0

// RoundingAt 返回顶点 i 的圆角系数
func (a *EditableAxis) RoundingAt(i int) float64 {
	if k, ok := a.Rounding[i]; ok {
		return k
	}
	return DefaultRounding
}

// Clone 深拷贝, 用于生成一致的快照
func (a *EditableAxis) Clone() EditableAxis {
	c := EditableAxis{
		ID:       a.ID,
		Vertices: slices.Clone(a.Vertices),
	}
	if a.Rounding != nil {
		c.Rounding = maps.Clone(a.Rounding)
	}
	return c
}

// StoredAxis 轴线在数据库中的存储形式
type StoredAxis struct {
	SessionID   string          `gorm:"primaryKey"`
	ID          string          `gorm:"primaryKey"`
	Position    int             // 在会话中的顺序
	Xs          pq.Float64Array `gorm:"type:double precision[]"`
	Ys          pq.Float64Array `gorm:"type:double precision[]"`
	RoundingIdx pq.Int64Array   `gorm:"type:bigint[]"`
	RoundingVal pq.Float64Array `gorm:"type:double precision[]"`
	UpdatedAt   time.Time
}

// ToStored 转换为存储形式, 圆角系数按下标升序保存
func (a *EditableAxis) ToStored(sessionID string, position int) StoredAxis {
	s := StoredAxis{
		ID:        a.ID,
		SessionID: sessionID,
		Position:  position,
		Xs:        make(pq.Float64Array, len(a.Vertices)),
		Ys:        make(pq.Float64Array, len(a.Vertices)),
	}
	for i, v := range a.Vertices {
		s.Xs[i] = v.X
		s.Ys[i] = v.Y
	}
	for _, idx := range slices.Sorted(maps.Keys(a.Rounding)) {
		s.RoundingIdx = append(s.RoundingIdx, int64(idx))
		s.RoundingVal = append(s.RoundingVal, a.Rounding[idx])
	}
	return s
}

// Axis 由存储形式恢复轴线
func (s *StoredAxis) Axis() EditableAxis {
	a := EditableAxis{ID: s.ID, Vertices: make([]vec.Vec2, 0, len(s.Xs))}
	for i := range s.Xs {
		if i >= len(s.Ys) {
			break
		}
		a.Vertices = append(a.Vertices, vec.Vec2{X: s.Xs[i], Y: s.Ys[i]})
	}
	if len(s.RoundingIdx) > 0 {
		a.Rounding = make(map[int]float64, len(s.RoundingIdx))
		for i, idx := range s.RoundingIdx {
			if i < len(s.RoundingVal) {
				a.Rounding[int(idx)] = s.RoundingVal[i]
			}
		}
	}
	return a
}

// RoadDocument 上传的路网文档
type RoadDocument struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"index"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
}
