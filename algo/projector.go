package algo

import (
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/vec"
)

// Projector 世界坐标与屏幕像素之间的转换, 由渲染层提供.
// 容差比较都在屏幕空间进行, 一次重算过程中必须保持不变.
type Projector interface {
	ToScreen(world vec.Vec2) vec.Vec2
	ToWorld(pixel vec.Vec2) vec.Vec2
}

// IdentityProjector 世界坐标即屏幕坐标 (无渲染层时使用)
type IdentityProjector struct{}

func (IdentityProjector) ToScreen(p vec.Vec2) vec.Vec2 { return p }
func (IdentityProjector) ToWorld(p vec.Vec2) vec.Vec2  { return p }

// AffineProjector 由仿射矩阵描述的投影, 可以是各向异性的
type AffineProjector struct {
	M   matrix.Matrix
	inv matrix.Matrix
}

// NewAffineProjector 矩阵奇异时退化为恒等投影
func NewAffineProjector(m matrix.Matrix) *AffineProjector {
	det := m[0]*m[3] - m[1]*m[2]
	if det == 0 {
		return &AffineProjector{M: matrix.Identity, inv: matrix.Identity}
	}
	inv := matrix.Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		0, 0,
	}
	inv[4] = -(inv[0]*m[4] + inv[2]*m[5])
	inv[5] = -(inv[1]*m[4] + inv[3]*m[5])
	return &AffineProjector{M: m, inv: inv}
}

// NewViewProjector 视图投影: 先平移到视图原点, 再按 (sx, sy) 缩放
func NewViewProjector(originX, originY, sx, sy float64) *AffineProjector {
	m := matrix.Matrix{sx, 0, 0, sy, -originX * sx, -originY * sy}
	return NewAffineProjector(m)
}

func (p *AffineProjector) ToScreen(w vec.Vec2) vec.Vec2 { return apply(p.M, w) }
func (p *AffineProjector) ToWorld(s vec.Vec2) vec.Vec2  { return apply(p.inv, s) }

func apply(m matrix.Matrix, v vec.Vec2) vec.Vec2 {
	return vec.Vec2{
		X: m[0]*v.X + m[2]*v.Y + m[4],
		Y: m[1]*v.X + m[3]*v.Y + m[5],
	}
}

// screenDistance 两个世界坐标点在屏幕空间中的距离
func screenDistance(p Projector, a, b vec.Vec2) float64 {
	return p.ToScreen(a).Sub(p.ToScreen(b)).Length()
}
