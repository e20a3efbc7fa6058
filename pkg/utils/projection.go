// Package utils 提供查看器共用的工具函数
//
// projection.go 把 Z 轴向上的三维世界坐标投影到屏幕坐标（正交投影，固定摄像机）。
//
// # 坐标系统
//
//   - **世界坐标**：右手系，Z 轴向上，单位与物理计算一致
//   - **屏幕坐标**：左上角为原点，Y 轴向下，单位为像素
//
// # 投影公式
//
// 先绕 Z 轴旋转方位角 az，再按仰角 el 俯视：
//
//	right = x·cos(az) - y·sin(az)
//	fwd   = x·sin(az) + y·cos(az)
//	up    = z·cos(el) + fwd·sin(el)
//	depth = fwd·cos(el) - z·sin(el)
//
//	screenX = CenterX + (right - focus.right)·Scale
//	screenY = CenterY - (up - focus.up)·Scale
//
// depth 越大离观察者越远，绘制时应先画远处的点。
package utils

import (
	"math"

	"github.com/decker502/fxsim/internal/vmath"
)

// 默认视角（度），与常见三维绘图库的默认视角一致
const (
	DefaultAzimuthDeg   = -60.0
	DefaultElevationDeg = 30.0
)

// Projection 固定摄像机的正交投影
type Projection struct {
	// Focus 投影到屏幕中心的世界坐标点
	Focus vmath.Vec3
	// Scale 每个世界单位对应的像素数
	Scale float64
	// CenterX, CenterY 屏幕中心（像素）
	CenterX, CenterY float64

	sinAz, cosAz float64
	sinEl, cosEl float64
}

// NewProjection 创建投影
//
// 参数：
//   - screenW, screenH: 屏幕尺寸（像素）
//   - focus: 屏幕中心对准的世界坐标
//   - scale: 每个世界单位的像素数
//   - azimuthDeg, elevationDeg: 方位角和仰角（度）
func NewProjection(screenW, screenH int, focus vmath.Vec3, scale, azimuthDeg, elevationDeg float64) Projection {
	az := azimuthDeg * math.Pi / 180
	el := elevationDeg * math.Pi / 180
	return Projection{
		Focus:   focus,
		Scale:   scale,
		CenterX: float64(screenW) / 2,
		CenterY: float64(screenH) / 2,
		sinAz:   math.Sin(az),
		cosAz:   math.Cos(az),
		sinEl:   math.Sin(el),
		cosEl:   math.Cos(el),
	}
}

// FitProjection 创建能容纳 [-halfWidth, halfWidth]² × [zMin, zMax] 的默认视角投影
func FitProjection(screenW, screenH int, halfWidth, zMin, zMax float64) Projection {
	focus := vmath.V3(0, 0, (zMin+zMax)/2)
	// 水平方向最坏情况是对角线，垂直方向取 z 范围与地面投影之和
	extentX := 2 * halfWidth * math.Sqrt2
	extentY := (zMax-zMin)*math.Cos(DefaultElevationDeg*math.Pi/180) +
		extentX*math.Sin(DefaultElevationDeg*math.Pi/180)
	scale := math.Min(float64(screenW)/extentX, float64(screenH)/extentY) * 0.9
	return NewProjection(screenW, screenH, focus, scale, DefaultAzimuthDeg, DefaultElevationDeg)
}

// Project 投影世界坐标，返回屏幕坐标和深度
func (p Projection) Project(v vmath.Vec3) (x, y, depth float64) {
	right, up, depth := p.rotate(vmath.V3Sub(v, p.Focus))
	return p.CenterX + right*p.Scale, p.CenterY - up*p.Scale, depth
}

func (p Projection) rotate(v vmath.Vec3) (right, up, depth float64) {
	right = v.X*p.cosAz - v.Y*p.sinAz
	fwd := v.X*p.sinAz + v.Y*p.cosAz
	up = v.Z*p.cosEl + fwd*p.sinEl
	depth = fwd*p.cosEl - v.Z*p.sinEl
	return right, up, depth
}
