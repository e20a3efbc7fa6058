package config

import "github.com/decker502/fxsim/pkg/types"

// 查看器布局常量
// 世界坐标系：Z 轴向上，地面在 XY 平面
const (
	// WindowWidth 逻辑屏幕宽度（像素）
	WindowWidth = 1000

	// WindowHeight 逻辑屏幕高度（像素）
	WindowHeight = 800

	// ViewHalfWidth 视野在 X、Y 方向的半宽（世界单位）
	ViewHalfWidth = 8.0

	// GroundPlaneHalfWidth 地面网格的半宽（世界单位）
	GroundPlaneHalfWidth = 10.0
)

// ViewLimits 返回效果的视野 Z 范围
// 雨从高处落下且会穿过地面，烟雾只在地面以上
func ViewLimits(effect types.EffectType) (zMin, zMax float64) {
	switch effect {
	case types.EffectRain:
		return -5, 12
	case types.EffectSmoke:
		return 0, 15
	default:
		return -3, 10
	}
}

// ShowGroundPlane 返回是否绘制地面网格（烟雾不绘制）
func ShowGroundPlane(effect types.EffectType) bool {
	return effect != types.EffectSmoke
}
