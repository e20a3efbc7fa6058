// Package types 定义共享的基础类型
// 这个包不依赖任何其他业务包，用于解决循环引用问题
package types

import (
	"fmt"
	"strings"
)

// EffectType 定义粒子效果的类型（封闭集合）
type EffectType int

const (
	// EffectUnknown 未知效果类型（零值，永远无效）
	EffectUnknown EffectType = iota
	// EffectFire 火焰：向上喷射，暖色调
	EffectFire
	// EffectSmoke 烟雾：缓慢上升，受风影响大
	EffectSmoke
	// EffectRain 雨滴：强重力下落，落地即消失
	EffectRain
	// EffectExplosion 爆炸：一次性球面爆发，落地弹跳
	EffectExplosion
)

// AllEffectTypes 按界面展示顺序列出所有有效的效果类型
var AllEffectTypes = []EffectType{EffectFire, EffectSmoke, EffectRain, EffectExplosion}

// String 返回效果类型的配置键名（小写）
func (e EffectType) String() string {
	switch e {
	case EffectFire:
		return "fire"
	case EffectSmoke:
		return "smoke"
	case EffectRain:
		return "rain"
	case EffectExplosion:
		return "explosion"
	default:
		return "unknown"
	}
}

// Title 返回用于界面标题的名称，如 "Fire"
func (e EffectType) Title() string {
	s := e.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Valid 检查效果类型是否属于封闭集合
func (e EffectType) Valid() bool {
	return e >= EffectFire && e <= EffectExplosion
}

// ParseEffectType 将配置键名（不区分大小写）解析为 EffectType
func ParseEffectType(s string) (EffectType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, e := range AllEffectTypes {
		if e.String() == name {
			return e, nil
		}
	}
	return EffectUnknown, fmt.Errorf("unknown effect type %q", s)
}
