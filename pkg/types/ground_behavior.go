package types

import (
	"fmt"
	"strings"
)

// GroundBehavior 定义粒子触地时的处理方式
type GroundBehavior int

const (
	// GroundRest 贴地：位置钳制到地面，向下速度清零（烟雾）
	GroundRest GroundBehavior = iota
	// GroundBounce 弹跳：垂直速度按恢复系数反向，然后整体衰减（火焰、爆炸）
	GroundBounce
	// GroundDisappear 消失：触地立即移除，无视剩余寿命（雨滴）
	GroundDisappear
)

// String 返回触地行为的配置键名
func (g GroundBehavior) String() string {
	switch g {
	case GroundRest:
		return "rest"
	case GroundBounce:
		return "bounce"
	case GroundDisappear:
		return "disappear"
	default:
		return "unknown"
	}
}

// ParseGroundBehavior 将配置键名解析为 GroundBehavior
func ParseGroundBehavior(s string) (GroundBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rest":
		return GroundRest, nil
	case "bounce":
		return GroundBounce, nil
	case "disappear":
		return GroundDisappear, nil
	default:
		return GroundRest, fmt.Errorf("unknown ground behavior %q", s)
	}
}
