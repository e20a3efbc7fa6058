package systems

import (
	"errors"

	"github.com/decker502/fxsim/pkg/components"
)

// 粒子系统错误
//
// 所有错误都是同步返回给调用方的，不会延迟或重试。
// 容量耗尽不是错误：发射在达到 max_particles 后静默停止。
var (
	// ErrInvalidConfig 配置非法（max_particles、dt 非正，阻尼不在 (0,1] 等）
	ErrInvalidConfig = errors.New("invalid particle system config")

	// ErrUnknownEffect 效果类型不在 {fire, smoke, rain, explosion} 中
	ErrUnknownEffect = errors.New("unknown effect")

	// ErrInvalidParticle 粒子初始状态非法，与 components.ErrInvalidParticle 相同
	ErrInvalidParticle = components.ErrInvalidParticle
)
