package systems

import (
	"fmt"
	"log"
	"math"

	"github.com/decker502/fxsim/internal/vmath"
	"github.com/decker502/fxsim/pkg/components"
	"github.com/decker502/fxsim/pkg/config"
	"github.com/decker502/fxsim/pkg/types"
)

// particle_system_config.go - 运行时配置修改
//
// 所有 setter 先校验再修改：校验失败时返回 ErrInvalidConfig，当前配置保持不变。
// setter 只修改当前效果的运行副本，Reset / SetEffect 会恢复预设值。

// SetGravity 设置重力加速度
func (ps *ParticleSystem) SetGravity(g vmath.Vec3) error {
	if !vmath.V3IsFinite(g) {
		return fmt.Errorf("%w: gravity must be finite, got %+v", ErrInvalidConfig, g)
	}
	ps.active.Gravity = g
	return nil
}

// SetWind 设置风力
func (ps *ParticleSystem) SetWind(w vmath.Vec3) error {
	if !vmath.V3IsFinite(w) {
		return fmt.Errorf("%w: wind must be finite, got %+v", ErrInvalidConfig, w)
	}
	ps.active.Wind = w
	return nil
}

// SetDamping 设置每帧速度衰减系数，必须在 (0,1] 内
func (ps *ParticleSystem) SetDamping(d float64) error {
	if err := validateDamping(d); err != nil {
		return err
	}
	ps.active.Damping = d
	return nil
}

// SetEmissionRate 设置每帧尝试发射的粒子数
func (ps *ParticleSystem) SetEmissionRate(rate int) error {
	if rate < 0 {
		return fmt.Errorf("%w: emission rate must be >= 0, got %d", ErrInvalidConfig, rate)
	}
	ps.active.EmissionRate = rate
	return nil
}

// SetMaxParticles 修改容量上限
// 新上限小于存活数量时，丢弃最新发射的粒子
func (ps *ParticleSystem) SetMaxParticles(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: max particles must be > 0, got %d", ErrInvalidConfig, n)
	}
	if dropped := ps.particles.SetCap(n); dropped > 0 {
		log.Printf("[ParticleSystem] Max particles lowered to %d, dropped %d", n, dropped)
	}
	return nil
}

// SetGroundLevel 设置地面高度
func (ps *ParticleSystem) SetGroundLevel(z float64) error {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return fmt.Errorf("%w: ground level must be finite, got %v", ErrInvalidConfig, z)
	}
	ps.active.GroundLevel = z
	return nil
}

// SetGroundBehavior 设置触地行为
func (ps *ParticleSystem) SetGroundBehavior(b types.GroundBehavior) error {
	switch b {
	case types.GroundRest, types.GroundBounce, types.GroundDisappear:
		ps.active.Ground = b
		return nil
	}
	return fmt.Errorf("%w: unknown ground behavior %d", ErrInvalidConfig, b)
}

// SetCollisionEnabled 开关地面碰撞
func (ps *ParticleSystem) SetCollisionEnabled(enabled bool) {
	ps.collisionEnabled = enabled
}

// SetEmitter 移动发射器
func (ps *ParticleSystem) SetEmitter(pos vmath.Vec3) error {
	if !vmath.V3IsFinite(pos) {
		return fmt.Errorf("%w: emitter must be finite, got %+v", ErrInvalidConfig, pos)
	}
	ps.active.Emitter = pos
	return nil
}

// SetTimestep 设置 Step() 使用的固定时间步长
func (ps *ParticleSystem) SetTimestep(dt float64) error {
	if err := validateTimestep(dt); err != nil {
		return err
	}
	ps.timestep = dt
	return nil
}

// ApplyPresets 替换整张预设表（配置热加载使用）
//
// 新表必须包含全部四种效果且通过校验，否则返回错误并保持旧表。
// 成功后当前效果的运行配置重新载入新预设（setter 的修改被覆盖），
// 存活粒子保留。
func (ps *ParticleSystem) ApplyPresets(presets map[types.EffectType]*components.EffectPreset) error {
	table, err := copyPresetTable(presets)
	if err != nil {
		return err
	}

	burst := ps.burstPending
	ps.presets = table
	ps.loadEffect(ps.effect)
	// 热加载不应该重新触发已经发生过的爆炸
	ps.burstPending = burst && ps.active.OneShot

	log.Printf("[ParticleSystem] Presets replaced, effect=%s", ps.effect)
	return nil
}

// ApplyConfig 应用重新加载的效果配置：预设表、容量、时间步长和碰撞开关
// 全部校验通过后才修改，任一失败时系统保持不变。
func (ps *ParticleSystem) ApplyConfig(cfg *config.EffectsConfig) error {
	presets, err := cfg.Presets()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.System.MaxParticles <= 0 {
		return fmt.Errorf("%w: max particles must be > 0, got %d", ErrInvalidConfig, cfg.System.MaxParticles)
	}
	if err := validateTimestep(cfg.System.Timestep); err != nil {
		return err
	}

	if err := ps.ApplyPresets(presets); err != nil {
		return err
	}
	// 已校验，不会失败
	_ = ps.SetMaxParticles(cfg.System.MaxParticles)
	_ = ps.SetTimestep(cfg.System.Timestep)
	ps.SetCollisionEnabled(cfg.System.CollisionEnabled)
	return nil
}
