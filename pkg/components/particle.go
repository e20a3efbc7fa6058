package components

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/decker502/fxsim/internal/vmath"
	"github.com/decker502/fxsim/pkg/types"
)

// ErrInvalidParticle 表示粒子初始状态违反了不变量（尺寸/质量/寿命必须为正）
var ErrInvalidParticle = errors.New("invalid particle")

// Particle represents a single simulated point mass.
// It stores all the runtime state for an individual particle: position,
// velocity, visual properties and lifecycle information.
//
// Particles are created by an emission policy and owned by the ParticleSystem,
// which integrates them each tick and removes them when they expire or hit the
// ground under a "disappear" effect.
//
// This is a pure data component following ECS principles - it contains no methods.
type Particle struct {
	// Kinematics (世界坐标, Z 轴向上)
	Position vmath.Vec3 // World position
	Velocity vmath.Vec3 // Units per second

	// Visuals (发射时确定，物理步进不会修改)
	Color color.RGBA // Effect-determined color; only the rendered alpha changes
	Size  float64    // Rendering hint, constant over lifetime

	// Lifecycle (生命周期, 秒)
	Age      float64 // Time since emission, starts at 0
	Lifetime float64 // Total time-to-live assigned at emission

	// Mass scales the response to wind (wind / mass); gravity ignores it
	Mass float64

	// Effect 发射该粒子的效果，决定透明度曲线；EffectUnknown 表示手动注入
	Effect types.EffectType
}

// NewParticle builds a particle with Age 0, rejecting degenerate input.
// Size, mass and lifetime must be positive and finite; position and velocity
// must be finite.
func NewParticle(position, velocity vmath.Vec3, c color.RGBA, size, lifetime, mass float64) (Particle, error) {
	if !(size > 0) || math.IsInf(size, 0) {
		return Particle{}, fmt.Errorf("%w: size must be > 0, got %v", ErrInvalidParticle, size)
	}
	if !(lifetime > 0) || math.IsInf(lifetime, 0) {
		return Particle{}, fmt.Errorf("%w: lifetime must be > 0, got %v", ErrInvalidParticle, lifetime)
	}
	if !(mass > 0) || math.IsInf(mass, 0) {
		return Particle{}, fmt.Errorf("%w: mass must be > 0, got %v", ErrInvalidParticle, mass)
	}
	if !vmath.V3IsFinite(position) || !vmath.V3IsFinite(velocity) {
		return Particle{}, fmt.Errorf("%w: non-finite position or velocity", ErrInvalidParticle)
	}
	return Particle{
		Position: position,
		Velocity: velocity,
		Color:    c,
		Size:     size,
		Lifetime: lifetime,
		Mass:     mass,
	}, nil
}

// ValidateParticle checks the invariants of an existing particle, including
// 0 <= Age <= Lifetime.
func ValidateParticle(p Particle) error {
	if _, err := NewParticle(p.Position, p.Velocity, p.Color, p.Size, p.Lifetime, p.Mass); err != nil {
		return err
	}
	if p.Age < 0 || p.Age > p.Lifetime {
		return fmt.Errorf("%w: age %v outside [0, %v]", ErrInvalidParticle, p.Age, p.Lifetime)
	}
	return nil
}
