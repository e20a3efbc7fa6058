package components

import (
	"image/color"

	"github.com/decker502/fxsim/internal/particle"
	"github.com/decker502/fxsim/internal/vmath"
	"github.com/decker502/fxsim/pkg/types"
)

// SpawnShape selects how the spawn position is scattered around the emitter
type SpawnShape int

const (
	SpawnPoint    SpawnShape = iota // exactly at the emitter (explosion)
	SpawnGaussian                   // per-axis normal offset with SpawnSigma (fire, smoke)
	SpawnBox                        // per-axis uniform offset within SpawnBox ranges (rain)
)

// VelocityShape selects how the initial velocity is sampled
type VelocityShape int

const (
	VelocityBox    VelocityShape = iota // per-axis uniform ranges
	VelocitySphere                      // uniform direction on the unit sphere × Speed
)

// WeightedColor is one palette entry; weights need not sum to 1
type WeightedColor struct {
	Color  color.RGBA
	Weight float64
}

// EffectPreset is the compiled, validated configuration of one effect.
// It carries both the global force fields the effect imposes on every live
// particle and the emission policy parameters for new particles.
//
// Presets are built from the YAML config (pkg/config) and looked up by
// EffectType; the integrator only reads them.
//
// This is a pure data component following ECS principles - it contains no methods.
type EffectPreset struct {
	Type types.EffectType

	// Emission (发射参数)
	EmissionRate int  // Particles attempted per tick (per burst when OneShot)
	OneShot      bool // Emit once after reset/switch/trigger instead of every tick

	// Global force fields (全局力场，切换效果时立即作用于所有存活粒子)
	Gravity vmath.Vec3 // Acceleration, mass independent
	Wind    vmath.Vec3 // Force, divided by particle mass
	Damping float64    // Per-tick velocity multiplier in (0,1]

	// Ground collision (地面碰撞)
	GroundLevel       float64
	Ground            types.GroundBehavior
	Restitution       float64 // Fraction of vertical speed reflected on bounce
	PostBounceDamping float64 // Whole-vector decay applied after reflection

	// Spawn position (发射位置)
	Emitter     vmath.Vec3
	SpawnShape  SpawnShape
	SpawnOffset vmath.Vec3        // Constant offset added to every spawn position
	SpawnSigma  float64           // Standard deviation for SpawnGaussian
	SpawnBox    [3]particle.Range // Per-axis ranges for SpawnBox

	// Initial velocity (初速度)
	VelocityShape VelocityShape
	VelocityBox   [3]particle.Range // Per-axis ranges for VelocityBox
	Speed         particle.Range    // Magnitude range for VelocitySphere

	// Per-particle scalars
	Lifetime particle.Range
	Size     particle.Range
	Mass     particle.Range

	// Color policy: weighted palette, or grayscale when Palette is empty
	Palette []WeightedColor
	Gray    particle.Range // 0-255 channel value

	// Fade curve over normalized age; empty means linear 1 - age/lifetime
	Fade particle.Curve
}
