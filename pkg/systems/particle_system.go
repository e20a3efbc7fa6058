package systems

import (
	"fmt"
	"image/color"
	"log"
	"math"
	"math/rand"

	particlePkg "github.com/decker502/fxsim/internal/particle"
	"github.com/decker502/fxsim/internal/vmath"
	"github.com/decker502/fxsim/pkg/components"
	"github.com/decker502/fxsim/pkg/config"
	"github.com/decker502/fxsim/pkg/ecs"
	"github.com/decker502/fxsim/pkg/types"
)

// ParticleSystem owns the live particle collection and advances it in time.
// Each unpaused Update runs three phases:
//  1. Emit new particles from the active effect's policy (gated by capacity)
//  2. Integrate every live particle (forces, Euler step, aging, ground collision)
//  3. Compact out particles marked for removal
//
// The active configuration is a copy of the selected effect's preset, so the
// runtime setters never modify the preset table. The integration loop is
// generic over that configuration; the only per-effect branch is the ground
// behavior flag.
//
// Single-owner: a ParticleSystem must not be used from multiple goroutines.
// Renderers read state through Snapshot, which copies.
type ParticleSystem struct {
	particles *ecs.ComponentPool[components.Particle]

	presets map[types.EffectType]*components.EffectPreset
	effect  types.EffectType
	active  components.EffectPreset

	collisionEnabled bool
	paused           bool
	timestep         float64
	elapsed          float64

	// burstPending 一次性效果（爆炸）在下一次未暂停的 Update 中发射
	burstPending bool

	rng   particlePkg.RandomSource
	stats Stats
}

// Options 粒子系统的系统级参数（不随效果切换而变化）
type Options struct {
	MaxParticles     int
	Timestep         float64
	InitialEffect    types.EffectType
	CollisionEnabled bool
}

// Stats 运行统计（供 HUD 和工具显示）
type Stats struct {
	Live     int
	Max      int
	Emitted  int // 累计发射
	Expired  int // 因寿命耗尽移除
	Grounded int // 因触地消失移除
	Bounces  int
	Elapsed  float64
	Effect   types.EffectType
	Paused   bool
}

// ParticleView is the read-only per-particle state handed to renderers.
type ParticleView struct {
	Position vmath.Vec3
	Color    color.RGBA
	Size     float64
	Alpha    float64
}

// NewRandomSource 返回以 seed 初始化的随机源
func NewRandomSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewParticleSystem creates a particle system over a preset table.
//
// The table must contain a valid preset for every effect type. The system
// starts unpaused with an empty collection; a one-shot initial effect bursts
// on the first Update.
func NewParticleSystem(presets map[types.EffectType]*components.EffectPreset, opts Options, rng particlePkg.RandomSource) (*ParticleSystem, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is nil", ErrInvalidConfig)
	}
	if opts.MaxParticles <= 0 {
		return nil, fmt.Errorf("%w: max particles must be > 0, got %d", ErrInvalidConfig, opts.MaxParticles)
	}
	if err := validateTimestep(opts.Timestep); err != nil {
		return nil, err
	}
	if !opts.InitialEffect.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEffect, opts.InitialEffect)
	}
	table, err := copyPresetTable(presets)
	if err != nil {
		return nil, err
	}

	ps := &ParticleSystem{
		particles:        ecs.NewComponentPool[components.Particle](opts.MaxParticles),
		presets:          table,
		collisionEnabled: opts.CollisionEnabled,
		timestep:         opts.Timestep,
		rng:              rng,
	}
	ps.loadEffect(opts.InitialEffect)

	log.Printf("[ParticleSystem] Created: effect=%s, maxParticles=%d, timestep=%.4f",
		ps.effect, opts.MaxParticles, opts.Timestep)
	return ps, nil
}

// NewParticleSystemFromConfig creates a particle system from a loaded effects config.
func NewParticleSystemFromConfig(cfg *config.EffectsConfig, rng particlePkg.RandomSource) (*ParticleSystem, error) {
	presets, err := cfg.Presets()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return NewParticleSystem(presets, Options{
		MaxParticles:     cfg.System.MaxParticles,
		Timestep:         cfg.System.Timestep,
		InitialEffect:    cfg.InitialEffectType(),
		CollisionEnabled: cfg.System.CollisionEnabled,
	}, rng)
}

// Update advances the simulation by dt seconds.
// Paused systems ignore the call. dt must be positive and finite.
func (ps *ParticleSystem) Update(dt float64) error {
	if err := validateTimestep(dt); err != nil {
		return err
	}
	if ps.paused {
		return nil
	}

	if err := ps.emitParticles(); err != nil {
		return err
	}
	ps.updateParticles(dt)
	ps.particles.RemoveMarked()

	ps.elapsed += dt
	return nil
}

// Step advances the simulation by the configured fixed timestep.
func (ps *ParticleSystem) Step() error {
	return ps.Update(ps.timestep)
}

// emitParticles 按当前效果发射新粒子
// 每次发射前检查容量，满了立即停止（而不是先发射再截断）
func (ps *ParticleSystem) emitParticles() error {
	count := ps.active.EmissionRate
	if ps.active.OneShot {
		if !ps.burstPending {
			return nil
		}
		ps.burstPending = false
	}

	for i := 0; i < count && !ps.particles.Full(); i++ {
		p, err := EmitParticle(&ps.active, ps.active.Emitter, ps.rng)
		if err != nil {
			return fmt.Errorf("emit %s particle: %w", ps.effect, err)
		}
		ps.particles.Add(p)
		ps.stats.Emitted++
	}
	return nil
}

// updateParticles 积分所有存活粒子并处理地面碰撞
func (ps *ParticleSystem) updateParticles(dt float64) {
	a := &ps.active
	items := ps.particles.Items()

	for i := range items {
		p := &items[i]

		// 重力是加速度，风是力（除以质量）
		acc := vmath.V3AddScaled(a.Gravity, a.Wind, 1/p.Mass)
		p.Velocity = vmath.V3AddScaled(p.Velocity, acc, dt)
		p.Velocity = vmath.V3Scale(p.Velocity, a.Damping)
		p.Position = vmath.V3AddScaled(p.Position, p.Velocity, dt)

		p.Age += dt
		expired := p.Age >= p.Lifetime
		if expired {
			p.Age = p.Lifetime
		}

		grounded := false
		if ps.collisionEnabled && p.Position.Z < a.GroundLevel {
			p.Position.Z = a.GroundLevel
			switch a.Ground {
			case types.GroundBounce:
				p.Velocity.Z *= -a.Restitution
				p.Velocity = vmath.V3Scale(p.Velocity, a.PostBounceDamping)
				ps.stats.Bounces++
			case types.GroundDisappear:
				grounded = true
			case types.GroundRest:
				if p.Velocity.Z < 0 {
					p.Velocity.Z = 0
				}
			}
		}

		switch {
		case grounded:
			ps.particles.MarkForRemoval(i)
			ps.stats.Grounded++
		case expired:
			ps.particles.MarkForRemoval(i)
			ps.stats.Expired++
		}
	}
}

// Snapshot appends a copy of every live particle's render state to dst and
// returns the extended slice. Pass dst[:0] to reuse a buffer across frames.
func (ps *ParticleSystem) Snapshot(dst []ParticleView) []ParticleView {
	for _, p := range ps.particles.Items() {
		dst = append(dst, ParticleView{
			Position: p.Position,
			Color:    p.Color,
			Size:     p.Size,
			Alpha:    ps.alpha(&p),
		})
	}
	return dst
}

// alpha 计算粒子透明度：有 fade 曲线时按曲线，否则线性 1 - age/lifetime
// 曲线取自发射该粒子的效果，切换效果后旧粒子保持原来的淡出方式；
// 手动注入的粒子（EffectUnknown）使用当前效果的曲线
func (ps *ParticleSystem) alpha(p *components.Particle) float64 {
	t := vmath.Clamp(p.Age/p.Lifetime, 0, 1)
	fade := ps.active.Fade
	if preset, ok := ps.presets[p.Effect]; ok {
		fade = preset.Fade
	}
	if !fade.Empty() {
		return vmath.Clamp(fade.At(t), 0, 1)
	}
	return 1 - t
}

// Particles returns the live particles. The slice aliases internal storage
// and is only valid until the next mutating call.
func (ps *ParticleSystem) Particles() []components.Particle {
	return ps.particles.Items()
}

// Len returns the number of live particles.
func (ps *ParticleSystem) Len() int {
	return ps.particles.Len()
}

// AddParticle inserts a caller-built particle.
// Returns false without error when the system is at capacity.
func (ps *ParticleSystem) AddParticle(p components.Particle) (bool, error) {
	if err := components.ValidateParticle(p); err != nil {
		return false, err
	}
	return ps.particles.Add(p), nil
}

// Pause freezes emission and integration. Snapshot keeps working.
func (ps *ParticleSystem) Pause() {
	if !ps.paused {
		ps.paused = true
		log.Printf("[ParticleSystem] Paused (%d particles)", ps.Len())
	}
}

// Resume restarts emission and integration.
func (ps *ParticleSystem) Resume() {
	if ps.paused {
		ps.paused = false
		log.Printf("[ParticleSystem] Resumed")
	}
}

// TogglePause switches between paused and running and returns the new state.
func (ps *ParticleSystem) TogglePause() bool {
	if ps.paused {
		ps.Resume()
	} else {
		ps.Pause()
	}
	return ps.paused
}

// Paused reports whether the system is paused.
func (ps *ParticleSystem) Paused() bool {
	return ps.paused
}

// Reset empties the collection, restores the current effect's preset
// (discarding runtime setter changes), rewinds the clock and unpauses.
func (ps *ParticleSystem) Reset() {
	ps.particles.Clear()
	ps.loadEffect(ps.effect)
	ps.elapsed = 0
	ps.paused = false
	log.Printf("[ParticleSystem] Reset: effect=%s", ps.effect)
}

// Clear removes every particle and leaves the configuration untouched.
// Calling it on an empty system is a no-op.
func (ps *ParticleSystem) Clear() {
	n := ps.particles.Len()
	ps.particles.Clear()
	if n > 0 {
		log.Printf("[ParticleSystem] Cleared %d particles", n)
	}
}

// SetEffect switches the global force fields, ground behavior and emission
// policy to the defaults of effect. Existing particles are kept; they feel
// the new fields from the next tick on. An unknown effect leaves the current
// configuration untouched.
func (ps *ParticleSystem) SetEffect(effect types.EffectType) error {
	if _, ok := ps.presets[effect]; !ok || !effect.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownEffect, effect)
	}
	ps.loadEffect(effect)
	log.Printf("[ParticleSystem] Effect switched to %s (%d particles kept)", effect, ps.Len())
	return nil
}

// SetEffectByName is SetEffect with a case-insensitive effect name.
func (ps *ParticleSystem) SetEffectByName(name string) error {
	effect, err := types.ParseEffectType(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownEffect, err)
	}
	return ps.SetEffect(effect)
}

// Effect returns the active effect type.
func (ps *ParticleSystem) Effect() types.EffectType {
	return ps.effect
}

// Trigger re-arms a one-shot effect so it bursts on the next unpaused tick.
// Continuous effects ignore it.
func (ps *ParticleSystem) Trigger() {
	if ps.active.OneShot {
		ps.burstPending = true
	}
}

// Elapsed returns the simulated time since construction or the last Reset.
func (ps *ParticleSystem) Elapsed() float64 {
	return ps.elapsed
}

// Timestep returns the fixed step used by Step.
func (ps *ParticleSystem) Timestep() float64 {
	return ps.timestep
}

// MaxParticles returns the capacity of the live collection.
func (ps *ParticleSystem) MaxParticles() int {
	return ps.particles.Cap()
}

// CollisionEnabled reports whether ground collision is tested.
func (ps *ParticleSystem) CollisionEnabled() bool {
	return ps.collisionEnabled
}

// Config returns a copy of the active effect configuration.
func (ps *ParticleSystem) Config() components.EffectPreset {
	return ps.active
}

// Stats returns the running counters.
func (ps *ParticleSystem) Stats() Stats {
	s := ps.stats
	s.Live = ps.particles.Len()
	s.Max = ps.particles.Cap()
	s.Elapsed = ps.elapsed
	s.Effect = ps.effect
	s.Paused = ps.paused
	return s
}

// loadEffect 把预设复制为当前配置，一次性效果重新装填
func (ps *ParticleSystem) loadEffect(effect types.EffectType) {
	ps.effect = effect
	ps.active = *ps.presets[effect]
	ps.burstPending = ps.active.OneShot
}

func validateTimestep(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: dt must be > 0, got %v", ErrInvalidConfig, dt)
	}
	return nil
}

// copyPresetTable 校验并复制预设表，四种效果必须齐全
func copyPresetTable(presets map[types.EffectType]*components.EffectPreset) (map[types.EffectType]*components.EffectPreset, error) {
	table := make(map[types.EffectType]*components.EffectPreset, len(types.AllEffectTypes))
	for _, e := range types.AllEffectTypes {
		p, ok := presets[e]
		if !ok || p == nil {
			return nil, fmt.Errorf("%w: missing preset for %s", ErrInvalidConfig, e)
		}
		if err := validatePreset(p); err != nil {
			return nil, fmt.Errorf("%s: %w", e, err)
		}
		cp := *p
		cp.Type = e
		table[e] = &cp
	}
	return table, nil
}

// validatePreset 检查积分循环依赖的参数
func validatePreset(p *components.EffectPreset) error {
	if err := validateDamping(p.Damping); err != nil {
		return err
	}
	if p.EmissionRate < 0 {
		return fmt.Errorf("%w: emission rate must be >= 0, got %d", ErrInvalidConfig, p.EmissionRate)
	}
	if !vmath.V3IsFinite(p.Gravity) || !vmath.V3IsFinite(p.Wind) || !vmath.V3IsFinite(p.Emitter) || !vmath.V3IsFinite(p.SpawnOffset) {
		return fmt.Errorf("%w: non-finite force field or emitter", ErrInvalidConfig)
	}
	if err := validateSampling(p); err != nil {
		return err
	}
	if p.Restitution < 0 || math.IsNaN(p.Restitution) || math.IsInf(p.Restitution, 0) {
		return fmt.Errorf("%w: restitution must be >= 0, got %v", ErrInvalidConfig, p.Restitution)
	}
	if !(p.PostBounceDamping > 0 && p.PostBounceDamping <= 1) {
		return fmt.Errorf("%w: post-bounce damping must be in (0,1], got %v", ErrInvalidConfig, p.PostBounceDamping)
	}
	return nil
}

// validateSampling 检查发射采样用到的范围
// 任何一个范围含 NaN/Inf 都会让发射出的粒子违反不变量，必须在配置阶段拒绝
func validateSampling(p *components.EffectPreset) error {
	ranges := []struct {
		name string
		r    particlePkg.Range
	}{
		{"lifetime", p.Lifetime},
		{"size", p.Size},
		{"mass", p.Mass},
		{"speed", p.Speed},
		{"velocity.x", p.VelocityBox[0]},
		{"velocity.y", p.VelocityBox[1]},
		{"velocity.z", p.VelocityBox[2]},
		{"spawn.x", p.SpawnBox[0]},
		{"spawn.y", p.SpawnBox[1]},
		{"spawn.z", p.SpawnBox[2]},
		{"gray", p.Gray},
	}
	for _, f := range ranges {
		if !f.r.Finite() || f.r.Min > f.r.Max {
			return fmt.Errorf("%w: %s range [%v %v] must be finite and ordered", ErrInvalidConfig, f.name, f.r.Min, f.r.Max)
		}
	}

	// 寿命、尺寸、质量必须严格为正
	for _, f := range ranges[:3] {
		if !(f.r.Min > 0) {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidConfig, f.name, f.r.Min)
		}
	}
	if p.Speed.Min < 0 {
		return fmt.Errorf("%w: speed must be >= 0, got %v", ErrInvalidConfig, p.Speed.Min)
	}
	if !(p.SpawnSigma >= 0) || math.IsInf(p.SpawnSigma, 0) {
		return fmt.Errorf("%w: spawn sigma must be finite and >= 0, got %v", ErrInvalidConfig, p.SpawnSigma)
	}
	return nil
}

func validateDamping(d float64) error {
	if !(d > 0 && d <= 1) {
		return fmt.Errorf("%w: damping must be in (0,1], got %v", ErrInvalidConfig, d)
	}
	return nil
}
