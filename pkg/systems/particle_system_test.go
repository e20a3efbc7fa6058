package systems

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/decker502/fxsim/internal/particle"
	"github.com/decker502/fxsim/internal/vmath"
	"github.com/decker502/fxsim/pkg/components"
	"github.com/decker502/fxsim/pkg/config"
	"github.com/decker502/fxsim/pkg/types"
)

const testDt = 1.0 / 60

func defaultPresets(t testing.TB) map[types.EffectType]*components.EffectPreset {
	t.Helper()
	cfg, err := config.LoadDefaultEffectsConfig()
	if err != nil {
		t.Fatalf("LoadDefaultEffectsConfig() error: %v", err)
	}
	presets, err := cfg.Presets()
	if err != nil {
		t.Fatalf("Presets() error: %v", err)
	}
	return presets
}

func newTestSystem(t testing.TB, effect types.EffectType, maxParticles int, seed int64) *ParticleSystem {
	t.Helper()
	ps, err := NewParticleSystem(defaultPresets(t), Options{
		MaxParticles:     maxParticles,
		Timestep:         testDt,
		InitialEffect:    effect,
		CollisionEnabled: true,
	}, NewRandomSource(seed))
	if err != nil {
		t.Fatalf("NewParticleSystem() error: %v", err)
	}
	return ps
}

// newQuietSystem 不发射新粒子、无外力的系统，用于手动注入粒子
func newQuietSystem(t *testing.T, effect types.EffectType) *ParticleSystem {
	t.Helper()
	ps := newTestSystem(t, effect, 100, 1)
	if err := ps.SetEmissionRate(0); err != nil {
		t.Fatal(err)
	}
	ps.burstPending = false
	return ps
}

func mustParticle(t *testing.T, pos, vel vmath.Vec3, lifetime, mass float64) components.Particle {
	t.Helper()
	p, err := components.NewParticle(pos, vel, color.RGBA{255, 255, 255, 255}, 10, lifetime, mass)
	if err != nil {
		t.Fatalf("NewParticle() error: %v", err)
	}
	return p
}

func mustAdd(t *testing.T, ps *ParticleSystem, p components.Particle) {
	t.Helper()
	ok, err := ps.AddParticle(p)
	if err != nil || !ok {
		t.Fatalf("AddParticle() = %v, %v", ok, err)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

// TestParticleSystem_InvariantsHold 每个 tick 后检查粒子不变量和容量上限
func TestParticleSystem_InvariantsHold(t *testing.T) {
	for _, effect := range types.AllEffectTypes {
		t.Run(effect.String(), func(t *testing.T) {
			ps := newTestSystem(t, effect, 120, 7)
			var views []ParticleView

			for tick := 0; tick < 400; tick++ {
				if err := ps.Step(); err != nil {
					t.Fatalf("tick %d: Step() error: %v", tick, err)
				}
				if ps.Len() > ps.MaxParticles() {
					t.Fatalf("tick %d: %d particles exceed cap %d", tick, ps.Len(), ps.MaxParticles())
				}
				for i, p := range ps.Particles() {
					if err := components.ValidateParticle(p); err != nil {
						t.Fatalf("tick %d particle %d: %v", tick, i, err)
					}
				}
				views = ps.Snapshot(views[:0])
				for i, v := range views {
					if v.Alpha < 0 || v.Alpha > 1 {
						t.Fatalf("tick %d particle %d: alpha %v outside [0,1]", tick, i, v.Alpha)
					}
				}
			}
		})
	}
}

// TestParticleSystem_CapacityGatesEmission max=5, rate=10, fire, 一次 dt=0.1
func TestParticleSystem_CapacityGatesEmission(t *testing.T) {
	ps := newTestSystem(t, types.EffectFire, 5, 3)
	// 高斯发射位置可能低于地面，关闭碰撞以观察发射时的向上速度
	ps.SetCollisionEnabled(false)

	if err := ps.Update(0.1); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	if ps.Len() != 5 {
		t.Fatalf("expected 5 particles, got %d", ps.Len())
	}
	if got := ps.Stats().Emitted; got != 5 {
		t.Errorf("emission should stop at the cap, emitted %d", got)
	}
	for i, p := range ps.Particles() {
		if p.Age != 0.1 {
			t.Errorf("particle %d: age = %v, want 0.1", i, p.Age)
		}
		if p.Velocity.Z < 0 {
			t.Errorf("particle %d: fire velocity z = %v, want >= 0", i, p.Velocity.Z)
		}
	}

	// 再跑几帧仍不超过上限
	for i := 0; i < 10; i++ {
		if err := ps.Update(0.1); err != nil {
			t.Fatal(err)
		}
		if ps.Len() > 5 {
			t.Fatalf("cap exceeded: %d", ps.Len())
		}
	}
}

func TestParticleSystem_GroundBounce(t *testing.T) {
	ps := newQuietSystem(t, types.EffectFire)
	ps.SetGravity(vmath.Vec3{})
	ps.SetWind(vmath.Vec3{})
	ps.SetDamping(1)

	mustAdd(t, ps, mustParticle(t, vmath.V3(0, 0, 0.05), vmath.V3(0.5, 0, -1), 10, 1))

	if err := ps.Update(0.1); err != nil {
		t.Fatal(err)
	}

	p := ps.Particles()[0]
	if p.Position.Z != 0 {
		t.Errorf("position z = %v, want clamped to ground 0", p.Position.Z)
	}
	// v_z: -1 → +0.8 (restitution) → 0.72 (post-bounce damping)
	if !approx(p.Velocity.Z, 0.8*0.9) {
		t.Errorf("velocity z = %v, want %v", p.Velocity.Z, 0.8*0.9)
	}
	if !approx(p.Velocity.X, 0.5*0.9) {
		t.Errorf("velocity x = %v, want %v", p.Velocity.X, 0.5*0.9)
	}
	if ps.Stats().Bounces != 1 {
		t.Errorf("bounces = %d, want 1", ps.Stats().Bounces)
	}
}

func TestParticleSystem_GroundBehaviors(t *testing.T) {
	tests := []struct {
		name      string
		effect    types.EffectType
		collision bool
		wantAlive bool
		check     func(t *testing.T, p components.Particle)
	}{
		{
			name:      "rest clamps and stops sinking",
			effect:    types.EffectSmoke,
			collision: true,
			wantAlive: true,
			check: func(t *testing.T, p components.Particle) {
				if p.Position.Z != 0 || p.Velocity.Z != 0 {
					t.Errorf("rest: z=%v vz=%v, want 0/0", p.Position.Z, p.Velocity.Z)
				}
			},
		},
		{
			name:      "disappear removes",
			effect:    types.EffectRain,
			collision: true,
			wantAlive: false,
		},
		{
			name:      "collision disabled passes through",
			effect:    types.EffectRain,
			collision: false,
			wantAlive: true,
			check: func(t *testing.T, p components.Particle) {
				if p.Position.Z >= 0 {
					t.Errorf("particle should be below ground, z=%v", p.Position.Z)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := newQuietSystem(t, tt.effect)
			ps.SetGroundLevel(0)
			ps.SetCollisionEnabled(tt.collision)
			ps.SetGravity(vmath.Vec3{})
			ps.SetWind(vmath.Vec3{})

			mustAdd(t, ps, mustParticle(t, vmath.V3(0, 0, 0.05), vmath.V3(0, 0, -2), 10, 1))
			if err := ps.Update(0.1); err != nil {
				t.Fatal(err)
			}

			if alive := ps.Len() == 1; alive != tt.wantAlive {
				t.Fatalf("alive = %v, want %v", alive, tt.wantAlive)
			}
			if tt.check != nil {
				tt.check(t, ps.Particles()[0])
			}
		})
	}
}

// TestParticleSystem_RainDisappearsOnCrossing 与闭式欧拉积分对照
func TestParticleSystem_RainDisappearsOnCrossing(t *testing.T) {
	ps := newQuietSystem(t, types.EffectRain)
	ps.SetGroundLevel(0)

	cfg := ps.Config()
	if cfg.Gravity != vmath.V3(0, 0, -15) || cfg.Wind != vmath.V3(0.5, 0, 0) || cfg.Damping != 0.98 {
		t.Fatalf("unexpected rain config: %+v", cfg)
	}

	const mass = 2.0
	mustAdd(t, ps, mustParticle(t, vmath.V3(0, 0, 1), vmath.V3(0, 0, -1), 100, mass))

	// 闭式：v += a·dt; v *= damping; p += v·dt
	x, z := 0.0, 1.0
	vx, vz := 0.0, -1.0
	ticks := 0
	for {
		ticks++
		vx = (vx + cfg.Wind.X/mass*testDt) * cfg.Damping
		vz = (vz + cfg.Gravity.Z*testDt) * cfg.Damping
		x += vx * testDt
		z += vz * testDt
		if z < 0 {
			break
		}

		if err := ps.Step(); err != nil {
			t.Fatal(err)
		}
		if ps.Len() != 1 {
			t.Fatalf("tick %d: particle vanished early at expected z=%v", ticks, z)
		}
		p := ps.Particles()[0]
		if math.Abs(p.Position.Z-z) > 1e-9 || math.Abs(p.Position.X-x) > 1e-9 {
			t.Fatalf("tick %d: position (%v, %v), want (%v, %v)", ticks, p.Position.X, p.Position.Z, x, z)
		}
	}

	if err := ps.Step(); err != nil {
		t.Fatal(err)
	}
	if ps.Len() != 0 {
		t.Fatalf("particle should be gone in the tick it crosses the ground (tick %d)", ticks)
	}
	if ps.Stats().Grounded != 1 {
		t.Errorf("grounded = %d, want 1", ps.Stats().Grounded)
	}
	if ticks < 5 || ticks > 30 {
		t.Errorf("crossing after %d ticks looks wrong for z0=1, g=-15", ticks)
	}
}

func TestParticleSystem_LifetimeExpiry(t *testing.T) {
	ps := newQuietSystem(t, types.EffectFire)

	mustAdd(t, ps, mustParticle(t, vmath.V3(0, 0, 5), vmath.Vec3{}, 1.0, 1))

	if err := ps.Update(0.5); err != nil {
		t.Fatal(err)
	}
	if ps.Len() != 1 {
		t.Fatal("particle should still exist after 0.5 seconds")
	}
	if ps.Particles()[0].Age != 0.5 {
		t.Errorf("age = %v, want 0.5", ps.Particles()[0].Age)
	}

	if err := ps.Update(0.6); err != nil {
		t.Fatal(err)
	}
	if ps.Len() != 0 {
		t.Error("particle should be removed after exceeding lifetime")
	}
	if ps.Stats().Expired != 1 {
		t.Errorf("expired = %d, want 1", ps.Stats().Expired)
	}
}

func TestParticleSystem_ClearIsIdempotent(t *testing.T) {
	ps := newTestSystem(t, types.EffectRain, 500, 9)
	for i := 0; i < 10; i++ {
		ps.Step()
	}
	if ps.Len() == 0 {
		t.Fatal("expected particles before clear")
	}
	before := ps.Config()

	ps.Clear()
	if ps.Len() != 0 {
		t.Errorf("after first Clear: %d particles", ps.Len())
	}
	ps.Clear()
	if ps.Len() != 0 {
		t.Errorf("after second Clear: %d particles", ps.Len())
	}
	if after := ps.Config(); after.Gravity != before.Gravity || after.EmissionRate != before.EmissionRate {
		t.Error("Clear must not touch configuration")
	}
}

func TestParticleSystem_Determinism(t *testing.T) {
	run := func() []components.Particle {
		ps := newTestSystem(t, types.EffectFire, 300, 42)
		for tick := 0; tick < 240; tick++ {
			switch tick {
			case 60:
				ps.SetEffect(types.EffectExplosion)
			case 120:
				ps.SetEffect(types.EffectSmoke)
			case 180:
				ps.SetEffect(types.EffectRain)
			}
			if err := ps.Step(); err != nil {
				t.Fatal(err)
			}
		}
		return append([]components.Particle(nil), ps.Particles()...)
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("runs diverged: %d vs %d particles", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("particle %d differs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}

func TestParticleSystem_SetEffect(t *testing.T) {
	ps := newTestSystem(t, types.EffectFire, 500, 5)
	for i := 0; i < 5; i++ {
		ps.Step()
	}
	kept := append([]components.Particle(nil), ps.Particles()...)

	if err := ps.SetEffect(types.EffectRain); err != nil {
		t.Fatalf("SetEffect(rain) error: %v", err)
	}
	if ps.Effect() != types.EffectRain {
		t.Errorf("Effect() = %v, want rain", ps.Effect())
	}
	if ps.Len() != len(kept) {
		t.Fatalf("SetEffect dropped particles: %d -> %d", len(kept), ps.Len())
	}
	for i, p := range ps.Particles() {
		if p != kept[i] {
			t.Fatalf("particle %d modified by SetEffect", i)
		}
	}
	if cfg := ps.Config(); cfg.Gravity != vmath.V3(0, 0, -15) || cfg.Ground != types.GroundDisappear {
		t.Errorf("rain fields not applied: %+v", cfg)
	}

	// 已有粒子的质量/寿命不变，下一帧开始受新重力影响
	ps.Step()
	for i := range kept {
		if ps.Particles()[i].Mass != kept[i].Mass || ps.Particles()[i].Lifetime != kept[i].Lifetime {
			t.Fatalf("particle %d per-particle fields changed", i)
		}
	}
}

func TestParticleSystem_SetEffectRejectsUnknown(t *testing.T) {
	ps := newTestSystem(t, types.EffectSmoke, 500, 5)
	ps.SetGravity(vmath.V3(1, 2, 3))
	before := ps.Config()

	tests := []struct {
		name string
		call func() error
	}{
		{"unknown variant", func() error { return ps.SetEffect(types.EffectUnknown) }},
		{"out of range", func() error { return ps.SetEffect(types.EffectType(99)) }},
		{"unknown name", func() error { return ps.SetEffectByName("plasma") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, ErrUnknownEffect) {
				t.Fatalf("error = %v, want ErrUnknownEffect", err)
			}
			if ps.Effect() != types.EffectSmoke {
				t.Errorf("effect changed to %v", ps.Effect())
			}
			if after := ps.Config(); after.Gravity != before.Gravity || after.Type != before.Type {
				t.Errorf("config partially updated: %+v", after)
			}
		})
	}

	if err := ps.SetEffectByName("EXPLOSION"); err != nil || ps.Effect() != types.EffectExplosion {
		t.Errorf("SetEffectByName(EXPLOSION) = %v, effect %v", err, ps.Effect())
	}
}

func TestParticleSystem_PauseFreezes(t *testing.T) {
	ps := newTestSystem(t, types.EffectFire, 500, 11)
	for i := 0; i < 10; i++ {
		ps.Step()
	}

	ps.Pause()
	if !ps.Paused() {
		t.Fatal("Paused() should be true")
	}
	before := ps.Snapshot(nil)
	elapsed := ps.Elapsed()

	for i := 0; i < 10; i++ {
		if err := ps.Step(); err != nil {
			t.Fatal(err)
		}
	}

	after := ps.Snapshot(nil)
	if len(after) != len(before) || len(after) == 0 {
		t.Fatalf("snapshot changed while paused: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("particle %d changed while paused", i)
		}
	}
	if ps.Elapsed() != elapsed {
		t.Error("clock advanced while paused")
	}

	if ps.TogglePause() {
		t.Error("TogglePause() should resume")
	}
	ps.Step()
	if ps.Elapsed() == elapsed {
		t.Error("clock should advance after resume")
	}
}

func TestParticleSystem_Reset(t *testing.T) {
	ps := newTestSystem(t, types.EffectFire, 500, 13)
	for i := 0; i < 20; i++ {
		ps.Step()
	}
	ps.SetGravity(vmath.V3(0, 0, 9))
	ps.SetEmissionRate(1)
	ps.Pause()

	ps.Reset()

	if ps.Len() != 0 {
		t.Errorf("Reset left %d particles", ps.Len())
	}
	if ps.Paused() {
		t.Error("Reset should unpause")
	}
	if ps.Elapsed() != 0 {
		t.Errorf("Elapsed() = %v after Reset", ps.Elapsed())
	}
	cfg := ps.Config()
	if cfg.Gravity != vmath.V3(0, 0, 0.5) || cfg.EmissionRate != 10 {
		t.Errorf("Reset should restore fire defaults, got gravity %+v rate %d", cfg.Gravity, cfg.EmissionRate)
	}
}

func TestParticleSystem_ExplosionBurstsOnce(t *testing.T) {
	ps := newTestSystem(t, types.EffectExplosion, 500, 17)

	ps.Step()
	if ps.Len() != 200 {
		t.Fatalf("first tick: %d particles, want 200", ps.Len())
	}
	ps.Step()
	if got := ps.Stats().Emitted; got != 200 {
		t.Fatalf("one-shot emitted again: total %d", got)
	}

	// 暂停期间不消耗爆发
	ps.Trigger()
	ps.Pause()
	ps.Step()
	if got := ps.Stats().Emitted; got != 200 {
		t.Fatalf("burst fired while paused: total %d", got)
	}
	ps.Resume()
	ps.Step()
	if got := ps.Stats().Emitted; got != 400 {
		t.Errorf("Trigger should re-arm the burst: total %d", got)
	}

	// 第三次爆发受容量限制
	ps.Trigger()
	ps.Step()
	if ps.Len() != 500 {
		t.Errorf("burst should stop at the cap, got %d", ps.Len())
	}

	// 切换回来重新装填
	ps.SetEffect(types.EffectFire)
	ps.Clear()
	ps.SetEffect(types.EffectExplosion)
	ps.Step()
	if ps.Len() != 200 {
		t.Errorf("SetEffect should re-arm the burst, got %d", ps.Len())
	}
}

func TestParticleSystem_TriggerIgnoredForContinuous(t *testing.T) {
	ps := newTestSystem(t, types.EffectFire, 500, 1)
	ps.Trigger()
	ps.Step()
	if ps.Len() != 10 {
		t.Errorf("fire should emit its rate per tick, got %d", ps.Len())
	}
}

func TestParticleSystem_SetMaxParticlesDropsNewest(t *testing.T) {
	ps := newTestSystem(t, types.EffectSmoke, 500, 19)
	for i := 0; i < 10; i++ {
		ps.Step()
	}
	if ps.Len() != 50 {
		t.Fatalf("expected 50 smoke particles, got %d", ps.Len())
	}
	oldest := append([]components.Particle(nil), ps.Particles()[:10]...)

	if err := ps.SetMaxParticles(10); err != nil {
		t.Fatal(err)
	}
	if ps.Len() != 10 || ps.MaxParticles() != 10 {
		t.Fatalf("len/cap = %d/%d, want 10/10", ps.Len(), ps.MaxParticles())
	}
	for i, p := range ps.Particles() {
		if p != oldest[i] {
			t.Fatalf("particle %d is not one of the oldest", i)
		}
	}

	if err := ps.SetMaxParticles(0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("SetMaxParticles(0) = %v, want ErrInvalidConfig", err)
	}
}

func TestParticleSystem_InvalidInput(t *testing.T) {
	ps := newTestSystem(t, types.EffectFire, 10, 1)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"zero dt", func() error { return ps.Update(0) }, ErrInvalidConfig},
		{"negative dt", func() error { return ps.Update(-0.1) }, ErrInvalidConfig},
		{"NaN dt", func() error { return ps.Update(math.NaN()) }, ErrInvalidConfig},
		{"infinite dt", func() error { return ps.Update(math.Inf(1)) }, ErrInvalidConfig},
		{"damping zero", func() error { return ps.SetDamping(0) }, ErrInvalidConfig},
		{"damping above one", func() error { return ps.SetDamping(1.5) }, ErrInvalidConfig},
		{"negative rate", func() error { return ps.SetEmissionRate(-1) }, ErrInvalidConfig},
		{"NaN gravity", func() error { return ps.SetGravity(vmath.V3(0, 0, math.NaN())) }, ErrInvalidConfig},
		{"NaN ground", func() error { return ps.SetGroundLevel(math.NaN()) }, ErrInvalidConfig},
		{"bad ground behavior", func() error { return ps.SetGroundBehavior(types.GroundBehavior(9)) }, ErrInvalidConfig},
		{"zero timestep", func() error { return ps.SetTimestep(0) }, ErrInvalidConfig},
		{"zero mass particle", func() error {
			_, err := ps.AddParticle(components.Particle{Size: 1, Lifetime: 1})
			return err
		}, ErrInvalidParticle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if ps.Len() != 0 || ps.Config().Damping != 0.98 {
		t.Error("rejected calls must not change state")
	}
}

func TestNewParticleSystem_Validation(t *testing.T) {
	valid := Options{MaxParticles: 10, Timestep: testDt, InitialEffect: types.EffectFire}

	tests := []struct {
		name    string
		opts    Options
		mutate  func(map[types.EffectType]*components.EffectPreset)
		nilRand bool
		want    error
	}{
		{name: "valid", opts: valid},
		{name: "zero max particles", opts: Options{MaxParticles: 0, Timestep: testDt, InitialEffect: types.EffectFire}, want: ErrInvalidConfig},
		{name: "zero timestep", opts: Options{MaxParticles: 10, InitialEffect: types.EffectFire}, want: ErrInvalidConfig},
		{name: "unknown initial effect", opts: Options{MaxParticles: 10, Timestep: testDt}, want: ErrUnknownEffect},
		{name: "nil random source", opts: valid, nilRand: true, want: ErrInvalidConfig},
		{name: "damping out of range", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectSmoke].Damping = 1.2
		}, want: ErrInvalidConfig},
		{name: "missing preset", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			delete(m, types.EffectRain)
		}, want: ErrInvalidConfig},
		{name: "NaN lifetime bound", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectFire].Lifetime.Max = math.NaN()
		}, want: ErrInvalidConfig},
		{name: "infinite speed bound", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectExplosion].Speed.Max = math.Inf(1)
		}, want: ErrInvalidConfig},
		{name: "zero size", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectSmoke].Size = particle.Range{}
		}, want: ErrInvalidConfig},
		{name: "NaN mass bound", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectRain].Mass.Max = math.NaN()
		}, want: ErrInvalidConfig},
		{name: "NaN velocity bound", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectFire].VelocityBox[2].Max = math.NaN()
		}, want: ErrInvalidConfig},
		{name: "infinite spawn box", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectRain].SpawnBox[0].Min = math.Inf(-1)
		}, want: ErrInvalidConfig},
		{name: "NaN gray bound", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectSmoke].Gray.Max = math.NaN()
		}, want: ErrInvalidConfig},
		{name: "NaN spawn sigma", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectFire].SpawnSigma = math.NaN()
		}, want: ErrInvalidConfig},
		{name: "infinite spawn offset", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectSmoke].SpawnOffset.Z = math.Inf(1)
		}, want: ErrInvalidConfig},
		{name: "inverted lifetime", opts: valid, mutate: func(m map[types.EffectType]*components.EffectPreset) {
			m[types.EffectFire].Lifetime = particle.Range{Min: 3, Max: 1}
		}, want: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			presets := defaultPresets(t)
			if tt.mutate != nil {
				tt.mutate(presets)
			}
			rng := NewRandomSource(1)
			var err error
			if tt.nilRand {
				_, err = NewParticleSystem(presets, tt.opts, nil)
			} else {
				_, err = NewParticleSystem(presets, tt.opts, rng)
			}
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewParticleSystemFromConfig(t *testing.T) {
	cfg, err := config.LoadDefaultEffectsConfig()
	if err != nil {
		t.Fatal(err)
	}
	ps, err := NewParticleSystemFromConfig(cfg, NewRandomSource(1))
	if err != nil {
		t.Fatalf("NewParticleSystemFromConfig() error: %v", err)
	}
	if ps.Effect() != types.EffectFire || ps.MaxParticles() != 500 || !ps.CollisionEnabled() {
		t.Errorf("unexpected system: effect=%v max=%d collision=%v", ps.Effect(), ps.MaxParticles(), ps.CollisionEnabled())
	}
	if !approx(ps.Timestep(), 0.0166667) {
		t.Errorf("Timestep() = %v", ps.Timestep())
	}
}

func TestParticleSystem_SnapshotAlpha(t *testing.T) {
	tests := []struct {
		name   string
		effect types.EffectType
		age    float64
		want   float64
	}{
		{"linear fresh", types.EffectFire, 0, 1},
		{"linear quarter", types.EffectFire, 0.25, 0.75},
		{"linear end", types.EffectFire, 1, 0},
		{"curve start", types.EffectSmoke, 0, 0.8},
		{"curve end", types.EffectSmoke, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := newQuietSystem(t, tt.effect)
			p := mustParticle(t, vmath.V3(0, 0, 1), vmath.Vec3{}, 1, 1)
			p.Age = tt.age
			mustAdd(t, ps, p)

			views := ps.Snapshot(nil)
			if len(views) != 1 {
				t.Fatalf("snapshot has %d entries", len(views))
			}
			if !approx(views[0].Alpha, tt.want) {
				t.Errorf("alpha = %v, want %v", views[0].Alpha, tt.want)
			}
			if views[0].Size != p.Size || views[0].Position != p.Position || views[0].Color != p.Color {
				t.Errorf("snapshot fields mismatch: %+v", views[0])
			}
		})
	}
}

func TestParticleSystem_SnapshotAlphaFollowsEmittingEffect(t *testing.T) {
	tests := []struct {
		name    string
		emitted bool // true: 由烟雾预设发射；false: 手动注入
		want    float64
	}{
		{"smoke particle keeps smoke curve", true, 0.8},
		{"injected particle uses active effect", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := newQuietSystem(t, types.EffectSmoke)
			p := mustParticle(t, vmath.V3(0, 0, 1), vmath.Vec3{}, 1, 1)
			if tt.emitted {
				var err error
				p, err = EmitParticle(ps.presets[types.EffectSmoke], vmath.Vec3{}, NewRandomSource(1))
				if err != nil {
					t.Fatalf("EmitParticle() error: %v", err)
				}
				if p.Effect != types.EffectSmoke {
					t.Fatalf("Effect = %v, want smoke", p.Effect)
				}
			}
			mustAdd(t, ps, p)

			if err := ps.SetEffect(types.EffectFire); err != nil {
				t.Fatalf("SetEffect(fire) error: %v", err)
			}
			views := ps.Snapshot(nil)
			if len(views) != 1 {
				t.Fatalf("snapshot has %d entries", len(views))
			}
			if !approx(views[0].Alpha, tt.want) {
				t.Errorf("alpha after switching to fire = %v, want %v", views[0].Alpha, tt.want)
			}
		})
	}
}

func TestParticleSystem_SnapshotIsCopy(t *testing.T) {
	ps := newTestSystem(t, types.EffectFire, 50, 23)
	ps.Step()
	views := ps.Snapshot(nil)
	views[0].Position = vmath.V3(100, 100, 100)
	if ps.Particles()[0].Position == views[0].Position {
		t.Error("mutating the snapshot must not affect the system")
	}
}

func TestParticleSystem_ApplyConfig(t *testing.T) {
	ps := newTestSystem(t, types.EffectRain, 500, 29)
	for i := 0; i < 3; i++ {
		ps.Step()
	}
	live := ps.Len()

	cfg, err := config.LoadDefaultEffectsConfig()
	if err != nil {
		t.Fatal(err)
	}
	rain := cfg.Effects["rain"]
	rain.Gravity = [3]float64{0, 0, -30}
	cfg.Effects["rain"] = rain
	cfg.System.MaxParticles = 40

	if err := ps.ApplyConfig(cfg); err != nil {
		t.Fatalf("ApplyConfig() error: %v", err)
	}
	if ps.Config().Gravity != vmath.V3(0, 0, -30) {
		t.Errorf("gravity = %+v, want reloaded value", ps.Config().Gravity)
	}
	if ps.MaxParticles() != 40 || ps.Len() != min(live, 40) {
		t.Errorf("max/len = %d/%d after reload", ps.MaxParticles(), ps.Len())
	}

	// 非法配置整体拒绝
	cfg.System.MaxParticles = 0
	if err := ps.ApplyConfig(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ApplyConfig(invalid) = %v, want ErrInvalidConfig", err)
	}
	if ps.MaxParticles() != 40 {
		t.Error("rejected config must leave the system untouched")
	}

	presets := defaultPresets(t)
	delete(presets, types.EffectFire)
	if err := ps.ApplyPresets(presets); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ApplyPresets(missing) = %v, want ErrInvalidConfig", err)
	}
	if ps.Config().Gravity != vmath.V3(0, 0, -30) {
		t.Error("rejected presets must keep the previous table")
	}
}

func TestParticleSystem_ApplyPresetsDoesNotRefireBurst(t *testing.T) {
	ps := newTestSystem(t, types.EffectExplosion, 500, 31)
	ps.Step()
	if err := ps.ApplyPresets(defaultPresets(t)); err != nil {
		t.Fatal(err)
	}
	ps.Step()
	if got := ps.Stats().Emitted; got != 200 {
		t.Errorf("hot reload re-fired the burst: emitted %d", got)
	}
}

func TestParticleSystem_PresetTableIsCopied(t *testing.T) {
	presets := defaultPresets(t)
	ps, err := NewParticleSystem(presets, Options{MaxParticles: 10, Timestep: testDt, InitialEffect: types.EffectFire}, NewRandomSource(1))
	if err != nil {
		t.Fatal(err)
	}
	presets[types.EffectSmoke].Gravity = vmath.V3(0, 0, 99)
	ps.SetEffect(types.EffectSmoke)
	if ps.Config().Gravity.Z == 99 {
		t.Error("caller mutation leaked into the system's preset table")
	}
}

func TestParticleSystem_Stats(t *testing.T) {
	ps := newTestSystem(t, types.EffectFire, 500, 37)
	for i := 0; i < 30; i++ {
		ps.Step()
	}
	s := ps.Stats()
	if s.Live != ps.Len() || s.Max != 500 || s.Effect != types.EffectFire || s.Paused {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.Emitted != 300 {
		t.Errorf("emitted = %d, want 300", s.Emitted)
	}
	if s.Emitted != s.Live+s.Expired+s.Grounded {
		t.Errorf("emitted %d != live %d + expired %d + grounded %d", s.Emitted, s.Live, s.Expired, s.Grounded)
	}
	if !approx(s.Elapsed, 30*testDt) {
		t.Errorf("elapsed = %v", s.Elapsed)
	}
}

// TestParticleSystem_ApplyConfigRejectsNonFiniteRanges 热加载含 NaN/Inf 范围的配置被拒绝，模拟继续运行
func TestParticleSystem_ApplyConfigRejectsNonFiniteRanges(t *testing.T) {
	tests := []struct {
		name   string
		effect string
		mutate func(*config.EffectConfig)
	}{
		{"NaN lifetime", "fire", func(ec *config.EffectConfig) { ec.Lifetime = "[1.5 nan]" }},
		{"infinite speed", "explosion", func(ec *config.EffectConfig) { ec.Velocity.Speed = "[3 inf]" }},
		{"NaN wind", "smoke", func(ec *config.EffectConfig) { ec.Wind = [3]float64{math.NaN(), 0, 0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := newTestSystem(t, types.EffectExplosion, 500, 3)

			cfg, err := config.LoadDefaultEffectsConfig()
			if err != nil {
				t.Fatal(err)
			}
			ec := cfg.Effects[tt.effect]
			tt.mutate(&ec)
			cfg.Effects[tt.effect] = ec

			if err := ps.ApplyConfig(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("ApplyConfig() = %v, want ErrInvalidConfig", err)
			}
			for _, e := range types.AllEffectTypes {
				if err := ps.SetEffect(e); err != nil {
					t.Fatal(err)
				}
				ps.Trigger()
				for i := 0; i < 5; i++ {
					if err := ps.Step(); err != nil {
						t.Fatalf("%s: Step() after rejected reload: %v", e, err)
					}
				}
			}
		})
	}
}
