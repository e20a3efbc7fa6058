package systems

import (
	"image/color"
	"math"

	particlePkg "github.com/decker502/fxsim/internal/particle"
	"github.com/decker502/fxsim/internal/vmath"
	"github.com/decker502/fxsim/pkg/components"
)

// particle_emitter.go - 粒子发射策略
//
// 每种效果的发射策略完全由 EffectPreset 描述（数据驱动的策略表），
// 这里只有通用的采样逻辑：
//  - 发射位置（point / gaussian / box）
//  - 初速度（box 各轴范围 / sphere 球面均匀方向 × 速度范围）
//  - 寿命、尺寸、质量范围
//  - 颜色（加权调色板 / 灰度范围）
//
// 所有随机数都来自同一个注入的 RandomSource，固定种子即可复现发射序列。
// 采样顺序固定：位置 → 速度 → 寿命 → 尺寸 → 质量 → 颜色。

// EmitParticle 按预设在 origin 处生成一个粒子
//
// 这是一个纯函数：除了消耗 rng 外没有副作用。
// 预设产生非法粒子（尺寸/寿命/质量非正）时返回 ErrInvalidParticle。
//
// 参数:
//   - preset: 效果预设
//   - origin: 发射器位置
//   - rng: 随机源
//
// 返回:
//   - components.Particle: 年龄为 0 的新粒子
//   - error: 粒子不满足不变量时返回错误
func EmitParticle(preset *components.EffectPreset, origin vmath.Vec3, rng particlePkg.RandomSource) (components.Particle, error) {
	pos := sampleSpawnPosition(preset, origin, rng)
	vel := sampleVelocity(preset, rng)
	lifetime := preset.Lifetime.Sample(rng)
	size := preset.Size.Sample(rng)
	mass := preset.Mass.Sample(rng)
	c := sampleColor(preset, rng)

	p, err := components.NewParticle(pos, vel, c, size, lifetime, mass)
	if err != nil {
		return components.Particle{}, err
	}
	p.Effect = preset.Type
	return p, nil
}

// sampleSpawnPosition 计算发射位置
func sampleSpawnPosition(preset *components.EffectPreset, origin vmath.Vec3, rng particlePkg.RandomSource) vmath.Vec3 {
	pos := vmath.V3Add(origin, preset.SpawnOffset)

	switch preset.SpawnShape {
	case components.SpawnGaussian:
		pos.X += rng.NormFloat64() * preset.SpawnSigma
		pos.Y += rng.NormFloat64() * preset.SpawnSigma
		pos.Z += rng.NormFloat64() * preset.SpawnSigma
	case components.SpawnBox:
		pos.X += preset.SpawnBox[0].Sample(rng)
		pos.Y += preset.SpawnBox[1].Sample(rng)
		pos.Z += preset.SpawnBox[2].Sample(rng)
	}

	return pos
}

// sampleVelocity 计算初速度
func sampleVelocity(preset *components.EffectPreset, rng particlePkg.RandomSource) vmath.Vec3 {
	if preset.VelocityShape == components.VelocitySphere {
		// 球面均匀方向：cos(polar) 在 [-1,1] 均匀，方位角在 [0,2π) 均匀
		z := 2*rng.Float64() - 1
		phi := 2 * math.Pi * rng.Float64()
		r := math.Sqrt(1 - z*z)
		speed := preset.Speed.Sample(rng)
		return vmath.V3(r*math.Cos(phi)*speed, r*math.Sin(phi)*speed, z*speed)
	}

	return vmath.V3(
		preset.VelocityBox[0].Sample(rng),
		preset.VelocityBox[1].Sample(rng),
		preset.VelocityBox[2].Sample(rng),
	)
}

// sampleColor 选择颜色
// 调色板非空时按权重选择，否则在灰度范围内取 R=G=B
func sampleColor(preset *components.EffectPreset, rng particlePkg.RandomSource) color.RGBA {
	if len(preset.Palette) == 0 {
		v := uint8(vmath.Clamp(float64(sampleGray(preset.Gray, rng)), 0, 255))
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}

	total := 0.0
	for _, wc := range preset.Palette {
		total += wc.Weight
	}

	pick := rng.Float64() * total
	for _, wc := range preset.Palette {
		if pick < wc.Weight {
			return wc.Color
		}
		pick -= wc.Weight
	}
	// 浮点误差兜底
	return preset.Palette[len(preset.Palette)-1].Color
}

// sampleGray 在半开区间 [Min, Max) 内均匀取整数灰度
// "[100 200]" 产生 100..199；Min == Max 时固定为 Min
func sampleGray(r particlePkg.Range, rng particlePkg.RandomSource) int {
	lo := int(math.Ceil(r.Min))
	n := int(math.Ceil(r.Max)) - lo
	if n <= 0 {
		return lo
	}
	return lo + rng.Intn(n)
}
