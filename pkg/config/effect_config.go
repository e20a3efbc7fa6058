package config

import (
	_ "embed"
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/decker502/fxsim/internal/particle"
	"github.com/decker502/fxsim/internal/vmath"
	"github.com/decker502/fxsim/pkg/components"
	"github.com/decker502/fxsim/pkg/types"
)

// 恢复系数与反弹后衰减的默认值（配置未填写时使用）
const (
	DefaultRestitution       = 0.8
	DefaultPostBounceDamping = 0.9
)

//go:embed effects.yaml
var defaultEffectsYAML []byte

// EffectsConfig 粒子效果配置
//
// 包含系统级参数（容量、时间步长、随机种子）和每种效果的预设。
//
// 配置文件位置: pkg/config/effects.yaml（内嵌默认值），可通过 --config 覆盖
type EffectsConfig struct {
	// System 系统级参数
	System SystemConfig `yaml:"system"`

	// Effects 效果预设表
	// key: 效果类型键名（"fire", "smoke", "rain", "explosion"）
	Effects map[string]EffectConfig `yaml:"effects"`
}

// SystemConfig 系统级参数
type SystemConfig struct {
	// MaxParticles 存活粒子数量上限
	MaxParticles int `yaml:"maxParticles"`

	// Timestep 固定时间步长（秒），Step() 使用
	Timestep float64 `yaml:"timestep"`

	// Seed 随机种子，0 表示由调用方按时间取种子
	Seed int64 `yaml:"seed"`

	// InitialEffect 启动时的效果
	InitialEffect string `yaml:"initialEffect"`

	// CollisionEnabled 是否启用地面碰撞
	CollisionEnabled bool `yaml:"collisionEnabled"`
}

// EffectConfig 单个效果的预设
type EffectConfig struct {
	EmissionRate int            `yaml:"emissionRate"`
	OneShot      bool           `yaml:"oneShot"`
	Gravity      [3]float64     `yaml:"gravity"`
	Wind         [3]float64     `yaml:"wind"`
	Damping      float64        `yaml:"damping"`
	Ground       GroundConfig   `yaml:"ground"`
	Emitter      [3]float64     `yaml:"emitter"`
	Spawn        SpawnConfig    `yaml:"spawn"`
	Velocity     VelocityConfig `yaml:"velocity"`
	Lifetime     string         `yaml:"lifetime"`
	Size         string         `yaml:"size"`
	Mass         string         `yaml:"mass"`
	Color        ColorConfig    `yaml:"color"`
	Fade         string         `yaml:"fade"`
}

// GroundConfig 地面碰撞配置
type GroundConfig struct {
	Level    float64 `yaml:"level"`
	Behavior string  `yaml:"behavior"`
	// 未填写时使用 DefaultRestitution / DefaultPostBounceDamping
	Restitution       *float64 `yaml:"restitution"`
	PostBounceDamping *float64 `yaml:"postBounceDamping"`
}

// SpawnConfig 发射位置配置
//
// shape:
//   - point: 发射器原点
//   - gaussian: 各轴正态分布偏移，标准差 sigma
//   - box: 各轴在 x/y/z 范围内均匀偏移
type SpawnConfig struct {
	Shape  string     `yaml:"shape"`
	Sigma  float64    `yaml:"sigma"`
	Offset [3]float64 `yaml:"offset"`
	X      string     `yaml:"x"`
	Y      string     `yaml:"y"`
	Z      string     `yaml:"z"`
}

// VelocityConfig 初速度配置
//
// shape:
//   - box: 各轴在 x/y/z 范围内均匀随机
//   - sphere: 球面均匀方向 × speed 范围
type VelocityConfig struct {
	Shape string `yaml:"shape"`
	X     string `yaml:"x"`
	Y     string `yaml:"y"`
	Z     string `yaml:"z"`
	Speed string `yaml:"speed"`
}

// ColorConfig 颜色策略：加权调色板，或灰度范围（调色板为空时）
// Gray 是半开整数区间 "[lo hi]"，取值 lo..hi-1
type ColorConfig struct {
	Palette []PaletteEntry `yaml:"palette"`
	Gray    string         `yaml:"gray"`
}

// PaletteEntry 调色板条目
type PaletteEntry struct {
	Color  string  `yaml:"color"`
	Weight float64 `yaml:"weight"`
}

// LoadEffectsConfig 加载粒子效果配置
//
// 从指定路径加载 YAML 格式的效果配置文件。
//
// 参数:
//   - path: 配置文件路径（如 "effects.yaml"）
//
// 返回:
//   - *EffectsConfig: 加载成功后的配置结构
//   - error: 加载失败时返回错误
func LoadEffectsConfig(path string) (*EffectsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read effects config: %w", err)
	}
	return ParseEffectsConfig(data)
}

// LoadDefaultEffectsConfig 加载内嵌的默认效果配置
func LoadDefaultEffectsConfig() (*EffectsConfig, error) {
	return ParseEffectsConfig(defaultEffectsYAML)
}

// ParseEffectsConfig 解析并验证 YAML 数据
func ParseEffectsConfig(data []byte) (*EffectsConfig, error) {
	var config EffectsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse effects config: %w", err)
	}

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid effects config: %w", err)
	}

	return &config, nil
}

// Validate 验证配置有效性
//
// 检查：
//   - maxParticles > 0，timestep > 0
//   - initialEffect 是已知效果
//   - 四种效果全部存在且没有未知键名
//   - 每个效果能成功编译（范围合法、阻尼在 (0,1]、颜色格式正确等）
//
// 返回:
//   - error: 验证失败时返回错误，成功返回 nil
func (c *EffectsConfig) Validate() error {
	if c.System.MaxParticles <= 0 {
		return fmt.Errorf("system.maxParticles must be > 0, got %d", c.System.MaxParticles)
	}
	if !(c.System.Timestep > 0) {
		return fmt.Errorf("system.timestep must be > 0, got %v", c.System.Timestep)
	}
	if _, err := types.ParseEffectType(c.System.InitialEffect); err != nil {
		return fmt.Errorf("system.initialEffect: %w", err)
	}

	for name := range c.Effects {
		if _, err := types.ParseEffectType(name); err != nil {
			return fmt.Errorf("effects: %w", err)
		}
	}
	for _, e := range types.AllEffectTypes {
		ec, ok := c.Effects[e.String()]
		if !ok {
			return fmt.Errorf("effects.%s missing", e)
		}
		if _, err := ec.Compile(e); err != nil {
			return err
		}
	}
	return nil
}

// InitialEffectType 返回启动效果（配置已验证时不会失败）
func (c *EffectsConfig) InitialEffectType() types.EffectType {
	e, err := types.ParseEffectType(c.System.InitialEffect)
	if err != nil {
		return types.EffectFire
	}
	return e
}

// Presets 编译所有效果预设
//
// 返回:
//   - map[types.EffectType]*components.EffectPreset: 以效果类型为键的预设表
//   - error: 任一效果编译失败时返回错误
func (c *EffectsConfig) Presets() (map[types.EffectType]*components.EffectPreset, error) {
	presets := make(map[types.EffectType]*components.EffectPreset, len(types.AllEffectTypes))
	for _, e := range types.AllEffectTypes {
		ec, ok := c.Effects[e.String()]
		if !ok {
			return nil, fmt.Errorf("effects.%s missing", e)
		}
		preset, err := ec.Compile(e)
		if err != nil {
			return nil, err
		}
		presets[e] = preset
	}
	return presets, nil
}

// EffectNames 返回配置中的效果键名（排序后）
func (c *EffectsConfig) EffectNames() []string {
	names := make([]string, 0, len(c.Effects))
	for name := range c.Effects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile 将字符串形式的预设解析为 EffectPreset
func (ec EffectConfig) Compile(effect types.EffectType) (*components.EffectPreset, error) {
	fail := func(field string, err error) (*components.EffectPreset, error) {
		return nil, fmt.Errorf("effects.%s.%s: %w", effect, field, err)
	}

	if ec.EmissionRate < 0 {
		return fail("emissionRate", fmt.Errorf("must be >= 0, got %d", ec.EmissionRate))
	}
	if !(ec.Damping > 0 && ec.Damping <= 1) {
		return fail("damping", fmt.Errorf("must be in (0,1], got %v", ec.Damping))
	}

	for _, v := range []struct {
		name string
		vec  [3]float64
	}{
		{"gravity", ec.Gravity},
		{"wind", ec.Wind},
		{"emitter", ec.Emitter},
		{"spawn.offset", ec.Spawn.Offset},
	} {
		if !vmath.V3IsFinite(vmath.V3FromArray(v.vec)) {
			return fail(v.name, fmt.Errorf("must be finite, got %v", v.vec))
		}
	}

	preset := &components.EffectPreset{
		Type:              effect,
		EmissionRate:      ec.EmissionRate,
		OneShot:           ec.OneShot,
		Gravity:           vmath.V3FromArray(ec.Gravity),
		Wind:              vmath.V3FromArray(ec.Wind),
		Damping:           ec.Damping,
		GroundLevel:       ec.Ground.Level,
		Restitution:       DefaultRestitution,
		PostBounceDamping: DefaultPostBounceDamping,
		Emitter:           vmath.V3FromArray(ec.Emitter),
		SpawnOffset:       vmath.V3FromArray(ec.Spawn.Offset),
	}

	ground, err := types.ParseGroundBehavior(ec.Ground.Behavior)
	if err != nil {
		return fail("ground.behavior", err)
	}
	preset.Ground = ground
	if ec.Ground.Restitution != nil {
		if r := *ec.Ground.Restitution; !(r >= 0) || math.IsInf(r, 0) {
			return fail("ground.restitution", fmt.Errorf("must be >= 0, got %v", *ec.Ground.Restitution))
		}
		preset.Restitution = *ec.Ground.Restitution
	}
	if ec.Ground.PostBounceDamping != nil {
		d := *ec.Ground.PostBounceDamping
		if !(d > 0 && d <= 1) {
			return fail("ground.postBounceDamping", fmt.Errorf("must be in (0,1], got %v", d))
		}
		preset.PostBounceDamping = d
	}

	switch strings.ToLower(ec.Spawn.Shape) {
	case "", "point":
		preset.SpawnShape = components.SpawnPoint
	case "gaussian":
		if !(ec.Spawn.Sigma >= 0) || math.IsInf(ec.Spawn.Sigma, 0) {
			return fail("spawn.sigma", fmt.Errorf("must be >= 0, got %v", ec.Spawn.Sigma))
		}
		preset.SpawnShape = components.SpawnGaussian
		preset.SpawnSigma = ec.Spawn.Sigma
	case "box":
		preset.SpawnShape = components.SpawnBox
		for i, s := range []string{ec.Spawn.X, ec.Spawn.Y, ec.Spawn.Z} {
			r, err := particle.ParseRange(s)
			if err != nil {
				return fail("spawn."+axisName(i), err)
			}
			preset.SpawnBox[i] = r
		}
	default:
		return fail("spawn.shape", fmt.Errorf("unknown shape %q", ec.Spawn.Shape))
	}

	switch strings.ToLower(ec.Velocity.Shape) {
	case "", "box":
		preset.VelocityShape = components.VelocityBox
		for i, s := range []string{ec.Velocity.X, ec.Velocity.Y, ec.Velocity.Z} {
			r, err := particle.ParseRange(s)
			if err != nil {
				return fail("velocity."+axisName(i), err)
			}
			preset.VelocityBox[i] = r
		}
	case "sphere":
		preset.VelocityShape = components.VelocitySphere
		r, err := particle.ParseRange(ec.Velocity.Speed)
		if err != nil {
			return fail("velocity.speed", err)
		}
		if r.Min < 0 {
			return fail("velocity.speed", fmt.Errorf("must be >= 0, got %v", r.Min))
		}
		preset.Speed = r
	default:
		return fail("velocity.shape", fmt.Errorf("unknown shape %q", ec.Velocity.Shape))
	}

	// 寿命、尺寸、质量必须严格为正（粒子构造的前置条件）
	for _, f := range []struct {
		name string
		src  string
		dst  *particle.Range
	}{
		{"lifetime", ec.Lifetime, &preset.Lifetime},
		{"size", ec.Size, &preset.Size},
		{"mass", ec.Mass, &preset.Mass},
	} {
		r, err := particle.ParseRange(f.src)
		if err != nil {
			return fail(f.name, err)
		}
		if !(r.Min > 0) {
			return fail(f.name, fmt.Errorf("must be > 0, got %v", r.Min))
		}
		*f.dst = r
	}

	if len(ec.Color.Palette) > 0 {
		total := 0.0
		for i, entry := range ec.Color.Palette {
			c, err := ParseHexColor(entry.Color)
			if err != nil {
				return fail(fmt.Sprintf("color.palette[%d]", i), err)
			}
			if entry.Weight < 0 || math.IsNaN(entry.Weight) {
				return fail(fmt.Sprintf("color.palette[%d].weight", i), fmt.Errorf("must be >= 0, got %v", entry.Weight))
			}
			total += entry.Weight
			preset.Palette = append(preset.Palette, components.WeightedColor{Color: c, Weight: entry.Weight})
		}
		if !(total > 0) {
			return fail("color.palette", fmt.Errorf("weights sum to zero"))
		}
	} else {
		r, err := particle.ParseRange(ec.Color.Gray)
		if err != nil {
			return fail("color.gray", err)
		}
		// 半开区间：上界可以是 256
		if r.Min < 0 || r.Max > 256 {
			return fail("color.gray", fmt.Errorf("must be within [0,256], got [%v %v]", r.Min, r.Max))
		}
		preset.Gray = r
	}

	fade, err := particle.ParseCurve(ec.Fade)
	if err != nil {
		return fail("fade", err)
	}
	preset.Fade = fade

	return preset, nil
}

// ParseHexColor 解析 "#RRGGBB" 或 "#RRGGBBAA" 格式的颜色
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("color %q: want #RRGGBB or #RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xFF
	}
	return color.RGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

func axisName(i int) string {
	return [...]string{"x", "y", "z"}[i]
}
