package main

import (
	"fmt"
	"os"

	"github.com/decker502/fxsim/pkg/config"
)

// 用法: go run tools/validate_effects.go [effects.yaml]
// 不带参数时检查内嵌的默认配置
func main() {
	var (
		cfg  *config.EffectsConfig
		err  error
		path = "(embedded)"
	)
	if len(os.Args) > 1 {
		path = os.Args[1]
		cfg, err = config.LoadEffectsConfig(path)
	} else {
		cfg, err = config.LoadDefaultEffectsConfig()
	}
	if err != nil {
		fmt.Printf("❌ %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("✅ %s 格式正确\n", path)
	fmt.Printf("✅ maxParticles=%d timestep=%.4f initialEffect=%s collision=%v\n",
		cfg.System.MaxParticles, cfg.System.Timestep, cfg.InitialEffectType(), cfg.System.CollisionEnabled)

	presets, err := cfg.Presets()
	if err != nil {
		fmt.Printf("❌ 预设编译失败: %v\n", err)
		os.Exit(1)
	}

	for _, name := range cfg.EffectNames() {
		ec := cfg.Effects[name]
		mode := "continuous"
		if ec.OneShot {
			mode = "one-shot"
		}
		fmt.Printf("✅ %-10s rate=%-4d %-10s ground=%s\n", name, ec.EmissionRate, mode, ec.Ground.Behavior)
	}
	fmt.Printf("✅ 共 %d 个效果预设\n", len(presets))
}
