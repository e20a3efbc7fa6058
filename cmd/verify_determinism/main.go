// Package main 验证粒子系统的可复现性
//
// 用同一个种子创建两个粒子系统，按相同的操作序列（包括暂停、重置、清空、
// 切换效果）运行 N 个 tick，逐粒子比较状态，并在每个 tick 检查不变量。
//
// Usage:
//
//	go run ./cmd/verify_determinism [--seed 42] [--ticks 600] [--effect fire] [--config effects.yaml]
//
// 全部通过时退出码为 0，否则为 1。
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/decker502/fxsim/pkg/components"
	"github.com/decker502/fxsim/pkg/config"
	"github.com/decker502/fxsim/pkg/systems"
	"github.com/decker502/fxsim/pkg/types"
)

var (
	seedFlag    = flag.Int64("seed", 42, "Random seed shared by both runs")
	ticksFlag   = flag.Int("ticks", 600, "Ticks per effect")
	effectFlag  = flag.String("effect", "", "Only verify this effect (default: all)")
	configFlag  = flag.String("config", "", "Effects config file (default: embedded effects.yaml)")
	verboseFlag = flag.Bool("verbose", false, "显示详细调试信息")
)

// script 两次运行共享的操作序列（按 tick 触发）
func script(ps *systems.ParticleSystem, tick, total int) {
	switch tick {
	case total / 4:
		ps.Pause()
	case total/4 + 10:
		ps.Resume()
	case total / 2:
		ps.Reset()
	case total * 3 / 4:
		ps.Clear()
		ps.Trigger()
	}
}

// verifyEffect 返回发现的问题列表
func verifyEffect(cfg *config.EffectsConfig, effect types.EffectType, seed int64, ticks int) ([]string, error) {
	runs := make([]*systems.ParticleSystem, 2)
	for i := range runs {
		ps, err := systems.NewParticleSystemFromConfig(cfg, systems.NewRandomSource(seed))
		if err != nil {
			return nil, err
		}
		if err := ps.SetEffect(effect); err != nil {
			return nil, err
		}
		runs[i] = ps
	}

	var problems []string
	for tick := 0; tick < ticks; tick++ {
		for _, ps := range runs {
			script(ps, tick, ticks)
			if err := ps.Step(); err != nil {
				return nil, err
			}
		}

		a, b := runs[0].Particles(), runs[1].Particles()
		if len(a) != len(b) {
			problems = append(problems, fmt.Sprintf("tick %d: particle count %d != %d", tick, len(a), len(b)))
			break
		}
		if len(a) > runs[0].MaxParticles() {
			problems = append(problems, fmt.Sprintf("tick %d: %d particles exceed max %d", tick, len(a), runs[0].MaxParticles()))
		}
		for i := range a {
			if a[i] != b[i] {
				problems = append(problems, fmt.Sprintf("tick %d: particle %d diverged: %+v vs %+v", tick, i, a[i], b[i]))
				break
			}
			if err := components.ValidateParticle(a[i]); err != nil {
				problems = append(problems, fmt.Sprintf("tick %d: particle %d: %v", tick, i, err))
				break
			}
		}
		if len(problems) > 0 {
			break
		}
	}

	st := runs[0].Stats()
	log.Printf("[Verify] %s: live=%d emitted=%d expired=%d grounded=%d bounces=%d",
		effect, st.Live, st.Emitted, st.Expired, st.Grounded, st.Bounces)
	return problems, nil
}

func main() {
	flag.Parse()
	if !*verboseFlag {
		log.SetOutput(io.Discard)
	}

	var (
		cfg *config.EffectsConfig
		err error
	)
	if *configFlag == "" {
		cfg, err = config.LoadDefaultEffectsConfig()
	} else {
		cfg, err = config.LoadEffectsConfig(*configFlag)
	}
	if err != nil {
		fmt.Printf("❌ 配置加载失败: %v\n", err)
		os.Exit(1)
	}

	effects := types.AllEffectTypes
	if *effectFlag != "" {
		e, err := types.ParseEffectType(*effectFlag)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		effects = []types.EffectType{e}
	}

	failed := 0
	for _, effect := range effects {
		problems, err := verifyEffect(cfg, effect, *seedFlag, *ticksFlag)
		if err != nil {
			fmt.Printf("❌ %-10s %v\n", effect, err)
			failed++
			continue
		}
		if len(problems) > 0 {
			for _, p := range problems {
				fmt.Printf("❌ %-10s %s\n", effect, p)
			}
			failed++
			continue
		}
		fmt.Printf("✅ %-10s %d ticks reproducible (seed=%d)\n", effect, *ticksFlag, *seedFlag)
	}

	if failed > 0 {
		fmt.Printf("❌ %d effect(s) failed\n", failed)
		os.Exit(1)
	}
}
