// Package main 是粒子效果查看器的桌面端入口
//
// Usage:
//
//	go run . [flags]
//
// Flags:
//
//	--config <path>   效果配置文件（默认使用内嵌配置）
//	--effect <name>   启动效果：fire / smoke / rain / explosion
//	--seed <n>        随机种子（0 = 按时间）
//	--hot-reload      配置文件变化时自动重新加载（需要 --config）
//	--verbose         输出详细日志
//
// Controls:
//
//	1-4      切换效果（火焰 / 烟雾 / 雨 / 爆炸）
//	P        暂停 / 继续
//	R        重置当前效果
//	C        清空粒子
//	Space    再次触发爆炸
//	H        显示 / 隐藏按键提示
//	F11      全屏
//	Q/Esc    退出
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/decker502/fxsim/pkg/app"
	"github.com/decker502/fxsim/pkg/config"
)

var (
	configFlag    = flag.String("config", "", "Effects config file (default: embedded effects.yaml)")
	effectFlag    = flag.String("effect", "", "Start with specific effect (fire, smoke, rain, explosion)")
	seedFlag      = flag.Int64("seed", 0, "Random seed (0 = config seed, then wall clock)")
	hotReloadFlag = flag.Bool("hot-reload", false, "Reload the effects config file when it changes")
	verboseFlag   = flag.Bool("verbose", false, "Enable verbose logging (default off)")
)

func main() {
	flag.Parse()

	gameApp, err := app.NewApp(app.Config{
		Verbose:    *verboseFlag,
		ConfigPath: *configFlag,
		Effect:     *effectFlag,
		Seed:       *seedFlag,
		HotReload:  *hotReloadFlag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}

	ebiten.SetWindowSize(config.WindowWidth, config.WindowHeight)
	ebiten.SetWindowTitle("Particle Effects Simulator")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	runErr := ebiten.RunGame(gameApp)
	if err := gameApp.Close(); err != nil {
		log.Printf("[Main] Save settings failed: %v", err)
	}
	if runErr != nil && !errors.Is(runErr, app.ErrQuit) {
		fmt.Fprintf(os.Stderr, "%v\n", runErr)
		os.Exit(1)
	}

	log.Println("[Main] Viewer closed")
}
