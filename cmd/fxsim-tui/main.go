// Package main 是粒子效果查看器的终端版本
//
// 使用 tcell 在字符网格上绘制同一个粒子系统的快照，按键与窗口版一致。
//
// Usage:
//
//	go run ./cmd/fxsim-tui [--config effects.yaml] [--effect rain] [--seed 42]
//
// Controls:
//
//	1-4      切换效果
//	P        暂停 / 继续
//	R        重置
//	C        清空
//	Space    再次触发爆炸
//	H        显示 / 隐藏按键提示
//	Q/Esc    退出
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/decker502/fxsim/pkg/config"
	"github.com/decker502/fxsim/pkg/systems"
	"github.com/decker502/fxsim/pkg/types"
)

var (
	configFlag  = flag.String("config", "", "Effects config file (default: embedded effects.yaml)")
	effectFlag  = flag.String("effect", "", "Start with specific effect (fire, smoke, rain, explosion)")
	seedFlag    = flag.Int64("seed", 0, "Random seed (0 = config seed, then wall clock)")
	verboseFlag = flag.Bool("verbose", false, "Enable verbose logging to fxsim-tui.log")
)

// Viewer 终端查看器
type Viewer struct {
	screen  tcell.Screen
	ps      *systems.ParticleSystem
	canvas  *Canvas
	views   []systems.ParticleView
	showHUD bool
}

// NewViewer 初始化终端和粒子系统
func NewViewer(ps *systems.ParticleSystem) (*Viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	v := &Viewer{
		screen:  screen,
		ps:      ps,
		showHUD: true,
	}
	v.resize()
	return v, nil
}

func (v *Viewer) resize() {
	cols, rows := v.screen.Size()
	v.canvas = NewCanvas(cols, rows, v.ps.Effect())
}

// handleInput 返回 false 表示退出
func (v *Viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}

		switch r := ev.Rune(); r {
		case 'q', 'Q':
			return false
		case 'p', 'P':
			v.ps.TogglePause()
		case 'r', 'R':
			v.ps.Reset()
		case 'c', 'C':
			v.ps.Clear()
		case ' ':
			v.ps.Trigger()
		case 'h', 'H':
			v.showHUD = !v.showHUD
		case '1', '2', '3', '4':
			effect := types.AllEffectTypes[r-'1']
			if err := v.ps.SetEffect(effect); err != nil {
				log.Printf("[TUI] Switch effect failed: %v", err)
				return true
			}
			v.resize()
		}

	case *tcell.EventResize:
		v.screen.Sync()
		v.resize()
	}

	return true
}

func (v *Viewer) draw() {
	preset := v.ps.Config()
	effect := v.ps.Effect()

	v.canvas.Clear()
	if config.ShowGroundPlane(effect) {
		v.canvas.DrawGround(preset.GroundLevel, config.GroundPlaneHalfWidth)
	}
	v.views = v.ps.Snapshot(v.views[:0])
	v.canvas.DrawParticles(v.views)
	v.canvas.DrawEmitter(preset.Emitter)

	v.screen.Clear()
	v.canvas.Blit(v.screen)

	st := v.ps.Stats()
	title := fmt.Sprintf("%s Effect - Particles: %d", effect.Title(), st.Live)
	if st.Paused {
		title += " [PAUSED]"
	}
	drawText(v.screen, 1, 0, title, tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true))

	if v.showHUD {
		_, rows := v.screen.Size()
		hint := "1-4 effect  P pause  R reset  C clear  Space burst  H hud  Q quit"
		drawText(v.screen, 1, rows-1, hint, tcell.StyleDefault.Foreground(tcell.ColorGray))
	}

	v.screen.Show()
}

func (v *Viewer) run() error {
	ticker := time.NewTicker(16 * time.Millisecond) // ~60 FPS
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if !v.handleInput(ev) {
				return nil
			}

		case <-ticker.C:
			if err := v.ps.Step(); err != nil {
				return err
			}
			v.draw()
		}
	}
}

func (v *Viewer) cleanup() {
	v.screen.Fini()
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range text {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func newParticleSystem() (*systems.ParticleSystem, error) {
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
		return nil, err
	}

	seed := *seedFlag
	if seed == 0 {
		seed = cfg.System.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ps, err := systems.NewParticleSystemFromConfig(cfg, systems.NewRandomSource(seed))
	if err != nil {
		return nil, err
	}
	if *effectFlag != "" {
		if err := ps.SetEffectByName(*effectFlag); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

func main() {
	flag.Parse()

	// 终端被 tcell 接管，日志只能写文件
	log.SetOutput(io.Discard)
	if *verboseFlag {
		f, err := os.Create("fxsim-tui.log")
		if err == nil {
			defer f.Close()
			log.SetOutput(f)
		}
	}

	ps, err := newParticleSystem()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	viewer, err := NewViewer(ps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize terminal: %v\n", err)
		os.Exit(1)
	}

	runErr := viewer.run()
	viewer.cleanup()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", runErr)
		os.Exit(1)
	}
}
