// Package app 提供粒子查看器的核心包装器
//
// 该包将初始化逻辑从 main 包提取出来，使其可以被桌面端和移动端共用。
// 桌面端通过 main.go 调用 NewApp()，移动端通过 mobile/mobile.go 调用。
package app

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/decker502/fxsim/pkg/config"
	"github.com/decker502/fxsim/pkg/game"
	"github.com/decker502/fxsim/pkg/systems"
	"github.com/decker502/fxsim/pkg/types"
	"github.com/decker502/fxsim/pkg/utils"
)

// ErrQuit 用户请求退出（Q / Esc），ebiten.RunGame 返回它时视为正常退出
var ErrQuit = errors.New("quit requested")

// AppName gdata 存储使用的应用名
const AppName = "fxsim"

// Config 定义应用启动配置
type Config struct {
	// Verbose 启用详细日志输出
	Verbose bool
	// ConfigPath 效果配置文件路径，为空则使用内嵌默认配置
	ConfigPath string
	// Effect 启动效果（如 "rain"），为空则使用上次退出时的效果
	Effect string
	// Seed 随机种子，0 表示使用配置文件中的种子，仍为 0 则按时间取种子
	Seed int64
	// HotReload 监听配置文件变化（需要 ConfigPath）
	HotReload bool
}

// App 是查看器的核心包装器，实现 ebiten.Game 接口
type App struct {
	ps       *systems.ParticleSystem
	renderer *systems.RenderSystem
	settings *game.SettingsManager
	watcher  *config.EffectsWatcher // 可为 nil

	views    []systems.ParticleView // 快照缓冲（复用）
	touchIDs []ebiten.TouchID      // 触摸缓冲（复用）
	showHUD  bool
	verbose  bool

	pendingWindowSizeReset   bool // 延迟设置窗口大小标志
	windowSizeResetCountdown int  // 延迟帧数
}

// NewApp 创建并初始化查看器
func NewApp(cfg Config) (*App, error) {
	// 配置日志输出
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
		log.SetFlags(0)
	}

	effectsConfig, err := loadEffectsConfig(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("效果配置加载失败: %w", err)
	}

	settingsManager, err := game.NewSettingsManager(game.OpenStorage(AppName))
	if err != nil {
		return nil, fmt.Errorf("设置加载失败: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = effectsConfig.System.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Printf("[App] Random seed: %d", seed)

	ps, err := systems.NewParticleSystemFromConfig(effectsConfig, systems.NewRandomSource(seed))
	if err != nil {
		return nil, fmt.Errorf("粒子系统创建失败: %w", err)
	}

	// 启动效果：命令行 > 上次退出时的效果 > 配置文件
	switch {
	case cfg.Effect != "":
		if err := ps.SetEffectByName(cfg.Effect); err != nil {
			return nil, err
		}
	case settingsManager.HasSaved():
		if err := ps.SetEffect(settingsManager.LastEffect()); err != nil {
			return nil, err
		}
	}

	a := &App{
		ps:       ps,
		renderer: systems.NewRenderSystem(projectionFor(ps.Effect())),
		settings: settingsManager,
		showHUD:  settingsManager.GetSettings().ShowHUD,
		verbose:  cfg.Verbose,
	}

	if cfg.HotReload || settingsManager.GetSettings().HotReload {
		if cfg.ConfigPath == "" {
			log.Printf("[App] Hot reload requested without --config, ignored")
		} else {
			w, err := config.NewEffectsWatcher(cfg.ConfigPath)
			if err != nil {
				return nil, fmt.Errorf("配置监听启动失败: %w", err)
			}
			a.watcher = w
			settingsManager.SetHotReload(true)
		}
	}

	log.Printf("[App] Starting effect: %s", ps.Effect())
	return a, nil
}

func loadEffectsConfig(path string) (*config.EffectsConfig, error) {
	if path == "" {
		return config.LoadDefaultEffectsConfig()
	}
	return config.LoadEffectsConfig(path)
}

// projectionFor 返回效果对应的固定视角
func projectionFor(effect types.EffectType) utils.Projection {
	zMin, zMax := config.ViewLimits(effect)
	return utils.FitProjection(config.WindowWidth, config.WindowHeight, config.ViewHalfWidth, zMin, zMax)
}

// Update 更新模拟
// 每个 tick 调用一次（通常每秒 60 次），模拟步长取 system.timestep
func (a *App) Update() error {
	// 延迟设置窗口大小（退出全屏后需要等待几帧才能正确设置）
	if a.pendingWindowSizeReset {
		a.windowSizeResetCountdown--
		if a.windowSizeResetCountdown <= 0 {
			ebiten.SetWindowSize(config.WindowWidth, config.WindowHeight)
			log.Printf("[App] Delayed SetWindowSize(%d, %d)", config.WindowWidth, config.WindowHeight)
			a.pendingWindowSizeReset = false
		}
	}

	// F11 切换全屏
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		if ebiten.IsFullscreen() {
			ebiten.SetFullscreen(false)
			if ebiten.IsWindowMaximized() || ebiten.IsWindowMinimized() {
				ebiten.RestoreWindow()
			}
			a.pendingWindowSizeReset = true
			a.windowSizeResetCountdown = 3
			log.Printf("[App] Exit fullscreen, will reset window size in 3 frames")
		} else {
			ebiten.SetFullscreen(true)
		}
	}

	if err := a.handleInput(); err != nil {
		return err
	}
	return a.tick()
}

// tick 应用热加载的配置，然后按配置的固定步长推进一次模拟
func (a *App) tick() error {
	a.pollWatcher()
	return a.ps.Step()
}

// handleInput 处理键盘控制
func (a *App) handleInput() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyQ), inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return ErrQuit
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		paused := a.ps.TogglePause()
		log.Printf("[App] Paused: %v", paused)
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		a.ps.Reset()
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		a.ps.Clear()
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		a.ps.Trigger()
	case inpututil.IsKeyJustPressed(ebiten.KeyH):
		a.showHUD = !a.showHUD
		a.settings.SetShowHUD(a.showHUD)
	}

	if utils.IsMobile() {
		a.handleTouch()
	}

	effectKeys := []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4}
	for i, key := range effectKeys {
		if inpututil.IsKeyJustPressed(key) {
			a.switchEffect(types.AllEffectTypes[i])
		}
	}
	return nil
}

// handleTouch 触屏控制：单指点击切换到下一个效果，双指点击暂停/继续
func (a *App) handleTouch() {
	a.touchIDs = inpututil.AppendJustPressedTouchIDs(a.touchIDs[:0])
	if len(a.touchIDs) == 0 {
		return
	}
	if len(ebiten.AppendTouchIDs(nil)) >= 2 {
		a.ps.TogglePause()
		return
	}
	a.switchEffect(NextEffect(a.ps.Effect()))
}

// NextEffect 按展示顺序返回下一个效果（循环）
func NextEffect(effect types.EffectType) types.EffectType {
	for i, e := range types.AllEffectTypes {
		if e == effect {
			return types.AllEffectTypes[(i+1)%len(types.AllEffectTypes)]
		}
	}
	return types.AllEffectTypes[0]
}

func (a *App) switchEffect(effect types.EffectType) {
	if err := a.ps.SetEffect(effect); err != nil {
		log.Printf("[App] Switch effect failed: %v", err)
		return
	}
	a.renderer.SetProjection(projectionFor(effect))
	a.settings.SetLastEffect(effect)
}

// pollWatcher 非阻塞地应用热加载的配置
func (a *App) pollWatcher() {
	if a.watcher == nil {
		return
	}
	select {
	case cfg := <-a.watcher.Updates():
		if err := a.ps.ApplyConfig(cfg); err != nil {
			log.Printf("[App] Reloaded config rejected: %v", err)
		}
	case err := <-a.watcher.Errors():
		log.Printf("[App] Config watcher: %v", err)
	default:
	}
}

// Draw 绘制画面
// 每帧调用一次
func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	effect := a.ps.Effect()
	preset := a.ps.Config()
	if config.ShowGroundPlane(effect) {
		a.renderer.DrawGround(screen, preset.GroundLevel, config.GroundPlaneHalfWidth)
	}

	a.views = a.ps.Snapshot(a.views[:0])
	a.renderer.DrawParticles(screen, a.views)
	a.renderer.DrawEmitter(screen, preset.Emitter)

	ebitenutil.DebugPrintAt(screen, Title(a.ps.Stats()), 10, 10)
	if a.showHUD {
		a.drawHUD(screen)
	}
}

// Title 返回标题栏文字，如 "Fire Effect - Particles: 120 [PAUSED]"
func Title(st systems.Stats) string {
	title := fmt.Sprintf("%s Effect - Particles: %d", st.Effect.Title(), st.Live)
	if st.Paused {
		title += " [PAUSED]"
	}
	return title
}

func (a *App) drawHUD(screen *ebiten.Image) {
	st := a.ps.Stats()
	stats := fmt.Sprintf("Max: %d  Emitted: %d  Expired: %d  Grounded: %d  Bounces: %d  Time: %.1fs  FPS: %.0f",
		st.Max, st.Emitted, st.Expired, st.Grounded, st.Bounces, st.Elapsed, ebiten.ActualFPS())
	ebitenutil.DebugPrintAt(screen, stats, 10, 30)

	controls := []string{
		"Controls:",
		"  1-4: Fire / Smoke / Rain / Explosion",
		"  P: Pause/Resume  R: Reset  C: Clear",
		"  Space: Trigger burst  H: Toggle HUD",
		"  F11: Fullscreen  Q/Esc: Quit",
	}
	if utils.IsMobile() {
		controls = []string{"Tap: next effect  Two-finger tap: Pause/Resume"}
	}
	y := config.WindowHeight - 16*len(controls) - 10
	for i, line := range controls {
		ebitenutil.DebugPrintAt(screen, line, 10, y+i*16)
	}
}

// DrawFinalScreen 实现 FinalScreenDrawer 接口
// 用于控制全屏时的缩放和 letterbox 颜色
func (a *App) DrawFinalScreen(screen ebiten.FinalScreen, offscreen *ebiten.Image, geoM ebiten.GeoM) {
	screen.Fill(color.Black)
	op := &ebiten.DrawImageOptions{}
	op.GeoM = geoM
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(offscreen, op)
}

// Layout 返回逻辑屏幕尺寸
// 此尺寸独立于实际窗口大小，Ebitengine 会自动处理缩放
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return config.WindowWidth, config.WindowHeight
}

// ParticleSystem 返回粒子系统
func (a *App) ParticleSystem() *systems.ParticleSystem {
	return a.ps
}

// IsVerbose 返回是否启用了详细日志
func (a *App) IsVerbose() bool {
	return a.verbose
}

// Close 保存设置并停止配置监听
func (a *App) Close() error {
	a.settings.SetLastEffect(a.ps.Effect())
	saveErr := a.settings.Save()
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			log.Printf("[App] Close watcher: %v", err)
		}
	}
	return saveErr
}
