// Package game 管理查看器的持久化状态
//
// 粒子本身不持久化，这里只保存查看器偏好（上次的效果、HUD 开关、热加载开关）。
package game

import (
	"fmt"
	"log"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"github.com/decker502/fxsim/pkg/types"
	"github.com/decker502/fxsim/pkg/utils"
)

// ViewerSettings 查看器偏好设置
type ViewerSettings struct {
	// LastEffect 上次退出时的效果（"fire"、"smoke"、"rain"、"explosion"）
	LastEffect string `yaml:"lastEffect"`

	// ShowHUD 是否显示状态栏和按键提示
	ShowHUD bool `yaml:"showHUD"`

	// HotReload 启动时是否监听效果配置文件
	HotReload bool `yaml:"hotReload"`
}

// DefaultSettings 返回默认设置
func DefaultSettings() *ViewerSettings {
	return &ViewerSettings{
		LastEffect: types.EffectFire.String(),
		ShowHUD:    true,
		HotReload:  false,
	}
}

// SettingsManager 设置管理器
// 负责查看器设置的加载、保存和内存管理
type SettingsManager struct {
	gdataManager *gdata.Manager  // gdata 跨平台存储管理器，可为 nil（降级模式）
	settings     *ViewerSettings // 当前设置
	saved        bool            // 设置是否来自存储
}

// 存储路径常量
const (
	settingsObject   = "settings"
	settingsProperty = "viewer"
)

// OpenStorage 打开 gdata 存储
//
// 失败时返回 nil（降级模式），调用方仍可正常运行，只是设置不会持久化。
func OpenStorage(appName string) *gdata.Manager {
	if err := utils.EnsureStorageDir(); err != nil {
		log.Printf("[SettingsManager] Warning: %v", err)
	}
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		log.Printf("[SettingsManager] Warning: gdata unavailable: %v (settings will not persist)", err)
		return nil
	}
	return m
}

// NewSettingsManager 创建新的设置管理器实例
//
// 参数：
//   - gdataManager: gdata 跨平台存储管理器，可为 nil（降级模式，仅内存设置）
//
// 返回：
//   - *SettingsManager: 设置管理器实例
//   - error: 保留给调用方检查，加载失败不会返回错误（使用默认设置）
func NewSettingsManager(gdataManager *gdata.Manager) (*SettingsManager, error) {
	sm := &SettingsManager{
		gdataManager: gdataManager,
		settings:     DefaultSettings(),
	}

	// 尝试加载已保存的设置
	if err := sm.Load(); err != nil {
		// 加载失败不是致命错误，使用默认设置
		log.Printf("[SettingsManager] Warning: Failed to load settings: %v (using defaults)", err)
	}

	return sm, nil
}

// Load 从 gdata 加载设置
//
// 如果 gdataManager 为 nil 或文件不存在，使用默认设置。
// 保存的效果名无效时回退到默认效果。
//
// 返回：
//   - error: 如果读取或反序列化失败返回错误
func (sm *SettingsManager) Load() error {
	// 降级模式：无法持久化，使用默认设置
	if sm.gdataManager == nil {
		sm.settings = DefaultSettings()
		return nil
	}

	if !sm.gdataManager.ObjectPropExists(settingsObject, settingsProperty) {
		sm.settings = DefaultSettings()
		return nil
	}

	data, err := sm.gdataManager.LoadObjectProp(settingsObject, settingsProperty)
	if err != nil {
		sm.settings = DefaultSettings()
		return fmt.Errorf("failed to load settings: %w", err)
	}

	loaded := DefaultSettings()
	if err := yaml.Unmarshal(data, loaded); err != nil {
		sm.settings = DefaultSettings()
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if _, err := types.ParseEffectType(loaded.LastEffect); err != nil {
		log.Printf("[SettingsManager] Warning: saved effect %q invalid, using %s", loaded.LastEffect, types.EffectFire)
		loaded.LastEffect = types.EffectFire.String()
	}

	sm.settings = loaded
	sm.saved = true
	log.Printf("[SettingsManager] Settings loaded successfully")
	return nil
}

// Save 保存设置到 gdata
//
// 如果 gdataManager 为 nil，返回 nil（降级模式，不报错）
func (sm *SettingsManager) Save() error {
	if sm.gdataManager == nil {
		return nil
	}

	data, err := yaml.Marshal(sm.settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := sm.gdataManager.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	log.Printf("[SettingsManager] Settings saved successfully")
	return nil
}

// HasSaved 返回设置是否从存储中加载（而不是默认值）
func (sm *SettingsManager) HasSaved() bool {
	return sm.saved
}

// GetSettings 获取当前设置
func (sm *SettingsManager) GetSettings() *ViewerSettings {
	return sm.settings
}

// LastEffect 返回上次使用的效果
func (sm *SettingsManager) LastEffect() types.EffectType {
	e, err := types.ParseEffectType(sm.settings.LastEffect)
	if err != nil {
		return types.EffectFire
	}
	return e
}

// SetLastEffect 记录当前效果
//
// 注意：仅修改内存中的设置，需调用 Save() 方法持久化
func (sm *SettingsManager) SetLastEffect(effect types.EffectType) {
	if effect.Valid() {
		sm.settings.LastEffect = effect.String()
	}
}

// SetShowHUD 设置 HUD 开关
//
// 注意：仅修改内存中的设置，需调用 Save() 方法持久化
func (sm *SettingsManager) SetShowHUD(show bool) {
	sm.settings.ShowHUD = show
}

// SetHotReload 设置热加载开关
//
// 注意：仅修改内存中的设置，需调用 Save() 方法持久化
func (sm *SettingsManager) SetHotReload(enabled bool) {
	sm.settings.HotReload = enabled
}
