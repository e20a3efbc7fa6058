package config

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// EffectsWatcher 监听效果配置文件，文件变化时重新加载
//
// 监听的是文件所在目录（编辑器常以"写临时文件再重命名"的方式保存），
// 只处理目标文件名的事件。解析或验证失败的配置不会下发，错误通过 Errors() 报告，
// 调用方继续使用旧配置。
//
// Updates() 只保留最新的一份配置：消费者来不及处理时旧的配置会被丢弃。
type EffectsWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	updates chan *EffectsConfig
	errors  chan error
	done    chan struct{}
}

// NewEffectsWatcher 创建并启动配置文件监听
//
// 参数:
//   - path: 配置文件路径
//
// 返回:
//   - *EffectsWatcher: 监听器，使用完毕后需调用 Close()
//   - error: 无法创建监听时返回错误
func NewEffectsWatcher(path string) (*EffectsWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve effects config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	ew := &EffectsWatcher{
		path:    abs,
		watcher: w,
		updates: make(chan *EffectsConfig, 1),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
	}
	go ew.loop()
	log.Printf("[EffectsWatcher] Watching %s", abs)
	return ew, nil
}

// Updates 返回重新加载成功的配置
func (ew *EffectsWatcher) Updates() <-chan *EffectsConfig {
	return ew.updates
}

// Errors 返回重新加载失败的错误
func (ew *EffectsWatcher) Errors() <-chan error {
	return ew.errors
}

// Close 停止监听
func (ew *EffectsWatcher) Close() error {
	err := ew.watcher.Close()
	<-ew.done
	return err
}

func (ew *EffectsWatcher) loop() {
	defer close(ew.done)
	for {
		select {
		case ev, ok := <-ew.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != ew.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			ew.reload()
		case err, ok := <-ew.watcher.Errors:
			if !ok {
				return
			}
			ew.sendError(err)
		}
	}
}

func (ew *EffectsWatcher) reload() {
	cfg, err := LoadEffectsConfig(ew.path)
	if err != nil {
		log.Printf("[EffectsWatcher] Reload failed: %v (keeping previous presets)", err)
		ew.sendError(err)
		return
	}
	log.Printf("[EffectsWatcher] Reloaded %s", ew.path)

	// 丢弃尚未消费的旧配置，只保留最新一份
	select {
	case <-ew.updates:
	default:
	}
	ew.updates <- cfg
}

func (ew *EffectsWatcher) sendError(err error) {
	select {
	case ew.errors <- err:
	default:
	}
}
