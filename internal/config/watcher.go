package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sampmon/internal/logger"
)

// Watcher 配置文件监听器
type Watcher struct {
	loader       *Loader
	filename     string
	watcher      *fsnotify.Watcher
	onReload     func(*AppConfig)
	debounceTime time.Duration

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher 创建配置监听器
func NewWatcher(loader *Loader, filename string, onReload func(*AppConfig)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		loader:       loader,
		filename:     filename,
		watcher:      fw,
		onReload:     onReload,
		debounceTime: 200 * time.Millisecond,
	}, nil
}

// Start 启动监听
// 监听父目录而非文件本身，避免编辑器 rename 保存导致监听失效
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.filename)
	target := filepath.Clean(w.filename)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	logger.Info("config", "开始监听配置文件", "file", w.filename, "dir", dir)

	go func() {
		for {
			select {
			case <-ctx.Done():
				w.stopDebounce()
				logger.Info("config", "配置监听器已停止")
				w.watcher.Close()
				return

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				// vim/nano 等编辑器使用 rename 保存
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					w.scheduleReload()
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logger.Error("config", "监听错误", "error", err)
			}
		}
	}()

	return nil
}

// scheduleReload 防抖：编辑器一次保存可能触发多次写入
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.debounceTime, func() {
		logger.Info("config", "检测到配置文件变更，正在重载")
		w.reload()
	})
}

func (w *Watcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
}

// reload 重新加载配置，失败时保留旧配置且不触发回调
func (w *Watcher) reload() {
	newConfig, err := w.loader.LoadOrRollback(w.filename)
	if err != nil {
		logger.Error("config", "重载失败", "error", err)
		return
	}

	logger.Info("config", "热更新成功", "servers", len(newConfig.Servers))

	if w.onReload != nil {
		w.onReload(newConfig)
	}
}

// Stop 停止监听
func (w *Watcher) Stop() error {
	w.stopDebounce()
	return w.watcher.Close()
}
