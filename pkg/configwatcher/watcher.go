package configwatcher

import (
	"context"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/pkg/logger"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type ConfigReloader func(cfg *config.Config)

// Watcher 监听配置文件变化，防抖后重新加载并通知所有回调
type Watcher struct {
	configFile string
	debounce   time.Duration
	load       func(dir string) (*config.Config, error)

	mu        sync.RWMutex
	reloaders []ConfigReloader
}

func New(configFile string) *Watcher {
	return &Watcher{
		configFile: configFile,
		debounce:   time.Second,
		load:       config.LoadConfig,
	}
}

// OnReload 注册配置热更新回调
func (w *Watcher) OnReload(fn ConfigReloader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reloaders = append(w.reloaders, fn)
}

// Run 阻塞直到 ctx 结束；监听所在目录以兼容编辑器的 rename 写入方式
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(w.configFile)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// 防抖处理
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	newCfg, err := w.load(filepath.Dir(w.configFile))
	if err != nil {
		logger.Log.Error("Failed to reload config", zap.Error(err))
		return
	}

	w.mu.RLock()
	reloaders := append([]ConfigReloader(nil), w.reloaders...)
	w.mu.RUnlock()

	for _, fn := range reloaders {
		fn(newCfg)
	}
	logger.Log.Info("Config reloaded", zap.String("file", w.configFile))
}
