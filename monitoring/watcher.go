package monitoring

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher 监视模型文件的变化。
// 模型只在启动时加载，文件变化只记录警告，需要重启才能生效。
type ArtifactWatcher struct {
	watcher *fsnotify.Watcher
	targets map[string]bool
	logger  *zap.Logger
	changed chan string
}

// NewArtifactWatcher 创建文件监视器。监视的是所在目录，以便捕获原子替换（rename）。
func NewArtifactWatcher(logger *zap.Logger, paths ...string) (*ArtifactWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			w.Close()
			return nil, err
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, err
		}
	}

	return &ArtifactWatcher{
		watcher: w,
		targets: targets,
		logger:  logger,
		changed: make(chan string, 16),
	}, nil
}

// Changed 返回发生变化的模型文件路径
func (aw *ArtifactWatcher) Changed() <-chan string {
	return aw.changed
}

// Run 处理事件直到 ctx 结束
func (aw *ArtifactWatcher) Run(ctx context.Context) {
	defer aw.watcher.Close()
	defer close(aw.changed)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-aw.watcher.Events:
			if !ok {
				return
			}
			if !aw.targets[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			aw.logger.Warn("model artifact changed on disk; restart to load it",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			select {
			case aw.changed <- event.Name:
			default:
			}
		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return
			}
			aw.logger.Error("artifact watcher error", zap.Error(err))
		}
	}
}
