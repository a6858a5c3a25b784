package am

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
)

// ReloadCallback receives each successfully reloaded and validated config.
type ReloadCallback func(*Config) error

// ConfigWatcher watches configuration files and reloads on change.
// Directories are watched rather than files so editors that replace a
// file by rename are still seen.
type ConfigWatcher struct {
	paths   Paths
	watched map[string]bool
	watcher *fsnotify.Watcher
	log     *zap.SugaredLogger

	mu             sync.Mutex
	callbacks      []ReloadCallback
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	started        bool
	done           chan struct{}
}

// NewConfigWatcher watches every configuration file that p can resolve
// to, whether or not it exists yet.
func NewConfigWatcher(p Paths, log *zap.SugaredLogger) (*ConfigWatcher, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	files := candidateFiles(p)
	cw := &ConfigWatcher{
		paths:          p,
		watched:        make(map[string]bool),
		watcher:        watcher,
		log:            log.Named("config"),
		debouncePeriod: 500 * time.Millisecond,
		done:           make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		cw.watched[filepath.Clean(f)] = true
		dirs[filepath.Dir(f)] = true
	}
	added := 0
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			cw.log.Debugw("Not watching config directory", logger.FieldPath, dir, logger.FieldError, err)
			continue
		}
		added++
	}
	if added == 0 {
		watcher.Close()
		return nil, errors.New("no configuration directory could be watched")
	}
	return cw, nil
}

// candidateFiles lists the files a loader under p would read.
func candidateFiles(p Paths) []string {
	var files []string
	if p.System != "" {
		files = append(files, p.System)
	}
	if p.UserDir != "" {
		files = append(files, filepath.Join(p.UserDir, ConfigFileName))
	}
	projectDir := p.WorkDir
	if project := findProjectConfig(p.WorkDir); project != "" {
		projectDir = filepath.Dir(project)
	}
	if projectDir != "" {
		files = append(files,
			filepath.Join(projectDir, ConfigFileName),
			filepath.Join(projectDir, DotEnvFileName))
	}
	return files
}

// SetDebounce changes the quiet period before a reload.
func (cw *ConfigWatcher) SetDebounce(d time.Duration) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.debouncePeriod = d
}

// OnReload registers a callback to be called when config is reloaded
func (cw *ConfigWatcher) OnReload(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// Start begins watching for config file changes
func (cw *ConfigWatcher) Start() {
	cw.mu.Lock()
	cw.started = true
	cw.mu.Unlock()
	go cw.watchLoop()
}

func (cw *ConfigWatcher) watchLoop() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.watched[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			cw.log.Infow("Config watcher detected change",
				logger.FieldPath, event.Name,
				"op", event.Op.String())
			cw.scheduleReload()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Warnw("Config watcher error", logger.FieldError, err)
		}
	}
}

// scheduleReload debounces rapid file changes and triggers reload
func (cw *ConfigWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.debounceTimer = time.AfterFunc(cw.debouncePeriod, func() {
		if err := cw.reload(); err != nil {
			cw.log.Errorw("Config reload failed, keeping previous configuration", logger.FieldError, err)
		}
	})
}

// reload rereads every layer and hands a valid result to the callbacks.
func (cw *ConfigWatcher) reload() error {
	l, err := NewLoader(cw.paths)
	if err != nil {
		return err
	}
	cfg, err := l.Config()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cw.log.Infow("Config reloaded", "files", l.Files())

	cw.mu.Lock()
	callbacks := append([]ReloadCallback(nil), cw.callbacks...)
	cw.mu.Unlock()

	for _, callback := range callbacks {
		if err := callback(cfg); err != nil {
			cw.log.Warnw("Config reload callback error", logger.FieldError, err)
		}
	}
	return nil
}

// Stop stops watching for config changes
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	started := cw.started
	cw.mu.Unlock()

	err := cw.watcher.Close()
	if started {
		<-cw.done
	}
	return err
}
