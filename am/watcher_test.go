package am

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConfigWatcherReloads(t *testing.T) {
	p, project := layout(t)
	path := filepath.Join(project, ConfigFileName)
	writeFile(t, path, "[scheduler]\nretention_days = 10\n")

	cw, err := NewConfigWatcher(p, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	cw.SetDebounce(20 * time.Millisecond)

	reloaded := make(chan *Config, 4)
	cw.OnReload(func(cfg *Config) error {
		reloaded <- cfg
		return nil
	})
	cw.Start()
	defer cw.Stop()

	writeFile(t, path, "[scheduler]\nretention_days = 3\n\n[[commands]]\nname = \"sync\"\ncommand = \"/opt/sync\"\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 3, cfg.Scheduler.RetentionDays)
		require.Len(t, cfg.Commands, 1)
		assert.Equal(t, "sync", cfg.Commands[0].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}
}

func TestConfigWatcherSkipsInvalidConfig(t *testing.T) {
	p, project := layout(t)
	path := filepath.Join(project, ConfigFileName)
	writeFile(t, path, "")

	cw, err := NewConfigWatcher(p, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	cw.SetDebounce(20 * time.Millisecond)

	reloaded := make(chan *Config, 4)
	cw.OnReload(func(cfg *Config) error {
		reloaded <- cfg
		return nil
	})
	cw.Start()
	defer cw.Stop()

	writeFile(t, path, "[scheduler]\ntimezone = \"Mars/Olympus\"\n")

	select {
	case <-reloaded:
		t.Fatal("invalid configuration must not reach callbacks")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestConfigWatcherStopWithoutStart(t *testing.T) {
	p, _ := layout(t)
	cw, err := NewConfigWatcher(p, nil)
	require.NoError(t, err)
	assert.NoError(t, cw.Stop())
}
