package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/config"
)

type workerConfig struct {
	Queue        string        `env:"TEST_CFG_QUEUE" envDefault:"default"`
	PollInterval time.Duration `env:"TEST_CFG_POLL" envDefault:"1s"`
	Concurrency  int           `env:"TEST_CFG_CONCURRENCY" envDefault:"10"`
}

type requiredConfig struct {
	Token string `env:"TEST_CFG_MISSING_TOKEN,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply", func(t *testing.T) {
		cfg, err := config.Load[workerConfig]()
		require.NoError(t, err)
		assert.Equal(t, "default", cfg.Queue)
		assert.Equal(t, time.Second, cfg.PollInterval)
		assert.Equal(t, 10, cfg.Concurrency)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		type overrideConfig struct {
			Queue string `env:"TEST_CFG_OVERRIDE_QUEUE" envDefault:"default"`
		}
		t.Setenv("TEST_CFG_OVERRIDE_QUEUE", "notifications")

		cfg, err := config.Load[overrideConfig]()
		require.NoError(t, err)
		assert.Equal(t, "notifications", cfg.Queue)
	})

	t.Run("cached after first load", func(t *testing.T) {
		type cachedConfig struct {
			Queue string `env:"TEST_CFG_CACHED_QUEUE" envDefault:"default"`
		}
		t.Setenv("TEST_CFG_CACHED_QUEUE", "first")

		cfg, err := config.Load[cachedConfig]()
		require.NoError(t, err)
		require.Equal(t, "first", cfg.Queue)

		t.Setenv("TEST_CFG_CACHED_QUEUE", "second")
		cfg, err = config.Load[cachedConfig]()
		require.NoError(t, err)
		assert.Equal(t, "first", cfg.Queue)
	})

	t.Run("missing required variable", func(t *testing.T) {
		_, err := config.Load[requiredConfig]()
		require.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestMustLoad(t *testing.T) {
	assert.Panics(t, func() {
		config.MustLoad[requiredConfig]()
	})
}
