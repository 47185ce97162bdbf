package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig is returned when the environment cannot be parsed
	// into the config struct, e.g. a required variable is missing.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	dotenvOnce sync.Once

	cacheMu sync.Mutex
	cache   = make(map[reflect.Type]any)
)

// Load parses the environment into a fresh T using its env struct tags.
// The first call in the process also loads a .env file when one exists.
// Each config type is parsed once and cached; later calls return the
// cached copy, so every package sees the same startup configuration even
// if the environment changes afterwards.
func Load[T any]() (T, error) {
	dotenvOnce.Do(func() {
		// A missing .env file is fine; the real environment still applies.
		_ = godotenv.Load()
	})

	var cfg T
	key := reflect.TypeOf(cfg)

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[key]; ok {
		return cached.(T), nil
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	cache[key] = cfg
	return cfg, nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any]() T {
	cfg, err := Load[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}
