// Package config loads typed configuration structs from the environment.
//
// Each package declares its own Config struct with env tags and loads it
// once at startup:
//
//	type Config struct {
//		Queue       string        `env:"QUEUE_NAME" envDefault:"default"`
//		PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
//		DatabaseURL string        `env:"PG_CONN_URL,required"`
//	}
//
//	cfg := config.MustLoad[Config]()
//
// A .env file in the working directory is applied before parsing, which
// keeps local development out of shell profiles; production supplies real
// environment variables and needs no file.
package config
