// Package config provides typed environment-based configuration loading.
//
// Define a struct with env tags and load it once at startup:
//
//	type AppConfig struct {
//		Port int    `env:"PORT" envDefault:"8080"`
//		Env  string `env:"ENVIRONMENT" envDefault:"development"`
//	}
//
//	var cfg AppConfig
//	config.MustLoad(&cfg)
//
// A .env file in the working directory is loaded once, before the first
// struct is parsed. Real environment variables win over .env entries.
package config
