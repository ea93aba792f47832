// Package config loads typed configuration structs from environment variables
// using github.com/caarlos0/env tags, with optional .env files read through
// github.com/joho/godotenv.
//
//	type Config struct {
//	    Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
package config
