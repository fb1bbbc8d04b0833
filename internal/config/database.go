package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type DBConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	BotID       int    `env:"DB_BOT_ID" envDefault:"0"`

	IdleSoftCap     int           `env:"DB_IDLE_SOFT_CAP" envDefault:"30"`
	MaxWorkers      int           `env:"DB_MAX_WORKERS" envDefault:"64"`
	SpawnRetryDelay time.Duration `env:"DB_SPAWN_RETRY_DELAY" envDefault:"50ms"`
	DialTimeout     time.Duration `env:"DB_DIAL_TIMEOUT" envDefault:"5s"`

	MigrateOnStart bool   `env:"DB_MIGRATE_ON_START" envDefault:"true"`
	LocalDBPath    string `env:"DB_LOCAL_PATH" envDefault:"hostbot.db"`
}

func LoadDB() (DBConfig, error) {
	var cfg DBConfig
	err := env.Parse(&cfg)
	return cfg, err
}
