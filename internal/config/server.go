package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// Realm is the server name persisted with bans, games and ratings.
	Realm string `env:"HOST_REALM" envDefault:"local"`

	TickInterval   time.Duration `env:"TICK_INTERVAL" envDefault:"50ms"`
	OrphanInterval time.Duration `env:"ORPHAN_POLL_INTERVAL" envDefault:"200ms"`
	EventBuffer    int           `env:"SESSION_EVENT_BUFFER" envDefault:"256"`

	Admins     []string `env:"HOST_ADMINS" envSeparator:","`
	RootAdmins []string `env:"HOST_ROOT_ADMINS" envSeparator:","`
	// AdminRefresh is how often the admin table is reloaded from the store.
	AdminRefresh time.Duration `env:"ADMIN_REFRESH" envDefault:"5m"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
