package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type GameConfig struct {
	MapType      string        `env:"GAME_MAP_TYPE" envDefault:"dota"`
	NumTeams     int           `env:"GAME_MAP_TEAMS" envDefault:"2"`
	SlotsPerTeam int           `env:"GAME_SLOTS_PER_TEAM" envDefault:"5"`
	Ladder       bool          `env:"GAME_LADDER" envDefault:"true"`
	Countdown    time.Duration `env:"GAME_COUNTDOWN" envDefault:"5s"`

	VoteKickPercentage int           `env:"VOTEKICK_PERCENTAGE" envDefault:"60"`
	VoteKickExpire     time.Duration `env:"VOTEKICK_EXPIRE" envDefault:"60s"`

	RatingBase    int     `env:"RATING_BASE" envDefault:"1000"`
	RatingDefault int     `env:"RATING_DEFAULT" envDefault:"1000"`
	EloK          float64 `env:"RATING_ELO_K" envDefault:"25"`
}

func LoadGame() (GameConfig, error) {
	var cfg GameConfig
	err := env.Parse(&cfg)
	return cfg, err
}
