package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type AutoBanConfig struct {
	Enabled bool `env:"AUTOBAN_ENABLED" envDefault:"true"`
	// Algorithm is "simple" or "legacy".
	Algorithm string `env:"AUTOBAN_ALGORITHM" envDefault:"simple"`

	BanDuringLoading   bool `env:"AUTOBAN_GAME_LOADING" envDefault:"false"`
	BanDuringCountdown bool `env:"AUTOBAN_COUNTDOWN" envDefault:"false"`
	GameEndMins        int  `env:"AUTOBAN_GAME_END_MINS" envDefault:"0"`

	EarlyDrop   time.Duration `env:"AUTOBAN_EARLY_DROP" envDefault:"7m"`
	LateDrop    time.Duration `env:"AUTOBAN_LATE_DROP" envDefault:"17m"`
	MaxLeavers  int           `env:"AUTOBAN_MAX_LEAVERS" envDefault:"3"`
	TeamDiffMax int           `env:"AUTOBAN_TEAM_DIFF_MAX" envDefault:"2"`
	TimerMins   int           `env:"AUTOBAN_TIMER_MINS" envDefault:"120"`
	BanAll      bool          `env:"AUTOBAN_ALL" envDefault:"true"`
	FirstXLeave int           `env:"AUTOBAN_FIRST_X_LEAVERS" envDefault:"2"`
}

func LoadAutoBan() (AutoBanConfig, error) {
	var cfg AutoBanConfig
	err := env.Parse(&cfg)
	return cfg, err
}
