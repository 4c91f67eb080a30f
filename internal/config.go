package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8888"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	MaxLineBytes      int           `env:"MAX_LINE_BYTES,default=8388608"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	EnableModeration  bool          `env:"ENABLE_MODERATION,default=true"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
