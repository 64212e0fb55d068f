package telemetry

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "poker-everest-server"

// SetupLogger installs the global logger. Development gets the console
// writer; production gets one JSON object per line.
func SetupLogger(level string, pretty bool, env string) zerolog.Logger {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return setupLogger(out, level, env)
}

func setupLogger(out io.Writer, level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	logger := zerolog.New(out).With().
		Timestamp().
		Str("service", serviceName).
		Str("env", env).
		Logger()
	log.Logger = logger

	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
	}
	return logger
}
