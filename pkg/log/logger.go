package log

import (
	"os"

	"github.com/rs/zerolog"
)

// New constructs the process logger. Dev environments get console
// output, everything else structured JSON.
func New(env string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	if env == "dev" || env == "local" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}
