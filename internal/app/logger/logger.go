package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger; packages take sublogs via With().
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}).
	With().
	Timestamp().
	Logger()

func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
