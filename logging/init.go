package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// init instantiates the global logger and configures package-wide zerolog behavior.
func init() {
	GlobalLogger = NewLogger(zerolog.Disabled)

	// Stack trace marshaling for wrapped errors and unix timestamps.
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}
