package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/kestrelsec/kestrel/cmd"
	"github.com/kestrelsec/kestrel/cmd/exitcodes"
	"github.com/kestrelsec/kestrel/logging"
)

func main() {
	// Enable console logging for the CLI.
	logging.GlobalLogger.SetLevel(zerolog.InfoLevel)
	logging.GlobalLogger.EnableConsole()

	// Run our root CLI command, which contains all underlying command logic and will handle
	// parsing/invocation.
	err, exitCode := exitcodes.GetInnerErrorAndExitCode(cmd.Execute())
	if err != nil {
		fmt.Println(err)
	}
	os.Exit(exitCode)
}
