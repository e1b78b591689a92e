package cmd

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ExitCode is a semantic process exit code.
type ExitCode int

const (
	ExitFailure          ExitCode = 1
	ExitConfigInvalid    ExitCode = 3
	ExitStoreUnavailable ExitCode = 4
	ExitProviderFailure  ExitCode = 5
	ExitInterrupted      ExitCode = 130
)

// ExitWithCode logs the error through the given logger and exits with a
// semantic code.
func ExitWithCode(logger *zap.Logger, exitCode ExitCode, msg string, err error) {
	if logger != nil {
		logger.Error(msg, zap.Int("exit_code", int(exitCode)), zap.Error(err))
	} else {
		writeFatal(exitCode, msg, err)
	}
	os.Exit(int(exitCode))
}

// ExitWithCodeStderr is a variant that writes to stderr without a logger.
// Use this for early failures before logger initialization.
func ExitWithCodeStderr(exitCode ExitCode, msg string, err error) {
	writeFatal(exitCode, msg, err)
	os.Exit(int(exitCode))
}

func writeFatal(exitCode ExitCode, msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d\n", int(exitCode))
}
