package exitcodes

// ErrorWithExitCode is an `error` type that wraps an existing error and exit code, providing exit
// codes for a given error if they are bubbled up to the top-level.
type ErrorWithExitCode struct {
	err      error
	exitCode int
}

// NewErrorWithExitCode creates a new error (ErrorWithExitCode) with the provided internal error
// and exit code.
func NewErrorWithExitCode(err error, exitCode int) *ErrorWithExitCode {
	return &ErrorWithExitCode{
		err:      err,
		exitCode: exitCode,
	}
}

// Error returns the error message string, implementing the `error` interface.
func (e *ErrorWithExitCode) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

// GetInnerErrorAndExitCode resolves the exit code the application should exit with for the given
// top-level error: 0 for nil, 1 for a generic error, or the wrapped code for an
// ErrorWithExitCode. Returns the inner error alongside the code.
func GetInnerErrorAndExitCode(err error) (error, int) {
	if err == nil {
		return nil, ExitCodeSuccess
	}
	if wrapped, ok := err.(*ErrorWithExitCode); ok {
		return wrapped.err, wrapped.exitCode
	}
	return err, ExitCodeGeneralError
}
