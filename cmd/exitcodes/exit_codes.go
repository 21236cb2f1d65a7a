package exitcodes

const (
	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// Exit codes 2-5 are left unused as several shells assign meanings to them.

	// ExitCodeCorruptArchive indicates an archive file could not be opened or decoded.
	ExitCodeCorruptArchive = 6

	// ExitCodeRecordNotFound indicates a requested path record does not exist.
	ExitCodeRecordNotFound = 7
)
