package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Run completed, every overview sheet rotated
	ExitPartial       = 1 // Report published but at least one overview sheet failed
	ExitUserError     = 2 // Invalid arguments or configuration
	ExitNetworkError  = 3 // Network, authentication or vendor API failure
	ExitInternalError = 4 // Workbook or unexpected internal error
)
