package main

// Exit codes shared by all subcommands.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing credentials, bad dates)
	ExitGraphError  = 3 // Graph store unreachable or persistently failing
	ExitAPIError    = 4 // External API error that exhausted retries
)
