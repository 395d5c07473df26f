// Package cli implements the chartsync command line.
//
// Every command loads configuration through internal/config, logs with zap
// to stderr and writes its result through an OutputFormatter, so --format
// json yields exactly one JSON document on stdout.
//
// # Critical Patterns
//
// Commands return *ExitError. ExitCommandError (2) means the command could
// not run (configuration, unreadable input, unavailable store);
// ExitFailure (1) means it ran and the operation failed. The error code in
// the output is the apperr code of the underlying failure.
//
// The local store is opened lazily and closed when the command returns, so
// commands that only talk to the server never touch it.
package cli
