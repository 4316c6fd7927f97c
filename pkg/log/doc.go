/*
Package log wraps zerolog behind a small global logger with structured,
leveled output.

Init is called once at startup from the configuration; components take
child loggers via WithComponent so every line carries its origin:

	logger := log.WithComponent("reconciler")
	logger.Info().Str("dir", dir).Msg("rescan complete")

Console output is human-readable by default; JSON output is available for
log shippers.
*/
package log
