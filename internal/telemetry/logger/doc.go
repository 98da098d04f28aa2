// Package logger provides structured logging for arclink-go.
//
// Loggers wrap log/slog with text or JSON output. Passwords and DCID
// passphrases are masked in attributes, and USER protocol lines keep
// only the user name. A request cycle carries its logger and
// correlation id on the context so that protocol traces of the cycle
// share the request_id attribute.
package logger
