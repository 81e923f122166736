// Package logging configures log/slog for the claimrag CLI.
//
// Library packages never build their own handlers; they log through
// slog.Default(). The CLI calls Setup once: with --debug, JSON logs are
// written to ~/.claimrag/logs/claimrag.log (size-rotated) as well as stderr.
// Without it only warnings and errors reach stderr.
package logging
