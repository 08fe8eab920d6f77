// Package logging provides structured logging configuration for sandboxd.
//
// This package wraps log/slog so every component logs the same way. Components
// accept a *slog.Logger in their constructor or via a setter; when none is
// supplied they use logging.Nop().
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//	logger.Info("server started", "port", 4300)
//
// A Ring handler keeps the most recent records in memory so the admin API can
// show them without a log shipper. Set Config.Ring and New feeds it alongside
// the normal output.
package logging
