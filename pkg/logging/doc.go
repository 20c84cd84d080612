// Package logging provides structured logging utilities for the recipe runner.
//
// # Overview
//
// This package wraps the standard library slog package with project-specific defaults
// and conventions for consistent logging across all components. It supports
// environment-based log level configuration, module/version context injection,
// and automatic source location tracking for debug logs.
//
// # Features
//
//   - Structured JSON logging to stderr
//   - Environment-based log level configuration (LOG_LEVEL)
//   - Automatic module and version context
//   - Source location tracking for debug logs
//   - Flexible log level parsing
//   - Integration with standard library log package
//
// # Log Levels
//
// Supported log levels (case-insensitive):
//   - DEBUG: Detailed diagnostic information with source location
//   - INFO: General informational messages (default)
//   - WARN/WARNING: Warning messages for potentially problematic situations
//   - ERROR: Error messages for failures requiring attention
//
// # Usage
//
// Setting the default logger (recommended):
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("avsrecipe", "v1.0.0")
//	    defer slog.Info("application started")
//
//	    // Use slog as normal
//	    slog.Info("processing request", "id", "req-123")
//	    slog.Debug("detailed state", "data", complexObject)
//	    slog.Error("operation failed", "error", err)
//	}
//
// Creating a custom logger:
//
//	logger := logging.NewStructuredLogger("avsrecipe", "v2.0.0", "debug")
//	logger.Info("phase started", "phase", "source")
//
// Setting explicit log level:
//
//	logging.SetDefaultStructuredLoggerWithLevel("avsrecipe", "v1.0.0", "warn")
//
// Converting standard library logger:
//
//	stdLogger := logging.NewLogLogger(slog.LevelInfo, false)
//	stdLogger.Println("legacy log message")
//
// # Environment Configuration
//
// The LOG_LEVEL environment variable controls logging verbosity:
//
//	LOG_LEVEL=debug avsrecipe create --version 1.26.0
//	LOG_LEVEL=error avsrecipe package
//
// If LOG_LEVEL is not set, defaults to INFO level.
//
// # Output Format
//
// All logs are written to stderr in JSON format:
//
//	{
//	    "time": "2025-01-15T10:30:00.123Z",
//	    "level": "INFO",
//	    "msg": "phase completed",
//	    "module": "avsrecipe",
//	    "version": "v1.0.0",
//	    "phase": "source"
//	}
//
// Debug logs include source location:
//
//	{
//	    "time": "2025-01-15T10:30:00.123Z",
//	    "level": "DEBUG",
//	    "source": {
//	        "function": "pipeline.(*Pipeline).Build",
//	        "file": "pipeline.go",
//	        "line": 45
//	    },
//	    "msg": "configure definitions",
//	    "module": "avsrecipe",
//	    "version": "v1.0.0"
//	}
//
// # Best Practices
//
// 1. Set default logger early in main():
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("avsrecipe", version)
//	    // ...
//	}
//
// 2. Include context in log messages:
//
//	slog.Info("phase completed",
//	    "phase", "package",
//	    "duration_sec", 12.5,
//	)
//
// 3. Use appropriate log levels:
//
//	slog.Debug("cache hit", "path", p)   // Development/troubleshooting
//	slog.Info("applying patch")         // Normal operations
//	slog.Warn("no patches found")       // Potential issues
//	slog.Error("cmake failed")          // Errors requiring action
//
// 4. Log errors with context:
//
//	slog.Error("phase failed",
//	    "error", err,
//	    "phase", phase,
//	    "build_id", id,
//	)
//
// # Integration
//
// This package is used by:
//   - pkg/cli - CLI command logging
//   - pkg/pipeline - phase logging
//   - pkg/source, pkg/patch, pkg/cmake - step logging
//
// All components share consistent logging format and configuration.
package logging
