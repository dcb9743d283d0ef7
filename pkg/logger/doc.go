// Package logger builds configured *slog.Logger instances and provides
// attribute helpers shared across artkit packages.
//
// The factory defaults to JSON output at info level, suitable for log
// aggregation. Development setups usually want text output at debug level:
//
//	log := logger.New(
//	    logger.WithTextFormatter(),
//	    logger.WithLevel(slog.LevelDebug),
//	    logger.WithAttr(slog.String("service", "artkit")),
//	)
//
// Attribute helpers keep log field names consistent: logger.Error,
// logger.UserID, logger.Component and logger.Phone (which masks the
// number before it reaches any sink).
package logger
