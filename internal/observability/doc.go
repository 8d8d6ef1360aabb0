// Package observability provides logging and metrics support for the
// profile service.
//
// # Logging
//
// Create a logger from configuration and derive component loggers:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = logger.With().Str("component", "refresher").Logger()
//	logger = observability.WithSessionContext(logger, sessionID)
//
// # Metrics
//
// Metrics are registered with promauto under a namespace. Every Record
// method is safe to call on a nil *Metrics, so components can run without
// metrics in tests.
//
//	metrics := observability.NewMetrics("profile_service")
//	metrics.RecordRefreshStarted("user")
//	metrics.RecordRefreshOutcome("success", time.Since(start).Seconds())
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithSessionID(ctx, sessionID)
//	logger = observability.LoggerFromContext(ctx, logger)
package observability
