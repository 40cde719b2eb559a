// Package observability provides logging and metrics support for the
// researcher lookup service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Fetches derive a child logger carrying the search fields:
//
//	logger = observability.WithSearchContext(logger, searchID, area, "auto")
//	logger = observability.WithSourceContext(logger, "scholar")
//
// # Metrics
//
//	metrics := observability.NewMetrics("researcher_lookup")
//	metrics.RecordFetch("auto", len(records), elapsed.Seconds())
//	metrics.RecordSourceOutcome("serpapi", "empty", elapsed.Seconds())
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, correlationID)
//	ctx = observability.WithSearchID(ctx, searchID)
//
// # Standard Fields
//
//   - request_id: HTTP correlation identifier
//   - search_id: identifier of a single fetch
//   - area: research area being looked up
//   - preference: auto, scrape_only or api_only
//   - source: adapter name (scholar, serpapi)
//
// All components are safe for concurrent use from multiple goroutines.
package observability
