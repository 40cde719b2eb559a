// Package events publishes domain events about researcher lookups.
//
// After every fetch the lookup service emits a search.completed event.
// Events are JSON envelopes keyed by the search ID and written to Kafka
// with segmentio/kafka-go; when Kafka is disabled a no-op publisher is used.
//
// Publishing is best effort: callers log failures and never let them
// affect the fetch result.
package events
