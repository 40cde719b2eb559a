package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

const (
	// AggregateTypeResearcherSearch is the aggregate type for search events.
	AggregateTypeResearcherSearch = "researcher_search"

	// EventTypeSearchCompleted is emitted once per finished fetch.
	EventTypeSearchCompleted = "search.completed"

	// DefaultServiceName identifies this service in event metadata.
	DefaultServiceName = "researcher-lookup-service"
)

// Event is the envelope written to the message bus.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// SearchCompletedPayload describes a finished fetch.
type SearchCompletedPayload struct {
	SearchID    string `json:"search_id"`
	Area        string `json:"area"`
	MaxResults  int    `json:"max_results"`
	Preference  string `json:"preference"`
	SourceUsed  string `json:"source_used,omitempty"`
	FellBack    bool   `json:"fell_back"`
	Cached      bool   `json:"cached"`
	ResultCount int    `json:"result_count"`
	DurationMs  int64  `json:"duration_ms"`
}

// NewSearchCompletedPayload builds the payload from an audit record.
func NewSearchCompletedPayload(rec *domain.SearchRecord) SearchCompletedPayload {
	return SearchCompletedPayload{
		SearchID:    rec.ID.String(),
		Area:        rec.Area,
		MaxResults:  rec.MaxResults,
		Preference:  string(rec.Preference),
		SourceUsed:  string(rec.SourceUsed),
		FellBack:    rec.FellBack,
		Cached:      rec.Cached,
		ResultCount: rec.ResultCount,
		DurationMs:  rec.DurationMs,
	}
}

// EmitterConfig configures the Emitter with service context.
type EmitterConfig struct {
	// ServiceName identifies the source service.
	ServiceName string
}

// EmitParams contains the parameters for emitting an event.
type EmitParams struct {
	// AggregateID is the search ID.
	AggregateID string
	// EventType is the type of event (e.g., "search.completed").
	EventType string
	// Payload is the event payload that will be JSON-serialized.
	Payload interface{}
	// CorrelationID for request tracing (optional).
	CorrelationID string
}

// Emitter creates event envelopes enriched with service context.
type Emitter struct {
	config EmitterConfig
	now    func() time.Time
}

// NewEmitter creates a new Emitter with the given service configuration.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	return &Emitter{config: config, now: time.Now}
}

// Emit creates an Event from the given parameters.
func (e *Emitter) Emit(params EmitParams) (Event, error) {
	if params.AggregateID == "" {
		return Event{}, fmt.Errorf("aggregate_id is required")
	}
	if params.EventType == "" {
		return Event{}, fmt.Errorf("event_type is required")
	}

	payload, err := json.Marshal(params.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}

	return Event{
		EventID:       uuid.New().String(),
		EventType:     params.EventType,
		AggregateID:   params.AggregateID,
		AggregateType: AggregateTypeResearcherSearch,
		Source:        e.config.ServiceName,
		CorrelationID: params.CorrelationID,
		OccurredAt:    e.now().UTC(),
		Payload:       payload,
	}, nil
}

// EmitSearchCompleted is a convenience method for search.completed events.
func (e *Emitter) EmitSearchCompleted(rec *domain.SearchRecord, correlationID string) (Event, error) {
	if rec == nil {
		return Event{}, fmt.Errorf("search record is required")
	}
	return e.Emit(EmitParams{
		AggregateID:   rec.ID.String(),
		EventType:     EventTypeSearchCompleted,
		Payload:       NewSearchCompletedPayload(rec),
		CorrelationID: correlationID,
	})
}
