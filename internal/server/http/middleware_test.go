package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/researcher-lookup-service/internal/observability"
)

func TestCorrelationIDMiddleware_UsesHeader(t *testing.T) {
	var captured string

	r := chi.NewRouter()
	r.Use(correlationIDMiddleware)
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		captured = observability.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if captured != "corr-123" {
		t.Errorf("expected correlation id corr-123 in context, got %q", captured)
	}
	if got := rr.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("expected response header corr-123, got %q", got)
	}
}

func TestCorrelationIDMiddleware_FallsBackToRequestID(t *testing.T) {
	var captured string

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(correlationIDMiddleware)
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		captured = observability.RequestIDFromContext(r.Context())
		if captured != middleware.GetReqID(r.Context()) {
			t.Errorf("expected chi request id, got %q", captured)
		}
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if captured == "" {
		t.Error("expected a generated correlation id")
	}
	if rr.Header().Get("X-Correlation-ID") != captured {
		t.Errorf("expected header to match context id %q", captured)
	}
}

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	r := chi.NewRouter()
	r.Use(correlationIDMiddleware)
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if got := rr.Header().Get("X-Correlation-ID"); len(got) != 16 {
		t.Errorf("expected 16 hex chars, got %q", got)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(logger))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside handler")
		w.Write([]byte("hello"))
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	req := httptest.NewRequest("GET", "/ok", nil)
	req.Header.Set("X-Correlation-ID", "corr-abc")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var handlerLine, accessLine map[string]any
	if err := json.Unmarshal(lines[0], &handlerLine); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if err := json.Unmarshal(lines[1], &accessLine); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if handlerLine["request_id"] != "corr-abc" {
		t.Errorf("expected request-scoped logger in context, got %v", handlerLine)
	}
	if accessLine["status"] != float64(200) || accessLine["bytes"] != float64(5) || accessLine["path"] != "/ok" {
		t.Errorf("unexpected access log: %v", accessLine)
	}
	if accessLine["level"] != "info" {
		t.Errorf("expected info level, got %v", accessLine["level"])
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/boom", nil))
	var errLine map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &errLine); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if errLine["level"] != "error" || errLine["status"] != float64(http.StatusBadGateway) {
		t.Errorf("expected error level for 5xx, got %v", errLine)
	}
}
