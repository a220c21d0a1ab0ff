package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/id"
)

// HeaderRequestID carries the request ID in both directions
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLen bounds client supplied IDs
const maxRequestIDLen = 64

// Span is one traced admin request
type Span struct {
	RequestID id.RequestID
	Name      string
	Method    string
	Start     time.Time
	Duration  time.Duration
	Status    int
}

// Tracer writes finished spans to the log
type Tracer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{logger: logger.Named("trace")}
}

// StartSpan opens a span and stores its request ID in ctx
func (t *Tracer) StartSpan(ctx context.Context, rid id.RequestID, method, name string) (*Span, context.Context) {
	if rid == "" {
		rid = id.NewRequestID()
	}
	span := &Span{
		RequestID: rid,
		Name:      name,
		Method:    method,
		Start:     time.Now(),
	}
	return span, WithRequestID(ctx, rid)
}

// Finish closes the span with the response status and logs it
func (t *Tracer) Finish(span *Span, status int) {
	span.Duration = time.Since(span.Start)
	span.Status = status

	fields := []zap.Field{
		zap.Stringer("request_id", span.RequestID),
		zap.String("method", span.Method),
		zap.String("path", span.Name),
		zap.Int("status", status),
		zap.Duration("duration", span.Duration),
	}
	if status >= 500 {
		t.logger.Warn("admin request failed", fields...)
		return
	}
	t.logger.Debug("admin request", fields...)
}

type contextKey struct{}

// WithRequestID returns a context carrying rid
func WithRequestID(ctx context.Context, rid id.RequestID) context.Context {
	return context.WithValue(ctx, contextKey{}, rid)
}

// RequestID extracts the request ID from ctx
func RequestID(ctx context.Context) (id.RequestID, bool) {
	rid, ok := ctx.Value(contextKey{}).(id.RequestID)
	return rid, ok
}

// sanitize accepts a client supplied ID made of printable ASCII only
func sanitize(raw string) id.RequestID {
	if raw == "" || len(raw) > maxRequestIDLen {
		return ""
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] <= ' ' || raw[i] > '~' {
			return ""
		}
	}
	return id.RequestID(raw)
}
