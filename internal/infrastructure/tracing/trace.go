package tracing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arcreactor/workspace/internal/shared/id"
)

// Header carries the request id on the wire.
const Header = "X-Request-ID"

// Span is one traced request.
type Span struct {
	RequestID  string
	Name       string
	Service    string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer records spans to a logger.
type Tracer struct {
	service string
	logger  *zap.Logger
}

// New creates a tracer. A nil logger discards spans.
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{service: service, logger: logger}
}

// StartSpan opens a span for ctx's request id, minting one if ctx has none.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	reqID := RequestID(ctx)
	if reqID == "" {
		reqID = id.NewRequestID().String()
		ctx = WithRequestID(ctx, reqID)
	}

	span := &Span{
		RequestID: reqID,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}
	return span, ctx
}

// Finish stamps the span duration.
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// SetTag adds a tag to the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span.
func (s *Span) SetError(err error) {
	s.Error = err
}

// SetStatus sets the HTTP status code.
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Submit logs a finished span. Server errors log at warn, the rest at debug.
func (t *Tracer) Submit(span *Span) {
	fields := []zap.Field{
		zap.String("request_id", span.RequestID),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
		zap.Int("status", span.StatusCode),
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if span.Error != nil || span.StatusCode >= 500 {
		if span.Error != nil {
			fields = append(fields, zap.Error(span.Error))
		}
		t.logger.Warn("request failed", fields...)
		return
	}
	t.logger.Debug("request completed", fields...)
}

type contextKey struct{}

// WithRequestID returns ctx carrying the request id.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, contextKey{}, reqID)
}

// RequestID returns the request id carried by ctx, or "".
func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(contextKey{}).(string)
	return reqID
}

// FormatTrace formats a request id for human output.
func FormatTrace(reqID string) string {
	return fmt.Sprintf("[request:%s]", reqID)
}
