// Package events follows a run's server-sent status stream.
package events

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/gin-contrib/sse"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcreactor/workspace/internal/api"
	"github.com/arcreactor/workspace/internal/infrastructure/tracing"
)

// Event names sent by the backend.
const (
	EventStatus = "status"
	EventDone   = "done"
)

// StatusEvent is the payload of both status and done events. Done events
// may carry "not_found" or "timeout" instead of a run status.
type StatusEvent struct {
	Status    api.RunStatus `json:"status"`
	Timestamp string        `json:"timestamp,omitempty"`
	Progress  *float64      `json:"progress,omitempty"`
}

// Handlers receive stream callbacks on the stream goroutine. Nil funcs are
// skipped.
type Handlers struct {
	OnStatus     func(StatusEvent)
	OnDone       func(StatusEvent)
	OnConnection func(connected bool)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Tokens  api.TokenSource
	Logger  *zap.Logger
}

// Client opens run event streams.
type Client struct {
	resty  *resty.Client
	tokens api.TokenSource
	logger *zap.Logger
}

// NewClient creates an event stream client. Streams have no overall
// timeout; they end on done, on Close or when the context ends.
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		resty: resty.New().
			SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
			SetHeader("Accept", "text/event-stream").
			SetHeader("Cache-Control", "no-cache"),
		tokens: opts.Tokens,
		logger: opts.Logger,
	}
}

// Stream is one open subscription.
type Stream struct {
	connected atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// IsConnected reports whether the stream is currently open.
func (s *Stream) IsConnected() bool {
	return s.connected.Load()
}

// Done is closed when the stream ends.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns why the stream ended. It is nil after a done event or Close.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the stream and waits for its goroutine.
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}

// Subscribe opens GET /runs/{id}/events in the background.
func (c *Client) Subscribe(ctx context.Context, runID string, h Handlers) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()

		err := c.run(ctx, runID, s, h)
		if s.connected.Swap(false) && h.OnConnection != nil {
			h.OnConnection(false)
		}
		if err != nil && ctx.Err() == nil {
			c.logger.Warn("run event stream failed", zap.String("run_id", runID), zap.Error(err))
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()
	return s
}

var errDone = errors.New("stream done")

func requestID(ctx context.Context) string {
	if reqID := tracing.RequestID(ctx); reqID != "" {
		return reqID
	}
	return uuid.NewString()
}

func (c *Client) run(ctx context.Context, runID string, s *Stream, h Handlers) error {
	req := c.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader(tracing.Header, requestID(ctx)).
		SetPathParam("id", runID)
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.SetAuthToken(token)
		}
	}

	resp, err := req.Get("/runs/{id}/events")
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= http.StatusBadRequest {
		return &api.APIError{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	}

	s.connected.Store(true)
	if h.OnConnection != nil {
		h.OnConnection(true)
	}

	err = readBlocks(body, func(block []byte) error {
		return c.dispatch(block, h)
	})
	if errors.Is(err, errDone) {
		return nil
	}
	return err
}

func (c *Client) dispatch(block []byte, h Handlers) error {
	evs, _ := sse.Decode(bytes.NewReader(block))

	for _, ev := range evs {
		data, _ := ev.Data.(string)
		switch ev.Event {
		case EventStatus:
			var status StatusEvent
			if err := sonic.UnmarshalString(data, &status); err != nil {
				c.logger.Debug("ignoring malformed status event", zap.Error(err))
				continue
			}
			if h.OnStatus != nil {
				h.OnStatus(status)
			}
		case EventDone:
			var status StatusEvent
			_ = sonic.UnmarshalString(data, &status)
			if h.OnDone != nil {
				h.OnDone(status)
			}
			return errDone
		}
	}
	return nil
}

// readBlocks splits an event stream into blank-line separated blocks.
func readBlocks(r io.Reader, fn func([]byte) error) error {
	br := bufio.NewReader(r)
	var block bytes.Buffer

	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimRight(line, "\r\n")
			if len(line) == 0 {
				if block.Len() > 0 {
					if ferr := fn(block.Bytes()); ferr != nil {
						return ferr
					}
					block.Reset()
				}
			} else {
				block.Write(line)
				block.WriteByte('\n')
			}
		}
		if err != nil {
			if block.Len() > 0 {
				if ferr := fn(block.Bytes()); ferr != nil {
					return ferr
				}
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
