package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arcreactor/workspace/internal/infrastructure/monitoring"
	"github.com/arcreactor/workspace/internal/infrastructure/resilience"
	"github.com/arcreactor/workspace/internal/infrastructure/tracing"
)

// TokenSource yields the current bearer token, or "" for none.
type TokenSource interface {
	Token() string
}

// Options configures a Client. Zero values take the defaults noted.
type Options struct {
	BaseURL          string
	Timeout          time.Duration // 30s
	RetryMax         int           // 0 disables retries
	RetryWaitMin     time.Duration // 1s
	RetryWaitMax     time.Duration // 30s
	RequestsPerSec   float64       // <= 0 is unlimited
	BreakerThreshold uint32        // 5 consecutive failures
	BreakerTimeout   time.Duration // 30s
	PollInterval     time.Duration // 10s
	InitialPoll      time.Duration // 5s
	Tokens           TokenSource
	Logger           *zap.Logger
	Metrics          *monitoring.Metrics
}

// Client talks to the Arc REST API.
type Client struct {
	resty       *resty.Client
	limiter     *rate.Limiter
	breaker     *resilience.Breaker
	tokens      TokenSource
	logger      *zap.Logger
	metrics     *monitoring.Metrics
	poll        time.Duration
	initialPoll time.Duration
}

// NewClient creates a production-ready REST client.
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics(nil)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWaitMin == 0 {
		opts.RetryWaitMin = 1 * time.Second
	}
	if opts.RetryWaitMax == 0 {
		opts.RetryWaitMax = 30 * time.Second
	}
	if opts.BreakerThreshold == 0 {
		opts.BreakerThreshold = 5
	}
	if opts.BreakerTimeout == 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.InitialPoll == 0 {
		opts.InitialPoll = 5 * time.Second
	}

	// Retrying transport underneath resty
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = leveledLogger{opts.Logger.Named("retry").Sugar()}
	retryClient.CheckRetry = retryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "arc-workspace/1.0").
		SetJSONMarshaler(sonic.ConfigStd.Marshal).
		SetJSONUnmarshaler(sonic.ConfigStd.Unmarshal)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSec > 0 {
		burst := int(opts.RequestsPerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), burst)
	}

	logger := opts.Logger
	breaker := resilience.New("arc-api", resilience.Settings{
		Timeout:      opts.BreakerTimeout,
		ReadyToTrip:  resilience.ConsecutiveFailures(opts.BreakerThreshold),
		IsSuccessful: isBackendHealthy,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		resty:       restyClient,
		limiter:     limiter,
		breaker:     breaker,
		tokens:      opts.Tokens,
		logger:      logger,
		metrics:     opts.Metrics,
		poll:        opts.PollInterval,
		initialPoll: opts.InitialPoll,
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.resty.BaseURL
}

// Breaker exposes the circuit breaker state for status output.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

type call struct {
	method string
	route  string
	params map[string]string
	body   any
	out    any
}

// do runs one call through limiter, breaker and transport. route is the
// path template and doubles as the metrics label.
func (c *Client) do(ctx context.Context, cl call) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	timer := monitoring.NewTimer(c.metrics, cl.method, cl.route)
	status := "0"

	err := c.breaker.Do(func() error {
		req := c.resty.R().
			SetContext(ctx).
			SetHeader(tracing.Header, requestID(ctx)).
			SetError(&errorBody{})
		if c.tokens != nil {
			if token := c.tokens.Token(); token != "" {
				req.SetAuthToken(token)
			}
		}
		if cl.params != nil {
			req.SetPathParams(cl.params)
		}
		if cl.body != nil {
			req.SetBody(cl.body)
		}
		if cl.out != nil {
			req.SetResult(cl.out)
		}

		resp, err := req.Execute(cl.method, cl.route)
		if err != nil {
			return fmt.Errorf("%s %s: %w", cl.method, cl.route, err)
		}
		status = strconv.Itoa(resp.StatusCode())
		if resp.IsError() {
			return newAPIError(resp)
		}
		return nil
	})

	timer.Stop(status)
	if err != nil {
		c.metrics.RecordAPIError(cl.method, cl.route, errorType(err))
		c.logger.Debug("api call failed",
			zap.String("method", cl.method),
			zap.String("route", cl.route),
			zap.Error(err))
	}
	return err
}

// requestID returns the id carried by ctx, else a fresh one.
func requestID(ctx context.Context) string {
	if reqID := tracing.RequestID(ctx); reqID != "" {
		return reqID
	}
	return uuid.NewString()
}

// retryPolicy retries like the default policy but hands the last response
// back instead of an error so 5xx bodies still map to APIError.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	retry, checkErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	if resp != nil && ctx.Err() == nil {
		return retry, nil
	}
	return retry, checkErr
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
