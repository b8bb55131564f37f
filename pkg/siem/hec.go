// pkg/siem/hec.go

// Package siem forwards canonical events to a Splunk HTTP Event Collector.
package siem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/capture"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/httpclient"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/sony/gobreaker"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config addresses the collector.
type Config struct {
	URL               string
	Token             string
	Index             string
	Sourcetype        string
	RequestsPerSecond float64
	InsecureTLS       bool
}

// payload is the HEC event envelope.
type payload struct {
	Event      capture.CanonicalEvent `json:"event"`
	Sourcetype string                 `json:"sourcetype,omitempty"`
	Index      string                 `json:"index,omitempty"`
}

// HECClient posts one event per request.
type HECClient struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// StatusError is a non-2xx collector response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector returned %d: %s", e.Code, e.Body)
}

// NewHECClient builds a client. A nil httpClient is built from cfg.
func NewHECClient(cfg Config, httpClient *http.Client) (*HECClient, error) {
	if cfg.URL == "" {
		return nil, honey_err.NewValidationError("siem.hec_url is not set")
	}
	if httpClient == nil {
		c, err := httpclient.New(httpclient.Config{Timeout: 10 * time.Second, InsecureTLS: cfg.InsecureTLS})
		if err != nil {
			return nil, err
		}
		httpClient = c
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}

	return &HECClient{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "splunk-hec",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

// SendEvents delivers events and returns how many the collector accepted.
// It fails only when no token is configured or when a non-empty batch had
// no event delivered.
func (c *HECClient) SendEvents(rc *honey_io.RuntimeContext, events []capture.CanonicalEvent) (int, error) {
	ctx, span := telemetry.Start(rc.Ctx, "siem.SendEvents", attribute.Int("events", len(events)))
	defer span.End()
	logger := otelzap.Ctx(rc.Ctx)

	if c.cfg.Token == "" {
		return 0, honey_err.NewNotConfiguredError("SIEM", "siem.token is empty",
			"Set siem.token in the configuration file or HONEYDASH_SIEM_TOKEN")
	}

	delivered := 0
	var lastErr error
	for _, ev := range events {
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.post(ctx, ev)
		})
		if err != nil {
			lastErr = err
			logger.Warn("Event not delivered",
				zap.String("protocol", ev.Protocol),
				zap.String("timestamp", ev.Timestamp),
				zap.Error(err))
			continue
		}
		delivered++
	}

	logger.Info("Forwarded events to SIEM",
		zap.Int("delivered", delivered),
		zap.Int("total", len(events)),
		zap.String("breaker", c.breaker.State().String()))

	if len(events) > 0 && delivered == 0 {
		return 0, honey_err.NewSystemError("no events were delivered to the SIEM", lastErr,
			"Check siem.hec_url, siem.token and that the collector is reachable")
	}
	return delivered, nil
}

func (c *HECClient) post(ctx context.Context, ev capture.CanonicalEvent) error {
	body, err := json.Marshal(payload{Event: ev, Sourcetype: c.cfg.Sourcetype, Index: c.cfg.Index})
	if err != nil {
		return cerr.Wrap(err, "encode event")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return cerr.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Splunk "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return cerr.Wrap(err, "post event")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
