package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nadzzz/saathi/internal/metrics"
)

// Remote posts requests as JSON to the device action endpoint.
type Remote struct {
	endpoint string
	token    string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewRemote creates a Remote dispatcher. httpClient and cb may be nil.
func NewRemote(endpoint, token string, httpClient *http.Client, cb *gobreaker.CircuitBreaker, logger *slog.Logger) *Remote {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{
		endpoint: endpoint,
		token:    token,
		client:   httpClient,
		breaker:  cb,
		logger:   logger.With("component", "dispatch"),
	}
}

// Dispatch sends req and decodes the endpoint's Result.
func (r *Remote) Dispatch(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	logger := r.logger.With("intent", req.Intent.String(), "confirmed", req.Confirmed)

	var (
		res Result
		err error
	)
	if r.breaker == nil {
		res, err = r.send(ctx, req)
	} else {
		var out any
		out, err = r.breaker.Execute(func() (any, error) {
			return r.send(ctx, req)
		})
		if err == nil {
			res = out.(Result)
		}
	}

	if err != nil {
		metrics.DispatchTotal.WithLabelValues("error").Inc()
		logger.Error("dispatch failed", "error", err, "duration", time.Since(start))
		return Result{}, err
	}

	metrics.DispatchTotal.WithLabelValues(resultLabel(res)).Inc()
	logger.Info("dispatch complete", "success", res.Success, "duration", time.Since(start))
	return res, nil
}

func (r *Remote) send(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshalling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode < 500 {
			// Refused by the endpoint: a failed action, not an outage.
			r.logger.Warn("dispatch rejected", "status", resp.StatusCode, "body", string(msg))
			return Result{Success: false}, nil
		}
		return Result{}, fmt.Errorf("dispatch request: status %d: %s", resp.StatusCode, msg)
	}

	var res Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decoding result: %w", err)
	}
	return res, nil
}

func resultLabel(r Result) string {
	switch {
	case r.RequiresPermission:
		return "permission"
	case r.RequiresConfirmation:
		return "confirmation"
	case r.Success:
		return "success"
	default:
		return "failure"
	}
}
