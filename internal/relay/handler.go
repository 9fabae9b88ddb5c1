package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultUpstream = "http://13.126.242.247/api/v1/books"
	failureTitle    = "Failed to fetch from API"
	upstreamTimeout = 30 * time.Second
	maxBodyBytes    = 8 << 20
)

// Handler forwards listing queries to the upstream API and adds permissive
// CORS headers so browser clients served over https can reach a plain-http
// upstream.
type Handler struct {
	upstream   string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *Metrics
}

func NewHandler(upstream string, httpClient *http.Client, logger *zap.Logger, metrics *Metrics) *Handler {
	upstream = strings.TrimRight(strings.TrimSpace(upstream), "?")
	if upstream == "" {
		upstream = DefaultUpstream
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: upstreamTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{upstream: upstream, httpClient: httpClient, logger: logger, metrics: metrics}
}

func (handler *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		handler.metrics.requestsTotal.WithLabelValues(r.Method, "200").Inc()
		return
	}

	target := handler.targetURL(r.URL.RawQuery)
	handler.logger.Info("proxying request", zap.String("url", target))

	started := time.Now()
	body, err := handler.forward(r.Context(), target)
	if err != nil {
		handler.metrics.upstreamDuration.WithLabelValues("error").Observe(time.Since(started).Seconds())
		handler.logger.Error("proxy error", zap.String("url", target), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   failureTitle,
			"message": err.Error(),
		})
		handler.metrics.requestsTotal.WithLabelValues(r.Method, "500").Inc()
		return
	}
	handler.metrics.upstreamDuration.WithLabelValues("ok").Observe(time.Since(started).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		handler.logger.Debug("client went away", zap.Error(err))
	}
	handler.metrics.requestsTotal.WithLabelValues(r.Method, "200").Inc()
}

func (handler *Handler) targetURL(rawQuery string) string {
	if rawQuery == "" {
		return handler.upstream
	}
	separator := "?"
	if strings.Contains(handler.upstream, "?") {
		separator = "&"
	}
	return handler.upstream + separator + rawQuery
}

func (handler *Handler) forward(ctx context.Context, target string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := handler.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, errors.New("API responded with status: " + strconv.Itoa(response.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("API response larger than %d bytes", maxBodyBytes)
	}
	if !json.Valid(body) {
		return nil, errors.New("API returned a body that is not JSON")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
