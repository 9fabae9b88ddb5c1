package relay

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerForwardsRawQuery(t *testing.T) {
	var gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"books":[],"total_count":0}`))
	}))
	defer upstream.Close()

	handler := NewHandler(upstream.URL, upstream.Client(), nil, nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/books?topic=FICTION&title=a%20b&page=2", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if gotQuery != "topic=FICTION&title=a%20b&page=2" {
		t.Fatalf("query not forwarded verbatim: %s", gotQuery)
	}
	if recorder.Body.String() != `{"books":[],"total_count":0}` {
		t.Fatalf("body not passed through: %s", recorder.Body.String())
	}
	if recorder.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type: %s", recorder.Header().Get("Content-Type"))
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestHandlerPreflight(t *testing.T) {
	handler := NewHandler("http://127.0.0.1:1", nil, nil, nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodOptions, "/api/books", nil))

	if recorder.Code != http.StatusOK || recorder.Body.Len() != 0 {
		t.Fatalf("unexpected preflight response: %d %q", recorder.Code, recorder.Body.String())
	}
	if recorder.Header().Get("Access-Control-Allow-Methods") != "GET, OPTIONS" {
		t.Fatalf("unexpected methods header: %s", recorder.Header().Get("Access-Control-Allow-Methods"))
	}
	if recorder.Header().Get("Access-Control-Allow-Headers") != "Content-Type" {
		t.Fatalf("unexpected headers header: %s", recorder.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestHandlerUpstreamFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "status", status: http.StatusServiceUnavailable, body: `{}`, message: "API responded with status: 503"},
		{name: "not json", status: http.StatusOK, body: `<html></html>`, message: "API returned a body that is not JSON"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer upstream.Close()

			recorder := httptest.NewRecorder()
			NewHandler(upstream.URL, upstream.Client(), nil, nil).
				ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/books", nil))

			if recorder.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", recorder.Code)
			}
			var payload map[string]string
			if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if payload["error"] != "Failed to fetch from API" || payload["message"] != tc.message {
				t.Fatalf("unexpected error payload: %+v", payload)
			}
		})
	}
}

func TestHandlerTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	address := upstream.URL
	upstream.Close()

	recorder := httptest.NewRecorder()
	NewHandler(address, nil, nil, nil).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/books?page=1", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "Failed to fetch from API") {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
}

func TestServerRoutesAndShutdown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":1,"results":[]}`))
	}))
	defer upstream.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := NewServer(upstream.URL, upstream.Client(), nil)
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	base := "http://" + listener.Addr().String()
	for path, want := range map[string]string{
		"/health":          "OK",
		"/api/books?page=1": `{"count":1,"results":[]}`,
	} {
		response, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(response.Body)
		response.Body.Close()
		if string(body) != want {
			t.Fatalf("GET %s: unexpected body %q", path, body)
		}
	}

	response, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if !strings.Contains(string(body), "gutenberg_relay_requests_total") {
		t.Fatalf("metrics missing relay counter")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected shutdown error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
