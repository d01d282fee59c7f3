package fetcher_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/webxcore/webx/internal/fetcher"
	"github.com/webxcore/webx/internal/logging"
	"github.com/webxcore/webx/pkg/failure"
)

func newTestFetcher() fetcher.HtmlFetcher {
	return fetcher.NewHtmlFetcher(logging.New(io.Discard, logging.LevelDebug))
}

func TestHtmlFetcher_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello World</body></html>"))
	}))
	defer server.Close()

	f := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	param := fetcher.NewFetchParam(*fetchUrl, "test-user-agent")

	result, err := f.Fetch(context.Background(), param)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Code() != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, result.Code())
	}
	if string(result.Body()) != "<html><body>Hello World</body></html>" {
		t.Errorf("unexpected body: %s", string(result.Body()))
	}
}

func TestHtmlFetcher_Fetch_NonHTMLContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "not html"}`))
	}))
	defer server.Close()

	f := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	param := fetcher.NewFetchParam(*fetchUrl, "test-user-agent")

	_, err := f.Fetch(context.Background(), param)
	if err == nil {
		t.Fatal("expected error for non-HTML content, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.IsRetryable() {
		t.Error("expected non-retryable error for invalid content type")
	}
}

func TestHtmlFetcher_Fetch_HTTP404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	param := fetcher.NewFetchParam(*fetchUrl, "test-user-agent")

	_, err := f.Fetch(context.Background(), param)
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.IsRetryable() {
		t.Error("expected non-retryable error for 404")
	}
}

func TestHtmlFetcher_Fetch_HTTP403(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	param := fetcher.NewFetchParam(*fetchUrl, "test-user-agent")

	_, err := f.Fetch(context.Background(), param)
	if err == nil {
		t.Fatal("expected error for 403, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.IsRetryable() {
		t.Error("expected non-retryable error for 403")
	}
}

func TestHtmlFetcher_Fetch_HTTP500_Retryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	param := fetcher.NewFetchParam(*fetchUrl, "test-user-agent")

	_, err := f.Fetch(context.Background(), param)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if !fetchErr.IsRetryable() {
		t.Error("expected retryable error for 500, so the queue-level backoff in internal/store can requeue it")
	}
}

func TestHtmlFetcher_Fetch_HTTP429_Retryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	param := fetcher.NewFetchParam(*fetchUrl, "test-user-agent")

	_, err := f.Fetch(context.Background(), param)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if !fetchErr.IsRetryable() {
		t.Error("expected retryable error for 429")
	}
}

func TestHtmlFetcher_FetchResult_Accessors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Custom-Header", "test-value")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>Test</html>"))
	}))
	defer server.Close()

	f := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	param := fetcher.NewFetchParam(*fetchUrl, "test-user-agent")

	result, err := f.Fetch(context.Background(), param)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resultURL := result.URL()
	if resultURL.String() != fetchUrl.String() {
		t.Errorf("expected URL %s, got %s", fetchUrl.String(), resultURL.String())
	}
	if result.Code() != http.StatusOK {
		t.Errorf("expected code %d, got %d", http.StatusOK, result.Code())
	}

	expectedSize := uint64(len("<html>Test</html>"))
	if result.SizeByte() != expectedSize {
		t.Errorf("expected size %d, got %d", expectedSize, result.SizeByte())
	}

	headers := result.Headers()
	if headers["Content-Type"] != "text/html; charset=utf-8" {
		t.Errorf("unexpected Content-Type header: %s", headers["Content-Type"])
	}
	if headers["X-Custom-Header"] != "test-value" {
		t.Errorf("unexpected X-Custom-Header: %s", headers["X-Custom-Header"])
	}
}

func TestFetchError_Classification(t *testing.T) {
	tests := []struct {
		name            string
		statusCode      int
		contentType     string
		expectRetryable bool
	}{
		{"500 Internal Server Error - retryable", http.StatusInternalServerError, "text/html", true},
		{"502 Bad Gateway - retryable", http.StatusBadGateway, "text/html", true},
		{"503 Service Unavailable - retryable", http.StatusServiceUnavailable, "text/html", true},
		{"400 Bad Request - not retryable", http.StatusBadRequest, "text/html", false},
		{"401 Unauthorized - not retryable", http.StatusUnauthorized, "text/html", false},
		{"403 Forbidden - not retryable", http.StatusForbidden, "text/html", false},
		{"404 Not Found - not retryable", http.StatusNotFound, "text/html", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			f := newTestFetcher()
			fetchUrl, _ := url.Parse(server.URL)
			param := fetcher.NewFetchParam(*fetchUrl, "test-user-agent")

			_, err := f.Fetch(context.Background(), param)
			if err == nil {
				t.Fatal("expected error")
			}

			var fetchErr *fetcher.FetchError
			if errors.As(err, &fetchErr) {
				if fetchErr.IsRetryable() != tt.expectRetryable {
					t.Errorf("expected retryable=%v, got retryable=%v", tt.expectRetryable, fetchErr.IsRetryable())
				}
			}
		})
	}
}

func TestHtmlFetcher_FetchError_Severity(t *testing.T) {
	err := &fetcher.FetchError{Message: "test error", Retryable: true, Cause: fetcher.ErrCauseNetworkFailure}

	var classifiedErr failure.ClassifiedError = err
	if classifiedErr.Severity() != failure.SeverityRecoverable {
		t.Errorf("expected SeverityRecoverable for retryable error, got %s", classifiedErr.Severity())
	}

	nonRetryableErr := &fetcher.FetchError{Message: "test error", Retryable: false, Cause: fetcher.ErrCauseContentTypeInvalid}
	classifiedErr = nonRetryableErr
	if classifiedErr.Severity() != failure.SeverityFatal {
		t.Errorf("expected SeverityFatal for non-retryable error, got %s", classifiedErr.Severity())
	}
}

func TestHtmlFetcher_Fetch_ReadResponseBodyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("response writer does not support hijacking")
		}
		conn, bufrw, err := hj.Hijack()
		if err != nil {
			t.Fatal("hijack failed:", err)
		}
		defer conn.Close()

		headers := "HTTP/1.1 200 OK\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"Content-Length: 100\r\n" +
			"\r\n"
		bufrw.WriteString(headers)
		bufrw.WriteString("partial")
		bufrw.Flush()
		conn.Close()
	}))
	defer server.Close()

	f := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	param := fetcher.NewFetchParam(*fetchUrl, "test-user-agent")

	_, err := f.Fetch(context.Background(), param)
	if err == nil {
		t.Fatal("expected error for read response body failure, got nil")
	}

	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fetchErr.Cause != fetcher.ErrCauseReadResponseBodyError {
		t.Errorf("expected cause %q, got %q", fetcher.ErrCauseReadResponseBodyError, fetchErr.Cause)
	}
}
