package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fetchKind(t *testing.T, err error) ErrorKind {
	t.Helper()
	var ce *CrawlError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *CrawlError, got %T: %v", err, err)
	}
	return ce.Kind
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "TestCrawl/1.0" {
			t.Errorf("Unexpected User-Agent: %q", ua)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	client := NewHTTPClient("TestCrawl/1.0", 5*time.Second)
	defer client.Close()

	res, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", res.StatusCode)
	}
	if len(res.Body) == 0 {
		t.Error("Expected non-empty body")
	}
	if res.Latency <= 0 {
		t.Error("Expected positive latency")
	}
}

func TestFetchClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"NotFound", http.StatusNotFound, ErrKindClient},
		{"Forbidden", http.StatusForbidden, ErrKindClient},
		{"InternalError", http.StatusInternalServerError, ErrKindServer},
		{"BadGateway", http.StatusBadGateway, ErrKindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("error page"))
			}))
			defer server.Close()

			client := NewHTTPClient("TestCrawl/1.0", 5*time.Second)
			defer client.Close()

			_, err := client.Fetch(context.Background(), server.URL)
			if err == nil {
				t.Fatalf("Expected failure for status %d", tt.status)
			}
			if kind := fetchKind(t, err); kind != tt.kind {
				t.Errorf("Status %d: expected kind %s, got %s", tt.status, tt.kind, kind)
			}
		})
	}
}

func TestFetchEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient("TestCrawl/1.0", 5*time.Second)
	defer client.Close()

	_, err := client.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected failure for empty body")
	}
	if kind := fetchKind(t, err); kind != ErrKindEmptyBody {
		t.Errorf("Expected empty_body kind, got %s", kind)
	}
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	client := NewHTTPClient("TestCrawl/1.0", 50*time.Millisecond)
	defer client.Close()

	_, err := client.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected timeout failure")
	}
	if kind := fetchKind(t, err); kind != ErrKindTimeout {
		t.Errorf("Expected timeout kind, got %s", kind)
	}
}

func TestFetchMalformedURL(t *testing.T) {
	client := NewHTTPClient("TestCrawl/1.0", 5*time.Second)
	defer client.Close()

	for _, raw := range []string{"not-a-url", "://missing-scheme", ""} {
		_, err := client.Fetch(context.Background(), raw)
		if err == nil {
			t.Errorf("Expected failure for %q", raw)
			continue
		}
		if kind := fetchKind(t, err); kind != ErrKindBadURL {
			t.Errorf("%q: expected bad_url kind, got %s", raw, kind)
		}
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	client := NewHTTPClient("TestCrawl/1.0", 2*time.Second)
	defer client.Close()

	// Reserved port with nothing listening.
	_, err := client.Fetch(context.Background(), "http://127.0.0.1:1/none")
	if err == nil {
		t.Fatal("Expected connection failure")
	}
	if kind := fetchKind(t, err); kind != ErrKindNetwork {
		t.Errorf("Expected network kind, got %s", kind)
	}
}
