package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/HeadlineHub/internal/logger"
)

func newTestClient(retries int, base time.Duration) (*Client, *[]time.Duration) {
	c := New(Options{
		Timeout:     2 * time.Second,
		MaxRetries:  retries,
		BackoffBase: base,
		Logger:      logger.Discard(),
	})
	var slept []time.Duration
	c.SetSleep(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})
	return c, &slept
}

func TestFetchSucceedsOnThirdAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<html>ok</html>")
	}))
	defer srv.Close()

	c, slept := newTestClient(3, 100*time.Millisecond)
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if body != "<html>ok</html>" {
		t.Fatalf("body = %q", body)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	// 退避序列：base*2^0, base*2^1
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != len(want) {
		t.Fatalf("slept = %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Fatalf("slept[%d] = %s, want %s", i, (*slept)[i], want[i])
		}
	}
}

func TestFetchExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, slept := newTestClient(2, time.Millisecond)
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if !errors.Is(err, ErrUnexpectedStatusCode) {
		t.Fatalf("err = %v, want to wrap ErrUnexpectedStatusCode", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	// 最后一次失败后不再等待
	if len(*slept) != 1 {
		t.Fatalf("sleep count = %d, want 1", len(*slept))
	}
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c, _ := newTestClient(1, 0)
	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	for _, h := range []string{"User-Agent", "Accept", "Accept-Language", "Referer"} {
		if got.Get(h) == "" {
			t.Errorf("header %s missing", h)
		}
	}
	if got.Get("User-Agent") != DefaultUserAgent {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
}

func TestWarmUpKeepsCookiesAndIgnoresFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		fmt.Fprint(w, "home")
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err != nil || ck.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "feed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := newTestClient(1, 0)
	c.WarmUp(context.Background(), "http://127.0.0.1:1/unreachable")
	c.WarmUp(context.Background(), srv.URL+"/")
	body, err := c.Fetch(context.Background(), srv.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Fetch after warm-up error: %v", err)
	}
	if body != "feed" {
		t.Fatalf("body = %q, want feed", body)
	}
}

func TestFetchRespectsRobots(t *testing.T) {
	var articleHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /api/\n")
	})
	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&articleHits, 1)
		fmt.Fprint(w, "secret")
	})
	mux.HandleFunc("/news/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "article")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Options{MaxRetries: 1, RespectRobots: true, Logger: logger.Discard()})
	if _, err := c.Fetch(context.Background(), srv.URL+"/api/data"); !errors.Is(err, ErrDisallowed) {
		t.Fatalf("err = %v, want ErrDisallowed", err)
	}
	if articleHits != 0 {
		t.Fatalf("disallowed path was requested %d times", articleHits)
	}
	if body, err := c.Fetch(context.Background(), srv.URL+"/news/1"); err != nil || body != "article" {
		t.Fatalf("allowed fetch = %q, %v", body, err)
	}
}

func TestFetchStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Options{MaxRetries: 5, BackoffBase: time.Hour, Logger: logger.Discard()})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := c.Fetch(ctx, srv.URL); err == nil {
		t.Fatalf("Fetch returned nil error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("Fetch did not honor context cancellation")
	}
}
