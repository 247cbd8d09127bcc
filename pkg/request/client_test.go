package request

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smalyshev/TabulistBot/pkg/tracker"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.BaseDelay == 0 {
		opts.BaseDelay = 10 * time.Millisecond
	}
	c, err := New(tracker.New(), opts)
	require.NoError(t, err)
	return c
}

func TestGet_Sequential(t *testing.T) {
	var conc int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&conc, 1)
		defer atomic.AddInt32(&conc, -1)

		if current > 1 {
			t.Errorf("Concurrency detected! Expected sequential.")
		}
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	}))
	defer svr.Close()

	client := newTestClient(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(context.Background(), svr.URL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	host, _ := url.Parse(svr.URL)
	assert.Equal(t, int64(3), client.Tracker().Snapshot()[host.Host].APISuccess)
}

func TestGet_Retry(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(429)
			return
		}
		w.WriteHeader(200)
		_, _ = w.Write([]byte("success"))
	}))
	defer svr.Close()

	client := newTestClient(t, Options{})

	body, err := client.Get(context.Background(), svr.URL)
	require.NoError(t, err)
	assert.Equal(t, "success", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	host, _ := url.Parse(svr.URL)
	assert.Equal(t, int64(2), client.Tracker().Snapshot()[host.Host].APIRetries)
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(404)
	}))
	defer svr.Close()

	client := newTestClient(t, Options{})

	_, err := client.Get(context.Background(), svr.URL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestGet_MaxRetriesExceeded(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer svr.Close()

	client := newTestClient(t, Options{MaxAttempts: 2})

	_, err := client.Get(context.Background(), svr.URL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.Code)
}

func TestPost_BodyResentOnRetry(t *testing.T) {
	var attempts int32
	var bodies []string
	var mu sync.Mutex
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(502)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer svr.Close()

	client := newTestClient(t, Options{})

	form := url.Values{"action": {"edit"}}
	_, err := client.PostForm(context.Background(), svr.URL, form, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"action=edit", "action=edit"}, bodies)
}

func TestHeaders(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/sparql-results+json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer svr.Close()

	client := newTestClient(t, Options{UserAgent: "test-agent/1.0"})

	_, err := client.GetWithHeaders(context.Background(), svr.URL, map[string]string{"Accept": "application/sparql-results+json"})
	require.NoError(t, err)
}

func TestCookies(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("session")
		if err != nil {
			w.WriteHeader(403)
			return
		}
		_, _ = w.Write([]byte(c.Value))
	}))
	defer svr.Close()

	client := newTestClient(t, Options{Cookies: true})

	_, err := client.Get(context.Background(), svr.URL+"/login")
	require.NoError(t, err)
	body, err := client.Get(context.Background(), svr.URL+"/edit")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(body))
}

func TestGet_ContextCanceled(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer svr.Close()

	client := newTestClient(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, svr.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
