package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		Delay:         time.Millisecond,
		MaxContentLen: 10000,
		Retries:       0,
	}
}

func TestFetch_StripsBoilerplate(t *testing.T) {
	t.Parallel()

	page := `<html><head>
<title>Hanoi Activewear</title>
<script>var x = 1;</script>
<style>body { color: red; }</style>
</head><body>
<nav>Home | About | Contact</nav>
<header>Site banner</header>
<h1>Hanoi Activewear Manufacturing</h1>
<p>OEM sportswear manufacturer.</p>

<p>MOQ: 500 units</p>
<footer>Copyright 2024</footer>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	f := New(fastConfig())
	text, err := f.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "Hanoi Activewear Manufacturing\nOEM sportswear manufacturer.\nMOQ: 500 units", text)
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Home | About")
	assert.NotContains(t, text, "Copyright")
}

func TestFetch_TruncatesLongContent(t *testing.T) {
	t.Parallel()

	body := "<html><body><p>" + strings.Repeat("manufacturer detail ", 1000) + "</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxContentLen = 200
	f := New(cfg)

	text, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(text, truncationMarker))
	assert.Len(t, text, 200+len(truncationMarker))
}

func TestFetch_TruncationKeepsRuneBoundary(t *testing.T) {
	t.Parallel()

	// 199 ASCII bytes followed by three-byte runes puts the cut inside a rune.
	body := "<html><body><p>" + strings.Repeat("x", 199) + strings.Repeat("制", 100) + "</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxContentLen = 200
	f := New(cfg)

	text, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, strings.Repeat("x", 199)+truncationMarker, text)
}

func TestFetch_RetriesWithAlternateUserAgent(t *testing.T) {
	t.Parallel()

	var agents []string
	var mu atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := mu.Add(1)
		agents = append(agents, r.Header.Get("User-Agent"))
		if n == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("<html><body><p>welcome</p></body></html>"))
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.Retries = 1
	f := New(cfg)

	text, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "welcome", text)
	require.Len(t, agents, 2)
	assert.NotEqual(t, agents[0], agents[1])
	assert.Contains(t, agents[1], "Windows NT")
}

func TestFetch_ErrorAfterRetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.Retries = 1
	f := New(cfg)

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_EmptyPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><script>only();</script></body></html>"))
	}))
	defer srv.Close()

	f := New(fastConfig())
	_, err := f.Fetch(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

func TestFetch_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(fastConfig())
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, time.Second, cfg.Delay)
	assert.Equal(t, 10000, cfg.MaxContentLen)
}
