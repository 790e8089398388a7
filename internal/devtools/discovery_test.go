package devtools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilcast/vidprobe-cli/internal/config"
)

func chromeConfigFor(t *testing.T, server *httptest.Server) config.ChromeConfig {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return config.ChromeConfig{
		Host:        u.Hostname(),
		Port:        port,
		HTTPTimeout: 2 * time.Second,
	}
}

func TestListTargets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/list", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"A","type":"page","title":"New Tab","url":"chrome://newtab/","webSocketDebuggerUrl":"ws://h/devtools/page/A"},
			{"id":"B","type":"page","title":"Watch","url":"https://target.example/watch/42","webSocketDebuggerUrl":"ws://h/devtools/page/B"}
		]`))
	}))
	defer server.Close()

	d := NewDiscovery(chromeConfigFor(t, server), testLogger(t))
	targets, err := d.ListTargets(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "B", targets[1].ID)
	assert.Equal(t, "ws://h/devtools/page/B", targets[1].WebSocketDebuggerURL)
}

func TestListTargetsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // nothing listening anymore

	d := NewDiscovery(chromeConfigFor(t, server), testLogger(t))
	_, err := d.ListTargets(context.Background())
	require.Error(t, err)
	var connErr *ConnectivityError
	assert.ErrorAs(t, err, &connErr)
}

func TestListTargetsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewDiscovery(chromeConfigFor(t, server), testLogger(t))
	_, err := d.ListTargets(context.Background())
	var connErr *ConnectivityError
	require.ErrorAs(t, err, &connErr)
}

func TestSelectTarget(t *testing.T) {
	targets := []Target{
		{ID: "ext", URL: "chrome-extension://abcdef/popup.html", WebSocketDebuggerURL: "ws://h/1"},
		{ID: "settings", URL: "chrome://settings/", WebSocketDebuggerURL: "ws://h/2"},
		{ID: "blog", URL: "https://blog.example/post", WebSocketDebuggerURL: "ws://h/3"},
		{ID: "watch", URL: "https://target.example/watch/42", WebSocketDebuggerURL: "ws://h/4"},
	}

	t.Run("origin match wins over earlier tabs", func(t *testing.T) {
		got, err := SelectTarget(targets, "target.example", config.PolicyStrictOrigin)
		require.NoError(t, err)
		assert.Equal(t, "watch", got.ID)
	})

	t.Run("strict policy fails without a match", func(t *testing.T) {
		_, err := SelectTarget(targets, "other.example", config.PolicyStrictOrigin)
		var noTarget *NoTargetError
		require.ErrorAs(t, err, &noTarget)
		assert.Contains(t, err.Error(), "other.example")
	})

	t.Run("fallback skips browser-internal tabs", func(t *testing.T) {
		got, err := SelectTarget(targets, "other.example", config.PolicyAllowFallback)
		require.NoError(t, err)
		assert.Equal(t, "blog", got.ID)
	})

	t.Run("fallback skips targets without a debugger url", func(t *testing.T) {
		stale := []Target{
			{ID: "no-ws", URL: "https://blog.example/post"},
			{ID: "ok", URL: "https://news.example/", WebSocketDebuggerURL: "ws://h/5"},
		}
		got, err := SelectTarget(stale, "", config.PolicyAllowFallback)
		require.NoError(t, err)
		assert.Equal(t, "ok", got.ID)
	})

	t.Run("no targets at all", func(t *testing.T) {
		_, err := SelectTarget(nil, "", config.PolicyAllowFallback)
		var noTarget *NoTargetError
		require.ErrorAs(t, err, &noTarget)
	})
}
