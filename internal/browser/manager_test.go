package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsrelay/internal/config"
	"xhsrelay/internal/rules"
)

func TestLaunchArgs(t *testing.T) {
	args, err := launchArgs(config.BrowserConfig{
		DevToolsURL: "http://127.0.0.1:9333",
		ProfileDir:  "/data/profile",
	})
	require.NoError(t, err)
	assert.Contains(t, args, "--remote-debugging-port=9333")
	assert.Contains(t, args, "--user-data-dir=/data/profile")
	assert.Equal(t, "about:blank", args[len(args)-1])

	_, err = launchArgs(config.BrowserConfig{DevToolsURL: "http://localhost"})
	assert.Error(t, err)
}

func TestNeedsHuman(t *testing.T) {
	engine, err := rules.New(rules.DefaultRules())
	require.NoError(t, err)

	assert.True(t, needsHuman(engine, "https://www.xiaohongshu.com/website-login/captcha?redirectPath=x"))
	assert.True(t, needsHuman(engine, "https://www.xiaohongshu.com/login"))
	assert.False(t, needsHuman(engine, "https://www.xiaohongshu.com/explore"))
	assert.False(t, needsHuman(nil, "https://www.xiaohongshu.com/login"))
}

func TestRelayScriptEmbedded(t *testing.T) {
	assert.Contains(t, relayScript, "window.__xhsRelay")
	assert.Contains(t, relayScript, "credentials: 'include'")
}

func TestSessionWithoutEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m := New(config.BrowserConfig{DevToolsURL: srv.URL, HomeURL: "https://www.xiaohongshu.com/explore"}, "https://edith.xiaohongshu.com", nil, nil)

	_, err := m.Session(context.Background())
	assert.ErrorIs(t, err, ErrEndpointUnavailable)

	st := m.Status()
	assert.False(t, st.Alive)
	assert.False(t, st.Visible)
	assert.NoError(t, m.Close())
}

func TestSessionClosesTargetWhenSetupFails(t *testing.T) {
	var closed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/json/version":
			_, _ = w.Write([]byte(`{"Browser":"Chrome/120.0","Protocol-Version":"1.3"}`))
		case r.URL.Path == "/json/new":
			// 不可连接的调试地址，拨号必然失败
			_, _ = w.Write([]byte(`{"id":"T1","type":"page","url":"about:blank","webSocketDebuggerUrl":"ws://127.0.0.1:1/devtools/page/T1"}`))
		case strings.HasPrefix(r.URL.Path, "/json/close/"):
			if strings.TrimPrefix(r.URL.Path, "/json/close/") == "T1" {
				closed.Add(1)
			}
			_, _ = w.Write([]byte("Target is closing"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := New(config.BrowserConfig{DevToolsURL: srv.URL, HomeURL: "https://www.xiaohongshu.com/explore"}, "https://edith.xiaohongshu.com", nil, nil)

	_, err := m.Session(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), closed.Load())
	assert.False(t, m.Status().Alive)
}
