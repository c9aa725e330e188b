package cdp

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"xhsrelay/pkg/traffic"
)

func relayPayload(t *testing.T, expr string) gjson.Result {
	t.Helper()
	require.True(t, strings.HasPrefix(expr, RelayObject+".call("))
	raw := strings.TrimSuffix(strings.TrimPrefix(expr, RelayObject+".call("), ")")
	require.True(t, gjson.Valid(raw), raw)
	return gjson.Parse(raw)
}

func TestRelayExpressionPost(t *testing.T) {
	req := traffic.Post("/api/sns/web/v1/user/unfollow", []byte(`{"target_user_id":"5f1e2d3c4b5a697887766554"}`))

	expr, err := RelayExpression(req, "https://edith.xiaohongshu.com/")
	require.NoError(t, err)

	p := relayPayload(t, expr)
	assert.Equal(t, "POST", p.Get("method").String())
	assert.Equal(t, "https://edith.xiaohongshu.com", p.Get("base").String())
	assert.Equal(t, "/api/sns/web/v1/user/unfollow", p.Get("uri").String())
	assert.Equal(t, "5f1e2d3c4b5a697887766554", p.Get("body.target_user_id").String())
}

func TestRelayExpressionGetHasNoBody(t *testing.T) {
	req := traffic.Get("/api/sns/web/v1/user_posted", url.Values{"num": {"30"}, "cursor": {""}})

	expr, err := RelayExpression(req, "https://edith.xiaohongshu.com")
	require.NoError(t, err)

	p := relayPayload(t, expr)
	assert.Equal(t, "/api/sns/web/v1/user_posted?cursor=&num=30", p.Get("uri").String())
	assert.False(t, p.Get("body").Exists())
}

func TestRelayExpressionRejectsInvalidBody(t *testing.T) {
	_, err := RelayExpression(traffic.Post("/x", []byte("{")), "https://a")
	assert.Error(t, err)
}

func TestToResponse(t *testing.T) {
	value, err := json.Marshal(map[string]any{"status": 200, "body": `{"success":true}`})
	require.NoError(t, err)

	res, err := ToResponse(&runtime.EvaluateReply{Result: runtime.RemoteObject{Type: "object", Value: value}})
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(res.Body))
}

func TestToResponseException(t *testing.T) {
	desc := "TypeError: Cannot read properties of undefined (reading 'call')"
	reply := &runtime.EvaluateReply{
		ExceptionDetails: &runtime.ExceptionDetails{
			Text:      "Uncaught",
			Exception: &runtime.RemoteObject{Description: &desc},
		},
	}

	_, err := ToResponse(reply)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading 'call'")
}

func TestToResponseWithoutValue(t *testing.T) {
	_, err := ToResponse(&runtime.EvaluateReply{Result: runtime.RemoteObject{Type: "undefined"}})
	assert.ErrorIs(t, err, ErrNoValue)

	_, err = ToResponse(&runtime.EvaluateReply{Result: runtime.RemoteObject{Type: "string", Value: json.RawMessage(`"x"`)}})
	assert.Error(t, err)
}

func TestToString(t *testing.T) {
	s, err := ToString(&runtime.EvaluateReply{Result: runtime.RemoteObject{Value: json.RawMessage(`"https://www.xiaohongshu.com/explore"`)}})
	require.NoError(t, err)
	assert.Equal(t, "https://www.xiaohongshu.com/explore", s)
}
