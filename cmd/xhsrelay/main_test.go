package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest("get", "/api/sns/web/v1/user_posted", []string{"num=30", "cursor="}, "")
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/api/sns/web/v1/user_posted?cursor=&num=30", req.URI())

	req, err = buildRequest("POST", "/api/sns/web/v1/user/follow", nil, `{"target_user_id":"x"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"target_user_id":"x"}`, string(req.Body))

	_, err = buildRequest("POST", "/x", nil, "{")
	assert.Error(t, err)
	_, err = buildRequest("DELETE", "/x", nil, "")
	assert.Error(t, err)
	_, err = buildRequest("GET", "x", nil, "")
	assert.Error(t, err)
	_, err = buildRequest("GET", "/x", []string{"novalue"}, "")
	assert.Error(t, err)
}

func TestSettingValue(t *testing.T) {
	assert.Equal(t, true, settingValue("true"))
	assert.Equal(t, float64(3), settingValue("3"))
	assert.Equal(t, "/tmp/exports", settingValue("/tmp/exports"))
	assert.Equal(t, map[string]any{"a": "b"}, settingValue(`{"a":"b"}`))
}
