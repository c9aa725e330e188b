package tools

import (
	"context"
	"encoding/json"
	"errors"

	"xhsrelay/internal/export"
	"xhsrelay/internal/pager"
	"xhsrelay/internal/relay"
)

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type linkEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Link    string `json:"link"`
	Rows    int    `json:"rows"`
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"encode reply failed"}`
	}
	return string(b)
}

func errorReply(err error) Reply {
	return Reply{Text: jsonText(errorEnvelope{Error: describe(err), Message: err.Error()}), IsError: true}
}

// describe 面向调用方的错误概述
func describe(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid input"
	case errors.Is(err, pager.ErrInvalidCount):
		return "invalid input"
	case errors.Is(err, export.ErrExportUnavailable):
		return "export directory is not configured, call set_export_dir first"
	case errors.Is(err, relay.ErrRateLimited):
		return "rate limited by the site, retries exhausted"
	case errors.Is(err, relay.ErrAPI):
		return "the site rejected the request"
	case errors.Is(err, relay.ErrMalformedResponse):
		return "the site returned a malformed response"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "the call was cancelled"
	default:
		return "remote call failed"
	}
}
