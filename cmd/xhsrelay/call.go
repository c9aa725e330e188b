package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"xhsrelay/pkg/traffic"
)

func callCMD() *cobra.Command {
	var (
		query []string
		body  string
	)
	cmd := &cobra.Command{
		Use:   "call METHOD PATH",
		Short: "Issue one raw site call through the browser session",
		Example: `  xhsrelay call GET /api/sns/web/v2/user/me
  xhsrelay call GET /api/sns/web/v1/user_posted --query num=30 --query user_id=5f1e2d3c4b5a697887766554`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(args[0], args[1], query, body)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			svc, _, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			raw, err := svc.Call(ctx, req)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(pretty.Color(pretty.Pretty(raw), nil))
			return err
		},
	}
	cmd.Flags().StringArrayVar(&query, "query", nil, "query parameter as key=value, repeatable")
	cmd.Flags().StringVar(&body, "body", "", "JSON request body for POST")
	return cmd
}

func buildRequest(method, path string, query []string, body string) (traffic.Request, error) {
	if !strings.HasPrefix(path, "/") {
		return traffic.Request{}, fmt.Errorf("path must start with /: %q", path)
	}
	switch strings.ToUpper(method) {
	case http.MethodGet:
		q := url.Values{}
		for _, kv := range query {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return traffic.Request{}, fmt.Errorf("query %q must be key=value", kv)
			}
			q.Add(k, v)
		}
		return traffic.Get(path, q), nil
	case http.MethodPost:
		if body == "" {
			body = "{}"
		}
		if !gjson.Valid(body) {
			return traffic.Request{}, fmt.Errorf("body is not valid JSON")
		}
		return traffic.Post(path, []byte(body)), nil
	default:
		return traffic.Request{}, fmt.Errorf("unsupported method %q", method)
	}
}
