package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func serveCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			svc, l, err := newService()
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					l.Err(err, "关闭服务失败")
				}
			}()

			server := mcp.NewServer(
				&mcp.Implementation{Name: appName, Version: appVersion},
				&mcp.ServerOptions{
					Instructions: `Tools for searching, reading and interacting with notes through a logged-in browser session.
When a login or verification page appears the browser window is shown and calls wait until it is solved.
List tools return CSV; set download to true to write the CSV into the export directory instead.`,
				},
			)
			svc.RegisterTools(server)

			l.Info("MCP 服务启动", "version", appVersion)
			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				return err
			}
			l.Info("MCP 服务退出")
			return nil
		},
	}
}
