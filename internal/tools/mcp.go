package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func handler[In any](fn func(context.Context, In) Reply) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		r := fn(ctx, in)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: r.Text}},
			IsError: r.IsError,
		}, nil, nil
	}
}

// Register 将全部工具注册到 MCP 服务
func (h *Handlers) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "search_notes",
		Description: `Search notes by keyword. Returns CSV, or a file link when download is true.
Example: search_notes {keyword: "coffee", count: 25}`,
	}, handler(h.SearchNotes))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_users",
		Description: "Search users by keyword. Returns CSV, or a file link when download is true.",
	}, handler(h.SearchUsers))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "home_feed",
		Description: "Fetch notes from the recommended home feed. Returns CSV.",
	}, handler(h.HomeFeed))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "note_detail",
		Description: "Fetch a single note with its full body. Requires the xsec_token returned by search or feed.",
	}, handler(h.NoteDetail))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "note_comments",
		Description: "Fetch top-level comments of a note. Returns CSV.",
	}, handler(h.NoteComments))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "user_notes",
		Description: "Fetch notes posted by a user. Returns CSV.",
	}, handler(h.UserNotes))

	mcp.AddTool(server, &mcp.Tool{
		Name: "follow_user",
		Description: `Follow or unfollow a user.
Example: follow_user {target_user_id: "5f1e2d3c4b5a697887766554", follow: false}`,
	}, handler(h.FollowUser))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "like_note",
		Description: "Like a note, or remove the like when like is false.",
	}, handler(h.LikeNote))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "collect_note",
		Description: "Collect a note, or uncollect it when collect is false.",
	}, handler(h.CollectNote))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "post_comment",
		Description: "Post a comment of at most 280 characters under a note.",
	}, handler(h.PostComment))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_notifications",
		Description: "List notifications of one kind: mentions, likes or connections. Returns CSV.",
	}, handler(h.ListNotifications))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_status",
		Description: "Report browser session and remote call state, including pending login or verification.",
	}, handler(h.SessionStatus))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_export_dir",
		Description: "Set the directory that download requests write CSV files into.",
	}, handler(h.SetExportDir))
}
