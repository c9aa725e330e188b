package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"xhsrelay/internal/export"
	"xhsrelay/internal/pager"
	"xhsrelay/internal/relay"
	"xhsrelay/internal/storage"
	"xhsrelay/pkg/model"
	"xhsrelay/pkg/traffic"
)

const (
	userID = "5f1e2d3c4b5a697887766554"
	noteID = "64a1b2c3d4e5f60718293a4b"
)

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// fakeCaller 记录请求并按脚本返回响应
type fakeCaller struct {
	reqs    []traffic.Request
	respond func(n int, req traffic.Request) (string, error)
}

func (c *fakeCaller) Call(_ context.Context, req traffic.Request) (*relay.Result, error) {
	c.reqs = append(c.reqs, req)
	body, err := c.respond(len(c.reqs), req)
	if err != nil {
		return nil, err
	}
	return &relay.Result{Path: req.Path, Raw: []byte(body)}, nil
}

type dirSettings struct{ dir string }

func (s *dirSettings) ExportDir() string { return s.dir }

func (s *dirSettings) SetExportDir(dir string) error {
	s.dir = dir
	return nil
}

type memRecorder struct {
	calls   []storage.ToolCall
	exports []storage.Export
}

func (r *memRecorder) RecordCall(_ context.Context, c storage.ToolCall) { r.calls = append(r.calls, c) }

func (r *memRecorder) RecordExport(_ context.Context, e storage.Export) {
	r.exports = append(r.exports, e)
}

func newHandlers(caller relay.Caller, settings *dirSettings, rec *memRecorder) *Handlers {
	h := New(Deps{
		Caller:   caller,
		Pager:    pager.Options{MaxAttempts: 1, Clock: noSleep{}},
		Exporter: export.NewWriter(settings, nil),
		Settings: settings,
		History:  rec,
		Status: func() model.SessionStatus {
			return model.SessionStatus{Alive: true, State: model.StateIdle}
		},
	})
	h.newSearchID = func() string { return "sid" }
	return h
}

func feedPage(start, notes, others int, hasMore bool) string {
	items := make([]string, 0, notes+others)
	for i := 0; i < notes; i++ {
		items = append(items, fmt.Sprintf(
			`{"id":"%024x","model_type":"note","xsec_token":"tok","note_card":{"display_title":"note %d","type":"normal","user":{"user_id":"u1","nickname":"nick"},"interact_info":{"liked_count":"7"}}}`,
			start+i, start+i))
	}
	for i := 0; i < others; i++ {
		items = append(items, `{"id":"q","model_type":"hot_query"}`)
	}
	return fmt.Sprintf(`{"code":0,"success":true,"data":{"has_more":%t,"items":[%s]}}`, hasMore, strings.Join(items, ","))
}

func csvLines(text string) []string {
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}

func intp(n int) *int { return &n }

func TestSearchNotesCollectsAcrossPages(t *testing.T) {
	caller := &fakeCaller{respond: func(n int, _ traffic.Request) (string, error) {
		return feedPage((n-1)*20, 20, 0, true), nil
	}}
	rec := &memRecorder{}
	h := newHandlers(caller, &dirSettings{}, rec)

	reply := h.SearchNotes(context.Background(), SearchNotesInput{Keyword: "coffee", Count: intp(25)})

	require.False(t, reply.IsError, reply.Text)
	lines := csvLines(reply.Text)
	assert.Len(t, lines, 26)
	assert.Equal(t, "note_id,xsec_token,title,type,author,author_id,liked_count", lines[0])

	require.Len(t, caller.reqs, 2)
	for i, req := range caller.reqs {
		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, pathSearchNotes, req.Path)
		assert.Equal(t, "coffee", gjson.GetBytes(req.Body, "keyword").String())
		assert.Equal(t, int64(i+1), gjson.GetBytes(req.Body, "page").Int())
		assert.Equal(t, "sid", gjson.GetBytes(req.Body, "search_id").String())
		assert.Equal(t, "general", gjson.GetBytes(req.Body, "sort").String())
	}

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "search_notes", rec.calls[0].Tool)
	assert.Equal(t, statusOK, rec.calls[0].Status)
	assert.Equal(t, 25, rec.calls[0].Items)
	assert.NotEmpty(t, rec.calls[0].TraceID)
}

func TestSearchNotesKeepsOnlyNotes(t *testing.T) {
	caller := &fakeCaller{respond: func(int, traffic.Request) (string, error) {
		return feedPage(0, 12, 8, false), nil
	}}
	h := newHandlers(caller, &dirSettings{}, &memRecorder{})

	reply := h.SearchNotes(context.Background(), SearchNotesInput{Keyword: "coffee", Count: intp(-1)})

	require.False(t, reply.IsError, reply.Text)
	assert.Len(t, csvLines(reply.Text), 13)
	assert.Len(t, caller.reqs, 1)
}

func TestSearchNotesPartialResult(t *testing.T) {
	caller := &fakeCaller{respond: func(n int, req traffic.Request) (string, error) {
		if n == 1 {
			return feedPage(0, 20, 0, true), nil
		}
		return "", &relay.CallError{Path: req.Path, Attempts: 5, Err: fmt.Errorf("%w: %w", relay.ErrTransport, relay.ErrRateLimited)}
	}}
	rec := &memRecorder{}
	h := newHandlers(caller, &dirSettings{}, rec)

	reply := h.SearchNotes(context.Background(), SearchNotesInput{Keyword: "coffee", Count: intp(-1)})

	require.False(t, reply.IsError)
	assert.Contains(t, reply.Text, "# partial result: 20 items collected before failure: rate limited")
	assert.Len(t, caller.reqs, 2)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, statusPartial, rec.calls[0].Status)
	assert.Equal(t, 20, rec.calls[0].Items)
}

func TestSearchNotesFailureWithoutItems(t *testing.T) {
	caller := &fakeCaller{respond: func(_ int, req traffic.Request) (string, error) {
		return "", &relay.CallError{Path: req.Path, Err: relay.ErrTransport}
	}}
	h := newHandlers(caller, &dirSettings{}, &memRecorder{})

	reply := h.SearchNotes(context.Background(), SearchNotesInput{Keyword: "coffee"})

	assert.True(t, reply.IsError)
	assert.Equal(t, "remote call failed", gjson.Get(reply.Text, "error").String())
}

func TestFollowUserUnfollow(t *testing.T) {
	caller := &fakeCaller{respond: func(int, traffic.Request) (string, error) {
		return `{"code":0,"success":true,"data":{"fstatus":"none"}}`, nil
	}}
	h := newHandlers(caller, &dirSettings{}, &memRecorder{})

	reply := h.FollowUser(context.Background(), FollowInput{TargetUserID: userID, Follow: false})

	require.False(t, reply.IsError, reply.Text)
	require.Len(t, caller.reqs, 1)
	assert.Equal(t, "POST", caller.reqs[0].Method)
	assert.Equal(t, "/api/sns/web/v1/user/unfollow", caller.reqs[0].Path)
	assert.JSONEq(t, `{"target_user_id":"`+userID+`"}`, string(caller.reqs[0].Body))

	assert.True(t, gjson.Get(reply.Text, "success").Bool())
	assert.Equal(t, "unfollow", gjson.Get(reply.Text, "action").String())
	assert.Equal(t, userID, gjson.Get(reply.Text, "target_user_id").String())
}

func TestToggleEndpoints(t *testing.T) {
	ok := func(int, traffic.Request) (string, error) { return `{"success":true,"data":{}}`, nil }
	cases := []struct {
		name   string
		call   func(h *Handlers) Reply
		path   string
		action string
		bodyAt string
	}{
		{"follow", func(h *Handlers) Reply { return h.FollowUser(context.Background(), FollowInput{TargetUserID: userID, Follow: true}) }, pathFollow, "follow", "target_user_id"},
		{"like", func(h *Handlers) Reply { return h.LikeNote(context.Background(), LikeInput{NoteID: noteID, Like: true}) }, pathLike, "like", "note_oid"},
		{"unlike", func(h *Handlers) Reply { return h.LikeNote(context.Background(), LikeInput{NoteID: noteID}) }, pathDislike, "unlike", "note_oid"},
		{"collect", func(h *Handlers) Reply { return h.CollectNote(context.Background(), CollectInput{NoteID: noteID, Collect: true}) }, pathCollect, "collect", "note_id"},
		{"uncollect", func(h *Handlers) Reply { return h.CollectNote(context.Background(), CollectInput{NoteID: noteID}) }, pathUncollect, "uncollect", "note_ids"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caller := &fakeCaller{respond: ok}
			reply := tc.call(newHandlers(caller, &dirSettings{}, &memRecorder{}))

			require.False(t, reply.IsError, reply.Text)
			require.Len(t, caller.reqs, 1)
			assert.Equal(t, tc.path, caller.reqs[0].Path)
			assert.True(t, gjson.GetBytes(caller.reqs[0].Body, tc.bodyAt).Exists())
			assert.Equal(t, tc.action, gjson.Get(reply.Text, "action").String())
		})
	}
}

func TestActionSiteError(t *testing.T) {
	caller := &fakeCaller{respond: func(_ int, req traffic.Request) (string, error) {
		return "", &relay.CallError{Path: req.Path, Code: -100, Msg: "登录已过期", Err: relay.ErrAPI}
	}}
	h := newHandlers(caller, &dirSettings{}, &memRecorder{})

	reply := h.LikeNote(context.Background(), LikeInput{NoteID: noteID, Like: true})

	assert.True(t, reply.IsError)
	assert.Equal(t, "the site rejected the request", gjson.Get(reply.Text, "error").String())
	assert.Contains(t, gjson.Get(reply.Text, "message").String(), "登录已过期")
}

func TestExportWithoutDirectory(t *testing.T) {
	caller := &fakeCaller{respond: func(int, traffic.Request) (string, error) {
		return feedPage(0, 20, 0, false), nil
	}}
	rec := &memRecorder{}
	h := newHandlers(caller, &dirSettings{}, rec)

	reply := h.SearchNotes(context.Background(), SearchNotesInput{Keyword: "coffee", Download: true})

	assert.True(t, reply.IsError)
	assert.NotEmpty(t, gjson.Get(reply.Text, "error").String())
	assert.Empty(t, caller.reqs)
	assert.Empty(t, rec.exports)
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	caller := &fakeCaller{respond: func(int, traffic.Request) (string, error) {
		return `{"success":true,"data":{"cursor":"","has_more":false,"comments":[{"id":"c1","content":"好喝, 推荐","user_info":{"user_id":"u1","nickname":"nick"},"like_count":"3"}]}}`, nil
	}}
	rec := &memRecorder{}
	h := newHandlers(caller, &dirSettings{dir: dir}, rec)

	reply := h.NoteComments(context.Background(), NoteCommentsInput{NoteID: noteID, XsecToken: "tok", Download: true})

	require.False(t, reply.IsError, reply.Text)
	assert.True(t, gjson.Get(reply.Text, "success").Bool())
	assert.Equal(t, "exported 1 rows", gjson.Get(reply.Text, "message").String())
	assert.True(t, strings.HasPrefix(gjson.Get(reply.Text, "link").String(), "file://"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "note_comments_"+noteID+"_20_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"好喝, 推荐"`)

	require.Len(t, rec.exports, 1)
	assert.Equal(t, 1, rec.exports[0].Rows)

	require.Len(t, caller.reqs, 1)
	assert.Equal(t, noteID, caller.reqs[0].Query.Get("note_id"))
	assert.Equal(t, "tok", caller.reqs[0].Query.Get("xsec_token"))
}

func TestValidationMakesNoCalls(t *testing.T) {
	cases := []struct {
		name string
		call func(h *Handlers) Reply
	}{
		{"empty keyword", func(h *Handlers) Reply { return h.SearchNotes(context.Background(), SearchNotesInput{Keyword: "  "}) }},
		{"zero count", func(h *Handlers) Reply {
			return h.SearchNotes(context.Background(), SearchNotesInput{Keyword: "coffee", Count: intp(0)})
		}},
		{"count too large", func(h *Handlers) Reply {
			return h.SearchUsers(context.Background(), SearchUsersInput{Keyword: "coffee", Count: intp(1001)})
		}},
		{"negative count", func(h *Handlers) Reply { return h.HomeFeed(context.Background(), HomeFeedInput{Count: intp(-2)}) }},
		{"bad sort", func(h *Handlers) Reply {
			return h.SearchNotes(context.Background(), SearchNotesInput{Keyword: "coffee", Sort: "random"})
		}},
		{"short user id", func(h *Handlers) Reply { return h.FollowUser(context.Background(), FollowInput{TargetUserID: "abc", Follow: true}) }},
		{"non hex note id", func(h *Handlers) Reply { return h.LikeNote(context.Background(), LikeInput{NoteID: strings.Repeat("z", 24)}) }},
		{"missing token", func(h *Handlers) Reply { return h.NoteDetail(context.Background(), NoteDetailInput{NoteID: noteID}) }},
		{"long comment", func(h *Handlers) Reply {
			return h.PostComment(context.Background(), CommentInput{NoteID: noteID, Content: strings.Repeat("好", 281)})
		}},
		{"empty comment", func(h *Handlers) Reply { return h.PostComment(context.Background(), CommentInput{NoteID: noteID}) }},
		{"unknown kind", func(h *Handlers) Reply { return h.ListNotifications(context.Background(), NotificationsInput{Kind: "all"}) }},
		{"relative dir", func(h *Handlers) Reply { return h.SetExportDir(context.Background(), ExportDirInput{Dir: "exports"}) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caller := &fakeCaller{respond: func(int, traffic.Request) (string, error) {
				return "", fmt.Errorf("unexpected call")
			}}
			rec := &memRecorder{}
			reply := tc.call(newHandlers(caller, &dirSettings{}, rec))

			assert.True(t, reply.IsError)
			assert.Equal(t, "invalid input", gjson.Get(reply.Text, "error").String())
			assert.Empty(t, caller.reqs)
			require.Len(t, rec.calls, 1)
			assert.Equal(t, statusInvalid, rec.calls[0].Status)
		})
	}
}

func TestPostComment(t *testing.T) {
	caller := &fakeCaller{respond: func(int, traffic.Request) (string, error) {
		return `{"success":true,"data":{"comment":{"id":"c42","content":"好"},"toast":"评论成功"}}`, nil
	}}
	h := newHandlers(caller, &dirSettings{}, &memRecorder{})

	reply := h.PostComment(context.Background(), CommentInput{NoteID: noteID, Content: "好"})

	require.False(t, reply.IsError, reply.Text)
	assert.Equal(t, "c42", gjson.Get(reply.Text, "comment_id").String())
	assert.Equal(t, pathCommentPost, caller.reqs[0].Path)
	assert.True(t, gjson.GetBytes(caller.reqs[0].Body, "at_users").IsArray())
}

func TestNoteDetail(t *testing.T) {
	caller := &fakeCaller{respond: func(int, traffic.Request) (string, error) {
		return `{"success":true,"data":{"items":[{"id":"` + noteID + `","model_type":"note","note_card":{"title":"拿铁","desc":"正文"}}]}}`, nil
	}}
	h := newHandlers(caller, &dirSettings{}, &memRecorder{})

	reply := h.NoteDetail(context.Background(), NoteDetailInput{NoteID: noteID, XsecToken: "tok"})

	require.False(t, reply.IsError, reply.Text)
	assert.Equal(t, "正文", gjson.Get(reply.Text, "note_card.desc").String())
	body := caller.reqs[0].Body
	assert.Equal(t, noteID, gjson.GetBytes(body, "source_note_id").String())
	assert.Equal(t, "1", gjson.GetBytes(body, "extra.need_body_topic").String())
}

func TestListNotificationsFollowsCursor(t *testing.T) {
	caller := &fakeCaller{respond: func(n int, _ traffic.Request) (string, error) {
		if n == 1 {
			return `{"success":true,"data":{"cursor":1700000000,"has_more":true,"message_list":[{"id":"m1","type":"mention","title":"@你"}]}}`, nil
		}
		return `{"success":true,"data":{"cursor":"","has_more":false,"message_list":[{"id":"m2","type":"mention"}]}}`, nil
	}}
	h := newHandlers(caller, &dirSettings{}, &memRecorder{})

	reply := h.ListNotifications(context.Background(), NotificationsInput{Kind: "mentions", Count: intp(-1)})

	require.False(t, reply.IsError, reply.Text)
	assert.Len(t, csvLines(reply.Text), 3)
	require.Len(t, caller.reqs, 2)
	assert.Equal(t, "/api/sns/web/v1/you/mentions", caller.reqs[1].Path)
	assert.Equal(t, "1700000000", caller.reqs[1].Query.Get("cursor"))
}

func TestListNotificationsStopsOnStalledCursor(t *testing.T) {
	caller := &fakeCaller{respond: func(n int, _ traffic.Request) (string, error) {
		return fmt.Sprintf(`{"success":true,"data":{"cursor":42,"has_more":true,"message_list":[{"id":"m%d","type":"mention"}]}}`, n), nil
	}}
	h := newHandlers(caller, &dirSettings{}, &memRecorder{})

	reply := h.ListNotifications(context.Background(), NotificationsInput{Kind: "likes", Count: intp(-1)})

	require.False(t, reply.IsError, reply.Text)
	assert.Len(t, csvLines(reply.Text), 3)
	require.Len(t, caller.reqs, 2)
	assert.Equal(t, "42", caller.reqs[1].Query.Get("cursor"))
}

func TestListNotificationsEmptyPageClaimingMore(t *testing.T) {
	caller := &fakeCaller{respond: func(int, traffic.Request) (string, error) {
		return `{"success":true,"data":{"cursor":"","has_more":true,"message_list":[]}}`, nil
	}}
	rec := &memRecorder{}
	h := newHandlers(caller, &dirSettings{}, rec)

	reply := h.ListNotifications(context.Background(), NotificationsInput{Kind: "connections", Count: intp(-1)})

	assert.True(t, reply.IsError)
	assert.Len(t, caller.reqs, 1)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, statusError, rec.calls[0].Status)
}

func TestSessionStatusAndExportDir(t *testing.T) {
	settings := &dirSettings{}
	h := newHandlers(&fakeCaller{}, settings, &memRecorder{})

	reply := h.SessionStatus(context.Background(), StatusInput{})
	assert.True(t, gjson.Get(reply.Text, "alive").Bool())
	assert.Equal(t, "idle", gjson.Get(reply.Text, "state").String())

	dir := t.TempDir()
	reply = h.SetExportDir(context.Background(), ExportDirInput{Dir: dir})
	require.False(t, reply.IsError, reply.Text)
	assert.Equal(t, dir, settings.dir)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "小红...", truncate("小红书笔记", 2))
}
