package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/sjson"

	"xhsrelay/internal/export"
	"xhsrelay/internal/pager"
	"xhsrelay/internal/relay"
	"xhsrelay/internal/storage"
	"xhsrelay/pkg/model"
	"xhsrelay/pkg/traffic"
)

const (
	pathSearchNotes   = "/api/sns/web/v1/search/notes"
	pathSearchUsers   = "/api/sns/web/v1/search/usersearch"
	pathHomeFeed      = "/api/sns/web/v1/homefeed"
	pathComments      = "/api/sns/web/v2/comment/page"
	pathUserPosted    = "/api/sns/web/v1/user_posted"
	pathNotifications = "/api/sns/web/v1/you/"

	imageFormats = "jpg,webp,avif"

	// 首页推荐没有终点，拉取全部时的页数上限
	homeFeedMaxPages = 10
)

var (
	noteFields = []string{
		"note_id@id", "xsec_token@xsec_token", "title@note_card.display_title", "type@note_card.type",
		"author@note_card.user.nickname", "author_id@note_card.user.user_id",
		"liked_count@note_card.interact_info.liked_count",
	}
	userFields = []string{
		"user_id@id", "name@name", "red_id@red_id", "fans@fans", "note_count@note_count", "followed@followed", "xsec_token@xsec_token",
	}
	commentFields = []string{
		"comment_id@id", "content@content", "user@user_info.nickname", "user_id@user_info.user_id",
		"like_count@like_count", "ip_location@ip_location", "create_time@create_time", "sub_comment_count@sub_comment_count",
	}
	postedFields = []string{
		"note_id@note_id", "title@display_title", "type@type", "liked_count@interact_info.liked_count", "xsec_token@xsec_token",
	}
	notificationFields = []string{
		"id@id", "type@type", "title@title", "user@user_info.nickname", "user_id@user_info.user_id",
		"content@item_info.content", "time@time",
	}

	searchSorts       = []string{"general", "time_descending", "popularity_descending", "comment_descending", "collect_descending"}
	notificationKinds = []string{"mentions", "likes", "connections"}
)

// SearchNotesInput 搜索笔记
type SearchNotesInput struct {
	Keyword  string   `json:"keyword" jsonschema:"search keyword"`
	Count    *int     `json:"count,omitempty" jsonschema:"number of notes to return, -1 for all pages (default 20, max 1000)"`
	Sort     string   `json:"sort,omitempty" jsonschema:"general (default), time_descending, popularity_descending, comment_descending or collect_descending"`
	Fields   []string `json:"fields,omitempty" jsonschema:"CSV columns as header or header@json.path"`
	Download bool     `json:"download,omitempty" jsonschema:"write the CSV into the export directory and return a link"`
}

// SearchUsersInput 搜索用户
type SearchUsersInput struct {
	Keyword  string   `json:"keyword" jsonschema:"search keyword"`
	Count    *int     `json:"count,omitempty" jsonschema:"number of users to return, -1 for all pages (default 20, max 1000)"`
	Fields   []string `json:"fields,omitempty" jsonschema:"CSV columns as header or header@json.path"`
	Download bool     `json:"download,omitempty" jsonschema:"write the CSV into the export directory and return a link"`
}

// HomeFeedInput 首页推荐
type HomeFeedInput struct {
	Count    *int     `json:"count,omitempty" jsonschema:"number of notes to return (default 20, max 1000)"`
	Fields   []string `json:"fields,omitempty" jsonschema:"CSV columns as header or header@json.path"`
	Download bool     `json:"download,omitempty" jsonschema:"write the CSV into the export directory and return a link"`
}

// NoteCommentsInput 笔记评论
type NoteCommentsInput struct {
	NoteID    string   `json:"note_id" jsonschema:"24-character note id"`
	XsecToken string   `json:"xsec_token" jsonschema:"xsec_token from the search or feed result"`
	Count     *int     `json:"count,omitempty" jsonschema:"number of comments to return, -1 for all pages (default 20, max 1000)"`
	Fields    []string `json:"fields,omitempty" jsonschema:"CSV columns as header or header@json.path"`
	Download  bool     `json:"download,omitempty" jsonschema:"write the CSV into the export directory and return a link"`
}

// UserNotesInput 用户发布的笔记
type UserNotesInput struct {
	UserID    string   `json:"user_id" jsonschema:"24-character user id"`
	XsecToken string   `json:"xsec_token,omitempty" jsonschema:"xsec_token from the search result"`
	Count     *int     `json:"count,omitempty" jsonschema:"number of notes to return, -1 for all pages (default 20, max 1000)"`
	Fields    []string `json:"fields,omitempty" jsonschema:"CSV columns as header or header@json.path"`
	Download  bool     `json:"download,omitempty" jsonschema:"write the CSV into the export directory and return a link"`
}

// NotificationsInput 消息通知
type NotificationsInput struct {
	Kind     string   `json:"kind" jsonschema:"mentions, likes or connections"`
	Count    *int     `json:"count,omitempty" jsonschema:"number of notifications to return, -1 for all pages (default 20, max 1000)"`
	Fields   []string `json:"fields,omitempty" jsonschema:"CSV columns as header or header@json.path"`
	Download bool     `json:"download,omitempty" jsonschema:"write the CSV into the export directory and return a link"`
}

// listJob 列表工具：接口、分页方式与默认列
type listJob[T any] struct {
	tool     string
	params   []string
	fields   []string
	want     int
	download bool
	maxPages int
	cursored bool
	build    pager.BuildFunc
	parse    pager.ParseFunc[T]
}

// runList 分页拉取后输出 CSV；download 时写入导出目录
func runList[T any](ctx context.Context, h *Handlers, job listJob[T]) outcome {
	if job.download && (h.d.Settings == nil || h.d.Settings.ExportDir() == "") {
		return failed(export.ErrExportUnavailable)
	}

	opts := h.d.Pager
	opts.Want = job.want
	opts.Log = h.log
	opts.CursorPaged = job.cursored
	if job.maxPages > 0 && (opts.MaxPages == 0 || opts.MaxPages > job.maxPages) {
		opts.MaxPages = job.maxPages
	}

	items, ferr := pager.Fetch(ctx, h.d.Caller, opts, job.build, job.parse)
	if ferr != nil && (!errors.Is(ferr, pager.ErrIncomplete) || len(items) == 0) {
		return failed(ferr)
	}

	rows := make([]any, len(items))
	for i := range items {
		rows[i] = items[i]
	}
	csv, err := export.ToCSV(rows, export.ParseFields(job.fields))
	if err != nil {
		return failed(err)
	}

	out := outcome{status: statusOK, items: len(items), err: ferr}
	if ferr != nil {
		out.status = statusPartial
	}

	if !job.download {
		text := csv
		if ferr != nil {
			text += fmt.Sprintf("# partial result: %d items collected before failure: %s\n", len(items), describe(ferr))
		}
		out.reply = Reply{Text: text}
		return out
	}

	link, err := h.d.Exporter.WriteIfRequested(export.Job{
		FileName: h.d.Exporter.FileName(job.tool, job.params...),
		CSV:      csv,
		Rows:     len(items),
	})
	if err != nil {
		return failed(err)
	}
	if h.d.History != nil {
		h.d.History.RecordExport(ctx, storage.Export{Tool: job.tool, Path: link.Path, Rows: len(items)})
	}
	msg := fmt.Sprintf("exported %d rows", len(items))
	if ferr != nil {
		msg = fmt.Sprintf("partial export: %d rows collected before failure: %s", len(items), describe(ferr))
	}
	out.reply = Reply{Text: jsonText(linkEnvelope{Success: true, Message: msg, Link: link.URL, Rows: len(items)})}
	return out
}

func fieldsOr(fields, def []string) []string {
	if len(fields) > 0 {
		return fields
	}
	return def
}

// jsonBody 按 sjson 路径依次写入键值
func jsonBody(kv ...any) []byte {
	b := []byte(`{}`)
	for i := 0; i+1 < len(kv); i += 2 {
		next, err := sjson.SetBytes(b, kv[i].(string), kv[i+1])
		if err == nil {
			b = next
		}
	}
	return b
}

// SearchNotes 按关键词搜索笔记，只保留 model_type 为 note 的条目
func (h *Handlers) SearchNotes(ctx context.Context, in SearchNotesInput) Reply {
	return h.invoke(ctx, "search_notes", in, func(ctx context.Context) outcome {
		if err := requireText("keyword", in.Keyword); err != nil {
			return failed(err)
		}
		want, err := checkCount(in.Count)
		if err != nil {
			return failed(err)
		}
		sort := in.Sort
		if sort == "" {
			sort = "general"
		}
		if err := checkOneOf("sort", sort, searchSorts...); err != nil {
			return failed(err)
		}

		sid := h.newSearchID()
		return runList(ctx, h, listJob[model.FeedItem]{
			tool:     "search_notes",
			params:   []string{in.Keyword, strconv.Itoa(want)},
			fields:   fieldsOr(in.Fields, noteFields),
			want:     want,
			download: in.Download,
			build: func(_ string, page int) traffic.Request {
				return traffic.Post(pathSearchNotes, jsonBody(
					"keyword", in.Keyword,
					"page", page,
					"page_size", 20,
					"search_id", sid,
					"sort", sort,
					"note_type", 0,
				))
			},
			parse: func(res *relay.Result) (pager.Page[model.FeedItem], error) {
				data, err := relay.DecodeData[model.SearchNotesData](res)
				if err != nil {
					return pager.Page[model.FeedItem]{}, err
				}
				if len(data.Items) == 0 && data.HasMore {
					return pager.Page[model.FeedItem]{}, pager.ErrEmptyPage
				}
				notes := make([]model.FeedItem, 0, len(data.Items))
				for _, it := range data.Items {
					if it.IsNote() {
						notes = append(notes, it)
					}
				}
				return pager.Page[model.FeedItem]{Items: notes, HasMore: data.HasMore}, nil
			},
		})
	})
}

// SearchUsers 按关键词搜索用户
func (h *Handlers) SearchUsers(ctx context.Context, in SearchUsersInput) Reply {
	return h.invoke(ctx, "search_users", in, func(ctx context.Context) outcome {
		if err := requireText("keyword", in.Keyword); err != nil {
			return failed(err)
		}
		want, err := checkCount(in.Count)
		if err != nil {
			return failed(err)
		}

		sid := h.newSearchID()
		return runList(ctx, h, listJob[model.SearchUser]{
			tool:     "search_users",
			params:   []string{in.Keyword, strconv.Itoa(want)},
			fields:   fieldsOr(in.Fields, userFields),
			want:     want,
			download: in.Download,
			build: func(_ string, page int) traffic.Request {
				return traffic.Post(pathSearchUsers, jsonBody(
					"search_user_request.keyword", in.Keyword,
					"search_user_request.search_id", sid,
					"search_user_request.page", page,
					"search_user_request.page_size", 15,
					"search_user_request.biz_type", "web_search_user",
					"search_user_request.request_id", fmt.Sprintf("%s-%d", sid, page),
				))
			},
			parse: func(res *relay.Result) (pager.Page[model.SearchUser], error) {
				data, err := relay.DecodeData[model.SearchUsersData](res)
				if err != nil {
					return pager.Page[model.SearchUser]{}, err
				}
				if len(data.Users) == 0 && data.HasMore {
					return pager.Page[model.SearchUser]{}, pager.ErrEmptyPage
				}
				return pager.Page[model.SearchUser]{Items: data.Users, HasMore: data.HasMore}, nil
			},
		})
	})
}

// HomeFeed 首页推荐流，以 cursor_score 翻页
func (h *Handlers) HomeFeed(ctx context.Context, in HomeFeedInput) Reply {
	return h.invoke(ctx, "home_feed", in, func(ctx context.Context) outcome {
		want, err := checkCount(in.Count)
		if err != nil {
			return failed(err)
		}
		return runList(ctx, h, listJob[model.FeedItem]{
			tool:     "home_feed",
			cursored: true,
			params:   []string{strconv.Itoa(want)},
			fields:   fieldsOr(in.Fields, noteFields),
			want:     want,
			download: in.Download,
			maxPages: homeFeedMaxPages,
			build: func(cursor string, page int) traffic.Request {
				return traffic.Post(pathHomeFeed, jsonBody(
					"cursor_score", cursor,
					"num", 20,
					"refresh_type", 1,
					"note_index", (page-1)*20,
					"unread_begin_note_id", "",
					"unread_end_note_id", "",
					"unread_note_count", 0,
					"category", "homefeed_recommend",
					"search_key", "",
					"need_num", 10,
					"image_formats", []string{"jpg", "webp", "avif"},
					"need_filter_image", false,
				))
			},
			parse: func(res *relay.Result) (pager.Page[model.FeedItem], error) {
				data, err := relay.DecodeData[model.HomeFeedData](res)
				if err != nil {
					return pager.Page[model.FeedItem]{}, err
				}
				notes := make([]model.FeedItem, 0, len(data.Items))
				for _, it := range data.Items {
					if it.IsNote() {
						notes = append(notes, it)
					}
				}
				return pager.Page[model.FeedItem]{
					Items:   notes,
					Cursor:  data.CursorScore,
					HasMore: len(data.Items) > 0 && data.CursorScore != "",
				}, nil
			},
		})
	})
}

// NoteComments 笔记一级评论
func (h *Handlers) NoteComments(ctx context.Context, in NoteCommentsInput) Reply {
	return h.invoke(ctx, "note_comments", in, func(ctx context.Context) outcome {
		if err := checkID("note_id", in.NoteID); err != nil {
			return failed(err)
		}
		if err := requireText("xsec_token", in.XsecToken); err != nil {
			return failed(err)
		}
		want, err := checkCount(in.Count)
		if err != nil {
			return failed(err)
		}
		return runList(ctx, h, listJob[model.Comment]{
			tool:     "note_comments",
			cursored: true,
			params:   []string{in.NoteID, strconv.Itoa(want)},
			fields:   fieldsOr(in.Fields, commentFields),
			want:     want,
			download: in.Download,
			build: func(cursor string, _ int) traffic.Request {
				return traffic.Get(pathComments, url.Values{
					"note_id":        {in.NoteID},
					"cursor":         {cursor},
					"top_comment_id": {""},
					"image_formats":  {imageFormats},
					"xsec_token":     {in.XsecToken},
				})
			},
			parse: func(res *relay.Result) (pager.Page[model.Comment], error) {
				data, err := relay.DecodeData[model.CommentPage](res)
				if err != nil {
					return pager.Page[model.Comment]{}, err
				}
				if len(data.Comments) == 0 && data.HasMore {
					return pager.Page[model.Comment]{}, pager.ErrEmptyPage
				}
				return pager.Page[model.Comment]{Items: data.Comments, Cursor: data.Cursor, HasMore: data.HasMore}, nil
			},
		})
	})
}

// UserNotes 用户主页发布的笔记
func (h *Handlers) UserNotes(ctx context.Context, in UserNotesInput) Reply {
	return h.invoke(ctx, "user_notes", in, func(ctx context.Context) outcome {
		if err := checkID("user_id", in.UserID); err != nil {
			return failed(err)
		}
		want, err := checkCount(in.Count)
		if err != nil {
			return failed(err)
		}
		return runList(ctx, h, listJob[model.PostedNote]{
			tool:     "user_notes",
			cursored: true,
			params:   []string{in.UserID, strconv.Itoa(want)},
			fields:   fieldsOr(in.Fields, postedFields),
			want:     want,
			download: in.Download,
			build: func(cursor string, _ int) traffic.Request {
				q := url.Values{
					"num":           {"30"},
					"cursor":        {cursor},
					"user_id":       {in.UserID},
					"image_formats": {imageFormats},
				}
				if in.XsecToken != "" {
					q.Set("xsec_token", in.XsecToken)
					q.Set("xsec_source", "pc_feed")
				}
				return traffic.Get(pathUserPosted, q)
			},
			parse: func(res *relay.Result) (pager.Page[model.PostedNote], error) {
				data, err := relay.DecodeData[model.PostedNotesData](res)
				if err != nil {
					return pager.Page[model.PostedNote]{}, err
				}
				if len(data.Notes) == 0 && data.HasMore {
					return pager.Page[model.PostedNote]{}, pager.ErrEmptyPage
				}
				return pager.Page[model.PostedNote]{Items: data.Notes, Cursor: data.Cursor, HasMore: data.HasMore}, nil
			},
		})
	})
}

// ListNotifications 评论和@、赞和收藏、新增关注三类通知
func (h *Handlers) ListNotifications(ctx context.Context, in NotificationsInput) Reply {
	return h.invoke(ctx, "list_notifications", in, func(ctx context.Context) outcome {
		if err := checkOneOf("kind", in.Kind, notificationKinds...); err != nil {
			return failed(err)
		}
		want, err := checkCount(in.Count)
		if err != nil {
			return failed(err)
		}
		return runList(ctx, h, listJob[model.Notification]{
			tool:     "list_notifications",
			cursored: true,
			params:   []string{in.Kind, strconv.Itoa(want)},
			fields:   fieldsOr(in.Fields, notificationFields),
			want:     want,
			download: in.Download,
			build: func(cursor string, _ int) traffic.Request {
				return traffic.Get(pathNotifications+in.Kind, url.Values{"num": {"20"}, "cursor": {cursor}})
			},
			parse: func(res *relay.Result) (pager.Page[model.Notification], error) {
				data, err := relay.DecodeData[model.NotificationPage](res)
				if err != nil {
					return pager.Page[model.Notification]{}, err
				}
				if len(data.MessageList) == 0 && data.HasMore {
					return pager.Page[model.Notification]{}, pager.ErrEmptyPage
				}
				return pager.Page[model.Notification]{
					Items:   data.MessageList,
					Cursor:  res.Get("data.cursor").String(),
					HasMore: data.HasMore,
				}, nil
			},
		})
	})
}
