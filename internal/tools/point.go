package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"xhsrelay/internal/relay"
	"xhsrelay/pkg/model"
	"xhsrelay/pkg/traffic"
)

const (
	pathFeed        = "/api/sns/web/v1/feed"
	pathFollow      = "/api/sns/web/v1/user/follow"
	pathUnfollow    = "/api/sns/web/v1/user/unfollow"
	pathLike        = "/api/sns/web/v1/note/like"
	pathDislike     = "/api/sns/web/v1/note/dislike"
	pathCollect     = "/api/sns/web/v1/note/collect"
	pathUncollect   = "/api/sns/web/v1/note/uncollect"
	pathCommentPost = "/api/sns/web/v1/comment/post"
)

// NoteDetailInput 笔记详情
type NoteDetailInput struct {
	NoteID    string `json:"note_id" jsonschema:"24-character note id"`
	XsecToken string `json:"xsec_token" jsonschema:"xsec_token from the search or feed result"`
}

// FollowInput 关注或取消关注
type FollowInput struct {
	TargetUserID string `json:"target_user_id" jsonschema:"24-character user id"`
	Follow       bool   `json:"follow" jsonschema:"true to follow, false to unfollow"`
}

// LikeInput 点赞或取消点赞
type LikeInput struct {
	NoteID string `json:"note_id" jsonschema:"24-character note id"`
	Like   bool   `json:"like" jsonschema:"true to like, false to remove the like"`
}

// CollectInput 收藏或取消收藏
type CollectInput struct {
	NoteID  string `json:"note_id" jsonschema:"24-character note id"`
	Collect bool   `json:"collect" jsonschema:"true to collect, false to uncollect"`
}

// CommentInput 发表评论
type CommentInput struct {
	NoteID  string `json:"note_id" jsonschema:"24-character note id"`
	Content string `json:"content" jsonschema:"comment text, at most 280 characters"`
}

// StatusInput 会话状态查询，无参数
type StatusInput struct{}

// ExportDirInput 设置导出目录
type ExportDirInput struct {
	Dir string `json:"dir" jsonschema:"absolute directory for exported CSV files"`
}

// NoteDetail 单篇笔记详情，返回 JSON
func (h *Handlers) NoteDetail(ctx context.Context, in NoteDetailInput) Reply {
	return h.invoke(ctx, "note_detail", in, func(ctx context.Context) outcome {
		if err := checkID("note_id", in.NoteID); err != nil {
			return failed(err)
		}
		if err := requireText("xsec_token", in.XsecToken); err != nil {
			return failed(err)
		}
		res, err := h.d.Caller.Call(ctx, traffic.Post(pathFeed, jsonBody(
			"source_note_id", in.NoteID,
			"image_formats", []string{"jpg", "webp", "avif"},
			"extra.need_body_topic", "1",
			"xsec_source", "pc_feed",
			"xsec_token", in.XsecToken,
		)))
		if err != nil {
			return failed(err)
		}
		data, err := relay.DecodeData[model.FeedDetailData](res)
		if err != nil {
			return failed(err)
		}
		if len(data.Items) == 0 {
			return failed(fmt.Errorf("%w: note %s not found", relay.ErrAPI, in.NoteID))
		}
		b, err := json.Marshal(data.Items[0])
		if err != nil {
			return failed(err)
		}
		return done(string(b), 1)
	})
}

// toggle 二态动作：只按输入标志选择接口，不维护本地状态
func (h *Handlers) toggle(ctx context.Context, action, path string, body []byte, target map[string]any) outcome {
	if _, err := h.d.Caller.Call(ctx, traffic.Post(path, body)); err != nil {
		return failed(err)
	}
	env := map[string]any{"success": true, "action": action}
	for k, v := range target {
		env[k] = v
	}
	return done(jsonText(env), 1)
}

// FollowUser 关注或取消关注用户
func (h *Handlers) FollowUser(ctx context.Context, in FollowInput) Reply {
	return h.invoke(ctx, "follow_user", in, func(ctx context.Context) outcome {
		if err := checkID("target_user_id", in.TargetUserID); err != nil {
			return failed(err)
		}
		action, path := "follow", pathFollow
		if !in.Follow {
			action, path = "unfollow", pathUnfollow
		}
		return h.toggle(ctx, action, path, jsonBody("target_user_id", in.TargetUserID),
			map[string]any{"target_user_id": in.TargetUserID})
	})
}

// LikeNote 点赞或取消点赞
func (h *Handlers) LikeNote(ctx context.Context, in LikeInput) Reply {
	return h.invoke(ctx, "like_note", in, func(ctx context.Context) outcome {
		if err := checkID("note_id", in.NoteID); err != nil {
			return failed(err)
		}
		action, path := "like", pathLike
		if !in.Like {
			action, path = "unlike", pathDislike
		}
		return h.toggle(ctx, action, path, jsonBody("note_oid", in.NoteID),
			map[string]any{"note_id": in.NoteID})
	})
}

// CollectNote 收藏或取消收藏
func (h *Handlers) CollectNote(ctx context.Context, in CollectInput) Reply {
	return h.invoke(ctx, "collect_note", in, func(ctx context.Context) outcome {
		if err := checkID("note_id", in.NoteID); err != nil {
			return failed(err)
		}
		if in.Collect {
			return h.toggle(ctx, "collect", pathCollect, jsonBody("note_id", in.NoteID),
				map[string]any{"note_id": in.NoteID})
		}
		return h.toggle(ctx, "uncollect", pathUncollect, jsonBody("note_ids", in.NoteID),
			map[string]any{"note_id": in.NoteID})
	})
}

// PostComment 在笔记下发表评论
func (h *Handlers) PostComment(ctx context.Context, in CommentInput) Reply {
	return h.invoke(ctx, "post_comment", in, func(ctx context.Context) outcome {
		if err := checkID("note_id", in.NoteID); err != nil {
			return failed(err)
		}
		if err := checkComment(in.Content); err != nil {
			return failed(err)
		}
		res, err := h.d.Caller.Call(ctx, traffic.Post(pathCommentPost, jsonBody(
			"note_id", in.NoteID,
			"content", in.Content,
			"at_users", []string{},
		)))
		if err != nil {
			return failed(err)
		}
		data, err := relay.DecodeData[model.CommentPostData](res)
		if err != nil {
			return failed(err)
		}
		return done(jsonText(map[string]any{
			"success":    true,
			"action":     "comment",
			"note_id":    in.NoteID,
			"comment_id": data.Comment.ID,
			"message":    data.Toast,
		}), 1)
	})
}

// SessionStatus 浏览器会话与调用桥状态
func (h *Handlers) SessionStatus(ctx context.Context, _ StatusInput) Reply {
	return h.invoke(ctx, "session_status", nil, func(context.Context) outcome {
		var st model.SessionStatus
		if h.d.Status != nil {
			st = h.d.Status()
		}
		return done(jsonText(st), 0)
	})
}

// SetExportDir 设置导出目录并持久化
func (h *Handlers) SetExportDir(ctx context.Context, in ExportDirInput) Reply {
	return h.invoke(ctx, "set_export_dir", in, func(context.Context) outcome {
		if err := checkDir(in.Dir); err != nil {
			return failed(err)
		}
		if h.d.Settings == nil {
			return failed(fmt.Errorf("settings store is not available"))
		}
		if err := h.d.Settings.SetExportDir(in.Dir); err != nil {
			return failed(err)
		}
		return done(jsonText(map[string]any{
			"success": true,
			"message": "export directory updated",
			"dir":     in.Dir,
		}), 0)
	})
}
