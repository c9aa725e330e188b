package model

// APIResponse 站点接口统一响应外壳
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    T      `json:"data"`
}

type User struct {
	UserID    string `json:"user_id"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar,omitempty"`
	XsecToken string `json:"xsec_token,omitempty"`
}

type InteractInfo struct {
	Liked          bool   `json:"liked"`
	LikedCount     string `json:"liked_count"`
	Collected      bool   `json:"collected"`
	CollectedCount string `json:"collected_count"`
	CommentCount   string `json:"comment_count"`
	ShareCount     string `json:"share_count"`
	Followed       bool   `json:"followed,omitempty"`
}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type ImageInfo struct {
	URLDefault string `json:"url_default"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// NoteCard 笔记卡片，搜索/推荐/详情共用
type NoteCard struct {
	NoteID       string       `json:"note_id,omitempty"`
	Type         string       `json:"type"`
	DisplayTitle string       `json:"display_title,omitempty"`
	Title        string       `json:"title,omitempty"`
	Desc         string       `json:"desc,omitempty"`
	User         User         `json:"user"`
	InteractInfo InteractInfo `json:"interact_info"`
	Cover        *ImageInfo   `json:"cover,omitempty"`
	ImageList    []ImageInfo  `json:"image_list,omitempty"`
	TagList      []Tag        `json:"tag_list,omitempty"`
	Time         int64        `json:"time,omitempty"`
	IPLocation   string       `json:"ip_location,omitempty"`
}

// FeedItem 信息流条目，model_type 为 note 时才是笔记
type FeedItem struct {
	ID        string   `json:"id"`
	ModelType string   `json:"model_type"`
	XsecToken string   `json:"xsec_token"`
	NoteCard  NoteCard `json:"note_card"`
}

func (f FeedItem) IsNote() bool { return f.ModelType == "note" }

type SearchNotesData struct {
	HasMore bool       `json:"has_more"`
	Items   []FeedItem `json:"items"`
}

type HomeFeedData struct {
	CursorScore string     `json:"cursor_score"`
	Items       []FeedItem `json:"items"`
}

// FeedDetailData 单篇笔记详情
type FeedDetailData struct {
	CursorScore string     `json:"cursor_score"`
	Items       []FeedItem `json:"items"`
}

type SearchUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RedID     string `json:"red_id"`
	Image     string `json:"image"`
	Fans      string `json:"fans"`
	NoteCount int    `json:"note_count"`
	Followed  bool   `json:"followed"`
	XsecToken string `json:"xsec_token"`
}

type SearchUsersData struct {
	HasMore bool         `json:"has_more"`
	Users   []SearchUser `json:"users"`
}

type Comment struct {
	ID              string    `json:"id"`
	NoteID          string    `json:"note_id"`
	Content         string    `json:"content"`
	CreateTime      int64     `json:"create_time"`
	LikeCount       string    `json:"like_count"`
	IPLocation      string    `json:"ip_location"`
	UserInfo        User      `json:"user_info"`
	SubCommentCount string    `json:"sub_comment_count"`
	SubComments     []Comment `json:"sub_comments,omitempty"`
}

type CommentPage struct {
	Cursor   string    `json:"cursor"`
	HasMore  bool      `json:"has_more"`
	Comments []Comment `json:"comments"`
}

type PostedNote struct {
	NoteID       string       `json:"note_id"`
	Type         string       `json:"type"`
	DisplayTitle string       `json:"display_title"`
	XsecToken    string       `json:"xsec_token"`
	User         User         `json:"user"`
	InteractInfo InteractInfo `json:"interact_info"`
	Cover        *ImageInfo   `json:"cover,omitempty"`
}

type PostedNotesData struct {
	Cursor  string       `json:"cursor"`
	HasMore bool         `json:"has_more"`
	Notes   []PostedNote `json:"notes"`
}

// Notification 消息通知（评论@、赞与收藏、新增关注）
type Notification struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Time     int64  `json:"time"`
	Score    int64  `json:"score,omitempty"`
	UserInfo User   `json:"user_info"`
	ItemInfo struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		Type    string `json:"type"`
	} `json:"item_info"`
}

// NotificationPage 游标可能是数字或字符串，需按原始值读取
type NotificationPage struct {
	HasMore     bool           `json:"has_more"`
	MessageList []Notification `json:"message_list"`
}

// CommentPostData 发表评论返回
type CommentPostData struct {
	Comment Comment `json:"comment"`
	Toast   string  `json:"toast"`
}
