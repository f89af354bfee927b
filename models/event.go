package models

// ForumEventKind is the closed set of forum notifications the relay understands.
type ForumEventKind string

const (
	KindUserPostApproval  ForumEventKind = "user_post_approval"
	KindAdminPostApproval ForumEventKind = "admin_post_approval"
	KindUserReply         ForumEventKind = "user_reply"
)

// Kinds lists every ForumEventKind in classification priority order.
var Kinds = []ForumEventKind{KindUserPostApproval, KindAdminPostApproval, KindUserReply}

func (k ForumEventKind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k ForumEventKind) Valid() bool {
	switch k {
	case KindUserPostApproval, KindAdminPostApproval, KindUserReply:
		return true
	default:
		return false
	}
}

// ForumEvent is the normalized record extracted from one webhook.
// It is built once per request and never mutated.
type ForumEvent struct {
	Kind       ForumEventKind `json:"type"`
	Title      string         `json:"title"`
	Author     string         `json:"author"`
	Link       string         `json:"link"`
	Content    string         `json:"content,omitempty"`
	IsApproval bool           `json:"isApproval"`
}
