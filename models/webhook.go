package models

import "encoding/json"

// SlackWebhook is the Slack-compatible incoming-webhook body the forum posts.
// Only the first attachment carries event data.
type SlackWebhook struct {
	Username    string            `json:"username"`
	AvatarURL   string            `json:"avatar_url"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

// SlackAttachment is one Slack attachment. Text is nullable on the wire
// (approval notices send "text": null).
type SlackAttachment struct {
	Fallback   string          `json:"fallback"`
	Color      string          `json:"color"`
	Title      string          `json:"title"`
	TitleLink  string          `json:"title_link"`
	Text       *string         `json:"text"`
	Footer     string          `json:"footer"`
	Fields     json.RawMessage `json:"fields,omitempty"`
	AuthorName string          `json:"author_name"`
	AuthorLink string          `json:"author_link"`
	AuthorIcon string          `json:"author_icon"`
}

// FirstAttachment returns the attachment that describes the event, or nil.
func (w *SlackWebhook) FirstAttachment() *SlackAttachment {
	if w == nil || len(w.Attachments) == 0 {
		return nil
	}
	return &w.Attachments[0]
}

// TextValue returns the attachment body, treating null as empty.
func (a *SlackAttachment) TextValue() string {
	if a == nil || a.Text == nil {
		return ""
	}
	return *a.Text
}
