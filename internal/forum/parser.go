// Package forum turns Slack-style forum webhooks into normalized ForumEvents.
//
// Classification is a loose substring check on the attachment title; extraction
// is a strict anchored pattern per kind. A title can therefore classify as a
// kind and still fail to extract, which is reported as a parse failure.
package forum

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/CosmoTheDev/forumrelay/models"
)

// UnknownAuthor replaces a missing author_name on an otherwise valid event.
const UnknownAuthor = "未知用户"

// Title markers checked by Classify, in priority order.
const (
	markerPublishTopic = "发布主题"
	markerApprovedPost = "审核通过的帖子"
	markerNewReplyTo   = "新回复于"
)

var (
	userPostTitleRe      = regexp.MustCompile("发布主题\\s*`([^`]+)`")
	adminApprovalTitleRe = regexp.MustCompile("在\\s*`([^`]+)`\\s*中审核通过的帖子")
	userReplyTitleRe     = regexp.MustCompile("新回复于\\s*`([^`]+)`")
)

func titlePattern(kind models.ForumEventKind) *regexp.Regexp {
	switch kind {
	case models.KindUserPostApproval:
		return userPostTitleRe
	case models.KindAdminPostApproval:
		return adminApprovalTitleRe
	case models.KindUserReply:
		return userReplyTitleRe
	default:
		return nil
	}
}

// Validate reports whether w has the minimum shape every extractor relies on:
// username, avatar_url, and a first attachment with title, author_name and
// title_link. Callers must treat false as malformed input.
func Validate(w *models.SlackWebhook) bool {
	if w == nil {
		return false
	}
	if w.Username == "" || w.AvatarURL == "" {
		return false
	}
	a := w.FirstAttachment()
	if a == nil {
		return false
	}
	return a.Title != "" && a.AuthorName != "" && a.TitleLink != ""
}

// Classify picks the event kind from an attachment title. The checks run in a
// fixed order and the first hit wins.
func Classify(title string) (models.ForumEventKind, bool) {
	switch {
	case strings.Contains(title, markerPublishTopic):
		return models.KindUserPostApproval, true
	case strings.Contains(title, markerApprovedPost):
		return models.KindAdminPostApproval, true
	case strings.Contains(title, markerNewReplyTo):
		return models.KindUserReply, true
	default:
		return "", false
	}
}

// Extract builds the event for a known kind from the first attachment. It
// fails when the kind's anchored title pattern does not match.
func Extract(kind models.ForumEventKind, w *models.SlackWebhook) (models.ForumEvent, bool) {
	a := w.FirstAttachment()
	if a == nil {
		slog.Debug("forum: webhook has no attachment", "kind", kind)
		return models.ForumEvent{}, false
	}
	re := titlePattern(kind)
	if re == nil {
		slog.Debug("forum: no title pattern for kind", "kind", kind)
		return models.ForumEvent{}, false
	}
	m := re.FindStringSubmatch(a.Title)
	if m == nil {
		slog.Debug("forum: title does not match pattern", "kind", kind, "title", a.Title)
		return models.ForumEvent{}, false
	}

	author := a.AuthorName
	if author == "" {
		author = UnknownAuthor
	}
	return models.ForumEvent{
		Kind:       kind,
		Title:      m[1],
		Author:     author,
		Link:       a.TitleLink,
		Content:    a.TextValue(),
		IsApproval: kind == models.KindAdminPostApproval,
	}, true
}

// Parse validates, classifies and extracts in one step.
func Parse(w *models.SlackWebhook) (models.ForumEvent, bool) {
	evt, err := ParseDetailed(w)
	return evt, err == nil
}

// ParseAs validates w and extracts it as the given kind, skipping
// classification. Used by the fixed-kind webhook routes.
func ParseAs(kind models.ForumEventKind, w *models.SlackWebhook) (models.ForumEvent, bool) {
	evt, err := ParseAsDetailed(kind, w)
	return evt, err == nil
}

// ParseUserPost parses a "topic published" notification.
func ParseUserPost(w *models.SlackWebhook) (models.ForumEvent, bool) {
	return ParseAs(models.KindUserPostApproval, w)
}

// ParseAdminApproval parses an "approved post within" notification.
func ParseAdminApproval(w *models.SlackWebhook) (models.ForumEvent, bool) {
	return ParseAs(models.KindAdminPostApproval, w)
}

// ParseReply parses a "new reply to" notification.
func ParseReply(w *models.SlackWebhook) (models.ForumEvent, bool) {
	return ParseAs(models.KindUserReply, w)
}

// ParseDetailed is Parse with the failure reason attached.
func ParseDetailed(w *models.SlackWebhook) (models.ForumEvent, error) {
	if !Validate(w) {
		return models.ForumEvent{}, &ParseError{Reason: ReasonMalformed}
	}
	title := w.FirstAttachment().Title
	kind, ok := Classify(title)
	if !ok {
		slog.Debug("forum: unknown message type", "title", title)
		return models.ForumEvent{}, &ParseError{Reason: ReasonUnknownKind, Title: title}
	}
	evt, ok := Extract(kind, w)
	if !ok {
		return models.ForumEvent{}, &ParseError{Reason: ReasonUnmatchedTitle, Kind: kind, Title: title}
	}
	return evt, nil
}

// ParseAsDetailed is ParseAs with the failure reason attached.
func ParseAsDetailed(kind models.ForumEventKind, w *models.SlackWebhook) (models.ForumEvent, error) {
	if !kind.Valid() {
		return models.ForumEvent{}, &ParseError{Reason: ReasonUnknownKind, Kind: kind}
	}
	if !Validate(w) {
		return models.ForumEvent{}, &ParseError{Reason: ReasonMalformed, Kind: kind}
	}
	evt, ok := Extract(kind, w)
	if !ok {
		return models.ForumEvent{}, &ParseError{Reason: ReasonUnmatchedTitle, Kind: kind, Title: w.FirstAttachment().Title}
	}
	return evt, nil
}
