package forum

import (
	"errors"
	"fmt"

	"github.com/CosmoTheDev/forumrelay/models"
)

// Reason says why a webhook produced no event.
type Reason string

const (
	// ReasonMalformed means the payload failed Validate.
	ReasonMalformed Reason = "malformed"
	// ReasonUnknownKind means no title marker matched.
	ReasonUnknownKind Reason = "unknown_kind"
	// ReasonUnmatchedTitle means the kind's anchored title pattern did not match.
	ReasonUnmatchedTitle Reason = "unmatched_title"
)

// ParseError is returned by the Detailed parse variants.
type ParseError struct {
	Reason Reason
	Kind   models.ForumEventKind
	Title  string
}

func (e *ParseError) Error() string {
	switch e.Reason {
	case ReasonMalformed:
		return "forum: malformed webhook payload"
	case ReasonUnknownKind:
		return fmt.Sprintf("forum: unknown message type for title %q", e.Title)
	default:
		return fmt.Sprintf("forum: cannot extract %s title from %q", e.Kind, e.Title)
	}
}

// IsMalformed reports whether err is a ParseError for a payload that failed validation.
func IsMalformed(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Reason == ReasonMalformed
}

// Diagnose explains why parsing w as kind produced no event, or returns nil
// when it would succeed. An empty kind classifies from the title.
func Diagnose(kind models.ForumEventKind, w *models.SlackWebhook) error {
	if kind == "" {
		_, err := ParseDetailed(w)
		return err
	}
	_, err := ParseAsDetailed(kind, w)
	return err
}

// ReasonOf returns the parse failure reason, or "" for nil and foreign errors.
func ReasonOf(err error) Reason {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}
