package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CosmoTheDev/forumrelay/internal/config"
	"github.com/CosmoTheDev/forumrelay/models"
)

// NapCatChannel sends group messages through a NapCat (OneBot v11) HTTP API.
type NapCatChannel struct {
	cfg    config.NapCatConfig
	client *http.Client
}

// NewNapCat creates a NapCatChannel from cfg.
func NewNapCat(cfg config.NapCatConfig) *NapCatChannel {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	cfg.GroupID = strings.TrimSpace(cfg.GroupID)
	return &NapCatChannel{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (n *NapCatChannel) Name() string       { return "napcat" }
func (n *NapCatChannel) IsConfigured() bool { return n.cfg.URL != "" && n.cfg.GroupID != "" }

// SendText posts one text segment to the configured group. Success requires a
// 2xx status and status "ok" with retcode 0 in the body.
func (n *NapCatChannel) SendText(ctx context.Context, text string) (int64, error) {
	if !n.IsConfigured() {
		return 0, ErrNotConfigured
	}
	msg := models.NapCatMessage{
		GroupID: n.cfg.GroupID,
		Message: []models.NapCatMessageSegment{
			{Type: "text", Data: map[string]any{"text": text}},
		},
	}
	var res models.NapCatSendResult
	if err := n.call(ctx, http.MethodPost, "/send_group_msg", msg, &res); err != nil {
		return 0, err
	}
	return res.MessageID, nil
}

// Status calls get_status, which NapCat answers without side effects.
func (n *NapCatChannel) Status(ctx context.Context) error {
	if n.cfg.URL == "" {
		return ErrNotConfigured
	}
	return n.call(ctx, http.MethodGet, "/get_status", nil, nil)
}

func (n *NapCatChannel) call(ctx context.Context, method, action string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("napcat: marshal %s: %w", action, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, n.cfg.URL+action, reader)
	if err != nil {
		return fmt.Errorf("napcat: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if n.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.AccessToken)
	}
	resp, err := n.client.Do(req) // #nosec G107 -- URL is the operator-configured NapCat endpoint
	if err != nil {
		return fmt.Errorf("napcat: %s: %w", action, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("napcat: %s returned HTTP %d: %s", action, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var envelope models.NapCatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("napcat: decode %s response: %w", action, err)
	}
	if !envelope.OK() {
		return &BackendError{Action: action, Status: envelope.Status, RetCode: envelope.RetCode, Message: firstNonEmpty(envelope.Wording, envelope.Message)}
	}
	// status and retcode decide success; data is informational.
	if out != nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			slog.Debug("napcat: ignoring undecodable response data", "action", action, "data", string(envelope.Data), "error", err)
		}
	}
	return nil
}

// BackendError is a well-formed NapCat response that reports failure.
type BackendError struct {
	Action  string
	Status  string
	RetCode int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("napcat: %s rejected: status=%q retcode=%d %s", e.Action, e.Status, e.RetCode, e.Message)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
