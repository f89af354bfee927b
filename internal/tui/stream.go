package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Event is one frame from the relay's GET /events stream.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Stream connects to an SSE endpoint and delivers decoded events on the
// returned channel. The channel is closed when the stream ends or ctx is
// cancelled; the error channel then receives the cause, if any.
func Stream(ctx context.Context, client *http.Client, url string) (<-chan Event, <-chan error, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("connecting to %s: HTTP %d", url, resp.StatusCode)
	}

	events := make(chan Event, 64)
	errs := make(chan error, 1)
	go func() {
		defer resp.Body.Close()
		defer close(events)
		defer close(errs)

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			evt, ok := parseFrameLine(sc.Text())
			if !ok {
				continue
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil && ctx.Err() == nil {
			errs <- err
		}
	}()
	return events, errs, nil
}

// parseFrameLine decodes a "data: {...}" line. Other SSE fields and blank
// separators are ignored.
func parseFrameLine(line string) (Event, bool) {
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return Event{}, false
	}
	var evt Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &evt); err != nil {
		slog.Debug("tui: skipping undecodable frame", "error", err)
		return Event{}, false
	}
	return evt, evt.Type != ""
}
