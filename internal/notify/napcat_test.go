package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CosmoTheDev/forumrelay/internal/config"
	"github.com/CosmoTheDev/forumrelay/models"
)

func newNapCatServer(t *testing.T, status int, body string, seen *models.NapCatMessage) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send_group_msg" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNapCatSendTextSuccess(t *testing.T) {
	var seen models.NapCatMessage
	srv := newNapCatServer(t, http.StatusOK, `{"status":"ok","retcode":0,"data":{"message_id":987}}`, &seen)

	ch := NewNapCat(config.NapCatConfig{URL: srv.URL + "/", GroupID: "123456"})
	id, err := ch.SendText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != 987 {
		t.Fatalf("message id = %d, want 987", id)
	}
	if seen.GroupID != "123456" {
		t.Fatalf("group id = %q", seen.GroupID)
	}
	if len(seen.Message) != 1 || seen.Message[0].Type != "text" || seen.Message[0].Data["text"] != "hello" {
		t.Fatalf("unexpected message segments: %+v", seen.Message)
	}
}

func TestNapCatSendTextFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"http error":      {http.StatusInternalServerError, `{"status":"failed"}`},
		"backend failure": {http.StatusOK, `{"status":"failed","retcode":1200,"wording":"群不存在"}`},
		"nonzero retcode": {http.StatusOK, `{"status":"ok","retcode":100}`},
		"bad json":        {http.StatusOK, `not json`},
	}
	for name, tc := range cases {
		srv := newNapCatServer(t, tc.status, tc.body, nil)
		ch := NewNapCat(config.NapCatConfig{URL: srv.URL, GroupID: "1"})
		if _, err := ch.SendText(context.Background(), "x"); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNapCatAcceptedSendWithOddData(t *testing.T) {
	bodies := map[string]string{
		"string message id": `{"status":"ok","retcode":0,"data":{"message_id":"abc"}}`,
		"array data":        `{"status":"ok","retcode":0,"data":[1,2]}`,
		"null data":         `{"status":"ok","retcode":0,"data":null}`,
	}
	for name, body := range bodies {
		srv := newNapCatServer(t, http.StatusOK, body, nil)
		ch := NewNapCat(config.NapCatConfig{URL: srv.URL, GroupID: "1"})
		id, err := ch.SendText(context.Background(), "x")
		if err != nil {
			t.Fatalf("%s: SendText: %v", name, err)
		}
		if id != 0 {
			t.Fatalf("%s: message id = %d, want 0", name, id)
		}

		d := NewDispatcher(config.NapCatConfig{URL: srv.URL, GroupID: "1"})
		evt := models.ForumEvent{Kind: models.KindUserPostApproval, Title: "T", Author: "A", Link: "https://x/d/1"}
		if !d.Dispatch(context.Background(), evt) {
			t.Fatalf("%s: Dispatch reported failure for an accepted send", name)
		}
	}
}

func TestNapCatBackendErrorType(t *testing.T) {
	srv := newNapCatServer(t, http.StatusOK, `{"status":"failed","retcode":1200,"message":"boom"}`, nil)
	ch := NewNapCat(config.NapCatConfig{URL: srv.URL, GroupID: "1"})
	_, err := ch.SendText(context.Background(), "x")
	var be *BackendError
	if !errors.As(err, &be) || be.RetCode != 1200 || be.Message != "boom" {
		t.Fatalf("expected BackendError, got %v", err)
	}
}

func TestNapCatSendsAccessToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"status":"ok","retcode":0,"data":{"message_id":1}}`))
	}))
	defer srv.Close()

	ch := NewNapCat(config.NapCatConfig{URL: srv.URL, GroupID: "1", AccessToken: "tok"})
	if _, err := ch.SendText(context.Background(), "x"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if auth != "Bearer tok" {
		t.Fatalf("Authorization = %q", auth)
	}
}

func TestNapCatUnconfigured(t *testing.T) {
	cases := []config.NapCatConfig{
		{},
		{URL: "http://127.0.0.1:1"},
		{GroupID: "1"},
		{URL: "   ", GroupID: "  "},
	}
	for _, cfg := range cases {
		ch := NewNapCat(cfg)
		if ch.IsConfigured() {
			t.Fatalf("%+v reported configured", cfg)
		}
		if _, err := ch.SendText(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("%+v: expected ErrNotConfigured, got %v", cfg, err)
		}
	}
}

func TestNapCatStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_status" || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","retcode":0,"data":{"online":true,"good":true}}`))
	}))
	defer srv.Close()

	if err := NewNapCat(config.NapCatConfig{URL: srv.URL}).Status(context.Background()); err != nil {
		t.Fatalf("Status: %v", err)
	}
}
