package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/CosmoTheDev/forumrelay/internal/config"
	"github.com/CosmoTheDev/forumrelay/internal/notify"
)

const testToken = "0123456789abcdef0123456789abcdef"

type fakeChannel struct {
	mu         sync.Mutex
	configured bool
	err        error
	sent       []string
}

func (f *fakeChannel) Name() string       { return "fake" }
func (f *fakeChannel) IsConfigured() bool { return f.configured }
func (f *fakeChannel) SendText(_ context.Context, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.sent)), nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testConfig() *config.Config {
	return &config.Config{
		NapCat: config.NapCatConfig{URL: "http://napcat.invalid", GroupID: "123456", TimeoutSeconds: 10},
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           3000,
			Environment:    "development",
			BodyLimitBytes: 10 << 20,
		},
		Security: config.SecurityConfig{
			WebhookToken: testToken,
			RateLimits: config.RateLimitConfig{
				WindowSeconds: 60, User: 20, Admin: 20, Reply: 50, Generic: 50,
			},
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestGateway(t *testing.T, ch *fakeChannel, mutate func(*config.Config)) (*Gateway, http.Handler) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	gw := New(cfg, notify.NewDispatcherWithChannel(ch))
	return gw, buildHandler(gw)
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func forumPayload(title, link string) string {
	return `{"username":"智教联盟论坛","avatar_url":"https://forum.example/favicon.png","text":"",` +
		`"attachments":[{"title":"` + title + `","title_link":"` + link + `","author_name":"Alice","text":"Hi there"}]}`
}

func TestHealth(t *testing.T) {
	_, h := newTestGateway(t, &fakeChannel{configured: true}, nil)
	rec := doRequest(h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "OK" || body["qqBot"] != "configured" || body["security"] != "enabled" {
		t.Fatalf("unexpected health body: %v", body)
	}

	_, h = newTestGateway(t, &fakeChannel{}, nil)
	body = decodeBody(t, doRequest(h, http.MethodGet, "/health", ""))
	if body["qqBot"] != "not configured" {
		t.Fatalf("qqBot = %v, want not configured", body["qqBot"])
	}
}

func TestRootListsSecureEndpoints(t *testing.T) {
	_, h := newTestGateway(t, &fakeChannel{configured: true}, nil)
	rec := doRequest(h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/webhook/"+testToken+"/forum/user") {
		t.Fatalf("root does not list the user endpoint: %s", rec.Body.String())
	}
}

func TestNotFound(t *testing.T) {
	_, h := newTestGateway(t, &fakeChannel{configured: true}, nil)
	rec := doRequest(h, http.MethodGet, "/nope?x=1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "端点未找到" || body["message"] != "GET /nope?x=1 不存在" {
		t.Fatalf("unexpected 404 body: %v", body)
	}
}

func TestWebhookRoutesDeliver(t *testing.T) {
	cases := []struct {
		path    string
		title   string
		message string
		kind    string
	}{
		{"forum/user", "发布主题 `Hello`", "用户帖子过审通知已发送", "user_post_approval"},
		{"forum/admin", "在 `Hello` 中审核通过的帖子", "管理员帖子过审通知已发送", "admin_post_approval"},
		{"forum/reply", "新回复于 `Hello`", "用户回帖通知已发送", "user_reply"},
		{"forum", "新回复于 `Hello`", "论坛通知已发送", "user_reply"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			ch := &fakeChannel{configured: true}
			_, h := newTestGateway(t, ch, nil)
			rec := doRequest(h, http.MethodPost, "/webhook/"+testToken+"/"+tc.path, forumPayload(tc.title, "https://forum.example/d/1"))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["success"] != true || body["message"] != tc.message {
				t.Fatalf("unexpected body: %v", body)
			}
			parsed, _ := body["parsed"].(map[string]any)
			if parsed["title"] != "Hello" || parsed["type"] != tc.kind {
				t.Fatalf("unexpected parsed: %v", parsed)
			}
			if tc.path == "forum" {
				if body["type"] != tc.kind {
					t.Fatalf("generic route type = %v", body["type"])
				}
			} else if _, ok := body["type"]; ok {
				t.Fatalf("fixed route should not report type: %v", body)
			}
			if ch.count() != 1 {
				t.Fatalf("sent %d messages, want 1", ch.count())
			}
			if !strings.Contains(ch.sent[0], "📖 标题：Hello") {
				t.Fatalf("rendered text missing title: %q", ch.sent[0])
			}
		})
	}
}

func TestWebhookWrongToken(t *testing.T) {
	ch := &fakeChannel{configured: true}
	_, h := newTestGateway(t, ch, nil)
	rec := doRequest(h, http.MethodPost, "/webhook/wrong/forum/user", forumPayload("发布主题 `Hello`", "https://f/d/1"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "无效的认证令牌" {
		t.Fatalf("unexpected body: %v", body)
	}
	if ch.count() != 0 {
		t.Fatal("forbidden request must not dispatch")
	}
}

func TestWithTokenRejectsEmptyToken(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeChannel{configured: true}, nil)
	called := false
	h := gw.withToken(routeUserPost, func(http.ResponseWriter, *http.Request) { called = true })
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/webhook/forum/user", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Fatal("next handler ran without a token")
	}
}

func TestWebhookEmptyTokenSegmentThroughMux(t *testing.T) {
	ch := &fakeChannel{configured: true}
	_, h := newTestGateway(t, ch, nil)

	rec := doRequest(h, http.MethodPost, "/webhook//forum/user", forumPayload("发布主题 `Hello`", "https://f/d/1"))
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/webhook/forum/user" {
		t.Fatalf("Location = %q, want /webhook/forum/user", loc)
	}

	rec = doRequest(h, http.MethodPost, "/webhook/forum/user", forumPayload("发布主题 `Hello`", "https://f/d/1"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("redirect target status = %d, want 404", rec.Code)
	}
	if ch.count() != 0 {
		t.Fatalf("tokenless request was relayed: %v", ch.sent)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"username":`,
		"no attachments": `{"username":"f","avatar_url":"a","text":"","attachments":[]}`,
		"no author":      `{"username":"f","avatar_url":"a","attachments":[{"title":"发布主题 ` + "`x`" + `","title_link":"l"}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			ch := &fakeChannel{configured: true}
			_, h := newTestGateway(t, ch, nil)
			rec := doRequest(h, http.MethodPost, "/webhook/"+testToken+"/forum/user", payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			body := decodeBody(t, rec)
			if body["error"] != "无效的 Slack Webhook 消息格式" {
				t.Fatalf("unexpected body: %v", body)
			}
			if _, ok := body["received"]; !ok {
				t.Fatalf("400 body should echo the payload: %v", body)
			}
			if ch.count() != 0 {
				t.Fatal("malformed payload must not dispatch")
			}
		})
	}
}

func TestWebhookUnparseable(t *testing.T) {
	ch := &fakeChannel{configured: true}
	_, h := newTestGateway(t, ch, nil)

	rec := doRequest(h, http.MethodPost, "/webhook/"+testToken+"/forum/user", forumPayload("新回复于 `Hello`", "https://f/d/1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "无法解析消息内容" || body["webhook"] == nil {
		t.Fatalf("unexpected body: %v", body)
	}

	rec = doRequest(h, http.MethodPost, "/webhook/"+testToken+"/forum", forumPayload("Some random title", "https://f/d/1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "无法解析消息内容或不支持的消息类型" {
		t.Fatalf("unexpected generic body: %v", body)
	}
	if ch.count() != 0 {
		t.Fatal("unparseable payload must not dispatch")
	}
}

func TestWebhookDispatchFailure(t *testing.T) {
	ch := &fakeChannel{configured: true, err: errors.New("boom")}
	gw, h := newTestGateway(t, ch, nil)
	rec := doRequest(h, http.MethodPost, "/webhook/"+testToken+"/forum/reply", forumPayload("新回复于 `Hello`", "https://f/d/1"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "发送 QQ 消息失败" || body["parsed"] == nil {
		t.Fatalf("unexpected body: %v", body)
	}
	if s := gw.currentStatus(); s.Failed != 1 || s.Received != 1 {
		t.Fatalf("unexpected status counters: %+v", s)
	}
}

func TestWebhookUnconfiguredBackendFails(t *testing.T) {
	ch := &fakeChannel{}
	_, h := newTestGateway(t, ch, nil)
	rec := doRequest(h, http.MethodPost, "/webhook/"+testToken+"/forum/user", forumPayload("发布主题 `Hello`", "https://f/d/1"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ch.count() != 0 {
		t.Fatal("unconfigured channel must not be called")
	}
}

func TestWebhookRateLimit(t *testing.T) {
	ch := &fakeChannel{configured: true}
	_, h := newTestGateway(t, ch, func(c *config.Config) { c.Security.RateLimits.User = 2 })
	path := "/webhook/" + testToken + "/forum/user"
	payload := forumPayload("发布主题 `Hello`", "https://f/d/1")

	for i := 0; i < 2; i++ {
		if rec := doRequest(h, http.MethodPost, path, payload); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := doRequest(h, http.MethodPost, path, payload)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
	body := decodeBody(t, rec)
	if ra, _ := body["retryAfter"].(float64); ra < 1 || ra > 60 {
		t.Fatalf("retryAfter = %v", body["retryAfter"])
	}

	// Other routes keep their own budget.
	if rec := doRequest(h, http.MethodPost, "/webhook/"+testToken+"/forum", payload); rec.Code != http.StatusOK {
		t.Fatalf("generic route status = %d", rec.Code)
	}
}

func TestRateLimitRunsBeforeTokenCheck(t *testing.T) {
	_, h := newTestGateway(t, &fakeChannel{configured: true}, func(c *config.Config) { c.Security.RateLimits.Admin = 1 })
	path := "/webhook/wrong/forum/admin"
	if rec := doRequest(h, http.MethodPost, path, "{}"); rec.Code != http.StatusForbidden {
		t.Fatalf("first status = %d, want 403", rec.Code)
	}
	if rec := doRequest(h, http.MethodPost, path, "{}"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
}

func TestWebhookBodyLimit(t *testing.T) {
	ch := &fakeChannel{configured: true}
	_, h := newTestGateway(t, ch, func(c *config.Config) { c.Server.BodyLimitBytes = 16 })
	rec := doRequest(h, http.MethodPost, "/webhook/"+testToken+"/forum/user", forumPayload("发布主题 `Hello`", "https://f/d/1"))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestSimulateWebhook(t *testing.T) {
	ch := &fakeChannel{configured: true}
	_, h := newTestGateway(t, ch, nil)
	rec := doRequest(h, http.MethodPost, "/test/webhook/admin-approval", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["mockData"] == nil {
		t.Fatalf("unexpected body: %v", body)
	}
	result, _ := body["result"].(map[string]any)
	if result["message"] != "管理员帖子过审通知已发送" {
		t.Fatalf("unexpected result: %v", result)
	}
	if ch.count() != 1 || !strings.Contains(ch.sent[0], "【帖子审核通过】") {
		t.Fatalf("unexpected sends: %v", ch.sent)
	}

	rec = doRequest(h, http.MethodPost, "/test/webhook/bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type status = %d", rec.Code)
	}
}

func TestSimulateWebhookFailure(t *testing.T) {
	_, h := newTestGateway(t, &fakeChannel{configured: true, err: errors.New("down")}, nil)
	rec := doRequest(h, http.MethodPost, "/test/webhook/user-reply", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["success"] != false || body["error"] == nil {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestTestMessage(t *testing.T) {
	ch := &fakeChannel{configured: true}
	_, h := newTestGateway(t, ch, nil)

	if rec := doRequest(h, http.MethodPost, "/test/message", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d", rec.Code)
	}
	rec := doRequest(h, http.MethodPost, "/test/message", `{"message":"ping"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ch.count() != 1 || ch.sent[0] != "ping" {
		t.Fatalf("unexpected sends: %v", ch.sent)
	}
}

func TestTestMessageBadBody(t *testing.T) {
	ch := &fakeChannel{configured: true}
	_, h := newTestGateway(t, ch, nil)

	rec := doRequest(h, http.MethodPost, "/test/message", `{"message":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed json status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "无效的 JSON 请求体" {
		t.Fatalf("unexpected body: %v", body)
	}

	rec = doRequest(h, http.MethodPost, "/test/message", "")
	if body := decodeBody(t, rec); rec.Code != http.StatusBadRequest || body["error"] != "请提供测试消息内容" {
		t.Fatalf("empty body: status = %d body = %v", rec.Code, body)
	}

	_, h = newTestGateway(t, ch, func(c *config.Config) { c.Server.BodyLimitBytes = 16 })
	rec = doRequest(h, http.MethodPost, "/test/message", `{"message":"this message is well past sixteen bytes"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized status = %d, want 413", rec.Code)
	}
	if ch.count() != 0 {
		t.Fatalf("unexpected sends: %v", ch.sent)
	}
}

func TestTestConnection(t *testing.T) {
	ch := &fakeChannel{configured: true}
	_, h := newTestGateway(t, ch, nil)
	if rec := doRequest(h, http.MethodGet, "/test/connection", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(ch.sent[0], "🤖 论坛机器人连接测试 - ") {
		t.Fatalf("unexpected probe text %q", ch.sent[0])
	}

	_, h = newTestGateway(t, &fakeChannel{}, nil)
	if rec := doRequest(h, http.MethodGet, "/test/connection", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("unconfigured status = %d, want 500", rec.Code)
	}
}

func TestSecurityInfoAndSecureTestEndpoint(t *testing.T) {
	_, h := newTestGateway(t, &fakeChannel{configured: true}, nil)
	body := decodeBody(t, doRequest(h, http.MethodGet, "/security/info", ""))
	if body["webhookToken"] != testToken {
		t.Fatalf("unexpected security info: %v", body)
	}

	body = decodeBody(t, doRequest(h, http.MethodGet, "/test/secure/user-reply", ""))
	want := "http://localhost:3000/webhook/" + testToken + "/forum/reply"
	if body["endpoint"] != want {
		t.Fatalf("endpoint = %v, want %s", body["endpoint"], want)
	}
	if rec := doRequest(h, http.MethodGet, "/test/secure/other", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type status = %d", rec.Code)
	}
}

func TestDiagnosticsHiddenInProduction(t *testing.T) {
	_, h := newTestGateway(t, &fakeChannel{configured: true}, func(c *config.Config) { c.Server.Environment = "production" })
	for _, path := range []string{"/security/info", "/test/connection", "/test/secure/user-post"} {
		if rec := doRequest(h, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestGateway(t, &fakeChannel{configured: true}, nil)
	doRequest(h, http.MethodPost, "/webhook/"+testToken+"/forum/user", forumPayload("发布主题 `Hello`", "https://f/d/1"))
	rec := doRequest(h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `forumrelay_webhooks_total{outcome="delivered",route="user"} 1`) {
		t.Fatalf("metrics missing delivered counter:\n%s", rec.Body.String())
	}
}

func TestRecoverInDevelopment(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeChannel{configured: true}, nil)
	h := gw.withRecover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "kaboom" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestEventsStream(t *testing.T) {
	ch := &fakeChannel{configured: true}
	gw, h := newTestGateway(t, ch, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	first := readFrame(t, reader)
	if first.Type != EventConnected {
		t.Fatalf("first event = %q, want connected", first.Type)
	}

	gw.broadcaster.send(SSEEvent{Type: EventProbeResult, Payload: map[string]any{"ok": true}})
	if evt := readFrame(t, reader); evt.Type != EventProbeResult {
		t.Fatalf("event = %q, want %q", evt.Type, EventProbeResult)
	}
}

func readFrame(t *testing.T, r *bufio.Reader) SSEEvent {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			t.Fatalf("read frame: %v", err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			if err == io.EOF {
				t.Fatal("stream closed before a frame arrived")
			}
			continue
		}
		var evt SSEEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			t.Fatalf("decode frame %q: %v", line, err)
		}
		return evt
	}
}
