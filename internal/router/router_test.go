package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskflow/api/handler"
	"github.com/fastygo/taskflow/internal/ai"
	"github.com/fastygo/taskflow/internal/config"
	"github.com/fastygo/taskflow/internal/infrastructure/monitor"
	"github.com/fastygo/taskflow/internal/middleware"
	"github.com/fastygo/taskflow/internal/ratelimit"
	"github.com/fastygo/taskflow/internal/testutil"
	"github.com/fastygo/taskflow/pkg/httpcontext"
	assistUC "github.com/fastygo/taskflow/usecase/assist"
	identityUC "github.com/fastygo/taskflow/usecase/identity"
	taskUC "github.com/fastygo/taskflow/usecase/task"
)

const secret = "router-test-secret"

type stubStatus struct{ status monitor.Status }

func (s stubStatus) GetStatus() monitor.Status { return s.status }

type stubSuggester struct{}

func (stubSuggester) Suggest(_ context.Context, c string) (string, error) {
	return "1. Plan " + c, nil
}

type stubImages struct{ url *string }

func (s stubImages) Generate(context.Context, string) (*string, error) { return s.url, nil }

type stubSpeech struct{ key string }

func (s stubSpeech) Transcribe(_ context.Context, audio ai.Audio) (string, error) {
	if s.key == "" {
		return "", ai.ErrMissingCredentials
	}
	return "heard " + strconv.Itoa(len(audio.Data)) + " bytes", nil
}

type options struct {
	production bool
	status     monitor.Status
	images     stubImages
	speech     stubSpeech
}

type harness struct {
	t       *testing.T
	handler fasthttp.RequestHandler
	tasks   *testutil.TaskStore
	users   *testutil.UserStore
}

func newHarness(t *testing.T, opts options) *harness {
	t.Helper()
	tasks := testutil.NewTaskStore()
	users := testutil.NewUserStore()
	identity := identityUC.New(users, testutil.NewSessionStore(), nil, time.Hour, nil)

	verifier, err := middleware.NewVerifier(config.AuthConfig{Secret: secret})
	if err != nil {
		t.Fatal(err)
	}
	adapter := httpcontext.NewAdapter(time.Second)

	handlers := Handlers{
		Health:  apiHandler.NewHealthHandler(stubStatus{opts.status}, adapter, nil),
		Profile: apiHandler.NewProfileHandler(identity, adapter, nil),
		Task: apiHandler.NewTaskHandler(taskUC.New(tasks, nil),
			ratelimit.New("task-create", 20, time.Hour), adapter, nil, opts.production),
		Assist: apiHandler.NewAssistHandler(
			assistUC.New(stubSuggester{}, opts.images, opts.speech, nil),
			apiHandler.Limiters{
				Suggest: ratelimit.New("ai-suggest", 5, time.Minute),
				Image:   ratelimit.New("fal-image", 5, time.Minute),
				Voice:   ratelimit.New("voice-to-text", 10, time.Minute),
			}, adapter, nil, opts.production),
	}
	r := New(handlers, middleware.JWTAuth(verifier, identity, adapter, nil), nil)
	return &harness{
		t:       t,
		handler: middleware.RequestLogger(nil)(r.Handler),
		tasks:   tasks,
		users:   users,
	}
}

func (h *harness) token(user string) string {
	h.t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user,
		"sid":   "sess_" + user,
		"email": user + "@example.com",
	}).SignedString([]byte(secret))
	if err != nil {
		h.t.Fatal(err)
	}
	return token
}

func (h *harness) send(req *fasthttp.Request, user string) *fasthttp.Response {
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+h.token(user))
	}
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(req, nil, nil)
	h.handler(ctx)
	resp := &fasthttp.Response{}
	ctx.Response.CopyTo(resp)
	return resp
}

func (h *harness) do(method, path, user, body string) *fasthttp.Response {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	return h.send(&req, user)
}

func decode(t *testing.T, resp *fasthttp.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		t.Fatalf("decode %s: %v", resp.Body(), err)
	}
	return out
}

func expect(t *testing.T, resp *fasthttp.Response, status int, message string) map[string]interface{} {
	t.Helper()
	if resp.StatusCode() != status {
		t.Fatalf("status = %d, want %d; body %s", resp.StatusCode(), status, resp.Body())
	}
	body := decode(t, resp)
	if message != "" && body["error"] != message {
		t.Fatalf("error = %v, want %q", body["error"], message)
	}
	return body
}

const milk = `{"title":"Buy milk","priority":"Low","status":"Todo","due_date":"2024-01-01"}`

func (h *harness) create(user, body string) string {
	h.t.Helper()
	resp := h.do("POST", "/api/tasks", user, body)
	task := expect(h.t, resp, 200, "")
	id, _ := task["id"].(string)
	if id == "" {
		h.t.Fatalf("created task without id: %s", resp.Body())
	}
	return id
}

func TestUnauthenticated(t *testing.T) {
	h := newHarness(t, options{})
	for _, route := range [][2]string{
		{"GET", "/api/tasks"}, {"POST", "/api/tasks"}, {"PATCH", "/api/tasks"},
		{"DELETE", "/api/tasks"}, {"GET", "/api/tasks/x"}, {"POST", "/api/ai-suggest"},
		{"POST", "/api/voice-to-text"}, {"GET", "/api/me"},
	} {
		resp := h.do(route[0], route[1], "", "")
		if resp.StatusCode() != 401 || decode(t, resp)["error"] != "Unauthorized" {
			t.Errorf("%s %s: %d %s", route[0], route[1], resp.StatusCode(), resp.Body())
		}
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	h := newHarness(t, options{})

	created := h.do("POST", "/api/tasks", "alice", milk)
	task := expect(t, created, 200, "")
	if task["status"] != "To Do" || task["due_date"] != "2024-01-01T00:00:00Z" || task["user_id"] != "alice" {
		t.Errorf("created = %v", task)
	}
	if task["description"] != nil || task["image_url"] != nil {
		t.Errorf("absent optional fields should be null: %v", task)
	}

	got := h.do("GET", "/api/tasks/"+task["id"].(string), "alice", "")
	if got.StatusCode() != 200 || !bytes.Equal(got.Body(), created.Body()) {
		t.Errorf("GET = %d %s, want %s", got.StatusCode(), got.Body(), created.Body())
	}

	list := h.do("GET", "/api/tasks", "alice", "")
	var tasks []map[string]interface{}
	if err := json.Unmarshal(list.Body(), &tasks); err != nil || len(tasks) != 1 || tasks[0]["id"] != task["id"] {
		t.Errorf("list = %s", list.Body())
	}

	if len(created.Header.Peek("X-Request-ID")) == 0 {
		t.Error("missing X-Request-ID")
	}
}

func TestListFilterAndEmpty(t *testing.T) {
	h := newHarness(t, options{})

	if resp := h.do("GET", "/api/tasks", "alice", ""); string(resp.Body()) != "[]" {
		t.Errorf("empty list = %s", resp.Body())
	}
	h.create("alice", milk)
	h.create("alice", `{"title":"Ship","priority":"High","status":"Done"}`)

	var tasks []map[string]interface{}
	_ = json.Unmarshal(h.do("GET", "/api/tasks?status=Todo", "alice", "").Body(), &tasks)
	if len(tasks) != 1 || tasks[0]["title"] != "Buy milk" {
		t.Errorf("filtered = %v", tasks)
	}
	expect(t, h.do("GET", "/api/tasks?status=Blocked", "alice", ""), 400, "Invalid status filter.")
}

func TestListPagination(t *testing.T) {
	h := newHarness(t, options{})
	for _, title := range []string{"one", "two", "three"} {
		h.create("alice", `{"title":"`+title+`","priority":"Low","status":"To Do"}`)
	}

	var tasks []map[string]interface{}
	_ = json.Unmarshal(h.do("GET", "/api/tasks?limit=1&offset=1", "alice", "").Body(), &tasks)
	if len(tasks) != 1 || tasks[0]["title"] != "two" {
		t.Errorf("page = %v", tasks)
	}

	tasks = nil
	_ = json.Unmarshal(h.do("GET", "/api/tasks", "alice", "").Body(), &tasks)
	if len(tasks) != 3 {
		t.Errorf("default listing has %d tasks, want all 3", len(tasks))
	}

	for _, q := range []string{"limit=-1", "limit=abc", "offset=x"} {
		expect(t, h.do("GET", "/api/tasks?"+q, "alice", ""), 400, "Invalid pagination.")
	}
}

func TestOwnershipIsolation(t *testing.T) {
	h := newHarness(t, options{})
	id := h.create("alice", milk)
	const notYours = "Task not found or not yours."

	expect(t, h.do("GET", "/api/tasks/"+id, "bob", ""), 404, notYours)
	expect(t, h.do("PUT", "/api/tasks/"+id, "bob", milk), 404, notYours)
	expect(t, h.do("PATCH", "/api/tasks", "bob", `{"id":"`+id+`","title":"mine"}`), 404, notYours)
	expect(t, h.do("DELETE", "/api/tasks", "bob", `{"id":"`+id+`"}`), 404, notYours)
	expect(t, h.do("DELETE", "/api/tasks/"+id, "bob", ""), 404, notYours)

	if resp := h.do("GET", "/api/tasks", "bob", ""); string(resp.Body()) != "[]" {
		t.Errorf("bob's list = %s", resp.Body())
	}
	task := expect(t, h.do("GET", "/api/tasks/"+id, "alice", ""), 200, "")
	if task["title"] != "Buy milk" {
		t.Errorf("alice's task changed: %v", task)
	}
}

func TestReplace(t *testing.T) {
	h := newHarness(t, options{})
	id := h.create("alice", `{"title":"Buy milk","description":"2L","priority":"Low","status":"To Do"}`)

	task := expect(t, h.do("PUT", "/api/tasks/"+id, "alice", `{"title":"Buy oat milk","priority":"Medium","status":"In Progress"}`), 200, "")
	if task["title"] != "Buy oat milk" || task["description"] != nil || task["status"] != "In Progress" {
		t.Errorf("replaced = %v", task)
	}

	body := expect(t, h.do("PUT", "/api/tasks/"+id, "alice", `{"title":""}`), 400, "Invalid input: Please provide valid task fields.")
	if _, ok := body["details"]; !ok {
		t.Error("validation details missing outside production")
	}
}

func TestPatch(t *testing.T) {
	h := newHarness(t, options{})
	id := h.create("alice", milk)

	expect(t, h.do("PATCH", "/api/tasks", "alice", `{"status":"Done"}`), 400, "Task id required.")
	expect(t, h.do("PATCH", "/api/tasks", "alice", `{"id":"`+id+`"}`), 400, "No valid fields to update.")
	expect(t, h.do("PATCH", "/api/tasks", "alice", `{"id":"`+id+`","priority":"Urgent"}`), 400, "Invalid update fields.")
	expect(t, h.do("PATCH", "/api/tasks", "alice", `{"id":`), 400, "Invalid JSON body.")

	task := expect(t, h.do("PATCH", "/api/tasks", "alice", `{"id":"`+id+`","status":"Done","due_date":null}`), 200, "")
	if task["status"] != "Done" || task["title"] != "Buy milk" || task["due_date"] != nil {
		t.Errorf("patched = %v", task)
	}
}

func TestDeleteTwice(t *testing.T) {
	h := newHarness(t, options{})

	id := h.create("alice", milk)
	if body := expect(t, h.do("DELETE", "/api/tasks", "alice", `{"id":"`+id+`"}`), 200, ""); body["success"] != true {
		t.Errorf("body = %v", body)
	}
	expect(t, h.do("DELETE", "/api/tasks", "alice", `{"id":"`+id+`"}`), 404, "Task not found or not yours.")
	expect(t, h.do("DELETE", "/api/tasks", "alice", `{}`), 400, "Task id required.")

	id = h.create("alice", milk)
	expect(t, h.do("DELETE", "/api/tasks/"+id, "alice", ""), 200, "")
	expect(t, h.do("DELETE", "/api/tasks/"+id, "alice", ""), 404, "")
	expect(t, h.do("DELETE", "/api/tasks/"+id, "alice", ""), 404, "")

	if h.tasks.Count() != 0 {
		t.Errorf("store has %d tasks", h.tasks.Count())
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, options{})

	expect(t, h.do("POST", "/api/tasks", "alice", `not json`), 400, "Invalid JSON body.")
	body := expect(t, h.do("POST", "/api/tasks", "alice", `{"title":"","priority":"Low","status":"Done"}`), 400,
		"Invalid input: Please provide valid task fields.")
	details, _ := body["details"].(map[string]interface{})
	if _, ok := details["title"]; !ok {
		t.Errorf("details = %v", body["details"])
	}
	expect(t, h.do("POST", "/api/tasks", "alice", `{"title":"a\u0000b","priority":"Low","status":"Done"}`), 400,
		"Invalid input: Please provide valid task fields.")
	if h.tasks.Count() != 0 {
		t.Error("invalid task stored")
	}
}

func TestProductionHidesDetails(t *testing.T) {
	h := newHarness(t, options{production: true})
	body := expect(t, h.do("POST", "/api/tasks", "alice", `{"title":""}`), 400, "")
	if _, ok := body["details"]; ok {
		t.Errorf("details leaked in production: %v", body)
	}
}

func TestCreateRateLimit(t *testing.T) {
	h := newHarness(t, options{})
	for i := 0; i < 20; i++ {
		h.create("alice", milk)
	}

	resp := h.do("POST", "/api/tasks", "alice", milk)
	expect(t, resp, 429, "Task creation rate limit exceeded. Please wait and try again.")
	if got := string(resp.Header.Peek("Retry-After")); got != "3600" {
		t.Errorf("Retry-After = %q", got)
	}
	if h.tasks.Count() != 20 {
		t.Errorf("store has %d tasks, want 20", h.tasks.Count())
	}

	// Independent keyspaces: another user and another endpoint are unaffected.
	h.create("bob", milk)
	expect(t, h.do("POST", "/api/ai-suggest", "alice", `{"context":"x"}`), 200, "")
}

func TestSuggest(t *testing.T) {
	h := newHarness(t, options{})

	body := expect(t, h.do("POST", "/api/ai-suggest", "alice", `{"context":"trip"}`), 200, "")
	if body["suggestions"] != "1. Plan trip" {
		t.Errorf("body = %v", body)
	}
	expect(t, h.do("POST", "/api/ai-suggest", "alice", `{"context":""}`), 400,
		"Invalid input: 'context' is required and must be a string (1-1000 chars).")
	expect(t, h.do("POST", "/api/ai-suggest", "alice", `{`), 400, "Invalid JSON body.")

	// Five allowed per minute; the three calls above consumed three.
	expect(t, h.do("POST", "/api/ai-suggest", "alice", `{"context":"a"}`), 200, "")
	expect(t, h.do("POST", "/api/ai-suggest", "alice", `{"context":"b"}`), 200, "")
	expect(t, h.do("POST", "/api/ai-suggest", "alice", `{"context":"c"}`), 429, "Rate limit exceeded. Please wait and try again.")
}

func TestImage(t *testing.T) {
	url := "https://cdn/img.png"
	h := newHarness(t, options{images: stubImages{url: &url}})
	body := expect(t, h.do("POST", "/api/fal-image", "alice", `{"prompt":"a cat"}`), 200, "")
	if body["imageUrl"] != url {
		t.Errorf("body = %v", body)
	}
	expect(t, h.do("POST", "/api/fal-image", "alice", `{"prompt":"`+strings.Repeat("p", 301)+`"}`), 400,
		"Invalid input: 'prompt' is required and must be a string (1-300 chars).")

	h = newHarness(t, options{})
	resp := h.do("POST", "/api/fal-image", "alice", `{"prompt":"a cat"}`)
	if resp.StatusCode() != 200 || string(resp.Body()) != `{"imageUrl":null}` {
		t.Errorf("no image = %d %s", resp.StatusCode(), resp.Body())
	}
}

func (h *harness) voice(user string, audio []byte) *fasthttp.Response {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if audio != nil {
		part, _ := w.CreateFormFile("audio", "blob")
		_, _ = part.Write(audio)
	} else {
		_ = w.WriteField("other", "x")
	}
	_ = w.Close()

	var req fasthttp.Request
	req.Header.SetMethod("POST")
	req.SetRequestURI("/api/voice-to-text")
	req.Header.SetContentType(w.FormDataContentType())
	req.SetBody(buf.Bytes())
	return h.send(&req, user)
}

func TestVoice(t *testing.T) {
	h := newHarness(t, options{speech: stubSpeech{key: "xi"}})

	body := expect(t, h.voice("alice", []byte("webm!")), 200, "")
	if body["transcript"] != "heard 5 bytes" {
		t.Errorf("body = %v", body)
	}
	expect(t, h.voice("alice", nil), 400, "No audio provided")

	h = newHarness(t, options{})
	expect(t, h.voice("alice", []byte("webm!")), 500, "Missing ElevenLabs API key")
}

func TestProfileSyncedOnAuth(t *testing.T) {
	h := newHarness(t, options{})

	body := expect(t, h.do("GET", "/api/me", "alice", ""), 200, "")
	if body["id"] != "alice" || body["email"] != "alice@example.com" {
		t.Errorf("profile = %v", body)
	}
	h.do("GET", "/api/tasks", "alice", "")
	if h.users.Upserts != 1 {
		t.Errorf("upserts = %d, want one per session", h.users.Upserts)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, options{status: monitor.Status{PostgreSQL: true, SyncQueue: true}})
	body := expect(t, h.do("GET", "/health", "", ""), 200, "")
	services, _ := body["services"].(map[string]interface{})
	if services["postgresql"] != true {
		t.Errorf("body = %v", body)
	}
	if _, ok := services["redis"]; ok {
		t.Error("disabled redis should be omitted")
	}

	h = newHarness(t, options{status: monitor.Status{PostgreSQL: true, RedisEnabled: true}})
	body = expect(t, h.do("GET", "/health", "", ""), 503, "")
	if body["status"] != "degraded" {
		t.Errorf("body = %v", body)
	}
}

func TestPanicHandler(t *testing.T) {
	r := New(Handlers{
		Health:  apiHandler.NewHealthHandler(stubStatus{}, nil, nil),
		Profile: &apiHandler.ProfileHandler{},
		Task:    &apiHandler.TaskHandler{},
		Assist:  &apiHandler.AssistHandler{},
	}, func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }, nil)
	r.GET("/boom", func(*fasthttp.RequestCtx) { panic("kaboom") })

	var req fasthttp.Request
	req.SetRequestURI("/boom")
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	r.Handler(ctx)

	if ctx.Response.StatusCode() != 500 {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	var body map[string]interface{}
	_ = json.Unmarshal(ctx.Response.Body(), &body)
	if body["error"] != "Internal server error" {
		t.Errorf("body = %s", ctx.Response.Body())
	}
}
