package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/config"
	flowerrors "charstudio/orchestrator/internal/domain/errors"
	"charstudio/orchestrator/internal/domain/gallery"
	"charstudio/orchestrator/internal/domain/session"
	"charstudio/orchestrator/internal/domain/status"
	"charstudio/orchestrator/internal/domain/task"
	"charstudio/orchestrator/internal/infrastructure/studio"
	"charstudio/orchestrator/internal/interfaces/httpserver"
	"charstudio/orchestrator/internal/orchestrator"
)

// MockStudioClient is a func-field mock of the generation backend. Only the
// methods a given test exercises need a func assigned.
type MockStudioClient struct {
	ChatFunc        func(ctx context.Context, req studio.ChatRequest) (*studio.ChatResponse, error)
	ConfirmFunc     func(ctx context.Context, req studio.ConfirmRequest) (*studio.ChatResponse, error)
	EditChatFunc    func(ctx context.Context, req studio.EditChatRequest) (*studio.ChatResponse, error)
	EditConfirmFunc func(ctx context.Context, req studio.EditConfirmRequest) (*studio.ChatResponse, error)
	CancelFunc      func(ctx context.Context, sessionID string) error
	ClearFunc       func(ctx context.Context, sessionID string) error
	TaskStatusFunc  func(ctx context.Context, sessionID, taskID string) (task.Snapshot, error)
	ListMediaFunc   func(ctx context.Context, characterID string) ([]gallery.Record, error)
	DeleteMediaFunc func(ctx context.Context, mediaID string) error
	RetryMediaFunc  func(ctx context.Context, mediaID string) (*gallery.Record, error)
	AnimateFunc     func(ctx context.Context, req studio.AnimateRequest) (*studio.AnimateResult, error)
	BaseImagesFunc  func(ctx context.Context, characterID string, count int) (*studio.BaseImagesResponse, error)
	UploadFunc      func(ctx context.Context, filename string, data []byte) (*studio.UploadResult, error)
	BalanceFunc     func(ctx context.Context) (*studio.Balance, error)
}

func (m *MockStudioClient) Chat(ctx context.Context, req studio.ChatRequest) (*studio.ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return &studio.ChatResponse{Message: "ok", SessionID: "sess-1", State: session.StateIdle}, nil
}

func (m *MockStudioClient) Confirm(ctx context.Context, req studio.ConfirmRequest) (*studio.ChatResponse, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, req)
	}
	return &studio.ChatResponse{Message: "started", SessionID: "sess-1", State: session.StateExecuting}, nil
}

func (m *MockStudioClient) EditChat(ctx context.Context, req studio.EditChatRequest) (*studio.ChatResponse, error) {
	if m.EditChatFunc != nil {
		return m.EditChatFunc(ctx, req)
	}
	return &studio.ChatResponse{Message: "ok", SessionID: "sess-1"}, nil
}

func (m *MockStudioClient) EditConfirm(ctx context.Context, req studio.EditConfirmRequest) (*studio.ChatResponse, error) {
	if m.EditConfirmFunc != nil {
		return m.EditConfirmFunc(ctx, req)
	}
	return &studio.ChatResponse{Message: "started", SessionID: "sess-1"}, nil
}

func (m *MockStudioClient) Cancel(ctx context.Context, sessionID string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockStudioClient) Clear(ctx context.Context, sessionID string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockStudioClient) TaskStatus(ctx context.Context, sessionID, taskID string) (task.Snapshot, error) {
	if m.TaskStatusFunc != nil {
		return m.TaskStatusFunc(ctx, sessionID, taskID)
	}
	return task.Snapshot{ID: taskID, Status: status.StatusGenerating}, nil
}

func (m *MockStudioClient) ListMedia(ctx context.Context, characterID string) ([]gallery.Record, error) {
	if m.ListMediaFunc != nil {
		return m.ListMediaFunc(ctx, characterID)
	}
	return nil, nil
}

func (m *MockStudioClient) DeleteMedia(ctx context.Context, mediaID string) error {
	if m.DeleteMediaFunc != nil {
		return m.DeleteMediaFunc(ctx, mediaID)
	}
	return nil
}

func (m *MockStudioClient) RetryMedia(ctx context.Context, mediaID string) (*gallery.Record, error) {
	if m.RetryMediaFunc != nil {
		return m.RetryMediaFunc(ctx, mediaID)
	}
	return &gallery.Record{ID: mediaID}, nil
}

func (m *MockStudioClient) Animate(ctx context.Context, req studio.AnimateRequest) (*studio.AnimateResult, error) {
	if m.AnimateFunc != nil {
		return m.AnimateFunc(ctx, req)
	}
	return &studio.AnimateResult{Success: true, VideoID: "vid-1", Message: "started"}, nil
}

func (m *MockStudioClient) GenerateBaseImages(ctx context.Context, characterID string, count int) (*studio.BaseImagesResponse, error) {
	if m.BaseImagesFunc != nil {
		return m.BaseImagesFunc(ctx, characterID, count)
	}
	return &studio.BaseImagesResponse{}, nil
}

func (m *MockStudioClient) Upload(ctx context.Context, filename string, data []byte) (*studio.UploadResult, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, filename, data)
	}
	return &studio.UploadResult{Path: "/uploads/" + filename}, nil
}

func (m *MockStudioClient) Balance(ctx context.Context) (*studio.Balance, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx)
	}
	return &studio.Balance{TokenBalance: 10}, nil
}

func testServer(t *testing.T, mock *MockStudioClient) (*gin.Engine, *orchestrator.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ServiceName:             "studio-orchestrator",
		HTTPPort:                0,
		MaxUploadBytes:          1 << 20,
		TaskPollInterval:        2 * time.Second,
		SideChannelPollInterval: 3 * time.Second,
		TimeoutSweepInterval:    5 * time.Second,
		TaskTimeout:             60 * time.Second,
		CompletedEvictionDelay:  2 * time.Second,
		FailedEvictionDelay:     3 * time.Second,
		ShutdownTimeout:         time.Second,
	}
	manager := orchestrator.NewManager(mock, cfg, zerolog.Nop())
	t.Cleanup(manager.Close)

	server := httpserver.New(cfg, zerolog.Nop(), manager, mock)
	return server.Engine(), manager
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func activate(t *testing.T, engine *gin.Engine, characterID string) {
	t.Helper()
	w := doJSON(t, engine, http.MethodPost, "/v1/characters/"+characterID+"/activate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activate status = %d: %s", w.Code, w.Body.String())
	}
}

func TestSendWithoutActiveCharacter(t *testing.T) {
	engine, _ := testServer(t, &MockStudioClient{})

	w := doJSON(t, engine, http.MethodPost, "/v1/chat", map[string]string{"message": "hi"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["kind"] != flowerrors.KindWrongState.String() {
		t.Errorf("kind = %v", body["kind"])
	}
}

func TestSendReturnsProposal(t *testing.T) {
	mock := &MockStudioClient{
		ChatFunc: func(_ context.Context, req studio.ChatRequest) (*studio.ChatResponse, error) {
			return &studio.ChatResponse{
				Message:   "Here is the plan",
				SessionID: "sess-1",
				State:     session.StateAwaitingConfirmation,
				PendingGeneration: &studio.PendingGeneration{
					Skill:           "image_generator",
					OptimizedPrompt: "a woman at the beach",
					Reasoning:       "beach request",
					Suggestions:     []string{"night version"},
				},
			}, nil
		},
	}
	engine, _ := testServer(t, mock)
	activate(t, engine, "char-1")

	w := doJSON(t, engine, http.MethodPost, "/v1/chat", map[string]string{"message": "beach photo"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Reply      string `json:"reply"`
		State      string `json:"state"`
		Transition string `json:"transition"`
		Proposal   *struct {
			OptimizedPrompt string `json:"optimized_prompt"`
		} `json:"proposal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.State != string(session.StateAwaitingConfirmation) {
		t.Errorf("state = %q", body.State)
	}
	if body.Transition != string(session.TransitionPropose) {
		t.Errorf("transition = %q", body.Transition)
	}
	if body.Proposal == nil || body.Proposal.OptimizedPrompt != "a woman at the beach" {
		t.Errorf("proposal = %+v", body.Proposal)
	}
}

func TestConfirmFlowSpawnsTask(t *testing.T) {
	mock := &MockStudioClient{
		ChatFunc: func(context.Context, studio.ChatRequest) (*studio.ChatResponse, error) {
			return &studio.ChatResponse{
				Message:   "plan",
				SessionID: "sess-1",
				State:     session.StateAwaitingConfirmation,
				PendingGeneration: &studio.PendingGeneration{
					Skill:           "image_generator",
					OptimizedPrompt: "prompt",
				},
			}, nil
		},
		ConfirmFunc: func(context.Context, studio.ConfirmRequest) (*studio.ChatResponse, error) {
			return &studio.ChatResponse{
				Message:   "Generation started",
				SessionID: "sess-1",
				State:     session.StateExecuting,
				ActiveTask: &studio.GenerationTask{
					TaskID: "task-42",
					Status: "pending",
				},
			}, nil
		},
	}
	engine, _ := testServer(t, mock)
	activate(t, engine, "char-1")

	doJSON(t, engine, http.MethodPost, "/v1/chat", map[string]string{"message": "beach"})
	w := doJSON(t, engine, http.MethodPost, "/v1/chat/confirm", map[string]string{"aspect_ratio": "1:1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Task *struct {
			ID string `json:"task_id"`
		} `json:"task"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Task == nil || body.Task.ID != "task-42" {
		t.Fatalf("task = %+v", body.Task)
	}

	// The spawned task is visible in the registry listing.
	w = doJSON(t, engine, http.MethodGet, "/v1/tasks", nil)
	var list struct {
		Tasks []struct {
			ID string `json:"task_id"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].ID != "task-42" {
		t.Errorf("tasks = %+v", list.Tasks)
	}
}

func TestConfirmWithoutProposalIs409(t *testing.T) {
	engine, _ := testServer(t, &MockStudioClient{})
	activate(t, engine, "char-1")

	w := doJSON(t, engine, http.MethodPost, "/v1/chat/confirm", map[string]string{})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestInsufficientBalanceIs402(t *testing.T) {
	mock := &MockStudioClient{
		ChatFunc: func(context.Context, studio.ChatRequest) (*studio.ChatResponse, error) {
			return &studio.ChatResponse{
				Message:   "plan",
				SessionID: "sess-1",
				State:     session.StateAwaitingConfirmation,
				PendingGeneration: &studio.PendingGeneration{
					Skill:           "image_generator",
					OptimizedPrompt: "prompt",
				},
			}, nil
		},
		ConfirmFunc: func(context.Context, studio.ConfirmRequest) (*studio.ChatResponse, error) {
			return nil, flowerrors.ErrInsufficientBalance
		},
	}
	engine, _ := testServer(t, mock)
	activate(t, engine, "char-1")

	doJSON(t, engine, http.MethodPost, "/v1/chat", map[string]string{"message": "beach"})
	w := doJSON(t, engine, http.MethodPost, "/v1/chat/confirm", map[string]string{})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402: %s", w.Code, w.Body.String())
	}
}

func TestTaskGetUnknownIDReturnsFailedSnapshot(t *testing.T) {
	engine, _ := testServer(t, &MockStudioClient{})
	activate(t, engine, "char-1")

	w := doJSON(t, engine, http.MethodGet, "/v1/tasks/ghost-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, unknown tasks answer 200 with a failed snapshot", w.Code)
	}

	var body struct {
		Status string `json:"status"`
		Stage  string `json:"stage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != string(status.StatusFailed) || body.Stage != "not_found" {
		t.Errorf("body = %+v", body)
	}
}

func TestGalleryRefresh(t *testing.T) {
	mock := &MockStudioClient{
		ListMediaFunc: func(context.Context, string) ([]gallery.Record, error) {
			return []gallery.Record{
				{ID: "img-1", Type: gallery.MediaTypeContent, Status: status.StatusCompleted, URL: "https://cdn/img.png"},
				{ID: "vid-1", Type: gallery.MediaTypeVideo, Status: status.StatusCompleted, URL: "https://cdn/vid.mp4"},
			}, nil
		},
	}
	engine, _ := testServer(t, mock)
	activate(t, engine, "char-1")

	w := doJSON(t, engine, http.MethodPost, "/v1/gallery/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Images []struct{ ID string } `json:"images"`
		Videos []struct{ ID string } `json:"videos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Images) != 1 || len(body.Videos) != 1 {
		t.Errorf("images = %d, videos = %d", len(body.Images), len(body.Videos))
	}
}

func TestAnimateMediaSpawnsTask(t *testing.T) {
	mock := &MockStudioClient{
		AnimateFunc: func(_ context.Context, req studio.AnimateRequest) (*studio.AnimateResult, error) {
			if req.ImageID != "img-1" || req.Prompt == "" {
				t.Errorf("request = %+v", req)
			}
			return &studio.AnimateResult{Success: true, VideoID: "vid-9", Message: "started"}, nil
		},
	}
	engine, _ := testServer(t, mock)
	activate(t, engine, "char-1")

	w := doJSON(t, engine, http.MethodPost, "/v1/media/img-1/animate", map[string]string{
		"image_url": "/uploads/img.png",
		"prompt":    "gentle wave",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		ID   string `json:"task_id"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ID != "vid-9" || body.Kind != "animate" {
		t.Errorf("body = %+v", body)
	}
}

func TestAnimateMediaRequiresPrompt(t *testing.T) {
	engine, _ := testServer(t, &MockStudioClient{})
	activate(t, engine, "char-1")

	w := doJSON(t, engine, http.MethodPost, "/v1/media/img-1/animate", map[string]string{
		"image_url": "/uploads/img.png",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	mock := &MockStudioClient{
		BalanceFunc: func(context.Context) (*studio.Balance, error) {
			return &studio.Balance{TokenBalance: 7}, nil
		},
	}
	engine, _ := testServer(t, mock)
	activate(t, engine, "char-1")

	w := doJSON(t, engine, http.MethodGet, "/v1/balance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		TokenBalance int `json:"token_balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.TokenBalance != 7 {
		t.Errorf("balance = %d", body.TokenBalance)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	engine, _ := testServer(t, &MockStudioClient{})
	activate(t, engine, "char-1") // default "local" user

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.Header.Set("X-User-ID", "someone-else")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, another user must not see the activated workspace", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	engine, _ := testServer(t, &MockStudioClient{})

	for _, path := range []string{"/", "/healthz", "/readyz"} {
		w := doJSON(t, engine, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
}
