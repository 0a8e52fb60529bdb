package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"charstudio/orchestrator/internal/infrastructure/studio"
)

func uploadRequest(t *testing.T, fieldName, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadForwardsFile(t *testing.T) {
	var gotName string
	mock := &MockStudioClient{
		UploadFunc: func(_ context.Context, filename string, data []byte) (*studio.UploadResult, error) {
			gotName = filename
			return &studio.UploadResult{Path: "/uploads/stored.png", URL: "https://cdn/stored.png"}, nil
		},
	}
	engine, _ := testServer(t, mock)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "file", "ref.png", []byte{0x89, 'P', 'N', 'G'}))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if gotName != "ref.png" {
		t.Errorf("filename = %q", gotName)
	}
	var body struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Path != "/uploads/stored.png" {
		t.Errorf("path = %q", body.Path)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	engine, _ := testServer(t, &MockStudioClient{})

	big := make([]byte, 2<<20) // above the 1 MiB test limit
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "file", "huge.png", big))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	engine, _ := testServer(t, &MockStudioClient{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "attachment", "ref.png", []byte("x")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
