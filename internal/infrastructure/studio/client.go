// Package studio is the HTTP client for the generation backend: the
// conversation endpoints, the task status endpoint, the character media
// list and the upload surface.
package studio

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/config"
	flowerrors "charstudio/orchestrator/internal/domain/errors"
	"charstudio/orchestrator/internal/domain/gallery"
	"charstudio/orchestrator/internal/domain/task"
	"charstudio/orchestrator/internal/infrastructure/metrics"
)

const (
	chatPath        = "/agent/chat"
	confirmPath     = "/agent/confirm"
	cancelPath      = "/agent/cancel"
	clearPath       = "/agent/clear"
	editChatPath    = "/agent/image-edit"
	editConfirmPath = "/agent/image-edit/confirm"
	taskPath        = "/agent/tasks/{task_id}"
	mediaListPath   = "/characters/{character_id}/images"
	baseImagesPath  = "/characters/{character_id}/generate-base-images"
	mediaPath       = "/images/{image_id}"
	mediaRetryPath  = "/images/{image_id}/retry"
	animatePath     = "/animate/generate"
	uploadPath      = "/uploads"
	balancePath     = "/auth/me"
)

// Client talks to the generation backend over HTTP.
type Client struct {
	http    *resty.Client
	retry   RetryConfig
	breaker *CircuitBreaker
	logger  zerolog.Logger
}

// NewClient wires a resty client for the backend base URL.
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.StudioAPIURL, "/")).
		SetTimeout(cfg.StudioAPITimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.StudioAPIToken != "" {
		httpClient.SetAuthToken(cfg.StudioAPIToken)
	}

	return &Client{
		http:    httpClient,
		retry:   DefaultRetryConfig(),
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:  logger.With().Str("component", "studio_client").Logger(),
	}
}

// Chat sends a conversation message. Used for both fresh proposals and
// modifications of a pending one; the backend distinguishes them by session
// state.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return c.postChat(ctx, "chat", chatPath, req)
}

// Confirm approves the pending generation and returns the reply that
// carries the spawned background task.
func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (*ChatResponse, error) {
	return c.postChat(ctx, "confirm", confirmPath, req)
}

// EditChat opens an image-edit round against a source image.
func (c *Client) EditChat(ctx context.Context, req EditChatRequest) (*ChatResponse, error) {
	return c.postChat(ctx, "edit_chat", editChatPath, req)
}

// EditConfirm approves the pending image edit.
func (c *Client) EditConfirm(ctx context.Context, req EditConfirmRequest) (*ChatResponse, error) {
	return c.postChat(ctx, "edit_confirm", editConfirmPath, req)
}

func (c *Client) postChat(ctx context.Context, operation, path string, body any) (*ChatResponse, error) {
	return withCall(c, ctx, operation, func() (*ChatResponse, error) {
		out := &ChatResponse{}
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(out).
			Post(path)
		if err != nil {
			return nil, flowerrors.Wrap(err, flowerrors.KindTransient, operation+" call failed")
		}
		if resp.IsError() {
			return nil, c.statusError(operation, resp)
		}
		return out, nil
	})
}

// Cancel tells the backend to drop the session's pending generation.
// Best-effort: local state is already cleared by the caller.
func (c *Client) Cancel(ctx context.Context, sessionID string) error {
	_, err := withCall(c, ctx, "cancel", func() (*struct{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("session_id", sessionID).
			Post(cancelPath)
		if err != nil {
			return nil, flowerrors.Wrap(err, flowerrors.KindTransient, "cancel call failed")
		}
		if resp.IsError() {
			return nil, c.statusError("cancel", resp)
		}
		return &struct{}{}, nil
	})
	return err
}

// Clear wipes the session's server-side conversation history.
func (c *Client) Clear(ctx context.Context, sessionID string) error {
	_, err := withCall(c, ctx, "clear", func() (*struct{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("session_id", sessionID).
			Post(clearPath)
		if err != nil {
			return nil, flowerrors.Wrap(err, flowerrors.KindTransient, "clear call failed")
		}
		if resp.IsError() {
			return nil, c.statusError("clear", resp)
		}
		return &struct{}{}, nil
	})
	return err
}

// TaskStatus fetches the backend's view of one background task. The backend
// answers an unknown id with a synthesized failed snapshot rather than a
// 404, so a restart on its side resolves pollers instead of erroring them.
func (c *Client) TaskStatus(ctx context.Context, sessionID, taskID string) (task.Snapshot, error) {
	start := time.Now()
	out := &GenerationTask{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("task_id", taskID).
		SetQueryParam("session_id", sessionID).
		SetResult(out).
		Get(taskPath)
	metrics.ObserveStudioCall("task_status", start, err)
	if err != nil {
		return task.Snapshot{}, flowerrors.Wrap(err, flowerrors.KindTransient, "task status call failed").WithTask(taskID)
	}
	if resp.IsError() {
		return task.Snapshot{}, c.statusError("task_status", resp)
	}
	return out.toSnapshot(), nil
}

// ListMedia fetches the authoritative media records for a character.
func (c *Client) ListMedia(ctx context.Context, characterID string) ([]gallery.Record, error) {
	start := time.Now()
	var out []mediaRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("character_id", characterID).
		SetResult(&out).
		Get(mediaListPath)
	metrics.ObserveStudioCall("list_media", start, err)
	if err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.KindTransient, "media list call failed")
	}
	if resp.IsError() {
		return nil, c.statusError("list_media", resp)
	}

	records := make([]gallery.Record, 0, len(out))
	for i := range out {
		records = append(records, out[i].toRecord())
	}
	return records, nil
}

// DeleteMedia removes a media record. Used to compensate draft records left
// behind by a cancelled job.
func (c *Client) DeleteMedia(ctx context.Context, mediaID string) error {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("image_id", mediaID).
		Delete(mediaPath)
	metrics.ObserveStudioCall("delete_media", start, err)
	if err != nil {
		return flowerrors.Wrap(err, flowerrors.KindTransient, "media delete call failed")
	}
	if resp.IsError() {
		return c.statusError("delete_media", resp)
	}
	return nil
}

// RetryMedia re-runs the generation behind a failed media record and
// returns the refreshed record.
func (c *Client) RetryMedia(ctx context.Context, mediaID string) (*gallery.Record, error) {
	return withCall(c, ctx, "retry_media", func() (*gallery.Record, error) {
		out := &mediaRecord{}
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("image_id", mediaID).
			SetResult(out).
			Post(mediaRetryPath)
		if err != nil {
			return nil, flowerrors.Wrap(err, flowerrors.KindTransient, "media retry call failed")
		}
		if resp.IsError() {
			return nil, c.statusError("retry_media", resp)
		}
		rec := out.toRecord()
		return &rec, nil
	})
}

// GenerateBaseImages spawns the base image batch for a character and
// returns the spawned task ids.
func (c *Client) GenerateBaseImages(ctx context.Context, characterID string, count int) (*BaseImagesResponse, error) {
	return withCall(c, ctx, "generate_base_images", func() (*BaseImagesResponse, error) {
		out := &BaseImagesResponse{}
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("character_id", characterID).
			SetBody(map[string]int{"count": count}).
			SetResult(out).
			Post(baseImagesPath)
		if err != nil {
			return nil, flowerrors.Wrap(err, flowerrors.KindTransient, "base image call failed")
		}
		if resp.IsError() {
			return nil, c.statusError("generate_base_images", resp)
		}
		return out, nil
	})
}

// Animate starts an image-to-video job. The backend persists the video
// record before answering, so callers can track it through the media list.
func (c *Client) Animate(ctx context.Context, req AnimateRequest) (*AnimateResult, error) {
	return withCall(c, ctx, "animate", func() (*AnimateResult, error) {
		out := &AnimateResult{}
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(out).
			Post(animatePath)
		if err != nil {
			return nil, flowerrors.Wrap(err, flowerrors.KindTransient, "animate call failed")
		}
		if resp.IsError() {
			return nil, c.statusError("animate", resp)
		}
		return out, nil
	})
}

// Upload stores a reference image and returns its server path. The payload
// is sniffed for a real image type before leaving the process.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, flowerrors.New(flowerrors.KindInvalidInput,
			fmt.Sprintf("unsupported upload type %s, expected an image", mtype.String()))
	}

	start := time.Now()
	out := &UploadResult{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(data)).
		SetResult(out).
		Post(uploadPath)
	metrics.ObserveStudioCall("upload", start, err)
	if err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.KindTransient, "upload call failed")
	}
	if resp.IsError() {
		return nil, c.statusError("upload", resp)
	}
	return out, nil
}

// Balance fetches the caller's generation credit balance.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	start := time.Now()
	out := &Balance{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(out).
		Get(balancePath)
	metrics.ObserveStudioCall("balance", start, err)
	if err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.KindTransient, "balance call failed")
	}
	if resp.IsError() {
		return nil, c.statusError("balance", resp)
	}
	return out, nil
}

// withCall wraps a backend call with retry, circuit breaker and metrics.
// Business failures (payment required, validation) do not count against the
// breaker: the backend answered, it just said no.
func withCall[T any](c *Client, ctx context.Context, operation string, fn func() (*T, error)) (*T, error) {
	start := time.Now()
	result, err := WithRetry(ctx, c.retry, operation, func() (*T, error) {
		var out *T
		var callErr error
		breakerErr := c.breaker.Execute(operation, func() error {
			out, callErr = fn()
			if callErr == nil {
				return nil
			}
			var fe *flowerrors.FlowError
			if stderrors.As(callErr, &fe) && !fe.IsRetryable() {
				return nil
			}
			return callErr
		})
		if callErr != nil {
			return nil, callErr
		}
		if breakerErr != nil {
			return nil, flowerrors.Wrap(breakerErr, flowerrors.KindTransient, "backend unavailable")
		}
		return out, nil
	})
	metrics.ObserveStudioCall(operation, start, err)
	return result, err
}

// statusError classifies a non-2xx backend reply into a flow error.
func (c *Client) statusError(operation string, resp *resty.Response) error {
	detail := extractDetail(resp.Body())

	c.logger.Warn().
		Str("operation", operation).
		Int("status", resp.StatusCode()).
		Str("detail", detail).
		Msg("backend returned error status")

	code := resp.StatusCode()
	switch {
	case code == 402:
		msg := detail
		if msg == "" {
			msg = "insufficient balance"
		}
		return flowerrors.New(flowerrors.KindInsufficientBalance, msg)
	case code == 409:
		return flowerrors.New(flowerrors.KindWrongState, fallback(detail, "operation not allowed in current state"))
	case code >= 400 && code < 500:
		return flowerrors.New(flowerrors.KindInvalidInput, fallback(detail, fmt.Sprintf("%s rejected with status %d", operation, code)))
	default:
		return flowerrors.New(flowerrors.KindTransient, fmt.Sprintf("%s failed with status %d: %s", operation, code, detail))
	}
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// extractDetail pulls the human-readable message out of an error body. The
// backend reports either a plain string detail or a structured one with a
// message field.
func extractDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch detail := eb.Detail.(type) {
	case string:
		return detail
	case map[string]any:
		if msg, ok := detail["message"].(string); ok {
			return msg
		}
		if msg, ok := detail["error"].(string); ok {
			return msg
		}
	}
	if eb.Error != "" {
		return eb.Error
	}
	return strings.TrimSpace(string(body))
}
