package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/config"
	"charstudio/orchestrator/internal/domain/attachment"
	flowerrors "charstudio/orchestrator/internal/domain/errors"
	"charstudio/orchestrator/internal/domain/gallery"
	"charstudio/orchestrator/internal/domain/proposal"
	"charstudio/orchestrator/internal/domain/session"
	"charstudio/orchestrator/internal/domain/status"
	"charstudio/orchestrator/internal/domain/task"
	"charstudio/orchestrator/internal/infrastructure/metrics"
	"charstudio/orchestrator/internal/infrastructure/studio"
)

// Base image batches are clamped to this range.
const (
	minBaseBatch = 1
	maxBaseBatch = 4
)

// SendInput is one conversation message plus its optional reference image.
type SendInput struct {
	Message       string
	ReferencePath string
	ReferenceMode attachment.Mode
}

// SendResult is what a send round trip produced.
type SendResult struct {
	Reply       string             `json:"reply"`
	State       session.State      `json:"state"`
	Transition  session.Transition `json:"transition"`
	Proposal    *proposal.Proposal `json:"proposal,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
}

// ConfirmInput approves the pending proposal, optionally overriding the
// prompt or picking a different aspect ratio.
type ConfirmInput struct {
	AspectRatio  string
	EditedPrompt string
}

// ConfirmResult carries the spawned task.
type ConfirmResult struct {
	Reply string     `json:"reply"`
	Task  *task.Task `json:"task"`
}

// EditInput opens an image-edit round against a gallery image.
type EditInput struct {
	Message         string
	SourceImagePath string
}

// AnimateInput describes an image-to-video request.
type AnimateInput struct {
	ImageID  string
	ImageURL string
	Prompt   string
}

// Workspace is the orchestration state for one character context: the
// conversation session, the task registry and the reconciled gallery, plus
// the polling loops that keep them converging. A workspace is discarded
// wholesale when the user switches character.
type Workspace struct {
	characterID string
	client      StudioClient
	cfg         *config.Config
	log         zerolog.Logger

	mu      sync.Mutex
	session *session.Session
	gallery gallery.View
	balance *int

	registry *Registry

	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWorkspace creates a workspace for a character context. Loops start
// only when Run is called.
func NewWorkspace(characterID string, client StudioClient, cfg *config.Config, log zerolog.Logger) *Workspace {
	wlog := log.With().
		Str("component", "workspace").
		Str("character_id", characterID).
		Logger()

	return &Workspace{
		characterID: characterID,
		client:      client,
		cfg:         cfg,
		log:         wlog,
		session:     session.New(characterID),
		registry: NewRegistry(RegistryConfig{
			TaskTimeout:            cfg.TaskTimeout,
			CompletedEvictionDelay: cfg.CompletedEvictionDelay,
			FailedEvictionDelay:    cfg.FailedEvictionDelay,
		}, wlog),
		stopChan: make(chan struct{}),
	}
}

// CharacterID returns the character this workspace serves.
func (w *Workspace) CharacterID() string {
	return w.characterID
}

// Run starts the three background loops: task-status polling, the media
// side channel and the timeout/eviction sweep.
func (w *Workspace) Run(ctx context.Context) {
	loops := []struct {
		name     string
		interval time.Duration
		fn       func(context.Context)
	}{
		{"task_poll", w.cfg.TaskPollInterval, w.pollOnce},
		{"side_channel", w.cfg.SideChannelPollInterval, w.sideChannelOnce},
		{"sweep", w.cfg.TimeoutSweepInterval, w.sweepOnce},
	}

	for _, loop := range loops {
		w.wg.Add(1)
		go func(name string, interval time.Duration, fn func(context.Context)) {
			defer w.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-w.stopChan:
					return
				case <-ticker.C:
					fn(ctx)
					metrics.PollCycles.WithLabelValues(name).Inc()
				}
			}
		}(loop.name, loop.interval, loop.fn)
	}

	w.log.Info().
		Dur("poll_interval", w.cfg.TaskPollInterval).
		Dur("side_channel_interval", w.cfg.SideChannelPollInterval).
		Dur("sweep_interval", w.cfg.TimeoutSweepInterval).
		Msg("workspace loops started")
}

// Close stops the loops and waits for them to drain.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		close(w.stopChan)
	})
	w.wg.Wait()
}

// Send routes one conversation message. While a proposal is awaiting
// confirmation the message is a modification of that proposal; otherwise it
// opens a fresh propose round. On any failure the transcript and state are
// left exactly as they were.
func (w *Workspace) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	var att *attachment.Attachment
	if in.ReferencePath != "" {
		resolved, err := attachment.Resolve(in.ReferencePath, in.ReferenceMode)
		if err != nil {
			return nil, err
		}
		att = resolved
	}
	if err := attachment.ValidateSend(in.Message, att); err != nil {
		return nil, err
	}

	w.mu.Lock()
	transition := w.session.RouteSend()
	req := studio.ChatRequest{
		Message:     in.Message,
		CharacterID: w.characterID,
		SessionID:   w.session.ID,
	}
	if att != nil {
		req.ReferenceImagePath = att.SourcePath
		req.ReferenceImageMode = att.Mode
	}
	w.mu.Unlock()

	resp, err := w.client.Chat(ctx, req)
	if err != nil {
		w.handleFlowError(ctx, err)
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	userTurn := session.Turn{Speaker: session.SpeakerUser, Text: in.Message}
	if att != nil {
		userTurn.ReferenceURL = att.DisplayURL
	}
	w.session.AddTurn(userTurn)
	w.session.AddTurn(session.Turn{
		Speaker:     session.SpeakerAssistant,
		Text:        resp.Message,
		ActionTaken: resp.ActionTaken,
	})
	w.session.ApplyServerState(resp.SessionID, resp.State)

	result := &SendResult{
		Reply:      resp.Message,
		Transition: transition,
	}
	if p := resp.Proposal(); p != nil {
		w.session.SetProposal(p)
		result.Proposal = p
		result.Suggestions = p.Suggestions
	}
	result.State = w.session.State
	return result, nil
}

// SendEdit opens an image-edit round against a source image.
func (w *Workspace) SendEdit(ctx context.Context, in EditInput) (*SendResult, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, flowerrors.New(flowerrors.KindInvalidInput, "edit instruction is required")
	}
	if strings.TrimSpace(in.SourceImagePath) == "" {
		return nil, flowerrors.New(flowerrors.KindInvalidInput, "source image is required")
	}

	w.mu.Lock()
	req := studio.EditChatRequest{
		Message:         in.Message,
		SourceImagePath: attachment.RelativePath(in.SourceImagePath),
		CharacterID:     w.characterID,
		SessionID:       w.session.ID,
	}
	w.mu.Unlock()

	resp, err := w.client.EditChat(ctx, req)
	if err != nil {
		w.handleFlowError(ctx, err)
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.session.AddTurn(session.Turn{Speaker: session.SpeakerUser, Text: in.Message, ReferenceURL: in.SourceImagePath})
	w.session.AddTurn(session.Turn{Speaker: session.SpeakerAssistant, Text: resp.Message, ActionTaken: resp.ActionTaken})
	w.session.ApplyServerState(resp.SessionID, resp.State)

	result := &SendResult{Reply: resp.Message}
	if p := resp.Proposal(); p != nil {
		w.session.SetProposal(p)
		result.Proposal = p
		result.Suggestions = p.Suggestions
	}
	result.State = w.session.State
	return result, nil
}

// Confirm approves the pending proposal. An optimistic placeholder enters
// the registry before the network call so the UI shows progress instantly;
// on success it is swapped for the server-issued task, on failure it is
// removed and the proposal is restored untouched.
func (w *Workspace) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	aspect := in.AspectRatio
	if aspect == "" {
		aspect = proposal.AspectPortrait
	}
	if !proposal.ValidAspectRatio(aspect) {
		return nil, flowerrors.New(flowerrors.KindInvalidInput, "unsupported aspect ratio "+aspect)
	}

	w.mu.Lock()
	if p := w.session.Proposal; p != nil && !p.IsEdit() &&
		p.Params.ReferenceMode == attachment.ModeCustom && strings.TrimSpace(in.EditedPrompt) == "" {
		w.mu.Unlock()
		return nil, flowerrors.New(flowerrors.KindInvalidInput,
			"custom reference mode requires an edited prompt")
	}
	pending, err := w.session.TakeProposal()
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	sessionID := w.session.ID
	prompt := pending.EffectivePrompt(in.EditedPrompt)

	placeholder := task.NewPlaceholder(prompt, pending.Params.ReferencePath)
	w.registry.Register(placeholder)
	w.session.State = session.StateExecuting
	w.mu.Unlock()

	var resp *studio.ChatResponse
	var callErr error
	if pending.IsEdit() {
		resp, callErr = w.client.EditConfirm(ctx, studio.EditConfirmRequest{
			SessionID:    sessionID,
			AspectRatio:  aspect,
			EditedPrompt: in.EditedPrompt,
			CharacterID:  w.characterID,
			PendingEdit:  studio.FromEditProposal(pending),
		})
	} else {
		resp, callErr = w.client.Confirm(ctx, studio.ConfirmRequest{
			SessionID:         sessionID,
			AspectRatio:       aspect,
			EditedPrompt:      in.EditedPrompt,
			CharacterID:       w.characterID,
			PendingGeneration: studio.FromProposal(pending),
		})
	}

	if callErr != nil {
		w.registry.Remove(placeholder.ID)
		w.mu.Lock()
		w.session.SetProposal(pending)
		w.mu.Unlock()
		w.handleFlowError(ctx, callErr)
		return nil, callErr
	}

	serverKind := task.KindImage
	switch {
	case pending.IsEdit():
		serverKind = task.KindEdit
	case pending.Skill == proposal.SkillVideo:
		serverKind = task.KindVideo
	}

	spawned := resp.Task(serverKind)
	if spawned == nil {
		// Backend executed synchronously; the result is already persisted,
		// so pull it into the gallery right away.
		w.registry.Remove(placeholder.ID)
		if _, err := w.RefreshGallery(ctx, "sync_action"); err != nil {
			w.log.Warn().Err(err).Msg("gallery refresh after synchronous action failed")
		}
	} else {
		if spawned.Prompt == "" {
			spawned.Prompt = prompt
		}
		w.registry.ReplacePlaceholder(placeholder.ID, spawned)
	}

	w.mu.Lock()
	w.session.AddTurn(session.Turn{
		Speaker:     session.SpeakerAssistant,
		Text:        resp.Message,
		ActionTaken: resp.ActionTaken,
	})
	w.session.ApplyServerState(resp.SessionID, resp.State)
	w.mu.Unlock()

	w.log.Info().
		Str("session_id", sessionID).
		Str("aspect_ratio", aspect).
		Bool("async", spawned != nil).
		Msg("generation confirmed")

	return &ConfirmResult{Reply: resp.Message, Task: spawned}, nil
}

// CancelPending drops the pending proposal. Local state clears immediately;
// the backend notification is best-effort.
func (w *Workspace) CancelPending(ctx context.Context) {
	w.mu.Lock()
	sessionID := w.session.ID
	hadProposal := w.session.Proposal != nil
	w.session.CancelPending()
	w.mu.Unlock()

	if hadProposal && sessionID != "" {
		if err := w.client.Cancel(ctx, sessionID); err != nil {
			w.log.Warn().Err(err).Msg("backend cancel failed, local state already cleared")
		}
	}
}

// Clear wipes the conversation and discards every task tracked for it; a
// cleared session has nothing left in flight from the UI's point of view.
func (w *Workspace) Clear(ctx context.Context) {
	w.mu.Lock()
	sessionID := w.session.ID
	w.session.Clear()
	w.mu.Unlock()

	if dropped := w.registry.Drain(); len(dropped) > 0 {
		w.log.Info().Int("dropped", len(dropped)).Msg("tracked tasks discarded on clear")
	}

	if sessionID != "" {
		if err := w.client.Clear(ctx, sessionID); err != nil {
			w.log.Warn().Err(err).Msg("backend clear failed, local state already cleared")
		}
	}
}

// CancelTask removes a tracked task and deletes any draft media records the
// job already persisted, so cancelled work leaves no half-finished rows in
// the gallery.
func (w *Workspace) CancelTask(ctx context.Context, taskID string) error {
	if !w.registry.Remove(taskID) {
		return flowerrors.New(flowerrors.KindInvalidInput, "unknown task "+taskID).WithTask(taskID)
	}

	w.mu.Lock()
	var drafts []string
	for _, rec := range append(append([]gallery.Record{}, w.gallery.Images...), w.gallery.Videos...) {
		if rec.TaskID == taskID && !rec.Status.IsTerminal() {
			drafts = append(drafts, rec.ID)
		}
	}
	w.mu.Unlock()

	for _, id := range drafts {
		if err := w.client.DeleteMedia(ctx, id); err != nil {
			w.log.Warn().Err(err).Str("media_id", id).Msg("draft media cleanup failed")
		}
	}

	w.log.Info().Str("task_id", taskID).Int("drafts_removed", len(drafts)).Msg("task cancelled")
	return nil
}

// Task returns the tracked task, or a synthesized failed snapshot for an
// unknown id so pollers resolve instead of erroring after an eviction.
func (w *Workspace) Task(id string) task.Task {
	if t, ok := w.registry.Get(id); ok {
		return t
	}
	return task.Task{
		ID:        id,
		Kind:      task.KindForID(id, task.KindImage),
		Status:    status.StatusFailed,
		Stage:     "not_found",
		Error:     "task not found",
		CreatedAt: time.Now(),
	}
}

// Tasks lists all tracked tasks.
func (w *Workspace) Tasks() []task.Task {
	return w.registry.List()
}

// Session returns a copy of the conversation session.
func (w *Workspace) Session() session.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := *w.session
	s.Transcript = append([]session.Turn(nil), w.session.Transcript...)
	return s
}

// Gallery returns the last reconciled media view.
func (w *Workspace) Gallery() gallery.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := w.gallery
	v.Images = append([]gallery.Record(nil), w.gallery.Images...)
	v.Videos = append([]gallery.Record(nil), w.gallery.Videos...)
	return v
}

// RefreshGallery reconciles the media view from the authoritative list.
// The fetched sets replace the local ones wholesale, tasks whose output is
// now visible are pruned, and side-channel tasks absorb record statuses.
func (w *Workspace) RefreshGallery(ctx context.Context, trigger string) (gallery.View, error) {
	records, err := w.client.ListMedia(ctx, w.characterID)
	if err != nil {
		return gallery.View{}, err
	}

	now := time.Now()
	resolved := w.registry.ApplyMedia(records, now)
	for _, t := range resolved {
		w.log.Info().Str("task_id", t.ID).Str("status", t.Status.String()).Msg("side-channel task resolved by refresh")
	}
	pruned := w.registry.PruneReconciled(records)
	if len(pruned) > 0 {
		w.log.Debug().Strs("task_ids", pruned).Msg("tasks reconciled into gallery")
	}

	images, videos := gallery.Split(records)

	w.mu.Lock()
	w.gallery = gallery.View{
		CharacterID: w.characterID,
		Images:      images,
		Videos:      videos,
		RefreshedAt: now,
	}
	view := w.gallery
	w.mu.Unlock()

	metrics.GalleryRefreshes.WithLabelValues(trigger).Inc()
	return view, nil
}

// GenerateBaseImages spawns a base image batch, clamped to the allowed
// range, and tracks the spawned jobs through the media side channel.
func (w *Workspace) GenerateBaseImages(ctx context.Context, count int) ([]task.Task, error) {
	if count < minBaseBatch {
		count = minBaseBatch
	}
	if count > maxBaseBatch {
		count = maxBaseBatch
	}

	resp, err := w.client.GenerateBaseImages(ctx, w.characterID, count)
	if err != nil {
		w.handleFlowError(ctx, err)
		return nil, err
	}

	var tasks []task.Task
	for _, spawned := range resp.Tasks {
		t := task.New(spawned.TaskID, task.KindBase, spawned.Prompt)
		t.BatchSize = 1
		if len(resp.Tasks) == 1 && count > 1 {
			// Single aggregate job covering the whole batch.
			t.BatchSize = count
		}
		w.registry.Register(t)
		tasks = append(tasks, *t)
	}

	w.log.Info().Int("count", count).Int("spawned", len(tasks)).Msg("base image batch started")
	return tasks, nil
}

// RetryMedia re-runs the generation behind a failed media record. The
// replacement is tracked as a local retry task and retired once the record
// turns terminal in the media list.
func (w *Workspace) RetryMedia(ctx context.Context, mediaID string) (*gallery.Record, error) {
	rec, err := w.client.RetryMedia(ctx, mediaID)
	if err != nil {
		w.handleFlowError(ctx, err)
		return nil, err
	}
	if rec.TaskID != "" && !rec.Status.IsTerminal() {
		w.registry.Register(task.New(rec.TaskID, task.KindRetry, ""))
	}
	return rec, nil
}

// Animate spawns an image-to-video job from a gallery image. The backend
// creates the video record immediately and polls the renderer itself, so
// the local task only renders progress until the record shows up terminal
// in the media list.
func (w *Workspace) Animate(ctx context.Context, in AnimateInput) (*task.Task, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, flowerrors.New(flowerrors.KindInvalidInput, "animation prompt is required")
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		return nil, flowerrors.New(flowerrors.KindInvalidInput, "source image is required")
	}

	result, err := w.client.Animate(ctx, studio.AnimateRequest{
		ImageID:     in.ImageID,
		ImageURL:    attachment.RelativePath(in.ImageURL),
		CharacterID: w.characterID,
		Prompt:      in.Prompt,
	})
	if err != nil {
		w.handleFlowError(ctx, err)
		return nil, err
	}
	if !result.Success {
		return nil, flowerrors.New(flowerrors.KindTransient, result.Message)
	}

	t := task.New(result.VideoID, task.KindAnimate, in.Prompt)
	t.ReferenceURL = in.ImageURL
	w.registry.Register(t)

	w.log.Info().Str("video_id", result.VideoID).Str("image_id", in.ImageID).Msg("animation started")
	copied := *t
	return &copied, nil
}

// Balance returns the cached credit balance, fetching it when absent or
// when force is set.
func (w *Workspace) Balance(ctx context.Context, force bool) (int, error) {
	w.mu.Lock()
	cached := w.balance
	w.mu.Unlock()

	if cached != nil && !force {
		return *cached, nil
	}

	bal, err := w.client.Balance(ctx)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	w.balance = &bal.TokenBalance
	w.mu.Unlock()
	return bal.TokenBalance, nil
}

// handleFlowError runs the side effects an orchestration failure demands:
// a payment-required reply invalidates the cached balance so the UI shows
// the real number immediately.
func (w *Workspace) handleFlowError(ctx context.Context, err error) {
	if !flowerrors.IsInsufficientBalance(err) {
		return
	}
	w.mu.Lock()
	w.balance = nil
	w.mu.Unlock()
	if _, berr := w.Balance(ctx, true); berr != nil {
		w.log.Warn().Err(berr).Msg("balance refresh after payment failure failed")
	}
}

// pollOnce queries the status endpoint for every server-polled task and
// merges the snapshots. Each completed task triggers exactly one gallery
// refresh: merges are one-shot into terminal state, so a slow duplicate
// response cannot refresh twice.
func (w *Workspace) pollOnce(ctx context.Context) {
	targets := w.registry.PollTargets()
	if len(targets) == 0 {
		return
	}

	w.mu.Lock()
	sessionID := w.session.ID
	w.mu.Unlock()
	if sessionID == "" {
		// No session yet; the status endpoint is scoped to one.
		return
	}

	now := time.Now()
	for _, id := range targets {
		snap, err := w.client.TaskStatus(ctx, sessionID, id)
		if err != nil {
			w.log.Warn().Err(err).Str("task_id", id).Msg("task status poll failed")
			continue
		}

		merged, resolved := w.registry.ApplySnapshot(snap, now)
		if !resolved {
			continue
		}

		w.log.Info().
			Str("task_id", id).
			Str("status", merged.Status.String()).
			Msg("task resolved")

		if merged.Status == status.StatusCompleted {
			if _, err := w.RefreshGallery(ctx, "task_completed"); err != nil {
				w.log.Warn().Err(err).Str("task_id", id).Msg("gallery refresh after completion failed")
			}
		}
	}
}

// sideChannelOnce resolves base tasks from the media list, which is their
// only source of truth.
func (w *Workspace) sideChannelOnce(ctx context.Context) {
	if len(w.registry.SideChannelTargets()) == 0 {
		return
	}
	if _, err := w.RefreshGallery(ctx, "side_channel"); err != nil {
		w.log.Warn().Err(err).Msg("side channel refresh failed")
	}
}

// sweepOnce enforces the age ceiling and evicts terminal tasks past their
// grace window.
func (w *Workspace) sweepOnce(ctx context.Context) {
	timedOut, evicted := w.registry.Sweep(time.Now())
	for _, t := range timedOut {
		w.log.Warn().
			Str("task_id", t.ID).
			Dur("ceiling", w.cfg.TaskTimeout).
			Msg("task abandoned after exceeding age ceiling")
	}
	if len(evicted) > 0 {
		w.log.Debug().Strs("task_ids", evicted).Msg("terminal tasks evicted")
	}
}
