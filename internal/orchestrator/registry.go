package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/domain/gallery"
	"charstudio/orchestrator/internal/domain/status"
	"charstudio/orchestrator/internal/domain/task"
	"charstudio/orchestrator/internal/infrastructure/metrics"
)

// tracked wraps a task with registry-local bookkeeping.
type tracked struct {
	task *task.Task
	// resolvedAt is set once, when the task reaches a terminal state. The
	// entry survives until the eviction grace elapses so the UI gets at
	// least one render of the final state.
	resolvedAt time.Time
	// countedMedia holds ids of media records already counted toward a
	// batch, so repeated list responses stay idempotent.
	countedMedia map[string]bool
}

// RegistryConfig carries the timing knobs of the task registry.
type RegistryConfig struct {
	TaskTimeout            time.Duration
	CompletedEvictionDelay time.Duration
	FailedEvictionDelay    time.Duration
}

// Registry tracks the in-flight generation tasks of one character context.
// All mutation goes through the registry mutex; merges are idempotent per
// task id, so any poll response can be applied at most effectively once.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*tracked
	cfg   RegistryConfig
	log   zerolog.Logger
}

// NewRegistry creates an empty task registry.
func NewRegistry(cfg RegistryConfig, log zerolog.Logger) *Registry {
	return &Registry{
		tasks: make(map[string]*tracked),
		cfg:   cfg,
		log:   log.With().Str("component", "task_registry").Logger(),
	}
}

// Register inserts a task. Registering an id that already exists is a no-op
// so double dispatch cannot duplicate entries.
func (r *Registry) Register(t *task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return
	}
	r.tasks[t.ID] = &tracked{task: t}
	metrics.TasksRegistered.WithLabelValues(string(t.Kind)).Inc()
	r.updateActiveGauge()

	r.log.Debug().
		Str("task_id", t.ID).
		Str("kind", string(t.Kind)).
		Msg("task registered")
}

// ReplacePlaceholder swaps the optimistic placeholder for the real task
// once the dispatch reply carries the server-issued id. Missing placeholder
// is tolerated: the real task is registered either way.
func (r *Registry) ReplacePlaceholder(placeholderID string, real *task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tasks, placeholderID)
	if _, ok := r.tasks[real.ID]; !ok {
		r.tasks[real.ID] = &tracked{task: real}
		metrics.TasksRegistered.WithLabelValues(string(real.Kind)).Inc()
	}
	r.updateActiveGauge()
}

// Remove drops a task unconditionally.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.tasks[id]
	delete(r.tasks, id)
	r.updateActiveGauge()
	return ok
}

// Get returns a copy of the tracked task.
func (r *Registry) Get(id string) (task.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr, ok := r.tasks[id]
	if !ok {
		return task.Task{}, false
	}
	return *tr.task, true
}

// List returns copies of all tracked tasks ordered by creation time.
func (r *Registry) List() []task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]task.Task, 0, len(r.tasks))
	for _, tr := range r.tasks {
		out = append(out, *tr.task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// PollTargets returns the ids of non-terminal tasks that converge through
// the dedicated status endpoint.
func (r *Registry) PollTargets() []string {
	return r.targets(task.PollServer)
}

// SideChannelTargets returns the ids of non-terminal tasks resolved from
// the media list.
func (r *Registry) SideChannelTargets() []string {
	return r.targets(task.PollSideChannel)
}

func (r *Registry) targets(strategy task.PollStrategy) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, tr := range r.tasks {
		if tr.task.IsTerminal() {
			continue
		}
		if tr.task.Kind.PollStrategy() == strategy {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ApplySnapshot merges a backend snapshot into the tracked task. Returns
// the post-merge copy and whether this merge resolved the task. A snapshot
// for an untracked id is dropped: the task was evicted or cancelled and
// its late reply is irrelevant.
func (r *Registry) ApplySnapshot(snap task.Snapshot, now time.Time) (task.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tr, ok := r.tasks[snap.ID]
	if !ok {
		return task.Task{}, false
	}

	resolved := tr.task.Merge(snap)
	if resolved {
		tr.resolvedAt = now
		metrics.TaskTransitions.WithLabelValues(string(tr.task.Kind), tr.task.Status.String()).Inc()
		r.updateActiveGauge()
	}
	return *tr.task, resolved
}

// ApplyMedia feeds the media list into side-channel tasks: records carrying
// a tracked task id count toward that task's batch, each record at most
// once. Returns the tasks resolved by this pass.
func (r *Registry) ApplyMedia(records []gallery.Record, now time.Time) []task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var resolved []task.Task
	for _, rec := range records {
		if rec.TaskID == "" {
			continue
		}
		tr, ok := r.tasks[rec.TaskID]
		if !ok || tr.task.Kind.PollStrategy() != task.PollSideChannel {
			continue
		}
		if !rec.Status.IsTerminal() || tr.countedMedia[rec.ID] {
			continue
		}
		if tr.countedMedia == nil {
			tr.countedMedia = make(map[string]bool)
		}
		tr.countedMedia[rec.ID] = true

		if rec.Status == status.StatusFailed && rec.ErrorMessage != "" {
			tr.task.Error = rec.ErrorMessage
		}
		if tr.task.RecordBatchMember(rec.Status) {
			if rec.URL != "" {
				tr.task.ResultURL = rec.URL
			}
			tr.resolvedAt = now
			metrics.TaskTransitions.WithLabelValues(string(tr.task.Kind), tr.task.Status.String()).Inc()
			resolved = append(resolved, *tr.task)
		}
	}
	if len(resolved) > 0 {
		r.updateActiveGauge()
	}
	return resolved
}

// Drain removes every tracked task. Used when the session they belong to is
// discarded; returns the removed ids.
func (r *Registry) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tasks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
		delete(r.tasks, id)
	}
	sort.Strings(ids)
	r.updateActiveGauge()
	return ids
}

// PruneReconciled drops tasks whose effect is now visible in the media
// list: any task whose kind is retired by a gallery refresh and whose id
// matches either a terminal record's task id (edits, retries) or the
// record's own id (animations, which track the spawned video record).
func (r *Registry) PruneReconciled(records []gallery.Record) []string {
	byTaskID := make(map[string]bool, len(records))
	for _, rec := range records {
		if !rec.Status.IsTerminal() {
			continue
		}
		if rec.TaskID != "" {
			byTaskID[rec.TaskID] = true
		}
		byTaskID[rec.ID] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var pruned []string
	for id, tr := range r.tasks {
		if tr.task.Kind.PrunedByGalleryRefresh() && byTaskID[id] {
			delete(r.tasks, id)
			pruned = append(pruned, id)
		}
	}
	if len(pruned) > 0 {
		r.updateActiveGauge()
		sort.Strings(pruned)
	}
	return pruned
}

// Sweep enforces the age ceiling and the eviction grace. Tasks older than
// the ceiling are failed locally; terminal tasks past their grace window
// are dropped. Returns the tasks failed by timeout and the evicted ids.
func (r *Registry) Sweep(now time.Time) (timedOut []task.Task, evicted []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, tr := range r.tasks {
		if !tr.task.IsTerminal() {
			if now.Sub(tr.task.CreatedAt) > r.cfg.TaskTimeout {
				tr.task.FailTimeout("generation took too long and was abandoned")
				tr.resolvedAt = now
				metrics.TasksTimedOut.Inc()
				metrics.TaskTransitions.WithLabelValues(string(tr.task.Kind), tr.task.Status.String()).Inc()
				timedOut = append(timedOut, *tr.task)
			}
			continue
		}

		if tr.resolvedAt.IsZero() {
			tr.resolvedAt = now
			continue
		}
		grace := r.cfg.CompletedEvictionDelay
		if tr.task.Status == status.StatusFailed {
			grace = r.cfg.FailedEvictionDelay
		}
		if now.Sub(tr.resolvedAt) >= grace {
			delete(r.tasks, id)
			evicted = append(evicted, id)
		}
	}

	r.updateActiveGauge()
	sort.Strings(evicted)
	sort.Slice(timedOut, func(i, j int) bool { return timedOut[i].ID < timedOut[j].ID })
	return timedOut, evicted
}

// ActiveCount returns the number of non-terminal tasks.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeCountLocked()
}

func (r *Registry) activeCountLocked() int {
	n := 0
	for _, tr := range r.tasks {
		if !tr.task.IsTerminal() {
			n++
		}
	}
	return n
}

func (r *Registry) updateActiveGauge() {
	metrics.ActiveTasks.Set(float64(r.activeCountLocked()))
}
