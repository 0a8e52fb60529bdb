// Package orchestrator coordinates conversation sessions, the background
// task registry and gallery reconciliation for the character studio UI.
package orchestrator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/config"
	flowerrors "charstudio/orchestrator/internal/domain/errors"
)

// Manager owns one workspace per user. Switching character swaps the user's
// workspace atomically: the new session, registry and gallery appear
// together and the old loops stop.
type Manager struct {
	client StudioClient
	cfg    *config.Config
	log    zerolog.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
	runCtx     context.Context
}

// NewManager creates a workspace manager.
func NewManager(client StudioClient, cfg *config.Config, log zerolog.Logger) *Manager {
	return &Manager{
		client:     client,
		cfg:        cfg,
		log:        log.With().Str("component", "workspace_manager").Logger(),
		workspaces: make(map[string]*Workspace),
		runCtx:     context.Background(),
	}
}

// Start records the lifetime context new workspace loops run under.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runCtx = ctx
}

// Workspace returns the user's active workspace, or a wrong-state error
// when no character has been activated yet.
func (m *Manager) Workspace(userID string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, ok := m.workspaces[userID]
	if !ok {
		return nil, flowerrors.ErrNoActiveCharacter
	}
	return ws, nil
}

// ActivateCharacter makes characterID the user's active context. A fresh
// workspace replaces the old one in a single step; the old one is closed in
// the background so a slow loop drain never blocks the switch. Activating
// the already-active character is a no-op.
func (m *Manager) ActivateCharacter(ctx context.Context, userID, characterID string) (*Workspace, error) {
	if characterID == "" {
		return nil, flowerrors.New(flowerrors.KindInvalidInput, "character id is required")
	}

	m.mu.Lock()
	if current, ok := m.workspaces[userID]; ok && current.CharacterID() == characterID {
		m.mu.Unlock()
		return current, nil
	}

	ws := NewWorkspace(characterID, m.client, m.cfg, m.log)
	old := m.workspaces[userID]
	m.workspaces[userID] = ws
	ws.Run(m.runCtx)
	m.mu.Unlock()

	if old != nil {
		go old.Close()
	}

	// Seed the gallery so the UI has media immediately after the switch.
	if _, err := ws.RefreshGallery(ctx, "activate"); err != nil {
		m.log.Warn().Err(err).
			Str("character_id", characterID).
			Msg("initial gallery refresh failed, side channel will converge")
	}

	m.log.Info().
		Str("user_id", userID).
		Str("character_id", characterID).
		Msg("character activated")
	return ws, nil
}

// Close stops every workspace and waits for their loops.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		all = append(all, ws)
	}
	m.workspaces = make(map[string]*Workspace)
	m.mu.Unlock()

	for _, ws := range all {
		ws.Close()
	}
	m.log.Info().Int("workspaces", len(all)).Msg("workspace manager closed")
}
