package orchestrator

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	flowerrors "charstudio/orchestrator/internal/domain/errors"
	"charstudio/orchestrator/internal/domain/session"
	"charstudio/orchestrator/internal/domain/task"
	"charstudio/orchestrator/internal/infrastructure/studio"
)

func newTestManager(mock *mockStudio) *Manager {
	return NewManager(mock, testConfig(), zerolog.Nop())
}

func TestWorkspaceRequiresActivation(t *testing.T) {
	m := newTestManager(&mockStudio{})
	defer m.Close()

	_, err := m.Workspace("user-1")
	if flowerrors.KindOf(err) != flowerrors.KindWrongState {
		t.Fatalf("err = %v", err)
	}
}

func TestActivateCharacterIsStable(t *testing.T) {
	m := newTestManager(&mockStudio{})
	defer m.Close()

	first, err := m.ActivateCharacter(context.Background(), "user-1", "char-1")
	if err != nil {
		t.Fatal(err)
	}
	again, err := m.ActivateCharacter(context.Background(), "user-1", "char-1")
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Error("re-activating the same character must keep the workspace")
	}

	got, err := m.Workspace("user-1")
	if err != nil || got != first {
		t.Errorf("Workspace() = %v, %v", got, err)
	}
}

func TestActivateCharacterSwapsEverything(t *testing.T) {
	mock := &mockStudio{
		chatFn: func(context.Context, studio.ChatRequest) (*studio.ChatResponse, error) {
			return proposalResponse("p"), nil
		},
	}
	m := newTestManager(mock)
	defer m.Close()

	first, err := m.ActivateCharacter(context.Background(), "user-1", "char-1")
	if err != nil {
		t.Fatal(err)
	}

	// Leave state behind in the first workspace.
	if _, err := first.Send(context.Background(), SendInput{Message: "beach"}); err != nil {
		t.Fatal(err)
	}
	first.registry.Register(task.New("task-42", task.KindImage, "p"))

	second, err := m.ActivateCharacter(context.Background(), "user-1", "char-2")
	if err != nil {
		t.Fatal(err)
	}
	if second == first {
		t.Fatal("switching character must build a fresh workspace")
	}
	if second.CharacterID() != "char-2" {
		t.Errorf("character = %q", second.CharacterID())
	}

	sess := second.Session()
	if len(sess.Transcript) != 0 || sess.Proposal != nil || sess.State != session.StateIdle {
		t.Errorf("new session = %+v, must start clean", sess)
	}
	if len(second.Tasks()) != 0 {
		t.Error("new registry must start empty")
	}
}

func TestManagerIsolatesUsers(t *testing.T) {
	m := newTestManager(&mockStudio{})
	defer m.Close()

	a, err := m.ActivateCharacter(context.Background(), "user-a", "char-1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.ActivateCharacter(context.Background(), "user-b", "char-1")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("different users must never share a workspace")
	}
}
