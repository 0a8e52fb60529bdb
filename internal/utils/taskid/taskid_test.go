package taskid_test

import (
	"testing"

	"charstudio/orchestrator/internal/utils/taskid"
)

func TestNew_CarriesPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix taskid.Prefix
	}{
		{"placeholder", taskid.PrefixPlaceholder},
		{"edit", taskid.PrefixEdit},
		{"animate", taskid.PrefixAnimate},
		{"retry", taskid.PrefixRetry},
		{"base", taskid.PrefixBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := taskid.New(tt.prefix)
			if got := taskid.ClientPrefix(id); got != tt.prefix {
				t.Errorf("ClientPrefix(%q) = %q, want %q", id, got, tt.prefix)
			}
			if !taskid.IsClientID(id) {
				t.Errorf("IsClientID(%q) = false, want true", id)
			}
			if _, err := taskid.Parse(id); err != nil {
				t.Errorf("Parse(%q) unexpected error: %v", id, err)
			}
		})
	}
}

func TestIsClientID_ServerIDs(t *testing.T) {
	tests := []string{
		"0b44a9e3-3f9f-4d36-9f5f-0a1e8c7b6d5e",
		"task-from-server",
		"01hv3c9k3qwerty0123456789a",
	}
	for _, id := range tests {
		if taskid.IsClientID(id) {
			t.Errorf("IsClientID(%q) = true, want false", id)
		}
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := taskid.New(taskid.PrefixPlaceholder)
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
