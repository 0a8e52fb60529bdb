package proposal_test

import (
	"testing"

	"charstudio/orchestrator/internal/domain/proposal"
)

func TestEffectivePrompt(t *testing.T) {
	p := &proposal.Proposal{OptimizedPrompt: "server optimized prompt"}

	tests := []struct {
		name     string
		edited   string
		expected string
	}{
		{"no override uses server value", "", "server optimized prompt"},
		{"blank override uses server value", "   ", "server optimized prompt"},
		{"override wins", "my own prompt", "my own prompt"},
		{"override is trimmed", "  my own prompt  ", "my own prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.EffectivePrompt(tt.edited); got != tt.expected {
				t.Errorf("EffectivePrompt(%q) = %q, want %q", tt.edited, got, tt.expected)
			}
		})
	}
}

func TestValidAspectRatio(t *testing.T) {
	for _, ratio := range []string{"9:16", "1:1", "16:9"} {
		if !proposal.ValidAspectRatio(ratio) {
			t.Errorf("ValidAspectRatio(%q) = false, want true", ratio)
		}
	}
	for _, ratio := range []string{"", "4:3", "portrait"} {
		if proposal.ValidAspectRatio(ratio) {
			t.Errorf("ValidAspectRatio(%q) = true, want false", ratio)
		}
	}
}
