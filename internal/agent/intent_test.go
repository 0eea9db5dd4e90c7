package agent

import "testing"

func TestLaunchIntent(t *testing.T) {
	tests := []struct {
		line string
		tool string
		ok   bool
	}{
		{"launch claude code", "claude", true},
		{"Please RUN aider!", "aider", true},
		{"fire up open code", "opencode", true},
		{"can you start the cursor agent?", "cursor-agent", true},
		{"open copilot cli", "copilot", true},
		{"boot qwen", "qwen", true},
		{"run pi", "pi", true},
		{"what is aider?", "", false},
		{"launch the rockets", "", false},
		{"running aider", "", false},
		{"open pipeline", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			tool, ok := LaunchIntent(tt.line)
			if ok != tt.ok || tool != tt.tool {
				t.Errorf("LaunchIntent(%q) = (%q, %v), want (%q, %v)", tt.line, tool, ok, tt.tool, tt.ok)
			}
		})
	}
}
