package cli

import "testing"

func withColor(t *testing.T, on bool) {
	t.Helper()
	saved := colorEnabled
	colorEnabled = on
	t.Cleanup(func() { colorEnabled = saved })
}

func TestDecisionLabel(t *testing.T) {
	withColor(t, true)
	tests := []struct {
		kind string
		want string
	}{
		{"create", "\033[32mcreate\033[0m"},
		{"delete", "\033[31mdelete\033[0m"},
		{"update-in-place", "\033[33mupdate-in-place\033[0m"},
		{"delete-then-recreate", "\033[1m\033[33mdelete-then-recreate\033[0m\033[0m"},
		{"noop", "\033[2mnoop\033[0m"},
	}
	for _, tt := range tests {
		if got := DecisionLabel(tt.kind); got != tt.want {
			t.Errorf("DecisionLabel(%q) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestDecisionLabel_NoColor(t *testing.T) {
	withColor(t, false)
	for _, kind := range []string{"create", "delete", "update-in-place", "delete-then-recreate", "noop"} {
		if got := DecisionLabel(kind); got != kind {
			t.Errorf("DecisionLabel(%q) = %q with NO_COLOR", kind, got)
		}
	}
	if Status(true) != "OK" || Status(false) != "FAIL" {
		t.Errorf("Status() = %q/%q", Status(true), Status(false))
	}
}

func TestStatus_VisualWidth(t *testing.T) {
	withColor(t, true)
	if n := visualLen(Status(false)); n != 4 {
		t.Errorf("visualLen(Status(false)) = %d, want 4", n)
	}
	if n := visualLen(DecisionLabel("delete-then-recreate")); n != len("delete-then-recreate") {
		t.Errorf("nested colors counted in width: %d", n)
	}
}
