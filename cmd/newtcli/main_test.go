package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/newtcli/pkg/audit"
	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/render"
)

const bundles = "../../pkg/adapter/testdata"

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if ferr := finish(); err == nil {
		err = ferr
	}
	return err
}

func TestRenderContext(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "vars.yaml", "num: 45\ndescription: core\nmembers: [Ethernet1, Ethernet2]\n")

	ctx, err := renderContext(data, map[string]string{"mtu": "9000", "description": "edge", "label": "1/1"})
	if err != nil {
		t.Fatalf("renderContext() error = %v", err)
	}
	want := render.Context{
		"num":         45,
		"description": "edge",
		"members":     []any{"Ethernet1", "Ethernet2"},
		"mtu":         9000,
		"label":       "1/1",
	}
	if diff := cmp.Diff(want, ctx); diff != "" {
		t.Errorf("renderContext() mismatch (-want +got):\n%s", diff)
	}

	if _, err := renderContext(filepath.Join(dir, "missing.yaml"), nil); err == nil {
		t.Error("renderContext(missing) should fail")
	}
}

func TestUnionPaths(t *testing.T) {
	a, err := model.NewTree(map[string]model.ConfigNode{
		"b/config":    model.NewNode(map[string]any{"x": 1}),
		"a[1]/config": model.NewNode(map[string]any{"x": 1}),
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := model.NewTree(map[string]model.ConfigNode{
		"a[1]/config": model.NewNode(map[string]any{"x": 2}),
		"c/config":    model.NewNode(map[string]any{"y": 1}),
	})
	if err != nil {
		t.Fatal(err)
	}

	paths, err := unionPaths(a, b)
	if err != nil {
		t.Fatalf("unionPaths() error = %v", err)
	}
	var got []string
	for _, p := range paths {
		got = append(got, p.String())
	}
	want := []string{"a[1]/config", "b/config", "c/config"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unionPaths() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"core", "core"},
		{int64(9000), "9000"},
		{true, "true"},
		{[]any{"Ethernet1", "Ethernet2"}, "[Ethernet1, Ethernet2]"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFirstError(t *testing.T) {
	hosts := []string{"leaf1", "leaf2", "leaf3"}
	boom := errors.New("boom")

	if err := firstError(hosts, make([]error, 3)); err != nil {
		t.Errorf("firstError(no errors) = %v", err)
	}

	err := firstError(hosts, []error{nil, boom, nil})
	if err == nil || err.Error() != "leaf2: boom" {
		t.Errorf("firstError(one) = %v", err)
	}

	err = firstError(hosts, []error{boom, nil, boom})
	if !errors.Is(err, boom) || !strings.HasPrefix(err.Error(), "2 of 3 devices failed") {
		t.Errorf("firstError(two) = %v", err)
	}
}

func TestRequireDevices(t *testing.T) {
	saved := devices
	defer func() { devices = saved }()

	devices = nil
	if _, err := requireDevices(); err == nil {
		t.Error("requireDevices() with no -d should fail")
	}
	devices = []string{"leaf1"}
	if got, err := requireDevices(); err != nil || len(got) != 1 {
		t.Errorf("requireDevices() = %v, %v", got, err)
	}
}

func TestPlanCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()
	after := writeFile(t, dir, "after.yaml", `
interfaces/interface[Loopback45]/config:
  name: Loopback45
  type: softwareLoopback
  description: core
  enabled: true
`)

	if err := run(t, "plan", "interfaces/interface[Loopback45]/config", "--bundles", bundles, "--after", after); err != nil {
		t.Fatalf("plan error = %v", err)
	}

	mixed := writeFile(t, dir, "mixed.yaml", `
interfaces/interface[Loopback45]/config:
  name: Loopback45
  type: softwareLoopback
routing/static[10.0.0.0/8]/config:
  next-hop: 192.0.2.1
`)
	err := run(t, "plan", "--bundles", bundles, "--after", mixed)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 paths failed") {
		t.Errorf("plan with unregistered schema error = %v", err)
	}

	logger, err := audit.NewFileLogger(filepath.Join(home, ".newtcli", "audit.log"), audit.RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	events, err := logger.Query(audit.Filter{Operation: audit.OpPlan})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d plan events, want 3", len(events))
	}

	var created, failed bool
	for _, e := range events {
		switch {
		case e.Success && e.Variant == "loopback" && e.Decision != nil && e.Decision.Kind == "create":
			created = true
		case !e.Success && e.Error != "":
			failed = true
		}
		if !e.DryRun {
			t.Errorf("plan event %s not marked dry-run", e.ID)
		}
	}
	if !created || !failed {
		t.Errorf("plan events = %+v, want creates and one failure", events)
	}
}

func TestPlanCommand_MissingBundles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	empty := t.TempDir()
	err := run(t, "plan", "--bundles", empty)
	if err == nil || !strings.Contains(err.Error(), "no adapter bundles") {
		t.Errorf("plan with empty bundle dir error = %v", err)
	}
}

func TestSettingsCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := run(t, "settings", "set", "ssh_user", "admin"); err != nil {
		t.Fatalf("settings set error = %v", err)
	}
	if err := run(t, "settings", "set", "audit_backend", "postgres"); err == nil {
		t.Error("settings set audit_backend postgres should fail")
	}
	if err := run(t, "settings", "set", "color", "blue"); err == nil {
		t.Error("settings set of unknown key should fail")
	}

	data, err := os.ReadFile(filepath.Join(home, ".newtcli", "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"ssh_user": "admin"`) {
		t.Errorf("settings file = %s", data)
	}
}
