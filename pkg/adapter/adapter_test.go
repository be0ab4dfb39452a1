package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/reconcile"
	"github.com/newtron-network/newtcli/pkg/session"
	"github.com/newtron-network/newtcli/pkg/util"
)

func loadRegistry(t *testing.T) *dispatch.Registry {
	t.Helper()
	bundles, err := LoadDir("testdata")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	reg, err := Build(bundles...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

type harness struct {
	dev  *acmeDevice
	rec  *session.Recorder
	disp *dispatch.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dev: newAcmeDevice()}
	h.rec = session.NewRecorder("leaf1").Handle(h.dev.handle)
	h.disp = dispatch.NewDispatcher(loadRegistry(t), session.NewTransactor(h.rec), dispatch.WithConfirm(true))
	return h
}

func snapshot(t *testing.T, path string, fields map[string]any) *model.Tree {
	t.Helper()
	if fields == nil {
		return model.EmptyTree()
	}
	tr, err := model.NewTree(map[string]model.ConfigNode{path: model.NewNode(fields)})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	return tr
}

func TestLoadDir(t *testing.T) {
	bundles, err := LoadDir("testdata")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(bundles) != 2 {
		t.Fatalf("loaded %d bundles, want 2", len(bundles))
	}
	if got := filepath.Base(bundles[0].Source()); got != "acme.yaml" {
		t.Errorf("first bundle = %s, want acme.yaml", got)
	}
	hcl := bundles[1]
	if hcl.Vendor != "acme" || len(hcl.Paths) != 1 {
		t.Fatalf("hcl bundle = %+v", hcl)
	}
	v := hcl.Paths[0].Variants[0]
	if v.Name != "vlan" || v.Match == nil || v.Match.Key != `^(?P<id>\d+)$` {
		t.Errorf("vlan variant = %+v", v)
	}
	if v.Read == nil || len(v.Read.Fields) != 2 || v.Read.Fields[1].Type != "list" {
		t.Errorf("vlan read = %+v", v.Read)
	}
	if !strings.HasPrefix(v.Create, "{% if ($delete) %}no vlan {$id}\n") {
		t.Errorf("heredoc indentation not stripped: %q", v.Create)
	}

	reg, err := Build(bundles...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{"interfaces/interface/config", "system/config", "vlans/vlan/config"}
	if diff := cmp.Diff(want, reg.Schemas()); diff != "" {
		t.Errorf("Schemas() (-want +got):\n%s", diff)
	}
	if m, _ := reg.Mode("system/config"); m != dispatch.UnionMerge {
		t.Errorf("system/config mode = %s, want merge", m)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"unknown key", write("a.yaml", "vendor: x\nvariants: []\n")},
		{"bad yaml", write("b.yml", "vendor: [\n")},
		{"bad hcl", write("c.hcl", "vendor = \n")},
		{"missing hcl attr", write("d.hcl", "path \"a/b\" {}\n")},
		{"extension", write("e.json", "{}")},
		{"missing", filepath.Join(dir, "nope.yaml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(tt.path); err == nil {
				t.Error("LoadFile() succeeded, want error")
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	base := func() VariantSpec {
		return VariantSpec{
			Name: "v",
			Read: &ReadSpec{
				Command: "show x",
				Fields:  []FieldSpec{{Name: "a", Pattern: `^a (?P<value>\d+)$`, Type: "int"}},
			},
			Create: "x {$a}",
		}
	}
	str := func(s string) *string { return &s }

	tests := []struct {
		name   string
		mutate func(*Bundle)
	}{
		{"bad template", func(b *Bundle) { b.Paths[0].Variants[0].Create = "x {% if %}" }},
		{"bad command", func(b *Bundle) { b.Paths[0].Variants[0].Read.Command = "show {$" }},
		{"no command", func(b *Bundle) { b.Paths[0].Variants[0].Read.Command = "" }},
		{"bad pattern", func(b *Bundle) { b.Paths[0].Variants[0].Read.Fields[0].Pattern = "(" }},
		{"missing group", func(b *Bundle) { b.Paths[0].Variants[0].Read.Fields[0].Group = "nope" }},
		{"unknown type", func(b *Bundle) { b.Paths[0].Variants[0].Read.Fields[0].Type = "ipv9" }},
		{"bad default", func(b *Bundle) { b.Paths[0].Variants[0].Read.Fields[0].Default = str("ten") }},
		{"negative index", func(b *Bundle) { b.Paths[0].Variants[0].Read.Fields[0].Index = -1 }},
		{"bad key", func(b *Bundle) { b.Paths[0].Variants[0].Match = &MatchSpec{Key: "("} }},
		{"sibling without field", func(b *Bundle) { b.Paths[0].Variants[0].Match = &MatchSpec{Sibling: "config"} }},
		{"update without create", func(b *Bundle) {
			b.Paths[0].Variants[0].Create = ""
			b.Paths[0].Variants[0].Update = "x"
		}},
		{"bad dispatch", func(b *Bundle) { b.Paths[0].Dispatch = "roundrobin" }},
		{"bad error pattern", func(b *Bundle) { b.ErrorPatterns = []string{"["} }},
		{"duplicate schema", func(b *Bundle) { b.Paths = append(b.Paths, b.Paths[0]) }},
		{"bad context", func(b *Bundle) { b.Paths[0].Variants[0].Context = map[string]string{"x": "{% endif %}"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Bundle{Vendor: "test", Paths: []PathSpec{{Schema: "a/b", Variants: []VariantSpec{base()}}}}
			tt.mutate(b)
			if _, err := Build(b); !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("Build() error = %v, want validation error", err)
			}
		})
	}

	b := &Bundle{Vendor: "test", Paths: []PathSpec{{Schema: "a/b", Variants: []VariantSpec{base()}}}}
	if _, err := Build(b); err != nil {
		t.Errorf("Build(valid) = %v", err)
	}
}

const lo45 = "interfaces/interface[Loopback45]/config"

func TestLoopback45_EndToEnd(t *testing.T) {
	h := newHarness(t)
	path := model.MustParsePath(lo45)
	after := snapshot(t, lo45, map[string]any{
		"name":        "Loopback45",
		"type":        "softwareLoopback",
		"enabled":     true,
		"description": "core",
	})

	res, err := h.disp.Write(context.Background(), dispatch.WriteRequest{Path: path, After: after})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []string{"interface loopback 45", "port-name core", "enable", "end"}
	if diff := cmp.Diff(want, res.Commands); diff != "" {
		t.Errorf("commands (-want +got):\n%s", diff)
	}
	if res.Variant != "loopback" || !res.Confirmed {
		t.Errorf("result = %+v", res)
	}
	if !h.dev.has(interfaceHeader("Loopback45")) {
		t.Fatal("device has no loopback 45")
	}

	got, err := h.disp.Read(context.Background(), path, after)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	wantNode := model.NewNode(map[string]any{"name": "Loopback45", "type": "softwareLoopback", "enabled": true, "description": "core"})
	if !got.Equal(wantNode) {
		t.Errorf("Read() = %s, want %s", got, wantNode)
	}
}

func TestInterface_Lifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	path := model.MustParsePath(lo45)
	node := func(fields map[string]any) *model.Tree {
		fields["type"] = "softwareLoopback"
		return snapshot(t, lo45, fields)
	}

	v1 := node(map[string]any{"description": "core", "enabled": true})
	if _, err := h.disp.Write(ctx, dispatch.WriteRequest{Path: path, After: v1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	v2 := node(map[string]any{"enabled": false})
	res, err := h.disp.Write(ctx, dispatch.WriteRequest{Path: path, Before: v1, After: v2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Decision.Kind != reconcile.UpdateInPlace {
		t.Errorf("update decision = %s", res.Decision.Kind)
	}
	if diff := cmp.Diff([]string{"interface loopback 45", "no port-name", "disable", "end"}, res.Commands); diff != "" {
		t.Errorf("update commands (-want +got):\n%s", diff)
	}

	v3 := node(map[string]any{"enabled": false, "mtu": 9000})
	res, err = h.disp.Write(ctx, dispatch.WriteRequest{Path: path, Before: v2, After: v3})
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if res.Decision.Kind != reconcile.DeleteThenRecreate {
		t.Errorf("recreate decision = %s", res.Decision.Kind)
	}
	wantRecreate := []string{"no interface loopback 45", "interface loopback 45", "mtu 9000", "disable", "end"}
	if diff := cmp.Diff(wantRecreate, res.Commands); diff != "" {
		t.Errorf("recreate commands (-want +got):\n%s", diff)
	}
	if len(res.Transcripts) == 0 || res.Transcripts[0].Kind != session.KindApply {
		t.Error("recreate was not a single apply transaction")
	}

	res, err = h.disp.Write(ctx, dispatch.WriteRequest{Path: path, Before: v3})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if diff := cmp.Diff([]string{"no interface loopback 45"}, res.Commands); diff != "" {
		t.Errorf("delete commands (-want +got):\n%s", diff)
	}
	if h.dev.has(interfaceHeader("Loopback45")) {
		t.Error("loopback 45 still configured")
	}

	_, err = h.disp.Write(ctx, dispatch.WriteRequest{
		Path:   path,
		Before: v3,
		After:  snapshot(t, lo45, map[string]any{"type": "ethernetCsmacd"}),
	})
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("type change error = %v, want validation failure", err)
	}
}

// The current state read from the device is a valid before-state for the
// next write.
func TestReadThenWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	path := model.MustParsePath(lo45)
	created := snapshot(t, lo45, map[string]any{"type": "softwareLoopback", "description": "core", "enabled": true})
	if _, err := h.disp.Write(ctx, dispatch.WriteRequest{Path: path, After: created}); err != nil {
		t.Fatalf("create: %v", err)
	}

	after := snapshot(t, lo45, map[string]any{"type": "softwareLoopback", "description": "edge", "enabled": true})
	current, err := h.disp.Read(ctx, path, after)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	res, err := h.disp.Write(ctx, dispatch.WriteRequest{Path: path, Before: after.With(path, current), After: after})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Decision.Kind != reconcile.UpdateInPlace || !res.Confirmed {
		t.Errorf("result = %+v", res)
	}
	if diff := cmp.Diff([]string{"interface loopback 45", "port-name edge", "enable", "end"}, res.Commands); diff != "" {
		t.Errorf("commands (-want +got):\n%s", diff)
	}

	// reading again plans nothing
	current, err = h.disp.Read(ctx, path, after)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	res, err = h.disp.Write(ctx, dispatch.WriteRequest{Path: path, Before: after.With(path, current), After: after.With(path, current)})
	if err != nil || res.Decision.Kind != reconcile.Noop {
		t.Errorf("rewrite = %+v, %v; want noop", res, err)
	}
}

// Rendering a node and reading the device back recovers the node on the
// fields the variant owns.
func TestRoundTrip(t *testing.T) {
	tests := []struct {
		path   string
		fields map[string]any
	}{
		{lo45, map[string]any{"type": "softwareLoopback", "description": "core", "enabled": true}},
		{"interfaces/interface[Loopback1]/config", map[string]any{"type": "softwareLoopback", "enabled": true}},
		{"interfaces/interface[Loopback0]/config", map[string]any{"type": "softwareLoopback", "mtu": 1500, "enabled": false}},
		{"interfaces/interface[Ethernet1/1]/config", map[string]any{"type": "ethernetCsmacd", "mtu": 9100, "enabled": true, "description": "uplink to spine1"}},
		{"interfaces/interface[Ethernet1/2]/config", map[string]any{"type": "ethernetCsmacd", "mtu": 1500, "enabled": false}},
		{"vlans/vlan[10]/config", map[string]any{"name": "servers", "members": []any{"Ethernet1/1", "Ethernet1/2"}}},
		{"vlans/vlan[20]/config", map[string]any{"name": "storage"}},
	}
	h := newHarness(t)
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			path := model.MustParsePath(tt.path)
			after := snapshot(t, tt.path, tt.fields)
			res, err := h.disp.Write(context.Background(), dispatch.WriteRequest{Path: path, After: after})
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if !res.Confirmed {
				t.Error("write not confirmed")
			}
			got, err := h.disp.Read(context.Background(), path, after)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			for f, want := range tt.fields {
				if v, _ := got.Get(f); !model.ValueEqual(v, want) {
					t.Errorf("field %s = %v, want %v", f, v, want)
				}
			}
		})
	}
}

func TestEthernet_ContextAndPreconditions(t *testing.T) {
	h := newHarness(t)
	path := model.MustParsePath("interfaces/interface[Ethernet1/1]/config")

	_, err := h.disp.Write(context.Background(), dispatch.WriteRequest{
		Path:  path,
		After: snapshot(t, path.String(), map[string]any{"type": "ethernetCsmacd", "enabled": true}),
	})
	if !errors.Is(err, util.ErrPreconditionFailed) {
		t.Fatalf("error = %v, want precondition failure", err)
	}
	if len(h.rec.Payloads()) != 0 {
		t.Error("failed precondition touched the device")
	}

	before := snapshot(t, path.String(), map[string]any{"type": "ethernetCsmacd", "mtu": 1500})
	res, err := h.disp.Write(context.Background(), dispatch.WriteRequest{Path: path, Before: before})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if diff := cmp.Diff([]string{"default interface ethernet 1/1"}, res.Commands); diff != "" {
		t.Errorf("delete commands (-want +got):\n%s", diff)
	}
}

func TestRead_DefaultsAndAbsence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	eth := model.MustParsePath("interfaces/interface[Ethernet1/3]/config")
	snap := snapshot(t, eth.String(), map[string]any{"type": "ethernetCsmacd"})

	got, err := h.disp.Read(ctx, eth, snap)
	if err != nil || got.Exists() {
		t.Fatalf("Read(unconfigured) = %s, %v; want absent", got, err)
	}

	// a bare stanza exists; mtu falls back to its default
	h.dev.enter("interface ethernet 1/3")
	got, err = h.disp.Read(ctx, eth, snap)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := model.NewNode(map[string]any{"name": "Ethernet1/3", "type": "ethernetCsmacd", "mtu": 1500, "enabled": true})
	if !got.Equal(want) {
		t.Errorf("Read(bare stanza) = %s, want %s", got, want)
	}

	h.dev.stanzas["interface ethernet 1/3"].attrs["port-name"] = "spare"
	got, err = h.disp.Read(ctx, eth, snap)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want = want.With("description", "spare")
	if !got.Equal(want) {
		t.Errorf("Read() = %s, want %s", got, want)
	}
}

func TestSystem_Merge(t *testing.T) {
	h := newHarness(t)
	path := model.MustParsePath("system/config")

	got, err := h.disp.Read(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := model.NewNode(map[string]any{"hostname": "leaf1", "domain-name": "example.net", "timezone": "UTC"})
	if !got.Equal(want) {
		t.Errorf("Read() = %s, want %s", got, want)
	}

	before := snapshot(t, "system/config", map[string]any{"hostname": "leaf1"})
	after := snapshot(t, "system/config", map[string]any{"hostname": "leaf2"})
	res, err := h.disp.Write(context.Background(), dispatch.WriteRequest{Path: path, Before: before, After: after})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if res.Variant != "identity" || h.dev.hostname != "leaf2" {
		t.Errorf("variant = %s, hostname = %s", res.Variant, h.dev.hostname)
	}

	_, err = h.disp.Write(context.Background(), dispatch.WriteRequest{Path: path, Before: after})
	if !errors.Is(err, util.ErrPreconditionFailed) {
		t.Errorf("delete error = %v, want precondition failure", err)
	}
}

func TestErrorPatterns(t *testing.T) {
	dev := newAcmeDevice()
	rec := session.NewRecorder("leaf1").
		OnMatch(`^interface loopback`, "interface loopback 7\n% Invalid input detected at '^' marker.\n").
		Handle(dev.handle)
	d := dispatch.NewDispatcher(loadRegistry(t), session.NewTransactor(rec))

	path := model.MustParsePath("interfaces/interface[Loopback7]/config")
	_, err := d.Write(context.Background(), dispatch.WriteRequest{
		Path:  path,
		After: snapshot(t, path.String(), map[string]any{"type": "softwareLoopback"}),
	})
	var rej *util.CommandRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("error = %v, want CommandRejectedError", err)
	}
	if rej.Session != "leaf1" || !strings.HasPrefix(rej.Line, "% Invalid input") {
		t.Errorf("rejection = %+v", rej)
	}
}

func TestTemplateContext(t *testing.T) {
	c, err := compileVariant(VariantSpec{
		Name:  "ctx",
		Match: &MatchSpec{Key: `^Ethernet(?P<slot>\d+)/(?P<port>\d+)$`},
		Context: map[string]string{
			"a_label": "{$slot}/{$port}",
			"b_full":  "et{$a_label} ({$description})",
		},
		Create: "{$b_full} {$data.mtu} {$before.mtu} {$key}{% if ($delete) %} del{% endif %}",
	}, nil)
	if err != nil {
		t.Fatalf("compileVariant: %v", err)
	}
	op := dispatch.Op{
		Path:   model.MustParsePath("interfaces/interface[Ethernet2/7]/config"),
		Before: model.NewNode(map[string]any{"mtu": 1500, "description": "old"}),
		After:  model.NewNode(map[string]any{"mtu": 9100, "description": "new"}),
	}
	if diff := cmp.Diff([]string{"et2/7 (new) 9100 1500 Ethernet2/7"}, c.Create(op)); diff != "" {
		t.Errorf("create (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"et2/7 (old) 1500 1500 Ethernet2/7 del"}, c.Delete(op)); diff != "" {
		t.Errorf("delete (-want +got):\n%s", diff)
	}
}
