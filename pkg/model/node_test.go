package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewNodeNormalizes(t *testing.T) {
	n := NewNode(map[string]any{
		"mtu":     9100,
		"enabled": true,
		"desc":    "core",
		"dropped": nil,
		"vlans":   []int{10, 20},
		"sub":     map[string]any{"index": uint16(3)},
	})

	want := map[string]any{
		"mtu":     int64(9100),
		"enabled": true,
		"desc":    "core",
		"vlans":   []any{int64(10), int64(20)},
		"sub":     map[string]any{"index": int64(3)},
	}
	if diff := cmp.Diff(want, n.AsMap()); diff != "" {
		t.Errorf("AsMap() mismatch (-want +got):\n%s", diff)
	}
	if got := n.Fields(); !cmp.Equal(got, []string{"desc", "enabled", "mtu", "sub", "vlans"}) {
		t.Errorf("Fields() = %v", got)
	}
}

func TestAbsentNode(t *testing.T) {
	var n ConfigNode
	if n.Exists() {
		t.Error("zero ConfigNode should be absent")
	}
	if n.AsMap() != nil {
		t.Error("absent AsMap() should be nil")
	}
	if !NewNode(nil).Exists() {
		t.Error("NewNode(nil) should exist")
	}
	if n.Equal(NewNode(nil)) {
		t.Error("absent node should not equal empty node")
	}
	if !n.Equal(Absent()) {
		t.Error("absent nodes should be equal")
	}
	if got := n.String(); got != "null" {
		t.Errorf("String() = %q, want null", got)
	}
}

func TestNodeImmutable(t *testing.T) {
	src := map[string]any{"tags": []any{"a"}}
	n := NewNode(src)
	src["tags"].([]any)[0] = "changed"

	out := n.AsMap()
	out["tags"].([]any)[0] = "mutated"

	v, _ := n.Get("tags")
	if diff := cmp.Diff([]any{"a"}, v); diff != "" {
		t.Errorf("node changed through aliasing (-want +got):\n%s", diff)
	}

	m := n.With("x", 1)
	if _, ok := n.Get("x"); ok {
		t.Error("With modified the receiver")
	}
	if _, ok := m.Get("x"); !ok {
		t.Error("With did not set field")
	}
	if _, ok := m.Without("x").Get("x"); ok {
		t.Error("Without did not remove field")
	}
}

func TestLookup(t *testing.T) {
	n := NewNode(map[string]any{
		"config": map[string]any{"name": "Loopback45"},
		"vlans":  []any{map[string]any{"id": 10}, map[string]any{"id": 20}},
		"byid":   map[string]any{"7": "seven"},
	})

	tests := []struct {
		path  []string
		want  any
		found bool
	}{
		{[]string{"config", "name"}, "Loopback45", true},
		{[]string{"vlans", "1", "id"}, int64(20), true},
		{[]string{"byid", "7"}, "seven", true},
		{[]string{"config", "missing"}, nil, false},
		{[]string{"vlans", "5", "id"}, nil, false},
		{[]string{"nope", "deeper"}, nil, false},
	}
	for _, tt := range tests {
		got, ok := n.Lookup(tt.path...)
		if ok != tt.found || !cmp.Equal(got, tt.want) {
			t.Errorf("Lookup(%v) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.found)
		}
	}
}

func TestDiffAndEqual(t *testing.T) {
	a := NewNode(map[string]any{"mtu": 1500, "desc": "x", "type": "ethernet"})
	b := NewNode(map[string]any{"mtu": 9100, "desc": "x", "speed": "100G", "type": "ethernet"})

	if got := a.Diff(b); !cmp.Equal(got, []string{"mtu", "speed"}) {
		t.Errorf("Diff() = %v, want [mtu speed]", got)
	}
	if got := a.Diff(a); len(got) != 0 {
		t.Errorf("Diff(self) = %v, want empty", got)
	}
	if a.Equal(b) {
		t.Error("different nodes reported equal")
	}
	if !NewNode(map[string]any{"n": 1}).Equal(NewNode(map[string]any{"n": 1.0})) {
		t.Error("int and float with the same value should be equal")
	}
}

func TestProject(t *testing.T) {
	n := NewNode(map[string]any{"a": 1, "b": 2, "c": 3})
	got := n.Project("a", "c", "z")
	if diff := cmp.Diff(map[string]any{"a": int64(1), "c": int64(3)}, got.AsMap()); diff != "" {
		t.Errorf("Project() mismatch (-want +got):\n%s", diff)
	}
	if Absent().Project("a").Exists() {
		t.Error("Project on absent node should stay absent")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	n := NewNode(map[string]any{"mtu": 9100, "ratio": 0.5, "name": "Ethernet0"})
	if got := n.String(); got != `{"mtu":9100,"name":"Ethernet0","ratio":0.5}` {
		t.Errorf("String() = %s", got)
	}

	var back ConfigNode
	if err := json.Unmarshal([]byte(n.String()), &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Equal(n) {
		t.Errorf("round trip = %s, want %s", back, n)
	}
}

func TestResolve(t *testing.T) {
	ctx := map[string]any{
		"data": NewNode(map[string]any{"description": "core"}),
		"xs":   []string{"a", "b"},
	}
	if got, ok := Resolve(ctx, "data", "description"); !ok || got != "core" {
		t.Errorf("Resolve(data.description) = %v, %v", got, ok)
	}
	if got, ok := Resolve(ctx, "xs", "1"); !ok || got != "b" {
		t.Errorf("Resolve(xs.1) = %v, %v", got, ok)
	}
	if _, ok := Resolve(ctx, "data", "missing", "deeper"); ok {
		t.Error("Resolve through missing field should be absent")
	}
}
