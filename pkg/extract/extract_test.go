package extract

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/util"
)

const showVlan = "VLAN  Name      Ports\r\n" +
	"10    servers   Et1, Et2   \r\n" +
	"20    storage   Et3\r\n" +
	"abc   broken    Et4\r\n"

var vlanLine = MustCompile(`^(?P<id>\S+)\s+(?P<name>\S+)\s+(?P<ports>.*)$`)

type vlan struct {
	ID   int64
	Name string
}

func projectVlan(m Match) (vlan, error) {
	id, err := m.Int("id")
	if err != nil {
		return vlan{}, err
	}
	return vlan{ID: id, Name: m.Value("name")}, nil
}

func TestFindFirst(t *testing.T) {
	p := MustCompile(`^(?P<id>\d+)\s+(?P<name>\S+)`)

	got, ok, err := FindFirst(showVlan, p, projectVlan)
	if err != nil || !ok {
		t.Fatalf("FindFirst() = %v, %v, %v", got, ok, err)
	}
	if got != (vlan{ID: 10, Name: "servers"}) {
		t.Errorf("FindFirst() = %+v", got)
	}

	_, ok, err = FindFirst(showVlan, MustCompile(`^nothing`), projectVlan)
	if ok || err != nil {
		t.Errorf("no match should be (zero, false, nil), got ok=%v err=%v", ok, err)
	}
}

func TestFindFirstFrom(t *testing.T) {
	p := MustCompile(`^(?P<id>\d+)\s+(?P<name>\S+)`)
	tests := []struct {
		start int
		want  vlan
		found bool
	}{
		{0, vlan{10, "servers"}, true},
		{1, vlan{20, "storage"}, true},
		{2, vlan{}, false},
	}
	for _, tt := range tests {
		got, ok, err := FindFirstFrom(showVlan, tt.start, p, projectVlan)
		if err != nil {
			t.Fatalf("start=%d: %v", tt.start, err)
		}
		if ok != tt.found || got != tt.want {
			t.Errorf("start=%d: got %+v, %v; want %+v, %v", tt.start, got, ok, tt.want, tt.found)
		}
	}
}

func TestFindAll(t *testing.T) {
	p := MustCompile(`^(?P<id>\d+)\s+(?P<name>\S+)`)
	got, err := FindAll(showVlan, p, projectVlan)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	want := []vlan{{10, "servers"}, {20, "storage"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindAll mismatch (-want +got):\n%s", diff)
	}

	none, err := FindAll("", p, projectVlan)
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("FindAll on empty output = %#v, %v; want empty non-nil", none, err)
	}
}

func TestTrailingWhitespaceTrimmed(t *testing.T) {
	ports, ok, err := FindFirst(showVlan, MustCompile(`^10\s+\S+\s+(?P<ports>.*)$`), Text("ports"))
	if err != nil || !ok {
		t.Fatalf("FindFirst: %v %v", ok, err)
	}
	if ports != "Et1, Et2" {
		t.Errorf("ports = %q, want trailing space and \\r trimmed", ports)
	}
}

func TestMalformedCapture(t *testing.T) {
	_, err := FindAll(showVlan, vlanLine, projectVlan)
	if err == nil {
		t.Fatal("expected extraction error for non-numeric id")
	}
	if !errors.Is(err, util.ErrExtraction) {
		t.Errorf("error %v is not ErrExtraction", err)
	}
	var xe *util.ExtractionError
	if !errors.As(err, &xe) {
		t.Fatalf("error %T is not *ExtractionError", err)
	}
	// header line "VLAN  Name ..." is the first to match vlanLine
	if xe.LineNo != 1 || xe.Group != "id" || xe.Pattern != vlanLine.String() {
		t.Errorf("ExtractionError = %+v", xe)
	}
}

func TestProjectorErrorWrapped(t *testing.T) {
	p := MustCompile(`^(?P<id>\d+)`)
	_, _, err := FindFirst("10 x", p, func(m Match) (int, error) {
		return 0, errors.New("boom")
	})
	var xe *util.ExtractionError
	if !errors.As(err, &xe) || xe.Line != "10 x" || xe.LineNo != 1 {
		t.Errorf("projector error not wrapped with line context: %v", err)
	}
}

func TestIdempotent(t *testing.T) {
	p := MustCompile(`^(?P<id>\d+)\s+(?P<name>\S+)`)
	first, _ := FindAll(showVlan, p, projectVlan)
	for i := 0; i < 3; i++ {
		again, _ := FindAll(showVlan, p, projectVlan)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestMatchGroupOptional(t *testing.T) {
	p := MustCompile(`^mtu (?P<mtu>\d+)(?: (?P<unit>bytes))?$`)
	m, ok := p.match("mtu 9100", 1)
	if !ok {
		t.Fatal("no match")
	}
	if _, ok := m.Group("unit"); ok {
		t.Error("non-participating group reported as matched")
	}
	if _, ok := m.Group("nope"); ok {
		t.Error("undeclared group reported as matched")
	}
	if v, err := m.Uint("mtu"); err != nil || v != 9100 {
		t.Errorf("Uint(mtu) = %d, %v", v, err)
	}
	if _, err := m.Float("unit"); err == nil {
		t.Error("Float on missing group should fail")
	}
}

func TestMatchBool(t *testing.T) {
	p := MustCompile(`^state (?P<s>\S+)$`)
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"state up", true, false},
		{"state Enabled", true, false},
		{"state down", false, false},
		{"state no", false, false},
		{"state maybe", false, true},
	}
	for _, tt := range tests {
		m, _ := p.match(tt.in, 1)
		got, err := m.Bool("s")
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("Bool(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		kind    string
		raw     string
		want    any
		wantErr bool
	}{
		{"", "x", "x", false},
		{"string", " x", " x", false},
		{"int", "-5", int64(-5), false},
		{"int", "5a", nil, true},
		{"uint", "42", int64(42), false},
		{"bool", "enabled", true, false},
		{"float", "2.5", 2.5, false},
		{"range", "1-3,7", []any{int64(1), int64(2), int64(3), int64(7)}, false},
		{"list", "Et1, Et2 Et3", []any{"Et1", "Et2", "Et3"}, false},
		{"ifname", "lo45", "Loopback45", false},
		{"color", "red", nil, true},
	}
	for _, tt := range tests {
		got, err := Decode(tt.kind, tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("Decode(%q, %q) error = %v", tt.kind, tt.raw, err)
			continue
		}
		if !tt.wantErr && !cmp.Equal(got, tt.want) {
			t.Errorf("Decode(%q, %q) = %#v, want %#v", tt.kind, tt.raw, got, tt.want)
		}
	}
}

func TestNodeProjector(t *testing.T) {
	p := MustCompile(`^interface (?P<name>\S+)(?: mtu (?P<mtu>\d+))?`)
	project := NodeProjector(map[string]string{"name": "ifname", "mtu": "int"})

	got, ok, err := FindFirst("interface Et1 mtu 9100", p, project)
	if err != nil || !ok {
		t.Fatalf("FindFirst: %v %v", ok, err)
	}
	want := model.NewNode(map[string]any{"name": "Ethernet1", "mtu": 9100})
	if !got.Equal(want) {
		t.Errorf("node = %s, want %s", got, want)
	}

	got, _, _ = FindFirst("interface Et2", p, project)
	if _, ok := got.Get("mtu"); ok {
		t.Errorf("unmatched group should be unset: %s", got)
	}
}

func TestSection(t *testing.T) {
	cfg := `hostname leaf1
interface Ethernet1
   description uplink
   mtu 9100
!
interface Loopback45
   description core

   shutdown
router bgp 65000
   neighbor 10.0.0.1
`
	blocks := Section(cfg, MustCompile(`^interface (?P<name>\S+)`))
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if got := blocks[0].Header.Value("name"); got != "Ethernet1" {
		t.Errorf("block 0 name = %q", got)
	}
	if diff := cmp.Diff([]string{"   description core", "   shutdown"}, blocks[1].Body); diff != "" {
		t.Errorf("block 1 body (-want +got):\n%s", diff)
	}

	text, ok := SectionFor(cfg, MustCompile(`^interface Loopback45$`))
	if !ok || text != "interface Loopback45\n   description core\n   shutdown" {
		t.Errorf("SectionFor() = %q, %v", text, ok)
	}
	if _, ok := SectionFor(cfg, MustCompile(`^interface Vlan9$`)); ok {
		t.Error("SectionFor on missing header should report false")
	}
}

func TestKindsRegistered(t *testing.T) {
	for _, k := range []string{"string", "int", "uint", "bool", "float", "range", "list", "ifname"} {
		if !HasKind(k) {
			t.Errorf("kind %q has no decoder", k)
		}
	}
	if len(Kinds()) != 8 {
		t.Errorf("Kinds() = %v", Kinds())
	}
}
