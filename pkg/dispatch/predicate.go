package dispatch

import (
	"regexp"

	"github.com/newtron-network/newtcli/pkg/model"
)

// Mode is the operation a predicate is asked about.
type Mode int

const (
	ModeRead Mode = iota
	ModeWriteCreate
	ModeWriteDelete
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWriteCreate:
		return "write-create"
	case ModeWriteDelete:
		return "write-delete"
	}
	return "unknown"
}

// Predicate decides whether a variant applies to the subtree at p. It may
// read any node of either snapshot but must not retain them.
type Predicate func(p model.Path, before, after model.Snapshot, mode Mode) bool

// Always applies everywhere.
func Always() Predicate {
	return func(model.Path, model.Snapshot, model.Snapshot, Mode) bool { return true }
}

// Never applies nowhere; useful to disable a variant.
func Never() Predicate {
	return func(model.Path, model.Snapshot, model.Snapshot, Mode) bool { return false }
}

// KeyMatches tests the innermost key of the path against a regular
// expression, e.g. `^Loopback\d+$`.
func KeyMatches(expr string) Predicate {
	re := regexp.MustCompile(expr)
	return func(p model.Path, _, _ model.Snapshot, _ Mode) bool {
		return re.MatchString(p.LastKey())
	}
}

// FieldEquals compares a field of the node at the path with want, by
// value. Reads and creates look at the after-state, deletes at the
// before-state.
func FieldEquals(field string, want any) Predicate {
	return func(p model.Path, before, after model.Snapshot, mode Mode) bool {
		return fieldEquals(model.Lookup(state(mode, before, after), p), field, want)
	}
}

// SiblingFieldEquals is FieldEquals on a sibling node, e.g. the
// discriminator kept in .../interface[X]/config when the path is
// .../interface[X]/ethernet.
func SiblingFieldEquals(siblingType, field string, want any) Predicate {
	return func(p model.Path, before, after model.Snapshot, mode Mode) bool {
		sib := p.Sibling(siblingType, "")
		return fieldEquals(model.Lookup(state(mode, before, after), sib), field, want)
	}
}

// And applies when every predicate applies.
func And(preds ...Predicate) Predicate {
	return func(p model.Path, before, after model.Snapshot, mode Mode) bool {
		for _, pred := range preds {
			if !pred(p, before, after, mode) {
				return false
			}
		}
		return true
	}
}

// Or applies when any predicate applies.
func Or(preds ...Predicate) Predicate {
	return func(p model.Path, before, after model.Snapshot, mode Mode) bool {
		for _, pred := range preds {
			if pred(p, before, after, mode) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(pred Predicate) Predicate {
	return func(p model.Path, before, after model.Snapshot, mode Mode) bool {
		return !pred(p, before, after, mode)
	}
}

func state(mode Mode, before, after model.Snapshot) model.Snapshot {
	if mode == ModeWriteDelete {
		return before
	}
	return after
}

func fieldEquals(n model.ConfigNode, field string, want any) bool {
	got, ok := n.Get(field)
	if !ok {
		return false
	}
	return model.ValueEqual(got, want)
}
