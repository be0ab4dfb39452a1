// Package reconcile decides how a before/after pair of configuration nodes
// is carried out on a device.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Kind is the shape of a planned change.
type Kind string

const (
	Noop               Kind = "noop"
	Create             Kind = "create"
	UpdateInPlace      Kind = "update-in-place"
	DeleteThenRecreate Kind = "delete-then-recreate"
	Delete             Kind = "delete"
)

// AllMutable in Policy.Mutable marks every non-discriminator field mutable.
const AllMutable = "*"

// Policy is what a variant declares about its fields.
type Policy struct {
	// Discriminators may never change across an update.
	Discriminators []string
	// Mutable fields may be changed in place when InPlace is set.
	Mutable []string
	InPlace bool
}

// Decision is the outcome of Plan.
type Decision struct {
	Kind      Kind     `json:"kind"`
	Rationale string   `json:"rationale"`
	Changed   []string `json:"changed,omitempty"`
}

func (d Decision) String() string {
	return fmt.Sprintf("%s (%s)", d.Kind, d.Rationale)
}

// Plan applies the decision rules in order:
//
//	both absent                      noop
//	absent -> present                create
//	present -> absent                delete
//	equal                            noop
//	discriminator changed            validation error
//	in-place and all changes mutable update-in-place
//	otherwise                        delete-then-recreate
func Plan(before, after model.ConfigNode, policy Policy) (Decision, error) {
	switch {
	case !before.Exists() && !after.Exists():
		return Decision{Kind: Noop, Rationale: "absent before and after"}, nil
	case !before.Exists():
		return Decision{Kind: Create, Rationale: "absent before", Changed: after.Fields()}, nil
	case !after.Exists():
		return Decision{Kind: Delete, Rationale: "absent after", Changed: before.Fields()}, nil
	}

	changed := before.Diff(after)
	if len(changed) == 0 {
		return Decision{Kind: Noop, Rationale: "no field changed"}, nil
	}

	if bad := intersect(changed, policy.Discriminators); len(bad) > 0 {
		v := &util.ValidationBuilder{}
		for _, f := range bad {
			b, _ := before.Get(f)
			a, _ := after.Get(f)
			v.AddErrorf("discriminator %q cannot change (%v -> %v)", f, b, a)
		}
		return Decision{}, v.Build()
	}

	if !policy.InPlace {
		return Decision{
			Kind:      DeleteThenRecreate,
			Rationale: "in-place update not supported",
			Changed:   changed,
		}, nil
	}
	if fixed := immutable(changed, policy.Mutable); len(fixed) > 0 {
		return Decision{
			Kind:      DeleteThenRecreate,
			Rationale: "immutable fields changed: " + strings.Join(fixed, ", "),
			Changed:   changed,
		}, nil
	}
	return Decision{
		Kind:      UpdateInPlace,
		Rationale: "only mutable fields changed",
		Changed:   changed,
	}, nil
}

func intersect(fields, set []string) []string {
	var out []string
	for _, f := range fields {
		if contains(set, f) {
			out = append(out, f)
		}
	}
	return out
}

// immutable returns the changed fields not covered by mutable.
func immutable(changed, mutable []string) []string {
	if contains(mutable, AllMutable) {
		return nil
	}
	var out []string
	for _, f := range changed {
		if !contains(mutable, f) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
