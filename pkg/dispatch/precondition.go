package dispatch

import (
	"fmt"
	"strings"

	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/reconcile"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Op describes one resolved write handed to preconditions and render
// functions.
type Op struct {
	Path    model.Path
	Before  model.ConfigNode
	After   model.ConfigNode
	Kind    reconcile.Kind
	Changed []string
	// Snapshots the write was resolved against, for sibling lookups.
	BeforeTree model.Snapshot
	AfterTree  model.Snapshot
}

// Deletes reports whether the op removes the node from the device,
// including the delete half of a recreate.
func (o Op) Deletes() bool {
	return o.Kind == reconcile.Delete || o.Kind == reconcile.DeleteThenRecreate
}

// Precondition adds checks for an op to the checker.
type Precondition func(c *PreconditionChecker, op Op)

// PreconditionChecker accumulates precondition failures for one write.
type PreconditionChecker struct {
	operation string
	resource  string
	errors    []error
}

// NewPreconditionChecker creates a new precondition checker
func NewPreconditionChecker(operation, resource string) *PreconditionChecker {
	return &PreconditionChecker{
		operation: operation,
		resource:  resource,
	}
}

// RequireField checks that node has field set
func (p *PreconditionChecker) RequireField(n model.ConfigNode, field string) *PreconditionChecker {
	if _, ok := n.Get(field); !ok {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, p.resource, "field must be set", fmt.Sprintf("'%s' is missing", field)))
	}
	return p
}

// Check runs a custom check
func (p *PreconditionChecker) Check(condition bool, precondition, details string) *PreconditionChecker {
	if !condition {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, p.resource, precondition, details))
	}
	return p
}

// Result returns nil if all checks passed, the failure if one did, and a
// ValidationError listing every failure otherwise. Any failure matches
// ErrPreconditionFailed.
func (p *PreconditionChecker) Result() error {
	if len(p.errors) == 0 {
		return nil
	}
	if len(p.errors) == 1 {
		return p.errors[0]
	}
	msgs := make([]string, len(p.errors))
	for i, e := range p.errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%w: %w", util.ErrPreconditionFailed, util.NewValidationError(msgs...))
}

// Errors returns all errors
func (p *PreconditionChecker) Errors() []error {
	return p.errors
}

// HasErrors returns true if there are any errors
func (p *PreconditionChecker) HasErrors() bool {
	return len(p.errors) > 0
}

// RequireFields fails creates and updates whose after-state lacks any of
// fields.
func RequireFields(fields ...string) Precondition {
	return func(c *PreconditionChecker, op Op) {
		if !op.After.Exists() {
			return
		}
		for _, f := range fields {
			c.RequireField(op.After, f)
		}
	}
}

// ForbidDelete rejects any op that removes the node.
func ForbidDelete(reason string) Precondition {
	return func(c *PreconditionChecker, op Op) {
		c.Check(!op.Deletes(), "node cannot be deleted", reason)
	}
}

// ForbidDeleteWhen rejects removal while the before-state has field equal
// to value, e.g. ("oper-status", "up").
func ForbidDeleteWhen(field string, value any, reason string) Precondition {
	return func(c *PreconditionChecker, op Op) {
		if !op.Deletes() {
			return
		}
		got, ok := op.Before.Get(field)
		c.Check(!ok || !model.ValueEqual(got, value),
			fmt.Sprintf("node cannot be deleted while %s is %v", field, value), reason)
	}
}

// Custom wraps a check function; a non-nil error fails the write under name.
func Custom(name string, fn func(op Op) error) Precondition {
	return func(c *PreconditionChecker, op Op) {
		if err := fn(op); err != nil {
			c.Check(false, name, err.Error())
		}
	}
}

func checkPreconditions(v *Variant, op Op) error {
	if len(v.Preconditions) == 0 {
		return nil
	}
	c := NewPreconditionChecker(strings.ReplaceAll(string(op.Kind), "-", " "), op.Path.String())
	for _, pc := range v.Preconditions {
		pc(c, op)
	}
	return c.Result()
}
