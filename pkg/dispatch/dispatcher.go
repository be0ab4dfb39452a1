package dispatch

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/reconcile"
	"github.com/newtron-network/newtcli/pkg/session"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Transactor is the device side of a Dispatcher; *session.Transactor
// implements it.
type Transactor interface {
	Name() string
	Probe(ctx context.Context, command string) (string, *session.Transcript, error)
	Apply(ctx context.Context, commands []string) (*session.Transcript, error)
}

// Dispatcher runs reads and writes for one device session.
type Dispatcher struct {
	reg     *Registry
	tx      Transactor
	device  string
	confirm bool
	sink    func(*session.Transcript)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithConfirm re-reads every written node and compares it with the
// intended state.
func WithConfirm(on bool) DispatcherOption {
	return func(d *Dispatcher) { d.confirm = on }
}

// WithTranscriptSink receives every transcript the dispatcher produces.
func WithTranscriptSink(fn func(*session.Transcript)) DispatcherOption {
	return func(d *Dispatcher) { d.sink = fn }
}

// WithDevice names the device in logs; it defaults to the session name.
func WithDevice(name string) DispatcherOption {
	return func(d *Dispatcher) { d.device = name }
}

// NewDispatcher binds a registry to one session.
func NewDispatcher(reg *Registry, tx Transactor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{reg: reg, tx: tx, device: tx.Name()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// WriteRequest asks for the node at Path to go from its state in Before to
// its state in After. A nil snapshot has no nodes.
type WriteRequest struct {
	Path   model.Path
	Before model.Snapshot
	After  model.Snapshot
}

// Result describes a write.
type Result struct {
	Path        model.Path
	Variant     string
	Decision    reconcile.Decision
	Commands    []string
	Transcripts []*session.Transcript
	Confirmed   bool
}

// prober records the transcripts of a variant's probes.
type prober struct {
	d   *Dispatcher
	out *[]*session.Transcript
}

func (p prober) Probe(ctx context.Context, command string) (string, error) {
	out, tr, err := p.d.tx.Probe(ctx, command)
	p.d.record(tr, p.out)
	return out, err
}

func (d *Dispatcher) record(tr *session.Transcript, out *[]*session.Transcript) {
	if tr == nil {
		return
	}
	if out != nil {
		*out = append(*out, tr)
	}
	if d.sink != nil {
		d.sink(tr)
	}
}

// Read reads the node at path. For an exclusive schema the first
// applicable variant reads; with none the node is absent. For a merge
// schema every applicable variant reads and the results are combined. Any
// error fails the whole read.
func (d *Dispatcher) Read(ctx context.Context, path model.Path, snap model.Snapshot) (model.ConfigNode, error) {
	e, ok := d.reg.lookup(path)
	if !ok {
		return model.ConfigNode{}, &util.UnsupportedTypeError{Path: path.String(), Mode: ModeRead.String()}
	}
	log := util.WithPath(d.device, path.String())
	req := ReadRequest{Path: path, Snapshot: snap}
	p := prober{d: d}

	if e.mode == Exclusive {
		for _, v := range e.variants {
			if v.Read == nil || !v.applies(path, snap, snap, ModeRead) {
				continue
			}
			log.Debugf("Read resolved to variant %s", v.Name)
			n, err := v.Read(ctx, p, req)
			if err != nil {
				return model.ConfigNode{}, fmt.Errorf("reading %s via %s: %w", path, v.Name, err)
			}
			return n, nil
		}
		log.Debug("No variant applies for read")
		return model.ConfigNode{}, nil
	}

	merged := map[string]any{}
	owner := map[string]string{}
	found := false
	for _, v := range e.variants {
		if v.Read == nil || !v.applies(path, snap, snap, ModeRead) {
			continue
		}
		log.Debugf("Read merging variant %s", v.Name)
		n, err := v.Read(ctx, p, req)
		if err != nil {
			return model.ConfigNode{}, fmt.Errorf("reading %s via %s: %w", path, v.Name, err)
		}
		if !n.Exists() {
			continue
		}
		found = true
		for _, f := range n.Fields() {
			if prev, dup := owner[f]; dup {
				return model.ConfigNode{}, &util.MergeConflictError{
					Path: path.String(), Field: f, First: prev, Second: v.Name,
				}
			}
			owner[f] = v.Name
			merged[f], _ = n.Get(f)
		}
	}
	if !found {
		return model.ConfigNode{}, nil
	}
	return model.NewNode(merged), nil
}

// Prepare resolves the variant, plans the change, checks preconditions and
// renders the commands, without touching the device.
func (d *Dispatcher) Prepare(req WriteRequest) (*Result, error) {
	res, _, _, err := d.prepare(req)
	return res, err
}

func (d *Dispatcher) prepare(req WriteRequest) (*Result, *Variant, Op, error) {
	res := &Result{Path: req.Path}
	op := Op{
		Path:       req.Path,
		Before:     model.Lookup(req.Before, req.Path),
		After:      model.Lookup(req.After, req.Path),
		BeforeTree: req.Before,
		AfterTree:  req.After,
	}
	if !op.Before.Exists() && !op.After.Exists() {
		res.Decision = reconcile.Decision{Kind: reconcile.Noop, Rationale: "absent before and after"}
		op.Kind = reconcile.Noop
		return res, nil, op, nil
	}

	v, err := d.resolve(req, op)
	if err != nil {
		return res, nil, op, err
	}
	res.Variant = v.Name

	decision, err := reconcile.Plan(op.Before, op.After, v.Policy)
	if err != nil {
		return res, v, op, fmt.Errorf("%s: %w", req.Path, err)
	}
	res.Decision = decision
	op.Kind = decision.Kind
	op.Changed = decision.Changed

	if err := checkPreconditions(v, op); err != nil {
		return res, v, op, err
	}

	res.Commands = render(v, op)
	return res, v, op, nil
}

// resolve picks the one variant that writes. Creates and updates are
// resolved against the after-state, deletes against the before-state; an
// update must resolve to the same variant from both states.
func (d *Dispatcher) resolve(req WriteRequest, op Op) (*Variant, error) {
	e, ok := d.reg.lookup(req.Path)
	if !ok {
		mode := ModeWriteCreate
		if !op.After.Exists() {
			mode = ModeWriteDelete
		}
		return nil, &util.UnsupportedTypeError{Path: req.Path.String(), Mode: mode.String()}
	}

	first := func(before, after model.Snapshot, mode Mode) *Variant {
		for _, v := range e.variants {
			if v.writable() && v.applies(req.Path, before, after, mode) {
				return v
			}
		}
		return nil
	}

	log := util.WithPath(d.device, req.Path.String())
	if !op.After.Exists() {
		v := first(req.Before, req.After, ModeWriteDelete)
		if v == nil {
			return nil, &util.UnsupportedTypeError{Path: req.Path.String(), Mode: ModeWriteDelete.String()}
		}
		log.Debugf("Delete resolved to variant %s", v.Name)
		return v, nil
	}

	v := first(req.Before, req.After, ModeWriteCreate)
	if v == nil {
		return nil, &util.UnsupportedTypeError{Path: req.Path.String(), Mode: ModeWriteCreate.String()}
	}
	if op.Before.Exists() {
		was := first(req.Before, req.Before, ModeWriteCreate)
		if was == nil {
			return nil, util.NewValidationError(fmt.Sprintf(
				"%s: current state matches no variant, cannot update it as %s", req.Path, v.Name))
		}
		if was != v {
			return nil, util.NewValidationError(fmt.Sprintf(
				"%s: type cannot change across an update (%s -> %s)", req.Path, was.Name, v.Name))
		}
	}
	log.Debugf("Write resolved to variant %s", v.Name)
	return v, nil
}

func render(v *Variant, op Op) []string {
	switch op.Kind {
	case reconcile.Create:
		return v.Create(op)
	case reconcile.UpdateInPlace:
		return v.Update(op)
	case reconcile.Delete:
		return v.Delete(op)
	case reconcile.DeleteThenRecreate:
		del := op
		del.After = model.ConfigNode{}
		cre := op
		cre.Before = model.ConfigNode{}
		return append(append([]string(nil), v.Delete(del)...), v.Create(cre)...)
	}
	return nil
}

// Write carries out a request: resolve variant, check preconditions, plan,
// render, apply as one transaction, and optionally confirm by re-reading.
// Validation failures happen before any device I/O. Once the transaction
// starts, failure is final for this call.
func (d *Dispatcher) Write(ctx context.Context, req WriteRequest) (*Result, error) {
	res, v, op, err := d.prepare(req)
	if err != nil {
		return res, err
	}
	log := util.WithPath(d.device, req.Path.String()).WithFields(logrus.Fields{
		"variant":  res.Variant,
		"decision": res.Decision.Kind,
	})
	if res.Decision.Kind == reconcile.Noop || len(res.Commands) == 0 {
		log.Info("Nothing to send")
		return res, nil
	}
	log.Infof("Applying %d commands (%s)", len(res.Commands), res.Decision.Rationale)

	tr, err := d.tx.Apply(ctx, res.Commands)
	d.record(tr, &res.Transcripts)
	if err != nil {
		return res, fmt.Errorf("applying %s: %w", req.Path, err)
	}
	if v.Check != nil {
		if err := v.Check(d.tx.Name(), tr.Output); err != nil {
			return res, err
		}
	}

	if d.confirm && v.Read != nil {
		if err := d.confirmWrite(ctx, v, op, res); err != nil {
			return res, err
		}
		res.Confirmed = true
	}
	return res, nil
}

func (d *Dispatcher) confirmWrite(ctx context.Context, v *Variant, op Op, res *Result) error {
	p := prober{d: d, out: &res.Transcripts}
	got, err := v.Read(ctx, p, ReadRequest{Path: op.Path, Snapshot: op.AfterTree})
	if err != nil {
		return fmt.Errorf("confirming %s: %w", op.Path, err)
	}
	if !op.After.Exists() {
		if got.Exists() && got.Len() > 0 {
			return &util.ConfirmError{Path: op.Path.String(), Fields: got.Fields()}
		}
		return nil
	}

	fields := v.Owns
	if len(fields) == 0 {
		fields = op.After.Fields()
	}
	if diff := op.After.Project(fields...).Diff(got.Project(fields...)); len(diff) > 0 {
		return &util.ConfirmError{Path: op.Path.String(), Fields: diff}
	}
	return nil
}
