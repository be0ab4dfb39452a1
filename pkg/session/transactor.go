package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/newtcli/pkg/util"
)

// Transactor serializes transactions on one Session. Create exactly one
// Transactor per Session; its lock is what keeps transactions from
// interleaving.
type Transactor struct {
	sess    Session
	sem     chan struct{}
	unsync  atomic.Bool
	locker  Locker
	holder  string
	lockTTL time.Duration
	metrics *Metrics
}

// Option configures a Transactor.
type Option func(*Transactor)

// WithLocker guards every transaction with a distributed lock held as
// holder for at most ttl.
func WithLocker(l Locker, holder string, ttl time.Duration) Option {
	return func(t *Transactor) {
		t.locker = l
		t.holder = holder
		t.lockTTL = ttl
	}
}

// WithMetrics records transaction counts and durations.
func WithMetrics(m *Metrics) Option {
	return func(t *Transactor) { t.metrics = m }
}

// NewTransactor wraps sess.
func NewTransactor(sess Session, opts ...Option) *Transactor {
	t := &Transactor{
		sess:    sess,
		sem:     make(chan struct{}, 1),
		lockTTL: DefaultLockTTL,
	}
	for _, o := range opts {
		o(t)
	}
	if t.holder == "" {
		t.holder = DefaultHolder()
	}
	return t
}

// DefaultHolder identifies this process as a lock holder: user@host.
func DefaultHolder() string {
	host, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = "newtcli"
	}
	return user + "@" + host
}

// Name returns the session name.
func (t *Transactor) Name() string { return t.sess.Name() }

// Synchronized reports whether the session state is known. It turns false
// when a transaction is cut short by its context.
func (t *Transactor) Synchronized() bool { return !t.unsync.Load() }

// Probe runs one display command and returns its output.
func (t *Transactor) Probe(ctx context.Context, command string) (string, *Transcript, error) {
	tr, err := t.Execute(ctx, KindProbe, []string{command})
	if err != nil {
		return "", tr, err
	}
	return tr.Output, tr, nil
}

// Apply runs a configuration transaction.
func (t *Transactor) Apply(ctx context.Context, commands []string) (*Transcript, error) {
	return t.Execute(ctx, KindApply, commands)
}

// Execute sends commands as one newline-joined payload and blocks until the
// device answers, the session fails, or ctx ends. An unsynchronized session
// refuses further transactions until Resync succeeds.
func (t *Transactor) Execute(ctx context.Context, kind Kind, commands []string) (*Transcript, error) {
	if !t.Synchronized() {
		return nil, util.NewTransportError(t.sess.Name(), util.ErrSessionUnsynchronized)
	}
	return t.run(ctx, kind, commands)
}

// Resync runs probe bypassing the synchronization guard and marks the
// session synchronized again when it succeeds.
func (t *Transactor) Resync(ctx context.Context, probe string) (*Transcript, error) {
	tr, err := t.run(ctx, KindResync, []string{probe})
	if err != nil {
		return tr, err
	}
	if t.unsync.CompareAndSwap(true, false) {
		util.WithDevice(t.sess.Name()).Info("Session resynchronized")
	}
	return tr, nil
}

func (t *Transactor) run(ctx context.Context, kind Kind, commands []string) (*Transcript, error) {
	name := t.sess.Name()
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, util.NewTransportError(name, ctx.Err())
	}
	defer func() { <-t.sem }()

	if t.locker != nil {
		if err := t.locker.Acquire(ctx, name, t.holder, t.lockTTL); err != nil {
			return nil, fmt.Errorf("locking %s: %w", name, err)
		}
		defer func() {
			// release must outlive a cancelled transaction context
			if err := t.locker.Release(context.WithoutCancel(ctx), name, t.holder); err != nil {
				util.WithDevice(name).Warnf("Failed to release lock: %v", err)
			}
		}()
	}

	tr := &Transcript{
		ID:       uuid.NewString(),
		Session:  name,
		Kind:     kind,
		Commands: append([]string(nil), commands...),
		Started:  time.Now(),
	}
	log := util.WithDevice(name).WithFields(map[string]interface{}{
		"kind":     kind,
		"commands": len(commands),
		"id":       tr.ID,
	})
	log.Debugf("Sending %q", tr.Payload())

	out, err := t.sess.Send(ctx, tr.Payload())
	tr.Duration = time.Since(tr.Started)
	tr.Output = out

	if err != nil {
		if ctx.Err() != nil {
			t.unsync.Store(true)
			log.Warnf("Transaction interrupted, session marked unsynchronized: %v", ctx.Err())
		}
		terr := util.NewTransportError(name, err)
		tr.Err = terr.Error()
		t.metrics.observe(name, kind, "error", tr.Duration)
		return tr, terr
	}

	log.WithField("duration", tr.Duration).Debug("Transaction complete")
	t.metrics.observe(name, kind, "ok", tr.Duration)
	return tr, nil
}

func joinCommands(commands []string) string {
	return strings.Join(commands, "\n")
}
