package session

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Recorder is an in-memory Session that records every payload and answers
// from scripted responses. It stands in for a device in dry runs and tests.
type Recorder struct {
	name string

	mu        sync.Mutex
	responses []response
	payloads  []string
	fail      error
	delay     time.Duration
	inflight  int
	maxFlight int
	closed    bool
}

type response struct {
	exact   string
	re      *regexp.Regexp
	handler func(payload string) (string, bool)
	output  string
}

// NewRecorder creates a recorder named name.
func NewRecorder(name string) *Recorder {
	return &Recorder{name: name}
}

// On answers output to a payload equal to command.
func (r *Recorder) On(command, output string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{exact: command, output: output})
	return r
}

// OnMatch answers output to payloads matching expr.
func (r *Recorder) OnMatch(expr, output string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{re: regexp.MustCompile(expr), output: output})
	return r
}

// Handle answers with fn when it reports true, for simulated devices
// whose output depends on earlier transactions.
func (r *Recorder) Handle(fn func(payload string) (string, bool)) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{handler: fn})
	return r
}

// FailWith makes every Send return err.
func (r *Recorder) FailWith(err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
	return r
}

// Delay makes every Send take d, or until its context ends.
func (r *Recorder) Delay(d time.Duration) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
	return r
}

// Name returns the recorder's session name.
func (r *Recorder) Name() string { return r.name }

// Send records payload and returns the first scripted response that
// matches, or "" when none does.
func (r *Recorder) Send(ctx context.Context, payload string) (string, error) {
	r.mu.Lock()
	r.payloads = append(r.payloads, payload)
	r.inflight++
	if r.inflight > r.maxFlight {
		r.maxFlight = r.inflight
	}
	fail, delay := r.fail, r.delay
	responses := append([]response(nil), r.responses...)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inflight--
		r.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if fail != nil {
		return "", fail
	}

	trimmed := strings.TrimSpace(payload)
	for _, resp := range responses {
		switch {
		case resp.handler != nil:
			if out, ok := resp.handler(payload); ok {
				return out, nil
			}
		case resp.re != nil:
			if resp.re.MatchString(payload) {
				return resp.output, nil
			}
		case resp.exact == trimmed:
			return resp.output, nil
		}
	}
	return "", nil
}

// Payloads returns every payload sent so far.
func (r *Recorder) Payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

// Commands returns every payload split into command lines.
func (r *Recorder) Commands() []string {
	var out []string
	for _, p := range r.Payloads() {
		out = append(out, strings.Split(p, "\n")...)
	}
	return out
}

// Reset forgets recorded payloads.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = nil
}

// MaxInFlight returns the highest number of concurrent Sends observed.
func (r *Recorder) MaxInFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxFlight
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
