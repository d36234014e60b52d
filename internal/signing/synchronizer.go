// Package signing tracks a signer's fillable fields and keeps the backend's
// copy in step with local edits.
//
// Local state is authoritative. Every write sends the complete field set,
// so a failed write is healed by the next one and there is no retry queue.
package signing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/countersign/pkg/esign"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
	"golang.org/x/time/rate"
)

var (
	// ErrRejectedUpdate is returned for an edit to an unknown field or with
	// a value that does not fit the field's type. The field is left unchanged.
	ErrRejectedUpdate = errors.New("signing: update rejected")
	// ErrIncomplete is returned by Submit while a required field is incomplete.
	ErrIncomplete = errors.New("signing: required fields incomplete")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("signing: synchronizer closed")
	// ErrNotLoaded is returned before a successful Load.
	ErrNotLoaded = errors.New("signing: fields not loaded")
	// ErrSubmitUnsupported is returned by Submit when the backend cannot submit.
	ErrSubmitUnsupported = errors.New("signing: backend does not support submit")
)

// Backend reads and writes one document's fields.
type Backend interface {
	List(ctx context.Context) ([]esign.Input, error)
	Save(ctx context.Context, updates []esign.InputUpdate) (esign.IDMapping, error)
}

// Submitter is implemented by backends that can finalise a signature.
type Submitter interface {
	Submit(ctx context.Context) error
}

// Progress counts completed fields.
type Progress struct {
	Completed int
	Total     int
}

// Options configures a Synchronizer.
type Options struct {
	// Interval is the minimum time between background writes. Edits made in
	// between are coalesced into the next write. Zero writes after every edit.
	Interval time.Duration
	// Notifier defaults to LogNotifier.
	Notifier Notifier
}

// Synchronizer owns the field collection of one signing view. It is safe for
// concurrent use. A single background flusher performs writes, so they reach
// the backend in edit order and the last edit wins.
type Synchronizer struct {
	backend  Backend
	notifier Notifier
	limiter  *rate.Limiter

	mu      sync.Mutex
	fields  []esign.Input
	index   map[int64]int
	loaded  bool
	closed  bool
	version uint64 // bumped by every accepted edit
	synced  uint64 // version of the last successful write

	flushMu sync.Mutex

	dirty     chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	cancelRun context.CancelFunc
}

// New returns a synchronizer for backend. Call Load before editing.
func New(backend Backend, opts Options) *Synchronizer {
	s := &Synchronizer{
		backend:  backend,
		notifier: opts.Notifier,
		dirty:    make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{}
	}
	if opts.Interval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}
	return s
}

// Load fetches the initial field list and starts the background flusher.
// A failure leaves the synchronizer unusable. A list that arrives after
// Close is discarded.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.loaded:
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	inputs, err := s.backend.List(ctx)
	if err != nil {
		return fmt.Errorf("load fields: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		slogx.FromContext(ctx).Debug("discarding field list received after close")
		return ErrClosed
	}
	if s.loaded {
		return nil
	}

	s.fields = append([]esign.Input(nil), inputs...)
	s.index = make(map[int64]int, len(s.fields))
	for i, in := range s.fields {
		s.index[in.ID] = i
	}
	s.loaded = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel
	go s.run(runCtx)

	return nil
}

// OnFieldValueChanged applies an edit and schedules a sync. Text values fit
// name, text and signature fields; Date values fit date fields.
func (s *Synchronizer) OnFieldValueChanged(id int64, v Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return ErrClosed
	case !s.loaded:
		return ErrNotLoaded
	}

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: no field %d", ErrRejectedUpdate, id)
	}

	updated, ok := apply(s.fields[i], v)
	if !ok {
		return fmt.Errorf("%w: %s value for %s field %d", ErrRejectedUpdate, v, s.fields[i].Type, id)
	}

	s.fields[i] = updated
	s.version++
	s.markDirty()
	return nil
}

func (s *Synchronizer) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Fields returns a copy of the current field collection.
func (s *Synchronizer) Fields() []esign.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]esign.Input(nil), s.fields...)
}

// Field returns one field by id.
func (s *Synchronizer) Field(id int64) (esign.Input, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return esign.Input{}, false
	}
	return s.fields[i], true
}

// Progress counts completed fields. It is for display only.
func (s *Synchronizer) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Progress{Total: len(s.fields)}
	for _, in := range s.fields {
		if in.Completed {
			p.Completed++
		}
	}
	return p
}

// CanSubmit reports whether every required field is completed, judged from
// local state at the time of the call.
func (s *Synchronizer) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && canSubmit(s.fields)
}

func canSubmit(fields []esign.Input) bool {
	for _, in := range fields {
		if in.Required && !in.Completed {
			return false
		}
	}
	return true
}

// Pending reports whether there are edits the backend has not acknowledged.
func (s *Synchronizer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.synced
}

// Flush writes the current state now if anything is pending.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case !s.loaded:
		s.mu.Unlock()
		return ErrNotLoaded
	}
	s.mu.Unlock()

	return s.flush(ctx)
}

// Submit finalises the signature once every required field is complete.
// Pending edits are written first.
func (s *Synchronizer) Submit(ctx context.Context) error {
	if !s.CanSubmit() {
		return ErrIncomplete
	}

	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("sync before submit: %w", err)
	}

	sub, ok := s.backend.(Submitter)
	if !ok {
		return ErrSubmitUnsupported
	}
	if err := sub.Submit(ctx); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

// Close stops the flusher and writes any pending edits. Further edits fail
// with ErrClosed. Close is idempotent.
func (s *Synchronizer) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	loaded := s.loaded
	s.mu.Unlock()

	if !loaded {
		return nil
	}

	close(s.stopCh)
	s.cancelRun()
	<-s.doneCh

	return s.flush(ctx)
}

// run is the background flusher.
func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.dirty:
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}

		if err := s.flush(ctx); err != nil && ctx.Err() == nil {
			s.notifier.SyncFailed(ctx, err)
		}
	}
}

// flush writes a full snapshot. flushMu keeps writes strictly ordered.
func (s *Synchronizer) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if s.version == s.synced {
		s.mu.Unlock()
		return nil
	}
	version := s.version
	updates := make([]esign.InputUpdate, len(s.fields))
	for i, in := range s.fields {
		updates[i] = esign.InputUpdate{ID: in.ID, Completed: in.Completed, Value: in.Value}
	}
	s.mu.Unlock()

	mapping, err := s.backend.Save(ctx, updates)
	if err != nil {
		return fmt.Errorf("sync fields: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.remapLocked(mapping)
	s.synced = version
	return nil
}

// remapLocked adopts the ids the backend stored fields under. The mapping is
// keyed by the ids that were sent, so every field is renamed from its current
// id before the index is rebuilt. Old ids stay valid for edits unless another
// field now owns them.
func (s *Synchronizer) remapLocked(mapping esign.IDMapping) {
	if len(mapping) == 0 {
		return
	}

	aliases := s.index
	s.index = make(map[int64]int, len(aliases))
	for i := range s.fields {
		if newID, ok := mapping[s.fields[i].ID]; ok {
			s.fields[i].ID = newID
		}
		s.index[s.fields[i].ID] = i
	}
	for id, i := range aliases {
		if _, taken := s.index[id]; !taken {
			s.index[id] = i
		}
	}
}
