// Package modal implements the create/edit dialog lifecycle shared by every
// screen: open, edit, validate, submit and close.
package modal

import (
	"context"
	"errors"
	"sync"
)

// State is the dialog lifecycle state.
type State int

const (
	Closed State = iota
	Pristine
	Dirty
	Submitting
)

func (s State) String() string {
	switch s {
	case Pristine:
		return "pristine"
	case Dirty:
		return "dirty"
	case Submitting:
		return "submitting"
	default:
		return "closed"
	}
}

// IsOpen reports whether the dialog is visible.
func (s State) IsOpen() bool { return s != Closed }

var (
	// ErrInvalid is returned by Submit when local validation fails.
	ErrInvalid = errors.New("modal: invalid form")
	// ErrSubmitting rejects a submit while another one is in flight.
	ErrSubmitting = errors.New("modal: submission in progress")
	// ErrClosed rejects a submit on a closed dialog.
	ErrClosed = errors.New("modal: dialog closed")
)

// Shell drives one dialog. Values are only reset to their initial defaults
// after a successful submission or on Cancel; a failed submission keeps them.
type Shell[F any] struct {
	mu        sync.Mutex
	validator *Validator
	state     State
	initial   F
	values    F
	errors    map[string]string
	serverErr error
	onClose   []func()
}

// NewShell returns a closed dialog.
func NewShell[F any](v *Validator) *Shell[F] {
	if v == nil {
		v = NewValidator()
	}
	return &Shell[F]{validator: v}
}

// OnClose registers fn to run whenever the dialog closes.
func (s *Shell[F]) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Open shows the dialog seeded with initial values.
func (s *Shell[F]) Open(initial F) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Submitting {
		return
	}
	s.initial = initial
	s.values = initial
	s.errors = nil
	s.serverErr = nil
	s.state = Pristine
}

// Edit replaces the working values. Ignored unless the dialog is open and idle.
func (s *Shell[F]) Edit(values F) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Pristine && s.state != Dirty {
		return
	}
	s.values = values
	s.state = Dirty
}

// Submit validates the working values and hands them to fn. On success the
// dialog closes and close handlers run; on failure it stays open and dirty
// with values intact.
func (s *Shell[F]) Submit(ctx context.Context, fn func(context.Context, F) error) error {
	s.mu.Lock()
	switch s.state {
	case Submitting:
		s.mu.Unlock()
		return ErrSubmitting
	case Closed:
		s.mu.Unlock()
		return ErrClosed
	}
	s.serverErr = nil
	if errs := s.validator.Validate(s.values); len(errs) > 0 {
		s.errors = errs
		s.state = Dirty
		s.mu.Unlock()
		return ErrInvalid
	}
	s.errors = nil
	s.state = Submitting
	values := s.values
	s.mu.Unlock()

	err := fn(ctx, values)

	s.mu.Lock()
	if err != nil {
		s.serverErr = err
		s.state = Dirty
		s.mu.Unlock()
		return err
	}
	s.values = s.initial
	s.state = Closed
	handlers := append([]func(){}, s.onClose...)
	s.mu.Unlock()
	for _, h := range handlers {
		h()
	}
	return nil
}

// Cancel discards all local state and closes the dialog.
func (s *Shell[F]) Cancel() {
	s.mu.Lock()
	if s.state == Submitting {
		s.mu.Unlock()
		return
	}
	var zero F
	s.initial = zero
	s.values = zero
	s.errors = nil
	s.serverErr = nil
	wasOpen := s.state != Closed
	s.state = Closed
	handlers := append([]func(){}, s.onClose...)
	s.mu.Unlock()
	if wasOpen {
		for _, h := range handlers {
			h()
		}
	}
}

// State returns the lifecycle state.
func (s *Shell[F]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Values returns the working values.
func (s *Shell[F]) Values() F {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values
}

// Errors returns field messages from the last validation.
func (s *Shell[F]) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// ServerError returns the error of the last failed submission.
func (s *Shell[F]) ServerError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverErr
}
