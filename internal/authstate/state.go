// Package authstate is the session status state machine. State changes only
// through Reduce, driven by token lifecycle events.
package authstate

import "github.com/aussiebroadwan/countersign/pkg/esign"

// Status is the coarse session status derived from State.
type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
	StatusError         Status = "error"
)

// State is the session as the application sees it.
type State struct {
	IsAuthenticated bool
	CurrentUser     *esign.User
	Loading         bool
	Error           bool
	Message         string
}

// Initial is the boot state: the application always starts with a silent refresh.
func Initial() State {
	return State{Loading: true}
}

// Status derives the coarse status. Loading wins over everything else.
func (s State) Status() Status {
	switch {
	case s.Loading:
		return StatusLoading
	case s.Error:
		return StatusError
	case s.IsAuthenticated:
		return StatusAuthenticated
	default:
		return StatusAnonymous
	}
}

// Event is a token lifecycle event.
type Event interface {
	event()
}

type (
	LoginStarted    struct{}
	RegisterStarted struct{}
	RefreshStarted  struct{}

	LoginSucceeded struct{ User *esign.User }
	// RefreshSucceeded keeps the current user when User is nil.
	RefreshSucceeded struct{ User *esign.User }

	LoginFailed   struct{ Message string }
	RefreshFailed struct{ Message string }
	AuthErrored   struct{ Message string }

	// RegisterFinished ends a registration. Registering does not log in.
	RegisterFinished struct{ Message string }

	LoggedOut struct{}
)

func (LoginStarted) event()     {}
func (RegisterStarted) event()  {}
func (RefreshStarted) event()   {}
func (LoginSucceeded) event()   {}
func (RefreshSucceeded) event() {}
func (LoginFailed) event()      {}
func (RefreshFailed) event()    {}
func (AuthErrored) event()      {}
func (RegisterFinished) event() {}
func (LoggedOut) event()        {}

// Reduce returns the state that follows s after e. It never mutates s.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case LoginStarted, RegisterStarted:
		return State{Loading: true}

	case RefreshStarted:
		s.Loading = true
		s.Message = ""
		return s

	case LoginSucceeded:
		return State{IsAuthenticated: true, CurrentUser: e.User}

	case RefreshSucceeded:
		user := s.CurrentUser
		if e.User != nil {
			user = e.User
		}
		return State{IsAuthenticated: true, CurrentUser: user}

	case LoginFailed:
		return State{Error: true, Message: e.Message}
	case RefreshFailed:
		return State{Error: true, Message: e.Message}
	case AuthErrored:
		return State{Error: true, Message: e.Message}

	case RegisterFinished:
		return State{Message: e.Message}

	case LoggedOut:
		return State{}

	default:
		return s
	}
}
