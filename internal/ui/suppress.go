package ui

import "sync/atomic"

// SuppressSignal is raised while another process owns the terminal. The
// spinner goes quiet while it is raised and resumes when it is cleared.
// A nil *SuppressSignal is never raised.
type SuppressSignal struct {
	raised atomic.Bool
}

// NewSuppressSignal returns a cleared signal.
func NewSuppressSignal() *SuppressSignal {
	return &SuppressSignal{}
}

func (s *SuppressSignal) Raise() {
	if s != nil {
		s.raised.Store(true)
	}
}

func (s *SuppressSignal) Clear() {
	if s != nil {
		s.raised.Store(false)
	}
}

func (s *SuppressSignal) Raised() bool {
	return s != nil && s.raised.Load()
}
