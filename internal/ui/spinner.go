package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultTick is the interval between spinner frames.
const DefaultTick = 350 * time.Millisecond

var spinnerFrames = [2]string{
	"   ┌( >_<)┘",
	"   └( >_<)┐",
}

// Spinner animates a thinking indicator on one terminal line while a turn
// is in flight.
type Spinner struct {
	out      io.Writer
	tick     time.Duration
	suppress *SuppressSignal
	style    func(string) string

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSpinner returns a stopped spinner. A zero tick uses DefaultTick and a
// nil signal is never raised.
func NewSpinner(out io.Writer, tick time.Duration, suppress *SuppressSignal) *Spinner {
	if tick <= 0 {
		tick = DefaultTick
	}
	if suppress == nil {
		suppress = NewSuppressSignal()
	}
	return &Spinner{
		out:      out,
		tick:     tick,
		suppress: suppress,
		style:    func(s string) string { return s },
	}
}

// WithTheme paints frames with the theme's accent style.
func (s *Spinner) WithTheme(t Theme) *Spinner {
	s.style = func(frame string) string { return t.Accent.Render(frame) }
	return s
}

// Suppress returns the signal that silences the spinner.
func (s *Spinner) Suppress() *SuppressSignal {
	return s.suppress
}

// Start begins animating. It is a no-op while already running.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
}

// Stop halts the animation, erases the line and waits for the goroutine to
// exit. Safe to call repeatedly or before Start.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil
}

// Running reports whether the animation goroutine is live.
func (s *Spinner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Spinner) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	frame := 0
	erased := false
	draw := func() {
		if s.suppress.Raised() {
			if !erased {
				s.erase()
				erased = true
			}
			return
		}
		erased = false
		fmt.Fprintf(s.out, "\r%s  ", s.style(spinnerFrames[frame%len(spinnerFrames)]))
		frame++
	}

	draw()
	for {
		select {
		case <-stop:
			if !s.suppress.Raised() {
				s.erase()
			}
			return
		case <-ticker.C:
			draw()
		}
	}
}

func (s *Spinner) erase() {
	fmt.Fprintf(s.out, "\r%-60s\r", "")
}
