// Package ui holds terminal feedback for long-running CLI steps.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Spinner shows progress on a terminal. On any other writer it prints the
// message once when started and the final message when stopped.
type Spinner struct {
	w        io.Writer
	animated bool
	chars    []string
	message  string
	active   bool
	mu       sync.Mutex
	done     chan struct{}
	stopped  chan struct{}
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		animated: isTerminal(w) && os.Getenv("NO_COLOR") == "",
		chars:    []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message:  message,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins spinning, showing feedback within 100ms
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	if !s.animated {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		close(s.stopped)
		return
	}

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.done:
				fmt.Fprintf(s.w, "\r\033[K")
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.w, "\r%s %s", s.chars[i], s.message)
				s.mu.Unlock()
				i = (i + 1) % len(s.chars)
			}
		}
	}()
}

// Stop stops the spinner and optionally shows a final message
func (s *Spinner) Stop(finalMessage string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	close(s.done)
	<-s.stopped

	if finalMessage != "" {
		if s.animated {
			fmt.Fprintf(s.w, "\r\033[K%s\n", finalMessage)
		} else {
			fmt.Fprintln(s.w, finalMessage)
		}
	}
}

// Update changes the spinner message while it's running
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Run shows a spinner on w while fn runs.
func Run(w io.Writer, message string, fn func() error) error {
	spinner := NewSpinner(w, message)
	spinner.Start()
	err := fn()
	if err != nil {
		spinner.Stop("✗ " + message)
	} else {
		spinner.Stop("✓ " + message)
	}
	return err
}
