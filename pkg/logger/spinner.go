package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	spinnerColor = color.New(color.FgCyan)
	barColor     = color.New(color.FgGreen)
)

// Spinner is an animated status line for long-running operations.
type Spinner struct {
	mu       sync.Mutex
	active   bool
	message  string
	frames   []string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

var (
	SpinnerDots = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	SpinnerLine = []string{"-", "\\", "|", "/"}
)

// NewSpinner creates a new spinner with the default frames
func NewSpinner(message string) *Spinner {
	return NewSpinnerWithFrames(message, SpinnerDots)
}

// NewSpinnerWithFrames creates a new spinner with custom frames
func NewSpinnerWithFrames(message string, frames []string) *Spinner {
	return &Spinner{
		message:  message,
		frames:   frames,
		interval: 100 * time.Millisecond,
	}
}

// Start starts the animation. Calling Start on a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.spin(s.stop, s.done)
}

func (s *Spinner) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		s.mu.Lock()
		msg := s.message
		s.mu.Unlock()

		frame := s.frames[i%len(s.frames)]
		if colorEnabled() {
			frame = spinnerColor.Sprint(frame)
		}
		fmt.Printf("\r%s %s", frame, msg)

		select {
		case <-stop:
			fmt.Printf("\r%s\r", strings.Repeat(" ", len(msg)+10))
			return
		case <-ticker.C:
		}
	}
}

// Stop stops the spinner and waits for the line to be cleared.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Success stops the spinner and shows a success message
func (s *Spinner) Success(message string) {
	s.Stop()
	Success(message)
}

// Error stops the spinner and shows an error message
func (s *Spinner) Error(message string) {
	s.Stop()
	Error(message)
}

// WithSpinner runs fn while a spinner is shown.
func WithSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()

	err := fn()
	if err != nil {
		spinner.Error(fmt.Sprintf("%s failed: %v", message, err))
	} else {
		spinner.Success(fmt.Sprintf("%s completed", message))
	}
	return err
}

// ProgressBar is a single-line progress indicator.
type ProgressBar struct {
	mu      sync.Mutex
	total   int
	current int
	width   int
	message string
}

// NewProgressBar creates a new progress bar
func NewProgressBar(total int, message string) *ProgressBar {
	return &ProgressBar{total: total, width: 40, message: message}
}

// Update sets the current position.
func (p *ProgressBar) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	p.draw()
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.total
	p.draw()
	fmt.Println()
}

func (p *ProgressBar) fraction() float64 {
	if p.total <= 0 {
		return 1
	}
	f := float64(p.current) / float64(p.total)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

func (p *ProgressBar) draw() {
	percent := p.fraction()
	filled := int(percent * float64(p.width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	if colorEnabled() {
		fmt.Printf("\r%s: %s %3.0f%%", p.message, barColor.Sprint(bar), percent*100)
	} else {
		fmt.Printf("\r%s: [%s] %3.0f%%", p.message, bar, percent*100)
	}
}
