package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// progressPrinter reports pipeline progress. On a terminal it redraws one
// line; otherwise it prints a line each time the step changes.
type progressPrinter struct {
	w           io.Writer
	interactive bool

	mu       sync.Mutex
	lastStep string
	drawn    bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, interactive: isTerminal(w)}
}

func (p *progressPrinter) update(percent float64, step string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interactive {
		const width = 30
		filled := int(percent / 100 * width)
		filled = max(0, min(width, filled))
		fmt.Fprintf(p.w, "\r[%s%s] %5.1f%% %-12s",
			strings.Repeat("#", filled), strings.Repeat(".", width-filled), percent, step)
		p.drawn = true
		return
	}
	if step != p.lastStep {
		fmt.Fprintf(p.w, "%5.1f%% %s\n", percent, step)
		p.lastStep = step
	}
}

// done terminates an interactive progress line.
func (p *progressPrinter) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interactive && p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}
