package viz

import (
	"fmt"
	"io"
	"os"
)

// BarReporter draws a progress bar over the stepping loop. It satisfies
// heom.Progress and never touches computed values.
type BarReporter struct {
	out   io.Writer
	width int
	total int
	done  int
}

func NewBarReporter() *BarReporter {
	return &BarReporter{out: os.Stderr, width: 40}
}

func (r *BarReporter) Start(total int) {
	r.total = total
	r.done = 0
	r.draw()
}

func (r *BarReporter) Advance() {
	r.done++
	r.draw()
}

func (r *BarReporter) Finish() {
	if r.total > 0 {
		r.done = r.total
		r.draw()
	}
	fmt.Fprintln(r.out)
}

func (r *BarReporter) draw() {
	if r.total <= 0 {
		return
	}
	pct := float64(r.done) / float64(r.total)
	fmt.Fprintf(r.out, "\r%s %3.0f%% (%d/%d)", ProgressBar(pct, r.width), pct*100, r.done, r.total)
}
