package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"assistant/internal/dispatch"
)

// Printer writes operator-facing output. Diagnostics go to the logger.
type Printer struct {
	mu sync.Mutex
	w  io.Writer

	ok     *color.Color
	fail   *color.Color
	notice *color.Color
	dim    *color.Color
}

// NewPrinter writes to w; plain disables colour regardless of the terminal.
func NewPrinter(w io.Writer, plain bool) *Printer {
	p := &Printer{
		w:      w,
		ok:     color.New(color.FgGreen),
		fail:   color.New(color.FgRed),
		notice: color.New(color.FgYellow, color.Bold),
		dim:    color.New(color.Faint),
	}
	if plain {
		for _, c := range []*color.Color{p.ok, p.fail, p.notice, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) Banner() {
	p.printf("%s\n", p.notice.Sprint("Executive Assistant is running. Type commands or wait for daily reminders."))
	p.printf("%s\n", p.dim.Sprint(`Example: schedule a meeting with john tomorrow at 10am for 45 minutes. Type "exit" to quit.`))
}

func (p *Printer) Goodbye() {
	p.printf("Exiting assistant...\n")
}

func (p *Printer) Report(r dispatch.Report) {
	if r.OK {
		p.printf("%s\n", p.ok.Sprint(indent(r.Message)))
		return
	}
	p.printf("%s\n", p.fail.Sprint(indent(r.Message)))
}

// Remote echoes a command that arrived from outside the console.
func (p *Printer) Remote(source, text string) {
	p.printf("%s\n", p.dim.Sprintf("[%s] %s", source, text))
}

func (p *Printer) Reminder(text string, emailed bool) {
	p.printf("%s\n", p.notice.Sprint(indent(text)))
	if emailed {
		p.printf("%s\n", p.dim.Sprint("  (reminder emailed)"))
	}
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// indent keeps continuation lines of multi-line messages aligned.
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  ")
}
