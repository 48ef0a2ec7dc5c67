// Package console writes the line-oriented status output and renders
// debug log lines.
package console

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/Danondso/micswitch/internal/device"
)

// Printer writes one styled status line per event. Colours are dropped
// automatically when the writer is not a terminal.
type Printer struct {
	w io.Writer

	label      lipgloss.Style
	mic        lipgloss.Style
	transcript lipgloss.Style
	ok         lipgloss.Style
	warn       lipgloss.Style
	bad        lipgloss.Style
	body       lipgloss.Style
	dim        lipgloss.Style
}

// NewPrinter creates a Printer writing to w with the given theme.
func NewPrinter(w io.Writer, t Theme) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:          w,
		label:      r.NewStyle().Foreground(t.Secondary).Bold(true),
		mic:        r.NewStyle().Foreground(t.Primary).Bold(true),
		transcript: r.NewStyle().Foreground(t.Accent).Italic(true),
		ok:         r.NewStyle().Foreground(t.Success).Bold(true),
		warn:       r.NewStyle().Foreground(t.Warning),
		bad:        r.NewStyle().Foreground(t.Error).Bold(true),
		body:       r.NewStyle().Foreground(t.Text),
		dim:        r.NewStyle().Foreground(t.Dimmed),
	}
}

func (p *Printer) line(parts ...string) {
	for _, s := range parts {
		io.WriteString(p.w, s)
	}
	io.WriteString(p.w, "\n")
}

// Devices prints the enumerated input devices with their filter indices.
func (p *Printer) Devices(devs []device.Device, defaultName string) {
	p.line(p.label.Render("Available microphones:"))
	for _, d := range devs {
		suffix := ""
		if defaultName != "" && d.Name == defaultName {
			suffix = p.dim.Render(" (default)")
		}
		p.line(p.body.Render(fmt.Sprintf("%d: ", d.Index)), p.mic.Render(d.Name), suffix)
	}
}

// Listening announces the activation word.
func (p *Printer) Listening(activationWord string) {
	p.line(p.label.Render("Listening for activation word: "), p.body.Render(fmt.Sprintf("'%s'", activationWord)))
}

// Ready reports that capture is running on dev.
func (p *Printer) Ready(dev device.Device) {
	p.line(p.label.Render("Microphone ready: "), p.mic.Render(dev.Name))
}

// Waiting prompts for the next utterance.
func (p *Printer) Waiting() {
	p.line(p.dim.Render("Waiting for activation word..."))
}

// Recognized echoes a transcript.
func (p *Printer) Recognized(text string) {
	p.line(p.label.Render("Recognized: "), p.transcript.Render(text))
}

// Switched reports the newly active device.
func (p *Printer) Switched(dev device.Device) {
	p.line(p.ok.Render("Switched to: "), p.mic.Render(dev.Name))
}

// Restored reports the return to the starting device and why.
func (p *Printer) Restored(dev device.Device, reason string) {
	p.line(p.ok.Render("Restored: "), p.mic.Render(dev.Name), p.dim.Render(fmt.Sprintf(" (%s)", reason)))
}

// NotUnderstood reports a transcript with no recognizable speech.
func (p *Printer) NotUnderstood() {
	p.line(p.warn.Render("Could not understand audio. Try again."))
}

// ServiceError reports a failed recognition request.
func (p *Printer) ServiceError(err error) {
	p.line(p.bad.Render("Error with speech recognition service: "), p.body.Render(err.Error()))
}

// Fatal prints a message that precedes process exit.
func (p *Printer) Fatal(msg string) {
	p.line(p.bad.Render(msg))
}
