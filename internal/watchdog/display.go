package watchdog

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Color is a display color from the 16-color ANSI palette, or NoColor.
type Color int

// NoColor leaves text uncolored.
const NoColor Color = -1

// palette holds the basic and bright ANSI colors in assignment order.
var palette = []Color{
	Color(termenv.ANSIRed),
	Color(termenv.ANSIGreen),
	Color(termenv.ANSIYellow),
	Color(termenv.ANSIBlue),
	Color(termenv.ANSIMagenta),
	Color(termenv.ANSICyan),
	Color(termenv.ANSIWhite),
	Color(termenv.ANSIBlack),
	Color(termenv.ANSIBrightRed),
	Color(termenv.ANSIBrightGreen),
	Color(termenv.ANSIBrightYellow),
	Color(termenv.ANSIBrightBlue),
	Color(termenv.ANSIBrightMagenta),
	Color(termenv.ANSIBrightCyan),
	Color(termenv.ANSIBrightWhite),
	Color(termenv.ANSIBrightBlack),
}

// Wrap renders s in the color. NoColor returns s unchanged.
func (c Color) Wrap(s string) string {
	if c == NoColor {
		return s
	}
	return termenv.String(s).Foreground(termenv.ANSIColor(c)).String()
}

// DisplayOptions controls how container names are shown.
type DisplayOptions struct {
	RemovePrefix bool
	PrefixEnd    rune
	Emojis       bool
	Colors       bool
}

// DefaultDisplayOptions strips compose-style project prefixes up to the
// first underscore and renders plain letter tags.
func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{RemovePrefix: true, PrefixEnd: '_'}
}

// Allocator hands out display names and colors. Colors cycle through the
// palette in assignment order; the padding width tracks the widest name
// fitted so far.
type Allocator struct {
	opts  DisplayOptions
	next  int
	width int
}

// NewAllocator returns an allocator for opts.
func NewAllocator(opts DisplayOptions) *Allocator {
	return &Allocator{opts: opts}
}

// DisplayName returns the name shown for a container. With prefix removal
// enabled, everything up to and including the first delimiter is dropped
// unless that would leave nothing.
func (a *Allocator) DisplayName(name string) string {
	if !a.opts.RemovePrefix || a.opts.PrefixEnd == 0 {
		return name
	}
	_, rest, found := strings.Cut(name, string(a.opts.PrefixEnd))
	if !found || rest == "" {
		return name
	}
	return rest
}

// Fit widens the padding so every display name fits.
func (a *Allocator) Fit(displayNames ...string) {
	for _, n := range displayNames {
		if w := lipgloss.Width(n); w > a.width {
			a.width = w
		}
	}
}

// Width returns the current padding width.
func (a *Allocator) Width() int {
	return a.width
}

// NextColor returns the next palette color, or NoColor when colors are off.
func (a *Allocator) NextColor() Color {
	if !a.opts.Colors {
		return NoColor
	}
	c := palette[a.next%len(palette)]
	a.next++
	return c
}

// NameField renders "<name padded to width>| " in the given color.
func (a *Allocator) NameField(displayName string, c Color) string {
	pad := a.width - lipgloss.Width(displayName)
	if pad < 0 {
		pad = 0
	}
	return c.Wrap(displayName + strings.Repeat(" ", pad) + "| ")
}

// Reset forgets the color rotation and padding width.
func (a *Allocator) Reset() {
	a.next = 0
	a.width = 0
}
