// Package ui renders dockwatch's terminal chrome: the daemon banner,
// startup steps, and key/value and table blocks. Activity records are
// rendered by the watchdog package and printed as-is.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/docker/docker/api/types"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(purple)
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
)

func Accent(s string) string  { return accentStyle.Render(s) }
func Muted(s string) string   { return mutedStyle.Render(s) }
func Success(s string) string { return successStyle.Render(s) }
func Failure(s string) string { return errorStyle.Render(s) }

func Bool(v bool) string {
	if v {
		return Success("true")
	}
	return Failure("false")
}

// WarnMsg renders a one-line warning, used for a missing config file.
func WarnMsg(format string, a ...any) string {
	return warnStyle.Render("!") + " " + fmt.Sprintf(format, a...)
}

// Pair holds a key-value pair for KeyValues output.
type Pair struct {
	key   string
	value string
}

func KV(key, value string) Pair {
	return Pair{key: key, value: value}
}

// KeyValues renders aligned "key:  value" lines with a trailing newline.
func KeyValues(indent string, pairs ...Pair) string {
	maxLen := 0
	for _, p := range pairs {
		maxLen = max(maxLen, len(p.key))
	}

	var sb strings.Builder
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", maxLen+1, p.key+":")
		sb.WriteString(indent + mutedStyle.Render(label) + " " + p.value + "\n")
	}
	return sb.String()
}

// Table renders a styled table with rounded borders.
func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return cellStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}

// Banner renders the daemon version block printed before watching starts.
// colored tints it yellow.
func Banner(v types.Version, colored bool) string {
	body := lipgloss.NewStyle().Bold(true).Render("Docker Watch") + "\n\n" + strings.TrimSuffix(KeyValues("",
		KV("Docker Version", v.Version),
		KV("API Version", v.APIVersion),
		KV("Min API Version", v.MinAPIVersion),
		KV("OS", v.Os),
		KV("Architecture", v.Arch),
		KV("Kernel Version", v.KernelVersion),
	), "\n")

	style := lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1, 4)
	if colored {
		style = style.BorderForeground(yellow).Foreground(yellow)
	}
	return style.Render(body)
}
