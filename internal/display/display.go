// Package display previews generated images inline in terminals that
// speak the kitty graphics protocol.
package display

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/term"

	"github.com/manash/nogologo/internal/imaging"
)

// DefaultColumns keeps previews small enough to sit beside the result line.
const DefaultColumns = 32

var supportedPrograms = []string{"kitty", "ghostty", "iterm.app", "wezterm"}

type Displayer struct {
	out     io.Writer
	columns int
}

func New(out io.Writer, columns int) *Displayer {
	return &Displayer{out: out, columns: columns}
}

// Show writes each image followed by a newline. Non-PNG data is converted
// first since the protocol only accepts PNG in direct mode.
func (d *Displayer) Show(images [][]byte) error {
	enc := NewKittyEncoder(d.out, d.columns)
	for i, data := range images {
		png, err := imaging.ToPNG(data)
		if err != nil {
			return fmt.Errorf("failed to prepare image %d: %w", i+1, err)
		}
		if err := enc.Encode(png); err != nil {
			return fmt.Errorf("failed to display image %d: %w", i+1, err)
		}
		fmt.Fprintln(d.out)
	}
	return nil
}

// Supported reports whether out is a terminal and the environment names a
// terminal with graphics support.
func Supported(out io.Writer, getenv func(string) string) bool {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	return IsTerminalSupported(getenv)
}

func IsTerminalSupported(getenv func(string) string) bool {
	if getenv == nil {
		getenv = os.Getenv
	}

	if slices.Contains(supportedPrograms, strings.ToLower(getenv("TERM_PROGRAM"))) {
		return true
	}
	if getenv("KITTY_WINDOW_ID") != "" || getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	t := strings.ToLower(getenv("TERM"))
	return strings.Contains(t, "kitty") || strings.Contains(t, "ghostty")
}
