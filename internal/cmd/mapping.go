package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/Alia5/joyrelay/teleop"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	unboundStyle = cellStyle.Foreground(lipgloss.Color("8"))
)

// renderMapping draws the mapping as a two column table.
func renderMapping(bindings []teleop.Binding) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Button", "Function").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(bindings) && bindings[row].Handler == "" {
				return unboundStyle
			}
			return cellStyle
		})
	for _, b := range bindings {
		name := b.Handler
		if name == "" {
			name = "None"
		}
		t.Row(strconv.Itoa(b.Button), name)
	}
	return t.Render()
}

// printMapping renders the mapping table when out is a terminal; the log
// already carries the same information otherwise.
func printMapping(out io.Writer, bindings []teleop.Binding) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return
	}
	fmt.Fprintln(out, renderMapping(bindings))
}
