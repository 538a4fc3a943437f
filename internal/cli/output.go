package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bassista/snipsync/internal/model"
	"github.com/bassista/snipsync/internal/prefs"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// printer writes results either as styled text or as indented JSON.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", prefs.OutputText:
		return &printer{w: w}, nil
	case prefs.OutputJSON:
		return &printer{w: w, json: true}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
}

// emit writes v as JSON in json mode and calls text otherwise.
func (p *printer) emit(v any, text func(w io.Writer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}

func (p *printer) table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

func complianceLabel(c model.Compliance) string {
	switch c {
	case model.ComplianceCompliant:
		return okStyle.Render(string(c))
	case model.ComplianceNotCompliant:
		return badStyle.Render(string(c))
	}
	return pendingStyle.Render(string(c))
}

func field(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
}
