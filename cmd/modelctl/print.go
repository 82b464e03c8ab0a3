package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/opst/modelfab/pkg/api/types"
	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/management"
	"github.com/opst/modelfab/pkg/domain/report"
	"github.com/opst/modelfab/pkg/domain/update"
)

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(out io.Writer, s types.Summary) {
	_, _ = fmt.Fprintf(out, "version: %d\n", s.Version)
	for _, section := range []struct {
		name string
		ids  []string
	}{
		{"classes", s.Classes},
		{"definitions", s.Definitions},
		{"properties", s.Properties},
	} {
		_, _ = fmt.Fprintf(out, "%s (%d):\n", section.name, len(section.ids))
		for _, id := range section.ids {
			_, _ = fmt.Fprintf(out, "  %s\n", id)
		}
	}
}

func formatValue(v any) string {
	if v == nil {
		return "(none)"
	}
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func printChange(out io.Writer, c changeset.Info) {
	status := string(c.Status)
	switch c.Status {
	case changeset.Applied:
		status = color.GreenString(status)
	case "":
	default:
		status = color.YellowString(status)
	}
	line := fmt.Sprintf(
		"v%d %s %s: %s -> %s",
		c.Version, color.CyanString(c.Operation), c.Selector,
		formatValue(c.OldValue), formatValue(c.NewValue),
	)
	if status != "" {
		line += " [" + status + "]"
	}
	if c.Message != "" {
		line += " " + c.Message
	}
	_, _ = fmt.Fprintln(out, line)
}

func printChanges(out io.Writer, changes types.Changes) {
	_, _ = fmt.Fprintf(out, "version: %d\n", changes.Version)
	for _, c := range changes.Changes {
		printChange(out, c)
	}
}

func printResponse(out io.Writer, resp update.Response) {
	_, _ = fmt.Fprintf(out, "%s %s: version %d\n", color.GreenString("accepted"), resp.Id, resp.ModelVersion)
	for _, c := range resp.Changes {
		printChange(out, c)
	}
}

func printTicket(out io.Writer, t management.Ticket) {
	_, _ = fmt.Fprintf(out, "%s %s (%s)\n", color.CyanString("queued"), t.Id, t.Channel)
}

func printReport(out io.Writer, r *report.Report) {
	if r == nil {
		return
	}
	verdict := color.GreenString("valid")
	if !r.IsValid() {
		verdict = color.RedString("invalid")
	}
	_, _ = fmt.Fprintf(out, "report at version %d: %s\n", r.Version, verdict)

	for _, e := range r.Nodes {
		mark := color.GreenString("ok")
		if !e.Valid {
			mark = color.RedString("ng")
		}
		kind := ""
		if e.Kind != "" {
			kind = " (" + e.Kind + ")"
		}
		_, _ = fmt.Fprintf(out, "  [%s] %s%s\n", mark, e.Id, kind)
		for _, m := range e.Messages {
			text := m.Text
			if m.Severity == report.Error {
				text = color.RedString(text)
			} else {
				text = color.YellowString(text)
			}
			_, _ = fmt.Fprintf(out, "      %s: %s\n", m.Severity, text)
		}
	}
	if len(r.GenericErrors) != 0 {
		_, _ = fmt.Fprintln(out, color.RedString("errors:"))
		_, _ = fmt.Fprintf(out, "  %s\n", strings.Join(r.GenericErrors, "\n  "))
	}
}
