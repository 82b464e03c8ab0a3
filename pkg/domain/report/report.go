// Package report is the result of validating nodes against the downstream:
// the deployment validation report.
package report

import (
	"fmt"
	"sort"
)

type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
)

type Message struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

func (m Message) String() string {
	return fmt.Sprintf("[%s] %s", m.Severity, m.Text)
}

// Entry is the validation result of one node.
type Entry struct {
	Id       string    `json:"id"`
	Kind     string    `json:"kind,omitempty"`
	Valid    bool      `json:"valid"`
	Messages []Message `json:"messages,omitempty"`
}

// Errors returns messages with error severity.
func (e Entry) Errors() []Message {
	var out []Message
	for _, m := range e.Messages {
		if m.Severity == Error {
			out = append(out, m)
		}
	}
	return out
}

// Report is the validation result of a set of nodes at a version.
type Report struct {
	Version       int64    `json:"version"`
	Nodes         []Entry  `json:"nodes"`
	GenericErrors []string `json:"genericErrors,omitempty"`
}

func New(version int64) *Report {
	return &Report{Version: version, Nodes: []Entry{}}
}

// IsEmpty tells there are no nodes in the report.
func (r *Report) IsEmpty() bool {
	return r == nil || len(r.Nodes) == 0
}

// IsValid tells no entries failed and no generic errors occurred.
func (r *Report) IsValid() bool {
	if r == nil {
		return true
	}
	return len(r.GenericErrors) == 0 && len(r.FailedEntries()) == 0
}

func (r *Report) FailedEntries() []Entry {
	if r == nil {
		return nil
	}
	var out []Entry
	for _, e := range r.Nodes {
		if !e.Valid {
			out = append(out, e)
		}
	}
	return out
}

// Entry returns the entry of the node, adding a valid one when missing.
func (r *Report) Entry(id string, kind string) *Entry {
	for i := range r.Nodes {
		if r.Nodes[i].Id == id {
			if r.Nodes[i].Kind == "" {
				r.Nodes[i].Kind = kind
			}
			return &r.Nodes[i]
		}
	}
	r.Nodes = append(r.Nodes, Entry{Id: id, Kind: kind, Valid: true})
	return &r.Nodes[len(r.Nodes)-1]
}

// Fail adds an error to the entry of the node, making it invalid.
func (r *Report) Fail(id string, kind string, format string, args ...any) {
	e := r.Entry(id, kind)
	e.Valid = false
	e.Messages = append(e.Messages, Message{Severity: Error, Text: fmt.Sprintf(format, args...)})
}

// Warn adds a warning to the entry of the node. Warnings do not make it invalid.
func (r *Report) Warn(id string, kind string, format string, args ...any) {
	e := r.Entry(id, kind)
	e.Messages = append(e.Messages, Message{Severity: Warning, Text: fmt.Sprintf(format, args...)})
}

// Pass records the node as validated.
func (r *Report) Pass(id string, kind string) {
	r.Entry(id, kind)
}

func (r *Report) AddGenericError(format string, args ...any) {
	r.GenericErrors = append(r.GenericErrors, fmt.Sprintf(format, args...))
}

// Merge adds entries and generic errors of other into r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for _, e := range other.Nodes {
		mine := r.Entry(e.Id, e.Kind)
		mine.Valid = mine.Valid && e.Valid
		mine.Messages = append(mine.Messages, e.Messages...)
	}
	r.GenericErrors = append(r.GenericErrors, other.GenericErrors...)
}

// Sort orders entries by id.
func (r *Report) Sort() {
	sort.SliceStable(r.Nodes, func(i, j int) bool { return r.Nodes[i].Id < r.Nodes[j].Id })
}
