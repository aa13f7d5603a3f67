// Package cli provides output helpers for the weave command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/weaveai/weave/internal/answer"
	"github.com/weaveai/weave/internal/enquiry"
	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/internal/qualify"
	"github.com/weaveai/weave/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates s as an output format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const rule = "─────────────────────────────────────────────────────────"

// WriteAnswer writes an answer from AnswerWithRetrieval.
func WriteAnswer(w io.Writer, a *answer.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, a)
	}
	fmt.Fprintln(w, a.Text)
	if a.Refused {
		fmt.Fprintln(w, "\n(refused)")
	}
	return nil
}

// WriteSafeAnswer writes an answer from GenerateSafeAnswer with its sources.
func WriteSafeAnswer(w io.Writer, a *answer.SafeAnswer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, a)
	}
	fmt.Fprintln(w, a.Answer)
	if a.Refused {
		fmt.Fprintln(w, "\n(refused)")
		return nil
	}
	fmt.Fprintln(w, rule)
	for _, d := range a.Sources {
		fmt.Fprintf(w, "%s  %s", d.ID, d.Name)
		if d.Section != "" {
			fmt.Fprintf(w, " (%s)", d.Section)
		}
		fmt.Fprintf(w, "  approved by %s\n", d.ApprovedBy)
	}
	return nil
}

// WriteDecision writes a qualification decision.
func WriteDecision(w io.Writer, d qualify.Decision, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, d)
	}
	fmt.Fprintf(w, "Verdict: %s\n", d.Verdict)
	fmt.Fprintf(w, "Reason:  %s\n", d.Reason())
	return nil
}

// WriteOutcome writes the result of one enquiry.
func WriteOutcome(w io.Writer, o *enquiry.Outcome, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, o)
	}
	fmt.Fprintf(w, "Enquiry: %s\n", o.EnquiryID)
	fmt.Fprintf(w, "Outcome: %s (%s)\n", o.Kind, o.Verdict)
	if o.Reason != "" {
		fmt.Fprintf(w, "Reason:  %s\n", o.Reason)
	}
	if o.Reply != "" {
		fmt.Fprintf(w, "\n%s\n", o.Reply)
	}
	if e := o.Escalation; e != nil {
		fmt.Fprintf(w, "\nNotified: %t", e.Notified)
		if e.NotifyError != "" {
			fmt.Fprintf(w, " (%s)", e.NotifyError)
		}
		fmt.Fprintln(w)
		if e.AckAttempted {
			fmt.Fprintf(w, "Acknowledged: %t\n", e.Acknowledged)
		}
	}
	return nil
}

// WriteDocuments writes a document listing.
func WriteDocuments(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []*models.Document{}
		}
		return writeJSON(w, docs)
	}
	fmt.Fprintf(w, "%d approved documents\n", len(docs))
	for _, d := range docs {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "ID: %s\n", d.ID)
		fmt.Fprintf(w, "Name: %s", d.Name)
		if d.Section != "" {
			fmt.Fprintf(w, " / %s", d.Section)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Hash: %s\n", utils.Truncate(d.ContentHash, 16))
		fmt.Fprintf(w, "Approved: %s by %s\n", d.ApprovedAt.Format("2006-01-02"), d.ApprovedBy)
	}
	return nil
}
