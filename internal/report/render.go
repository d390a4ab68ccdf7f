package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/prioritize/internal/engine"
)

// WritePlan writes a ranking plan: header, ranking diff, then one line per
// move in apply order.
func WritePlan(w io.Writer, p *engine.Plan) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Reranking issues (%s)\n", p.Policy)
	if p.Unchanged() {
		sb.WriteString("ranking unchanged\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	sb.WriteString(RankingDiff(p.Old, p.New))
	for i, m := range p.Moves {
		msg := fmt.Sprintf("%s after %s", m.ItemKey, m.AfterKey)
		if i < len(p.Messages) && p.Messages[i] != "" {
			msg = p.Messages[i]
		}
		fmt.Fprintf(&sb, "  > %s\n", msg)
	}

	verb := "to apply"
	if p.DryRun {
		verb = "(dry run, not applied)"
	}
	fmt.Fprintf(&sb, "%d %s %s\n", len(p.Moves), plural(len(p.Moves), "move", "moves"), verb)

	_, err := io.WriteString(w, sb.String())
	return err
}

// WritePriorities writes priority updates, one item per paragraph.
func WritePriorities(w io.Writer, updates []engine.PriorityUpdate) error {
	var sb strings.Builder
	sb.WriteString("### Updating priorities\n")
	if len(updates) == 0 {
		sb.WriteString("priorities unchanged\n")
	}
	for _, u := range updates {
		fmt.Fprintf(&sb, "  %s: %s -> %s\n    %s\n", u.Key, u.From, u.To, u.Message)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteStatuses writes status updates, deepest items first.
func WriteStatuses(w io.Writer, updates []engine.StatusUpdate) error {
	var sb strings.Builder
	sb.WriteString("### Updating statuses\n")
	if len(updates) == 0 {
		sb.WriteString("statuses unchanged\n")
	}
	for _, u := range updates {
		fmt.Fprintf(&sb, "  %s: %s -> %s (%s)\n    %s\n", u.Key, u.From, u.To, u.Status, u.Message)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
