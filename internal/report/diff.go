// Package report renders plans for humans: a unified diff of the old and
// new ranking, the moves to apply, and priority and status updates.
package report

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/roach88/prioritize/internal/ir"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// Op is the kind of a diff line.
type Op int

const (
	OpEqual Op = iota
	OpDelete
	OpInsert
)

// Line is one line of a line-level diff.
type Line struct {
	Op   Op
	Text string
}

// RankingLines renders items as "KEY summary" lines, one per item.
func RankingLines(items []ir.Item) []string {
	lines := make([]string, len(items))
	for i, it := range items {
		summary := strings.Join(strings.Fields(it.Summary), " ")
		lines[i] = strings.TrimSpace(it.Key + " " + summary)
	}
	return lines
}

// DiffLines computes a line-level diff of a and b.
func DiffLines(a, b []string) []Line {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	ca, cb, table := dmp.DiffLinesToChars(joinLines(a), joinLines(b))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), table)

	out := []Line{}
	for _, d := range diffs {
		op := OpEqual
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		}
		for _, text := range strings.SplitAfter(d.Text, "\n") {
			if text == "" {
				continue
			}
			out = append(out, Line{Op: op, Text: strings.TrimSuffix(text, "\n")})
		}
	}
	return out
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Unified renders a unified diff of a and b with the given number of
// context lines. Identical inputs render as the empty string.
func Unified(fromName, toName string, a, b []string, context int) string {
	lines := DiffLines(a, b)
	hunks := hunkRanges(lines, context)
	if len(hunks) == 0 {
		return ""
	}

	// oldAt[i] and newAt[i] count the old and new lines before lines[i].
	oldAt := make([]int, len(lines)+1)
	newAt := make([]int, len(lines)+1)
	for i, l := range lines {
		oldAt[i+1], newAt[i+1] = oldAt[i], newAt[i]
		if l.Op != OpInsert {
			oldAt[i+1]++
		}
		if l.Op != OpDelete {
			newAt[i+1]++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", fromName, toName)
	for _, h := range hunks {
		start, end := h[0], h[1]
		fmt.Fprintf(&sb, "@@ -%s +%s @@\n",
			unifiedRange(oldAt[start], oldAt[end]),
			unifiedRange(newAt[start], newAt[end]))
		for _, l := range lines[start:end] {
			switch l.Op {
			case OpDelete:
				sb.WriteByte('-')
			case OpInsert:
				sb.WriteByte('+')
			default:
				sb.WriteByte(' ')
			}
			sb.WriteString(l.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// RankingDiff renders the unified diff between two rankings.
func RankingDiff(oldOrder, newOrder []ir.Item) string {
	return Unified("old_ranking", "new_ranking", RankingLines(oldOrder), RankingLines(newOrder), DefaultContext)
}

// hunkRanges groups changed lines into [start, end) ranges over lines,
// merging changes separated by at most 2*context unchanged lines.
func hunkRanges(lines []Line, context int) [][2]int {
	var hunks [][2]int
	i := 0
	for i < len(lines) {
		if lines[i].Op == OpEqual {
			i++
			continue
		}
		start := max(0, i-context)
		end := i
		for end < len(lines) {
			if lines[end].Op != OpEqual {
				end++
				continue
			}
			run := end
			for run < len(lines) && lines[run].Op == OpEqual {
				run++
			}
			if run == len(lines) || run-end > 2*context {
				end = min(end+context, len(lines))
				break
			}
			end = run
		}
		hunks = append(hunks, [2]int{start, end})
		i = end
	}
	return hunks
}

// unifiedRange formats a 0-based [start, stop) line range as a unified
// diff range: 1-based start, count omitted when 1.
func unifiedRange(start, stop int) string {
	begin := start + 1
	length := stop - start
	switch length {
	case 1:
		return fmt.Sprint(begin)
	case 0:
		begin--
	}
	return fmt.Sprintf("%d,%d", begin, length)
}
