package tracker

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/roach88/prioritize/internal/ir"
)

// record is one item as stored in a backlog file. Parents are referenced by
// key and resolved on load.
type record struct {
	ir.Item   `yaml:",inline"`
	ParentRef string `yaml:"parent,omitempty"`
}

// backlogFile is the on-disk layout. Items are the ranked input; parents are
// referenced items that are not part of the input (epics of stories, say).
// Both share one rank space.
type backlogFile struct {
	Parents []record `yaml:"parents,omitempty"`
	Items   []record `yaml:"items"`
}

// FileBacklog is a tracker backed by a YAML backlog file:
//
//	parents:
//	  - key: EPIC-1
//	    rank: "000010"
//	    project: PROJ
//	    status: {category: In Progress}
//	items:
//	  - key: PROJ-1
//	    rank: "000020"
//	    project: PROJ
//	    parent: EPIC-1
//	    due_date: 2026-03-01
//
// Every write rewrites the whole file through a temp file and rename.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// Concurrent processes writing the same file are not coordinated.
type FileBacklog struct {
	mu   sync.Mutex
	path string
}

// OpenFileBacklog returns a backlog over path. The file must exist.
func OpenFileBacklog(path string) (*FileBacklog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open backlog: %w", err)
	}
	return &FileBacklog{path: path}, nil
}

// Path returns the backing file path.
func (b *FileBacklog) Path() string {
	return b.path
}

// Snapshot returns the items in rank order with parents resolved.
func (b *FileBacklog) Snapshot(ctx context.Context) ([]ir.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := b.read()
	if err != nil {
		return nil, err
	}
	return resolve(f)
}

// Rank places itemKey directly after afterKey and renumbers all ranks.
// Parents and items share the rank space, so either may be moved.
func (b *FileBacklog) Rank(ctx context.Context, itemKey, afterKey string) error {
	return b.update(ctx, func(f *backlogFile) error {
		type ref struct {
			parent bool
			index  int
			rank   string
			key    string
		}
		var all []ref
		for i, r := range f.Parents {
			all = append(all, ref{parent: true, index: i, rank: r.Rank, key: r.Key})
		}
		for i, r := range f.Items {
			all = append(all, ref{index: i, rank: r.Rank, key: r.Key})
		}
		slices.SortStableFunc(all, func(x, y ref) int { return cmp.Compare(x.rank, y.rank) })

		ordered, err := moveAfter(all, itemKey, afterKey, func(r ref) string { return r.key })
		if err != nil {
			return err
		}
		for pos, r := range ordered {
			rank := FormatRank(pos)
			if r.parent {
				f.Parents[r.index].Rank = rank
			} else {
				f.Items[r.index].Rank = rank
			}
		}
		sortByRank(f.Parents)
		sortByRank(f.Items)
		return nil
	})
}

// SetPriority updates an item's priority.
func (b *FileBacklog) SetPriority(ctx context.Context, key string, p ir.Priority) error {
	return b.update(ctx, func(f *backlogFile) error {
		r, err := f.find(key)
		if err != nil {
			return err
		}
		r.Priority = p
		return nil
	})
}

// Transition moves an item to a workflow status.
func (b *FileBacklog) Transition(ctx context.Context, key string, category ir.StatusCategory, status string) error {
	return b.update(ctx, func(f *backlogFile) error {
		r, err := f.find(key)
		if err != nil {
			return err
		}
		r.Status = ir.Status{Category: category, Name: status}
		return nil
	})
}

// FormatRank renders the rank string for position pos. Ranks leave gaps so
// hand edits can slot items in between.
func FormatRank(pos int) string {
	return fmt.Sprintf("%06d", (pos+1)*10)
}

func (b *FileBacklog) update(ctx context.Context, fn func(*backlogFile) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := b.read()
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}
	return b.write(f)
}

func (b *FileBacklog) read() (*backlogFile, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backlog: %w", err)
	}
	return parseBacklog(data)
}

func parseBacklog(data []byte) (*backlogFile, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields

	var f backlogFile
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse backlog: %w", err)
	}
	return &f, nil
}

// ParseBacklog decodes backlog file content and returns its items in rank
// order with parents resolved.
func ParseBacklog(data []byte) ([]ir.Item, error) {
	f, err := parseBacklog(data)
	if err != nil {
		return nil, err
	}
	return resolve(f)
}

func (b *FileBacklog) write(f *backlogFile) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode backlog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode backlog: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".backlog-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write backlog: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write backlog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write backlog: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("failed to replace backlog: %w", err)
	}
	return nil
}

func (f *backlogFile) find(key string) (*record, error) {
	for i := range f.Items {
		if f.Items[i].Key == key {
			return &f.Items[i], nil
		}
	}
	for i := range f.Parents {
		if f.Parents[i].Key == key {
			return &f.Parents[i], nil
		}
	}
	return nil, fmt.Errorf("unknown item %s", key)
}

func sortByRank(records []record) {
	slices.SortStableFunc(records, func(x, y record) int { return cmp.Compare(x.Rank, y.Rank) })
}

// resolve links parents by key and returns the items in rank order.
func resolve(f *backlogFile) ([]ir.Item, error) {
	nodes := make(map[string]*ir.Item, len(f.Parents)+len(f.Items))
	all := append(slices.Clone(f.Parents), f.Items...)
	for _, r := range all {
		if r.Key == "" {
			return nil, fmt.Errorf("backlog entry with empty key")
		}
		if _, dup := nodes[r.Key]; dup {
			return nil, fmt.Errorf("duplicate key %s", r.Key)
		}
		item := r.Item
		nodes[r.Key] = &item
	}
	for _, r := range all {
		if r.ParentRef == "" {
			continue
		}
		parent, ok := nodes[r.ParentRef]
		if !ok {
			return nil, fmt.Errorf("%s: unknown parent %s", r.Key, r.ParentRef)
		}
		nodes[r.Key].Parent = parent
	}

	items := make([]ir.Item, len(f.Items))
	for i, r := range f.Items {
		items[i] = *nodes[r.Key]
	}
	slices.SortStableFunc(items, func(x, y ir.Item) int { return cmp.Compare(x.Rank, y.Rank) })
	return items, nil
}
