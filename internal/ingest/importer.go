// Package ingest imports a forest from a JSON export.
//
// Items are selected with a JSONPath expression and mapped to node records
// through configurable field names. Levels are never read from the input;
// they are derived from the parent chain so the imported forest satisfies
// the depth invariant from the start.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/graph"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"
)

// ErrNoItems is returned when the selector matches nothing.
var ErrNoItems = errors.New("no items selected")

// Writer receives imported records. store.DB satisfies it.
type Writer interface {
	Insert(ctx context.Context, records []api.NodeRecord) error
}

// Mapping says where items live and which fields carry the structure.
// Field names may be dotted paths into nested objects.
type Mapping struct {
	Items  string // JSONPath selecting the item list
	ID     string
	Parent string
	Order  string
}

// DefaultMapping matches the export shape {"items": [{"id", "parent_id", "order"}]}.
func DefaultMapping() Mapping {
	return Mapping{
		Items:  "$.items[*]",
		ID:     "id",
		Parent: "parent_id",
		Order:  "order",
	}
}

func (m Mapping) withDefaults() Mapping {
	d := DefaultMapping()
	if m.Items == "" {
		m.Items = d.Items
	}
	if m.ID == "" {
		m.ID = d.ID
	}
	if m.Parent == "" {
		m.Parent = d.Parent
	}
	if m.Order == "" {
		m.Order = d.Order
	}
	return m
}

// Importer reads JSON exports from a filesystem.
type Importer struct {
	fs      billy.Filesystem
	mapping Mapping
}

func NewImporter(fs billy.Filesystem, m Mapping) *Importer {
	return &Importer{fs: fs, mapping: m.withDefaults()}
}

// Read parses path and returns records with derived levels, in snapshot
// order. The forest is checked before anything is returned: a cycle or a
// dangling parent reference fails the whole read.
func (im *Importer) Read(path string) ([]api.NodeRecord, error) {
	data, err := util.ReadFile(im.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	items, err := selectItems(root, im.mapping.Items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w by %s", path, ErrNoItems, im.mapping.Items)
	}

	records, err := im.records(items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return deriveLevels(records)
}

// Import reads path and hands the records to w in one batch.
func (im *Importer) Import(ctx context.Context, path string, w Writer) (int, error) {
	records, err := im.Read(path)
	if err != nil {
		return 0, err
	}
	if err := w.Insert(ctx, records); err != nil {
		return 0, fmt.Errorf("write records: %w", err)
	}
	log.Printf("ingest: imported %d nodes from %s", len(records), path)
	return len(records), nil
}

func (im *Importer) records(items []any) ([]api.NodeRecord, error) {
	idX := fieldPath(im.mapping.ID)
	parentX := fieldPath(im.mapping.Parent)
	orderX := fieldPath(im.mapping.Order)

	records := make([]api.NodeRecord, 0, len(items))
	for i, item := range items {
		if _, ok := item.(map[string]any); !ok {
			return nil, fmt.Errorf("item %d: expected object, got %T", i, item)
		}
		id, err := scalarString(lookup(item, idX))
		if err != nil {
			return nil, fmt.Errorf("item %d id: %w", i, err)
		}
		if id == "" {
			return nil, fmt.Errorf("item %d: missing %q", i, im.mapping.ID)
		}
		parent, err := scalarString(lookup(item, parentX))
		if err != nil {
			return nil, fmt.Errorf("item %s parent: %w", id, err)
		}
		ord, err := orderValue(lookup(item, orderX), i)
		if err != nil {
			return nil, fmt.Errorf("item %s order: %w", id, err)
		}
		payload, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("item %s payload: %w", id, err)
		}
		records = append(records, api.NodeRecord{
			ID:       id,
			ParentID: parent,
			Order:    ord,
			Payload:  payload,
		})
	}
	return records, nil
}

// deriveLevels assigns every record its depth below its root, then checks
// the result. Nodes that never reach a root keep level 0 and are reported
// by the check.
func deriveLevels(records []api.NodeRecord) ([]api.NodeRecord, error) {
	f, err := graph.Load(records)
	if err != nil {
		return nil, err
	}
	for _, r := range f.Roots() {
		for _, d := range f.Descendants(r.ID) {
			level := d.Depth
			if _, err := f.Apply(api.Change{ID: d.ID, Fields: api.Fields{Level: &level}}); err != nil {
				return nil, err
			}
		}
	}
	if err := f.Check(); err != nil {
		return nil, err
	}
	return f.Snapshot(), nil
}

// scalarString renders an id-like value. Missing and null become "".
func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("unsupported value %v (%T)", v, v)
}

// orderValue reads a numeric order key; a missing key falls back to the
// item's position in the export.
func orderValue(v any, pos int) (float64, error) {
	switch t := v.(type) {
	case nil:
		return float64(pos), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
}
