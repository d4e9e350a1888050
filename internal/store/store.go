// Package store persists crawled documents. Backends expose a small
// session contract (find one, insert, update fields) and the Coordinator
// builds the field-merging upsert on top of it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when no row matches a key.
var ErrNotFound = errors.New("not found")

// Kind names a record kind; it is also the table name.
type Kind string

const (
	KindDocument Kind = "vbpl"
	KindSection  Kind = "vbpl_toan_van"
	KindSubPart  Kind = "vbpl_sub_part"
	KindRelated  Kind = "vbpl_related_document"
	KindDocMap   Kind = "vbpl_doc_map"
)

// Row is one stored record, column name to value. Values are nil, int64,
// string or time.Time.
type Row map[string]any

// Key is a natural-key predicate, column name to value.
type Key map[string]any

// Record is an insert: the natural key plus the fields being written.
type Record struct {
	Kind   Kind
	Key    Key
	Fields map[string]any
}

// Session is the unit of persistence work. Outside InTx each call runs in its
// own transaction.
type Session interface {
	FindOne(ctx context.Context, kind Kind, key Key) (Row, error)
	FindAll(ctx context.Context, kind Kind, filter Key, orderBy ...string) ([]Row, error)
	Insert(ctx context.Context, rec Record) error
	UpdateFields(ctx context.Context, kind Kind, key Key, fields map[string]any) error
}

// Store is a Session that can also group calls into one transaction.
type Store interface {
	Session
	InTx(ctx context.Context, fn func(Session) error) error
	Close() error
}

type schema struct {
	key     []string
	columns []string // non-key columns
}

var schemas = map[Kind]schema{
	KindDocument: {
		key: []string{"id"},
		columns: []string{
			"kind", "title", "sub_title", "serial_number", "doc_type",
			"issuance_date", "effective_date", "expiration_date", "gazette_date",
			"state", "issuing_authority", "applicable_information", "sector",
			"html", "org_pdf_link", "file_link",
		},
	},
	KindSection: {
		key: []string{"vbpl_id", "section_number"},
		columns: []string{
			"section_name", "section_content",
			"big_part_number", "big_part_name", "chapter_number", "chapter_name",
			"part_number", "part_name", "mini_part_number", "mini_part_name",
		},
	},
	KindSubPart: {
		key:     []string{"vbpl_id", "sub_section_part_number"},
		columns: []string{"sub_section_title", "sub_section_part_title"},
	},
	KindRelated: {
		key:     []string{"source_id", "related_id"},
		columns: []string{"doc_type"},
	},
	KindDocMap: {
		key:     []string{"source_id", "doc_map_id"},
		columns: []string{"doc_map_type"},
	},
}

func schemaFor(kind Kind) (schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return schema{}, fmt.Errorf("unknown record kind %q", kind)
	}
	return s, nil
}

func (s schema) all() []string {
	return append(append([]string(nil), s.key...), s.columns...)
}

func (s schema) has(column string) bool {
	for _, c := range s.all() {
		if c == column {
			return true
		}
	}
	return false
}

// checkColumns rejects columns that do not belong to kind; column names end
// up in SQL text.
func checkColumns(kind Kind, cols map[string]any) error {
	s, err := schemaFor(kind)
	if err != nil {
		return err
	}
	for c := range cols {
		if !s.has(c) {
			return fmt.Errorf("%s has no column %q", kind, c)
		}
	}
	return nil
}

func (r Record) validate() error {
	s, err := schemaFor(r.Kind)
	if err != nil {
		return err
	}
	for _, k := range s.key {
		if _, ok := r.Key[k]; !ok {
			return fmt.Errorf("%s record missing key column %q", r.Kind, k)
		}
	}
	if err := checkColumns(r.Kind, r.Key); err != nil {
		return err
	}
	return checkColumns(r.Kind, r.Fields)
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
