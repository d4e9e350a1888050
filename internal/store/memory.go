package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and dry runs. InTx serializes
// transactions; it does not roll back.
type Memory struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	rows map[Kind][]Row
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[Kind][]Row)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) InTx(ctx context.Context, fn func(Session) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *Memory) FindOne(_ context.Context, kind Kind, key Key) (Row, error) {
	if err := checkColumns(kind, key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexLocked(kind, key); i >= 0 {
		return copyRow(m.rows[kind][i]), nil
	}
	return nil, ErrNotFound
}

func (m *Memory) FindAll(_ context.Context, kind Kind, filter Key, orderBy ...string) ([]Row, error) {
	if err := checkColumns(kind, filter); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []Row
	for _, r := range m.rows[kind] {
		if matches(r, filter) {
			out = append(out, copyRow(r))
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		for _, c := range orderBy {
			if d := compare(out[i][c], out[j][c]); d != 0 {
				return d < 0
			}
		}
		return false
	})
	return out, nil
}

func (m *Memory) Insert(_ context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexLocked(rec.Kind, rec.Key); i >= 0 {
		for k, v := range rec.Fields {
			m.rows[rec.Kind][i][k] = normalize(v)
		}
		return nil
	}
	row := make(Row, len(rec.Key)+len(rec.Fields))
	for k, v := range rec.Key {
		row[k] = normalize(v)
	}
	for k, v := range rec.Fields {
		row[k] = normalize(v)
	}
	m.rows[rec.Kind] = append(m.rows[rec.Kind], row)
	return nil
}

func (m *Memory) UpdateFields(_ context.Context, kind Kind, key Key, fields map[string]any) error {
	if err := checkColumns(kind, fields); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(kind, key)
	if i < 0 {
		return ErrNotFound
	}
	for k, v := range fields {
		m.rows[kind][i][k] = normalize(v)
	}
	return nil
}

// Count returns the number of stored rows of kind.
func (m *Memory) Count(kind Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows[kind])
}

func (m *Memory) indexLocked(kind Kind, key Key) int {
	for i, r := range m.rows[kind] {
		if matches(r, key) {
			return i
		}
	}
	return -1
}

func matches(r Row, filter Key) bool {
	for k, v := range filter {
		if compare(r[k], normalize(v)) != 0 {
			return false
		}
	}
	return true
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// compare orders nil first, then by the value's natural order.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp3(x < y, x > y)
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp3(x < y, x > y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return cmp3(fmt.Sprint(a) < fmt.Sprint(b), fmt.Sprint(a) > fmt.Sprint(b))
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
