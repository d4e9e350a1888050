package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

const defaultTxTimeout = 10 * time.Second

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Postgres is the production Store.
type Postgres struct {
	db        *sql.DB
	txTimeout time.Duration
}

// OpenPostgres connects with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, txTimeout: defaultTxTimeout}
}

// Migrate creates the tables when they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) FindOne(ctx context.Context, kind Kind, key Key) (Row, error) {
	return pgSession{q: p.db}.FindOne(ctx, kind, key)
}

func (p *Postgres) FindAll(ctx context.Context, kind Kind, filter Key, orderBy ...string) ([]Row, error) {
	return pgSession{q: p.db}.FindAll(ctx, kind, filter, orderBy...)
}

func (p *Postgres) Insert(ctx context.Context, rec Record) error {
	return pgSession{q: p.db}.Insert(ctx, rec)
}

func (p *Postgres) UpdateFields(ctx context.Context, kind Kind, key Key, fields map[string]any) error {
	return pgSession{q: p.db}.UpdateFields(ctx, kind, key, fields)
}

// InTx runs fn in one transaction, rolled back unless fn succeeds.
func (p *Postgres) InTx(ctx context.Context, fn func(Session) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.txTimeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(pgSession{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgSession struct {
	q querier
}

func (s pgSession) FindOne(ctx context.Context, kind Kind, key Key) (Row, error) {
	rows, err := s.selectRows(ctx, kind, key, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func (s pgSession) FindAll(ctx context.Context, kind Kind, filter Key, orderBy ...string) ([]Row, error) {
	return s.selectRows(ctx, kind, filter, orderBy, 0)
}

func (s pgSession) selectRows(ctx context.Context, kind Kind, filter Key, orderBy []string, limit int) ([]Row, error) {
	sc, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(kind, filter); err != nil {
		return nil, err
	}
	cols := sc.all()

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(quoteList(cols))
	b.WriteString(" FROM ")
	b.WriteString(pq.QuoteIdentifier(string(kind)))
	where, args := whereClause(filter, 1)
	b.WriteString(where)
	if len(orderBy) > 0 {
		for _, c := range orderBy {
			if !sc.has(c) {
				return nil, fmt.Errorf("%s has no column %q", kind, c)
			}
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(quoteList(orderBy))
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}

	rows, err := s.q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", kind, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = normalize(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return out, nil
}

// Insert writes rec. A concurrent insert of the same key is folded into an
// update of the supplied fields, so two workers racing on one document both
// succeed.
func (s pgSession) Insert(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	sc := schemas[rec.Kind]

	keyCols := sortedKeys(rec.Key)
	fieldCols := sortedKeys(rec.Fields)
	cols := append(append([]string(nil), keyCols...), fieldCols...)
	args := make([]any, 0, len(cols))
	for _, c := range keyCols {
		args = append(args, rec.Key[c])
	}
	for _, c := range fieldCols {
		args = append(args, rec.Fields[c])
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		pq.QuoteIdentifier(string(rec.Kind)), quoteList(cols),
		strings.Join(placeholders, ", "), quoteList(sc.key))
	if len(fieldCols) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		sets := make([]string, len(fieldCols))
		for i, c := range fieldCols {
			q := pq.QuoteIdentifier(c)
			sets[i] = q + " = EXCLUDED." + q
		}
		b.WriteString("DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}

	if _, err := s.q.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("insert %s: %w", rec.Kind, err)
	}
	return nil
}

func (s pgSession) UpdateFields(ctx context.Context, kind Kind, key Key, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := checkColumns(kind, fields); err != nil {
		return err
	}
	if err := checkColumns(kind, key); err != nil {
		return err
	}

	fieldCols := sortedKeys(fields)
	sets := make([]string, len(fieldCols))
	args := make([]any, 0, len(fields)+len(key))
	for i, c := range fieldCols {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), i+1)
		args = append(args, fields[c])
	}
	where, whereArgs := whereClause(key, len(fieldCols)+1)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", pq.QuoteIdentifier(string(kind)), strings.Join(sets, ", "), where)
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func whereClause(filter Key, start int) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	cols := sortedKeys(filter)
	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		conds[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), start+i)
		args[i] = filter[c]
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// normalize maps driver values onto the Row value set.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case time.Time:
		return t.UTC()
	}
	return v
}
