// Package sqlvec implements the store contract on a relational SQLite
// database (modernc.org/sqlite). The adapter owns DDL/DML construction,
// parameterization and vector-type encoding; the caller supplies the live
// connection. A catalog table carries the synthesized schema across
// process restarts.
//
// Distance semantics: exact L2 computed over decoded candidate vectors,
// nearest first.
package sqlvec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/embedload/internal/domain"
	"github.com/kailas-cloud/embedload/internal/schema"
	"github.com/kailas-cloud/embedload/internal/store"
	"github.com/kailas-cloud/embedload/internal/vec"
)

const catalogDDL = `
CREATE TABLE IF NOT EXISTS embedload_catalog (
    name         TEXT PRIMARY KEY,
    schema_json  TEXT NOT NULL,
    primary_keys TEXT NOT NULL,
    mode         TEXT NOT NULL
);
`

type tableInfo struct {
	schema      domain.TableSchema
	primaryKeys []string
	mode        domain.EmbedMode
}

// Store adapts the contract onto one SQLite database. The in-memory
// registry mirrors the catalog table and is private to this instance.
type Store struct {
	db     *sql.DB
	dim    int
	tables map[string]*tableInfo
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps a live SQLite connection and ensures the catalog exists.
func New(ctx context.Context, db *sql.DB, dim int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.ExecContext(ctx, catalogDDL); err != nil {
		return nil, fmt.Errorf("create catalog: %w: %w", domain.ErrDBOperation, err)
	}
	return &Store{db: db, dim: dim, tables: make(map[string]*tableInfo), logger: logger}, nil
}

// CreateTable synthesizes the schema, issues the DDL and records the table
// in the catalog. Safe to call on every ingestion run.
func (s *Store) CreateTable(ctx context.Context, name string, columns, primaryKeys []string,
	mode domain.EmbedMode, embedColumns []string) (domain.TableSchema, error) {
	if info, err := s.lookup(ctx, name); err != nil {
		return domain.TableSchema{}, err
	} else if info != nil {
		return info.schema.Clone(), nil
	}

	sch := schema.Synthesize(columns, mode, embedColumns, s.dim)

	defs := make([]string, 0, len(sch.ColumnOrder))
	for _, col := range sch.ColumnOrder {
		defs = append(defs, quoteIdent(col)+" "+sqlType(sch.Columns[col]))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return domain.TableSchema{}, fmt.Errorf("create table %s: %w: %w", name, domain.ErrDBOperation, err)
	}

	if err := s.saveCatalog(ctx, name, sch, primaryKeys, mode); err != nil {
		return domain.TableSchema{}, err
	}
	s.tables[name] = &tableInfo{schema: sch, primaryKeys: append([]string(nil), primaryKeys...), mode: mode}

	s.logger.Info("created table",
		zap.String("table", name),
		zap.String("mode", string(mode)),
		zap.Int("columns", len(sch.ColumnOrder)),
	)
	return sch.Clone(), nil
}

func (s *Store) Insert(ctx context.Context, name string, rows []domain.Row, primaryKeys []string) error {
	info, err := s.require(ctx, name, "insert into")
	if err != nil {
		return err
	}
	if err := store.ValidateBatch(rows, primaryKeys); err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}

	cols := info.schema.ColumnOrder
	quoted := make([]string, len(cols))
	holes := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
		holes[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(quoted, ", "), strings.Join(holes, ", "))

	// The table carries no unique constraint (every column is nullable),
	// so a previously deactivated key is cleared first to keep one
	// physical row per primary-key tuple.
	wheres := make([]string, len(primaryKeys))
	for i, col := range primaryKeys {
		wheres[i] = quoteIdent(col) + " = ?"
	}
	clearStmt := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(name), strings.Join(wheres, " AND "))

	for _, row := range rows {
		key, err := domain.KeyOf(row, primaryKeys)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", name, err)
		}
		keyArgs := make([]any, len(key))
		for i, kv := range key {
			keyArgs[i] = kv
		}
		if _, err := s.db.ExecContext(ctx, clearStmt, keyArgs...); err != nil {
			return fmt.Errorf("insert into %s: %w: %w", name, domain.ErrDBOperation, err)
		}

		args, err := s.bindRow(info, row)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert into %s: %w: %w", name, domain.ErrDBOperation, err)
		}
	}
	return nil
}

// Update issues a keyed UPDATE per row and falls back to INSERT when no
// existing row matches the primary-key tuple.
func (s *Store) Update(ctx context.Context, name string, rows []domain.Row, primaryKeys []string) error {
	info, err := s.require(ctx, name, "update")
	if err != nil {
		return err
	}

	var setCols []string
	for _, col := range info.schema.ColumnOrder {
		if contains(primaryKeys, col) {
			continue
		}
		setCols = append(setCols, col)
	}

	sets := make([]string, len(setCols))
	for i, col := range setCols {
		sets[i] = quoteIdent(col) + " = ?"
	}
	wheres := make([]string, len(primaryKeys))
	for i, col := range primaryKeys {
		wheres[i] = quoteIdent(col) + " = ?"
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteIdent(name), strings.Join(sets, ", "), strings.Join(wheres, " AND "))

	for _, row := range rows {
		key, err := domain.KeyOf(row, primaryKeys)
		if err != nil {
			return fmt.Errorf("update %s: %w", name, err)
		}

		args := make([]any, 0, len(setCols)+len(primaryKeys))
		for _, col := range setCols {
			v, err := encodeValue(info.schema.Columns[col], row[col])
			if err != nil {
				return fmt.Errorf("update %s: column %s: %w", name, col, err)
			}
			args = append(args, v)
		}
		for _, kv := range key {
			args = append(args, kv)
		}

		res, err := s.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("update %s: %w: %w", name, domain.ErrDBOperation, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update %s: %w: %w", name, domain.ErrDBOperation, err)
		}
		if affected == 0 {
			if err := s.Insert(ctx, name, []domain.Row{row}, primaryKeys); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) MarkInactive(ctx context.Context, name string, keys []domain.Key) error {
	info, err := s.lookup(ctx, name)
	if err != nil {
		return err
	}
	if info == nil || len(keys) == 0 {
		return nil
	}

	wheres := make([]string, len(info.primaryKeys))
	for i, col := range info.primaryKeys {
		wheres[i] = quoteIdent(col) + " = ?"
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s = 0 WHERE %s",
		quoteIdent(name), quoteIdent(domain.ColIsActive), strings.Join(wheres, " AND "))

	for _, key := range keys {
		if len(key) != len(info.primaryKeys) {
			return fmt.Errorf("mark inactive %s: key arity %d != %d primary keys: %w",
				name, len(key), len(info.primaryKeys), domain.ErrDataValidation)
		}
		args := make([]any, len(key))
		for i, kv := range key {
			args[i] = kv
		}
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("mark inactive %s: %w: %w", name, domain.ErrDBOperation, err)
		}
	}
	return nil
}

func (s *Store) ListActive(ctx context.Context, name string) ([]domain.Row, error) {
	info, err := s.lookup(ctx, name)
	if err != nil || info == nil {
		return nil, err
	}
	where := fmt.Sprintf("%s IS NULL OR %s != 0",
		quoteIdent(domain.ColIsActive), quoteIdent(domain.ColIsActive))
	return s.selectRows(ctx, name, info, where)
}

func (s *Store) Columns(ctx context.Context, name string) ([]string, error) {
	info, err := s.lookup(ctx, name)
	if err != nil || info == nil {
		return nil, err
	}
	return append([]string(nil), info.schema.ColumnOrder...), nil
}

func (s *Store) EmbeddingColumns(ctx context.Context, name string) ([]string, error) {
	info, err := s.lookup(ctx, name)
	if err != nil || info == nil {
		return nil, err
	}
	return info.schema.EmbeddingColumns(), nil
}

func (s *Store) AddColumn(ctx context.Context, name, column, columnType string) error {
	info, err := s.require(ctx, name, "add column to")
	if err != nil {
		return err
	}
	if info.schema.HasColumn(column) {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		quoteIdent(name), quoteIdent(column), sqlType(columnType))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column to %s: %w: %w", name, domain.ErrDBOperation, err)
	}

	info.schema.AddColumn(column, columnType)
	return s.saveCatalog(ctx, name, info.schema, info.primaryKeys, info.mode)
}

// Search selects active rows with a populated target vector and ranks them
// by exact L2 in-process. SQLite has no native KNN ordering, so ranking
// happens over the decoded candidate set.
func (s *Store) Search(ctx context.Context, name string, query []float32, topK int,
	embedColumn string) ([]domain.SearchResult, error) {
	info, err := s.require(ctx, name, "search")
	if err != nil {
		return nil, err
	}
	col, err := store.ResolveEmbedColumn(info.schema, embedColumn)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", name, err)
	}

	where := fmt.Sprintf("(%s IS NULL OR %s != 0) AND %s IS NOT NULL",
		quoteIdent(domain.ColIsActive), quoteIdent(domain.ColIsActive), quoteIdent(col))
	rows, err := s.selectRows(ctx, name, info, where)
	if err != nil {
		return nil, err
	}

	type scored struct {
		row  domain.Row
		dist float64
	}
	hits := make([]scored, 0, len(rows))
	for _, row := range rows {
		v, _ := row[col].([]float32)
		if v == nil {
			continue
		}
		d, err := vec.L2(query, v)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w: %w", name, domain.ErrDimensionMismatch, err)
		}
		hits = append(hits, scored{row: row, dist: d})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = domain.SearchResult{
			ID:       store.ResultID(h.row, info.primaryKeys),
			Document: store.Document(h.row, col),
			Distance: h.dist,
			Metadata: store.Metadata(h.row, info.schema),
		}
	}
	return results, nil
}

// --- internals ---

func (s *Store) bindRow(info *tableInfo, row domain.Row) ([]any, error) {
	args := make([]any, len(info.schema.ColumnOrder))
	for i, col := range info.schema.ColumnOrder {
		v, err := encodeValue(info.schema.Columns[col], row[col])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		args[i] = v
	}
	return args, nil
}

func (s *Store) selectRows(ctx context.Context, name string, info *tableInfo, where string) ([]domain.Row, error) {
	cols := info.schema.ColumnOrder
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(quoted, ", "), quoteIdent(name), where)

	rs, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w: %w", name, domain.ErrDBOperation, err)
	}
	defer rs.Close()

	var out []domain.Row
	for rs.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w: %w", name, domain.ErrDBOperation, err)
		}

		row := make(domain.Row, len(cols))
		for i, col := range cols {
			v, err := decodeValue(info.schema.Columns[col], raw[i])
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", name, col, err)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("select from %s: %w: %w", name, domain.ErrDBOperation, err)
	}
	return out, nil
}

// lookup resolves a table from the registry, falling back to the catalog.
// Returns (nil, nil) for unknown tables.
func (s *Store) lookup(ctx context.Context, name string) (*tableInfo, error) {
	if info, ok := s.tables[name]; ok {
		return info, nil
	}

	var schemaJSON, pksJSON, mode string
	err := s.db.QueryRowContext(ctx,
		"SELECT schema_json, primary_keys, mode FROM embedload_catalog WHERE name = ?", name,
	).Scan(&schemaJSON, &pksJSON, &mode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog lookup %s: %w: %w", name, domain.ErrDBOperation, err)
	}

	info := &tableInfo{mode: domain.EmbedMode(mode)}
	if err := unmarshalSchema(schemaJSON, &info.schema); err != nil {
		return nil, fmt.Errorf("catalog lookup %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(pksJSON), &info.primaryKeys); err != nil {
		return nil, fmt.Errorf("catalog lookup %s: unmarshal primary keys: %w", name, err)
	}
	s.tables[name] = info
	return info, nil
}

func (s *Store) require(ctx context.Context, name, op string) (*tableInfo, error) {
	info, err := s.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%s %s: %w", op, name, domain.ErrTableNotFound)
	}
	return info, nil
}

func (s *Store) saveCatalog(ctx context.Context, name string, sch domain.TableSchema,
	primaryKeys []string, mode domain.EmbedMode) error {
	schemaJSON, err := marshalSchema(sch)
	if err != nil {
		return fmt.Errorf("save catalog %s: %w", name, err)
	}
	pksJSON, err := json.Marshal(primaryKeys)
	if err != nil {
		return fmt.Errorf("save catalog %s: marshal primary keys: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embedload_catalog (name, schema_json, primary_keys, mode) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET schema_json = excluded.schema_json`,
		name, schemaJSON, string(pksJSON), string(mode))
	if err != nil {
		return fmt.Errorf("save catalog %s: %w: %w", name, domain.ErrDBOperation, err)
	}
	return nil
}

type schemaJSON struct {
	Columns   map[string]string `json:"columns"`
	Nullables map[string]bool   `json:"nullables"`
	Order     []string          `json:"order"`
}

func marshalSchema(s domain.TableSchema) (string, error) {
	data, err := json.Marshal(schemaJSON{Columns: s.Columns, Nullables: s.Nullables, Order: s.ColumnOrder})
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(data), nil
}

func unmarshalSchema(data string, out *domain.TableSchema) error {
	var sj schemaJSON
	if err := json.Unmarshal([]byte(data), &sj); err != nil {
		return fmt.Errorf("unmarshal schema: %w", err)
	}
	out.Columns = sj.Columns
	out.Nullables = sj.Nullables
	out.ColumnOrder = sj.Order
	return out.Validate()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
