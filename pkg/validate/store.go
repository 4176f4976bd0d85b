package validate

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/risingwavelabs/connector-harness/pkg/schema"
)

// StoreReader reads back the rows a sink persisted, in a deterministic
// order, as Rows following schema column order.
type StoreReader interface {
	ReadRows(ctx context.Context) ([]Row, error)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore reads a sink table through database/sql. Because Compare is
// strictly ordered, every read carries an explicit ORDER BY; without one
// the store's iteration order would be an accident of the engine.
type SQLStore struct {
	db      *sql.DB
	table   string
	schema  *schema.TableSchema
	orderBy []string
}

// NewSQLStore builds a reader over table. orderBy names the columns the
// read is ordered by; nil selects the schema's primary key columns. A
// schema with no primary key must supply orderBy explicitly.
func NewSQLStore(db *sql.DB, table string, s *schema.TableSchema, orderBy []string) (*SQLStore, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if len(orderBy) == 0 {
		orderBy = s.PKColumns()
	}
	if len(orderBy) == 0 {
		return nil, fmt.Errorf("table %s: no order columns: schema has no primary key and none were given", table)
	}
	names := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if !identPattern.MatchString(c.Name) {
			return nil, fmt.Errorf("invalid column name %q", c.Name)
		}
		names[c.Name] = true
	}
	for _, col := range orderBy {
		if !names[col] {
			return nil, fmt.Errorf("table %s: order column %q is not in the schema", table, col)
		}
	}
	return &SQLStore{db: db, table: table, schema: s, orderBy: orderBy}, nil
}

func (s *SQLStore) query() string {
	cols := make([]string, len(s.schema.Columns))
	for i, c := range s.schema.Columns {
		cols[i] = c.Name
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "), s.table, strings.Join(s.orderBy, ", "))
}

// ReadRows selects every row of the table in order.
func (s *SQLStore) ReadRows(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []Row
	n := len(s.schema.Columns)
	for rows.Next() {
		vals := make([]interface{}, n)
		ptrs := make([]interface{}, n)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("table %s: %w", s.table, err)
		}
		row := make(Row, n)
		for i, v := range vals {
			row[i] = normalizeValue(s.schema.Columns[i].Type, v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table %s: %w", s.table, err)
	}
	return out, nil
}

// FileStore reads a JSON-lines sink file in write order.
type FileStore struct {
	path   string
	schema *schema.TableSchema
}

// NewFileStore builds a reader over a JSON-lines file at path.
func NewFileStore(path string, s *schema.TableSchema) *FileStore {
	return &FileStore{path: path, schema: s}
}

// ReadRows parses each line as a JSON object and projects it onto the
// schema's column order.
func (f *FileStore) ReadRows(_ context.Context) ([]Row, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("sink file %s: %w", f.path, err)
	}
	defer file.Close()

	var out []Row
	sc := bufio.NewScanner(file)
	for ln := 1; sc.Scan(); ln++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return nil, fmt.Errorf("sink file %s line %d: %w", f.path, ln, err)
		}
		row := make(Row, len(f.schema.Columns))
		for i, col := range f.schema.Columns {
			row[i] = normalizeValue(col.Type, obj[col.Name])
		}
		out = append(out, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("sink file %s: %w", f.path, err)
	}
	return out, nil
}
