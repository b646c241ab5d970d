// Package database is the read-only gateway the agent's tools use to inspect
// the catalog and run SELECT statements.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/lojasmm/sqldash/internal/config"
)

// ErrNotReadOnly is returned for statements that do not start with SELECT.
var ErrNotReadOnly = errors.New("only SELECT queries are allowed")

const defaultQueryTimeout = 30 * time.Second

// SchemaRow is one column of one user table.
type SchemaRow struct {
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
	DataType   string `json:"data_type"`
}

// Row maps column names to coerced values (int64, float64, string or nil).
type Row map[string]any

type Gateway struct {
	db      *sql.DB
	dialect dialect
	timeout time.Duration
}

// Open connects with the configured driver and verifies the connection.
func Open(ctx context.Context, cfg config.Database) (*Gateway, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.Driver, err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Gateway{db: db, dialect: d, timeout: timeout}, nil
}

func (g *Gateway) Close() error {
	return g.db.Close()
}

// Schema lists every user-table column ordered by table, then column position.
func (g *Gateway) Schema(ctx context.Context) ([]SchemaRow, error) {
	schema := []SchemaRow{}
	err := g.readOnly(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, g.dialect.schemaQuery)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r SchemaRow
			if err := rows.Scan(&r.TableName, &r.ColumnName, &r.DataType); err != nil {
				return err
			}
			schema = append(schema, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetching schema: %w", err)
	}
	return schema, nil
}

// Query runs a SELECT statement and returns coerced rows. Statements that do
// not begin with "SELECT" or "select" are rejected before reaching the
// database. The prefix check alone can be bypassed by data-modifying CTEs or
// function calls, so every statement also runs in a read-only transaction.
func (g *Gateway) Query(ctx context.Context, query string) ([]Row, error) {
	if !isSelect(query) {
		return nil, ErrNotReadOnly
	}

	result := []Row{}
	err := g.readOnly(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.ColumnTypes()
		if err != nil {
			return err
		}

		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}

			row := make(Row, len(cols))
			for i, col := range cols {
				v, err := coerce(g.dialect.columnType, col.DatabaseTypeName(), values[i])
				if err != nil {
					return fmt.Errorf("column %s: %w", col.Name(), err)
				}
				row[col.Name()] = v
			}
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	return result, nil
}

// SchemaJSON is Schema encoded for a tool result. Failures are returned as
// {"error": "..."} so the model can see them.
func (g *Gateway) SchemaJSON(ctx context.Context) string {
	schema, err := g.Schema(ctx)
	if err != nil {
		log.Printf("database: schema failed: %v", err)
		return errorJSON(fmt.Errorf("error fetching schema: %w", err))
	}
	return toJSON(schema)
}

// QueryJSON is Query encoded for a tool result, with failures (including a
// rejected statement) reified as {"error": "..."}.
func (g *Gateway) QueryJSON(ctx context.Context, query string) string {
	rows, err := g.Query(ctx, query)
	if err != nil {
		log.Printf("database: query failed: %v", err)
		return errorJSON(fmt.Errorf("query error: %w", err))
	}
	return toJSON(rows)
}

func (g *Gateway) readOnly(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	tx, err := g.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	// Nothing is ever committed.
	defer tx.Rollback()
	return fn(tx)
}

func isSelect(query string) bool {
	return strings.HasPrefix(query, "SELECT") || strings.HasPrefix(query, "select")
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return errorJSON(err)
	}
	return string(b)
}

func errorJSON(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}
