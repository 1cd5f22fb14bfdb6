package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gotriangle/domain/triangle"
	apperrors "gotriangle/internal/errors"
	"gotriangle/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TableSource loads a triangle from the result set of a SQL query
type TableSource struct {
	db    *sqlx.DB
	query string
	args  []interface{}
}

// NewTableSource creates a PostgreSQL triangle source for the given query
func NewTableSource(db *sqlx.DB, query string, args ...interface{}) ports.TableSource {
	return &TableSource{db: db, query: query, args: args}
}

// Connect opens and pings a PostgreSQL connection
func Connect(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, triangle.NewDataSourceError("postgres", dbError(err, "failed to connect"))
	}
	return db, nil
}

// SelectAllQuery builds a SELECT over a whole table, quoting each part of a schema-qualified name
func SelectAllQuery(table string) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", fmt.Errorf("table name is required")
	}
	parts := strings.Split(table, ".")
	quoted := make([]string, len(parts))
	for i, part := range parts {
		if part == "" {
			return "", fmt.Errorf("invalid table name %q", table)
		}
		quoted[i] = pq.QuoteIdentifier(part)
	}
	return fmt.Sprintf("SELECT * FROM %s", strings.Join(quoted, ".")), nil
}

// Describe identifies the source in error messages
func (s *TableSource) Describe() string {
	return "postgres: " + s.query
}

// Load runs the query and returns the result set as text cells keyed by column name
func (s *TableSource) Load(ctx context.Context) (*triangle.Table, error) {
	rows, err := s.db.QueryxContext(ctx, s.query, s.args...)
	if err != nil {
		return nil, triangle.NewDataSourceError(s.Describe(), dbError(err, "query failed"))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, triangle.NewDataSourceError(s.Describe(), dbError(err, "failed to read columns"))
	}

	table := &triangle.Table{Source: s.Describe(), Headers: columns}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, triangle.NewDataSourceError(s.Describe(), dbError(err, "failed to scan row %d", len(table.Rows)+1))
		}
		row := make(triangle.RawRow, len(columns))
		for i, col := range columns {
			row[col] = cellText(values[i])
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, triangle.NewDataSourceError(s.Describe(), dbError(err, "failed reading rows"))
	}
	return table, nil
}

// dbError tags a driver failure with the database error code
func dbError(err error, format string, args ...interface{}) error {
	return apperrors.WithCode(apperrors.CodeDatabaseError, apperrors.Wrapf(err, format, args...))
}

// cellText renders a scanned driver value the way a CSV export would
func cellText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
