package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// Adapter implements datasource.Adapter for PostgreSQL
type Adapter struct {
	pool *pgxpool.Pool
}

// NewAdapter creates a new PostgreSQL adapter
func NewAdapter() datasource.Adapter {
	return &Adapter{}
}

// DatabaseType returns the database type identifier
func (a *Adapter) DatabaseType() domain.DatabaseType {
	return domain.DatabaseTypePostgres
}

// SQLDialect returns SQL dialect hints for LLM prompting
func (a *Adapter) SQLDialect() string {
	return `PostgreSQL SQL dialect:
- Use double quotes for identifiers with special characters: "column name"
- String concatenation: column1 || column2
- Case-insensitive matching: ILIKE instead of LIKE
- Date/time functions: NOW(), CURRENT_DATE, CURRENT_TIMESTAMP
- Date truncation: DATE_TRUNC('month', date_column)
- Date extraction: EXTRACT(YEAR FROM date_column)
- Pagination: LIMIT n OFFSET m
- Boolean values: TRUE, FALSE
- NULL handling: COALESCE(column, default_value), NULLIF(a, b)
- Array functions: ANY(), ALL(), array_agg()
- JSON functions: jsonb_extract_path(), ->, ->>
- String functions: CONCAT(), SUBSTRING(), TRIM(), UPPER(), LOWER()
- Aggregate functions: COUNT(), SUM(), AVG(), MIN(), MAX(), STRING_AGG()
- Window functions: ROW_NUMBER(), RANK(), DENSE_RANK(), LAG(), LEAD()
- Common table expressions (CTEs): WITH cte AS (SELECT ...)`
}

// Connect establishes connection to PostgreSQL
func (a *Adapter) Connect(ctx context.Context, config datasource.ConnectionConfig) error {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
		config.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping: %w", err)
	}

	a.pool = pool
	return nil
}

// Close closes the connection
func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

// HealthCheck verifies connection is alive
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.pool == nil {
		return fmt.Errorf("not connected")
	}
	return a.pool.Ping(ctx)
}

// ListTables returns list of table names
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}

	return tables, nil
}

// DescribeTable returns detailed table schema
func (a *Adapter) DescribeTable(ctx context.Context, tableName string) (*domain.TableDescriptor, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' as nullable,
			COALESCE(
				(SELECT true FROM information_schema.key_column_usage kcu
				 JOIN information_schema.table_constraints tc
				   ON kcu.constraint_name = tc.constraint_name
				 WHERE tc.constraint_type = 'PRIMARY KEY'
				   AND kcu.table_name = c.table_name
				   AND kcu.column_name = c.column_name
				 LIMIT 1), false
			) as primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = 'public' AND c.table_name = $1
		ORDER BY c.ordinal_position
	`

	rows, err := a.pool.Query(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	defer rows.Close()

	var columns []domain.ColumnDescriptor
	for rows.Next() {
		var col domain.ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.DeclaredType, &col.Nullable, &col.PrimaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, col)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table not found: %s", tableName)
	}

	// Planner estimate; exact counts are too expensive on large tables
	var rowCount int64
	err = a.pool.QueryRow(ctx, `
		SELECT reltuples::bigint
		FROM pg_class
		WHERE relname = $1
	`, tableName).Scan(&rowCount)

	var rowCountPtr *int64
	if err == nil && rowCount >= 0 {
		rowCountPtr = &rowCount
	}

	return &domain.TableDescriptor{
		Name:       tableName,
		SchemaName: "public",
		Columns:    columns,
		RowCount:   rowCountPtr,
	}, nil
}

// Introspect builds the normalized schema snapshot
func (a *Adapter) Introspect(ctx context.Context) (*domain.SchemaDescription, error) {
	return datasource.BuildSchema(ctx, a)
}

// ValidateQuery validates SQL is safe to execute
func (a *Adapter) ValidateQuery(sql string) error {
	return datasource.ValidateSQL(sql, datasource.PostgresBlockedPatterns)
}

// ExecuteQuery executes read-only SQL query
func (a *Adapter) ExecuteQuery(ctx context.Context, sql string, opts datasource.QueryOptions) (*domain.QueryResult, error) {
	if err := a.ValidateQuery(sql); err != nil {
		return nil, err
	}

	sql = datasource.EnforceLimit(sql, opts.MaxRows, "LIMIT")

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	rows, err := a.pool.Query(ctx, sql)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	var resultRows [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, classifyError(err)
		}
		resultRows = append(resultRows, normalizeRow(values))

		if len(resultRows) > opts.MaxRows {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}

	truncated := len(resultRows) > opts.MaxRows
	if truncated {
		resultRows = resultRows[:opts.MaxRows]
	}

	return &domain.QueryResult{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
	}, nil
}

func normalizeRow(values []any) []any {
	for i, v := range values {
		values[i] = normalizeValue(v)
	}
	return values
}

// normalizeValue converts pgx-specific values into plain Go values so rows
// marshal cleanly and numeric aggregates stay readable as numbers. NaN and
// infinite numerics become nil; JSON has no encoding for them.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid || val.NaN || val.InfinityModifier != pgtype.Finite {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	case netip.Addr:
		return val.String()
	case netip.Prefix:
		return val.String()
	default:
		return v
	}
}

// classifyError maps PostgreSQL errors onto the domain taxonomy by
// SQLSTATE. pgx surfaces execution errors as *pgconn.PgError; anything
// else falls through to the shared message classifier.
func classifyError(err error) *domain.QueryError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return datasource.Classify(err)
	}

	detail := pgErr.Message
	if pgErr.Hint != "" {
		detail = detail + " (" + pgErr.Hint + ")"
	}

	switch pgErr.Code {
	case "42P01", "42703", "42883", "42P02":
		// undefined table / column / function / parameter
		return domain.NewQueryError(domain.ErrKindSchemaMismatch, detail, err)
	case "42501":
		return domain.NewQueryError(domain.ErrKindPermissionDenied, detail, err)
	case "57014":
		// statement canceled, usually by statement_timeout
		return domain.NewQueryError(domain.ErrKindTimeout, detail, err)
	case "28000", "28P01":
		return domain.NewQueryError(domain.ErrKindPermissionDenied, detail, err)
	}

	// The 42xxx class is "syntax error or access rule violation"; with the
	// specific access codes handled above, the remainder is parse-level.
	if strings.HasPrefix(pgErr.Code, "42") {
		return domain.NewQueryError(domain.ErrKindSyntax, detail, err)
	}

	return domain.NewQueryError(domain.ErrKindOther, detail, err)
}
