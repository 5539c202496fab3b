package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// Adapter implements datasource.Adapter for MySQL
type Adapter struct {
	db       *sql.DB
	database string
}

// NewAdapter creates a new MySQL adapter
func NewAdapter() datasource.Adapter {
	return &Adapter{}
}

// DatabaseType returns the database type identifier
func (a *Adapter) DatabaseType() domain.DatabaseType {
	return domain.DatabaseTypeMySQL
}

// SQLDialect returns SQL dialect hints for LLM prompting
func (a *Adapter) SQLDialect() string {
	return `MySQL SQL dialect:
- Use backticks for identifiers: ` + "`column_name`" + `
- String concatenation: CONCAT(a, b)
- Case-insensitive matching: LIKE (MySQL is case-insensitive by default)
- Date functions: NOW(), CURDATE(), CURRENT_TIMESTAMP
- Date formatting: DATE_FORMAT(date, '%Y-%m-%d')
- Date extraction: YEAR(date), MONTH(date), DAY(date)
- Pagination: LIMIT n OFFSET m or LIMIT offset, count
- Boolean values: TRUE/FALSE or 1/0
- NULL handling: IFNULL(column, default), NULLIF(a, b), COALESCE()
- String functions: CONCAT(), SUBSTRING(), TRIM(), UPPER(), LOWER()
- Aggregate functions: COUNT(), SUM(), AVG(), MIN(), MAX(), GROUP_CONCAT()
- Use single quotes for strings
- Avoid using reserved words as identifiers
- Use INDEX hints if needed: FORCE INDEX, USE INDEX
- EXPLAIN for query analysis`
}

// Connect establishes connection to MySQL
func (a *Adapter) Connect(ctx context.Context, config datasource.ConnectionConfig) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)

	if config.SSLMode == "require" || config.SSLMode == "verify-full" {
		dsn += "&tls=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping: %w", err)
	}

	a.db = db
	a.database = config.Database
	return nil
}

// Close closes the connection
func (a *Adapter) Close() error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// HealthCheck verifies connection is alive
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("not connected")
	}
	return a.db.PingContext(ctx)
}

// ListTables returns list of table names
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, a.database)
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
	rows, err := a.db.QueryContext(ctx, `
		SELECT
			column_name,
			column_type,
			is_nullable = 'YES',
			column_key = 'PRI'
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`, a.database, tableName)
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

	// information_schema estimate; exact counts are too expensive
	var rowCount int64
	err = a.db.QueryRowContext(ctx, `
		SELECT table_rows
		FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?
	`, a.database, tableName).Scan(&rowCount)

	var rowCountPtr *int64
	if err == nil && rowCount >= 0 {
		rowCountPtr = &rowCount
	}

	return &domain.TableDescriptor{
		Name:       tableName,
		SchemaName: a.database,
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
	return datasource.ValidateSQL(sql, datasource.MysqlBlockedPatterns)
}

// ExecuteQuery executes read-only SQL query
func (a *Adapter) ExecuteQuery(ctx context.Context, query string, opts datasource.QueryOptions) (*domain.QueryResult, error) {
	if err := a.ValidateQuery(query); err != nil {
		return nil, err
	}

	query = datasource.EnforceLimit(query, opts.MaxRows, "LIMIT")

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, classifyError(err)
	}

	var resultRows [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, classifyError(err)
		}

		// Convert []byte to string for better JSON serialization
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		resultRows = append(resultRows, values)

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

// classifyError maps MySQL errors onto the domain taxonomy by server error
// number; anything else falls through to the shared message classifier.
func classifyError(err error) *domain.QueryError {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return datasource.Classify(err)
	}

	switch myErr.Number {
	case 1064, 1149:
		// ER_PARSE_ERROR, ER_SYNTAX_ERROR
		return domain.NewQueryError(domain.ErrKindSyntax, myErr.Message, err)
	case 1146, 1054, 1051, 1109, 1305:
		// unknown table / column / view / table in field list / function
		return domain.NewQueryError(domain.ErrKindSchemaMismatch, myErr.Message, err)
	case 1044, 1045, 1142, 1143, 1227:
		// access denied variants
		return domain.NewQueryError(domain.ErrKindPermissionDenied, myErr.Message, err)
	case 1317, 3024:
		// ER_QUERY_INTERRUPTED, ER_QUERY_TIMEOUT
		return domain.NewQueryError(domain.ErrKindTimeout, myErr.Message, err)
	}

	return domain.NewQueryError(domain.ErrKindOther, myErr.Message, err)
}
