package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// Adapter implements datasource.Adapter for ClickHouse using HTTP protocol
type Adapter struct {
	client   *HTTPClient
	database string
}

// NewAdapter creates a new ClickHouse adapter
func NewAdapter() datasource.Adapter {
	return &Adapter{}
}

// DatabaseType returns the database type identifier
func (a *Adapter) DatabaseType() domain.DatabaseType {
	return domain.DatabaseTypeClickHouse
}

// SQLDialect returns SQL dialect hints for LLM prompting
func (a *Adapter) SQLDialect() string {
	return `ClickHouse SQL dialect:
- Use backticks for identifiers: ` + "`column_name`" + `
- String concatenation: concat(a, b) or a || b
- Date functions: today(), now(), toDate(), toDateTime()
- Date truncation: toStartOfMonth(date), toStartOfDay(datetime)
- Date extraction: toYear(date), toMonth(date), toDayOfMonth(date)
- Pagination: LIMIT n OFFSET m (but avoid large offsets)
- Boolean values: 1/0 or true/false
- NULL handling: ifNull(column, default), nullIf(a, b)
- Array functions: arrayJoin(), groupArray(), arrayElement()
- String functions: concat(), substring(), trim(), upper(), lower()
- Aggregate functions: count(), sum(), avg(), min(), max(), groupArray()
- Approximate functions: uniq(), uniqExact(), quantile()
- Prefer using MergeTree tables
- Use FINAL for ReplacingMergeTree/CollapsingMergeTree when needed
- Avoid SELECT * on large tables, specify columns`
}

// Connect establishes connection to ClickHouse using HTTP protocol
func (a *Adapter) Connect(ctx context.Context, config datasource.ConnectionConfig) error {
	a.client = NewHTTPClient(
		config.Host,
		config.Port,
		config.Database,
		config.Username,
		config.Password,
	)
	a.database = config.Database

	if err := a.client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}

	return nil
}

// Close closes the connection
func (a *Adapter) Close() error {
	if a.client != nil {
		err := a.client.Close()
		a.client = nil
		return err
	}
	return nil
}

// HealthCheck verifies connection is alive
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("not connected")
	}
	return a.client.Ping(ctx)
}

// ListTables returns list of table names
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	_, rows, err := a.client.Query(ctx, `
		SELECT name
		FROM system.tables
		WHERE database = currentDatabase()
		  AND engine NOT IN ('View', 'MaterializedView')
		  AND name NOT LIKE '.%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var tables []string
	for _, row := range rows {
		if name, ok := row["name"].(string); ok {
			tables = append(tables, name)
		}
	}

	return tables, nil
}

// DescribeTable returns detailed table schema
func (a *Adapter) DescribeTable(ctx context.Context, tableName string) (*domain.TableDescriptor, error) {
	query := fmt.Sprintf(`
		SELECT
			name,
			type,
			is_in_primary_key
		FROM system.columns
		WHERE database = currentDatabase() AND table = '%s'
		ORDER BY position
	`, escapeSQLString(tableName))

	_, rows, err := a.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}

	var columns []domain.ColumnDescriptor
	for _, row := range rows {
		name, _ := row["name"].(string)
		dataType, _ := row["type"].(string)

		columns = append(columns, domain.ColumnDescriptor{
			Name:         name,
			DeclaredType: dataType,
			Nullable:     strings.HasPrefix(dataType, "Nullable("),
			PrimaryKey:   toBool(row["is_in_primary_key"]),
		})
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table not found: %s", tableName)
	}

	countQuery := fmt.Sprintf(`
		SELECT total_rows
		FROM system.tables
		WHERE database = currentDatabase() AND name = '%s'
	`, escapeSQLString(tableName))

	_, countRows, err := a.client.Query(ctx, countQuery)
	var rowCountPtr *int64
	if err == nil && len(countRows) > 0 {
		if count, ok := countRows[0]["total_rows"]; ok {
			var rowCount int64
			switch v := count.(type) {
			case float64:
				rowCount = int64(v)
			case int64:
				rowCount = v
			case string:
				rowCount, _ = strconv.ParseInt(v, 10, 64)
			}
			if rowCount >= 0 {
				rowCountPtr = &rowCount
			}
		}
	}

	return &domain.TableDescriptor{
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCountPtr,
	}, nil
}

// Introspect builds the normalized schema snapshot. With many tables the
// DDL covers only the first few in full to keep prompts inside token
// budgets; the rest are listed by name.
func (a *Adapter) Introspect(ctx context.Context) (*domain.SchemaDescription, error) {
	const maxFullTables = 10

	names, err := a.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]domain.TableDescriptor, 0, len(names))
	for _, name := range names {
		desc, err := a.DescribeTable(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *desc)
	}

	var ddl strings.Builder
	described := tables
	if len(described) > maxFullTables {
		described = described[:maxFullTables]
	}
	ddl.WriteString(datasource.RenderDDL(described))

	if len(tables) > maxFullTables {
		ddl.WriteString(fmt.Sprintf("\n\n-- Other tables available (schema truncated for brevity, %d total):\n", len(tables)))
		for _, t := range tables[maxFullTables:] {
			ddl.WriteString(fmt.Sprintf("-- Table: %s\n", t.Name))
		}
	}

	return &domain.SchemaDescription{
		DatabaseType: a.DatabaseType(),
		Tables:       tables,
		DDL:          ddl.String(),
		CachedAt:     time.Now().UTC(),
	}, nil
}

// ValidateQuery validates SQL is safe to execute
func (a *Adapter) ValidateQuery(sql string) error {
	return datasource.ValidateSQL(sql, datasource.ClickhouseBlockedPatterns)
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

	columns, rows, err := a.client.Query(ctx, sql)
	if err != nil {
		return nil, classifyError(err)
	}

	var resultRows [][]any
	for i, row := range rows {
		if i >= opts.MaxRows {
			break
		}
		values := make([]any, len(columns))
		for j, col := range columns {
			values[j] = row[col]
		}
		resultRows = append(resultRows, values)
	}

	truncated := len(rows) > opts.MaxRows

	return &domain.QueryResult{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
	}, nil
}

// Helper functions

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func toBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		return val == "1" || val == "true"
	default:
		return false
	}
}

var exceptionCode = regexp.MustCompile(`Code:\s*(\d+)`)

// classifyError maps ClickHouse exceptions onto the domain taxonomy by
// exception code parsed from the HTTP error body.
func classifyError(err error) *domain.QueryError {
	var srvErr *serverError
	if !errors.As(err, &srvErr) {
		return datasource.Classify(err)
	}

	m := exceptionCode.FindStringSubmatch(srvErr.body)
	if m == nil {
		return datasource.Classify(err)
	}
	code, _ := strconv.Atoi(m[1])

	switch code {
	case 62:
		// SYNTAX_ERROR
		return domain.NewQueryError(domain.ErrKindSyntax, srvErr.body, err)
	case 16, 47, 60, 81:
		// NO_SUCH_COLUMN_IN_TABLE, UNKNOWN_IDENTIFIER, UNKNOWN_TABLE, UNKNOWN_DATABASE
		return domain.NewQueryError(domain.ErrKindSchemaMismatch, srvErr.body, err)
	case 164, 497:
		// READONLY, ACCESS_DENIED
		return domain.NewQueryError(domain.ErrKindPermissionDenied, srvErr.body, err)
	case 159, 209:
		// TIMEOUT_EXCEEDED, SOCKET_TIMEOUT
		return domain.NewQueryError(domain.ErrKindTimeout, srvErr.body, err)
	}

	return domain.NewQueryError(domain.ErrKindOther, srvErr.body, err)
}
