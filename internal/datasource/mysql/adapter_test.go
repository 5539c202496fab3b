package mysql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestExecuteQuery(t *testing.T) {
	db, mock := newSQLMock(t)
	a := &Adapter{db: db, database: "shop"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, price FROM products ORDER BY price DESC LIMIT 100")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price"}).
			AddRow([]byte("Widget"), 19.99).
			AddRow([]byte("Gadget"), 9.99))

	result, err := a.ExecuteQuery(context.Background(),
		"SELECT name, price FROM products ORDER BY price DESC",
		datasource.QueryOptions{MaxRows: 100})
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}

	if len(result.Columns) != 2 || result.Columns[0] != "name" || result.Columns[1] != "price" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if result.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", result.RowCount)
	}
	if result.Truncated {
		t.Fatal("Truncated = true for a small result")
	}
	// Byte slices must come back as strings
	if got, ok := result.Rows[0][0].(string); !ok || got != "Widget" {
		t.Fatalf("Rows[0][0] = %v (%T), want string Widget", result.Rows[0][0], result.Rows[0][0])
	}
	assertSQLMock(t, mock)
}

func TestExecuteQueryTruncates(t *testing.T) {
	db, mock := newSQLMock(t)
	a := &Adapter{db: db, database: "shop"}

	rows := sqlmock.NewRows([]string{"id"})
	for i := 1; i <= 4; i++ {
		rows.AddRow(i)
	}
	// The statement already carries a LIMIT, so no rewrite happens
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM orders LIMIT 10")).WillReturnRows(rows)

	result, err := a.ExecuteQuery(context.Background(),
		"SELECT id FROM orders LIMIT 10",
		datasource.QueryOptions{MaxRows: 3})
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}

	if result.RowCount != 3 {
		t.Fatalf("RowCount = %d, want 3", result.RowCount)
	}
	if !result.Truncated {
		t.Fatal("Truncated = false, want true")
	}
	assertSQLMock(t, mock)
}

// Blocked statements must be rejected before any SQL reaches the driver:
// no expectations are registered, so a driver round trip would fail the
// sqlmock assertion.
func TestExecuteQueryGuardShortCircuits(t *testing.T) {
	db, mock := newSQLMock(t)
	a := &Adapter{db: db, database: "shop"}

	_, err := a.ExecuteQuery(context.Background(),
		"DELETE FROM products",
		datasource.QueryOptions{MaxRows: 100})
	if err == nil {
		t.Fatal("ExecuteQuery() = nil error for destructive statement")
	}

	var qe *domain.QueryError
	if !errors.As(err, &qe) || qe.Kind != domain.ErrKindPermissionDenied {
		t.Fatalf("error = %v, want permission_denied QueryError", err)
	}
	assertSQLMock(t, mock)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		number uint16
		want   domain.ErrorKind
	}{
		{"parse error", 1064, domain.ErrKindSyntax},
		{"unknown table", 1146, domain.ErrKindSchemaMismatch},
		{"unknown column", 1054, domain.ErrKindSchemaMismatch},
		{"table access denied", 1142, domain.ErrKindPermissionDenied},
		{"query interrupted", 1317, domain.ErrKindTimeout},
		{"lock wait", 1205, domain.ErrKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMock(t)
			a := &Adapter{db: db, database: "shop"}

			mock.ExpectQuery(".*").WillReturnError(&mysql.MySQLError{
				Number:  tt.number,
				Message: tt.name,
			})

			_, err := a.ExecuteQuery(context.Background(),
				"SELECT * FROM products",
				datasource.QueryOptions{MaxRows: 10})
			if err == nil {
				t.Fatal("ExecuteQuery() error = nil")
			}

			var qe *domain.QueryError
			if !errors.As(err, &qe) {
				t.Fatalf("error = %T, want *domain.QueryError", err)
			}
			if qe.Kind != tt.want {
				t.Errorf("kind = %s, want %s", qe.Kind, tt.want)
			}
			assertSQLMock(t, mock)
		})
	}
}

func TestDescribeTable(t *testing.T) {
	db, mock := newSQLMock(t)
	a := &Adapter{db: db, database: "shop"}

	mock.ExpectQuery("SELECT\\s+column_name").
		WithArgs("shop", "products").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type", "nullable", "pk"}).
			AddRow("id", "int(11)", false, true).
			AddRow("name", "varchar(255)", false, false).
			AddRow("price", "decimal(10,2)", true, false))
	mock.ExpectQuery("SELECT table_rows").
		WithArgs("shop", "products").
		WillReturnRows(sqlmock.NewRows([]string{"table_rows"}).AddRow(int64(1204)))

	desc, err := a.DescribeTable(context.Background(), "products")
	if err != nil {
		t.Fatalf("DescribeTable() error = %v", err)
	}

	if desc.Name != "products" || desc.SchemaName != "shop" {
		t.Fatalf("descriptor = %+v", desc)
	}
	if len(desc.Columns) != 3 {
		t.Fatalf("len(Columns) = %d, want 3", len(desc.Columns))
	}
	if !desc.Columns[0].PrimaryKey || desc.Columns[0].DeclaredType != "int(11)" {
		t.Fatalf("Columns[0] = %+v", desc.Columns[0])
	}
	if !desc.Columns[2].Nullable {
		t.Fatal("price should be nullable")
	}
	if desc.RowCount == nil || *desc.RowCount != 1204 {
		t.Fatalf("RowCount = %v", desc.RowCount)
	}
	assertSQLMock(t, mock)
}
