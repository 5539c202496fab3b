package datasource

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// Statements the guard rejects regardless of engine. Rejections are
// classified permission_denied: they terminate the turn without consuming a
// retry and never reach the data source.
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bINSERT\b`),
	regexp.MustCompile(`(?i)\bUPDATE\b`),
	regexp.MustCompile(`(?i)\bDELETE\b`),
	regexp.MustCompile(`(?i)\bDROP\b`),
	regexp.MustCompile(`(?i)\bTRUNCATE\b`),
	regexp.MustCompile(`(?i)\bALTER\b`),
	regexp.MustCompile(`(?i)\bCREATE\b`),
	regexp.MustCompile(`(?i)\bGRANT\b`),
	regexp.MustCompile(`(?i)\bREVOKE\b`),
	regexp.MustCompile(`(?i)\bEXEC\b`),
	regexp.MustCompile(`(?i)\bEXECUTE\b`),
	regexp.MustCompile(`(?i)\bINTO\s+OUTFILE\b`),
	regexp.MustCompile(`(?i)\bINTO\s+DUMPFILE\b`),
	regexp.MustCompile(`(?i)\bLOAD_FILE\b`),
	regexp.MustCompile(`(?i)\bLOAD\s+DATA\b`),
}

// PostgresBlockedPatterns blocks server-side file and remote access.
var PostgresBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)pg_read_file`),
	regexp.MustCompile(`(?i)pg_write_file`),
	regexp.MustCompile(`(?i)pg_ls_dir`),
	regexp.MustCompile(`(?i)lo_import`),
	regexp.MustCompile(`(?i)lo_export`),
	regexp.MustCompile(`(?i)\bCOPY\b`),
	regexp.MustCompile(`(?i)dblink`),
}

// ClickhouseBlockedPatterns blocks table functions that reach outside the
// database.
var ClickhouseBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)file\s*\(`),
	regexp.MustCompile(`(?i)url\s*\(`),
	regexp.MustCompile(`(?i)remote\s*\(`),
	regexp.MustCompile(`(?i)mysql\s*\(`),
	regexp.MustCompile(`(?i)postgresql\s*\(`),
}

// MysqlBlockedPatterns blocks file access primitives.
var MysqlBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)LOAD_FILE`),
	regexp.MustCompile(`(?i)INTO\s+OUTFILE`),
	regexp.MustCompile(`(?i)INTO\s+DUMPFILE`),
}

// SqliteBlockedPatterns blocks database attachment and extension loading.
var SqliteBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bATTACH\b`),
	regexp.MustCompile(`(?i)\bDETACH\b`),
	regexp.MustCompile(`(?i)load_extension`),
}

// ValidateSQL enforces the read-only statement policy: non-empty, a single
// statement, starting with SELECT or WITH, and free of blocked patterns.
// Violations come back as permission_denied QueryErrors.
func ValidateSQL(sql string, additionalPatterns []*regexp.Regexp) error {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return domain.NewQueryError(domain.ErrKindOther, "empty SQL statement", nil)
	}

	if strings.Count(sql, ";") > 1 {
		return domain.NewQueryError(domain.ErrKindPermissionDenied,
			"multiple statements are not allowed", nil)
	}

	normalized := strings.ToUpper(strings.TrimSpace(sql))
	if !strings.HasPrefix(normalized, "SELECT") && !strings.HasPrefix(normalized, "WITH") {
		return domain.NewQueryError(domain.ErrKindPermissionDenied,
			"only SELECT statements are allowed", nil)
	}

	for _, pattern := range blockedPatterns {
		if pattern.MatchString(sql) {
			return domain.NewQueryError(domain.ErrKindPermissionDenied,
				fmt.Sprintf("statement matches blocked pattern %s", pattern.String()), nil)
		}
	}

	for _, pattern := range additionalPatterns {
		if pattern.MatchString(sql) {
			return domain.NewQueryError(domain.ErrKindPermissionDenied,
				fmt.Sprintf("statement matches blocked pattern %s", pattern.String()), nil)
		}
	}

	return nil
}

// EnforceLimit ensures the query has a row limit clause.
func EnforceLimit(sql string, maxRows int, limitKeyword string) string {
	normalized := strings.ToUpper(sql)

	if strings.Contains(normalized, "LIMIT") {
		return sql
	}

	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")

	return fmt.Sprintf("%s %s %d", sql, limitKeyword, maxRows)
}
