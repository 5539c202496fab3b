package domain

import "time"

// SchemaDescription is a normalized snapshot of a connected database's
// structure. It is built once per connection, cached, and treated as
// immutable for the lifetime of the cache entry; table and column order is
// stable so prompts built from it are reproducible.
type SchemaDescription struct {
	DatabaseType DatabaseType      `json:"database_type"`
	Tables       []TableDescriptor `json:"tables"`
	DDL          string            `json:"ddl"`
	CachedAt     time.Time         `json:"cached_at"`
}

// TableDescriptor describes one table (or collection) in schema order.
type TableDescriptor struct {
	Name       string             `json:"name"`
	SchemaName string             `json:"schema_name,omitempty"`
	Columns    []ColumnDescriptor `json:"columns"`
	RowCount   *int64             `json:"row_count,omitempty"`
}

// ColumnDescriptor describes one column in declaration order.
type ColumnDescriptor struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
	Nullable     bool   `json:"nullable"`
	PrimaryKey   bool   `json:"primary_key"`
}

// Table returns the descriptor for name, or nil when the schema has no such
// table.
func (s *SchemaDescription) Table(name string) *TableDescriptor {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}
