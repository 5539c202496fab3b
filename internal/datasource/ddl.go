package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// RenderDDL renders descriptors as CREATE TABLE text for language model
// grounding. The form is normalized across engines so prompts read the
// same everywhere.
func RenderDDL(tables []domain.TableDescriptor) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "CREATE TABLE %s (\n", t.Name)
		for j, c := range t.Columns {
			if j > 0 {
				b.WriteString(",\n")
			}
			fmt.Fprintf(&b, "  %s %s", c.Name, c.DeclaredType)
			if !c.Nullable {
				b.WriteString(" NOT NULL")
			}
			if c.PrimaryKey {
				b.WriteString(" PRIMARY KEY")
			}
		}
		b.WriteString("\n);")
		if t.RowCount != nil {
			fmt.Fprintf(&b, " -- ~%d rows", *t.RowCount)
		}
	}
	return b.String()
}

// BuildSchema assembles the full schema snapshot for an adapter: ordered
// tables, rendered DDL, and the capture timestamp.
func BuildSchema(ctx context.Context, a Adapter) (*domain.SchemaDescription, error) {
	tables, err := IntrospectTables(ctx, a)
	if err != nil {
		return nil, err
	}

	return &domain.SchemaDescription{
		DatabaseType: a.DatabaseType(),
		Tables:       tables,
		DDL:          RenderDDL(tables),
		CachedAt:     time.Now().UTC(),
	}, nil
}
