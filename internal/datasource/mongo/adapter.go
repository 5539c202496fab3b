package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// sampleSize is how many documents DescribeTable inspects to derive a
// collection's pseudo-schema.
const sampleSize = 20

// Adapter implements datasource.Adapter for MongoDB. The "SQL" this
// adapter accepts is a single extended-JSON command document in runCommand
// form; the guard allow-lists read-only commands.
type Adapter struct {
	client *mongo.Client
	db     *mongo.Database
	config datasource.ConnectionConfig
}

// NewAdapter creates a new MongoDB adapter
func NewAdapter() datasource.Adapter {
	return &Adapter{}
}

func (a *Adapter) DatabaseType() domain.DatabaseType {
	return domain.DatabaseTypeMongo
}

func (a *Adapter) SQLDialect() string {
	return `MongoDB command documents (not SQL):
- Respond with a single JSON object in runCommand form
- Simple reads: {"find": "collection", "filter": {...}, "projection": {...}, "sort": {...}, "limit": n}
- Aggregations: {"aggregate": "collection", "pipeline": [{"$match": {...}}, {"$group": {...}}], "cursor": {}}
- Counting: {"count": "collection", "query": {...}}
- Distinct values: {"distinct": "collection", "key": "field", "query": {...}}
- Dates as {"$date": "2024-01-31T00:00:00Z"}
- Only read commands are allowed; $out and $merge stages are rejected`
}

func (a *Adapter) Connect(ctx context.Context, config datasource.ConnectionConfig) error {
	a.config = config

	uri := fmt.Sprintf("mongodb://%s:%d", config.Host, config.Port)
	if config.Username != "" && config.Password != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", config.Username, config.Password, config.Host, config.Port)
	}

	clientOpts := options.Client().ApplyURI(uri)
	if config.TimeoutSeconds > 0 {
		clientOpts.SetConnectTimeout(time.Duration(config.TimeoutSeconds) * time.Second)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}

	a.client = client
	a.db = client.Database(config.Database)

	return nil
}

func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Disconnect(context.Background())
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("not connected")
	}
	return a.client.Ping(ctx, nil)
}

func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	if a.db == nil {
		return nil, fmt.Errorf("no database selected")
	}
	return a.db.ListCollectionNames(ctx, bson.D{})
}

// DescribeTable derives a pseudo-schema for a collection by sampling
// documents: the union of top-level fields in first-seen order, typed by
// their first non-null value.
func (a *Adapter) DescribeTable(ctx context.Context, tableName string) (*domain.TableDescriptor, error) {
	cursor, err := a.db.Collection(tableName).Find(ctx, bson.D{}, options.Find().SetLimit(sampleSize))
	if err != nil {
		return nil, fmt.Errorf("failed to sample collection: %w", err)
	}
	defer cursor.Close(ctx)

	var order []string
	types := make(map[string]string)
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		for _, elem := range doc {
			if _, seen := types[elem.Key]; !seen {
				order = append(order, elem.Key)
				types[elem.Key] = bsonTypeName(elem.Value)
			} else if types[elem.Key] == "null" {
				types[elem.Key] = bsonTypeName(elem.Value)
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to sample collection: %w", err)
	}

	columns := make([]domain.ColumnDescriptor, 0, len(order))
	for _, name := range order {
		columns = append(columns, domain.ColumnDescriptor{
			Name:         name,
			DeclaredType: types[name],
			Nullable:     name != "_id",
			PrimaryKey:   name == "_id",
		})
	}
	if len(columns) == 0 {
		columns = append(columns, domain.ColumnDescriptor{
			Name: "_id", DeclaredType: "objectId", PrimaryKey: true,
		})
	}

	var rowCountPtr *int64
	if count, err := a.db.Collection(tableName).EstimatedDocumentCount(ctx); err == nil {
		rowCountPtr = &count
	}

	return &domain.TableDescriptor{
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCountPtr,
	}, nil
}

// Introspect builds the normalized schema snapshot. The DDL is a JSON
// description of collections and sampled field types rather than CREATE
// TABLE text.
func (a *Adapter) Introspect(ctx context.Context) (*domain.SchemaDescription, error) {
	tables, err := datasource.IntrospectTables(ctx, a)
	if err != nil {
		return nil, err
	}

	collections := make([]map[string]any, 0, len(tables))
	for _, t := range tables {
		fields := make(map[string]string, len(t.Columns))
		for _, c := range t.Columns {
			fields[c.Name] = c.DeclaredType
		}
		collections = append(collections, map[string]any{
			"name":   t.Name,
			"fields": fields,
		})
	}

	schema := map[string]any{
		"database":    a.config.Database,
		"collections": collections,
		"note":        "Document database - field types are sampled, not declared",
	}
	ddlBytes, _ := json.MarshalIndent(schema, "", "  ")

	return &domain.SchemaDescription{
		DatabaseType: a.DatabaseType(),
		Tables:       tables,
		DDL:          string(ddlBytes),
		CachedAt:     time.Now().UTC(),
	}, nil
}

// ValidateQuery enforces the read-only command policy. Unparseable command
// documents are classified as syntax errors so the synthesizer gets a
// chance to fix its JSON.
func (a *Adapter) ValidateQuery(command string) error {
	var cmd bson.D
	if err := bson.UnmarshalExtJSON([]byte(command), true, &cmd); err != nil {
		return domain.NewQueryError(domain.ErrKindSyntax,
			"invalid command: expected a single JSON object in runCommand form", err)
	}

	if len(cmd) == 0 {
		return domain.NewQueryError(domain.ErrKindSyntax, "empty command document", nil)
	}

	// Commands are order-sensitive; the first key names the command.
	commandName := cmd[0].Key

	allowedCommands := map[string]bool{
		"find":            true,
		"aggregate":       true,
		"count":           true,
		"distinct":        true,
		"listCollections": true,
		"buildInfo":       true,
		"collStats":       true,
		"dbStats":         true,
		"ping":            true,
	}

	if !allowedCommands[commandName] {
		return domain.NewQueryError(domain.ErrKindPermissionDenied,
			fmt.Sprintf("command %q is not allowed (read-only mode enabled)", commandName), nil)
	}

	// Writing through aggregation stages is still writing
	if commandName == "aggregate" {
		for _, elem := range cmd {
			if elem.Key == "pipeline" {
				if pipeline, ok := elem.Value.(bson.A); ok {
					for _, stage := range pipeline {
						if stageDoc, ok := stage.(bson.D); ok {
							for _, stageElem := range stageDoc {
								if stageElem.Key == "$out" || stageElem.Key == "$merge" {
									return domain.NewQueryError(domain.ErrKindPermissionDenied,
										fmt.Sprintf("aggregation stage %q is not allowed", stageElem.Key), nil)
								}
							}
						}
					}
				}
			}
		}
	}

	return nil
}

// ExecuteQuery runs a read-only command document. Cursor results are
// flattened into tabular form so downstream shape analysis can work with
// them: columns are the union of top-level fields in first-seen order.
func (a *Adapter) ExecuteQuery(ctx context.Context, command string, opts datasource.QueryOptions) (*domain.QueryResult, error) {
	if err := a.ValidateQuery(command); err != nil {
		return nil, err
	}

	var cmd bson.D
	if err := bson.UnmarshalExtJSON([]byte(command), true, &cmd); err != nil {
		return nil, domain.NewQueryError(domain.ErrKindSyntax, "failed to parse command JSON", err)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	res := a.db.RunCommand(ctx, cmd)
	if err := res.Err(); err != nil {
		return nil, classifyError(err)
	}

	var raw bson.M
	if err := res.Decode(&raw); err != nil {
		return nil, classifyError(err)
	}

	if cursor, ok := raw["cursor"].(bson.M); ok {
		if firstBatch, ok := cursor["firstBatch"].(bson.A); ok {
			return tabulate(firstBatch, opts.MaxRows), nil
		}
	}

	// Scalar command responses (count, distinct, stats) come back as a
	// single row of the response document.
	delete(raw, "ok")
	if values, ok := raw["values"].(bson.A); ok {
		// distinct
		rows := make([][]any, 0, len(values))
		for _, v := range values {
			if len(rows) >= opts.MaxRows {
				break
			}
			rows = append(rows, []any{normalizeValue(v)})
		}
		return &domain.QueryResult{
			Columns:   []string{"value"},
			Rows:      rows,
			RowCount:  len(rows),
			Truncated: len(values) > opts.MaxRows,
		}, nil
	}
	if n, ok := raw["n"]; ok {
		// count
		return &domain.QueryResult{
			Columns:  []string{"count"},
			Rows:     [][]any{{normalizeValue(n)}},
			RowCount: 1,
		}, nil
	}

	jsonBytes, _ := json.Marshal(raw)
	return &domain.QueryResult{
		Columns:  []string{"result"},
		Rows:     [][]any{{string(jsonBytes)}},
		RowCount: 1,
	}, nil
}

// tabulate flattens cursor documents into ordered rows and columns.
func tabulate(batch bson.A, maxRows int) *domain.QueryResult {
	var columns []string
	seen := make(map[string]int)

	docs := make([]bson.D, 0, len(batch))
	for _, item := range batch {
		doc, ok := item.(bson.D)
		if !ok {
			continue
		}
		docs = append(docs, doc)
		for _, elem := range doc {
			if _, ok := seen[elem.Key]; !ok {
				seen[elem.Key] = len(columns)
				columns = append(columns, elem.Key)
			}
		}
	}

	var rows [][]any
	for _, doc := range docs {
		if len(rows) >= maxRows {
			break
		}
		values := make([]any, len(columns))
		for _, elem := range doc {
			values[seen[elem.Key]] = normalizeValue(elem.Value)
		}
		rows = append(rows, values)
	}

	return &domain.QueryResult{
		Columns:   columns,
		Rows:      rows,
		RowCount:  len(rows),
		Truncated: len(docs) > maxRows,
	}
}

// normalizeValue converts BSON-specific values into plain Go values;
// nested documents and arrays become JSON strings.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Decimal128:
		return val.String()
	case bson.D, bson.A, bson.M:
		jsonBytes, _ := json.Marshal(val)
		return string(jsonBytes)
	default:
		return v
	}
}

func bsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case int32, int64, int:
		return "long"
	case float64:
		return "double"
	case bool:
		return "bool"
	case primitive.ObjectID:
		return "objectId"
	case primitive.DateTime:
		return "date"
	case primitive.Decimal128:
		return "decimal"
	case bson.D, bson.M:
		return "object"
	case bson.A:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// classifyError maps MongoDB command errors onto the domain taxonomy.
func classifyError(err error) *domain.QueryError {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return datasource.Classify(err)
	}

	switch cmdErr.Code {
	case 9, 14, 40323, 40324:
		// FailedToParse, TypeMismatch, unknown stage variants
		return domain.NewQueryError(domain.ErrKindSyntax, cmdErr.Message, err)
	case 26:
		// NamespaceNotFound
		return domain.NewQueryError(domain.ErrKindSchemaMismatch, cmdErr.Message, err)
	case 13, 18:
		// Unauthorized, AuthenticationFailed
		return domain.NewQueryError(domain.ErrKindPermissionDenied, cmdErr.Message, err)
	case 50:
		// MaxTimeMSExpired
		return domain.NewQueryError(domain.ErrKindTimeout, cmdErr.Message, err)
	}

	return domain.NewQueryError(domain.ErrKindOther, cmdErr.Message, err)
}
