package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
)

// MockSessionRepo mocks the SessionRepository interface
type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) Create(ctx context.Context, session *domain.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepo) List(ctx context.Context, limit, offset int) ([]domain.ChatSession, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepo) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit, offset int) ([]domain.ChatSession, error) {
	args := m.Called(ctx, connectionID, limit, offset)
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepo) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	args := m.Called(ctx, id, title)
	return args.Error(0)
}

func (m *MockSessionRepo) Touch(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockTurnRepo mocks the TurnRepository interface
type MockTurnRepo struct {
	mock.Mock
}

func (m *MockTurnRepo) Create(ctx context.Context, turn *domain.Turn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}

func (m *MockTurnRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Turn, error) {
	args := m.Called(ctx, sessionID, limit)
	return args.Get(0).([]domain.Turn), args.Error(1)
}

func (m *MockTurnRepo) GetMostFrequentQuestions(ctx context.Context, connectionID uuid.UUID, limit int) ([]string, error) {
	args := m.Called(ctx, connectionID, limit)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTurnRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// MockConnectionRepo mocks the ConnectionRepository interface
type MockConnectionRepo struct {
	mock.Mock
}

func (m *MockConnectionRepo) Create(ctx context.Context, conn *domain.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Connection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Connection), args.Error(1)
}

func (m *MockConnectionRepo) List(ctx context.Context) ([]domain.Connection, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Connection), args.Error(1)
}

func (m *MockConnectionRepo) Update(ctx context.Context, id uuid.UUID, conn *domain.Connection) error {
	args := m.Called(ctx, id, conn)
	return args.Error(0)
}

func (m *MockConnectionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// memSchemaCache is an in-memory SchemaCache.
type memSchemaCache struct {
	entries map[uuid.UUID]*domain.SchemaDescription
	sets    int
	hits    int
}

func newMemSchemaCache() *memSchemaCache {
	return &memSchemaCache{entries: make(map[uuid.UUID]*domain.SchemaDescription)}
}

func (c *memSchemaCache) Get(ctx context.Context, connectionID uuid.UUID) (*domain.SchemaDescription, error) {
	if entry, ok := c.entries[connectionID]; ok {
		c.hits++
		return entry, nil
	}
	return nil, nil
}

func (c *memSchemaCache) Set(ctx context.Context, connectionID uuid.UUID, schema *domain.SchemaDescription) error {
	c.entries[connectionID] = schema
	c.sets++
	return nil
}

func (c *memSchemaCache) Invalidate(ctx context.Context, connectionID uuid.UUID) error {
	delete(c.entries, connectionID)
	return nil
}

// scriptedProvider returns canned statements in sequence, so the loop's
// retry behavior can be driven deterministically.
type scriptedProvider struct {
	name          string
	sqls          []string
	genErr        error
	completeText  string
	completeErr   error
	requests      []llm.Request
	genCalls      int
	completeCalls int
}

func (p *scriptedProvider) Name() string {
	if p.name == "" {
		return "scripted"
	}
	return p.name
}

func (p *scriptedProvider) AvailableModels() []string { return []string{"scripted-default"} }
func (p *scriptedProvider) DefaultModel() string      { return "scripted-default" }
func (p *scriptedProvider) IsConfigured() bool        { return true }

func (p *scriptedProvider) GenerateSQL(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	p.requests = append(p.requests, req)
	p.genCalls++
	if p.genErr != nil {
		return nil, p.genErr
	}

	idx := p.genCalls - 1
	if idx >= len(p.sqls) {
		idx = len(p.sqls) - 1
	}

	return &llm.Response{
		SQL:        p.sqls[idx],
		Model:      model,
		TokensUsed: 10,
		LatencyMs:  5,
	}, nil
}

func (p *scriptedProvider) Complete(ctx context.Context, system, prompt, model string) (string, error) {
	p.completeCalls++
	if p.completeErr != nil {
		return "", p.completeErr
	}
	return p.completeText, nil
}

// stubAdapter is an in-memory data source: canned results and errors keyed
// by statement. Validation delegates to the real read-only guard so guard
// rejections flow through the loop exactly as they would in production.
type stubAdapter struct {
	dbType        domain.DatabaseType
	results       map[string]*domain.QueryResult
	execErrs      map[string]error
	execCalls     []string
	introspectErr error
	connectErr    error
}

func (a *stubAdapter) DatabaseType() domain.DatabaseType {
	if a.dbType == "" {
		return domain.DatabaseTypePostgres
	}
	return a.dbType
}

func (a *stubAdapter) SQLDialect() string {
	return "Use standard SQL."
}

func (a *stubAdapter) Connect(ctx context.Context, config datasource.ConnectionConfig) error {
	return a.connectErr
}

func (a *stubAdapter) Close() error                          { return nil }
func (a *stubAdapter) HealthCheck(ctx context.Context) error { return nil }

func (a *stubAdapter) ListTables(ctx context.Context) ([]string, error) {
	return []string{"products"}, nil
}

func (a *stubAdapter) DescribeTable(ctx context.Context, tableName string) (*domain.TableDescriptor, error) {
	return &domain.TableDescriptor{
		Name: tableName,
		Columns: []domain.ColumnDescriptor{
			{Name: "id", DeclaredType: "integer", PrimaryKey: true},
			{Name: "name", DeclaredType: "text", Nullable: true},
			{Name: "price", DeclaredType: "numeric", Nullable: true},
		},
	}, nil
}

func (a *stubAdapter) Introspect(ctx context.Context) (*domain.SchemaDescription, error) {
	if a.introspectErr != nil {
		return nil, a.introspectErr
	}
	return datasource.BuildSchema(ctx, a)
}

func (a *stubAdapter) ValidateQuery(sql string) error {
	return datasource.ValidateSQL(sql, nil)
}

func (a *stubAdapter) ExecuteQuery(ctx context.Context, sql string, opts datasource.QueryOptions) (*domain.QueryResult, error) {
	a.execCalls = append(a.execCalls, sql)
	if err, ok := a.execErrs[sql]; ok {
		return nil, err
	}
	if result, ok := a.results[sql]; ok {
		return result, nil
	}
	return &domain.QueryResult{Columns: []string{"value"}, Rows: [][]any{}, RowCount: 0}, nil
}
