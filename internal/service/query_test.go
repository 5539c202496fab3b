package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/analyzer"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/security"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/session"
)

type queryFixture struct {
	svc         *QueryService
	provider    *scriptedProvider
	adapter     *stubAdapter
	sessionRepo *MockSessionRepo
	turnRepo    *MockTurnRepo
	connRepo    *MockConnectionRepo
	schemaCache *memSchemaCache
	tokens      *security.TokenManager
	sessionID   uuid.UUID
	connID      uuid.UUID
	savedTurns  []*domain.Turn
}

// newQueryFixture wires a QueryService from real components with a scripted
// provider, an in-memory adapter and mocked repositories.
func newQueryFixture(t *testing.T, provider *scriptedProvider, adapter *stubAdapter) *queryFixture {
	t.Helper()

	encryptor, err := security.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	creds, err := encryptor.EncryptJSON(map[string]string{"password": "secret"})
	require.NoError(t, err)

	f := &queryFixture{
		provider:    provider,
		adapter:     adapter,
		sessionRepo: new(MockSessionRepo),
		turnRepo:    new(MockTurnRepo),
		connRepo:    new(MockConnectionRepo),
		schemaCache: newMemSchemaCache(),
		tokens:      security.NewTokenManager("test-secret", time.Hour),
		sessionID:   uuid.New(),
		connID:      uuid.New(),
	}

	conn := &domain.Connection{
		ID:                   f.connID,
		Name:                 "shop",
		DatabaseType:         domain.DatabaseTypePostgres,
		Host:                 "localhost",
		Port:                 5432,
		Database:             "shop",
		Username:             "app",
		CredentialsEncrypted: creds,
		MaxRows:              1000,
		TimeoutSeconds:       30,
	}
	f.connRepo.On("GetByID", mock.Anything, f.connID).Return(conn, nil)

	// TurnCount above zero keeps the async title goroutine out of the test
	sess := &domain.ChatSession{
		ID:           f.sessionID,
		ConnectionID: f.connID,
		Title:        "Products",
		TurnCount:    3,
	}
	f.sessionRepo.On("Get", mock.Anything, f.sessionID).Return(sess, nil)
	f.sessionRepo.On("Touch", mock.Anything, f.sessionID).Return(nil)

	f.turnRepo.On("ListBySession", mock.Anything, f.sessionID, mock.AnythingOfType("int")).Return([]domain.Turn{}, nil)
	f.turnRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Turn")).Run(func(args mock.Arguments) {
		f.savedTurns = append(f.savedTurns, args.Get(1).(*domain.Turn))
	}).Return(nil)

	dsRouter := datasource.NewRouter()
	dsRouter.RegisterAdapter(domain.DatabaseTypePostgres, func() datasource.Adapter { return adapter })

	llmRouter := llm.NewRouter("scripted")
	llmRouter.RegisterProvider(provider, 0)

	connectionService := NewConnectionService(f.connRepo, dsRouter, f.schemaCache, encryptor, 1000, 30)
	sessions := session.NewManager(f.turnRepo, 6, 0, 0)

	f.svc = NewQueryService(
		connectionService,
		dsRouter,
		llmRouter,
		f.schemaCache,
		f.sessionRepo,
		f.turnRepo,
		sessions,
		analyzer.New(0, 0, 0),
		NewExecutor(2),
		f.tokens,
	)
	return f
}

func TestQueryService_Ask_BarChart(t *testing.T) {
	const sql = "SELECT name, price FROM products ORDER BY price DESC LIMIT 5"

	provider := &scriptedProvider{
		sqls:         []string{sql},
		completeText: "The most expensive product is the Laptop at 999.",
	}
	adapter := &stubAdapter{
		results: map[string]*domain.QueryResult{
			sql: {
				Columns: []string{"name", "price"},
				Rows: [][]any{
					{"Laptop", 999.0},
					{"Phone", 799.0},
					{"Tablet", 499.0},
					{"Monitor", 299.0},
					{"Keyboard", 99.0},
				},
				RowCount: 5,
			},
		},
	}

	f := newQueryFixture(t, provider, adapter)

	resp, err := f.svc.Ask(context.Background(), f.sessionID, domain.AskRequest{Question: "What are the most expensive products?"})
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	assert.Equal(t, sql, resp.SQL)
	assert.Equal(t, "The most expensive product is the Laptop at 999.", resp.Answer)
	require.NotNil(t, resp.Chart)
	assert.Equal(t, domain.ChartBar, resp.Chart.Kind)
	assert.Equal(t, "name", resp.Chart.XField)
	assert.Equal(t, "price", resp.Chart.YField)

	assert.Equal(t, 1, resp.Metadata.AttemptCount)
	assert.Equal(t, 0, resp.Metadata.RetriesUsed)
	assert.Equal(t, "scripted", resp.Metadata.LLMProvider)
	assert.Equal(t, domain.DatabaseTypePostgres, resp.Metadata.DatabaseType)

	require.Len(t, f.savedTurns, 1)
	turn := f.savedTurns[0]
	assert.Equal(t, sql, turn.SQL)
	assert.Equal(t, domain.ChartBar, turn.ChartKind)
	assert.Equal(t, "5 rows (name, price)", turn.ResultSummary)

	assert.Equal(t, 1, f.schemaCache.sets, "first turn introspects and caches the schema")
	f.sessionRepo.AssertCalled(t, "Touch", mock.Anything, f.sessionID)
}

func TestQueryService_Ask_PieChartForAdditiveShares(t *testing.T) {
	const sql = "SELECT region, total_sales FROM sales GROUP BY region LIMIT 10"

	provider := &scriptedProvider{sqls: []string{sql}, completeText: "The North region leads."}
	adapter := &stubAdapter{
		results: map[string]*domain.QueryResult{
			sql: {
				Columns: []string{"region", "total_sales"},
				Rows: [][]any{
					{"North", 120000.0},
					{"South", 80000.0},
					{"East", 60000.0},
					{"West", 40000.0},
				},
				RowCount: 4,
			},
		},
	}

	f := newQueryFixture(t, provider, adapter)

	resp, err := f.svc.Ask(context.Background(), f.sessionID, domain.AskRequest{Question: "Sales by region?"})
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Chart)
	assert.Equal(t, domain.ChartPie, resp.Chart.Kind)
}

func TestQueryService_Ask_SecondTurnSeesHistory(t *testing.T) {
	const sql = "SELECT name, price FROM products ORDER BY price DESC LIMIT 5"

	provider := &scriptedProvider{sqls: []string{sql}, completeText: "Laptops lead."}
	adapter := &stubAdapter{
		results: map[string]*domain.QueryResult{
			sql: {
				Columns:  []string{"name", "price"},
				Rows:     [][]any{{"Laptop", 999.0}, {"Phone", 799.0}},
				RowCount: 2,
			},
		},
	}

	f := newQueryFixture(t, provider, adapter)
	ctx := context.Background()

	_, err := f.svc.Ask(ctx, f.sessionID, domain.AskRequest{Question: "What are the top products?"})
	require.NoError(t, err)

	_, err = f.svc.Ask(ctx, f.sessionID, domain.AskRequest{Question: "And the cheapest of those?"})
	require.NoError(t, err)

	require.Len(t, provider.requests, 2)
	assert.Empty(t, provider.requests[0].History)

	history := provider.requests[1].History
	require.Len(t, history, 1)
	assert.Equal(t, "What are the top products?", history[0].Question)
	assert.Equal(t, sql, history[0].SQL)
	assert.Equal(t, "2 rows (name, price)", history[0].ResultSummary)

	assert.GreaterOrEqual(t, f.schemaCache.hits, 1, "second turn reuses the cached schema")
}

func TestQueryService_Ask_FailureRecordsTurn(t *testing.T) {
	provider := &scriptedProvider{genErr: errors.New("upstream rate limited")}
	f := newQueryFixture(t, provider, &stubAdapter{})

	resp, err := f.svc.Ask(context.Background(), f.sessionID, domain.AskRequest{Question: "Will this fail?"})
	require.NoError(t, err, "pipeline failures are reported in the response, not as transport errors")
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.ErrKindSynthesis, resp.Error.Kind)
	assert.Empty(t, resp.SQL)
	assert.Nil(t, resp.Result)
	assert.Nil(t, resp.Chart)

	require.Len(t, f.savedTurns, 1)
	turn := f.savedTurns[0]
	assert.Equal(t, "Will this fail?", turn.Question)
	assert.Empty(t, turn.SQL)
	assert.Equal(t, domain.ErrKindSynthesis, turn.ErrorKind)
	assert.Equal(t, "failed (synthesis_error)", turn.ResultSummary)
}

func TestQueryService_Ask_FailedTurnEntersContext(t *testing.T) {
	const sql = "SELECT name FROM products LIMIT 5"

	provider := &scriptedProvider{genErr: errors.New("upstream rate limited")}
	adapter := &stubAdapter{
		results: map[string]*domain.QueryResult{
			sql: {Columns: []string{"name"}, Rows: [][]any{{"Laptop"}}, RowCount: 1},
		},
	}

	f := newQueryFixture(t, provider, adapter)
	ctx := context.Background()

	_, err := f.svc.Ask(ctx, f.sessionID, domain.AskRequest{Question: "First try"})
	require.NoError(t, err)

	// The provider recovers; the follow-up prompt must still show the
	// failed exchange so the model can react to it
	provider.genErr = nil
	provider.sqls = []string{sql}

	_, err = f.svc.Ask(ctx, f.sessionID, domain.AskRequest{Question: "Try again"})
	require.NoError(t, err)

	require.Len(t, provider.requests, 2)
	history := provider.requests[1].History
	require.Len(t, history, 1)
	assert.Equal(t, "First try", history[0].Question)
	assert.Empty(t, history[0].SQL)
	assert.Equal(t, "failed (synthesis_error)", history[0].ResultSummary)
}

func TestQueryService_Ask_IntrospectionFailureIsFatal(t *testing.T) {
	provider := &scriptedProvider{sqls: []string{"SELECT 1"}}
	adapter := &stubAdapter{introspectErr: errors.New("connection reset during introspection")}

	f := newQueryFixture(t, provider, adapter)

	resp, err := f.svc.Ask(context.Background(), f.sessionID, domain.AskRequest{Question: "Anything"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, domain.ErrKindIntrospection, domain.KindOf(err))
	assert.Zero(t, provider.genCalls, "no synthesis without a schema snapshot")
	f.turnRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestQueryService_Ask_EmptyResultFallbackAnswer(t *testing.T) {
	const sql = "SELECT name FROM products WHERE price > 100000 LIMIT 5"

	provider := &scriptedProvider{
		sqls:        []string{sql},
		completeErr: errors.New("summarizer offline"),
	}
	adapter := &stubAdapter{
		results: map[string]*domain.QueryResult{
			sql: {Columns: []string{"name"}, Rows: [][]any{}, RowCount: 0},
		},
	}

	f := newQueryFixture(t, provider, adapter)

	resp, err := f.svc.Ask(context.Background(), f.sessionID, domain.AskRequest{Question: "Any products over 100k?"})
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Equal(t, "The query returned no rows.", resp.Answer)
	require.NotNil(t, resp.Chart)
	assert.Equal(t, domain.ChartNone, resp.Chart.Kind)
}

func TestQueryService_Generate_NeverExecutes(t *testing.T) {
	const sql = "SELECT name, price FROM products ORDER BY price DESC LIMIT 5"

	provider := &scriptedProvider{sqls: []string{sql}}
	adapter := &stubAdapter{}
	f := newQueryFixture(t, provider, adapter)

	resp, err := f.svc.Generate(context.Background(), f.connID, domain.GenerateRequest{Question: "Top products?"})
	require.NoError(t, err)
	assert.Equal(t, sql, resp.SQL)
	assert.Empty(t, adapter.execCalls, "Generate must not touch the data source")
}

func TestQueryService_Generate_RejectsDestructiveStatement(t *testing.T) {
	provider := &scriptedProvider{sqls: []string{"DELETE FROM products"}}
	adapter := &stubAdapter{}
	f := newQueryFixture(t, provider, adapter)

	_, err := f.svc.Generate(context.Background(), f.connID, domain.GenerateRequest{Question: "Remove everything"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindPermissionDenied, domain.KindOf(err))
	assert.Empty(t, adapter.execCalls)
}

func TestQueryService_CreateSession(t *testing.T) {
	provider := &scriptedProvider{}
	f := newQueryFixture(t, provider, &stubAdapter{})
	ctx := context.Background()

	t.Run("success mints a session token", func(t *testing.T) {
		f.sessionRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.ChatSession")).Return(nil)

		sess, token, err := f.svc.CreateSession(ctx, domain.SessionCreate{
			ConnectionID: f.connID,
			Title:        "Sales digging",
		})
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "Sales digging", sess.Title)
		assert.Equal(t, f.connID, sess.ConnectionID)

		claims, err := f.tokens.ValidateSessionToken(token)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, claims.SessionID)
		assert.Equal(t, f.connID, claims.ConnectionID)
	})

	t.Run("default title", func(t *testing.T) {
		f.sessionRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.ChatSession")).Return(nil)

		sess, _, err := f.svc.CreateSession(ctx, domain.SessionCreate{ConnectionID: f.connID})
		require.NoError(t, err)
		assert.Equal(t, "New Chat", sess.Title)
	})

	t.Run("unknown connection", func(t *testing.T) {
		missing := uuid.New()
		f.connRepo.On("GetByID", mock.Anything, missing).Return(nil, nil)

		_, _, err := f.svc.CreateSession(ctx, domain.SessionCreate{ConnectionID: missing})
		assert.ErrorIs(t, err, ErrConnectionNotFound)
	})
}

func TestQueryService_DeleteSession_ForgetsContext(t *testing.T) {
	provider := &scriptedProvider{}
	f := newQueryFixture(t, provider, &stubAdapter{})
	ctx := context.Background()

	f.svc.sessions.Record(f.sessionID, domain.ConversationTurn{Question: "warm"})
	require.Equal(t, 1, f.svc.sessions.LiveCount())

	f.turnRepo.On("DeleteBySession", mock.Anything, f.sessionID).Return(nil)
	f.sessionRepo.On("Delete", mock.Anything, f.sessionID).Return(nil)

	require.NoError(t, f.svc.DeleteSession(ctx, f.sessionID))

	assert.Equal(t, 0, f.svc.sessions.LiveCount())
	f.turnRepo.AssertCalled(t, "DeleteBySession", mock.Anything, f.sessionID)
	f.sessionRepo.AssertCalled(t, "Delete", mock.Anything, f.sessionID)
}

func TestQueryService_GetSuggestedQuestions(t *testing.T) {
	turnRepo := new(MockTurnRepo)
	svc := &QueryService{turnRepo: turnRepo}

	ctx := context.Background()
	connID := uuid.New()

	turnRepo.On("GetMostFrequentQuestions", ctx, connID, 5).
		Return([]string{"What are total sales?", "Top customers?"}, nil)

	questions, err := svc.GetSuggestedQuestions(ctx, connID)
	require.NoError(t, err)
	assert.Equal(t, []string{"What are total sales?", "Top customers?"}, questions)
	turnRepo.AssertExpectations(t)
}

func TestQueryService_GenerateSessionTitle(t *testing.T) {
	provider := &scriptedProvider{completeText: `"Quarterly Sales Overview"`}
	f := newQueryFixture(t, provider, &stubAdapter{})

	f.sessionRepo.On("UpdateTitle", mock.Anything, f.sessionID, "Quarterly Sales Overview").Return(nil)

	f.svc.generateSessionTitle(context.Background(), f.sessionID, "How did sales do this quarter?", "scripted", "scripted-default")

	f.sessionRepo.AssertCalled(t, "UpdateTitle", mock.Anything, f.sessionID, "Quarterly Sales Overview")
	assert.Equal(t, 1, provider.completeCalls)
}

func TestConnectionService_EncryptsAndDecryptsCredentials(t *testing.T) {
	encryptor, err := security.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	connRepo := new(MockConnectionRepo)
	svc := NewConnectionService(connRepo, datasource.NewRouter(), newMemSchemaCache(), encryptor, 1000, 30)
	ctx := context.Background()

	var stored *domain.Connection
	connRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Connection")).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.Connection)
	}).Return(nil)

	info, err := svc.Create(ctx, domain.ConnectionCreate{
		Name:         "warehouse",
		DatabaseType: domain.DatabaseTypePostgres,
		Host:         "db.internal",
		Port:         5432,
		Database:     "warehouse",
		Username:     "reader",
		Password:     "s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, info.MaxRows, "zero max rows falls back to the service default")

	require.NotNil(t, stored)
	assert.NotContains(t, string(stored.CredentialsEncrypted), "s3cret")

	connRepo.On("GetByID", mock.Anything, stored.ID).Return(stored, nil)

	_, password, err := svc.GetFullConnection(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", password)
}

func TestConnectionService_TestConnection(t *testing.T) {
	encryptor, err := security.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	creds, err := encryptor.EncryptJSON(map[string]string{"password": "secret"})
	require.NoError(t, err)

	connID := uuid.New()
	conn := &domain.Connection{
		ID:                   connID,
		DatabaseType:         domain.DatabaseTypePostgres,
		CredentialsEncrypted: creds,
	}

	connRepo := new(MockConnectionRepo)
	connRepo.On("GetByID", mock.Anything, connID).Return(conn, nil)

	t.Run("healthy", func(t *testing.T) {
		dsRouter := datasource.NewRouter()
		dsRouter.RegisterAdapter(domain.DatabaseTypePostgres, func() datasource.Adapter { return &stubAdapter{} })
		svc := NewConnectionService(connRepo, dsRouter, newMemSchemaCache(), encryptor, 1000, 30)

		assert.NoError(t, svc.TestConnection(context.Background(), connID))
	})

	t.Run("unreachable", func(t *testing.T) {
		dsRouter := datasource.NewRouter()
		dsRouter.RegisterAdapter(domain.DatabaseTypePostgres, func() datasource.Adapter {
			return &stubAdapter{connectErr: errors.New("dial tcp: connection refused")}
		})
		svc := NewConnectionService(connRepo, dsRouter, newMemSchemaCache(), encryptor, 1000, 30)

		err := svc.TestConnection(context.Background(), connID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection failed")
	})
}

func TestFallbackAnswer(t *testing.T) {
	assert.Equal(t, "The query returned no rows.", fallbackAnswer(nil))
	assert.Equal(t, "The query returned no rows.", fallbackAnswer(&domain.QueryResult{RowCount: 0}))
	assert.Equal(t, "The answer is 42.", fallbackAnswer(&domain.QueryResult{
		Columns:  []string{"count"},
		Rows:     [][]any{{42}},
		RowCount: 1,
	}))
	assert.Equal(t, "The query returned 7 rows.", fallbackAnswer(&domain.QueryResult{
		Columns:  []string{"a", "b"},
		Rows:     make([][]any, 7),
		RowCount: 7,
	}))
}

func TestAbbreviateResult(t *testing.T) {
	assert.Equal(t, "no rows", abbreviateResult(nil))
	assert.Equal(t, "3 rows (name, price)", abbreviateResult(&domain.QueryResult{
		Columns:  []string{"name", "price"},
		Rows:     make([][]any, 3),
		RowCount: 3,
	}))
	assert.Equal(t, "2 rows (a, b, c, d, e, f, ...), truncated", abbreviateResult(&domain.QueryResult{
		Columns:   []string{"a", "b", "c", "d", "e", "f", "g"},
		Rows:      make([][]any, 2),
		RowCount:  2,
		Truncated: true,
	}))
}
