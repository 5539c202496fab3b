package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/analyzer"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/observability"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/security"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/session"
)

const defaultSessionTitle = "New Chat"

// ErrSessionNotFound is returned when a session ID resolves to nothing.
var ErrSessionNotFound = errors.New("session not found")

// QueryService orchestrates a conversational turn: schema snapshot,
// context-aware synthesis, the validation loop, chart selection and turn
// persistence.
type QueryService struct {
	connectionService *ConnectionService
	dsRouter          *datasource.Router
	llmRouter         *llm.Router
	schemaCache       SchemaCache
	sessionRepo       domain.SessionRepository
	turnRepo          domain.TurnRepository
	sessions          *session.Manager
	analyzer          *analyzer.Analyzer
	executor          *Executor
	tokens            *security.TokenManager
}

// NewQueryService creates a new query service
func NewQueryService(
	connectionService *ConnectionService,
	dsRouter *datasource.Router,
	llmRouter *llm.Router,
	schemaCache SchemaCache,
	sessionRepo domain.SessionRepository,
	turnRepo domain.TurnRepository,
	sessions *session.Manager,
	chartAnalyzer *analyzer.Analyzer,
	executor *Executor,
	tokens *security.TokenManager,
) *QueryService {
	return &QueryService{
		connectionService: connectionService,
		dsRouter:          dsRouter,
		llmRouter:         llmRouter,
		schemaCache:       schemaCache,
		sessionRepo:       sessionRepo,
		turnRepo:          turnRepo,
		sessions:          sessions,
		analyzer:          chartAnalyzer,
		executor:          executor,
		tokens:            tokens,
	}
}

// Ask processes one conversational turn against the session's connection.
// The turn is recorded in the session context whether it succeeds or fails;
// follow-up questions may refer to either outcome.
func (s *QueryService) Ask(ctx context.Context, sessionID uuid.UUID, req domain.AskRequest) (*domain.QueryResponse, error) {
	startTime := time.Now()

	// 1. Load session
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	// 2. Resolve connection and adapter
	conn, password, err := s.connectionService.GetFullConnection(ctx, sess.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	adapter, err := s.dsRouter.GetAdapter(ctx, conn.ID, conn.DatabaseType, ConnectionConfigFor(conn, password))
	if err != nil {
		return nil, fmt.Errorf("failed to get database adapter: %w", err)
	}

	// 3. Schema snapshot. Introspection failures are fatal for the turn;
	// there is nothing to synthesize against.
	schema, err := s.getSchema(ctx, conn.ID, adapter)
	if err != nil {
		return nil, domain.NewQueryError(domain.ErrKindIntrospection, "failed to introspect schema", err)
	}

	// 4. Conversation context, snapshotted before synthesis so a
	// concurrent turn cannot reshape this one's prompt
	cc, err := s.sessions.Context(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to load session context")
		cc = session.NewConversationContext(0)
	}
	history := historyTurns(cc.Snapshot())

	// 5. Resolve provider and model
	providerName := req.LLMProvider
	if providerName == "" {
		providerName = sess.LLMProvider
	}
	provider, err := s.llmRouter.GetProvider(providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get LLM provider: %w", err)
	}
	providerName = provider.Name()

	modelName := req.LLMModel
	if modelName == "" {
		modelName = provider.DefaultModel()
	}

	// 6. Run the synthesize-validate-execute loop
	outcome := s.executor.Run(ctx, ExecutionInput{
		Provider: provider,
		Model:    modelName,
		Request: llm.Request{
			Question:     req.Question,
			SchemaDDL:    schema.DDL,
			SQLDialect:   adapter.SQLDialect(),
			DatabaseType: string(adapter.DatabaseType()),
			History:      history,
		},
		Adapter: adapter,
		Options: queryOptionsFor(conn),
	})

	response := &domain.QueryResponse{
		TurnID:    uuid.New(),
		SessionID: sessionID,
		Question:  req.Question,
		Attempts:  outcome.Attempts,
		Metadata: &domain.QueryMetadata{
			ConnectionID: conn.ID,
			DatabaseType: conn.DatabaseType,
			LLMProvider:  providerName,
			LLMModel:     modelName,
			LLMLatencyMs: outcome.LLMLatencyMs,
			TokensUsed:   outcome.TokensUsed,
			AttemptCount: len(outcome.Attempts),
			RetriesUsed:  outcome.RetriesUsed(),
		},
	}

	// 7. On success: chart selection and a short natural-language answer
	status := "failed"
	if outcome.Succeeded() {
		status = "succeeded"
		response.SQL = outcome.SQL
		response.Result = outcome.Result

		chart := s.analyzer.Analyze(outcome.Result)
		response.Chart = &chart
		observability.ObserveChart(string(chart.Kind))

		response.Answer = s.summarizeAnswer(ctx, provider, modelName, req.Question, outcome.SQL, outcome.Result)
	} else {
		response.Error = outcome.Failure
	}

	response.Metadata.ExecutionTimeMs = time.Since(startTime).Milliseconds()

	// 8. Persist the turn. Persistence failures are logged, not returned;
	// the user already has their answer.
	turn := turnRecord(sessionID, response, outcome)
	if err := s.turnRepo.Create(ctx, turn); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to save turn")
	}
	s.sessions.Record(sessionID, turn.ToConversationTurn())

	if err := s.sessionRepo.Touch(ctx, sessionID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to touch session")
	}

	// 9. First turn on a fresh session names it asynchronously
	if sess.TurnCount == 0 && (sess.Title == "" || sess.Title == defaultSessionTitle) {
		go s.generateSessionTitle(context.Background(), sessionID, req.Question, providerName, modelName)
	}

	observability.ObserveTurn(string(conn.DatabaseType), status, len(outcome.Attempts), time.Since(startTime))
	observability.ObserveLLM(providerName, time.Duration(outcome.LLMLatencyMs)*time.Millisecond, outcome.TokensUsed)

	return response, nil
}

// Generate produces a statement for a question without executing it. The
// read-only guard still applies; a destructive statement is rejected here
// exactly as it would be inside a session.
func (s *QueryService) Generate(ctx context.Context, connectionID uuid.UUID, req domain.GenerateRequest) (*domain.GenerateResponse, error) {
	startTime := time.Now()

	conn, password, err := s.connectionService.GetFullConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	adapter, err := s.dsRouter.GetAdapter(ctx, conn.ID, conn.DatabaseType, ConnectionConfigFor(conn, password))
	if err != nil {
		return nil, fmt.Errorf("failed to get database adapter: %w", err)
	}

	schema, err := s.getSchema(ctx, conn.ID, adapter)
	if err != nil {
		return nil, domain.NewQueryError(domain.ErrKindIntrospection, "failed to introspect schema", err)
	}

	provider, err := s.llmRouter.GetProvider(req.LLMProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get LLM provider: %w", err)
	}
	modelName := req.LLMModel
	if modelName == "" {
		modelName = provider.DefaultModel()
	}

	llmResp, err := provider.GenerateSQL(ctx, llm.Request{
		Question:     req.Question,
		SchemaDDL:    schema.DDL,
		SQLDialect:   adapter.SQLDialect(),
		DatabaseType: string(adapter.DatabaseType()),
	}, modelName)
	if err != nil {
		return nil, domain.NewQueryError(domain.ErrKindSynthesis, "statement generation failed", err)
	}

	if err := adapter.ValidateQuery(llmResp.SQL); err != nil {
		qerr := datasource.Classify(err)
		qerr.SQL = llmResp.SQL
		return nil, qerr
	}

	observability.ObserveLLM(provider.Name(), time.Duration(llmResp.LatencyMs)*time.Millisecond, llmResp.TokensUsed)

	return &domain.GenerateResponse{
		Question: req.Question,
		SQL:      llmResp.SQL,
		Metadata: &domain.QueryMetadata{
			ConnectionID:    conn.ID,
			DatabaseType:    conn.DatabaseType,
			LLMProvider:     provider.Name(),
			LLMModel:        modelName,
			ExecutionTimeMs: time.Since(startTime).Milliseconds(),
			LLMLatencyMs:    llmResp.LatencyMs,
			TokensUsed:      llmResp.TokensUsed,
		},
	}, nil
}

// getSchema retrieves the schema snapshot from cache or the data source
func (s *QueryService) getSchema(ctx context.Context, connectionID uuid.UUID, adapter datasource.Adapter) (*domain.SchemaDescription, error) {
	// Try cache first
	if s.schemaCache != nil {
		cached, err := s.schemaCache.Get(ctx, connectionID)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	schema, err := adapter.Introspect(ctx)
	if err != nil {
		return nil, err
	}

	if s.schemaCache != nil {
		if err := s.schemaCache.Set(ctx, connectionID, schema); err != nil {
			log.Error().Err(err).Str("connection_id", connectionID.String()).Msg("failed to cache schema")
		}
	}

	return schema, nil
}

// RefreshSchema forces a fresh snapshot for a connection
func (s *QueryService) RefreshSchema(ctx context.Context, connectionID uuid.UUID) (*domain.SchemaDescription, error) {
	if s.schemaCache != nil {
		if err := s.schemaCache.Invalidate(ctx, connectionID); err != nil {
			log.Error().Err(err).Str("connection_id", connectionID.String()).Msg("failed to invalidate schema cache")
		}
	}

	conn, password, err := s.connectionService.GetFullConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	adapter, err := s.dsRouter.GetAdapter(ctx, conn.ID, conn.DatabaseType, ConnectionConfigFor(conn, password))
	if err != nil {
		return nil, fmt.Errorf("failed to get database adapter: %w", err)
	}

	return s.getSchema(ctx, connectionID, adapter)
}

// GetSchema returns the cached snapshot, introspecting on a miss
func (s *QueryService) GetSchema(ctx context.Context, connectionID uuid.UUID) (*domain.SchemaDescription, error) {
	if s.schemaCache != nil {
		cached, err := s.schemaCache.Get(ctx, connectionID)
		if err == nil && cached != nil {
			return cached, nil
		}
	}
	return s.RefreshSchema(ctx, connectionID)
}

// CreateSession creates a chat session bound to a connection and mints its
// session token.
func (s *QueryService) CreateSession(ctx context.Context, input domain.SessionCreate) (*domain.ChatSession, string, error) {
	// The connection must exist before a conversation can bind to it
	if _, err := s.connectionService.GetByID(ctx, input.ConnectionID); err != nil {
		return nil, "", err
	}

	title := input.Title
	if title == "" {
		title = defaultSessionTitle
	}

	now := time.Now()
	sess := &domain.ChatSession{
		ID:           uuid.New(),
		ConnectionID: input.ConnectionID,
		Title:        title,
		LLMProvider:  input.LLMProvider,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.tokens.MintSessionToken(sess.ID, sess.ConnectionID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to mint session token: %w", err)
	}

	return sess, token, nil
}

// ListSessions lists sessions, newest activity first
func (s *QueryService) ListSessions(ctx context.Context, limit, offset int) ([]domain.ChatSession, error) {
	return s.sessionRepo.List(ctx, limit, offset)
}

// ListSessionsByConnection lists sessions bound to one connection
func (s *QueryService) ListSessionsByConnection(ctx context.Context, connectionID uuid.UUID, limit, offset int) ([]domain.ChatSession, error) {
	return s.sessionRepo.ListByConnection(ctx, connectionID, limit, offset)
}

// GetSession retrieves a chat session
func (s *QueryService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.ChatSession, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// DeleteSession deletes a session, its turns and its live context window
func (s *QueryService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.turnRepo.DeleteBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session turns: %w", err)
	}
	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.sessions.Forget(sessionID)
	return nil
}

// GetSessionTurns retrieves the persisted turns of a session, oldest first
func (s *QueryService) GetSessionTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.turnRepo.ListBySession(ctx, sessionID, limit)
}

// GetSuggestedQuestions returns the questions asked most often against a
// connection.
func (s *QueryService) GetSuggestedQuestions(ctx context.Context, connectionID uuid.UUID) ([]string, error) {
	// Limit to top 5 frequent questions
	return s.turnRepo.GetMostFrequentQuestions(ctx, connectionID, 5)
}

// summarizeAnswer asks the model for a short answer grounded in the result
// sample. Summarization is best-effort: when the call fails the turn still
// succeeds with a deterministic fallback.
func (s *QueryService) summarizeAnswer(ctx context.Context, provider llm.Provider, model, question, sql string, result *domain.QueryResult) string {
	const system = "You are a data analyst. Answer the user's question in one or two sentences using only the rows provided. Do not mention SQL."

	prompt := llm.BuildSummaryPrompt(question, sql, result.Columns, result.Rows, result.RowCount)
	answer, err := provider.Complete(ctx, system, prompt, model)
	if err != nil {
		log.Error().Err(err).Msg("failed to summarize result")
		return fallbackAnswer(result)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fallbackAnswer(result)
	}
	return answer
}

// generateSessionTitle names a session after its first question
func (s *QueryService) generateSessionTitle(ctx context.Context, sessionID uuid.UUID, question, providerName, modelName string) {
	provider, err := s.llmRouter.GetProvider(providerName)
	if err != nil {
		log.Error().Err(err).Str("provider", providerName).Msg("failed to get LLM provider for title generation")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	const system = "You generate short titles for data analysis conversations."
	title, err := provider.Complete(ctx, system, llm.BuildTitlePrompt(question), modelName)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session title")
		return
	}

	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if title == "" {
		return
	}
	if len(title) > 80 {
		title = title[:80]
	}

	if err := s.sessionRepo.UpdateTitle(ctx, sessionID, title); err != nil {
		log.Error().Err(err).Msg("failed to update session title")
		return
	}

	log.Info().Str("session_id", sessionID.String()).Str("title", title).Msg("updated session title")
}

// turnRecord builds the persisted record of a completed exchange
func turnRecord(sessionID uuid.UUID, response *domain.QueryResponse, outcome *ExecutionOutcome) *domain.Turn {
	turn := &domain.Turn{
		ID:           response.TurnID,
		SessionID:    sessionID,
		Question:     response.Question,
		Answer:       response.Answer,
		SQL:          response.SQL,
		AttemptCount: len(outcome.Attempts),
		CreatedAt:    time.Now(),
	}

	if outcome.Succeeded() {
		turn.ResultSummary = abbreviateResult(outcome.Result)
		if response.Chart != nil {
			turn.ChartKind = response.Chart.Kind
		}
	} else if outcome.Failure != nil {
		turn.ResultSummary = fmt.Sprintf("failed (%s)", outcome.Failure.Kind)
		turn.ErrorKind = outcome.Failure.Kind
		turn.ErrorDetail = outcome.Failure.Detail
	}

	return turn
}

// abbreviateResult is the compact result description kept in the
// conversation context. Full result sets never enter the context.
func abbreviateResult(result *domain.QueryResult) string {
	if result == nil || result.RowCount == 0 {
		return "no rows"
	}

	cols := result.Columns
	suffix := ""
	if len(cols) > 6 {
		cols = cols[:6]
		suffix = ", ..."
	}

	summary := fmt.Sprintf("%d rows (%s%s)", result.RowCount, strings.Join(cols, ", "), suffix)
	if result.Truncated {
		summary += ", truncated"
	}
	return summary
}

// fallbackAnswer is the deterministic answer used when summarization is
// unavailable.
func fallbackAnswer(result *domain.QueryResult) string {
	if result == nil || result.RowCount == 0 {
		return "The query returned no rows."
	}
	if result.RowCount == 1 && len(result.Columns) == 1 && len(result.Rows) == 1 {
		return fmt.Sprintf("The answer is %v.", result.Rows[0][0])
	}
	if result.Truncated {
		return fmt.Sprintf("The query returned %d rows (truncated).", result.RowCount)
	}
	return fmt.Sprintf("The query returned %d rows.", result.RowCount)
}

func historyTurns(turns []domain.ConversationTurn) []llm.Turn {
	if len(turns) == 0 {
		return nil
	}
	history := make([]llm.Turn, len(turns))
	for i, t := range turns {
		history[i] = llm.Turn{
			Question:      t.Question,
			SQL:           t.SQL,
			ResultSummary: t.ResultSummary,
		}
	}
	return history
}

func queryOptionsFor(conn *domain.Connection) datasource.QueryOptions {
	return datasource.QueryOptions{
		MaxRows: conn.MaxRows,
		Timeout: time.Duration(conn.TimeoutSeconds) * time.Second,
	}
}
