package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealmate/internal/db"
	"github.com/sells-group/dealmate/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, document_id, deal_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_run_report": `UPDATE runs SET report = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, document_id, deal_id, status, report, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_agent_run":  `INSERT INTO agent_runs (id, document_id, deal_id, agent, attempt, status, input_payload, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	deal_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL,
	text       TEXT NOT NULL,
	byte_size  INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id TEXT NOT NULL REFERENCES documents(id),
	deal_id     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'received',
	report      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agent_runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id   TEXT NOT NULL,
	deal_id       TEXT NOT NULL,
	agent         TEXT NOT NULL,
	attempt       INTEGER NOT NULL DEFAULT 1,
	status        TEXT NOT NULL DEFAULT 'pending',
	input_payload TEXT,
	raw_output    TEXT,
	parsed_output JSONB,
	error_kind    TEXT,
	error         TEXT,
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS analysis_results (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	agent_run_id TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	deal_id      TEXT NOT NULL,
	kind         TEXT NOT NULL,
	confidence   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(document_id, kind)
);

CREATE TABLE IF NOT EXISTS usage_records (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	agent_run_id  TEXT NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	total_tokens  INTEGER NOT NULL,
	cost_usd      DOUBLE PRECISION NOT NULL,
	latency_ms    BIGINT NOT NULL,
	success       BOOLEAN NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS model_profiles (
	id               TEXT PRIMARY KEY,
	provider         TEXT NOT NULL,
	model            TEXT NOT NULL,
	input_per_1k     DOUBLE PRECISION NOT NULL,
	output_per_1k    DOUBLE PRECISION NOT NULL,
	context_window   INTEGER NOT NULL DEFAULT 0,
	vision           BOOLEAN NOT NULL DEFAULT false,
	function_calling BOOLEAN NOT NULL DEFAULT false,
	active           BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS model_selections (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL DEFAULT '',
	deal_id    TEXT NOT NULL DEFAULT '',
	use_case   TEXT NOT NULL,
	profile_id TEXT NOT NULL REFERENCES model_profiles(id),
	is_default BOOLEAN NOT NULL DEFAULT false,
	UNIQUE(user_id, deal_id, use_case)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_document_id ON runs(document_id);
CREATE INDEX IF NOT EXISTS idx_agent_runs_document_id ON agent_runs(document_id);
CREATE INDEX IF NOT EXISTS idx_analysis_results_document_id ON analysis_results(document_id);
CREATE INDEX IF NOT EXISTS idx_usage_records_agent_run_id ON usage_records(agent_run_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.ByteSize = len(doc.Text)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, deal_id, name, type, text, byte_size, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.DealID, doc.Name, string(doc.Type), doc.Text, doc.ByteSize, doc.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert document")
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, deal_id, name, type, text, byte_size, created_at FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.DealID, &d.Name, &d.Type, &d.Text, &d.ByteSize, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("document not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return &d, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, documentID, dealID string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, document_id, deal_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, documentID, dealID, string(model.RunStatusReceived), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:         id,
		DocumentID: documentID,
		DealID:     dealID,
		Status:     model.RunStatusReceived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunReport(ctx context.Context, runID string, status model.RunStatus, report *model.RunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET report = $1, status = $2, updated_at = $3 WHERE id = $4`,
		reportJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run report %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var reportJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, document_id, deal_id, status, report, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.DocumentID, &r.DealID, &r.Status, &reportJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if len(reportJSON) > 0 {
		r.Report = &model.RunReport{}
		if err := json.Unmarshal(reportJSON, r.Report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, document_id, deal_id, status, report, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.DocumentID != "" {
		query += fmt.Sprintf(` AND document_id = $%d`, argIdx)
		args = append(args, filter.DocumentID)
		argIdx++
	}
	if filter.DealID != "" {
		query += fmt.Sprintf(` AND deal_id = $%d`, argIdx)
		args = append(args, filter.DealID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var reportJSON []byte

		if err := rows.Scan(&r.ID, &r.DocumentID, &r.DealID, &r.Status, &reportJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(reportJSON) > 0 {
			r.Report = &model.RunReport{}
			if err := json.Unmarshal(reportJSON, r.Report); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal report")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) AppendAgentRun(ctx context.Context, ar *model.AgentRun) error {
	if ar.ID == "" {
		ar.ID = uuid.New().String()
	}
	if ar.StartedAt.IsZero() {
		ar.StartedAt = time.Now().UTC()
	}
	if ar.Status == "" {
		ar.Status = model.AgentRunPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_runs (id, document_id, deal_id, agent, attempt, status, input_payload, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ar.ID, ar.DocumentID, ar.DealID, ar.Agent, ar.Attempt, string(ar.Status), ar.InputPayload, ar.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert agent run %s attempt %d", ar.Agent, ar.Attempt)
}

func (s *PostgresStore) CompleteAgentRun(ctx context.Context, ar *model.AgentRun) error {
	if ar.CompletedAt == nil {
		now := time.Now().UTC()
		ar.CompletedAt = &now
	}

	var parsed []byte
	if len(ar.ParsedOutput) > 0 {
		parsed = ar.ParsedOutput
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_runs SET status = $1, raw_output = $2, parsed_output = $3, error_kind = $4, error = $5, completed_at = $6
		 WHERE id = $7 AND status = 'pending'`,
		string(ar.Status), ar.RawOutput, parsed, string(ar.ErrorKind), ar.Error, *ar.CompletedAt, ar.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete agent run %s", ar.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("agent_run not found: %s", ar.ID)
	}
	return nil
}

func (s *PostgresStore) ListAgentRuns(ctx context.Context, documentID string) ([]model.AgentRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, deal_id, agent, attempt, status, input_payload, raw_output, parsed_output, error_kind, error, started_at, completed_at
		 FROM agent_runs WHERE document_id = $1 ORDER BY started_at ASC, attempt ASC`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list agent runs")
	}
	defer rows.Close()

	var out []model.AgentRun
	for rows.Next() {
		var ar model.AgentRun
		var input, raw, errKind, errMsg *string
		var parsed []byte
		var completed *time.Time
		if err := rows.Scan(&ar.ID, &ar.DocumentID, &ar.DealID, &ar.Agent, &ar.Attempt, &ar.Status,
			&input, &raw, &parsed, &errKind, &errMsg, &ar.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan agent run")
		}
		if input != nil {
			ar.InputPayload = *input
		}
		if raw != nil {
			ar.RawOutput = *raw
		}
		if len(parsed) > 0 {
			ar.ParsedOutput = json.RawMessage(parsed)
		}
		if errKind != nil {
			ar.ErrorKind = model.ErrorKind(*errKind)
		}
		if errMsg != nil {
			ar.Error = *errMsg
		}
		ar.CompletedAt = completed
		out = append(out, ar)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list agent runs iterate")
}

func (s *PostgresStore) UpsertAnalysisResult(ctx context.Context, res *model.AnalysisResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_results (id, agent_run_id, document_id, deal_id, kind, confidence, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (document_id, kind) DO UPDATE SET
		   id = $1, agent_run_id = $2, deal_id = $4, confidence = $6, payload = $7, created_at = $8`,
		res.ID, res.AgentRunID, res.DocumentID, res.DealID, string(res.Kind), string(res.Confidence), []byte(res.Payload), res.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert analysis result %s/%s", res.DocumentID, res.Kind)
}

func (s *PostgresStore) ListAnalysisResults(ctx context.Context, documentID string) ([]model.AnalysisResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_run_id, document_id, deal_id, kind, confidence, payload, created_at
		 FROM analysis_results WHERE document_id = $1 ORDER BY kind ASC`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analysis results")
	}
	defer rows.Close()

	var out []model.AnalysisResult
	for rows.Next() {
		var r model.AnalysisResult
		var payload []byte
		if err := rows.Scan(&r.ID, &r.AgentRunID, &r.DocumentID, &r.DealID, &r.Kind, &r.Confidence, &payload, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis result")
		}
		r.Payload = json.RawMessage(payload)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list analysis results iterate")
}

var usageColumns = []string{
	"id", "agent_run_id", "model", "input_tokens", "output_tokens",
	"total_tokens", "cost_usd", "latency_ms", "success", "created_at",
}

func (s *PostgresStore) AppendUsageRecords(ctx context.Context, recs []model.UsageRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		rows = append(rows, []any{
			rec.ID, rec.AgentRunID, rec.Model, rec.InputTokens, rec.OutputTokens,
			rec.TotalTokens, rec.CostUSD, rec.LatencyMS, rec.Success, rec.CreatedAt,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "usage_records", usageColumns, rows)
	return eris.Wrap(err, "postgres: append usage records")
}

func (s *PostgresStore) ListUsageRecords(ctx context.Context, agentRunID string) ([]model.UsageRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_run_id, model, input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, success, created_at
		 FROM usage_records WHERE agent_run_id = $1 ORDER BY created_at ASC`,
		agentRunID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list usage records")
	}
	defer rows.Close()

	var out []model.UsageRecord
	for rows.Next() {
		var rec model.UsageRecord
		if err := rows.Scan(&rec.ID, &rec.AgentRunID, &rec.Model, &rec.InputTokens, &rec.OutputTokens,
			&rec.TotalTokens, &rec.CostUSD, &rec.LatencyMS, &rec.Success, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan usage record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list usage records iterate")
}

func (s *PostgresStore) UpsertModelProfile(ctx context.Context, p model.ModelProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO model_profiles (id, provider, model, input_per_1k, output_per_1k, context_window, vision, function_calling, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   provider = $2, model = $3, input_per_1k = $4, output_per_1k = $5,
		   context_window = $6, vision = $7, function_calling = $8, active = $9`,
		p.ID, p.Provider, p.Model, p.InputPer1K, p.OutputPer1K, p.ContextWindow, p.Vision, p.FunctionCalling, p.Active,
	)
	return eris.Wrapf(err, "postgres: upsert model profile %s", p.ID)
}

func (s *PostgresStore) UpsertModelSelection(ctx context.Context, sel model.ModelSelection) error {
	if sel.ID == "" {
		sel.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO model_selections (id, user_id, deal_id, use_case, profile_id, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, deal_id, use_case) DO UPDATE SET
		   profile_id = $5, is_default = $6`,
		sel.ID, sel.UserID, sel.DealID, string(sel.UseCase), sel.ProfileID, sel.Default,
	)
	return eris.Wrapf(err, "postgres: upsert model selection %s", sel.ID)
}

func (s *PostgresStore) ListModelProfiles(ctx context.Context) ([]model.ModelProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, provider, model, input_per_1k, output_per_1k, context_window, vision, function_calling, active
		 FROM model_profiles ORDER BY id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list model profiles")
	}
	defer rows.Close()

	var out []model.ModelProfile
	for rows.Next() {
		var p model.ModelProfile
		if err := rows.Scan(&p.ID, &p.Provider, &p.Model, &p.InputPer1K, &p.OutputPer1K,
			&p.ContextWindow, &p.Vision, &p.FunctionCalling, &p.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan model profile")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list model profiles iterate")
}

func (s *PostgresStore) ListModelSelections(ctx context.Context) ([]model.ModelSelection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, deal_id, use_case, profile_id, is_default FROM model_selections ORDER BY id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list model selections")
	}
	defer rows.Close()

	var out []model.ModelSelection
	for rows.Next() {
		var sel model.ModelSelection
		if err := rows.Scan(&sel.ID, &sel.UserID, &sel.DealID, &sel.UseCase, &sel.ProfileID, &sel.Default); err != nil {
			return nil, eris.Wrap(err, "postgres: scan model selection")
		}
		out = append(out, sel)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list model selections iterate")
}
