package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealmate/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	deal_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL,
	text       TEXT NOT NULL,
	byte_size  INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	deal_id     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'received',
	report      TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS agent_runs (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	deal_id       TEXT NOT NULL,
	agent         TEXT NOT NULL,
	attempt       INTEGER NOT NULL DEFAULT 1,
	status        TEXT NOT NULL DEFAULT 'pending',
	input_payload TEXT,
	raw_output    TEXT,
	parsed_output TEXT,
	error_kind    TEXT,
	error         TEXT,
	started_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at  DATETIME
);

CREATE TABLE IF NOT EXISTS analysis_results (
	id           TEXT PRIMARY KEY,
	agent_run_id TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	deal_id      TEXT NOT NULL,
	kind         TEXT NOT NULL,
	confidence   TEXT NOT NULL,
	payload      TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(document_id, kind)
);

CREATE TABLE IF NOT EXISTS usage_records (
	id            TEXT PRIMARY KEY,
	agent_run_id  TEXT NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	total_tokens  INTEGER NOT NULL,
	cost_usd      REAL NOT NULL,
	latency_ms    INTEGER NOT NULL,
	success       INTEGER NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS model_profiles (
	id               TEXT PRIMARY KEY,
	provider         TEXT NOT NULL,
	model            TEXT NOT NULL,
	input_per_1k     REAL NOT NULL,
	output_per_1k    REAL NOT NULL,
	context_window   INTEGER NOT NULL DEFAULT 0,
	vision           INTEGER NOT NULL DEFAULT 0,
	function_calling INTEGER NOT NULL DEFAULT 0,
	active           INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS model_selections (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	deal_id    TEXT NOT NULL DEFAULT '',
	use_case   TEXT NOT NULL,
	profile_id TEXT NOT NULL REFERENCES model_profiles(id),
	is_default INTEGER NOT NULL DEFAULT 0,
	UNIQUE(user_id, deal_id, use_case)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_document_id ON runs(document_id);
CREATE INDEX IF NOT EXISTS idx_agent_runs_document_id ON agent_runs(document_id);
CREATE INDEX IF NOT EXISTS idx_analysis_results_document_id ON analysis_results(document_id);
CREATE INDEX IF NOT EXISTS idx_usage_records_agent_run_id ON usage_records(agent_run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.ByteSize = len(doc.Text)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, deal_id, name, type, text, byte_size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.DealID, doc.Name, string(doc.Type), doc.Text, doc.ByteSize, doc.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert document")
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, deal_id, name, type, text, byte_size, created_at FROM documents WHERE id = ?`,
		id,
	).Scan(&d.ID, &d.DealID, &d.Name, &d.Type, &d.Text, &d.ByteSize, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return &d, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, documentID, dealID string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, document_id, deal_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, documentID, dealID, string(model.RunStatusReceived), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunReport(ctx context.Context, runID string, status model.RunStatus, report *model.RunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET report = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(reportJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run report %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, deal_id, status, report, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, document_id, deal_id, status, report, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if filter.DealID != "" {
		query += ` AND deal_id = ?`
		args = append(args, filter.DealID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) AppendAgentRun(ctx context.Context, ar *model.AgentRun) error {
	if ar.ID == "" {
		ar.ID = uuid.New().String()
	}
	if ar.StartedAt.IsZero() {
		ar.StartedAt = time.Now().UTC()
	}
	if ar.Status == "" {
		ar.Status = model.AgentRunPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_runs (id, document_id, deal_id, agent, attempt, status, input_payload, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ar.ID, ar.DocumentID, ar.DealID, ar.Agent, ar.Attempt, string(ar.Status), ar.InputPayload, ar.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert agent run %s attempt %d", ar.Agent, ar.Attempt)
}

func (s *SQLiteStore) CompleteAgentRun(ctx context.Context, ar *model.AgentRun) error {
	if ar.CompletedAt == nil {
		now := time.Now().UTC()
		ar.CompletedAt = &now
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_runs SET status = ?, raw_output = ?, parsed_output = ?, error_kind = ?, error = ?, completed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(ar.Status), ar.RawOutput, string(ar.ParsedOutput), string(ar.ErrorKind), ar.Error, *ar.CompletedAt, ar.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete agent run %s", ar.ID)
	}
	return checkRowsAffected(res, "agent_run", ar.ID)
}

func (s *SQLiteStore) ListAgentRuns(ctx context.Context, documentID string) ([]model.AgentRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, deal_id, agent, attempt, status, input_payload, raw_output, parsed_output, error_kind, error, started_at, completed_at
		 FROM agent_runs WHERE document_id = ? ORDER BY started_at ASC, attempt ASC`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list agent runs")
	}
	defer rows.Close()

	var out []model.AgentRun
	for rows.Next() {
		var ar model.AgentRun
		var input, raw, parsed, errKind, errMsg sql.NullString
		var completed sql.NullTime
		if err := rows.Scan(&ar.ID, &ar.DocumentID, &ar.DealID, &ar.Agent, &ar.Attempt, &ar.Status,
			&input, &raw, &parsed, &errKind, &errMsg, &ar.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan agent run")
		}
		ar.InputPayload = input.String
		ar.RawOutput = raw.String
		if parsed.Valid && parsed.String != "" {
			ar.ParsedOutput = json.RawMessage(parsed.String)
		}
		ar.ErrorKind = model.ErrorKind(errKind.String)
		ar.Error = errMsg.String
		if completed.Valid {
			t := completed.Time
			ar.CompletedAt = &t
		}
		out = append(out, ar)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list agent runs iterate")
}

func (s *SQLiteStore) UpsertAnalysisResult(ctx context.Context, res *model.AnalysisResult) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (id, agent_run_id, document_id, deal_id, kind, confidence, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id, kind) DO UPDATE SET
		   id = excluded.id, agent_run_id = excluded.agent_run_id, deal_id = excluded.deal_id,
		   confidence = excluded.confidence, payload = excluded.payload, created_at = excluded.created_at`,
		res.ID, res.AgentRunID, res.DocumentID, res.DealID, string(res.Kind), string(res.Confidence), string(res.Payload), res.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert analysis result %s/%s", res.DocumentID, res.Kind)
}

func (s *SQLiteStore) ListAnalysisResults(ctx context.Context, documentID string) ([]model.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_run_id, document_id, deal_id, kind, confidence, payload, created_at
		 FROM analysis_results WHERE document_id = ? ORDER BY kind ASC`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analysis results")
	}
	defer rows.Close()

	var out []model.AnalysisResult
	for rows.Next() {
		var r model.AnalysisResult
		var payload string
		if err := rows.Scan(&r.ID, &r.AgentRunID, &r.DocumentID, &r.DealID, &r.Kind, &r.Confidence, &payload, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis result")
		}
		r.Payload = json.RawMessage(payload)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list analysis results iterate")
}

func (s *SQLiteStore) AppendUsageRecords(ctx context.Context, recs []model.UsageRecord) error {
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO usage_records (id, agent_run_id, model, input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, success, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.AgentRunID, rec.Model, rec.InputTokens, rec.OutputTokens, rec.TotalTokens,
			rec.CostUSD, rec.LatencyMS, rec.Success, rec.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert usage record for %s", rec.AgentRunID)
		}
	}
	return nil
}

func (s *SQLiteStore) ListUsageRecords(ctx context.Context, agentRunID string) ([]model.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_run_id, model, input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, success, created_at
		 FROM usage_records WHERE agent_run_id = ? ORDER BY created_at ASC`,
		agentRunID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list usage records")
	}
	defer rows.Close()

	var out []model.UsageRecord
	for rows.Next() {
		var rec model.UsageRecord
		if err := rows.Scan(&rec.ID, &rec.AgentRunID, &rec.Model, &rec.InputTokens, &rec.OutputTokens,
			&rec.TotalTokens, &rec.CostUSD, &rec.LatencyMS, &rec.Success, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan usage record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list usage records iterate")
}

func (s *SQLiteStore) UpsertModelProfile(ctx context.Context, p model.ModelProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_profiles (id, provider, model, input_per_1k, output_per_1k, context_window, vision, function_calling, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   provider = excluded.provider, model = excluded.model,
		   input_per_1k = excluded.input_per_1k, output_per_1k = excluded.output_per_1k,
		   context_window = excluded.context_window, vision = excluded.vision,
		   function_calling = excluded.function_calling, active = excluded.active`,
		p.ID, p.Provider, p.Model, p.InputPer1K, p.OutputPer1K, p.ContextWindow, p.Vision, p.FunctionCalling, p.Active,
	)
	return eris.Wrapf(err, "sqlite: upsert model profile %s", p.ID)
}

func (s *SQLiteStore) UpsertModelSelection(ctx context.Context, sel model.ModelSelection) error {
	if sel.ID == "" {
		sel.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_selections (id, user_id, deal_id, use_case, profile_id, is_default)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, deal_id, use_case) DO UPDATE SET
		   profile_id = excluded.profile_id, is_default = excluded.is_default`,
		sel.ID, sel.UserID, sel.DealID, string(sel.UseCase), sel.ProfileID, sel.Default,
	)
	return eris.Wrapf(err, "sqlite: upsert model selection %s", sel.ID)
}

func (s *SQLiteStore) ListModelProfiles(ctx context.Context) ([]model.ModelProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider, model, input_per_1k, output_per_1k, context_window, vision, function_calling, active
		 FROM model_profiles ORDER BY id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list model profiles")
	}
	defer rows.Close()

	var out []model.ModelProfile
	for rows.Next() {
		var p model.ModelProfile
		if err := rows.Scan(&p.ID, &p.Provider, &p.Model, &p.InputPer1K, &p.OutputPer1K,
			&p.ContextWindow, &p.Vision, &p.FunctionCalling, &p.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan model profile")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list model profiles iterate")
}

func (s *SQLiteStore) ListModelSelections(ctx context.Context) ([]model.ModelSelection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, deal_id, use_case, profile_id, is_default FROM model_selections ORDER BY id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list model selections")
	}
	defer rows.Close()

	var out []model.ModelSelection
	for rows.Next() {
		var sel model.ModelSelection
		if err := rows.Scan(&sel.ID, &sel.UserID, &sel.DealID, &sel.UseCase, &sel.ProfileID, &sel.Default); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan model selection")
		}
		out = append(out, sel)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list model selections iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var reportJSON sql.NullString

	err := row.Scan(&r.ID, &r.DocumentID, &r.DealID, &r.Status, &reportJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if reportJSON.Valid && reportJSON.String != "" {
		r.Report = &model.RunReport{}
		if err := json.Unmarshal([]byte(reportJSON.String), r.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
	}
	return &r, nil
}
