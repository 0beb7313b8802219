// pkg/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/tenderops/tender-ingress/pkg/config"
	"github.com/tenderops/tender-ingress/pkg/model"
)

// Postgres implements Store on top of PostgreSQL with the pgvector extension.
type Postgres struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
}

// OpenPostgres creates and initializes a PostgreSQL-backed store. The schema
// (including the vector extension) is created idempotently on open.
func OpenPostgres(ctx context.Context, cfg *config.PostgresConfig) (*Postgres, error) {
	logger := zap.L().Named("postgres-store")

	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	db, err := sqlx.Open("pgx", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	// Configure connection pool
	applyConnectionSettings(
		db.DB,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Set statement timeout if configured
	if cfg.StatementTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("SET statement_timeout = %d", cfg.StatementTimeout.Milliseconds()),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	// Verify connection
	if err := pingWithTimeout(ctx, db.DB, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	store := &Postgres{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}

	if err := store.setupSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}

	logConnectionStats(logger, cfg.Database, db.DB)
	return store, nil
}

// setupSchema ensures the vector extension and the four pipeline tables exist
func (s *Postgres) setupSchema(ctx context.Context) error {
	setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS raw_tenders (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			tender_id TEXT,
			title TEXT,
			description TEXT,
			organization TEXT,
			category TEXT,
			value NUMERIC,
			currency TEXT,
			published_date TEXT,
			deadline TEXT,
			location TEXT,
			status TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cleaned_tenders (
			id TEXT PRIMARY KEY,
			tender_id TEXT UNIQUE,
			title TEXT,
			description TEXT,
			organization TEXT,
			category TEXT,
			value NUMERIC,
			currency TEXT,
			published_date DATE,
			deadline DATE,
			location TEXT,
			status TEXT,
			embedding vector(384),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS data_quality_logs (
			id TEXT PRIMARY KEY,
			check_type TEXT,
			severity TEXT,
			message TEXT,
			details JSONB,
			record_count INTEGER,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS pipeline_health (
			id TEXT PRIMARY KEY,
			status TEXT,
			total_records INTEGER,
			clean_records INTEGER,
			quality_score NUMERIC,
			last_ingestion TIMESTAMPTZ,
			errors JSONB,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(setupCtx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	s.logger.Info("Ensured pipeline tables exist")
	return nil
}

// InsertRaw appends raw tender rows in a single transaction.
func (s *Postgres) InsertRaw(ctx context.Context, records []model.RawTender) error {
	if len(records) == 0 {
		return nil
	}

	execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTxx(execCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	stmt, err := tx.PrepareContext(execCtx, `
		INSERT INTO raw_tenders
		(id, tender_id, title, description, organization, category, value,
		 currency, published_date, deadline, location, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err = stmt.ExecContext(execCtx,
			r.ID, r.TenderID, r.Title, r.Description, r.Organization,
			r.Category, r.Value, r.Currency, r.PublishedDate, r.Deadline,
			r.Location, r.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to insert raw tender %s: %w", r.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Inserted raw tenders", zap.Int("count", len(records)))
	return nil
}

// AllRaw returns every raw tender row in insertion order. Ordering is by the
// serial sequence, not created_at: rows from one transaction share a
// timestamp, and later upserts must see them in arrival order.
func (s *Postgres) AllRaw(ctx context.Context) ([]model.RawTender, error) {
	var records []model.RawTender
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, tender_id, title, COALESCE(description, '') AS description,
		       organization, category, value, currency, published_date,
		       deadline, location, status, created_at
		FROM raw_tenders
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw tenders: %w", err)
	}
	return records, nil
}

// CountRaw returns the total number of raw rows.
func (s *Postgres) CountRaw(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM raw_tenders`)
}

// UpsertCleaned writes a cleaned tender keyed by tender_id. On conflict only
// title, description and embedding are refreshed; the other fields keep
// their first-seen values.
func (s *Postgres) UpsertCleaned(ctx context.Context, record model.CleanedTender) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cleaned_tenders
		(id, tender_id, title, description, organization, category, value,
		 currency, published_date, deadline, location, status, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tender_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			embedding = EXCLUDED.embedding
	`,
		record.ID, record.TenderID, record.Title, record.Description,
		record.Organization, record.Category, record.Value, record.Currency,
		record.PublishedDate, record.Deadline, record.Location, record.Status,
		pgvector.NewVector(record.Embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cleaned tender %s: %w", record.TenderID, err)
	}
	return nil
}

// cleanedRow mirrors the cleaned_tenders columns for sqlx scanning.
type cleanedRow struct {
	ID            string          `db:"id"`
	TenderID      string          `db:"tender_id"`
	Title         string          `db:"title"`
	Description   string          `db:"description"`
	Organization  string          `db:"organization"`
	Category      string          `db:"category"`
	Value         float64         `db:"value"`
	Currency      string          `db:"currency"`
	PublishedDate *time.Time      `db:"published_date"`
	Deadline      *time.Time      `db:"deadline"`
	Location      string          `db:"location"`
	Status        string          `db:"status"`
	Embedding     pgvector.Vector `db:"embedding"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r cleanedRow) toModel() model.CleanedTender {
	return model.CleanedTender{
		ID:            r.ID,
		TenderID:      r.TenderID,
		Title:         r.Title,
		Description:   r.Description,
		Organization:  r.Organization,
		Category:      r.Category,
		Value:         r.Value,
		Currency:      r.Currency,
		PublishedDate: r.PublishedDate,
		Deadline:      r.Deadline,
		Location:      r.Location,
		Status:        r.Status,
		Embedding:     r.Embedding.Slice(),
		CreatedAt:     r.CreatedAt,
	}
}

const cleanedColumns = `id, tender_id, title, COALESCE(description, '') AS description,
	organization, category, value, currency, published_date, deadline,
	location, status, embedding, created_at`

// ListCleaned returns up to limit cleaned tenders, newest first.
func (s *Postgres) ListCleaned(ctx context.Context, limit int) ([]model.CleanedTender, error) {
	var rows []cleanedRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+cleanedColumns+`
		FROM cleaned_tenders
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cleaned tenders: %w", err)
	}

	records := make([]model.CleanedTender, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}

// CountCleaned returns the total number of cleaned rows.
func (s *Postgres) CountCleaned(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM cleaned_tenders`)
}

// CountMissingDescriptions counts cleaned rows with a null or empty description.
func (s *Postgres) CountMissingDescriptions(ctx context.Context) (int, error) {
	return s.count(ctx, `
		SELECT COUNT(*) FROM cleaned_tenders
		WHERE description IS NULL OR description = ''
	`)
}

// DuplicateTenderIDs returns the business keys that were ingested more than
// once. Duplicate raw rows collapse into one cleaned row during upsert, so
// the raw generation is where collisions remain visible.
func (s *Postgres) DuplicateTenderIDs(ctx context.Context) ([]model.DuplicateGroup, error) {
	var groups []model.DuplicateGroup
	err := s.db.SelectContext(ctx, &groups, `
		SELECT tender_id, COUNT(*) AS dup_count
		FROM raw_tenders
		GROUP BY tender_id
		HAVING COUNT(*) > 1
		ORDER BY tender_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate tender ids: %w", err)
	}
	return groups, nil
}

// CountValueOutliers counts cleaned rows whose value exceeds the threshold.
func (s *Postgres) CountValueOutliers(ctx context.Context, threshold float64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM cleaned_tenders WHERE value > $1`, threshold)
}

// ReplaceQualityLog clears the prior audit findings and writes the new set
// in one transaction, so readers never observe a half-written audit.
func (s *Postgres) ReplaceQualityLog(ctx context.Context, entries []model.QualityLogEntry) error {
	execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTxx(execCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	if _, err = tx.ExecContext(execCtx, `DELETE FROM data_quality_logs`); err != nil {
		return fmt.Errorf("failed to clear quality log: %w", err)
	}

	for _, e := range entries {
		_, err = tx.ExecContext(execCtx, `
			INSERT INTO data_quality_logs
			(id, check_type, severity, message, details, record_count)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, e.CheckType, e.Severity, e.Message, e.Details, e.RecordCount)
		if err != nil {
			return fmt.Errorf("failed to insert quality log entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// QualityLog returns the findings of the latest audit, newest first.
func (s *Postgres) QualityLog(ctx context.Context) ([]model.QualityLogEntry, error) {
	var entries []model.QualityLogEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, check_type, severity, message, details, record_count, created_at
		FROM data_quality_logs
		ORDER BY created_at DESC, check_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quality log: %w", err)
	}
	return entries, nil
}

// CountIssues counts quality log entries with any of the given severities.
func (s *Postgres) CountIssues(ctx context.Context, severities ...string) (int, error) {
	return s.count(ctx, `
		SELECT COUNT(*) FROM data_quality_logs
		WHERE severity = ANY($1::text[])
	`, pq.Array(severities))
}

// ReplaceHealth swaps the singleton health snapshot.
func (s *Postgres) ReplaceHealth(ctx context.Context, snapshot model.HealthSnapshot) error {
	execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTxx(execCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	if _, err = tx.ExecContext(execCtx, `DELETE FROM pipeline_health`); err != nil {
		return fmt.Errorf("failed to clear health snapshot: %w", err)
	}

	_, err = tx.ExecContext(execCtx, `
		INSERT INTO pipeline_health
		(id, status, total_records, clean_records, quality_score, last_ingestion, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, snapshot.ID, snapshot.Status, snapshot.TotalRecords, snapshot.CleanRecords,
		snapshot.QualityScore, snapshot.LastIngestion, snapshot.Errors)
	if err != nil {
		return fmt.Errorf("failed to insert health snapshot: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Health returns the current snapshot, or nil when none has been written yet.
func (s *Postgres) Health(ctx context.Context) (*model.HealthSnapshot, error) {
	var snapshot model.HealthSnapshot
	err := s.db.GetContext(ctx, &snapshot, `
		SELECT id, status, total_records, clean_records, quality_score,
		       last_ingestion, errors, created_at
		FROM pipeline_health
		ORDER BY created_at DESC
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query health snapshot: %w", err)
	}
	return &snapshot, nil
}

// searchRow extends cleanedRow with the computed similarity column.
type searchRow struct {
	cleanedRow
	Similarity float64 `db:"similarity"`
}

// SearchByEmbedding ranks cleaned tenders by ascending cosine distance to
// the query vector. Rows carrying the zero-vector sentinel stay eligible and
// rank last for any non-trivial query.
func (s *Postgres) SearchByEmbedding(ctx context.Context, vec []float32, limit int) ([]model.SearchHit, error) {
	query := pgvector.NewVector(vec)

	var rows []searchRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+cleanedColumns+`,
		       1 - (embedding <=> $1) AS similarity
		FROM cleaned_tenders
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run similarity search: %w", err)
	}

	hits := make([]model.SearchHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, model.SearchHit{
			CleanedTender: row.toModel(),
			Similarity:    row.Similarity,
		})
	}
	return hits, nil
}

// Ping verifies the database connection.
func (s *Postgres) Ping(ctx context.Context) error {
	return pingWithTimeout(ctx, s.db.DB, 5*time.Second)
}

// Close closes the database connection.
func (s *Postgres) Close() error {
	s.logger.Info("Closing PostgreSQL connection")
	logConnectionStats(s.logger, s.cfg.Database, s.db.DB)
	return s.db.Close()
}

func (s *Postgres) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to run count query: %w", err)
	}
	return n, nil
}

// pingWithTimeout attempts to ping a database with a timeout
func pingWithTimeout(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- db.PingContext(pingCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-pingCtx.Done():
		return fmt.Errorf("ping timed out after %v: %w", timeout, pingCtx.Err())
	}
}

// applyConnectionSettings configures database connection pool settings
func applyConnectionSettings(db *sql.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		db.SetConnMaxIdleTime(maxIdleTime)
	}
}

// logConnectionStats logs connection pool statistics
func logConnectionStats(logger *zap.Logger, name string, db *sql.DB) {
	stats := db.Stats()
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConnections),
	)
}
