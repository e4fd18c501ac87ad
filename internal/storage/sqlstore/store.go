// Package sqlstore persists reports in MySQL or PostgreSQL through database/sql.
// Every state transition a worker depends on is a conditional UPDATE on the status column.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/config"
	"videosafety-worker/internal/models"
)

const reportColumns = `id, video_url, status, video_title, safety_score, violence_score, nsfw_score, scary_score,
	profanity_detected, analysis_result, error_message, analyzed_at, created_at, updated_at`

// Store implements the report store on a *sql.DB.
type Store struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
	logger   logrus.FieldLogger
}

// Open connects with the configured driver and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger logrus.FieldLogger) (*Store, error) {
	if cfg.Driver != "mysql" && cfg.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := New(db, cfg.Driver, logger)
	s.logger.WithFields(logrus.Fields{"driver": cfg.Driver, "host": cfg.Host, "db": cfg.DBName}).
		Info("[Store] connected to database")
	return s, nil
}

// New wraps an existing connection. driver selects the placeholder style.
func New(db *sql.DB, driver string, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		db:       db,
		postgres: driver == "postgres",
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("[Store] closing database connection")
	return s.db.Close()
}

// Ping is used by the health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind turns ? placeholders into $1, $2 ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r      models.Report
		status string
		blob   []byte
	)
	err := row.Scan(&r.ID, &r.VideoURL, &status, &r.VideoTitle,
		&r.SafetyScore, &r.ViolenceScore, &r.NSFWScore, &r.ScaryScore,
		&r.ProfanityDetected, &blob, &r.ErrorMessage, &r.AnalyzedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.ReportStatus(status)
	if len(blob) > 0 {
		r.AnalysisResult = json.RawMessage(blob)
	}
	return &r, nil
}

func (s *Store) queryReports(ctx context.Context, query string, args ...any) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// ListPending returns up to limit pending reports, oldest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.Report, error) {
	reports, err := s.queryReports(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		string(models.StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending reports: %w", err)
	}
	return reports, nil
}

// List returns the newest reports, optionally filtered by status.
func (s *Store) List(ctx context.Context, status models.ReportStatus, limit int) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	reports, err := s.queryReports(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+reportColumns+` FROM reports WHERE id = ?`), id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return r, nil
}

// Insert creates a pending report for videoURL.
func (s *Store) Insert(ctx context.Context, videoURL string) (*models.Report, error) {
	now := s.now()
	r := &models.Report{
		ID:        uuid.NewString(),
		VideoURL:  videoURL,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.exec(ctx,
		`INSERT INTO reports (id, video_url, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.VideoURL, string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	return r, nil
}

// Claim moves a report from pending to processing. It returns false when another worker got there first.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	n, err := s.exec(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(models.StatusProcessing), s.now(), id, string(models.StatusPending))
	if err != nil {
		return false, fmt.Errorf("claim report %s: %w", id, err)
	}
	return n == 1, nil
}

// ResetStale returns processing reports untouched since cutoff to pending.
func (s *Store) ResetStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	n, err := s.exec(ctx,
		`UPDATE reports SET status = ?, error_message = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		string(models.StatusPending), message, s.now(), string(models.StatusProcessing), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("reset stale reports: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateTitle(ctx context.Context, id, title string) error {
	_, err := s.exec(ctx, `UPDATE reports SET video_title = ?, updated_at = ? WHERE id = ?`, title, s.now(), id)
	if err != nil {
		return fmt.Errorf("update title of report %s: %w", id, err)
	}
	return nil
}

// Complete stores the result, only if the report is still processing.
func (s *Store) Complete(ctx context.Context, id string, result *models.AnalysisResult) (bool, error) {
	blob, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("encode analysis result: %w", err)
	}
	now := s.now()
	n, err := s.exec(ctx,
		`UPDATE reports SET status = ?, safety_score = ?, violence_score = ?, nsfw_score = ?, scary_score = ?,
			profanity_detected = ?, analysis_result = ?, error_message = NULL, analyzed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(models.StatusCompleted), result.SafetyScore, result.ViolenceScore, result.NSFWScore, result.ScaryScore,
		result.ProfanityDetected, string(blob), now, now,
		id, string(models.StatusProcessing))
	if err != nil {
		return false, fmt.Errorf("complete report %s: %w", id, err)
	}
	return n == 1, nil
}

// Fail marks a processing report failed. A report that already left processing is not touched.
func (s *Store) Fail(ctx context.Context, id, message string) (bool, error) {
	n, err := s.exec(ctx,
		`UPDATE reports SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(models.StatusFailed), message, s.now(), id, string(models.StatusProcessing))
	if err != nil {
		return false, fmt.Errorf("fail report %s: %w", id, err)
	}
	return n == 1, nil
}

// Requeue moves a failed report back to pending.
func (s *Store) Requeue(ctx context.Context, id string) (bool, error) {
	n, err := s.exec(ctx,
		`UPDATE reports SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		string(models.StatusPending), s.now(), id, string(models.StatusFailed))
	if err != nil {
		return false, fmt.Errorf("requeue report %s: %w", id, err)
	}
	return n == 1, nil
}
