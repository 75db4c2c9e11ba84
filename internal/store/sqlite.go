package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/holoself/internal/domain"
)

//go:embed schema.sql
var schema string

// schemaVersion is the latest migration applied by New
const schemaVersion = 1

// memoryTimeLayout keeps agent_memory timestamps fixed-width so they sort lexically
const memoryTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a row addressed by id does not exist
var ErrNotFound = errors.New("not found")

// Store handles database operations. All access goes through a single
// connection serialized by mu.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM _migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO _migrations (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// formatTime stores instants in local time so date prefixes and range
// comparisons on the text column agree with the user's calendar day.
func formatTime(t time.Time) string {
	return t.Local().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddSupplement logs a supplement intake and returns it with its new ID
func (s *Store) AddSupplement(ctx context.Context, entry domain.SupplementEntry) (*domain.SupplementEntry, error) {
	entry.ID = uuid.New().String()
	if entry.TakenAt.IsZero() {
		entry.TakenAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO supplements (id, name, dosage, taken_at, category, notes) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID, entry.Name, entry.Dosage, formatTime(entry.TakenAt), entry.Category, entry.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert supplement: %w", err)
	}

	return &entry, nil
}

// ListSupplements returns intakes between from and to, newest first
func (s *Store) ListSupplements(ctx context.Context, from, to time.Time) ([]domain.SupplementEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, dosage, taken_at, category, notes FROM supplements WHERE taken_at BETWEEN ? AND ? ORDER BY taken_at DESC",
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list supplements: %w", err)
	}
	defer rows.Close()

	var entries []domain.SupplementEntry
	for rows.Next() {
		var e domain.SupplementEntry
		var takenAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.Dosage, &takenAt, &e.Category, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan supplement: %w", err)
		}
		e.TakenAt = parseTime(takenAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// IsSupplementTaken reports whether name was logged on the given local date (YYYY-MM-DD)
func (s *Store) IsSupplementTaken(ctx context.Context, name, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM supplements WHERE name = ? AND substr(taken_at, 1, 10) = ?",
		name, date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check supplement: %w", err)
	}
	return count > 0, nil
}

// ActiveSupplementNames returns the distinct supplements logged in the last
// sinceDays days, ordered by first intake in that window
func (s *Store) ActiveSupplementNames(ctx context.Context, sinceDays int) ([]string, error) {
	cutoff := s.now().AddDate(0, 0, -sinceDays).Format(domain.DateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM supplements
		WHERE substr(taken_at, 1, 10) >= ?
		GROUP BY name
		ORDER BY MIN(taken_at), name
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("active supplements: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan supplement name: %w", err)
		}
		names = append(names, n)
	}

	return names, rows.Err()
}

// AddVital records a vital sign measurement
func (s *Store) AddVital(ctx context.Context, entry domain.VitalEntry) (*domain.VitalEntry, error) {
	entry.ID = uuid.New().String()
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = s.now()
	}
	if entry.Source == "" {
		entry.Source = domain.SourceManual
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO vitals (id, vital_type, value, unit, recorded_at, source) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID, entry.VitalType, entry.Value, entry.Unit, formatTime(entry.RecordedAt), entry.Source,
	)
	if err != nil {
		return nil, fmt.Errorf("insert vital: %w", err)
	}

	return &entry, nil
}

// AddLabResults stores the markers of one lab report atomically
func (s *Store) AddLabResults(ctx context.Context, results []domain.LabResult) ([]domain.LabResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lab import: %w", err)
	}
	defer tx.Rollback()

	saved := make([]domain.LabResult, 0, len(results))
	for _, r := range results {
		r.ID = uuid.New().String()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lab_results (id, marker, value, unit, reference_range, status, lab_name, test_date, pdf_source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Marker, r.Value, r.Unit, r.ReferenceRange, r.Status, r.LabName, r.TestDate, r.PDFSource,
		)
		if err != nil {
			return nil, fmt.Errorf("insert lab result %s: %w", r.Marker, err)
		}
		saved = append(saved, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lab import: %w", err)
	}
	return saved, nil
}

// LatestLabDates returns the most recent test date per distinct marker
func (s *Store) LatestLabDates(ctx context.Context) ([]domain.LabDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT marker, MAX(test_date) FROM lab_results
		WHERE test_date GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]'
		GROUP BY marker
		ORDER BY marker
	`)
	if err != nil {
		return nil, fmt.Errorf("latest labs: %w", err)
	}
	defer rows.Close()

	var labs []domain.LabDate
	for rows.Next() {
		var l domain.LabDate
		if err := rows.Scan(&l.Marker, &l.Date); err != nil {
			return nil, fmt.Errorf("scan lab date: %w", err)
		}
		labs = append(labs, l)
	}

	return labs, rows.Err()
}

// AddScheduledExam persists a recommended exam and returns its ID
func (s *Store) AddScheduledExam(ctx context.Context, exam domain.ScheduledExam) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO health_schedule (id, exam_type, reason, scheduled_date, triggered_by, completed) VALUES (?, ?, ?, ?, ?, ?)",
		id, exam.ExamType, exam.Reason, exam.ScheduledDate, exam.TriggeredBy, exam.Completed,
	)
	if err != nil {
		return "", fmt.Errorf("insert exam: %w", err)
	}
	return id, nil
}

// HasPendingExam reports whether an uncompleted exam with the same type and trigger exists
func (s *Store) HasPendingExam(ctx context.Context, examType, triggeredBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM health_schedule WHERE exam_type = ? AND triggered_by = ? AND completed = 0",
		examType, triggeredBy,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check pending exam: %w", err)
	}
	return count > 0, nil
}

// UpcomingExams returns incomplete exams, soonest first
func (s *Store) UpcomingExams(ctx context.Context) ([]domain.ScheduledExam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, exam_type, reason, scheduled_date, COALESCE(triggered_by, ''), completed
		FROM health_schedule
		WHERE completed = 0
		ORDER BY scheduled_date ASC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("upcoming exams: %w", err)
	}
	defer rows.Close()

	var exams []domain.ScheduledExam
	for rows.Next() {
		var e domain.ScheduledExam
		if err := rows.Scan(&e.ID, &e.ExamType, &e.Reason, &e.ScheduledDate, &e.TriggeredBy, &e.Completed); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		exams = append(exams, e)
	}

	return exams, rows.Err()
}

// CompleteExam marks a scheduled exam as done. The id may be a unique prefix.
func (s *Store) CompleteExam(ctx context.Context, id string) error {
	id = stripWildcards(id)
	if id == "" {
		return fmt.Errorf("exam id required: %w", ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE health_schedule SET completed = 1
		WHERE id = (SELECT id FROM health_schedule WHERE id LIKE ? LIMIT 1)`,
		id+"%",
	)
	if err != nil {
		return fmt.Errorf("complete exam: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete exam: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddMemory appends to the agent memory log
func (s *Store) AddMemory(ctx context.Context, content, category string) (*domain.MemoryEntry, error) {
	entry := domain.MemoryEntry{
		ID:        uuid.New().String(),
		Content:   content,
		Category:  category,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO agent_memory (id, content, category, created_at) VALUES (?, ?, ?, ?)",
		entry.ID, entry.Content, entry.Category, entry.CreatedAt.UTC().Format(memoryTimeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return &entry, nil
}

// RecentTranscript returns the latest voice transcript recorded within the
// given window, or "" when there is none
func (s *Store) RecentTranscript(ctx context.Context, within time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var content, createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT content, created_at FROM agent_memory WHERE category = ? ORDER BY created_at DESC LIMIT 1",
		domain.MemoryVoiceTranscript,
	).Scan(&content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("recent transcript: %w", err)
	}

	at := parseTime(createdAt)
	if at.IsZero() || s.now().Sub(at) > within {
		return "", nil
	}
	return content, nil
}

// Timeline returns supplements and vitals between from and to, newest first
func (s *Store) Timeline(ctx context.Context, from, to time.Time) ([]domain.TimelineEntry, error) {
	f, t := formatTime(from), formatTime(to)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, event_type, label, value FROM (
			SELECT taken_at AS timestamp, 'supplement' AS event_type,
			       name || ' (' || dosage || ')' AS label, NULL AS value
			FROM supplements WHERE taken_at BETWEEN ? AND ?
			UNION ALL
			SELECT recorded_at AS timestamp, 'vital' AS event_type,
			       vital_type || ': ' || CAST(value AS TEXT) || ' ' || unit AS label, value
			FROM vitals WHERE recorded_at BETWEEN ? AND ?
		) ORDER BY timestamp DESC
	`, f, t, f, t)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	var entries []domain.TimelineEntry
	for rows.Next() {
		var e domain.TimelineEntry
		var ts string
		var value sql.NullFloat64
		if err := rows.Scan(&ts, &e.EventType, &e.Label, &value); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		e.Timestamp = parseTime(ts)
		if value.Valid {
			v := value.Float64
			e.Value = &v
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func stripWildcards(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(strings.TrimSpace(s))
}
