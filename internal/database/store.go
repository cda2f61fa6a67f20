package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pagetrail/internal/backend"
	"github.com/nao1215/pagetrail/internal/model"
)

var _ backend.Backend = (*Store)(nil)

// FileName is the archive file created inside the data directory.
const FileName = "pagetrail.db"

// Store is a SQLite archive of everything pagetrail collects.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive inside dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the archive file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS browser (
		id TEXT PRIMARY KEY,
		user_agent TEXT,
		platform TEXT,
		testpilot INTEGER DEFAULT 0,
		created DATETIME DEFAULT CURRENT_TIMESTAMP,
		latest INTEGER,
		oldest INTEGER
	);

	CREATE TABLE IF NOT EXISTS browser_session (
		id TEXT PRIMARY KEY,
		browser_id TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		version TEXT
	);

	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		browser_id TEXT NOT NULL,
		session_id TEXT,
		url TEXT NOT NULL,
		load_time INTEGER NOT NULL,
		unload_time INTEGER,
		transition_type TEXT,
		source_id TEXT,
		initial_load_id TEXT,
		new_tab INTEGER DEFAULT 0,
		active_count INTEGER DEFAULT 0,
		active_time INTEGER DEFAULT 0,
		closed_reason TEXT,
		status_code INTEGER,
		content_type TEXT,
		record_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_browser ON activity(browser_id);
	CREATE INDEX IF NOT EXISTS idx_activity_url ON activity(url);
	CREATE INDEX IF NOT EXISTS idx_activity_load_time ON activity(load_time);

	CREATE TABLE IF NOT EXISTS page (
		url TEXT PRIMARY KEY,
		fetched DATETIME DEFAULT CURRENT_TIMESTAMP,
		redirect_url TEXT,
		activity_id TEXT,
		title TEXT,
		content_hash TEXT,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fetch_error (
		url TEXT PRIMARY KEY,
		error_message TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		browser_id TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		last_visit_time INTEGER,
		visit_count INTEGER,
		typed_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_history_url ON history(url);

	CREATE TABLE IF NOT EXISTS visit (
		id TEXT PRIMARY KEY,
		history_id TEXT NOT NULL,
		visit_time INTEGER,
		referring_visit_id TEXT,
		transition TEXT
	);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// CheckPageNeeded reports whether url has no stored capture yet.
func (s *Store) CheckPageNeeded(ctx context.Context, url string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM page WHERE url = ?`, url).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check page: %w", err)
	}
	return count == 0, nil
}

// SubmitFetchedPage stores a capture and clears any earlier failure for url.
// A capture whose own URL differs from url outside the fragment is recorded
// as a redirect.
func (s *Store) SubmitFetchedPage(ctx context.Context, url string, page *model.FetchedPage) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to serialize page: %w", err)
	}

	var redirect sql.NullString
	if page.URL != "" && stripFragment(page.URL) != stripFragment(url) {
		redirect = sql.NullString{String: page.URL, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
	INSERT INTO page (url, redirect_url, activity_id, title, content_hash, data_json)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		fetched = CURRENT_TIMESTAMP,
		redirect_url = excluded.redirect_url,
		activity_id = excluded.activity_id,
		title = excluded.title,
		content_hash = excluded.content_hash,
		data_json = excluded.data_json
	`, url, redirect, nullIfEmpty(page.ActivityID), page.Title, page.ContentHash, string(data))
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fetch_error WHERE url = ?`, url); err != nil {
		return fmt.Errorf("failed to clear fetch error: %w", err)
	}
	return tx.Commit()
}

// SubmitFetchFailure records a capture failure for url.
func (s *Store) SubmitFetchFailure(ctx context.Context, url, message string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO fetch_error (url, error_message) VALUES (?, ?)
	ON CONFLICT(url) DO UPDATE SET
		error_message = excluded.error_message,
		timestamp = CURRENT_TIMESTAMP
	`, url, message)
	if err != nil {
		return fmt.Errorf("failed to insert fetch error: %w", err)
	}
	return nil
}

// SubmitActivityBatch upserts page records. Records are replaced by id, so
// a page flushed while open is updated when it is flushed again closed.
func (s *Store) SubmitActivityBatch(ctx context.Context, browserID string, pages []model.PageRecord) error {
	if browserID == "" {
		return backend.ErrNoBrowserID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO activity (
		id, browser_id, session_id, url, load_time, unload_time, transition_type,
		source_id, initial_load_id, new_tab, active_count, active_time,
		closed_reason, status_code, content_type, record_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare activity insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pages {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to serialize activity %s: %w", p.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			p.ID, browserID, p.SessionID, p.URL, p.LoadTime, p.UnloadTime,
			p.TransitionType, p.SourceID, p.InitialLoadID, p.NewTab,
			p.ActiveCount, p.ActiveTime, p.ClosedReason, p.StatusCode,
			p.ContentType, string(data),
		)
		if err != nil {
			return fmt.Errorf("failed to insert activity %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// SubmitHistory upserts history items and their visits and updates the
// browser's latest and oldest visit times.
func (s *Store) SubmitHistory(ctx context.Context, browserID, _ string, items map[string]model.HistoryItem) error {
	if browserID == "" {
		return backend.ErrNoBrowserID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for id, item := range items {
		_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO history (id, browser_id, url, title, last_visit_time, visit_count, typed_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, browserID, item.URL, item.Title, item.LastVisitTime, item.VisitCount, item.TypedCount)
		if err != nil {
			return fmt.Errorf("failed to insert history %s: %w", id, err)
		}
		for _, v := range item.Visits {
			_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO visit (id, history_id, visit_time, referring_visit_id, transition)
			VALUES (?, ?, ?, ?, ?)
			`, v.VisitID, id, v.VisitTime, nullIfEmpty(v.ReferringVisitID), v.Transition)
			if err != nil {
				return fmt.Errorf("failed to insert visit %s: %w", v.VisitID, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO browser (id) VALUES (?) ON CONFLICT(id) DO NOTHING
	`, browserID)
	if err != nil {
		return fmt.Errorf("failed to ensure browser: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
	UPDATE browser
	SET latest = (SELECT MAX(last_visit_time) FROM history WHERE browser_id = ?),
	    oldest = (SELECT MIN(last_visit_time) FROM history WHERE browser_id = ?)
	WHERE id = ?
	`, browserID, browserID, browserID)
	if err != nil {
		return fmt.Errorf("failed to update browser range: %w", err)
	}
	return tx.Commit()
}

// Status summarizes what the archive holds for browserID.
func (s *Store) Status(ctx context.Context, browserID string) (model.BackendStatus, error) {
	var (
		st     model.BackendStatus
		latest sql.NullInt64
		oldest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT
		(SELECT COUNT(*) FROM history WHERE browser_id = ?),
		(SELECT latest FROM browser WHERE id = ?),
		(SELECT oldest FROM browser WHERE id = ?),
		(SELECT COUNT(*) FROM history, page WHERE history.url = page.url AND history.browser_id = ?)
	`, browserID, browserID, browserID, browserID).Scan(&st.HistoryCount, &latest, &oldest, &st.FetchedCount)
	if err != nil {
		return st, fmt.Errorf("failed to query status: %w", err)
	}
	if latest.Valid {
		st.Latest = latest.Int64
	}
	if oldest.Valid {
		st.Oldest = model.Ptr(oldest.Int64)
	}
	st.UnfetchedCount = st.HistoryCount - st.FetchedCount
	return st, nil
}

// RegisterBrowser creates the browser row if it does not exist.
func (s *Store) RegisterBrowser(ctx context.Context, info model.BrowserInfo) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO browser (id, user_agent, platform, testpilot) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_agent = excluded.user_agent,
		platform = excluded.platform,
		testpilot = excluded.testpilot
	`, info.BrowserID, info.UserAgent, info.Platform, info.TestPilot)
	if err != nil {
		return fmt.Errorf("failed to register browser: %w", err)
	}
	return nil
}

// RegisterSession records a daemon session.
func (s *Store) RegisterSession(ctx context.Context, info model.SessionInfo) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO browser_session (id, browser_id, start_time, version) VALUES (?, ?, ?, ?)
	`, info.SessionID, info.BrowserID, info.StartTime, info.Version)
	if err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	return nil
}

// ActivityRecords returns the stored records for a browser ordered by load time.
func (s *Store) ActivityRecords(ctx context.Context, browserID string) ([]model.PageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT record_json FROM activity WHERE browser_id = ? ORDER BY load_time, id
	`, browserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var records []model.PageRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		var rec model.PageRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue // Skip malformed records
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FetchedPageRecord is a stored capture with its bookkeeping columns.
type FetchedPageRecord struct {
	URL         string
	Fetched     time.Time
	RedirectURL string
	Page        model.FetchedPage
}

// GetFetchedPage returns the stored capture for url, or nil if there is none.
func (s *Store) GetFetchedPage(ctx context.Context, url string) (*FetchedPageRecord, error) {
	var (
		rec      FetchedPageRecord
		fetched  string
		redirect sql.NullString
		data     string
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT url, fetched, redirect_url, data_json FROM page WHERE url = ?
	`, url).Scan(&rec.URL, &fetched, &redirect, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	rec.Fetched = parseTimestamp(fetched)
	rec.RedirectURL = redirect.String
	if err := json.Unmarshal([]byte(data), &rec.Page); err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &rec, nil
}

// FetchFailure returns the recorded failure message for url, if any.
func (s *Store) FetchFailure(ctx context.Context, url string) (string, bool, error) {
	var msg string
	err := s.db.QueryRowContext(ctx, `SELECT error_message FROM fetch_error WHERE url = ?`, url).Scan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get fetch error: %w", err)
	}
	return msg, true, nil
}

// NeededPage is a history URL without a stored capture.
type NeededPage struct {
	URL       string `json:"url"`
	LastError string `json:"lastError,omitempty"`
}

// NeededPages lists history URLs that have no capture yet, newest first,
// with never-failed URLs ahead of previously failed ones.
func (s *Store) NeededPages(ctx context.Context, limit int) ([]NeededPage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT history.url, fetch_error.error_message FROM history
	LEFT JOIN page ON page.url = history.url
	LEFT JOIN fetch_error ON fetch_error.url = history.url
	WHERE page.url IS NULL
	ORDER BY fetch_error.url IS NULL DESC, history.last_visit_time DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query needed pages: %w", err)
	}
	defer rows.Close()

	var result []NeededPage
	for rows.Next() {
		var (
			np  NeededPage
			msg sql.NullString
		)
		if err := rows.Scan(&np.URL, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan needed page: %w", err)
		}
		np.LastError = msg.String
		result = append(result, np)
	}
	return result, rows.Err()
}

func stripFragment(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// It returns the zero time if no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
