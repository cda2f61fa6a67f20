package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pagetrail/internal/model"
)

// PlacesFileName is the Firefox history database file name.
const PlacesFileName = "places.sqlite"

// ErrNoPlaces is returned when the profile has no history database.
var ErrNoPlaces = errors.New("places database not found")

// visitTypes maps moz_historyvisits.visit_type to transition names.
var visitTypes = map[int]string{
	1: "link",
	2: "typed",
	3: "auto_bookmark",
	4: "embed",
	5: "redirect_permanent",
	6: "redirect_temporary",
	7: "download",
	8: "framed_link",
	9: "reload",
}

// PlacesSource reads history from a Firefox profile's places.sqlite.
//
// The browser keeps the database locked while it runs, so every Search
// works on a private copy of the file and its write-ahead log.
type PlacesSource struct {
	path string
}

// NewPlacesSource creates a PlacesSource for the given profile directory
// or places.sqlite path.
func NewPlacesSource(path string) *PlacesSource {
	if filepath.Base(path) != PlacesFileName {
		path = filepath.Join(path, PlacesFileName)
	}
	return &PlacesSource{path: path}
}

// Path returns the places.sqlite path.
func (p *PlacesSource) Path() string { return p.path }

// Search implements Source. Keys are moz_places ids.
func (p *PlacesSource) Search(ctx context.Context, since time.Time) (map[string]model.HistoryItem, error) {
	if _, err := os.Stat(p.path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPlaces, p.path)
	}

	dir, err := os.MkdirTemp("", "pagetrail-places-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	snapshot := filepath.Join(dir, PlacesFileName)
	if err := copyFile(p.path, snapshot); err != nil {
		return nil, fmt.Errorf("failed to snapshot places database: %w", err)
	}
	if err := copyFile(p.path+"-wal", snapshot+"-wal"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to snapshot places log: %w", err)
	}

	db, err := sql.Open("sqlite", snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to open places database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	return queryPlaces(ctx, db, since)
}

// queryPlaces reads places and their visits since the given time.
// Firefox stores times in microseconds.
func queryPlaces(ctx context.Context, db *sql.DB, since time.Time) (map[string]model.HistoryItem, error) {
	cutoff := int64(0)
	if !since.IsZero() {
		cutoff = since.UnixMicro()
	}

	rows, err := db.QueryContext(ctx, `
		SELECT p.id, p.url, COALESCE(p.title, ''), COALESCE(p.last_visit_date, 0),
		       p.visit_count, p.typed,
		       v.id, v.visit_date, COALESCE(v.from_visit, 0), v.visit_type
		FROM moz_places p
		LEFT JOIN moz_historyvisits v ON v.place_id = p.id AND v.visit_date >= ?
		WHERE p.last_visit_date >= ?
		ORDER BY p.id, v.visit_date`, cutoff, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	items := make(map[string]model.HistoryItem)
	for rows.Next() {
		var (
			placeID, lastVisit         int64
			url, title                 string
			visitCount, typed          int
			visitID, visitDate, fromID sql.NullInt64
			visitType                  sql.NullInt64
		)
		if err := rows.Scan(&placeID, &url, &title, &lastVisit, &visitCount, &typed,
			&visitID, &visitDate, &fromID, &visitType); err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}

		key := strconv.FormatInt(placeID, 10)
		item, ok := items[key]
		if !ok {
			item = model.HistoryItem{
				URL:           url,
				Title:         title,
				LastVisitTime: lastVisit / 1000,
				VisitCount:    visitCount,
				TypedCount:    typed,
				Visits:        []model.Visit{},
			}
		}
		if visitID.Valid {
			v := model.Visit{
				VisitID:    strconv.FormatInt(visitID.Int64, 10),
				VisitTime:  visitDate.Int64 / 1000,
				Transition: visitTypes[int(visitType.Int64)],
			}
			if fromID.Int64 != 0 {
				v.ReferringVisitID = strconv.FormatInt(fromID.Int64, 10)
			}
			item.Visits = append(item.Visits, v)
		}
		items[key] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read places: %w", err)
	}
	return items, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck,gosec
		return err
	}
	return out.Close()
}
