package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const (
	releaseDateLayout = "2006-01-02"

	// lookupBatchSize bounds the number of placeholders in one IN clause.
	lookupBatchSize = 500

	// maxFileConns bounds the pool of a file catalog. WAL lets its readers
	// run side by side; writes are serialised by the catalog's own lock.
	maxFileConns = 4

	// schemaVersion 2 added publisher, genres and release year to games_fts.
	schemaVersion = 2
)

// connPragmas apply to every pooled connection.
var connPragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"busy_timeout", "5000"},
	{"synchronous", "NORMAL"},
	{"cache_size", "-32768"},
	{"temp_store", "MEMORY"},
}

// SQLiteCatalog is the default catalog backend: a games table with an FTS5
// index over names, studios, genres and release years, plus the moderation
// override and engagement tables.
type SQLiteCatalog struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var (
	_ Catalog         = (*SQLiteCatalog)(nil)
	_ OverrideStore   = (*SQLiteCatalog)(nil)
	_ EngagementStore = (*SQLiteCatalog)(nil)
	_ Writer          = (*SQLiteCatalog)(nil)
)

// checkSQLiteIntegrity runs a quick integrity check on an existing database.
// A missing file is not an error; it will be created.
func checkSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteCatalog opens or creates a catalog database at path.
// An empty path creates an in-memory catalog for testing.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, gserrors.New(gserrors.ErrCodeCatalogOpen,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}

		// A corrupt catalog holds curated data, so it is reported rather
		// than cleared.
		if err := checkSQLiteIntegrity(path); err != nil {
			slog.Error("catalog_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil, gserrors.New(gserrors.ErrCodeCatalogCorrupt, "catalog database is corrupted", err).
				WithDetail("path", path).
				WithSuggestion("restore the catalog from a backup or re-run ingest into a fresh path")
		}
		dsn = fileDSN(path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, gserrors.New(gserrors.ErrCodeCatalogOpen, "failed to open catalog database", err)
	}

	if path == "" {
		// Each connection to :memory: is its own database, so the pool is one
		// connection and the pragmas are run on it directly.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range connPragmas {
			if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)); err != nil {
				_ = db.Close()
				return nil, gserrors.New(gserrors.ErrCodeCatalogOpen, "failed to set pragma", err)
			}
		}
	} else {
		db.SetMaxOpenConns(maxFileConns)
		db.SetMaxIdleConns(maxFileConns)
	}
	db.SetConnMaxLifetime(0)

	c := &SQLiteCatalog{db: db, path: path}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, gserrors.New(gserrors.ErrCodeCatalogOpen, "failed to initialize schema", err)
	}
	return c, nil
}

// fileDSN carries connPragmas as _pragma parameters so every connection the
// pool opens gets them, not only the first.
func fileDSN(path string) string {
	params := url.Values{}
	for _, pragma := range connPragmas {
		params.Add("_pragma", fmt.Sprintf("%s(%s)", pragma.name, pragma.value))
	}
	return path + "?" + params.Encode()
}

func (c *SQLiteCatalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS games (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		category       TEXT NOT NULL DEFAULT 'unknown',
		platforms      TEXT NOT NULL DEFAULT '[]',
		genres         TEXT NOT NULL DEFAULT '[]',
		developer      TEXT NOT NULL DEFAULT '',
		publisher      TEXT NOT NULL DEFAULT '',
		release_date   TEXT,
		rating         REAL,
		rating_count   INTEGER,
		follower_count INTEGER,
		has_summary    INTEGER NOT NULL DEFAULT 0,
		has_cover      INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS moderation_overrides (
		id         TEXT PRIMARY KEY,
		flag       TEXT NOT NULL CHECK (flag IN ('allow', 'deny')),
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS engagement (
		id        TEXT PRIMARY KEY,
		reviews   INTEGER NOT NULL DEFAULT 0,
		list_adds INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return err
	}

	var version int
	if err := c.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}
	return c.rebuildFTS(version)
}

// rebuildFTS recreates games_fts with the current columns and refills it
// from games. Older catalogs indexed names and developers only.
func (c *SQLiteCatalog) rebuildFTS(from int) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`DROP TABLE IF EXISTS games_fts`,
		// game_id is stored but not searchable
		`CREATE VIRTUAL TABLE games_fts USING fts5(
			game_id UNINDEXED,
			name,
			developer,
			publisher,
			genres,
			release_year,
			tokenize='unicode61 remove_diacritics 2'
		)`,
		`INSERT INTO games_fts (game_id, name, developer, publisher, genres, release_year)
		SELECT g.id, g.name, g.developer, g.publisher,
			(SELECT COALESCE(group_concat(j.value, ' '), '') FROM json_each(g.genres) j),
			COALESCE(substr(g.release_date, 1, 4), '')
		FROM games g`,
		`INSERT OR REPLACE INTO schema_version (version) VALUES (` + strconv.Itoa(schemaVersion) + `)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if from > 0 {
		slog.Info("catalog_fts_rebuilt",
			slog.Int("from_version", from),
			slog.Int("to_version", schemaVersion))
	}
	return nil
}

const gameColumns = `g.id, g.name, g.category, g.platforms, g.genres, g.developer,
	g.publisher, g.release_date, g.rating, g.rating_count, g.follower_count,
	g.has_summary, g.has_cover`

// Search returns records holding every query token across name, developer,
// publisher, genres and release year, best BM25 match first. When full-text
// matching yields fewer than limit records, a case-insensitive substring
// match on the name tops up the page.
func (c *SQLiteCatalog) Search(ctx context.Context, query string, limit int) ([]RawRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("catalog is closed")
	}
	tokens := queryTokens(query)
	if len(tokens) == 0 || limit <= 0 {
		return []RawRecord{}, nil
	}

	records, err := c.searchFTS(ctx, tokens, limit)
	if err != nil {
		return nil, err
	}
	if len(records) >= limit {
		return records, nil
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.ID] = struct{}{}
	}
	extra, err := c.searchLike(ctx, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, err
	}
	for _, r := range extra {
		if len(records) >= limit {
			break
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		records = append(records, r)
	}
	return records, nil
}

func (c *SQLiteCatalog) searchFTS(ctx context.Context, tokens []string, limit int) ([]RawRecord, error) {
	// bm25() is negative, lower is better.
	q := `SELECT ` + gameColumns + `, bm25(games_fts) AS score
		FROM games_fts
		JOIN games g ON g.id = games_fts.game_id
		WHERE games_fts MATCH ?
		ORDER BY score, g.id
		LIMIT ?`

	rows, err := c.db.QueryContext(ctx, q, ftsMatchExpr(tokens), limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []RawRecord{}, nil
		}
		return nil, classifySQLiteError("catalog search failed", err)
	}
	defer rows.Close()

	var records []RawRecord
	for rows.Next() {
		var score float64
		r, err := scanGame(rows, &score)
		if err != nil {
			return nil, err
		}
		r.Hint = hintFromScore(-score)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLiteError("catalog search failed", err)
	}
	return records, nil
}

func (c *SQLiteCatalog) searchLike(ctx context.Context, phrase string, limit int) ([]RawRecord, error) {
	q := `SELECT ` + gameColumns + `
		FROM games g
		WHERE g.name LIKE ? ESCAPE '\'
		ORDER BY COALESCE(g.follower_count, 0) DESC, g.id
		LIMIT ?`

	rows, err := c.db.QueryContext(ctx, q, likePattern(phrase), limit)
	if err != nil {
		return nil, classifySQLiteError("catalog search failed", err)
	}
	defer rows.Close()

	var records []RawRecord
	for rows.Next() {
		r, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLiteError("catalog search failed", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanGame reads one gameColumns row, followed by any extra destinations.
func scanGame(row rowScanner, extra ...any) (RawRecord, error) {
	var (
		r                      RawRecord
		category               string
		platforms, genres      string
		releaseDate            sql.NullString
		rating                 sql.NullFloat64
		ratingCount, followers sql.NullInt64
		hasSummary, hasCover   bool
	)
	dest := []any{&r.ID, &r.Name, &category, &platforms, &genres, &r.Developer,
		&r.Publisher, &releaseDate, &rating, &ratingCount, &followers,
		&hasSummary, &hasCover}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return RawRecord{}, fmt.Errorf("failed to scan record: %w", err)
	}

	r.Category = ParseCategory(category)
	r.Source = SourcePrimary
	r.SummaryPresent = hasSummary
	r.CoverPresent = hasCover
	if err := json.Unmarshal([]byte(platforms), &r.Platforms); err != nil {
		return RawRecord{}, fmt.Errorf("record %s: bad platforms: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(genres), &r.Genres); err != nil {
		return RawRecord{}, fmt.Errorf("record %s: bad genres: %w", r.ID, err)
	}
	if releaseDate.Valid && releaseDate.String != "" {
		if t, err := time.Parse(releaseDateLayout, releaseDate.String); err == nil {
			r.ReleaseDate = t
		}
	}
	if rating.Valid {
		v := rating.Float64
		r.RatingValue = &v
	}
	if ratingCount.Valid {
		v := int(ratingCount.Int64)
		r.RatingSampleSize = &v
	}
	if followers.Valid {
		v := int(followers.Int64)
		r.FollowerCount = &v
	}
	return r, nil
}

// Upsert inserts or replaces records and their full-text entries in one
// transaction.
func (c *SQLiteCatalog) Upsert(ctx context.Context, records []RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("catalog is closed")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyWriteError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO games (id, name, category, platforms, genres, developer, publisher,
			release_date, rating, rating_count, follower_count, has_summary, has_cover)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			platforms = excluded.platforms,
			genres = excluded.genres,
			developer = excluded.developer,
			publisher = excluded.publisher,
			release_date = excluded.release_date,
			rating = excluded.rating,
			rating_count = excluded.rating_count,
			follower_count = excluded.follower_count,
			has_summary = excluded.has_summary,
			has_cover = excluded.has_cover`)
	if err != nil {
		return classifyWriteError("failed to prepare upsert", err)
	}
	defer upsertStmt.Close()

	// FTS5 tables don't support REPLACE, so delete first.
	deleteFTS, err := tx.PrepareContext(ctx, `DELETE FROM games_fts WHERE game_id = ?`)
	if err != nil {
		return classifyWriteError("failed to prepare fts delete", err)
	}
	defer deleteFTS.Close()

	insertFTS, err := tx.PrepareContext(ctx, `
		INSERT INTO games_fts (game_id, name, developer, publisher, genres, release_year)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return classifyWriteError("failed to prepare fts insert", err)
	}
	defer insertFTS.Close()

	for i := range records {
		r := &records[i]
		if err := r.Validate(); err != nil {
			return err
		}
		platforms, _ := json.Marshal(nonNil(r.Platforms))
		genres, _ := json.Marshal(nonNil(r.Genres))

		var releaseDate any
		releaseYear := ""
		if !r.ReleaseDate.IsZero() {
			releaseDate = r.ReleaseDate.Format(releaseDateLayout)
			releaseYear = strconv.Itoa(r.ReleaseDate.Year())
		}

		if _, err := upsertStmt.ExecContext(ctx,
			r.ID, r.Name, string(ParseCategory(string(r.Category))), string(platforms), string(genres),
			r.Developer, r.Publisher, releaseDate, nullableFloat(r.RatingValue),
			nullableInt(r.RatingSampleSize), nullableInt(r.FollowerCount),
			r.SummaryPresent, r.CoverPresent,
		); err != nil {
			return classifyWriteError(fmt.Sprintf("failed to upsert record %s", r.ID), err)
		}
		if _, err := deleteFTS.ExecContext(ctx, r.ID); err != nil {
			return classifyWriteError(fmt.Sprintf("failed to clear fts entry %s", r.ID), err)
		}
		if _, err := insertFTS.ExecContext(ctx, r.ID, r.Name, r.Developer, r.Publisher,
			strings.Join(r.Genres, " "), releaseYear); err != nil {
			return classifyWriteError(fmt.Sprintf("failed to index record %s", r.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyWriteError("failed to commit upsert", err)
	}
	return nil
}

// LookupFlags returns the moderation flag for every ID that has one.
func (c *SQLiteCatalog) LookupFlags(ctx context.Context, ids []string) (map[string]Flag, error) {
	flags := make(map[string]Flag)
	err := c.lookupByIDs(ctx, `SELECT id, flag FROM moderation_overrides WHERE id IN (%s)`, ids,
		func(rows *sql.Rows) error {
			var id, flag string
			if err := rows.Scan(&id, &flag); err != nil {
				return err
			}
			if f, ok := ParseFlag(flag); ok && f != FlagNone {
				flags[id] = f
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return flags, nil
}

// SetFlag records a moderation override. FlagNone removes any existing one.
func (c *SQLiteCatalog) SetFlag(ctx context.Context, id string, flag Flag) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("catalog is closed")
	}

	var err error
	switch flag {
	case FlagNone:
		_, err = c.db.ExecContext(ctx, `DELETE FROM moderation_overrides WHERE id = ?`, id)
	case FlagAllow, FlagDeny:
		_, err = c.db.ExecContext(ctx, `
			INSERT INTO moderation_overrides (id, flag, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET flag = excluded.flag, updated_at = excluded.updated_at`,
			id, string(flag), time.Now().UTC().Format(time.RFC3339))
	default:
		return gserrors.InputError(fmt.Sprintf("unknown moderation flag %q", flag), nil)
	}
	if err != nil {
		return classifyWriteError("failed to set moderation flag", err)
	}
	return nil
}

// Counts returns engagement counts for every ID that has any.
func (c *SQLiteCatalog) Counts(ctx context.Context, ids []string) (map[string]Engagement, error) {
	counts := make(map[string]Engagement)
	err := c.lookupByIDs(ctx, `SELECT id, reviews, list_adds FROM engagement WHERE id IN (%s)`, ids,
		func(rows *sql.Rows) error {
			var id string
			var e Engagement
			if err := rows.Scan(&id, &e.Reviews, &e.ListAdds); err != nil {
				return err
			}
			counts[id] = e
			return nil
		})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// SetEngagement replaces the engagement counts for id.
func (c *SQLiteCatalog) SetEngagement(ctx context.Context, id string, e Engagement) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("catalog is closed")
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO engagement (id, reviews, list_adds) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET reviews = excluded.reviews, list_adds = excluded.list_adds`,
		id, e.Reviews, e.ListAdds)
	if err != nil {
		return classifyWriteError("failed to set engagement", err)
	}
	return nil
}

// lookupByIDs runs query once per batch of IDs. query carries a single %s
// verb that receives the placeholder list.
func (c *SQLiteCatalog) lookupByIDs(ctx context.Context, query string, ids []string, scan func(*sql.Rows) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("catalog is closed")
	}

	for start := 0; start < len(ids); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(ids))
		batch := ids[start:end]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")

		rows, err := c.db.QueryContext(ctx, fmt.Sprintf(query, placeholders), args...)
		if err != nil {
			return classifySQLiteError("lookup failed", err)
		}
		for rows.Next() {
			if err := scan(rows); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan lookup row: %w", err)
			}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return classifySQLiteError("lookup failed", err)
		}
	}
	return nil
}

// Stats counts records and overrides.
func (c *SQLiteCatalog) Stats(ctx context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return Stats{}, fmt.Errorf("catalog is closed")
	}

	var s Stats
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&s.Records); err != nil {
		return Stats{}, classifySQLiteError("failed to count records", err)
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM moderation_overrides`).Scan(&s.Overrides); err != nil {
		return Stats{}, classifySQLiteError("failed to count overrides", err)
	}
	return s, nil
}

// Path returns the database path, empty for in-memory catalogs.
func (c *SQLiteCatalog) Path() string {
	return c.path
}

// Close closes the database. Safe to call more than once.
func (c *SQLiteCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func isLockedError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func classifySQLiteError(msg string, err error) error {
	if isLockedError(err) {
		return gserrors.New(gserrors.ErrCodeCatalogLocked, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func classifyWriteError(msg string, err error) error {
	if isLockedError(err) {
		return gserrors.New(gserrors.ErrCodeCatalogLocked, msg, err)
	}
	return gserrors.New(gserrors.ErrCodeCatalogWrite, msg, err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
