package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
)

// PostgresConfig holds connection settings for a PostgreSQL catalog.
type PostgresConfig struct {
	DSN            string
	MaxConnections int32
	ConnectTimeout time.Duration
}

// PostgresCatalog serves the catalog, overrides, and engagement from a shared
// PostgreSQL database. Matching is case-insensitive substring matching on the
// name, studios, genres and release year.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

var (
	_ Catalog         = (*PostgresCatalog)(nil)
	_ OverrideStore   = (*PostgresCatalog)(nil)
	_ EngagementStore = (*PostgresCatalog)(nil)
	_ Writer          = (*PostgresCatalog)(nil)
)

// NewPostgresCatalog connects to the database and verifies it is reachable.
func NewPostgresCatalog(ctx context.Context, cfg PostgresConfig) (*PostgresCatalog, error) {
	if cfg.DSN == "" {
		return nil, gserrors.ConfigError("catalog.dsn is required for the postgres backend", nil)
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, gserrors.ConfigError("failed to parse catalog.dsn", err)
	}
	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolConfig)
	if err != nil {
		return nil, gserrors.New(gserrors.ErrCodeCatalogOpen, "failed to create connection pool", err)
	}
	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, gserrors.SourceUnavailable("failed to reach catalog database", err)
	}

	return &PostgresCatalog{pool: pool}, nil
}

// EnsureSchema creates the catalog tables if they are missing.
func (p *PostgresCatalog) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		category       TEXT NOT NULL DEFAULT 'unknown',
		platforms      TEXT[] NOT NULL DEFAULT '{}',
		genres         TEXT[] NOT NULL DEFAULT '{}',
		developer      TEXT NOT NULL DEFAULT '',
		publisher      TEXT NOT NULL DEFAULT '',
		release_date   DATE,
		rating         DOUBLE PRECISION,
		rating_count   INTEGER,
		follower_count INTEGER,
		has_summary    BOOLEAN NOT NULL DEFAULT FALSE,
		has_cover      BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS moderation_overrides (
		id         TEXT PRIMARY KEY,
		flag       TEXT NOT NULL CHECK (flag IN ('allow', 'deny')),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS engagement (
		id        TEXT PRIMARY KEY,
		reviews   INTEGER NOT NULL DEFAULT 0,
		list_adds INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return gserrors.New(gserrors.ErrCodeCatalogWrite, "failed to create catalog schema", err)
	}
	return nil
}

// Search returns records whose name contains query, or that hold every query
// token in their name, studios, genres or release year, ignoring case. Exact
// names come first, then the most followed.
func (p *PostgresCatalog) Search(ctx context.Context, query string, limit int) ([]RawRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []RawRecord{}, nil
	}

	args := []any{likePattern(query), query, limit}
	where := "name ILIKE $1"
	if tokens := queryTokens(query); len(tokens) > 0 {
		clause, tokenArgs := tokenMatchClause(tokens, len(args)+1)
		where += " OR " + clause
		args = append(args, tokenArgs...)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, name, category, platforms, genres, developer, publisher,
			release_date, rating, rating_count, follower_count, has_summary, has_cover
		FROM games
		WHERE `+where+`
		ORDER BY (lower(name) = lower($2)) DESC, follower_count DESC NULLS LAST, id
		LIMIT $3`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	defer rows.Close()

	var records []RawRecord
	for rows.Next() {
		r, err := scanPostgresGame(rows)
		if err != nil {
			return nil, err
		}
		r.Hint = substringHint(r.Name, query)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	return records, nil
}

// tokenMatchClause requires each token in some searchable column. Parameters
// are numbered from first.
func tokenMatchClause(tokens []string, first int) (string, []any) {
	conds := make([]string, len(tokens))
	args := make([]any, len(tokens))
	for i, tok := range tokens {
		conds[i] = fmt.Sprintf(`(name ILIKE $%[1]d OR developer ILIKE $%[1]d OR publisher ILIKE $%[1]d`+
			` OR array_to_string(genres, ' ') ILIKE $%[1]d OR to_char(release_date, 'YYYY') ILIKE $%[1]d)`, first+i)
		args[i] = likePattern(tok)
	}
	return "(" + strings.Join(conds, " AND ") + ")", args
}

func scanPostgresGame(row pgx.Row) (RawRecord, error) {
	var (
		r                      RawRecord
		category               string
		releaseDate            pgtype.Date
		rating                 pgtype.Float8
		ratingCount, followers pgtype.Int4
	)
	err := row.Scan(&r.ID, &r.Name, &category, &r.Platforms, &r.Genres, &r.Developer,
		&r.Publisher, &releaseDate, &rating, &ratingCount, &followers,
		&r.SummaryPresent, &r.CoverPresent)
	if err != nil {
		return RawRecord{}, fmt.Errorf("failed to scan record: %w", err)
	}

	r.Category = ParseCategory(category)
	r.Source = SourcePrimary
	if releaseDate.Valid {
		r.ReleaseDate = releaseDate.Time
	}
	if rating.Valid {
		v := rating.Float64
		r.RatingValue = &v
	}
	if ratingCount.Valid {
		v := int(ratingCount.Int32)
		r.RatingSampleSize = &v
	}
	if followers.Valid {
		v := int(followers.Int32)
		r.FollowerCount = &v
	}
	return r, nil
}

// substringHint rates how closely name matches a substring query.
func substringHint(name, query string) float64 {
	n, q := strings.ToLower(name), strings.ToLower(query)
	switch {
	case n == q:
		return 0.9
	case strings.HasPrefix(n, q):
		return 0.6
	default:
		return 0.3
	}
}

// Upsert inserts or replaces records in a single batch.
func (p *PostgresCatalog) Upsert(ctx context.Context, records []RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range records {
		r := &records[i]
		if err := r.Validate(); err != nil {
			return err
		}
		var releaseDate any
		if !r.ReleaseDate.IsZero() {
			releaseDate = pgtype.Date{Time: r.ReleaseDate, Valid: true}
		}
		batch.Queue(`
			INSERT INTO games (id, name, category, platforms, genres, developer, publisher,
				release_date, rating, rating_count, follower_count, has_summary, has_cover)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				category = EXCLUDED.category,
				platforms = EXCLUDED.platforms,
				genres = EXCLUDED.genres,
				developer = EXCLUDED.developer,
				publisher = EXCLUDED.publisher,
				release_date = EXCLUDED.release_date,
				rating = EXCLUDED.rating,
				rating_count = EXCLUDED.rating_count,
				follower_count = EXCLUDED.follower_count,
				has_summary = EXCLUDED.has_summary,
				has_cover = EXCLUDED.has_cover`,
			r.ID, r.Name, string(ParseCategory(string(r.Category))), nonNil(r.Platforms), nonNil(r.Genres),
			r.Developer, r.Publisher, releaseDate, nullableFloat(r.RatingValue),
			nullableInt(r.RatingSampleSize), nullableInt(r.FollowerCount),
			r.SummaryPresent, r.CoverPresent)
	}

	br := p.pool.SendBatch(ctx, batch)
	for _, r := range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return gserrors.New(gserrors.ErrCodeCatalogWrite, fmt.Sprintf("failed to upsert record %s", r.ID), err)
		}
	}
	if err := br.Close(); err != nil {
		return gserrors.New(gserrors.ErrCodeCatalogWrite, "failed to finish upsert batch", err)
	}
	return nil
}

// LookupFlags returns the moderation flag for every ID that has one.
func (p *PostgresCatalog) LookupFlags(ctx context.Context, ids []string) (map[string]Flag, error) {
	flags := make(map[string]Flag)
	if len(ids) == 0 {
		return flags, nil
	}

	rows, err := p.pool.Query(ctx, `SELECT id, flag FROM moderation_overrides WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("override lookup failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, flag string
		if err := rows.Scan(&id, &flag); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		if f, ok := ParseFlag(flag); ok && f != FlagNone {
			flags[id] = f
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("override lookup failed: %w", err)
	}
	return flags, nil
}

// SetFlag records a moderation override. FlagNone removes any existing one.
func (p *PostgresCatalog) SetFlag(ctx context.Context, id string, flag Flag) error {
	var err error
	switch flag {
	case FlagNone:
		_, err = p.pool.Exec(ctx, `DELETE FROM moderation_overrides WHERE id = $1`, id)
	case FlagAllow, FlagDeny:
		_, err = p.pool.Exec(ctx, `
			INSERT INTO moderation_overrides (id, flag, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET flag = EXCLUDED.flag, updated_at = EXCLUDED.updated_at`,
			id, string(flag))
	default:
		return gserrors.InputError(fmt.Sprintf("unknown moderation flag %q", flag), nil)
	}
	if err != nil {
		return gserrors.New(gserrors.ErrCodeCatalogWrite, "failed to set moderation flag", err)
	}
	return nil
}

// Counts returns engagement counts for every ID that has any.
func (p *PostgresCatalog) Counts(ctx context.Context, ids []string) (map[string]Engagement, error) {
	counts := make(map[string]Engagement)
	if len(ids) == 0 {
		return counts, nil
	}

	rows, err := p.pool.Query(ctx, `SELECT id, reviews, list_adds FROM engagement WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("engagement lookup failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                string
			reviews, listAdds int32
		)
		if err := rows.Scan(&id, &reviews, &listAdds); err != nil {
			return nil, fmt.Errorf("failed to scan engagement: %w", err)
		}
		counts[id] = Engagement{Reviews: int(reviews), ListAdds: int(listAdds)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement lookup failed: %w", err)
	}
	return counts, nil
}

// SetEngagement replaces the engagement counts for id.
func (p *PostgresCatalog) SetEngagement(ctx context.Context, id string, e Engagement) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO engagement (id, reviews, list_adds) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET reviews = EXCLUDED.reviews, list_adds = EXCLUDED.list_adds`,
		id, e.Reviews, e.ListAdds)
	if err != nil {
		return gserrors.New(gserrors.ErrCodeCatalogWrite, "failed to set engagement", err)
	}
	return nil
}

// Stats counts records and overrides.
func (p *PostgresCatalog) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := p.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM games), (SELECT COUNT(*) FROM moderation_overrides)`).
		Scan(&s.Records, &s.Overrides)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (p *PostgresCatalog) Close() error {
	p.pool.Close()
	return nil
}
