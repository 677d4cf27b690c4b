// Package store provides the catalog backends the search pipeline retrieves
// from, plus the moderation override and engagement tables that sit beside
// the catalog.
package store

import (
	"context"
	"strings"
	"time"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
)

// Category is the catalog's content-type classification for a record.
type Category string

// Known categories. Anything else parses to CategoryUnknown.
const (
	CategoryMainGame            Category = "main_game"
	CategoryDLCAddon            Category = "dlc_addon"
	CategoryExpansion           Category = "expansion"
	CategoryBundle              Category = "bundle"
	CategoryStandaloneExpansion Category = "standalone_expansion"
	CategoryMod                 Category = "mod"
	CategoryEpisode             Category = "episode"
	CategorySeason              Category = "season"
	CategoryRemake              Category = "remake"
	CategoryRemaster            Category = "remaster"
	CategoryExpandedGame        Category = "expanded_game"
	CategoryPort                Category = "port"
	CategoryFork                Category = "fork"
	CategoryPack                Category = "pack"
	CategoryUpdate              Category = "update"
	CategoryUnknown             Category = "unknown"
)

var knownCategories = map[Category]struct{}{
	CategoryMainGame:            {},
	CategoryDLCAddon:            {},
	CategoryExpansion:           {},
	CategoryBundle:              {},
	CategoryStandaloneExpansion: {},
	CategoryMod:                 {},
	CategoryEpisode:             {},
	CategorySeason:              {},
	CategoryRemake:              {},
	CategoryRemaster:            {},
	CategoryExpandedGame:        {},
	CategoryPort:                {},
	CategoryFork:                {},
	CategoryPack:                {},
	CategoryUpdate:              {},
}

// ParseCategory maps a raw category label to a Category.
// Empty or unrecognised labels become CategoryUnknown.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownCategories[c]; ok {
		return c
	}
	return CategoryUnknown
}

// Source identifies where a record was retrieved from.
type Source string

const (
	// SourcePrimary marks records from the local catalog.
	SourcePrimary Source = "primary"
	// SourceExternal marks records from the external provider.
	SourceExternal Source = "external"
)

// RawRecord is a catalog entry as returned by a backend, before any filtering
// or scoring.
type RawRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Category         Category  `json:"category"`
	Platforms        []string  `json:"platforms,omitempty"`
	Genres           []string  `json:"genres,omitempty"`
	Developer        string    `json:"developer,omitempty"`
	Publisher        string    `json:"publisher,omitempty"`
	ReleaseDate      time.Time `json:"release_date,omitzero"`
	RatingValue      *float64  `json:"rating,omitempty"`
	RatingSampleSize *int      `json:"rating_count,omitempty"`
	FollowerCount    *int      `json:"follower_count,omitempty"`
	SummaryPresent   bool      `json:"has_summary,omitempty"`
	CoverPresent     bool      `json:"has_cover,omitempty"`

	// Hint is the backend's own match strength in [0,1]. Zero when the
	// backend has no notion of rank.
	Hint   float64 `json:"-"`
	Source Source  `json:"-"`
}

// Year returns the release year, or 0 when the date is unknown.
func (r *RawRecord) Year() int {
	if r.ReleaseDate.IsZero() {
		return 0
	}
	return r.ReleaseDate.Year()
}

// Validate reports whether the record carries the fields ingestion requires.
func (r *RawRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errMissingField("id")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errMissingField("name")
	}
	return nil
}

// Flag is a manual moderation override for a single record.
type Flag string

const (
	FlagNone  Flag = "none"
	FlagAllow Flag = "allow"
	FlagDeny  Flag = "deny"
)

// ParseFlag parses a flag label. Unrecognised labels return false.
func ParseFlag(s string) (Flag, bool) {
	switch Flag(strings.ToLower(strings.TrimSpace(s))) {
	case FlagNone, "":
		return FlagNone, true
	case FlagAllow:
		return FlagAllow, true
	case FlagDeny:
		return FlagDeny, true
	}
	return FlagNone, false
}

// Engagement holds first-party activity counts for a record.
type Engagement struct {
	Reviews  int `json:"reviews"`
	ListAdds int `json:"list_adds"`
}

// Catalog answers name queries against the game catalog.
type Catalog interface {
	// Search returns up to limit records whose name matches query
	// case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]RawRecord, error)
	Close() error
}

// OverrideStore holds moderation overrides keyed by record ID.
type OverrideStore interface {
	// LookupFlags returns the flag for each ID that has one. IDs with no
	// override are absent from the map.
	LookupFlags(ctx context.Context, ids []string) (map[string]Flag, error)
	SetFlag(ctx context.Context, id string, flag Flag) error
}

// EngagementStore holds first-party engagement counts keyed by record ID.
type EngagementStore interface {
	Counts(ctx context.Context, ids []string) (map[string]Engagement, error)
	SetEngagement(ctx context.Context, id string, e Engagement) error
}

// Writer accepts records for upsert into a catalog.
type Writer interface {
	Upsert(ctx context.Context, records []RawRecord) error
}

// Stats summarises a catalog's contents.
type Stats struct {
	Records   int `json:"records"`
	Overrides int `json:"overrides"`
}

func errMissingField(field string) error {
	return gserrors.New(gserrors.ErrCodeInvalidRecord, "record is missing "+field, nil).
		WithDetail("field", field)
}
