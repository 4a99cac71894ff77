// Package store keeps the last complete forecast in a local SQLite file so a
// rebooted device can show it before the network comes up.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/pkg/geometry"
)

// Store errors.
var (
	ErrNoSnapshot  = errors.New("no saved snapshot")
	ErrIncomplete  = errors.New("only complete snapshots are saved")
	ErrUnsupported = errors.New("unsupported snapshot encoding")
)

const recordVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS snapshot (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	fetched_at INTEGER NOT NULL,
	saved_at   INTEGER NOT NULL,
	payload    BLOB    NOT NULL
)`

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file (required). ":memory:" works for tests.
	Path string

	// Regions, when set, re-checks completeness of a loaded snapshot against
	// the current provisioning.
	Regions *avalanche.Provisioning

	Logger zerolog.Logger
}

// Store is a single-row SQLite table holding a msgpack-encoded snapshot.
type Store struct {
	db      *sql.DB
	regions *avalanche.Provisioning
	logger  zerolog.Logger
}

type snapshotRecord struct {
	Version    int               `msgpack:"v"`
	FetchedAt  time.Time         `msgpack:"fetched_at"`
	ETag       string            `msgpack:"etag"`
	Complete   bool              `msgpack:"complete"`
	Subregions []subregionRecord `msgpack:"subregions"`
}

type subregionRecord struct {
	ID         string           `msgpack:"id"`
	Name       string           `msgpack:"name"`
	Polygon    []geometry.Point `msgpack:"polygon"`
	Rating     int              `msgpack:"rating"`
	ValidFrom  time.Time        `msgpack:"valid_from"`
	ValidUntil time.Time        `msgpack:"valid_until"`
	Summary    string           `msgpack:"summary,omitempty"`
	Outlook    []dayRecord      `msgpack:"outlook,omitempty"`
}

type dayRecord struct {
	Date   time.Time `msgpack:"date"`
	Label  string    `msgpack:"label"`
	Rating int       `msgpack:"rating"`
}

// Open opens or creates the database and its table.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers on the file.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, regions: cfg.Regions, logger: cfg.Logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores snap unless a newer snapshot is already stored.
func (s *Store) Save(ctx context.Context, snap *avalanche.Snapshot) error {
	if snap == nil || !snap.Complete {
		return ErrIncomplete
	}

	payload, err := encode(snap)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshot (id, fetched_at, saved_at, payload) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			saved_at   = excluded.saved_at,
			payload    = excluded.payload
		WHERE excluded.fetched_at >= snapshot.fetched_at`,
		snap.FetchedAt.UnixNano(), time.Now().UnixNano(), payload,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug().Time("fetched_at", snap.FetchedAt).Msg("newer snapshot already saved")
	}
	return nil
}

// Load returns the saved snapshot, or ErrNoSnapshot.
func (s *Store) Load(ctx context.Context) (*avalanche.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshot WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	snap, err := decode(payload, s.regions)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func encode(snap *avalanche.Snapshot) ([]byte, error) {
	rec := snapshotRecord{
		Version:   recordVersion,
		FetchedAt: snap.FetchedAt.UTC(),
		ETag:      snap.ETag,
		Complete:  snap.Complete,
	}
	for _, id := range snap.IDs() {
		sr, _ := snap.Subregion(id)
		rec.Subregions = append(rec.Subregions, subregionRecord{
			ID:         sr.ID,
			Name:       sr.Name,
			Polygon:    sr.Polygon,
			Rating:     sr.Rating.Level(),
			ValidFrom:  sr.ValidFrom.UTC(),
			ValidUntil: sr.ValidUntil.UTC(),
			Summary:    sr.Summary,
			Outlook:    encodeOutlook(sr.Outlook),
		})
	}

	payload, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, nil
}

func decode(payload []byte, regions *avalanche.Provisioning) (*avalanche.Snapshot, error) {
	var rec snapshotRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupported, rec.Version)
	}

	subregions := make(map[string]avalanche.Subregion, len(rec.Subregions))
	for _, r := range rec.Subregions {
		subregions[r.ID] = avalanche.Subregion{
			ID:         r.ID,
			Name:       r.Name,
			Polygon:    geometry.Polygon(r.Polygon),
			Rating:     avalanche.DangerRating(r.Rating),
			ValidFrom:  r.ValidFrom.UTC(),
			ValidUntil: r.ValidUntil.UTC(),
			Summary:    r.Summary,
			Outlook:    decodeOutlook(r.Outlook),
		}
	}

	complete := rec.Complete
	if regions != nil {
		for _, region := range regions.Regions() {
			if _, ok := subregions[region.ID]; !ok {
				complete = false
				break
			}
		}
	}

	return avalanche.NewSnapshot(rec.FetchedAt.UTC(), rec.ETag, complete, subregions), nil
}

func encodeOutlook(days []avalanche.DayRating) []dayRecord {
	if len(days) == 0 {
		return nil
	}
	out := make([]dayRecord, len(days))
	for i, d := range days {
		out[i] = dayRecord{Date: d.Date.UTC(), Label: d.Label, Rating: d.Rating.Level()}
	}
	return out
}

func decodeOutlook(days []dayRecord) []avalanche.DayRating {
	if len(days) == 0 {
		return nil
	}
	out := make([]avalanche.DayRating, len(days))
	for i, d := range days {
		out[i] = avalanche.DayRating{Date: d.Date.UTC(), Label: d.Label, Rating: avalanche.DangerRating(d.Rating)}
	}
	return out
}
