package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "store")

var ErrRunNotFound = errors.New("discovery run not found")

// Run is a finished discovery run as persisted.
type Run struct {
	ID         string     `json:"id"`
	ArtistID   string     `json:"artist_id"`
	ArtistName string     `json:"artist_name"`
	TrackID    string     `json:"track_id,omitempty"`
	Keywords   []string   `json:"keywords"`
	Partial    bool       `json:"partial"`
	CreatedAt  time.Time  `json:"created_at"`
	Playlists  []Playlist `json:"playlists"`
}

type Playlist struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	TracksTotal string   `json:"tracks_total"`
	Followers   string   `json:"followers"`
	Email       string   `json:"email"`
	OwnerName   string   `json:"owner_name"`
	OwnerURL    string   `json:"owner_url"`
	FoundBy     []string `json:"found_by"`
}

type Store struct {
	DB *sql.DB
}

func Open(dsn string) (*Store, error) {
	log.Info("opening database")

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	err = withTimeout(func(ctx context.Context) error {
		return db.PingContext(ctx)
	}, 5*time.Second)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	log.Info("database ping ok")
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS discovery_run (
	id          TEXT PRIMARY KEY,
	artist_id   TEXT NOT NULL,
	artist_name TEXT NOT NULL DEFAULT '',
	track_id    TEXT NOT NULL DEFAULT '',
	keywords    JSONB NOT NULL DEFAULT '[]',
	partial     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS discovery_playlist (
	run_id       TEXT NOT NULL REFERENCES discovery_run(id) ON DELETE CASCADE,
	position     INT  NOT NULL,
	playlist_id  TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	tracks_total TEXT NOT NULL DEFAULT '',
	followers    TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	owner_name   TEXT NOT NULL DEFAULT '',
	owner_url    TEXT NOT NULL DEFAULT '',
	found_by     JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (run_id, playlist_id)
);
`

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveRun writes the run and its playlists in one transaction. Saving
// the same run id again replaces it.
func (s *Store) SaveRun(ctx context.Context, r Run) (err error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	kw, err := json.Marshal(nonNil(r.Keywords))
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM discovery_run WHERE id = $1`, r.ID); err != nil {
		return fmt.Errorf("clear run %s: %w", r.ID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO discovery_run (id, artist_id, artist_name, track_id, keywords, partial, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.ArtistID, r.ArtistName, r.TrackID, string(kw), r.Partial, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	for i, p := range r.Playlists {
		fb, merr := json.Marshal(nonNil(p.FoundBy))
		if merr != nil {
			err = fmt.Errorf("encode found_by: %w", merr)
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO discovery_playlist
				(run_id, position, playlist_id, name, url, description, tracks_total,
				 followers, email, owner_name, owner_url, found_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			r.ID, i, p.ID, p.Name, p.URL, p.Description, p.TracksTotal,
			p.Followers, p.Email, p.OwnerName, p.OwnerURL, string(fb),
		)
		if err != nil {
			return fmt.Errorf("insert playlist %s: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.WithFields(logrus.Fields{"run": r.ID, "playlists": len(r.Playlists)}).Info("run saved")
	return nil
}

func (s *Store) LoadRun(ctx context.Context, id string) (*Run, error) {
	var (
		r  Run
		kw []byte
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, artist_id, artist_name, track_id, keywords, partial, created_at
		FROM discovery_run WHERE id = $1`, id,
	).Scan(&r.ID, &r.ArtistID, &r.ArtistName, &r.TrackID, &kw, &r.Partial, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	if err := json.Unmarshal(kw, &r.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT playlist_id, name, url, description, tracks_total, followers,
		       email, owner_name, owner_url, found_by
		FROM discovery_playlist WHERE run_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("load playlists %s: %w", id, err)
	}
	defer rows.Close()

	r.Playlists = []Playlist{}
	for rows.Next() {
		var (
			p  Playlist
			fb []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.URL, &p.Description, &p.TracksTotal,
			&p.Followers, &p.Email, &p.OwnerName, &p.OwnerURL, &fb); err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		if err := json.Unmarshal(fb, &p.FoundBy); err != nil {
			return nil, fmt.Errorf("decode found_by: %w", err)
		}
		r.Playlists = append(r.Playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ========================================================================
// Utility: context timeout
// ========================================================================

func withTimeout(fn func(ctx context.Context) error, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return fn(ctx)
}
