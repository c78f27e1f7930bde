package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-shelter-finder/internal/models"
	"github.com/mr1hm/go-shelter-finder/internal/settings"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS shelters (
			source TEXT NOT NULL,
			id TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			phone TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			types TEXT NOT NULL,
			types_inferred INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (source, id)
		);

		CREATE TABLE IF NOT EXISTS dataset_syncs (
			source TEXT PRIMARY KEY,
			shelters INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			synced_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_shelters_position ON shelters(source, position);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) ReplaceShelters(ctx context.Context, source string, shelters []models.Shelter) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace shelters: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shelters WHERE source = ?`, source); err != nil {
		return fmt.Errorf("replace shelters: delete: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shelters (source, id, position, name, address, phone, latitude, longitude, types, types_inferred)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace shelters: prepare: %w", err)
	}
	defer stmt.Close()

	for i, sh := range shelters {
		position, err := strconv.Atoi(sh.ID)
		if err != nil {
			position = i + 1
		}
		types, err := json.Marshal(sh.Types)
		if err != nil {
			return fmt.Errorf("replace shelters: encode types id=%q: %w", sh.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			source, sh.ID, position, sh.Name, sh.Address, sh.Phone,
			sh.Latitude, sh.Longitude, string(types), sh.TypesInferred,
		); err != nil {
			return fmt.Errorf("replace shelters: insert id=%q: %w", sh.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace shelters: commit: %w", err)
	}
	return nil
}

const shelterColumns = `source, id, name, address, phone, latitude, longitude, types, types_inferred`

func (s *SQLiteDB) GetShelter(ctx context.Context, source, id string) (*models.Shelter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shelterColumns+` FROM shelters WHERE source = ? AND id = ?`, source, id)

	sh, err := scanShelter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shelter: %w", err)
	}
	return &sh, nil
}

func (s *SQLiteDB) ListShelters(ctx context.Context, opts Filter) ([]models.Shelter, error) {
	var (
		where []string
		args  []any
	)
	if opts.Source != "" {
		where = append(where, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.Type != nil {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(shelters.types) WHERE json_each.value = ?)")
		args = append(args, string(*opts.Type))
	}

	q := `SELECT ` + shelterColumns + ` FROM shelters`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY source, position"
	if opts.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list shelters: query: %w", err)
	}
	defer rows.Close()

	shelters := []models.Shelter{}
	for rows.Next() {
		sh, err := scanShelter(rows)
		if err != nil {
			return nil, fmt.Errorf("list shelters: scan: %w", err)
		}
		shelters = append(shelters, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shelters: rows: %w", err)
	}
	return shelters, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShelter(row scanner) (models.Shelter, error) {
	var (
		sh    models.Shelter
		phone sql.NullString
		types string
	)
	if err := row.Scan(&sh.Source, &sh.ID, &sh.Name, &sh.Address, &phone,
		&sh.Latitude, &sh.Longitude, &types, &sh.TypesInferred); err != nil {
		return models.Shelter{}, err
	}
	sh.Phone = phone.String
	if err := json.Unmarshal([]byte(types), &sh.Types); err != nil {
		return models.Shelter{}, fmt.Errorf("decode types: %w", err)
	}
	return sh, nil
}

func (s *SQLiteDB) SaveSyncStatus(ctx context.Context, status models.SyncStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dataset_syncs (source, shelters, skipped, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			shelters = excluded.shelters,
			skipped = excluded.skipped,
			synced_at = excluded.synced_at
	`, status.Source, status.Shelters, status.Skipped, status.SyncedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save sync status: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListSyncStatus(ctx context.Context) ([]models.SyncStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, shelters, skipped, synced_at FROM dataset_syncs ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list sync status: %w", err)
	}
	defer rows.Close()

	out := []models.SyncStatus{}
	for rows.Next() {
		var (
			st       models.SyncStatus
			syncedAt int64
		)
		if err := rows.Scan(&st.Source, &st.Shelters, &st.Skipped, &syncedAt); err != nil {
			return nil, fmt.Errorf("list sync status: scan: %w", err)
		}
		st.SyncedAt = time.UnixMilli(syncedAt).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

// Load implements settings.Store.
func (s *SQLiteDB) Load(ctx context.Context) (models.Settings, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settings.Key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return decodeSettings(value)
}

// Save implements settings.Store.
func (s *SQLiteDB) Save(ctx context.Context, st models.Settings) error {
	value, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("save settings: encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, settings.Key, string(value))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// decodeSettings starts from the defaults so keys missing from older
// documents keep their default value.
func decodeSettings(value string) (models.Settings, error) {
	st := models.DefaultSettings()
	if err := json.Unmarshal([]byte(value), &st); err != nil {
		return models.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return st, nil
}
