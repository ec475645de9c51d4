package database

import (
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" opens its own database, so keep a single one
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS thumbnails (
		id TEXT PRIMARY KEY,
		camera TEXT NOT NULL,
		path TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_thumbnails_camera_path ON thumbnails (camera, path)`)
	if err != nil {
		return nil, err
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) SaveThumbnail(thumbnail *Thumbnail) (err error) {
	if thumbnail.CreatedAt == 0 {
		thumbnail.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.Exec(`INSERT INTO thumbnails (id, camera, path, data, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET camera = excluded.camera, path = excluded.path, data = excluded.data, created_at = excluded.created_at`,
		thumbnail.ID, thumbnail.Camera, thumbnail.Path, thumbnail.Data, thumbnail.CreatedAt)
	if err != nil {
		return err
	}
	// rows of an earlier version of the same file
	_, err = tx.Exec("DELETE FROM thumbnails WHERE camera = ? AND path = ? AND id <> ?",
		thumbnail.Camera, thumbnail.Path, thumbnail.ID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteDatabase) GetThumbnail(id string) (*Thumbnail, error) {
	row := s.db.QueryRow("SELECT id, camera, path, data, created_at FROM thumbnails WHERE id = ?", id)
	var thumbnail Thumbnail
	if err := row.Scan(&thumbnail.ID, &thumbnail.Camera, &thumbnail.Path, &thumbnail.Data, &thumbnail.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &thumbnail, nil
}

func (s *SQLiteDatabase) DeleteThumbnailsForCamera(camera string) (int64, error) {
	result, err := s.db.Exec("DELETE FROM thumbnails WHERE camera = ?", camera)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteDatabase) CountThumbnails() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM thumbnails").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
