package database

import (
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("thumbnail not found")

type Thumbnail struct {
	ID        string `db:"id"`
	Camera    string `db:"camera"`
	Path      string `db:"path"`
	Data      []byte `db:"data"`       // encoded thumbnail image
	CreatedAt int64  `db:"created_at"` // unix seconds
}

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// SaveThumbnail inserts the thumbnail or replaces an existing row with the same ID.
	// Rows for the same camera and path under a different ID are removed.
	SaveThumbnail(thumbnail *Thumbnail) error
	// GetThumbnail returns ErrNotFound when no row matches id
	GetThumbnail(id string) (*Thumbnail, error)
	DeleteThumbnailsForCamera(camera string) (int64, error)
	CountThumbnails() (int, error)
}
