package core

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jo-hoe/securecam/internal/backend/database"
	"github.com/jo-hoe/securecam/internal/backend/imageprocessing"
	"github.com/jo-hoe/securecam/internal/backend/metrics"
)

// ThumbnailService renders photo thumbnails through the configured image
// commands and keeps them in the database keyed by file identity.
type ThumbnailService struct {
	databaseService database.DatabaseService
	invoker         *imageprocessing.CommandInvoker
	now             func() time.Time
}

func NewThumbnailService(databaseService database.DatabaseService, invoker *imageprocessing.CommandInvoker) *ThumbnailService {
	return &ThumbnailService{
		databaseService: databaseService,
		invoker:         invoker,
		now:             time.Now,
	}
}

// Thumbnail returns the encoded thumbnail of the photo at filePath together with its content type
func (service *ThumbnailService) Thumbnail(camera, relPath, filePath string) ([]byte, string, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, "", err
	}
	id := database.ThumbnailID(camera, relPath, info.ModTime(), info.Size())

	stored, err := service.databaseService.GetThumbnail(id)
	if err == nil {
		metrics.Thumbnails.WithLabelValues("cached").Inc()
		return stored.Data, http.DetectContentType(stored.Data), nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		slog.Warn("failed to read stored thumbnail, regenerating", "camera", camera, "path", relPath, "error", err)
	}

	original, err := os.ReadFile(filePath)
	if err != nil {
		metrics.Thumbnails.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("failed to read photo: %w", err)
	}
	data, err := service.invoker.Execute(original)
	if err != nil {
		metrics.Thumbnails.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("failed to generate thumbnail: %w", err)
	}
	metrics.Thumbnails.WithLabelValues("generated").Inc()

	thumbnail := &database.Thumbnail{
		ID:        id,
		Camera:    camera,
		Path:      relPath,
		Data:      data,
		CreatedAt: service.now().Unix(),
	}
	if err := service.databaseService.SaveThumbnail(thumbnail); err != nil {
		slog.Warn("failed to store thumbnail", "camera", camera, "path", relPath, "error", err)
	}

	return data, http.DetectContentType(data), nil
}

// Purge removes every stored thumbnail of camera
func (service *ThumbnailService) Purge(camera string) (int64, error) {
	deleted, err := service.databaseService.DeleteThumbnailsForCamera(camera)
	if err != nil {
		return 0, fmt.Errorf("failed to delete thumbnails of %s: %w", camera, err)
	}
	slog.Info("thumbnails purged", "camera", camera, "deleted", deleted)
	return deleted, nil
}

// Count returns the number of stored thumbnails
func (service *ThumbnailService) Count() (int, error) {
	return service.databaseService.CountThumbnails()
}
