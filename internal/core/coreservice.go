package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jo-hoe/securecam/internal/backend/cache"
	"github.com/jo-hoe/securecam/internal/backend/catalog"
	"github.com/jo-hoe/securecam/internal/backend/database"
	"github.com/jo-hoe/securecam/internal/backend/imageprocessing"
	"github.com/jo-hoe/securecam/internal/backend/transcode"
)

const mimeMP4 = "video/mp4"

var (
	ErrInvalidPath        = errors.New("invalid file path")
	ErrFileNotFound       = errors.New("file not found")
	ErrUnsupportedType    = errors.New("unsupported file type")
	ErrThumbnailsDisabled = errors.New("thumbnails are disabled")
)

// Media is a resolved request for a file inside a camera directory
type Media struct {
	Camera      string
	RelPath     string
	Path        string // absolute path on disk
	ContentType string
	Transcode   bool // needs to be converted by ffmpeg before delivery
}

type CoreService struct {
	config           *ServiceConfig
	store            cache.Store
	databaseService  database.DatabaseService
	catalogService   *CatalogService
	thumbnailService *ThumbnailService
	transcoder       *transcode.Transcoder
}

func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	store, err := cache.NewStore(ctx, cache.Options{
		Type:     config.Cache.Type,
		Address:  config.Cache.Address,
		Password: config.Cache.Password,
		DB:       config.Cache.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	service := &CoreService{
		config: config,
		store:  store,
		catalogService: NewCatalogService(store, config.Cache.Key, config.Cache.TTL, catalog.ScanOptions{
			Directory:       config.Directory,
			Prefix:          config.Prefix,
			ImageExtensions: config.ImageExtensions,
			VideoExtensions: config.VideoExtensions,
			Location:        config.Location(),
		}),
		transcoder: transcode.NewTranscoder(transcode.Options{
			FFmpegPath: config.Transcode.FFmpegPath,
			Preset:     config.Transcode.Preset,
			ChunkSize:  config.Transcode.ChunkSize,
		}),
	}

	if config.Thumbnails.Enabled {
		databaseService, err := getDatabaseService(config)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		invoker, err := imageprocessing.NewCommandInvokerFromConfig(imageprocessing.DefaultRegistry, config.ImageCommands())
		if err != nil {
			_ = databaseService.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize thumbnail commands: %w", err)
		}
		service.databaseService = databaseService
		service.thumbnailService = NewThumbnailService(databaseService, invoker)
	}

	return service, nil
}

func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

// Catalog returns the current camera catalog
func (service *CoreService) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	return service.catalogService.Catalog(ctx)
}

// Camera returns a single camera of the catalog. Names that do not carry the
// camera prefix are reported as catalog.ErrCameraNotFound without scanning.
func (service *CoreService) Camera(ctx context.Context, name string) (*catalog.Camera, error) {
	if !service.isCameraName(name) {
		return nil, catalog.ErrCameraNotFound
	}
	current, err := service.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return current.Camera(name)
}

// Refresh drops the cached catalog and scans the camera directory again
func (service *CoreService) Refresh(ctx context.Context) (*catalog.Catalog, error) {
	if err := service.catalogService.Refresh(ctx); err != nil {
		return nil, err
	}
	return service.catalogService.Catalog(ctx)
}

// ResolveMedia maps a camera and a slash separated path to a file inside the
// camera directory and decides how it is delivered.
func (service *CoreService) ResolveMedia(camera, relPath string) (*Media, error) {
	if !service.isCameraName(camera) {
		return nil, catalog.ErrCameraNotFound
	}

	cameraDir, err := filepath.Abs(filepath.Join(service.config.Directory, camera))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve camera directory: %w", err)
	}
	fullPath := filepath.Join(cameraDir, filepath.FromSlash(relPath))
	rel, err := filepath.Rel(cameraDir, fullPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, ErrInvalidPath
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return nil, ErrFileNotFound
	}

	media := &Media{
		Camera:  camera,
		RelPath: filepath.ToSlash(rel),
		Path:    fullPath,
	}
	ext := strings.ToLower(filepath.Ext(fullPath))
	switch {
	case slices.Contains(service.config.ImageExtensions, ext):
		media.ContentType = mime.TypeByExtension(ext)
		if media.ContentType == "" {
			media.ContentType = "application/octet-stream"
		}
	case ext == ".mp4":
		media.ContentType = mimeMP4
	case slices.Contains(service.config.Transcode.Extensions, ext):
		media.ContentType = mimeMP4
		media.Transcode = true
	default:
		return nil, ErrUnsupportedType
	}
	return media, nil
}

// StreamTranscoded writes the ffmpeg conversion of media to w
func (service *CoreService) StreamTranscoded(ctx context.Context, media *Media, w io.Writer) error {
	written, err := service.transcoder.Stream(ctx, media.Path, w)
	if err != nil {
		return err
	}
	slog.Debug("transcoded media delivered", "camera", media.Camera, "path", media.RelPath, "bytes", written)
	return nil
}

// Thumbnail returns the thumbnail of a photo and its content type
func (service *CoreService) Thumbnail(camera, relPath string) ([]byte, string, error) {
	if service.thumbnailService == nil {
		return nil, "", ErrThumbnailsDisabled
	}
	media, err := service.ResolveMedia(camera, relPath)
	if err != nil {
		return nil, "", err
	}
	if media.Transcode || !strings.HasPrefix(media.ContentType, "image/") {
		return nil, "", ErrUnsupportedType
	}
	return service.thumbnailService.Thumbnail(media.Camera, media.RelPath, media.Path)
}

// PurgeThumbnails deletes the stored thumbnails of a camera
func (service *CoreService) PurgeThumbnails(camera string) (int64, error) {
	if service.thumbnailService == nil {
		return 0, ErrThumbnailsDisabled
	}
	if !service.isCameraName(camera) {
		return 0, catalog.ErrCameraNotFound
	}
	return service.thumbnailService.Purge(camera)
}

// ThumbnailCount returns the number of stored thumbnails, zero when thumbnails are disabled
func (service *CoreService) ThumbnailCount() (int, error) {
	if service.thumbnailService == nil {
		return 0, nil
	}
	return service.thumbnailService.Count()
}

// CheckFFmpeg reports whether the configured ffmpeg binary can be executed
func (service *CoreService) CheckFFmpeg(ctx context.Context) error {
	return service.transcoder.Validate(ctx)
}

func (service *CoreService) Close() error {
	var errs []error
	if service.databaseService != nil {
		if err := service.databaseService.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if err := service.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
	}
	return errors.Join(errs...)
}

func (service *CoreService) isCameraName(name string) bool {
	if !strings.HasPrefix(name, service.config.Prefix) {
		return false
	}
	return name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}
