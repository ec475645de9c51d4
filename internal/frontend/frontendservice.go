package frontend

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jo-hoe/securecam/internal/backend/catalog"
	"github.com/jo-hoe/securecam/internal/backend/imageprocessing"
	"github.com/jo-hoe/securecam/internal/common"
	"github.com/jo-hoe/securecam/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName   = "index.html"
	cameraPageName = "camera.html"
	datesPageName  = "dates.html"
	filesPageName  = "files.html"
	viewerPageName = "viewer.html"

	mimePNG      = "image/png"
	iconPNGWidth = 192
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig

	iconOnce sync.Once
	iconPNG  []byte
	iconErr  error
}

// cameraRequest holds the path parameters of the camera pages
type cameraRequest struct {
	Camera string `param:"cam" validate:"required"`
	Kind   string `param:"kind" validate:"omitempty,oneof=photos videos"`
	Date   string `param:"date"`
	Index  int    `param:"idx" validate:"gte=0"`
}

type cameraPage struct {
	Camera string
	Videos int
	Photos int
	Dates  []catalog.DateCount
}

type datesPage struct {
	Camera string
	Kind   catalog.MediaKind
	Label  string
	Dates  []catalog.DateCount
}

type fileLink struct {
	Index int
	Time  string
	Path  string
}

type filesPage struct {
	Camera     string
	Kind       catalog.MediaKind
	Label      string
	Singular   string
	Date       string
	Files      []fileLink
	Thumbnails bool
}

type viewerPage struct {
	Camera       string
	Label        string
	Path         string
	Date         string
	Time         string
	IsVideo      bool
	MediaURL     string
	PreviousURL  string
	NextURL      string
	NearestURL   string
	NearestLabel string
	BackURL      string
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	// Create template renderer
	e.Renderer = newTemplate()
	if e.Validator == nil {
		e.Validator = common.NewGenericEchoValidator()
	}

	e.GET("/", service.indexHandler)
	e.GET("/camera/:cam", service.cameraHandler)
	e.GET("/camera/:cam/:kind", service.datesHandler)
	e.GET("/camera/:cam/:kind/:date", service.filesHandler)
	e.GET("/camera/:cam/:kind/:date/:idx", service.viewerHandler)

	e.GET("/media/:cam/*", service.mediaHandler)
	e.GET("/thumb/:cam/*", service.thumbnailHandler)

	// Favicon routes
	e.GET("/icon.svg", service.iconHandler)
	e.GET("/icon.png", service.iconPNGHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	current, err := service.coreService.Catalog(ctx.Request().Context())
	if err != nil {
		slog.Error("indexHandler: failed to load catalog", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load cameras")
	}
	return ctx.Render(http.StatusOK, MainPageName, map[string]any{
		"Cameras": current.CameraNames(),
	})
}

func (service *FrontendService) cameraHandler(ctx echo.Context) error {
	_, camera, ok, err := service.bindCamera(ctx)
	if !ok {
		return err
	}
	return ctx.Render(http.StatusOK, cameraPageName, cameraPage{
		Camera: camera.Name,
		Videos: camera.Videos.Len(),
		Photos: camera.Photos.Len(),
		Dates:  camera.DateCounts(),
	})
}

func (service *FrontendService) datesHandler(ctx echo.Context) error {
	request, camera, ok, err := service.bindCamera(ctx)
	if !ok {
		return err
	}
	kind := catalog.MediaKind(request.Kind)
	return ctx.Render(http.StatusOK, datesPageName, datesPage{
		Camera: camera.Name,
		Kind:   kind,
		Label:  kindLabel(kind),
		Dates:  camera.Collection(kind).DateCounts(),
	})
}

func (service *FrontendService) filesHandler(ctx echo.Context) error {
	request, camera, ok, err := service.bindCamera(ctx)
	if !ok {
		return err
	}
	kind := catalog.MediaKind(request.Kind)
	loc := service.config.Location()

	files := camera.Collection(kind).FilesOn(request.Date)
	links := make([]fileLink, 0, len(files))
	for i, file := range files {
		links = append(links, fileLink{
			Index: i,
			Time:  catalog.FormatTime(file.Timestamp, loc),
			Path:  file.Path,
		})
	}

	return ctx.Render(http.StatusOK, filesPageName, filesPage{
		Camera:     camera.Name,
		Kind:       kind,
		Label:      kindLabel(kind),
		Singular:   kind.Singular(),
		Date:       request.Date,
		Files:      links,
		Thumbnails: kind == catalog.KindPhotos && service.config.Thumbnails.Enabled,
	})
}

func (service *FrontendService) viewerHandler(ctx echo.Context) error {
	request, camera, ok, err := service.bindCamera(ctx)
	if !ok {
		return err
	}
	kind := catalog.MediaKind(request.Kind)
	loc := service.config.Location()
	collection := camera.Collection(kind)

	pos := catalog.Position{Date: request.Date, Index: request.Index}
	file, found := collection.Lookup(pos)
	if !found {
		return ctx.String(http.StatusNotFound, "File not found")
	}

	page := viewerPage{
		Camera:   camera.Name,
		Label:    kindLabel(kind),
		Path:     file.Path,
		Date:     catalog.FormatDate(file.Timestamp, loc),
		Time:     catalog.FormatTime(file.Timestamp, loc),
		IsVideo:  kind == catalog.KindVideos,
		MediaURL: "/media/" + url.PathEscape(camera.Name) + "/" + pathEscape(file.Path),
		BackURL:  viewerURL(camera.Name, kind, pos.Date, -1),
	}
	if prev, ok := collection.Previous(pos); ok {
		page.PreviousURL = viewerURL(camera.Name, kind, prev.Date, prev.Index)
	}
	if next, ok := collection.Next(pos); ok {
		page.NextURL = viewerURL(camera.Name, kind, next.Date, next.Index)
	}
	other := kind.Other()
	if nearest, ok := camera.Collection(other).Nearest(file.Timestamp, loc); ok {
		page.NearestURL = viewerURL(camera.Name, other, nearest.Date, nearest.Index)
		page.NearestLabel = other.Singular()
	}

	return ctx.Render(http.StatusOK, viewerPageName, page)
}

func (service *FrontendService) mediaHandler(ctx echo.Context) error {
	media, err := service.coreService.ResolveMedia(pathParam(ctx, "cam"), wildcardPath(ctx))
	if err != nil {
		return service.mediaError(ctx, err)
	}

	if !media.Transcode {
		return serveFile(ctx, media.Path, media.ContentType)
	}

	response := ctx.Response()
	response.Header().Set(echo.HeaderContentType, media.ContentType)
	response.Header().Set("Cache-Control", "no-store")
	response.WriteHeader(http.StatusOK)
	if err := service.coreService.StreamTranscoded(ctx.Request().Context(), media, response); err != nil {
		// the status line is already sent; all that is left is to log
		slog.Warn("mediaHandler: transcode ended early", "camera", media.Camera, "path", media.RelPath, "error", err)
	}
	return nil
}

func (service *FrontendService) thumbnailHandler(ctx echo.Context) error {
	data, contentType, err := service.coreService.Thumbnail(pathParam(ctx, "cam"), wildcardPath(ctx))
	if err != nil {
		if errors.Is(err, core.ErrThumbnailsDisabled) {
			return ctx.String(http.StatusNotFound, "Thumbnails disabled")
		}
		return service.mediaError(ctx, err)
	}
	// Cache for 1 day
	ctx.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return ctx.Blob(http.StatusOK, contentType, data)
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func (service *FrontendService) iconPNGHandler(ctx echo.Context) error {
	service.iconOnce.Do(func() {
		svg, err := assetsFS.ReadFile("views/icon.svg")
		if err != nil {
			service.iconErr = err
			return
		}
		service.iconPNG, service.iconErr = imageprocessing.ExecuteCommands(svg, []imageprocessing.CommandConfig{
			{Name: imageprocessing.SvgRasterCommandName, Params: map[string]any{"width": iconPNGWidth}},
		})
	})
	if service.iconErr != nil {
		slog.Error("iconPNGHandler: failed to render icon", "status", http.StatusInternalServerError, "error", service.iconErr)
		return ctx.String(http.StatusInternalServerError, "Failed to render icon")
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, mimePNG, service.iconPNG)
}

// bindCamera binds the page path parameters and looks up the camera. When ok is
// false the response has been written and err is what the handler returns.
func (service *FrontendService) bindCamera(ctx echo.Context) (request cameraRequest, camera *catalog.Camera, ok bool, err error) {
	if bindErr := (&echo.DefaultBinder{}).BindPathParams(ctx, &request); bindErr != nil {
		return request, nil, false, ctx.String(http.StatusNotFound, "Not found")
	}
	request.Camera = unescapeParam(ctx, request.Camera)
	request.Date = unescapeParam(ctx, request.Date)
	if validateErr := ctx.Validate(&request); validateErr != nil {
		return request, nil, false, ctx.String(http.StatusNotFound, "Not found")
	}
	if !strings.HasPrefix(request.Camera, service.config.Prefix) {
		return request, nil, false, ctx.String(http.StatusNotFound, "Invalid camera name")
	}

	camera, lookupErr := service.coreService.Camera(ctx.Request().Context(), request.Camera)
	switch {
	case errors.Is(lookupErr, catalog.ErrCameraNotFound):
		return request, nil, false, ctx.String(http.StatusNotFound, "Camera not found")
	case lookupErr != nil:
		slog.Error("failed to load camera", "camera", request.Camera, "status", http.StatusInternalServerError, "error", lookupErr)
		return request, nil, false, ctx.String(http.StatusInternalServerError, "Failed to load camera")
	}
	return request, camera, true, nil
}

func (service *FrontendService) mediaError(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, catalog.ErrCameraNotFound):
		return ctx.String(http.StatusNotFound, "Invalid camera name")
	case errors.Is(err, core.ErrInvalidPath):
		return ctx.String(http.StatusNotFound, "Invalid file path")
	case errors.Is(err, core.ErrFileNotFound), errors.Is(err, os.ErrNotExist):
		return ctx.String(http.StatusNotFound, "File not found")
	case errors.Is(err, core.ErrUnsupportedType):
		return ctx.String(http.StatusUnsupportedMediaType, "Unsupported file type")
	}
	slog.Error("failed to serve media", "path", ctx.Request().URL.Path, "status", http.StatusInternalServerError, "error", err)
	return ctx.String(http.StatusInternalServerError, "Failed to serve file")
}

// serveFile sends a file with range support
func serveFile(ctx echo.Context, path, contentType string) error {
	file, err := os.Open(path)
	if err != nil {
		return ctx.String(http.StatusNotFound, "File not found")
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("failed to close media file", "path", path, "error", cerr)
		}
	}()
	info, err := file.Stat()
	if err != nil {
		return ctx.String(http.StatusNotFound, "File not found")
	}

	ctx.Response().Header().Set(echo.HeaderContentType, contentType)
	http.ServeContent(ctx.Response(), ctx.Request(), filepath.Base(path), info.ModTime(), file)
	return nil
}

// wildcardPath returns the unescaped value of the trailing * route segment
func wildcardPath(ctx echo.Context) string {
	return pathParam(ctx, "*")
}

func pathParam(ctx echo.Context, name string) string {
	return unescapeParam(ctx, ctx.Param(name))
}

// unescapeParam decodes a path parameter. echo matches routes against
// URL.RawPath when it is set, leaving the parameter values escaped.
func unescapeParam(ctx echo.Context, value string) string {
	if ctx.Request().URL.RawPath == "" {
		return value
	}
	unescaped, err := url.PathUnescape(value)
	if err != nil {
		return value
	}
	return unescaped
}

// viewerURL links to a file in the viewer, or to the date's file list when index is negative
func viewerURL(camera string, kind catalog.MediaKind, date string, index int) string {
	base := "/camera/" + url.PathEscape(camera) + "/" + string(kind) + "/" + url.PathEscape(date)
	if index < 0 {
		return base
	}
	return base + "/" + strconv.Itoa(index)
}

func kindLabel(kind catalog.MediaKind) string {
	if kind == catalog.KindPhotos {
		return "Photo"
	}
	return "Video"
}
