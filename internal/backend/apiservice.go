package backend

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/securecam/internal/backend/catalog"
	"github.com/jo-hoe/securecam/internal/common"
	"github.com/jo-hoe/securecam/internal/core"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
}

// CameraSummary is the list entry of a camera in the JSON API
type CameraSummary struct {
	Name   string `json:"name"`
	Photos int    `json:"photos"`
	Videos int    `json:"videos"`
}

type CameraDetails struct {
	Name       string              `json:"name"`
	Photos     []catalog.DateCount `json:"photos"`
	Videos     []catalog.DateCount `json:"videos"`
	DateCounts []catalog.DateCount `json:"dates"`
}

type RefreshResult struct {
	Cameras    int       `json:"cameras"`
	ScannedAt  time.Time `json:"scannedAt"`
	Thumbnails int       `json:"thumbnails"`
}

type cameraParam struct {
	Camera string `param:"cam" validate:"required"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	if e.Validator == nil {
		e.Validator = common.NewGenericEchoValidator()
	}

	// Set probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "securecam is running")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/api/cameras", s.listCamerasHandler)
	e.GET("/api/cameras/:cam", s.getCameraHandler)
	e.DELETE("/api/cameras/:cam/thumbnails", s.purgeThumbnailsHandler)
	e.POST("/api/refresh", s.refreshHandler)
}

func (s *APIService) listCamerasHandler(c echo.Context) error {
	current, err := s.coreService.Catalog(c.Request().Context())
	if err != nil {
		slog.Error("listCamerasHandler: failed to load catalog", "status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load cameras")
	}

	cameras := make([]CameraSummary, 0, len(current.Cameras))
	for _, name := range current.CameraNames() {
		camera := current.Cameras[name]
		cameras = append(cameras, CameraSummary{
			Name:   camera.Name,
			Photos: camera.Photos.Len(),
			Videos: camera.Videos.Len(),
		})
	}
	return c.JSON(http.StatusOK, cameras)
}

func (s *APIService) getCameraHandler(c echo.Context) error {
	param, err := s.bindCamera(c)
	if err != nil {
		return err
	}

	camera, err := s.coreService.Camera(c.Request().Context(), param.Camera)
	if errors.Is(err, catalog.ErrCameraNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "camera not found")
	}
	if err != nil {
		slog.Error("getCameraHandler: failed to load camera", "camera", param.Camera, "status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load camera")
	}

	return c.JSON(http.StatusOK, CameraDetails{
		Name:       camera.Name,
		Photos:     camera.Photos.DateCounts(),
		Videos:     camera.Videos.DateCounts(),
		DateCounts: camera.DateCounts(),
	})
}

func (s *APIService) purgeThumbnailsHandler(c echo.Context) error {
	param, err := s.bindCamera(c)
	if err != nil {
		return err
	}

	deleted, err := s.coreService.PurgeThumbnails(param.Camera)
	switch {
	case errors.Is(err, catalog.ErrCameraNotFound), errors.Is(err, core.ErrThumbnailsDisabled):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		slog.Error("purgeThumbnailsHandler: failed to delete thumbnails", "camera", param.Camera, "status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete thumbnails")
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *APIService) refreshHandler(c echo.Context) error {
	current, err := s.coreService.Refresh(c.Request().Context())
	if err != nil {
		slog.Error("refreshHandler: failed to refresh catalog", "status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to refresh cameras")
	}
	thumbnails := 0
	if s.config.Thumbnails.Enabled {
		if thumbnails, err = s.coreService.ThumbnailCount(); err != nil {
			slog.Warn("refreshHandler: failed to count thumbnails", "error", err)
		}
	}

	return c.JSON(http.StatusOK, RefreshResult{
		Cameras:    len(current.Cameras),
		ScannedAt:  current.ScannedAt,
		Thumbnails: thumbnails,
	})
}

func (s *APIService) bindCamera(c echo.Context) (*cameraParam, error) {
	var param cameraParam
	if err := (&echo.DefaultBinder{}).BindPathParams(c, &param); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid camera")
	}
	if err := c.Validate(&param); err != nil {
		return nil, err
	}
	return &param, nil
}
