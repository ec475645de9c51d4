package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jo-hoe/securecam/internal/backend"
	"github.com/jo-hoe/securecam/internal/common"
	"github.com/jo-hoe/securecam/internal/core"
	frontend "github.com/jo-hoe/securecam/internal/frontend"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
)

type cliFlags struct {
	configPath      string
	directory       string
	prefix          string
	imageExtensions []string
	videoExtensions []string
	debug           bool
	port            int
}

func main() {
	if err := newRootCommand(&cliFlags{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "securecam",
		Short:        "Browse security camera photos and videos in the browser",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := buildConfig(cmd, flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), config)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "path to the YAML config file (default $CONFIG_PATH or ./config.yaml)")
	f.StringVarP(&flags.directory, "dir", "d", core.DefaultDirectory, "directory containing camera subdirectories (env SECURECAM_DIR)")
	f.StringVarP(&flags.prefix, "prefix", "p", core.DefaultPrefix, "prefix for camera directories (env SECURECAM_PREFIX)")
	f.StringSliceVarP(&flags.imageExtensions, "images-extensions", "i", nil, "image file extensions (default .jpg,.jpeg,.png)")
	f.StringSliceVarP(&flags.videoExtensions, "videos-extensions", "v", nil, "video file extensions (default .mp4,.mkv)")
	f.BoolVarP(&flags.debug, "debug", "D", false, "enable debug logging")
	f.IntVarP(&flags.port, "port", "P", core.DefaultPort, "port to run the web server on")

	return cmd
}

func getConfigPath(flags *cliFlags) (path string, explicit bool) {
	if flags.configPath != "" {
		return flags.configPath, true
	}
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath, true
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return "config.yaml", false
	}
	return filepath.Join(cwd, "config.yaml"), false
}

// buildConfig layers defaults, the config file, the environment and explicitly set flags
func buildConfig(cmd *cobra.Command, flags *cliFlags) (*core.ServiceConfig, error) {
	configPath, explicit := getConfigPath(flags)
	config, err := core.LoadConfig(configPath)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		config = core.DefaultConfig()
	default:
		return nil, err
	}
	config.ApplyEnvironment()

	changed := cmd.Flags().Changed
	if changed("dir") {
		config.Directory = flags.directory
	}
	if changed("prefix") {
		config.Prefix = flags.prefix
	}
	if changed("images-extensions") {
		config.ImageExtensions = flags.imageExtensions
	}
	if changed("videos-extensions") {
		config.VideoExtensions = flags.videoExtensions
	}
	if changed("debug") {
		config.Debug = flags.debug
	}
	if changed("port") {
		config.Port = flags.port
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func run(ctx context.Context, config *core.ServiceConfig) error {
	setupLogging(config.Debug)
	slog.Info("starting securecam",
		"directory", config.Directory,
		"prefix", config.Prefix,
		"timezone", config.Timezone,
		"cache", config.Cache.Type)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	coreService, err := core.NewCoreService(ctx, config)
	if err != nil {
		slog.Error("failed to initialize core service", "error", err)
		return err
	}
	if err := coreService.CheckFFmpeg(ctx); err != nil {
		slog.Warn("ffmpeg unavailable, transcoded videos will fail", "error", err)
	}

	server := defineServer()

	apiService := backend.NewAPIService(config, coreService)
	apiService.SetRoutes(server)
	frontendService := frontend.NewFrontendService(config, coreService)
	frontendService.SetRoutes(server)

	portString := fmt.Sprintf(":%d", config.Port)

	// Start HTTP server in a goroutine to allow graceful shutdown
	go func() {
		if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if err := coreService.Close(); err != nil {
		slog.Error("core service close error", "error", err)
	}
	return nil
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func defineServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Configure request logger to skip the "/probe" endpoint (health check)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/probe"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogHost:      true,
		LogUserAgent: true,
		LogRoutePath: true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"route", v.RoutePath,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"host", v.Host,
				"user_agent", v.UserAgent,
			}
			if v.Error != nil {
				slog.Warn("request failed", append(attrs, "error", v.Error)...)
			} else {
				slog.Info("request", attrs...)
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Pre(middleware.RemoveTrailingSlash())

	e.Validator = common.NewGenericEchoValidator()

	return e
}
