package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type ScanOptions struct {
	Directory       string
	Prefix          string
	ImageExtensions []string
	VideoExtensions []string
	Location        *time.Location
}

// Scan walks every camera directory below opts.Directory and builds the catalog.
// A camera directory is any direct subdirectory whose name starts with opts.Prefix.
func Scan(ctx context.Context, opts ScanOptions) (*Catalog, error) {
	start := time.Now()
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	entries, err := os.ReadDir(opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera directory %s: %w", opts.Directory, err)
	}

	catalog := &Catalog{
		Cameras:   make(map[string]*Camera),
		ScannedAt: start,
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), opts.Prefix) {
			continue
		}
		cameraPath := filepath.Join(opts.Directory, entry.Name())
		if !isDirectory(entry, cameraPath) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		camera, err := scanCamera(ctx, cameraPath, entry.Name(), opts, loc)
		if err != nil {
			return nil, err
		}
		catalog.Cameras[camera.Name] = camera
	}

	slog.Debug("camera directory scanned",
		"directory", opts.Directory,
		"cameras", len(catalog.Cameras),
		"duration_ms", time.Since(start).Milliseconds())

	return catalog, nil
}

// isDirectory reports whether entry is a directory or a symlink to one
func isDirectory(entry fs.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("skipping unresolvable camera link", "path", path, "error", err)
		return false
	}
	return info.IsDir()
}

func scanCamera(ctx context.Context, cameraPath, name string, opts ScanOptions, loc *time.Location) (*Camera, error) {
	var photos, videos []MediaFile

	// WalkDir does not descend into a symlinked root
	root, err := filepath.EvalSymlinks(cameraPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve camera %s: %w", name, err)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtrees are skipped rather than failing the whole scan
			slog.Warn("skipping unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return ctx.Err()
		}

		isPhoto := HasExtension(d.Name(), opts.ImageExtensions)
		isVideo := !isPhoto && HasExtension(d.Name(), opts.VideoExtensions)
		if !isPhoto && !isVideo {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("skipping file without stat info", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}

		file := MediaFile{
			Timestamp: info.ModTime().Unix(),
			Path:      filepath.ToSlash(rel),
		}
		if isPhoto {
			photos = append(photos, file)
		} else {
			videos = append(videos, file)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan camera %s: %w", name, err)
	}

	return &Camera{
		Name:   name,
		Photos: newCollection(photos, loc),
		Videos: newCollection(videos, loc),
	}, nil
}

// HasExtension reports whether filename ends with one of the extensions, ignoring case
func HasExtension(filename string, extensions []string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
