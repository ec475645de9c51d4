package frontend

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/securecam/internal/core"
	"github.com/labstack/echo/v4"
)

func day(d, hour, minute int) time.Time {
	return time.Date(2024, 5, d, hour, minute, 0, 0, time.UTC)
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func writeTestFile(t *testing.T, root, rel string, data []byte, mtime time.Time) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes error: %v", err)
	}
}

// newTestServer builds a camera tree with photos on two days and one video per day
func newTestServer(t *testing.T) (*echo.Echo, string) {
	t.Helper()
	dir := t.TempDir()
	photo := testPNG(t, 64, 48)
	writeTestFile(t, dir, "cam1/a0.png", photo, day(1, 10, 0))
	writeTestFile(t, dir, "cam1/a1.png", photo, day(1, 11, 0))
	writeTestFile(t, dir, "cam1/sub/a2.png", photo, day(2, 9, 0))
	writeTestFile(t, dir, "cam1/b.mp4", []byte("mp4 video data"), day(1, 10, 40))
	writeTestFile(t, dir, "cam1/c.mkv", []byte("matroska data"), day(2, 8, 0))
	writeTestFile(t, dir, "cam1/notes.avi", []byte("x"), day(2, 8, 0))
	writeTestFile(t, dir, "other/x.png", photo, day(1, 10, 0))
	if err := os.MkdirAll(filepath.Join(dir, "cam2"), 0o755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}

	config := core.DefaultConfig()
	config.Directory = dir
	config.Timezone = "UTC"
	if runtime.GOOS != "windows" {
		ffmpeg := filepath.Join(t.TempDir(), "ffmpeg")
		if err := os.WriteFile(ffmpeg, []byte("#!/bin/sh\ncat \"$2\"\n"), 0o755); err != nil {
			t.Fatalf("WriteFile error: %v", err)
		}
		config.Transcode.FFmpegPath = ffmpeg
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	coreService, err := core.NewCoreService(context.Background(), config)
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = coreService.Close() })

	e := echo.New()
	NewFrontendService(config, coreService).SetRoutes(e)
	return e, dir
}

func doRequest(e *echo.Echo, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for key, value := range header {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func assertContains(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("expected body to contain %q, got:\n%s", w, body)
		}
	}
}

func TestIndexPage(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	assertContains(t, body, "Available Cameras", `href="/camera/cam1"`, `href="/camera/cam2"`)
	if strings.Contains(body, "other") {
		t.Error("directories without the camera prefix must not be listed")
	}
	if strings.Index(body, "cam1") > strings.Index(body, "cam2") {
		t.Error("expected cameras in ascending order")
	}
}

func TestCameraPage(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, "/camera/cam1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(),
		`Videos: <a href="/camera/cam1/videos">2</a>`,
		`Photos: <a href="/camera/cam1/photos">3</a>`,
		"2024-05-01 (3)",
		"2024-05-02 (2)",
	)
}

func TestCameraPage_NotFound(t *testing.T) {
	e, _ := newTestServer(t)

	tests := []struct {
		target string
		body   string
	}{
		{"/camera/cam9", "Camera not found"},
		{"/camera/other", "Invalid camera name"},
		{"/camera/cam1/audio", "Not found"},
		{"/camera/cam1/photos/2024-05-01/7", "File not found"},
		{"/camera/cam1/photos/2024-05-01/x", "Not found"},
		{"/camera/cam1/photos/2024-05-01/-1", "Not found"},
		{"/camera/cam1/photos/2030-01-01/0", "File not found"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := doRequest(e, tt.target, nil)
			if rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", rec.Code)
			}
			if strings.TrimSpace(rec.Body.String()) != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestDatesPage(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, "/camera/cam1/photos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(),
		"cam1 - Photo Dates",
		`<a href="/camera/cam1/photos/2024-05-01">2024-05-01</a> (2)`,
		`<a href="/camera/cam1/photos/2024-05-02">2024-05-02</a> (1)`,
	)
}

func TestFilesPage(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, "/camera/cam1/photos/2024-05-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(),
		"cam1 - Photos on 2024-05-01",
		`href="/camera/cam1/photos/2024-05-01/0">10:00:00</a>`,
		`href="/camera/cam1/photos/2024-05-01/1">11:00:00</a>`,
		`src="/thumb/cam1/a1.png"`,
		"Back to photo dates",
	)

	videos := doRequest(e, "/camera/cam1/videos/2024-05-01", nil)
	if strings.Contains(videos.Body.String(), "/thumb/") {
		t.Error("video lists must not reference thumbnails")
	}
}

func TestViewerPage(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, "/camera/cam1/photos/2024-05-01/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(),
		"cam1 - 2024-05-01 - 11:00:00",
		`<img class="viewer" src="/media/cam1/a1.png"`,
		`href="/camera/cam1/photos/2024-05-01/0"`,
		`href="/camera/cam1/photos/2024-05-02/0"`,
		`<a href="/camera/cam1/videos/2024-05-01/0">Go to nearest video</a>`,
		`href="/camera/cam1/photos/2024-05-01">Back to file list`,
	)

	// last video: previous crosses back to the earlier date, no next arrow
	rec = doRequest(e, "/camera/cam1/videos/2024-05-02/0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	assertContains(t, body,
		`<video class="viewer" controls src="/media/cam1/c.mkv">`,
		`href="/camera/cam1/videos/2024-05-01/0"`,
		`<a href="/camera/cam1/photos/2024-05-02/0">Go to nearest photo</a>`,
	)
	if strings.Contains(body, `title="Next"`) {
		t.Error("expected no next link on the last video")
	}
}

func TestCameraNamesAreEscapedInLinks(t *testing.T) {
	e, dir := newTestServer(t)
	photo := testPNG(t, 8, 8)
	writeTestFile(t, dir, "cam#1/p.png", photo, day(1, 12, 0))
	writeTestFile(t, dir, "cam;2/q.png", photo, day(1, 13, 0))

	index := doRequest(e, "/", nil)
	assertContains(t, index.Body.String(), `href="/camera/cam%231"`, `href="/camera/cam%3B2"`)

	tests := []struct {
		viewer string
		media  string
	}{
		{"/camera/cam%231/photos/2024-05-01/0", "/media/cam%231/p.png"},
		{"/camera/cam%3B2/photos/2024-05-01/0", "/media/cam%3B2/q.png"},
	}
	for _, tt := range tests {
		t.Run(tt.viewer, func(t *testing.T) {
			rec := doRequest(e, tt.viewer, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			assertContains(t, rec.Body.String(), `src="`+tt.media+`"`)

			media := doRequest(e, tt.media, nil)
			if media.Code != http.StatusOK {
				t.Fatalf("expected 200 for %s, got %d", tt.media, media.Code)
			}
			if !bytes.Equal(media.Body.Bytes(), photo) {
				t.Error("unexpected media body")
			}
		})
	}
}

func TestMediaHandler_ServesFiles(t *testing.T) {
	e, dir := newTestServer(t)

	rec := doRequest(e, "/media/cam1/sub/a2.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	original, err := os.ReadFile(filepath.Join(dir, "cam1", "sub", "a2.png"))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !bytes.Equal(rec.Body.Bytes(), original) {
		t.Error("served photo does not match file on disk")
	}

	rec = doRequest(e, "/media/cam1/b.mp4", map[string]string{"Range": "bytes=0-2"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206 for range request, got %d", rec.Code)
	}
	if rec.Body.String() != "mp4" || rec.Header().Get(echo.HeaderContentType) != "video/mp4" {
		t.Errorf("unexpected partial response %q (%s)", rec.Body.String(), rec.Header().Get(echo.HeaderContentType))
	}
}

func TestMediaHandler_Transcodes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for ffmpeg requires a unix shell")
	}
	e, _ := newTestServer(t)

	rec := doRequest(e, "/media/cam1/c.mkv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "video/mp4" {
		t.Errorf("expected video/mp4, got %s", ct)
	}
	if rec.Body.String() != "matroska data" {
		t.Errorf("expected ffmpeg output, got %q", rec.Body.String())
	}
}

func TestMediaHandler_Errors(t *testing.T) {
	e, _ := newTestServer(t)

	tests := []struct {
		target string
		status int
		body   string
	}{
		{"/media/cam1/../other/x.png", http.StatusNotFound, "Invalid file path"},
		{"/media/cam1/missing.png", http.StatusNotFound, "File not found"},
		{"/media/other/x.png", http.StatusNotFound, "Invalid camera name"},
		{"/media/cam1/notes.avi", http.StatusUnsupportedMediaType, "Unsupported file type"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := doRequest(e, tt.target, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if strings.TrimSpace(rec.Body.String()) != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestThumbnailHandler(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, "/thumb/cam1/a0.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}

	if rec := doRequest(e, "/thumb/cam1/b.mp4", nil); rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415 for video thumbnail, got %d", rec.Code)
	}
}

func TestIconHandlers(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, "/icon.svg", nil)
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "image/svg+xml" {
		t.Fatalf("unexpected svg icon response: %d %s", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}

	rec = doRequest(e, "/icon.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("failed to decode png icon: %v", err)
	}
	if format != "png" || cfg.Width != iconPNGWidth || cfg.Height != iconPNGWidth {
		t.Errorf("expected %dx%d png, got %dx%d %s", iconPNGWidth, iconPNGWidth, cfg.Width, cfg.Height, format)
	}
}

func TestPathEscape(t *testing.T) {
	if got := pathEscape("day 1/a#b.png"); got != "day%201/a%23b.png" {
		t.Errorf("unexpected escaped path %q", got)
	}
}
