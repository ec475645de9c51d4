package transcode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/jo-hoe/securecam/internal/backend/metrics"
)

const (
	defaultFFmpegPath = "ffmpeg"
	defaultPreset     = "veryfast"
	defaultChunkSize  = 4096
	stderrTailBytes   = 4096
)

type Options struct {
	FFmpegPath string
	Preset     string
	ChunkSize  int
}

// Transcoder converts video files that browsers cannot play into fragmented MP4
// by piping them through an ffmpeg subprocess.
type Transcoder struct {
	ffmpegPath string
	preset     string
	chunkSize  int
	waitDelay  time.Duration
}

func NewTranscoder(opts Options) *Transcoder {
	t := &Transcoder{
		ffmpegPath: opts.FFmpegPath,
		preset:     opts.Preset,
		chunkSize:  opts.ChunkSize,
		waitDelay:  5 * time.Second,
	}
	if t.ffmpegPath == "" {
		t.ffmpegPath = defaultFFmpegPath
	}
	if t.preset == "" {
		t.preset = defaultPreset
	}
	if t.chunkSize <= 0 {
		t.chunkSize = defaultChunkSize
	}
	return t
}

// Args returns the ffmpeg arguments that transcode src to H.264/AAC fragmented MP4 on stdout.
// Fragmented output with an empty moov atom lets the browser start playback before ffmpeg finishes.
func (t *Transcoder) Args(src string) []string {
	return []string{
		"-i", src,
		"-f", "mp4",
		"-vcodec", "libx264", "-acodec", "aac",
		"-movflags", "frag_keyframe+empty_moov",
		"-preset", t.preset,
		"-tune", "fastdecode",
		"-analyzeduration", "0", "-probesize", "32",
		"-y", "-loglevel", "error", "-",
	}
}

// Stream transcodes src and writes the output to w until ffmpeg exits, ctx is
// cancelled or writing fails. The number of bytes written is returned.
func (t *Transcoder) Stream(ctx context.Context, src string, w io.Writer) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffmpegPath, t.Args(src)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = t.waitDelay

	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		metrics.TranscodeFailures.Inc()
		return 0, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	metrics.TranscodesActive.Inc()
	defer metrics.TranscodesActive.Dec()

	slog.Debug("ffmpeg transcode started", "source", src, "pid", cmd.Process.Pid)

	written, copyErr := t.copyChunks(w, stdout)
	if copyErr != nil {
		// the client went away, stop ffmpeg instead of letting it fill the pipe
		cancel()
	}
	waitErr := cmd.Wait()

	switch {
	case copyErr != nil:
		return written, fmt.Errorf("failed to write transcoded stream: %w", copyErr)
	case ctx.Err() != nil:
		return written, ctx.Err()
	case waitErr != nil:
		metrics.TranscodeFailures.Inc()
		return written, fmt.Errorf("ffmpeg failed: %w (stderr: %s)", waitErr, strings.TrimSpace(stderr.String()))
	}

	slog.Debug("ffmpeg transcode finished", "source", src, "bytes", written)
	return written, nil
}

func (t *Transcoder) copyChunks(w io.Writer, r io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, t.chunkSize)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			m, err := w.Write(buf[:n])
			written += int64(m)
			if err != nil {
				return written, err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			// EOF or a pipe closed by cancellation; the exit status is reported by Wait
			return written, nil
		}
	}
}

// Validate checks that the configured ffmpeg binary can be executed
func (t *Transcoder) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not available at %s: %w", t.ffmpegPath, err)
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
