package face

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/aegis/internal/utils"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const megabyte = 1024 * 1024

// DefaultMaxFrames bounds how much of a video is decoded per sample.
const DefaultMaxFrames = 120

// ErrUnreadable marks media that could not be decoded into at least one frame.
var ErrUnreadable = errors.New("unreadable media")

var videoExts = map[string]bool{".mp4": true, ".avi": true, ".mov": true, ".mkv": true}

// IsVideo reports whether path names a video container by extension.
func IsVideo(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// LoadImage decodes a still image from disk.
func LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnreadable, filepath.Base(path), err)
	}
	return img, nil
}

// LoadVideoFrames decodes up to maxFrames frames from a video through FFmpeg.
func LoadVideoFrames(ctx context.Context, path string, maxFrames int) ([]image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	ffmpeg := utils.NewFFmpegCmd(ctx, path, maxFrames)
	var stderrBuf bytes.Buffer
	ffmpeg.Stderr = &stderrBuf

	out, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create FFmpeg stdout pipe: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("start FFmpeg: %w", err)
	}

	frames, decodeErr := DecodeFrames(out, maxFrames)
	// Drain so FFmpeg is never blocked on a full pipe before Wait
	_, _ = io.Copy(io.Discard, out)
	waitErr := ffmpeg.Wait()

	if decodeErr != nil {
		return nil, decodeErr
	}
	if len(frames) == 0 {
		if waitErr != nil {
			return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrUnreadable, waitErr, strings.TrimSpace(stderrBuf.String()))
		}
		return nil, fmt.Errorf("%w: no frames in %s", ErrUnreadable, filepath.Base(path))
	}
	return frames, nil
}

// DecodeFrames reads a concatenated MJPEG stream. maxFrames <= 0 reads everything.
func DecodeFrames(r io.Reader, maxFrames int) ([]image.Image, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	var frames []image.Image
	for scanner.Scan() {
		img, err := jpeg.Decode(bytes.NewReader(scanner.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", ErrUnreadable, len(frames), err)
		}
		frames = append(frames, img)
		if maxFrames > 0 && len(frames) >= maxFrames {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("frame scanner failed: %w", err)
	}
	return frames, nil
}
