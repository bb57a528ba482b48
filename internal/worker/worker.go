package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/aegis/internal/match"
	"github.com/andresmejia3/aegis/internal/types"
	"github.com/andresmejia3/aegis/internal/utils" // Using the SafeCommand wrapper
)

// Request opcodes understood by python/face_worker.py
const (
	opDetect byte = 1
	opEmbed  byte = 2
)

// Response status bytes
const (
	statusOK    byte = 0
	statusError byte = 1
)

// maxResponse guards against reading a garbage length header as a huge allocation.
const maxResponse = 64 * 1024 * 1024

// Config describes how to launch the face model sidecar.
type Config struct {
	Command     []string      // executable and arguments, e.g. python3 -u python/face_worker.py
	Backend     string        // retinaface, mtcnn or haar; passed as --backend
	ReadTimeout time.Duration // upper bound for a single request
}

// PythonWorker speaks a length-prefixed binary protocol with a Python process that
// wraps the detection and embedding models. Requests go over stdin; responses come
// back on a dedicated pipe (FD 3) so model library chatter on stdout cannot corrupt them.
type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	timeout time.Duration
	mu      sync.Mutex // one in-flight request per process
	closed  bool
}

// NewPythonWorker starts the sidecar. The caller owns the worker and must Close it.
func NewPythonWorker(ctx context.Context, id int, cfg Config) (*PythonWorker, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("worker command is empty")
	}
	args := append([]string{}, cfg.Command[1:]...)
	if cfg.Backend != "" {
		args = append(args, "--backend", cfg.Backend)
	}
	py := utils.NewSafeCommand(ctx, cfg.Command[0], args...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close() // Close write end if start fails
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PythonWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
		timeout:  cfg.ReadTimeout,
	}, nil
}

// Detect sends a frame and decodes the face regions found in it.
func (w *PythonWorker) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	payload, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	body, err := w.roundTrip(ctx, opDetect, payload)
	if err != nil {
		return nil, err
	}
	return parseDetectResponse(body)
}

// Embed sends a cropped face and decodes its embedding, rescaled to unit length.
func (w *PythonWorker) Embed(ctx context.Context, face image.Image) ([]float64, error) {
	payload, err := encodePNG(face)
	if err != nil {
		return nil, err
	}
	body, err := w.roundTrip(ctx, opEmbed, payload)
	if err != nil {
		return nil, err
	}
	emb, err := parseEmbedResponse(body)
	if err != nil {
		return nil, err
	}
	return match.Normalize(emb), nil
}

// roundTrip writes one request and reads one response body.
// Protocol: request [Op][Length][Data], response [Length][Status][...]
func (w *PythonWorker) roundTrip(ctx context.Context, op byte, data []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("worker %d is closed", w.ID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header := make([]byte, 5)
	header[0] = op
	binary.BigEndian.PutUint32(header[1:], uint32(len(data)))
	if _, err := w.Stdin.Write(header); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	w.setReadDeadline(ctx)

	// Read Result
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, lenBuf); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}
	respLen := binary.BigEndian.Uint32(lenBuf)
	if respLen == 0 || respLen > maxResponse {
		return nil, fmt.Errorf("invalid response length %d", respLen)
	}
	respBody := make([]byte, respLen)
	if _, err := io.ReadFull(w.DataPipe, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// setReadDeadline bounds the next read when the data pipe supports deadlines (os.Pipe does).
func (w *PythonWorker) setReadDeadline(ctx context.Context) {
	dl, ok := w.DataPipe.(interface{ SetReadDeadline(time.Time) error })
	if !ok {
		return
	}
	var deadline time.Time
	if w.timeout > 0 {
		deadline = time.Now().Add(w.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = dl.SetReadDeadline(deadline)
}

// Close shuts the worker down and waits for the process to exit.
func (w *PythonWorker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd != nil {
		w.Cmd.Wait()
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// checkStatus consumes the status byte and converts worker-side exceptions into errors.
func checkStatus(r *bytes.Reader) error {
	status, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("empty response: %w", err)
	}
	switch status {
	case statusOK:
		return nil
	case statusError:
		var msgLen uint32
		if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
			return fmt.Errorf("python worker error (unreadable message): %w", err)
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(r, msg); err != nil {
			return fmt.Errorf("python worker error (truncated message): %w", err)
		}
		return fmt.Errorf("python worker error: %s", msg)
	default:
		return fmt.Errorf("unknown response status %d", status)
	}
}

// parseDetectResponse decodes [Status:0][NumFaces] then per face [Box x,y,w,h int32][Score float32].
func parseDetectResponse(body []byte) ([]types.FaceRegion, error) {
	r := bytes.NewReader(body)
	if err := checkStatus(r); err != nil {
		return nil, err
	}

	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("read face count: %w", err)
	}
	// 20 bytes per face; reject counts the body cannot hold
	if int(n) > r.Len()/20 {
		return nil, fmt.Errorf("face count %d exceeds payload", n)
	}

	regions := make([]types.FaceRegion, 0, n)
	for i := uint32(0); i < n; i++ {
		var box [4]int32
		var score float32
		if err := binary.Read(r, binary.BigEndian, &box); err != nil {
			return nil, fmt.Errorf("read box %d: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &score); err != nil {
			return nil, fmt.Errorf("read score %d: %w", i, err)
		}
		regions = append(regions, types.FaceRegion{
			X: int(box[0]), Y: int(box[1]), W: int(box[2]), H: int(box[3]),
			Score: float64(score),
		})
	}
	return regions, nil
}

// parseEmbedResponse decodes [Status:0][Dim][Vec float32 * Dim].
func parseEmbedResponse(body []byte) ([]float64, error) {
	r := bytes.NewReader(body)
	if err := checkStatus(r); err != nil {
		return nil, err
	}

	var dim uint32
	if err := binary.Read(r, binary.BigEndian, &dim); err != nil {
		return nil, fmt.Errorf("read embedding size: %w", err)
	}
	if int(dim) > r.Len()/4 {
		return nil, fmt.Errorf("embedding size %d exceeds payload", dim)
	}
	raw := make([]float32, dim)
	if err := binary.Read(r, binary.BigEndian, raw); err != nil {
		return nil, fmt.Errorf("read embedding: %w", err)
	}

	vec := make([]float64, dim)
	for i, v := range raw {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("embedding component %d is not finite", i)
		}
		vec[i] = float64(v)
	}
	return vec, nil
}
