package camera

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// ChunkSize is the largest single read taken off the socket while streaming
// a buffer payload.
const ChunkSize = 16 * 1024

var (
	ErrBufferUnavailable = errors.New("buffer unavailable")
	ErrShortRead         = errors.New("payload shorter than declared length")
)

// ProgressFunc receives the fraction of a payload transferred so far.
type ProgressFunc func(fraction float64)

// Transfer describes one completed payload download.
type Transfer struct {
	Declared    int64         `json:"declared_bytes"`
	Length      int64         `json:"length_bytes"`
	Destination string        `json:"destination"`
	Elapsed     time.Duration `json:"elapsed"`
	Checksum    string        `json:"blake3"`
}

// Truncated reports whether the stream ended before the declared length.
func (t *Transfer) Truncated() bool {
	return t.Length < t.Declared
}

// Download sends sizeCommand, reads the "<code> <length>" reply and copies
// that many bytes from the channel into dst. The copy stops early, without an
// error, if the stream ends first; callers compare Length with Declared.
func Download(ch *LineChannel, sizeCommand string, dst io.Writer, progress ProgressFunc) (*Transfer, error) {
	start := time.Now()

	reply, err := ch.Roundtrip(sizeCommand)
	if err != nil {
		return nil, err
	}
	declared, err := parseLength(reply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sizeCommand, err)
	}

	hasher := blake3.New()
	out := io.MultiWriter(dst, hasher)
	transfer := &Transfer{Declared: declared}

	total, err := copyPayload(ch.Reader(), out, declared, progress)
	transfer.Length = total
	transfer.Elapsed = time.Since(start)
	transfer.Checksum = hex.EncodeToString(hasher.Sum(nil))
	if err != nil {
		return transfer, err
	}
	return transfer, nil
}

// parseLength extracts the declared payload length from a size reply.
func parseLength(reply string) (int64, error) {
	if !replyOK(reply) {
		return 0, fmt.Errorf("%w: %q", ErrBufferUnavailable, reply)
	}
	parts := strings.Split(reply, " ")
	if len(parts) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedReply, reply)
	}
	length, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || length < 0 {
		return 0, fmt.Errorf("%w: bad length in %q", ErrMalformedReply, reply)
	}
	return length, nil
}

func copyPayload(r io.Reader, w io.Writer, length int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, ChunkSize)
	var total int64
	for total < length {
		n, err := r.Read(buf[:min(length-total, ChunkSize)])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("failed to write payload: %w", werr)
			}
			total += int64(n)
		}
		if progress != nil {
			progress(float64(total) / float64(length))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("failed to read payload: %w", err)
		}
	}
	return total, nil
}
