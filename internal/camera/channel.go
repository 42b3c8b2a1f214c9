package camera

import (
	"errors"
	"fmt"
	"io"
)

// lineBufferSize bounds a single reply line. The daemon formats replies into
// a 2000 byte buffer, so this is a soft cap rather than a protocol limit.
const lineBufferSize = 2100

var ErrLineTooLong = errors.New("reply line exceeds scratch buffer")

// LineChannel speaks the daemon's line protocol over a byte stream.
// Commands go out verbatim; replies come back terminated by a newline byte or
// end of stream. ReadLine never reads past the terminator, so a binary payload
// that follows a reply is left untouched on Reader.
type LineChannel struct {
	r       io.Reader
	w       io.Writer
	scratch [lineBufferSize]byte
	one     [1]byte
}

func NewLineChannel(r io.Reader, w io.Writer) *LineChannel {
	return &LineChannel{r: r, w: w}
}

// Send writes command with no terminator appended.
func (c *LineChannel) Send(command string) error {
	if _, err := io.WriteString(c.w, command); err != nil {
		return fmt.Errorf("failed to send %q: %w", command, err)
	}
	return nil
}

// ReadLine reads one byte at a time until '\n' or end of stream and returns
// what it read without the terminator. End of stream with nothing read yields
// an empty line and a nil error.
func (c *LineChannel) ReadLine() (string, error) {
	n := 0
	for {
		read, err := c.r.Read(c.one[:])
		if read == 1 {
			if c.one[0] == '\n' {
				break
			}
			if n == len(c.scratch) {
				return "", ErrLineTooLong
			}
			c.scratch[n] = c.one[0]
			n++
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read reply: %w", err)
		}
	}
	return string(c.scratch[:n]), nil
}

// Roundtrip sends command and reads its reply line.
func (c *LineChannel) Roundtrip(command string) (string, error) {
	if err := c.Send(command); err != nil {
		return "", err
	}
	return c.ReadLine()
}

// Reader exposes the raw input stream for bulk payload reads.
func (c *LineChannel) Reader() io.Reader {
	return c.r
}

// replyOK reports whether a reply carries the success code.
func replyOK(reply string) bool {
	return len(reply) > 0 && reply[0] == '0'
}
