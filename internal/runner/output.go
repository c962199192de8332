package runner

import (
	"bytes"
	"strings"
)

// capture collects one output stream of the child. It keeps up to limit
// bytes and, when lines is set, hands every complete line to it as it
// arrives. Only the copying goroutine started by exec writes to it.
type capture struct {
	buf       bytes.Buffer
	limit     int
	truncated bool

	lines   func(string)
	partial []byte
}

func (c *capture) Write(p []byte) (int, error) {
	if c.lines != nil {
		c.emit(p)
	}

	remaining := c.limit - c.buf.Len()
	if c.limit <= 0 {
		remaining = len(p)
	}
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		// Keep what fits but report everything as consumed so the
		// copier does not fail with a short write.
		c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *capture) emit(p []byte) {
	c.partial = append(c.partial, p...)
	for {
		i := bytes.IndexByte(c.partial, '\n')
		if i < 0 {
			return
		}
		c.lines(strings.TrimRight(string(c.partial[:i]), "\r"))
		c.partial = c.partial[i+1:]
	}
}

// flush hands a trailing line without newline to the line callback.
func (c *capture) flush() {
	if c.lines != nil && len(c.partial) > 0 {
		c.lines(string(c.partial))
		c.partial = nil
	}
}

func (c *capture) String() string {
	return c.buf.String()
}
