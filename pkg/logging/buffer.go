package logging

import (
	"strings"
	"sync"
)

const captureDepth = 64

// Capture keeps the most recent lines written to it. It backs the status
// footer, so only the tail is ever needed.
type Capture struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// NewCapture returns a Capture holding up to depth lines.
func NewCapture(depth int) *Capture {
	if depth < 1 {
		depth = 1
	}
	return &Capture{lines: make([]string, depth)}
}

// ServerCapture holds recent INFO+ server log lines.
var ServerCapture = NewCapture(captureDepth)

// EventCapture holds recent stake-out event lines.
var EventCapture = NewCapture(captureDepth)

// Write implements io.Writer. Each call is stored as one line.
func (c *Capture) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")
	c.mu.Lock()
	c.lines[c.next] = line
	c.next = (c.next + 1) % len(c.lines)
	if c.next == 0 {
		c.full = true
	}
	c.mu.Unlock()
	return len(p), nil
}

// Last returns the most recent line, or "" if nothing was written.
func (c *Capture) Last() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.full && c.next == 0 {
		return ""
	}
	return c.lines[(c.next-1+len(c.lines))%len(c.lines)]
}

// Recent returns up to n lines, oldest first.
func (c *Capture) Recent(n int) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	size := c.next
	if c.full {
		size = len(c.lines)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]string, 0, n)
	for i := n; i > 0; i-- {
		out = append(out, c.lines[(c.next-i+len(c.lines))%len(c.lines)])
	}
	return out
}
