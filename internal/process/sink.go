// pattern: Imperative Shell

package process

import (
	"io"
	"sync"
)

// lineSink writes whole lines to an underlying writer. All sinks sharing a
// mutex never interleave within a line.
type lineSink struct {
	mu *sync.Mutex
	w  io.Writer
}

func (s lineSink) writeLine(prefix, line string) {
	buf := make([]byte, 0, len(prefix)+len(line)+2)
	if prefix != "" {
		buf = append(buf, prefix...)
		buf = append(buf, ' ')
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(buf)
}
