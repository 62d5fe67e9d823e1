// pattern: Imperative Shell

package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopLogger returns a logger that discards all output.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// TestLogManager hands out scoped loggers like Manager but records every
// entry in memory at debug level, for asserting on what code under test logged.
type TestLogManager struct {
	ring    *Ring
	baseZap *zap.Logger
	loggers map[string]*ScopedLogger
	mu      sync.Mutex
}

// NewTestLogManager records up to capacity entries; zero keeps all of them.
func NewTestLogManager(capacity int) *TestLogManager {
	ring := NewRing(capacity)
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(ring),
		zapcore.DebugLevel,
	)
	return &TestLogManager{
		ring:    ring,
		baseZap: zap.New(core),
		loggers: make(map[string]*ScopedLogger),
	}
}

// For returns the logger for scope, creating it on first use.
func (m *TestLogManager) For(scope string) *ScopedLogger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if logger, ok := m.loggers[scope]; ok {
		return logger
	}
	logger := newScopedLogger(m.baseZap.Named(scope), zapcore.DebugLevel, scope)
	m.loggers[scope] = logger
	return logger
}

// Entries returns everything recorded so far without consuming it.
func (m *TestLogManager) Entries() []LogEntry {
	return m.ring.Entries()
}

// Drain returns and forgets everything recorded so far.
func (m *TestLogManager) Drain() []LogEntry {
	return m.ring.Drain()
}

func (m *TestLogManager) Close() error {
	return m.ring.Close()
}
