package build

import (
	"io"
	"sort"
	"sync"

	"github.com/btcsuite/btclog/v2"
)

// SubLoggerManager hands out one logger per subsystem, all writing to the same
// writer, and keeps track of them so their levels can be changed at runtime.
type SubLoggerManager struct {
	w    io.Writer
	opts []btclog.HandlerOption

	mu         sync.Mutex
	subLoggers SubLoggers
}

// Compile-time check that SubLoggerManager implements LeveledSubLogger.
var _ LeveledSubLogger = (*SubLoggerManager)(nil)

// NewSubLoggerManager constructs a SubLoggerManager writing to w.
func NewSubLoggerManager(w io.Writer,
	opts ...btclog.HandlerOption) *SubLoggerManager {

	return &SubLoggerManager{
		w:          w,
		opts:       opts,
		subLoggers: make(SubLoggers),
	}
}

// GenSubLogger creates (or returns the existing) logger for the subsystem. It
// has the signature expected by NewSubLogger.
func (m *SubLoggerManager) GenSubLogger(subsystem string) btclog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if logger, ok := m.subLoggers[subsystem]; ok {
		return logger
	}

	// Every subsystem gets its own handler so that levels can be set
	// independently.
	handler := btclog.NewDefaultHandler(m.w, m.opts...)
	logger := btclog.NewSLogger(handler.SubSystem(subsystem))
	m.subLoggers[subsystem] = logger

	return logger
}

// RegisterSubLogger creates the subsystem logger and hands it to the package
// level setter, usually a package's UseLogger.
func (m *SubLoggerManager) RegisterSubLogger(subsystem string,
	useLogger func(btclog.Logger)) {

	useLogger(NewSubLogger(subsystem, m.GenSubLogger))
}

// SubLoggers returns the map of all registered subsystem loggers.
func (m *SubLoggerManager) SubLoggers() SubLoggers {
	m.mu.Lock()
	defer m.mu.Unlock()

	loggers := make(SubLoggers, len(m.subLoggers))
	for k, v := range m.subLoggers {
		loggers[k] = v
	}

	return loggers
}

// SupportedSubsystems returns a sorted slice of the registered subsystems.
func (m *SubLoggerManager) SupportedSubsystems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	subsystems := make([]string, 0, len(m.subLoggers))
	for subsysID := range m.subLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored.
func (m *SubLoggerManager) SetLogLevel(subsystemID string, logLevel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger, ok := m.subLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func (m *SubLoggerManager) SetLogLevels(logLevel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	level, _ := btclog.LevelFromString(logLevel)
	for _, logger := range m.subLoggers {
		logger.SetLevel(level)
	}
}
