//go:build !stdlog
// +build !stdlog

package build

// LoggingType is a log type that writes to both the console and the log
// rotator, if present.
const LoggingType = LogTypeDefault

// Write writes the provided byte slice to the console and the file writer.
// Errors of the individual sinks are not reported, a broken log sink must not
// fail the caller.
func (w *LogWriter) Write(b []byte) (int, error) {
	if w.Console != nil {
		_, _ = w.Console.Write(b)
	}
	if w.File != nil {
		_, _ = w.File.Write(b)
	}

	return len(b), nil
}
