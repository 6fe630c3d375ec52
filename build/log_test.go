package build

import (
	"bytes"
	"testing"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SubLoggerManager, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	mgr := NewSubLoggerManager(&buf, btclog.WithNoTimestamp())
	mgr.GenSubLogger("WLDB")
	mgr.GenSubLogger("BOLT")

	return mgr, &buf
}

// TestParseAndSetDebugLevels checks the accepted and rejected forms of the
// debug level string.
func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   string
		wantErr bool
		want    map[string]btclogv1.Level
	}{
		{
			name:  "global level",
			level: "debug",
			want: map[string]btclogv1.Level{
				"WLDB": btclogv1.LevelDebug,
				"BOLT": btclogv1.LevelDebug,
			},
		},
		{
			name:  "global with override",
			level: "info,BOLT=trace",
			want: map[string]btclogv1.Level{
				"WLDB": btclogv1.LevelInfo,
				"BOLT": btclogv1.LevelTrace,
			},
		},
		{
			name:  "subsystem only",
			level: "WLDB=error",
			want: map[string]btclogv1.Level{
				"WLDB": btclogv1.LevelError,
			},
		},
		{
			name:    "unknown level",
			level:   "loud",
			wantErr: true,
		},
		{
			name:    "unknown subsystem",
			level:   "info,NOPE=debug",
			wantErr: true,
		},
		{
			name:    "malformed pair",
			level:   "info,BOLT",
			wantErr: true,
		},
		{
			name:    "empty",
			level:   "",
			wantErr: true,
		},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			mgr, _ := newTestManager(t)
			err := ParseAndSetDebugLevels(test.level, mgr)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			loggers := mgr.SubLoggers()
			for subsys, level := range test.want {
				require.Equal(t, level, loggers[subsys].Level())
			}
		})
	}
}

// TestSubLoggerOutput makes sure the generated loggers write through to the
// shared writer and honour their level.
func TestSubLoggerOutput(t *testing.T) {
	t.Parallel()

	mgr, buf := newTestManager(t)
	mgr.SetLogLevels("info")

	logger := NewSubLogger("WLDB", mgr.GenSubLogger)
	logger.Debugf("hidden")
	logger.Infof("visible %d", 1)

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "visible 1")
	require.Contains(t, buf.String(), "WLDB")

	require.Equal(t, []string{"BOLT", "WLDB"}, mgr.SupportedSubsystems())
	require.Equal(t, btclog.Disabled, NewSubLogger("NONE", nil))
}
