package radeon

import (
	"log/slog"

	"github.com/gogpu/radeon/lowerps"
)

// SetLogger configures the logger for radeon and the lowering pass.
// By default, radeon produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by radeon:
//   - [slog.LevelDebug]: pass diagnostics (temporaries, gathered stores, exports)
//   - [slog.LevelWarn]: shaders rejected by the pass
//
// Example:
//
//	radeon.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	lowerps.SetLogger(l)
}

// Logger returns the current logger used by radeon.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return lowerps.Logger()
}
