package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyEntry      = "entry"
	KeyStage      = "stage"
	KeyChannel    = "channel"
	KeyPython     = "python"
	KeyStatus     = "status"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyCommand    = "command"
	KeyExitCode   = "exit_code"
	KeyAttempt    = "attempt"
	KeyUploader   = "uploader"
	KeySchedule   = "schedule"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Entry(id string) slog.Attr        { return slog.String(KeyEntry, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Channel(c string) slog.Attr       { return slog.String(KeyChannel, c) }
func Python(v string) slog.Attr        { return slog.String(KeyPython, v) }
func Status(s string) slog.Attr        { return slog.String(KeyStatus, s) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Command(argv string) slog.Attr    { return slog.String(KeyCommand, argv) }
func ExitCode(code int) slog.Attr      { return slog.Int(KeyExitCode, code) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func Uploader(name string) slog.Attr   { return slog.String(KeyUploader, name) }
func Schedule(spec string) slog.Attr   { return slog.String(KeySchedule, spec) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
