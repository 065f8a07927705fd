package strand

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// log carries runtime diagnostics: scheduler attach/detach traces at debug
// level, fibers ended by a panic at error level, invariant violations as
// fatals.
var log = newLogger()

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetOutput(colorable.NewColorableStderr())
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:     isatty.IsTerminal(os.Stderr.Fd()),
		TimestampFormat: "2006-01-02 15:04:05",
		PadLevelText:    true,
		FullTimestamp:   true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			_, file := filepath.Split(f.File)
			return "", fmt.Sprintf("%s:%d", file, f.Line)
		},
		EnvironmentOverrideColors: true,
	})
	return logger
}

// SetLogLevel adjusts the verbosity of the runtime's diagnostics logger.
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

// fatalf reports a torn runtime state machine. It never returns; local
// repair is impossible once a queue or a context invariant is broken.
func fatalf(format string, args ...any) {
	log.Fatalf("BUG: strand: "+format, args...)
}
