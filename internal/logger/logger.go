package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	global *zap.Logger
)

// GetLogger returns the process-wide logger. Until SetLogger is called it is
// a production logger writing JSON to stderr.
func GetLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = NewProduction(false)
	}
	return global
}

func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	global = logger
	mu.Unlock()
}

// NewProduction builds a JSON logger on stderr. Stdout stays clean for the
// list command and the MCP stdio transport.
func NewProduction(verbose bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level(verbose),
	)
	return zap.New(core, zap.AddCaller())
}

// NewLines builds a console logger that hands each line to sink instead of a
// terminal, so a full-screen UI can render recent entries itself.
func NewLines(verbose bool, sink chan<- string) *zap.Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encoderConfig.EncodeCaller = nil
	encoderConfig.CallerKey = ""

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(LineWriter{Lines: sink}),
		level(verbose),
	)
	return zap.New(core)
}

func level(verbose bool) zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// LineWriter splits writes into trimmed lines and forwards them without
// blocking. Lines are dropped while the receiver is behind.
type LineWriter struct {
	Lines chan<- string
}

func (writer LineWriter) Write(data []byte) (int, error) {
	message := strings.TrimSpace(string(data))
	if message == "" {
		return len(data), nil
	}

	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		select {
		case writer.Lines <- line:
		default:
		}
	}

	return len(data), nil
}
