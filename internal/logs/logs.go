package logs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileName – plik logów w katalogu aplikacji.
const FileName = "app.log"

type Options struct {
	File    string // pusty = tylko konsola
	Console bool
	Level   string // debug|info|warn|error, domyślnie info
}

// New składa logger aplikacji: plik (append) i opcjonalnie konsola.
// Ustawia też globalny log.Logger. closeFn zamyka plik logów.
func New(opts Options) (logger zerolog.Logger, closeFn func() error, err error) {
	// Format czasu
	zerolog.TimeFieldFormat = time.RFC3339

	lvl := zerolog.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		if lvl, err = zerolog.ParseLevel(strings.ToLower(s)); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	var writers []io.Writer
	closeFn = func() error { return nil }
	if opts.File != "" {
		_ = os.MkdirAll(filepath.Dir(opts.File), 0o755)
		f, err := os.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("nie można otworzyć pliku log: %w", err)
		}
		writers = append(writers, f)
		closeFn = f.Close
	}
	if opts.Console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	// Logger z timestampem i info o miejscu wywołania
	logger = zerolog.New(w).Level(lvl).With().
		Timestamp().
		Caller().
		Logger()

	// Ustaw globalny logger
	log.Logger = logger

	return logger, closeFn, nil
}

// Component – logger podsystemu z polem "component".
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
