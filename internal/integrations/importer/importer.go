package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/rs/zerolog"
)

const Name = "importer"

type Config struct {
	WatchDir     string `json:"watch_dir"`     // np. ~/paketpilot/imports
	PollSec      int    `json:"poll_sec"`      // co ile sekund skanować katalog
	Charset      string `json:"charset"`       // kodowanie CSV spoza UTF-8, domyślnie windows-1254
	TargetPrefix string `json:"target_prefix"` // pliki z tym prefiksem idą do tabeli docelowej
}

// Defaults – wpis "importer" w domyślnym config.json.
func Defaults() Config {
	return Config{WatchDir: "~/paketpilot/imports", PollSec: 10, Charset: DefaultCharset, TargetPrefix: "hedef_"}
}

// Watcher obserwuje katalog i przekazuje nowe arkusze do silnika (Env.Sink).
// Plik o znanym SHA256 nie jest importowany drugi raz.
type Watcher struct {
	log zerolog.Logger
	cfg Config
	env integrations.Env

	mu     sync.Mutex
	cancel context.CancelFunc

	// pliki odrzucone przez Sink w tej sesji – nie ponawiamy, dopóki treść się nie zmieni
	rejected map[string]struct{}
	// bez ImportLog pamiętamy przetworzone pliki tylko w pamięci
	seen map[string]struct{}
}

func New(log zerolog.Logger, cfg Config, env integrations.Env) (*Watcher, error) {
	if env.Sink == nil {
		return nil, errors.New("importer: brak odbiorcy importu (Sink)")
	}
	if strings.TrimSpace(cfg.WatchDir) == "" {
		return nil, errors.New("importer: watch_dir jest wymagany")
	}
	if cfg.Charset == "" {
		cfg.Charset = DefaultCharset
	}
	return &Watcher{
		log:      log,
		cfg:      cfg,
		env:      env,
		rejected: map[string]struct{}{},
		seen:     map[string]struct{}{},
	}, nil
}

func (w *Watcher) Name() string { return Name }

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	dir := expandHome(w.cfg.WatchDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w.log.Info().Str("integration", w.Name()).Str("dir", dir).Msg("start")

	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()

	// pierwszy przebieg
	w.scanOnce(ctx, dir)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Str("integration", w.Name()).Msg("stop")
			return nil
		case <-ticker.C:
			w.scanOnce(ctx, dir)
		}
	}
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) interval() time.Duration {
	if w.cfg.PollSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(w.cfg.PollSec) * time.Second
}

// Side – do której tabeli trafia plik o tej nazwie.
func (w *Watcher) Side(name string) integrations.Side {
	p := strings.ToLower(w.cfg.TargetPrefix)
	if p != "" && strings.HasPrefix(strings.ToLower(name), p) {
		return integrations.SideTarget
	}
	return integrations.SideSource
}

func (w *Watcher) scanOnce(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.log.Error().Err(err).Str("dir", dir).Msg("nie mogę odczytać katalogu")
		return
	}
	// najstarsze nazwy pierwsze, żeby kolejne eksporty szły w kolejności
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || !Supported(name) {
			continue
		}
		if err := w.processFile(ctx, filepath.Join(dir, name)); err != nil {
			w.log.Error().Err(err).Str("file", name).Msg("błąd przetwarzania pliku")
		}
	}
}

func (w *Watcher) processFile(ctx context.Context, full string) error {
	name := filepath.Base(full)
	sum, err := FileSHA256(full)
	if err != nil {
		return err
	}
	if _, ok := w.rejected[sum]; ok {
		return nil
	}
	done, err := w.alreadyImported(ctx, sum)
	if err != nil {
		return err
	}
	if done {
		w.log.Debug().Str("file", name).Msg("plik już zaimportowany – pomijam")
		return nil
	}

	t, err := ReadFile(full, w.cfg.Charset)
	if err != nil {
		w.rejected[sum] = struct{}{}
		return err
	}
	side := w.Side(name)

	if err := w.env.Sink.ImportTable(ctx, side, name, t); err != nil {
		w.rejected[sum] = struct{}{}
		w.log.Warn().Err(err).Str("file", name).Str("side", string(side)).Msg("import odrzucony")
		return nil
	}

	rep := Inspect(t)
	ev := w.log.Info().Str("file", name).Str("side", string(side)).Int("rows", rep.Rows).
		Int("barcodes", rep.Barcodes).Int("no_barcode", rep.EmptyBarcode)
	if w.env.Imports != nil {
		id, err := w.env.Imports.SaveImportBatch(ctx, integrations.ImportRecord{
			StoreID:  w.env.StoreID,
			Filename: name,
			Side:     side,
			SHA256:   sum,
			Data:     t,
		})
		if err != nil {
			return err
		}
		ev = ev.Uint("batch_id", id)
	} else {
		w.seen[sum] = struct{}{}
	}
	ev.Msg("przetworzono OK")
	return nil
}

func (w *Watcher) alreadyImported(ctx context.Context, sum string) (bool, error) {
	if w.env.Imports == nil {
		_, ok := w.seen[sum]
		return ok, nil
	}
	return w.env.Imports.HasImportSHA(ctx, w.env.StoreID, sum)
}

// FileSHA256 – skrót pliku, klucz deduplikacji importów.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func factory(log zerolog.Logger, raw json.RawMessage, env integrations.Env) (integrations.Integration, error) {
	cfg := Defaults()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}
	return New(log, cfg, env)
}

func init() {
	integrations.Register(Name, factory)
}
