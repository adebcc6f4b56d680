// Command paketpilot to konsolowa wersja aplikacji: sesja kompletacji w
// trybie interaktywnym (run) i kilka poleceń jednorazowych (sklepy,
// archiwum, raport anulowań, import pliku).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	conf "github.com/Sivellexfc/paket-pilot/internal/config"
	"github.com/Sivellexfc/paket-pilot/internal/db"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	logs "github.com/Sivellexfc/paket-pilot/internal/logs"
	"github.com/Sivellexfc/paket-pilot/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// wersję możesz nadpisać przez: -ldflags "-X 'main.ver=1.0.1'"
var ver = "1.0.0"

const appName = "paketpilot"

type app struct {
	dir      string
	cfgPath  string
	logLevel string
	console  bool

	cfg      *conf.Config
	log      zerolog.Logger
	db       *db.Handle
	closeLog func() error
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, workflow.UserMessage(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Pazaryeri siparişlerinin hazırlığı ve kargoya verilmesi",
		Version:       ver,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.dir, "dir", "", "veri klasörü (varsayılan <UserConfigDir>/paketpilot)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log seviyesi: debug|info|warn|error")
	root.PersistentFlags().BoolVar(&a.console, "console", false, "logları konsola da yaz")

	root.AddCommand(
		newRunCmd(a),
		newStoresCmd(a),
		newArchiveCmd(a),
		newCancelsCmd(a),
		newImportCmd(a),
		newImportsCmd(a),
		newTrackingCmd(a),
		newInfoCmd(a),
	)
	return root
}

func (a *app) open() error {
	if a.dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return err
		}
		a.dir = filepath.Join(base, appName)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}

	log, closeLog, err := logs.New(logs.Options{File: filepath.Join(a.dir, logs.FileName), Console: a.console, Level: a.logLevel})
	if err != nil {
		return err
	}
	a.log, a.closeLog = log, closeLog

	a.cfgPath = filepath.Join(a.dir, "config.json")
	cfg, firstRun, err := conf.LoadOrCreate(a.cfgPath)
	if err != nil {
		return err
	}
	if firstRun {
		a.log.Info().Msgf("Utworzono domyślną konfigurację: %s", a.cfgPath)
	}
	a.cfg = cfg

	h, err := db.Open(cfg.Database, a.dir)
	if err != nil {
		return fmt.Errorf("veritabanı açılamadı: %w", err)
	}
	if err := h.Migrate(); err != nil {
		_ = h.Close()
		return fmt.Errorf("veritabanı şeması: %w", err)
	}
	a.db = h
	a.log.Debug().Str("db", h.Path).Str("driver", h.Driver).Msg("DB ready")
	return nil
}

func (a *app) close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
		a.db = nil
	}
	if a.closeLog != nil {
		_ = a.closeLog()
		a.closeLog = nil
	}
	return err
}

// marketplace buduje rynek z configu; bez niego działa tylko import plików.
func (a *app) marketplace() integrations.Marketplace {
	m, err := integrations.BuildMarketplace(a.log, a.cfg.Marketplace, a.cfg.IntegrationRaw(a.cfg.Marketplace))
	if err != nil {
		a.log.Warn().Err(err).Str("marketplace", a.cfg.Marketplace).Msg("rynek niedostępny, tylko import plików")
		return nil
	}
	return m
}

func (a *app) engine(interval bool) (*workflow.Engine, error) {
	cargo, cancel, err := a.cfg.Archive.Modes()
	if err != nil {
		return nil, err
	}
	opts := workflow.Options{Interval: -1, CargoMode: cargo, CancelMode: cancel}
	if interval {
		opts.Interval = a.cfg.RefreshInterval()
		opts.Integrations = a.cfg.Integrations
	}
	deps := workflow.Deps{Store: a.db, Market: a.marketplace(), Imports: a.db}
	return workflow.New(a.log, deps, opts), nil
}

// storeID – flaga --store, a gdy jej brak, sklep zapisany w configu.
func (a *app) storeID(flag uint) (uint, error) {
	if flag != 0 {
		return flag, nil
	}
	if a.cfg.StoreID != 0 {
		return a.cfg.StoreID, nil
	}
	return 0, workflow.ErrNoStore
}
