//go:build windows && !dev

// Command paketpilot-tray to wersja z ikoną w zasobniku systemowym:
// start kompletacji, odświeżanie w tle, oznaczenie wysyłki.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/getlantern/systray"

	conf "github.com/Sivellexfc/paket-pilot/internal/config"
	"github.com/Sivellexfc/paket-pilot/internal/db"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	logs "github.com/Sivellexfc/paket-pilot/internal/logs"
	"github.com/Sivellexfc/paket-pilot/internal/workflow"
	"github.com/rs/zerolog"
)

// wersję możesz nadpisać przez: -ldflags "-X 'main.ver=1.0.1'"
var ver = "1.0.0"

func main() {
	appDir := mustAppDataDir("paketpilot")
	logPath := filepath.Join(appDir, logs.FileName)
	log, closeLog, err := logs.New(logs.Options{File: logPath})
	if err != nil {
		panic(err)
	}
	defer closeLog()

	cfgPath := filepath.Join(appDir, "config.json")
	cfg, firstRun, err := conf.LoadOrCreate(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if firstRun {
		log.Info().Msgf("Utworzono domyślną konfigurację: %s", cfgPath)
	}

	dbh, err := db.Open(cfg.Database, appDir)
	if err != nil {
		log.Fatal().Err(err).Msg("DB open error")
	}
	defer dbh.Close()
	if err := dbh.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("DB migrate error")
	}

	// kontekst sterujący życiem procesu (CTRL+C / zamknięcie sesji)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine, err := newEngine(log, cfg, dbh)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	systray.Run(func() {
		systray.SetTitle("PaketPilot")
		systray.SetTooltip(fmt.Sprintf("PaketPilot %s", ver))

		mStart := systray.AddMenuItem("Hazırlığı başlat", "Config içindeki mağaza için hazırlık oturumu")
		mRefresh := systray.AddMenuItem("Yenile", "Siparişleri şimdi çek")
		mShip := systray.AddMenuItem("Kargoya verildi", "Arşivle ve oturumu bitir")
		mStop := systray.AddMenuItem("Durdur", "Oturumu arşivlemeden bırak")
		mRefresh.Disable()
		mShip.Disable()
		mStop.Disable()

		systray.AddSeparator()
		mOpenLogs := systray.AddMenuItem("Logları aç", "Log dosyasını göster")
		mOpenCfg := systray.AddMenuItem("Ayarlar (config.json)", "Yapılandırma dosyasını aç")
		mReload := systray.AddMenuItem("Yapılandırmayı yeniden yükle", "config.json dosyasını yeniden oku (oturum dışında)")
		systray.AddSeparator()
		mAbout := systray.AddMenuItem(fmt.Sprintf("Hakkında (%s)", ver), "")
		mQuit := systray.AddMenuItem("Çıkış", "Uygulamayı kapat")

		refreshMenu := func() {
			st := engine.Status()
			preparing := st.State == workflow.StatePreparing
			toggle(mStart, !preparing)
			toggle(mRefresh, preparing)
			toggle(mStop, preparing)
			toggle(mShip, st.ShipmentReady)
			systray.SetTooltip(tooltip(st))
		}

		start := func() {
			if cfg.StoreID == 0 {
				log.Error().Msg(workflow.UserMessage(workflow.ErrNoStore))
				return
			}
			if err := engine.Start(ctx, cfg.StoreID); err != nil {
				log.Error().Err(err).Msg("Start error")
			}
			refreshMenu()
		}

		if cfg.AutoStart {
			start()
		}

		go func() {
			tick := time.NewTicker(2 * time.Second)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					engine.Stop()
					systray.Quit()
					return
				case <-tick.C:
					refreshMenu()

				case <-mStart.ClickedCh:
					start()

				case <-mRefresh.ClickedCh:
					if err := engine.Refresh(ctx); err != nil {
						log.Error().Err(err).Msg("Refresh error")
					}
					refreshMenu()

				case <-mShip.ClickedCh:
					storeID := engine.Status().StoreID
					res, err := engine.MarkShipped(ctx)
					if err != nil {
						log.Error().Err(err).Msg(workflow.UserMessage(err))
					} else {
						log.Info().Str("date", res.Date).Int("cargo", res.CargoAdded).Int("cancel", res.Cancelled).Msg("kargoya verildi")
						_ = dbh.SetKV(ctx, fmt.Sprintf("last_ship:%d", storeID), res.Date)
					}
					refreshMenu()

				case <-mStop.ClickedCh:
					engine.Stop()
					refreshMenu()

				case <-mOpenLogs.ClickedCh:
					openInExplorer(logPath)

				case <-mOpenCfg.ClickedCh:
					openInExplorer(cfgPath)

				case <-mReload.ClickedCh:
					if engine.Status().State == workflow.StatePreparing {
						log.Warn().Msg("Przeładowanie configu możliwe dopiero po zakończeniu sesji")
						continue
					}
					newCfg, _, err := conf.LoadOrCreate(cfgPath)
					if err != nil {
						log.Error().Err(err).Msg("Błąd reloadu")
						continue
					}
					next, err := newEngine(log, newCfg, dbh)
					if err != nil {
						log.Error().Err(err).Msg("Błąd reloadu")
						continue
					}
					cfg, engine = newCfg, next
					log.Info().Msg("Konfiguracja przeładowana")

				case <-mAbout.ClickedCh:
					log.Info().Msgf("PaketPilot %s | %s", ver, runtime.Version())

				case <-mQuit.ClickedCh:
					cancel()
					engine.Stop()
					systray.Quit()
					return
				}
			}
		}()
	}, func() {
		// onExit: daj chwilę loggerowi na flush
		time.Sleep(50 * time.Millisecond)
	})
}

func newEngine(log zerolog.Logger, cfg *conf.Config, dbh *db.Handle) (*workflow.Engine, error) {
	cargo, cancel, err := cfg.Archive.Modes()
	if err != nil {
		return nil, err
	}
	market, err := integrations.BuildMarketplace(log, cfg.Marketplace, cfg.IntegrationRaw(cfg.Marketplace))
	if err != nil {
		log.Warn().Err(err).Msg("rynek niedostępny, tylko import plików")
	}
	return workflow.New(log, workflow.Deps{Store: dbh, Market: market, Imports: dbh}, workflow.Options{
		Interval:     cfg.RefreshInterval(),
		CargoMode:    cargo,
		CancelMode:   cancel,
		Integrations: cfg.Integrations,
	}), nil
}

func tooltip(st workflow.Status) string {
	switch {
	case st.State != workflow.StatePreparing:
		return fmt.Sprintf("PaketPilot %s - bekliyor", ver)
	case st.LastErr != nil:
		return fmt.Sprintf("PaketPilot - %s", workflow.UserMessage(st.LastErr))
	case st.ShipmentReady:
		return fmt.Sprintf("PaketPilot - hazır (%d sipariş, %d iptal)", st.SourceRows, st.Cancellations)
	}
	return fmt.Sprintf("PaketPilot - hazırlanıyor (%d sipariş, %d iptal)", st.SourceRows, st.Cancellations)
}

func toggle(m *systray.MenuItem, on bool) {
	if on {
		m.Enable()
	} else {
		m.Disable()
	}
}

func mustAppDataDir(name string) string {
	base, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	p := filepath.Join(base, name)
	_ = os.MkdirAll(p, 0o755)
	return p
}

// przenośne otwieranie plików/katalogów w domyślnej aplikacji
func openInExplorer(path string) {
	switch runtime.GOOS {
	case "windows":
		// "start" musi być uruchomiony przez cmd /C, z pustym tytułem okna ""
		_ = exec.Command("cmd", "/C", "start", "", path).Start()
	case "darwin":
		_ = exec.Command("open", path).Start()
	default:
		_ = exec.Command("xdg-open", path).Start()
	}
}
