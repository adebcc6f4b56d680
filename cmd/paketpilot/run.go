package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/columns"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/integrations/importer"
	logs "github.com/Sivellexfc/paket-pilot/internal/logs"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/Sivellexfc/paket-pilot/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const replHelp = "Komutlar: start [mağaza] | stop | refresh | status | validate | ship | tracking [clear] | " +
	"show source|target|cancels|summary | import <dosya> | target <dosya> | load <importID> | " +
	"count <barkod> <paket> <adet> | edit <satır> <sütun> <değer> | interval <sn> | paths | quit"

func newRunCmd(a *app) *cobra.Command {
	var store uint
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Etkileşimli hazırlık oturumu",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine(true)
			if err != nil {
				return err
			}
			r := &repl{app: a, engine: e, log: logs.Component(a.log, "cli"), out: cmd.OutOrStdout(), store: store}
			return r.loop(cmd.Context(), cmd.InOrStdin())
		},
	}
	cmd.Flags().UintVar(&store, "store", 0, "mağaza ID (varsayılan config store_id)")
	return cmd
}

type repl struct {
	app    *app
	engine *workflow.Engine
	log    zerolog.Logger
	out    io.Writer
	store  uint
}

func (r *repl) loop(ctx context.Context, in io.Reader) error {
	defer r.engine.Stop()

	if r.app.cfg.AutoStart {
		if err := r.start(ctx, nil); err != nil {
			r.log.Error().Msgf("AutoStart nieudany: %v", err)
		}
	}

	fmt.Fprintln(r.out, "PaketPilot CLI", ver)
	fmt.Fprintln(r.out, replHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.out, "> ")
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := r.exec(ctx, cmd, args); err != nil {
			r.log.Error().Err(err).Str("cmd", cmd).Msg("komenda nieudana")
			fmt.Fprintln(r.out, workflow.UserMessage(err))
		}
	}
}

func (r *repl) exec(ctx context.Context, cmd string, args []string) error {
	e := r.engine
	switch cmd {
	case "start":
		if err := r.start(ctx, args); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Hazırlık başladı")
	case "stop":
		e.Stop()
		fmt.Fprintln(r.out, "Hazırlık durduruldu")
	case "refresh":
		if err := e.Refresh(ctx); err != nil {
			return err
		}
		printStatus(r.out, e.Status())
	case "status":
		printStatus(r.out, e.Status())
	case "validate":
		printValidation(r.out, e.Validation())
	case "ship":
		storeID := e.Status().StoreID
		res, err := e.MarkShipped(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Kargoya verildi (%s): %d sipariş arşivlendi, %d iptal\n", res.Date, res.CargoAdded, res.Cancelled)
		if err := r.app.db.SetKV(ctx, lastShipKey(storeID), res.Date); err != nil {
			r.log.Warn().Err(err).Msg("zapis daty wysyłki nieudany")
		}
	case "tracking":
		if len(args) > 0 && args[0] == "clear" {
			id := e.Status().StoreID
			if id == 0 {
				var err error
				if id, err = r.app.storeID(r.store); err != nil {
					return err
				}
			}
			n, err := e.ClearTracking(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(r.out, "%d olay silindi\n", n)
			return nil
		}
		printEvents(r.out, e.Tracking())
	case "show":
		return r.show(args)
	case "import", "target":
		if len(args) != 1 {
			return fmt.Errorf("kullanım: %s <dosya>", cmd)
		}
		side := integrations.SideSource
		if cmd == "target" {
			side = integrations.SideTarget
		}
		return r.importFile(ctx, side, args[0])
	case "load":
		if len(args) != 1 {
			return fmt.Errorf("kullanım: load <importID>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		b, t, err := r.app.db.LoadImportBatch(ctx, id)
		if err != nil {
			return err
		}
		if err := e.ImportTable(ctx, integrations.Side(b.Side), b.Filename, t); err != nil {
			return err
		}
		printStatus(r.out, e.Status())
	case "interval":
		if len(args) != 1 {
			return fmt.Errorf("kullanım: interval <saniye>")
		}
		sec, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		e.SetInterval(time.Duration(sec) * time.Second)
		fmt.Fprintln(r.out, "Yenileme aralığı:", time.Duration(sec)*time.Second)
	case "count":
		if len(args) != 3 {
			return fmt.Errorf("kullanım: count <barkod> <paket> <adet>")
		}
		pk, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("paket: %w", err)
		}
		pcs, ok := table.CellFloat(args[2])
		if !ok {
			return fmt.Errorf("adet: geçersiz sayı %q", args[2])
		}
		v, err := e.CountTarget(args[0], pk, pcs)
		if err != nil {
			return err
		}
		printValidation(r.out, v)
	case "edit":
		if len(args) < 3 {
			return fmt.Errorf("kullanım: edit <satır> <sütun> <değer>")
		}
		row, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		col, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		v, err := e.EditTarget(row, col, parseCell(strings.Join(args[2:], " ")))
		if err != nil {
			return err
		}
		printValidation(r.out, v)
	case "paths":
		fmt.Fprintln(r.out, "Veri:", r.app.dir)
		fmt.Fprintln(r.out, "Config:", r.app.cfgPath)
		fmt.Fprintln(r.out, "Veritabanı:", r.app.db.Path)
	default:
		fmt.Fprintln(r.out, "Bilinmeyen komut.", replHelp)
	}
	return nil
}

func (r *repl) start(ctx context.Context, args []string) error {
	var flag uint
	if len(args) > 0 {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("mağaza: %w", err)
		}
		flag = uint(n)
	} else {
		flag = r.store
	}
	id, err := r.app.storeID(flag)
	if err != nil {
		return err
	}
	return r.engine.Start(ctx, id)
}

func (r *repl) show(args []string) error {
	v := r.engine.Snapshot()
	what := "target"
	if len(args) > 0 {
		what = strings.ToLower(args[0])
	}
	switch what {
	case "source":
		printTable(r.out, v.Source)
	case "target":
		printTable(r.out, v.Target)
	case "cancels":
		printTable(r.out, v.Cancellations)
	case "summary":
		cm := columns.ResolveTable(v.Source)
		agg, err := reconcile.AggregatedTable(v.Source.Headers, cm, reconcile.Aggregate(v.Source, cm))
		if err != nil {
			return err
		}
		printTable(r.out, agg)
	default:
		return fmt.Errorf("show: bilinmeyen tablo %q", what)
	}
	return nil
}

func (r *repl) importFile(ctx context.Context, side integrations.Side, path string) error {
	t, err := importer.ReadFile(path, importCharset(r.app))
	if err != nil {
		return err
	}
	if err := r.engine.ImportTable(ctx, side, path, t); err != nil {
		return err
	}
	printStatus(r.out, r.engine.Status())
	return nil
}

// parseCell – liczby jako float64, reszta jako tekst.
func parseCell(s string) table.Cell {
	if f, ok := table.CellFloat(s); ok {
		return f
	}
	return s
}
