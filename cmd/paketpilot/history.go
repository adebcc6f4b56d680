package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/spf13/cobra"
)

func newImportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "İçe aktarılan dosyaların geçmişi",
	}

	var (
		store uint
		side  string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "Mağazanın içe aktarmaları, en yenisi önce",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.storeID(store)
			if err != nil {
				return err
			}
			batches, err := a.db.ListImportBatches(cmd.Context(), id, integrations.Side(side))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDosya\tTaraf\tSatır\tTarih")
			for _, b := range batches {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", b.ID, b.Filename, b.Side, b.Rows, b.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	list.Flags().UintVar(&store, "store", 0, "mağaza ID")
	list.Flags().StringVar(&side, "side", "", "source|target (boş = ikisi de)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Kaydedilmiş içe aktarmanın içeriği",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, t, err := a.db.LoadImportBatch(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", b.Filename, b.Side)
			printTable(cmd.OutOrStdout(), t)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "İçe aktarmayı geçmişten sil (dosya yeniden aktarılabilir)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.db.DeleteImportBatch(cmd.Context(), id)
		},
	}

	cmd.AddCommand(list, show, remove)
	return cmd
}

func newTrackingCmd(a *app) *cobra.Command {
	var (
		store uint
		limit int
		clear bool
	)
	cmd := &cobra.Command{
		Use:   "tracking",
		Short: "Yeni ve iptal edilen sipariş geçmişi",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.storeID(store)
			if err != nil {
				return err
			}
			if clear {
				n, err := a.db.CleanupTrackingEvents(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d olay silindi\n", n)
				return nil
			}
			events, err := a.db.ListTrackingEvents(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
	cmd.Flags().UintVar(&store, "store", 0, "mağaza ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "gösterilecek olay sayısı")
	cmd.Flags().BoolVar(&clear, "clear", false, "mağaza geçmişini temizle")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Yollar, veritabanı ve kayıtlı entegrasyonlar",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "PaketPilot", ver)
			fmt.Fprintln(out, "Veri:", a.dir)
			fmt.Fprintln(out, "Config:", a.cfgPath)
			fmt.Fprintf(out, "Veritabanı: %s (%s)\n", a.db.Path, a.db.Driver)
			fmt.Fprintln(out, "Pazaryeri:", a.cfg.Marketplace)

			var names []string
			for name := range integrations.All() {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				state := "kapalı"
				if a.cfg.IntegrationRaw(name) != nil {
					state = "config içinde"
				}
				fmt.Fprintf(out, "Entegrasyon %s: %s\n", name, state)
			}
			if v, ok, err := a.db.GetKV(cmd.Context(), lastShipKey(a.cfg.StoreID)); err == nil && ok {
				fmt.Fprintln(out, "Son kargo:", v)
			}
			return nil
		},
	}
}

// lastShipKey – klucz KV z dniem ostatniej wysyłki sklepu.
func lastShipKey(storeID uint) string {
	return fmt.Sprintf("last_ship:%d", storeID)
}
