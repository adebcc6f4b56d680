package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/reconcile"
	"github.com/spf13/cobra"
)

func newCancelsCmd(a *app) *cobra.Command {
	var (
		store uint
		days  int
	)
	cmd := &cobra.Command{
		Use:   "cancels",
		Short: "Pazaryerindeki iptaller ve arşivdeki karşılıkları",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.storeID(store)
			if err != nil {
				return err
			}
			if days < 0 {
				return fmt.Errorf("--days 0 veya daha büyük olmalı")
			}
			e, err := a.engine(false)
			if err != nil {
				return err
			}
			out, err := e.CancelReport(cmd.Context(), id, integrations.LastDays(time.Now(), days))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Sipariş No\tÜrün\tMüşteri\tDurum\tArşiv")
			toReturn := 0
			for _, co := range out {
				entry := "-"
				if co.EntryID != 0 {
					entry = fmt.Sprint(co.EntryID)
				}
				if co.Class == reconcile.AfterShipment {
					toReturn++
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", co.OrderNumber, co.ProductName, co.Customer, co.Class, entry)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d iptal, %d kargolanmış sipariş iade bekliyor\n", len(out), toReturn)
			return nil
		},
	}
	cmd.Flags().UintVar(&store, "store", 0, "mağaza ID")
	cmd.Flags().IntVar(&days, "days", 7, "pazaryerinde kaç gün geriye bakılacak")
	return cmd
}
