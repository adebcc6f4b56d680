package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/spf13/cobra"
)

func newArchiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Günlük kargo ve iptal arşivi",
	}

	var (
		store    uint
		from, to string
		typ      string
		show     bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "Tarih aralığındaki arşiv kayıtları",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.storeID(store)
			if err != nil {
				return err
			}
			t := archive.Type(typ)
			if t != "" && !t.Valid() {
				return fmt.Errorf("--type: %q (cargo|cancel)", typ)
			}
			for _, d := range []string{from, to} {
				if d == "" {
					continue
				}
				if _, err := time.Parse(archive.DateLayout, d); err != nil {
					return fmt.Errorf("tarih %q: YYYY-AA-GG bekleniyor", d)
				}
			}
			entries, err := a.db.ListArchiveEntries(cmd.Context(), id, from, to, t)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tGün\tTür\tSatır\tSipariş")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", e.ID, e.Date, e.Type, e.Data.Len(), len(archive.OrderNumbers(e.Data)))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if show {
				for _, e := range entries {
					fmt.Fprintf(out, "\n== %d %s %s ==\n", e.ID, e.Date, e.Type)
					printTable(out, e.Data)
				}
			}
			return nil
		},
	}
	list.Flags().UintVar(&store, "store", 0, "mağaza ID")
	list.Flags().StringVar(&from, "from", "", "başlangıç günü YYYY-AA-GG")
	list.Flags().StringVar(&to, "to", "", "bitiş günü YYYY-AA-GG")
	list.Flags().StringVar(&typ, "type", "", "cargo|cancel (boş = ikisi de)")
	list.Flags().BoolVar(&show, "show", false, "kayıtların içeriğini de göster")

	remove := &cobra.Command{
		Use:   "remove <entryID> <orderNo>",
		Short: "Siparişi arşiv kaydından sil (ör. kabul edilen iade)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := a.engine(false)
			if err != nil {
				return err
			}
			removed, deleted, err := e.ReturnOrder(cmd.Context(), entryID, args[1])
			if err != nil {
				return err
			}
			switch {
			case removed == 0:
				fmt.Fprintf(cmd.OutOrStdout(), "%s siparişi %d numaralı kayıtta yok\n", args[1], entryID)
			case deleted:
				fmt.Fprintf(cmd.OutOrStdout(), "%d satır silindi; %d numaralı kayıt boşaldı ve kaldırıldı\n", removed, entryID)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%d satır silindi (kayıt %d)\n", removed, entryID)
			}
			return nil
		},
	}

	cmd.AddCommand(list, remove)
	return cmd
}
