package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/integrations/importer"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/spf13/cobra"
)

// importCharset – kodowanie CSV z sekcji importer configu.
func importCharset(a *app) string {
	cfg := importer.Defaults()
	if err := a.cfg.UnmarshalIntegration(importer.Name, &cfg); err != nil {
		return importer.DefaultCharset
	}
	if cfg.Charset == "" {
		return importer.DefaultCharset
	}
	return cfg.Charset
}

func newImportCmd(a *app) *cobra.Command {
	var (
		store   uint
		side    string
		archTyp string
		date    string
		charset string
	)
	cmd := &cobra.Command{
		Use:   "import <dosya>",
		Short: "xlsx/csv dosyası oku: özet, içe aktarma geçmişine kayıt, isteğe bağlı arşiv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !importer.Supported(path) {
				return fmt.Errorf("%w: %s", importer.ErrUnsupported, filepath.Base(path))
			}
			if charset == "" {
				charset = importCharset(a)
			}
			t, err := importer.ReadFile(path, charset)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rep := importer.Inspect(t)
			fmt.Fprintf(out, "%s: %d satır, %d barkod, %d paket, %s adet\n",
				filepath.Base(path), rep.Rows, rep.Barcodes, rep.Packages, table.CellString(rep.Quantity))
			if rep.EmptyBarcode > 0 {
				fmt.Fprintf(out, "Barkodsuz: %d satır\n", rep.EmptyBarcode)
			}
			if len(rep.Missing) > 0 {
				fmt.Fprintf(out, "Eksik sütunlar: %s\n", strings.Join(rep.Missing, ", "))
			}

			id, err := a.storeID(store)
			if err != nil {
				// bez sklepu tylko podgląd
				return nil
			}

			s := integrations.Side(side)
			if s != integrations.SideSource && s != integrations.SideTarget {
				return fmt.Errorf("--side: %q (source|target)", side)
			}
			sum, err := importer.FileSHA256(path)
			if err != nil {
				return err
			}
			seen, err := a.db.HasImportSHA(cmd.Context(), id, sum)
			if err != nil {
				return err
			}
			if seen {
				fmt.Fprintln(out, "Dosya daha önce içe aktarılmış, geçmişe yazılmadı")
			} else {
				batch, err := a.db.SaveImportBatch(cmd.Context(), integrations.ImportRecord{
					StoreID: id, Filename: filepath.Base(path), Side: s, SHA256: sum, Data: t,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "İçe aktarma kaydedildi: %d\n", batch)
			}

			if archTyp == "" {
				return nil
			}
			typ := archive.Type(archTyp)
			if !typ.Valid() {
				return fmt.Errorf("--archive: %q (cargo|cancel)", archTyp)
			}
			if date == "" {
				date = archive.Day(time.Now())
			}
			e, err := a.engine(false)
			if err != nil {
				return err
			}
			entry, st, err := e.ArchiveTable(cmd.Context(), id, typ, date, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Arşiv %s %s (kayıt %d): +%d, atlanan %d\n", typ, date, entry.ID, st.Added, st.Skipped)
			return nil
		},
	}
	cmd.Flags().UintVar(&store, "store", 0, "mağaza ID")
	cmd.Flags().StringVar(&side, "side", string(integrations.SideSource), "source|target")
	cmd.Flags().StringVar(&archTyp, "archive", "", "günün arşivine ekle: cargo|cancel")
	cmd.Flags().StringVar(&date, "date", "", "arşiv günü YYYY-AA-GG (varsayılan bugün)")
	cmd.Flags().StringVar(&charset, "charset", "", "CSV karakter kodlaması (varsayılan config)")
	return cmd
}
