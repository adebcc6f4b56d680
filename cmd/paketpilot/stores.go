package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	conf "github.com/Sivellexfc/paket-pilot/internal/config"
	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/spf13/cobra"
)

func newStoresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "Mağazalar ve API bilgileri",
	}

	add := &cobra.Command{
		Use:   "add <ad>",
		Short: "Mağaza ekle",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.db.AddStore(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mağaza eklendi %d: %s\n", s.ID, s.Name)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Mağaza listesi",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := a.db.ListStores(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tAd\tSatıcı ID\tAPI\t")
			for _, s := range stores {
				api := "yok"
				if (integrations.Credentials{SellerID: s.SellerID, APIKey: s.APIKey, APISecret: s.APISecret}).Valid() {
					api = "ok"
				}
				selected := ""
				if s.ID == a.cfg.StoreID {
					selected = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.SellerID, api, selected)
			}
			return tw.Flush()
		},
	}

	var cred integrations.Credentials
	creds := &cobra.Command{
		Use:   "creds <id>",
		Short: "Mağazanın API bilgilerini kaydet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.db.UpdateStoreIntegration(cmd.Context(), id, cred); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API bilgileri kaydedildi")
			return nil
		},
	}
	creds.Flags().StringVar(&cred.SellerID, "seller", "", "Seller ID")
	creds.Flags().StringVar(&cred.APIKey, "key", "", "API key")
	creds.Flags().StringVar(&cred.APISecret, "secret", "", "API secret")
	_ = creds.MarkFlagRequired("seller")
	_ = creds.MarkFlagRequired("key")
	_ = creds.MarkFlagRequired("secret")

	use := &cobra.Command{
		Use:   "use <id>",
		Short: "Config içinde varsayılan mağazayı seç",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := a.db.GetStore(cmd.Context(), id)
			if err != nil {
				return err
			}
			a.cfg.StoreID = s.ID
			if err := conf.Save(a.cfgPath, a.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Varsayılan mağaza: %s\n", s.Name)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Mağazayı arşiv ve geçmişiyle birlikte sil",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.db.DeleteStore(cmd.Context(), id)
		},
	}

	cmd.AddCommand(add, list, creds, use, remove)
	return cmd
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("geçersiz ID %q", s)
	}
	return uint(n), nil
}
