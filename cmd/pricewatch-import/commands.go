package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pricewatch/internal/core"
	"pricewatch/internal/resolver"
)

func recordCmd(a *app) *cobra.Command {
	var supplier string
	cmd := &cobra.Command{
		Use:   "record FILE...",
		Short: "Record invoice files in order",
		Long: `Record one or more invoice files. Files are processed strictly in the
order given, each one saved before the next is read. --supplier names the
supplier of a single file and is ignored for several.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads := make([]resolver.Upload, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				uploads = append(uploads, resolver.Upload{Filename: filepath.Base(path), Data: data})
			}

			recorded, err := a.svc.AnalyseBatch(cmd.Context(), a.account, uploads, supplier)
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, r := range recorded {
				inv := r.Invoice
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					inv.Date, inv.Subject, core.FormatAmount(inv.Total, inv.Currency), inv.Change, inv.Source, inv.Filename)
			}
			if ferr := w.Flush(); err == nil {
				err = ferr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&supplier, "supplier", "", "supplier name for a single file")
	return cmd
}

func leaderboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "List suppliers by total spend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			suppliers, err := a.svc.Leaderboard(cmd.Context(), a.account)
			if err != nil {
				return err
			}
			if len(suppliers) == 0 {
				fmt.Fprintln(a.out, "No invoices recorded yet.")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSUPPLIER\tSPEND\tINVOICES\tLAST\tCHANGE")
			for i, s := range suppliers {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n", i+1, s.DisplayName,
					core.FormatAmount(s.TotalSpend, s.Currency), s.InvoiceCount,
					core.FormatAmount(s.LastInvoiceTotal, s.Currency), s.LastChange)
			}
			return w.Flush()
		},
	}
}

func summaryCmd(a *app) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show spend, VAT and the biggest price increase for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sum, err := a.svc.Summary(cmd.Context(), a.account, month)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Month\t%s\n", sum.Month)
			fmt.Fprintf(w, "Spend\t%s\n", core.FormatAmount(sum.Spend, sum.Currency))
			fmt.Fprintf(w, "Previous (%s)\t%s\n", sum.PreviousMonth, core.FormatAmount(sum.PreviousSpend, sum.Currency))
			if sum.DeltaPercent != nil {
				fmt.Fprintf(w, "Change\t%+.1f%%\n", *sum.DeltaPercent)
			} else {
				fmt.Fprintln(w, "Change\tn/a")
			}
			fmt.Fprintf(w, "VAT (%.0f%%)\t%s\n", sum.VATRate*100, core.FormatAmount(sum.VAT, sum.Currency))
			fmt.Fprintf(w, "Invoices\t%d\n", sum.InvoiceCount)
			if sum.TopSpender != nil {
				fmt.Fprintf(w, "Top spender\t%s (%s)\n", sum.TopSpender.DisplayName,
					core.FormatAmount(sum.TopSpender.TotalSpend, sum.TopSpender.Currency))
			}
			if al := sum.Alert; al != nil {
				what := al.Subject
				if al.Item != "" {
					what += ": " + al.Item
				}
				fmt.Fprintf(w, "Price alert\t%s %s -> %s (%+.1f%%)\n", what,
					core.FormatAmount(al.OldPrice, al.Currency), core.FormatAmount(al.NewPrice, al.Currency), al.Percent)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current month)")
	return cmd
}

func clearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every invoice and supplier for the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.svc.Clear(cmd.Context(), a.account); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cleared ledger for %s.\n", a.account)
			return nil
		},
	}
}
