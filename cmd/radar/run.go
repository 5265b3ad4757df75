package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/store"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var save bool
	var showLog bool

	cmd := &cobra.Command{
		Use:   "run <keyword>",
		Short: "Execute one collection run and print the shortlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.Join(args, " ")
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			eng, err := buildEngine(cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			result, err := eng.Run(ctx, keyword)
			if result == nil {
				return err
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "run ended early: %v\n", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "#\tSCORE\tPLATFORM\tTITLE\tURL\n")
			for i, item := range result.Shortlist {
				fmt.Fprintf(w, "%d\t%.2f\t%s\t%s\t%s\n",
					i+1, item.ViralScore, item.Item.Platform, item.Item.Title, item.Item.URL)
			}
			w.Flush()

			if len(result.Entities) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nDiscovered creators:")
				for _, ent := range result.Entities {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s, %s confidence)\n",
						ent.Name, ent.Platform, ent.Confidence)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d items in %d actions, stop: %s\n",
				result.ItemsCollected, result.ActionsUsed, result.Reason)
			if result.LowConfidence {
				fmt.Fprintln(cmd.OutOrStdout(), "warning: run finished with low confidence (planner output was unusable)")
			}
			if showLog {
				fmt.Fprintln(cmd.OutOrStdout())
				for _, line := range result.Log {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}

			if save {
				st, serr := store.New(context.Background(), cfg.Storage)
				if serr != nil {
					return fmt.Errorf("persist run: %w", serr)
				}
				defer st.Close()
				if serr := st.SaveRun(context.Background(), result); serr != nil {
					return fmt.Errorf("persist run: %w", serr)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved run %s\n", result.RunID)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().BoolVar(&save, "save", false, "persist the run result to storage")
	cmd.Flags().BoolVar(&showLog, "log", false, "print the run log")
	return cmd
}
