package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhubert/turnbench-core/cli"
	"github.com/zhubert/turnbench-core/logger"
	"github.com/zhubert/turnbench-core/paths"
)

func (a *app) setupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setups",
		Short: "Inspect the seeded game setups",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List seeded setups",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.service(cmd.Context())
				if err != nil {
					return err
				}
				setups, err := svc.ListSetups(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDIFFICULTY\tVERIFIERS")
				for _, s := range setups {
					fmt.Fprintf(w, "%s\t%s\t%d\n", s.ID, s.Difficulty, len(s.Classic))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Write catalog setups to the store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.service(cmd.Context())
				if err != nil {
					return err
				}
				if err := svc.SeedSetups(cmd.Context()); err != nil {
					return err
				}
				setups, err := svc.ListSetups(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d setups seeded\n", len(setups))
				return nil
			},
		},
	)
	return cmd
}

func (a *app) gamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List registered games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range svc.Games() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n  %s\n", g.Name, g.DisplayName, g.Description)
			}
			return nil
		},
	}
}

func (a *app) serveMetricsCmd() *cobra.Command {
	var (
		addr   string
		effort string
	)
	cmd := &cobra.Command{
		Use:   "serve-metrics [session-id...]",
		Short: "Serve Prometheus metrics, playing the given sessions to the end meanwhile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			if addr == "" {
				return errors.New("no metrics address: set metrics_addr or --addr")
			}
			if len(args) > 0 {
				if err := a.preflight(); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}

			srvCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			errCh := make(chan error, 1)
			go func() {
				errCh <- a.recorder.Serve(srvCtx, addr, a.log)
			}()

			for _, id := range args {
				rec, err := svc.Run(ctx, id, a.effort(effort), 0)
				if err != nil {
					a.log.Error("session run failed", "sessionID", id, "error", err)
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
					continue
				}
				if rec != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ", id)
					printRecord(cmd.OutOrStdout(), rec)
				}
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default metrics_addr)")
	cmd.Flags().StringVar(&effort, "effort", "", "reasoning effort (low, medium, high)")
	return cmd
}

func (a *app) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured environment can play sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := cli.CheckAll(cli.DefaultPrerequisites(a.cfg))
			fmt.Fprint(cmd.OutOrStdout(), cli.FormatCheckResults(results))
			for _, r := range results {
				if r.Prerequisite.Required && !r.OK {
					return errors.New("required checks failed")
				}
			}
			return nil
		},
	}
}

func (a *app) pathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the resolved file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := paths.LogsDir()
			if err != nil {
				return err
			}
			catalogDir := a.cfg.CatalogDir
			if catalogDir == "" {
				if catalogDir, err = paths.CatalogDir(); err != nil {
					return err
				}
				catalogDir += " (unused)"
			}
			layout := "xdg"
			if paths.IsHomeLayout() {
				layout = "home"
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "layout\t%s\n", layout)
			fmt.Fprintf(w, "config\t%s\n", a.cfg.FilePath())
			fmt.Fprintf(w, "catalog\t%s\n", catalogDir)
			fmt.Fprintf(w, "store\t%s %s\n", a.cfg.Store.Driver, a.cfg.Store.Path)
			fmt.Fprintf(w, "logs\t%s\n", logs)
			return w.Flush()
		},
	}
}

func (a *app) logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Manage log files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the log file and exported transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := logger.ClearLogs()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d files\n", n)
			return nil
		},
	})
	return cmd
}
