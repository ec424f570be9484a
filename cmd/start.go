package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var startLead string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Draft an outreach email for a single lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAutomation(ctx, "automation")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orchestrator.StartOne(ctx, startLead); err != nil {
			return eris.Wrap(err, "start lead")
		}
		env.Orchestrator.Wait()

		lead, err := env.Store.GetLead(cmd.Context(), startLead)
		if err != nil {
			return eris.Wrap(err, "reload lead")
		}
		printLead(os.Stdout, lead)
		if lead.ErrorMessage != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", lead.ErrorMessage)
		}
		return nil
	},
}

func init() {
	startCmd.Flags().StringVar(&startLead, "lead", "", "lead id")
	_ = startCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(startCmd)
}
