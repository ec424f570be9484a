package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach/internal/automation"
	"github.com/sells-group/outreach/internal/model"
)

var (
	batchUser string
	batchWait bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Draft outreach emails for every pending lead of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAutomation(ctx, "automation")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.StartBatch(ctx, batchUser)
		if err != nil {
			return eris.Wrap(err, "start batch")
		}
		printBatchResult(os.Stdout, res)

		if res.Accepted == 0 || !batchWait {
			return nil
		}

		zap.L().Info("waiting for batch to finish", zap.String("batch_id", res.BatchID))
		env.Orchestrator.Wait()

		if env.Progress == nil {
			return nil
		}
		p, err := env.Orchestrator.GetProgress(cmd.Context(), res.BatchID)
		if err != nil {
			return eris.Wrap(err, "read batch progress")
		}
		printProgress(os.Stdout, p)
		return nil
	},
}

func printBatchResult(w io.Writer, res *automation.BatchResult) {
	if res.BatchID == "" {
		fmt.Fprintln(w, res.Message)
		return
	}
	fmt.Fprintf(w, "%s (batch %s)\n", res.Message, res.BatchID)
}

func printProgress(w io.Writer, p *model.BatchProgress) {
	state := "running"
	if p.Done {
		state = "done"
	}
	fmt.Fprintf(w, "batch %s: %s, %d/%d processed, %d succeeded, %d failed\n",
		p.BatchID, state, p.Processed, p.Total, p.Succeeded, p.Failed)
}

func init() {
	batchCmd.Flags().StringVar(&batchUser, "user", "", "owner of the pending leads")
	batchCmd.Flags().BoolVar(&batchWait, "wait", true, "block until every accepted lead settles; exiting early leaves leads processing")
	_ = batchCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(batchCmd)
}
