package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show batch progress or a lead's current state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		batchID, _ := cmd.Flags().GetString("batch")
		leadID, _ := cmd.Flags().GetString("lead")
		if (batchID == "") == (leadID == "") {
			return eris.New("exactly one of --batch or --lead is required")
		}

		env, err := initAutomation(ctx, "automation")
		if err != nil {
			return err
		}
		defer env.Close()

		if batchID != "" {
			p, err := env.Orchestrator.GetProgress(ctx, batchID)
			if err != nil {
				return eris.Wrap(err, "status")
			}
			printProgress(os.Stdout, p)
			return nil
		}

		lead, err := env.Store.GetLead(ctx, leadID)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		printLead(os.Stdout, lead)
		return nil
	},
}

func printLead(out io.Writer, l *model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", l.ID)
	fmt.Fprintf(w, "USER\t%s\n", l.UserID)
	fmt.Fprintf(w, "WEBSITE\t%s\n", l.Website)
	fmt.Fprintf(w, "STATUS\t%s\n", l.Status)
	if l.Subject != "" {
		fmt.Fprintf(w, "SUBJECT\t%s\n", l.Subject)
	}
	if l.ErrorMessage != "" {
		fmt.Fprintf(w, "ERROR\t%s\n", l.ErrorMessage)
	}
	_ = w.Flush()
	if l.Body != "" {
		fmt.Fprintf(out, "\n%s\n", l.Body)
	}
}

func init() {
	statusCmd.Flags().String("batch", "", "batch id")
	statusCmd.Flags().String("lead", "", "lead id")
	rootCmd.AddCommand(statusCmd)
}
