package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openlegis/govharvest/pkg/congress"
	"github.com/openlegis/govharvest/pkg/ingest"
)

var (
	billsCongress   int
	billsRestart    bool
	billsPriority   int
	billsAmendments bool
	billsMembers    bool
)

var billsCmd = &cobra.Command{
	Use:   "bills",
	Short: "Harvest Congress.gov bill listings",
	Long: `Harvest every bill of a congress from api.congress.gov, skipping
bills whose listing entry is unchanged since the previous run. An
interrupted run resumes from its last checkpointed page.`,
	RunE: runBills,
}

func init() {
	billsCmd.Flags().IntVar(&billsCongress, "congress", 118, "Congress number to harvest")
	billsCmd.Flags().BoolVar(&billsRestart, "restart", false, "Ignore the saved checkpoint and walk from the start")
	billsCmd.Flags().IntVar(&billsPriority, "priority", 5, "Task priority in the worker pool")
	billsCmd.Flags().BoolVar(&billsAmendments, "amendments", false, "Also harvest amendments of the congress")
	billsCmd.Flags().BoolVar(&billsMembers, "members", false, "Also harvest the member directory")
	rootCmd.AddCommand(billsCmd)
}

func runBills(cmd *cobra.Command, _ []string) error {
	h, err := newHarness()
	if err != nil {
		return err
	}
	defer h.Close()

	c, err := h.congressClient()
	if err != nil {
		return err
	}
	src, err := congress.NewSource(c)
	if err != nil {
		return err
	}

	jobs := []ingest.Job{src.BillsJob(billsCongress, billsPriority)}
	if billsAmendments {
		jobs = append(jobs, src.AmendmentsJob(billsCongress, billsPriority-1))
	}
	if billsMembers {
		jobs = append(jobs, src.MembersJob(billsPriority-2))
	}
	for i := range jobs {
		jobs[i].Restart = billsRestart
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summaries, runErr := h.coord.IngestAll(ctx, jobs)
	printSummaries(summaries)
	return runErr
}

func printSummaries(summaries []ingest.Summary) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, sum := range summaries {
		if sum.SourceKey == "" {
			continue
		}
		if err := enc.Encode(sum); err != nil {
			fmt.Fprintf(os.Stderr, "encode summary: %v\n", err)
		}
	}
}
