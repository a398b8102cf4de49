package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/openlegis/govharvest/pkg/ledger"
	"github.com/openlegis/govharvest/pkg/pagination"
)

var statsSource string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger totals and resume state",
	Long: `Print how many resources the ledger tracks and whether an
interrupted walk would resume. With --source the totals are scoped to one
source key, e.g. congress:bill:118.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsSource, "source", "", "Scope to one source key (empty for all sources)")
	rootCmd.AddCommand(statsCmd)
}

type statsReport struct {
	Ledger     ledger.Stats       `json:"ledger"`
	Resumable  bool               `json:"resumable"`
	NextCursor *pagination.Cursor `json:"next_cursor,omitempty"`
}

func runStats(cmd *cobra.Command, _ []string) error {
	h, err := newHarness()
	if err != nil {
		return err
	}
	defer h.Close()

	ctx := cmd.Context()

	report := statsReport{}
	report.Ledger, err = h.coord.Stats(ctx, statsSource)
	if err != nil {
		return err
	}

	if statsSource != "" {
		cur, resumable, err := h.coord.Resume(ctx, statsSource)
		if err != nil {
			return err
		}
		report.Resumable = resumable
		if resumable {
			report.NextCursor = &cur
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
