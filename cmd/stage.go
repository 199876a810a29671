package cmd

import (
	"github.com/spf13/cobra"

	"cmdwh/internal/pipeline"
	"cmdwh/internal/provision"
	"cmdwh/internal/ui"
	"cmdwh/pkg/models"
)

var (
	confirmStaging bool
	verifyCounts   bool
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Create the src_ views and rebuild the stg_ tables",
	Long: `Create or replace one src_ view per external table, adding the
sample_id parsed from each file path, then rebuild every stg_ table from
its view, clustered by sample_id.

Rebuilding scans all external data. Use --confirm to review the tables
before the scan starts.`,
	Args: cobra.NoArgs,
	RunE: runStage,
}

func init() {
	stageCmd.Flags().BoolVar(&confirmStaging, "confirm", false, "ask before rebuilding the staging tables")
	stageCmd.Flags().BoolVar(&verifyCounts, "verify-counts", true, "compare row counts across the tiers of the first table")
	rootCmd.AddCommand(stageCmd)
}

func stagingOptions(c *models.Config, confirm bool) provision.StagingOptions {
	opts := provision.StagingOptions{
		Marker:       c.Storage.SampleMarker,
		VerifyCounts: verifyCounts,
	}
	if confirm {
		opts.Confirm = ui.StagingConfirmer()
	}
	return opts
}

func runStage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	catalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	stage := pipeline.Provisioning(provision.NewStagingProvisioner(catalog, reg, stagingOptions(cfg, confirmStaging)))
	return runOne(ctx, stage, func(detail any) {
		if report, ok := detail.(*provision.Report); ok {
			ui.RenderStaging(report)
		}
	})
}
