package cmd

import (
	"github.com/spf13/cobra"

	"cmdwh/internal/harvest"
	"cmdwh/internal/pipeline"
	"cmdwh/internal/provision"
	"cmdwh/internal/ui"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run external, stage and harvest in order",
	Long: `Run the three stages against one connection. A missing dataset or
a failed report write stops the run; individual object failures do not
unless --strict is set.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	pipelineCmd.Flags().BoolVar(&verifyExternal, "verify", false, "sample each external table")
	pipelineCmd.Flags().BoolVar(&confirmStaging, "confirm", false, "ask before rebuilding the staging tables")
	pipelineCmd.Flags().BoolVar(&verifyCounts, "verify-counts", true, "compare row counts across the tiers of the first table")
	pipelineCmd.Flags().StringVarP(&harvestOutput, "output", "o", "", "report file (default output.metadata_file)")
	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
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

	path := outputFile()
	result := pipeline.New(
		pipeline.Provisioning(provision.NewExternalProvisioner(catalog, reg, externalOptions(cfg, verifyExternal))),
		pipeline.Provisioning(provision.NewStagingProvisioner(catalog, reg, stagingOptions(cfg, confirmStaging))),
		pipeline.Harvesting(harvest.NewHarvester(catalog), path),
	).Run(ctx)

	// RenderPipeline prints the fatal error of the stage that stopped the run.
	for _, s := range result.Stages {
		if s.Fatal != nil {
			continue
		}
		switch detail := s.Detail.(type) {
		case *provision.Report:
			if s.Name == pipeline.StageExternal {
				ui.RenderExternal(detail)
			} else {
				ui.RenderStaging(detail)
			}
		case *harvest.Report:
			ui.RenderHarvest(detail, path)
		}
	}
	ui.RenderPipeline(result)

	return exitErr(result)
}
