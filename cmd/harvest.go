package cmd

import (
	"github.com/spf13/cobra"

	"cmdwh/internal/harvest"
	"cmdwh/internal/pipeline"
	"cmdwh/internal/ui"
)

var harvestOutput string

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Write a JSON metadata report of the dataset",
	Long: `Describe every table and view in the dataset, with schema, row
counts, sizes, clustering, view definitions and external source settings,
and write the result as indented JSON.

Objects that cannot be described are recorded with their error instead.`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().StringVarP(&harvestOutput, "output", "o", "", "report file (default output.metadata_file)")
	rootCmd.AddCommand(harvestCmd)
}

func outputFile() string {
	if harvestOutput != "" {
		return harvestOutput
	}
	if cfg.Output.MetadataFile != "" {
		return cfg.Output.MetadataFile
	}
	return harvest.DefaultOutputFile
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	catalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	path := outputFile()
	stage := pipeline.Harvesting(harvest.NewHarvester(catalog), path)
	return runOne(ctx, stage, func(detail any) {
		if report, ok := detail.(*harvest.Report); ok {
			ui.RenderHarvest(report, path)
		}
	})
}
