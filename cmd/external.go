package cmd

import (
	"github.com/spf13/cobra"

	"cmdwh/internal/pipeline"
	"cmdwh/internal/provision"
	"cmdwh/internal/ui"
	"cmdwh/pkg/models"
)

var verifyExternal bool

var externalCmd = &cobra.Command{
	Use:   "external",
	Short: "Create the ext_ tables over the raw TSV files",
	Long: `Create one external table per registry entry, reading every
gzip TSV file that matches the entry's path in the bucket.

Existing tables are left untouched, so the command is safe to rerun.`,
	Args: cobra.NoArgs,
	RunE: runExternal,
}

func init() {
	externalCmd.Flags().BoolVar(&verifyExternal, "verify", false, "sample each table and check sample_id extraction")
	rootCmd.AddCommand(externalCmd)
}

func externalOptions(c *models.Config, verify bool) provision.ExternalOptions {
	return provision.ExternalOptions{
		Bucket:   c.Storage.Bucket,
		Marker:   c.Storage.SampleMarker,
		Location: location(c),
		Verify:   verify,
	}
}

func runExternal(cmd *cobra.Command, args []string) error {
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

	stage := pipeline.Provisioning(provision.NewExternalProvisioner(catalog, reg, externalOptions(cfg, verifyExternal)))
	return runOne(ctx, stage, func(detail any) {
		if report, ok := detail.(*provision.Report); ok {
			ui.RenderExternal(report)
		}
	})
}
