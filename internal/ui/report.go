package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"cmdwh/internal/harvest"
	"cmdwh/internal/pipeline"
	"cmdwh/internal/provision"
	"cmdwh/internal/warehouse"
)

// RenderExternal prints the result of the external table stage.
func RenderExternal(r *provision.Report) {
	ShowHeader(fmt.Sprintf("External tables in %s", r.Namespace))
	if r.Fatal != nil {
		ShowError(r.Fatal)
		return
	}

	for _, o := range r.Tier(provision.TierExternal) {
		renderOutcome(r.Namespace, o)
		if samples := samplesFor(r, o.Object); len(samples) > 0 {
			for _, s := range samples {
				if s.Matched {
					fmt.Fprintf(Output, "      sample_id=%s  %s\n", ColorBold(s.SampleID), ColorDim(s.FileName))
				} else {
					fmt.Fprintf(Output, "      %s  %s\n", ColorWarning("no sample_id"), ColorDim(s.FileName))
				}
			}
		}
	}
	renderNotes(r)

	total := len(r.Tier(provision.TierExternal))
	fmt.Fprintln(Output)
	summary := fmt.Sprintf("Created %d/%d external tables in %s", r.Succeeded(provision.TierExternal), total, formatDuration(r.Duration()))
	if r.OK() {
		ShowSuccess(summary)
	} else {
		ShowWarning(summary)
	}
	renderExamples("Example: extract sample_id from the file path", r.Examples)
}

// RenderStaging prints the result of the source/staging stage.
func RenderStaging(r *provision.Report) {
	ShowHeader(fmt.Sprintf("Source views and staging tables in %s", r.Namespace))
	if r.Fatal != nil {
		ShowError(r.Fatal)
		return
	}

	views := r.Tier(provision.TierSource)
	PrintSection(fmt.Sprintf("Source views (%d/%d)", r.Succeeded(provision.TierSource), len(views)))
	for _, o := range views {
		renderOutcome(r.Namespace, o)
	}

	tables := r.Tier(provision.TierStaging)
	if len(tables) == 0 {
		fmt.Fprintln(Output)
		ShowWarning("Staging tables were not created")
		return
	}
	PrintSection(fmt.Sprintf("Staging tables (%d/%d)", r.Succeeded(provision.TierStaging), len(tables)))
	for _, o := range tables {
		renderOutcome(r.Namespace, o)
	}

	if len(r.Counts) > 0 {
		PrintSection("Row counts")
		for _, c := range r.Counts {
			if c.Err != nil {
				PrintKeyValue(c.Table, ColorError(c.Err.Error()))
				continue
			}
			PrintKeyValue(c.Table, formatCount(c.Rows))
		}
	}
	renderNotes(r)

	fmt.Fprintln(Output)
	if r.OK() {
		ShowSuccess(fmt.Sprintf("All tiers ready in %s", formatDuration(r.Duration())))
	} else {
		ShowWarning(fmt.Sprintf("%d object(s) failed", len(r.Failed())))
	}
	renderExamples("Example queries", r.Examples)
}

// RenderHarvest prints the report summary and the tables by category.
func RenderHarvest(r *harvest.Report, path string) {
	ShowHeader("Metadata Collection Complete!")
	PrintKeyValue("Output saved to", path)

	s := r.Summary
	PrintSection("Summary")
	PrintKeyValue("Total tables/views", fmt.Sprintf("%d", s.TotalTables))
	for _, k := range sortedKeys(s.ByType) {
		PrintKeyValue("  "+k, fmt.Sprintf("%d", s.ByType[k]))
	}
	for _, k := range sortedKeys(s.ByPrefix) {
		PrintKeyValue("  "+k, fmt.Sprintf("%d", s.ByPrefix[k]))
	}
	PrintKeyValue("Total rows", formatCount(s.TotalRows))
	PrintKeyValue("Total size", fmt.Sprintf("%.2f GB", s.TotalSizeGB))

	PrintSection("Tables by Category")
	table := tablewriter.NewWriter(Output)
	table.SetHeader([]string{"Prefix", "Name", "Type", "Rows", "Size (GB)"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})

	for _, prefix := range []string{"ext_", "src_", "stg_"} {
		for _, name := range r.Names() {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			t := r.Tables[name]
			if t.Failed() {
				table.Append([]string{prefix, name, color.RedString("ERROR"), "", ""})
				continue
			}
			rows, size := "", ""
			if t.NumRows != nil {
				rows = formatCount(*t.NumRows)
			}
			if t.SizeGB != nil {
				size = fmt.Sprintf("%.2f", *t.SizeGB)
			}
			table.Append([]string{prefix, name, typeLabel(t.TableType), rows, size})
		}
	}
	table.Render()
}

// RenderPipeline prints one line per stage.
func RenderPipeline(result pipeline.Result) {
	ShowHeader("Pipeline")
	table := tablewriter.NewWriter(Output)
	table.SetHeader([]string{"Stage", "Status", "Succeeded", "Duration"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, s := range result.Stages {
		status := color.GreenString("OK")
		switch {
		case s.Fatal != nil:
			status = color.RedString("FAILED")
		case len(s.Failures) > 0:
			status = color.YellowString("PARTIAL")
		}
		table.Append([]string{s.Name, status, fmt.Sprintf("%d/%d", s.Succeeded, s.Total), formatDuration(s.Duration)})
	}
	table.Render()

	if result.StoppedAt != "" {
		for _, s := range result.Stages {
			if s.Fatal != nil {
				ShowError(s.Fatal)
			}
		}
	}
}

func renderOutcome(ns warehouse.Namespace, o provision.Outcome) {
	name := ns.Qualified(o.Object)
	if !o.OK() {
		fmt.Fprintf(Output, "  %s %s\n", ColorError("✗"), name)
		fmt.Fprintf(Output, "      %s\n", ColorError(o.Err.Error()))
		return
	}

	detail := strings.ReplaceAll(string(o.Result), "_", " ")
	if o.Rows != nil {
		detail = fmt.Sprintf("%s rows, %.2f GB", formatCount(*o.Rows), o.SizeGB())
	}
	fmt.Fprintf(Output, "  %s %s %s %s\n", ColorSuccess("✓"), name, ColorDim("("+detail+")"), ColorDim(formatDuration(o.Duration)))
}

func renderNotes(r *provision.Report) {
	for _, n := range r.Notes {
		ShowWarning(n.Error())
	}
}

func renderExamples(title string, queries []string) {
	for i, q := range queries {
		fmt.Fprintln(Output)
		t := title
		if len(queries) > 1 {
			t = fmt.Sprintf("%s (%d)", title, i+1)
		}
		Box(t, q)
	}
}

func samplesFor(r *provision.Report, table string) []provision.Sample {
	var out []provision.Sample
	for _, s := range r.Samples {
		if s.Table == table {
			out = append(out, s)
		}
	}
	return out
}

func typeLabel(t string) string {
	switch warehouse.ObjectType(t) {
	case warehouse.TypeTable:
		return color.GreenString(t)
	case warehouse.TypeView:
		return color.CyanString(t)
	case warehouse.TypeExternalTable:
		return color.BlueString(t)
	}
	return t
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
