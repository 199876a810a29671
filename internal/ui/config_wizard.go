package ui

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"cmdwh/pkg/models"
)

// ConfigWizard walks through the settings written by 'cmdwh config init'.
type ConfigWizard struct {
	currentStep int
	totalSteps  int
}

func NewConfigWizard() *ConfigWizard {
	return &ConfigWizard{currentStep: 1, totalSteps: 3}
}

// Run edits a copy of base, which supplies every default. The Snowflake
// password is returned separately and never stored in the config.
func (w *ConfigWizard) Run(base models.Config) (*models.Config, string, error) {
	ShowHeader("cmdwh - Configuration Setup")
	cfg := base

	if err := w.warehouseStep(&cfg); err != nil {
		return nil, "", promptError(err)
	}

	var password string
	var err error
	if cfg.Warehouse.Backend == "snowflake" {
		password, err = w.snowflakeStep(&cfg)
	} else {
		err = w.bigQueryStep(&cfg)
	}
	if err != nil {
		return nil, "", promptError(err)
	}

	if err := w.storageStep(&cfg); err != nil {
		return nil, "", promptError(err)
	}

	fmt.Fprintln(Output)
	Box("Configuration Summary", strings.Join(SummaryLines(&cfg), "\n"))
	ok, err := Confirm("Save this configuration?", true)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", promptError(fmt.Errorf("configuration not saved"))
	}
	return &cfg, password, nil
}

func (w *ConfigWizard) warehouseStep(cfg *models.Config) error {
	w.showProgress("Warehouse")
	return survey.AskOne(&survey.Select{
		Message: "Warehouse backend:",
		Options: []string{"bigquery", "snowflake"},
		Default: cfg.Warehouse.Backend,
	}, &cfg.Warehouse.Backend)
}

func (w *ConfigWizard) bigQueryStep(cfg *models.Config) error {
	w.showProgress("BigQuery")
	questions := []*survey.Question{
		{
			Name:     "project",
			Prompt:   &survey.Input{Message: "Project:", Default: cfg.BigQuery.Project},
			Validate: survey.Required,
		},
		{
			Name:     "dataset",
			Prompt:   &survey.Input{Message: "Dataset:", Default: cfg.BigQuery.Dataset},
			Validate: survey.Required,
		},
		{
			Name:   "location",
			Prompt: &survey.Input{Message: "Location:", Default: cfg.BigQuery.Location, Help: "Used in the dataset creation hint"},
		},
	}
	answers := struct {
		Project  string
		Dataset  string
		Location string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}
	cfg.BigQuery.Project = answers.Project
	cfg.BigQuery.Dataset = answers.Dataset
	cfg.BigQuery.Location = answers.Location
	w.currentStep++
	return nil
}

func (w *ConfigWizard) snowflakeStep(cfg *models.Config) (string, error) {
	w.showProgress("Snowflake")
	sf := cfg.Snowflake
	questions := []*survey.Question{
		{Name: "account", Prompt: &survey.Input{Message: "Account:", Default: sf.Account, Help: "e.g. xy12345.us-east-1"}, Validate: survey.Required},
		{Name: "username", Prompt: &survey.Input{Message: "Username:", Default: sf.Username}, Validate: survey.Required},
		{Name: "password", Prompt: &survey.Password{Message: "Password:", Help: "Stored in the OS keyring, not in the config file"}},
		{Name: "warehouse", Prompt: &survey.Input{Message: "Warehouse:", Default: sf.Warehouse}, Validate: survey.Required},
		{Name: "role", Prompt: &survey.Input{Message: "Role:", Default: sf.Role}},
		{Name: "database", Prompt: &survey.Input{Message: "Database:", Default: sf.Database}, Validate: survey.Required},
		{Name: "schema", Prompt: &survey.Input{Message: "Schema:", Default: sf.Schema}, Validate: survey.Required},
		{Name: "stage", Prompt: &survey.Input{Message: "Stage:", Default: sf.Stage, Help: "Named stage over the data bucket, e.g. @cmgd_stage"}, Validate: survey.Required},
	}
	answers := struct {
		Account   string
		Username  string
		Password  string
		Warehouse string
		Role      string
		Database  string
		Schema    string
		Stage     string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return "", err
	}
	cfg.Snowflake.Account = answers.Account
	cfg.Snowflake.Username = answers.Username
	cfg.Snowflake.Warehouse = answers.Warehouse
	cfg.Snowflake.Role = answers.Role
	cfg.Snowflake.Database = answers.Database
	cfg.Snowflake.Schema = answers.Schema
	cfg.Snowflake.Stage = answers.Stage
	w.currentStep++
	return answers.Password, nil
}

func (w *ConfigWizard) storageStep(cfg *models.Config) error {
	w.showProgress("Storage")
	questions := []*survey.Question{
		{Name: "bucket", Prompt: &survey.Input{Message: "Bucket URI:", Default: cfg.Storage.Bucket}, Validate: survey.Required},
		{Name: "marker", Prompt: &survey.Input{Message: "Sample marker:", Default: cfg.Storage.SampleMarker, Help: "Directory name followed by the sample id in every path"}, Validate: survey.Required},
	}
	answers := struct {
		Bucket string
		Marker string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}
	cfg.Storage.Bucket = strings.TrimRight(answers.Bucket, "/")
	cfg.Storage.SampleMarker = answers.Marker
	w.currentStep++
	return nil
}

func (w *ConfigWizard) showProgress(step string) {
	fmt.Fprintf(Output, "\n%s [Step %d/%d] %s\n\n",
		ColorProgress("►"),
		w.currentStep,
		w.totalSteps,
		ColorBold(step),
	)
}

// SummaryLines describes the settings that matter for the selected backend.
func SummaryLines(cfg *models.Config) []string {
	lines := []string{"Backend:   " + cfg.Warehouse.Backend}
	if cfg.Warehouse.Backend == "snowflake" {
		sf := cfg.Snowflake
		lines = append(lines,
			"Account:   "+sf.Account,
			"Username:  "+sf.Username,
			"Warehouse: "+sf.Warehouse,
			"Role:      "+sf.Role,
			fmt.Sprintf("Schema:    %s.%s", sf.Database, sf.Schema),
			"Stage:     "+sf.Stage,
		)
	} else {
		bq := cfg.BigQuery
		lines = append(lines,
			fmt.Sprintf("Dataset:   %s.%s", bq.Project, bq.Dataset),
			"Location:  "+bq.Location,
		)
	}
	return append(lines,
		"Bucket:    "+cfg.Storage.Bucket,
		"Marker:    "+cfg.Storage.SampleMarker,
	)
}
