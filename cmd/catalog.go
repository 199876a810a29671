package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"cmdwh/internal/config"
	"cmdwh/internal/credentials"
	"cmdwh/internal/registry"
	"cmdwh/internal/snowflake"
	"cmdwh/internal/warehouse"
	"cmdwh/internal/warehouse/bigquery"
	"cmdwh/pkg/models"
)

const metadataTimeout = 30 * time.Second

// credentialStore returns the store used for the Snowflake password.
func credentialStore() (credentials.Store, error) {
	return credentials.DefaultStore(filepath.Join(config.GetConfigPath(), "credentials"))
}

// openCatalog connects to the configured backend.
func openCatalog(ctx context.Context, c *models.Config) (warehouse.Catalog, error) {
	logger := zerolog.Ctx(ctx)

	if c.Warehouse.Backend == "snowflake" {
		store, err := credentialStore()
		if err != nil {
			return nil, err
		}
		password, source, err := credentials.NewResolver(store).Password(c.Snowflake.Username, c.Snowflake.Password)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("source", string(source)).Msg("Snowflake password resolved")

		sfConfig := snowflake.Config{
			Account:      c.Snowflake.Account,
			Username:     c.Snowflake.Username,
			Password:     password,
			Database:     c.Snowflake.Database,
			Schema:       c.Snowflake.Schema,
			Warehouse:    c.Snowflake.Warehouse,
			Role:         c.Snowflake.Role,
			Stage:        c.Snowflake.Stage,
			StageURL:     c.Snowflake.StageURL,
			Timeout:      metadataTimeout,
			QueryTimeout: c.Warehouse.QueryTimeout,
		}
		if err := snowflake.ValidateConfig(sfConfig); err != nil {
			return nil, err
		}
		service := snowflake.NewService(sfConfig)
		if err := service.Connect(ctx); err != nil {
			return nil, err
		}
		logger.Debug().Str("account", c.Snowflake.Account).Msg("Connected to Snowflake")
		return service, nil
	}

	catalog, err := bigquery.NewCatalog(ctx, bigquery.Config{
		Project:         c.BigQuery.Project,
		Dataset:         c.BigQuery.Dataset,
		Location:        c.BigQuery.Location,
		CredentialsFile: c.BigQuery.CredentialsFile,
		QueryTimeout:    c.Warehouse.QueryTimeout,
	})
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// location is the dataset location shown in remediation hints.
func location(c *models.Config) string {
	if c.Warehouse.Backend == "snowflake" {
		return ""
	}
	return c.BigQuery.Location
}

func loadRegistry(c *models.Config) (*registry.Registry, error) {
	return registry.Load(c.Registry.File)
}
