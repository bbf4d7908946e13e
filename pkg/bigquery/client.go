package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// TableSpec describes a table the client owns. A missing table is created
// from Schema, day-partitioned on PartitionField when set.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  []TableSpec
}

// NewClient connects to the configured dataset and makes sure every table in
// specs exists. The dataset itself is provisioned outside the service.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, specs ...TableSpec) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	tables, err := normalizeSpecs(specs)
	if err != nil {
		return nil, err
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: bqClient, dataset: bqClient.Dataset(datasetID), tables: tables}

	created, err := c.ensureTables(ctx)
	if err != nil {
		_ = bqClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset":        datasetID,
			"tables":         len(tables),
			"created_tables": created,
		}), "bigquery client initialized")
	}
	return c, nil
}

func normalizeSpecs(specs []TableSpec) ([]TableSpec, error) {
	out := make([]TableSpec, 0, len(specs))
	for _, spec := range specs {
		spec.Name = strings.TrimSpace(spec.Name)
		if spec.Name == "" {
			return nil, errTableNameRequired
		}
		out = append(out, spec)
	}
	return out, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) ensureTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return nil, fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}

	var created []string
	for _, spec := range c.tables {
		_, err := c.dataset.Table(spec.Name).Metadata(ctx)
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("checking table %q: %w", spec.Name, err)
		}
		if len(spec.Schema) == 0 {
			return nil, fmt.Errorf("table %q does not exist", spec.Name)
		}
		if err := c.dataset.Table(spec.Name).Create(ctx, tableMetadata(spec)); err != nil && !isAlreadyExists(err) {
			return nil, fmt.Errorf("creating table %q: %w", spec.Name, err)
		}
		created = append(created, spec.Name)
	}
	return created, nil
}

func tableMetadata(spec TableSpec) *bigquery.TableMetadata {
	md := &bigquery.TableMetadata{Schema: spec.Schema}
	if spec.PartitionField != "" {
		md.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: spec.PartitionField,
		}
	}
	return md
}

// Ping checks that the dataset is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	_, err := c.dataset.Metadata(ctx)
	return err
}

// InsertRows streams rows into table. Rows are structs with bigquery tags or
// ValueSavers.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	return apiStatus(err) == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	return apiStatus(err) == http.StatusConflict
}

func apiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return 0
}
