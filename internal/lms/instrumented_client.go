package lms

import (
	"context"

	"github.com/courseloom/course_downloader/internal/telemetry"
)

// InstrumentedCatalogClient wraps CatalogClient with telemetry.
type InstrumentedCatalogClient struct {
	client    CatalogClient
	telemetry *telemetry.Telemetry
}

// NewInstrumentedCatalogClient creates a new instrumented catalog client.
func NewInstrumentedCatalogClient(client CatalogClient, tel *telemetry.Telemetry) *InstrumentedCatalogClient {
	return &InstrumentedCatalogClient{
		client:    client,
		telemetry: tel,
	}
}

// FetchCatalog retrieves the catalog with telemetry.
func (c *InstrumentedCatalogClient) FetchCatalog(ctx context.Context) ([]*Entry, error) {
	var result []*Entry

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, "lms", "fetch_catalog", func(ctx context.Context) error {
		result, err = c.client.FetchCatalog(ctx)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}
