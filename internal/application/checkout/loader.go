package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/salesdesk/internal/domain/catalog"
	"golang.org/x/sync/errgroup"
)

// LoadSnapshot fetches products and clients concurrently and builds a
// snapshot. Any failure is reported as ErrCatalogUnavailable wrapping the cause.
func LoadSnapshot(ctx context.Context, svc CatalogService, loadedAt time.Time) (*catalog.Snapshot, error) {
	var (
		products []catalog.Product
		clients  []catalog.Client
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = svc.ListProducts(gctx)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		clients, err = svc.ListClients(gctx)
		if err != nil {
			return fmt.Errorf("list clients: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	snapshot, err := catalog.NewSnapshot(products, clients, loadedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return snapshot, nil
}
