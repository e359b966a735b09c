package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"motime/domain"
)

// EnsureTables creates the named tables, tolerating ones that already exist.
// Empty names are skipped so callers can pass optional tables straight from
// the environment.
func EnsureTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		c := svc.NewClient(name)
		_, err := c.CreateTable(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return err
			}
		}
	}
	return nil
}

// SeedQuotes loads the shared quote catalog, used once at provisioning time.
// Rows get fresh identifiers, so reseeding appends rather than replaces.
func SeedQuotes(ctx context.Context, connStr, quotesTable string, quotes []domain.Quote) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	c := svc.NewClient(quotesTable)
	for _, q := range quotes {
		ent := quoteEntity{
			Entity: aztables.Entity{PartitionKey: quoteCatalogPartition, RowKey: uuid.NewString()},
			Text:   q.Text,
			Author: q.Author,
		}
		payload, err := sonic.Marshal(ent)
		if err != nil {
			return err
		}
		if _, err := c.UpsertEntity(ctx, payload, nil); err != nil {
			return err
		}
	}
	return nil
}
