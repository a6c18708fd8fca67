// Package blob lists CSV exports parked in blob storage, for the HTTP
// listing endpoint.
package blob

import (
	"context"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/config"
	"github.com/karhuops/bridgerc/pkg/fault"
)

// 🔍 Lister names the .csv blobs directly under a directory
type Lister interface {
	ListCSV(ctx context.Context, directory string) ([]string, error)
}

// 📦 AzureLister lists one Azure Blob Storage container
type AzureLister struct {
	client    *azblob.Client
	container string
}

var _ Lister = (*AzureLister)(nil)

// NewAzureLister builds a lister from a connection string.
func NewAzureLister(cfg config.BlobConfig) (*AzureLister, error) {
	if cfg.ConnectionString == "" {
		return nil, errors.Errorf("%w: blob.connection_string is required", fault.ErrConfiguration)
	}
	if cfg.Container == "" {
		return nil, errors.Errorf("%w: blob.container is required", fault.ErrConfiguration)
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, errors.Errorf("%w: building blob client: %v", fault.ErrConfiguration, err)
	}
	return &AzureLister{client: client, container: cfg.Container}, nil
}

// ListCSV implements Lister. Blobs under subdirectories of the prefix are
// excluded; listing "incoming/" must not surface "incoming/old/a.csv".
func (l *AzureLister) ListCSV(ctx context.Context, directory string) ([]string, error) {
	prefix := NormalizeDirectory(directory)

	names := []string{}
	pager := l.client.NewListBlobsFlatPager(l.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Errorf("%w: listing container %s: %v", fault.ErrConnection, l.container, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if isDirectCSV(*item.Name, prefix) {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

// NormalizeDirectory gives a directory the trailing slash blob prefixes
// expect. Empty means the container root and stays empty.
func NormalizeDirectory(directory string) string {
	directory = strings.TrimSpace(directory)
	if directory == "" {
		return ""
	}
	return strings.TrimSuffix(directory, "/") + "/"
}

// isDirectCSV accepts .csv blobs that are immediate children of the
// prefix.
func isDirectCSV(name, prefix string) bool {
	rest := strings.TrimPrefix(name, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return false
	}
	return strings.HasSuffix(rest, ".csv")
}
