package provider

import (
	"context"
)

// ImageProvider is the interface of a product download service
type ImageProvider interface {
	// ReadProductMetadata fetches the catalog record of the product
	ReadProductMetadata(ctx context.Context, productID string) (ProductMetadata, error)

	// DownloadManifest fetches and parses the band manifest of the product,
	// keeping a copy in localDir
	DownloadManifest(ctx context.Context, productID, productName, localDir string, bands []string, resolution int) (Manifest, error)

	// DownloadBands streams the manifest-resolved band files into localDir
	DownloadBands(ctx context.Context, productID string, manifest Manifest, localDir string) ([]string, error)

	// Name of the provider
	Name() string
}
