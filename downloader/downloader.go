package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/earthpulse/imagery-ingester/interface/provider"
	"github.com/earthpulse/imagery-ingester/service"
	"github.com/earthpulse/imagery-ingester/service/log"
)

// ErrInteraction reports a failed interaction with the imagery provider
type ErrInteraction struct {
	Product string
	Reason  string
}

func (e ErrInteraction) Error() string {
	return fmt.Sprintf("provider interaction failed for %s: %s", e.Product, e.Reason)
}

// Result of a product download: the working directory holding the manifest
// and band files, the catalog metadata and the parsed manifest.
type Result struct {
	// Dir is set as soon as the working directory exists, even when an error
	// is returned. The caller owns its removal.
	Dir      string
	Metadata provider.ProductMetadata
	Manifest provider.Manifest
	Files    []string
}

// ProcessProduct downloads a product into a fresh working directory under
// workdir: catalog metadata lookup, band manifest, then every resolved band
// file. A download that yields fewer than two local files is a fatal
// interaction failure.
func ProcessProduct(ctx context.Context, imageProvider provider.ImageProvider, productID string, bands []string, resolution int, workdir string) (Result, error) {
	result := Result{Dir: filepath.Join(workdir, uuid.New().String())}
	if err := os.MkdirAll(result.Dir, 0766); err != nil {
		return result, service.MakeTemporary(fmt.Errorf("make directory %s: %w", result.Dir, err))
	}

	var err error
	if result.Metadata, err = imageProvider.ReadProductMetadata(ctx, productID); err != nil {
		return result, fmt.Errorf("ProcessProduct.%w", err)
	}

	log.Logger(ctx).Sugar().Infof("downloading %s", result.Metadata.Name)
	if result.Manifest, err = imageProvider.DownloadManifest(ctx, productID, result.Metadata.Name, result.Dir, bands, resolution); err != nil {
		return result, fmt.Errorf("ProcessProduct.%w", err)
	}
	if result.Files, err = imageProvider.DownloadBands(ctx, productID, result.Manifest, result.Dir); err != nil {
		return result, fmt.Errorf("ProcessProduct.%w", err)
	}

	entries, err := os.ReadDir(result.Dir)
	if err != nil {
		return result, fmt.Errorf("ProcessProduct.ReadDir: %w", err)
	}
	if len(entries) < 2 {
		return result, service.MakeFatal(ErrInteraction{
			Product: result.Metadata.Name,
			Reason:  fmt.Sprintf("%d file(s) downloaded with %s", len(entries), imageProvider.Name()),
		})
	}
	return result, nil
}
