package processor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"

	"github.com/earthpulse/imagery-ingester/service"
	"github.com/earthpulse/imagery-ingester/service/log"
)

// Options of the raster pipeline
type Options struct {
	// To8Bit normalizes reflectance values to 8 bits at the stack stage
	To8Bit bool
	// NoData value propagated to the stacked bands (negative: none)
	NoData int
	// ClipAOI crops the raster to this polygon (nil: no clip)
	ClipAOI geom.Geometry
	// TargetCRS reprojects the raster (empty: keep the native CRS)
	TargetCRS string
}

// TransformProduct runs the raster pipeline on the downloaded band files:
// stack, optional clip, optional reprojection, then commit of the final
// raster to <cacheDir>/<productUUID>.tif. Intermediate rasters live in
// workdir. It returns the committed path.
func TransformProduct(ctx context.Context, bandFiles []string, productUUID, workdir, cacheDir string, opts Options) (string, error) {
	current := filepath.Join(workdir, "stacked.tif")
	if err := Stack(ctx, bandFiles, current, opts.To8Bit, opts.NoData); err != nil {
		return "", fmt.Errorf("TransformProduct.%w", err)
	}

	if opts.ClipAOI != nil {
		cutline := "cutline.geojson"
		if err := service.ToJSON(geojson.Geometry{Geometry: opts.ClipAOI}, workdir, cutline); err != nil {
			return "", fmt.Errorf("TransformProduct.%w", err)
		}
		clipped := filepath.Join(workdir, "clipped.tif")
		if err := Clip(ctx, current, clipped, filepath.Join(workdir, cutline)); err != nil {
			return "", fmt.Errorf("TransformProduct.%w", err)
		}
		current = clipped
	}

	if opts.TargetCRS != "" {
		reprojected := filepath.Join(workdir, "reprojected.tif")
		if err := Reproject(ctx, current, reprojected, opts.TargetCRS); err != nil {
			return "", fmt.Errorf("TransformProduct.%w", err)
		}
		current = reprojected
	}

	committed := filepath.Join(cacheDir, productUUID+".tif")
	if err := service.CopyFile(current, committed); err != nil {
		return "", fmt.Errorf("TransformProduct.%w", err)
	}
	log.Logger(ctx).Sugar().Infof("committed %s", committed)
	return committed, nil
}
