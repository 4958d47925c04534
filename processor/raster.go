package processor

import (
	"context"
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/earthpulse/imagery-ingester/service/log"
)

// reflectanceScale converts L2A digital numbers to surface reflectance
const reflectanceScale = 10000.0

func clipUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeReflectance rescales digital numbers to 8-bit: v/10000 clipped to
// [0,1], scaled to [0,255] and truncated
func normalizeReflectance(values []uint16) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		out[i] = uint8(clipUnit(float64(v)/reflectanceScale) * 255)
	}
	return out
}

// Stack assembles the band files into a single multi-layer GTiff, one layer
// per file in the given order. The spatial metadata (projection, geotransform,
// dimensions) is taken from the first band; every band must share it.
// With to8bit, values are normalized to 8-bit reflectance, otherwise the raw
// 16-bit digital numbers pass through.
func Stack(ctx context.Context, bandPaths []string, dst string, to8bit bool, noData int) error {
	if len(bandPaths) == 0 {
		return fmt.Errorf("Stack: no band to stack")
	}

	first, err := godal.Open(bandPaths[0])
	if err != nil {
		return fmt.Errorf("Stack.Open[%s]: %w", bandPaths[0], err)
	}
	structure := first.Structure()
	geoTransform, err := first.GeoTransform()
	if err != nil {
		first.Close()
		return fmt.Errorf("Stack.GeoTransform: %w", err)
	}
	projection := first.Projection()
	first.Close()

	dtype := godal.UInt16
	if to8bit {
		dtype = godal.Byte
	}
	out, err := godal.Create(godal.GTiff, dst, len(bandPaths), dtype, structure.SizeX, structure.SizeY)
	if err != nil {
		return fmt.Errorf("Stack.Create[%s]: %w", dst, err)
	}
	defer out.Close()
	if projection != "" {
		if err := out.SetProjection(projection); err != nil {
			return fmt.Errorf("Stack.SetProjection: %w", err)
		}
	}
	if err := out.SetGeoTransform(geoTransform); err != nil {
		return fmt.Errorf("Stack.SetGeoTransform: %w", err)
	}

	values := make([]uint16, structure.SizeX*structure.SizeY)
	for i, bandPath := range bandPaths {
		ds, err := godal.Open(bandPath)
		if err != nil {
			return fmt.Errorf("Stack.Open[%s]: %w", bandPath, err)
		}
		if s := ds.Structure(); s.SizeX != structure.SizeX || s.SizeY != structure.SizeY {
			ds.Close()
			return fmt.Errorf("Stack[%s]: size %dx%d does not match the first band (%dx%d)",
				bandPath, s.SizeX, s.SizeY, structure.SizeX, structure.SizeY)
		}
		if err := ds.Bands()[0].Read(0, 0, values, structure.SizeX, structure.SizeY); err != nil {
			ds.Close()
			return fmt.Errorf("Stack.Read[%s]: %w", bandPath, err)
		}
		ds.Close()

		outBand := out.Bands()[i]
		if to8bit {
			if err := outBand.Write(0, 0, normalizeReflectance(values), structure.SizeX, structure.SizeY); err != nil {
				return fmt.Errorf("Stack.Write[%s]: %w", bandPath, err)
			}
		} else {
			if err := outBand.Write(0, 0, values, structure.SizeX, structure.SizeY); err != nil {
				return fmt.Errorf("Stack.Write[%s]: %w", bandPath, err)
			}
		}
		if noData >= 0 {
			if err := outBand.SetNoData(float64(noData)); err != nil {
				return fmt.Errorf("Stack.SetNoData: %w", err)
			}
		}
	}
	log.Logger(ctx).Sugar().Debugf("stacked %d bands into %s", len(bandPaths), dst)
	return nil
}

// Clip crops the raster to the cutline polygon of the geojson file,
// recomputing the geotransform from the crop
func Clip(ctx context.Context, src, dst, cutlineJSON string) error {
	ds, err := godal.Open(src)
	if err != nil {
		return fmt.Errorf("Clip.Open[%s]: %w", src, err)
	}
	defer ds.Close()
	out, err := ds.Warp(dst, []string{
		"-of", "GTiff",
		"-cutline", cutlineJSON,
		"-crop_to_cutline",
	})
	if err != nil {
		return fmt.Errorf("Clip.Warp[%s]: %w", src, err)
	}
	return out.Close()
}

// Reproject warps the raster to the target CRS with nearest-neighbor
// resampling and the default transform for the new grid
func Reproject(ctx context.Context, src, dst, targetCRS string) error {
	ds, err := godal.Open(src)
	if err != nil {
		return fmt.Errorf("Reproject.Open[%s]: %w", src, err)
	}
	defer ds.Close()
	out, err := ds.Warp(dst, []string{
		"-of", "GTiff",
		"-t_srs", targetCRS,
		"-r", "near",
	})
	if err != nil {
		return fmt.Errorf("Reproject.Warp[%s]: %w", src, err)
	}
	return out.Close()
}

// Mosaic composites overlapping rasters with first-priority semantics: where
// rasters overlap, the first of srcs wins. Zero is the no-data value.
func Mosaic(ctx context.Context, srcs []string, dst string) error {
	if len(srcs) == 0 {
		return fmt.Errorf("Mosaic: no raster to composite")
	}
	// BuildVRT gives priority to the last source, hence the reversal
	reversed := make([]string, len(srcs))
	for i, src := range srcs {
		reversed[len(srcs)-1-i] = src
	}
	vrt, err := godal.BuildVRT(dst+".vrt", reversed, []string{
		"-srcnodata", "0",
		"-vrtnodata", "0",
	})
	if err != nil {
		return fmt.Errorf("Mosaic.BuildVRT: %w", err)
	}
	defer vrt.Close()
	out, err := vrt.Translate(dst, []string{"-of", "GTiff"})
	if err != nil {
		return fmt.Errorf("Mosaic.Translate[%s]: %w", dst, err)
	}
	return out.Close()
}
