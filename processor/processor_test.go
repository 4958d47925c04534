package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/go-spatial/geom"
)

func TestTransformProduct(t *testing.T) {
	workdir, cacheDir := t.TempDir(), t.TempDir()
	bands := []string{
		filepath.Join(workdir, "B02.tif"),
		filepath.Join(workdir, "B03.tif"),
	}
	for i, path := range bands {
		writeBand(t, path, 10, 10, uint16(1000*(i+1)))
	}

	// an aligned 4x4 pixel window of the 10x10 grid
	clip := geom.Polygon{{
		{300020, 4899960}, {300060, 4899960}, {300060, 4900000}, {300020, 4900000},
	}}

	committed, err := TransformProduct(context.Background(), bands, "prod-1", workdir, cacheDir, Options{
		NoData:  0,
		ClipAOI: clip,
	})
	if err != nil {
		t.Fatal(err)
	}
	if committed != filepath.Join(cacheDir, "prod-1.tif") {
		t.Errorf("unexpected cache path %s", committed)
	}
	if _, err := os.Stat(committed); err != nil {
		t.Fatal(err)
	}

	ds, err := godal.Open(committed)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	structure := ds.Structure()
	if structure.NBands != 2 {
		t.Errorf("expected 2 layers, got %d", structure.NBands)
	}
	if structure.SizeX != 4 || structure.SizeY != 4 {
		t.Errorf("expected the clipped 4x4 window, got %dx%d", structure.SizeX, structure.SizeY)
	}
	values := make([]uint16, 16)
	if err := ds.Bands()[1].Read(0, 0, values, 4, 4); err != nil {
		t.Fatal(err)
	}
	if values[0] != 2000 {
		t.Errorf("layer order lost through the pipeline, got %d", values[0])
	}
}

func TestTransformProductStageFailure(t *testing.T) {
	workdir, cacheDir := t.TempDir(), t.TempDir()
	junk := filepath.Join(workdir, "junk.tif")
	if err := os.WriteFile(junk, []byte("not a raster"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := TransformProduct(context.Background(), []string{junk}, "prod-1", workdir, cacheDir, Options{}); err == nil {
		t.Fatal("expected a stack failure")
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "prod-1.tif")); err == nil {
		t.Error("nothing must be committed when a stage fails")
	}
}
