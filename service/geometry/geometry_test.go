package geometry

import (
	"fmt"
	"math"
	"testing"

	"github.com/paulsmith/gogeos/geos"
)

func checkGeomEquality(wkt1, wkt2 string) error {
	geom1, err := geos.FromWKT(wkt1)
	if err != nil {
		return err
	}
	geom2, err := geos.FromWKT(wkt2)
	if err != nil {
		return err
	}
	if equal, err := geom1.Equals(geom2); err != nil {
		return err
	} else if !equal {
		return fmt.Errorf("Not equal")
	}
	return nil
}

func TestUnion(t *testing.T) {
	wktAOI1 := "POLYGON ((129 -11, 130 -11, 130 -12, 129 -12, 129 -11))"
	wktAOI2 := "POLYGON ((130 -12, 130 -11, 131 -11, 131 -12, 130 -12))"
	wktAOI3 := "POLYGON ((129 -11, 131 -11, 131 -12, 129 -12, 129 -11))"

	if wkt, err := WKTUnion([]string{wktAOI1, wktAOI1}, TOLERANCE_GEOG); err != nil {
		t.Error(err.Error())
	} else if err := checkGeomEquality(wkt, wktAOI1); err != nil {
		t.Errorf("expect %s found %s (%v)", wktAOI1, wkt, err)
	}

	if wkt, err := WKTUnion([]string{wktAOI1, wktAOI2}, TOLERANCE_GEOG); err != nil {
		t.Error(err.Error())
	} else if err := checkGeomEquality(wkt, wktAOI3); err != nil {
		t.Errorf("expect %s found %s (%v)", wktAOI3, wkt, err)
	}
}

func TestOverlapRatio(t *testing.T) {
	aoi, err := geos.FromWKT("POLYGON ((1.0 43.0, 1.6 43.0, 1.6 43.6, 1.0 43.6, 1.0 43.0))")
	if err != nil {
		t.Fatal(err)
	}

	// Footprint covering the western half of the aoi
	footprint, err := geos.FromWKT("POLYGON ((0.0 42.0, 1.3 42.0, 1.3 44.0, 0.0 44.0, 0.0 42.0))")
	if err != nil {
		t.Fatal(err)
	}
	ratio, err := OverlapRatio(footprint, aoi)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ratio-0.5) > 1e-9 {
		t.Errorf("expected ratio 0.5, got %f", ratio)
	}

	// Disjoint footprint
	footprint, err = geos.FromWKT("POLYGON ((10 10, 11 10, 11 11, 10 11, 10 10))")
	if err != nil {
		t.Fatal(err)
	}
	if ratio, err = OverlapRatio(footprint, aoi); err != nil {
		t.Fatal(err)
	} else if ratio != 0 {
		t.Errorf("expected ratio 0, got %f", ratio)
	}
}
