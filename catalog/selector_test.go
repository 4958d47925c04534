package catalog_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/paulsmith/gogeos/geos"

	"github.com/earthpulse/imagery-ingester/catalog"
	"github.com/earthpulse/imagery-ingester/interface/catalog/copernicus"
)

// box returns the WKT of an axis-aligned rectangle
func box(xmin, ymin, xmax, ymax float64) string {
	return fmt.Sprintf("POLYGON ((%[1]v %[2]v, %[3]v %[2]v, %[3]v %[4]v, %[1]v %[4]v, %[1]v %[2]v))",
		xmin, ymin, xmax, ymax)
}

var _ = Describe("SelectProduct", func() {
	ctx := context.Background()
	var aoi *geos.Geometry

	BeforeEach(func() {
		var err error
		// AOI bbox (1.0, 43.0, 1.6, 43.6)
		aoi, err = geos.FromWKT(box(1.0, 43.0, 1.6, 43.6))
		Expect(err).NotTo(HaveOccurred())
	})

	candidate := func(id string, footprintWKT string, origin time.Time) copernicus.Candidate {
		return copernicus.Candidate{
			ID:           id,
			Name:         "S2A_MSIL2A_20230615T104621_N0509_R051_T31TCJ_" + id,
			FootprintWKT: footprintWKT,
			OriginDate:   origin,
			Attributes:   map[string]string{"tileId": "31TCJ"},
		}
	}

	It("returns no match for an empty candidate table", func() {
		selection, err := catalog.SelectProduct(ctx, nil, aoi)
		Expect(err).NotTo(HaveOccurred())
		Expect(selection.Found).To(BeFalse())
	})

	It("selects the product with the maximal overlap ratio", func() {
		day := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
		// Overlap ratios: P1=0.92, P2=0.85, P3=0.40
		candidates := []copernicus.Candidate{
			candidate("P2", box(1.0, 43.0, 1.51, 43.6), day),
			candidate("P1", box(1.0, 43.0, 1.552, 43.6), day.Add(-24*time.Hour)),
			candidate("P3", box(1.0, 43.0, 1.24, 43.6), day.Add(24*time.Hour)),
		}
		selection, err := catalog.SelectProduct(ctx, candidates, aoi)
		Expect(err).NotTo(HaveOccurred())
		Expect(selection.Found).To(BeTrue())
		Expect(selection.Candidate.ID).To(Equal("P1"))
		Expect(selection.Ratio).To(BeNumerically("~", 0.92, 1e-6))
	})

	It("aggregates partial ratios of duplicate rows by product id", func() {
		day := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
		// P1 appears as two half-footprints summing to 1.0; P2 is one 0.85 footprint
		candidates := []copernicus.Candidate{
			candidate("P2", box(1.0, 43.0, 1.51, 43.6), day),
			candidate("P1", box(1.0, 43.0, 1.3, 43.6), day),
			candidate("P1", box(1.3, 43.0, 1.6, 43.6), day),
		}
		selection, err := catalog.SelectProduct(ctx, candidates, aoi)
		Expect(err).NotTo(HaveOccurred())
		Expect(selection.Candidate.ID).To(Equal("P1"))
		Expect(selection.Ratio).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("breaks ties among rows of the top id by the most recent origin date", func() {
		older := time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC)
		newer := time.Date(2023, 6, 20, 0, 0, 0, 0, time.UTC)
		full := box(1.0, 43.0, 1.6, 43.6)
		candidates := []copernicus.Candidate{
			{ID: "P1", Name: "older", FootprintWKT: full, OriginDate: older},
			{ID: "P1", Name: "newer", FootprintWKT: full, OriginDate: newer},
		}
		selection, err := catalog.SelectProduct(ctx, candidates, aoi)
		Expect(err).NotTo(HaveOccurred())
		Expect(selection.Candidate.Name).To(Equal("newer"))
	})

	It("is deterministic for identical inputs", func() {
		day := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
		candidates := []copernicus.Candidate{
			candidate("P2", box(1.0, 43.0, 1.3, 43.6), day),
			candidate("P1", box(1.3, 43.0, 1.6, 43.6), day),
		}
		first, err := catalog.SelectProduct(ctx, candidates, aoi)
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 5; i++ {
			again, err := catalog.SelectProduct(ctx, candidates, aoi)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Candidate.ID).To(Equal(first.Candidate.ID))
		}
	})

	It("treats an all-unusable table as no match, not an error", func() {
		candidates := []copernicus.Candidate{
			{ID: "P1"}, // no footprint
		}
		selection, err := catalog.SelectProduct(ctx, candidates, aoi)
		Expect(err).NotTo(HaveOccurred())
		Expect(selection.Found).To(BeFalse())
	})
})
