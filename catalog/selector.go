package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/paulsmith/gogeos/geos"

	"github.com/earthpulse/imagery-ingester/interface/catalog/copernicus"
	"github.com/earthpulse/imagery-ingester/service/geometry"
	"github.com/earthpulse/imagery-ingester/service/log"
)

// Selection is the result of a product selection.
// Found distinguishes "no match" from a match; a failed selection is an error.
type Selection struct {
	Found     bool
	Candidate copernicus.Candidate
	// Ratio is the aggregated overlap ratio of the selected product
	Ratio float64
}

// SelectProduct ranks the candidates by aggregated AOI overlap ratio and
// returns the top-ranked product, breaking ties on the most recent origin
// date among the rows sharing the top product id. It is a pure function of
// (candidates, aoi): identical inputs select the same product.
func SelectProduct(ctx context.Context, candidates []copernicus.Candidate, aoi *geos.Geometry) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, nil
	}
	if aoi == nil {
		return Selection{}, fmt.Errorf("SelectProduct: nil aoi")
	}

	// Aggregate partial overlap ratios by product id (the raw table may
	// contain several rows per product)
	ratios := map[string]float64{}
	var ids []string
	for _, candidate := range candidates {
		if candidate.FootprintWKT == "" {
			log.Logger(ctx).Sugar().Debugf("skipping candidate %s: no footprint", candidate.ID)
			continue
		}
		footprint, err := geos.FromWKT(candidate.FootprintWKT)
		if err != nil {
			log.Logger(ctx).Sugar().Warnf("skipping candidate %s: %v", candidate.ID, err)
			continue
		}
		ratio, err := geometry.OverlapRatio(footprint, aoi)
		if err != nil {
			return Selection{}, fmt.Errorf("SelectProduct.%w", err)
		}
		if _, ok := ratios[candidate.ID]; !ok {
			ids = append(ids, candidate.ID)
		}
		ratios[candidate.ID] += ratio
	}
	if len(ids) == 0 {
		return Selection{}, nil
	}

	// Rank by total ratio descending, id ascending for determinism
	sort.Slice(ids, func(i, j int) bool {
		if ratios[ids[i]] != ratios[ids[j]] {
			return ratios[ids[i]] > ratios[ids[j]]
		}
		return ids[i] < ids[j]
	})
	topID := ids[0]

	// Most recent origin date among the rows sharing the top id
	var selected *copernicus.Candidate
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.ID != topID {
			continue
		}
		if selected == nil || candidate.OriginDate.After(selected.OriginDate) {
			selected = candidate
		}
	}

	return Selection{Found: true, Candidate: *selected, Ratio: ratios[topID]}, nil
}
