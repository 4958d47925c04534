package ingester

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-spatial/geom"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"

	"github.com/earthpulse/imagery-ingester/catalog"
	"github.com/earthpulse/imagery-ingester/common"
	"github.com/earthpulse/imagery-ingester/downloader"
	"github.com/earthpulse/imagery-ingester/interface/catalog/copernicus"
	"github.com/earthpulse/imagery-ingester/interface/provider"
	"github.com/earthpulse/imagery-ingester/processor"
	"github.com/earthpulse/imagery-ingester/service"
	"github.com/earthpulse/imagery-ingester/service/geometry"
	"github.com/earthpulse/imagery-ingester/service/log"
)

// Item is one unit of work: an area of interest and a time window
type Item struct {
	Name          string
	AOI           geom.Geometry
	TileID        string
	Start, End    time.Time
	CloudCoverMax float64
}

// Config of the store, shared by all items
type Config struct {
	Collection  string
	ProductType string
	Bands       []string
	Resolution  int
	To8Bit      bool
	Clip        bool
	TargetCRS   string
	CacheDir    string
}

// Store retrieves, transforms and caches the best imagery product for an item
type Store struct {
	catalog       *copernicus.Catalog
	imageProvider provider.ImageProvider
	config        Config
}

// NewStore creates a store on the given catalog and image provider
func NewStore(cat *copernicus.Catalog, imageProvider provider.ImageProvider, config Config) *Store {
	return &Store{catalog: cat, imageProvider: imageProvider, config: config}
}

// Imagery retrieves the best product for the item and commits its raster to
// the cache. The boolean is false when no usable product matches the item
// (not an error). Fatal provider failures are surfaced; transform failures
// skip the item.
func (s *Store) Imagery(ctx context.Context, item Item) (common.ProductDescriptor, bool, error) {
	ctx = log.WithFields(ctx, "item", item.Name)
	if item.AOI == nil {
		log.Logger(ctx).Sugar().Warn("no aoi, skipping")
		return common.ProductDescriptor{}, false, nil
	}
	aoi, err := geometry.GeomToGeos(item.AOI)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("unusable aoi: %v", err)
		return common.ProductDescriptor{}, false, nil
	}

	// Search by tile id when the item pins one, by AOI otherwise; the AOI
	// ranks the candidates either way
	opts := copernicus.SearchOptions{
		Collection:    s.config.Collection,
		ProductType:   s.config.ProductType,
		Start:         item.Start,
		End:           item.End,
		CloudCoverMax: item.CloudCoverMax,
	}
	if item.TileID != "" {
		opts.TileID = item.TileID
	} else {
		aoiWKT, err := geomwkt.EncodeString(item.AOI)
		if err != nil {
			log.Logger(ctx).Sugar().Warnf("unusable aoi: %v", err)
			return common.ProductDescriptor{}, false, nil
		}
		// dissolve and simplify before embedding in the query
		if opts.AOIWKT, err = geometry.WKTUnion([]string{aoiWKT}, geometry.TOLERANCE_GEOG); err != nil {
			log.Logger(ctx).Sugar().Warnf("unusable aoi: %v", err)
			return common.ProductDescriptor{}, false, nil
		}
	}
	candidates, err := s.catalog.Search(ctx, opts)
	if err != nil {
		return common.ProductDescriptor{}, false, fmt.Errorf("Imagery.%w", err)
	}

	selection, err := catalog.SelectProduct(ctx, candidates, aoi)
	if err != nil {
		return common.ProductDescriptor{}, false, fmt.Errorf("Imagery.%w", err)
	}
	if !selection.Found {
		log.Logger(ctx).Sugar().Info("no product matches")
		return common.ProductDescriptor{}, false, nil
	}
	product := selection.Candidate
	log.Logger(ctx).Sugar().Infof("selected %s (overlap %.2f)", product.Name, selection.Ratio)

	result, err := downloader.ProcessProduct(ctx, s.imageProvider, product.ID, s.config.Bands, s.config.Resolution, s.config.CacheDir)
	if result.Dir != "" {
		defer os.RemoveAll(result.Dir)
	}
	if err != nil {
		var invalid provider.ErrInvalidProduct
		var notFound provider.ErrProductNotFound
		if errors.As(err, &invalid) || errors.As(err, &notFound) {
			log.Logger(ctx).Sugar().Warnf("%v", err)
			return common.ProductDescriptor{}, false, nil
		}
		return common.ProductDescriptor{}, false, fmt.Errorf("Imagery.%w", err)
	}

	builder := common.NewDescriptorBuilder().
		Catalog(product.ID, product.Name, product.TileID(), product.S3Path, product.FootprintWKT, product.OriginDate, product.CloudCover(), product.RelativeOrbit()).
		Metadata(result.Metadata.Name, result.Metadata.FootprintWKT, result.Metadata.FootprintCRS, result.Metadata.Date).
		Manifest(result.Manifest.Bands(), result.Manifest.CloudCover, result.Manifest.OrbitDirection, result.Manifest.NoData)
	if info, err := common.ParseProductName(result.Metadata.Name); err == nil {
		builder.NameInfo(info)
	} else {
		log.Logger(ctx).Sugar().Warnf("%v", err)
	}

	transformOpts := processor.Options{
		To8Bit:    s.config.To8Bit,
		NoData:    result.Manifest.NoData,
		TargetCRS: s.config.TargetCRS,
	}
	if s.config.Clip {
		transformOpts.ClipAOI = item.AOI
	}
	committed, err := processor.TransformProduct(ctx, result.Files, product.ID, result.Dir, s.config.CacheDir, transformOpts)
	if err != nil {
		log.Logger(ctx).Sugar().Errorf("transform failed, skipping: %+v", err)
		return common.ProductDescriptor{}, false, nil
	}

	descriptor := builder.Cache(committed, s.config.TargetCRS).Build()
	if err := service.ToJSON(descriptor, s.config.CacheDir, product.ID+".json"); err != nil {
		log.Logger(ctx).Sugar().Warnf("%v", err)
	}
	return descriptor, true, nil
}
