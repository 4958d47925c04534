package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/araddon/dateparse"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/earthpulse/imagery-ingester/ingester"
	"github.com/earthpulse/imagery-ingester/interface/catalog/copernicus"
	"github.com/earthpulse/imagery-ingester/interface/provider"
	"github.com/earthpulse/imagery-ingester/service"
	"github.com/earthpulse/imagery-ingester/service/log"
)

type config struct {
	APIUrl   string
	TokenURL string
	Username string
	Password string

	CacheDir    string
	Collection  string
	ProductType string
	Bands       []string
	Resolution  int

	AOIFile       string
	TileIDs       []string
	StartDate     time.Time
	EndDate       time.Time
	CloudCoverMax float64

	To8Bit    bool
	Clip      bool
	TargetCRS string
}

func newAppConfig() (*config, error) {
	config := config{}

	// Catalog & credentials
	flag.StringVar(&config.APIUrl, "api-url", copernicus.DefaultAPIURL, "catalog OData endpoint")
	flag.StringVar(&config.TokenURL, "token-url", provider.DefaultTokenURL, "identity provider token endpoint")
	flag.StringVar(&config.Username, "username", "", "copernicus account username (default: COPERNICUS_USERNAME env)")
	flag.StringVar(&config.Password, "password", "", "copernicus account password (default: COPERNICUS_PASSWORD env)")
	envFile := flag.String("env-file", "", "dotenv file to load credentials from (optional)")

	// Products
	flag.StringVar(&config.CacheDir, "cache-dir", "", "local cache directory for the committed rasters")
	flag.StringVar(&config.Collection, "collection", "SENTINEL-2", "catalog collection")
	flag.StringVar(&config.ProductType, "product-type", "S2MSI2A", "product type")
	bands := flag.String("bands", "B02,B03,B04,B08", "band codes, comma-separated")
	flag.IntVar(&config.Resolution, "resolution", 10, "band resolution in meters")

	// Items
	flag.StringVar(&config.AOIFile, "aoi", "", "geojson file with the area of interest")
	tileIDs := flag.String("tile-ids", "", "MGRS tile ids, comma-separated (optional; the aoi still ranks the candidates)")
	startDate := flag.String("start-date", "", "start of the search window (e.g. 2023-06-01)")
	endDate := flag.String("end-date", "", "end of the search window")
	flag.Float64Var(&config.CloudCoverMax, "cloud-cover-max", 0, "maximum cloud coverage in percent (0: no limit)")

	// Raster pipeline
	flag.BoolVar(&config.To8Bit, "to-8bit", false, "normalize reflectance values to 8 bits")
	flag.BoolVar(&config.Clip, "clip", false, "clip the raster to the aoi")
	flag.StringVar(&config.TargetCRS, "target-crs", "", "reproject the raster to this CRS (e.g. EPSG:4326; optional)")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", *envFile, err)
		}
	}
	if config.Username == "" {
		config.Username = os.Getenv("COPERNICUS_USERNAME")
	}
	if config.Password == "" {
		config.Password = os.Getenv("COPERNICUS_PASSWORD")
	}
	if config.Username == "" || config.Password == "" {
		return nil, fmt.Errorf("missing copernicus credentials (flags, env or env-file)")
	}
	if config.CacheDir == "" {
		return nil, fmt.Errorf("missing cache-dir config flag")
	}
	if config.AOIFile == "" {
		return nil, fmt.Errorf("missing aoi config flag")
	}
	config.Bands = strings.Split(*bands, ",")
	if *tileIDs != "" {
		// drop duplicate tile ids while keeping the given order
		seen := service.StringSet{}
		for _, tileID := range strings.Split(*tileIDs, ",") {
			if !seen.Exists(tileID) {
				seen.Push(tileID)
				config.TileIDs = append(config.TileIDs, tileID)
			}
		}
	}

	var err error
	if *startDate == "" || *endDate == "" {
		return nil, fmt.Errorf("missing start-date/end-date config flags")
	}
	if config.StartDate, err = dateparse.ParseAny(*startDate); err != nil {
		return nil, fmt.Errorf("start-date: %w", err)
	}
	if config.EndDate, err = dateparse.ParseAny(*endDate); err != nil {
		return nil, fmt.Errorf("end-date: %w", err)
	}
	return &config, nil
}

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}
	godal.RegisterAll()

	if err := os.MkdirAll(config.CacheDir, 0766); err != nil {
		return fmt.Errorf("make directory %s: %w", config.CacheDir, err)
	}

	aoiJSON, err := os.ReadFile(config.AOIFile)
	if err != nil {
		return fmt.Errorf("aoi %s: %w", config.AOIFile, err)
	}
	aoi, err := service.UnmarshalGeometry(aoiJSON)
	if err != nil {
		return fmt.Errorf("aoi %s: %w", config.AOIFile, err)
	}

	session := provider.NewSession(config.TokenURL, config.Username, config.Password)
	store := ingester.NewStore(
		copernicus.NewCatalog(config.APIUrl),
		provider.NewCopernicusProvider(config.APIUrl, session),
		ingester.Config{
			Collection:  config.Collection,
			ProductType: config.ProductType,
			Bands:       config.Bands,
			Resolution:  config.Resolution,
			To8Bit:      config.To8Bit,
			Clip:        config.Clip,
			TargetCRS:   config.TargetCRS,
			CacheDir:    config.CacheDir,
		})

	// One item per tile id, or a single aoi-wide item
	var items []ingester.Item
	for _, tileID := range config.TileIDs {
		items = append(items, ingester.Item{
			Name:          tileID,
			AOI:           aoi,
			TileID:        tileID,
			Start:         config.StartDate,
			End:           config.EndDate,
			CloudCoverMax: config.CloudCoverMax,
		})
	}
	if len(items) == 0 {
		items = append(items, ingester.Item{
			Name:          config.AOIFile,
			AOI:           aoi,
			Start:         config.StartDate,
			End:           config.EndDate,
			CloudCoverMax: config.CloudCoverMax,
		})
	}

	matched, failed := processItems(ctx, store, items)
	log.Logger(ctx).Sugar().Infof("%d/%d item(s) matched a product", matched, len(items))
	if failed == len(items) {
		return fmt.Errorf("all %d item(s) failed", failed)
	}
	return nil
}

// processItems runs the items sequentially, one to completion before the
// next. A failing item terminates its own processing only: the error is
// logged and the remaining items still run.
func processItems(ctx context.Context, store *ingester.Store, items []ingester.Item) (matched, failed int) {
	for _, item := range items {
		descriptor, found, err := store.Imagery(ctx, item)
		if err != nil {
			failed++
			log.Logger(ctx).Sugar().Errorf("item %s: %v", item.Name, err)
			continue
		}
		if found {
			matched++
			log.Logger(ctx).Sugar().Infof("item %s: %s cached at %s", item.Name, descriptor.Name, descriptor.CachePath)
		}
	}
	return matched, failed
}
