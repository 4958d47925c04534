package copernicus

import (
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-spatial/geom/encoding/geojson"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"

	"github.com/earthpulse/imagery-ingester/common"
	"github.com/earthpulse/imagery-ingester/service"
	"github.com/earthpulse/imagery-ingester/service/log"
)

const (
	// DefaultAPIURL is the CDSE OData endpoint
	DefaultAPIURL = "https://catalogue.dataspace.copernicus.eu/odata/v1"

	odataDateFormat = "2006-01-02T15:04:05.999Z"
)

// Catalog queries the CDSE OData product catalog
type Catalog struct {
	APIURL    string
	NbRetries int
}

func NewCatalog(apiURL string) *Catalog {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Catalog{APIURL: apiURL, NbRetries: 3}
}

// SearchOptions are the filters of a catalog search.
// Exactly one of TileID and AOIWKT must be set.
type SearchOptions struct {
	Collection    string // e.g. SENTINEL-2
	ProductType   string // e.g. S2MSI2A
	Start, End    time.Time
	TileID        string
	AOIWKT        string // WKT in SRID 4326
	CloudCoverMax float64
}

// Candidate is one flattened catalog search hit
type Candidate struct {
	ID           string
	Name         string
	S3Path       string
	OriginDate   time.Time
	FootprintWKT string
	Attributes   map[string]string
}

// TileID returns the tileId attribute (empty if absent)
func (c Candidate) TileID() string { return c.Attributes[common.AttrTileID] }

// CloudCover returns the cloudCover attribute, or -1 if absent or unparsable
func (c Candidate) CloudCover() float64 {
	var v float64
	if _, err := fmt.Sscanf(c.Attributes[common.AttrCloudCover], "%f", &v); err != nil {
		return -1
	}
	return v
}

// RelativeOrbit returns the relativeOrbitNumber attribute (empty if absent)
func (c Candidate) RelativeOrbit() string { return c.Attributes[common.AttrRelativeOrbit] }

// BuildFilter constructs the OData $filter expression for the given options
func BuildFilter(opts SearchOptions) (string, error) {
	if (opts.TileID == "") == (opts.AOIWKT == "") {
		return "", fmt.Errorf("BuildFilter: exactly one of tileID and AOI must be provided")
	}
	parameters := []string{
		fmt.Sprintf("Collection/Name eq '%s'", opts.Collection),
		fmt.Sprintf("Attributes/OData.CSC.StringAttribute/any(att:att/Name eq 'productType' and att/OData.CSC.StringAttribute/Value eq '%s')", opts.ProductType),
		fmt.Sprintf("ContentDate/Start gt %s", opts.Start.UTC().Format(odataDateFormat)),
		fmt.Sprintf("ContentDate/Start lt %s", opts.End.UTC().Format(odataDateFormat)),
	}
	if opts.TileID != "" {
		parameters = append(parameters, fmt.Sprintf("Attributes/OData.CSC.StringAttribute/any(att:att/Name eq 'tileId' and att/OData.CSC.StringAttribute/Value eq '%s')", opts.TileID))
	} else {
		parameters = append(parameters, fmt.Sprintf("OData.CSC.Intersects(area=geography'SRID=4326;%s')", opts.AOIWKT))
	}
	if opts.CloudCoverMax > 0 {
		parameters = append(parameters, fmt.Sprintf("Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' and att/OData.CSC.DoubleAttribute/Value le %v)", opts.CloudCoverMax))
	}
	return strings.Join(parameters, " and "), nil
}

type hit struct {
	ID          string           `json:"Id"`
	Name        string           `json:"Name"`
	S3Path      string           `json:"S3Path"`
	OriginDate  string           `json:"OriginDate"`
	Footprint   geojson.Geometry `json:"GeoFootprint"`
	ContentDate struct {
		Start string `json:"Start"`
	} `json:"ContentDate"`
	Attributes []struct {
		Name      string      `json:"Name"`
		Value     interface{} `json:"Value"`
		ValueType string      `json:"ValueType"`
	} `json:"Attributes"`
}

// Search executes the catalog query and returns the flattened candidates.
// An empty result set is not an error.
func (c *Catalog) Search(ctx context.Context, opts SearchOptions) ([]Candidate, error) {
	filter, err := BuildFilter(opts)
	if err != nil {
		return nil, fmt.Errorf("Catalog.%w", err)
	}
	url := c.APIURL + "/Products?$filter=" + neturl.QueryEscape(filter) + "&$expand=Attributes"

	jsonResults, err := service.GetBodyRetry(url, c.NbRetries)
	if err != nil {
		return nil, fmt.Errorf("Catalog.Search: %w", err)
	}

	results := struct {
		Status int    `json:"status"`
		Hits   []hit  `json:"value"`
		Next   string `json:"@odata.nextLink"`
	}{}
	if err := json.Unmarshal(jsonResults, &results); err != nil {
		return nil, fmt.Errorf("Catalog.Search.Unmarshal: %w (response: %s)", err, jsonResults)
	}
	if results.Status != 0 && results.Status != 200 {
		return nil, fmt.Errorf("Catalog.Search: http status: %d (response: %s)", results.Status, jsonResults)
	}

	candidates := make([]Candidate, 0, len(results.Hits))
	for _, h := range results.Hits {
		candidate := Candidate{
			ID:         h.ID,
			Name:       h.Name,
			S3Path:     h.S3Path,
			Attributes: map[string]string{},
		}
		// Flatten the attribute records into top-level columns
		for _, attr := range h.Attributes {
			candidate.Attributes[attr.Name] = fmt.Sprintf("%v", attr.Value)
		}
		if date := firstNonEmpty(h.OriginDate, h.ContentDate.Start); date != "" {
			if candidate.OriginDate, err = dateparse.ParseAny(date); err != nil {
				log.Logger(ctx).Sugar().Warnf("[Copernicus] unparsable date %q for %s: %v", date, h.ID, err)
			}
		}
		if h.Footprint.Geometry != nil {
			if candidate.FootprintWKT, err = geomwkt.EncodeString(h.Footprint.Geometry); err != nil {
				log.Logger(ctx).Sugar().Warnf("[Copernicus] unusable footprint for %s: %v", h.ID, err)
			}
		}
		candidates = append(candidates, candidate)
	}
	if len(candidates) == 0 {
		log.Logger(ctx).Sugar().Info("[Copernicus] no products found for the given dates and cloud coverage")
	}
	return candidates, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
