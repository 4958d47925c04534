package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/earthpulse/imagery-ingester/service"
	"github.com/earthpulse/imagery-ingester/service/log"
)

// ErrInvalidProduct is returned when a product identifier cannot be resolved.
// It is a recoverable validation failure.
type ErrInvalidProduct struct {
	UUID  string
	Cause error
}

func (e ErrInvalidProduct) Error() string {
	return fmt.Sprintf("invalid product %s: %v", e.UUID, e.Cause)
}

func (e ErrInvalidProduct) Unwrap() error { return e.Cause }

// ProductMetadata is the result of the single-product lookup
type ProductMetadata struct {
	Name         string
	FootprintWKT string
	FootprintCRS string
	Date         time.Time
}

// CopernicusProvider downloads product bands from the CDSE node-resolution service
type CopernicusProvider struct {
	apiURL  string
	session *Session
}

// NewCopernicusProvider creates a provider using the given authenticated session
func NewCopernicusProvider(apiURL string, session *Session) *CopernicusProvider {
	if apiURL == "" {
		apiURL = "https://catalogue.dataspace.copernicus.eu/odata/v1"
	}
	return &CopernicusProvider{apiURL: strings.TrimSuffix(apiURL, "/"), session: session}
}

// Name of the provider
func (p *CopernicusProvider) Name() string {
	return "Copernicus"
}

// nodeURL chains the node-resolution segments into a download URL
func (p *CopernicusProvider) nodeURL(productID string, segments ...string) string {
	url := fmt.Sprintf("%s/Products(%s)", p.apiURL, productID)
	for _, segment := range segments {
		url += fmt.Sprintf("/Nodes(%s)", segment)
	}
	return url + "/$value"
}

// ReadProductMetadata fetches the product record by its catalog id.
// The Footprint field is a "SRID=<n>;<WKT>" composite.
func (p *CopernicusProvider) ReadProductMetadata(ctx context.Context, productID string) (ProductMetadata, error) {
	body, err := service.GetBodyRetry(fmt.Sprintf("%s/Products(%s)", p.apiURL, productID), 3)
	if err != nil {
		return ProductMetadata{}, ErrInvalidProduct{UUID: productID, Cause: err}
	}
	record := struct {
		Name       string `json:"Name"`
		Footprint  string `json:"Footprint"`
		OriginDate string `json:"OriginDate"`
	}{}
	if err := json.Unmarshal(body, &record); err != nil {
		return ProductMetadata{}, ErrInvalidProduct{UUID: productID, Cause: err}
	}
	if record.Name == "" {
		return ProductMetadata{}, ErrInvalidProduct{UUID: productID, Cause: fmt.Errorf("no Name in record %s", body)}
	}

	metadata := ProductMetadata{Name: record.Name}
	// e.g. geography'SRID=4326;POLYGON ((...))'
	footprint := strings.ReplaceAll(record.Footprint, "'", "")
	if parts := strings.SplitN(footprint, ";", 2); len(parts) == 2 {
		metadata.FootprintWKT = parts[1]
		if srid := strings.Split(parts[0], "="); len(srid) == 2 {
			// normalized to the EPSG:<srid> form carried everywhere else
			metadata.FootprintCRS = "EPSG:" + srid[1]
		}
	}
	if record.OriginDate != "" {
		if metadata.Date, err = dateparse.ParseAny(record.OriginDate); err != nil {
			return ProductMetadata{}, ErrInvalidProduct{UUID: productID, Cause: err}
		}
	}
	return metadata, nil
}

// DownloadManifest fetches the band manifest via node resolution, writes it
// to localDir and parses it. A parse failure triggers exactly one fallback:
// re-parse from the copy already written to disk.
func (p *CopernicusProvider) DownloadManifest(ctx context.Context, productID, productName, localDir string, bands []string, resolution int) (Manifest, error) {
	token, err := p.session.Token(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("DownloadManifest.%w", err)
	}
	body, err := getWithAuth(ctx, p.nodeURL(productID, productName, ManifestFileName), token)
	if err != nil {
		return Manifest{}, fmt.Errorf("DownloadManifest.%w", err)
	}
	outFile := filepath.Join(localDir, ManifestFileName)
	if err := os.WriteFile(outFile, body, 0644); err != nil {
		return Manifest{}, fmt.Errorf("DownloadManifest.WriteFile: %w", err)
	}

	manifest, err := ParseManifest(body, productName, bands, resolution)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("%v. Reparsing the manifest from disk", err)
		if body, err = os.ReadFile(outFile); err != nil {
			return Manifest{}, fmt.Errorf("DownloadManifest.ReadFile: %w", err)
		}
		if manifest, err = ParseManifest(body, productName, bands, resolution); err != nil {
			return Manifest{}, fmt.Errorf("DownloadManifest.%w", err)
		}
	}
	return manifest, nil
}

// DownloadBands streams every manifest-resolved band file into localDir,
// named after its terminal path segment. It returns the local file paths in
// manifest-resolved order.
func (p *CopernicusProvider) DownloadBands(ctx context.Context, productID string, manifest Manifest, localDir string) ([]string, error) {
	files := make([]string, 0, len(manifest.BandFiles))
	for _, bandFile := range manifest.BandFiles {
		token, err := p.session.Token(ctx)
		if err != nil {
			return files, fmt.Errorf("DownloadBands.%w", err)
		}
		dst := filepath.Join(localDir, bandFile.FileName())
		url := p.nodeURL(productID, bandFile.Segments...)
		log.Logger(ctx).Sugar().Debugf("downloading band %s", bandFile.Band)
		if err := service.Retriable(ctx, func() error {
			return downloadFileWithAuth(ctx, url, dst, token, p.Name()+":"+bandFile.Band)
		}, 10*time.Second, 3); err != nil {
			return files, fmt.Errorf("DownloadBands[%s].%w", bandFile.Band, err)
		}
		files = append(files, dst)
	}
	return files, nil
}
