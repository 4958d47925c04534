package common

import (
	"time"
)

// ProductDescriptor describes one imagery product, fully resolved.
// It is built by a DescriptorBuilder and never mutated afterwards.
type ProductDescriptor struct {
	UUID           string    `json:"uuid"`
	Name           string    `json:"name"`
	Tile           string    `json:"tile"`
	Date           time.Time `json:"product_date"`
	Platform       string    `json:"platform"`
	ProductType    string    `json:"product_type"`
	CloudCover     float64   `json:"cloudcoverage"`
	OrbitNumber    string    `json:"orbit_number"`
	OrbitDirection string    `json:"orbitdirection"`
	FootprintWKT   string    `json:"geometry_wkt"`
	FootprintCRS   string    `json:"crs"`
	S3Path         string    `json:"s3path,omitempty"`
	Bands          []string  `json:"bands"`
	NumBands       int       `json:"num_bands"`
	NoData         int       `json:"nodata"`
	CachePath      string    `json:"local_dir,omitempty"`
}

// DescriptorBuilder accumulates the fields of a ProductDescriptor as they are
// resolved by the successive pipeline stages (catalog hit, metadata lookup,
// manifest parse) and yields one finalized value.
type DescriptorBuilder struct {
	d ProductDescriptor
}

func NewDescriptorBuilder() *DescriptorBuilder {
	return &DescriptorBuilder{}
}

// Catalog sets the fields known from the catalog search hit
func (b *DescriptorBuilder) Catalog(uuid, name, tile, s3path, footprintWKT string, date time.Time, cloudCover float64, orbit string) *DescriptorBuilder {
	b.d.UUID = uuid
	b.d.Name = name
	b.d.Tile = tile
	b.d.S3Path = s3path
	b.d.FootprintWKT = footprintWKT
	b.d.Date = date
	b.d.CloudCover = cloudCover
	b.d.OrbitNumber = orbit
	return b
}

// Metadata sets the fields known from the single-product lookup
func (b *DescriptorBuilder) Metadata(name, footprintWKT, footprintCRS string, date time.Time) *DescriptorBuilder {
	b.d.Name = name
	b.d.FootprintWKT = footprintWKT
	b.d.FootprintCRS = footprintCRS
	if !date.IsZero() {
		b.d.Date = date
	}
	return b
}

// NameInfo sets the fields decomposed from the product name
func (b *DescriptorBuilder) NameInfo(info ProductNameInfo) *DescriptorBuilder {
	b.d.Platform = info.Platform
	b.d.ProductType = info.ProductType
	b.d.OrbitNumber = info.Orbit
	b.d.Tile = info.Tile
	b.d.Date = info.Date
	return b
}

// Manifest sets the fields parsed from the band manifest
func (b *DescriptorBuilder) Manifest(bands []string, cloudCover float64, orbitDirection string, noData int) *DescriptorBuilder {
	b.d.Bands = append([]string(nil), bands...)
	b.d.NumBands = len(bands)
	b.d.CloudCover = cloudCover
	b.d.OrbitDirection = orbitDirection
	b.d.NoData = noData
	return b
}

// Cache sets the committed artifact location and its CRS
func (b *DescriptorBuilder) Cache(path, crs string) *DescriptorBuilder {
	b.d.CachePath = path
	if crs != "" {
		b.d.FootprintCRS = crs
	}
	return b
}

// Build returns the finalized descriptor
func (b *DescriptorBuilder) Build() ProductDescriptor {
	d := b.d
	d.Bands = append([]string(nil), b.d.Bands...)
	return d
}
