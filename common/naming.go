package common

import (
	"fmt"
	"strings"
	"time"
)

// Sentinel-2 product names follow a fixed underscore-delimited grammar:
//
//	MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<product discriminator>[.SAFE]
//
// e.g. S2A_MSIL2A_20230615T104621_N0509_R051_T31TCJ_20230615T170958.SAFE
const productNameFields = 7

// ProductNameInfo holds the fields decomposed from a product name
type ProductNameInfo struct {
	Platform      string    // MMM, e.g. S2A
	ProductType   string    // MSIXXX, e.g. MSIL2A
	Date          time.Time // acquisition start
	Baseline      string    // Nxxyy processing baseline
	Orbit         string    // ROOO relative orbit, e.g. R051
	Tile          string    // xxxxx tile label without the leading T, e.g. 31TCJ
	Discriminator string
}

// DateString returns the acquisition date as YYYY-MM-DD
func (i ProductNameInfo) DateString() string {
	return i.Date.Format("2006-01-02")
}

// ParseProductName decomposes a Sentinel-2 product name into its fields.
// The field count and the positional markers (R, T prefixes) are validated.
func ParseProductName(name string) (ProductNameInfo, error) {
	fields := strings.Split(strings.TrimSuffix(name, ".SAFE"), "_")
	if len(fields) != productNameFields {
		return ProductNameInfo{}, fmt.Errorf("ParseProductName: expected %d fields in %s, got %d", productNameFields, name, len(fields))
	}
	date, err := time.Parse("20060102T150405", fields[2])
	if err != nil {
		return ProductNameInfo{}, fmt.Errorf("ParseProductName[%s]: %w", name, err)
	}
	if !strings.HasPrefix(fields[4], "R") {
		return ProductNameInfo{}, fmt.Errorf("ParseProductName: invalid orbit field %s in %s", fields[4], name)
	}
	if !strings.HasPrefix(fields[5], "T") {
		return ProductNameInfo{}, fmt.Errorf("ParseProductName: invalid tile field %s in %s", fields[5], name)
	}
	return ProductNameInfo{
		Platform:      fields[0],
		ProductType:   fields[1],
		Date:          date,
		Baseline:      fields[3],
		Orbit:         fields[4],
		Tile:          fields[5][1:],
		Discriminator: fields[6],
	}, nil
}
