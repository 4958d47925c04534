package provider

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ManifestFileName is the band manifest node of a L2A product package
const ManifestFileName = "MTD_MSIL2A.xml"

// BandFile locates one spectral band inside the product package: the node
// path segments resolve to exactly one downloadable resource, the terminal
// segment being the image file name.
type BandFile struct {
	Band     string
	Segments []string
}

// FileName returns the terminal path segment
func (b BandFile) FileName() string {
	return b.Segments[len(b.Segments)-1]
}

// Manifest holds the fields parsed from the product band manifest
type Manifest struct {
	// BandFiles in manifest-resolved order (which follows the configured band list)
	BandFiles      []BandFile
	CloudCover     float64
	OrbitDirection string
	NoData         int
}

// Bands returns the band codes in resolved order
func (m Manifest) Bands() []string {
	bands := make([]string, len(m.BandFiles))
	for i, bf := range m.BandFiles {
		bands[i] = bf.Band
	}
	return bands
}

// ParseManifest extracts from the manifest XML the node paths of every image
// file matching one of the band codes at the requested resolution, and the
// scalar product fields (cloud coverage assessment, sensing orbit direction,
// no-data special value).
func ParseManifest(data []byte, productName string, bands []string, resolution int) (Manifest, error) {
	var imageFiles []string
	manifest := Manifest{CloudCover: -1, NoData: -1}
	orbitDone, cloudDone, noDataDone := false, false, false

	decoder := xml.NewDecoder(bytes.NewReader(data))
	var current string
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Manifest{}, fmt.Errorf("ParseManifest: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				break
			}
			switch current {
			case "IMAGE_FILE":
				imageFiles = append(imageFiles, text)
			case "Cloud_Coverage_Assessment":
				if !cloudDone {
					if manifest.CloudCover, err = strconv.ParseFloat(text, 64); err != nil {
						return Manifest{}, fmt.Errorf("ParseManifest.Cloud_Coverage_Assessment: %w", err)
					}
					cloudDone = true
				}
			case "SENSING_ORBIT_DIRECTION":
				if !orbitDone {
					manifest.OrbitDirection = text
					orbitDone = true
				}
			case "SPECIAL_VALUE_INDEX":
				if !noDataDone {
					if manifest.NoData, err = strconv.Atoi(text); err != nil {
						return Manifest{}, fmt.Errorf("ParseManifest.SPECIAL_VALUE_INDEX: %w", err)
					}
					noDataDone = true
				}
			}
		case xml.EndElement:
			current = ""
		}
	}

	// Resolve the image files matching a configured band code at the
	// requested resolution, in document order
	for _, file := range imageFiles {
		for _, band := range bands {
			matched, err := regexp.MatchString(fmt.Sprintf(".*_%s_%dm$", band, resolution), file)
			if err != nil {
				return Manifest{}, fmt.Errorf("ParseManifest: %w", err)
			}
			if matched {
				manifest.BandFiles = append(manifest.BandFiles, BandFile{
					Band:     band,
					Segments: strings.Split(productName+"/"+file+".jp2", "/"),
				})
				break
			}
		}
	}
	return manifest, nil
}
