package common

// Catalog attribute names (OData $expand=Attributes)
const (
	AttrProductType    = "productType"
	AttrTileID         = "tileId"
	AttrCloudCover     = "cloudCover"
	AttrRelativeOrbit  = "relativeOrbitNumber"
	AttrOrbit          = "orbitNumber"
	AttrOrbitDirection = "orbitDirection"
)
