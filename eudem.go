package los

import (
	"fmt"
	"io/fs"
	"slices"
)

// EU-DEM v1.1 tiles are 1000km square in EPSG:3035 with 25m pixels.
const (
	euDEMSRID          = 3035
	euDEMScale         = 25
	euDEMTileSizeM     = 1000000
	euDEMTileCoordUnit = 10
)

// NewEUDEM returns a GeoTIFFTileSet for the EU-DEM v1.1 tiles in fsys.
func NewEUDEM(fsys fs.FS, options ...GeoTIFFTileSetOption) (*GeoTIFFTileSet, error) {
	return NewGeoTIFFTileSet(slices.Concat(
		[]GeoTIFFTileSetOption{
			WithFS(fsys),
			WithSRID(euDEMSRID),
			WithScale(euDEMScale, euDEMScale),
			WithTileCoordFunc(euDEMTileCoord),
			WithTileFilenameFunc(euDEMTileFilename),
		},
		options,
	)...)
}

func euDEMTileCoord(coord Coord) (TileCoord, bool) {
	if coord.X < 0 || coord.Y < 0 {
		return TileCoord{}, false
	}
	return TileCoord{
		C: euDEMTileCoordUnit * (coord.X / euDEMTileSizeM),
		R: euDEMTileCoordUnit * (coord.Y / euDEMTileSizeM),
	}, true
}

func euDEMTileFilename(tileCoord TileCoord) string {
	return fmt.Sprintf("eu_dem_v11_E%02dN%02d.TIF", tileCoord.C, tileCoord.R)
}
