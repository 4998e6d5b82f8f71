package los

import (
	"context"
	"io/fs"

	"github.com/twpayne/go-proj/v11"
)

// A DEM returns elevations at WGS84 coordinates.
type DEM interface {
	// Elevation4326 returns the elevations at coords, each of which is a
	// (longitude, latitude) pair. Missing elevations are NaN.
	Elevation4326(ctx context.Context, coords [][]float64) ([]float64, error)
}

// An EUDEMElevationService interpolates EU-DEM elevations at WGS84
// coordinates.
type EUDEMElevationService struct {
	geoTIFFTileSet *GeoTIFFTileSet
	pj             *proj.PJ
}

// NewEUDEMElevationService returns a new EUDEMElevationService reading
// EU-DEM tiles from fsys.
func NewEUDEMElevationService(fsys fs.FS, options ...GeoTIFFTileSetOption) (*EUDEMElevationService, error) {
	geoTIFFTileSet, err := NewEUDEM(fsys, options...)
	if err != nil {
		return nil, err
	}
	pj, err := proj.NewCRSToCRS("epsg:4326", "epsg:3035", nil)
	if err != nil {
		return nil, err
	}
	return &EUDEMElevationService{
		geoTIFFTileSet: geoTIFFTileSet,
		pj:             pj,
	}, nil
}

// Close closes all open tiles.
func (s *EUDEMElevationService) Close() {
	s.geoTIFFTileSet.Close()
}

// Elevation returns the elevations at coords in EPSG:3035, each of which is
// an (easting, northing) pair.
func (s *EUDEMElevationService) Elevation(ctx context.Context, coords [][]float64) ([]float64, error) {
	return InterpolateBilinear(ctx, s.geoTIFFTileSet, coords)
}

// Elevation4326 returns the elevations at coords in EPSG:4326, each of which
// is a (longitude, latitude) pair.
func (s *EUDEMElevationService) Elevation4326(ctx context.Context, coords4326 [][]float64) ([]float64, error) {
	// EPSG:4326 and EPSG:3035 both have northing-first axis order.
	coords3035 := cloneCoords(coords4326)
	flipCoords(coords3035)
	if err := s.pj.ForwardFloat64Slices(coords3035); err != nil {
		return nil, err
	}
	flipCoords(coords3035)
	return s.Elevation(ctx, coords3035)
}

func cloneCoords(coords [][]float64) [][]float64 {
	clonedCoordsFlat := make([]float64, 2*len(coords))
	clonedCoords := make([][]float64, len(coords))
	for i, coord := range coords {
		copy(clonedCoordsFlat[2*i:2*i+2], coord)
		clonedCoords[i] = clonedCoordsFlat[2*i : 2*i+2]
	}
	return clonedCoords
}

func flipCoords(coords [][]float64) {
	for _, coord := range coords {
		coord[0], coord[1] = coord[1], coord[0]
	}
}
