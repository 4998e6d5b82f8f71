package los

import "context"

// A Coord is a projected raster coordinate, in meters.
type Coord struct {
	X int
	Y int
}

// A TileCoord is a tile coordinate.
type TileCoord struct {
	C int // Column.
	R int // Row.
}

// A Raster is a regularly spaced grid of samples in a projected coordinate
// system. Missing samples are represented by NaNs.
type Raster interface {
	Samples(ctx context.Context, coords []Coord) ([]float64, error)
	Scale() (int, int)
}
