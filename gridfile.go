package los

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// A terrainGridFile is the on-disk representation of a TerrainGrid: a
// zstd-compressed msgpack map.
type terrainGridFile struct {
	Lat []float64   `msgpack:"lat"`
	Lon []float64   `msgpack:"lon"`
	Ter [][]float64 `msgpack:"ter"`
}

// ReadTerrainGrid reads a TerrainGrid written by WriteTerrainGrid from r.
func ReadTerrainGrid(r io.Reader) (*TerrainGrid, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var file terrainGridFile
	if err := msgpack.NewDecoder(zr).Decode(&file); err != nil {
		return nil, fmt.Errorf("terrain grid: %w", err)
	}
	return NewTerrainGrid(file.Lat, file.Lon, file.Ter)
}

// WriteTerrainGrid writes grid to w.
func WriteTerrainGrid(w io.Writer, grid *TerrainGrid) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(&terrainGridFile{
		Lat: grid.Lats,
		Lon: grid.Lons,
		Ter: grid.Elevations,
	}); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}
