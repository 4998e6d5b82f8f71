package los

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"slices"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	"github.com/maypok86/otter/v2"
	"golang.org/x/image/tiff/lzw"
)

const noDataBits = 0xff7fffff

var (
	errShortRead = errors.New("short read")
	noData       = math.Float32frombits(noDataBits)
)

// A GeoTIFFTile is an open GeoTIFF file containing a single band of float32
// elevations in LZW-compressed tiles, in a projected coordinate system with
// integer pixel sizes.
type GeoTIFFTile struct {
	file                      *os.File
	imageWidth                int
	imageLength               int
	tileWidth                 int
	tileLength                int
	tilesAcross               int
	tilesDown                 int
	tileOffsets               []uint64
	tileByteCounts            []uint64
	smallestTileByteCount     uint64
	tileSampleCount           int
	tileByteCountUncompressed int
	tileCacheSizeBytes        int
	tileSamplesCache          *otter.Cache[TileCoord, []float32]
	emptyTileBytes            []byte
	scaleX                    int
	scaleY                    int
	translateX                int
	translateY                int
}

// A GeoTIFFTileOption sets an option on a GeoTIFFTile.
type GeoTIFFTileOption func(*GeoTIFFTile)

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint16    `tiff:"field,tag=256"`
	ImageLength               uint16    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALMetadata              string    `tiff:"field,tag=42112"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// supported returns whether ifd describes a raster that GeoTIFFTile can read.
func (ifd *geoTIFFIFD) supported() bool {
	return ifd.ImageWidth > 0 && ifd.ImageLength > 0 &&
		ifd.TileWidth > 0 && ifd.TileLength > 0 &&
		ifd.BitsPerSample == 32 &&
		ifd.Compression == 5 && // LZW.
		ifd.PhotometricInterpretation == 1 &&
		ifd.SamplesPerPixel == 1 &&
		ifd.PlanarConfiguration == 1 &&
		ifd.Predictor == 1 &&
		ifd.SampleFormat == 3 && // IEEE floating point.
		len(ifd.ModelPixelScaleTag) == 3 && ifd.ModelPixelScaleTag[2] == 0 &&
		len(ifd.ModelTiepointTag) == 6 && ifd.ModelTiepointTag[2] == 0 && ifd.ModelTiepointTag[5] == 0 &&
		ifd.GDALNoData == "-3.4028234663852886e+038"
}

// NewGeoTIFFTile opens filename in fsys, which must be backed by the
// operating system's filesystem.
func NewGeoTIFFTile(fsys fs.FS, filename string, options ...GeoTIFFTileOption) (*GeoTIFFTile, error) {
	var err error
	ok := false

	t := &GeoTIFFTile{
		tileCacheSizeBytes: 128 << 20, // 128MB.
	}
	for _, option := range options {
		option(t)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	osFile, isOSFile := file.(*os.File)
	if !isOSFile {
		_ = file.Close()
		return nil, errors.ErrUnsupported
	}
	t.file = osFile
	defer func() {
		if !ok {
			_ = t.file.Close()
		}
	}()

	tiffTIFF, err := tiff.Parse(t.file, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(tiffTIFF.IFDs()) != 1 {
		return nil, fmt.Errorf("%s: found %d IFDs, expected 1", filename, len(tiffTIFF.IFDs()))
	}

	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if !ifd.supported() {
		return nil, fmt.Errorf("%s: %w", filename, errors.ErrUnsupported)
	}

	geoKeys, err := ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if !geoKeys.ProjectedPixelIsArea() {
		return nil, fmt.Errorf("%s: not a projected pixel-is-area raster: %w", filename, errors.ErrUnsupported)
	}

	t.imageWidth = int(ifd.ImageWidth)
	t.imageLength = int(ifd.ImageLength)
	t.tileWidth = int(ifd.TileWidth)
	t.tileLength = int(ifd.TileLength)
	t.tilesAcross = (t.imageWidth + t.tileWidth - 1) / t.tileWidth
	t.tilesDown = (t.imageLength + t.tileLength - 1) / t.tileLength
	tilesPerImage := t.tilesAcross * t.tilesDown
	if len(ifd.TileByteCounts) != tilesPerImage || len(ifd.TileOffsets) != tilesPerImage {
		return nil, fmt.Errorf("%s: incorrect number of tile byte counts or offsets", filename)
	}
	t.tileOffsets = ifd.TileOffsets
	t.tileByteCounts = ifd.TileByteCounts
	t.smallestTileByteCount = slices.Min(ifd.TileByteCounts)
	t.tileSampleCount = t.tileWidth * t.tileLength
	t.tileByteCountUncompressed = t.tileSampleCount * int(ifd.BitsPerSample) / 8

	t.tileSamplesCache, err = otter.New(&otter.Options[TileCoord, []float32]{
		MaximumSize: max(t.tileCacheSizeBytes/t.tileByteCountUncompressed, 1),
	})
	if err != nil {
		return nil, err
	}

	scaleX, scaleY := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1]
	if scaleX <= 0 || scaleY <= 0 || scaleX != float64(int(scaleX)) || scaleY != float64(int(scaleY)) {
		return nil, fmt.Errorf("%s: non-integer pixel scale: %w", filename, errors.ErrUnsupported)
	}
	if i, j := ifd.ModelTiepointTag[0], ifd.ModelTiepointTag[1]; i != 0 || j != 0 {
		return nil, fmt.Errorf("%s: tie point not at origin: %w", filename, errors.ErrUnsupported)
	}
	x, y := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]
	if x != float64(int(x)) || y != float64(int(y)) {
		return nil, fmt.Errorf("%s: non-integer tie point: %w", filename, errors.ErrUnsupported)
	}
	t.scaleX = int(scaleX)
	t.scaleY = int(scaleY)
	t.translateX = int(x)
	t.translateY = int(y)

	ok = true
	return t, nil
}

// WithTileCacheSize sets the maximum size of decoded tiles cached, in bytes.
func WithTileCacheSize(tileCacheSize int) GeoTIFFTileOption {
	return func(t *GeoTIFFTile) {
		t.tileCacheSizeBytes = tileCacheSize
	}
}

// Close closes t's underlying file.
func (t *GeoTIFFTile) Close() error {
	return t.file.Close()
}

// Sample returns a single sample from t.
func (t *GeoTIFFTile) Sample(ctx context.Context, coord Coord) (float64, error) {
	localCoord := t.localCoord(coord)
	localTileCoord, ok := t.localTileCoord(localCoord)
	if !ok {
		return math.NaN(), nil
	}
	switch tileSamples, err := t.getTileSamplesCached(ctx, localTileCoord); {
	case errors.Is(err, otter.ErrNotFound):
		return math.NaN(), nil
	case err != nil:
		return 0, err
	default:
		return t.tileSample(tileSamples, localCoord), nil
	}
}

// Samples returns multiple samples from t. It is significantly faster than
// calling Sample for each coordinate because each tile is decoded once.
func (t *GeoTIFFTile) Samples(ctx context.Context, coords []Coord) ([]float64, error) {
	localCoords := make([]Coord, len(coords))
	for i, coord := range coords {
		localCoords[i] = t.localCoord(coord)
	}

	samples := make([]float64, len(localCoords))

	// Group indexes by local tile coord.
	indexesByLocalTileCoord := make(map[TileCoord][]int)
	for index, localCoord := range localCoords {
		localTileCoord, ok := t.localTileCoord(localCoord)
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		indexesByLocalTileCoord[localTileCoord] = append(indexesByLocalTileCoord[localTileCoord], index)
	}

	// Populate samples one local tile at a time.
	for localTileCoord, indexes := range indexesByLocalTileCoord {
		switch tileSamples, err := t.getTileSamplesCached(ctx, localTileCoord); {
		case errors.Is(err, otter.ErrNotFound):
			for _, index := range indexes {
				samples[index] = math.NaN()
			}
		case err != nil:
			return nil, err
		default:
			for _, index := range indexes {
				samples[index] = t.tileSample(tileSamples, localCoords[index])
			}
		}
	}

	return samples, nil
}

// getCompressedTileData returns the compressed tile data for the data at
// localTileCoord. If the tile is known to be empty, it returns the error
// otter.ErrNotFound.
func (t *GeoTIFFTile) getCompressedTileData(localTileCoord TileCoord) ([]byte, error) {
	tileIndex := localTileCoord.C + t.tilesAcross*localTileCoord.R
	tileByteCount := t.tileByteCounts[tileIndex]
	tileOffset := t.tileOffsets[tileIndex]
	compressedData := make([]byte, tileByteCount)
	switch n, err := t.file.ReadAt(compressedData, int64(tileOffset)); {
	case err != nil:
		return nil, err
	case n != int(tileByteCount):
		return nil, errShortRead
	case t.emptyTileBytes != nil && bytes.Equal(compressedData, t.emptyTileBytes):
		return nil, otter.ErrNotFound
	default:
		return compressedData, nil
	}
}

// decompressTileData decompresses the tile data in compressedData.
func (t *GeoTIFFTile) decompressTileData(compressedData []byte) ([]byte, error) {
	tileData := make([]byte, t.tileByteCountUncompressed)
	r := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
	defer r.Close()
	for bytesRead := 0; bytesRead < t.tileByteCountUncompressed; {
		n, err := r.Read(tileData[bytesRead:])
		if err != nil {
			return nil, err
		}
		bytesRead += n
	}
	return tileData, nil
}

// decodeTileData decodes little-endian float32 samples from tileData.
func (t *GeoTIFFTile) decodeTileData(tileData []byte) []float32 {
	tileSamples := make([]float32, t.tileSampleCount)
	for i := range t.tileSampleCount {
		tileSamples[i] = math.Float32frombits(binary.LittleEndian.Uint32(tileData[4*i : 4*(i+1)]))
	}
	return tileSamples
}

// localCoord returns the pixel coordinate of coord.
func (t *GeoTIFFTile) localCoord(coord Coord) Coord {
	return Coord{
		X: (coord.X - t.translateX) / t.scaleX,
		Y: -(coord.Y - t.translateY) / t.scaleY,
	}
}

// getTileSamples returns the tile samples at localTileCoord.
func (t *GeoTIFFTile) getTileSamples(ctx context.Context, localTileCoord TileCoord) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compressedTileData, err := t.getCompressedTileData(localTileCoord)
	if err != nil {
		return nil, err
	}
	tileData, err := t.decompressTileData(compressedTileData)
	if err != nil {
		return nil, err
	}
	tileSamples := t.decodeTileData(tileData)

	// Empty tiles are assumed to be the smallest tiles. Remember the
	// compressed bytes of the first one found so that later empty tiles can
	// be detected without decompressing them.
	if t.emptyTileBytes == nil && len(compressedTileData) == int(t.smallestTileByteCount) {
		if !slices.ContainsFunc(tileSamples, func(sample float32) bool {
			return sample != noData
		}) {
			t.emptyTileBytes = compressedTileData
			return nil, otter.ErrNotFound
		}
	}

	return tileSamples, nil
}

// getTileSamplesCached returns the tile at localTileCoord using t's cache.
func (t *GeoTIFFTile) getTileSamplesCached(ctx context.Context, localTileCoord TileCoord) ([]float32, error) {
	return t.tileSamplesCache.Get(ctx, localTileCoord, otter.LoaderFunc[TileCoord, []float32](t.getTileSamples))
}

// localTileCoord returns the local tile coord for a pixel coordinate.
func (t *GeoTIFFTile) localTileCoord(localCoord Coord) (TileCoord, bool) {
	if localCoord.X < 0 || t.imageWidth <= localCoord.X || localCoord.Y < 0 || t.imageLength <= localCoord.Y {
		return TileCoord{}, false
	}
	return TileCoord{
		C: localCoord.X / t.tileWidth,
		R: localCoord.Y / t.tileLength,
	}, true
}

// tileSample returns the sample from tileSamples at localCoord.
func (t *GeoTIFFTile) tileSample(tileSamples []float32, localCoord Coord) float64 {
	sample := tileSamples[localCoord.X%t.tileWidth+(localCoord.Y%t.tileLength)*t.tileWidth]
	if sample == noData {
		return math.NaN()
	}
	return float64(sample)
}
