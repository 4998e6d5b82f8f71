package los

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	missingTileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "los_dem_missing_tile_cache_hits_total",
		Help: "The total number of hits on the missing DEM tile cache",
	})
	missingTileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "los_dem_missing_tile_cache_misses_total",
		Help: "The total number of misses on the missing DEM tile cache",
	})
	tileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "los_dem_tile_cache_hits_total",
		Help: "The total number of hits on the open DEM tile cache",
	})
	tileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "los_dem_tile_cache_misses_total",
		Help: "The total number of misses on the open DEM tile cache",
	})
	tileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "los_dem_tile_cache_evictions_total",
		Help: "The total number of evictions from the open DEM tile cache",
	})
)

// A TileCoordFunc returns the tile coordinate for a coordinate.
type TileCoordFunc func(Coord) (TileCoord, bool)

// A TileFilenameFunc returns the tile filename for a tile coordinate.
type TileFilenameFunc func(TileCoord) string

// A GeoTIFFTileSet is a Raster made of GeoTIFF tiles stored in a filesystem.
// Tiles are opened on demand and the most recently used are kept open.
// Missing tiles produce NaN samples.
type GeoTIFFTileSet struct {
	mutex              sync.Mutex
	fsys               fs.FS
	srid               int
	tileCoordFunc      TileCoordFunc
	tileFilenameFunc   TileFilenameFunc
	missingTiles       sync.Map
	geoTIFFTileOptions []GeoTIFFTileOption
	cacheSize          int
	scaleX             int
	scaleY             int
	geoTIFFTileCache   *lru.Cache[TileCoord, *GeoTIFFTile]
}

// A GeoTIFFTileSetOption sets an option on a GeoTIFFTileSet.
type GeoTIFFTileSetOption func(*GeoTIFFTileSet)

// NewGeoTIFFTileSet returns a new GeoTIFFTileSet with the given options.
func NewGeoTIFFTileSet(options ...GeoTIFFTileSetOption) (*GeoTIFFTileSet, error) {
	s := &GeoTIFFTileSet{
		cacheSize: 32,
	}
	for _, option := range options {
		option(s)
	}
	if s.fsys == nil || s.tileCoordFunc == nil || s.tileFilenameFunc == nil || s.scaleX <= 0 || s.scaleY <= 0 {
		return nil, errors.New("incomplete GeoTIFF tile set options")
	}

	var err error
	s.geoTIFFTileCache, err = lru.NewWithEvict(s.cacheSize, func(_ TileCoord, tile *GeoTIFFTile) {
		_ = tile.Close()
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// WithCacheSize sets the maximum number of open tiles.
func WithCacheSize(cacheSize int) GeoTIFFTileSetOption {
	return func(s *GeoTIFFTileSet) {
		s.cacheSize = cacheSize
	}
}

// WithFS sets the filesystem containing the tiles.
func WithFS(fsys fs.FS) GeoTIFFTileSetOption {
	return func(s *GeoTIFFTileSet) {
		s.fsys = fsys
	}
}

// WithGeoTIFFTileOptions sets the options used to open each tile.
func WithGeoTIFFTileOptions(geoTIFFTileOptions ...GeoTIFFTileOption) GeoTIFFTileSetOption {
	return func(s *GeoTIFFTileSet) {
		s.geoTIFFTileOptions = geoTIFFTileOptions
	}
}

func WithTileCoordFunc(tileCoordFunc TileCoordFunc) GeoTIFFTileSetOption {
	return func(s *GeoTIFFTileSet) {
		s.tileCoordFunc = tileCoordFunc
	}
}

func WithSRID(srid int) GeoTIFFTileSetOption {
	return func(s *GeoTIFFTileSet) {
		s.srid = srid
	}
}

func WithScale(scaleX, scaleY int) GeoTIFFTileSetOption {
	return func(s *GeoTIFFTileSet) {
		s.scaleX = scaleX
		s.scaleY = scaleY
	}
}

func WithTileFilenameFunc(tileFilenameFunc TileFilenameFunc) GeoTIFFTileSetOption {
	return func(s *GeoTIFFTileSet) {
		s.tileFilenameFunc = tileFilenameFunc
	}
}

// Close closes all open tiles.
func (s *GeoTIFFTileSet) Close() {
	s.geoTIFFTileCache.Purge()
}

// Samples returns the samples at coords. Missing samples are represented by
// NaNs.
func (s *GeoTIFFTileSet) Samples(ctx context.Context, coords []Coord) ([]float64, error) {
	samples := make([]float64, len(coords))

	// Group indexes by tile coord.
	type group struct {
		coords  []Coord
		indexes []int
	}
	groupsByTileCoord := make(map[TileCoord]*group)
	for index, coord := range coords {
		tileCoord, ok := s.tileCoordFunc(coord)
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		g, ok := groupsByTileCoord[tileCoord]
		if !ok {
			g = &group{}
			groupsByTileCoord[tileCoord] = g
		}
		g.coords = append(g.coords, coord)
		g.indexes = append(g.indexes, index)
	}

	// Populate samples one tile at a time.
	for tileCoord, g := range groupsByTileCoord {
		tile, err := s.getTileCached(tileCoord)
		if err != nil {
			return nil, err
		}
		if tile == nil {
			for _, index := range g.indexes {
				samples[index] = math.NaN()
			}
			continue
		}
		localSamples, err := tile.Samples(ctx, g.coords)
		if err != nil {
			return nil, err
		}
		for localIndex, index := range g.indexes {
			samples[index] = localSamples[localIndex]
		}
	}

	return samples, nil
}

// SRID returns s's SRID.
func (s *GeoTIFFTileSet) SRID() int {
	return s.srid
}

// Scale returns s's scale.
func (s *GeoTIFFTileSet) Scale() (int, int) {
	return s.scaleX, s.scaleY
}

// getTile opens the tile at tileCoord. It returns nil if the tile does not
// exist.
func (s *GeoTIFFTileSet) getTile(tileCoord TileCoord) (*GeoTIFFTile, error) {
	filename := s.tileFilenameFunc(tileCoord)
	switch geoTIFFTile, err := NewGeoTIFFTile(s.fsys, filename, s.geoTIFFTileOptions...); {
	case errors.Is(err, fs.ErrNotExist):
		s.missingTiles.Store(tileCoord, struct{}{})
		missingTileCacheMisses.Inc()
		return nil, nil
	case err != nil:
		return nil, err
	default:
		return geoTIFFTile, nil
	}
}

// getTileCached returns the tile at tileCoord, using the cache if possible.
func (s *GeoTIFFTileSet) getTileCached(tileCoord TileCoord) (*GeoTIFFTile, error) {
	if _, ok := s.missingTiles.Load(tileCoord); ok {
		missingTileCacheHits.Inc()
		return nil, nil
	}

	if tile, ok := s.geoTIFFTileCache.Get(tileCoord); ok {
		tileCacheHits.Inc()
		return tile, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.missingTiles.Load(tileCoord); ok {
		missingTileCacheHits.Inc()
		return nil, nil
	}

	if tile, ok := s.geoTIFFTileCache.Get(tileCoord); ok {
		tileCacheHits.Inc()
		return tile, nil
	}

	tileCacheMisses.Inc()

	tile, err := s.getTile(tileCoord)
	if err != nil || tile == nil {
		return nil, err
	}

	if eviction := s.geoTIFFTileCache.Add(tileCoord, tile); eviction {
		tileCacheEvictions.Inc()
	}

	return tile, nil
}
