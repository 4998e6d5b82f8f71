package los_test

import (
	"errors"
	"io/fs"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-los"
)

func TestEUDEM_Samples(t *testing.T) {
	if _, err := os.Stat("testdata/eu_dem"); errors.Is(err, fs.ErrNotExist) {
		t.Skip("missing eu_dem test data")
	}

	fsys := os.DirFS("testdata/eu_dem")
	euDEM, err := los.NewEUDEM(fsys)
	assert.NoError(t, err)
	defer euDEM.Close()

	for i, tc := range []struct {
		requiredFiles []string
		coords        []los.Coord
		expected      []float64
	}{
		{
			requiredFiles: []string{
				"eu_dem_v11_E00N20.TIF",
			},
			coords: []los.Coord{
				{X: 970705, Y: 2789764},
				{X: 971739, Y: 2793094},
				{X: 969236, Y: 2787499},
				{X: 950258, Y: 2769570},
			},
			expected: []float64{
				517, // QGIS says 518.
				79,
				6,   // QGIS says 13.
				586, // QGIS says 593.
			},
		},
		{
			requiredFiles: []string{
				"eu_dem_v11_E00N20.TIF",
				"eu_dem_v11_E30N50.TIF",
			},
			coords: []los.Coord{
				{X: 970705, Y: 2789764},
				{X: 3030012, Y: 5003477},
				{X: 971739, Y: 2793094},
				{X: 3073197, Y: 5027135},
			},
			expected: []float64{
				517,                // QGIS says 518.
				1141.1373291015625, // QGIS says 1136.0043.
				79,
				892.5265502929688, // QGIS says 889.7675.
			},
		},
	} {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			for _, filename := range tc.requiredFiles {
				if _, err := fsys.(fs.StatFS).Stat(filename); errors.Is(err, fs.ErrNotExist) {
					t.Skip(err)
				}
			}
			actual, err := euDEM.Samples(t.Context(), tc.coords)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestEUDEM_MissingTile(t *testing.T) {
	euDEM, err := los.NewEUDEM(os.DirFS(t.TempDir()))
	assert.NoError(t, err)
	defer euDEM.Close()

	samples, err := euDEM.Samples(t.Context(), []los.Coord{
		{X: 970705, Y: 2789764},
		{X: -1, Y: 2789764},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(samples))
	assert.True(t, math.IsNaN(samples[0]))
	assert.True(t, math.IsNaN(samples[1]))
}

func BenchmarkSingleTileSixteenCloseSamples(b *testing.B) {
	if _, err := os.Stat("testdata/eu_dem/eu_dem_v11_E00N20.TIF"); errors.Is(err, fs.ErrNotExist) {
		b.Skip("missing eu_dem test data")
	}
	r := rand.New(rand.NewPCG(0, 0))
	euDEM, err := los.NewEUDEM(os.DirFS("testdata/eu_dem"))
	assert.NoError(b, err)
	defer euDEM.Close()
	b.ResetTimer()
	for range b.N {
		coords := make([]los.Coord, 16)
		for i := range coords {
			coords[i] = los.Coord{
				X: 947000 + r.IntN(7000),
				Y: 2766000 + r.IntN(7000),
			}
		}
		samples, err := euDEM.Samples(b.Context(), coords)
		assert.NoError(b, err)
		assert.Equal(b, len(coords), len(samples))
	}
}
