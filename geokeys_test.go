package los

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestParseGeoKeys(t *testing.T) {
	directory := []uint16{
		1, 1, 0, 9,
		1024, 0, 1, 1,
		1025, 0, 1, 1,
		1026, 34737, 28, 0,
		2048, 0, 1, 4258,
		2057, 34736, 1, 4,
		2059, 34736, 1, 5,
		3072, 0, 1, 32767,
		3082, 34736, 1, 2,
		3083, 34736, 1, 3,
	}
	doubleParams := []float64{
		52,
		10,
		4321000,
		3210000,
		6378137,
		298.257222101,
	}
	asciiParams := []byte("PCS Name = ETRS89_ETRS_LAEA|")

	actual, err := ParseGeoKeys(directory, doubleParams, asciiParams)
	assert.NoError(t, err)
	assert.Equal(t, &ParsedGeoKeys{
		Params: map[GeoKey]int{
			GeoKeyGTModelType:  ModelTypeProjected,
			GeoKeyGTRasterType: RasterPixelIsArea,
			GeoKeyGeodeticCRS:  4258,
			GeoKeyProjectedCRS: 32767,
		},
		DoubleParams: map[GeoKey]float64{
			GeoKeyEllipsoidSemiMajorAxis:            6378137,
			GeoKeyEllipsoidInvFlattening:            298.257222101,
			GeoKeyFalseEastingProjLinearParameters:  4321000,
			GeoKeyFalseNorthingProjLinearParameters: 3210000,
		},
		ASCIIParams: map[GeoKey]string{
			GeoKeyGTCitation: "PCS Name = ETRS89_ETRS_LAEA|",
		},
	}, actual)
	assert.True(t, actual.ProjectedPixelIsArea())
}

func TestParseGeoKeysErrors(t *testing.T) {
	for _, tc := range []struct {
		name         string
		directory    []uint16
		doubleParams []float64
		asciiParams  []byte
	}{
		{
			name:      "short",
			directory: []uint16{1, 1, 0},
		},
		{
			name:      "version",
			directory: []uint16{2, 1, 0, 0},
		},
		{
			name:      "key_count",
			directory: []uint16{1, 1, 0, 2, 1024, 0, 1, 1},
		},
		{
			name:      "double_param_out_of_range",
			directory: []uint16{1, 1, 0, 1, 2057, 34736, 1, 3},
		},
		{
			name:        "ascii_param_out_of_range",
			directory:   []uint16{1, 1, 0, 1, 1026, 34737, 10, 0},
			asciiParams: []byte("short|"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGeoKeys(tc.directory, tc.doubleParams, tc.asciiParams)
			assert.Error(t, err)
		})
	}
}

func TestParsedGeoKeysProjectedPixelIsArea(t *testing.T) {
	geographic := &ParsedGeoKeys{
		Params: map[GeoKey]int{
			GeoKeyGTModelType:  ModelTypeGeographic,
			GeoKeyGTRasterType: RasterPixelIsArea,
		},
	}
	assert.False(t, geographic.ProjectedPixelIsArea())
	pixelIsPoint := &ParsedGeoKeys{
		Params: map[GeoKey]int{
			GeoKeyGTModelType:  ModelTypeProjected,
			GeoKeyGTRasterType: RasterPixelIsPoint,
		},
	}
	assert.False(t, pixelIsPoint.ProjectedPixelIsArea())
}
