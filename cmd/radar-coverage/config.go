package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/twpayne/go-los"
)

// A Config is the configuration of a coverage run. Flags override values read
// from a config file.
type Config struct {
	Terrain        TerrainConfig     `yaml:"terrain"`
	Sensor         SensorConfig      `yaml:"sensor"`
	FlightLevels   flightLevelsValue `yaml:"flight_levels"`
	Samples        int               `yaml:"samples"`
	MarginM        float64           `yaml:"margin_m"`
	EarthCurvature bool              `yaml:"earth_curvature"`
	Concurrency    int               `yaml:"concurrency"`
	Statistics     StatisticsConfig  `yaml:"statistics"`
	Profile        ProfileConfig     `yaml:"profile"`
	Log            LogConfig         `yaml:"log"`
	MetricsAddr    string            `yaml:"metrics_addr"`
}

// A TerrainConfig says where terrain comes from. Either Path names a terrain
// grid file, or EUDEMPath names a directory of EU-DEM tiles that are
// resampled over Bounds with Step degrees between cells.
type TerrainConfig struct {
	Path      string      `yaml:"path"`
	EUDEMPath string      `yaml:"eu_dem_path"`
	Bounds    boundsValue `yaml:"bounds"`
	Step      float64     `yaml:"step"`
	WritePath string      `yaml:"write_path"`
}

// A SensorConfig is the sensor's position and height above ground.
type SensorConfig struct {
	Lat        float64 `yaml:"lat"`
	Lon        float64 `yaml:"lon"`
	HeightAGLM float64 `yaml:"height_agl_m"`
}

// A StatisticsConfig restricts the printed statistics to cells within
// RadiusKM of the sensor and, optionally, to land.
type StatisticsConfig struct {
	RadiusKM float64 `yaml:"radius_km"`
	LandOnly bool    `yaml:"land_only"`
}

// A ProfileConfig requests the terrain profile to a single target.
type ProfileConfig struct {
	Target      latLonValue     `yaml:"target"`
	FlightLevel los.FlightLevel `yaml:"flight_level"`
}

// A LogConfig sets the log level and an optional rotated log file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func defaultConfig() *Config {
	return &Config{
		Terrain: TerrainConfig{
			EUDEMPath: os.Getenv("EU_DEM_PATH"),
			Step:      1.0 / 1200, // DTED level 1 spacing.
		},
		FlightLevels: flightLevelsValue(los.StandardFlightLevels),
		Samples:      los.DefaultSamples,
		Log: LogConfig{
			Level: "info",
		},
	}
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// A flightLevelsValue is a comma-separated list of flight levels.
type flightLevelsValue []los.FlightLevel

func (v *flightLevelsValue) Set(s string) error {
	var flightLevels []los.FlightLevel
	for _, field := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(strings.ToUpper(field)), "FL"), 64)
		if err != nil {
			return err
		}
		flightLevels = append(flightLevels, los.FlightLevel(f))
	}
	*v = flightLevels
	return nil
}

func (v *flightLevelsValue) String() string {
	if v == nil {
		return ""
	}
	fields := make([]string, len(*v))
	for i, fl := range *v {
		fields[i] = strconv.FormatFloat(float64(fl), 'f', -1, 64)
	}
	return strings.Join(fields, ",")
}

// A latLonValue is a "lat,lon" pair.
type latLonValue struct {
	Lat   float64 `yaml:"lat"`
	Lon   float64 `yaml:"lon"`
	Valid bool    `yaml:"-"`
}

func (v *latLonValue) Set(s string) error {
	values, err := parseFloats(s, 2)
	if err != nil {
		return err
	}
	*v = latLonValue{Lat: values[0], Lon: values[1], Valid: true}
	return nil
}

func (v *latLonValue) String() string {
	if v == nil || !v.Valid {
		return ""
	}
	return fmt.Sprintf("%g,%g", v.Lat, v.Lon)
}

func (v *latLonValue) UnmarshalYAML(node *yaml.Node) error {
	type plain latLonValue
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*v = latLonValue(p)
	v.Valid = true
	return nil
}

// A boundsValue is a "minLat,minLon,maxLat,maxLon" bounding box.
type boundsValue struct {
	MinLat float64 `yaml:"min_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLat float64 `yaml:"max_lat"`
	MaxLon float64 `yaml:"max_lon"`
}

func (v *boundsValue) Set(s string) error {
	values, err := parseFloats(s, 4)
	if err != nil {
		return err
	}
	*v = boundsValue{MinLat: values[0], MinLon: values[1], MaxLat: values[2], MaxLon: values[3]}
	return nil
}

func (v *boundsValue) String() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g,%g,%g,%g", v.MinLat, v.MinLon, v.MaxLat, v.MaxLon)
}

func (v *boundsValue) empty() bool {
	return v.MinLat >= v.MaxLat || v.MinLon >= v.MaxLon
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, fmt.Errorf("%s: expected %d comma-separated values", s, n)
	}
	values := make([]float64, n)
	for i, field := range fields {
		var err error
		values[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}

var errNoTerrain = errors.New("no terrain: specify -terrain or -eu_dem-path and -bounds")
