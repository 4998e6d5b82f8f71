package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/twpayne/go-los"
)

func newFlagSet(config *Config, configPath *string) *flag.FlagSet {
	flagSet := flag.NewFlagSet("radar-coverage", flag.ContinueOnError)
	flagSet.StringVar(configPath, "config", *configPath, "config file")
	flagSet.StringVar(&config.Terrain.Path, "terrain", config.Terrain.Path, "terrain grid file")
	flagSet.StringVar(&config.Terrain.EUDEMPath, "eu_dem-path", config.Terrain.EUDEMPath, "path to EU DEM data")
	flagSet.Var(&config.Terrain.Bounds, "bounds", "terrain bounds minLat,minLon,maxLat,maxLon when resampling EU DEM data")
	flagSet.Float64Var(&config.Terrain.Step, "step", config.Terrain.Step, "terrain grid spacing in degrees when resampling EU DEM data")
	flagSet.StringVar(&config.Terrain.WritePath, "write-terrain", config.Terrain.WritePath, "write terrain grid file")
	flagSet.Float64Var(&config.Sensor.Lat, "lat", config.Sensor.Lat, "sensor latitude")
	flagSet.Float64Var(&config.Sensor.Lon, "lon", config.Sensor.Lon, "sensor longitude")
	flagSet.Float64Var(&config.Sensor.HeightAGLM, "height", config.Sensor.HeightAGLM, "sensor height above ground in meters")
	flagSet.Var(&config.FlightLevels, "flight-levels", "comma-separated flight levels")
	flagSet.IntVar(&config.Samples, "samples", config.Samples, "samples along each line of sight")
	flagSet.Float64Var(&config.MarginM, "margin", config.MarginM, "terrain clearance margin in meters")
	flagSet.BoolVar(&config.EarthCurvature, "earth-curvature", config.EarthCurvature, "correct for Earth curvature with a 4/3 Earth radius")
	flagSet.IntVar(&config.Concurrency, "concurrency", config.Concurrency, "rows computed concurrently, 0 for all CPUs")
	flagSet.Float64Var(&config.Statistics.RadiusKM, "radius-km", config.Statistics.RadiusKM, "also report coverage within this radius of the sensor")
	flagSet.BoolVar(&config.Statistics.LandOnly, "land-only", config.Statistics.LandOnly, "restrict radius statistics to land")
	flagSet.Var(&config.Profile.Target, "target", "print the terrain profile to target lat,lon")
	flagSet.Float64Var((*float64)(&config.Profile.FlightLevel), "target-fl", float64(config.Profile.FlightLevel), "target flight level for -target")
	flagSet.StringVar(&config.Log.Level, "log-level", config.Log.Level, "log level (debug, info, warn, error)")
	flagSet.StringVar(&config.Log.File, "log-file", config.Log.File, "log file, default stderr")
	flagSet.StringVar(&config.MetricsAddr, "metrics-addr", config.MetricsAddr, "serve Prometheus metrics on this address")
	return flagSet
}

// parseConfig parses args twice: first to find the config file, then to
// override the config file's values.
func parseConfig(args []string) (*Config, error) {
	var configPath string
	config := defaultConfig()
	if err := newFlagSet(config, &configPath).Parse(args); err != nil {
		return nil, err
	}
	if configPath == "" {
		return config, nil
	}
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := newFlagSet(config, &configPath).Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

func newLogger(logConfig LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logConfig.Level)); err != nil {
		return nil, err
	}
	var w io.Writer = os.Stderr
	if logConfig.File != "" {
		w = &lumberjack.Logger{
			Filename:   logConfig.File,
			MaxSize:    32, // MB
			MaxBackups: 1,
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})), nil
}

func loadTerrain(ctx context.Context, logger *slog.Logger, terrainConfig TerrainConfig) (*los.TerrainGrid, error) {
	switch {
	case terrainConfig.Path != "":
		file, err := os.Open(terrainConfig.Path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return los.ReadTerrainGrid(file)
	case terrainConfig.EUDEMPath != "" && !terrainConfig.Bounds.empty():
		es, err := los.NewEUDEMElevationService(os.DirFS(terrainConfig.EUDEMPath))
		if err != nil {
			return nil, err
		}
		defer es.Close()
		bounds := terrainConfig.Bounds
		lats, err := los.AxisRange(bounds.MaxLat, bounds.MinLat, -terrainConfig.Step)
		if err != nil {
			return nil, err
		}
		lons, err := los.AxisRange(bounds.MinLon, bounds.MaxLon, terrainConfig.Step)
		if err != nil {
			return nil, err
		}
		logger.Info("resampling EU DEM", "rows", len(lats), "cols", len(lons))
		grid, err := los.NewTerrainGridFromDEM(ctx, es, lats, lons, los.WithDEMLogger(logger))
		if err != nil {
			return nil, err
		}
		if terrainConfig.WritePath != "" {
			if err := writeTerrain(terrainConfig.WritePath, grid); err != nil {
				return nil, err
			}
		}
		return grid, nil
	default:
		return nil, errNoTerrain
	}
}

func writeTerrain(path string, grid *los.TerrainGrid) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := los.WriteTerrainGrid(file, grid); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func printStatistics(w io.Writer, grid *los.TerrainGrid, sensor los.Sensor, statisticsConfig StatisticsConfig, coverageMaps los.CoverageMaps) error {
	var mask los.Mask
	if statisticsConfig.RadiusKM > 0 {
		mask = los.MaskWithinRadius(grid, sensor.Lat, sensor.Lon, 1000*statisticsConfig.RadiusKM)
		if statisticsConfig.LandOnly {
			var err error
			mask, err = los.CombineMasks(mask, los.MaskLand(grid))
			if err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, coverageMap := range coverageMaps {
		fmt.Fprintf(w, "%6s: %6.2f%% visible", coverageMap.FlightLevel, 100*coverageMap.Fraction())
		if mask != nil {
			cells, visible, err := coverageMap.Restrict(mask)
			if err != nil {
				return err
			}
			if cells > 0 {
				fmt.Fprintf(w, ", %6.2f%% within %gkm", 100*float64(visible)/float64(cells), statisticsConfig.RadiusKM)
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, strings.Repeat("-", 50))
	return nil
}

func printProfile(w io.Writer, generator *los.Generator, sensor los.Sensor, profileConfig ProfileConfig) error {
	altitudeM, err := los.AltitudeM(profileConfig.FlightLevel)
	if err != nil {
		return err
	}
	sensorPosition, err := generator.SensorPosition(sensor)
	if err != nil {
		return err
	}
	target := los.Position{
		Lat:  profileConfig.Target.Lat,
		Lon:  profileConfig.Target.Lon,
		AltM: altitudeM,
	}
	profile := generator.LineOfSight().Profile(sensorPosition, target)
	fmt.Fprintf(w, "distance %.0fm bearing %.1f° visible %t minimum clearance %.1fm\n",
		profile.DistanceM, profile.BearingDeg, profile.Visible, profile.MinClearance())
	for _, sample := range profile.Samples {
		if sample.Blocked {
			fmt.Fprintf(w, "blocked at %.6f,%.6f: terrain %.1fm line %.1fm\n", sample.Lat, sample.Lon, sample.TerrainM, sample.LineM)
			break
		}
	}
	return nil
}

func run() error {
	config, err := parseConfig(os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := newLogger(config.Log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if config.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(config.MetricsAddr, mux); err != nil {
				logger.Error("metrics server", "err", err)
			}
		}()
	}

	grid, err := loadTerrain(ctx, logger, config.Terrain)
	if err != nil {
		return err
	}
	minLat, minLon, maxLat, maxLon := grid.Extent()
	minElevation, maxElevation := grid.ElevationRange()
	logger.Info("loaded terrain",
		"rows", grid.Rows(),
		"cols", grid.Cols(),
		"minLat", minLat,
		"minLon", minLon,
		"maxLat", maxLat,
		"maxLon", maxLon,
		"minElevationM", minElevation,
		"maxElevationM", maxElevation)

	sensor := los.Sensor{
		Lat:        config.Sensor.Lat,
		Lon:        config.Sensor.Lon,
		HeightAGLM: config.Sensor.HeightAGLM,
	}
	if !grid.Contains(sensor.Lat, sensor.Lon) {
		logger.Warn("sensor is outside terrain grid", "lat", sensor.Lat, "lon", sensor.Lon)
	}

	options := []los.GeneratorOption{
		los.WithSamples(config.Samples),
		los.WithMargin(config.MarginM),
		los.WithLogger(logger),
		los.WithProgressFunc(func(coverageMap *los.CoverageMap, completed, total int) {
			logger.Info("progress",
				"flightLevel", coverageMap.FlightLevel.String(),
				"completed", completed,
				"total", total)
		}),
	}
	if config.Concurrency > 0 {
		options = append(options, los.WithConcurrency(config.Concurrency))
	}
	if config.EarthCurvature {
		options = append(options, los.WithEarthRadius(los.StandardEffectiveEarthRadiusM))
	}
	generator, err := los.NewGenerator(grid, options...)
	if err != nil {
		return err
	}

	if config.Profile.Target.Valid {
		return printProfile(os.Stdout, generator, sensor, config.Profile)
	}

	coverageMaps, err := generator.ComputeAllCoverageMaps(ctx, sensor, config.FlightLevels)
	if err != nil {
		return err
	}
	return printStatistics(os.Stdout, grid, sensor, config.Statistics, coverageMaps)
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
