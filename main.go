// Command pose-report replays recorded vehicle runs through a selected
// state estimator and writes trajectory reports. Runs are produced by
// cmd/tools/gen-log and stored in a sqlite database; each invocation
// picks a run, replays it through one estimator variant, persists the
// estimate history, and renders PNG plots plus an HTML chart page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/dynamics"
	"github.com/banshee-data/pose.report/internal/estimator"
	"github.com/banshee-data/pose.report/internal/live"
	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/observe"
	"github.com/banshee-data/pose.report/internal/report"
	sqlite "github.com/banshee-data/pose.report/internal/storage/sqlite"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

var (
	dbPath        = flag.String("db", "pose_data.db", "run database path")
	runID         = flag.String("run", "", "run ID to replay (default: latest matching run)")
	vehicleName   = flag.String("vehicle", "diffdrive", "vehicle model: diffdrive or quadrotor")
	variant       = flag.String("estimator", estimator.VariantExtended, "estimator variant: oracle_observer, dead_reckoning, kalman_filter or extended_kalman_filter")
	noisy         = flag.Bool("noisy", false, "select a noisy run when picking the latest")
	configPath    = flag.String("config", "", "optional tuning config JSON")
	outDir        = flag.String("out", "reports", "report output directory")
	migrationsDir = flag.String("migrations", "migrations", "schema migrations directory")
	liveMode      = flag.Bool("live", false, "replay through the live stream collector at wall-clock pace")
)

func main() {
	flag.Parse()

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open run database: %v", err)
	}
	defer store.Close()
	if err := store.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate run database: %v", err)
	}

	veh, err := buildVehicle(*vehicleName, cfg)
	if err != nil {
		log.Fatal(err)
	}

	run, err := selectRun(store, veh, *runID, *variant, *noisy)
	if err != nil {
		log.Fatal(err)
	}
	recs, err := store.LoadRecords(run.RunID)
	if err != nil {
		log.Fatalf("failed to load records for run %s: %v", run.RunID, err)
	}
	if err := estimator.ValidateRun(veh, recs); err != nil {
		log.Fatal(err)
	}

	dt, err := estimator.SampleInterval(recs)
	if err != nil {
		log.Fatal(err)
	}
	if *liveMode {
		dt = cfg.GetDt()
	}

	filt, err := buildFilter(*variant, veh, run.Sensing, dt, cfg)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Replaying run %s: vehicle=%s sensing=%s noisy=%v samples=%d estimator=%s dt=%.3fs",
		run.RunID, run.Vehicle, run.Sensing, run.Noisy, len(recs), filt.Name(), dt)

	var ests []estimator.Estimate
	if *liveMode {
		ests, err = replayLive(filt, recs, dt)
	} else {
		ests, err = estimator.NewDriver(filt, nil).Run(recs)
	}
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	if err := store.SaveEstimates(run.RunID, filt.Name(), ests); err != nil {
		log.Fatalf("failed to persist estimates: %v", err)
	}

	dir := report.MakeOutputDir(*outDir, run.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("failed to create report directory: %v", err)
	}
	paths, err := report.WritePlots(dir, filt.Name(), veh, recs, ests)
	if err != nil {
		log.Fatalf("failed to write plots: %v", err)
	}
	chartPath, err := report.WriteChartFile(dir, filt.Name(), veh, recs, ests)
	if err != nil {
		log.Fatalf("failed to write chart page: %v", err)
	}

	log.Printf("✓ Wrote %d plots and %s for run %s", len(paths), chartPath, run.RunID)
}

// selectRun resolves the run to replay: an explicit -run ID wins, otherwise
// the latest run matching the vehicle, the variant's sensing requirement and
// the noise flag.
func selectRun(store *sqlite.Store, veh dynamics.Vehicle, id, variant string, noisy bool) (*sqlite.Run, error) {
	if id != "" {
		run, err := store.GetRun(id)
		if err != nil {
			return nil, fmt.Errorf("run %s not found: %w", id, err)
		}
		return run, nil
	}
	run, err := store.LatestRun(veh.Name(), sensingFor(variant), noisy)
	if err != nil {
		return nil, fmt.Errorf("no recorded run for vehicle=%s estimator=%s noisy=%v (record one with gen-log): %w",
			veh.Name(), variant, noisy, err)
	}
	return run, nil
}

// sensingFor returns the sensing mode a variant requires, or empty when any
// run will do. The linear filter corrects against direct position readings;
// the EKF needs range/bearing; the baselines never touch the measurement.
func sensingFor(variant string) string {
	switch variant {
	case estimator.VariantKalman:
		return "position"
	case estimator.VariantExtended:
		return "range_bearing"
	default:
		return ""
	}
}

func buildVehicle(name string, cfg *config.TuningConfig) (dynamics.Vehicle, error) {
	switch name {
	case "diffdrive":
		return &dynamics.DiffDrive{
			HalfTrack:   cfg.GetHalfTrack(),
			WheelRadius: cfg.GetWheelRadius(),
		}, nil
	case "quadrotor":
		return &dynamics.Quadrotor{
			Mass:    cfg.GetMass(),
			Inertia: cfg.GetInertia(),
			Gravity: cfg.GetGravity(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown vehicle %q", name)
	}
}

func buildFilter(variant string, veh dynamics.Vehicle, sensing string, dt float64, cfg *config.TuningConfig) (estimator.Filter, error) {
	switch variant {
	case estimator.VariantOracle:
		return estimator.Oracle{}, nil

	case estimator.VariantDeadReckoning:
		return estimator.NewDeadReckoning(veh, dt), nil

	case estimator.VariantKalman:
		dd, ok := veh.(*dynamics.DiffDrive)
		if !ok {
			return nil, fmt.Errorf("the linear filter only supports the diffdrive vehicle")
		}
		if sensing != "position" {
			return nil, fmt.Errorf("the linear filter needs a position-sensing run, got %q", sensing)
		}
		noise := overrideNoise(estimator.DefaultKalmanNoise(), cfg)
		return estimator.NewKalmanFilter(dd, cfg.GetFrozenBearing(), dt, noise)

	case estimator.VariantExtended:
		if sensing != "range_bearing" {
			return nil, fmt.Errorf("the extended filter needs a range/bearing run, got %q", sensing)
		}
		obs := buildRangeBearing(veh, cfg)
		noise := overrideNoise(estimator.DefaultEKFNoise(veh), cfg)
		return estimator.NewExtendedKalmanFilter(veh, obs, dt, noise)

	default:
		return nil, fmt.Errorf("unknown estimator variant %q", variant)
	}
}

func buildRangeBearing(veh dynamics.Vehicle, cfg *config.TuningConfig) *observe.RangeBearing {
	var rb *observe.RangeBearing
	if _, ok := veh.(*dynamics.DiffDrive); ok {
		rb = observe.NewDiffDriveRangeBearing()
	} else {
		rb = observe.NewQuadrotorRangeBearing()
	}
	if cfg.LandmarkX != nil {
		rb.LandmarkX = *cfg.LandmarkX
	}
	if cfg.LandmarkY != nil {
		rb.LandmarkY = *cfg.LandmarkY
	}
	if cfg.LandmarkOffset != nil {
		rb.Offset = *cfg.LandmarkOffset
	}
	return rb
}

// overrideNoise swaps in any diagonals the config sets, keeping the
// variant's tuned defaults for the rest.
func overrideNoise(noise estimator.NoiseConfig, cfg *config.TuningConfig) estimator.NoiseConfig {
	if cfg.ProcessNoiseDiag != nil {
		noise.ProcessDiag = cfg.ProcessNoiseDiag
	}
	if cfg.MeasurementNoiseDiag != nil {
		noise.MeasurementDiag = cfg.MeasurementNoiseDiag
	}
	if cfg.InitialCovarianceDiag != nil {
		noise.InitialDiag = cfg.InitialCovarianceDiag
	}
	return noise
}

// replayLive pushes the recorded streams into a live Collector at
// wall-clock pace and ticks the estimator on a real clock, exercising the
// same starvation-skip path a real deployment would hit.
func replayLive(filt estimator.Filter, recs []estimator.Record, dt float64) ([]estimator.Estimate, error) {
	coll := live.NewCollector(filt, nil)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	period := time.Duration(dt * float64(time.Second))
	done := make(chan error, 1)
	go func() {
		done <- coll.Run(ctx, timeutil.RealClock{}, period)
	}()

	go func() {
		defer cancel()
		for _, rec := range recs {
			select {
			case <-ctx.Done():
				return
			case <-time.After(period):
			}
			coll.PushInput(live.Sample{T: rec.T, V: rec.Input})
			coll.PushMeasurement(live.Sample{T: rec.T, V: rec.Meas})
			coll.PushTruth(live.Sample{T: rec.T, V: rec.Truth})
		}
		// Leave one extra period so the final tick can consume the tail.
		select {
		case <-ctx.Done():
		case <-time.After(2 * period):
		}
	}()

	err := <-done
	if err != nil && err != context.Canceled {
		return nil, err
	}
	monitoring.Logf("live replay finished: %d estimates, %d skipped ticks", len(coll.History()), coll.Skips())
	return coll.History(), nil
}
