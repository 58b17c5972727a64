package encoding

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vise/internal/config"
	"vise/internal/fileutil"
	"vise/internal/logging"
	"vise/internal/media/probe"
	"vise/internal/proc"
	"vise/internal/services"
)

// Request describes one compression job invocation.
type Request struct {
	JobID      string
	InputPath  string
	OutputPath string
	Settings   Settings
	OnProgress func(Update)
}

// Result summarizes a completed compression run.
type Result struct {
	InputPath        string
	OutputPath       string
	InputBytes       int64
	OutputBytes      int64
	Elapsed          time.Duration
	ReductionPercent float64
	OutputLarger     bool
	HardwareUsed     bool
	Info             probe.VideoInfo
}

// Engine runs compression jobs against the configured encoder.
type Engine struct {
	cfg    *config.Config
	prober *probe.Prober
	logger *slog.Logger
}

// New builds an Engine sharing the given prober's metadata cache.
func New(cfg *config.Config, prober *probe.Prober, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		prober: prober,
		logger: logging.NewComponentLogger(logger, "encoding"),
	}
}

// Compress probes the input, runs the encoder, and reports the outcome.
// Cancellation arrives through ctx; the supervised process is then walked
// through the termination ladder and the returned error is classified
// cancelled. A failed hardware attempt falls back to the software encoder
// once before the job is declared failed.
func (e *Engine) Compress(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	if req.JobID != "" {
		ctx = services.WithJobID(ctx, req.JobID)
	}
	logger := logging.WithContext(ctx, e.logger).With(
		logging.String(logging.FieldFile, filepath.Base(req.InputPath)))

	srcInfo, err := fileutil.CheckSource(req.InputPath)
	if err != nil {
		return Result{}, err
	}

	info, err := e.prober.Probe(ctx, req.InputPath)
	if err != nil {
		return Result{}, err
	}

	outputPath := strings.TrimSpace(req.OutputPath)
	if outputPath == "" {
		outputPath, err = fileutil.UniqueOutputPath(req.InputPath, e.cfg.Paths.OutputDir, e.cfg.Compression.OutputSuffix)
		if err != nil {
			return Result{}, err
		}
	}
	outputDir := filepath.Dir(outputPath)
	if err := fileutil.EnsureOutputDir(outputDir); err != nil {
		return Result{}, err
	}
	if err := fileutil.CheckFreeSpace(outputDir, srcInfo.Size(), e.cfg.Compression.MinFreeSpaceMiB); err != nil {
		return Result{}, err
	}

	hardware := req.Settings.HardwareAccel && hardwareAvailable()
	if req.Settings.HardwareAccel && !hardware {
		logger.Warn("render device missing, using software encoder",
			logging.String("encoder", req.Settings.SoftwareEncoder()))
	}

	logger.Info("compression started",
		logging.String("codec", string(req.Settings.Codec)),
		logging.Int("quality", req.Settings.Quality),
		logging.String("preset", req.Settings.Preset),
		logging.Bool("hardware_accel", hardware),
		logging.String("video_codec", info.VideoCodec),
		logging.String("resolution", info.Resolution()),
		logging.Duration("duration", info.Duration),
		logging.Int64("input_bytes", srcInfo.Size()),
		logging.String("output", filepath.Base(outputPath)))

	err = e.run(ctx, req, info, outputPath, hardware, logger)
	if err != nil && hardware && !services.IsCancelled(err) && ctx.Err() == nil {
		logger.Warn("hardware encode failed, retrying with software encoder",
			logging.String("encoder", req.Settings.SoftwareEncoder()),
			logging.Error(err))
		removeArtifact(outputPath)
		hardware = false
		err = e.run(ctx, req, info, outputPath, false, logger)
	}
	if err != nil {
		removeArtifact(outputPath)
		return Result{}, err
	}

	elapsed := time.Since(started)
	outputBytes := int64(0)
	if outInfo, statErr := os.Stat(outputPath); statErr == nil {
		outputBytes = outInfo.Size()
	}
	result := Result{
		InputPath:    req.InputPath,
		OutputPath:   outputPath,
		InputBytes:   srcInfo.Size(),
		OutputBytes:  outputBytes,
		Elapsed:      elapsed,
		OutputLarger: outputBytes > srcInfo.Size(),
		HardwareUsed: hardware,
		Info:         info,
	}
	if srcInfo.Size() > 0 && outputBytes > 0 {
		result.ReductionPercent = (1 - float64(outputBytes)/float64(srcInfo.Size())) * 100
	}

	logger.Info("compression completed",
		logging.Int64("input_bytes", result.InputBytes),
		logging.Int64("output_bytes", result.OutputBytes),
		logging.Float64("reduction_percent", result.ReductionPercent),
		logging.Duration("elapsed", elapsed))
	if result.OutputLarger {
		logger.Warn("compressed file larger than source",
			logging.Bool("output_larger", true),
			logging.Int64("input_bytes", result.InputBytes),
			logging.Int64("output_bytes", result.OutputBytes))
	}
	return result, nil
}

// run supervises a single encoder invocation through to resolution.
func (e *Engine) run(ctx context.Context, req Request, info probe.VideoInfo, outputPath string, hardware bool, logger *slog.Logger) error {
	sampler := logging.NewProgressSampler(5)
	tracker := NewTracker(info.Duration, func(update Update) {
		if req.OnProgress != nil {
			req.OnProgress(update)
		}
		if sampler.ShouldLog(update.Percent()) {
			attrs := []logging.Attr{logging.Float64(logging.FieldProgressPercent, update.Percent())}
			if update.ETA > 0 {
				attrs = append(attrs, logging.Duration("eta", update.ETA))
			}
			if update.Speed > 0 {
				attrs = append(attrs, logging.Float64("speed", update.Speed))
			}
			if update.FPS > 0 {
				attrs = append(attrs, logging.Float64("fps", update.FPS))
			}
			logger.Info("compression progress", logging.Args(attrs...)...)
		}
	})

	handle, err := proc.Start(proc.Command{
		Binary: e.cfg.FFmpegBinary(),
		Args:   buildArgs(req.Settings, req.InputPath, outputPath, hardware),
	}, tracker.Consume, logger)
	if err != nil {
		return err
	}

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		select {
		case <-ctx.Done():
			tracker.Stop()
			handle.Cancel()
		case <-handle.Done():
		}
	}()

	result := handle.Wait()
	<-relayDone

	switch result.Outcome {
	case proc.OutcomeSuccess:
		tracker.FinishSuccess()
		return nil
	default:
		tracker.Stop()
		return result.Err
	}
}

// removeArtifact discards a partial output file. The path was chosen fresh
// for this run, so nothing pre-existing can be lost.
func removeArtifact(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return
	}
}
