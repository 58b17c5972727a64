package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"vise/internal/config"
	"vise/internal/logging"
	"vise/internal/media/ffprobe"
	"vise/internal/services"
)

const (
	cacheCapacity    = 100
	defaultFrameRate = 30.0
)

// VideoInfo is the metadata snapshot the engine and queue operate on.
type VideoInfo struct {
	Path       string
	SizeBytes  int64
	Duration   time.Duration
	Width      int
	Height     int
	FrameRate  float64
	BitRate    int64
	VideoCodec string
	AudioCodec string
	HasAudio   bool
}

// Resolution renders the frame size as "WxH", or "unknown" when unprobed.
func (v VideoInfo) Resolution() string {
	if v.Width <= 0 || v.Height <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// DurationSeconds returns the duration in floating-point seconds.
func (v VideoInfo) DurationSeconds() float64 {
	return v.Duration.Seconds()
}

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

// Prober inspects media files, caching results per file revision.
type Prober struct {
	cfg    *config.Config
	logger *slog.Logger

	mu    sync.Mutex
	cache map[cacheKey]VideoInfo
	order []cacheKey
}

// New builds a Prober using the configured ffprobe binary and limits.
func New(cfg *config.Config, logger *slog.Logger) *Prober {
	return &Prober{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "probe"),
		cache:  make(map[cacheKey]VideoInfo, cacheCapacity),
	}
}

// Probe returns metadata for path, spawning ffprobe only on cache miss.
// A probe that exceeds the configured timeout is terminated and reported
// as invalid input.
func (p *Prober) Probe(ctx context.Context, path string) (VideoInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return VideoInfo{}, services.Wrap(services.ErrNotFound, "probe", "stat", path, err)
		}
		return VideoInfo{}, services.Wrap(services.ErrUnknown, "probe", "stat", path, err)
	}

	logger := logging.WithContext(ctx, p.logger)
	key := cacheKey{path: path, size: stat.Size(), modTime: stat.ModTime().UnixNano()}
	if info, ok := p.lookup(key); ok {
		logger.Debug("probe cache hit",
			logging.String(logging.FieldFile, path),
			logging.Bool("cache_hit", true))
		return info, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	info, err := p.inspect(probeCtx, path)
	if err != nil {
		if probeCtx.Err() != nil && ctx.Err() == nil {
			return VideoInfo{}, services.Wrap(services.ErrInvalidInput, "probe", "inspect",
				fmt.Sprintf("probe of %s timed out after %s", path, p.timeout()), probeCtx.Err())
		}
		return VideoInfo{}, err
	}
	info.Path = path
	info.SizeBytes = stat.Size()

	p.store(key, info)
	logger.Debug("probed metadata",
		logging.String(logging.FieldFile, path),
		logging.String("video_codec", info.VideoCodec),
		logging.String("resolution", info.Resolution()),
		logging.Duration("duration", info.Duration),
		logging.Float64("frame_rate", info.FrameRate),
		logging.Bool("has_audio", info.HasAudio))
	return info, nil
}

// QuickInfo returns a best-effort placeholder carrying only the file size,
// for callers that need an immediate answer without spawning a process.
func (p *Prober) QuickInfo(path string) (VideoInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return VideoInfo{}, services.Wrap(services.ErrNotFound, "probe", "stat", path, err)
		}
		return VideoInfo{}, services.Wrap(services.ErrUnknown, "probe", "stat", path, err)
	}
	return VideoInfo{Path: path, SizeBytes: stat.Size()}, nil
}

// ClearCache drops every cached result. In-flight probes are unaffected and
// re-populate the cache when they finish.
func (p *Prober) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[cacheKey]VideoInfo, cacheCapacity)
	p.order = nil
}

func (p *Prober) inspect(ctx context.Context, path string) (VideoInfo, error) {
	result, err := ffprobe.Inspect(ctx, p.cfg.FFprobeBinary(), path, p.limits())
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			logging.WithContext(ctx, p.logger).Warn("ffprobe unavailable, using encoder diagnostics",
				logging.String(logging.FieldFile, path),
				logging.Error(err))
			return p.fallbackProbe(ctx, path)
		}
		return VideoInfo{}, services.Wrap(services.ErrInvalidInput, "probe", "inspect", path, err)
	}
	return buildInfo(result)
}

func buildInfo(result ffprobe.Result) (VideoInfo, error) {
	video, ok := result.FirstVideoStream()
	if !ok {
		return VideoInfo{}, services.Wrap(services.ErrInvalidInput, "probe", "inspect",
			"no video stream found", nil)
	}

	info := VideoInfo{
		Width:      video.Width,
		Height:     video.Height,
		VideoCodec: video.CodecName,
		FrameRate:  video.FrameRate(),
		BitRate:    result.BitRate(),
	}
	if info.FrameRate <= 0 {
		info.FrameRate = defaultFrameRate
	}
	if seconds := result.DurationSeconds(); seconds > 0 {
		info.Duration = time.Duration(seconds * float64(time.Second))
	}
	if audio, ok := result.FirstAudioStream(); ok {
		info.HasAudio = true
		info.AudioCodec = audio.CodecName
	}
	return info, nil
}

func (p *Prober) lookup(key cacheKey) (VideoInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.cache[key]
	return info, ok
}

// store inserts in arrival order, evicting the oldest entry once the cache
// is full. FIFO, not LRU: hits do not refresh an entry's position.
func (p *Prober) store(key cacheKey, info VideoInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.cache[key]; exists {
		p.cache[key] = info
		return
	}
	for len(p.order) >= cacheCapacity {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.cache, oldest)
	}
	p.cache[key] = info
	p.order = append(p.order, key)
}

func (p *Prober) timeout() time.Duration {
	seconds := p.cfg.FFmpeg.ProbeTimeout
	if seconds <= 0 {
		seconds = 10
	}
	return time.Duration(seconds) * time.Second
}

func (p *Prober) limits() ffprobe.Limits {
	return ffprobe.Limits{
		AnalyzeDuration: time.Duration(p.cfg.FFmpeg.AnalyzeDurationSeconds) * time.Second,
		ProbeSizeBytes:  int64(p.cfg.FFmpeg.ProbeSizeMiB) * 1024 * 1024,
	}
}
