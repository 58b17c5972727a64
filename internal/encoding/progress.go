package encoding

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// progressEpsilon is the minimum fraction change forwarded to consumers.
// Finer-grained updates are noise for every consumer we have.
const progressEpsilon = 0.005

// Update is one throttled progress report.
type Update struct {
	Fraction  float64
	Speed     float64
	FPS       float64
	ETA       time.Duration
	Synthetic bool
}

// Percent returns the fraction scaled to 0-100.
func (u Update) Percent() float64 {
	return u.Fraction * 100
}

var (
	statsTimePattern  = regexp.MustCompile(`\btime=(\d+:\d{2}:\d{2}\.\d+)`)
	statsSpeedPattern = regexp.MustCompile(`\bspeed=\s*(\d+(?:\.\d+)?)x`)
	statsFPSPattern   = regexp.MustCompile(`\bfps=\s*(\d+(?:\.\d+)?)`)
)

// Tracker turns the encoder's raw output lines into monotonic, throttled
// progress updates against a known total duration.
//
// Two line shapes are recognized, in priority order: the machine-readable
// key=value stream requested with -progress (out_time_us preferred), and
// the human-readable status line with its time=HH:MM:SS.cc field. When the
// total duration is unknown no updates are emitted at all; callers still
// get the final synthetic 100% on success.
type Tracker struct {
	mu       sync.Mutex
	duration time.Duration
	emit     func(Update)
	stopped  bool
	reported bool
	last     float64
	speed    float64
	fps      float64
}

// NewTracker builds a tracker for one run. emit may be nil.
func NewTracker(total time.Duration, emit func(Update)) *Tracker {
	return &Tracker{duration: total, emit: emit}
}

// Consume inspects one output line and forwards progress when warranted.
func (t *Tracker) Consume(line string) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "out_time_us="):
		us, err := strconv.ParseInt(line[len("out_time_us="):], 10, 64)
		if err == nil && us >= 0 {
			t.advance(time.Duration(us) * time.Microsecond)
		}
	case strings.HasPrefix(line, "out_time_ms="):
		// Duplicates out_time_us (the unit suffix is historical); skip so
		// the same tick is not interpreted twice.
	case strings.HasPrefix(line, "out_time="):
		if clock, ok := parseClockTime(line[len("out_time="):]); ok {
			t.advance(clock)
		}
	case strings.HasPrefix(line, "speed="):
		t.setSpeed(strings.TrimSuffix(strings.TrimSpace(line[len("speed="):]), "x"))
	case strings.HasPrefix(line, "fps="):
		t.setFPS(strings.TrimSpace(line[len("fps="):]))
	default:
		m := statsTimePattern.FindStringSubmatch(line)
		if m == nil {
			return
		}
		clock, ok := parseClockTime(m[1])
		if !ok {
			return
		}
		if sm := statsSpeedPattern.FindStringSubmatch(line); sm != nil {
			t.setSpeed(sm[1])
		}
		if fm := statsFPSPattern.FindStringSubmatch(line); fm != nil {
			t.setFPS(fm[1])
		}
		t.advance(clock)
	}
}

// Stop suppresses all further updates, including the synthetic final one.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// FinishSuccess emits the final 100% update if the stream ended short of
// it. The encoder's last tick usually lands just under the full duration,
// so a clean exit deserves a complete bar.
func (t *Tracker) FinishSuccess() {
	t.mu.Lock()
	if t.stopped || t.emit == nil || (t.reported && t.last >= 1) {
		t.mu.Unlock()
		return
	}
	t.last = 1
	t.reported = true
	update := Update{Fraction: 1, Speed: t.speed, FPS: t.fps, Synthetic: true}
	emit := t.emit
	t.mu.Unlock()
	emit(update)
}

// Last reports the most recently emitted fraction.
func (t *Tracker) Last() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.reported
}

func (t *Tracker) advance(elapsed time.Duration) {
	t.mu.Lock()
	if t.stopped || t.emit == nil || t.duration <= 0 {
		t.mu.Unlock()
		return
	}
	fraction := float64(elapsed) / float64(t.duration)
	if fraction < 0 {
		t.mu.Unlock()
		return
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction < t.last || (t.reported && fraction-t.last < progressEpsilon) {
		t.mu.Unlock()
		return
	}
	t.last = fraction
	t.reported = true
	update := Update{Fraction: fraction, Speed: t.speed, FPS: t.fps}
	if t.speed > 0 && fraction < 1 {
		remaining := time.Duration(float64(t.duration) * (1 - fraction))
		update.ETA = time.Duration(float64(remaining) / t.speed)
	}
	emit := t.emit
	t.mu.Unlock()
	emit(update)
}

func (t *Tracker) setSpeed(value string) {
	speed, err := strconv.ParseFloat(value, 64)
	if err != nil || speed <= 0 {
		return
	}
	t.mu.Lock()
	t.speed = speed
	t.mu.Unlock()
}

func (t *Tracker) setFPS(value string) {
	fps, err := strconv.ParseFloat(value, 64)
	if err != nil || fps <= 0 {
		return
	}
	t.mu.Lock()
	t.fps = fps
	t.mu.Unlock()
}

// parseClockTime parses "HH:MM:SS.frac" clocks with any fractional width.
func parseClockTime(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" || strings.HasPrefix(value, "-") {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second)), true
}
