package encoding

import (
	"strings"

	"vise/internal/config"
)

// Codec identifies a supported target video codec.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecHEVC Codec = "hevc"
)

// Quality bounds per codec. Both supported codecs use the 0-51 CRF scale.
const (
	minQuality = 0
	maxQuality = 51
)

// Settings is an immutable snapshot of the compression parameters for one
// job invocation. Build it with SettingsFromConfig so the quality factor is
// always clamped into the codec's supported range; out-of-range values are
// corrected, never accepted as-is.
type Settings struct {
	Codec            Codec
	Quality          int
	Preset           string
	HardwareAccel    bool
	AudioPassthrough bool
}

// SettingsFromConfig derives a clamped settings snapshot from configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	codec := Codec(strings.ToLower(strings.TrimSpace(cfg.Compression.Codec)))
	if codec != CodecH264 && codec != CodecHEVC {
		codec = CodecHEVC
	}
	preset := strings.ToLower(strings.TrimSpace(cfg.Compression.Preset))
	if preset == "" {
		preset = "medium"
	}
	return Settings{
		Codec:            codec,
		Quality:          clampQuality(cfg.Compression.Quality),
		Preset:           preset,
		HardwareAccel:    cfg.Compression.HardwareAccel,
		AudioPassthrough: cfg.Compression.AudioPassthrough,
	}
}

// WithQuality returns a copy with the quality factor clamped into range.
func (s Settings) WithQuality(quality int) Settings {
	s.Quality = clampQuality(quality)
	return s
}

// SoftwareEncoder names the libavcodec software encoder for the codec.
func (s Settings) SoftwareEncoder() string {
	if s.Codec == CodecH264 {
		return "libx264"
	}
	return "libx265"
}

// HardwareEncoder names the VAAPI encoder for the codec.
func (s Settings) HardwareEncoder() string {
	if s.Codec == CodecH264 {
		return "h264_vaapi"
	}
	return "hevc_vaapi"
}

func clampQuality(quality int) int {
	if quality < minQuality {
		return minQuality
	}
	if quality > maxQuality {
		return maxQuality
	}
	return quality
}
