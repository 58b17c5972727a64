package encoding

import (
	"testing"

	"vise/internal/config"
)

func defaultConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func TestSettingsFromConfigDefaults(t *testing.T) {
	cfg := defaultConfig()
	settings := SettingsFromConfig(cfg)
	if settings.Codec != CodecHEVC {
		t.Fatalf("expected hevc default, got %q", settings.Codec)
	}
	if settings.Preset != "medium" {
		t.Fatalf("expected medium preset, got %q", settings.Preset)
	}
	if settings.Quality != cfg.Compression.Quality {
		t.Fatalf("quality = %d, want %d", settings.Quality, cfg.Compression.Quality)
	}
	if !settings.AudioPassthrough {
		t.Fatal("expected audio passthrough on by default")
	}
}

func TestSettingsFromConfigNormalizesCodec(t *testing.T) {
	cfg := defaultConfig()
	cfg.Compression.Codec = " H264 "
	settings := SettingsFromConfig(cfg)
	if settings.Codec != CodecH264 {
		t.Fatalf("expected h264, got %q", settings.Codec)
	}
}

func TestSettingsFromConfigUnknownCodecFallsBack(t *testing.T) {
	cfg := defaultConfig()
	cfg.Compression.Codec = "av2"
	settings := SettingsFromConfig(cfg)
	if settings.Codec != CodecHEVC {
		t.Fatalf("expected hevc fallback, got %q", settings.Codec)
	}
}

func TestSettingsQualityClamped(t *testing.T) {
	cfg := defaultConfig()
	cfg.Compression.Quality = 99
	if got := SettingsFromConfig(cfg).Quality; got != maxQuality {
		t.Fatalf("quality = %d, want %d", got, maxQuality)
	}
	cfg.Compression.Quality = -4
	if got := SettingsFromConfig(cfg).Quality; got != minQuality {
		t.Fatalf("quality = %d, want %d", got, minQuality)
	}
}

func TestWithQuality(t *testing.T) {
	base := SettingsFromConfig(defaultConfig())
	adjusted := base.WithQuality(18)
	if adjusted.Quality != 18 {
		t.Fatalf("quality = %d, want 18", adjusted.Quality)
	}
	if base.Quality != defaultConfig().Compression.Quality {
		t.Fatal("WithQuality mutated the receiver")
	}
	if clamped := base.WithQuality(200); clamped.Quality != maxQuality {
		t.Fatalf("quality = %d, want %d", clamped.Quality, maxQuality)
	}
}

func TestEncoderNames(t *testing.T) {
	hevc := Settings{Codec: CodecHEVC}
	if got := hevc.SoftwareEncoder(); got != "libx265" {
		t.Fatalf("software encoder = %q", got)
	}
	if got := hevc.HardwareEncoder(); got != "hevc_vaapi" {
		t.Fatalf("hardware encoder = %q", got)
	}
	h264 := Settings{Codec: CodecH264}
	if got := h264.SoftwareEncoder(); got != "libx264" {
		t.Fatalf("software encoder = %q", got)
	}
	if got := h264.HardwareEncoder(); got != "h264_vaapi" {
		t.Fatalf("hardware encoder = %q", got)
	}
}
