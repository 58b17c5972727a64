package encoding

import (
	"os"
	"strconv"
)

const renderDevice = "/dev/dri/renderD128"

var statDevice = os.Stat

// hardwareAvailable reports whether the VAAPI render node exists.
func hardwareAvailable() bool {
	_, err := statDevice(renderDevice)
	return err == nil
}

// buildArgs assembles the full ffmpeg invocation for one job. The hardware
// variant decodes in software and uploads frames to the VAAPI device, which
// works regardless of the input codec's hardware decode support; quality
// maps to -qp there since VAAPI encoders have no CRF mode. Progress is
// streamed machine-readably to stdout and the output is overwritten
// unconditionally.
func buildArgs(settings Settings, inputPath, outputPath string, hardware bool) []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	if hardware {
		args = append(args, "-vaapi_device", renderDevice)
	}
	args = append(args, "-i", inputPath)

	if hardware {
		args = append(args,
			"-vf", "format=nv12,hwupload",
			"-c:v", settings.HardwareEncoder(),
			"-qp", strconv.Itoa(settings.Quality),
		)
	} else {
		args = append(args,
			"-c:v", settings.SoftwareEncoder(),
			"-preset", settings.Preset,
			"-crf", strconv.Itoa(settings.Quality),
		)
	}
	if settings.Codec == CodecHEVC {
		// hvc1 instead of hev1 so QuickTime-family players accept the track.
		args = append(args, "-tag:v", "hvc1")
	}

	if settings.AudioPassthrough {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}

	args = append(args, "-progress", "pipe:1", outputPath)
	return args
}
