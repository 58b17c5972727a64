package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"vise/internal/ipc"
)

var queueStatusOrder = []string{"pending", "compressing", "completed", "failed"}

func buildQueueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(queueStatusOrder)+1)
	for _, status := range queueStatusOrder {
		rows = append(rows, []string{formatStatusLabel(status), fmt.Sprintf("%d", stats[status])})
	}
	rows = append(rows, []string{"Total", fmt.Sprintf("%d", stats["total"])})
	return rows
}

// buildQueueListRows renders jobs in the order the server reports them,
// which is submission order and therefore the order they will compress.
func buildQueueListRows(jobs []ipc.JobView) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortID(job.ID),
			jobTitle(job),
			formatStatusLabel(job.Status),
			formatProgress(job),
			formatBytes(job.OriginalBytes),
			formatSavings(job),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func buildJobDetailRows(job ipc.JobView) [][]string {
	rows := [][]string{
		{"ID", job.ID},
		{"Title", jobTitle(job)},
		{"Source", job.SourcePath},
	}
	if job.OutputPath != "" {
		rows = append(rows, []string{"Output", job.OutputPath})
	}
	rows = append(rows,
		[]string{"Status", formatStatusLabel(job.Status)},
		[]string{"Progress", formatProgress(job)},
		[]string{"Encoder", formatEncoder(job)},
		[]string{"Size", formatBytes(job.OriginalBytes)},
	)
	if job.CompressedBytes > 0 {
		rows = append(rows,
			[]string{"Compressed", formatBytes(job.CompressedBytes)},
			[]string{"Saved", formatSavings(job)},
		)
	}
	if job.ErrorMessage != "" {
		detail := job.ErrorMessage
		if job.ErrorKind != "" {
			detail = fmt.Sprintf("%s: %s", job.ErrorKind, job.ErrorMessage)
		}
		rows = append(rows, []string{"Error", detail})
	}
	rows = append(rows, []string{"Created", formatDisplayTime(job.CreatedAt)})
	if job.StartedAt != "" {
		rows = append(rows, []string{"Started", formatDisplayTime(job.StartedAt)})
	}
	if job.FinishedAt != "" {
		rows = append(rows, []string{"Finished", formatDisplayTime(job.FinishedAt)})
	}
	return rows
}

func buildHistoryRows(runs []ipc.RunView) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		title := strings.TrimSpace(run.DisplayTitle)
		if title == "" {
			title = filepath.Base(run.SourcePath)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", run.ID),
			title,
			formatStatusLabel(run.Outcome),
			formatRunSavings(run),
			formatElapsedSeconds(run.ElapsedSeconds),
			formatDisplayTime(run.FinishedAt),
		})
	}
	return rows
}

func jobTitle(job ipc.JobView) string {
	title := strings.TrimSpace(job.DisplayTitle)
	if title != "" {
		return title
	}
	source := strings.TrimSpace(job.SourcePath)
	if source != "" {
		return filepath.Base(source)
	}
	return "Unknown"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	lower := strings.ToLower(status)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func formatProgress(job ipc.JobView) string {
	switch job.Status {
	case "compressing":
		return fmt.Sprintf("%.1f%%", job.ProgressPercent)
	case "completed":
		return "100%"
	default:
		return "-"
	}
}

func formatSavings(job ipc.JobView) string {
	if job.Status != "completed" {
		return "-"
	}
	if job.OutputLarger {
		return "larger"
	}
	return fmt.Sprintf("%.1f%%", job.ReductionPercent)
}

func formatRunSavings(run ipc.RunView) string {
	if run.Outcome != "completed" {
		return "-"
	}
	if run.OutputLarger {
		return "larger"
	}
	return fmt.Sprintf("%.1f%%", run.ReductionPercent)
}

func formatEncoder(job ipc.JobView) string {
	parts := []string{job.Codec, fmt.Sprintf("crf %d", job.Quality)}
	if job.Preset != "" {
		parts = append(parts, fmt.Sprintf("preset %s", job.Preset))
	}
	if job.HardwareAccel {
		parts = append(parts, "hardware")
	}
	return strings.Join(parts, ", ")
}

func formatBytes(value int64) string {
	if value <= 0 {
		return "-"
	}
	const unit = 1024
	if value < unit {
		return fmt.Sprintf("%d B", value)
	}
	div, exp := int64(unit), 0
	for n := value / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(value)/float64(div), "KMGTPE"[exp])
}

func formatElapsedSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second))
	return d.Round(time.Second).String()
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.UTC().Format("2006-01-02 15:04")
}
