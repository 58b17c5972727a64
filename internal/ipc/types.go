package ipc

import (
	"time"

	"vise/internal/daemon"
	"vise/internal/history"
	"vise/internal/queue"
)

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops background processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// BatchErrorView is one failed job inside a drain summary.
type BatchErrorView struct {
	JobID        string `json:"job_id"`
	SourcePath   string `json:"source_path"`
	DisplayTitle string `json:"display_title"`
	Kind         string `json:"kind"`
	Message      string `json:"message"`
}

// DrainView summarizes the most recently finished queue drain.
type DrainView struct {
	Started   string           `json:"started"`
	Finished  string           `json:"finished"`
	Processed int              `json:"processed"`
	Errors    []BatchErrorView `json:"errors,omitempty"`
}

// StatusResponse represents combined daemon and queue status information.
type StatusResponse struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	QueueStats    map[string]int     `json:"queue_stats"`
	Queued        int                `json:"queued"`
	ActiveJobID   string             `json:"active_job_id,omitempty"`
	ActiveJob     *JobView           `json:"active_job,omitempty"`
	LastDrain     *DrainView         `json:"last_drain,omitempty"`
	WatchDirs     []string           `json:"watch_dirs,omitempty"`
	Dependencies  []DependencyStatus `json:"dependencies,omitempty"`
	HistoryDBPath string             `json:"history_db_path,omitempty"`
	LockPath      string             `json:"lock_path"`
	SocketPath    string             `json:"socket_path"`
}

// JobView is the wire representation of a queue job.
type JobView struct {
	ID               string  `json:"id"`
	SourcePath       string  `json:"source_path"`
	DisplayTitle     string  `json:"display_title"`
	OutputPath       string  `json:"output_path,omitempty"`
	Status           string  `json:"status"`
	ProgressPercent  float64 `json:"progress_percent"`
	OriginalBytes    int64   `json:"original_bytes"`
	CompressedBytes  int64   `json:"compressed_bytes,omitempty"`
	ReductionPercent float64 `json:"reduction_percent,omitempty"`
	OutputLarger     bool    `json:"output_larger,omitempty"`
	HardwareUsed     bool    `json:"hardware_used,omitempty"`
	ErrorKind        string  `json:"error_kind,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	Codec            string  `json:"codec"`
	Quality          int     `json:"quality"`
	Preset           string  `json:"preset"`
	HardwareAccel    bool    `json:"hardware_accel"`
	CreatedAt        string  `json:"created_at,omitempty"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
	StartedAt        string  `json:"started_at,omitempty"`
	FinishedAt       string  `json:"finished_at,omitempty"`
}

// FromJob converts a queue job snapshot into its wire view.
func FromJob(job queue.Job) JobView {
	return JobView{
		ID:               job.ID,
		SourcePath:       job.SourcePath,
		DisplayTitle:     job.DisplayTitle,
		OutputPath:       job.OutputPath,
		Status:           string(job.Status),
		ProgressPercent:  job.ProgressPercent,
		OriginalBytes:    job.OriginalBytes,
		CompressedBytes:  job.CompressedBytes,
		ReductionPercent: job.ReductionPercent,
		OutputLarger:     job.OutputLarger,
		HardwareUsed:     job.HardwareUsed,
		ErrorKind:        job.ErrorKind,
		ErrorMessage:     job.ErrorMessage,
		Codec:            string(job.Settings.Codec),
		Quality:          job.Settings.Quality,
		Preset:           job.Settings.Preset,
		HardwareAccel:    job.Settings.HardwareAccel,
		CreatedAt:        formatTime(job.CreatedAt),
		UpdatedAt:        formatTime(job.UpdatedAt),
		StartedAt:        formatTime(job.StartedAt),
		FinishedAt:       formatTime(job.FinishedAt),
	}
}

// RunView is the wire representation of a finished-run ledger entry.
type RunView struct {
	ID               int64   `json:"id"`
	JobID            string  `json:"job_id"`
	SourcePath       string  `json:"source_path"`
	DisplayTitle     string  `json:"display_title"`
	OutputPath       string  `json:"output_path,omitempty"`
	Outcome          string  `json:"outcome"`
	ErrorKind        string  `json:"error_kind,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	OriginalBytes    int64   `json:"original_bytes"`
	CompressedBytes  int64   `json:"compressed_bytes,omitempty"`
	ReductionPercent float64 `json:"reduction_percent,omitempty"`
	OutputLarger     bool    `json:"output_larger,omitempty"`
	HardwareUsed     bool    `json:"hardware_used,omitempty"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	FinishedAt       string  `json:"finished_at"`
}

// FromRun converts a ledger entry into its wire view.
func FromRun(run history.Run) RunView {
	return RunView{
		ID:               run.ID,
		JobID:            run.JobID,
		SourcePath:       run.SourcePath,
		DisplayTitle:     run.DisplayTitle,
		OutputPath:       run.OutputPath,
		Outcome:          string(run.Outcome),
		ErrorKind:        run.ErrorKind,
		ErrorMessage:     run.ErrorMessage,
		OriginalBytes:    run.OriginalBytes,
		CompressedBytes:  run.CompressedBytes,
		ReductionPercent: run.ReductionPercent,
		OutputLarger:     run.OutputLarger,
		HardwareUsed:     run.HardwareUsed,
		ElapsedSeconds:   run.Elapsed.Seconds(),
		FinishedAt:       formatTime(run.FinishedAt),
	}
}

func fromDrain(summary *queue.DrainSummary) *DrainView {
	if summary == nil {
		return nil
	}
	view := &DrainView{
		Started:   formatTime(summary.Started),
		Finished:  formatTime(summary.Finished),
		Processed: summary.Processed,
	}
	for _, batchErr := range summary.Errors {
		view.Errors = append(view.Errors, BatchErrorView{
			JobID:        batchErr.JobID,
			SourcePath:   batchErr.SourcePath,
			DisplayTitle: batchErr.DisplayTitle,
			Kind:         batchErr.Kind,
			Message:      batchErr.Message,
		})
	}
	return view
}

func fromStatus(st daemon.Status) StatusResponse {
	resp := StatusResponse{
		Running: st.Running,
		PID:     st.PID,
		QueueStats: map[string]int{
			"total":       st.Queue.Total,
			"pending":     st.Queue.Pending,
			"compressing": st.Queue.Compressing,
			"completed":   st.Queue.Completed,
			"failed":      st.Queue.Failed,
		},
		Queued:        st.Queue.Queued,
		ActiveJobID:   st.Queue.ActiveJobID,
		LastDrain:     fromDrain(st.LastDrain),
		WatchDirs:     st.WatchDirs,
		HistoryDBPath: st.HistoryDBPath,
		LockPath:      st.LockFilePath,
		SocketPath:    st.SocketPath,
	}
	for _, dep := range st.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return resp
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

// QueueAddRequest queues one file for compression.
type QueueAddRequest struct {
	Path string `json:"path"`
}

// QueueAddResponse carries the created job.
type QueueAddResponse struct {
	Job JobView `json:"job"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// QueueListResponse contains queue entries in insertion order.
type QueueListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// QueueDescribeRequest fetches a single job by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a single job.
type QueueDescribeResponse struct {
	Job JobView `json:"job"`
}

// CompressAllRequest queues every pending job.
type CompressAllRequest struct{}

// CompressAllResponse reports how many jobs were queued.
type CompressAllResponse struct {
	Queued int `json:"queued"`
}

// CancelAllRequest clears the waiting queue and interrupts the active job.
type CancelAllRequest struct{}

// CancelAllResponse acknowledges the cancellation request.
type CancelAllResponse struct {
	Requested bool `json:"requested"`
}

// QueueCancelRequest cancels one job by id.
type QueueCancelRequest struct {
	ID string `json:"id"`
}

// QueueCancelResponse acknowledges the cancellation request.
type QueueCancelResponse struct {
	Requested bool `json:"requested"`
}

// QueueRetryRequest retries failed jobs. An empty id retries all of them.
type QueueRetryRequest struct {
	ID string `json:"id,omitempty"`
}

// QueueRetryResponse reports how many jobs were re-queued.
type QueueRetryResponse struct {
	Updated int `json:"updated"`
}

// QueueRemoveRequest removes one job by id.
type QueueRemoveRequest struct {
	ID string `json:"id"`
}

// QueueRemoveResponse acknowledges the removal.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueClearRequest removes finished jobs.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// HistoryListRequest fetches finished runs, newest first.
type HistoryListRequest struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryListResponse contains ledger entries.
type HistoryListResponse struct {
	Runs []RunView `json:"runs"`
}

// HistoryStatsRequest aggregates the ledger.
type HistoryStatsRequest struct{}

// HistoryStatsResponse reports ledger totals.
type HistoryStatsResponse struct {
	Total      int   `json:"total"`
	Completed  int   `json:"completed"`
	Failed     int   `json:"failed"`
	BytesSaved int64 `json:"bytes_saved"`
}

// HistoryClearRequest empties the ledger.
type HistoryClearRequest struct{}

// HistoryClearResponse reports number of removed entries.
type HistoryClearResponse struct {
	Removed int64 `json:"removed"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
