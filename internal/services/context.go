package services

import "context"

type contextKey string

const jobIDKey contextKey = "vise-job-id"

// WithJobID annotates ctx with the queue job identifier so downstream
// components can report which job produced a log line or error.
func WithJobID(ctx context.Context, jobID string) context.Context {
	if jobID == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobIDFromContext returns the job identifier stored in ctx, if any.
func JobIDFromContext(ctx context.Context) (string, bool) {
	jobID, ok := ctx.Value(jobIDKey).(string)
	if !ok || jobID == "" {
		return "", false
	}
	return jobID, true
}
