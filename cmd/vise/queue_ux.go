package main

import (
	"fmt"
	"strings"

	"vise/internal/ipc"
)

// resolveJob turns a user-supplied job reference into a queue job. An exact
// ID match wins; otherwise the reference is treated as a case-insensitive
// ID prefix and must match exactly one job, so the short IDs printed by
// `vise queue list` can be pasted back into cancel, retry, and remove.
func resolveJob(client *ipc.Client, ref string) (ipc.JobView, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ipc.JobView{}, fmt.Errorf("job id is required")
	}

	if resp, err := client.QueueDescribe(ref); err == nil && resp != nil {
		return resp.Job, nil
	}

	listResp, err := client.QueueList(nil)
	if err != nil {
		return ipc.JobView{}, err
	}

	lowered := strings.ToLower(ref)
	matches := make([]ipc.JobView, 0, 1)
	for _, job := range listResp.Jobs {
		if strings.HasPrefix(strings.ToLower(job.ID), lowered) {
			matches = append(matches, job)
		}
	}

	switch len(matches) {
	case 0:
		return ipc.JobView{}, fmt.Errorf("no queue job matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return ipc.JobView{}, fmt.Errorf("job reference %q is ambiguous (%d matches); use a longer prefix", ref, len(matches))
	}
}
