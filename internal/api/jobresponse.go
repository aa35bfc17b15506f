package api

import (
	"encoding/json"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/gwtypes"
)

// newJobResponse shapes a job slot into the GET /jobs/:id wire contract.
// Result is the slot's stored ResultJSON embedded verbatim, unless it
// exceeds the per-job-type cap in config.JobResultCaps, in which case a
// truncationNotice takes its place instead of the oversized payload.
func newJobResponse(job gwtypes.JobSlot) JobResponse {
	resp := JobResponse{
		JobID:     job.ID,
		Type:      job.Type.String(),
		State:     job.State.String(),
		Done:      job.State == gwtypes.JobSucceeded || job.State == gwtypes.JobFailed,
		CreatedMs: job.CreatedMs,
		UpdatedMs: job.UpdatedMs,
	}
	if job.State == gwtypes.JobFailed {
		resp.Error = job.ErrCode
	}
	if !job.HasResult {
		return resp
	}

	if max, ok := config.JobResultCaps[job.Type.String()]; ok && len(job.ResultJSON) > max {
		notice, _ := json.Marshal(truncationNotice{Truncated: true, OriginalLen: len(job.ResultJSON), MaxLen: max})
		resp.Result = notice
		return resp
	}

	resp.Result = json.RawMessage(job.ResultJSON)
	return resp
}
