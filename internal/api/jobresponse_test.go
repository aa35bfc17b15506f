package api

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbgw/gatewayd/internal/gwtypes"
)

func TestNewJobResponse_EmbedsResultUnderCap(t *testing.T) {
	job := gwtypes.JobSlot{
		ID:         1,
		Type:       gwtypes.JobReboot,
		State:      gwtypes.JobSucceeded,
		CreatedMs:  10,
		UpdatedMs:  20,
		HasResult:  true,
		ResultJSON: `{"reboot_delay_ms":1000}`,
	}

	resp := newJobResponse(job)
	assert.Equal(t, uint32(1), resp.JobID)
	assert.Equal(t, "reboot", resp.Type)
	assert.Equal(t, "succeeded", resp.State)
	assert.True(t, resp.Done)
	assert.Empty(t, resp.Error)
	require.NotNil(t, resp.Result)
	assert.JSONEq(t, `{"reboot_delay_ms":1000}`, string(resp.Result))
}

func TestNewJobResponse_TruncatesResultOverCap(t *testing.T) {
	oversized := `{"padding":"` + strings.Repeat("x", 600) + `"}`
	job := gwtypes.JobSlot{
		ID:         2,
		Type:       gwtypes.JobReboot, // cap is 512
		State:      gwtypes.JobSucceeded,
		HasResult:  true,
		ResultJSON: oversized,
	}

	resp := newJobResponse(job)
	require.NotNil(t, resp.Result)

	var notice truncationNotice
	require.NoError(t, json.Unmarshal(resp.Result, &notice))
	assert.True(t, notice.Truncated)
	assert.Equal(t, len(oversized), notice.OriginalLen)
	assert.Equal(t, 512, notice.MaxLen)
}

func TestNewJobResponse_FailedJobCarriesErrorCode(t *testing.T) {
	job := gwtypes.JobSlot{
		ID:      3,
		Type:    gwtypes.JobWifiScan,
		State:   gwtypes.JobFailed,
		ErrCode: "invalid_state",
	}

	resp := newJobResponse(job)
	assert.True(t, resp.Done)
	assert.Equal(t, "invalid_state", resp.Error)
	assert.Nil(t, resp.Result)
}

func TestNewJobResponse_QueuedJobHasNoResultOrError(t *testing.T) {
	job := gwtypes.JobSlot{ID: 4, Type: gwtypes.JobLqiRefresh, State: gwtypes.JobQueued}

	resp := newJobResponse(job)
	assert.False(t, resp.Done)
	assert.Empty(t, resp.Error)
	assert.Nil(t, resp.Result)
}
