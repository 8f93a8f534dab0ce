package manager

import (
	"time"

	"llmgate/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	snap := m.metrics.Snapshot()
	resp := types.StatusResponse{
		Models:          m.ListModels(),
		RequestsTotal:   snap.RequestsTotal,
		TokensTotal:     snap.TokensTotal,
		ActiveRequests:  snap.ActiveRequests,
		ModelsLoaded:    snap.ModelsLoaded,
		AdmissionPolicy: string(m.policy),
		UptimeSeconds:   int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix:  time.Now().Unix(),
	}
	for _, ms := range resp.Models {
		if ms.State == string(StateDraining) {
			resp.DrainingCount++
		}
	}
	return resp
}
