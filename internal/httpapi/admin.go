package httpapi

import (
	"net/http"
	"strings"

	"llmgate/pkg/types"
)

func (a *api) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	var spec types.LoadModelRequest
	if !decodeJSON(w, r, &spec) {
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	st, err := a.svc.LoadModel(ctx, spec)
	if err != nil {
		status := a.writeServiceError(w, err)
		zlog.Warn().Str("model", spec.Name).Int("status", status).Err(err).Msg("model load failed")
		return
	}
	zlog.Info().Str("model", st.Name).Str("endpoint", st.Endpoint).Msg("model loaded")
	writeJSON(w, st)
}

func (a *api) handleUnloadModel(w http.ResponseWriter, r *http.Request) {
	var req types.UnloadModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	state, err := a.svc.UnloadModel(name)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	zlog.Info().Str("model", name).Str("state", state).Msg("model unload requested")
	writeJSON(w, types.UnloadModelResponse{Name: name, State: state})
}
