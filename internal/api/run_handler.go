package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/orchestrator"
)

// RunStep синхронно выполняет workflow шага.
// POST /api/v1/steps/{step}/runs
//
// 201 — контейнер запущен, 200 с success=false — workflow упал после
// создания записей, 400 — запрос не прошёл проверку.
func (h *Handler) RunStep(w http.ResponseWriter, r *http.Request) {
	step, err := domain.ParseStep(r.PathValue("step"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	params := req.Params()
	if err := orchestrator.Validate(step, params); err != nil {
		BadRequest(w, err.Error())
		return
	}

	res := h.workflows.Run(r.Context(), step, params)
	if !res.Success {
		h.logger.Warn("workflow failed", "step", step.String(), "error", res.Error)
		JSON(w, http.StatusOK, DataResponse{Data: RunFromResult(res)})
		return
	}

	Created(w, RunFromResult(res))
}
