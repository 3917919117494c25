package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
	"github.com/cleverhoods/sagecompass-sub001/internal/workflow"
	"github.com/cleverhoods/sagecompass-sub001/pkg/handlers"
	"github.com/cleverhoods/sagecompass-sub001/pkg/routes"
)

var errInvalidEvaluation = errors.New("text is required")

// evaluateRequest is the body of a guardrail evaluation. When Guardrails is
// set the text is checked against that declarative mapping instead of the
// configured policy.
type evaluateRequest struct {
	Text       string         `json:"text"`
	Guardrails map[string]any `json:"guardrails,omitempty"`
}

type evaluateResponse struct {
	Decision dto.Decision        `json:"decision"`
	Result   dto.GuardrailResult `json:"result"`
}

type guardrailsHandler struct {
	rt     *workflow.Runtime
	logger *slog.Logger
}

func newGuardrailsHandler(rt *workflow.Runtime, logger *slog.Logger) *guardrailsHandler {
	return &guardrailsHandler{
		rt:     rt,
		logger: logger.With("handler", "guardrails"),
	}
}

func (h *guardrailsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/guardrails",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.config},
			{Method: "POST", Pattern: "/evaluate", Handler: h.evaluate},
		},
	}
}

func (h *guardrailsHandler) config(w http.ResponseWriter, r *http.Request) {
	body := h.rt.Guardrails.Map()
	if h.rt.Policy != nil {
		body[guardrails.FieldPolicy] = h.rt.Policy.Name()
	}
	handlers.RespondJSON(w, http.StatusOK, body)
}

func (h *guardrailsHandler) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, err)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidEvaluation)
		return
	}

	var (
		result dto.GuardrailResult
		err    error
	)
	if req.Guardrails != nil {
		result, err = guardrails.EvaluateContract(req.Text, req.Guardrails)
	} else {
		result, err = guardrails.Check(r.Context(), req.Text, h.rt.Guardrails, h.rt.Policy)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, dto.ErrConfig) {
			status = http.StatusBadRequest
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	if h.rt.Monitor != nil {
		h.rt.Monitor.ObserveGuardrail(result)
	}

	handlers.RespondJSON(w, http.StatusOK, evaluateResponse{
		Decision: dto.DecisionFor(result),
		Result:   result,
	})
}
