package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/domain/reply"
	"smartreply/internal/errs"
	"smartreply/internal/ports"
	"smartreply/internal/usecase/generate"
	"smartreply/internal/usecase/publish"
)

type handler struct {
	svcs Services
}

type errorResponse struct {
	Error string `json:"error"`
}

type stageResponse struct {
	Token string `json:"token"`
}

func (h *handler) handleStage(w http.ResponseWriter, req *http.Request) {
	var input reply.PayloadInput
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	token, err := h.svcs.Staging.Stage(req.Context(), input)
	if err != nil {
		if errors.Is(err, reply.ErrReviewRequired) || errors.Is(err, reply.ErrInvalidRating) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		internalError(w, req, "stage review failed", err)
		return
	}

	writeJSON(w, http.StatusOK, stageResponse{Token: token})
}

type inspectResponse struct {
	Token            string        `json:"token"`
	CreatedAt        time.Time     `json:"created_at"`
	PublishReady     bool          `json:"publish_ready"`
	PublishMissing   []string      `json:"publish_missing"`
	HasGenerated     bool          `json:"has_generated"`
	HasPublishResult bool          `json:"has_publish_result"`
	UsedCount        int           `json:"used_count"`
	Payload          reply.Payload `json:"payload"`
}

func (h *handler) handleInspect(w http.ResponseWriter, req *http.Request) {
	token := chi.URLParam(req, "token")

	record, err := h.svcs.Staging.Get(req.Context(), token)
	if err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "token not found"})
			return
		}
		internalError(w, req, "inspect staging record failed", err)
		return
	}

	missing := record.Payload.MissingPublishFields()
	writeJSON(w, http.StatusOK, inspectResponse{
		Token:            record.Token,
		CreatedAt:        record.CreatedAt,
		PublishReady:     len(missing) == 0,
		PublishMissing:   missing,
		HasGenerated:     len(record.Generated) > 0,
		HasPublishResult: record.Publish != nil,
		UsedCount:        record.UsedCount,
		Payload:          record.Payload,
	})
}

func (h *handler) handleDelete(w http.ResponseWriter, req *http.Request) {
	if err := h.svcs.Staging.Delete(req.Context(), chi.URLParam(req, "token")); err != nil {
		internalError(w, req, "delete staging record failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	Token  string `json:"token"`
	Values struct {
		SelectedTone       string `json:"selectedTone"`
		CorporateSignature string `json:"corporateSignature"`
		ContactEmail       string `json:"contactEmail"`
		LanguageMode       string `json:"languageMode"`
	} `json:"values"`
	Reviews []struct {
		Review     string `json:"review"`
		Rating     string `json:"rating"`
		ReviewType string `json:"reviewType"`
		Salutation string `json:"salutation"`
	} `json:"reviews"`
}

type generateResponse struct {
	Replies []reply.GeneratedReply `json:"replies"`
}

func (h *handler) handleGenerate(w http.ResponseWriter, req *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	input := generate.Input{
		Token: body.Token,
		Values: generate.Values{
			SelectedTone:       defaultString(body.Values.SelectedTone, "friendly"),
			CorporateSignature: body.Values.CorporateSignature,
			ContactEmail:       body.Values.ContactEmail,
			LanguageMode:       defaultString(body.Values.LanguageMode, "de"),
		},
	}
	for _, entry := range body.Reviews {
		input.Reviews = append(input.Reviews, generate.ReviewInput{
			Review:     entry.Review,
			Rating:     entry.Rating,
			ReviewType: entry.ReviewType,
			Salutation: entry.Salutation,
		})
	}

	replies, err := h.svcs.Generate.Generate(req.Context(), input)
	if err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "token not found"})
			return
		}
		internalError(w, req, "generate replies failed", err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Replies: replies})
}

type publishRequest struct {
	Token string `json:"token"`
	Reply string `json:"reply"`
	Force bool   `json:"force"`
}

func (h *handler) handlePublish(w http.ResponseWriter, req *http.Request) {
	var body publishRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	result, err := h.svcs.Publish.Publish(req.Context(), publish.Input{
		Token: body.Token,
		Reply: body.Reply,
		Force: body.Force,
	})
	if err != nil {
		internalError(w, req, "publish failed", err)
		return
	}

	writeJSON(w, publishStatus(result), result)
}

func publishStatus(result publish.Result) int {
	switch result.State {
	case publish.StatePublished:
		return http.StatusOK
	case publish.StateNotReady:
		return http.StatusBadRequest
	case publish.StateConflict:
		return http.StatusConflict
	default:
		switch result.Reason {
		case publish.ReasonNotFound:
			return http.StatusNotFound
		case publish.ReasonDisabled:
			return http.StatusForbidden
		case publish.ReasonPrecheckFailed, publish.ReasonPublishFailed:
			return http.StatusBadGateway
		default:
			return http.StatusBadRequest
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func internalError(w http.ResponseWriter, req *http.Request, msg string, err error) {
	logging.Error(req.Context(), msg, slog.Any("err", errs.Loggable(err)))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
