package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openmic-live/openmic/domains/live/be/broadcast"
	"github.com/openmic-live/openmic/domains/parties/be/service"
	"github.com/openmic-live/openmic/platform/go/httpapi"
	"github.com/openmic-live/openmic/platform/go/logging"
	"github.com/openmic-live/openmic/platform/go/session"
)

// Handler serves the party lifecycle endpoints.
type Handler struct {
	parties service.Service
	views   *broadcast.ViewBuilder
	logger  *zap.Logger
}

// New constructs the parties HTTP handler.
func New(parties service.Service, views *broadcast.ViewBuilder, logger *zap.Logger) *Handler {
	if parties == nil {
		panic("parties service is required")
	}
	if views == nil {
		panic("view builder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{parties: parties, views: views, logger: logger}
}

// Register mounts the party routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/parties", h.create)
	r.Get("/parties/{partyID}", h.get)
	r.Post("/parties/{partyID}/pause", h.transition(service.StatusPaused))
	r.Post("/parties/{partyID}/resume", h.transition(service.StatusActive))
	r.Post("/parties/{partyID}/end", h.end)
}

type createRequest struct {
	Name            string           `json:"name"`
	HostDisplayName string           `json:"hostDisplayName"`
	Settings        *settingsPayload `json:"settings"`
}

type settingsPayload struct {
	MaxParticipants   int  `json:"maxParticipants"`
	BoostsPerPerson   int  `json:"boostsPerPerson"`
	MaxSongsPerPerson int  `json:"maxSongsPerPerson"`
	AllowDuplicates   bool `json:"allowDuplicates"`
	RequireApproval   bool `json:"requireApproval"`
}

type partyResponse struct {
	ID                string          `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Status            string          `json:"status"`
	HostParticipantID string          `json:"hostParticipantId"`
	Settings          settingsPayload `json:"settings"`
	CreatedAt         string          `json:"createdAt"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMalformedBody(w)
		return
	}

	input := service.CreateInput{Name: req.Name, HostDisplayName: req.HostDisplayName}
	if req.Settings != nil {
		input.Settings = &service.Settings{
			MaxParticipants:   req.Settings.MaxParticipants,
			BoostsPerPerson:   req.Settings.BoostsPerPerson,
			MaxSongsPerPerson: req.Settings.MaxSongsPerPerson,
			AllowDuplicates:   req.Settings.AllowDuplicates,
			RequireApproval:   req.Settings.RequireApproval,
		}
	}

	party, err := h.parties.Create(r.Context(), session.FromContextOrAnonymous(r.Context()), input)
	if err != nil {
		writeError(w, logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toPartyResponse(party))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	view, err := h.views.Build(r.Context(), chi.URLParam(r, "partyID"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, logger, service.ErrNotFound)
			return
		}
		httpapi.WriteInternal(w, logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) transition(target service.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromRequest(r, h.logger)

		party, err := h.parties.Transition(r.Context(), session.FromContextOrAnonymous(r.Context()), chi.URLParam(r, "partyID"), target)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, toPartyResponse(party))
	}
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	party, err := h.parties.End(r.Context(), session.FromContextOrAnonymous(r.Context()), chi.URLParam(r, "partyID"))
	if err != nil {
		writeError(w, logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toPartyResponse(party))
}

func toPartyResponse(p service.Party) partyResponse {
	return partyResponse{
		ID:                p.ID,
		Code:              p.Code,
		Name:              p.Name,
		Status:            string(p.Status),
		HostParticipantID: p.HostParticipantID,
		Settings: settingsPayload{
			MaxParticipants:   p.Settings.MaxParticipants,
			BoostsPerPerson:   p.Settings.BoostsPerPerson,
			MaxSongsPerPerson: p.Settings.MaxSongsPerPerson,
			AllowDuplicates:   p.Settings.AllowDuplicates,
			RequireApproval:   p.Settings.RequireApproval,
		},
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func writeMalformedBody(w http.ResponseWriter) {
	httpapi.WriteProblem(w, httpapi.Problem{
		Type:   httpapi.ProblemTypeValidation,
		Title:  "Malformed request body",
		Status: http.StatusBadRequest,
	})
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Invalid party payload",
			Status: http.StatusBadRequest,
			Fields: verr.Fields,
		})
	case errors.Is(err, service.ErrNotFound):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeNotFound,
			Title:  "Party not found",
			Status: http.StatusNotFound,
		})
	case errors.Is(err, service.ErrNotAuthorized):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeForbidden,
			Title:  "Not allowed",
			Detail: "only the host may manage the party",
			Status: http.StatusForbidden,
		})
	case errors.Is(err, service.ErrInvalidTransition):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "Illegal party transition",
			Status: http.StatusConflict,
		})
	case errors.Is(err, service.ErrCodeExhausted):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "Could not allocate a party code",
			Detail: "try again",
			Status: http.StatusServiceUnavailable,
		})
	default:
		httpapi.WriteInternal(w, logger, err)
	}
}
