package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openmic-live/openmic/domains/participants/be/service"
	"github.com/openmic-live/openmic/platform/go/httpapi"
	"github.com/openmic-live/openmic/platform/go/logging"
	"github.com/openmic-live/openmic/platform/go/session"
)

// Handler serves the participant ledger endpoints.
type Handler struct {
	participants service.Service
	logger       *zap.Logger
}

// New constructs the participants HTTP handler.
func New(participants service.Service, logger *zap.Logger) *Handler {
	if participants == nil {
		panic("participants service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{participants: participants, logger: logger}
}

// Register mounts the participant routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/parties/join", h.join)
	r.Post("/parties/{partyID}/leave", h.leave)
	r.Get("/parties/{partyID}/participants", h.roster)
}

type joinRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
	Anonymous   bool   `json:"anonymous"`
}

type joinResponse struct {
	Participant   participantResponse `json:"participant"`
	PartyID       string              `json:"partyId"`
	PartyName     string              `json:"partyName"`
	AlreadyJoined bool                `json:"alreadyJoined"`
}

type participantResponse struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"displayName"`
	Role         string     `json:"role"`
	BoostCredits int        `json:"boostCredits"`
	Score        int        `json:"score"`
	Anonymous    bool       `json:"anonymous"`
	JoinedAt     time.Time  `json:"joinedAt"`
	LeftAt       *time.Time `json:"leftAt,omitempty"`
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Malformed request body",
			Status: http.StatusBadRequest,
		})
		return
	}

	participant, party, already, err := h.participants.JoinByCode(r.Context(), session.FromContextOrAnonymous(r.Context()), service.JoinInput{
		Code:        req.Code,
		DisplayName: req.DisplayName,
		Anonymous:   req.Anonymous,
	})
	if err != nil {
		writeError(w, logger, err)
		return
	}

	status := http.StatusCreated
	if already {
		status = http.StatusOK
	}
	httpapi.WriteJSON(w, status, joinResponse{
		Participant:   toParticipantResponse(participant),
		PartyID:       party.ID,
		PartyName:     party.Name,
		AlreadyJoined: already,
	})
}

func (h *Handler) leave(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)
	sess := session.FromContextOrAnonymous(r.Context())
	partyID := chi.URLParam(r, "partyID")

	participant, err := h.participants.Leave(r.Context(), sess, partyID)
	if errors.Is(err, service.ErrAlreadyLeft) {
		// A replayed leave is already satisfied; answer with the record as it
		// stands instead of surfacing a failure for a double-submit.
		participant, err = h.participants.FindByPrincipal(r.Context(), partyID, sess.PrincipalID)
	}
	if err != nil {
		writeError(w, logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toParticipantResponse(participant))
}

func (h *Handler) roster(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	roster, err := h.participants.Roster(r.Context(), chi.URLParam(r, "partyID"))
	if err != nil {
		writeError(w, logger, err)
		return
	}

	out := make([]participantResponse, 0, len(roster))
	for _, p := range roster {
		if p.LeftAt != nil {
			continue
		}
		out = append(out, toParticipantResponse(p))
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func toParticipantResponse(p service.Participant) participantResponse {
	return participantResponse{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		Role:         p.Role,
		BoostCredits: p.BoostCredits,
		Score:        p.Score,
		Anonymous:    p.Anonymous,
		JoinedAt:     p.JoinedAt,
		LeftAt:       p.LeftAt,
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Invalid join payload",
			Status: http.StatusBadRequest,
			Fields: verr.Fields,
		})
	case errors.Is(err, service.ErrPartyNotFound):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeNotFound,
			Title:  "Party not found",
			Detail: "check the code and try again",
			Status: http.StatusNotFound,
		})
	case errors.Is(err, service.ErrNotFound):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeNotFound,
			Title:  "Participant not found",
			Status: http.StatusNotFound,
		})
	case errors.Is(err, service.ErrPartyNotJoinable):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "Party is not accepting participants",
			Status: http.StatusConflict,
		})
	case errors.Is(err, service.ErrPartyFull):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "Party is full",
			Status: http.StatusConflict,
		})
	case errors.Is(err, service.ErrNotAuthorized):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeForbidden,
			Title:  "Sign in to join a party",
			Status: http.StatusForbidden,
		})
	default:
		httpapi.WriteInternal(w, logger, err)
	}
}
