package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openmic-live/openmic/domains/queue/be/service"
	"github.com/openmic-live/openmic/platform/go/httpapi"
	"github.com/openmic-live/openmic/platform/go/logging"
	"github.com/openmic-live/openmic/platform/go/session"
)

// Handler serves the queue engine endpoints.
type Handler struct {
	queue  service.Service
	logger *zap.Logger
}

// New constructs the queue HTTP handler.
func New(queue service.Service, logger *zap.Logger) *Handler {
	if queue == nil {
		panic("queue service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{queue: queue, logger: logger}
}

// Register mounts the queue routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/parties/{partyID}/songs", h.list)
	r.Post("/parties/{partyID}/songs", h.add)
	r.Delete("/parties/{partyID}/songs/{entryID}", h.remove)
	r.Post("/parties/{partyID}/songs/{entryID}/boost", h.boost)
	r.Post("/parties/{partyID}/songs/{entryID}/playing", h.markPlaying)
	r.Post("/parties/{partyID}/songs/{entryID}/played", h.markPlayed)
	r.Post("/parties/{partyID}/songs/{entryID}/skip", h.skip)
	r.Post("/parties/{partyID}/songs/{entryID}/praise", h.praise)
}

type addRequest struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type praiseRequest struct {
	Type string `json:"type"`
}

type entryResponse struct {
	ID                string     `json:"id"`
	VideoID           string     `json:"videoId"`
	Title             string     `json:"title"`
	Artist            string     `json:"artist,omitempty"`
	ThumbnailURL      string     `json:"thumbnailUrl,omitempty"`
	RequesterID       string     `json:"requesterId"`
	RequesterName     string     `json:"requesterName"`
	RequesterInitials string     `json:"requesterInitials"`
	Boosted           bool       `json:"boosted"`
	BoostCount        int        `json:"boostCount"`
	Status            string     `json:"status"`
	AddedAt           time.Time  `json:"addedAt"`
	BoostedAt         *time.Time `json:"boostedAt,omitempty"`
	PlayedAt          *time.Time `json:"playedAt,omitempty"`
	PraiseCount       int        `json:"praiseCount"`
}

type boostResponse struct {
	Entry            entryResponse `json:"entry"`
	RemainingCredits int           `json:"remainingCredits"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	entries, err := h.queue.List(r.Context(), chi.URLParam(r, "partyID"))
	if err != nil {
		writeError(w, logger, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Malformed request body",
			Status: http.StatusBadRequest,
		})
		return
	}

	entry, err := h.queue.Add(r.Context(), session.FromContextOrAnonymous(r.Context()), chi.URLParam(r, "partyID"), service.AddInput{
		VideoID:      req.VideoID,
		Title:        req.Title,
		Artist:       req.Artist,
		ThumbnailURL: req.ThumbnailURL,
	})
	if err != nil {
		writeError(w, logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	err := h.queue.Remove(r.Context(), session.FromContextOrAnonymous(r.Context()), chi.URLParam(r, "partyID"), chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) boost(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	entry, remaining, err := h.queue.Boost(r.Context(), session.FromContextOrAnonymous(r.Context()), chi.URLParam(r, "partyID"), chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, boostResponse{Entry: toEntryResponse(entry), RemainingCredits: remaining})
}

func (h *Handler) markPlaying(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.queue.MarkPlaying)
}

func (h *Handler) markPlayed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.queue.MarkPlayed)
}

func (h *Handler) skip(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.queue.Skip)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sess session.Session, partyID, entryID string) (service.Entry, error)) {
	logger := logging.FromRequest(r, h.logger)

	entry, err := op(r.Context(), session.FromContextOrAnonymous(r.Context()), chi.URLParam(r, "partyID"), chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) praise(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)

	var req praiseRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	entry, err := h.queue.Praise(r.Context(), session.FromContextOrAnonymous(r.Context()), chi.URLParam(r, "partyID"), chi.URLParam(r, "entryID"), req.Type)
	if err != nil {
		writeError(w, logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toEntryResponse(entry))
}

func toEntryResponse(e service.Entry) entryResponse {
	return entryResponse{
		ID:                e.ID,
		VideoID:           e.VideoID,
		Title:             e.Title,
		Artist:            e.Artist,
		ThumbnailURL:      e.ThumbnailURL,
		RequesterID:       e.RequesterID,
		RequesterName:     e.RequesterName,
		RequesterInitials: e.RequesterInitials,
		Boosted:           e.Boosted,
		BoostCount:        e.BoostCount,
		Status:            string(e.Status),
		AddedAt:           e.AddedAt,
		BoostedAt:         e.BoostedAt,
		PlayedAt:          e.PlayedAt,
		PraiseCount:       len(e.Praises),
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeValidation,
			Title:  "Invalid song payload",
			Status: http.StatusBadRequest,
			Fields: verr.Fields,
		})
	case errors.Is(err, service.ErrPartyNotFound):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeNotFound,
			Title:  "Party not found",
			Status: http.StatusNotFound,
		})
	case errors.Is(err, service.ErrEntryNotFound):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeNotFound,
			Title:  "Queue entry not found",
			Status: http.StatusNotFound,
		})
	case errors.Is(err, service.ErrNotInParty):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeForbidden,
			Title:  "Join the party first",
			Status: http.StatusForbidden,
		})
	case errors.Is(err, service.ErrNotAuthorized):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeForbidden,
			Title:  "Not allowed",
			Detail: "only the host may drive the queue",
			Status: http.StatusForbidden,
		})
	case errors.Is(err, service.ErrNotRequester):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeForbidden,
			Title:  "Only the requester may remove a song",
			Status: http.StatusForbidden,
		})
	case errors.Is(err, service.ErrPartyClosed),
		errors.Is(err, service.ErrAlreadyBoosted),
		errors.Is(err, service.ErrEntryNotQueued),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyPraised),
		errors.Is(err, service.ErrDuplicateSong),
		errors.Is(err, service.ErrSongLimitReached):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "Queue conflict",
			Detail: err.Error(),
			Status: http.StatusConflict,
		})
	case errors.Is(err, service.ErrInsufficientCredits):
		httpapi.WriteProblem(w, httpapi.Problem{
			Type:   httpapi.ProblemTypeConflict,
			Title:  "No boost credits left",
			Status: http.StatusConflict,
		})
	default:
		httpapi.WriteInternal(w, logger, err)
	}
}
