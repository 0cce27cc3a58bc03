package metering

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Prat011/free-cluely-sub000/pkg/budget"
	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
	"github.com/Prat011/free-cluely-sub000/pkg/requestid"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

type handler struct {
	engine    *Engine
	log       *slog.Logger
	keepAlive time.Duration
}

// HandlerOption configures NewHandler.
type HandlerOption func(*handler)

// WithHandlerLogger sets the logger for request failures.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *handler) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHandler exposes the engine over HTTP:
//
//	POST /webhooks/paddle
//	GET  /users/{userID}/usage
//	GET  /users/{userID}/free-trial
//	POST /users/{userID}/meetings/check
//	POST /users/{userID}/meetings
//	POST /users/{userID}/ai/check
//	POST /users/{userID}/ai/usage
//	GET  /users/{userID}/notifications
//	POST /users/{userID}/notifications/read
//	GET  /users/{userID}/notifications/stream
//	GET  /meetings/{meetingID}
//	POST /meetings/{meetingID}/check
//	POST /meetings/{meetingID}/end
func NewHandler(e *Engine, opts ...HandlerOption) http.Handler {
	if e == nil {
		panic("metering: Engine is required")
	}
	h := &handler{engine: e, log: e.log, keepAlive: DefaultStreamKeepAlive}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Post("/webhooks/paddle", h.paddleWebhook)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/usage", h.usageStats)
		r.Get("/free-trial", h.freeTrial)
		r.Post("/meetings/check", h.checkMeetingStart)
		r.Post("/meetings", h.startMeeting)
		r.Post("/ai/check", h.checkAIRequest)
		r.Post("/ai/usage", h.recordAIUsage)
		r.Get("/notifications", h.listNotifications)
		r.Post("/notifications/read", h.markNotificationsRead)
		r.Get("/notifications/stream", h.streamNotifications)
	})

	r.Route("/meetings/{meetingID}", func(r chi.Router) {
		r.Get("/", h.meetingStatus)
		r.Post("/check", h.checkMeeting)
		r.Post("/end", h.endMeeting)
	})

	return r
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, err)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidRequest, err)
	}
	return id, nil
}

func (h *handler) paddleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, errors.Join(ErrInvalidRequest, err))
		return
	}
	event, err := h.engine.HandlePaddleWebhook(r.Context(), body, r.Header.Get(subscription.PaddleSignatureHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{
		"event_id": event.ID,
		"event":    event.ProviderEvent,
	})
}

func (h *handler) usageStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.engine.GetCompleteUsageStats(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (h *handler) freeTrial(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.engine.CanStartFreeTrial(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

type meetingRequest struct {
	EstimatedMinutes int64 `json:"estimated_minutes"`
}

func (h *handler) checkMeetingStart(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req meetingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.engine.CanStartMeeting(r.Context(), userID, req.EstimatedMinutes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

type startMeetingResponse struct {
	Decision budget.Decision `json:"decision"`
	Meeting  *meetingView    `json:"meeting,omitempty"`
}

func (h *handler) startMeeting(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req meetingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, d, err := h.engine.StartMeeting(r.Context(), userID, req.EstimatedMinutes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if m == nil {
		writeData(w, http.StatusForbidden, startMeetingResponse{Decision: d})
		return
	}
	writeData(w, http.StatusCreated, startMeetingResponse{Decision: d, Meeting: newMeetingView(m)})
}

type aiCheckRequest struct {
	EstimatedCostUSD decimal.Decimal `json:"estimated_cost_usd"`
}

func (h *handler) checkAIRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req aiCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.engine.CanAffordAIRequest(r.Context(), userID, req.EstimatedCostUSD)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

type aiUsageRequest struct {
	Model        string           `json:"model"`
	InputTokens  int64            `json:"input_tokens"`
	OutputTokens int64            `json:"output_tokens"`
	CostUSD      *decimal.Decimal `json:"cost_usd,omitempty"`
}

type aiUsageView struct {
	ID           uuid.UUID       `json:"id"`
	Model        string          `json:"model"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	CostUSD      decimal.Decimal `json:"cost_usd"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (h *handler) recordAIUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req aiUsageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	var rec *usage.AIUsageRecord
	if req.CostUSD != nil {
		rec, err = h.engine.RecordAICost(r.Context(), userID, req.Model, *req.CostUSD)
	} else {
		rec, err = h.engine.RecordAIUsage(r.Context(), userID, req.Model, req.InputTokens, req.OutputTokens)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, aiUsageView{
		ID:           rec.ID,
		Model:        rec.Model,
		InputTokens:  rec.InputTokens,
		OutputTokens: rec.OutputTokens,
		CostUSD:      rec.CostUSD,
		CreatedAt:    rec.CreatedAt,
	})
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	opts := notifications.ListOptions{OnlyUnread: q.Get("unread") == "true"}
	if opts.Limit, err = queryInt(q.Get("limit")); err != nil {
		h.fail(w, r, err)
		return
	}
	if opts.Offset, err = queryInt(q.Get("offset")); err != nil {
		h.fail(w, r, err)
		return
	}
	for _, k := range q["kind"] {
		opts.Kinds = append(opts.Kinds, notifications.Kind(k))
	}

	list, err := h.engine.Notifications(r.Context(), userID, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Join(ErrInvalidRequest, errors.New("expected a non-negative integer"))
	}
	return n, nil
}

type markReadRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (h *handler) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.MarkNotificationsRead(r.Context(), userID, req.IDs...); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meetingView struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	PlanID          string            `json:"plan_id"`
	MaxMinutes      int64             `json:"max_minutes"`
	StartedAt       time.Time         `json:"started_at"`
	EndedAt         *time.Time        `json:"ended_at,omitempty"`
	DurationMinutes *int64            `json:"duration_minutes,omitempty"`
	EndReason       meeting.EndReason `json:"end_reason,omitempty"`
}

func newMeetingView(m *meeting.Meeting) *meetingView {
	return &meetingView{
		ID:              m.ID,
		UserID:          m.UserID,
		PlanID:          m.PlanID,
		MaxMinutes:      m.MaxMinutes,
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		DurationMinutes: m.DurationMinutes,
		EndReason:       m.EndReason,
	}
}

type meetingStatusView struct {
	Meeting          *meetingView      `json:"meeting"`
	RemainingSeconds int64             `json:"remaining_seconds"`
	Fired            []meeting.Warning `json:"fired,omitempty"`
	Closed           bool              `json:"closed"`
}

func (h *handler) meetingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "meetingID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.engine.GetMeeting(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view := meetingStatusView{Meeting: newMeetingView(m), Closed: !m.IsOpen()}
	if m.IsOpen() {
		remaining := m.Deadline().Sub(h.engine.now())
		view.RemainingSeconds = int64(max(remaining, 0) / time.Second)
	}
	writeData(w, http.StatusOK, view)
}

func (h *handler) checkMeeting(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "meetingID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.engine.CheckMeeting(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, meetingStatusView{
		Meeting:          newMeetingView(st.Meeting),
		RemainingSeconds: int64(st.Remaining / time.Second),
		Fired:            st.Fired,
		Closed:           st.Closed,
	})
}

func (h *handler) endMeeting(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "meetingID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.engine.EndMeeting(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newMeetingView(m))
}
