package metering

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/Prat011/free-cluely-sub000/pkg/account"
	"github.com/Prat011/free-cluely-sub000/pkg/budget"
	"github.com/Prat011/free-cluely-sub000/pkg/meeting"
	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
	"github.com/Prat011/free-cluely-sub000/pkg/store"
	"github.com/Prat011/free-cluely-sub000/pkg/subscription"
	"github.com/Prat011/free-cluely-sub000/pkg/usage"
)

const maxBodyBytes = 1 << 20

var (
	ErrInvalidRequest       = errors.New("metering: invalid request")
	ErrUnsupportedMediaType = errors.New("metering: expected application/json")
)

// Response is the JSON envelope of every endpoint.
type Response struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request without internal details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, Response{Error: &ErrorDetail{Code: code, Message: PublicMessage(err)}})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, budget.ErrInvalidEstimate),
		errors.Is(err, usage.ErrInvalidUsage), errors.Is(err, usage.ErrUnknownModel),
		errors.Is(err, subscription.ErrInvalidWebhookPayload):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, subscription.ErrWebhookVerificationFailed):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, meeting.ErrMeetingAlreadyOpen), store.IsConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, account.ErrUserNotFound), errors.Is(err, meeting.ErrMeetingNotFound),
		errors.Is(err, notifications.ErrNotificationNotFound), store.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrPaddleNotConfigured), errors.Is(err, ErrNotificationsOff):
		return http.StatusNotImplemented, "not_configured"
	case IsRetryable(err):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeJSON reads a strict JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return ErrUnsupportedMediaType
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.Join(ErrInvalidRequest, errors.New("empty body"))
		}
		return errors.Join(ErrInvalidRequest, fmt.Errorf("decode body: %w", err))
	}
	return nil
}
