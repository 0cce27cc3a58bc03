package metering

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Prat011/free-cluely-sub000/pkg/logger"
	"github.com/Prat011/free-cluely-sub000/pkg/notifications"
)

// DefaultStreamKeepAlive is how often an idle notification stream sends a comment
// line so proxies keep the connection open.
const DefaultStreamKeepAlive = 25 * time.Second

// WithStreamKeepAlive overrides DefaultStreamKeepAlive.
func WithStreamKeepAlive(d time.Duration) HandlerOption {
	return func(h *handler) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// streamNotifications sends the user's notifications as server-sent events, one
// event per notification named after its kind.
func (h *handler) streamNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	ch, err := h.engine.SubscribeNotifications(ctx, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// the server write timeout would otherwise end every stream
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, n); err != nil {
				h.log.DebugContext(ctx, "notification stream closed",
					logger.UserID(userID),
					logger.Error(err),
				)
				return
			}
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w io.Writer, n notifications.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", n.ID, n.Kind, data)
	return err
}
