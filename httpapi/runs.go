package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/launchsentinel/core/eventbus"
	"github.com/launchsentinel/core/runledger"
)

type runsHandler struct {
	ledger *runledger.Ledger
}

// list handles GET /runs?limit=N — most recent runs first.
func (h *runsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r.URL.Query().Get("limit"), 50)
	writeJSON(w, http.StatusOK, h.ledger.ListRecent(limit))
}

// get handles GET /runs/{id}.
func (h *runsHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, ok := h.ledger.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run_not_found", "no run with that id")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// events returns a handler for GET /runs/{id}/events — a WebSocket
// stream of live events for one run, filtered by the same query params
// the top-level live stream accepts (agents, severities, types).
// Heartbeats keep the socket alive even while the run is idle between
// stages.
func (h *runsHandler) events(bus *eventbus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bus == nil {
			writeError(w, http.StatusServiceUnavailable, "event_bus_unavailable", "live event bus not configured")
			return
		}
		runID := chi.URLParam(r, "id")
		filter := filterFromQuery(r, runID)

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub := bus.Subscribe(filter)
		defer sub.Close()

		for evt := range sub.Events {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}

// filterFromQuery builds an eventbus.Filter from ?agents=a,b&severities=warn,critical&types=OPINION,DECISION.
// runID is always pinned to the path parameter when non-empty.
func filterFromQuery(r *http.Request, runID string) eventbus.Filter {
	q := r.URL.Query()
	filter := eventbus.Filter{}
	if runID != "" {
		filter.RunIDs = []string{runID}
	}
	if v := q.Get("agents"); v != "" {
		filter.Agents = splitCSV(v)
	}
	if v := q.Get("severities"); v != "" {
		for _, s := range splitCSV(v) {
			filter.Severities = append(filter.Severities, eventbus.Severity(s))
		}
	}
	if v := q.Get("types"); v != "" {
		for _, s := range splitCSV(v) {
			filter.EventTypes = append(filter.EventTypes, eventbus.EventType(s))
		}
	}
	return filter
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
