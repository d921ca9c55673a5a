package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/audit"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/tenancy"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// CallReader lists and fetches tracked calls.
type CallReader interface {
	ListByOrg(ctx context.Context, orgID string, limit int) ([]calls.Call, error)
	GetByID(ctx context.Context, orgID string, id uuid.UUID) (*calls.Call, error)
}

// CallMarker applies the explicit, human-triggered outcome signals.
type CallMarker interface {
	MarkNoRecording(ctx context.Context, orgID string, callID uuid.UUID, detail string) error
	MarkOverbooked(ctx context.Context, orgID string, callID uuid.UUID, detail string) error
}

// AuditReader queries the append-only audit log.
type AuditReader interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// AdminCallsHandler serves the ops read endpoints and the manual outcome
// overrides. Everything here sits behind the admin JWT middleware.
type AdminCallsHandler struct {
	calls  CallReader
	marker CallMarker
	audits AuditReader
	logger *logging.Logger
}

func NewAdminCallsHandler(reader CallReader, marker CallMarker, audits AuditReader, logger *logging.Logger) *AdminCallsHandler {
	if reader == nil {
		panic("handlers: call reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminCallsHandler{calls: reader, marker: marker, audits: audits, logger: logger}
}

type callResponse struct {
	ID              string     `json:"id"`
	OrgID           string     `json:"org_id"`
	ProspectID      string     `json:"prospect_id"`
	ProspectEmail   string     `json:"prospect_email"`
	ScheduledStart  time.Time  `json:"scheduled_start"`
	ScheduledEnd    time.Time  `json:"scheduled_end"`
	CallType        string     `json:"call_type"`
	AttendanceState string     `json:"attendance_state"`
	CalendarEventID string     `json:"calendar_event_id"`
	RescheduledFrom *uuid.UUID `json:"rescheduled_from,omitempty"`
	RescheduledTo   *uuid.UUID `json:"rescheduled_to,omitempty"`
	TranscriptRef   string     `json:"transcript_ref,omitempty"`
	Closer          string     `json:"closer,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toCallResponse(c calls.Call) callResponse {
	return callResponse{
		ID:              c.ID.String(),
		OrgID:           c.OrgID,
		ProspectID:      c.ProspectID.String(),
		ProspectEmail:   c.ProspectEmail,
		ScheduledStart:  c.ScheduledStart,
		ScheduledEnd:    c.ScheduledEnd,
		CallType:        string(c.CallType),
		AttendanceState: string(c.AttendanceState.Normalize()),
		CalendarEventID: c.CalendarEventID,
		RescheduledFrom: c.RescheduledFrom,
		RescheduledTo:   c.RescheduledTo,
		TranscriptRef:   c.TranscriptRef,
		Closer:          c.Closer,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// ListCalls handles GET /admin/calls?org_id=...&limit=...
func (h *AdminCallsHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	orgID := orgFromRequest(r)
	if orgID == "" {
		http.Error(w, "org_id is required", http.StatusBadRequest)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.calls.ListByOrg(r.Context(), orgID, limit)
	if err != nil {
		h.logger.Error("failed to list calls", "org_id", orgID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]callResponse, 0, len(records))
	for _, c := range records {
		out = append(out, toCallResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": out})
}

// GetCall handles GET /admin/calls/{callID}?org_id=...
func (h *AdminCallsHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	orgID := orgFromRequest(r)
	callID, err := uuid.Parse(chi.URLParam(r, "callID"))
	if orgID == "" || err != nil {
		http.Error(w, "org_id and a valid call id are required", http.StatusBadRequest)
		return
	}

	call, err := h.calls.GetByID(r.Context(), orgID, callID)
	if err == nil && call == nil {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch call", "call_id", callID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toCallResponse(*call))
}

// ListAudit handles GET /admin/audit?org_id=...&entity_id=...&limit=...
func (h *AdminCallsHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audits == nil {
		http.Error(w, "audit log not available", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	filter := audit.Filter{
		OrgID:      orgFromRequest(r),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Limit:      100,
	}
	if filter.OrgID == "" {
		http.Error(w, "org_id is required", http.StatusBadRequest)
		return
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	entries, err := h.audits.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit log", "org_id", filter.OrgID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type markRequest struct {
	Reason string `json:"reason"`
}

// MarkNoRecording handles POST /admin/calls/{callID}/no-recording.
func (h *AdminCallsHandler) MarkNoRecording(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.marker.MarkNoRecording)
}

// MarkOverbooked handles POST /admin/calls/{callID}/overbooked.
func (h *AdminCallsHandler) MarkOverbooked(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.marker.MarkOverbooked)
}

func (h *AdminCallsHandler) mark(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, uuid.UUID, string) error) {
	if h.marker == nil {
		http.Error(w, "outcome overrides not available", http.StatusServiceUnavailable)
		return
	}
	orgID := orgFromRequest(r)
	callID, err := uuid.Parse(chi.URLParam(r, "callID"))
	if orgID == "" || err != nil {
		http.Error(w, "org_id and a valid call id are required", http.StatusBadRequest)
		return
	}

	var req markRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "marked by operator"
	}

	if err := apply(r.Context(), orgID, callID, req.Reason); err != nil {
		h.logger.Warn("outcome override rejected", "call_id", callID, "error", err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// orgFromRequest resolves the tenant scope set by the router middleware,
// falling back to the org_id query parameter.
func orgFromRequest(r *http.Request) string {
	if orgID, ok := tenancy.OrgIDFromContext(r.Context()); ok {
		return orgID
	}
	return strings.TrimSpace(r.URL.Query().Get("org_id"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
