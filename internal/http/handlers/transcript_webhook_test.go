package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func transcriptRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/transcripts", strings.NewReader(body))
	req.Header.Set("X-Webhook-Token", "hush")
	return req
}

func TestTranscriptWebhookEnqueues(t *testing.T) {
	q := &testEnqueuer{}
	h := NewTranscriptWebhookHandler("hush", q, nil, nil, nil)

	callID := uuid.NewString()
	rec := httptest.NewRecorder()
	h.Handle(rec, transcriptRequest(`{"org_id":"org-acme","call_id":"`+callID+`"}`))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}
	if len(q.transcripts) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(q.transcripts))
	}
	if got := q.transcripts[0].CallID.String(); got != callID {
		t.Fatalf("expected call id %s, got %s", callID, got)
	}
}

func TestTranscriptWebhookRejectsBadToken(t *testing.T) {
	q := &testEnqueuer{}
	h := NewTranscriptWebhookHandler("hush", q, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/transcripts",
		strings.NewReader(`{"org_id":"org-acme","call_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("X-Webhook-Token", "wrong")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if len(q.transcripts) != 0 {
		t.Fatal("unauthorized delivery must not enqueue")
	}
}

func TestTranscriptWebhookRequiresConfiguredSecret(t *testing.T) {
	h := NewTranscriptWebhookHandler("", &testEnqueuer{}, nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Handle(rec, transcriptRequest(`{"org_id":"org-acme","call_id":"`+uuid.NewString()+`"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestTranscriptWebhookRejectsBadPayload(t *testing.T) {
	q := &testEnqueuer{}
	h := NewTranscriptWebhookHandler("hush", q, nil, nil, nil)

	for _, body := range []string{
		`not json`,
		`{"org_id":"","call_id":"` + uuid.NewString() + `"}`,
		`{"org_id":"org-acme","call_id":"nope"}`,
	} {
		rec := httptest.NewRecorder()
		h.Handle(rec, transcriptRequest(body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected status 400, got %d", body, rec.Code)
		}
	}
	if len(q.transcripts) != 0 {
		t.Fatal("bad payloads must not enqueue")
	}
}
