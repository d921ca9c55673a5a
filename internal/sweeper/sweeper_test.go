package sweeper

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/audit"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/observability/metrics"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/tenants"
)

type fakeCallStore struct {
	records []*calls.Call
}

func (f *fakeCallStore) ListUnsetEnded(_ context.Context, asOf time.Time) ([]calls.Call, error) {
	var out []calls.Call
	for _, r := range f.records {
		if r.AttendanceState.Normalize() == calls.StateUnset && r.ScheduledEnd.Before(asOf) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeCallStore) ListWaiting(_ context.Context, endedBefore time.Time) ([]calls.Call, error) {
	var out []calls.Call
	for _, r := range f.records {
		if r.AttendanceState == calls.StateWaiting && r.ScheduledEnd.Before(endedBefore) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeCallStore) TransitionState(_ context.Context, id uuid.UUID, from, to calls.AttendanceState) (bool, error) {
	for _, r := range f.records {
		if r.ID != id {
			continue
		}
		if r.AttendanceState.Normalize() != from.Normalize() {
			return false, nil
		}
		r.AttendanceState = to
		return true, nil
	}
	return false, nil
}

type fakeAudit struct {
	entries []audit.Entry
}

func (f *fakeAudit) RecordFieldChange(_ context.Context, orgID, entityType, entityID, field, oldValue, newValue string, source audit.Source, detail string) error {
	f.entries = append(f.entries, audit.Entry{
		OrgID:        orgID,
		EntityType:   entityType,
		EntityID:     entityID,
		Field:        field,
		OldValue:     oldValue,
		NewValue:     newValue,
		Source:       source,
		SourceDetail: detail,
	})
	return nil
}

type fakeSettings struct {
	grace time.Duration
}

func (f fakeSettings) Settings(_ context.Context, orgID string) (*tenants.Settings, error) {
	return &tenants.Settings{OrgID: orgID, OutcomeGracePeriod: f.grace}, nil
}

func callAt(state calls.AttendanceState, end time.Time) *calls.Call {
	return &calls.Call{
		ID:              uuid.New(),
		OrgID:           "org_1",
		ScheduledStart:  end.Add(-30 * time.Minute),
		ScheduledEnd:    end,
		AttendanceState: state,
	}
}

func TestProcessDuePromotesEndedCalls(t *testing.T) {
	store := &fakeCallStore{}
	auditSink := &fakeAudit{}
	ended := callAt(calls.StateUnset, time.Now().UTC().Add(-time.Hour))
	future := callAt(calls.StateUnset, time.Now().UTC().Add(time.Hour))
	store.records = append(store.records, ended, future)

	s := New(store, auditSink, fakeSettings{grace: 2 * time.Hour}, time.Minute, 2*time.Hour, nil)
	n, err := s.ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, calls.StateWaiting, ended.AttendanceState)
	assert.Equal(t, calls.StateUnset, future.AttendanceState)
	require.Len(t, auditSink.entries, 1)
	assert.Equal(t, audit.SourceTimeoutSweeper, auditSink.entries[0].Source)
}

func TestProcessDueGhostsPastGrace(t *testing.T) {
	store := &fakeCallStore{}
	auditSink := &fakeAudit{}
	timedOut := callAt(calls.StateWaiting, time.Now().UTC().Add(-3*time.Hour))
	withinGrace := callAt(calls.StateWaiting, time.Now().UTC().Add(-time.Hour))
	store.records = append(store.records, timedOut, withinGrace)

	s := New(store, auditSink, fakeSettings{grace: 2 * time.Hour}, time.Minute, 2*time.Hour, nil)
	n, err := s.ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, calls.StateGhosted, timedOut.AttendanceState)
	assert.Equal(t, calls.StateWaiting, withinGrace.AttendanceState)
}

func TestProcessDueRespectsTenantGrace(t *testing.T) {
	store := &fakeCallStore{}
	call := callAt(calls.StateWaiting, time.Now().UTC().Add(-90*time.Minute))
	store.records = append(store.records, call)

	// With a 4h tenant grace the 90-minute-old call is not swept.
	s := New(store, &fakeAudit{}, fakeSettings{grace: 4 * time.Hour}, time.Minute, 2*time.Hour, nil)
	n, err := s.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// With a 1h grace it is.
	s = New(store, &fakeAudit{}, fakeSettings{grace: time.Hour}, time.Minute, 2*time.Hour, nil)
	n, err = s.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, calls.StateGhosted, call.AttendanceState)
}

type racingStore struct {
	fakeCallStore
}

func (r *racingStore) TransitionState(_ context.Context, id uuid.UUID, from, to calls.AttendanceState) (bool, error) {
	// Simulate a transcript arriving between list and write.
	for _, rec := range r.records {
		if rec.ID == id {
			rec.AttendanceState = calls.StateShow
		}
	}
	return false, nil
}

func TestLostRaceIsSilent(t *testing.T) {
	store := &racingStore{}
	auditSink := &fakeAudit{}
	call := callAt(calls.StateWaiting, time.Now().UTC().Add(-3*time.Hour))
	store.records = append(store.records, call)

	s := New(store, auditSink, fakeSettings{grace: time.Hour}, time.Minute, 2*time.Hour, nil)
	n, err := s.ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Zero(t, n, "lost races are not counted")
	assert.Equal(t, calls.StateShow, call.AttendanceState, "winner's outcome stands")
	assert.Empty(t, auditSink.entries)
}

func TestProcessDueCountsSweepTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &fakeCallStore{}
	// The promoted call stays within grace; the waiting one is past it.
	store.records = append(store.records,
		callAt(calls.StateUnset, time.Now().UTC().Add(-30*time.Minute)),
		callAt(calls.StateWaiting, time.Now().UTC().Add(-3*time.Hour)))

	s := New(store, &fakeAudit{}, fakeSettings{grace: time.Hour}, time.Minute, 2*time.Hour, nil,
		WithMetrics(metrics.NewPipelineMetrics(reg)))
	n, err := s.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	expected := `
# HELP closermetrix_pipeline_sweep_transitions_total Total transitions applied by the timeout sweeper
# TYPE closermetrix_pipeline_sweep_transitions_total counter
closermetrix_pipeline_sweep_transitions_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"closermetrix_pipeline_sweep_transitions_total"))
}
