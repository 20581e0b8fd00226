package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyops/decision-engine/internal/audit"
	"github.com/complyops/decision-engine/internal/engine"
	"github.com/complyops/decision-engine/internal/model"
	"github.com/complyops/decision-engine/internal/sla"
	"github.com/complyops/decision-engine/internal/store"
)

// storeSink routes audit events into the store so the trail endpoint can
// read them back.
type storeSink struct{ st store.Store }

func (s storeSink) Append(ctx context.Context, e model.AuditEvent) (int, error) {
	return s.st.AppendAuditEvent(ctx, e)
}

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemory()
	recorder := audit.NewRecorder(storeSink{st: st}, "test")
	slaSvc := sla.NewService(st, recorder, sla.WeekendOnly{})
	eng := engine.New(engine.Config{}, st, recorder, slaSvc)

	srv := httptest.NewServer(NewServer(eng, st).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

const decisionBody = `{
	"file_id": "f1",
	"candidates": [
		{"field": "case_number", "value": "EXP-1", "source": "xml", "confidence": 0.95, "document_id": "d1"},
		{"field": "case_number", "value": "EXP-1", "source": "pdf", "confidence": 0.80, "document_id": "d2"}
	],
	"person_records": [
		{"name": "Juan Perez", "identifier": "ID-100", "document_id": "d1"}
	],
	"signals": {"markers": ["notice"]}
}`

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostDecision(t *testing.T) {
	srv, st := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/decisions", "application/json", strings.NewReader(decisionBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Status string `json:"status"`
		Value  struct {
			FileID string `json:"file_id"`
			State  string `json:"state"`
		} `json:"value"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, "f1", out.Value.FileID)
	assert.Equal(t, string(model.StateAutoResolved), out.Value.State)

	_, err = st.GetUnifiedRecord(context.Background(), "f1")
	assert.NoError(t, err)
}

func TestPostDecision_BadBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/decisions", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostDecision_ValidationFailure(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/decisions", "application/json", strings.NewReader(`{"file_id": ""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSlaStatus_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/decisions/nope/sla")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetSlaStatus_AfterProcessing(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/decisions", "application/json", strings.NewReader(decisionBody))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/decisions/f1/sla")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetAuditTrail(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/decisions", "application/json", strings.NewReader(decisionBody))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/v1/decisions/f1/audit")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []model.AuditEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	assert.NotEmpty(t, events)
}

func TestGetAtRisk_ThresholdParam(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.UpsertSLAStatus(ctx, model.SLAStatus{
		FileID: "close", Deadline: now.Add(6 * time.Hour),
	}))
	require.NoError(t, st.UpsertSLAStatus(ctx, model.SLAStatus{
		FileID: "far", Deadline: now.Add(90 * time.Hour),
	}))

	atRisk := func(url string) []model.SLAStatus {
		t.Helper()
		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Value []model.SLAStatus `json:"value"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out.Value
	}

	// Default window sees only the close deadline.
	assert.Len(t, atRisk(srv.URL+"/v1/sla/at-risk"), 1)

	// A wider caller threshold sees both.
	assert.Len(t, atRisk(srv.URL+"/v1/sla/at-risk?threshold=100h"), 2)

	// A malformed threshold is rejected.
	resp, err := http.Get(srv.URL + "/v1/sla/at-risk?threshold=soon")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReviewDecision_ValidationFailure(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/reviews/some-case/decision", "application/json",
		strings.NewReader(`{"decision": "escalate", "reviewer_id": "rev-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPendingReviews_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/reviews?limit=-3")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
