package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	tests := []struct {
		outcome models.Outcome
		want    string
	}{
		{models.OutcomeCompleted, EventCompleted},
		{models.OutcomePartial, EventPartial},
		{models.OutcomeFailed, EventFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			ev := NewEvent("run-1", &models.Report{Outcome: tt.outcome})
			assert.Equal(t, tt.want, ev.Type)
			assert.Equal(t, "run-1", ev.RunID)
			assert.NotZero(t, ev.Timestamp)
		})
	}
}

func TestDeliver_Signed(t *testing.T) {
	var gotSig string
	var gotEvent Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		assert.Equal(t, "sha256="+Sign("s3cret", body), gotSig)
		assert.NoError(t, json.Unmarshal(body, &gotEvent))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL, "s3cret")
	report := &models.Report{Outcome: models.OutcomeCompleted, Collected: 42, Target: 42}
	require.NoError(t, n.Deliver(context.Background(), NewEvent("run-7", report)))

	assert.NotEmpty(t, gotSig)
	assert.Equal(t, EventCompleted, gotEvent.Type)
	require.NotNil(t, gotEvent.Data)
	assert.Equal(t, 42, gotEvent.Data.Collected)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "").Deliver(context.Background(), NewEvent("r", &models.Report{})))
}

func TestNotify_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, "")
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}
	require.NoError(t, n.Notify(context.Background(), NewEvent("r", &models.Report{Outcome: models.OutcomePartial})))
	assert.EqualValues(t, 3, calls.Load())
}

func TestNotify_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(srv.URL, "")
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}
	err := n.Notify(context.Background(), NewEvent("r", &models.Report{}))
	require.Error(t, err)
	assert.EqualValues(t, 4, calls.Load())
}

func TestNotify_NoURL(t *testing.T) {
	assert.NoError(t, New("", "x").Notify(context.Background(), NewEvent("r", &models.Report{})))
}
