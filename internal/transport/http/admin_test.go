package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/akovalev/netchat-server/internal/store"
)

type fakeStats struct{}

func (fakeStats) Sessions() int          { return 3 }
func (fakeStats) ActiveUsers() []string  { return []string{"alice", "bob"} }
func (fakeStats) Rooms() []string        { return []string{"alpha"} }
func (fakeStats) PendingTransfers() int  { return 2 }
func (fakeStats) InFlightTransfers() int { return 1 }

type fakeAudit struct {
	records []store.TransferRecord
}

func (f *fakeAudit) RecordTransfer(_ context.Context, rec *store.TransferRecord) error {
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeAudit) RecentTransfers(_ context.Context, limit int) ([]store.TransferRecord, error) {
	if limit > len(f.records) {
		limit = len(f.records)
	}
	return f.records[:limit], nil
}

func serveAdmin(t *testing.T, audit store.TransferLog, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	logger := zerolog.Nop()
	srv := NewServer(":0", fakeStats{}, audit, &logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := serveAdmin(t, nil, http.MethodGet, "/health")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestStatsEndpoint(t *testing.T) {
	rec := serveAdmin(t, nil, http.MethodGet, "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var stats StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Sessions != 3 || stats.PendingTransfers != 2 || len(stats.ActiveUsers) != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestTransfersEndpoint(t *testing.T) {
	audit := &fakeAudit{records: []store.TransferRecord{
		{TaskID: "t1", Sender: "alice", Recipient: "bob", Filename: "a.txt", FinalFilename: "a.txt", Outcome: store.TransferOutcomeDelivered},
	}}

	rec := serveAdmin(t, audit, http.MethodGet, "/transfers")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var out []TransferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode transfers: %v", err)
	}
	if len(out) != 1 || out[0].TaskID != "t1" {
		t.Fatalf("unexpected transfers: %+v", out)
	}
}

func TestTransfersEndpointWithoutAudit(t *testing.T) {
	rec := serveAdmin(t, nil, http.MethodGet, "/transfers")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when audit disabled, got %d", rec.Code)
	}
}
