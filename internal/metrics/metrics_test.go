package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	s := GetSnapshot()
	initialObserved := s.Observed
	initialDuplicates := s.Duplicates
	initialExtract := s.ExtractErrors
	initialEmpty := s.EmptyDropped
	initialFiltered := s.Filtered
	initialDispatched := s.Dispatched
	initialSuccess := s.SendSuccess
	initialFailure := s.SendFailure

	IncObserved()
	IncDuplicate()
	IncExtractError()
	IncEmptyDropped()
	IncFiltered()
	IncDispatched()
	IncChannelSend("Ntfy", true)
	IncChannelSend("Ntfy", false)
	SetLastPoll(time.Unix(123456789, 0))

	s2 := GetSnapshot()
	if s2.Observed != initialObserved+1 {
		t.Fatalf("expected observed to increment by 1, got %d", s2.Observed)
	}
	if s2.Duplicates != initialDuplicates+1 {
		t.Fatalf("expected duplicates_skipped to increment by 1, got %d", s2.Duplicates)
	}
	if s2.ExtractErrors != initialExtract+1 {
		t.Fatalf("expected extract_errors to increment by 1, got %d", s2.ExtractErrors)
	}
	if s2.EmptyDropped != initialEmpty+1 {
		t.Fatalf("expected empty_dropped to increment by 1, got %d", s2.EmptyDropped)
	}
	if s2.Filtered != initialFiltered+1 {
		t.Fatalf("expected filtered to increment by 1, got %d", s2.Filtered)
	}
	if s2.Dispatched != initialDispatched+1 {
		t.Fatalf("expected dispatched to increment by 1, got %d", s2.Dispatched)
	}
	if s2.SendSuccess != initialSuccess+1 {
		t.Fatalf("expected send_success to increment by 1, got %d", s2.SendSuccess)
	}
	if s2.SendFailure != initialFailure+1 {
		t.Fatalf("expected send_failure to increment by 1, got %d", s2.SendFailure)
	}
	if s2.LastPoll != 123456789 {
		t.Fatalf("expected last poll timestamp 123456789, got %d", s2.LastPoll)
	}
	if s2.LastPollHuman == "" {
		t.Fatal("expected non-empty LastPollHuman")
	}
}

func TestObserveDispatchDuration(t *testing.T) {
	// Just verify the function doesn't panic
	ObserveDispatchDuration(0.05)
	ObserveDispatchDuration(1.5)
	ObserveDispatchDuration(30.0)
}

func TestPromHandler(t *testing.T) {
	handler := PromHandler()
	if handler == nil {
		t.Fatal("PromHandler returned nil")
	}
}

func TestJSONHandler(t *testing.T) {
	handler := JSONHandler()
	if handler == nil {
		t.Fatal("JSONHandler returned nil")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var snap StatsSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
}
