package render

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mixdeck/mixplan"
)

func testPlan() mixplan.Plan {
	return mixplan.Plan{
		BaseURI: "takes/main.wav",
		Segments: []mixplan.Segment{
			{URI: "a.mp3", StartMs: 1000, EndMs: 3000, TrackID: mixplan.TrackClip, Gain: 1},
		},
		TrackGains: mixplan.TrackGains{Clip: 1, Bed: 1, SFX: 1},
		OutExt:     "m4a",
	}
}

func quietClient(baseURL, apiKey string) *Client {
	c := NewClient(baseURL, apiKey)
	c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	return c
}

func TestSubmit(t *testing.T) {
	var gotPath, gotMethod, gotAuth, gotType string
	var gotPlan mixplan.Plan

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotPlan); err != nil {
			t.Errorf("decode submitted plan: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"jobId":"job-42"}`)
	}))
	defer srv.Close()

	client := quietClient(srv.URL, "sekrit")
	jobID, err := client.Submit(context.Background(), testPlan())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if jobID != "job-42" {
		t.Errorf("Submit() = %q, want %q", jobID, "job-42")
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotPath != "/v1/mixdown" {
		t.Errorf("path = %q, want /v1/mixdown", gotPath)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotType)
	}
	if gotPlan.BaseURI != "takes/main.wav" || len(gotPlan.Segments) != 1 {
		t.Errorf("submitted plan = %+v, want the test plan", gotPlan)
	}
}

func TestSubmitOmitsAuthWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"jobId":"job-1"}`)
	}))
	defer srv.Close()

	if _, err := quietClient(srv.URL, "").Submit(context.Background(), testPlan()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestSubmitRejectsInvalidPlanLocally(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	plan := testPlan()
	plan.BaseURI = ""
	if _, err := quietClient(srv.URL, "").Submit(context.Background(), plan); err == nil {
		t.Error("Submit() error = nil, want validation error")
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("invalid plan reached the service %d times, want 0", n)
	}
}

func TestSubmitErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantPart string
	}{
		{
			name:     "service error detail",
			status:   http.StatusBadRequest,
			body:     `{"error":"segment 0 overlaps"}`,
			wantPart: "segment 0 overlaps",
		},
		{
			name:     "opaque failure",
			status:   http.StatusInternalServerError,
			body:     "gateway melted",
			wantPart: "unexpected status",
		},
		{
			name:     "accepted without job id",
			status:   http.StatusAccepted,
			body:     `{}`,
			wantPart: "no job id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := quietClient(srv.URL, "").Submit(context.Background(), testPlan())
			if err == nil {
				t.Fatal("Submit() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantPart) {
				t.Errorf("Submit() error = %q, want mention of %q", err, tt.wantPart)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if r.URL.Path != "/v1/mixdown/job-42" {
			t.Errorf("path = %q, want /v1/mixdown/job-42", r.URL.Path)
		}
		fmt.Fprint(w, `{"status":"running","progress":0.4}`)
	}))
	defer srv.Close()

	job, err := quietClient(srv.URL, "").Status(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if job.State != StateRunning {
		t.Errorf("State = %q, want %q", job.State, StateRunning)
	}
	if job.Progress != 0.4 {
		t.Errorf("Progress = %v, want 0.4", job.Progress)
	}
	// The service omitted the id; the client backfills it.
	if job.ID != "job-42" {
		t.Errorf("ID = %q, want backfilled %q", job.ID, "job-42")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := quietClient(srv.URL, "").Status(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "unknown job") {
		t.Errorf("Status() error = %v, want unknown job error", err)
	}
}

func TestStateTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateQueued, false},
		{StateRunning, false},
		{StateDone, true},
		{StateFailed, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%q.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestPollUntilDone(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch polls.Add(1) {
		case 1:
			fmt.Fprint(w, `{"jobId":"job-1","status":"queued"}`)
		case 2:
			fmt.Fprint(w, `{"jobId":"job-1","status":"running","progress":0.6}`)
		default:
			fmt.Fprint(w, `{"jobId":"job-1","status":"done","progress":1,"outputUri":"renders/final.m4a"}`)
		}
	}))
	defer srv.Close()

	job, err := quietClient(srv.URL, "").PollUntilDone(context.Background(), "job-1", time.Millisecond)
	if err != nil {
		t.Fatalf("PollUntilDone() error = %v", err)
	}
	if job.OutputURI != "renders/final.m4a" {
		t.Errorf("OutputURI = %q, want %q", job.OutputURI, "renders/final.m4a")
	}
	if n := polls.Load(); n < 3 {
		t.Errorf("polled %d times, want at least 3", n)
	}
}

func TestPollUntilDoneRetriesTransientFailures(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"jobId":"job-1","status":"done","outputUri":"renders/final.m4a"}`)
	}))
	defer srv.Close()

	job, err := quietClient(srv.URL, "").PollUntilDone(context.Background(), "job-1", time.Millisecond)
	if err != nil {
		t.Fatalf("PollUntilDone() error = %v, want retry past the bad gateway", err)
	}
	if job.State != StateDone {
		t.Errorf("State = %q, want %q", job.State, StateDone)
	}
}

func TestPollUntilDoneReportsFailedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jobId":"job-1","status":"failed","error":"clip waveform unreadable"}`)
	}))
	defer srv.Close()

	job, err := quietClient(srv.URL, "").PollUntilDone(context.Background(), "job-1", time.Millisecond)
	if err == nil {
		t.Fatal("PollUntilDone() error = nil, want job failure")
	}
	if !strings.Contains(err.Error(), "clip waveform unreadable") {
		t.Errorf("PollUntilDone() error = %q, want the service reason", err)
	}
	if job.State != StateFailed {
		t.Errorf("State = %q, want %q", job.State, StateFailed)
	}
}

func TestPollUntilDoneHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jobId":"job-1","status":"running"}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := quietClient(srv.URL, "").PollUntilDone(ctx, "job-1", 10*time.Millisecond)
	if err == nil || ctx.Err() == nil {
		t.Fatalf("PollUntilDone() error = %v, want context deadline", err)
	}
}
