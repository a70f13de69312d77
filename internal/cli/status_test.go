package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sadiqj/opamsnap/pkg/pipeline"
	"github.com/sadiqj/opamsnap/pkg/progress"
)

func TestStatusServerEndpoints(t *testing.T) {
	c := New(io.Discard, LogInfo)
	runner := pipeline.NewRunner(c.Logger)
	runner.Counter.Discovered(10)
	runner.Counter.Resolved()

	srv := newStatusServer("127.0.0.1:0", runner, c.Logger)
	ts := httptest.NewServer(srv.srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/progress")
	if err != nil {
		t.Fatalf("GET /progress error = %v", err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var snap progress.Snapshot
	if err := json.NewDecoder(resp2.Body).Decode(&snap); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if snap.Discovered != 10 || snap.Resolved != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}
