package integration_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"pkt.systems/foldscreen"
	"pkt.systems/foldscreen/httpapi"
	"pkt.systems/foldscreen/schema"
)

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

type testServer struct {
	server   foldscreen.Server
	baseURL  string
	stateDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	addr := freeAddr(t)
	stateDir := t.TempDir()
	server, err := foldscreen.New(foldscreen.ServerConfig{
		StateDir: stateDir,
		Emulator: schema.EmulatorConfig{
			ResizeQuietWindow: 100 * time.Millisecond,
			DefaultViewport:   schema.Viewport{Width: 800, Height: 600},
		},
		HTTP:           httpapi.Config{Addr: addr, StreamHistory: 16},
		DefaultContext: schema.DefaultContextID,
		Metrics:        true,
	}, foldscreen.ServerDeps{}, foldscreen.WithHTTP(), foldscreen.WithStateWatch())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := server.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = server.Stop(stopCtx)
		cancel()
	})
	ts := &testServer{server: server, baseURL: "http://" + addr, stateDir: stateDir}
	ts.waitReady(t)
	return ts
}

func (ts *testServer) waitReady(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(ts.baseURL + "/api/contexts")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server not ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func readJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

type sseEvent struct {
	ID    string
	Event schema.ChangeEvent
}

// openStream connects to a context's change stream and decodes events in the
// background until ctx is done.
func openStream(ctx context.Context, t *testing.T, url string) <-chan sseEvent {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		t.Fatalf("stream status %d", resp.StatusCode)
	}
	events := make(chan sseEvent, 16)
	go func() {
		defer close(events)
		defer func() { _ = resp.Body.Close() }()
		reader := bufio.NewReader(resp.Body)
		var current sseEvent
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				select {
				case events <- current:
				case <-ctx.Done():
					return
				}
				current = sseEvent{}
			case strings.HasPrefix(line, "id: "):
				current.ID = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "data: "):
				_ = json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.Event)
			}
		}
	}()
	return events
}

func nextEvent(t *testing.T, events <-chan sseEvent, timeout time.Duration) sseEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		if !ok {
			t.Fatalf("stream closed")
		}
		return event
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for stream event")
	}
	return sseEvent{}
}
