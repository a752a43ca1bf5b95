package metaflow

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// pickleString returns the protocol 2 pickle of a Python str.
func pickleString(s string) []byte {
	var b bytes.Buffer
	b.Write([]byte{0x80, 0x02, 'X'})
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(s)))
	b.WriteString(s)
	b.Write([]byte{'q', 0x00, '.'})
	return b.Bytes()
}

// pickleBool returns the protocol 2 pickle of True or False.
func pickleBool(v bool) []byte {
	op := byte(0x89)
	if v {
		op = 0x88
	}
	return []byte{0x80, 0x02, op, '.'}
}

// pickleInt returns the protocol 2 pickle of a small int.
func pickleInt(v uint8) []byte {
	return []byte{0x80, 0x02, 'K', v, '.'}
}

func gzipped(t *testing.T, p []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := gzip.NewWriter(&b)
	_, err := zw.Write(p)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return b.Bytes()
}

// memBlobs serves datastore objects from memory.
type memBlobs map[string][]byte

func (m memBlobs) Open(_ context.Context, location string) (io.ReadCloser, error) {
	b, ok := m[location]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", location, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type runFixture struct {
	run       Run
	endTask   *Task
	artifacts []Artifact
}

// fakeService is an in-memory metadata service.
type fakeService struct {
	flows    map[string][]runFixture
	requests atomic.Int64
	lastKey  atomic.Value
	failWith int
}

func (f *fakeService) find(flow, runID string) (runFixture, bool) {
	for _, fx := range f.flows[flow] {
		if fx.run.ID() == runID {
			return fx, true
		}
	}
	return runFixture{}, false
}

func (f *fakeService) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.requests.Add(1)
			f.lastKey.Store(req.Header.Get("x-api-key"))
			if f.failWith != 0 {
				http.Error(w, "boom", f.failWith)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/flows/{flow}/runs", func(w http.ResponseWriter, req *http.Request) {
		fixtures, ok := f.flows[chi.URLParam(req, "flow")]
		if !ok {
			http.NotFound(w, req)
			return
		}
		runs := make([]Run, 0, len(fixtures))
		for _, fx := range fixtures {
			runs = append(runs, fx.run)
		}
		writeJSON(w, runs)
	})
	r.Get("/flows/{flow}/runs/{run}", func(w http.ResponseWriter, req *http.Request) {
		fx, ok := f.find(chi.URLParam(req, "flow"), chi.URLParam(req, "run"))
		if !ok {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, fx.run)
	})
	r.Get("/flows/{flow}/runs/{run}/steps/{step}/tasks", func(w http.ResponseWriter, req *http.Request) {
		fx, ok := f.find(chi.URLParam(req, "flow"), chi.URLParam(req, "run"))
		if !ok || fx.endTask == nil || chi.URLParam(req, "step") != EndStep {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, []Task{*fx.endTask})
	})
	r.Get("/flows/{flow}/runs/{run}/steps/{step}/tasks/{task}/artifacts", func(w http.ResponseWriter, req *http.Request) {
		fx, ok := f.find(chi.URLParam(req, "flow"), chi.URLParam(req, "run"))
		if !ok || fx.endTask == nil || fx.endTask.ID() != chi.URLParam(req, "task") {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, fx.artifacts)
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func artifact(run Run, name, location string, attempt int) Artifact {
	return Artifact{
		FlowID:    run.FlowID,
		RunNumber: run.RunNumber,
		StepName:  EndStep,
		TaskID:    100 + run.RunNumber,
		Name:      name,
		Location:  location,
		DSType:    "s3",
		AttemptID: attempt,
	}
}

func endTask(run Run) *Task {
	return &Task{FlowID: run.FlowID, RunNumber: run.RunNumber, StepName: EndStep, TaskID: 100 + run.RunNumber}
}

// helloFlow builds a deployment with four runs of HelloFlow:
//
//	9  ts=500   successful
//	10 ts=1000  successful, has artifacts
//	11 ts=3000  failed (_success False)
//	12 ts=2000  never reached end
func helloFlow(t *testing.T) (*fakeService, memBlobs) {
	t.Helper()

	blobs := memBlobs{
		"mem://true":       gzipped(t, pickleBool(true)),
		"mem://false":      gzipped(t, pickleBool(false)),
		"mem://model-old":  gzipped(t, pickleString("s3://bucket/old.pkl")),
		"mem://model":      gzipped(t, pickleString("s3://bucket/models/model.pkl")),
		"mem://count":      gzipped(t, pickleInt(42)),
		"mem://notes":      pickleString("local/notes.txt"),
		"mem://nine-model": gzipped(t, pickleString("s3://bucket/nine.pkl")),
		"mem://file-url":   gzipped(t, pickleString("file:///etc/mfbot.yaml?s3://bucket/key")),
		"mem://prose":      gzipped(t, pickleString("weights live at s3://bucket/key")),
		"mem://no-bucket":  gzipped(t, pickleString("s3:///key")),
	}

	run9 := Run{FlowID: "HelloFlow", RunNumber: 9, TSEpoch: 500}
	run10 := Run{FlowID: "HelloFlow", RunNumber: 10, TSEpoch: 1000, UserName: "alice"}
	run11 := Run{FlowID: "HelloFlow", RunNumber: 11, TSEpoch: 3000}
	run12 := Run{FlowID: "HelloFlow", RunNumber: 12, TSEpoch: 2000}

	svc := &fakeService{flows: map[string][]runFixture{
		"HelloFlow": {
			{run: run9, endTask: endTask(run9), artifacts: []Artifact{
				artifact(run9, "_success", "mem://true", 0),
				artifact(run9, "model", "mem://nine-model", 0),
			}},
			{run: run10, endTask: endTask(run10), artifacts: []Artifact{
				artifact(run10, "_success", "mem://true", 1),
				artifact(run10, "model", "mem://model-old", 0),
				artifact(run10, "model", "mem://model", 1),
				artifact(run10, "count", "mem://count", 1),
				artifact(run10, "notes", "mem://notes", 1),
				artifact(run10, "broken", "mem://missing", 1),
				artifact(run10, "file-url", "mem://file-url", 1),
				artifact(run10, "prose", "mem://prose", 1),
				artifact(run10, "no-bucket", "mem://no-bucket", 1),
			}},
			{run: run11, endTask: endTask(run11), artifacts: []Artifact{
				artifact(run11, "_success", "mem://false", 0),
				artifact(run11, "model", "mem://model", 0),
			}},
			{run: run12},
		},
		"EmptyFlow": {},
	}}
	return svc, blobs
}

func newTestResolver(t *testing.T) (*Resolver, *fakeService) {
	t.Helper()
	svc, blobs := helloFlow(t)
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{URL: srv.URL, AuthKey: "secret", MaxRetries: 1})
	require.NoError(t, err)
	return NewResolver(client, blobs, nil), svc
}
