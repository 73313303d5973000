package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"panostitch/internal/config"
	"panostitch/internal/pipeline"
	"panostitch/internal/storage"

	"github.com/spf13/cobra"
)

func TestStitchCommandForwardsFlags(t *testing.T) {
	root, fakePipe := newTestRoot(t)
	temp := t.TempDir()

	cmd := newStitchCmd(root)
	out := filepath.Join(temp, "pano.jpg")
	err := execute(cmd, "--focal", "850", "--blend", "linear", "--drift=false", temp, out)
	if err != nil {
		t.Fatalf("stitch command failed: %v", err)
	}
	if len(fakePipe.jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(fakePipe.jobs))
	}

	job := fakePipe.jobs[0]
	if job.Type != pipeline.JobStitch {
		t.Fatalf("expected stitch job, got %s", job.Type)
	}
	if job.Output != out {
		t.Fatalf("positional output ignored: %q", job.Output)
	}
	if job.Options["focal"] != 850.0 {
		t.Fatalf("focal override not forwarded: %v", job.Options["focal"])
	}
	if job.Options["blend"] != "linear" {
		t.Fatalf("blend override not forwarded: %v", job.Options["blend"])
	}
	if drift, ok := job.Options["drift"].(bool); !ok || drift {
		t.Fatalf("drift override not forwarded: %v", job.Options["drift"])
	}
}

func TestStitchCommandDefaultsToConfig(t *testing.T) {
	root, fakePipe := newTestRoot(t)
	temp := t.TempDir()

	if err := execute(newStitchCmd(root), temp); err != nil {
		t.Fatalf("stitch command failed: %v", err)
	}

	job := fakePipe.jobs[0]
	for _, key := range []string{"focal", "blend", "drift"} {
		if _, present := job.Options[key]; present {
			t.Fatalf("option %q should stay unset so config decides", key)
		}
	}
	wantOut := filepath.Join(root.cfg.Paths.DefaultOutput, filepath.Base(temp)+"_panorama.jpg")
	if job.Output != wantOut {
		t.Fatalf("default output %q, want %q", job.Output, wantOut)
	}
}

func TestDispatchCommands(t *testing.T) {
	root, fakePipe := newTestRoot(t)
	temp := t.TempDir()

	cases := []struct {
		name       string
		cmd        *cobra.Command
		args       []string
		expectType pipeline.JobType
	}{
		{"scan", newScanCmd(root), []string{temp}, pipeline.JobScan},
		{"raw", newRawCmd(root), []string{temp}, pipeline.JobRaw},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fakePipe.reset()
			if err := execute(tc.cmd, tc.args...); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if len(fakePipe.jobs) != 1 {
				t.Fatalf("expected one job, got %d", len(fakePipe.jobs))
			}
			if fakePipe.jobs[0].Type != tc.expectType {
				t.Fatalf("expected type %s, got %s", tc.expectType, fakePipe.jobs[0].Type)
			}
		})
	}
}

func TestServeCommandUsesInjectedFunction(t *testing.T) {
	root, _ := newTestRoot(t)
	var called bool
	root.serveFn = func(ctx context.Context, addr string, store *storage.Store, pipe pipelineClient, log *slog.Logger) error {
		called = true
		if addr != ":9999" {
			t.Fatalf("unexpected addr %s", addr)
		}
		return nil
	}
	if err := execute(newServeCmd(root), "--addr", ":9999"); err != nil {
		t.Fatalf("serve command failed: %v", err)
	}
	if !called {
		t.Fatalf("serve function was not invoked")
	}
}

func TestServeCommandDefaultsToConfigAddr(t *testing.T) {
	root, _ := newTestRoot(t)
	root.cfg.Server.Addr = ":7001"
	var got string
	root.serveFn = func(ctx context.Context, addr string, store *storage.Store, pipe pipelineClient, log *slog.Logger) error {
		got = addr
		return nil
	}
	if err := execute(newServeCmd(root)); err != nil {
		t.Fatalf("serve command failed: %v", err)
	}
	if got != ":7001" {
		t.Fatalf("expected config addr, got %q", got)
	}
}

func TestWatchCommandRequiresInbox(t *testing.T) {
	root, _ := newTestRoot(t)
	root.cfg.Watch.InboxDir = ""
	if err := execute(newWatchCmd(root)); err == nil {
		t.Fatalf("expected error without an inbox directory")
	}
}

func TestConfigCommands(t *testing.T) {
	root, _ := newTestRoot(t)

	showOut, err := executeCapture(newConfigShowCmd(root))
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(showOut, "Current configuration") {
		t.Fatalf("expected configuration header, got %q", showOut)
	}
	if !strings.Contains(showOut, "\"stitching\"") {
		t.Fatalf("expected stitching section in output, got %q", showOut)
	}

	okOut, err := executeCapture(newConfigValidateCmd(root))
	if err != nil {
		t.Fatalf("config validate failed: %v", err)
	}
	if !strings.Contains(okOut, "configuration ok") {
		t.Fatalf("expected validation success, got %q", okOut)
	}

	root.cfg.Stitching.RatioThreshold = 2.0
	if _, err := executeCapture(newConfigValidateCmd(root)); err == nil {
		t.Fatalf("expected validation failure for bad ratio threshold")
	}
}

func TestVersionCommand(t *testing.T) {
	root, _ := newTestRoot(t)
	out, err := executeCapture(newVersionCmd(root))
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "panostitch v1.0.0-dev") {
		t.Fatalf("expected version string, got %q", out)
	}
}

func TestEnqueueAndWaitPropagatesErrors(t *testing.T) {
	root, fakePipe := newTestRoot(t)
	job := pipeline.Job{ID: "err-job", Type: pipeline.JobScan}
	fakePipe.jobErrors["err-job"] = context.DeadlineExceeded
	if err := root.enqueueAndWait(context.Background(), job); err == nil {
		t.Fatalf("expected error from pipeline result")
	}
}

// Test helpers

func newTestRoot(t *testing.T) (*Root, *fakePipeline) {
	t.Helper()

	t.Setenv("PANOSTITCH_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	tmp := t.TempDir()
	cfg.Paths.DefaultOutput = filepath.Join(tmp, "output")
	cfg.Paths.DatabasePath = filepath.Join(tmp, "panostitch.db")

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pipe := newFakePipeline()

	root := &Root{
		pipeline: pipe,
		cfg:      cfg,
		log:      logger,
		store:    nil,
		serveFn:  defaultServe,
	}
	return root, pipe
}

func execute(cmd *cobra.Command, args ...string) error {
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func executeCapture(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

type fakePipeline struct {
	mu        sync.Mutex
	jobs      []pipeline.Job
	subs      map[int]chan pipeline.Result
	nextSubID int
	jobErrors map[string]error
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		subs:      make(map[int]chan pipeline.Result),
		jobErrors: make(map[string]error),
	}
}

func (f *fakePipeline) Submit(job pipeline.Job) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	subs := make([]chan pipeline.Result, 0, len(f.subs))
	for _, ch := range f.subs {
		subs = append(subs, ch)
	}
	err := f.errorFor(job)
	f.mu.Unlock()

	go func() {
		res := pipeline.Result{Job: job, Error: err, Meta: map[string]any{"ok": true}}
		for _, ch := range subs {
			ch <- res
		}
	}()
	return nil
}

func (f *fakePipeline) Subscribe() (<-chan pipeline.Result, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSubID
	f.nextSubID++
	ch := make(chan pipeline.Result, 2)
	f.subs[id] = ch
	unsub := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			close(c)
			delete(f.subs, id)
		}
	}
	return ch, unsub
}

func (f *fakePipeline) errorFor(job pipeline.Job) error {
	if err, ok := f.jobErrors[job.ID]; ok {
		return err
	}
	if err, ok := f.jobErrors[string(job.Type)]; ok {
		return err
	}
	return nil
}

func (f *fakePipeline) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = nil
	f.jobErrors = make(map[string]error)
}
