package session

import (
	"errors"
	"testing"
	"time"

	"drowsiness-service/internal/analysis"
	"drowsiness-service/internal/analysis/analysistest"
	"drowsiness-service/internal/log"
	"drowsiness-service/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := analysis.DefaultConfig()
	cfg.NodMeasureAlpha = 1.0
	cfg.NodMaxDurationMs = 1000

	m, err := NewManager(cfg, time.Second, 100, log.Discard())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func nodFrames() []models.Frame {
	pitches := []float64{0, 0.15, 0.15, 0.02}
	frames := make([]models.Frame, len(pitches))
	for i, p := range pitches {
		frames[i] = models.Frame{
			TimestampMs: int64(i * 100),
			Landmarks:   analysistest.Face(0.3, p),
		}
	}
	return frames
}

func TestManager_InvalidConfig(t *testing.T) {
	cfg := analysis.DefaultConfig()
	cfg.EarSmoothingAlpha = 0

	if _, err := NewManager(cfg, time.Second, 10, log.Discard()); !errors.Is(err, analysis.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestManager_Lifecycle(t *testing.T) {
	m := newTestManager(t)

	info, err := m.Create("cab-camera")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.ID == "" || info.Source != "cab-camera" {
		t.Errorf("Unexpected session info: %+v", info)
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", m.Len())
	}

	if err := m.Delete(info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Info(info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := m.Delete(info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestManager_ProcessSync(t *testing.T) {
	m := newTestManager(t)
	info, _ := m.Create("")

	var last models.FrameResult
	for _, f := range nodFrames() {
		r, err := m.ProcessSync(info.ID, f)
		if err != nil {
			t.Fatalf("ProcessSync: %v", err)
		}
		last = r
	}

	if !last.FaceDetected || !last.IsNodEvent || last.TotalNods != 1 {
		t.Errorf("Expected a nod on the last frame, got %+v", last)
	}
	if last.SessionID != info.ID {
		t.Errorf("Expected session %s, got %s", info.ID, last.SessionID)
	}

	got, _ := m.Info(info.ID)
	if got.Frames != 4 || got.TotalNods != 1 {
		t.Errorf("Expected 4 frames and 1 nod, got %d frames %d nods", got.Frames, got.TotalNods)
	}
}

func TestManager_NoFaceFrame(t *testing.T) {
	m := newTestManager(t)
	info, _ := m.Create("")

	m.ProcessSync(info.ID, models.Frame{TimestampMs: 0, Landmarks: analysistest.OpenEyes()})
	before, _ := m.Info(info.ID)

	r, err := m.ProcessSync(info.ID, models.Frame{TimestampMs: 33})
	if err != nil {
		t.Fatalf("ProcessSync: %v", err)
	}
	if r.FaceDetected || r.Alarm {
		t.Errorf("Expected empty result for a frame without a face, got %+v", r)
	}

	after, _ := m.Info(info.ID)
	if after.State != before.State {
		t.Errorf("Analyzer state changed on a frame without a face")
	}
}

func TestManager_AlarmOnClosedEyes(t *testing.T) {
	m := newTestManager(t)
	info, _ := m.Create("")

	var r models.FrameResult
	for i := 0; i < 10; i++ {
		r, _ = m.ProcessSync(info.ID, models.Frame{TimestampMs: int64(i * 33), Landmarks: analysistest.ClosedEyes()})
	}

	if !r.EyesClosed || !r.Alarm {
		t.Errorf("Expected alarm for closed eyes, got %+v", r)
	}
	if r.DriverState != analysis.DriverMicrosleep {
		t.Errorf("Expected microsleep state, got %s", r.DriverState)
	}
}

func TestManager_ResetIsolatesSessions(t *testing.T) {
	m := newTestManager(t)
	info, _ := m.Create("")

	for _, f := range nodFrames() {
		m.ProcessSync(info.ID, f)
	}

	if err := m.Reset(info.ID); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	got, _ := m.Info(info.ID)
	if got.TotalNods != 0 || got.State.EarSmoothedSet || got.State.NodBaselineSet {
		t.Errorf("Expected cleared state after reset, got %+v", got.State)
	}

	if err := m.Reset("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m := newTestManager(t)
	a, _ := m.Create("a")
	b, _ := m.Create("b")

	for _, f := range nodFrames() {
		m.ProcessSync(a.ID, f)
	}

	r, _ := m.ProcessSync(b.ID, models.Frame{TimestampMs: 0, Landmarks: analysistest.OpenEyes()})
	if r.TotalNods != 0 {
		t.Errorf("Session b inherited nods from session a: %d", r.TotalNods)
	}

	if list := m.List(); len(list) != 2 || list[0].ID != a.ID {
		t.Errorf("Expected sessions listed in creation order, got %+v", list)
	}
}

func TestManager_EvictIdle(t *testing.T) {
	m := newTestManager(t)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale, _ := m.Create("stale")
	fresh, _ := m.Create("fresh")

	now = now.Add(5 * time.Minute)
	m.ProcessSync(fresh.ID, models.Frame{Landmarks: analysistest.OpenEyes()})

	now = now.Add(6 * time.Minute)
	evicted := m.EvictIdle(10 * time.Minute)

	if len(evicted) != 1 || evicted[0] != stale.ID {
		t.Errorf("Expected only the stale session evicted, got %v", evicted)
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Errorf("Fresh session should survive: %v", err)
	}
}

func TestManager_SubmitBeforeStart(t *testing.T) {
	m := newTestManager(t)
	info, _ := m.Create("")

	if err := m.Submit(info.ID, models.Frame{}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}
	if err := m.Submit("missing", models.Frame{}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_SubmitQueueFull(t *testing.T) {
	m := newTestManager(t)
	info, _ := m.Create("")

	// Queue without a worker draining it
	m.queues = []chan job{make(chan job, 1)}

	if err := m.Submit(info.ID, models.Frame{}); err != nil {
		t.Fatalf("First submit: %v", err)
	}
	if err := m.Submit(info.ID, models.Frame{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if m.QueueLength() != 1 {
		t.Errorf("Expected queue length 1, got %d", m.QueueLength())
	}
}

func TestManager_AsyncPreservesOrder(t *testing.T) {
	m := newTestManager(t)
	if err := m.Start(4); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	info, _ := m.Create("")
	frames := nodFrames()
	for _, f := range frames {
		if err := m.Submit(info.ID, f); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	timeout := time.After(2 * time.Second)
	var results []models.FrameResult
	for len(results) < len(frames) {
		select {
		case r := <-m.Results():
			results = append(results, r)
		case <-timeout:
			t.Fatalf("Timed out after %d results", len(results))
		}
	}

	for i, r := range results {
		if r.TimestampMs != frames[i].TimestampMs {
			t.Errorf("result %d: expected timestamp %d, got %d", i, frames[i].TimestampMs, r.TimestampMs)
		}
	}
	if !results[3].IsNodEvent {
		t.Errorf("Expected the nod on the last async frame, got %+v", results[3])
	}
}

func TestManager_SubmitAfterStop(t *testing.T) {
	m := newTestManager(t)
	if err := m.Start(2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	info, _ := m.Create("")

	m.Stop()

	if err := m.Submit(info.ID, nodFrames()[0]); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
	if m.QueueLength() != 0 {
		t.Errorf("Expected empty queues after stop, got %d", m.QueueLength())
	}
	if err := m.Start(2); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped on restart, got %v", err)
	}
}

func TestManager_StartTwice(t *testing.T) {
	m := newTestManager(t)
	if err := m.Start(2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	if err := m.Start(3); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
	if got := len(m.queues); got != 2 {
		t.Errorf("Second Start must keep the original 2 queues, got %d", got)
	}
}

func TestManager_StopDrainsAcceptedFrames(t *testing.T) {
	m := newTestManager(t)
	if err := m.Start(1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	info, _ := m.Create("")

	for _, f := range nodFrames() {
		if err := m.Submit(info.ID, f); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	m.Stop()

	if got, _ := m.Info(info.ID); got.Frames != int64(len(nodFrames())) {
		t.Errorf("Expected %d processed frames after stop, got %d", len(nodFrames()), got.Frames)
	}
}

func TestShard_Stable(t *testing.T) {
	for _, id := range []string{"a", "b", "5f0c1d2e"} {
		if shard(id, 8) != shard(id, 8) {
			t.Errorf("shard(%q) is not stable", id)
		}
		if s := shard(id, 8); s < 0 || s >= 8 {
			t.Errorf("shard(%q) out of range: %d", id, s)
		}
	}
}

func BenchmarkProcessSync(b *testing.B) {
	m, _ := NewManager(analysis.DefaultConfig(), time.Second, 100, log.Discard())
	info, _ := m.Create("")
	lm := analysistest.OpenEyes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.ProcessSync(info.ID, models.Frame{TimestampMs: int64(i * 33), Landmarks: lm})
	}
}
