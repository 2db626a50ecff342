package profiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
)

func TestProfilerReportsAtInterval(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer common.SetLogger(nil)

	start := time.Unix(0, 0)
	clock := start
	p := NewProfiler()
	p.now = func() time.Time { return clock }
	p.lastTime = start

	frame := scene.FrameStats{Objects: 4, WorkerUpdates: 3, GameThreadUpdates: 1, Notifies: 2, Duration: 2 * time.Millisecond}
	clock = start.Add(500 * time.Millisecond)
	if _, logged := p.Tick(frame); logged {
		t.Fatal("reported before the interval elapsed")
	}

	clock = start.Add(time.Second)
	slow := frame
	slow.Duration = 4 * time.Millisecond
	slow.Failed = 1
	r, logged := p.Tick(slow)
	if !logged {
		t.Fatal("no report after the interval elapsed")
	}

	if r.TicksPerSecond != 2 {
		t.Errorf("tps = %v, want 2", r.TicksPerSecond)
	}
	if r.AvgObjects != 4 || r.WorkerShare != 0.75 {
		t.Errorf("avg objects = %v, worker share = %v, want 4 and 0.75", r.AvgObjects, r.WorkerShare)
	}
	if r.Notifies != 4 || r.Failed != 1 {
		t.Errorf("notifies = %d, failed = %d, want 4 and 1", r.Notifies, r.Failed)
	}
	if r.AvgUpdate != 3*time.Millisecond || r.MaxUpdate != 4*time.Millisecond {
		t.Errorf("update times = %v avg, %v max, want 3ms and 4ms", r.AvgUpdate, r.MaxUpdate)
	}
	if !strings.Contains(buf.String(), "[Profiler] stats") {
		t.Errorf("log output = %q, want a stats line", buf.String())
	}

	clock = start.Add(1500 * time.Millisecond)
	if _, logged := p.Tick(); logged {
		t.Error("counters were not reset after the report")
	}
}

func TestProfilerSetInterval(t *testing.T) {
	p := NewProfiler()
	p.SetInterval(0)
	if p.updateInterval != time.Second {
		t.Errorf("interval = %v, want the default kept", p.updateInterval)
	}
	p.SetInterval(250 * time.Millisecond)
	if p.updateInterval != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", p.updateInterval)
	}
}
