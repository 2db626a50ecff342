package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
)

// Profiler tracks tick rate, animation workload and memory statistics.
// Outputs stats to the shared logger at Info level at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	// Animation workload accumulated since the last report.
	objects       int
	workerUpdates int
	gameUpdates   int
	failed        int
	notifies      int
	updateTime    time.Duration
	maxUpdateTime time.Duration

	now func() time.Time
}

// Report is the summary logged at each interval.
type Report struct {
	TicksPerSecond float64

	// AvgObjects is the mean number of objects updated per tick.
	AvgObjects float64

	// WorkerShare is the fraction of animator updates that ran on the worker pool.
	WorkerShare float64

	Failed   int
	Notifies int

	AvgUpdate time.Duration
	MaxUpdate time.Duration

	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		now:            time.Now,
	}
}

// SetInterval changes how often stats are reported. Non-positive values are ignored.
func (p *Profiler) SetInterval(d time.Duration) {
	if d > 0 {
		p.updateInterval = d
	}
}

// Tick should be called once per engine tick with the stats of every scene updated in it.
// Logs a Report when the update interval has elapsed.
//
// Parameters:
//   - frames: the stats returned by each scene's Update this tick
//
// Returns:
//   - Report: the report that was logged
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(frames ...scene.FrameStats) (Report, bool) {
	p.frameCount++
	for _, f := range frames {
		p.objects += f.Objects
		p.workerUpdates += f.WorkerUpdates
		p.gameUpdates += f.GameThreadUpdates
		p.failed += f.Failed
		p.notifies += f.Notifies
		p.updateTime += f.Duration
		p.maxUpdateTime = max(p.maxUpdateTime, f.Duration)
	}

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Report{}, false
	}

	r := Report{
		TicksPerSecond: float64(p.frameCount) / elapsed.Seconds(),
		AvgObjects:     float64(p.objects) / float64(p.frameCount),
		Failed:         p.failed,
		Notifies:       p.notifies,
		AvgUpdate:      p.updateTime / time.Duration(p.frameCount),
		MaxUpdate:      p.maxUpdateTime,
	}
	if total := p.workerUpdates + p.gameUpdates; total > 0 {
		r.WorkerShare = float64(p.workerUpdates) / float64(total)
	}
	p.readMemory(&r, elapsed)

	common.Logger().Info("[Profiler] stats",
		"tps", r.TicksPerSecond,
		"objects", r.AvgObjects,
		"workerShare", r.WorkerShare,
		"failed", r.Failed,
		"notifies", r.Notifies,
		"avgUpdate", r.AvgUpdate,
		"maxUpdate", r.MaxUpdate,
		"heapMB", r.HeapMB,
		"allocRateMB", r.AllocRateMB,
		"gc", r.GCCount,
		"lastPauseUs", r.LastPauseUs,
		"maxPauseUs", r.MaxPauseUs,
	)

	p.frameCount = 0
	p.objects, p.workerUpdates, p.gameUpdates, p.failed, p.notifies = 0, 0, 0, 0, 0
	p.updateTime, p.maxUpdateTime = 0, 0
	p.lastTime = currentTime
	return r, true
}

func (p *Profiler) readMemory(r *Report, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}
