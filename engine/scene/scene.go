package scene

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/game_object"
)

// Scene defines the interface for a collection of animated objects updated together each frame.
//
// Update runs every enabled object's Animator through one frame:
//  1. PreUpdate on the calling (game) goroutine, in ascending ID order
//  2. UpdateAnimation on the worker pool for animators whose graph allows it, and on the
//     calling goroutine for the rest
//  3. PostUpdate and root motion consumption on the calling goroutine, in ascending ID order
type Scene interface {
	// Name returns the scene's name.
	Name() string

	// Active returns whether the scene is updated by the engine.
	Active() bool

	// SetActive sets whether the scene is updated by the engine.
	//
	// Parameters:
	//   - active: true to update the scene each tick
	SetActive(active bool)

	// Add adds an object to the scene. Objects without an ID are assigned one. Ephemeral
	// objects are updated by the next Update only and are never stored in the registry.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - uint64: the object's ID
	//   - error: ErrNilObject or ErrNoAnimator if the object cannot be animated
	Add(obj game_object.GameObject) (uint64, error)

	// Get returns the registered object with the given ID, or nil.
	Get(id uint64) game_object.GameObject

	// Remove removes the object with the given ID. Unknown IDs are ignored.
	Remove(id uint64)

	// Clear removes every object from the scene.
	Clear()

	// Count returns the number of registered objects.
	Count() int

	// Update advances every enabled object by deltaSeconds.
	//
	// Parameters:
	//   - deltaSeconds: the frame delta in seconds
	//
	// Returns:
	//   - FrameStats: what the update did
	Update(deltaSeconds float32) FrameStats

	// LastFrameStats returns the stats of the most recent Update.
	LastFrameStats() FrameStats

	// Close stops the scene's worker pool. The scene must not be updated afterwards.
	Close()
}

// FrameStats describes a single scene Update.
type FrameStats struct {
	// Objects is the number of objects updated.
	Objects int

	// WorkerUpdates is the number of animators updated on the worker pool.
	WorkerUpdates int

	// GameThreadUpdates is the number of animators updated on the calling goroutine.
	GameThreadUpdates int

	// Failed is the number of worker updates that panicked and were recovered.
	Failed int

	// Notifies is the number of notifies fired across all animators.
	Notifies int

	// Duration is the wall time the update took.
	Duration time.Duration
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	registry  map[uint64]game_object.GameObject
	ephemeral []game_object.GameObject
	nextID    uint64

	// forceGameThread runs every animator on the calling goroutine.
	forceGameThread bool
	rootMotionAlpha float32

	// updatePool runs UpdateAnimation for worker-safe animators. Workers persist across
	// frames; a per-frame WaitGroup is the barrier since pool.Wait blocks until idle-exit.
	updatePool    worker.DynamicWorkerPool
	updateWorkers int
	queueSize     int

	// frame is scratch reused every Update.
	frame []game_object.GameObject

	lastStats FrameStats
}

var _ Scene = &scene{}

// NewScene creates a new headless Scene.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:              &sync.RWMutex{},
		name:            name,
		active:          true,
		registry:        make(map[uint64]game_object.GameObject),
		nextID:          1,
		rootMotionAlpha: 1,
		updateWorkers:   max(runtime.NumCPU()-1, 1),
		queueSize:       256,
	}

	for _, option := range options {
		option(s)
	}

	// Initialize the pool after options so WithUpdateWorkers can override the default.
	s.updatePool = worker.NewDynamicWorkerPool(s.updateWorkers, s.queueSize, 1*time.Second)
	common.Logger().Debug("[Scene] created", "name", s.name, "workers", s.updateWorkers)
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) Add(obj game_object.GameObject) (uint64, error) {
	if obj == nil {
		return 0, ErrNilObject
	}
	if obj.Animator() == nil {
		return 0, fmt.Errorf("object %q: %w", obj.Name(), ErrNoAnimator)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.register(obj)
	return obj.ID(), nil
}

// register assigns an ID and stores the object. Caller must hold s.mu write lock.
func (s *scene) register(obj game_object.GameObject) {
	if obj.ID() == 0 {
		obj.SetID(atomic.AddUint64(&s.nextID, 1) - 1)
	}
	if obj.Ephemeral() {
		s.ephemeral = append(s.ephemeral, obj)
		return
	}
	s.registry[obj.ID()] = obj
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registry, id)
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = make(map[uint64]game_object.GameObject)
	s.ephemeral = nil
}

func (s *scene) LastFrameStats() FrameStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStats
}

func (s *scene) Close() {
	s.updatePool.Stop()
}

func (s *scene) Update(deltaSeconds float32) FrameStats {
	start := time.Now()

	// Snapshot the objects so Add/Remove from handlers affect the next frame only.
	s.mu.Lock()
	frame := s.frame[:0]
	for _, id := range common.SortedKeys(s.registry) {
		if obj := s.registry[id]; obj.Enabled() {
			frame = append(frame, obj)
		}
	}
	for _, obj := range s.ephemeral {
		if obj.Enabled() {
			frame = append(frame, obj)
		}
	}
	s.ephemeral = s.ephemeral[:0]
	s.frame = frame
	forceGameThread := s.forceGameThread
	alpha := s.rootMotionAlpha
	s.mu.Unlock()

	stats := FrameStats{Objects: len(frame)}

	// Phase 1: game-thread PreUpdate, which also advances montages.
	for _, obj := range frame {
		obj.Animator().PreUpdate(deltaSeconds)
	}

	// Phase 2: graph update and evaluation. Worker-safe animators fan out to the pool;
	// the rest run here while the workers are busy.
	var wg sync.WaitGroup
	var failed atomic.Int32
	var local []game_object.GameObject
	for i, obj := range frame {
		a := obj.Animator()
		if forceGameThread || !a.CanUpdateInWorkerThread() {
			local = append(local, obj)
			continue
		}
		stats.WorkerUpdates++
		wg.Add(1)
		s.updatePool.SubmitTask(worker.Task{
			ID:      i,
			Payload: obj.ID(),
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						failed.Add(1)
						common.Logger().Warn("[Scene] animator update panicked", "scene", s.name, "animator", a.Name(), "panic", r)
					}
				}()
				a.UpdateAnimation()
				return nil, nil
			},
		})
	}
	for _, obj := range local {
		obj.Animator().UpdateAnimation()
	}
	stats.GameThreadUpdates = len(local)
	wg.Wait()
	stats.Failed = int(failed.Load())

	// Phase 3: game-thread PostUpdate, handlers and root motion.
	for _, obj := range frame {
		a := obj.Animator()
		a.PostUpdate()
		stats.Notifies += len(a.Notifies())
		obj.ApplyRootMotion(alpha)
	}

	stats.Duration = time.Since(start)
	s.mu.Lock()
	s.lastStats = stats
	s.mu.Unlock()
	return stats
}
