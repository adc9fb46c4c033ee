package recording

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is one named periodic job owned by a camera controller
type Task struct {
	Name     string
	Interval time.Duration
	Run      func()
}

// TaskRunner owns a camera's periodic jobs (capture tick, scratch sweep) and
// stops them as a unit. Each task runs on its own ticker goroutine; Stop
// cancels all of them and waits until they have drained.
type TaskRunner struct {
	camera  string
	mu      sync.Mutex
	tasks   []Task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewTaskRunner creates an empty runner for one camera
func NewTaskRunner(camera string) *TaskRunner {
	return &TaskRunner{camera: camera}
}

// Add registers a named periodic task. Must be called before Start.
func (r *TaskRunner) Add(name string, interval time.Duration, run func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		log.Printf("[%s] ⚠️ Ignoring task %q added after start", r.camera, name)
		return
	}
	r.tasks = append(r.tasks, Task{Name: name, Interval: interval, Run: run})
}

// Start launches all registered tasks. They stop together when ctx is
// cancelled or Stop is called.
func (r *TaskRunner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, task := range r.tasks {
		r.wg.Add(1)
		go r.runTask(ctx, task)
	}
	log.Printf("[%s] ⏱️ Started %d periodic tasks", r.camera, len(r.tasks))
}

// Stop cancels every task and blocks until their goroutines exit
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
}

func (r *TaskRunner) runTask(ctx context.Context, task Task) {
	defer r.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] ⏱️ Task %q stopped", r.camera, task.Name)
			return
		case <-ticker.C:
			task.Run()
		}
	}
}
