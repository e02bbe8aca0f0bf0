// Package shutdown coordinates graceful teardown of the service:
// drain the HTTP listener first, then flush and close the stores.
// Handlers run in phase order; lower phases shut down first, and
// handlers within one phase run concurrently.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/meganlabs/memokit/logging"
)

// Common errors.
var (
	ErrAlreadyShutdown = errors.New("shutdown already initiated")
	ErrTimeout         = errors.New("shutdown timeout exceeded")
)

// DefaultTimeout bounds a full shutdown when no timeout is given.
const DefaultTimeout = 30 * time.Second

// Phases used by the service. Listener drains before storage closes.
const (
	PhaseListener = 10
	PhaseStorage  = 20
)

// Func is one component's teardown step. The context is cancelled
// when the overall shutdown timeout is reached.
type Func func(ctx context.Context) error

type registration struct {
	name  string
	fn    Func
	phase int
}

// Coordinator runs registered teardown steps exactly once.
type Coordinator struct {
	log *logging.Logger

	mu       sync.Mutex
	handlers []registration

	once sync.Once
	done chan struct{}
	err  error

	signalChan chan os.Signal
}

// NewCoordinator creates a coordinator.
func NewCoordinator(log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.New()
	}
	return &Coordinator{
		log:        log.WithComponent("shutdown"),
		done:       make(chan struct{}),
		signalChan: make(chan os.Signal, 1),
	}
}

// Register adds a teardown step to the given phase.
func (c *Coordinator) Register(name string, phase int, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, fn: fn, phase: phase})
}

// Shutdown runs all registered steps in phase order. Steps within a
// phase run concurrently; a failing step is logged and does not stop
// the rest. Repeated calls return ErrAlreadyShutdown.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	ran := false
	c.once.Do(func() {
		ran = true
		c.err = c.run(ctx)
		close(c.done)
	})
	if !ran {
		select {
		case <-c.done:
			return c.err
		default:
			return ErrAlreadyShutdown
		}
	}
	return c.err
}

// ShutdownWithTimeout runs Shutdown bounded by timeout.
// A non-positive timeout uses DefaultTimeout.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-c.signalChan
		c.log.Info("signal received, shutting down")
		_ = c.ShutdownWithTimeout(DefaultTimeout)
	}()
}

// Done is closed when shutdown completes.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error; valid once Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var errs []error
	for start := 0; start < len(handlers); {
		end := start
		for end < len(handlers) && handlers[end].phase == handlers[start].phase {
			end++
		}

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for _, h := range handlers[start:end] {
			wg.Add(1)
			go func(h registration) {
				defer wg.Done()
				began := time.Now()
				if err := h.fn(ctx); err != nil {
					c.log.Error("teardown step failed", map[string]interface{}{
						"name":  h.name,
						"error": err.Error(),
					})
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					return
				}
				c.log.Info("teardown step complete", map[string]interface{}{
					"name":     h.name,
					"duration": time.Since(began).String(),
				})
			}(h)
		}
		wg.Wait()

		if ctx.Err() != nil {
			errs = append(errs, ErrTimeout)
			break
		}
		start = end
	}

	return errors.Join(errs...)
}
