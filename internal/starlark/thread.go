package starlark

import (
	"context"
	"log/slog"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"golang.org/x/sync/errgroup"
)

// defaultPoolSize bounds the idle threads kept when no size is given.
const defaultPoolSize = 10

var evalOptions = &syntax.FileOptions{}

// ThreadPool recycles Starlark threads. Script methods are called from
// whichever goroutine mutates an object graph, so threads are handed out
// per call and returned afterwards.
type ThreadPool struct {
	idle   chan *starlark.Thread
	logger *slog.Logger
}

// NewThreadPool creates a pool keeping at most size idle threads. Script
// print output is logged at debug level.
func NewThreadPool(size int, logger *slog.Logger) *ThreadPool {
	if size <= 0 {
		size = defaultPoolSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ThreadPool{
		idle:   make(chan *starlark.Thread, size),
		logger: logger,
	}
}

// Get hands out an idle thread, or a new one when none is idle. name
// shows up in error backtraces and print output.
func (p *ThreadPool) Get(name string) *starlark.Thread {
	select {
	case thread := <-p.idle:
		thread.Name = name
		return thread
	default:
	}

	logger := p.logger
	return &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			logger.Debug(msg, slog.String("thread", t.Name))
		},
	}
}

// Put gives a thread back. Cancellation is cleared; the thread is dropped
// when the pool is full.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	thread.Name = ""
	thread.Uncancel()
	select {
	case p.idle <- thread:
	default:
	}
}

// Size returns the number of idle threads.
func (p *ThreadPool) Size() int { return len(p.idle) }

// EvalTask is one expression to evaluate.
type EvalTask struct {
	Name string
	Expr string
}

// EvalResult is the outcome of an EvalTask. Steps counts the Starlark
// execution steps the expression took.
type EvalResult struct {
	Name  string
	Value starlark.Value
	Steps uint64
	Error error
}

// ParallelExecutor evaluates independent expressions concurrently against
// frozen globals. Expressions that call mutating methods on shared objects
// must not run in parallel.
type ParallelExecutor struct {
	pool    *ThreadPool
	limit   int
	globals starlark.StringDict
}

// NewParallelExecutor creates an executor running at most limit
// expressions at a time.
func NewParallelExecutor(limit int, globals starlark.StringDict) *ParallelExecutor {
	if limit <= 0 {
		limit = defaultPoolSize
	}
	return &ParallelExecutor{
		pool:    NewThreadPool(limit, nil),
		limit:   limit,
		globals: globals,
	}
}

// Execute evaluates tasks and returns their results in task order. A
// failing expression does not stop the others; cancelling ctx interrupts
// the expressions still running.
func (e *ParallelExecutor) Execute(ctx context.Context, tasks []EvalTask) []EvalResult {
	results := make([]EvalResult, len(tasks))

	g := new(errgroup.Group)
	g.SetLimit(e.limit)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = e.eval(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *ParallelExecutor) eval(ctx context.Context, task EvalTask) EvalResult {
	res := EvalResult{Name: task.Name}
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}

	thread := e.pool.Get(task.Name)
	defer e.pool.Put(thread)

	stop := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
	defer stop()

	start := thread.ExecutionSteps()
	res.Value, res.Error = starlark.EvalOptions(evalOptions, thread, task.Name, task.Expr, e.globals)
	res.Steps = thread.ExecutionSteps() - start
	return res
}
