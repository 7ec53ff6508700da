package compaction

// Executor runs a compaction task in the background. Manager never spawns
// goroutines directly so tests can substitute a synchronous Executor.
type Executor interface {
	Go(fn func())
}

// GoExecutor runs each task on its own goroutine.
type GoExecutor struct{}

// Go implements Executor.
func (GoExecutor) Go(fn func()) { go fn() }

// InlineExecutor runs the task synchronously on the calling goroutine.
// Useful in tests that want deterministic compaction without a race on
// completion.
type InlineExecutor struct{}

// Go implements Executor.
func (InlineExecutor) Go(fn func()) { fn() }
