package composer

// Scheduler defers a task to a fresh turn.
// Implementations must never run task synchronously inside Schedule.
type Scheduler interface {
	Schedule(task func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(task func())

// Implementation of Scheduler.
func (fn SchedulerFunc) Schedule(task func()) {
	fn(task)
}

// Goroutine runs every turn on a new goroutine.
// It is the default Scheduler.
var Goroutine Scheduler = SchedulerFunc(func(task func()) { go task() })
