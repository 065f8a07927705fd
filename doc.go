// Package strand is a cooperative fiber runtime: many independently
// suspendable execution units multiplexed onto per-thread schedulers,
// with cross-scheduler wake-ups, deadline sleeps, and fiber-aware
// mutexes and condition variables.
//
// Each scheduler owns a dispatcher fiber that drains bookkeeping queues
// and parks the thread when nothing is ready. Control moves between
// fibers only at explicit suspension points — Yield, Join, SleepFor,
// contended Mutex.Lock, Cond.Wait — and every switch carries a small
// transfer record that lets a fiber atomically suspend while releasing a
// lock or readying another fiber, so no wake-up is ever lost.
//
// Typical use:
//
//	s := strand.NewScheduler()
//	defer s.Shutdown()
//	f := strand.MakeWorker(strand.Post, func() {
//		// fiber body; strand.Yield(), strand.SleepFor(...), ...
//	})
//	if err := f.Join(); err != nil {
//		// ...
//	}
package strand
