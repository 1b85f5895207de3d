package graceful

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// HandleSignals blocks until SIGTERM or SIGINT, then runs every stop function
// concurrently and waits for all of them to return.
func HandleSignals(stopFunc ...func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)

	<-signals
	wg := sync.WaitGroup{}
	wg.Add(len(stopFunc))
	for _, f := range stopFunc {
		go func() {
			defer wg.Done()
			f()
		}()
	}
	wg.Wait()
}
