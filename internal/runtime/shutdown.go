package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// SetupGracefulShutdown cancels the root context on SIGINT/SIGTERM so
// in-flight poll cycles abort instead of finishing against a closing bus.
func SetupGracefulShutdown(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.WithFields(log.Fields{
			"signal": s,
		}).Info("received signal; shutting down")
		cancel()
	}()
}
