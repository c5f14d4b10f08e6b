//go:build unix

package cli

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyResume delivers SIGCONT, sent when a stopped terminal job is continued.
func notifyResume(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGCONT)
}
