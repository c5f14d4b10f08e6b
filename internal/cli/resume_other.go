//go:build !unix

package cli

import "os"

func notifyResume(chan<- os.Signal) {}
