package main

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestShutdownSignalDelivery(t *testing.T) {
	sig := make(chan os.Signal, 1)
	done := make(chan bool, 1)

	go func() {
		<-sig
		done <- true
	}()

	sig <- syscall.SIGTERM

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("signal handler did not receive signal")
	}
}
