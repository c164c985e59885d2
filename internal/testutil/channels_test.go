package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 42
	assert.Equal(t, 42, Receive(t, ch, ShortTestTimeout, "value expected"))
}

func TestWaitForChannelClosed(t *testing.T) {
	done := make(chan struct{})
	close(done)
	WaitForChannel(t, done, ShortTestTimeout, "closed channel must not block")
}
