package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTargetLocks_SerialisesSameKey(t *testing.T) {
	locks := NewTargetLocks()
	release := locks.Lock("sqlite||tgt|t2")

	acquired := make(chan func())
	go func() { acquired <- locks.Lock("sqlite||tgt|t2") }()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	// other keys are independent
	locks.Lock("sqlite||tgt|t3")()

	release()
	select {
	case next := <-acquired:
		next()
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
	assert.Zero(t, locks.held())
}
