package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedSeedSourceReturnsSameSeed(t *testing.T) {
	s := NewFixedSeedSource(42)
	assert.Equal(t, int64(42), s.Seed())
	assert.Equal(t, int64(42), s.Seed())
}

func TestFixedSeedSourceZeroIsValid(t *testing.T) {
	s := NewFixedSeedSource(0)
	assert.Equal(t, int64(0), s.Seed())
}

func TestFixedSeedSourceThreadSafe(t *testing.T) {
	s := NewFixedSeedSource(7)
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				assert.Equal(t, int64(7), s.Seed())
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
