package backend

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBracketWaiterFiresOnceAfterBoth(t *testing.T) {
	var got Bracket
	calls := 0
	w := NewBracketWaiter(func(b Bracket) {
		calls++
		got = b
	})

	w.Left(10)
	assert.Equal(t, 0, calls, "must not fire after only one side")

	w.Right(20)
	require.Equal(t, 1, calls)
	assert.Equal(t, Bracket{Lo: 10, Hi: 20}, got)
}

func TestBracketWaiterToleratesEitherOrder(t *testing.T) {
	var got Bracket
	w := NewBracketWaiter(func(b Bracket) { got = b })

	w.Right(99)
	w.Left(1)

	assert.Equal(t, Bracket{Lo: 1, Hi: 99}, got)
}

func TestBracketWaiterConcurrentReportsFireExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	w := NewBracketWaiter(func(b Bracket) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); w.Left(5) }()
	go func() { defer wg.Done(); w.Right(15) }()
	wg.Wait()

	assert.Equal(t, 1, calls)
}
