package handlers

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOrderNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^NX-[0-9A-Z]+$`)

	num, err := newOrderNumber()
	require.NoError(t, err)
	require.Regexp(t, pattern, num)
}

func TestNewOrderNumberDistinctWithinMillisecond(t *testing.T) {
	// A tight loop generates many numbers inside one clock tick; the
	// random suffix must keep them apart.
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		num, err := newOrderNumber()
		require.NoError(t, err)
		require.False(t, seen[num], "order number %s repeated", num)
		seen[num] = true
	}
}

func TestNewDispatchNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^DP-\d{4}$`)

	for i := 0; i < 20; i++ {
		num, err := newDispatchNumber()
		require.NoError(t, err)
		require.Regexp(t, pattern, num)
	}
}
