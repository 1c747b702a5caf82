package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContactableEmail(t *testing.T) {
	require.Equal(t, "ada@campus.edu", contactableEmail("ada@campus.edu", 7))
	require.Equal(t, "nexgo-user-7@nexgo.app", contactableEmail("ada@campus.test", 7))
	require.Equal(t, "nexgo-user-9@nexgo.app", contactableEmail("not-an-email", 9))
	require.Equal(t, "nexgo-user-3@nexgo.app", contactableEmail("", 3))
}
