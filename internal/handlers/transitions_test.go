package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexgo-app/nexgo-engine/internal/models"
)

func TestTransitionAllowed(t *testing.T) {
	tests := []struct {
		name string
		role string
		from string
		to   string
		want bool
	}{
		{"vendor accepts pending", models.RoleVendor, models.OrderPending, models.OrderAccepted, true},
		{"vendor starts preparing", models.RoleVendor, models.OrderAccepted, models.OrderPreparing, true},
		{"vendor marks ready", models.RoleVendor, models.OrderPreparing, models.OrderReady, true},
		{"vendor cancels while preparing", models.RoleVendor, models.OrderPreparing, models.OrderCancelled, true},
		{"vendor cannot cancel ready", models.RoleVendor, models.OrderReady, models.OrderCancelled, false},
		{"vendor cannot skip to ready", models.RoleVendor, models.OrderPending, models.OrderReady, false},
		{"vendor cannot deliver", models.RoleVendor, models.OrderOutForDelivery, models.OrderDelivered, false},

		{"student cancels pending", models.RoleStudent, models.OrderPending, models.OrderCancelled, true},
		{"student cannot cancel accepted", models.RoleStudent, models.OrderAccepted, models.OrderCancelled, false},
		{"student cannot advance", models.RoleStudent, models.OrderAccepted, models.OrderPreparing, false},

		{"rider picks up ready order", models.RoleRider, models.OrderReady, models.OrderOutForDelivery, true},
		{"rider completes delivery", models.RoleRider, models.OrderOutForDelivery, models.OrderDelivered, true},
		{"rider cannot accept", models.RoleRider, models.OrderPending, models.OrderAccepted, false},
		{"rider cannot cancel", models.RoleRider, models.OrderOutForDelivery, models.OrderCancelled, false},

		{"no backward moves", models.RoleVendor, models.OrderReady, models.OrderPreparing, false},
		{"terminal delivered", models.RoleVendor, models.OrderDelivered, models.OrderPending, false},
		{"terminal cancelled", models.RoleStudent, models.OrderCancelled, models.OrderPending, false},
		{"under review is terminal here", models.RoleVendor, models.OrderUnderReview, models.OrderDelivered, false},
		{"unknown role has no moves", "admin", models.OrderPending, models.OrderAccepted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TransitionAllowed(tt.role, tt.from, tt.to))
		})
	}
}

func TestCancellableBy(t *testing.T) {
	require.True(t, CancellableBy(models.RoleStudent, models.OrderPending))
	require.False(t, CancellableBy(models.RoleStudent, models.OrderPreparing))

	require.True(t, CancellableBy(models.RoleVendor, models.OrderAccepted))
	require.False(t, CancellableBy(models.RoleVendor, models.OrderOutForDelivery))

	require.False(t, CancellableBy(models.RoleRider, models.OrderReady))
}

func TestDispatchTransitionAllowed(t *testing.T) {
	require.True(t, DispatchTransitionAllowed(models.DispatchPending, models.DispatchInTransit))
	require.True(t, DispatchTransitionAllowed(models.DispatchInTransit, models.DispatchDelivered))
	require.True(t, DispatchTransitionAllowed(models.DispatchDelivered, models.DispatchDone))

	require.False(t, DispatchTransitionAllowed(models.DispatchPending, models.DispatchDelivered))
	require.False(t, DispatchTransitionAllowed(models.DispatchDelivered, models.DispatchInTransit))
	require.False(t, DispatchTransitionAllowed(models.DispatchDone, models.DispatchPending))
}
