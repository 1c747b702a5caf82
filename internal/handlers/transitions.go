package handlers

import "github.com/nexgo-app/nexgo-engine/internal/models"

// edge is one directed move in the order status graph.
type edge struct {
	from, to string
}

// roleTransitions is the full legality table: a transition is allowed only
// if the (from, to) edge is listed under the calling actor's role. No actor
// may skip states or move backward.
var roleTransitions = map[string]map[edge]bool{
	models.RoleStudent: {
		{models.OrderPending, models.OrderCancelled}: true,
	},
	models.RoleVendor: {
		{models.OrderPending, models.OrderAccepted}:    true,
		{models.OrderAccepted, models.OrderPreparing}:  true,
		{models.OrderPreparing, models.OrderReady}:     true,
		{models.OrderPending, models.OrderCancelled}:   true,
		{models.OrderAccepted, models.OrderCancelled}:  true,
		{models.OrderPreparing, models.OrderCancelled}: true,
	},
	models.RoleRider: {
		{models.OrderReady, models.OrderOutForDelivery}:     true,
		{models.OrderOutForDelivery, models.OrderDelivered}: true,
	},
}

// TransitionAllowed reports whether the actor's role may move an order from
// one status to another.
func TransitionAllowed(role, from, to string) bool {
	return roleTransitions[role][edge{from, to}]
}

// CancellableBy reports whether the actor's role may cancel an order in the
// given status. Cancellation always goes through the refund path.
func CancellableBy(role, status string) bool {
	return TransitionAllowed(role, status, models.OrderCancelled)
}

// dispatchTransitions is the package-send lifecycle, rider-driven after the
// student files the request.
var dispatchTransitions = map[edge]bool{
	{models.DispatchPending, models.DispatchInTransit}:   true,
	{models.DispatchInTransit, models.DispatchDelivered}: true,
	{models.DispatchDelivered, models.DispatchDone}:      true,
}

// DispatchTransitionAllowed reports whether a dispatch may move from one
// status to another.
func DispatchTransitionAllowed(from, to string) bool {
	return dispatchTransitions[edge{from, to}]
}
