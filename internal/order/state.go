package order

import "time"

// transitions maps each status to the set of targets a transition may
// name. Delivered and Cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:        {StatusProcessing, StatusCancelled},
	StatusProcessing:     {StatusShipped, StatusCancelled},
	StatusShipped:        {StatusOutForDelivery, StatusDelivered, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

func IsTerminal(s Status) bool {
	targets, ok := transitions[s]
	return ok && len(targets) == 0
}

func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// applyTransition mutates o for an already-validated transition: sets
// the status, stamps the per-transition timestamp, and appends the
// timeline entry. Callers hold the order lock and persist the result
// atomically.
func applyTransition(o *Order, target Status, tracking TrackingInfo, now time.Time) {
	o.Status = target

	switch target {
	case StatusShipped:
		o.CourierName = tracking.CourierName
		o.TrackingNumber = tracking.TrackingNumber
		o.ShippedAt = &now
	case StatusOutForDelivery:
		o.OutForDeliveryAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}

	o.Timeline = append(o.Timeline, TimelineEntry{Status: target, CreatedAt: now})
}
