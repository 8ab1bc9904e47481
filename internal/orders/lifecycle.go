package orders

import (
	"context"
	"errors"
	"sort"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
)

// CanTransition reports whether an order may move from one status to another.
// Progression is PENDING -> PROCESSING -> SHIPPED -> DELIVERED, one step at a
// time; CANCELLED is reachable from any status before DELIVERED.
func CanTransition(from, to Status) bool {
	if from == StatusDelivered || from == StatusCancelled {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	order := map[Status]int{StatusPending: 0, StatusProcessing: 1, StatusShipped: 2, StatusDelivered: 3}
	f, okf := order[from]
	t, okt := order[to]
	return okf && okt && t == f+1
}

// Valid reports whether s is part of the taxonomy.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// SetStatus applies an administrator's status change. Setting the current
// status again succeeds without writing.
func SetStatus(ctx context.Context, repo Repository, id string, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, apperr.Validation("invalid_status", "unknown order status")
	}
	o, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	if o.Status == next {
		return o, nil
	}
	if !CanTransition(o.Status, next) {
		return nil, apperr.Conflict("illegal_transition", "an order cannot move from "+string(o.Status)+" to "+string(next))
	}
	if err := repo.UpdateStatus(ctx, id, o.Status, next); err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			return nil, apperr.Conflict("status_changed", "the order was updated by someone else, reload and try again")
		}
		return nil, err
	}
	o.Status = next
	return o, nil
}

func sortNewestFirst(list []Order) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Date.After(list[j].Date) })
}
