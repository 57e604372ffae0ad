package mutation

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/graph"
	"github.com/agentic-research/arbor/internal/hierarchy"
	"github.com/agentic-research/arbor/internal/order"
)

// ErrRejected is wrapped by gateways when the backing store refused an
// update (as opposed to failing to reach it).
var ErrRejected = errors.New("update rejected by store")

// FailureKind distinguishes persistence failures.
type FailureKind string

const (
	NetworkFailure FailureKind = "NetworkFailure"
	ServerRejected FailureKind = "ServerRejected"
)

// PersistenceError is returned after an optimistic apply was rolled back
// because the gateway failed. The same move may be retried.
type PersistenceError struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist (%s): %s", e.Kind, e.Detail)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable is always true: the forest is back in its previous state.
func (e *PersistenceError) Retryable() bool { return true }

func classify(err error) *PersistenceError {
	kind := NetworkFailure
	if errors.Is(err, ErrRejected) || errors.Is(err, graph.ErrNotFound) {
		kind = ServerRejected
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = NetworkFailure
	}
	return &PersistenceError{Kind: kind, Detail: err.Error(), Err: err}
}

// OutcomeOf folds an engine result and error into the boundary outcome.
func OutcomeOf(res *Result, err error) api.Outcome {
	if err == nil {
		out := api.Outcome{Applied: true}
		if res != nil {
			out.ChangedIDs = res.ChangedIDs
		}
		return out
	}

	var be *hierarchy.BlockedError
	var pe *PersistenceError
	switch {
	case errors.As(err, &be):
		return api.Outcome{Reason: string(be.Reason), Detail: be.Error()}
	case errors.As(err, &pe):
		return api.Outcome{Reason: api.ReasonPersistenceError, Kind: string(pe.Kind), Detail: pe.Detail}
	case errors.Is(err, graph.ErrNotFound):
		return api.Outcome{Reason: api.ReasonNotFound, Detail: err.Error()}
	case errors.Is(err, order.ErrOrderExhausted):
		return api.Outcome{Reason: api.ReasonOrderExhausted, Detail: err.Error()}
	default:
		return api.Outcome{Reason: api.ReasonInternalError, Detail: err.Error()}
	}
}
