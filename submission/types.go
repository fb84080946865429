// Package submission routes an AtomicBundle through one of three
// transport classes in policy-declared preference order, reserves a
// nonce atomically before transmission, and writes an append-only,
// batched audit trail of every attempt.
package submission

import "time"

// RouteClass is one of the three transport classes a bundle can go
// out through.
type RouteClass string

const (
	RoutePrivateRelay      RouteClass = "private_relay"
	RouteDeferredExecution RouteClass = "deferred_execution"
	RoutePublicRPC         RouteClass = "public_rpc"
)

// preferenceOrder is the fixed, policy-declared route preference.
var preferenceOrder = []RouteClass{RoutePrivateRelay, RouteDeferredExecution, RoutePublicRPC}

// RouteHealth reports whether a route class is currently usable.
type RouteHealth struct {
	Route   RouteClass
	Healthy bool
}

// Policy is the per-route, per-session configuration gate.
type Policy struct {
	AllowPublicRPC          bool
	PublicRPCMaxValueWei    int64
	SessionBudgetWei        int64
	RequiredRoutes          []RouteClass // routes that must be healthy or submission fails closed
}

// ActionTag classifies one audit entry.
type ActionTag string

const (
	ActionAttempt         ActionTag = "attempt"
	ActionSuccess         ActionTag = "success"
	ActionFailed          ActionTag = "failed"
	ActionFallbackBlocked ActionTag = "fallback_blocked"
)

// SubmissionAuditEntry is one append-only ledger row.
type SubmissionAuditEntry struct {
	EntryID          string                 `json:"entryId"`
	Timestamp        time.Time              `json:"timestamp"`
	CorrelationID    string                 `json:"correlationId"`
	PlanID           string                 `json:"planId"`
	SimulationID     string                 `json:"simulationId"`
	BundleID         string                 `json:"bundleId"`
	TxHash           string                 `json:"txHash,omitempty"`
	Action           ActionTag              `json:"action"`
	ChosenRoute      RouteClass             `json:"chosenRoute,omitempty"`
	Provider         string                 `json:"provider,omitempty"`
	From             string                 `json:"from,omitempty"`
	To               string                 `json:"to,omitempty"`
	ValueWei         int64                  `json:"valueWei"`
	BudgetWei        int64                  `json:"budgetWei"`
	ErrorCode        string                 `json:"errorCode,omitempty"`
	SecurityEvent    bool                   `json:"securityEvent"`
	SecurityKind     string                 `json:"securityKind,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// SubmitRequest is the input to Router.Submit.
type SubmitRequest struct {
	CorrelationID string
	PlanID        string
	SimulationID  string
	BundleID      string
	SessionID     string
	Account       string
	To            string
	ValueWei      int64
	Policy        Policy
}

// SubmitOutcome is the terminal result of one submission attempt.
type SubmitOutcome struct {
	Success     bool
	Route       RouteClass
	TxHash      string
	ErrorCode   string
	AuditEntry  SubmissionAuditEntry
}
