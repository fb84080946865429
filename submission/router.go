package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Transport sends an already-nonce-assigned bundle out over one route
// class and reports the resulting tx hash or a transport-level error.
type Transport interface {
	Send(ctx context.Context, route RouteClass, account string, nonce uint64, bundleID string) (txHash string, err error)
}

// HealthChecker reports current route health, analogous to
// routing.SLABalancer's provider health gate applied to transport
// classes instead of LLM providers.
type HealthChecker interface {
	HealthCheck(route RouteClass) bool
}

// Router routes an AtomicBundle through the policy-declared preference
// order private_relay > deferred_execution > public_rpc, reserving a
// nonce before every attempt and writing an audit entry for every
// rejection, fallback, success, and failure.
type Router struct {
	transport Transport
	health    HealthChecker
	nonces    *NonceManager
	audit     *AuditPipeline
	logger    zerolog.Logger
}

// NewRouter builds a Router over the given transport and health
// checker, with its own nonce manager and audit pipeline.
func NewRouter(transport Transport, health HealthChecker, nonces *NonceManager, audit *AuditPipeline, logger zerolog.Logger) *Router {
	return &Router{
		transport: transport,
		health:    health,
		nonces:    nonces,
		audit:     audit,
		logger:    logger.With().Str("component", "submission-router").Logger(),
	}
}

// Submit attempts to route req through the first eligible route in
// preference order, failing closed rather than silently degrading to
// public_rpc.
func (r *Router) Submit(ctx context.Context, req SubmitRequest) (SubmitOutcome, error) {
	route, err := r.selectRoute(req)
	if err != nil {
		entry := r.newEntry(req, ActionFallbackBlocked, "")
		entry.SecurityEvent = true
		if _, ok := err.(*SecurityBreachError); ok {
			entry.SecurityKind = "route_offline"
			entry.ErrorCode = "security_breach"
		} else {
			entry.SecurityKind = "policy_violation"
			entry.ErrorCode = "policy_violation"
		}
		r.audit.Record(entry)
		return SubmitOutcome{ErrorCode: entry.ErrorCode, AuditEntry: entry}, err
	}

	nonce := r.nonces.Reserve(req.Account)

	attemptEntry := r.newEntry(req, ActionAttempt, route)
	r.audit.Record(attemptEntry)

	txHash, sendErr := r.transport.Send(ctx, route, req.Account, nonce, req.BundleID)
	if sendErr != nil {
		r.nonces.Release(req.Account, nonce)
		failedEntry := r.newEntry(req, ActionFailed, route)
		failedEntry.ErrorCode = sendErr.Error()
		r.audit.Record(failedEntry)
		return SubmitOutcome{Route: route, ErrorCode: sendErr.Error(), AuditEntry: failedEntry}, sendErr
	}

	if err := r.nonces.Confirm(req.Account, nonce); err != nil {
		r.logger.Warn().Err(err).Str("bundle_id", req.BundleID).Msg("nonce confirm failed after successful send")
	}

	successEntry := r.newEntry(req, ActionSuccess, route)
	successEntry.TxHash = txHash
	r.audit.Record(successEntry)

	return SubmitOutcome{Success: true, Route: route, TxHash: txHash, AuditEntry: successEntry}, nil
}

// selectRoute applies the policy gate described in spec §4.9: walk the
// preference order, pick the first healthy route allowed by policy;
// public_rpc additionally requires aggregate value at or below its
// threshold and explicit policy allowance.
func (r *Router) selectRoute(req SubmitRequest) (RouteClass, error) {
	for _, required := range req.Policy.RequiredRoutes {
		if !r.health.HealthCheck(required) {
			return "", &SecurityBreachError{Route: required, Reason: "required route unhealthy"}
		}
	}

	for _, route := range preferenceOrder {
		if route == RoutePublicRPC {
			continue
		}
		if r.health.HealthCheck(route) {
			return route, nil
		}
	}

	if !req.Policy.AllowPublicRPC {
		return "", &PolicyViolationError{Route: RoutePublicRPC, Reason: "policy does not allow public_rpc"}
	}
	if req.ValueWei > req.Policy.PublicRPCMaxValueWei {
		return "", &PolicyViolationError{Route: RoutePublicRPC, Reason: fmt.Sprintf("value %d exceeds public_rpc threshold %d", req.ValueWei, req.Policy.PublicRPCMaxValueWei)}
	}
	if !r.health.HealthCheck(RoutePublicRPC) {
		return "", &SecurityBreachError{Route: RoutePublicRPC, Reason: "public_rpc unhealthy"}
	}
	return RoutePublicRPC, nil
}

func (r *Router) newEntry(req SubmitRequest, action ActionTag, route RouteClass) SubmissionAuditEntry {
	return SubmissionAuditEntry{
		EntryID:       uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		CorrelationID: req.CorrelationID,
		PlanID:        req.PlanID,
		SimulationID:  req.SimulationID,
		BundleID:      req.BundleID,
		Action:        action,
		ChosenRoute:   route,
		From:          req.Account,
		To:            req.To,
		ValueWei:      req.ValueWei,
		BudgetWei:     req.Policy.SessionBudgetWei,
	}
}
