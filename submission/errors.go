package submission

import "fmt"

// SecurityBreachError is raised when a required route is offline and
// the router refuses to silently fall back to a weaker transport.
type SecurityBreachError struct {
	Route  RouteClass
	Reason string
}

func (e *SecurityBreachError) Error() string {
	return fmt.Sprintf("security breach: route %s unavailable: %s", e.Route, e.Reason)
}

func (e *SecurityBreachError) Code() string { return "security_breach" }

// PolicyViolationError is raised when a route's policy-declared value
// threshold is exceeded.
type PolicyViolationError struct {
	Route  RouteClass
	Reason string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation on route %s: %s", e.Route, e.Reason)
}

func (e *PolicyViolationError) Code() string { return "policy_violation" }

// AllowlistError is raised when a target or selector falls outside a
// session's allowlist at submission time (defense in depth alongside
// sessionkey.Validate).
type AllowlistError struct {
	Target string
	Reason string
}

func (e *AllowlistError) Error() string {
	return fmt.Sprintf("allowlist violation for target %s: %s", e.Target, e.Reason)
}

func (e *AllowlistError) Code() string { return "allowlist_violation" }
