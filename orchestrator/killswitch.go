package orchestrator

// EngageKillSwitch propagates a kill-switch activation through every
// layer that must stop on it: the process-wide mode guard (blocking
// all future writes/admin calls), every live session key (revoked so
// no in-flight signed op can validate), and the live event bus (so
// every subscriber sees the terminal KILL_SWITCH event immediately).
func (o *Orchestrator) EngageKillSwitch(reason string) int {
	o.guard.EngageKillSwitch()
	revoked := o.sessions.KillSwitchRevokeAll(reason)
	if o.bus != nil {
		o.bus.PublishKillSwitch(reason, revoked)
	}
	return revoked
}

// DisengageKillSwitch reactivates the guard. Session keys revoked
// during the kill switch event stay revoked — callers must issue new
// Sessions.Create calls to resume autonomous submission.
func (o *Orchestrator) DisengageKillSwitch() {
	o.guard.DisengageKillSwitch()
}
