package sim

// ConfigurationError reports a setup-time mistake: unknown policy/scheduler
// name, SFI created before its SF type rate table, link to an unknown
// latency distribution id, SFF created after topology init, an
// over-subscribed static server, or re-registering an SFC/egress after the
// simulation has started. Always fatal at setup.
type ConfigurationError struct{ Msg string }

func (e ConfigurationError) Error() string { return "configuration error: " + e.Msg }

// RoutingError reports that no path exists between two SFFs when a route
// was required — indicates a disconnected topology graph. Fatal.
type RoutingError struct{ Msg string }

func (e RoutingError) Error() string { return "routing error: " + e.Msg }

// SchedulingFailure is recoverable at the SFF level: the packet that
// triggered it is rejected with final state "rejectSchedule" unless the
// simulator is running in strict mode, in which case it propagates as a
// fatal error.
type SchedulingFailure struct{ Msg string }

func (e SchedulingFailure) Error() string { return "scheduling failure: " + e.Msg }
