package service

// Role mutation actions recorded in metrics
const (
	RoleActionGrant  = "grant"
	RoleActionRevoke = "revoke"
)

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) RecordGiveawayResolved(string)   {}
func (NoopMetrics) RecordRoleMutation(string, bool) {}
func (NoopMetrics) RecordReconciled(string, string) {}
