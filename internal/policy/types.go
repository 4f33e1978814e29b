package policy

// Reason values reported by the enforcement policy.
const (
	ReasonNoLimit        = "no_limit"
	ReasonUnderLimit     = "under_limit"
	ReasonLimitReached   = "limit_reached"
	ReasonAlreadyBlocked = "already_blocked"
)

// Facts are everything the policy may consider when deciding whether a
// domain should be blocked for the rest of the day.
type Facts struct {
	Domain         string `json:"domain"`
	Date           string `json:"date"`
	UsedSeconds    int64  `json:"used_seconds"`
	LimitSeconds   int64  `json:"limit_seconds"`
	AlreadyBlocked bool   `json:"already_blocked"`
}

// Decision is the policy verdict for one domain.
type Decision struct {
	Block  bool   `json:"block"`
	Reason string `json:"reason"`
	// Fallback is set when the policy could not be evaluated and the plain
	// usage >= limit comparison was used instead.
	Fallback bool `json:"fallback,omitempty"`
}

// ThresholdDecision is the built-in rule: block once usage reaches the limit.
func ThresholdDecision(f Facts) Decision {
	switch {
	case f.AlreadyBlocked:
		return Decision{Block: true, Reason: ReasonAlreadyBlocked}
	case f.LimitSeconds <= 0:
		return Decision{Reason: ReasonNoLimit}
	case f.UsedSeconds >= f.LimitSeconds:
		return Decision{Block: true, Reason: ReasonLimitReached}
	default:
		return Decision{Reason: ReasonUnderLimit}
	}
}

func (f Facts) input() map[string]interface{} {
	return map[string]interface{}{
		"domain":          f.Domain,
		"date":            f.Date,
		"used_seconds":    f.UsedSeconds,
		"limit_seconds":   f.LimitSeconds,
		"already_blocked": f.AlreadyBlocked,
	}
}
