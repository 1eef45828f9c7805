package spectatorpush

import "strings"

// matchTargets returns the enabled targets whose scope covers ev and whose
// allowlist, if any, names its event type.
func matchTargets(targets []PushTarget, ev NormalizedEvent) []PushTarget {
	var out []PushTarget
	for _, target := range targets {
		if target.Enabled && scopeMatches(target, ev) && eventAllowed(target.EventAllowlist, ev.EventType) {
			out = append(out, target)
		}
	}
	return out
}

// scopeMatches keeps private sessions out of the broad scopes. A private
// session only reaches targets bound to its id or its owner.
func scopeMatches(target PushTarget, ev NormalizedEvent) bool {
	switch target.ScopeType {
	case ScopeAll:
		return ev.Visibility != "private"
	case ScopeVisibility:
		return ev.Visibility != "private" && target.ScopeValue == ev.Visibility
	case ScopeSession:
		return target.ScopeValue != "" && target.ScopeValue == ev.SessionID
	case ScopeOwner:
		return target.ScopeValue != "" && target.ScopeValue == ev.OwnerID
	default:
		return false
	}
}

func validScope(scope string) bool {
	switch scope {
	case ScopeAll, ScopeVisibility, ScopeSession, ScopeOwner:
		return true
	}
	return false
}

// eventAllowed matches entries exactly, or by prefix when an entry ends in
// "*" ("session_*"). Entries are lowercased when targets are parsed.
func eventAllowed(allowlist []string, evType string) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, v := range allowlist {
		if prefix, ok := strings.CutSuffix(v, "*"); ok {
			if strings.HasPrefix(evType, prefix) {
				return true
			}
			continue
		}
		if v == evType {
			return true
		}
	}
	return false
}
