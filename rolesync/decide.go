package rolesync

import (
	"cmp"
	"slices"

	"guildkit/core"
)

// TargetRole returns the reward role a member at level should hold, or ""
// when the member is below every threshold. Rules are ordered by threshold
// descending with a stable sort, so among equal thresholds the rule that
// appears first in the configuration wins.
func TargetRole(rules []core.RewardRoleRule, level int64) core.RoleID {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b core.RewardRoleRule) int { return cmp.Compare(b.Level, a.Level) })
	for _, r := range sorted {
		if r.Level <= level {
			return r.Role
		}
	}
	return ""
}

// Decide computes the role diff for one member. held is the member's full
// current role set; roles outside the configured reward set are never
// touched. The decision is a no-op when the member already holds exactly
// the target among the configured reward roles.
func Decide(cfg core.RewardConfig, state core.MemberLevelState, held []core.RoleID) core.SyncDecision {
	d := core.SyncDecision{Target: TargetRole(cfg.Rules, state.Level)}
	configured := cfg.Roles()

	seen := make(map[core.RoleID]struct{}, len(held))
	holdsTarget := false
	for _, r := range held {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		if r == d.Target && r != "" {
			holdsTarget = true
			continue
		}
		if _, ok := configured[r]; ok {
			d.Remove = append(d.Remove, r)
		}
	}
	if d.Target != "" && !holdsTarget {
		d.Add = []core.RoleID{d.Target}
	}

	moved := state.Transition == core.TransitionLevelUp || state.Transition == core.TransitionLevelDown
	d.Notify = !d.Noop() && cfg.Channel != "" && moved
	return d
}

// heldRewardRoles filters held down to configured reward roles.
func heldRewardRoles(cfg core.RewardConfig, held []core.RoleID) map[core.RoleID]struct{} {
	configured := cfg.Roles()
	out := map[core.RoleID]struct{}{}
	for _, r := range held {
		if _, ok := configured[r]; ok {
			out[r] = struct{}{}
		}
	}
	return out
}
