package core

import "context"

// Rule determines whether given state and trigger event should emit derived events.
type Rule interface {
	Evaluate(ctx context.Context, previous MemberState, trigger Event) []Event
}

// LevelChangeRule emits level_up or level_down when the level derived from
// the trigger's XP total differs from the stored level.
type LevelChangeRule struct{}

func (LevelChangeRule) Evaluate(_ context.Context, previous MemberState, trigger Event) []Event {
	if trigger.Type != EventXPAdded {
		return nil
	}
	next := LevelForXP(trigger.Total)
	if ev, ok := NewLevelChanged(previous.Guild, previous.Member, next, TransitionBetween(previous.Level, next)); ok {
		return []Event{ev}
	}
	return nil
}
