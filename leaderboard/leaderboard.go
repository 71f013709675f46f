package leaderboard

import "guildkit/core"

// Entry is one member's XP total on a guild board.
type Entry struct {
	Member core.MemberID `json:"member_id"`
	XP     int64         `json:"xp"`
}

// Board is a guild leaderboard ordered by XP descending, then member id.
type Board interface {
	Update(member core.MemberID, xp int64)
	Remove(member core.MemberID)
	TopN(n int) []Entry
	// Rank returns the 1-based position of member, or 0 if absent.
	Rank(member core.MemberID) int
	Len() int
}
