package game

import (
	"fmt"
	"time"
)

type Config struct {
	// RNG seed for the role deal (0 => time-based)
	Seed int64

	// ForcedRoles replaces the shuffle: ForcedRoles[i] is dealt to seat i+1.
	ForcedRoles []Role

	// Doctor: empty guards on one seat before it dies of needles (default 2).
	NeedleThreshold int
	// DelayedNeedleDeath defers the needles death to the start of the next night.
	DelayedNeedleDeath bool

	// Weight of one Schemer dark vote in the next day's tally (default 1).
	DarkVoteWeight int

	// SkipDiscussion goes straight from night to day_vote.
	SkipDiscussion bool
	// EarlyVoting accepts day votes during day_discussion.
	EarlyVoting bool

	// Clock for submission timestamps (nil => time.Now).
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.NeedleThreshold == 0 {
		c.NeedleThreshold = 2
	}
	if c.DarkVoteWeight == 0 {
		c.DarkVoteWeight = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c Config) validate() error {
	if c.NeedleThreshold < 0 {
		return fmt.Errorf("NeedleThreshold must be >= 0")
	}
	if c.DarkVoteWeight < 0 {
		return fmt.Errorf("DarkVoteWeight must be >= 0")
	}
	if c.ForcedRoles != nil {
		if len(c.ForcedRoles) != SeatCount {
			return fmt.Errorf("ForcedRoles must have %d entries, got %d", SeatCount, len(c.ForcedRoles))
		}
		want := make(map[Role]int, SeatCount)
		for _, r := range DealOrder {
			want[r]++
		}
		for i, r := range c.ForcedRoles {
			if want[r] == 0 {
				return fmt.Errorf("ForcedRoles[%d]: duplicate or unknown role %s", i, r)
			}
			want[r]--
		}
	}
	return nil
}
