package room

import (
	"log"
	"time"

	"nightcourt/apps/server/wire"
	"nightcourt/game"
)

func (r *Room) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	now := r.now()
	r.releaseOfflineSeatsLocked(now)
	r.replaceOfflineHostLocked(now)
	if err := r.handleDeadlineLocked(now); err != nil {
		log.Printf("[Room %s] deadline handler failed: %v", r.ID, err)
	}
}

// handleDeadlineLocked resolves the night, ends the current speech or closes
// the vote once the phase deadline passes.
func (r *Room) handleDeadlineLocked(now time.Time) error {
	if r.deadline.IsZero() || now.Before(r.deadline) {
		return nil
	}
	r.deadline = time.Time{}

	switch phase := r.game.Phase(); phase {
	case game.PhaseNightActions:
		log.Printf("[Room %s] Night deadline passed", r.ID)
		return r.resolveNightLocked(now)
	case game.PhaseDayDiscussion:
		log.Printf("[Room %s] Speech deadline passed for seat %d", r.ID, r.game.CurrentSpeaker())
		return r.advanceSpeakerLocked(now)
	case game.PhaseDayVote:
		log.Printf("[Room %s] Vote deadline passed", r.ID)
		return r.resolveDayLocked(now)
	default:
		return nil
	}
}

func (r *Room) deadlineFor(phase game.Phase, now time.Time) time.Time {
	var d time.Duration
	switch phase {
	case game.PhaseNightActions:
		d = r.cfg.NightDeadline
	case game.PhaseDayDiscussion:
		d = r.cfg.SpeechDeadline
	case game.PhaseDayVote:
		d = r.cfg.VoteDeadline
	}
	if d <= 0 {
		return time.Time{}
	}
	return now.Add(d)
}

// afterTransitionLocked announces whatever the last engine call changed and
// re-arms the deadline for the new phase or speaker.
func (r *Room) afterTransitionLocked(now time.Time) {
	snap := r.game.Snapshot()
	if snap.Phase == game.PhaseGameOver {
		r.deadline = time.Time{}
		r.phase, r.day = snap.Phase, snap.Day
		r.finishGameLocked(snap, now)
		return
	}

	r.deadline = r.deadlineFor(snap.Phase, now)
	var deadlineMs int64
	if !r.deadline.IsZero() {
		deadlineMs = r.deadline.UnixMilli()
	}
	if snap.Phase != r.phase || snap.Day != r.day {
		r.phase, r.day = snap.Phase, snap.Day
		r.broadcastAllLocked(wire.TypePhaseChange, wire.PhaseChangePayload(snap.Phase, snap.Day, deadlineMs))
	}
	if snap.Phase == game.PhaseDayDiscussion {
		r.broadcastAllLocked(wire.TypeSpeaker, wire.SpeakerPayload(snap.Speaker, deadlineMs))
	}
}

func (r *Room) releaseOfflineSeatsLocked(now time.Time) {
	if r.game.Phase() != game.PhaseLobby {
		return
	}
	for userID, m := range r.members {
		if m.Online || m.Seat == game.NoSeat {
			continue
		}
		if now.Sub(m.LastSeen) < offlineSeatTTL {
			continue
		}
		if err := r.standLocked(m); err != nil {
			m.LastSeen = now
			log.Printf("[Room %s] auto-standup failed for offline user %d: %v", r.ID, userID, err)
			continue
		}
		log.Printf("[Room %s] Auto-stood offline user %d after %s", r.ID, userID, offlineSeatTTL)
	}
}

func (r *Room) replaceOfflineHostLocked(now time.Time) {
	host := r.members[r.hostID]
	if host == nil || host.Online || now.Sub(host.LastSeen) < offlineSeatTTL {
		return
	}
	for _, m := range r.members {
		if m.Online {
			r.handOverHostLocked(host.UserID)
			return
		}
	}
}
