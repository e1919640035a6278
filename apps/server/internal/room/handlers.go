package room

import (
	"fmt"
	"log"
	"time"

	"nightcourt/apps/server/wire"
	"nightcourt/game"
)

func (r *Room) handleJoin(userID uint64, name string, now time.Time) error {
	if userID == 0 {
		return fmt.Errorf("%w: user id must be non-zero", ErrNotMember)
	}
	if m, exists := r.members[userID]; exists {
		m.Online = true
		m.LastSeen = now
		m.Name = normalizeName(name, userID)
		r.updateEmptySinceLocked(now)
		if m.Seat != game.NoSeat {
			r.broadcastSeatUpdateLocked(m.Seat)
		}
		r.sendSnapshotLocked(userID)
		return nil
	}

	m := &Member{
		UserID:   userID,
		Name:     normalizeName(name, userID),
		Online:   true,
		LastSeen: now,
	}
	r.members[userID] = m
	if r.hostID == 0 {
		r.hostID = userID
	}
	log.Printf("[Room %s] User %d joined (members=%d)", r.ID, userID, len(r.members))

	if r.game.Phase() == game.PhaseLobby {
		if seat := r.freeSeatLocked(); seat != game.NoSeat {
			if err := r.sitLocked(m, seat); err != nil {
				log.Printf("[Room %s] Auto sit-down failed for user %d: %v", r.ID, userID, err)
			}
		}
	}
	r.updateEmptySinceLocked(now)
	r.sendSnapshotLocked(userID)
	return nil
}

func (r *Room) handleLeave(userID uint64, now time.Time) error {
	m := r.members[userID]
	if m == nil {
		return nil
	}
	if m.Seat != game.NoSeat && r.game.Phase() == game.PhaseLobby {
		if err := r.standLocked(m); err != nil {
			return err
		}
	}
	if m.Seat == game.NoSeat {
		delete(r.members, userID)
	} else {
		// the seat is bound to the running game; keep it as an offline member
		m.Online = false
		m.LastSeen = now
		r.broadcastSeatUpdateLocked(m.Seat)
	}
	log.Printf("[Room %s] User %d left", r.ID, userID)

	if userID == r.hostID {
		r.handOverHostLocked(userID)
	}
	r.updateEmptySinceLocked(now)
	return nil
}

func (r *Room) handleSitDown(userID uint64, seat game.Seat, _ time.Time) error {
	m := r.members[userID]
	if m == nil {
		return ErrNotMember
	}
	if m.Seat == seat {
		return nil
	}
	if m.Seat != game.NoSeat {
		if err := r.standLocked(m); err != nil {
			return err
		}
	}
	return r.sitLocked(m, seat)
}

func (r *Room) handleStandUp(userID uint64, _ time.Time) error {
	m := r.members[userID]
	if m == nil {
		return ErrNotMember
	}
	if m.Seat == game.NoSeat {
		return nil
	}
	return r.standLocked(m)
}

func (r *Room) sitLocked(m *Member, seat game.Seat) error {
	if err := r.game.SitDown(seat, m.UserID); err != nil {
		return err
	}
	m.Seat = seat
	log.Printf("[Room %s] User %d sat down at seat %d", r.ID, m.UserID, seat)
	r.broadcastSeatUpdateLocked(seat)
	return nil
}

func (r *Room) standLocked(m *Member) error {
	seat := m.Seat
	if err := r.game.StandUp(seat); err != nil {
		return err
	}
	m.Seat = game.NoSeat
	log.Printf("[Room %s] User %d stood up from seat %d", r.ID, m.UserID, seat)
	r.broadcastSeatUpdateLocked(seat)
	return nil
}

// handOverHostLocked passes the host role to the lowest online seat, then to any
// online watcher. The room keeps no host when nobody is online.
func (r *Room) handOverHostLocked(previous uint64) {
	r.hostID = 0
	for _, m := range r.sortedMembersLocked() {
		if m.UserID != previous && m.Online {
			r.hostID = m.UserID
			break
		}
	}
	log.Printf("[Room %s] Host %d -> %d", r.ID, previous, r.hostID)
	r.broadcastSnapshotsLocked()
}

func (r *Room) handleDeal(userID uint64, now time.Time) error {
	return r.hostOnly(userID, func() error {
		if err := r.game.DealRoles(); err != nil {
			return err
		}
		r.gameID = newGameID()
		r.startedAt = now
		r.phase, r.day = game.PhaseLobby, 0
		log.Printf("[Room %s] Game %s dealt", r.ID, r.gameID)

		snap := r.game.Snapshot()
		r.archiveOnlyLocked(wire.TypeSnapshot, wire.SnapshotPayload(snap, game.NoSeat))
		for _, ss := range snap.Seats {
			r.sendToSeatLocked(ss.Seat, wire.TypeRoleAssigned, wire.RoleAssignedPayload(ss.Seat, ss.Role))
		}
		r.afterTransitionLocked(now)
		return nil
	})
}

func (r *Room) handleNightAction(userID uint64, role game.Role, target, secondary game.Seat, now time.Time) error {
	seat, err := r.seatOfLocked(userID)
	if err != nil {
		return err
	}
	if role == game.RoleNone {
		role = r.game.RoleOf(seat)
	}
	if err := r.game.SubmitNightAction(role, seat, target, secondary); err != nil {
		return err
	}
	r.sendToLocked(userID, wire.TypeActionAck, wire.ActionAckPayload(game.NightAction{
		Role: role, Actor: seat, Target: target, Secondary: secondary,
	}))
	if r.game.AllNightActionsSubmitted() {
		return r.resolveNightLocked(now)
	}
	return nil
}

func (r *Room) resolveNightLocked(now time.Time) error {
	out, err := r.game.ResolveNight()
	if err != nil {
		return err
	}
	log.Printf("[Room %s] Night %d resolved: deaths=%d muted=%d", r.ID, out.Night, len(out.Deaths), len(out.Muted))
	r.broadcastAllLocked(wire.TypeNightSummary, wire.NightSummaryPayload(out))
	for _, rep := range out.Inspections {
		r.sendToSeatLocked(rep.Inspector, wire.TypeInspection, wire.InspectionPayload(rep))
	}
	for _, s := range out.Successions {
		r.sendToSeatLocked(s.Seat, wire.TypeRoleAssigned, wire.RoleAssignedPayload(s.Seat, s.To))
	}
	r.afterTransitionLocked(now)
	return nil
}

// handleNextSpeaker lets the host or the current speaker end the turn.
func (r *Room) handleNextSpeaker(userID uint64, now time.Time) error {
	if _, ok := r.members[userID]; !ok {
		return ErrNotMember
	}
	if userID != r.hostID {
		speaker := r.game.CurrentSpeaker()
		if speaker == game.NoSeat || r.userAtSeatLocked(speaker) != userID {
			return ErrNotHost
		}
	}
	return r.advanceSpeakerLocked(now)
}

func (r *Room) advanceSpeakerLocked(now time.Time) error {
	if _, err := r.game.NextSpeaker(); err != nil {
		return err
	}
	r.afterTransitionLocked(now)
	return nil
}

func (r *Room) openVoteLocked(now time.Time) error {
	if err := r.game.OpenVote(); err != nil {
		return err
	}
	r.afterTransitionLocked(now)
	return nil
}

func (r *Room) handleDayVote(userID uint64, target game.Seat, now time.Time) error {
	seat, err := r.seatOfLocked(userID)
	if err != nil {
		return err
	}
	if err := r.game.SubmitDayVote(seat, target); err != nil {
		return err
	}
	r.broadcastAllLocked(wire.TypeVoteCast, wire.VoteCastPayload(game.VoteEntry{Voter: seat, Target: target}))
	if r.game.Phase() == game.PhaseDayVote && r.game.AllVotesSubmitted() {
		return r.resolveDayLocked(now)
	}
	return nil
}

func (r *Room) resolveDayLocked(now time.Time) error {
	out, err := r.game.ResolveDayVote()
	if err != nil {
		return err
	}
	log.Printf("[Room %s] Day %d resolved: executed=%d tie=%v", r.ID, out.Day, out.Executed, out.Tie)
	r.broadcastAllLocked(wire.TypeDayOutcome, wire.DayOutcomePayload(out))
	r.afterTransitionLocked(now)
	return nil
}

func (r *Room) resetLocked() error {
	r.game.ResetToLobby()
	log.Printf("[Room %s] Reset to lobby (game %s discarded)", r.ID, r.gameID)
	r.gameID = ""
	r.deadline = time.Time{}
	r.phase, r.day = game.PhaseLobby, 0
	r.broadcastSnapshotsLocked()
	return nil
}

func (r *Room) handleConnLost(userID uint64, ts time.Time) error {
	m := r.members[userID]
	if m == nil {
		return nil
	}
	m.Online = false
	m.LastSeen = ts
	r.updateEmptySinceLocked(ts)
	if m.Seat != game.NoSeat {
		r.broadcastSeatUpdateLocked(m.Seat)
	}
	log.Printf("[Room %s] User %d connection lost", r.ID, userID)
	return nil
}

func (r *Room) handleConnResume(userID uint64, name string, ts time.Time) error {
	m := r.members[userID]
	if m == nil {
		return ErrNotMember
	}
	if name != "" {
		m.Name = normalizeName(name, userID)
	}
	m.Online = true
	m.LastSeen = ts
	r.updateEmptySinceLocked(ts)
	if r.hostID == 0 {
		r.hostID = userID
	}
	if m.Seat != game.NoSeat {
		r.broadcastSeatUpdateLocked(m.Seat)
	}
	r.sendSnapshotLocked(userID)
	log.Printf("[Room %s] User %d connection resumed", r.ID, userID)
	return nil
}

func (r *Room) seatOfLocked(userID uint64) (game.Seat, error) {
	m := r.members[userID]
	if m == nil {
		return game.NoSeat, ErrNotMember
	}
	if m.Seat == game.NoSeat {
		return game.NoSeat, ErrNotSeated
	}
	return m.Seat, nil
}
