package room

import (
	"log"
	"time"

	"nightcourt/apps/server/internal/history"
	"nightcourt/apps/server/wire"
	"nightcourt/game"
)

func (r *Room) nextSeq() uint64 {
	r.seq++
	return r.seq
}

func (r *Room) envelopeLocked(typ string, payload map[string]any) *wire.Envelope {
	env := wire.NewEnvelope(r.ID, r.nextSeq(), r.now().UnixMilli(), typ, payload)
	env.GameID = r.gameID
	return env
}

// sendToLocked delivers a private frame. Private frames are never archived.
func (r *Room) sendToLocked(userID uint64, typ string, payload map[string]any) {
	env := r.envelopeLocked(typ, payload)
	data, err := wire.Encode(env)
	if err != nil {
		log.Printf("[Room %s] Failed to encode %s: %v", r.ID, typ, err)
		return
	}
	r.broadcast(userID, data)
}

func (r *Room) sendToSeatLocked(seat game.Seat, typ string, payload map[string]any) {
	if userID := r.userAtSeatLocked(seat); userID != 0 {
		r.sendToLocked(userID, typ, payload)
	}
}

// broadcastAllLocked sends one public frame to every member and archives it.
func (r *Room) broadcastAllLocked(typ string, payload map[string]any) {
	env := r.envelopeLocked(typ, payload)
	data, err := wire.Encode(env)
	if err != nil {
		log.Printf("[Room %s] Failed to encode %s: %v", r.ID, typ, err)
		return
	}
	r.archiveLocked(env, data)
	for userID := range r.members {
		r.broadcast(userID, data)
	}
}

// archiveOnlyLocked writes a frame to the history stream without sending it.
func (r *Room) archiveOnlyLocked(typ string, payload map[string]any) {
	env := r.envelopeLocked(typ, payload)
	data, err := wire.Encode(env)
	if err != nil {
		log.Printf("[Room %s] Failed to encode %s: %v", r.ID, typ, err)
		return
	}
	r.archiveLocked(env, data)
}

func (r *Room) archiveLocked(env *wire.Envelope, data []byte) {
	if r.history == nil || r.gameID == "" {
		return
	}
	gameID := r.gameID
	encoded := make([]byte, len(data))
	copy(encoded, data)
	r.spawn(func() { r.history.AppendEvent(gameID, env, encoded) })
}

func (r *Room) sendSnapshotLocked(userID uint64) {
	r.sendToLocked(userID, wire.TypeSnapshot, r.snapshotPayloadLocked(userID))
}

func (r *Room) broadcastSnapshotsLocked() {
	for userID := range r.members {
		r.sendSnapshotLocked(userID)
	}
}

func (r *Room) snapshotPayloadLocked(userID uint64) map[string]any {
	viewer := game.NoSeat
	if m := r.members[userID]; m != nil {
		viewer = m.Seat
	}
	out := wire.SnapshotPayload(r.game.Snapshot(), viewer)

	members := make([]any, 0, len(r.members))
	for _, m := range r.sortedMembersLocked() {
		members = append(members, map[string]any{
			"user_id": float64(m.UserID),
			"name":    m.Name,
			"seat":    int(m.Seat),
			"online":  m.Online,
		})
	}
	info := map[string]any{
		"id":           r.ID,
		"name":         r.Name,
		"private":      r.cfg.Private,
		"host_user_id": float64(r.hostID),
		"members":      members,
	}
	if !r.deadline.IsZero() {
		info["deadline_ms"] = float64(r.deadline.UnixMilli())
	}
	out["room"] = info
	return out
}

func (r *Room) broadcastSeatUpdateLocked(seat game.Seat) {
	userID := r.userAtSeatLocked(seat)
	var name string
	online := false
	if m := r.members[userID]; m != nil {
		name, online = m.Name, m.Online
	}
	r.broadcastAllLocked(wire.TypeSeatUpdate, wire.SeatUpdatePayload(seat, userID, name, online))
}

// finishGameLocked reveals the verdict and every night, then archives the record.
func (r *Room) finishGameLocked(snap game.Snapshot, now time.Time) {
	if snap.Result == nil {
		return
	}
	res := *snap.Result
	log.Printf("[Room %s] Game %s over: winner=%s reason=%s day=%d", r.ID, r.gameID, res.Winner, res.Reason, res.Day)

	r.broadcastAllLocked(wire.TypeGameResult, wire.ResultPayload(res, snap.Seats))
	for _, night := range r.game.History().Nights {
		r.broadcastAllLocked(wire.TypeNightReview, wire.NightReviewPayload(night))
	}
	r.archiveOnlyLocked(wire.TypeSnapshot, wire.SnapshotPayload(snap, game.NoSeat))
	r.broadcastSnapshotsLocked()

	if r.history == nil || r.gameID == "" {
		return
	}
	rec := history.GameRecord{
		GameID:    r.gameID,
		RoomID:    r.ID,
		Winner:    res.Winner.String(),
		Reason:    string(res.Reason),
		Days:      res.Day,
		StartedAt: r.startedAt,
		EndedAt:   now,
	}
	for _, ss := range snap.Seats {
		rec.Seats = append(rec.Seats, history.SeatRecord{
			Seat:   uint8(ss.Seat),
			UserID: ss.UserID,
			Role:   ss.Role.String(),
			Alive:  ss.Alive,
		})
	}
	r.spawn(func() { r.history.RecordGame(rec) })
}
