package game

// SeatState is the registry view the night resolver reads.
type SeatState struct {
	Seat         Seat
	Role         Role
	Alive        bool
	Needles      int
	PendingDeath DeathCause
}

// NightInput is everything one resolution depends on. ResolveNight is a pure function of it.
type NightInput struct {
	Night   int
	Seats   [SeatCount]SeatState // Seats[i] describes seat i+1
	Actions map[Role]NightAction

	NeedleThreshold    int
	DelayedNeedleDeath bool
	DarkVoteWeight     int
}

type Death struct {
	Seat  Seat
	Cause DeathCause
}

// RedirectLink: effects aimed at From land on To (the Butterfly) for one night.
type RedirectLink struct {
	From        Seat
	To          Seat
	Neutralized bool
}

type BlockRecord struct {
	Blocker     Seat
	Target      Seat
	Absorbed    bool // target was the hugged seat
	Neutralized bool // mutual targeting with the Butterfly
}

type GuardResult byte

const (
	GuardSaved       GuardResult = 1
	GuardEmpty       GuardResult = 2
	GuardNeedles     GuardResult = 3
	GuardOverwhelmed GuardResult = 4
)

var GuardResultDictionary = map[GuardResult]string{
	GuardSaved:       "saved",
	GuardEmpty:       "empty",
	GuardNeedles:     "needles",
	GuardOverwhelmed: "overwhelmed",
}

func (r GuardResult) String() string { return GuardResultDictionary[r] }

type GuardReport struct {
	Guard  Seat
	Target Seat
	Result GuardResult
}

type InspectionReport struct {
	Inspector Seat
	Target    Seat
	Result    InspectionResult
}

type Succession struct {
	Seat Seat
	From Role
	To   Role
}

type NoteKind string

const (
	NoteRedirectSelf     NoteKind = "redirect_self"
	NoteRedirected       NoteKind = "redirected"
	NoteMutualTarget     NoteKind = "mutual_target"
	NoteBlockAbsorbed    NoteKind = "block_absorbed"
	NoteRedirectBlocked  NoteKind = "redirect_blocked"
	NoteGuardOverwhelmed NoteKind = "guard_overwhelmed"
)

// Note records a tie-break the resolver applied.
type Note struct {
	Kind  NoteKind
	Role  Role
	Seats []Seat
}

// NightOutcome is produced once per night and never mutated afterwards.
type NightOutcome struct {
	Night       int
	Deaths      []Death
	Muted       []Seat
	Redirect    *RedirectLink
	Block       *BlockRecord
	Guard       *GuardReport
	Inspections []InspectionReport
	Successions []Succession
	DarkVotes   map[Seat]int
	// NeedleCounts holds the counter of every seat whose needles changed tonight.
	NeedleCounts map[Seat]int
	// Scheduled deaths happen at the start of the next night.
	Scheduled []Death
	Notes     []Note
}

// Clone returns a deep copy.
func (o *NightOutcome) Clone() *NightOutcome {
	if o == nil {
		return nil
	}
	c := &NightOutcome{
		Night:        o.Night,
		Deaths:       append([]Death(nil), o.Deaths...),
		Muted:        append([]Seat(nil), o.Muted...),
		Inspections:  append([]InspectionReport(nil), o.Inspections...),
		Successions:  append([]Succession(nil), o.Successions...),
		DarkVotes:    copySeatInts(o.DarkVotes),
		NeedleCounts: copySeatInts(o.NeedleCounts),
		Scheduled:    append([]Death(nil), o.Scheduled...),
	}
	if o.Redirect != nil {
		r := *o.Redirect
		c.Redirect = &r
	}
	if o.Block != nil {
		b := *o.Block
		c.Block = &b
	}
	if o.Guard != nil {
		g := *o.Guard
		c.Guard = &g
	}
	for _, n := range o.Notes {
		n.Seats = append([]Seat(nil), n.Seats...)
		c.Notes = append(c.Notes, n)
	}
	return c
}

// Died reports whether seat is in the death list, and with which cause.
func (o *NightOutcome) Died(seat Seat) (DeathCause, bool) {
	for _, d := range o.Deaths {
		if d.Seat == seat {
			return d.Cause, true
		}
	}
	return CauseNone, false
}

type nightContext struct {
	in      NightInput
	roles   [SeatCount + 1]Role
	alive   [SeatCount + 1]bool
	blocked [SeatCount + 1]bool
	saved   [SeatCount + 1]bool
	attacks [SeatCount + 1][]AttackType
	dying   []Death
	out     NightOutcome
}

type nightStage struct {
	name string
	run  func(*nightContext)
}

// nightStages is the resolution order. Later stages see effective (redirected, blocked) targets.
var nightStages = []nightStage{
	{"delayed_deaths", stageDelayedDeaths},
	{"redirect", stageRedirect},
	{"block", stageBlock},
	{"attacks", stageAttacks},
	{"guard", stageGuard},
	{"inspect", stageInspect},
	{"scheme", stageScheme},
	{"finalize", stageFinalize},
	{"succession", stageSuccession},
}

// attackRoles lists the offensive roles in collection order.
var attackRoles = []Role{RoleKiller, RoleSniper}

// ResolveNight combines all submitted actions into one outcome.
func ResolveNight(in NightInput) NightOutcome {
	ctx := newNightContext(in)
	for _, stage := range nightStages {
		stage.run(ctx)
	}
	return ctx.out
}

func newNightContext(in NightInput) *nightContext {
	if in.NeedleThreshold <= 0 {
		in.NeedleThreshold = 2
	}
	if in.DarkVoteWeight <= 0 {
		in.DarkVoteWeight = 1
	}
	ctx := &nightContext{in: in}
	ctx.out.Night = in.Night
	for i, st := range in.Seats {
		seat := Seat(i + 1)
		ctx.roles[seat] = st.Role
		ctx.alive[seat] = st.Alive && st.Role != RoleNone
	}
	return ctx
}

// action returns the submission for role if its actor is alive and still holds role.
func (ctx *nightContext) action(role Role) (NightAction, bool) {
	a, ok := ctx.in.Actions[role]
	if !ok || !a.Actor.Valid() {
		return NightAction{}, false
	}
	if !ctx.alive[a.Actor] || ctx.roles[a.Actor] != role {
		return NightAction{}, false
	}
	return a, true
}

// actable is action minus blocked actors.
func (ctx *nightContext) actable(role Role) (NightAction, bool) {
	a, ok := ctx.action(role)
	if !ok || ctx.blocked[a.Actor] {
		return NightAction{}, false
	}
	return a, true
}

func (ctx *nightContext) activeRedirect() *RedirectLink {
	if r := ctx.out.Redirect; r != nil && !r.Neutralized {
		return r
	}
	return nil
}

// reroute applies the active redirect to a target aimed at by role.
func (ctx *nightContext) reroute(role Role, target Seat) Seat {
	r := ctx.activeRedirect()
	if r == nil || target != r.From {
		return target
	}
	ctx.note(NoteRedirected, role, r.From, r.To)
	return r.To
}

func (ctx *nightContext) note(kind NoteKind, role Role, seats ...Seat) {
	ctx.out.Notes = append(ctx.out.Notes, Note{Kind: kind, Role: role, Seats: seats})
}

func (ctx *nightContext) livingTarget(s Seat) bool { return s.Valid() && ctx.alive[s] }

func (ctx *nightContext) addAttack(target Seat, t AttackType) {
	for _, existing := range ctx.attacks[target] {
		if existing == t {
			return
		}
	}
	ctx.attacks[target] = append(ctx.attacks[target], t)
}

func (ctx *nightContext) setNeedles(seat Seat, count int) {
	if ctx.out.NeedleCounts == nil {
		ctx.out.NeedleCounts = make(map[Seat]int, 1)
	}
	ctx.out.NeedleCounts[seat] = count
}

func stageDelayedDeaths(ctx *nightContext) {
	for _, st := range ctx.in.Seats {
		if st.PendingDeath == CauseNone || !ctx.alive[st.Seat] {
			continue
		}
		ctx.alive[st.Seat] = false
		ctx.out.Deaths = append(ctx.out.Deaths, Death{Seat: st.Seat, Cause: st.PendingDeath})
	}
}

func stageRedirect(ctx *nightContext) {
	a, ok := ctx.action(RoleButterfly)
	if !ok || a.Target == NoSeat {
		return
	}
	if a.Target == a.Actor {
		ctx.note(NoteRedirectSelf, RoleButterfly, a.Actor)
		return
	}
	if !ctx.livingTarget(a.Target) {
		return
	}
	ctx.out.Redirect = &RedirectLink{From: a.Target, To: a.Actor}
}

func stageBlock(ctx *nightContext) {
	a, ok := ctx.action(RoleMage)
	if !ok || !ctx.livingTarget(a.Target) {
		return
	}
	rec := &BlockRecord{Blocker: a.Actor, Target: a.Target}
	ctx.out.Block = rec
	if r := ctx.activeRedirect(); r != nil {
		switch {
		case r.To == a.Target && r.From == a.Actor:
			r.Neutralized = true
			rec.Neutralized = true
			ctx.note(NoteMutualTarget, RoleMage, r.To, a.Actor)
			return
		case r.From == a.Target:
			rec.Absorbed = true
			ctx.note(NoteBlockAbsorbed, RoleMage, a.Target)
			return
		case r.To == a.Target:
			// the blocked Butterfly loses tonight's hug
			r.Neutralized = true
			ctx.note(NoteRedirectBlocked, RoleMage, r.To, r.From)
		}
	}
	ctx.blocked[a.Target] = true
}

func stageAttacks(ctx *nightContext) {
	for _, role := range attackRoles {
		a, ok := ctx.actable(role)
		if !ok || a.Target == NoSeat {
			continue
		}
		target := ctx.reroute(role, a.Target)
		if !ctx.livingTarget(target) {
			continue
		}
		ctx.addAttack(target, role.Attack())
	}
}

func stageGuard(ctx *nightContext) {
	a, ok := ctx.actable(RoleDoctor)
	target := NoSeat
	if ok && a.Target != NoSeat {
		if t := ctx.reroute(RoleDoctor, a.Target); ctx.livingTarget(t) {
			target = t
		}
	}
	attacked := target != NoSeat && len(ctx.attacks[target]) > 0
	// a run of empty guards only continues on the seat guarded unattacked tonight
	for i, st := range ctx.in.Seats {
		if seat := Seat(i + 1); st.Needles > 0 && (seat != target || attacked) {
			ctx.setNeedles(seat, 0)
		}
	}
	if target == NoSeat {
		return
	}
	report := &GuardReport{Guard: a.Actor, Target: target}
	ctx.out.Guard = report

	switch n := len(ctx.attacks[target]); {
	case n == 0:
		count := ctx.in.Seats[target-1].Needles + 1
		if count < ctx.in.NeedleThreshold {
			report.Result = GuardEmpty
			ctx.setNeedles(target, count)
			return
		}
		report.Result = GuardNeedles
		ctx.setNeedles(target, 0)
		death := Death{Seat: target, Cause: CauseNeedles}
		if ctx.in.DelayedNeedleDeath {
			ctx.out.Scheduled = append(ctx.out.Scheduled, death)
		} else {
			ctx.dying = append(ctx.dying, death)
		}
	case n == 1:
		ctx.saved[target] = true
		report.Result = GuardSaved
	default:
		report.Result = GuardOverwhelmed
		ctx.note(NoteGuardOverwhelmed, RoleDoctor, target)
	}
}

func stageInspect(ctx *nightContext) {
	a, ok := ctx.actable(RolePolice)
	if !ok || !a.Target.Valid() {
		return
	}
	ctx.out.Inspections = append(ctx.out.Inspections, InspectionReport{
		Inspector: a.Actor,
		Target:    a.Target,
		Result:    ctx.inspect(a.Target),
	})
}

func (ctx *nightContext) inspect(target Seat) InspectionResult {
	if r := ctx.activeRedirect(); r != nil && r.From == target {
		return InspectInconclusive
	}
	role := ctx.roles[target]
	if !ctx.alive[target] || role == RoleNone {
		return InspectInconclusive
	}
	if role.BadSpecial() {
		return InspectDangerous
	}
	return InspectNotDangerous
}

func stageScheme(ctx *nightContext) {
	a, ok := ctx.actable(RoleSchemer)
	if !ok {
		return
	}
	if a.Target != NoSeat {
		target := ctx.reroute(RoleSchemer, a.Target)
		if ctx.livingTarget(target) && !containsSeat(ctx.out.Muted, target) {
			ctx.out.Muted = append(ctx.out.Muted, target)
		}
	}
	if a.Secondary != NoSeat {
		target := ctx.reroute(RoleSchemer, a.Secondary)
		if ctx.livingTarget(target) {
			if ctx.out.DarkVotes == nil {
				ctx.out.DarkVotes = make(map[Seat]int, 1)
			}
			ctx.out.DarkVotes[target] += ctx.in.DarkVoteWeight
		}
	}
}

func stageFinalize(ctx *nightContext) {
	for _, d := range ctx.dying {
		ctx.alive[d.Seat] = false
		ctx.out.Deaths = append(ctx.out.Deaths, d)
	}
	for seat := Seat(1); seat <= SeatCount; seat++ {
		if !ctx.alive[seat] || ctx.saved[seat] || len(ctx.attacks[seat]) == 0 {
			continue
		}
		ctx.alive[seat] = false
		ctx.out.Deaths = append(ctx.out.Deaths, Death{Seat: seat, Cause: prioritizedAttack(ctx.attacks[seat]).Cause()})
	}

	muted := ctx.out.Muted[:0]
	for _, s := range ctx.out.Muted {
		if ctx.alive[s] {
			muted = append(muted, s)
		}
	}
	ctx.out.Muted = muted
	for s := range ctx.out.DarkVotes {
		if !ctx.alive[s] {
			delete(ctx.out.DarkVotes, s)
		}
	}
	kept := ctx.out.Scheduled[:0]
	for _, d := range ctx.out.Scheduled {
		if ctx.alive[d.Seat] {
			kept = append(kept, d)
		}
	}
	ctx.out.Scheduled = kept
}

func stageSuccession(ctx *nightContext) {
	for _, sc := range successionChains {
		if ctx.livingHolder(sc.heir) != NoSeat {
			continue
		}
		for _, candidate := range sc.chain {
			seat := ctx.livingHolder(candidate)
			if seat == NoSeat {
				continue
			}
			ctx.roles[seat] = sc.heir
			ctx.out.Successions = append(ctx.out.Successions, Succession{Seat: seat, From: candidate, To: sc.heir})
			return
		}
	}
}

func (ctx *nightContext) livingHolder(role Role) Seat {
	for seat := Seat(1); seat <= SeatCount; seat++ {
		if ctx.alive[seat] && ctx.roles[seat] == role {
			return seat
		}
	}
	return NoSeat
}

func prioritizedAttack(types []AttackType) AttackType {
	for _, p := range AttackPriority {
		for _, t := range types {
			if t == p {
				return t
			}
		}
	}
	if len(types) > 0 {
		return types[0]
	}
	return AttackNone
}

func containsSeat(seats []Seat, s Seat) bool {
	for _, x := range seats {
		if x == s {
			return true
		}
	}
	return false
}

func copySeatInts(m map[Seat]int) map[Seat]int {
	if m == nil {
		return nil
	}
	out := make(map[Seat]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
