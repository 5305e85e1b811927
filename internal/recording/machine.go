// Package recording decides when an unknown-person recording starts and ends.
//
// The machine is a pure function of its inputs: callers feed it one
// observation per analysed frame (and Tick on frames they skip) and carry
// out the returned actions. It never touches files or clocks itself.
package recording

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Armed
	Recording
	Cooling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Recording:
		return "recording"
	case Cooling:
		return "cooling"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Config struct {
	// ArmFrames is the number of consecutive unknown frames needed to start recording.
	ArmFrames int
	// Grace is how long a recording survives without an unknown face.
	Grace time.Duration
	// MaxDuration caps a single recording.
	MaxDuration time.Duration
	// MinDuration is the shortest on-screen presence worth keeping. It is
	// measured from the start to the last unknown sighting, so the grace
	// tail never counts towards it.
	MinDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		ArmFrames:   3,
		Grace:       2 * time.Second,
		MaxDuration: 30 * time.Second,
		MinDuration: 2 * time.Second,
	}
}

type ActionKind int

const (
	// ActionStart opens a new recording for Session.
	ActionStart ActionKind = iota + 1
	// ActionFinalize closes the recording and logs it.
	ActionFinalize
	// ActionDiscard closes the recording and deletes it.
	ActionDiscard
)

func (k ActionKind) String() string {
	switch k {
	case ActionStart:
		return "start"
	case ActionFinalize:
		return "finalize"
	case ActionDiscard:
		return "discard"
	default:
		return "none"
	}
}

type Reason string

const (
	ReasonGraceExpired Reason = "grace_expired"
	ReasonMaxDuration  Reason = "max_duration"
	ReasonInterrupted  Reason = "interrupted"
)

// Session is the in-memory record of one recording.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
	// EndedAt and Duration are set once the session closes.
	EndedAt  time.Time
	Duration time.Duration
	// Frames counts observations made while the session was open.
	Frames int
	// LastSeen is the last observation with an unknown face present.
	LastSeen time.Time
	// Presence is LastSeen - StartedAt, set on close. It decides between
	// finalize and discard.
	Presence time.Duration
}

type Action struct {
	Kind    ActionKind
	Session Session
	Reason  Reason
}

// Machine tracks one camera. It is not safe for concurrent use.
type Machine struct {
	cfg      Config
	state    State
	streak   int
	gapStart time.Time
	session  *Session
}

func New(cfg Config) *Machine {
	if cfg.ArmFrames < 1 {
		cfg.ArmFrames = 1
	}
	return &Machine{cfg: cfg}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) Config() Config { return m.cfg }

// Active returns the open session, if any.
func (m *Machine) Active() (Session, bool) {
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Observe feeds one analysed frame into the machine.
func (m *Machine) Observe(now time.Time, unknownPresent bool) []Action {
	actions := m.expire(now)

	switch m.state {
	case Idle:
		if unknownPresent {
			m.streak = 1
			m.state = Armed
			actions = append(actions, m.maybeStart(now)...)
		}

	case Armed:
		if unknownPresent {
			m.streak++
			actions = append(actions, m.maybeStart(now)...)
		} else {
			m.streak = 0
			m.state = Idle
		}

	case Recording:
		m.session.Frames++
		if unknownPresent {
			m.session.LastSeen = now
		} else {
			m.gapStart = now
			m.state = Cooling
		}

	case Cooling:
		m.session.Frames++
		if unknownPresent {
			m.session.LastSeen = now
			m.gapStart = time.Time{}
			m.state = Recording
		}
	}
	return actions
}

// Tick checks the grace and duration timers without a new observation.
func (m *Machine) Tick(now time.Time) []Action {
	return m.expire(now)
}

// Interrupt closes any open session immediately, e.g. when the camera drops
// or the process shuts down. The usual minimum-presence rule applies.
func (m *Machine) Interrupt(now time.Time) []Action {
	if m.session == nil {
		m.reset()
		return nil
	}
	end := now
	if limit := m.session.StartedAt.Add(m.cfg.MaxDuration); m.cfg.MaxDuration > 0 && end.After(limit) {
		end = limit
	}
	return []Action{m.close(end, ReasonInterrupted)}
}

func (m *Machine) maybeStart(now time.Time) []Action {
	if m.streak < m.cfg.ArmFrames {
		return nil
	}
	m.session = &Session{ID: uuid.New(), StartedAt: now, LastSeen: now, Frames: 1}
	m.state = Recording
	m.streak = 0
	return []Action{{Kind: ActionStart, Session: *m.session}}
}

// expire finalizes the open session if the cap or the grace timer has run out.
// The cap wins when both have expired by now.
func (m *Machine) expire(now time.Time) []Action {
	if m.session == nil {
		return nil
	}

	capAt := m.session.StartedAt.Add(m.cfg.MaxDuration)
	graceAt := time.Time{}
	if m.state == Cooling {
		graceAt = m.gapStart.Add(m.cfg.Grace)
	}

	switch {
	case m.state == Cooling && !now.Before(graceAt) && (m.cfg.MaxDuration <= 0 || graceAt.Before(capAt)):
		return []Action{m.close(graceAt, ReasonGraceExpired)}
	case m.cfg.MaxDuration > 0 && !now.Before(capAt):
		return []Action{m.close(capAt, ReasonMaxDuration)}
	}
	return nil
}

func (m *Machine) close(end time.Time, reason Reason) Action {
	s := *m.session
	s.EndedAt = end
	s.Duration = end.Sub(s.StartedAt)
	if s.Duration < 0 {
		s.Duration = 0
	}
	seen := s.LastSeen
	if seen.After(end) {
		seen = end
	}
	s.Presence = max(seen.Sub(s.StartedAt), 0)

	kind := ActionFinalize
	if s.Presence < m.cfg.MinDuration {
		kind = ActionDiscard
	}
	m.reset()
	return Action{Kind: kind, Session: s, Reason: reason}
}

func (m *Machine) reset() {
	m.session = nil
	m.state = Idle
	m.streak = 0
	m.gapStart = time.Time{}
}
