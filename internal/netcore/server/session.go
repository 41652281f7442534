// Package server implements the replication core's authoritative side:
// connection handshake, tick-paced simulation, snapshot/delta
// broadcast, and input ingestion.
package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/transport"
)

const snapshotRingSize = 64

// ClientID identifies a connected session. The zero value means "the
// server" on channels where a sender id is needed.
type ClientID uint16

// Session is one connected client's server-side state.
type Session struct {
	ID      ClientID
	Channel *transport.Channel

	mu sync.Mutex

	name string // human-readable name from CONNECT_REQUEST

	playerEntity          uint32 // network id of this client's player
	lastAcknowledgedTick  uint32
	lastReceivedInputTick uint32
	smoothedPingMS        float64

	// snapshotHistory is a ring of the last snapshotRingSize world
	// snapshots, keyed by the tick they were produced at, pruned as the
	// client acknowledges later ticks.
	snapshotHistory map[uint32]WorldSnapshot

	// tickSentAt records when each snapshot tick was sent to this
	// client, keyed the same as snapshotHistory, so an incoming ack can
	// be turned into a round-trip sample for smoothedPingMS.
	tickSentAt map[uint32]time.Time

	// inputLimiter caps how fast this session's INPUT_COMMAND messages
	// are accepted, independent of the client's own send pacing — a
	// defensive floor against a misbehaving or malicious client.
	inputLimiter *rate.Limiter
}

func newSession(id ClientID, ch *transport.Channel) *Session {
	return &Session{
		ID:              id,
		Channel:         ch,
		snapshotHistory: make(map[uint32]WorldSnapshot),
		tickSentAt:      make(map[uint32]time.Time),
		inputLimiter:    rate.NewLimiter(rate.Limit(120), 10),
	}
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// SessionInfo is a read-only snapshot of one session's spec.md §3
// Client Session fields, for host-side diagnostics and logging.
type SessionInfo struct {
	ID                    ClientID
	Name                  string
	PlayerEntity          uint32
	LastAcknowledgedTick  uint32
	LastReceivedInputTick uint32
	SmoothedPingMS        float64
}

// Info returns a snapshot of this session's diagnostic fields.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:                    s.ID,
		Name:                  s.name,
		PlayerEntity:          s.playerEntity,
		LastAcknowledgedTick:  s.lastAcknowledgedTick,
		LastReceivedInputTick: s.lastReceivedInputTick,
		SmoothedPingMS:        s.smoothedPingMS,
	}
}

func (s *Session) setPlayerEntity(networkID uint32) {
	s.mu.Lock()
	s.playerEntity = networkID
	s.mu.Unlock()
}

func (s *Session) getPlayerEntity() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerEntity
}

// ackAndPrune updates last-acknowledged tick, prunes any snapshot older
// than ack-32 per the pruning window the input-application algorithm
// specifies, and — if the acknowledged tick's send time is still on
// record — folds the resulting round-trip sample into smoothedPingMS.
func (s *Session) ackAndPrune(ack uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAcknowledgedTick = ack

	if sentAt, ok := s.tickSentAt[ack]; ok {
		sample := float64(time.Since(sentAt).Milliseconds())
		if s.smoothedPingMS == 0 {
			s.smoothedPingMS = sample
		} else {
			s.smoothedPingMS = s.smoothedPingMS*0.9 + sample*0.1
		}
	}

	threshold := uint32(0)
	if ack > 32 {
		threshold = ack - 32
	}
	for tick := range s.snapshotHistory {
		if tick < threshold {
			delete(s.snapshotHistory, tick)
		}
	}
	for tick := range s.tickSentAt {
		if tick < threshold {
			delete(s.tickSentAt, tick)
		}
	}
}

// recordInputTick advances lastReceivedInputTick, ignoring
// out-of-order input that arrived behind one already applied.
func (s *Session) recordInputTick(tick uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tick > s.lastReceivedInputTick {
		s.lastReceivedInputTick = tick
	}
}

// recordSnapshotSentAt stamps the wall-clock time a snapshot for tick
// was sent, so a later ack of that tick yields an RTT sample.
func (s *Session) recordSnapshotSentAt(tick uint32) {
	s.mu.Lock()
	s.tickSentAt[tick] = time.Now()
	s.mu.Unlock()
}

func (s *Session) baseline() (WorldSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshotHistory[s.lastAcknowledgedTick]
	return snap, ok
}

func (s *Session) appendSnapshot(tick uint32, snap WorldSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotHistory[tick] = snap
	if len(s.snapshotHistory) > snapshotRingSize {
		var oldest uint32 = ^uint32(0)
		for t := range s.snapshotHistory {
			if t < oldest {
				oldest = t
			}
		}
		delete(s.snapshotHistory, oldest)
	}
}

// allowInput reports whether this tick's INPUT_COMMAND should be
// accepted, rate-limiting a client to 120 commands per second with a
// burst of 10 (twice the protocol's 60Hz input cadence).
func (s *Session) allowInput() bool {
	return s.inputLimiter.Allow()
}

// sessionTable owns the client id → Session map and the monotonic
// counter allocating new ids.
type sessionTable struct {
	mu       sync.RWMutex
	sessions map[ClientID]*Session
	nextID   uint16
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[ClientID]*Session)}
}

func (t *sessionTable) add(ch *transport.Channel) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	sess := newSession(ClientID(t.nextID), ch)
	t.sessions[sess.ID] = sess
	return sess
}

func (t *sessionTable) remove(id ClientID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

func (t *sessionTable) get(id ClientID) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[id]
	return sess, ok
}

func (t *sessionTable) all() []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

func (t *sessionTable) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
