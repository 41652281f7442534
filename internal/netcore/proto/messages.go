package proto

// MessageType is the one-byte wire tag every packet begins with. These
// numeric values are the protocol's only compatibility surface and
// must never be renumbered.
type MessageType byte

const (
	ConnectRequest   MessageType = 0
	ConnectAccept    MessageType = 1
	ConnectReject    MessageType = 2
	Disconnect       MessageType = 3
	SpawnPlayer      MessageType = 4
	DespawnPlayer    MessageType = 5
	InputCommand     MessageType = 10
	WorldStateUpdate MessageType = 11
	Ping             MessageType = 20
	Pong             MessageType = 21
)

// ProtocolVersion is carried in ConnectRequest and checked for exact
// equality by the server handshake.
const ProtocolVersion uint32 = 1

// BuildTag is a semver-formatted diagnostic string that
// BuildCompatibility compares against; it is not sent on the wire and
// has no bearing on handshake
// acceptance, which stays the plain uint32 equality spec.md mandates.
const BuildTag = "1.0.0"

const (
	playerNameLength = 32
	reasonLength     = 64
)

// Input button bits, per the INPUT_COMMAND bitfield layout.
const (
	ButtonForward byte = 1 << 7
	ButtonBack    byte = 1 << 6
	ButtonLeft    byte = 1 << 5
	ButtonRight   byte = 1 << 4
	ButtonJump    byte = 1 << 3
	ButtonUse     byte = 1 << 2
	ButtonAttack  byte = 1 << 1
	ButtonAttack2 byte = 1 << 0
)

// Entity component flag bits, per the WORLD_STATE_UPDATE entity update layout.
const (
	FlagTransform byte = 1 << 7
	FlagVelocity  byte = 1 << 6
	FlagGrounded  byte = 1 << 5
	FlagDeleted   byte = 1 << 4
	FlagRotation  byte = 1 << 3 // reserved
)

// ConnectRequestMsg is sent client→server to begin a session.
type ConnectRequestMsg struct {
	ProtocolVersion uint32
	PlayerName      string
	Checksum        uint32 // reserved
}

func (m ConnectRequestMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(ConnectRequest))
	w.WriteUint32(m.ProtocolVersion)
	w.WriteFixedString(m.PlayerName, playerNameLength)
	w.WriteUint32(m.Checksum)
	return w.Bytes()
}

func DecodeConnectRequest(r *BitReader) ConnectRequestMsg {
	return ConnectRequestMsg{
		ProtocolVersion: r.ReadUint32(),
		PlayerName:      r.ReadFixedString(playerNameLength),
		Checksum:        r.ReadUint32(),
	}
}

// ConnectAcceptMsg is sent server→client on a successful handshake.
type ConnectAcceptMsg struct {
	ClientID    uint16
	ServerTick  uint32
	LevelHash   uint32 // reserved
}

func (m ConnectAcceptMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(ConnectAccept))
	w.WriteUint16(m.ClientID)
	w.WriteUint32(m.ServerTick)
	w.WriteUint32(m.LevelHash)
	return w.Bytes()
}

func DecodeConnectAccept(r *BitReader) ConnectAcceptMsg {
	return ConnectAcceptMsg{
		ClientID:   r.ReadUint16(),
		ServerTick: r.ReadUint32(),
		LevelHash:  r.ReadUint32(),
	}
}

// ConnectRejectMsg and DisconnectMsg share the 64-byte reason-string shape.
type ConnectRejectMsg struct {
	Reason string
}

func (m ConnectRejectMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(ConnectReject))
	w.WriteFixedString(m.Reason, reasonLength)
	return w.Bytes()
}

func DecodeConnectReject(r *BitReader) ConnectRejectMsg {
	return ConnectRejectMsg{Reason: r.ReadFixedString(reasonLength)}
}

type DisconnectMsg struct {
	Reason string
}

func (m DisconnectMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(Disconnect))
	w.WriteFixedString(m.Reason, reasonLength)
	return w.Bytes()
}

func DecodeDisconnect(r *BitReader) DisconnectMsg {
	return DisconnectMsg{Reason: r.ReadFixedString(reasonLength)}
}

// SpawnPlayerMsg announces a new player entity to clients.
type SpawnPlayerMsg struct {
	ClientID  uint16
	NetworkID uint32
	X, Y, Z   float32
	Yaw       float32
}

func (m SpawnPlayerMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(SpawnPlayer))
	w.WriteUint16(m.ClientID)
	w.WriteUint32(m.NetworkID)
	w.WriteVector3f(m.X, m.Y, m.Z)
	w.WriteFloat32(m.Yaw)
	return w.Bytes()
}

func DecodeSpawnPlayer(r *BitReader) SpawnPlayerMsg {
	var m SpawnPlayerMsg
	m.ClientID = r.ReadUint16()
	m.NetworkID = r.ReadUint32()
	m.X, m.Y, m.Z = r.ReadVector3f()
	m.Yaw = r.ReadFloat32()
	return m
}

type DespawnPlayerMsg struct {
	ClientID  uint16
	NetworkID uint32
}

func (m DespawnPlayerMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(DespawnPlayer))
	w.WriteUint16(m.ClientID)
	w.WriteUint32(m.NetworkID)
	return w.Bytes()
}

func DecodeDespawnPlayer(r *BitReader) DespawnPlayerMsg {
	return DespawnPlayerMsg{ClientID: r.ReadUint16(), NetworkID: r.ReadUint32()}
}

// InputCommandMsg is sent client→server every 1/60s.
type InputCommandMsg struct {
	ClientTick     uint32
	AckServerTick  uint32
	Buttons        byte
	Yaw, Pitch     float32
	MoveForward    float32
	MoveRight      float32
}

func (m InputCommandMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(InputCommand))
	w.WriteUint32(m.ClientTick)
	w.WriteUint32(m.AckServerTick)
	w.WriteByte(m.Buttons)
	w.WriteFloat32(m.Yaw)
	w.WriteFloat32(m.Pitch)
	w.WriteFloat32(m.MoveForward)
	w.WriteFloat32(m.MoveRight)
	return w.Bytes()
}

func DecodeInputCommand(r *BitReader) InputCommandMsg {
	var m InputCommandMsg
	m.ClientTick = r.ReadUint32()
	m.AckServerTick = r.ReadUint32()
	m.Buttons = r.ReadByte()
	m.Yaw = r.ReadFloat32()
	m.Pitch = r.ReadFloat32()
	m.MoveForward = r.ReadFloat32()
	m.MoveRight = r.ReadFloat32()
	return m
}

// EntityUpdate is one entity's delta within a WorldStateUpdateMsg.
type EntityUpdate struct {
	NetworkID uint32
	Flags     byte

	PosX, PosY, PosZ float32
	VelX, VelY, VelZ float32
	Grounded         bool
}

func (e EntityUpdate) encode(w *BitWriter) {
	w.WriteUint32(e.NetworkID)
	w.WriteByte(e.Flags)
	if e.Flags&FlagTransform != 0 {
		w.WriteVector3f(e.PosX, e.PosY, e.PosZ)
	}
	if e.Flags&FlagVelocity != 0 {
		w.WriteVector3f(e.VelX, e.VelY, e.VelZ)
	}
	if e.Flags&FlagGrounded != 0 {
		w.WriteBool(e.Grounded)
	}
}

func decodeEntityUpdate(r *BitReader) EntityUpdate {
	var e EntityUpdate
	e.NetworkID = r.ReadUint32()
	e.Flags = r.ReadByte()
	if e.Flags&FlagTransform != 0 {
		e.PosX, e.PosY, e.PosZ = r.ReadVector3f()
	}
	if e.Flags&FlagVelocity != 0 {
		e.VelX, e.VelY, e.VelZ = r.ReadVector3f()
	}
	if e.Flags&FlagGrounded != 0 {
		e.Grounded = r.ReadBool()
	}
	return e
}

// WorldStateUpdateMsg is the per-tick unreliable snapshot delta.
type WorldStateUpdateMsg struct {
	ServerTick uint32
	Entities   []EntityUpdate
}

func (m WorldStateUpdateMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(WorldStateUpdate))
	w.WriteUint32(m.ServerTick)
	w.WriteUint16(uint16(len(m.Entities)))
	for _, e := range m.Entities {
		e.encode(w)
	}
	return w.Bytes()
}

func DecodeWorldStateUpdate(r *BitReader) WorldStateUpdateMsg {
	var m WorldStateUpdateMsg
	m.ServerTick = r.ReadUint32()
	count := r.ReadUint16()
	m.Entities = make([]EntityUpdate, 0, count)
	for i := uint16(0); i < count; i++ {
		m.Entities = append(m.Entities, decodeEntityUpdate(r))
	}
	return m
}

type PingMsg struct{ Timestamp uint32 }

func (m PingMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(Ping))
	w.WriteUint32(m.Timestamp)
	return w.Bytes()
}

func DecodePing(r *BitReader) PingMsg { return PingMsg{Timestamp: r.ReadUint32()} }

type PongMsg struct{ Timestamp uint32 }

func (m PongMsg) Encode() []byte {
	w := NewBitWriter()
	w.WriteByte(byte(Pong))
	w.WriteUint32(m.Timestamp)
	return w.Bytes()
}

func DecodePong(r *BitReader) PongMsg { return PongMsg{Timestamp: r.ReadUint32()} }

// PeekType reads the leading message-type byte without consuming the
// rest of the reader's state, letting the caller dispatch to the
// correct Decode function.
func PeekType(data []byte) (MessageType, bool) {
	if len(data) == 0 {
		return 0, false
	}
	return MessageType(data[0]), true
}

// BodyReader returns a BitReader positioned after the leading type byte.
func BodyReader(data []byte) *BitReader {
	r := NewBitReader(data)
	r.ReadByte()
	return r
}
