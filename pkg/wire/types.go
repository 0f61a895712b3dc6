package wire

// HostTag identifies a host→client frame kind (spec §6.1).
type HostTag uint8

const (
	TagHeartbeat         HostTag = 0x01
	TagHello             HostTag = 0x02
	TagGrid              HostTag = 0x03
	TagSnapshot          HostTag = 0x04
	TagSnapshotComplete  HostTag = 0x05
	TagDelta             HostTag = 0x06
	TagHistoryBackfill   HostTag = 0x07
	TagCursor            HostTag = 0x08
	TagInputAck          HostTag = 0x09
	TagShutdown          HostTag = 0xFF
)

// ClientTag identifies a client→host frame kind (spec §6.1).
type ClientTag uint8

const (
	TagInput            ClientTag = 0x01
	TagResize           ClientTag = 0x02
	TagRequestBackfill  ClientTag = 0x03
	TagViewportCommand  ClientTag = 0x04
)

// Lane partitions a snapshot scan (spec §3/§4.4.1). Values match the wire
// lane codes exactly, so a Lane can be written directly as a u8.
type Lane uint8

const (
	LaneForeground Lane = 0
	LaneRecent     Lane = 1
	LaneHistory    Lane = 2
)

// Feature bits carried in Hello.features, freezing the implementer choices
// that spec §9's open questions leave unresolved.
const (
	// FeatureRowID32 signals that Cell/Row/Rect/Trim/RowSeg updates carry
	// only the low 32 bits of the absolute row id; the client reconstructs
	// the full id from the subscription's current base_row.
	FeatureRowID32 uint32 = 1 << 0
	// FeatureRowSegment signals the RowSeg update kind may appear on the
	// wire (used to fragment a single row write across frames per §4.5
	// step 4).
	FeatureRowSegment uint32 = 1 << 1
)

// DefaultFeatures is what this implementation always negotiates.
const DefaultFeatures = FeatureRowID32 | FeatureRowSegment

// Framing budgets (spec "Framing budgets (contractual)").
const (
	MaxTransportFrameBytes   = 49152
	MaxUpdatesPerFrame       = 64
	MaxBackfillRowsPerRequest = 256
	ServerBackfillChunkRows  = 64
)

// LaneBudget bounds how many updates a Snapshot frame may batch for one lane.
type LaneBudget struct {
	Lane       Lane
	MaxUpdates uint32
}

// SyncConfig is negotiated in Hello: lane budgets, delta batching, heartbeat
// cadence, and how many lines the initial snapshot should target.
type SyncConfig struct {
	LaneBudgets           []LaneBudget
	DeltaBudget           uint32
	HeartbeatMillis       uint64
	InitialSnapshotLines  uint32
}

// DefaultSyncConfig mirrors the budgets named throughout spec §4.4/§6.1.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		LaneBudgets: []LaneBudget{
			{Lane: LaneForeground, MaxUpdates: MaxUpdatesPerFrame},
			{Lane: LaneRecent, MaxUpdates: MaxUpdatesPerFrame},
			{Lane: LaneHistory, MaxUpdates: MaxUpdatesPerFrame},
		},
		DeltaBudget:          MaxUpdatesPerFrame,
		HeartbeatMillis:      3000,
		InitialSnapshotLines: 1000,
	}
}

// Cursor is the wire form of cursor position/visibility.
type Cursor struct {
	Row     uint32
	Col     uint32
	Seq     uint64
	Visible bool
	Blink   bool
}

// UpdateKind tags the variant of an Update (spec §6.1 "Update encoding").
// Distinct from cache.UpdateKind: this is the wire-level enum, and adds
// RowSeg, a fragmentation-only variant with no cache.CacheUpdate analogue.
type UpdateKind uint8

const (
	WireUpdateCell   UpdateKind = 0x01
	WireUpdateRow    UpdateKind = 0x02
	WireUpdateRect   UpdateKind = 0x03
	WireUpdateTrim   UpdateKind = 0x04
	WireUpdateStyle  UpdateKind = 0x05
	WireUpdateRowSeg UpdateKind = 0x06
)

// Update is the wire-level encoding of a single update. Row/R0/R1/TrimStart
// carry only the low 32 bits of the absolute row id (FeatureRowID32);
// ReconstructRow recovers the full id given a base_row.
type Update struct {
	Kind UpdateKind
	Seq  uint64

	// Cell
	Row uint32
	Col uint32
	Cell uint64

	// Row / RowSeg
	StartCol uint32 // RowSeg only
	Cells    []uint64

	// Rect
	R0, R1, C0, C1 uint32

	// Trim
	TrimStart uint32
	TrimCount uint32

	// Style
	StyleID uint32
	Fg, Bg  uint32
	Attrs   uint8
}

// ReconstructRow recovers an absolute row id from a wire-truncated low
// 32-bit half, given the subscription's currently known base_row. Row ids
// only increase, so base_row is a floor: it returns the smallest value
// whose low 32 bits equal low that is not less than base_row — i.e.
// base_row's high bits combined with low, bumped up by one span if that
// candidate would fall below base_row. Correct as long as the true row
// never exceeds base_row+2^32 (invariant 6 doesn't let retained history
// span that far).
func ReconstructRow(baseRow uint64, low uint32) uint64 {
	const span = uint64(1) << 32
	high := baseRow &^ (span - 1)
	candidate := high | uint64(low)
	if candidate < baseRow {
		candidate += span
	}
	return candidate
}

// TruncateRow returns the low 32 bits of an absolute row id for the wire.
func TruncateRow(row uint64) uint32 { return uint32(row) }
