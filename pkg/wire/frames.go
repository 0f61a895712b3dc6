package wire

import "fmt"

// Host frames (spec §6.1 "Host → Client frame header"). Every frame carries
// a subscription id in its header; frames with no natural subscription
// (Heartbeat before handshake, for example) use 0.

type HeartbeatFrame struct {
	Subscription uint64
	Seq          uint64
	TimestampMs  uint64
}

func (f HeartbeatFrame) Encode() []byte {
	e := newEncoder(1 + 8 + 8 + 8)
	e.u8(uint8(TagHeartbeat))
	e.u64(f.Subscription)
	e.u64(f.Seq)
	e.u64(f.TimestampMs)
	return e.buf
}

type HelloFrame struct {
	Subscription uint64
	MaxSeq       uint64
	Config       SyncConfig
	Features     uint32
}

func (f HelloFrame) Encode() []byte {
	e := newEncoder(64)
	e.u8(uint8(TagHello))
	e.u64(f.Subscription)
	e.u64(f.MaxSeq)
	encodeSyncConfig(e, f.Config)
	e.u32(f.Features)
	return e.buf
}

type GridFrame struct {
	Subscription uint64
	Cols         uint32
	HistoryRows  uint32
	BaseRow      uint64
	HasViewport  bool
	ViewportRows uint32
}

func (f GridFrame) Encode() []byte {
	e := newEncoder(32)
	e.u8(uint8(TagGrid))
	e.u64(f.Subscription)
	e.u32(f.Cols)
	e.u32(f.HistoryRows)
	e.u64(f.BaseRow)
	e.boolByte(f.HasViewport)
	if f.HasViewport {
		e.u32(f.ViewportRows)
	}
	return e.buf
}

type SnapshotFrame struct {
	Subscription uint64
	Lane         Lane
	Watermark    uint64
	HasMore      bool
	Updates      []Update
	HasCursor    bool
	Cursor       Cursor
}

func (f SnapshotFrame) Encode() []byte {
	e := newEncoder(256)
	e.u8(uint8(TagSnapshot))
	e.u64(f.Subscription)
	e.u8(uint8(f.Lane))
	e.u64(f.Watermark)
	e.boolByte(f.HasMore)
	e.u32(uint32(len(f.Updates)))
	for _, u := range f.Updates {
		encodeUpdate(e, u)
	}
	e.boolByte(f.HasCursor)
	if f.HasCursor {
		encodeCursor(e, f.Cursor)
	}
	return e.buf
}

type SnapshotCompleteFrame struct {
	Subscription uint64
	Lane         Lane
}

func (f SnapshotCompleteFrame) Encode() []byte {
	e := newEncoder(10)
	e.u8(uint8(TagSnapshotComplete))
	e.u64(f.Subscription)
	e.u8(uint8(f.Lane))
	return e.buf
}

type DeltaFrame struct {
	Subscription uint64
	Watermark    uint64
	HasMore      bool
	Updates      []Update
	HasCursor    bool
	Cursor       Cursor
}

func (f DeltaFrame) Encode() []byte {
	e := newEncoder(256)
	e.u8(uint8(TagDelta))
	e.u64(f.Subscription)
	e.u64(f.Watermark)
	e.boolByte(f.HasMore)
	e.u32(uint32(len(f.Updates)))
	for _, u := range f.Updates {
		encodeUpdate(e, u)
	}
	e.boolByte(f.HasCursor)
	if f.HasCursor {
		encodeCursor(e, f.Cursor)
	}
	return e.buf
}

type HistoryBackfillFrame struct {
	Subscription uint64
	RequestID    uint64
	StartRow     uint64
	Count        uint32
	Updates      []Update
	More         bool
	HasCursor    bool
	Cursor       Cursor
}

func (f HistoryBackfillFrame) Encode() []byte {
	e := newEncoder(256)
	e.u8(uint8(TagHistoryBackfill))
	e.u64(f.Subscription)
	e.u64(f.RequestID)
	e.u64(f.StartRow)
	e.u32(f.Count)
	e.u32(uint32(len(f.Updates)))
	for _, u := range f.Updates {
		encodeUpdate(e, u)
	}
	e.boolByte(f.More)
	e.boolByte(f.HasCursor)
	if f.HasCursor {
		encodeCursor(e, f.Cursor)
	}
	return e.buf
}

type CursorFrame struct {
	Subscription uint64
	Cursor       Cursor
}

func (f CursorFrame) Encode() []byte {
	e := newEncoder(32)
	e.u8(uint8(TagCursor))
	e.u64(f.Subscription)
	encodeCursor(e, f.Cursor)
	return e.buf
}

type InputAckFrame struct {
	Subscription uint64
	Seq          uint64
}

func (f InputAckFrame) Encode() []byte {
	e := newEncoder(17)
	e.u8(uint8(TagInputAck))
	e.u64(f.Subscription)
	e.u64(f.Seq)
	return e.buf
}

type ShutdownFrame struct {
	Subscription uint64
}

func (f ShutdownFrame) Encode() []byte {
	e := newEncoder(9)
	e.u8(uint8(TagShutdown))
	e.u64(f.Subscription)
	return e.buf
}

// DecodeHostFrame dispatches on the leading tag byte and returns the
// concrete frame value (one of the *Frame types above) as an interface{}.
func DecodeHostFrame(buf []byte) (interface{}, error) {
	d := newDecoder(buf)
	tag, err := d.u8()
	if err != nil {
		return nil, err
	}
	sub, err := d.u64()
	if err != nil {
		return nil, err
	}

	switch HostTag(tag) {
	case TagHeartbeat:
		seq, err := d.u64()
		if err != nil {
			return nil, err
		}
		ts, err := d.u64()
		if err != nil {
			return nil, err
		}
		return HeartbeatFrame{Subscription: sub, Seq: seq, TimestampMs: ts}, nil

	case TagHello:
		maxSeq, err := d.u64()
		if err != nil {
			return nil, err
		}
		cfg, err := decodeSyncConfig(d)
		if err != nil {
			return nil, err
		}
		features, err := d.u32()
		if err != nil {
			return nil, err
		}
		return HelloFrame{Subscription: sub, MaxSeq: maxSeq, Config: cfg, Features: features}, nil

	case TagGrid:
		cols, err := d.u32()
		if err != nil {
			return nil, err
		}
		historyRows, err := d.u32()
		if err != nil {
			return nil, err
		}
		baseRow, err := d.u64()
		if err != nil {
			return nil, err
		}
		hasVP, err := d.boolByte()
		if err != nil {
			return nil, err
		}
		var vpRows uint32
		if hasVP {
			if vpRows, err = d.u32(); err != nil {
				return nil, err
			}
		}
		return GridFrame{Subscription: sub, Cols: cols, HistoryRows: historyRows, BaseRow: baseRow, HasViewport: hasVP, ViewportRows: vpRows}, nil

	case TagSnapshot:
		lane, err := d.u8()
		if err != nil {
			return nil, err
		}
		watermark, err := d.u64()
		if err != nil {
			return nil, err
		}
		hasMore, err := d.boolByte()
		if err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		updates := make([]Update, n)
		for i := range updates {
			if updates[i], err = decodeUpdate(d); err != nil {
				return nil, err
			}
		}
		hasCursor, err := d.boolByte()
		if err != nil {
			return nil, err
		}
		var cur Cursor
		if hasCursor {
			if cur, err = decodeCursor(d); err != nil {
				return nil, err
			}
		}
		return SnapshotFrame{Subscription: sub, Lane: Lane(lane), Watermark: watermark, HasMore: hasMore, Updates: updates, HasCursor: hasCursor, Cursor: cur}, nil

	case TagSnapshotComplete:
		lane, err := d.u8()
		if err != nil {
			return nil, err
		}
		return SnapshotCompleteFrame{Subscription: sub, Lane: Lane(lane)}, nil

	case TagDelta:
		watermark, err := d.u64()
		if err != nil {
			return nil, err
		}
		hasMore, err := d.boolByte()
		if err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		updates := make([]Update, n)
		for i := range updates {
			if updates[i], err = decodeUpdate(d); err != nil {
				return nil, err
			}
		}
		hasCursor, err := d.boolByte()
		if err != nil {
			return nil, err
		}
		var cur Cursor
		if hasCursor {
			if cur, err = decodeCursor(d); err != nil {
				return nil, err
			}
		}
		return DeltaFrame{Subscription: sub, Watermark: watermark, HasMore: hasMore, Updates: updates, HasCursor: hasCursor, Cursor: cur}, nil

	case TagHistoryBackfill:
		reqID, err := d.u64()
		if err != nil {
			return nil, err
		}
		startRow, err := d.u64()
		if err != nil {
			return nil, err
		}
		count, err := d.u32()
		if err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		updates := make([]Update, n)
		for i := range updates {
			if updates[i], err = decodeUpdate(d); err != nil {
				return nil, err
			}
		}
		more, err := d.boolByte()
		if err != nil {
			return nil, err
		}
		hasCursor, err := d.boolByte()
		if err != nil {
			return nil, err
		}
		var cur Cursor
		if hasCursor {
			if cur, err = decodeCursor(d); err != nil {
				return nil, err
			}
		}
		return HistoryBackfillFrame{Subscription: sub, RequestID: reqID, StartRow: startRow, Count: count, Updates: updates, More: more, HasCursor: hasCursor, Cursor: cur}, nil

	case TagCursor:
		cur, err := decodeCursor(d)
		if err != nil {
			return nil, err
		}
		return CursorFrame{Subscription: sub, Cursor: cur}, nil

	case TagInputAck:
		seq, err := d.u64()
		if err != nil {
			return nil, err
		}
		return InputAckFrame{Subscription: sub, Seq: seq}, nil

	case TagShutdown:
		return ShutdownFrame{Subscription: sub}, nil

	default:
		return nil, fmt.Errorf("wire: unknown host tag 0x%02x", tag)
	}
}

// Client frames (spec §6.1 "Client → Host frame header"). These carry no
// subscription in the header except RequestBackfill/ViewportCommand, which
// name it in the body (a client may multiplex subscriptions over one
// transport).

type InputFrame struct {
	Seq  uint64
	Data []byte
}

func (f InputFrame) Encode() []byte {
	e := newEncoder(13 + len(f.Data))
	e.u8(uint8(TagInput))
	e.u64(f.Seq)
	e.u32(uint32(len(f.Data)))
	e.bytes(f.Data)
	return e.buf
}

type ResizeFrame struct {
	Cols uint32
	Rows uint32
}

func (f ResizeFrame) Encode() []byte {
	e := newEncoder(9)
	e.u8(uint8(TagResize))
	e.u32(f.Cols)
	e.u32(f.Rows)
	return e.buf
}

type RequestBackfillFrame struct {
	Subscription uint64
	RequestID    uint64
	StartRow     uint64
	Count        uint32
}

func (f RequestBackfillFrame) Encode() []byte {
	e := newEncoder(29)
	e.u8(uint8(TagRequestBackfill))
	e.u64(f.Subscription)
	e.u64(f.RequestID)
	e.u64(f.StartRow)
	e.u32(f.Count)
	return e.buf
}

type ViewportCommandFrame struct {
	Subscription uint64
	Kind         uint8
	Payload      []byte
}

func (f ViewportCommandFrame) Encode() []byte {
	e := newEncoder(10 + len(f.Payload))
	e.u8(uint8(TagViewportCommand))
	e.u64(f.Subscription)
	e.u8(f.Kind)
	e.bytes(f.Payload)
	return e.buf
}

// DecodeClientFrame dispatches on the leading tag byte.
func DecodeClientFrame(buf []byte) (interface{}, error) {
	d := newDecoder(buf)
	tag, err := d.u8()
	if err != nil {
		return nil, err
	}

	switch ClientTag(tag) {
	case TagInput:
		seq, err := d.u64()
		if err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		data, err := d.bytes(int(n))
		if err != nil {
			return nil, err
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		return InputFrame{Seq: seq, Data: cp}, nil

	case TagResize:
		cols, err := d.u32()
		if err != nil {
			return nil, err
		}
		rows, err := d.u32()
		if err != nil {
			return nil, err
		}
		return ResizeFrame{Cols: cols, Rows: rows}, nil

	case TagRequestBackfill:
		sub, err := d.u64()
		if err != nil {
			return nil, err
		}
		reqID, err := d.u64()
		if err != nil {
			return nil, err
		}
		startRow, err := d.u64()
		if err != nil {
			return nil, err
		}
		count, err := d.u32()
		if err != nil {
			return nil, err
		}
		return RequestBackfillFrame{Subscription: sub, RequestID: reqID, StartRow: startRow, Count: count}, nil

	case TagViewportCommand:
		sub, err := d.u64()
		if err != nil {
			return nil, err
		}
		kind, err := d.u8()
		if err != nil {
			return nil, err
		}
		payload := make([]byte, d.remaining())
		copy(payload, d.buf[d.off:])
		return ViewportCommandFrame{Subscription: sub, Kind: kind, Payload: payload}, nil

	default:
		return nil, fmt.Errorf("wire: unknown client tag 0x%02x", tag)
	}
}
