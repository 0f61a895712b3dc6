package wire

// encodeUpdate appends one Update's tagged encoding (spec §6.1 "Update
// encoding") to e.
func encodeUpdate(e *encoder, u Update) {
	e.u8(uint8(u.Kind))
	switch u.Kind {
	case WireUpdateCell:
		e.u32(u.Row)
		e.u32(u.Col)
		e.u64(u.Seq)
		e.u64(u.Cell)
	case WireUpdateRow:
		e.u32(u.Row)
		e.u64(u.Seq)
		e.u32(uint32(len(u.Cells)))
		for _, c := range u.Cells {
			e.u64(c)
		}
	case WireUpdateRect:
		e.u32(u.R0)
		e.u32(u.R1)
		e.u32(u.C0)
		e.u32(u.C1)
		e.u64(u.Seq)
		e.u64(u.Cell)
	case WireUpdateTrim:
		e.u32(u.TrimStart)
		e.u32(u.TrimCount)
		e.u64(u.Seq)
	case WireUpdateStyle:
		e.u32(u.StyleID)
		e.u64(u.Seq)
		e.u32(u.Fg)
		e.u32(u.Bg)
		e.u8(u.Attrs)
	case WireUpdateRowSeg:
		e.u32(u.Row)
		e.u32(u.StartCol)
		e.u64(u.Seq)
		e.u32(uint32(len(u.Cells)))
		for _, c := range u.Cells {
			e.u64(c)
		}
	}
}

// decodeUpdate reads one tagged Update from d.
func decodeUpdate(d *decoder) (Update, error) {
	var u Update
	kind, err := d.u8()
	if err != nil {
		return u, err
	}
	u.Kind = UpdateKind(kind)
	switch u.Kind {
	case WireUpdateCell:
		if u.Row, err = d.u32(); err != nil {
			return u, err
		}
		if u.Col, err = d.u32(); err != nil {
			return u, err
		}
		if u.Seq, err = d.u64(); err != nil {
			return u, err
		}
		if u.Cell, err = d.u64(); err != nil {
			return u, err
		}
	case WireUpdateRow:
		if u.Row, err = d.u32(); err != nil {
			return u, err
		}
		if u.Seq, err = d.u64(); err != nil {
			return u, err
		}
		n, err := d.u32()
		if err != nil {
			return u, err
		}
		u.Cells = make([]uint64, n)
		for i := range u.Cells {
			if u.Cells[i], err = d.u64(); err != nil {
				return u, err
			}
		}
	case WireUpdateRect:
		if u.R0, err = d.u32(); err != nil {
			return u, err
		}
		if u.R1, err = d.u32(); err != nil {
			return u, err
		}
		if u.C0, err = d.u32(); err != nil {
			return u, err
		}
		if u.C1, err = d.u32(); err != nil {
			return u, err
		}
		if u.Seq, err = d.u64(); err != nil {
			return u, err
		}
		if u.Cell, err = d.u64(); err != nil {
			return u, err
		}
	case WireUpdateTrim:
		if u.TrimStart, err = d.u32(); err != nil {
			return u, err
		}
		if u.TrimCount, err = d.u32(); err != nil {
			return u, err
		}
		if u.Seq, err = d.u64(); err != nil {
			return u, err
		}
	case WireUpdateStyle:
		if u.StyleID, err = d.u32(); err != nil {
			return u, err
		}
		if u.Seq, err = d.u64(); err != nil {
			return u, err
		}
		if u.Fg, err = d.u32(); err != nil {
			return u, err
		}
		if u.Bg, err = d.u32(); err != nil {
			return u, err
		}
		if u.Attrs, err = d.u8(); err != nil {
			return u, err
		}
	case WireUpdateRowSeg:
		if u.Row, err = d.u32(); err != nil {
			return u, err
		}
		if u.StartCol, err = d.u32(); err != nil {
			return u, err
		}
		if u.Seq, err = d.u64(); err != nil {
			return u, err
		}
		n, err := d.u32()
		if err != nil {
			return u, err
		}
		u.Cells = make([]uint64, n)
		for i := range u.Cells {
			if u.Cells[i], err = d.u64(); err != nil {
				return u, err
			}
		}
	}
	return u, nil
}

// EncodedSize returns the exact byte length encodeUpdate would produce,
// used by the chunker to speculatively size a frame without re-encoding it.
func EncodedSize(u Update) int {
	n := 1 // kind
	switch u.Kind {
	case WireUpdateCell:
		n += 4 + 4 + 8 + 8
	case WireUpdateRow:
		n += 4 + 8 + 4 + 8*len(u.Cells)
	case WireUpdateRect:
		n += 4 + 4 + 4 + 4 + 8 + 8
	case WireUpdateTrim:
		n += 4 + 4 + 8
	case WireUpdateStyle:
		n += 4 + 8 + 4 + 4 + 1
	case WireUpdateRowSeg:
		n += 4 + 4 + 8 + 4 + 8*len(u.Cells)
	}
	return n
}

func encodeCursor(e *encoder, c Cursor) {
	e.u32(c.Row)
	e.u32(c.Col)
	e.u64(c.Seq)
	e.boolByte(c.Visible)
	e.boolByte(c.Blink)
}

func decodeCursor(d *decoder) (Cursor, error) {
	var c Cursor
	var err error
	if c.Row, err = d.u32(); err != nil {
		return c, err
	}
	if c.Col, err = d.u32(); err != nil {
		return c, err
	}
	if c.Seq, err = d.u64(); err != nil {
		return c, err
	}
	if c.Visible, err = d.boolByte(); err != nil {
		return c, err
	}
	if c.Blink, err = d.boolByte(); err != nil {
		return c, err
	}
	return c, nil
}

func encodeSyncConfig(e *encoder, cfg SyncConfig) {
	e.u32(uint32(len(cfg.LaneBudgets)))
	for _, b := range cfg.LaneBudgets {
		e.u8(uint8(b.Lane))
		e.u32(b.MaxUpdates)
	}
	e.u32(cfg.DeltaBudget)
	e.u64(cfg.HeartbeatMillis)
	e.u32(cfg.InitialSnapshotLines)
}

func decodeSyncConfig(d *decoder) (SyncConfig, error) {
	var cfg SyncConfig
	n, err := d.u32()
	if err != nil {
		return cfg, err
	}
	cfg.LaneBudgets = make([]LaneBudget, n)
	for i := range cfg.LaneBudgets {
		lane, err := d.u8()
		if err != nil {
			return cfg, err
		}
		max, err := d.u32()
		if err != nil {
			return cfg, err
		}
		cfg.LaneBudgets[i] = LaneBudget{Lane: Lane(lane), MaxUpdates: max}
	}
	if cfg.DeltaBudget, err = d.u32(); err != nil {
		return cfg, err
	}
	if cfg.HeartbeatMillis, err = d.u64(); err != nil {
		return cfg, err
	}
	if cfg.InitialSnapshotLines, err = d.u32(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
