package chunk

import (
	"github.com/hearthvox/hearth/server/block/cube"
)

// Decode decodes a payload produced by Encode (of the current or any older
// supported schema version) back into a Column. The air runtime ID passed is
// used for any section bookkeeping; it must match the registry the payload's
// block states are resolved against.
//
// Payloads declaring a schema version newer than CurrentVersion fail with
// UnsupportedVersionError. Payloads that cannot be parsed fail with
// MalformedError.
func Decode(b []byte, air uint32) (*Column, error) {
	payload, err := decompress(b)
	if err != nil {
		return nil, err
	}
	r := &reader{b: payload}

	version := r.byte()
	if r.err != nil {
		return nil, malformed("payload too short for version byte")
	}
	if version > CurrentVersion {
		return nil, UnsupportedVersionError{Version: version}
	}
	decode, ok := decoders[version]
	if !ok {
		return nil, malformed("invalid schema version %v", version)
	}
	col, err := decode(r, air)
	if err != nil {
		return nil, err
	}
	// Run the migration chain from the decoded version up to the current one.
	for v := version; v < CurrentVersion; v++ {
		if m := migrations[v]; m != nil {
			m(col)
		}
	}
	return col, nil
}

// decoders holds one layout parser per supported schema version.
var decoders = map[byte]func(r *reader, air uint32) (*Column, error){
	1: decodeV1,
	2: decodeV2,
}

// migrations transform a column decoded as version v into its version v+1
// equivalent.
var migrations = map[byte]func(col *Column){
	// Version 1 predates generation statuses and persisted scheduled ticks.
	// Columns saved by it were always complete.
	1: func(col *Column) {
		col.Status = StatusFull
	},
}

// decodeV2 parses the current column layout.
func decodeV2(r *reader, air uint32) (*Column, error) {
	col, err := decodeShared(r, air, true)
	if err != nil {
		return nil, err
	}
	n := int(r.varuint())
	for i := 0; i < n && r.err == nil; i++ {
		pos := cube.Pos{int(r.varint()), int(r.varint()), int(r.varint())}
		rid, err := readBlockState(r)
		if err != nil {
			return nil, err
		}
		col.Ticks = append(col.Ticks, ScheduledTick{Pos: pos, Block: rid, Tick: r.varint()})
	}
	if r.err != nil {
		return nil, MalformedError{Reason: "scheduled ticks", Err: r.err}
	}
	return col, nil
}

// decodeV1 parses the legacy layout: no generation status and no scheduled
// ticks.
func decodeV1(r *reader, air uint32) (*Column, error) {
	return decodeShared(r, air, false)
}

// decodeShared parses the layout parts common to all versions: range,
// sections, block entities and entities.
func decodeShared(r *reader, air uint32, status bool) (*Column, error) {
	min, max := int(r.varint()), int(r.varint())
	if r.err != nil || max < min || (max-min+1)%16 != 0 {
		return nil, malformed("invalid column range [%v, %v]", min, max)
	}
	ra := cube.Range{min, max}
	c := New(air, ra)

	var st Status
	if status {
		st = Status(r.byte())
		if st > StatusFull {
			return nil, malformed("invalid generation status %v", st)
		}
	}

	for i := range c.sub {
		blocks, err := readBlockStorage(r)
		if err != nil {
			return nil, err
		}
		biomes, err := readBiomeStorage(r)
		if err != nil {
			return nil, err
		}
		sub := c.sub[i]
		sub.blocks, sub.biomes = blocks, biomes
		if err := readLight(r, sub); err != nil {
			return nil, err
		}
	}
	c.recalculateHeightMap = true

	col := NewColumn(c)
	col.Status = st

	n := int(r.varuint())
	for i := 0; i < n && r.err == nil; i++ {
		pos := cube.Pos{int(r.varint()), int(r.varint()), int(r.varint())}
		kind := r.str()
		data, err := readMap(r)
		if err != nil {
			return nil, err
		}
		col.BlockEntities = append(col.BlockEntities, BlockEntity{Pos: pos, Kind: kind, Data: data})
	}
	if r.err != nil {
		return nil, MalformedError{Reason: "block entities", Err: r.err}
	}

	n = int(r.varuint())
	for i := 0; i < n && r.err == nil; i++ {
		var ent Entity
		copy(ent.ID[:], r.bytes(16))
		ent.Kind = r.str()
		for j := 0; j < 3; j++ {
			ent.Pos[j] = r.float64()
		}
		data, err := readMap(r)
		if err != nil {
			return nil, err
		}
		ent.Data = data
		col.Entities = append(col.Entities, ent)
	}
	if r.err != nil {
		return nil, MalformedError{Reason: "entities", Err: r.err}
	}
	return col, nil
}
