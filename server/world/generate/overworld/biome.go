package overworld

// biome is one of the closed set of overworld biomes. The value doubles as
// the biome ID written to the chunk's biome storage.
type biome uint32

const (
	biomeOcean biome = iota
	biomeRiver
	biomePlains
	biomeDesert
	biomeForest
	biomeMountains
	biomeSnowy
)

// elevation returns the terrain height band of the biome.
func (b biome) elevation() (lower, upper int) {
	switch b {
	case biomeOcean:
		return 36, 56
	case biomeRiver:
		return 54, 60
	case biomeDesert:
		return 63, 74
	case biomeForest:
		return 63, 82
	case biomeMountains:
		return 72, 126
	case biomeSnowy:
		return 63, 86
	default:
		return 63, 74
	}
}

// cover returns the blocks replacing the top layers of stone terrain, top
// block first.
func (b biome) cover(t *terrain, aboveWater bool) []uint32 {
	if !aboveWater {
		switch b {
		case biomeDesert:
			return []uint32{t.rids.sand, t.rids.sand, t.rids.sand}
		default:
			return []uint32{t.rids.gravel, t.rids.gravel}
		}
	}
	switch b {
	case biomeDesert:
		return []uint32{t.rids.sand, t.rids.sand, t.rids.sand, t.rids.sand}
	case biomeSnowy:
		return []uint32{t.rids.snow, t.rids.dirt, t.rids.dirt}
	case biomeMountains:
		return nil
	default:
		return []uint32{t.rids.grass, t.rids.dirt, t.rids.dirt, t.rids.dirt}
	}
}

// trees returns the amount of tree placement attempts per column.
func (b biome) trees() int {
	switch b {
	case biomeForest:
		return 6
	case biomePlains, biomeSnowy:
		return 1
	default:
		return 0
	}
}

// grassPatches returns the amount of tall grass placement attempts.
func (b biome) grassPatches() int {
	switch b {
	case biomePlains:
		return 12
	case biomeForest:
		return 6
	default:
		return 0
	}
}
