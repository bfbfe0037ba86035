package services

// XPPerLevel is the single divisor used for levels, progress bars and
// next-level targets.
const XPPerLevel int64 = 250

// LevelOf returns floor(xp / XPPerLevel) + 1. Negative xp counts as zero.
func LevelOf(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// XPFloorForLevel is the total XP at which level n starts.
func XPFloorForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(level-1) * XPPerLevel
}

// ProgressFraction is how far xp is through its current level, in [0, 1).
func ProgressFraction(xp int64) float64 {
	if xp < 0 {
		xp = 0
	}
	return float64(xp-XPFloorForLevel(LevelOf(xp))) / float64(XPPerLevel)
}

// NextLevelXP is the XP still missing to reach the next level.
func NextLevelXP(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	return XPFloorForLevel(LevelOf(xp)+1) - xp
}
