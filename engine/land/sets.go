package land

// TerrainSet selects which texture family the map uses. Textures are not
// reusable across sets, so changing it invalidates every texture cache.
type TerrainSet uint8

const (
	SetGreen TerrainSet = iota
	SetWasteland
	SetWinter
)

func (s TerrainSet) String() string {
	switch s {
	case SetGreen:
		return "green"
	case SetWasteland:
		return "wasteland"
	case SetWinter:
		return "winter"
	}
	return "unknown"
}

// Season selects the seasonal variant within a terrain set.
type Season uint8

const (
	SeasonSpring Season = iota
	SeasonSummer
	SeasonAutumn
	SeasonWinter
)

func (s Season) String() string {
	switch s {
	case SeasonSpring:
		return "spring"
	case SeasonSummer:
		return "summer"
	case SeasonAutumn:
		return "autumn"
	case SeasonWinter:
		return "winter"
	}
	return "unknown"
}
