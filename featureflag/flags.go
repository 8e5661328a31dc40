package featureflag

type Flag string

const (
	// Path searches use an admissible heuristic and return shortest routes.
	FlagAdmissibleHeuristic Flag = "ADMISSIBLE_HEURISTIC"

	// Stream clients are not notified when the floor plan gains a cell.
	FlagDisableMapUpdateBroadcast Flag = "DISABLE_MAP_UPDATE_BROADCAST"
)

var knownFlags = map[Flag]struct{}{
	FlagAdmissibleHeuristic:       {},
	FlagDisableMapUpdateBroadcast: {},
}
