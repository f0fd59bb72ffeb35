package coord

// Stage is where a build currently is.
type Stage int

const (
	StageIdle Stage = iota
	StageCollecting
	StageNormalizing
	StageFiltering
	StageScoring
	StageWindowing
	StageDiversifying
	StageCommitting
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageCollecting:
		return "collecting"
	case StageNormalizing:
		return "normalizing"
	case StageFiltering:
		return "filtering"
	case StageScoring:
		return "scoring"
	case StageWindowing:
		return "windowing"
	case StageDiversifying:
		return "diversifying"
	case StageCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// MarshalText renders the stage name in JSON.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
