package scoring

// Kind classifies a hit.
type Kind int

const (
	// Miss is a shot at a blank target.
	Miss Kind = iota
	// Friendly is a shot at the shooter's own colour.
	Friendly
	// Valid is a shot at the opposing colour.
	Valid
)

// String returns the log name of the kind.
func (k Kind) String() string {
	switch k {
	case Friendly:
		return "friendly_fire"
	case Valid:
		return "valid_hit"
	default:
		return "miss"
	}
}

// Outcome is the set of score deltas a hit produces.
//
// ShooterDelta is applied first; TeamDelta is then applied to every player
// on the shooter's team, shooter included. Each application is clamped
// independently with Clamp.
type Outcome struct {
	Kind         Kind
	ShooterDelta int
	TeamDelta    int
}

// Evaluate computes the outcome of a shooter on team own hitting colour hit with weapon w.
//
// Precondition: own is ColorRed or ColorBlue; w was returned by ParseWeapon.
// Postcondition: Miss yields zero deltas; Friendly yields the negated penalties;
// Valid yields the weapon's points for the shooter and no team delta.
func (r Rules) Evaluate(own, hit Color, w Weapon) Outcome {
	switch {
	case hit == ColorBlank:
		return Outcome{Kind: Miss}
	case hit == own:
		return Outcome{
			Kind:         Friendly,
			ShooterDelta: -r.FriendlyFire.ShooterPenalty,
			TeamDelta:    -r.FriendlyFire.TeamPenalty,
		}
	default:
		return Outcome{Kind: Valid, ShooterDelta: r.Weapons[w]}
	}
}

// Clamp applies delta to score with a floor of zero.
//
// Postcondition: Returns max(0, score+delta).
func Clamp(score, delta int) int {
	if s := score + delta; s > 0 {
		return s
	}
	return 0
}
