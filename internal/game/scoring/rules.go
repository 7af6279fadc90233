// Package scoring implements the hit-scoring policy: which deltas a detected
// colour and weapon produce for the shooter and the shooter's team.
package scoring

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Color is the colour a client's camera classifier reported for a shot.
type Color string

const (
	ColorRed   Color = "red"
	ColorBlue  Color = "blue"
	ColorBlank Color = "blank"
)

// Weapon identifies the weapon kind used for a shot.
type Weapon string

const (
	WeaponShoot   Weapon = "shoot"
	WeaponGrenade Weapon = "grenade"
	WeaponBazooka Weapon = "bazooka"
)

var (
	// ErrUnknownColor is returned for a colour outside {red, blue, blank}.
	ErrUnknownColor = errors.New("unknown color")
	// ErrUnknownWeapon is returned for a weapon the rules do not define.
	ErrUnknownWeapon = errors.New("unknown weapon")
)

// ParseColor validates a wire colour string.
//
// Postcondition: Returns one of the Color constants, or ErrUnknownColor.
func ParseColor(s string) (Color, error) {
	switch c := Color(s); c {
	case ColorRed, ColorBlue, ColorBlank:
		return c, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownColor, s)
	}
}

// FriendlyFire holds the penalties applied when a shooter hits their own colour.
type FriendlyFire struct {
	// ShooterPenalty is subtracted from the shooter.
	ShooterPenalty int `yaml:"shooter_penalty"`
	// TeamPenalty is subtracted from every player on the shooter's team, shooter included.
	TeamPenalty int `yaml:"team_penalty"`
}

// Rules is the scoring table.
type Rules struct {
	// Weapons maps a weapon kind to the points a valid hit awards the shooter.
	Weapons      map[Weapon]int `yaml:"weapons"`
	FriendlyFire FriendlyFire   `yaml:"friendly_fire"`
}

// DefaultRules returns the standard table: shoot=1, grenade=10, bazooka=3,
// friendly fire -5 for the shooter and -1 for each teammate.
func DefaultRules() Rules {
	return Rules{
		Weapons: map[Weapon]int{
			WeaponShoot:   1,
			WeaponGrenade: 10,
			WeaponBazooka: 3,
		},
		FriendlyFire: FriendlyFire{
			ShooterPenalty: 5,
			TeamPenalty:    1,
		},
	}
}

// Validate checks that the Rules satisfy their invariants.
//
// Postcondition: returns nil iff at least one weapon is defined and no value is negative.
func (r Rules) Validate() error {
	var errs []error
	if len(r.Weapons) == 0 {
		errs = append(errs, errors.New("at least one weapon must be defined"))
	}
	for _, w := range r.WeaponNames() {
		if w == "" {
			errs = append(errs, errors.New("weapon name must not be empty"))
		}
		if r.Weapons[w] < 0 {
			errs = append(errs, fmt.Errorf("weapon %q points must be >= 0, got %d", w, r.Weapons[w]))
		}
	}
	if r.FriendlyFire.ShooterPenalty < 0 {
		errs = append(errs, errors.New("friendly_fire.shooter_penalty must be >= 0"))
	}
	if r.FriendlyFire.TeamPenalty < 0 {
		errs = append(errs, errors.New("friendly_fire.team_penalty must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("scoring rules validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// WeaponNames returns the defined weapon kinds in sorted order.
func (r Rules) WeaponNames() []Weapon {
	names := make([]Weapon, 0, len(r.Weapons))
	for w := range r.Weapons {
		names = append(names, w)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ParseWeapon validates a wire weapon string against the rules.
//
// Postcondition: Returns the Weapon, or ErrUnknownWeapon.
func (r Rules) ParseWeapon(s string) (Weapon, error) {
	w := Weapon(s)
	if _, ok := r.Weapons[w]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownWeapon, s)
	}
	return w, nil
}

// LoadRules reads a YAML rules file and validates it. Weapons omitted from
// the file are not inherited from the defaults; an omitted friendly_fire
// block keeps the default penalties.
//
// Precondition: path is a readable file.
// Postcondition: returns valid Rules or a non-nil error.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("LoadRules: cannot read file %q: %w", path, err)
	}
	r := Rules{FriendlyFire: DefaultRules().FriendlyFire}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("LoadRules: cannot parse file %q: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("LoadRules: invalid rules in %q: %w", path, err)
	}
	return r, nil
}
