package pathfind

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kasuganosora/gridpath/game/grid"
)

var (
	ErrNotReady         = errors.New("pathfind: no grid bound")
	ErrOutOfBounds      = errors.New("pathfind: coordinate outside grid")
	ErrNonPositiveSpeed = errors.New("pathfind: agent speed must be positive")
	ErrNilCallback      = errors.New("pathfind: request has no completion callback")
	ErrNilGrid          = errors.New("pathfind: nil grid")
	ErrUnknownProfile   = errors.New("pathfind: unknown profile")
)

// Profile is the movement profile of the requesting agent. Speed scales the
// terrain multiplier of every tile entered: higher is slower.
type Profile struct {
	Name  string  `json:"name"`
	Speed float64 `json:"speed"`
}

// Unit presets. Speed is the number of game ticks a unit needs to cross a grass tile.
var (
	Villager = Profile{Name: "villager", Speed: 5}
	Warrior  = Profile{Name: "warrior", Speed: 4}
)

// ProfileByName returns a preset profile.
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case Villager.Name:
		return Villager, true
	case Warrior.Name:
		return Warrior, true
	}
	return Profile{}, false
}

// ResolveProfile picks a preset by name, optionally overriding its speed.
// An unknown name needs an explicit speed. Both empty selects Villager.
func ResolveProfile(name string, speed float64) (Profile, error) {
	if name == "" && speed == 0 {
		return Villager, nil
	}
	p, ok := ProfileByName(name)
	switch {
	case ok && speed != 0:
		p.Speed = speed
	case !ok && speed == 0:
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	case !ok:
		p = Profile{Name: name, Speed: speed}
	}
	return p, nil
}

func (p Profile) validate() error {
	if math.IsNaN(p.Speed) || math.IsInf(p.Speed, 0) || p.Speed <= 0 {
		return ErrNonPositiveSpeed
	}
	return nil
}

// Request asks for a path from Start to Goal. It must not be changed after Submit.
type Request struct {
	ID         string
	Profile    Profile
	Start      grid.Point
	Goal       grid.Point
	OnComplete func(Result)
	EnqueuedAt time.Time
}

// Handle identifies an accepted request.
type Handle struct {
	ID string
}

// Result is delivered exactly once per accepted request unless the request is
// withdrawn by a rebind. Found=false with an empty Path means the open set
// was exhausted.
type Result struct {
	RequestID string
	Path      []grid.Point
	Cost      float64
	Found     bool
	Expanded  int
	Slices    int
	Elapsed   time.Duration
}

// Steps is the number of moves along the path.
func (r Result) Steps() int {
	if len(r.Path) == 0 {
		return 0
	}
	return len(r.Path) - 1
}
