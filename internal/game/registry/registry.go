// Package registry builds units and buildings from named templates.
//
// Unit names follow "name" (tier 1) or "name.tier", with an optional "unit."
// prefix, e.g. "spearman", "spearman.2" and "unit.spearman.2" are all valid.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

//go:embed defaults.yaml
var defaultTemplates []byte

type yamlRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type yamlTier struct {
	HP      int       `yaml:"hp"`
	Attack  int       `yaml:"attack"`
	Defense int       `yaml:"defense"`
	Hit     int       `yaml:"hit"`
	Dodge   int       `yaml:"dodge"`
	Range   yamlRange `yaml:"range"`
}

type yamlUnit struct {
	Kind         string     `yaml:"kind"`
	Cost         int        `yaml:"cost"`
	MoveSpeed    int        `yaml:"move_speed"`
	UpgradeCosts []int      `yaml:"upgrade_costs"`
	Tiers        []yamlTier `yaml:"tiers"`
}

type yamlBuilding struct {
	RazeAfter int `yaml:"raze_after"`
}

type yamlFile struct {
	Units     map[string]yamlUnit     `yaml:"units"`
	Buildings map[string]yamlBuilding `yaml:"buildings"`
}

type unitEntry struct {
	cost         int
	upgradeCosts []int
	tiers        []*core.Unit // index 0 is tier 1
}

// Registry is immutable after construction and safe to share between battles.
type Registry struct {
	units     map[string]*unitEntry
	buildings map[string]int
}

// Default returns the registry built from the embedded templates.
func Default() *Registry {
	r, err := Parse(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("registry: embedded templates: %v", err))
	}
	return r
}

// Load reads templates from path. An empty path yields Default().
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	r := &Registry{
		units:     make(map[string]*unitEntry, len(f.Units)),
		buildings: make(map[string]int, len(f.Buildings)),
	}
	for name, yu := range f.Units {
		e, err := buildEntry(name, yu)
		if err != nil {
			return nil, err
		}
		r.units[name] = e
	}
	for name, yb := range f.Buildings {
		if yb.RazeAfter < 0 {
			return nil, fmt.Errorf("building %q: raze_after must not be negative", name)
		}
		r.buildings[name] = yb.RazeAfter
	}
	return r, nil
}

func buildEntry(name string, yu yamlUnit) (*unitEntry, error) {
	if strings.Contains(name, ".") {
		return nil, fmt.Errorf("unit %q: names must not contain '.'", name)
	}
	if yu.MoveSpeed <= 0 {
		return nil, fmt.Errorf("unit %q: move_speed must be positive", name)
	}
	e := &unitEntry{cost: yu.Cost, upgradeCosts: yu.UpgradeCosts}

	switch yu.Kind {
	case "builder":
		e.tiers = []*core.Unit{core.NewBuilder(name, 0, yu.MoveSpeed)}
	case "soldier", "":
		if len(yu.Tiers) == 0 {
			return nil, fmt.Errorf("unit %q: soldiers need at least one tier", name)
		}
		if len(yu.UpgradeCosts) > len(yu.Tiers)-1 {
			return nil, fmt.Errorf("unit %q: %d upgrade costs for %d tiers", name, len(yu.UpgradeCosts), len(yu.Tiers))
		}
		for i, t := range yu.Tiers {
			if t.HP <= 0 {
				return nil, fmt.Errorf("unit %q tier %d: hp must be positive", name, i+1)
			}
			if t.Range.Max < t.Range.Min {
				return nil, fmt.Errorf("unit %q tier %d: range max below min", name, i+1)
			}
			stats := core.CombatStats{
				MaxHP:   t.HP,
				Attack:  t.Attack,
				Defense: t.Defense,
				Hit:     t.Hit,
				Dodge:   t.Dodge,
				Range:   core.Range{Min: t.Range.Min, Max: t.Range.Max},
			}
			e.tiers = append(e.tiers, core.NewSoldier(name, 0, i+1, yu.MoveSpeed, stats))
		}
	default:
		return nil, fmt.Errorf("unit %q: unknown kind %q", name, yu.Kind)
	}
	return e, nil
}

// ParseName splits "unit.spearman.2" into ("spearman", 2).
func ParseName(full string) (string, int, error) {
	name := strings.TrimPrefix(full, "unit.")
	base, tierStr, found := strings.Cut(name, ".")
	if !found {
		return base, 1, nil
	}
	tier, err := strconv.Atoi(tierStr)
	if err != nil || tier < 1 {
		return "", 0, fmt.Errorf("%w: bad tier in %q", core.ErrUnknownUnit, full)
	}
	return base, tier, nil
}

// Get stamps a fresh unit for owner from the named template.
func (r *Registry) Get(name string, owner core.PlayerID) (*core.Unit, error) {
	base, tier, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	e, ok := r.units[base]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownUnit, name)
	}
	if tier > len(e.tiers) {
		return nil, fmt.Errorf("%w: %q has %d tiers", core.ErrUnknownUnit, base, len(e.tiers))
	}
	return e.tiers[tier-1].Copy(owner), nil
}

// Cost is the recruitment cost, shared by every tier.
func (r *Registry) Cost(name string) (int, error) {
	base, _, err := ParseName(name)
	if err != nil {
		return 0, err
	}
	e, ok := r.units[base]
	if !ok {
		return 0, fmt.Errorf("%w: %q", core.ErrUnknownUnit, name)
	}
	return e.cost, nil
}

// UpgradeCost is the price of going from tier to tier+1.
func (r *Registry) UpgradeCost(name string, tier int) (int, error) {
	base, _, err := ParseName(name)
	if err != nil {
		return 0, err
	}
	e, ok := r.units[base]
	if !ok {
		return 0, fmt.Errorf("%w: %q", core.ErrUnknownUnit, name)
	}
	if tier < 1 || tier > len(e.upgradeCosts) {
		return 0, fmt.Errorf("%w: %q has no upgrade from tier %d", core.ErrUnknownUnit, base, tier)
	}
	return e.upgradeCosts[tier-1], nil
}

func (r *Registry) Tiers(name string) int {
	base, _, err := ParseName(name)
	if err != nil {
		return 0
	}
	if e, ok := r.units[base]; ok {
		return len(e.tiers)
	}
	return 0
}

// Names lists unit base names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.units))
	for n := range r.units {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// RazeTime is the number of seized turns a building survives. Unknown
// buildings fall back to zero, meaning they fall on the first counted turn.
func (r *Registry) RazeTime(building string) int {
	return r.buildings[strings.TrimPrefix(building, "building.")]
}

// NewBuilding creates a building with its registry raze time.
func (r *Registry) NewBuilding(typeID string, owner core.PlayerID, pos core.Coordinate) *core.Building {
	return core.NewBuilding(typeID, owner, pos, r.RazeTime(typeID))
}
