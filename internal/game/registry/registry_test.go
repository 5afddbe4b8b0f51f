package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

func TestDefault(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{"archer", "builder", "horse", "spearman", "swordsman"}, r.Names())
	assert.Equal(t, 3, r.Tiers("spearman"))
	assert.Equal(t, 3, r.RazeTime("town"))
	assert.Equal(t, 3, r.RazeTime("building.town"))
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in      string
		base    string
		tier    int
		wantErr bool
	}{
		{"spearman", "spearman", 1, false},
		{"spearman.2", "spearman", 2, false},
		{"unit.archer.1", "archer", 1, false},
		{"spearman.x", "", 0, true},
		{"spearman.0", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			base, tier, err := ParseName(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrUnknownUnit)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.tier, tier)
		})
	}
}

func TestGet(t *testing.T) {
	r := Default()

	u, err := r.Get("spearman.2", 7)
	require.NoError(t, err)
	assert.Equal(t, core.PlayerID(7), u.Owner)
	assert.Equal(t, 2, u.Tier)
	assert.Equal(t, 15, u.HP)
	assert.Equal(t, 3, u.MovesLeft)
	assert.True(t, u.IsSoldier())
	assert.Equal(t, core.InvalidCoordinate, u.Pos)

	other, err := r.Get("spearman.2", 7)
	require.NoError(t, err)
	assert.NotSame(t, u, other, "every Get stamps a fresh unit")
	u.HP = 1
	assert.Equal(t, 15, other.HP)

	b, err := r.Get("builder", 1)
	require.NoError(t, err)
	assert.Equal(t, core.KindBuilder, b.Kind)
	assert.Equal(t, 2, b.MoveSpeed)
	assert.False(t, b.CanAttack())

	_, err = r.Get("dragon", 1)
	assert.ErrorIs(t, err, core.ErrUnknownUnit)
	_, err = r.Get("horse.2", 1)
	assert.ErrorIs(t, err, core.ErrUnknownUnit)
}

func TestCosts(t *testing.T) {
	r := Default()

	cost, err := r.Cost("archer.2")
	require.NoError(t, err)
	assert.Equal(t, 12, cost)

	up, err := r.UpgradeCost("spearman", 2)
	require.NoError(t, err)
	assert.Equal(t, 30, up)

	_, err = r.UpgradeCost("spearman", 3)
	assert.ErrorIs(t, err, core.ErrUnknownUnit)
	_, err = r.Cost("dragon")
	assert.ErrorIs(t, err, core.ErrUnknownUnit)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "units: ["},
		{"no tiers", "units:\n  a: {kind: soldier, move_speed: 2}"},
		{"zero speed", "units:\n  a: {kind: builder}"},
		{"unknown kind", "units:\n  a: {kind: wizard, move_speed: 2}"},
		{"dotted name", "units:\n  a.b: {kind: builder, move_speed: 2}"},
		{"inverted range", "units:\n  a: {move_speed: 2, tiers: [{hp: 1, range: {min: 3, max: 1}}]}"},
		{"too many upgrades", "units:\n  a: {move_speed: 2, upgrade_costs: [1], tiers: [{hp: 1}]}"},
		{"negative raze", "buildings:\n  town: {raze_after: -1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, r.Names())

	path := filepath.Join(t.TempDir(), "units.yaml")
	data := "units:\n  pikeman:\n    move_speed: 2\n    cost: 3\n    tiers:\n      - {hp: 4, attack: 2, range: {min: 1, max: 1}}\nbuildings:\n  fort: {raze_after: 5}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	r, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"pikeman"}, r.Names())
	b := r.NewBuilding("fort", 2, core.Coordinate{X: 1, Y: 1})
	assert.Equal(t, 5, b.RazeAfter)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
