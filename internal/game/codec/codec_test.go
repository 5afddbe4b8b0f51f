package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/registry"
)

var testPlayers = []core.Player{
	{ID: 1, Name: "red"},
	{ID: 2, Name: "blue"},
}

func newCodec() *Codec {
	return New(registry.Default(), testPlayers)
}

func TestTileRoundTrip(t *testing.T) {
	for _, terrain := range core.AllTerrains() {
		for _, hills := range []bool{false, true} {
			tile := core.Tile{Terrain: terrain, Hills: hills}
			b := EncodeTile(tile)
			assert.Equal(t, hills, b&0x80 != 0)

			got, err := DecodeTile(b)
			require.NoError(t, err)
			assert.Equal(t, tile, got, "%s hills=%v", terrain, hills)
		}
	}

	_, err := DecodeTile(0x7f)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestUnitRoundTrip(t *testing.T) {
	reg := registry.Default()
	c := newCodec()

	soldier, err := reg.Get("spearman.2", 1)
	require.NoError(t, err)
	soldier.Pos = core.Coordinate{X: 3, Y: 4}
	soldier.Target = core.Coordinate{X: 5, Y: 0}
	soldier.MovesLeft = 1
	soldier.HP = 7
	soldier.HasAttacked = true

	builder, err := reg.Get("builder", 2)
	require.NoError(t, err)
	builder.Pos = core.Coordinate{X: 0, Y: 1}

	corpse, err := reg.Get("archer", 2)
	require.NoError(t, err)
	corpse.Pos = core.Coordinate{X: 2, Y: 2}
	corpse.TakeDamage(corpse.HP)

	for _, u := range []*core.Unit{soldier, builder, corpse} {
		t.Run(u.TypeID, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, c.EncodeUnit(&buf, u))
			got, err := c.DecodeUnit(&buf)
			require.NoError(t, err)
			assert.Equal(t, u, got)
		})
	}
}

func TestUnitLayout(t *testing.T) {
	u := core.NewBuilder("builder", 1, 2)
	u.Pos = core.Coordinate{X: 1, Y: -1}

	var buf bytes.Buffer
	require.NoError(t, newCodec().EncodeUnit(&buf, u))
	want := []byte{
		0x01, 0x00, 0xff, 0xff, // x, y
		0x03, 'r', 'e', 'd',
		0x07, 'b', 'u', 'i', 'l', 'd', 'e', 'r',
		0x02, 0x00, // moves left
		0xff, 0xff, 0xff, 0xff, // no target
		0x00, 0x00, // hp
		0x00, 0x00, // flags
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestBuildingRoundTrip(t *testing.T) {
	c := newCodec()
	b := registry.Default().NewBuilding("town", 2, core.Coordinate{X: 6, Y: 1})
	b.TurnsSeized = 2

	var buf bytes.Buffer
	require.NoError(t, c.EncodeBuilding(&buf, b))
	got, err := c.DecodeBuilding(&buf)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestEncodeErrors(t *testing.T) {
	c := newCodec()
	var buf bytes.Buffer

	stranger := core.NewBuilder("builder", 9, 2)
	assert.ErrorIs(t, c.EncodeUnit(&buf, stranger), core.ErrUnknownPlayer)

	huge := core.NewBuilder("builder", 1, 2)
	huge.HP = 40000
	assert.ErrorIs(t, c.EncodeUnit(&buf, huge), ErrValueTooLarge)
}

func TestDecodeErrors(t *testing.T) {
	c := newCodec()

	var buf bytes.Buffer
	require.NoError(t, c.EncodeUnit(&buf, core.NewBuilder("builder", 1, 2)))
	full := buf.Bytes()

	_, err := c.DecodeUnit(bytes.NewReader(full[:len(full)-3]))
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = New(registry.Default(), testPlayers[1:]).DecodeUnit(bytes.NewReader(full))
	assert.ErrorIs(t, err, core.ErrUnknownPlayer)

	_, err = c.UnmarshalGrid([]byte{0, 0, 0, 0}, nil)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestGridRoundTrip(t *testing.T) {
	reg := registry.Default()
	c := newCodec()

	g := core.NewGrid(4, 3, nil)
	require.NoError(t, g.Set(core.Coordinate{X: 1, Y: 0}, core.Tile{Terrain: core.TerrainForest, Hills: true}))
	require.NoError(t, g.Set(core.Coordinate{X: 3, Y: 2}, core.Tile{Terrain: core.TerrainTundraMountain}))
	require.NoError(t, g.Set(core.Coordinate{X: 2, Y: 1}, core.Tile{Building: reg.NewBuilding("mine", 1, core.Coordinate{})}))

	for i, spec := range []struct {
		name  string
		owner core.PlayerID
		at    core.Coordinate
	}{
		{"spearman", 1, core.Coordinate{X: 0, Y: 0}},
		{"archer.2", 2, core.Coordinate{X: 3, Y: 1}},
		{"builder", 1, core.Coordinate{X: 2, Y: 1}},
	} {
		u, err := reg.Get(spec.name, spec.owner)
		require.NoError(t, err, i)
		require.True(t, g.SetUnit(spec.at, u))
	}

	data, err := c.MarshalGrid(g)
	require.NoError(t, err)

	got, err := c.UnmarshalGrid(data, nil)
	require.NoError(t, err)
	require.NoError(t, got.CheckConsistency())

	assert.Equal(t, g.W, got.W)
	assert.Equal(t, g.H, got.H)
	g.ForEach(func(want *core.Tile, x, y int) {
		tile, err := got.Get(core.Coordinate{X: x, Y: y})
		require.NoError(t, err)
		assert.Equal(t, *want, *tile)
	})
	assert.Equal(t, g.Units(), got.Units())

	again, err := c.MarshalGrid(got)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestDecodeSequential(t *testing.T) {
	reg := registry.Default()
	c := newCodec()

	first, err := reg.Get("spearman", 1)
	require.NoError(t, err)
	first.Pos = core.Coordinate{X: 1, Y: 2}
	second, err := reg.Get("archer", 2)
	require.NoError(t, err)
	second.Pos = core.Coordinate{X: 5, Y: 6}
	b := reg.NewBuilding("town", 1, core.Coordinate{X: 3, Y: 3})

	var buf bytes.Buffer
	require.NoError(t, c.EncodeUnit(&buf, first))
	require.NoError(t, c.EncodeUnit(&buf, second))
	require.NoError(t, c.EncodeBuilding(&buf, b))

	r := bytes.NewReader(buf.Bytes())
	got, err := c.DecodeUnit(r)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = c.DecodeUnit(r)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	gotB, err := c.DecodeBuilding(r)
	require.NoError(t, err)
	assert.Equal(t, b, gotB)
	assert.Equal(t, 0, r.Len())
}
