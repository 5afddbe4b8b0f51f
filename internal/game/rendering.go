package game

import (
	"fmt"
	"strings"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

// ANSI color codes for text rendering.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorGray   = "\033[90m"

	BgGreen = "\033[42m"
	BgRed   = "\033[41m"
)

var namedColors = map[string]string{
	"red":    ColorRed,
	"green":  ColorGreen,
	"yellow": ColorYellow,
	"blue":   ColorBlue,
	"purple": ColorPurple,
	"cyan":   ColorCyan,
}

// fallbackColors is used for players without a known ColorName.
var fallbackColors = []string{ColorRed, ColorBlue}

var terrainSymbols = map[core.Terrain]string{
	core.TerrainPlains:         "·",
	core.TerrainForest:         "♣",
	core.TerrainSwamp:          "~",
	core.TerrainMountain:       "▲",
	core.TerrainLake:           "≈",
	core.TerrainDesert:         ":",
	core.TerrainDesertMountain: "△",
	core.TerrainTundra:         "*",
	core.TerrainTundraMountain: "^",
}

var arrowSymbols = map[core.Arrow]string{
	core.ArrowNorth: "↑",
	core.ArrowEast:  "→",
	core.ArrowSouth: "↓",
	core.ArrowWest:  "←",
	core.ArrowEnd:   "•",
}

func (b *Battle) playerColor(id core.PlayerID) string {
	for i, p := range b.players {
		if p.ID != id {
			continue
		}
		if c, ok := namedColors[strings.ToLower(p.ColorName)]; ok {
			return c
		}
		return fallbackColors[i%len(fallbackColors)]
	}
	return ColorWhite
}

// Render draws the field with ANSI colors. Units show their type initial in
// the owner's color, upper case for soldiers and lower case for builders.
// Overlays are drawn as background colors.
func (b *Battle) Render() string {
	g := b.grid
	var sb strings.Builder
	sb.Grow((g.W*16 + 8) * (g.H + 4))

	sb.WriteString("    ")
	for x := 0; x < g.W; x++ {
		fmt.Fprintf(&sb, "%2d", x)
	}
	sb.WriteString("\n")

	for y := 0; y < g.H; y++ {
		fmt.Fprintf(&sb, "%2d  ", y)
		for x := 0; x < g.W; x++ {
			t, _ := g.Get(core.Coordinate{X: x, Y: y})
			b.writeTile(&sb, t)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\nround %d, %s to act\n", b.round, b.players[b.active].Name)
	sb.WriteString("·=plains ♣=forest ~=swamp ▲=mountain ≈=lake ⌂=building, green=walk red=attack\n")
	return sb.String()
}

func (b *Battle) writeTile(sb *strings.Builder, t *core.Tile) {
	switch {
	case t.OverlayAttack:
		sb.WriteString(BgRed)
	case t.OverlayWalk:
		sb.WriteString(BgGreen)
	}

	sb.WriteString(" ")
	switch u := b.grid.Unit(t.Occupant); {
	case u != nil:
		sb.WriteString(b.playerColor(u.Owner))
		letter := "?"
		if u.TypeID != "" {
			letter = u.TypeID[:1]
		}
		if u.IsSoldier() {
			letter = strings.ToUpper(letter)
		}
		sb.WriteString(letter)
	case t.Arrow != core.ArrowNone:
		sb.WriteString(ColorWhite)
		sb.WriteString(arrowSymbols[t.Arrow])
	case t.Building != nil:
		sb.WriteString(b.playerColor(t.Building.Owner))
		sb.WriteString("⌂")
	default:
		sb.WriteString(ColorGray)
		symbol, ok := terrainSymbols[t.Terrain]
		if !ok {
			symbol = "?"
		}
		if t.Hills && t.Terrain == core.TerrainPlains {
			symbol = "n"
		}
		sb.WriteString(symbol)
	}
	sb.WriteString(ColorReset)
}
