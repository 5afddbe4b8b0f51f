// Package codec reads and writes the persisted battle layout.
//
// All integers are little-endian. Strings are a uvarint byte length followed
// by the bytes. Layouts:
//
//	tile:     1 byte, terrain in the low 7 bits, 0x80 set for hills
//	unit:     x int16, y int16, owner string, type string, movesLeft int16,
//	          targetX int16, targetY int16, hp int16, flags int16
//	building: x int16, y int16, owner string, type string, turnsSeized int16
//	field:    width int16, height int16, tiles, unit count uint16, units,
//	          building count uint16, buildings
package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

const hillsBit = 0x80

const (
	flagAttacked int16 = 1 << iota
	flagDead
)

// maxString guards decoders against absurd length prefixes.
const maxString = 1 << 10

var (
	ErrCorrupt       = errors.New("corrupt battle data")
	ErrValueTooLarge = errors.New("value does not fit in 16 bits")
)

// UnitFactory stamps units by registry name. *registry.Registry satisfies it.
type UnitFactory interface {
	Get(name string, owner core.PlayerID) (*core.Unit, error)
	RazeTime(building string) int
}

// Codec resolves owner names and unit types while decoding.
type Codec struct {
	units   UnitFactory
	players []core.Player
}

func New(units UnitFactory, players []core.Player) *Codec {
	return &Codec{units: units, players: players}
}

func (c *Codec) ownerName(id core.PlayerID) (string, error) {
	for _, p := range c.players {
		if p.ID == id {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%w: id %d", core.ErrUnknownPlayer, id)
}

func (c *Codec) ownerID(name string) (core.PlayerID, error) {
	for _, p := range c.players {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownPlayer, name)
}

// EncodeTile packs terrain and hills into one byte.
func EncodeTile(t core.Tile) byte {
	b := byte(t.Terrain) &^ hillsBit
	if t.Hills {
		b |= hillsBit
	}
	return b
}

func DecodeTile(b byte) (core.Tile, error) {
	terrain := core.Terrain(b &^ hillsBit)
	if !terrain.Valid() {
		return core.Tile{}, fmt.Errorf("%w: terrain %d", ErrCorrupt, terrain)
	}
	return core.Tile{Terrain: terrain, Hills: b&hillsBit != 0}, nil
}

// writer accumulates the first error so encoders read straight through.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) int16(v int) {
	if w.err != nil {
		return
	}
	if v < math.MinInt16 || v > math.MaxInt16 {
		w.err = fmt.Errorf("%w: %d", ErrValueTooLarge, v)
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, int16(v))
}

func (w *writer) uint16(v int) {
	if w.err != nil {
		return
	}
	if v < 0 || v > math.MaxUint16 {
		w.err = fmt.Errorf("%w: %d", ErrValueTooLarge, v)
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, uint16(v))
}

func (w *writer) byte(b byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write([]byte{b})
}

func (w *writer) string(s string) {
	if w.err != nil {
		return
	}
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(s)))
	if _, w.err = w.w.Write(buf[:n]); w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

// byteReader sources are read without extra buffering, so the stream is left
// positioned just after the record.
type byteReader interface {
	io.Reader
	io.ByteReader
}

type reader struct {
	r   byteReader
	err error
}

func newReader(r io.Reader) *reader {
	if br, ok := r.(byteReader); ok {
		return &reader{r: br}
	}
	return &reader{r: bufio.NewReader(r)}
}

func (r *reader) fail(err error) {
	if r.err != nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: truncated", ErrCorrupt)
	}
	r.err = err
}

func (r *reader) int16() int {
	if r.err != nil {
		return 0
	}
	var v int16
	if err := binary.Read(r.r, binary.LittleEndian, &v); err != nil {
		r.fail(err)
	}
	return int(v)
}

func (r *reader) uint16() int {
	if r.err != nil {
		return 0
	}
	var v uint16
	if err := binary.Read(r.r, binary.LittleEndian, &v); err != nil {
		r.fail(err)
	}
	return int(v)
}

func (r *reader) byte() byte {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail(err)
	}
	return b
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	n, err := binary.ReadUvarint(r.r)
	if err != nil {
		r.fail(err)
		return ""
	}
	if n > maxString {
		r.fail(fmt.Errorf("%w: string length %d", ErrCorrupt, n))
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.fail(err)
		return ""
	}
	return string(buf)
}

// typeName is the registry name for a unit, tier included.
func typeName(u *core.Unit) string {
	if u.Tier <= 1 {
		return u.TypeID
	}
	return u.TypeID + "." + strconv.Itoa(u.Tier)
}

func (c *Codec) EncodeUnit(w io.Writer, u *core.Unit) error {
	owner, err := c.ownerName(u.Owner)
	if err != nil {
		return err
	}
	var flags int16
	if u.HasAttacked {
		flags |= flagAttacked
	}
	if u.Dead {
		flags |= flagDead
	}
	bw := &writer{w: w}
	bw.int16(u.Pos.X)
	bw.int16(u.Pos.Y)
	bw.string(owner)
	bw.string(typeName(u))
	bw.int16(u.MovesLeft)
	bw.int16(u.Target.X)
	bw.int16(u.Target.Y)
	bw.int16(u.HP)
	bw.int16(int(flags))
	return bw.err
}

// DecodeUnit returns an unplaced unit (ID zero) whose Pos holds the stored
// position. A reader without ReadByte is buffered and may be read past the
// record; pass a bytes.Reader or bufio.Reader to decode records in sequence.
func (c *Codec) DecodeUnit(r io.Reader) (*core.Unit, error) {
	return c.decodeUnit(newReader(r))
}

func (c *Codec) decodeUnit(br *reader) (*core.Unit, error) {
	x, y := br.int16(), br.int16()
	ownerName := br.string()
	typ := br.string()
	moves := br.int16()
	tx, ty := br.int16(), br.int16()
	hp := br.int16()
	flags := int16(br.int16())
	if br.err != nil {
		return nil, br.err
	}

	owner, err := c.ownerID(ownerName)
	if err != nil {
		return nil, err
	}
	u, err := c.units.Get(typ, owner)
	if err != nil {
		return nil, err
	}
	u.Pos = core.Coordinate{X: x, Y: y}
	u.Target = core.Coordinate{X: tx, Y: ty}
	u.MovesLeft = moves
	u.HP = hp
	u.HasAttacked = flags&flagAttacked != 0
	u.Dead = flags&flagDead != 0
	return u, nil
}

func (c *Codec) EncodeBuilding(w io.Writer, b *core.Building) error {
	owner, err := c.ownerName(b.Owner)
	if err != nil {
		return err
	}
	bw := &writer{w: w}
	bw.int16(b.Pos.X)
	bw.int16(b.Pos.Y)
	bw.string(owner)
	bw.string(b.TypeID)
	bw.int16(b.TurnsSeized)
	return bw.err
}

func (c *Codec) DecodeBuilding(r io.Reader) (*core.Building, error) {
	return c.decodeBuilding(newReader(r))
}

func (c *Codec) decodeBuilding(br *reader) (*core.Building, error) {
	x, y := br.int16(), br.int16()
	ownerName := br.string()
	typ := br.string()
	seized := br.int16()
	if br.err != nil {
		return nil, br.err
	}
	owner, err := c.ownerID(ownerName)
	if err != nil {
		return nil, err
	}
	b := core.NewBuilding(typ, owner, core.Coordinate{X: x, Y: y}, c.units.RazeTime(typ))
	b.TurnsSeized = seized
	return b, nil
}

// EncodeGrid writes the whole field: terrain, units in id order, then
// buildings in row-major order.
func (c *Codec) EncodeGrid(w io.Writer, g *core.Grid) error {
	bw := &writer{w: w}
	bw.int16(g.W)
	bw.int16(g.H)
	var buildings []*core.Building
	g.ForEach(func(t *core.Tile, _, _ int) {
		bw.byte(EncodeTile(*t))
		if t.Building != nil {
			buildings = append(buildings, t.Building)
		}
	})
	units := g.Units()
	bw.uint16(len(units))
	if bw.err != nil {
		return bw.err
	}
	for _, u := range units {
		if err := c.EncodeUnit(w, u); err != nil {
			return fmt.Errorf("unit %d: %w", u.ID, err)
		}
	}
	bw.uint16(len(buildings))
	if bw.err != nil {
		return bw.err
	}
	for _, b := range buildings {
		if err := c.EncodeBuilding(w, b); err != nil {
			return fmt.Errorf("building at %s: %w", b.Pos, err)
		}
	}
	return nil
}

// DecodeGrid rebuilds a field with the given terrain rules.
func (c *Codec) DecodeGrid(r io.Reader, rules core.TerrainRules) (*core.Grid, error) {
	br := newReader(r)
	w, h := br.int16(), br.int16()
	if br.err != nil {
		return nil, br.err
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: grid size %dx%d", ErrCorrupt, w, h)
	}
	g := core.NewGrid(w, h, rules)
	for i := 0; i < w*h; i++ {
		t, err := DecodeTile(br.byte())
		if br.err != nil {
			return nil, br.err
		}
		if err != nil {
			return nil, err
		}
		if err := g.Set(core.FromIndex(i, w), t); err != nil {
			return nil, err
		}
	}

	n := br.uint16()
	for i := 0; i < n; i++ {
		u, err := c.decodeUnit(br)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		if !g.SetUnit(u.Pos, u) {
			return nil, fmt.Errorf("%w: unit %d at %s", ErrCorrupt, i, u.Pos)
		}
	}

	n = br.uint16()
	for i := 0; i < n; i++ {
		b, err := c.decodeBuilding(br)
		if err != nil {
			return nil, fmt.Errorf("building %d: %w", i, err)
		}
		t, err := g.Get(b.Pos)
		if err != nil {
			return nil, fmt.Errorf("%w: building %d: %v", ErrCorrupt, i, err)
		}
		t.Building = b
	}
	if br.err != nil {
		return nil, br.err
	}
	return g, nil
}

// MarshalGrid is EncodeGrid into a fresh buffer.
func (c *Codec) MarshalGrid(g *core.Grid) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodeGrid(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Codec) UnmarshalGrid(data []byte, rules core.TerrainRules) (*core.Grid, error) {
	return c.DecodeGrid(bytes.NewReader(data), rules)
}
