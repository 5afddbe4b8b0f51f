package core

import "fmt"

// Coordinate is a grid position. X grows to the right, Y grows downwards.
type Coordinate struct {
	X, Y int
}

// InvalidCoordinate is the "nothing selected" sentinel. It is never inside a grid.
var InvalidCoordinate = Coordinate{X: -1, Y: -1}

func NewCoordinate(x, y int) Coordinate {
	return Coordinate{X: x, Y: y}
}

// FromIndex converts a row-major tile index back to a coordinate.
func FromIndex(idx, width int) Coordinate {
	return Coordinate{X: idx % width, Y: idx / width}
}

// IsValid checks if the coordinate is within a width x height grid
func (c Coordinate) IsValid(width, height int) bool {
	return c.X >= 0 && c.X < width && c.Y >= 0 && c.Y < height
}

// IsInvalid reports whether c is the selection sentinel.
func (c Coordinate) IsInvalid() bool {
	return c == InvalidCoordinate
}

// ToIndex converts the coordinate to a row-major index
func (c Coordinate) ToIndex(width int) int {
	return c.Y*width + c.X
}

// DistanceTo is the Manhattan distance, which is what attack ranges use.
func (c Coordinate) DistanceTo(other Coordinate) int {
	dx := c.X - other.X
	dy := c.Y - other.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

func (c Coordinate) IsAdjacentTo(other Coordinate) bool {
	return c.DistanceTo(other) == 1
}

// Neighbors returns the four orthogonal neighbors in the fixed order
// North, East, South, West. Pathfinding tie-breaks depend on this order.
func (c Coordinate) Neighbors() [4]Coordinate {
	return [4]Coordinate{
		{X: c.X, Y: c.Y - 1},
		{X: c.X + 1, Y: c.Y},
		{X: c.X, Y: c.Y + 1},
		{X: c.X - 1, Y: c.Y},
	}
}

func (c Coordinate) Add(other Coordinate) Coordinate {
	return Coordinate{X: c.X + other.X, Y: c.Y + other.Y}
}

func (c Coordinate) Sub(other Coordinate) Coordinate {
	return Coordinate{X: c.X - other.X, Y: c.Y - other.Y}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}
