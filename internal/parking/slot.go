package parking

import (
	"fmt"
	"math/rand/v2"
)

type SizeClass string

const (
	SizeNormal SizeClass = "normal"
	SizeLarge  SizeClass = "large"
)

// Render box widths in characters. Cosmetic only.
const (
	normalSlotWidth = 12
	largeSlotWidth  = 16
	slotHeight      = 1
)

const largeSlotProbability = 0.2

type Slot struct {
	ID     string    `json:"id"`
	Row    int       `json:"row"`
	Col    int       `json:"col"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Size   SizeClass `json:"size"`
}

func NewSlot(row, col int, size SizeClass) *Slot {
	width := normalSlotWidth
	if size == SizeLarge {
		width = largeSlotWidth
	}

	return &Slot{
		ID:     SlotID(row, col),
		Row:    row,
		Col:    col,
		Width:  width,
		Height: slotHeight,
		Size:   size,
	}
}

// SlotID builds the stable identifier for a grid position: row letter
// plus 1-based column, e.g. "A1", "C7".
func SlotID(row, col int) string {
	return fmt.Sprintf("%c%d", 'A'+row, col+1)
}

// NewGrid generates the slot layout for a fresh lot. The layout is
// generated once, persisted, and never resized within a session.
func NewGrid(rows, cols int) []*Slot {
	return newGrid(rows, cols, rand.Float64)
}

// NewGridSeeded is NewGrid with a deterministic size-class assignment.
func NewGridSeeded(rows, cols int, seed uint64) []*Slot {
	rng := rand.New(rand.NewPCG(seed, 0))
	return newGrid(rows, cols, rng.Float64)
}

func newGrid(rows, cols int, randFloat func() float64) []*Slot {
	slots := make([]*Slot, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			size := SizeNormal
			if randFloat() < largeSlotProbability {
				size = SizeLarge
			}
			slots = append(slots, NewSlot(row, col, size))
		}
	}
	return slots
}
