package cluster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// Busy is the on-disk value of an allocated cluster.
	Busy uint64 = 0
	// Free is the on-disk value of an unallocated cluster.
	Free uint64 = math.MaxUint64

	// SlotSize is the encoded size of one allocation table slot in bytes.
	SlotSize = 8
)

var (
	ErrExhausted     = errors.New("no contiguous run of free clusters is large enough")
	ErrInvalidAmount = errors.New("cluster amount must be positive")
	ErrOutOfRange    = errors.New("cluster range out of bounds")
	ErrOverlap       = errors.New("cluster range overlaps busy clusters")
)

// Range is a half-open run of cluster indices [Start, Start+Count).
type Range struct {
	Start int
	Count int
}

// End returns the index one past the last cluster of the range.
func (r Range) End() int {
	return r.Start + r.Count
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End())
}

// Table tracks which clusters of a volume are free.
type Table struct {
	// busy holds one entry per cluster, true when allocated
	busy []bool
	// nBusy is the number of busy entries
	nBusy int
}

// NewTable returns a table of n clusters, all free.
func NewTable(n int) *Table {
	return &Table{busy: make([]bool, n)}
}

// EncodedSize computes how many bytes the allocation table of n clusters
// takes up on disk.
func EncodedSize(n int) int {
	return n * SlotSize
}

func (t *Table) Len() int {
	return len(t.busy)
}

func (t *Table) Busy() int {
	return t.nBusy
}

func (t *Table) IsBusy(i int) bool {
	return t.busy[i]
}

// runAt returns the length of the free run starting at i, stopping once
// limit clusters have been counted. A limit <= 0 measures the whole run.
func (t *Table) runAt(i, limit int) int {
	n := 0
	for j := i; j < len(t.busy) && !t.busy[j]; j++ {
		n++
		if n == limit {
			break
		}
	}
	return n
}

// Allocate reserves amount contiguous clusters using first fit: the
// leftmost free run that is at least amount long is used.
func (t *Table) Allocate(amount int) (Range, error) {
	if amount <= 0 {
		return Range{}, ErrInvalidAmount
	}

	for i := 0; i < len(t.busy); {
		if t.busy[i] {
			i++
			continue
		}
		run := t.runAt(i, amount)
		if run == amount {
			r := Range{Start: i, Count: amount}
			t.mark(r, true)
			return r, nil
		}
		// the run is too short; everything up to its end is useless
		i += run
	}

	return Range{}, fmt.Errorf("allocating %d clusters: %w", amount, ErrExhausted)
}

// Release marks every cluster of r free.
func (t *Table) Release(r Range) error {
	if err := t.check(r); err != nil {
		return err
	}
	t.mark(r, false)
	return nil
}

// Reserve marks exactly the clusters of r busy. It fails without changing
// anything if one of them is already taken.
func (t *Table) Reserve(r Range) error {
	if err := t.check(r); err != nil {
		return err
	}
	for i := r.Start; i < r.End(); i++ {
		if t.busy[i] {
			return fmt.Errorf("reserving %v: cluster %d: %w", r, i, ErrOverlap)
		}
	}
	t.mark(r, true)
	return nil
}

// Available reports the length of the largest contiguous free run.
func (t *Table) Available() int {
	largest := 0
	for i := 0; i < len(t.busy); {
		if t.busy[i] {
			i++
			continue
		}
		run := t.runAt(i, 0)
		if run > largest {
			largest = run
		}
		i += run
	}
	return largest
}

func (t *Table) check(r Range) error {
	if r.Start < 0 || r.Count < 0 || r.End() > len(t.busy) {
		return fmt.Errorf("range %v of %d clusters: %w", r, len(t.busy), ErrOutOfRange)
	}
	return nil
}

func (t *Table) mark(r Range, busy bool) {
	for i := r.Start; i < r.End(); i++ {
		if t.busy[i] != busy {
			if busy {
				t.nBusy++
			} else {
				t.nBusy--
			}
		}
		t.busy[i] = busy
	}
}

// MarshalBinary encodes the table as one little endian word per cluster.
func (t *Table) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EncodedSize(len(t.busy)))
	for i, busy := range t.busy {
		v := Free
		if busy {
			v = Busy
		}
		binary.LittleEndian.PutUint64(buf[i*SlotSize:], v)
	}
	return buf, nil
}

// UnmarshalBinary decodes a table previously encoded by MarshalBinary. The
// number of clusters is taken from the length of buf.
func (t *Table) UnmarshalBinary(buf []byte) error {
	if len(buf)%SlotSize != 0 {
		return fmt.Errorf("allocation table of %d bytes is not a multiple of %d", len(buf), SlotSize)
	}

	busy := make([]bool, len(buf)/SlotSize)
	nBusy := 0
	for i := range busy {
		switch v := binary.LittleEndian.Uint64(buf[i*SlotSize:]); v {
		case Busy:
			busy[i] = true
			nBusy++
		case Free:
		default:
			return fmt.Errorf("allocation table slot %d has invalid value %#x", i, v)
		}
	}

	t.busy = busy
	t.nBusy = nBusy
	return nil
}
