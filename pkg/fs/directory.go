package fs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"brenoafb.com/contiguous-filesystem/pkg/cluster"
)

const (
	// NameSize is the size of the on-disk name field, terminator included.
	NameSize = 16
	// MaxNameLen is the longest name accepted for a file.
	MaxNameLen = NameSize - 2

	// DirectorySlots is the number of records in the directory table.
	// Slot 0 describes the table itself.
	DirectorySlots = 512
	// RecordSize is the on-disk size of a record: name, start and size.
	RecordSize = NameSize + 8 + 8
	// DirectorySize is the on-disk size of the directory table.
	DirectorySize = RecordSize * DirectorySlots

	// RootName is the name of the record describing the directory table.
	RootName = "/"
	// RootSlot is the slot of the root record.
	RootSlot = 0

	// freeStart marks an empty slot on disk.
	freeStart = math.MaxUint64
)

// Name is a validated file name.
type Name string

// ParseName checks that s can be stored in a record.
func ParseName(s string) (Name, error) {
	if len(s) > MaxNameLen {
		return "", fmt.Errorf("%q is %d bytes long, limit is %d: %w", s, len(s), MaxNameLen, ErrNameTooLong)
	}
	if s == "" || s == RootName || strings.IndexByte(s, 0) >= 0 {
		return "", fmt.Errorf("%q: %w", s, ErrInvalidName)
	}
	return Name(s), nil
}

type Record struct {
	// Name is the file's name, unique within the directory.
	Name Name
	// Start is the first cluster of the file's data. Empty files have no
	// clusters and a Start of 0.
	Start int
	// Size is the size of the file in bytes.
	Size int
}

// Clusters returns the cluster range holding the record's data.
func (r Record) Clusters(clusterSize int) cluster.Range {
	return cluster.Range{
		Start: r.Start,
		Count: (r.Size + clusterSize - 1) / clusterSize,
	}
}

type slot struct {
	used   bool
	record Record
}

// Directory is the fixed-size table of file records.
type Directory struct {
	slots [DirectorySlots]slot
}

// newDirectory returns an empty directory whose root record points at the
// clusters holding the table.
func newDirectory(root cluster.Range) *Directory {
	d := &Directory{}
	d.slots[RootSlot] = slot{
		used: true,
		record: Record{
			Name:  RootName,
			Start: root.Start,
			Size:  DirectorySize,
		},
	}
	return d
}

// Root returns the record describing the directory table.
func (d *Directory) Root() Record {
	return d.slots[RootSlot].record
}

// Find returns the lowest user slot holding a record called name.
func (d *Directory) Find(name Name) (int, bool) {
	for i := RootSlot + 1; i < DirectorySlots; i++ {
		if d.slots[i].used && d.slots[i].record.Name == name {
			return i, true
		}
	}
	return 0, false
}

// FreeSlot returns the lowest unused user slot.
func (d *Directory) FreeSlot() (int, bool) {
	for i := RootSlot + 1; i < DirectorySlots; i++ {
		if !d.slots[i].used {
			return i, true
		}
	}
	return 0, false
}

func (d *Directory) Get(i int) (Record, bool) {
	return d.slots[i].record, d.slots[i].used
}

func (d *Directory) Put(i int, r Record) {
	d.slots[i] = slot{used: true, record: r}
}

func (d *Directory) Clear(i int) {
	d.slots[i] = slot{}
}

// Len returns the number of user records.
func (d *Directory) Len() int {
	n := 0
	for i := RootSlot + 1; i < DirectorySlots; i++ {
		if d.slots[i].used {
			n++
		}
	}
	return n
}

// MarshalBinary encodes the table as DirectorySlots fixed-size records.
func (d *Directory) MarshalBinary() ([]byte, error) {
	buf := make([]byte, DirectorySize)
	for i, s := range d.slots {
		rec := buf[i*RecordSize : (i+1)*RecordSize]
		if !s.used {
			binary.LittleEndian.PutUint64(rec[NameSize:], freeStart)
			continue
		}
		copy(rec[:NameSize], s.record.Name)
		binary.LittleEndian.PutUint64(rec[NameSize:], uint64(s.record.Start))
		binary.LittleEndian.PutUint64(rec[NameSize+8:], uint64(s.record.Size))
	}
	return buf, nil
}

// UnmarshalBinary decodes a table encoded by MarshalBinary.
func (d *Directory) UnmarshalBinary(buf []byte) error {
	if len(buf) != DirectorySize {
		return fmt.Errorf("directory table is %d bytes, want %d", len(buf), DirectorySize)
	}

	var slots [DirectorySlots]slot
	for i := range slots {
		rec := buf[i*RecordSize : (i+1)*RecordSize]
		start := binary.LittleEndian.Uint64(rec[NameSize:])
		if start == freeStart {
			continue
		}
		size := binary.LittleEndian.Uint64(rec[NameSize+8:])
		if start > math.MaxInt32 || size > math.MaxInt32 {
			return fmt.Errorf("record %d has start %d and size %d", i, start, size)
		}

		n := bytes.IndexByte(rec[:NameSize], 0)
		if n < 0 {
			return fmt.Errorf("record %d: name is not terminated", i)
		}
		name := Name(rec[:n])
		if i != RootSlot {
			if _, err := ParseName(string(name)); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		slots[i] = slot{
			used: true,
			record: Record{
				Name:  name,
				Start: int(start),
				Size:  int(size),
			},
		}
	}

	d.slots = slots
	return nil
}
