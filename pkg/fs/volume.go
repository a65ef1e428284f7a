package fs

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"brenoafb.com/contiguous-filesystem/pkg/block"
	"brenoafb.com/contiguous-filesystem/pkg/cluster"
)

// Volume is a flat filesystem stored in a single buffer of fixed-size
// clusters. Every file occupies one contiguous run of clusters.
//
// The buffer starts with the allocation table (one word per cluster),
// followed at the next cluster boundary by the directory table. The
// remaining clusters hold file data.
type Volume struct {
	// mu serialises writers; the allocator, directory and raw bytes are
	// updated together by every mutating operation
	mu sync.RWMutex

	// store is the storage buffer, tables included
	store *block.Store
	// alloc tracks which clusters are taken
	alloc *cluster.Table
	// dir is the in-memory copy of the directory table
	dir *Directory
	// table is where the allocation table is persisted
	table cluster.Range

	logger *log.Logger
}

type Option func(*Volume)

// WithLogger makes the volume report failed allocations and restored
// overwrites to l.
func WithLogger(l *log.Logger) Option {
	return func(v *Volume) {
		v.logger = l
	}
}

func (v *Volume) apply(opts []Option) {
	v.logger = log.New(io.Discard, "", 0)
	for _, opt := range opts {
		opt(v)
	}
}

func clustersFor(n, clusterSize int) int {
	return (n + clusterSize - 1) / clusterSize
}

// tableRange returns the clusters holding the allocation table of a volume
// with n clusters.
func tableRange(n, clusterSize int) cluster.Range {
	return cluster.Range{Start: 0, Count: clustersFor(cluster.EncodedSize(n), clusterSize)}
}

// checkClusterSize rejects clusters too small to hold more than one
// allocation table slot; such a table could never fit in the volume.
func checkClusterSize(clusterSize int) error {
	if clusterSize <= cluster.SlotSize {
		return fmt.Errorf("cluster size %d, must exceed %d: %w", clusterSize, cluster.SlotSize, ErrInvalidClusterSize)
	}
	return nil
}

// MinClusters returns the smallest number of clusters a volume needs to
// hold its own tables.
func MinClusters(clusterSize int) int {
	dir := clustersFor(DirectorySize, clusterSize)
	n := dir
	for tableRange(n, clusterSize).Count+dir > n {
		n++
	}
	return n
}

// New creates an empty volume of nClusters clusters.
func New(clusterSize, nClusters int, opts ...Option) (*Volume, error) {
	if err := checkClusterSize(clusterSize); err != nil {
		return nil, err
	}
	if min := MinClusters(clusterSize); nClusters < min {
		return nil, fmt.Errorf("%d clusters of %d bytes, need at least %d: %w",
			nClusters, clusterSize, min, ErrVolumeTooSmall)
	}

	v := &Volume{
		store: block.NewStore(nClusters, clusterSize),
		alloc: cluster.NewTable(nClusters),
	}
	v.apply(opts)

	table, err := v.alloc.Allocate(tableRange(nClusters, clusterSize).Count)
	if err != nil {
		return nil, fmt.Errorf("error allocating allocation table: %w", err)
	}
	root, err := v.alloc.Allocate(clustersFor(DirectorySize, clusterSize))
	if err != nil {
		return nil, fmt.Errorf("error allocating directory table: %w", err)
	}

	v.table = table
	v.dir = newDirectory(root)

	if err := v.syncTables(); err != nil {
		return nil, err
	}

	return v, nil
}

// Open restores a volume from an image written by Persist. The cluster
// size is not recorded in the image and must match the one used to create
// it.
func Open(r io.Reader, clusterSize int, opts ...Option) (*Volume, error) {
	if err := checkClusterSize(clusterSize); err != nil {
		return nil, err
	}

	img, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading image: %w", err)
	}
	if len(img)%clusterSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of cluster size %d",
			ErrCorruptImage, len(img), clusterSize)
	}
	n := len(img) / clusterSize
	if n < MinClusters(clusterSize) {
		return nil, fmt.Errorf("%w: %d clusters of %d bytes: %w", ErrCorruptImage, n, clusterSize, ErrVolumeTooSmall)
	}

	v := &Volume{
		store: block.FromBytes(img, clusterSize),
		alloc: &cluster.Table{},
		dir:   &Directory{},
		table: tableRange(n, clusterSize),
	}
	v.apply(opts)

	buf, err := v.store.Read(v.table.Start, cluster.EncodedSize(n))
	if err != nil {
		return nil, err
	}
	if err := v.alloc.UnmarshalBinary(buf); err != nil {
		return nil, fmt.Errorf("%w: error decoding allocation table: %w", ErrCorruptImage, err)
	}

	// byte 8n when 8n is a multiple of the cluster size, otherwise the
	// next cluster boundary after it
	dirStart := v.table.End()
	buf, err = v.store.Read(dirStart, DirectorySize)
	if err != nil {
		return nil, err
	}
	if err := v.dir.UnmarshalBinary(buf); err != nil {
		return nil, fmt.Errorf("%w: error decoding directory table: %w", ErrCorruptImage, err)
	}

	root, ok := v.dir.Get(RootSlot)
	if !ok || root.Name != RootName || root.Start != dirStart || root.Size != DirectorySize {
		return nil, fmt.Errorf("%w: bad root record %+v", ErrCorruptImage, root)
	}

	if _, err := v.layout(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptImage, err)
	}

	return v, nil
}

// lookup finds the slot of the file called name.
func (v *Volume) lookup(name string) (int, Record, error) {
	n, err := ParseName(name)
	if err != nil {
		return 0, Record{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	i, ok := v.dir.Find(n)
	if !ok {
		return 0, Record{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	rec, _ := v.dir.Get(i)
	return i, rec, nil
}

// Write stores data under name and returns the directory slot used. An
// existing file with the same name is replaced; if the replacement fails
// the previous contents are kept.
func (v *Volume) Write(name string, data []byte) (int, error) {
	n, err := ParseName(name)
	if err != nil {
		return 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var old *removed
	if i, ok := v.dir.Find(n); ok {
		// free the old version first so it does not count against the
		// space of the new one
		old, err = v.remove(i)
		if err != nil {
			return 0, fmt.Errorf("error removing old version of %q: %w", name, err)
		}
	}

	slot, err := v.create(n, data)
	if err != nil && old != nil {
		if rerr := v.restore(old); rerr != nil {
			return 0, errors.Join(err, fmt.Errorf("error restoring %q: %w", name, rerr))
		}
		v.logger.Printf("kept previous version of %q after failed write: %v", name, err)
	}
	return slot, err
}

// removed is a deleted record together with the contents it had.
type removed struct {
	slot   int
	record Record
	data   []byte
}

func (v *Volume) remove(i int) (*removed, error) {
	rec, _ := v.dir.Get(i)
	data, err := v.store.Read(rec.Start, rec.Size)
	if err != nil {
		return nil, err
	}
	if err := v.store.Zero(rec.Start, rec.Size); err != nil {
		return nil, err
	}
	if err := v.alloc.Release(rec.Clusters(v.store.ClusterSize())); err != nil {
		return nil, err
	}
	v.dir.Clear(i)
	return &removed{slot: i, record: rec, data: data}, nil
}

// restore puts back a record taken out by remove. Nothing may have been
// allocated in between.
func (v *Volume) restore(old *removed) error {
	if err := v.alloc.Reserve(old.record.Clusters(v.store.ClusterSize())); err != nil {
		return err
	}
	if err := v.store.Write(old.record.Start, 0, old.data); err != nil {
		return err
	}
	v.dir.Put(old.slot, old.record)
	return nil
}

func (v *Volume) create(name Name, data []byte) (int, error) {
	needed := v.store.ClustersFor(len(data))
	if avail := v.alloc.Available(); needed > avail {
		v.logger.Printf("cannot fit %q: needs %d clusters, largest free run is %d", name, needed, avail)
		return 0, fmt.Errorf("writing %q needs %d clusters, largest free run is %d: %w",
			name, needed, avail, ErrInsufficientSpace)
	}

	slot, ok := v.dir.FreeSlot()
	if !ok {
		v.logger.Printf("cannot create %q: all %d slots taken", name, DirectorySlots-1)
		return 0, fmt.Errorf("writing %q: %w", name, ErrDirectoryFull)
	}

	rec := Record{Name: name, Size: len(data)}
	if needed > 0 {
		r, err := v.alloc.Allocate(needed)
		if err != nil {
			return 0, fmt.Errorf("writing %q: %w: %w", name, ErrInsufficientSpace, err)
		}
		rec.Start = r.Start
	}

	if err := v.store.Write(rec.Start, 0, data); err != nil {
		if rerr := v.alloc.Release(rec.Clusters(v.store.ClusterSize())); rerr != nil {
			return 0, errors.Join(err, rerr)
		}
		return 0, fmt.Errorf("error writing data of %q: %w", name, err)
	}

	v.dir.Put(slot, rec)
	return slot, nil
}

// Read returns a copy of the contents of the file called name.
func (v *Volume) Read(name string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, rec, err := v.lookup(name)
	if err != nil {
		return nil, err
	}
	return v.store.Read(rec.Start, rec.Size)
}

// Delete removes the file called name, clearing its data, and returns the
// number of bytes freed.
func (v *Volume) Delete(name string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i, _, err := v.lookup(name)
	if err != nil {
		return 0, err
	}
	old, err := v.remove(i)
	if err != nil {
		return 0, fmt.Errorf("error deleting %q: %w", name, err)
	}
	return old.record.Size, nil
}

func (v *Volume) Exists(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, _, err := v.lookup(name)
	return err == nil
}

// Size returns the size in bytes of the file called name.
func (v *Volume) Size(name string) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, rec, err := v.lookup(name)
	if err != nil {
		return 0, err
	}
	return rec.Size, nil
}

// syncTables serialises the directory and allocation tables into the
// clusters reserved for them.
func (v *Volume) syncTables() error {
	buf, err := v.dir.MarshalBinary()
	if err != nil {
		return fmt.Errorf("error encoding directory table: %w", err)
	}
	if err := v.store.Write(v.dir.Root().Start, 0, buf); err != nil {
		return fmt.Errorf("error writing directory table: %w", err)
	}

	buf, err = v.alloc.MarshalBinary()
	if err != nil {
		return fmt.Errorf("error encoding allocation table: %w", err)
	}
	if err := v.store.Write(v.table.Start, 0, buf); err != nil {
		return fmt.Errorf("error writing allocation table: %w", err)
	}
	return nil
}

// Dump writes a hex dump of the storage buffer as it is in memory; tables
// are only current after Persist.
func (v *Volume) Dump(w io.Writer) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.store.Dump(w)
}

// Persist writes the tables into the storage buffer and then the whole
// buffer to w.
func (v *Volume) Persist(w io.Writer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.syncTables(); err != nil {
		return err
	}
	if _, err := w.Write(v.store.Bytes()); err != nil {
		return fmt.Errorf("error writing image: %w", err)
	}
	return nil
}
