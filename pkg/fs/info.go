package fs

import (
	"errors"
	"fmt"
	"io"

	"brenoafb.com/contiguous-filesystem/pkg/cluster"
)

// FileInfo describes one file of a volume.
type FileInfo struct {
	Slot     int
	Name     Name
	Size     int
	Clusters cluster.Range
}

// Files lists the files of the volume in slot order.
func (v *Volume) Files() []FileInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()

	files := []FileInfo{}
	for i := RootSlot + 1; i < DirectorySlots; i++ {
		rec, ok := v.dir.Get(i)
		if !ok {
			continue
		}
		files = append(files, FileInfo{
			Slot:     i,
			Name:     rec.Name,
			Size:     rec.Size,
			Clusters: rec.Clusters(v.store.ClusterSize()),
		})
	}
	return files
}

type Stats struct {
	ClusterSize    int
	Clusters       int
	BusyClusters   int
	FreeClusters   int
	LargestFreeRun int
	Files          int
	FreeSlots      int
}

func (v *Volume) Stats() Stats {
	v.mu.RLock()
	defer v.mu.RUnlock()

	files := v.dir.Len()
	return Stats{
		ClusterSize:    v.store.ClusterSize(),
		Clusters:       v.alloc.Len(),
		BusyClusters:   v.alloc.Busy(),
		FreeClusters:   v.alloc.Len() - v.alloc.Busy(),
		LargestFreeRun: v.alloc.Available(),
		Files:          files,
		FreeSlots:      DirectorySlots - 1 - files,
	}
}

type UsageKind int

const (
	UsageFree UsageKind = iota
	UsageAllocationTable
	UsageDirectory
	UsageFile
	// UsageLeaked is a busy cluster that nothing refers to.
	UsageLeaked
)

// Usage tells what a cluster is used for.
type Usage struct {
	Kind UsageKind
	// Name and Slot are set for UsageFile
	Name Name
	Slot int
}

func (u Usage) String() string {
	switch u.Kind {
	case UsageFree:
		return "free"
	case UsageAllocationTable:
		return "allocation table"
	case UsageDirectory:
		return "directory table"
	case UsageFile:
		return fmt.Sprintf("file %q (slot %d)", u.Name, u.Slot)
	case UsageLeaked:
		return "leaked"
	}
	return fmt.Sprintf("UsageKind(%d)", int(u.Kind))
}

// Layout returns the usage of every cluster of the volume.
func (v *Volume) Layout() []Usage {
	v.mu.RLock()
	defer v.mu.RUnlock()

	usage, _ := v.layout()
	return usage
}

// Check verifies that the allocation table and the directory agree: every
// record lies inside the volume on busy clusters, no two records overlap,
// names are unique, and no busy cluster is left without an owner.
func (v *Volume) Check() error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, err := v.layout()
	return err
}

func (v *Volume) layout() ([]Usage, error) {
	n := v.alloc.Len()
	usage := make([]Usage, n)
	var errs []error

	claim := func(r cluster.Range, u Usage) {
		if r.Start < 0 || r.Count < 0 || r.End() > n {
			errs = append(errs, fmt.Errorf("%v: clusters %v outside of volume of %d clusters", u, r, n))
			return
		}
		for i := r.Start; i < r.End(); i++ {
			if usage[i].Kind != UsageFree {
				errs = append(errs, fmt.Errorf("cluster %d belongs to both %v and %v", i, usage[i], u))
				continue
			}
			if !v.alloc.IsBusy(i) {
				errs = append(errs, fmt.Errorf("cluster %d of %v is marked free", i, u))
			}
			usage[i] = u
		}
	}

	claim(v.table, Usage{Kind: UsageAllocationTable})
	claim(v.dir.Root().Clusters(v.store.ClusterSize()), Usage{Kind: UsageDirectory, Name: RootName})

	seen := map[Name]int{}
	for i := RootSlot + 1; i < DirectorySlots; i++ {
		rec, ok := v.dir.Get(i)
		if !ok {
			continue
		}
		if j, dup := seen[rec.Name]; dup {
			errs = append(errs, fmt.Errorf("slots %d and %d are both called %q", j, i, rec.Name))
		}
		seen[rec.Name] = i
		claim(rec.Clusters(v.store.ClusterSize()), Usage{Kind: UsageFile, Name: rec.Name, Slot: i})
	}

	owned := 0
	for i := range usage {
		switch {
		case usage[i].Kind != UsageFree:
			owned++
		case v.alloc.IsBusy(i):
			usage[i].Kind = UsageLeaked
			errs = append(errs, fmt.Errorf("cluster %d is busy but unused", i))
		}
	}
	if owned != v.alloc.Busy() {
		errs = append(errs, fmt.Errorf("%d clusters in use, allocation table counts %d busy", owned, v.alloc.Busy()))
	}

	return usage, errors.Join(errs...)
}

// DisplayInfo prints the allocation bitmap and the directory records.
func (v *Volume) DisplayInfo(w io.Writer) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	// print it 32 clusters per row
	fmt.Fprintln(w, "-- allocation bitmap --")
	for i := 0; i < v.alloc.Len(); i++ {
		if v.alloc.IsBusy(i) {
			fmt.Fprint(w, "1")
		} else {
			fmt.Fprint(w, "0")
		}
		if i%32 == 31 {
			fmt.Fprintln(w)
		}
	}
	if v.alloc.Len()%32 != 0 {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "clusters: %d x %d bytes, %d busy, largest free run %d\n",
		v.alloc.Len(), v.store.ClusterSize(), v.alloc.Busy(), v.alloc.Available())
	fmt.Fprintf(w, "allocation table: clusters %v\n", v.table)
	fmt.Fprintln(w)

	for i := 0; i < DirectorySlots; i++ {
		rec, ok := v.dir.Get(i)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "-- record %d --\n", i)
		fmt.Fprintf(w, "name: %s\n", rec.Name)
		fmt.Fprintf(w, "size: %d\n", rec.Size)
		fmt.Fprintf(w, "clusters: %v\n", rec.Clusters(v.store.ClusterSize()))
		fmt.Fprintln(w)
	}
}
