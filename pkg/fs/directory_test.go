package fs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"brenoafb.com/contiguous-filesystem/pkg/cluster"
)

func TestParseName(t *testing.T) {
	n, err := ParseName("foo.txt")
	require.NoError(t, err)
	require.Equal(t, Name("foo.txt"), n)

	_, err = ParseName(strings.Repeat("a", MaxNameLen))
	require.NoError(t, err)

	_, err = ParseName(strings.Repeat("a", MaxNameLen+1))
	require.ErrorIs(t, err, ErrNameTooLong)

	for _, bad := range []string{"", RootName, "a\x00b"} {
		_, err = ParseName(bad)
		require.ErrorIs(t, err, ErrInvalidName, "name %q", bad)
	}
}

func TestDirectoryInit(t *testing.T) {
	dir := newDirectory(cluster.Range{Start: 3, Count: 4})

	root, ok := dir.Get(RootSlot)
	require.True(t, ok)
	require.Equal(t, Record{Name: RootName, Start: 3, Size: DirectorySize}, root)
	require.Equal(t, cluster.Range{Start: 3, Count: 4}, root.Clusters(DirectorySize/4))
	require.Equal(t, 0, dir.Len())

	// the root record is not a file
	_, ok = dir.Find(RootName)
	require.False(t, ok)

	i, ok := dir.FreeSlot()
	require.True(t, ok)
	require.Equal(t, 1, i)
}

func TestDirectoryFindAndFree(t *testing.T) {
	dir := newDirectory(cluster.Range{Start: 0, Count: 1})

	dir.Put(1, Record{Name: "a", Start: 10, Size: 5})
	dir.Put(2, Record{Name: "b", Start: 11, Size: 5})
	dir.Put(5, Record{Name: "a", Start: 12, Size: 5})

	// lowest slot wins
	i, ok := dir.Find("a")
	require.True(t, ok)
	require.Equal(t, 1, i)

	i, ok = dir.FreeSlot()
	require.True(t, ok)
	require.Equal(t, 3, i)

	dir.Clear(1)
	i, ok = dir.Find("a")
	require.True(t, ok)
	require.Equal(t, 5, i)
	i, ok = dir.FreeSlot()
	require.True(t, ok)
	require.Equal(t, 1, i)
	require.Equal(t, 2, dir.Len())

	for i := 1; i < DirectorySlots; i++ {
		dir.Put(i, Record{Name: "x", Start: i})
	}
	_, ok = dir.FreeSlot()
	require.False(t, ok)
}

func TestDirectoryEncoding(t *testing.T) {
	dir := newDirectory(cluster.Range{Start: 2, Count: 8})
	dir.Put(1, Record{Name: "hello.txt", Start: 10, Size: 100})
	dir.Put(7, Record{Name: Name(strings.Repeat("z", MaxNameLen)), Start: 12, Size: 1})
	dir.Put(9, Record{Name: "empty"})

	buf, err := dir.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, DirectorySize)
	require.Equal(t, []byte("/\x00"), buf[:2])
	require.Equal(t, []byte("hello.txt\x00"), buf[RecordSize:RecordSize+10])

	var restored Directory
	require.NoError(t, restored.UnmarshalBinary(buf))
	require.Equal(t, *dir, restored)

	rec, ok := restored.Get(9)
	require.True(t, ok)
	require.Equal(t, Record{Name: "empty"}, rec)
	_, ok = restored.Get(8)
	require.False(t, ok)

	require.Error(t, restored.UnmarshalBinary(buf[:RecordSize]))
}

func TestDirectoryDecodeRejectsBadNames(t *testing.T) {
	dir := newDirectory(cluster.Range{Start: 2, Count: 8})
	dir.Put(1, Record{Name: "a", Start: 10, Size: 1})
	good, err := dir.MarshalBinary()
	require.NoError(t, err)

	for name, field := range map[string]string{
		"unterminated": strings.Repeat("z", NameSize),
		"too long":     strings.Repeat("z", MaxNameLen+1) + "\x00",
		"empty":        "\x00",
		"root":         "/\x00",
	} {
		t.Run(name, func(t *testing.T) {
			buf := append([]byte(nil), good...)
			copy(buf[RecordSize:RecordSize+NameSize], make([]byte, NameSize))
			copy(buf[RecordSize:], field)

			var restored Directory
			require.Error(t, restored.UnmarshalBinary(buf))
		})
	}

	// slots that are free on disk are not inspected
	buf := append([]byte(nil), good...)
	copy(buf[2*RecordSize:], strings.Repeat("z", NameSize))
	var restored Directory
	require.NoError(t, restored.UnmarshalBinary(buf))
}
