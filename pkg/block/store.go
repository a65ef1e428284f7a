package block

import (
	"errors"
	"fmt"
	"io"
)

var ErrOutOfBounds = errors.New("access outside of storage")

// Store gives byte-addressed access to the clusters of a storage buffer.
type Store struct {
	buf         []byte
	clusterSize int
}

// NewStore returns a zeroed store of n clusters.
func NewStore(n, clusterSize int) *Store {
	return &Store{
		buf:         make([]byte, n*clusterSize),
		clusterSize: clusterSize,
	}
}

// FromBytes wraps an existing image. The store takes ownership of buf;
// trailing bytes that do not fill a whole cluster are not addressable.
func FromBytes(buf []byte, clusterSize int) *Store {
	n := len(buf) / clusterSize
	return &Store{
		buf:         buf[:n*clusterSize],
		clusterSize: clusterSize,
	}
}

func (s *Store) ClusterSize() int {
	return s.clusterSize
}

// Clusters returns the number of clusters in the store.
func (s *Store) Clusters() int {
	return len(s.buf) / s.clusterSize
}

// ClustersFor computes how many clusters n bytes take up.
func (s *Store) ClustersFor(n int) int {
	return (n + s.clusterSize - 1) / s.clusterSize
}

// Bytes returns the underlying buffer. It is only valid until the next
// write.
func (s *Store) Bytes() []byte {
	return s.buf
}

func (s *Store) span(cluster, offset, length int) (int, int, error) {
	start := cluster*s.clusterSize + offset
	if cluster < 0 || offset < 0 || length < 0 || start+length > len(s.buf) {
		return 0, 0, fmt.Errorf("cluster %d offset %d length %d: %w", cluster, offset, length, ErrOutOfBounds)
	}
	return start, start + length, nil
}

// Read copies length bytes starting at the beginning of cluster into a new
// buffer.
func (s *Store) Read(cluster, length int) ([]byte, error) {
	start, end, err := s.span(cluster, 0, length)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	copy(buf, s.buf[start:end])
	return buf, nil
}

// Write copies data to offset bytes past the beginning of cluster.
func (s *Store) Write(cluster, offset int, data []byte) error {
	start, end, err := s.span(cluster, offset, len(data))
	if err != nil {
		return err
	}
	copy(s.buf[start:end], data)
	return nil
}

// Zero clears length bytes starting at the beginning of cluster.
func (s *Store) Zero(cluster, length int) error {
	start, end, err := s.span(cluster, 0, length)
	if err != nil {
		return err
	}
	for i := start; i < end; i++ {
		s.buf[i] = 0
	}
	return nil
}

// Dump writes the contents of the store as hex, 16 bytes per line.
func (s *Store) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Store: %d clusters of %d bytes\n", s.Clusters(), s.clusterSize); err != nil {
		return err
	}
	for i := 0; i < len(s.buf); i++ {
		sep := " "
		if i%16 == 15 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(w, "%02x%s", s.buf[i], sep); err != nil {
			return err
		}
	}
	if len(s.buf)%16 != 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	return nil
}
