package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"brenoafb.com/contiguous-filesystem/pkg/fs"
)

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := config{
		image:       filepath.Join(dir, "disk.img"),
		clusterSize: 64,
		clusters:    302,
	}

	exec := func(cmd string, stdin string, argv ...string) string {
		var out strings.Builder
		require.NoError(t, run(cfg, cmd, argv, strings.NewReader(stdin), &out))
		return out.String()
	}

	exec("mkfs", "")
	info, err := os.Stat(cfg.image)
	require.NoError(t, err)
	require.Equal(t, int64(64*302), info.Size())

	local := filepath.Join(dir, "local.txt")
	require.NoError(t, os.WriteFile(local, []byte("from disk"), 0o644))
	exec("put", "", "a.txt", local)
	exec("put", "from stdin", "b.txt", "-")

	require.Equal(t, "from disk", exec("get", "", "a.txt"))
	require.Equal(t, "b.txt: 10 bytes\n", exec("stat", "", "b.txt"))
	require.Contains(t, exec("ls", ""), "2 files")
	require.Equal(t, "ok\n", exec("check", ""))
	require.Contains(t, exec("info", ""), "name: a.txt")
	require.Contains(t, exec("bitmap", ""), "Allocation bitmap")
	require.Contains(t, exec("dump", ""), "Store: 302 clusters of 64 bytes")

	exec("report", "", filepath.Join(dir, "map.png"))
	_, err = os.Stat(filepath.Join(dir, "map.png"))
	require.NoError(t, err)

	out := filepath.Join(dir, "out.txt")
	exec("get", "", "b.txt", out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "from stdin", string(data))

	require.Equal(t, "removed a.txt (9 bytes)\n", exec("rm", "", "a.txt"))
	err = run(cfg, "get", []string{"a.txt"}, nil, &strings.Builder{})
	require.ErrorIs(t, err, fs.ErrNotFound)

	require.Error(t, run(cfg, "frobnicate", nil, nil, &strings.Builder{}))
	require.Error(t, run(cfg, "rm", nil, nil, &strings.Builder{}))
}
