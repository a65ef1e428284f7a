package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"brenoafb.com/contiguous-filesystem/pkg/fs"
	"brenoafb.com/contiguous-filesystem/pkg/image"
	"brenoafb.com/contiguous-filesystem/pkg/report"
)

const usage = `usage: fs [flags] <command> [args]

commands:
  mkfs                    create an empty image
  put <name> <file>       store a local file (- for stdin)
  get <name> [file]       print a file or copy it to a local file
  rm <name>               delete a file
  stat <name>             print the size of a file
  ls                      list files
  info                    print tables and records
  bitmap                  print the allocation bitmap
  dump                    print the image as hex
  report <png>            render the cluster map
  check                   verify the image

flags:
`

type config struct {
	image       string
	clusterSize int
	clusters    int
	verbose     bool
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("fs: ")

	var cfg config
	flag.StringVar(&cfg.image, "image", "disk.img", "volume image file")
	flag.IntVar(&cfg.clusterSize, "cluster-size", 4096, "cluster size in bytes")
	flag.IntVar(&cfg.clusters, "clusters", 64, "number of clusters for mkfs")
	flag.BoolVar(&cfg.verbose, "v", false, "log volume activity")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cfg, flag.Arg(0), flag.Args()[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func (cfg config) options() []fs.Option {
	if !cfg.verbose {
		return nil
	}
	return []fs.Option{fs.WithLogger(log.Default())}
}

func (cfg config) open() (*fs.Volume, error) {
	img, err := image.Load(cfg.image)
	if err != nil {
		return nil, err
	}
	return fs.Open(bytes.NewReader(img), cfg.clusterSize, cfg.options()...)
}

func args(cmd string, got []string, min, max int) error {
	if len(got) < min || len(got) > max {
		return fmt.Errorf("%s: wrong number of arguments", cmd)
	}
	return nil
}

func run(cfg config, cmd string, argv []string, stdin io.Reader, stdout io.Writer) error {
	if cmd == "mkfs" {
		if err := args(cmd, argv, 0, 0); err != nil {
			return err
		}
		v, err := fs.New(cfg.clusterSize, cfg.clusters, cfg.options()...)
		if err != nil {
			return err
		}
		return image.Save(cfg.image, v)
	}

	v, err := cfg.open()
	if err != nil {
		return err
	}

	switch cmd {
	case "put":
		if err := args(cmd, argv, 2, 2); err != nil {
			return err
		}
		var data []byte
		if argv[1] == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(argv[1])
		}
		if err != nil {
			return err
		}
		if _, err := v.Write(argv[0], data); err != nil {
			return err
		}
		return image.Save(cfg.image, v)

	case "get":
		if err := args(cmd, argv, 1, 2); err != nil {
			return err
		}
		data, err := v.Read(argv[0])
		if err != nil {
			return err
		}
		if len(argv) == 2 {
			return os.WriteFile(argv[1], data, 0o644)
		}
		_, err = stdout.Write(data)
		return err

	case "rm":
		if err := args(cmd, argv, 1, 1); err != nil {
			return err
		}
		freed, err := v.Delete(argv[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "removed %s (%d bytes)\n", argv[0], freed)
		return image.Save(cfg.image, v)

	case "stat":
		if err := args(cmd, argv, 1, 1); err != nil {
			return err
		}
		size, err := v.Size(argv[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s: %d bytes\n", argv[0], size)
		return nil

	case "ls":
		if err := args(cmd, argv, 0, 0); err != nil {
			return err
		}
		for _, f := range v.Files() {
			fmt.Fprintf(stdout, "%4d  %-14s  %8d  %v\n", f.Slot, f.Name, f.Size, f.Clusters)
		}
		s := v.Stats()
		fmt.Fprintf(stdout, "%d files, %d/%d clusters free, largest free run %d\n",
			s.Files, s.FreeClusters, s.Clusters, s.LargestFreeRun)
		return nil

	case "info":
		v.DisplayInfo(stdout)
		return nil

	case "dump":
		return v.Dump(stdout)

	case "bitmap":
		return report.WriteBitmap(stdout, v.Layout())

	case "report":
		if err := args(cmd, argv, 1, 1); err != nil {
			return err
		}
		return report.SaveClusterMap(argv[0], v.Layout(), cfg.image)

	case "check":
		if err := v.Check(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil
	}

	return errors.New("unknown command " + cmd)
}
