// Command tgit is a thin command-line front end over the tgit library
// packages. Errors are printed to stderr and exit with status 1,
// matching the teacher's own cmd/* error-handling idiom, rather than
// reaching for a CLI framework no file in the retrieved corpus imports
// directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tgit-dev/tgit/internal/archive"
	"github.com/tgit-dev/tgit/internal/gc"
	"github.com/tgit-dev/tgit/internal/lock"
	"github.com/tgit-dev/tgit/internal/manifest"
	"github.com/tgit-dev/tgit/internal/remote"
	"github.com/tgit-dev/tgit/internal/repo"
	"github.com/tgit-dev/tgit/internal/safetensor"
	"github.com/tgit-dev/tgit/internal/store"
	"github.com/tgit-dev/tgit/internal/tgiterr"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "restore":
		err = runRestore(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	case "gc":
		err = runGC(os.Args[2:])
	case "push":
		err = runPush(os.Args[2:])
	case "pull":
		err = runPull(os.Args[2:])
	case "remote":
		err = runRemote(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tgit: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tgit <add|restore|status|gc|push|pull|remote> [args]")
}

func openRepoStore() (string, *store.Store, error) {
	root, err := repo.FindRoot()
	if err != nil {
		return "", nil, err
	}
	s := store.New(repo.StorePath(root))
	if err := s.Init(); err != nil {
		return "", nil, err
	}
	return root, s, nil
}

func manifestPathFor(containerPath string) string {
	ext := filepath.Ext(containerPath)
	base := strings.TrimSuffix(containerPath, ext)
	return base + ".tgit.json"
}

func containerPathFor(manifestPath string) string {
	ext := filepath.Ext(manifestPath) // ".json"
	base := strings.TrimSuffix(manifestPath, ext)
	base = strings.TrimSuffix(base, ".tgit")
	return base + ".safetensors"
}

func runAdd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tgit add <path.safetensors>")
	}
	path := args[0]
	_, s, err := openRepoStore()
	if err != nil {
		return err
	}

	c, err := safetensor.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	m, err := archive.Process(c, s, true)
	if err != nil {
		return err
	}
	data, err := manifest.Encode(m)
	if err != nil {
		return err
	}
	outPath := manifestPathFor(path)
	if err := repo.WriteFileAtomic(outPath, data); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d tensors)\n", outPath, len(m.Tensors))
	return nil
}

func runRestore(args []string) error {
	var filter string
	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--filter" && i+1 < len(args) {
			filter = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	if len(rest) != 1 {
		return fmt.Errorf("usage: tgit restore [--filter term1,term2] <path.tgit.json>")
	}
	path := rest[0]
	_, s, err := openRepoStore()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return err
	}
	outPath := containerPathFor(path)
	if err := archive.Restore(m, s, outPath, filter); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outPath)
	return nil
}

func runStatus(args []string) error {
	root, s, err := openRepoStore()
	if err != nil {
		return err
	}
	hashes, err := s.Enumerate()
	if err != nil {
		return err
	}
	cfg, err := repo.LoadConfig(root)
	if err != nil {
		return err
	}
	fmt.Printf("repository: %s\n", root)
	fmt.Printf("blobs: %d\n", len(hashes))
	fmt.Printf("remotes: %d\n", len(cfg.Remotes))
	return nil
}

func runGC(args []string) error {
	root, s, err := openRepoStore()
	if err != nil {
		return err
	}

	var manifestPaths []string
	if len(args) > 0 {
		manifestPaths = args
	} else {
		matches, err := filepath.Glob("*.tgit.json")
		if err != nil {
			return err
		}
		manifestPaths = matches
	}

	held, err := lock.Acquire(root)
	var dryRun bool
	switch {
	case err == nil:
		defer held.Close()
	case errors.Is(err, tgiterr.ErrLockHeld):
		dryRun = true
	default:
		return err
	}

	report, err := gc.Collect(s, manifestPaths, dryRun)
	if err != nil {
		return err
	}
	fmt.Printf("kept %d, deleted %d\n", report.Kept, report.Deleted)
	return nil
}

func runPush(args []string) error {
	remoteName := "origin"
	rest := args
	if len(rest) >= 2 {
		remoteName = rest[0]
		rest = rest[1:]
	}
	if len(rest) != 1 {
		return fmt.Errorf("usage: tgit push [remote] <path.tgit.json>")
	}
	root, s, err := openRepoStore()
	if err != nil {
		return err
	}
	cfg, err := repo.LoadConfig(root)
	if err != nil {
		return err
	}
	url, ok := cfg.Remotes[remoteName]
	if !ok {
		return fmt.Errorf("unknown remote %q", remoteName)
	}
	t, err := remote.NewS3Transport(context.Background(), url)
	if err != nil {
		return err
	}

	manifestPath := rest[0]
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return err
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return err
	}
	return remote.Push(context.Background(), t, s, m, filepath.Base(manifestPath))
}

func runPull(args []string) error {
	remoteName := "origin"
	rest := args
	if len(rest) >= 2 {
		remoteName = rest[0]
		rest = rest[1:]
	}
	if len(rest) != 1 {
		return fmt.Errorf("usage: tgit pull [remote] <manifest-name>")
	}
	root, s, err := openRepoStore()
	if err != nil {
		return err
	}
	cfg, err := repo.LoadConfig(root)
	if err != nil {
		return err
	}
	url, ok := cfg.Remotes[remoteName]
	if !ok {
		return fmt.Errorf("unknown remote %q", remoteName)
	}
	t, err := remote.NewS3Transport(context.Background(), url)
	if err != nil {
		return err
	}

	m, err := remote.Pull(context.Background(), t, s, rest[0])
	if err != nil {
		return err
	}
	data, err := manifest.Encode(m)
	if err != nil {
		return err
	}
	return repo.WriteFileAtomic(rest[0], data)
}

func runRemote(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tgit remote <add|list|remove> [args]")
	}
	root, err := repo.FindRoot()
	if err != nil {
		return err
	}
	cfg, err := repo.LoadConfig(root)
	if err != nil {
		return err
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("usage: tgit remote add <name> <url>")
		}
		cfg.AddRemote(args[1], args[2])
		return cfg.Save(root)
	case "list":
		for name, url := range cfg.Remotes {
			fmt.Printf("%s\t%s\n", name, url)
		}
		return nil
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: tgit remote remove <name>")
		}
		delete(cfg.Remotes, args[1])
		return cfg.Save(root)
	default:
		return fmt.Errorf("unknown remote subcommand %q", args[0])
	}
}
