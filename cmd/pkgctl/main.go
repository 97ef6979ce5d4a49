package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oe-mirrors/pkgctl/internal/config"
	"github.com/oe-mirrors/pkgctl/internal/library"
	"github.com/oe-mirrors/pkgctl/internal/logging"
	"github.com/oe-mirrors/pkgctl/internal/pkgname"
)

var (
	buildVersion = "dev"
	buildTime    = ""
)

func main() {
	var root, target, conf string
	flag.StringVar(&root, "root", defaultRoot(), "Install root")
	flag.StringVar(&target, "target", defaultTarget(), "Target triple")
	flag.StringVar(&conf, "conf", "", "Optional opkg.conf-style global options file (overrides the download cache directory)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	logging.Debugf("main: command %s invoked with %d args", args[0], len(args)-1)

	ctx := context.Background()
	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "version", "--version", "-V":
		printVersion()
		return
	}

	lib := mustLibrary(root, target, conf)
	defer lib.Close()

	switch cmd {
	case "install":
		runInstall(ctx, lib, rest)
	case "remove":
		runRemove(ctx, lib, rest)
	case "update":
		runUpdate(ctx, lib, rest)
	case "list-installed":
		runListInstalled(lib)
	case "list-upgradable":
		runListUpgradable(ctx, lib)
	case "search":
		runSearch(ctx, lib, rest)
	case "info":
		runInfo(ctx, lib, rest)
	case "depends":
		runDepends(ctx, lib, rest)
	case "whatdepends":
		runWhatDepends(ctx, lib, rest)
	case "protect":
		runProtect(lib, rest, true)
	case "unprotect":
		runProtect(lib, rest, false)
	default:
		usage()
		os.Exit(1)
	}
}

func runInstall(ctx context.Context, lib *library.Library, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("install command expects at least one package name"))
	}
	names := mustNames(args)
	lib.Install(names...)
	if err := lib.Apply(ctx); err != nil {
		fatal(err)
	}
	for _, n := range names {
		fmt.Printf("installed %s\n", n)
	}
}

func runRemove(ctx context.Context, lib *library.Library, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("remove command expects at least one package name"))
	}
	names := mustNames(args)
	lib.Uninstall(names...)
	if err := lib.Apply(ctx); err != nil {
		fatal(err)
	}
	for _, n := range names {
		fmt.Printf("removed %s\n", n)
	}
}

func runUpdate(ctx context.Context, lib *library.Library, args []string) {
	names := mustNames(args)
	if err := lib.Update(names...); err != nil {
		fatal(err)
	}
	if err := lib.Apply(ctx); err != nil {
		fatal(err)
	}
	fmt.Println("packages updated")
}

func runListInstalled(lib *library.Library) {
	installed, err := lib.Backend().InstalledPackages()
	if err != nil {
		fatal(err)
	}
	for _, n := range installed {
		fmt.Println(n)
	}
}

func runListUpgradable(ctx context.Context, lib *library.Library) {
	upgradable, err := lib.ListUpgradable(ctx)
	if err != nil {
		fatal(err)
	}
	for _, u := range upgradable {
		fmt.Printf("%s %s -> %s\n", u.Name, u.InstalledVersion, u.AvailableVersion)
	}
}

func runSearch(ctx context.Context, lib *library.Library, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("search command expects a query"))
	}
	query := strings.Join(args, " ")
	results, err := lib.Search(ctx, query)
	if err != nil {
		fatal(err)
	}
	for _, r := range results {
		fmt.Printf("%s (%.3f)\n", r.Name, r.Score)
	}
}

func runInfo(ctx context.Context, lib *library.Library, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("info command expects a package name"))
	}
	for _, n := range mustNames(args) {
		pkg, err := lib.Backend().GetPackageDetail(ctx, n)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Name: %s\nVersion: %s\nTarget: %s\nDepends: %s\n",
			pkg.Name, pkg.Version, pkg.Target, strings.Join(pkg.Depends, ", "))
	}
}

func runDepends(ctx context.Context, lib *library.Library, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("depends command expects a package name"))
	}
	for _, n := range mustNames(args) {
		pkg, err := lib.Backend().GetPackageDetail(ctx, n)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%s:\n", n)
		for _, dep := range pkg.Depends {
			fmt.Printf("  %s\n", dep)
		}
	}
}

func runWhatDepends(ctx context.Context, lib *library.Library, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("whatdepends expects exactly one package name"))
	}
	target := mustNames(args)[0]
	deps, err := lib.ReverseDependencies(ctx, target)
	if err != nil {
		fatal(err)
	}
	for _, d := range deps {
		fmt.Println(d)
	}
}

func runProtect(lib *library.Library, args []string, protect bool) {
	if len(args) == 0 {
		fatal(fmt.Errorf("protect/unprotect expects at least one package name"))
	}
	for _, n := range mustNames(args) {
		if protect {
			lib.Backend().Protect(n)
		} else {
			lib.Backend().Unprotect(n)
		}
	}
}

func mustNames(raw []string) []pkgname.Name {
	out := make([]pkgname.Name, 0, len(raw))
	for _, s := range raw {
		n, err := pkgname.New(s)
		if err != nil {
			fatal(err)
		}
		out = append(out, n)
	}
	return out
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options...] sub-command [arguments...]\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "\nPackage Manipulation:")
	fmt.Fprintln(flag.CommandLine.Output(), "  install <pkgs>                  Queue and apply install of package(s)")
	fmt.Fprintln(flag.CommandLine.Output(), "  remove <pkgs>                   Queue and apply removal of package(s)")
	fmt.Fprintln(flag.CommandLine.Output(), "  update [pkgs]                   Reinstall package(s), or all if none given")
	fmt.Fprintln(flag.CommandLine.Output(), "  protect <pkgs>                  Mark package(s) as protected from removal")
	fmt.Fprintln(flag.CommandLine.Output(), "  unprotect <pkgs>                Clear the protected flag on package(s)")
	fmt.Fprintln(flag.CommandLine.Output(), "\nInformational Commands:")
	fmt.Fprintln(flag.CommandLine.Output(), "  list-installed                  List installed packages")
	fmt.Fprintln(flag.CommandLine.Output(), "  list-upgradable                 List installed packages whose repository version differs")
	fmt.Fprintln(flag.CommandLine.Output(), "  search <query>                  Fuzzy-search the repository index by name")
	fmt.Fprintln(flag.CommandLine.Output(), "  info <pkg>                      Display package manifest metadata")
	fmt.Fprintln(flag.CommandLine.Output(), "  depends <pkg>                   Show a package's declared dependencies")
	fmt.Fprintln(flag.CommandLine.Output(), "  whatdepends <pkg>               List installed packages depending on the target")
	fmt.Fprintln(flag.CommandLine.Output(), "  version                         Print version information")
	fmt.Fprintln(flag.CommandLine.Output(), "\nOptions:")
	flag.PrintDefaults()
}

func defaultRoot() string {
	if env := os.Getenv("PKGCTL_ROOT"); env != "" {
		return env
	}
	return "/"
}

func defaultTarget() string {
	if env := os.Getenv("PKGCTL_TARGET"); env != "" {
		return env
	}
	return "x86_64-unknown-redox"
}

// mustLibrary constructs the Library. With no -conf flag it uses
// library.New's default cache/key directories; with -conf it loads the
// supplemented opkg.conf-style global options file and uses its cache_dir
// (or tmp_dir) option to relocate the download cache.
func mustLibrary(root, target, conf string) *library.Library {
	if conf == "" {
		lib, err := library.New(root, target)
		if err != nil {
			fatal(err)
		}
		return lib
	}

	cfg, err := config.Load(conf)
	if err != nil {
		fatal(err)
	}
	cacheDir, err := config.EnsureCacheDir(cfg)
	if err != nil {
		fatal(err)
	}
	lib, err := library.NewWithCache(root, target, cacheDir, filepath.Join(cacheDir, "keys"))
	if err != nil {
		fatal(err)
	}
	return lib
}

func printVersion() {
	ts := buildTime
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	logging.Debugf("main: printing version %s built at %s", buildVersion, ts)
	fmt.Printf("pkgctl %s (%s)\n", buildVersion, ts)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
