// Command soil loads a .soil binary and runs it against the Soil virtual
// machine or, with -api-server, serves an HTTP/WebSocket inspector instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soilvm/soil/api"
	"github.com/soilvm/soil/config"
	"github.com/soilvm/soil/debugger"
	"github.com/soilvm/soil/format"
	"github.com/soilvm/soil/hostsys"
	"github.com/soilvm/soil/interp"
	"github.com/soilvm/soil/loader"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

const apiShutdownTimeout = 5 * time.Second

func main() {
	var (
		showVersion   = flag.Bool("version", false, "Show version information")
		configPath    = flag.String("config", "", "Path to a TOML configuration file")
		memorySize    = flag.Uint64("memory-size", 0, "Guest memory size in bytes (overrides config)")
		fsRoot        = flag.String("fsroot", "", "Restrict host-file syscalls to this directory (overrides config)")
		apiServerMode = flag.Bool("api-server", false, "Start the HTTP/WebSocket inspector instead of running a file directly")
		apiPort       = flag.Int("port", 0, "Inspector port (used with -api-server, overrides config)")
		traceCalls    = flag.Bool("trace", false, "Print each call/ret to stderr")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("soil %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *memorySize != 0 {
		cfg.Memory.SizeBytes = *memorySize
	}
	if *fsRoot != "" {
		cfg.Filesystem.Root = *fsRoot
	}
	if *apiPort != 0 {
		cfg.Inspector.Port = *apiPort
	}
	cfg.Trace.Calls = cfg.Trace.Calls || *traceCalls

	if *apiServerMode {
		runAPIServer(cfg)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: soil [flags] <file.soil>")
		os.Exit(2)
	}
	os.Exit(runFile(flag.Arg(0), cfg))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runFile(path string, cfg *config.Config) int {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied CLI argument
	if err != nil {
		fmt.Fprintf(os.Stderr, "soil: %v\n", err)
		return 1
	}

	bin, err := format.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "soil: %v\n", err)
		return 1
	}

	host := hostsys.New(cfg)
	defer host.Close()

	vm, err := loader.Load(bin, cfg.Memory.SizeBytes, host.Table())
	if err != nil {
		fmt.Fprintf(os.Stderr, "soil: %v\n", err)
		return 1
	}

	resolver := debugger.NewSymbolResolver(bin.LabelMap())
	if cfg.Trace.Calls {
		vm.Trace = func(ip uint64, inst interp.Instruction) {
			if inst.Op != interp.OpCall && inst.Op != interp.OpRet {
				return
			}
			fmt.Fprintf(os.Stderr, "%s: %s\n", resolver.Format(ip), inst)
		}
	}

	if err := vm.RunForever(); err != nil {
		fmt.Fprintf(os.Stderr, "soil: %v\n", err)
		return 1
	}

	switch vm.Status.Kind {
	case interp.StatusExited:
		return int(vm.Status.ExitCode)
	case interp.StatusPanicked:
		fmt.Fprintln(os.Stderr, "soil: panicked")
		for _, frame := range debugger.BacktraceFromStatus(vm.Status, resolver) {
			if frame.Symbol != "" {
				fmt.Fprintf(os.Stderr, "  at %s (0x%016x)\n", frame.Symbol, frame.Address)
			} else {
				fmt.Fprintf(os.Stderr, "  at 0x%016x\n", frame.Address)
			}
		}
		return 1
	case interp.StatusError:
		fmt.Fprintf(os.Stderr, "soil: %s\n", vm.Status.Message)
		return 1
	default:
		return 0
	}
}

func runAPIServer(cfg *config.Config) {
	server := api.NewServer(cfg)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sig
		ctx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
		defer cancel()
		server.Shutdown(ctx) //nolint:errcheck
	}()

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "soil: inspector server: %v\n", err)
		os.Exit(1)
	}
}
