package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sinz/cp-debugger/internal/config"
	"github.com/sinz/cp-debugger/internal/dap"
	"github.com/sinz/cp-debugger/internal/errors"
	"github.com/sinz/cp-debugger/internal/host"
	"github.com/sinz/cp-debugger/internal/host/static"
	"github.com/sinz/cp-debugger/internal/mcp"
	"github.com/sinz/cp-debugger/internal/sourcemap"
	"github.com/sinz/cp-debugger/internal/version"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	port := flag.Int("port", config.DefaultPort, "Port the debug adapter listens on")
	packsDir := flag.String("packs", "", "Directory holding content packs, one per sub-directory")
	tokensPath := flag.String("tokens", "", "Path to the token state file (YAML)")
	enableMCP := flag.Bool("mcp", false, "Also serve MCP tools over stdio")
	inspect := flag.String("inspect", "", "Connect to a running debugger at host:port, print its snapshot and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	help := flag.Bool("help", false, "Show help and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	if *inspect != "" {
		if err := runInspect(*inspect); err != nil {
			log.Fatalf("Inspect failed: %v", err)
		}
		os.Exit(0)
	}

	// Look for a configuration file next to the packs when none was given
	if *configPath == "" {
		if found, err := config.Discover(""); err == nil {
			log.Printf("Using configuration %s", found)
			*configPath = found
		}
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "packs":
			cfg.PacksDir = *packsDir
		case "tokens":
			cfg.TokenStatePath = *tokensPath
		case "mcp":
			cfg.EnableMCP = *enableMCP
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sm := sourcemap.New()

	var loader *static.Loader
	hostFn := func() host.Host { return nil }
	if cfg.HasPacks() {
		loader = static.NewLoader(cfg.PacksDir, cfg.TokenStatePath, sm)
		hostFn = loader.Host
		if err := loader.Load(); err != nil {
			log.Printf("Error: %v", err)
		}
	} else {
		log.Printf("Error: %v", errors.HostUnavailable("no packs directory configured; sessions will see empty snapshots"))
	}

	manager := dap.NewSessionManager(sm, hostFn, cfg.MaxSessions)
	listening := true
	if err := manager.Start(cfg.Address()); err != nil {
		log.Printf("Error: %v", err)
		listening = false
	}

	var refresh mcp.RefreshFunc
	if loader != nil {
		refresh = func() (int, error) {
			if err := loader.Reload(); err != nil {
				return 0, err
			}
			return manager.InvalidateAll(), nil
		}
	}

	// Handle shutdown and refresh signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	shutdown := func() {
		log.Println("Shutting down...")
		manager.Close()
		os.Exit(0)
	}

	go func() {
		for sig := range sigCh {
			if sig != syscall.SIGHUP {
				shutdown()
			}
			if refresh == nil {
				log.Println("Ignoring SIGHUP: no packs directory configured")
				continue
			}
			n, err := refresh()
			if err != nil {
				log.Printf("Error: refresh failed: %v", err)
				continue
			}
			log.Printf("Refreshed content, %d sessions notified", n)
		}
	}()

	if cfg.EnableMCP {
		server := mcp.NewServer(cfg, manager, sm, hostFn, refresh)
		log.Println("MCP server starting on stdio...")
		if err := server.ServeStdio(); err != nil {
			manager.Close()
			log.Fatalf("Server error: %v", err)
		}
		manager.Close()
		return
	}

	if !listening {
		os.Exit(1)
	}
	select {}
}

// runInspect connects as a debugger client and prints the whole snapshot tree.
func runInspect(address string) error {
	client, err := dap.Dial(address)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Initialize(version.Name); err != nil {
		return err
	}
	if err := client.ConfigurationDone(); err != nil {
		return err
	}

	snap, err := client.Dump()
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	return client.Disconnect()
}

func printHelp() {
	fmt.Println(`cp-debugger: token state debugger for content packs

Serves the Debug Adapter Protocol (DAP) over TCP so an editor can browse the
token state of loaded content packs as threads, stack frames and variables, and
set breakpoints on individual patches to inspect the tokens they consume.

USAGE:
    cp-debugger [OPTIONS]

OPTIONS:
    -config <path>       Path to configuration file (JSON with comments).
                         Defaults to the nearest .cp-debugger.json found from
                         the working directory upwards.
    -port <port>         Port the debug adapter listens on (default: 1337)
    -packs <dir>         Directory holding content packs
    -tokens <path>       Token state file (YAML)
    -mcp                 Also serve MCP tools over stdio
    -inspect <addr>      Print the snapshot of a running debugger and exit
    -version             Show version and exit
    -help                Show this help message

CONFIGURATION:
    {
        // relative paths resolve against the configuration file
        "host": "0.0.0.0",
        "port": 1337,
        "packsDir": "${userHome}/Games/Stardew Valley/Mods",
        "tokenStatePath": "${configDir}/tokens.yaml",
        "enableMcp": false,
        "maxSessions": 0
    }

TOKEN STATE:
    global:
      Season: spring
      Children: [Abby, Bob]
      Spouse:
        ready: false
        unready: [Relationship]
    packs:
      author.pack:
        local:
          ConfigOption: on

SIGNALS:
    SIGHUP reloads packs and token state and tells connected editors to
    re-fetch their variables.

MCP TOOLS:
    debugger_list_sessions   List connected debugger sessions
    debugger_source_map      List tracked files or the patches of one file
    debugger_snapshot        Build a snapshot, optionally with breakpoints
    debugger_refresh         Reload content and invalidate sessions`)
}
