package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string

	// P2P
	P2PPort    int
	Seeds      string
	NoDiscover bool

	// Pipeline
	PipelineDepth int

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool
}

// ParseFlags parses command-line flags.
func ParseFlags() (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("hornetd", flag.ContinueOnError)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	fs.StringVar(&f.Network, "network", "mainnet", "Network (mainnet, testnet, regnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")

	fs.IntVar(&f.P2PPort, "port", 0, "P2P listen port")
	fs.StringVar(&f.Seeds, "seeds", "", "Comma-separated seed multiaddresses")
	fs.BoolVar(&f.NoDiscover, "nodiscover", false, "Disable DHT peer discovery")

	fs.IntVar(&f.PipelineDepth, "pipelinedepth", 0, "Block validation worker count")

	fs.StringVar(&f.LogLevel, "loglevel", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "logfile", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "logjson", false, "Log JSON to stdout")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}
	if args := fs.Args(); len(args) > 0 {
		return nil, fmt.Errorf("unexpected argument %q", args[0])
	}
	return f, nil
}

// Apply overlays explicitly set flags onto a configuration.
func (f *Flags) Apply(cfg *Config) {
	if f.Network != "" {
		cfg.Network = f.Network
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.P2PPort != 0 {
		cfg.P2P.Port = f.P2PPort
	}
	if f.Seeds != "" {
		for _, s := range strings.Split(f.Seeds, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.P2P.Seeds = append(cfg.P2P.Seeds, s)
			}
		}
	}
	if f.NoDiscover {
		cfg.P2P.NoDiscover = true
	}
	if f.PipelineDepth > 0 {
		cfg.Pipeline.Depth = f.PipelineDepth
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.LogJSON {
		cfg.Log.JSON = true
	}
}
