// Command hornetd runs the hornet full node daemon.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tobysharp/hornet/config"
	"github.com/tobysharp/hornet/internal/log"
	"github.com/tobysharp/hornet/internal/node"
)

// version is stamped by the build.
var version = "0.1.0-dev"

func main() {
	flags, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if flags.Help {
		fmt.Println("hornetd - hornet full node daemon")
		fmt.Println("usage: hornetd [flags]")
		return
	}
	if flags.Version {
		fmt.Println("hornetd", version)
		return
	}

	cfg := config.Default(flags.Network)
	flags.Apply(cfg)

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(1)
	}
	if err := n.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "start:", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Node.Info().Stringer("signal", s).Msg("shutting down")
	n.Stop()
}
