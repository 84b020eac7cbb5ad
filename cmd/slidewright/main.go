// Command slidewright turns documents into slide presentations.
//
// Usage:
//
//	slidewright serve [--config FILE] [--port N]
//	slidewright generate FILE|- [--format json|html] [--output FILE]
//	slidewright migrate
//	slidewright version
//
// Configuration is read from the YAML file named by --config or
// SLIDEWRIGHT_CONFIG, then ./config.yaml, then
// $HOME/.config/slidewright/config.yaml, with SLIDEWRIGHT_* environment
// overrides on top.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
