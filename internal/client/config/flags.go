package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/atmadmin/internal/flagx"
)

// parseFlags applies -a, -d, -t, -p and -l from args. Other flags are
// ignored so the JSON loader's -c can share the command line.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("atmadmin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the REST API")
	fs.StringVar(&cfg.TokenDBPath, "d", cfg.TokenDBPath, "path of the local token database")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.IntVar(&cfg.PageSize, "p", cfg.PageSize, "default page size")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, "a", "d", "t", "p", "l")); err != nil {
		return fmt.Errorf("flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
