// Command obsplot renders plot specifications.
//
// Usage:
//
//	obsplot render [-config file] [-o out.html] spec.json
//	obsplot serve [-config file] [-port n] [-watch spec.json] [-interval 1s]
//
// render writes the rendered HTML fragment for a spec file ("-" reads stdin)
// and exits non-zero when the spec fails to render. serve runs the dashboard
// and, with -watch, re-renders whenever the spec file changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chosenoffset/obsplot/pkg/obsplot"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "render":
		err = runRender(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("obsplot %s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: obsplot render [-config file] [-o out.html] spec.json")
	fmt.Fprintln(os.Stderr, "       obsplot serve [-config file] [-port n] [-watch spec.json] [-interval 1s]")
}

func loadConfig(path string) (*obsplot.Config, error) {
	if path == "" {
		return obsplot.DefaultConfig(), nil
	}
	return obsplot.LoadConfig(path)
}

func readSpec(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	output := fs.String("o", "", "output file (default stdout)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("expected exactly one spec file")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	raw, err := readSpec(fs.Arg(0))
	if err != nil {
		return err
	}
	w, err := obsplot.NewWidget(cfg)
	if err != nil {
		return err
	}
	if err := w.SetSpec(raw); err != nil {
		return err
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if _, err := io.WriteString(out, w.HTML()+"\n"); err != nil {
		return err
	}
	if stats := w.GetRenderStats(); stats.Failures > 0 {
		return fmt.Errorf("render failed: %s", stats.LastError)
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	port := fs.Int("port", -1, "dashboard port (overrides config)")
	watch := fs.String("watch", "", "spec file to watch")
	interval := fs.Duration("interval", time.Second, "watch poll interval")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *port >= 0 {
		cfg.Port = *port
	}
	w, err := obsplot.NewWidget(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.Start(); err != nil {
			return err
		}
		log.Printf("[obsplot] dashboard at http://%s", w.Addr())
		<-ctx.Done()
		w.Stop()
		return nil
	})
	if *watch != "" {
		g.Go(func() error {
			return watchSpec(ctx, w, *watch, *interval)
		})
	}
	return g.Wait()
}

// watchSpec polls path and sets the widget spec whenever the file's
// modification time or size changes. Unreadable or invalid files are logged
// and retried on the next change.
func watchSpec(ctx context.Context, w *obsplot.Widget, path string, interval time.Duration) error {
	var lastMod time.Time
	var lastSize int64 = -1
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			log.Printf("[obsplot] watch %s: %v", path, err)
		case !info.ModTime().Equal(lastMod) || info.Size() != lastSize:
			lastMod, lastSize = info.ModTime(), info.Size()
			raw, err := os.ReadFile(path)
			if err != nil {
				log.Printf("[obsplot] read %s: %v", path, err)
				break
			}
			if err := w.SetSpec(raw); err == nil {
				log.Printf("[obsplot] loaded %s", path)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
