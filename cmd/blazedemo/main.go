// Command blazedemo renders a live feed of posts stored in SQLite.
//
// On a terminal it runs an interactive view; otherwise it prints the feed's
// HTML once it is ready.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/livefir/blaze"
	"github.com/livefir/blaze/collection"
	"github.com/livefir/blaze/internal/config"
	"github.com/livefir/blaze/internal/metrics"
	"github.com/livefir/blaze/pubsub"
	"github.com/livefir/blaze/view"
)

const readyTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", config.ConfigFileName, "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if interactive {
		// The alt screen owns stdout and stderr.
		if cfg.Debug {
			f, err := tea.LogToFile("blazedemo.log", "")
			if err != nil {
				return err
			}
			defer f.Close()
		} else {
			log.SetOutput(io.Discard)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := collection.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	faker := gofakeit.New(0)
	if err := seed(ctx, store, cfg.Collection, cfg.Seed, faker); err != nil {
		return err
	}

	collector := metrics.NewCollector()
	cache := collection.NewCache()
	server := pubsub.NewServer(pubsub.WithSink(cache), pubsub.WithMetrics(collector))
	defer server.Close()
	if err := server.Publish(cfg.Collection, store.LivePublication(cfg.Collection)); err != nil {
		return err
	}

	doc := view.NewDocument(
		view.WithConnection(server),
		view.WithMinify(cfg.Minify),
		view.WithDebug(cfg.Debug),
		view.WithMetrics(collector),
	)
	f, err := newFeed(ctx, store, cache, cfg.Collection, faker)
	if err != nil {
		return err
	}
	v, err := blaze.Render(doc, f.page)
	if err != nil {
		return err
	}
	defer func() {
		if err := doc.Remove(v); err != nil {
			log.Printf("blazedemo: removing feed: %v", err)
		}
		log.Printf("blazedemo: metrics %+v", collector.GetMetrics())
	}()

	if !interactive {
		if err := waitReady(doc, blaze.InstanceOf(v), readyTimeout); err != nil {
			return err
		}
		fmt.Println(doc.HTML())
		return nil
	}

	_, err = tea.NewProgram(newModel(doc), tea.WithAltScreen()).Run()
	return err
}

// waitReady flushes doc until inst's subscriptions are ready.
func waitReady(doc *view.Document, inst *blaze.Instance, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !inst.SubscriptionsReady() {
		if time.Now().After(deadline) {
			return fmt.Errorf("feed not ready after %s", timeout)
		}
		if err := doc.Flush(); err != nil {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	return doc.Flush()
}
