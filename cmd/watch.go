package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/jsonpartial/internal/loader"
	"github.com/zjrosen/jsonpartial/internal/log"
	"github.com/zjrosen/jsonpartial/internal/pubsub"
	"github.com/zjrosen/jsonpartial/internal/textdiff"
	"github.com/zjrosen/jsonpartial/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-render a document whenever it or its partials change",
		Long: `Render FILE, then watch it and the configured partials. After each burst
of changes the partials are re-synced and the document re-rendered; the
output is printed as a line diff against the previous render.

Examples:
  jsonpartial watch page.json --partials ./partials`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyStrictFlags(cmd, a)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd, args[0])
		},
	}
	addStrictFlags(cmd)
	return cmd
}

func (a *app) watch(ctx context.Context, cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()
	engine := a.newEngine()

	broker := pubsub.NewBroker[loader.Change]()
	defer broker.Close()
	changes := broker.Subscribe(ctx)

	l, err := a.loadPartials(ctx, engine, loader.WithEvents(broker))
	if err != nil {
		return err
	}
	drain(changes)

	renderFile := func() (string, error) {
		text, origin, err := readDocument(cmd, []string{path})
		if err != nil {
			return "", err
		}
		return a.render(ctx, engine, text, origin)
	}

	previous, err := renderFile()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, previous); err != nil {
		return err
	}

	cfg := watcher.DefaultConfig(append(a.watchPaths(), path)...)
	cfg.Debounce = a.cfg.Watch.Debounce
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	if err != nil {
		return err
	}

	printer := textdiff.NewPrinter(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-onChange:
		}

		result, err := l.Sync(ctx)
		if err != nil {
			log.ErrorErr(log.CatLoader, "failed to reload partials", err)
			continue
		}
		reportSync(cmd.ErrOrStderr(), result)
		for _, event := range drain(changes) {
			log.Debug(log.CatLoader, "partial changed", "type", event.Type, "name", event.Payload.Name, "origin", event.Payload.Origin)
		}
		if dropped := broker.Dropped(); dropped > 0 {
			log.Debug(log.CatLoader, "change events dropped", "count", dropped)
		}

		next, err := renderFile()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		if next == previous {
			log.Debug(log.CatWatcher, "output unchanged", "path", path)
			continue
		}

		lines := textdiff.Lines(previous, next)
		added, removed := textdiff.Stats(lines)
		fmt.Fprintf(out, "--- %s +%d -%d\n", time.Now().Format(time.TimeOnly), added, removed)
		fmt.Fprint(out, printer.Render(lines, a.cfg.Watch.Context))
		previous = next
	}
}

// reportSync prints one line per partial changed by a sync.
func reportSync(w io.Writer, result loader.SyncResult) {
	for _, group := range []struct {
		event pubsub.EventType
		names []string
	}{
		{pubsub.AddedEvent, result.Added},
		{pubsub.UpdatedEvent, result.Updated},
		{pubsub.RemovedEvent, result.Removed},
	} {
		for _, name := range group.names {
			fmt.Fprintf(w, "%s %s\n", group.event, name)
		}
	}
}

// drain returns the events already waiting on ch.
func drain(ch <-chan pubsub.Event[loader.Change]) []pubsub.Event[loader.Change] {
	var events []pubsub.Event[loader.Change]
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}
