package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	persistlog "survival.io/internal/persistence/log"
	"survival.io/internal/sim/world"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "leaderboard":
		leaderboardCmd(os.Args[2:])
	case "stats":
		statsCmd(os.Args[2:])
	case "digests":
		digestsCmd(os.Args[2:])
	case "events":
		eventsCmd(os.Args[2:])
	case "state":
		stateCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <leaderboard|stats|digests|events|state> [flags]")
}

var errStop = errors.New("stop")

// eventFilter selects log lines by kind and player.
type eventFilter struct {
	kinds  map[string]bool
	player string
}

func newEventFilter(kinds, player string) eventFilter {
	f := eventFilter{player: strings.TrimSpace(player)}
	for _, k := range strings.Split(kinds, ",") {
		if k = strings.TrimSpace(k); k != "" {
			if f.kinds == nil {
				f.kinds = map[string]bool{}
			}
			f.kinds[k] = true
		}
	}
	return f
}

func (f eventFilter) match(ev world.GameEvent) bool {
	if f.kinds != nil && !f.kinds[ev.Kind] {
		return false
	}
	if f.player != "" && ev.Actor != f.player && ev.Target != f.player {
		return false
	}
	return true
}

// dumpEvents writes matching events as JSON lines and returns how many matched.
func dumpEvents(w io.Writer, files []string, f eventFilter, limit int) (int, error) {
	enc := json.NewEncoder(w)
	n := 0
	for _, path := range files {
		err := persistlog.ReadEvents(path, func(ev world.GameEvent) error {
			if !f.match(ev) {
				return nil
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
			n++
			if limit > 0 && n >= limit {
				return errStop
			}
			return nil
		})
		if errors.Is(err, errStop) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("%s: %w", path, err)
		}
	}
	return n, nil
}

func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kinds := fs.String("kind", "", "comma separated event kinds (optional)")
	player := fs.String("player", "", "actor or target player id (optional)")
	limit := fs.Int("limit", 0, "stop after this many events (0 = all)")
	_ = fs.Parse(args)

	files, err := persistlog.EventFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no event logs found")
		os.Exit(2)
	}
	if _, err := dumpEvents(os.Stdout, files, newEventFilter(*kinds, *player), *limit); err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
}
