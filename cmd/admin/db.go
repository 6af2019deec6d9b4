package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"survival.io/internal/persistence/statsdb"
)

func openStore(dataDir, dbPath string) *statsdb.Store {
	path := strings.TrimSpace(dbPath)
	if path == "" {
		path = filepath.Join(dataDir, "survival.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	st, err := statsdb.Open(path, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return st
}

func dbFlags(name string) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	return fs, dataDir, dbPath
}

func leaderboardCmd(args []string) {
	fs, dataDir, dbPath := dbFlags("leaderboard")
	limit := fs.Int("limit", 10, "result limit")
	_ = fs.Parse(args)

	st := openStore(*dataDir, *dbPath)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rows, err := st.Leaderboard(ctx, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for i, r := range rows {
		fmt.Printf("%3d  %-20s score=%d kills=%d deaths=%d resources=%d games=%d\n",
			i+1, r.Username, r.TotalScore, r.Kills, r.Deaths, r.ResourcesCollected, r.GamesPlayed)
	}
}

func statsCmd(args []string) {
	fs, dataDir, dbPath := dbFlags("stats")
	userID := fs.Int64("user", 0, "user id (required)")
	_ = fs.Parse(args)
	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(2)
	}

	st := openStore(*dataDir, *dbPath)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := st.Stats(ctx, *userID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	b, _ := json.MarshalIndent(s, "", "  ")
	fmt.Println(string(b))
}

func digestsCmd(args []string) {
	fs, dataDir, dbPath := dbFlags("digests")
	_ = fs.Parse(args)

	st := openStore(*dataDir, *dbPath)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d, err := st.CatalogDigests(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	b, _ := json.MarshalIndent(d, "", "  ")
	fmt.Println(string(b))
}
