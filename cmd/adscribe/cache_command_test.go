package main

import (
	"encoding/json"
	"testing"

	"adscribe/internal/cache"
	"adscribe/internal/testsupport"
)

func TestCacheStatsAndClean(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cache", "stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	var stats cache.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats %q: %v", out, err)
	}
	if stats.Entries != 0 {
		t.Fatalf("expected empty cache, got %+v", stats)
	}

	out, _, err = runCLI(t, []string{"cache", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, env.cfg.Cache.Dir)

	out, _, err = runCLI(t, []string{"cache", "clean"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clean: %v", err)
	}
	requireContains(t, out, "0 remain")
}

func TestCacheDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutCache())

	for _, sub := range []string{"stats", "clean"} {
		out, _, err := runCLI(t, []string{"cache", sub}, env.configPath)
		if err != nil {
			t.Fatalf("cache %s: %v", sub, err)
		}
		requireContains(t, out, "disabled")
	}
}
