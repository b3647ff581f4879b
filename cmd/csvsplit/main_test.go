package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestPartPattern(t *testing.T) {
	tests := []struct {
		stem string
		want string
	}{
		{stem: "orders", want: "orders_part1.csv"},
		{stem: "re%port", want: "re%port_part1.csv"},
		{stem: "100%", want: "100%_part1.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.stem, func(t *testing.T) {
			if got := fmt.Sprintf(partPattern(tt.stem), 1); got != tt.want {
				t.Errorf("pattern for %q = %q, want %q", tt.stem, got, tt.want)
			}
		})
	}
}

func TestRunSplitsFileWithPercentInName(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "re%port.csv")
	if err := os.WriteFile(input, []byte("a,b\nr1\nr2\nr3\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	args := &cliArgs{ChunkSize: 2, OutDir: dir}
	args.Input.Path = input

	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, name := range []string{"re%port_part1.csv", "re%port_part2.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected output %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "re%port_part2.csv"))
	if err != nil {
		t.Fatalf("read part 2: %v", err)
	}
	if got, want := string(data), "a,b\nr3\n"; got != want {
		t.Errorf("part 2 = %q, want %q", got, want)
	}
}
