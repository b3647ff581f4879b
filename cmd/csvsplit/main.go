// Command csvsplit splits a CSV file into parts of at most --chunk-size data
// rows each, repeating the header row in every part. Parts are written next
// to the input as <stem>_partN.csv unless --out-dir is given.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"github.com/infernocod3s/csv-splitter/internal/job"
	"github.com/infernocod3s/csv-splitter/internal/sink"
	"github.com/infernocod3s/csv-splitter/internal/split"
)

const maxInputSize = 200 << 20

type cliArgs struct {
	Input struct {
		Path string `positional-arg-name:"<input.csv>" required:"1"`
	} `positional-args:"yes" required:"true"`
	ChunkSize int    `short:"c" long:"chunk-size" default:"49999" description:"Maximum data rows per output part"`
	OutDir    string `short:"o" long:"out-dir" description:"Directory for output parts (default: next to the input)"`
	Verbose   bool   `short:"v" long:"verbose" description:"Show per-part progress"`
}

var (
	green   = color.New(color.FgGreen).SprintFunc()
	grey    = color.New(color.FgHiBlack).SprintFunc()
	boldred = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

func setup() *cliArgs {
	args := &cliArgs{}
	parser := flags.NewParser(args, flags.HelpFlag|flags.PrintErrors|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	if args.ChunkSize < 1 {
		fmt.Println(boldred("chunk size must be at least 1"))
		os.Exit(1)
	}

	return args
}

func main() {
	args := setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, args); err != nil {
		msg := job.MapError(err)
		fmt.Fprintln(os.Stderr, boldred(msg.Message))
		if msg.Action != "" {
			fmt.Fprintln(os.Stderr, grey(msg.Action))
		}
		os.Exit(1)
	}
}

// partPattern builds the output name pattern from the input stem. Literal %
// in the stem must be doubled so only the chunk index verb survives.
func partPattern(stem string) string {
	return strings.ReplaceAll(stem, "%", "%%") + "_part%d.csv"
}

func run(ctx context.Context, args *cliArgs) error {
	path, err := filepath.Abs(args.Input.Path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > maxInputSize {
		return job.ErrTooLarge
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	outDir := args.OutDir
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pattern := partPattern(stem)
	out := sink.NewFileSink(outDir, pattern)

	var progress split.ProgressFunc
	if args.Verbose {
		progress = func(rows, total int64, chunks int) {
			fmt.Printf("%s %s (%d/%d rows)\n",
				green(" V "),
				grey(fmt.Sprintf(pattern, chunks)),
				rows, total)
		}
	}

	result, err := split.Split(ctx, f, out, progress, split.Options{Capacity: args.ChunkSize})
	if err != nil {
		return err
	}

	fmt.Printf("%s split %d rows into %d parts in %s\n",
		green("OK"), result.TotalRows, result.Chunks, result.Duration.Round(time.Millisecond))
	if result.Fallback && args.Verbose {
		fmt.Println(grey(fmt.Sprintf(" - input decoded as %s", result.Encoding)))
	}
	return nil
}
