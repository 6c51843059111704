// Package cli is the command-line entry point. The concrete-syntax parser
// is an external collaborator, so the binary demonstrates the engine on a
// built-in specification; embedders drive the pipeline with their own
// parsed specs through the same call.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/cozylang/cozy/internal/opts"
	"github.com/cozylang/cozy/internal/pipeline"
	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

// Entry runs the CLI and returns its exit code.
func Entry(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cozy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	optionsFile := fs.String("options", "", "YAML file of engine options")
	logDir := fs.String("log-dir", "", "directory for per-query synthesis logs")
	timeout := fs.Duration("timeout", 30*time.Second, "synthesis time budget")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	version := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *version {
		fmt.Fprintf(stdout, "cozy %s\n", Version)
		return 0
	}

	logrus.SetOutput(stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:   isTerminal(stderr),
		FullTimestamp: true,
	})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if *optionsFile != "" {
		if err := opts.LoadFile(*optionsFile); err != nil {
			fmt.Fprintf(stderr, "cozy: %v\n", err)
			return 1
		}
	}
	if *logDir != "" {
		if err := opts.Set("log-dir", *logDir); err != nil {
			fmt.Fprintf(stderr, "cozy: %v\n", err)
			return 1
		}
	}

	spec := demoSpec()
	pctx := &pipeline.Context{
		Spec:    spec,
		Solver:  solver.NewBounded(),
		Timeout: *timeout,
	}
	if err := pipeline.Default().Run(context.Background(), pctx); err != nil {
		for _, te := range pctx.TypeErrors {
			fmt.Fprintln(stderr, te)
		}
		fmt.Fprintf(stderr, "cozy: %v\n", err)
		return 1
	}
	for _, w := range pctx.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}
	fmt.Fprintln(stdout, prettyprinter.Print(pctx.Code))
	return 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// demoSpec is a multiset of integers with membership and size queries, the
// smallest structure that exercises incremental maintenance end to end.
func demoSpec() *syntax.Spec {
	intBag := &syntax.TApp{Ctor: "Bag", Arg: &syntax.TNamed{ID: "Int"}}
	xs := &syntax.EVar{ID: "xs"}
	x := &syntax.EVar{ID: "x"}
	return &syntax.Spec{
		Name:      "IntSet",
		StateVars: []syntax.Arg{{Name: "xs", Type: intBag}},
		Methods: []syntax.Method{
			&syntax.Op{
				Name: "insert",
				Args: []syntax.Arg{{Name: "x", Type: &syntax.TNamed{ID: "Int"}}},
				Body: &syntax.SCall{Target: xs, Func: "add", Args: []syntax.Exp{x}},
			},
			&syntax.Op{
				Name: "delete",
				Args: []syntax.Arg{{Name: "x", Type: &syntax.TNamed{ID: "Int"}}},
				Body: &syntax.SCall{Target: xs, Func: "remove", Args: []syntax.Exp{x}},
			},
			&syntax.Query{
				Name:       "size",
				Visibility: syntax.VisPublic,
				Ret:        &syntax.EUnaryOp{Op: syntax.UOpLength, E: xs},
			},
			&syntax.Query{
				Name:       "contains",
				Visibility: syntax.VisPublic,
				Args:       []syntax.Arg{{Name: "x", Type: &syntax.TNamed{ID: "Int"}}},
				Ret:        syntax.EIn(x, xs),
			},
		},
	}
}
