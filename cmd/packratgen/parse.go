package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ava12/packrat/examples/script"
	"github.com/ava12/packrat/parser"
	"github.com/ava12/packrat/snapshot"
)

type parseParams struct {
	*rootParams
	fromSnapshot bool
	headFilter   bool
}

func newParseCommand(root *rootParams) *cobra.Command {
	params := &parseParams{rootParams: root}

	cmd := &cobra.Command{
		Use:   "parse <file>...",
		Short: "Parse script files",
		Long: `Parse script files.

The 'parse' command parses each file with the script grammar and prints its statements
as S-expressions, one per line. Lexer and syntax errors are printed to stderr with source positions.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return params.run(cmd, args)
		},
	}

	cmd.Flags().BoolVar(&params.fromSnapshot, "snapshot", false, "load parser from encoded grammar snapshot")
	cmd.Flags().BoolVar(&params.headFilter, "head-filter", false, "skip alternatives by their first tokens")
	return cmd
}

func (p *parseParams) parser() (*script.Parser, error) {
	opts := []parser.Option{parser.WithLogger(p.logger)}
	if p.headFilter {
		opts = append(opts, parser.WithHeadFilter())
	}
	if !p.fromSnapshot {
		return script.New(opts...)
	}

	s, e := script.Snapshot(snapshot.WithLogger(p.logger))
	if e != nil {
		return nil, e
	}
	blob, e := snapshot.Encode(s)
	if e != nil {
		return nil, e
	}
	decoded, e := snapshot.Decode(blob, s.Strings)
	if e != nil {
		return nil, e
	}
	return script.FromSnapshot(decoded, opts...)
}

func (p *parseParams) run(cmd *cobra.Command, files []string) error {
	sp, e := p.parser()
	if e != nil {
		return e
	}

	failed := 0
	for _, name := range files {
		src, e := os.ReadFile(name)
		if e != nil {
			return e
		}

		output, e := sp.Rewrite(name, string(src))
		if e != nil {
			failed++
			fmt.Fprintln(cmd.ErrOrStderr(), e.Error())
			continue
		}

		fmt.Fprint(cmd.OutOrStdout(), output)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
