/*
packratgen is a console utility working with packrat grammars.
Usage is

	packratgen gen [-f <format>] [-o <name>] [-p <name>] [-v <name>] [--short-import] [-c <config>] <grammar>
	packratgen parse [--snapshot] [--head-filter] <file>...

gen flattens a built-in grammar and writes its snapshot as Go source, JSON, or YAML;
parse parses script files and prints statements as S-expressions.

-c <config> names YAML file holding default values of gen flags:

	format: go
	output: snapshot.go
	package: script
	var: Script
	short-import: false

--log-level sets logging level for both commands, log is written to stderr.
*/
package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ava12/packrat/examples/script"
	"github.com/ava12/packrat/snapshot"
)

type snapshotFunc = func(opts ...snapshot.Option) (*snapshot.Snapshot, error)

var grammars = map[string]snapshotFunc{
	"script": script.Snapshot,
}

func grammarNames() []string {
	result := make([]string, 0, len(grammars))
	for name := range grammars {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

type rootParams struct {
	logLevel string
	logger   *logrus.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	params := &rootParams{logger: logrus.New()}
	params.logger.SetOutput(stderr)
	params.logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	root := &cobra.Command{
		Use:           "packratgen",
		Short:         "Packrat grammar snapshot generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, e := logrus.ParseLevel(params.logLevel)
			if e != nil {
				return e
			}
			params.logger.SetLevel(level)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&params.logLevel, "log-level", "warning", "logging level: debug, info, warning, error")

	root.AddCommand(newGenCommand(params), newParseCommand(params))
	return root
}

func main() {
	root := newRootCommand(os.Stdout, os.Stderr)
	if e := root.Execute(); e != nil {
		fmt.Fprintln(os.Stderr, e.Error())
		os.Exit(3)
	}
}
