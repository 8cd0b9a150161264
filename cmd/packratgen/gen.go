package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ava12/packrat/snapgen"
	"github.com/ava12/packrat/snapshot"
)

type genConfig struct {
	Format          string `yaml:"format"`
	Output          string `yaml:"output"`
	snapgen.Options `yaml:",inline"`
}

type genParams struct {
	*rootParams
	config     string
	flags      genConfig
	configured genConfig
}

func loadConfig(name string) (genConfig, error) {
	var result genConfig
	content, e := os.ReadFile(name)
	if e != nil {
		return result, e
	}

	if e = yaml.Unmarshal(content, &result); e != nil {
		return result, fmt.Errorf("%s: %w", name, e)
	}
	return result, nil
}

// merge applies config values to flags not set in command line.
func (p *genParams) merge(cmd *cobra.Command) error {
	if p.config == "" {
		p.configured = p.flags
		return nil
	}

	c, e := loadConfig(p.config)
	if e != nil {
		return e
	}

	fs := cmd.Flags()
	if fs.Changed("format") || c.Format == "" {
		c.Format = p.flags.Format
	}
	if fs.Changed("output") {
		c.Output = p.flags.Output
	}
	if fs.Changed("package") {
		c.Package = p.flags.Package
	}
	if fs.Changed("var") || c.Var == "" {
		c.Var = p.flags.Var
	}
	if fs.Changed("short-import") {
		c.ShortImport = p.flags.ShortImport
	}
	p.configured = c
	return nil
}

func newGenCommand(root *rootParams) *cobra.Command {
	params := &genParams{rootParams: root}

	cmd := &cobra.Command{
		Use:   "gen <grammar>",
		Short: "Write grammar snapshot",
		Long: fmt.Sprintf(`Write grammar snapshot.

The 'gen' command flattens built-in grammar and writes the snapshot as Go source, JSON, or YAML.
Known grammars are: %s.

Default output file name is the grammar name with format suffix, "-" means stdout.
Default Go package name is the name of output file directory.`, strings.Join(grammarNames(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if e := params.merge(cmd); e != nil {
				return e
			}
			return params.run(cmd, args[0])
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&params.config, "config", "c", "", "YAML file with default flag values")
	fs.StringVarP(&params.flags.Format, "format", "f", snapgen.GoFormat, "output format: "+strings.Join(snapgen.Formats, ", "))
	fs.StringVarP(&params.flags.Output, "output", "o", "", "output file name")
	fs.StringVarP(&params.flags.Package, "package", "p", "", "Go package name")
	fs.StringVarP(&params.flags.Var, "var", "v", "Snapshot", "Go function name")
	fs.BoolVar(&params.flags.ShortImport, "short-import", false, `import "packrat/snapshot" instead of full module path`)
	return cmd
}

func (p *genParams) run(cmd *cobra.Command, name string) error {
	create, found := grammars[name]
	if !found {
		return fmt.Errorf("unknown grammar %q, expecting one of %s", name, strings.Join(grammarNames(), ", "))
	}

	c := p.configured
	if c.Output == "" {
		c.Output = name + snapgen.Ext(c.Format)
	}
	if c.Package == "" && c.Format == snapgen.GoFormat {
		if c.Output == "-" {
			c.Package = name
		} else {
			pkg, e := snapgen.PackageName(c.Output)
			if e != nil {
				return e
			}
			c.Package = pkg
		}
	}

	s, e := create(snapshot.WithLogger(p.logger))
	if e != nil {
		return e
	}

	content, e := snapgen.Render(s, c.Format, c.Options)
	if e != nil {
		return e
	}

	p.logger.WithFields(logrus.Fields{
		"grammar": name,
		"format":  c.Format,
		"output":  c.Output,
		"bytes":   len(content),
	}).Info("snapshot rendered")

	if c.Output == "-" {
		_, e = cmd.OutOrStdout().Write(content)
		return e
	}
	return os.WriteFile(c.Output, content, 0o666)
}
