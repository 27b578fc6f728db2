package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nishad/isakit/internal/config"
	"github.com/nishad/isakit/internal/paths"
)

func newConfigCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage isakit configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(env.Config)
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Create a default configuration file at ~/.config/isakit/config.yaml, or at
the path given with --config. An existing file is kept unless --force is set.`,
		Example: `  isakit config init
  isakit config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = filepath.Join(paths.GetPaths().ConfigDir, "config.yaml")
			}
			if _, err := os.Stat(path); err == nil && !force {
				printWarning("Configuration already exists at %s", path)
				fmt.Fprintln(stdout, "Use --force to overwrite")
				return nil
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			printSuccess("Configuration created at %s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")

	pathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "Show the directories and files isakit uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := paths.GetPaths()
			c := env.Config
			fmt.Fprintln(stdout, colorize(colorBold, "Base Directories:"))
			fmt.Fprintf(stdout, "  Config:      %s\n", colorize(colorCyan, p.ConfigDir))
			fmt.Fprintf(stdout, "  Data:        %s\n", colorize(colorCyan, p.DataDir))
			fmt.Fprintf(stdout, "  Cache:       %s\n", colorize(colorCyan, p.CacheDir))
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, colorize(colorBold, "Files:"))
			for _, f := range []struct{ name, path string }{
				{"Config", config.GetConfigPath()},
				{"Database", c.Catalog.DBPath},
				{"Index", c.Catalog.IndexPath},
				{"Stylesheets", c.SRA.StylesheetsDir},
				{"Processor", c.SRA.XSLTProcessor},
			} {
				status := colorize(colorGray, "not found")
				if _, err := os.Stat(f.path); err == nil {
					status = colorize(colorGreen, "exists")
				}
				fmt.Fprintf(stdout, "  %-12s %s (%s)\n", f.name+":", f.path, status)
			}
			return nil
		},
	}

	cmd.AddCommand(show, initCmd, pathsCmd)
	return cmd
}

func showConfig(c *config.Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		switch {
		case strings.HasSuffix(line, ":") && !strings.HasPrefix(line, " "):
			fmt.Fprintln(stdout, colorize(colorBold, line))
		case strings.Contains(line, ": "):
			parts := strings.SplitN(line, ": ", 2)
			indent := len(line) - len(strings.TrimLeft(line, " "))
			fmt.Fprintf(stdout, "%s%s: %s\n", strings.Repeat(" ", indent),
				colorize(colorCyan, strings.TrimSpace(parts[0])), colorize(colorGreen, parts[1]))
		default:
			fmt.Fprintln(stdout, line)
		}
	}
	return nil
}
