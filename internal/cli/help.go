package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagGroup is a titled set of flags shown together in help output.
type FlagGroup struct {
	Title string
	Flags []string // long names
}

// GlobalFlags lists the persistent flags of the isakit root command.
var GlobalFlags = FlagGroup{
	Title: "GLOBAL OPTIONS",
	Flags: []string{"help", "config", "verbose", "debug", "quiet", "no-color"},
}

// EnvironmentHelp documents the environment variables isakit reads.
const EnvironmentHelp = `Environment Variables:
  ISAKIT_CONFIG          Configuration file
  ISAKIT_XSLT_PROCESSOR  XSLT 2.0 processor jar used by sra2tab
  ISAKIT_DB_PATH         Catalog database path
  ISAKIT_INDEX_PATH      Catalog search index path
  ISAKIT_CONFIG_HOME     Configuration directory (default: ~/.config/isakit)
  ISAKIT_DATA_HOME       Data directory (default: ~/.local/share/isakit)
  ISAKIT_CACHE_HOME      Cache directory (default: ~/.cache/isakit)
  NO_COLOR               Disable colored output
`

// SetupGroupedHelp configures a command to display its flags in groups,
// followed by the global options and the environment variables.
func SetupGroupedHelp(cmd *cobra.Command, groups ...FlagGroup) {
	originalHelpFunc := cmd.HelpFunc()
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		// First print the original help without flags
		var hidden []*pflag.Flag
		c.Flags().VisitAll(func(flag *pflag.Flag) {
			if !flag.Hidden {
				flag.Hidden = true
				hidden = append(hidden, flag)
			}
		})
		c.InheritedFlags().VisitAll(func(flag *pflag.Flag) {
			if !flag.Hidden {
				flag.Hidden = true
				hidden = append(hidden, flag)
			}
		})
		originalHelpFunc(c, args)
		for _, flag := range hidden {
			flag.Hidden = false
		}

		out := c.OutOrStdout()
		fmt.Fprintln(out, "\nFlags:")
		for _, g := range append(groups, GlobalFlags) {
			printFlagGroup(out, c, g)
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, EnvironmentHelp)
	})
}

// printFlagGroup prints a group of flags with a header
func printFlagGroup(out io.Writer, cmd *cobra.Command, g FlagGroup) {
	var flags []*pflag.Flag
	for _, name := range g.Flags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.InheritedFlags().Lookup(name)
		}
		if flag != nil && !flag.Hidden {
			flags = append(flags, flag)
		}
	}

	if len(flags) == 0 {
		return
	}

	fmt.Fprintf(out, "\n%s:\n", g.Title)
	for _, flag := range flags {
		shorthand := ""
		if flag.Shorthand != "" {
			shorthand = fmt.Sprintf("-%s, ", flag.Shorthand)
		}
		flagLine := fmt.Sprintf("  %s--%s", shorthand, flag.Name)

		typeStr := ""
		switch flag.Value.Type() {
		case "string":
			if flag.DefValue != "" {
				typeStr = fmt.Sprintf(" string (default %q)", flag.DefValue)
			} else {
				typeStr = " string"
			}
		case "int", "int32", "int64":
			if flag.DefValue != "0" {
				typeStr = fmt.Sprintf(" int (default %s)", flag.DefValue)
			} else {
				typeStr = " int"
			}
		case "bool":
			typeStr = ""
		default:
			if flag.DefValue != "" && flag.DefValue != "[]" {
				typeStr = fmt.Sprintf(" %s (default %s)", flag.Value.Type(), flag.DefValue)
			}
		}

		// Ensure proper alignment
		padding := 45 - len(flagLine) - len(typeStr)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(out, "%s%s%s%s\n", flagLine, typeStr, strings.Repeat(" ", padding), flag.Usage)
	}
}
