package main

import (
	"fmt"
	"os"

	"github.com/nishad/isakit/internal/converter"
)

// Color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// isTerminal reports whether stdout is a character device.
func isTerminal() bool {
	f, ok := stdout.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Apply color if terminal output and color enabled
func colorize(color, text string) string {
	if !noColor && isTerminal() && os.Getenv("NO_COLOR") == "" {
		return color + text + colorReset
	}
	return text
}

func printError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(stderr, "%s %s\n", colorize(colorRed, "✗"), msg)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(stdout, "%s %s\n", colorize(colorGreen, "✓"), msg)
	}
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(stdout, "%s\n", colorize(colorCyan, msg))
	}
}

func printWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(stderr, "%s %s\n", colorize(colorYellow, "⚠"), msg)
}

// newConverter builds a converter from the loaded configuration.
func newConverter() *converter.Converter {
	cfg := env.Config
	return converter.New(converter.Options{
		Logger:     env.Logger,
		Pattern:    cfg.Tab.InvestigationGlob,
		StrictKeys: cfg.Tab.StrictKeys,
		Indent:     cfg.JSON.Indent,
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
