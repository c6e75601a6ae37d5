package main

import (
	"fmt"
	"io"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

// Status output goes to stderr so stdout stays scriptable.
var statusOut io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printTagged(color, tag, format string, args ...any) {
	fmt.Fprintln(statusOut, colorize(color, tag+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printTagged(colorGreen, "✓", format, args...) }

func printError(format string, args ...any) { printTagged(colorRed, "✗", format, args...) }

func printWarning(format string, args ...any) { printTagged(colorYellow, "⚠", format, args...) }

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	fmt.Fprintf(statusOut, "  %s %s\n", colorize(colorBold, label+":"), val)
}
