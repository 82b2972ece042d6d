package cmd

import (
	"os"

	"github.com/Southclaws/fault/fmsg"
	"github.com/fatih/color"
)

// printWarn prints a warning to the screen.
func printWarn(message string) {
	color.New(color.FgYellow, color.Bold).Fprintln(os.Stderr, "[-] "+message)
}

// printError prints an error to the screen. Errors that carry an issue
// message show the issue, followed by the underlying error.
func printError(err error) {
	message := err.Error()
	if issue := fmsg.GetIssue(err); issue != "" && issue != message {
		message = issue + " (" + message + ")"
	}

	color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "[!] "+message)
}
