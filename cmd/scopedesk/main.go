// cmd/scopedesk/main.go
//
// Entry point for the scopedesk CLI. Run `scopedesk` from a project
// directory and it opens the intake chat; everything the session produces
// lands under that directory's .scopedesk/ folder.

package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wthompson1804/scopedesk/internal/tui"
)

func main() {
	dir := flag.String("dir", "", "project directory (defaults to the working directory)")
	flag.Parse()

	projectDir := *dir
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
			os.Exit(1)
		}
		projectDir = cwd
	}

	app, err := tui.NewApp(projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting scopedesk: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
