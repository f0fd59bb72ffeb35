package main

import (
	"flag"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/dealfeed/internal/ui"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "dealfeed service address")
	poll := flag.Duration("poll", 30*time.Second, "poll interval, 0 disables")
	timeout := flag.Duration("timeout", time.Minute, "request timeout")
	flag.Parse()

	client := ui.NewClient(*addr, *timeout)
	app := ui.NewApp(client.LoadCmd, client.RefreshCmd, *poll)

	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
