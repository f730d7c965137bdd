package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/steptrack/steptrack/internal/tui/app"
	"github.com/steptrack/steptrack/internal/tui/client"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8787/ws", "WebSocket URL of the steptrack daemon")
	token := flag.String("token", "", "Auth token (if the daemon requires it)")
	flag.Parse()

	httpBase := deriveHTTPBase(*wsURL)

	wsClient := client.NewWSClient(*wsURL, *token)
	httpClient := client.NewHTTPClient(httpBase, *token)

	m := app.New(wsClient, httpClient)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deriveHTTPBase converts ws://host:port/ws → http://host:port
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "http://127.0.0.1:8787"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
