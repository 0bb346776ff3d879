package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#5865F2")
	dimColor     = lipgloss.Color("#72767D")
	successColor = lipgloss.Color("#57F287")
	errorColor   = lipgloss.Color("#ED4245")
	warnColor    = lipgloss.Color("#FEE75C")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtitleStyle = lipgloss.NewStyle().Foreground(dimColor)
	labelStyle    = lipgloss.NewStyle().Foreground(dimColor)
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	successStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(warnColor)
)

const (
	iconCheck  = "✓"
	iconCross  = "✗"
	iconServer = "◎"
	iconInfo   = "●"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// UI is the same spinner/summary formatter the chat blueprint's CLI uses,
// trimmed to what a node daemon needs (no server/channel row printers).
type UI struct {
	mu       sync.Mutex
	spinning bool
	spinMsg  string
	spinDone chan struct{}
}

func NewUI() *UI { return &UI{} }

func (u *UI) Header(icon, title string) {
	fmt.Println()
	fmt.Printf("%s %s\n", icon, titleStyle.Render(title))
}

func (u *UI) Blank() { fmt.Println() }

func (u *UI) StartSpinner(message string) {
	u.mu.Lock()
	if u.spinning {
		u.mu.Unlock()
		return
	}
	u.spinning = true
	u.spinMsg = message
	u.spinDone = make(chan struct{})
	u.mu.Unlock()

	go func() {
		i := 0
		for {
			select {
			case <-u.spinDone:
				fmt.Print("\r\033[K")
				return
			default:
				u.mu.Lock()
				msg := u.spinMsg
				u.mu.Unlock()
				fmt.Printf("\r%s %s", spinnerFrames[i], msg)
				i = (i + 1) % len(spinnerFrames)
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()
}

func (u *UI) StopSpinner(message string, d time.Duration) {
	u.mu.Lock()
	if !u.spinning {
		u.mu.Unlock()
		return
	}
	close(u.spinDone)
	u.spinning = false
	u.mu.Unlock()
	time.Sleep(100 * time.Millisecond)
	fmt.Printf("%s %s %s\n", successStyle.Render(iconCheck), message, subtitleStyle.Render(fmt.Sprintf("(%s)", d.Round(time.Millisecond))))
}

func (u *UI) StopSpinnerError(message string) {
	u.mu.Lock()
	if !u.spinning {
		u.mu.Unlock()
		return
	}
	close(u.spinDone)
	u.spinning = false
	u.mu.Unlock()
	time.Sleep(100 * time.Millisecond)
	fmt.Printf("%s %s\n", errorStyle.Render(iconCross), message)
}

func (u *UI) Success(message string) {
	fmt.Println()
	fmt.Printf("%s %s\n", successStyle.Render(iconCheck), message)
}

func (u *UI) Warn(message string) {
	fmt.Printf("%s %s\n", warnStyle.Render("▲"), message)
}

func (u *UI) Step(message string) {
	fmt.Printf("  %s %s\n", subtitleStyle.Render("→"), message)
}

func (u *UI) Info(label, value string) {
	fmt.Printf("  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func (u *UI) Summary(items [][2]string) {
	fmt.Println()
	fmt.Println(subtitleStyle.Render("────────────────────────────────────────"))
	for _, item := range items {
		u.Info(item[0], item[1])
	}
	fmt.Println(subtitleStyle.Render("────────────────────────────────────────"))
}

func exitWithError(message string, err error) {
	fmt.Fprintf(os.Stderr, "%s %s: %v\n", errorStyle.Render(iconCross), message, err)
	os.Exit(1)
}
