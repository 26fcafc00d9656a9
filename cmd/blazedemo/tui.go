package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"

	"github.com/livefir/blaze/view"
)

const pollInterval = 100 * time.Millisecond

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	countStyle    = lipgloss.NewStyle().Faint(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	authorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	selTitle  = cascadia.MustCompile(".title")
	selAuthor = cascadia.MustCompile(".author")
	selLike   = cascadia.MustCompile(".like")
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Like   key.Binding
	Remove key.Binding
	Add    key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Like, k.Remove, k.Add, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Like, k.Remove, k.Add}, {k.Quit}}
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Like:   key.NewBinding(key.WithKeys("l", "enter"), key.WithHelp("l", "like")),
	Remove: key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete")),
	Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "new post")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// model drives the document from bubbletea's event loop, which is the only
// goroutine touching views.
type model struct {
	doc    *view.Document
	keys   keyMap
	help   help.Model
	cursor int
	err    error
}

func newModel(doc *view.Document) model {
	return model{doc: doc, keys: keys, help: help.New()}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case tickMsg:
		m.err = m.doc.Flush()
		m.clampCursor()
		return m, tick()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			m.cursor++
			m.clampCursor()
		case key.Matches(msg, m.keys.Like):
			m.err = m.click("li.post button.like", m.cursor)
		case key.Matches(msg, m.keys.Remove):
			m.err = m.click("li.post button.remove", m.cursor)
		case key.Matches(msg, m.keys.Add):
			m.err = m.click("button.add", 0)
		}
	}
	return m, nil
}

// click dispatches a click on the index-th node matching selector and
// flushes so the view reflects the result.
func (m *model) click(selector string, index int) error {
	nodes, err := m.doc.Query(selector)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(nodes) {
		return nil
	}
	if err := m.doc.Dispatch(&view.Event{Type: "click", Target: nodes[index]}); err != nil {
		return err
	}
	err = m.doc.Flush()
	m.clampCursor()
	return err
}

func (m *model) clampCursor() {
	posts, _ := m.doc.Query("li.post")
	if m.cursor >= len(posts) {
		m.cursor = len(posts) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) View() string {
	var b strings.Builder

	if loading, _ := m.doc.Query(".loading"); len(loading) > 0 {
		b.WriteString(countStyle.Render("loading…") + "\n")
	}
	if h1, _ := m.doc.Query("h1"); len(h1) > 0 {
		b.WriteString(titleStyle.Render(textOf(h1[0])) + " ")
	}
	if count, _ := m.doc.Query(".count"); len(count) > 0 {
		b.WriteString(countStyle.Render(textOf(count[0])))
	}
	b.WriteString("\n\n")

	posts, _ := m.doc.Query("li.post")
	for i, post := range posts {
		line := fmt.Sprintf("♥ %-3s %s %s",
			textOf(selLike.MatchFirst(post)),
			textOf(selTitle.MatchFirst(post)),
			authorStyle.Render("by "+textOf(selAuthor.MatchFirst(post))))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
			continue
		}
		b.WriteString("  " + line + "\n")
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
