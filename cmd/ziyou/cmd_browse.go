package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ryanm101/ziyou/internal/catalog"
	"github.com/ryanm101/ziyou/internal/recommend"
)

func handleBrowseCommand(ctx context.Context, args []string) {
	profile, err := readProfile(args[0])
	if err != nil {
		PrintError("Error: %v\n", err)
		os.Exit(1)
	}
	if err := profile.Validate(); err != nil {
		PrintError("Error: invalid profile: %v\n", err)
		os.Exit(1)
	}

	a, err := newApp(ctx, true)
	if err != nil {
		PrintError("Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	fetch := func() tea.Msg {
		games, err := a.svc.Recommend(ctx, profile)
		return resultMsg{games: games, err: err}
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if args[0] == "-" {
		// Stdin held the profile; read keys from the terminal instead.
		opts = append(opts, tea.WithInputTTY())
	}
	p := tea.NewProgram(newBrowseModel(fetch), opts...)
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// resultMsg carries the finished recommendation into the model.
type resultMsg struct {
	games recommend.Batch
	err   error
}

// browseModel shows a spinner while recommending, then a game list with a
// detail pane for the selected game.
type browseModel struct {
	fetch   tea.Cmd
	spinner spinner.Model
	loading bool
	games   recommend.Batch
	err     error
	cursor  int
	detail  bool
	width   int
	height  int
}

func newBrowseModel(fetch tea.Cmd) browseModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return browseModel{
		fetch:   fetch,
		spinner: s,
		loading: true,
	}
}

// Init starts the spinner and the recommendation request together.
func (m browseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

// Update handles messages
func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case resultMsg:
		m.loading = false
		m.games = msg.games
		m.err = msg.err
		m.cursor = 0

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc", "left", "h":
			m.detail = false
		case "enter", "right", "l":
			if len(m.games) > 0 {
				m.detail = !m.detail
			}
		case "down", "j":
			if m.cursor < len(m.games)-1 {
				m.cursor++
			}
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		}
	}
	return m, nil
}

// View renders the model
func (m browseModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)
	selectedStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("57")).
		Foreground(lipgloss.Color("255"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	title := titleStyle.Render("自由 ziyou · 游戏推荐")

	switch {
	case m.loading:
		return lipgloss.JoinVertical(lipgloss.Left, title,
			m.spinner.View()+" 正在为你挑选游戏...",
		)
	case m.err != nil:
		return lipgloss.JoinVertical(lipgloss.Left, title,
			errorStyle.Render("Error: "+m.err.Error()),
			dimStyle.Render("q: quit"),
		)
	case m.detail:
		return lipgloss.JoinVertical(lipgloss.Left, title,
			m.viewDetail(m.games[m.cursor]),
			dimStyle.Render("esc: back • q: quit"),
		)
	}

	var b strings.Builder
	for i, g := range m.games {
		line := fmt.Sprintf("%d. %s  %s", i+1, g.Name, dimStyle.Render(g.NameEN))
		if i == m.cursor {
			line = selectedStyle.Render(fmt.Sprintf("%d. %s  %s", i+1, g.Name, g.NameEN))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.JoinVertical(lipgloss.Left, title,
		b.String(),
		dimStyle.Render("↑/↓: move • enter: details • q: quit"),
	)
}

func (m browseModel) viewDetail(g catalog.Game) string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	panelStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(1)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n\n", lipgloss.NewStyle().Bold(true).Render(g.Name), g.NameEN)
	if g.RecommendReason != "" {
		fmt.Fprintf(&b, "%s\n\n", g.RecommendReason)
	}
	if g.ReleaseYear != nil {
		fmt.Fprintf(&b, "Released:   %d\n", *g.ReleaseYear)
	}
	if len(g.Genres) > 0 {
		fmt.Fprintf(&b, "Genres:     %s\n", strings.Join(g.Genres, ", "))
	}
	if len(g.Platforms) > 0 {
		fmt.Fprintf(&b, "Platforms:  %s\n", strings.Join(g.Platforms, ", "))
	}
	if g.Metacritic != nil {
		fmt.Fprintf(&b, "Metacritic: %d\n", *g.Metacritic)
	}
	if g.Rating != nil {
		fmt.Fprintf(&b, "Rating:     %.2f\n", *g.Rating)
	}
	if g.Playtime != "" {
		fmt.Fprintf(&b, "Playtime:   %s\n", g.Playtime)
	}
	if g.Developer != "" {
		fmt.Fprintf(&b, "Developer:  %s\n", g.Developer)
	}
	if len(g.Tags) > 0 {
		fmt.Fprintf(&b, "Tags:       %s\n", dimStyle.Render(strings.Join(g.Tags, ", ")))
	}
	if len(g.Stores) > 0 {
		b.WriteString("\n")
		for _, s := range g.Stores {
			fmt.Fprintf(&b, "%s  %s\n", s.Name, dimStyle.Render(s.URL))
		}
	}

	if m.width > 8 {
		panelStyle = panelStyle.Width(m.width - 4)
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}
