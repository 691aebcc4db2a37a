// SPDX-License-Identifier: MIT

// Package tui provides the terminal views: a live spectrum display polling
// an analysis.SpectrumProvider and an audio device browser.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"fftplot/internal/analysis"
	"fftplot/internal/transport"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	minDisplayHz = 20.0   // Lowest frequency on the log axis.
	displayFloor = -100.0 // dB mapped to an empty bar.
	chromeLines  = 6      // Title, status, axis and help lines around the bars.
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
)

type spectrumKeyMap struct {
	Pause key.Binding
	Help  key.Binding
	Quit  key.Binding
}

func (k spectrumKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Help, k.Quit}
}

func (k spectrumKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Pause}, {k.Help, k.Quit}}
}

var spectrumKeys = spectrumKeyMap{
	Pause: key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause")),
	Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

// SpectrumModel is the Bubble Tea model for the live spectrum view.
type SpectrumModel struct {
	provider analysis.SpectrumProvider
	interval time.Duration
	stats    func() analysis.Stats

	mags   []float64
	seq    uint64
	paused bool
	err    error

	springs *barSprings

	width  int
	height int
	keys   spectrumKeyMap
	help   help.Model
}

// NewSpectrumModel creates a view refreshing from provider every interval.
// stats may be nil.
func NewSpectrumModel(provider analysis.SpectrumProvider, interval time.Duration, stats func() analysis.Stats) SpectrumModel {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return SpectrumModel{
		provider: provider,
		interval: interval,
		stats:    stats,
		mags:     make([]float64, provider.Bins()),
		springs:  newBarSprings(max(int(time.Second/interval), 1), 8.5, 0.72),
		width:    80,
		height:   24,
		keys:     spectrumKeys,
		help:     help.New(),
	}
}

func (m SpectrumModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh ticker.
func (m SpectrumModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles refresh ticks, resizes and key presses.
func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if !m.paused {
			seq, err := m.provider.MagnitudesInto(m.mags)
			if err != nil {
				m.err = err
			} else {
				m.seq = seq
			}
		}
		if m.seq > 0 {
			m.animate()
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}
	return m, nil
}

// View renders the UI.
func (m SpectrumModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("fftplot"))
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(m.status()))
	sb.WriteString("\n\n")

	rows := m.height - chromeLines
	if rows < 1 {
		rows = 1
	}
	if m.seq == 0 {
		sb.WriteString(strings.Repeat("\n", rows-1))
		sb.WriteString("Waiting for the first spectrum...")
	} else {
		heights := barHeights(m.springs.levels(), rows)
		sb.WriteString(barStyle.Render(renderBars(heights, rows)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.axis())
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m SpectrumModel) status() string {
	s := fmt.Sprintf("Spectrum %d", m.seq)
	if m.seq > 0 {
		peak := transport.PeakBin(m.mags)
		s += fmt.Sprintf(" • peak %s", highlightStyle.Render(fmt.Sprintf("%.1f Hz %.1f dB",
			m.provider.FrequencyForBin(peak), m.mags[peak])))
	}
	if m.stats != nil {
		st := m.stats()
		s += fmt.Sprintf(" • cycles %d dropped %d", st.Cycles, st.Dropped)
	}
	if m.paused {
		s += " • paused"
	}
	return s
}

// animate moves every column one frame toward the level of the current
// spectrum.
func (m SpectrumModel) animate() {
	cols := m.columns()
	m.springs.resize(len(cols))
	for c, db := range cols {
		m.springs.step(c, level(db))
	}
}

// columns reduces the spectrum to one dB value per terminal column.
func (m SpectrumModel) columns() []float64 {
	ranges := columnBins(len(m.mags), m.width, m.provider.FrequencyForBin(1))
	out := make([]float64, len(ranges))
	for c, r := range ranges {
		v := math.Inf(-1)
		for _, db := range m.mags[r[0] : r[1]+1] {
			v = math.Max(v, db)
		}
		out[c] = v
	}
	return out
}

// axis labels the left edge, middle and right edge of the frequency axis.
func (m SpectrumModel) axis() string {
	ranges := columnBins(len(m.mags), m.width, m.provider.FrequencyForBin(1))
	if len(ranges) == 0 {
		return ""
	}
	left := formatHz(m.provider.FrequencyForBin(ranges[0][0]))
	mid := formatHz(m.provider.FrequencyForBin(ranges[len(ranges)/2][0]))
	right := formatHz(m.provider.FrequencyForBin(ranges[len(ranges)-1][1]))

	gap := len(ranges) - len(left) - len(mid) - len(right)
	if gap < 2 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", gap/2) + mid + strings.Repeat(" ", gap-gap/2) + right
}

func formatHz(hz float64) string {
	if hz >= 1000 {
		return fmt.Sprintf("%.1fk", hz/1000)
	}
	return fmt.Sprintf("%.0f", hz)
}

// columnBins maps width columns onto log-spaced, inclusive bin ranges
// [lo, hi] from minDisplayHz to the Nyquist bin. Narrow low columns that
// fall inside one bin repeat it. Bin 0 is never shown.
func columnBins(bins, width int, binWidth float64) [][2]int {
	if bins < 2 || width < 1 || binWidth <= 0 {
		return nil
	}
	last := bins - 1
	fmax := float64(last) * binWidth
	fmin := math.Max(minDisplayHz, binWidth)
	if fmin >= fmax {
		fmin = binWidth
	}

	ranges := make([][2]int, width)
	ratio := fmax / fmin
	for c := range width {
		loHz := fmin * math.Pow(ratio, float64(c)/float64(width))
		hiHz := fmin * math.Pow(ratio, float64(c+1)/float64(width))
		lo := clampBin(int(math.Round(loHz/binWidth)), last)
		hi := clampBin(int(math.Round(hiHz/binWidth))-1, last)
		if c == width-1 {
			hi = last
		}
		if hi < lo {
			hi = lo
		}
		ranges[c] = [2]int{lo, hi}
	}
	return ranges
}

func clampBin(i, last int) int {
	return min(max(i, 1), last)
}

// level maps a dB value onto [0, 1], displayFloor being empty.
func level(db float64) float64 {
	frac := (db - displayFloor) / -displayFloor
	return min(max(frac, 0), 1)
}

// barHeights scales levels in [0, 1] to bar heights in [0, rows].
func barHeights(levels []float64, rows int) []int {
	heights := make([]int, len(levels))
	for i, l := range levels {
		heights[i] = int(math.Round(l * float64(rows)))
	}
	return heights
}

// renderBars draws the bars top row first.
func renderBars(heights []int, rows int) string {
	var sb strings.Builder
	for r := rows; r >= 1; r-- {
		for _, h := range heights {
			if h >= r {
				sb.WriteRune('█')
			} else {
				sb.WriteByte(' ')
			}
		}
		if r > 1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// StartSpectrumUI runs the spectrum view until the user quits or ctx is
// cancelled.
func StartSpectrumUI(ctx context.Context, model SpectrumModel) error {
	p := tea.NewProgram(model, tea.WithAltScreen())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	_, err := p.Run()
	return err
}
