package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ftahirops/xrewind/engine"
	"github.com/ftahirops/xrewind/model"
	"github.com/ftahirops/xrewind/table"
	"github.com/ftahirops/xrewind/util"
)

// Tab identifies the current record view.
type Tab int

const (
	TabProcesses Tab = iota
	TabSessions
	TabConnections
	TabListening
	TabFlags
	tabCount
)

var tabNames = []string{"Processes", "Sessions", "Connections", "Listening", "Flags"}

var tabSchemas = []string{
	model.SchemaProcess,
	model.SchemaSession,
	model.SchemaConnection,
	model.SchemaListening,
	model.SchemaFlag,
}

// loadMsg carries a finished background fetch back to the foreground loop.
type loadMsg engine.LoadResult

// playTickMsg advances the cursor while play mode is on.
type playTickMsg time.Time

type inputMode int

const (
	inputNone inputMode = iota
	inputFilter
	inputSearch
	inputTime
)

type keyMap struct {
	Quit    key.Binding
	Help    key.Binding
	Tabs    key.Binding
	Move    key.Binding
	Step    key.Binding
	Jump    key.Binding
	Play    key.Binding
	Tree    key.Binding
	Sort    key.Binding
	Invert  key.Binding
	Filter  key.Binding
	Search  key.Binding
	GoTime  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Step, k.Play, k.Filter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Move, k.Step, k.Jump, k.Play},
		{k.Tabs, k.Tree, k.Sort, k.Invert},
		{k.Filter, k.Search, k.GoTime, k.Quit},
	}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Tabs:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab/1-5", "switch view")),
		Move:   key.NewBinding(key.WithKeys("j", "k"), key.WithHelp("j/k", "select row")),
		Step:   key.NewBinding(key.WithKeys("h", "l"), key.WithHelp("h/l", "step snapshot")),
		Jump:   key.NewBinding(key.WithKeys("[", "]"), key.WithHelp("[/]", "jump 1 min")),
		Play:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Tree:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tree view")),
		Sort:   key.NewBinding(key.WithKeys("<", ">"), key.WithHelp("</>", "sort column")),
		Invert: key.NewBinding(key.WithKeys("I"), key.WithHelp("I", "invert sort")),
		Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Search: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "find")),
		GoTime: key.NewBinding(key.WithKeys("@"), key.WithHelp("@", "go to time")),
	}
}

// Model is the bubbletea model.
type Model struct {
	eng    *engine.Engine
	width  int
	height int

	tab    Tab
	tables [tabCount]*table.Table
	treeOn bool

	playing  bool
	playRate float64

	input     textinput.Model
	inputMode inputMode

	spin     spinner.Model
	keys     keyMap
	help     help.Model
	showHelp bool

	snapInterval float64
	statusMsg    string
	firstReq     *engine.LoadRequest
}

// Options are the user-tunable UI defaults, usually from the config file.
type Options struct {
	PlayRate    float64 // play-mode speed multiplier
	SnapshotSec float64 // expected seconds between snapshots
	TreeView    bool    // start the process view in forest order
}

// NewModel creates the UI over an initialized engine. startTime of zero means
// "start at the first snapshot in the data".
func NewModel(eng *engine.Engine, startTime float64, opts Options) Model {
	styles := table.Styles{
		Header:   headerStyle,
		SortCol:  sortColStyle,
		Row:      valueStyle,
		Selected: selectedStyle,
	}
	m := Model{
		eng:          eng,
		playRate:     opts.PlayRate,
		snapInterval: opts.SnapshotSec,
		treeOn:       opts.TreeView,
		spin:         spinner.New(spinner.WithSpinner(spinner.Dot)),
		keys:         defaultKeyMap(),
		help:         help.New(),
		width:        120,
		height:       40,
	}
	if m.playRate <= 0 {
		m.playRate = 1
	}
	if m.snapInterval <= 0 {
		m.snapInterval = 15
	}
	m.tables[TabProcesses] = table.New(processColumns(), styles)
	m.tables[TabSessions] = table.New(sessionColumns(), styles)
	m.tables[TabConnections] = table.New(connectionColumns(), styles)
	m.tables[TabListening] = table.New(listeningColumns(), styles)
	m.tables[TabFlags] = table.New(flagColumns(), styles)

	m.tables[TabProcesses].SetSort("cpu", true)
	m.tables[TabSessions].SetSort("start", true)
	m.tables[TabConnections].SetSort("start", true)
	m.tables[TabListening].SetSort("addr", false)
	m.tables[TabFlags].SetSort("time", true)

	m.input = textinput.New()
	m.input.Prompt = ""
	m.input.CharLimit = 128

	m.firstReq = eng.Init(startTime)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.loadCmd(m.firstReq))
}

func (m Model) loadCmd(req *engine.LoadRequest) tea.Cmd {
	if req == nil {
		return nil
	}
	eng := m.eng
	return func() tea.Msg {
		return loadMsg(eng.Load(context.Background(), req))
	}
}

// playTick schedules the next play-mode step. One tick advances one
// snapshot, so at 1x a recording plays back in real time.
func (m Model) playTick() tea.Cmd {
	interval := time.Duration(m.snapInterval / m.playRate * float64(time.Second))
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg { return playTickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, t := range m.tables {
			t.SetViewport(m.width, m.tableHeight())
		}
		return m, nil

	case spinner.TickMsg:
		if m.eng.State() != engine.StateLoading {
			return m, m.spin.Tick
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case loadMsg:
		follow := m.eng.FinishLoad(engine.LoadResult(msg))
		m.refreshData()
		return m, m.loadCmd(follow)

	case playTickMsg:
		if !m.playing || m.eng.State() == engine.StateFailed {
			return m, nil
		}
		req := m.eng.StepSnapshot(1)
		m.refreshData()
		return m, tea.Batch(m.loadCmd(req), m.playTick())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputMode != inputNone {
		return m.handleInputKey(msg)
	}

	if m.eng.State() == engine.StateFailed {
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m.recover(engine.RecoverRetry)
		case "b", "esc":
			return m.recover(engine.RecoverRevert)
		case "R":
			return m.recover(engine.RecoverReload)
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case "tab":
		m.tab = (m.tab + 1) % tabCount
		return m, nil
	case "shift+tab":
		m.tab = (m.tab + tabCount - 1) % tabCount
		return m, nil
	case "1", "2", "3", "4", "5":
		m.tab = Tab(msg.String()[0] - '1')
		return m, nil

	case "j", "down":
		m.table().MoveSelection(1)
		return m, nil
	case "k", "up":
		m.table().MoveSelection(-1)
		return m, nil
	case "ctrl+d", "pgdown":
		m.table().MoveSelection(m.tableHeight())
		return m, nil
	case "ctrl+u", "pgup":
		m.table().MoveSelection(-m.tableHeight())
		return m, nil
	case "g", "home":
		m.table().SelectFirst()
		return m, nil
	case "G", "end":
		m.table().SelectLast()
		return m, nil

	case "h", "left":
		return m.step(-1)
	case "l", "right":
		return m.step(1)
	case "[":
		return m.jump(-60)
	case "]":
		return m.jump(60)
	case "{":
		return m.jump(-600)
	case "}":
		return m.jump(600)

	case " ":
		m.playing = !m.playing
		if m.playing {
			return m, m.playTick()
		}
		return m, nil
	case "+":
		m.playRate *= 2
		return m, nil
	case "-":
		if m.playRate > 0.25 {
			m.playRate /= 2
		}
		return m, nil

	case "t":
		if m.tab == TabProcesses {
			m.treeOn = !m.treeOn
			m.tables[TabProcesses].SetTree(m.eng.Tree(), m.treeOn)
		}
		return m, nil

	case "<":
		m.cycleSort(-1)
		return m, nil
	case ">":
		m.cycleSort(1)
		return m, nil
	case "I":
		t := m.table()
		t.SetSort(t.SortKey(), !t.SortDesc())
		return m, nil

	case "/":
		return m.openInput(inputFilter, m.table().Filter())
	case "f":
		return m.openInput(inputSearch, "")
	case "@":
		return m.openInput(inputTime, "")
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.inputMode == inputFilter {
			m.table().SetFilter("")
		}
		m.inputMode = inputNone
		return m, nil
	case "enter":
		mode := m.inputMode
		text := m.input.Value()
		m.inputMode = inputNone
		switch mode {
		case inputFilter:
			m.table().SetFilter(text)
		case inputSearch:
			if text != "" && !m.table().Find(text) {
				m.statusMsg = fmt.Sprintf("no match for %q", text)
			}
		case inputTime:
			when, err := util.ParseTime(text, time.Now())
			if err != nil {
				m.statusMsg = err.Error()
				return m, nil
			}
			req := m.eng.SetTime(when)
			m.refreshData()
			return m, m.loadCmd(req)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.inputMode == inputFilter {
		// Live filtering as the expression is typed.
		m.table().SetFilter(m.input.Value())
	}
	return m, cmd
}

func (m Model) openInput(mode inputMode, initial string) (tea.Model, tea.Cmd) {
	m.inputMode = mode
	m.statusMsg = ""
	m.input.SetValue(initial)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) recover(strategy engine.RecoverStrategy) (tea.Model, tea.Cmd) {
	req, err := m.eng.Recover(strategy)
	if err != nil {
		m.statusMsg = err.Error()
		return m, nil
	}
	m.refreshData()
	return m, m.loadCmd(req)
}

func (m Model) step(dir int) (tea.Model, tea.Cmd) {
	req := m.eng.StepSnapshot(dir)
	m.refreshData()
	return m, m.loadCmd(req)
}

func (m Model) jump(delta float64) (tea.Model, tea.Cmd) {
	req := m.eng.SetTime(m.eng.Timestamp() + delta)
	m.refreshData()
	return m, m.loadCmd(req)
}

func (m *Model) table() *table.Table { return m.tables[m.tab] }

func (m *Model) tableHeight() int {
	h := m.height - 5
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) cycleSort(dir int) {
	cols := m.tableColumns()
	t := m.table()
	cur := -1
	for i, k := range cols {
		if strings.EqualFold(k, t.SortKey()) {
			cur = i
			break
		}
	}
	next := (cur + dir + len(cols)) % len(cols)
	t.SetSort(cols[next], t.SortDesc())
}

func (m *Model) tableColumns() []string {
	var defs []table.Column
	switch m.tab {
	case TabProcesses:
		defs = processColumns()
	case TabSessions:
		defs = sessionColumns()
	case TabConnections:
		defs = connectionColumns()
	case TabListening:
		defs = listeningColumns()
	default:
		defs = flagColumns()
	}
	keys := make([]string, 0, len(defs))
	for _, c := range defs {
		if c.Enabled {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// refreshData pushes the cursor snapshot's view of the world into every
// table: the formula context plus the records alive at the cursor time.
func (m *Model) refreshData() {
	now := m.eng.Timestamp()
	ctx := table.Context{
		Timestamp: now,
		ClkTck:    m.eng.ClkTck(),
		MemTotal:  m.eng.MemTotal(),
	}
	ctx.Usage, ctx.PrevUsage, ctx.Elapsed = m.eng.Usage()

	_, haveData := m.eng.Snapshot()
	for tab := Tab(0); tab < tabCount; tab++ {
		t := m.tables[tab]
		t.SetContext(ctx)
		if tab == TabProcesses && !haveData {
			// A stale cursor snapshot means there is no believable process
			// state for this time.
			t.SetRecords(nil)
			continue
		}
		t.SetRecords(m.recordsAlive(tabSchemas[tab], now))
	}
	m.tables[TabProcesses].SetTree(m.eng.Tree(), m.treeOn)
}

// recordsAlive filters a schema partition down to the records whose lifetime
// covers the cursor time. Flags have no lifetime; everything up to the cursor
// stays visible.
func (m *Model) recordsAlive(schema string, now float64) []*model.Record {
	recs := m.eng.Store().Records(schema)
	if schema == model.SchemaFlag {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.Time <= now {
				kept = append(kept, rec)
			}
		}
		return kept
	}
	kept := recs[:0]
	for _, rec := range recs {
		from := validFrom(rec)
		if from > now {
			continue
		}
		if d, ok := rec.Float("duration"); ok && from+d < now {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.renderHeader() + "\n")
	sb.WriteString(m.renderTabs() + "\n")

	if m.eng.State() == engine.StateFailed {
		sb.WriteString(m.renderFailure())
		return sb.String()
	}

	t := m.table()
	sb.WriteString(t.Header() + "\n")
	lines := t.Lines()
	sb.WriteString(strings.Join(lines, "\n"))
	for i := len(lines); i < m.tableHeight(); i++ {
		sb.WriteString("\n")
	}
	sb.WriteString("\n" + m.renderFooter())
	return sb.String()
}

func (m Model) renderHeader() string {
	state := okStyle.Render("ready")
	switch m.eng.State() {
	case engine.StateLoading:
		state = m.spin.View() + warnStyle.Render("loading")
	case engine.StateFailed:
		state = critStyle.Render("failed")
	case engine.StateUninitialized:
		state = dimStyle.Render("starting")
	}
	play := ""
	if m.playing {
		play = okStyle.Render(fmt.Sprintf(" ▶ %gx", m.playRate))
	}
	return fmt.Sprintf("%s %s  %s %s  %s%s",
		titleStyle.Render("xrewind"),
		labelStyle.Render(m.eng.MachineID()),
		valueStyle.Render(util.FormatTimestamp(m.eng.Timestamp())),
		dimStyle.Render(fmt.Sprintf("(%s, %d snapshots)",
			util.RelativeTimestamp(m.eng.Timestamp()), m.eng.Series().Len())),
		state, play)
}

func (m Model) renderTabs() string {
	var parts []string
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if Tab(i) == m.tab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return strings.Join(parts, "")
}

func (m Model) renderFailure() string {
	body := critStyle.Render("Load failed") + "\n\n" +
		valueStyle.Render(m.eng.FailureMessage()) + "\n\n" +
		helpStyle.Render("r retry   b revert to last good time   R reload   q quit")
	return failBoxStyle.Render(body)
}

func (m Model) renderFooter() string {
	switch m.inputMode {
	case inputFilter:
		return labelStyle.Render("filter: ") + m.input.View()
	case inputSearch:
		return labelStyle.Render("find: ") + m.input.View()
	case inputTime:
		return labelStyle.Render("go to time: ") + m.input.View()
	}
	if m.statusMsg != "" {
		return warnStyle.Render(m.statusMsg)
	}
	left := m.help.View(m.keys)
	if f := m.table().Filter(); f != "" {
		left += dimStyle.Render(fmt.Sprintf("   filter: %s", f))
	}
	return left
}
