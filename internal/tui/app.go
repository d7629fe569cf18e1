package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeanpaul/modeldeck/internal/models"
	"github.com/jeanpaul/modeldeck/internal/provider"
	"github.com/jeanpaul/modeldeck/internal/pull"
)

// Deleter is the slice of the transport adapter the dashboard drives
// directly (delete is the only mutation not owned by the pull registry).
type Deleter interface {
	Delete(ctx context.Context, name string) error
}

type tab int

const (
	tabModels tab = iota
	tabDownloads
	tabChat
)

type inputMode int

const (
	modeNormal        inputMode = iota
	modePull                    // textarea collects a model name to pull
	modeConfirmDelete           // y/n on deleteTarget
)

// Braille dots animation, smoother than the default line spinner.
var downloadSpinner = spinner.Spinner{
	Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	FPS:    time.Second / 12,
}

// tea messages
type snapshotMsg models.Snapshot
type tasksMsg []pull.Snapshot
type chatStartedMsg struct {
	ch  <-chan provider.StreamChunk
	err error
}
type chatChunkMsg provider.StreamChunk
type opDoneMsg struct {
	status string
	err    error
}

type chatMessage struct {
	role    string // "user", "assistant", "thinking", "system", "error"
	content string
}

type Model struct {
	width, height int
	tab           tab
	mode          inputMode

	reg     *pull.Registry
	agg     *models.Aggregator
	deleter Deleter
	prov    provider.Provider

	snap    models.Snapshot
	hasSnap bool
	subCh   <-chan models.Snapshot
	tasks   []pull.Snapshot

	cursor     int // models tab selection
	taskCursor int // downloads tab selection

	spinner  spinner.Model
	textarea textarea.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer

	deleteTarget string
	pendingPull  string // set after a duplicate-pull warning; confirmed by re-enter

	chatModel  string
	chatMsgs   []chatMessage
	chatCh     <-chan provider.StreamChunk
	chatCancel context.CancelFunc
	streaming  bool

	status string
}

func NewModel(reg *pull.Registry, agg *models.Aggregator, deleter Deleter, prov provider.Provider, defaultModel string) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(White)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(DimGreen)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = downloadSpinner
	sp.Style = SpinnerStyle

	vp := viewport.New(80, 20)

	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return Model{
		reg:       reg,
		agg:       agg,
		deleter:   deleter,
		prov:      prov,
		subCh:     agg.Subscribe(),
		chatModel: defaultModel,
		spinner:   sp,
		textarea:  ta,
		viewport:  vp,
		renderer:  r,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.loadCurrent(),
		m.waitForSnapshot(),
		m.pollTasks(),
	)
}

// --- Commands ---

// loadCurrent seeds the model table from the aggregator's retained
// snapshot so the dashboard is not blank while the first refresh runs.
func (m Model) loadCurrent() tea.Cmd {
	agg := m.agg
	return func() tea.Msg {
		if snap, ok := agg.Current(); ok {
			return snapshotMsg(snap)
		}
		return nil
	}
}

func (m Model) waitForSnapshot() tea.Cmd {
	ch := m.subCh
	return func() tea.Msg {
		return snapshotMsg(<-ch)
	}
}

func (m Model) pollTasks() tea.Cmd {
	reg := m.reg
	return tea.Tick(400*time.Millisecond, func(time.Time) tea.Msg {
		return tasksMsg(reg.ListAll())
	})
}

func (m Model) deleteCmd(name string) tea.Cmd {
	deleter, agg := m.deleter, m.agg
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := deleter.Delete(ctx, name); err != nil {
			return opDoneMsg{err: err}
		}
		agg.RequestRefresh()
		return opDoneMsg{status: "deleted " + name}
	}
}

func (m *Model) startChatCmd(text string) tea.Cmd {
	history := make([]provider.Message, 0, len(m.chatMsgs)+1)
	for _, cm := range m.chatMsgs {
		switch cm.role {
		case "user":
			history = append(history, provider.Message{Role: provider.RoleUser, Content: cm.content})
		case "assistant":
			history = append(history, provider.Message{Role: provider.RoleAssistant, Content: cm.content})
		}
	}
	history = append(history, provider.Message{Role: provider.RoleUser, Content: text})

	ctx, cancel := context.WithCancel(context.Background())
	m.chatCancel = cancel
	prov, model := m.prov, m.chatModel
	return func() tea.Msg {
		ch, err := prov.Chat(ctx, model, history)
		return chatStartedMsg{ch: ch, err: err}
	}
}

func waitForChunk(ch <-chan provider.StreamChunk) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-ch
		if !ok {
			return chatChunkMsg(provider.StreamChunk{Done: true})
		}
		return chatChunkMsg(chunk)
	}
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 10
		m.textarea.SetWidth(msg.Width - 6)
		m.rebuildChatView()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		m.snap = models.Snapshot(msg)
		m.hasSnap = true
		if m.cursor >= len(m.snap.Models) {
			m.cursor = max(0, len(m.snap.Models)-1)
		}
		return m, m.waitForSnapshot()

	case tasksMsg:
		m.tasks = msg
		if m.taskCursor >= len(m.tasks) {
			m.taskCursor = max(0, len(m.tasks)-1)
		}
		return m, m.pollTasks()

	case chatStartedMsg:
		if msg.err != nil {
			m.streaming = false
			m.chatMsgs = append(m.chatMsgs, chatMessage{role: "error", content: msg.err.Error()})
			m.rebuildChatView()
			return m, nil
		}
		m.chatCh = msg.ch
		return m, waitForChunk(msg.ch)

	case chatChunkMsg:
		chunk := provider.StreamChunk(msg)
		switch {
		case chunk.Error != nil:
			m.streaming = false
			m.chatMsgs = append(m.chatMsgs, chatMessage{role: "error", content: chunk.Error.Error()})
		case chunk.Thinking != "":
			if len(m.chatMsgs) == 0 || m.chatMsgs[len(m.chatMsgs)-1].role != "thinking" {
				m.chatMsgs = append(m.chatMsgs, chatMessage{role: "thinking"})
			}
			m.chatMsgs[len(m.chatMsgs)-1].content += chunk.Thinking
		case chunk.Delta != "":
			if len(m.chatMsgs) == 0 || m.chatMsgs[len(m.chatMsgs)-1].role != "assistant" {
				m.chatMsgs = append(m.chatMsgs, chatMessage{role: "assistant"})
			}
			m.chatMsgs[len(m.chatMsgs)-1].content += chunk.Delta
		}
		m.rebuildChatView()
		if chunk.Done || chunk.Error != nil {
			m.streaming = false
			m.chatCh = nil
			return m, nil
		}
		return m, waitForChunk(m.chatCh)

	case opDoneMsg:
		if msg.err != nil {
			m.status = ErrorStyle.Render("✗ " + msg.err.Error())
		} else {
			m.status = SuccessStyle.Render("✓ " + msg.status)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	if m.mode == modePull || m.tab == tabChat {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Delete confirmation intercepts everything.
	if m.mode == modeConfirmDelete {
		switch msg.String() {
		case "y", "Y", "enter":
			name := m.deleteTarget
			m.mode = modeNormal
			m.deleteTarget = ""
			m.status = HelpStyle.Render("deleting " + name + "...")
			return m, m.deleteCmd(name)
		case "n", "N", "esc":
			m.mode = modeNormal
			m.deleteTarget = ""
			m.status = ""
		}
		return m, nil
	}

	// Pull-name input mode.
	if m.mode == modePull {
		switch msg.Type {
		case tea.KeyEsc:
			m.mode = modeNormal
			m.pendingPull = ""
			m.textarea.Reset()
			m.textarea.Placeholder = "Type a message..."
			return m, nil
		case tea.KeyEnter:
			name := strings.TrimSpace(m.textarea.Value())
			if name == "" {
				return m, nil
			}
			// Duplicate-pull warning: the registry never refuses, so the
			// affordance lives here. A second Enter on the same name
			// starts an independent task anyway.
			if m.reg.IsActive(name) && m.pendingPull != name {
				m.pendingPull = name
				m.status = WarningStyle.Render(fmt.Sprintf("⚠ %s is already downloading. Enter again to pull it twice", name))
				return m, nil
			}
			m.pendingPull = ""
			m.mode = modeNormal
			m.textarea.Reset()
			m.textarea.Placeholder = "Type a message..."
			m.reg.Start(name)
			m.tab = tabDownloads
			m.status = HelpStyle.Render("pulling " + name)
			return m, nil
		}
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd
	}

	// Chat input gets most keys when on the chat tab.
	if m.tab == tabChat {
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.streaming && m.chatCancel != nil {
				m.chatCancel()
				m.streaming = false
				m.chatMsgs = append(m.chatMsgs, chatMessage{role: "system", content: "generation cancelled"})
				m.rebuildChatView()
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			m.tab = tabModels
			return m, nil
		case tea.KeyPgUp:
			m.viewport.HalfViewUp()
			return m, nil
		case tea.KeyPgDown:
			m.viewport.HalfViewDown()
			return m, nil
		case tea.KeyEnter:
			if msg.Alt {
				break
			}
			text := strings.TrimSpace(m.textarea.Value())
			if text == "" || m.streaming {
				return m, nil
			}
			if m.chatModel == "" {
				m.chatMsgs = append(m.chatMsgs, chatMessage{role: "error", content: "no model selected. Pick one on the Models tab"})
				m.rebuildChatView()
				return m, nil
			}
			m.textarea.Reset()
			m.streaming = true
			cmd := m.startChatCmd(text)
			m.chatMsgs = append(m.chatMsgs, chatMessage{role: "user", content: text})
			m.rebuildChatView()
			return m, cmd
		}
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd
	}

	// Normal navigation on the Models / Downloads tabs.
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab":
		m.tab = (m.tab + 1) % 3
		return m, nil
	case "1":
		m.tab = tabModels
	case "2":
		m.tab = tabDownloads
	case "3":
		m.tab = tabChat
	case "up", "k":
		if m.tab == tabModels && m.cursor > 0 {
			m.cursor--
		}
		if m.tab == tabDownloads && m.taskCursor > 0 {
			m.taskCursor--
		}
	case "down", "j":
		if m.tab == tabModels && m.cursor < len(m.snap.Models)-1 {
			m.cursor++
		}
		if m.tab == tabDownloads && m.taskCursor < len(m.tasks)-1 {
			m.taskCursor++
		}
	case "p":
		m.mode = modePull
		m.status = ""
		m.textarea.Reset()
		m.textarea.Placeholder = "model to pull (e.g. llama3.2)"
		m.textarea.Focus()
	case "r":
		m.agg.RequestRefresh()
		m.status = HelpStyle.Render("refreshing...")
	case "d":
		if m.tab == tabModels && m.cursor < len(m.snap.Models) {
			m.deleteTarget = m.snap.Models[m.cursor].Name
			m.mode = modeConfirmDelete
		}
	case "c":
		if m.tab == tabDownloads && m.taskCursor < len(m.tasks) {
			m.reg.Cancel(m.tasks[m.taskCursor].ID)
		}
	case "x":
		if m.tab == tabDownloads && m.taskCursor < len(m.tasks) {
			m.reg.Remove(m.tasks[m.taskCursor].ID)
		}
	case "C":
		if m.tab == tabDownloads {
			m.reg.ClearTerminal()
		}
	case "enter":
		if m.tab == tabModels && m.cursor < len(m.snap.Models) {
			m.chatModel = m.snap.Models[m.cursor].Name
			m.tab = tabChat
			m.textarea.Placeholder = "Type a message..."
			m.textarea.Focus()
		}
	}
	return m, nil
}

// --- Views ---

func (m *Model) rebuildChatView() {
	var sb strings.Builder
	for _, cm := range m.chatMsgs {
		switch cm.role {
		case "user":
			sb.WriteString(UserLabelStyle.Render("YOU") + "\n" + cm.content + "\n\n")
		case "assistant":
			body := cm.content
			if rendered, err := m.renderer.Render(cm.content); err == nil {
				body = strings.TrimRight(rendered, "\n")
			}
			sb.WriteString(AssistantLabelStyle.Render(m.chatModel) + "\n" + body + "\n\n")
		case "thinking":
			sb.WriteString(ThinkingStyle.Render("💭 "+cm.content) + "\n\n")
		case "system":
			sb.WriteString(HelpStyle.Render("ℹ "+cm.content) + "\n\n")
		case "error":
			sb.WriteString(ErrorStyle.Render("✗ "+cm.content) + "\n\n")
		}
	}
	wasAtBottom := m.viewport.AtBottom()
	m.viewport.SetContent(sb.String())
	if wasAtBottom || len(m.chatMsgs) <= 1 {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	header := m.renderHeader()

	var body string
	switch m.tab {
	case tabModels:
		body = m.renderModels()
	case tabDownloads:
		body = m.renderDownloads()
	case tabChat:
		body = m.viewport.View()
	}

	var input string
	if m.mode == modePull || m.tab == tabChat {
		prompt := lipgloss.NewStyle().Foreground(Green).Bold(true).Render("> ")
		if m.streaming {
			prompt = SpinnerStyle.Render(m.spinner.View() + " ")
		}
		input = InputBorderStyle.Width(max(20, m.width-4)).Render(
			lipgloss.JoinHorizontal(lipgloss.Top, prompt, m.textarea.View()))
	}

	footer := HelpStyle.Render(m.footerHelp())
	parts := []string{header, body}
	if m.status != "" {
		parts = append(parts, " "+m.status)
	}
	if input != "" {
		parts = append(parts, input)
	}
	parts = append(parts, " "+footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	tabs := []string{"Models", "Downloads", "Chat"}
	var rendered []string
	for i, name := range tabs {
		label := fmt.Sprintf("%d %s", i+1, name)
		if i == 1 {
			if n := m.activeDownloads(); n > 0 {
				label = fmt.Sprintf("%d %s (%s %d)", i+1, name, m.spinner.View(), n)
			}
		}
		if tab(i) == m.tab {
			rendered = append(rendered, TabActiveStyle.Render(label))
		} else {
			rendered = append(rendered, TabInactiveStyle.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	title := BannerStyle.Render(" MODELDECK ")
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(DimGreen).
		Width(max(0, m.width)).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", bar))
}

func (m Model) activeDownloads() int {
	n := 0
	for _, t := range m.tasks {
		if !t.Status.Terminal() {
			n++
		}
	}
	return n
}

func (m Model) renderModels() string {
	if !m.hasSnap {
		return "\n  " + SpinnerStyle.Render(m.spinner.View()) + HelpStyle.Render(" loading model list...") + "\n"
	}
	if len(m.snap.Models) == 0 {
		return "\n  " + HelpStyle.Render("No models installed. Press 'p' to pull one.") + "\n"
	}

	var sb strings.Builder
	sb.WriteString("\n  " + HeaderRowStyle.Render(fmt.Sprintf("%-34s %-10s %-8s %-10s %-10s %-8s", "NAME", "SIZE", "PARAMS", "VRAM", "RAM", "EXPIRES")) + "\n")
	for i, u := range m.snap.Models {
		line := fmt.Sprintf("%-34s %-10s %-8s", truncate(u.Name, 32), humanBytes(u.SizeBytes), u.Details.ParameterSize)
		if u.Loaded {
			line += fmt.Sprintf(" %-10s %-10s %-8s", fmt.Sprintf("%.1f GB", u.VRAMGB), fmt.Sprintf("%.1f GB", u.RAMGB), fmtExpiry(u.ExpiresIn))
		} else {
			line += fmt.Sprintf(" %-10s %-10s %-8s", "-", "-", "-")
		}
		marker := "  "
		style := RowStyle
		if i == m.cursor {
			marker = "> "
			style = SelectedRowStyle
		}
		sb.WriteString(marker + style.Render(line))
		if u.Loaded {
			sb.WriteString(" " + LoadedBadgeStyle.Render("LOADED"))
		}
		sb.WriteString("\n")
	}

	if m.mode == modeConfirmDelete {
		sb.WriteString("\n  " + ConfirmStyle.Render(fmt.Sprintf("Delete %s? [y/n]", m.deleteTarget)) + "\n")
	}
	return sb.String()
}

func (m Model) renderDownloads() string {
	if len(m.tasks) == 0 {
		return "\n  " + HelpStyle.Render("No downloads. Press 'p' to pull a model.") + "\n"
	}

	var sb strings.Builder
	sb.WriteString("\n")
	for i, t := range m.tasks {
		marker := "  "
		style := RowStyle
		if i == m.taskCursor {
			marker = "> "
			style = SelectedRowStyle
		}

		var line string
		switch t.Status {
		case pull.StatusDownloading:
			line = fmt.Sprintf("%-28s %s %3d%%  %s / %s  %s",
				truncate(t.ModelName, 26),
				progressBar(t.Percent, 24),
				t.Percent,
				humanBytes(t.BytesCompleted),
				humanBytes(t.BytesTotal),
				HelpStyle.Render(t.StatusText),
			)
		case pull.StatusPending:
			line = fmt.Sprintf("%-28s %s", truncate(t.ModelName, 26), HelpStyle.Render("waiting for daemon..."))
		case pull.StatusCompleted:
			line = fmt.Sprintf("%-28s %s", truncate(t.ModelName, 26), SuccessStyle.Render("✓ completed"))
		case pull.StatusFailed:
			line = fmt.Sprintf("%-28s %s", truncate(t.ModelName, 26), ErrorStyle.Render("✗ "+truncate(t.Error, 60)))
		case pull.StatusCancelled:
			line = fmt.Sprintf("%-28s %s", truncate(t.ModelName, 26), WarningStyle.Render("cancelled"))
		}
		sb.WriteString(marker + style.Render(line) + "\n")
	}
	return sb.String()
}

func (m Model) footerHelp() string {
	switch {
	case m.mode == modePull:
		return "Enter: pull  •  Esc: cancel"
	case m.tab == tabModels:
		return "↑/↓: move  •  Enter: chat  •  p: pull  •  d: delete  •  r: refresh  •  Tab: next  •  q: quit"
	case m.tab == tabDownloads:
		return "↑/↓: move  •  c: cancel  •  x: remove  •  C: clear finished  •  p: pull  •  Tab: next  •  q: quit"
	default:
		return "Enter: send  •  Ctrl+C: stop generation  •  Tab: models  •  Esc: quit"
	}
}
