package tui

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeanpaul/modeldeck/internal/models"
	"github.com/jeanpaul/modeldeck/internal/provider"
	"github.com/jeanpaul/modeldeck/internal/pull"
	"github.com/jeanpaul/modeldeck/internal/runtime"
)

// blockingPuller keeps a pull stream open until its context is cancelled,
// so tasks stay visibly active for the duration of a test.
type blockingPuller struct{}

func (blockingPuller) StreamPull(ctx context.Context, name string) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	go func() {
		<-ctx.Done()
		pw.Close()
	}()
	return pr, nil
}

type recordingDeleter struct {
	deleted []string
}

func (d *recordingDeleter) Delete(ctx context.Context, name string) error {
	d.deleted = append(d.deleted, name)
	return nil
}

type scriptedProvider struct {
	chunks []provider.StreamChunk
}

func (p scriptedProvider) Name() string { return "scripted" }

func (p scriptedProvider) Chat(ctx context.Context, model string, msgs []provider.Message) (<-chan provider.StreamChunk, error) {
	ch := make(chan provider.StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type stubFetcher struct{}

func (stubFetcher) ListInstalled(ctx context.Context) ([]runtime.ModelRecord, error) {
	return nil, nil
}

func (stubFetcher) ListRunning(ctx context.Context) ([]runtime.RunningModelRecord, error) {
	return nil, nil
}

func newTestModel(t *testing.T) (Model, *pull.Registry, *recordingDeleter) {
	t.Helper()
	reg := pull.NewRegistry(blockingPuller{}, nil)
	agg := models.NewAggregator(stubFetcher{}, time.Hour)
	del := &recordingDeleter{}
	m := NewModel(reg, agg, del, scriptedProvider{}, "llama3.2")
	sized, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return sized.(Model), reg, del
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyPress(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	return update(t, m, msg)
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func sampleSnapshot() models.Snapshot {
	exp := 5 * time.Minute
	return models.Snapshot{
		Models: []models.UnifiedModel{
			{
				ModelRecord: runtime.ModelRecord{Name: "llama3.2", SizeBytes: 2 << 30},
				Loaded:      true,
				VRAMGB:      3.5,
				RAMGB:       0.5,
				ExpiresIn:   &exp,
			},
			{
				ModelRecord: runtime.ModelRecord{Name: "qwen2.5-coder", SizeBytes: 4 << 30},
			},
		},
		Taken: time.Now(),
	}
}

func TestTabSwitching(t *testing.T) {
	m, _, _ := newTestModel(t)

	if !strings.Contains(m.View(), "loading model list") {
		t.Error("expected loading placeholder before the first snapshot")
	}

	m, _ = keyPress(t, m, "2")
	if m.tab != tabDownloads {
		t.Errorf("tab = %d, want downloads", m.tab)
	}
	if !strings.Contains(m.View(), "No downloads") {
		t.Error("expected empty downloads placeholder")
	}

	m, _ = keyPress(t, m, "tab")
	if m.tab != tabChat {
		t.Errorf("tab = %d, want chat", m.tab)
	}
}

func TestModelsTableShowsLoadedState(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, snapshotMsg(sampleSnapshot()))

	view := m.View()
	for _, want := range []string{"llama3.2", "qwen2.5-coder", "LOADED", "3.5 GB", "5m00s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestPullInputStartsTask(t *testing.T) {
	m, reg, _ := newTestModel(t)

	m, _ = keyPress(t, m, "p")
	if m.mode != modePull {
		t.Fatalf("mode = %d, want pull input", m.mode)
	}
	m = typeText(t, m, "mistral")
	m, _ = keyPress(t, m, "enter")

	tasks := reg.ListAll()
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].ModelName != "mistral" {
		t.Errorf("ModelName = %q, want mistral", tasks[0].ModelName)
	}
	if m.tab != tabDownloads {
		t.Error("expected the view to jump to the downloads tab")
	}
}

func TestDuplicatePullWarnsThenAllows(t *testing.T) {
	m, reg, _ := newTestModel(t)
	reg.Start("mistral")

	m, _ = keyPress(t, m, "p")
	m = typeText(t, m, "mistral")

	m, _ = keyPress(t, m, "enter")
	if got := len(reg.ListAll()); got != 1 {
		t.Fatalf("first enter started a task despite the warning: %d tasks", got)
	}
	if !strings.Contains(m.status, "already downloading") {
		t.Errorf("status = %q, want duplicate warning", m.status)
	}

	m, _ = keyPress(t, m, "enter")
	if got := len(reg.ListAll()); got != 2 {
		t.Errorf("second enter should start an independent task, got %d", got)
	}
}

func TestDeleteConfirmFlow(t *testing.T) {
	m, _, del := newTestModel(t)
	m, _ = update(t, m, snapshotMsg(sampleSnapshot()))

	m, _ = keyPress(t, m, "d")
	if m.mode != modeConfirmDelete {
		t.Fatalf("mode = %d, want confirm", m.mode)
	}
	if !strings.Contains(m.View(), "Delete llama3.2?") {
		t.Error("expected confirmation prompt in view")
	}

	// "n" aborts without touching the daemon.
	m, _ = keyPress(t, m, "n")
	if len(del.deleted) != 0 {
		t.Fatal("delete performed after abort")
	}

	m, _ = keyPress(t, m, "d")
	var cmd tea.Cmd
	m, cmd = keyPress(t, m, "y")
	if cmd == nil {
		t.Fatal("expected a delete command")
	}
	if msg, ok := cmd().(opDoneMsg); !ok || msg.err != nil {
		t.Fatalf("delete cmd returned %#v", msg)
	}
	if len(del.deleted) != 1 || del.deleted[0] != "llama3.2" {
		t.Errorf("deleted = %v, want [llama3.2]", del.deleted)
	}
}

func TestDownloadsPaneRendersAllStates(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = keyPress(t, m, "2")
	m, _ = update(t, m, tasksMsg([]pull.Snapshot{
		{ID: "a", ModelName: "mistral", Status: pull.StatusDownloading, Percent: 42, BytesCompleted: 420, BytesTotal: 1000, StatusText: "pulling layers"},
		{ID: "b", ModelName: "phi4", Status: pull.StatusCompleted, Percent: 100},
		{ID: "c", ModelName: "gemma3", Status: pull.StatusFailed, Error: "manifest unknown"},
		{ID: "d", ModelName: "llava", Status: pull.StatusCancelled},
	}))

	view := m.View()
	for _, want := range []string{"mistral", "42%", "pulling layers", "completed", "manifest unknown", "cancelled"} {
		if !strings.Contains(view, want) {
			t.Errorf("downloads view missing %q", want)
		}
	}
}

func TestChatStreamAppendsChunks(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = keyPress(t, m, "3")

	m = typeText(t, m, "hello")
	var cmd tea.Cmd
	m, cmd = keyPress(t, m, "enter")
	if !m.streaming {
		t.Fatal("expected streaming state after send")
	}
	if cmd == nil {
		t.Fatal("expected a chat start command")
	}

	ch := make(chan provider.StreamChunk, 3)
	ch <- provider.StreamChunk{Delta: "Hi "}
	ch <- provider.StreamChunk{Delta: "there"}
	ch <- provider.StreamChunk{Done: true}
	close(ch)

	m, cmd = update(t, m, chatStartedMsg{ch: ch})
	for cmd != nil && m.streaming {
		var msg tea.Msg
		msg = cmd()
		m, cmd = update(t, m, msg)
	}

	if m.streaming {
		t.Error("stream should have finished")
	}
	last := m.chatMsgs[len(m.chatMsgs)-1]
	if last.role != "assistant" || last.content != "Hi there" {
		t.Errorf("last message = %+v, want assistant %q", last, "Hi there")
	}
}
