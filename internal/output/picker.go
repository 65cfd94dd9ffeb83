package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

const pickerTitle = "Select a workflow:"

// inputClosedMsg is sent when the picker's input reaches EOF.
type inputClosedMsg struct{}

// workflowPicker is a single-choice list moved with the arrow keys.
type workflowPicker struct {
	names  []string
	cursor int
	chosen string
	done   bool
	styles styles
}

func (m workflowPicker) Init() tea.Cmd {
	return nil
}

func (m workflowPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case inputClosedMsg:
		if m.done {
			return m, nil
		}
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if m.done {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "ctrl+d", "esc", "q":
			m.done = true
			return m, tea.Quit

		case "enter", "ctrl+j":
			m.chosen = m.names[m.cursor]
			m.done = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.names)-1 {
				m.cursor++
			}

		case "home", "g":
			m.cursor = 0

		case "end", "G":
			m.cursor = len(m.names) - 1

		default:
			// Digits jump straight to a row.
			if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(m.names) {
				m.cursor = n - 1
			}
		}
	}
	return m, nil
}

func (m workflowPicker) View() string {
	title := m.styles.bold.Render(pickerTitle)
	if m.done {
		if m.chosen == "" {
			return ""
		}
		return title + " " + m.styles.id.Render(m.chosen) + "\n"
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	for i, name := range m.names {
		if i == m.cursor {
			b.WriteString(m.styles.start.Render(">") + " " + m.styles.id.Render(name) + "\n")
			continue
		}
		b.WriteString("  " + name + "\n")
	}
	b.WriteString(m.styles.dim.Render("↑/↓ to move, enter to select, esc to cancel") + "\n")
	return b.String()
}

// eofReader calls onEOF once when the wrapped reader is exhausted. Bubble Tea
// keeps waiting for keys after EOF, so the picker needs to be told.
type eofReader struct {
	r     io.Reader
	once  sync.Once
	onEOF func()
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.EOF) {
		e.once.Do(e.onEOF)
	}
	return n, err
}

// pickerInput passes a terminal through untouched so it can be put in raw
// mode and cancelled cleanly. Pipes and in-memory readers are wrapped to
// detect EOF.
func pickerInput(in io.Reader, onEOF func()) io.Reader {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return f
	}
	return &eofReader{r: in, onEOF: onEOF}
}

// SelectWorkflow shows names as an interactive list reading keys from in and
// returns the chosen name. Up and down (or k and j) move, a digit jumps to
// that row and enter chooses. Esc, q, Ctrl+C, Ctrl+D and the end of input
// cancel, which returns an empty name and no error.
func (p *Printer) SelectWorkflow(ctx context.Context, in io.Reader, names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}

	var prog *tea.Program
	input := pickerInput(in, func() { prog.Send(inputClosedMsg{}) })
	prog = tea.NewProgram(
		workflowPicker{names: names, styles: p.styles},
		tea.WithContext(ctx),
		tea.WithInput(input),
		tea.WithOutput(p.out),
	)

	final, err := prog.Run()
	if errors.Is(err, tea.ErrInterrupted) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("workflow selection failed: %w", err)
	}

	picker, ok := final.(workflowPicker)
	if !ok {
		return "", nil
	}
	return picker.chosen, nil
}
