package output

import (
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Spinner shows progress for a long-running step. It only animates in text
// mode on a terminal; elsewhere only the final line is written.
type Spinner struct {
	r    *Renderer
	msg  string
	once sync.Once

	program *tea.Program
	done    chan struct{}
}

type stopSpinnerMsg struct{}

type spinnerModel struct {
	spinner spinner.Model
	msg     string
	stopped bool
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stopSpinnerMsg:
		m.stopped = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.stopped {
		return ""
	}
	return m.spinner.View() + " " + m.msg
}

// NewSpinner creates a stopped spinner.
func (r *Renderer) NewSpinner(msg string) *Spinner {
	return &Spinner{r: r, msg: msg}
}

// Start begins animating.
func (s *Spinner) Start() {
	if !s.r.isTTY || s.r.EffectiveMode() != ModeText {
		return
	}
	model := spinnerModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(s.r.styles.Info)),
		msg:     s.msg,
	}
	s.program = tea.NewProgram(model, tea.WithOutput(s.r.errOut), tea.WithInput(nil))
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_, _ = s.program.Run()
	}()
}

func (s *Spinner) stop() {
	s.once.Do(func() {
		if s.program == nil {
			return
		}
		s.program.Send(stopSpinnerMsg{})
		<-s.done
	})
}

// Success stops the spinner and writes a success line.
func (s *Spinner) Success(msg string) {
	s.stop()
	s.r.Success(msg)
}

// Fail stops the spinner and writes an error line.
func (s *Spinner) Fail(msg string) {
	s.stop()
	s.r.Error(msg)
}

// Stop stops the spinner without writing anything.
func (s *Spinner) Stop() {
	s.stop()
}
