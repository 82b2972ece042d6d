package views

import (
	"context"
	"errors"
	"time"

	"github.com/Southclaws/fault/fmsg"
	"github.com/darkhz/tview"
	"go.uber.org/zap"

	"github.com/darkhz/avrctl/logging"
	"github.com/darkhz/avrctl/ui/theme"
)

const (
	statusInputPage    viewName = "input"
	statusMessagesPage viewName = "messages"
)

type statusBarView struct {
	// MessageBox is an area to display messages.
	MessageBox *tview.TextView

	// Help is an area to display help keybindings.
	Help *tview.TextView

	// InputField is an area to interact with messages.
	InputField *tview.InputField

	sctx    context.Context
	scancel context.CancelFunc
	msgchan chan message

	*Views

	*tview.Pages
}

type message struct {
	text    string
	persist bool
}

func (s *statusBarView) Initialize() error {
	s.Pages = tview.NewPages()
	s.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	s.InputField = tview.NewInputField()
	s.InputField.SetLabelColor(theme.GetColor(theme.ThemeText))
	s.InputField.SetFieldTextColor(theme.GetColor(theme.ThemeText))
	s.InputField.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))
	s.InputField.SetFieldBackgroundColor(theme.GetColor(theme.ThemeBackground))

	s.MessageBox = tview.NewTextView()
	s.MessageBox.SetDynamicColors(true)
	s.MessageBox.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	s.Help = tview.NewTextView()
	s.Help.SetDynamicColors(true)
	s.Help.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	s.AddPage(statusInputPage.String(), s.InputField, true, true)
	s.AddPage(statusMessagesPage.String(), s.MessageBox, true, true)
	s.SwitchToPage(statusMessagesPage.String())

	s.msgchan = make(chan message, 10)
	s.sctx, s.scancel = context.WithCancel(context.Background())

	go s.startStatus()

	s.layout.AddItem(s.Pages, 1, 0, false)

	return nil
}

func (s *statusBarView) SetRootView(root *Views) {
	s.Views = root
}

func (s *statusBarView) Release() {
	if s.scancel != nil {
		s.scancel()
	}
}

// SetInput sets the inputfield label and returns the single character
// that was typed in reply.
func (s *statusBarView) SetInput(label string) string {
	input := make(chan string, 1)

	s.app.InstantDraw(func() {
		s.InputField.SetText("")
		s.InputField.SetLabel("[::b]" + label + " ")
		s.InputField.SetAcceptanceFunc(tview.InputFieldMaxLength(1))
		s.InputField.SetChangedFunc(func(text string) {
			if text == "" {
				return
			}

			s.InputField.SetChangedFunc(nil)
			s.SwitchToPage(statusMessagesPage.String())

			_, item := s.pages.GetFrontPage()
			s.app.FocusPrimitive(item)

			input <- text
		})

		s.SwitchToPage(statusInputPage.String())
		s.app.FocusPrimitive(s.InputField)
	})

	select {
	case text := <-input:
		return text

	case <-s.sctx.Done():
		return ""
	}
}

// InfoMessage sends an info message to the status bar.
func (s *statusBarView) InfoMessage(text string, persist bool) {
	if s.msgchan == nil {
		return
	}

	select {
	case s.msgchan <- message{theme.ColorWrap(theme.ThemeStatusInfo, text), persist}:
	default:
	}
}

// ErrorMessage sends an error message to the status bar.
func (s *statusBarView) ErrorMessage(err error) {
	if s.msgchan == nil || errors.Is(err, context.Canceled) {
		return
	}

	logging.L().Warn("operation failed", zap.Error(err))

	text := fmsg.GetIssue(err)
	if text == "" {
		text = err.Error()
	}

	select {
	case s.msgchan <- message{theme.ColorWrap(theme.ThemeStatusError, "Error: "+tview.Escape(text)), false}:
	default:
	}
}

// startStatus starts the message event loop
func (s *statusBarView) startStatus() {
	var text string
	var cleared bool

	t := time.NewTicker(2 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-s.sctx.Done():
			return

		case msg, ok := <-s.msgchan:
			if !ok {
				return
			}

			t.Reset(2 * time.Second)

			cleared = false

			if msg.persist {
				text = msg.text
			} else {
				text = ""
			}

			s.app.InstantDraw(func() {
				s.MessageBox.SetText(msg.text)
			})

		case <-t.C:
			if cleared {
				continue
			}

			cleared = true

			s.app.InstantDraw(func() {
				s.MessageBox.SetText(text)
			})
		}
	}
}
