package views

import (
	"context"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/darkhz/avrctl/ui/keybindings"
	"github.com/darkhz/avrctl/ui/theme"
)

// modalViews holds all the displayed modals on the screen.
type modalViews struct {
	modals []*modalView

	rv *Views
}

// Initialize initializes the modals view.
func (m *modalViews) Initialize() error {
	m.modals = make([]*modalView, 0, 10)

	return nil
}

// SetRootView sets the root view of the modals view.
func (m *modalViews) SetRootView(v *Views) {
	m.rv = v
}

// newModal returns a modal.
func (m *modalViews) newModal(name, title string, item tview.Primitive, height, width int) *modalView {
	var modal *modalView

	box := tview.NewBox()
	box.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	modalTitle := tview.NewTextView()
	modalTitle.SetDynamicColors(true)
	modalTitle.SetText("[::bu]" + title)
	modalTitle.SetTextAlign(tview.AlignCenter)
	modalTitle.SetTextColor(theme.GetColor(theme.ThemeText))
	modalTitle.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	closeButton := tview.NewTextView()
	closeButton.SetRegions(true)
	closeButton.SetDynamicColors(true)
	closeButton.SetText(`["close"][::b][X[]`)
	closeButton.SetTextAlign(tview.AlignRight)
	closeButton.SetTextColor(theme.GetColor(theme.ThemeText))
	closeButton.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))
	closeButton.SetHighlightedFunc(func(added, _, _ []string) {
		if added == nil {
			return
		}

		modal.remove()
	})

	titleFlex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(box, 0, 1, false).
		AddItem(modalTitle, 0, 10, false).
		AddItem(closeButton, 0, 1, false)

	flex := tview.NewFlex()
	flex.SetBorder(true)
	flex.SetDirection(tview.FlexRow)

	flex.AddItem(titleFlex, 1, 0, false)
	flex.AddItem(horizontalLine(), 1, 0, false)
	flex.AddItem(item, 0, 1, true)
	flex.SetBorderColor(theme.GetColor(theme.ThemeBorder))
	flex.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	modal = &modalView{
		name: name,
		flex: flex,

		height: height,
		width:  width,

		mgr: m,
	}

	return modal
}

// newModalWithTable returns a new modal with an embedded table.
func (m *modalViews) newModalWithTable(name, title string, height, width int) *tableModalView {
	var modal *modalView

	table := tview.NewTable()
	table.SetSelectorWrap(true)
	table.SetSelectable(true, false)
	table.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))
	table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if m.rv.kb.Key(event) == keybindings.KeyClose {
			modal.remove()
		}

		return ignoreDefaultEvent(event)
	})

	modal = m.newModal(name, title, table, height, width)

	return &tableModalView{
		table:     table,
		modalView: modal,
	}
}

// newConfirmModal returns a confirmation modal.
func (m *modalViews) newConfirmModal(name, title, message string) *confirmModalView {
	message += "\n\nPress y/n to Confirm/Cancel, or click the required button."
	buttonsText := `["confirm"][::b][Confirm[] ["cancel"][::b][Cancel[]`

	width, height := m.getModalDimensions(message, buttonsText)

	buttons := tview.NewTextView()
	buttons.SetRegions(true)
	buttons.SetText(buttonsText)
	buttons.SetDynamicColors(true)
	buttons.SetTextAlign(tview.AlignCenter)
	buttons.SetTextColor(theme.GetColor(theme.ThemeText))
	buttons.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	textview := tview.NewTextView()
	textview.SetText(message)
	textview.SetDynamicColors(true)
	textview.SetTextAlign(tview.AlignCenter)
	textview.SetTextColor(theme.GetColor(theme.ThemeText))
	textview.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(textview, 0, 1, false).
		AddItem(buttons, 1, 0, true)

	return &confirmModalView{
		buttons:   buttons,
		modalView: m.newModal(name, title, flex, height, width),
	}
}

// removeModal removes the specified modal from the screen.
func (m *modalViews) removeModal(currentModal *modalView) {
	m.rv.pages.RemovePage(currentModal.name)

	for i, modal := range m.modals {
		if modal == currentModal {
			m.modals[i] = m.modals[len(m.modals)-1]
			m.modals = m.modals[:len(m.modals)-1]

			break
		}
	}

	m.setPrimaryFocus()
}

// displayModal displays the specified modal to the screen.
func (m *modalViews) displayModal(modal *modalView) {
	m.rv.pages.AddAndSwitchToPage(modal.name, modal.x, true)
	for _, modal := range m.modals {
		m.rv.pages.ShowPage(modal.name)
	}
	m.rv.pages.ShowPage(m.rv.pages.currentPage())
	m.rv.app.FocusPrimitive(modal.flex)

	m.modals = append(m.modals, modal)

	m.resizeModal()
}

// resizeModal resizes all the displayed modals according to the current screen dimensions.
func (m *modalViews) resizeModal() {
	var drawn bool

	for _, modal := range m.modals {
		_, _, pageWidth, pageHeight := m.rv.layout.GetInnerRect()

		if modal == nil || !modal.isOpen ||
			(modal.pageHeight == pageHeight && modal.pageWidth == pageWidth) {
			continue
		}

		modal.pageHeight = pageHeight
		modal.pageWidth = pageWidth

		height := min(modal.height, pageHeight)
		width := min(modal.width, pageWidth)

		x := (pageWidth - modal.width) / 2
		y := (pageHeight - modal.height) / 2

		modal.y.ResizeItem(modal.flex, height, 0)
		modal.y.ResizeItem(nil, y, 0)

		modal.x.ResizeItem(modal.y, width, 0)
		modal.x.ResizeItem(nil, x, 0)

		drawn = true
	}

	if drawn {
		go m.rv.app.Refresh()
	}
}

// setPrimaryFocus sets the focus to the appropriate primitive.
func (m *modalViews) setPrimaryFocus() {
	if pg, _ := m.rv.status.GetFrontPage(); pg == statusInputPage.String() {
		m.rv.app.FocusPrimitive(m.rv.status.InputField)
		return
	}

	if len(m.modals) > 0 {
		m.rv.app.FocusPrimitive(m.modals[len(m.modals)-1].flex)
		return
	}

	m.rv.app.FocusPrimitive(m.rv.pages)
}

// getModal returns the modal with the given name, if it is displayed.
func (m *modalViews) getModal(name string) (*modalView, bool) {
	for _, modal := range m.modals {
		if modal.name == name {
			return modal, true
		}
	}

	return nil, false
}

// modalMouseHandler handles mouse events for a modal.
func (m *modalViews) modalMouseHandler(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
	for _, modal := range m.modals {
		if modal == nil || !modal.isOpen || action != tview.MouseLeftClick {
			continue
		}

		if modal.flex.InRect(event.Position()) {
			m.rv.app.FocusPrimitive(modal.flex)
		} else {
			modal.remove()
		}
	}

	return event, action
}

// getModalDimensions returns the height and width to set for the modal
// according to the provided text.
// Adapted from: https://github.com/rivo/tview/blob/1b91b8131c43011d923fe59855b4de3571dac997/modal.go#L156
func (m *modalViews) getModalDimensions(text, buttons string) (width int, height int) {
	_, _, screenWidth, _ := m.rv.pages.GetRect()
	buttonWidth := tview.TaggedStringWidth(buttons) - 2

	width = max(screenWidth/3, buttonWidth)

	padding := 6
	if buttonWidth < 0 {
		padding -= 2
	}

	return width + 4, len(tview.WordWrap(text, width)) + padding
}

// modalView stores a layout to display a floating modal.
type modalView struct {
	name   string
	isOpen bool

	height, width         int
	pageHeight, pageWidth int

	y, x *tview.Flex
	flex *tview.Flex

	mgr *modalViews
}

// show shows the modal onto the screen.
func (m *modalView) show() {
	if _, ok := m.mgr.getModal(m.name); ok {
		return
	}

	m.isOpen = true

	m.y = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 0, false).
		AddItem(m.flex, m.height, 0, true).
		AddItem(nil, 1, 0, false)

	m.x = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(nil, 0, 1, false).
		AddItem(m.y, m.width, 0, true).
		AddItem(nil, 0, 1, false)

	m.mgr.displayModal(m)
}

// remove removes the modal from the screen.
func (m *modalView) remove() {
	if m == nil {
		return
	}

	m.isOpen = false
	m.pageWidth = 0
	m.pageHeight = 0

	m.mgr.removeModal(m)
}

// tableModalView holds a modal view with an embedded table.
type tableModalView struct {
	table *tview.Table

	*modalView
}

// confirmModalView holds a modal which displays a message and asks for confirmation from the user.
type confirmModalView struct {
	buttons *tview.TextView

	*modalView
}

// getReply displays a modal, and waits for the user to confirm or the provided context to be completed
// to close the modal. It reports whether the user confirmed.
func (c *confirmModalView) getReply(ctx context.Context) bool {
	reply := make(chan bool, 1)

	send := func(confirmed bool) {
		c.remove()

		select {
		case reply <- confirmed:
		default:
		}
	}

	c.buttons.SetHighlightedFunc(func(added, _, _ []string) {
		if added == nil {
			return
		}

		send(added[0] == "confirm")
	})
	c.buttons.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Rune() == 'y':
			send(true)

		case event.Rune() == 'n', c.mgr.rv.kb.Key(event) == keybindings.KeyClose:
			send(false)
		}

		return event
	})

	c.mgr.rv.app.QueueDraw(func() {
		if m, ok := c.mgr.getModal(c.name); ok {
			m.remove()
		}

		c.show()
	})

	select {
	case <-ctx.Done():
		c.mgr.rv.app.QueueDraw(c.remove)
		return false

	case r := <-reply:
		return r
	}
}
