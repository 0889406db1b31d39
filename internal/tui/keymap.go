package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the bindings of every view. Some keys are reused per view.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	nextView   key.Binding
	prevView   key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	prevScope  key.Binding
	nextScope  key.Binding

	toggleCollapse key.Binding

	newNote      key.Binding
	editSummary  key.Binding
	deleteEntry  key.Binding
	copyID       key.Binding
	toggleDetail key.Binding

	toggleWidget key.Binding
	widgetUp     key.Binding
	widgetDown   key.Binding
	rangePrev    key.Binding
	rangeNext    key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		nextView:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
		prevView:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous view")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		prevScope:  key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "previous project/client")),
		nextScope:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "next project/client")),

		toggleCollapse: key.NewBinding(key.WithKeys("enter", "space"), key.WithHelp("enter", "collapse/expand")),

		newNote:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new note")),
		editSummary:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit summary")),
		deleteEntry:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete activity")),
		copyID:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		toggleDetail: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "toggle detail")),

		toggleWidget: key.NewBinding(key.WithKeys("space", " "), key.WithHelp("space", "show/hide widget")),
		widgetUp:     key.NewBinding(key.WithKeys("K", "shift+k"), key.WithHelp("K", "move widget up")),
		widgetDown:   key.NewBinding(key.WithKeys("J", "shift+j"), key.WithHelp("J", "move widget down")),
		rangePrev:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous range")),
		rangeNext:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next range")),
	}
}

// ShortHelp returns the always-visible bindings.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.nextView, k.moveUp, k.moveDown, k.prevScope, k.nextScope, k.toggleHelp, k.quit}
}

// FullHelp returns bindings grouped by view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.nextView, k.prevView, k.moveUp, k.moveDown, k.prevScope, k.nextScope, k.reload, k.toggleHelp, k.quit},
		{k.toggleCollapse},
		{k.newNote, k.editSummary, k.deleteEntry, k.copyID, k.toggleDetail},
		{k.toggleWidget, k.widgetUp, k.widgetDown, k.rangePrev, k.rangeNext},
	}
}
