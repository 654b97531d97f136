package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"ptd/internal/config"
	"ptd/internal/domain"
	"ptd/internal/storage"
)

const maxStackLines = 10

// ErrorViewer displays the failures of the last run in an interactive TUI.
// Toggling a failure resolved is written back through the storage.
type ErrorViewer struct {
	config  *config.Config
	storage storage.Storage
}

// NewErrorViewer creates a new ErrorViewer
func NewErrorViewer(cfg *config.Config, st storage.Storage) *ErrorViewer {
	return &ErrorViewer{
		config:  cfg,
		storage: st,
	}
}

// failureBook is the state behind the viewer
type failureBook struct {
	output  *domain.RunOutput
	storage storage.Storage
}

func (b *failureBook) unresolved() int {
	count := 0
	for _, f := range b.output.Details {
		if !f.Resolved {
			count++
		}
	}
	return count
}

// toggle flips the resolved flag of failure i and persists the output
func (b *failureBook) toggle(i int) error {
	if i < 0 || i >= len(b.output.Details) {
		return nil
	}
	b.output.Details[i].Resolved = !b.output.Details[i].Resolved
	if b.storage == nil {
		return nil
	}
	if err := b.storage.Save(b.output); err != nil {
		return fmt.Errorf("failed to save resolved status: %w", err)
	}
	return nil
}

func (b *failureBook) itemText(i int) string {
	failure := b.output.Details[i]
	name := failure.TestName
	if name == "" {
		name = fmt.Sprintf("Test %d", i+1)
	}
	if failure.Crashed {
		name += " [red](crashed)"
	}
	if failure.Resolved {
		return fmt.Sprintf("[gray]✓ [yellow]%d.[gray] %s[white]", i+1, name)
	}
	return fmt.Sprintf("[yellow]%d.[white] %s", i+1, name)
}

func (b *failureBook) header() string {
	meta := b.output.Meta
	return fmt.Sprintf(" Run %s: %d failures, %d unresolved | ↑↓ navigate, [yellow]R[white] resolve, → details, ← back, Ctrl+C exit ",
		shortRunID(meta.RunID), len(b.output.Details), b.unresolved())
}

func shortRunID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// View displays failures until the user exits
func (ev *ErrorViewer) View(output *domain.RunOutput) error {
	if output == nil || len(output.Details) == 0 {
		color.Green("✓ No test failures found!")
		return nil
	}
	book := &failureBook{output: output, storage: ev.storage}

	app := tview.NewApplication()
	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	for i := range output.Details {
		list.AddItem(book.itemText(i), "", 0, nil)
	}
	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan)

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)
	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)
	statusView := tview.NewTextView().
		SetDynamicColors(true)

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(tview.NewFlex().
			AddItem(detailsView, 0, 1, false).
			AddItem(tview.NewBox(), 2, 0, false), 0, 1, false)

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	refresh := func() {
		headerView.SetText(book.header())
		index := list.GetCurrentItem()
		if index < 0 || index >= len(output.Details) {
			return
		}
		statsView.SetText(formatFailureStats(output.Details[index], index+1))
		detailsView.SetText(formatFailureDetails(output.Details[index])).ScrollToBeginning()
	}

	list.SetChangedFunc(func(int, string, string, rune) { refresh() })
	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() != 'r' && event.Rune() != 'R' {
				return event
			}
			index := list.GetCurrentItem()
			if err := book.toggle(index); err != nil {
				statusView.SetText("[red]" + tview.Escape(err.Error()))
			} else {
				statusView.SetText("")
			}
			list.SetItemText(index, book.itemText(index), "")
			refresh()
			return nil
		}
		return event
	})
	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(list)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})
	refresh()

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(statusView, 1, 0, false)

	if err := app.SetRoot(layout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// formatFailureDetails renders a failure with tview color tags
func formatFailureDetails(failure domain.TestFailure) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[red]✗ Test: %s[white]\n\n", tview.Escape(failure.TestName))
	fmt.Fprintf(&b, "[cyan]File: %s[white]\n", failure.FilePath)
	if failure.File != "" && failure.Line > 0 {
		fmt.Fprintf(&b, "[yellow]Location: %s:%d[white]\n", failure.File, failure.Line)
	}
	if failure.Worker != "" {
		fmt.Fprintf(&b, "[cyan]Worker: %s[white]\n", failure.Worker)
	}
	if failure.Crashed {
		b.WriteString("[red]The worker crashed while running this test[white]\n")
	}
	b.WriteString("\n")

	if failure.Message != "" {
		fmt.Fprintf(&b, "[yellow]Message:[white]\n%s\n\n", tview.Escape(failure.Message))
	}
	if failure.ErrorDetails != "" {
		fmt.Fprintf(&b, "[yellow]Error Details:[white]\n%s\n\n", tview.Escape(failure.ErrorDetails))
	}
	if len(failure.StackTrace) > 0 {
		b.WriteString("[yellow]Stack Trace:[white]\n")
		for i, frame := range failure.StackTrace {
			if i == maxStackLines {
				fmt.Fprintf(&b, "  [gray]... and %d more lines[white]\n", len(failure.StackTrace)-maxStackLines)
				break
			}
			fmt.Fprintf(&b, "  %s\n", tview.Escape(frame))
		}
	}
	return b.String()
}

// formatFailureStats renders the path::test line above the details
func formatFailureStats(failure domain.TestFailure, number int) string {
	path := failure.FilePath
	if path == "" {
		path = "Unknown path"
	}
	testCase := failure.TestName
	if testCase == "" {
		testCase = fmt.Sprintf("Test %d", number)
	}
	return fmt.Sprintf("[cyan]path:[white] [yellow]%s[white]::[yellow]%s[white]\n", path, tview.Escape(testCase))
}
