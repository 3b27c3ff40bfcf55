package desktop

import (
	"context"
	"fmt"
	"log/slog"

	"grabtube/internal/entity"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

type historyTab struct {
	app *App
	ctx context.Context //nolint:containedctx // lives as long as the window

	search   *widget.Entry
	order    *widget.Select
	list     *widget.List
	count    *widget.Label
	visible  []entity.HistoryEntry
	selected int
}

func newHistoryTab(ctx context.Context, a *App) *historyTab {
	h := &historyTab{app: a, ctx: ctx, selected: -1}

	h.search = widget.NewEntry()
	h.search.SetPlaceHolder("Search title or URL")
	h.search.OnChanged = func(string) { h.refresh() }

	h.order = widget.NewSelect(historySortOptions, nil)
	h.order.SetSelected(sortNewest)
	h.order.OnChanged = func(string) { h.refresh() }

	h.count = widget.NewLabel("")

	h.list = widget.NewList(
		func() int { return len(h.visible) },
		func() fyne.CanvasObject {
			l := widget.NewLabel("")
			l.Truncation = fyne.TextTruncateEllipsis

			return l
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < len(h.visible) {
				obj.(*widget.Label).SetText(historyLine(h.visible[id]))
			}
		},
	)
	h.list.OnSelected = func(id widget.ListItemID) { h.selected = id }
	h.list.OnUnselected = func(widget.ListItemID) { h.selected = -1 }

	h.refresh()

	return h
}

func (h *historyTab) content() fyne.CanvasObject {
	actions := container.NewHBox(
		widget.NewButtonWithIcon("Copy URL", theme.ContentCopyIcon(), h.onCopyURL),
		widget.NewButtonWithIcon("Remove", theme.DeleteIcon(), h.onRemove),
		widget.NewButtonWithIcon("Prune missing", theme.ViewRefreshIcon(), h.onPrune),
		widget.NewButtonWithIcon("Clear all", theme.ContentClearIcon(), h.onClear),
		h.count,
	)

	top := container.NewBorder(nil, nil, nil, h.order, h.search)

	return container.NewBorder(top, actions, nil, nil, h.list)
}

func (h *historyTab) refresh() {
	h.visible = sortHistory(h.app.history.Search(h.search.Text), h.order.Selected)
	h.selected = -1
	h.list.UnselectAll()
	h.list.Refresh()
	h.count.SetText(fmt.Sprintf("%d downloads", len(h.visible)))
}

func (h *historyTab) current() (entity.HistoryEntry, bool) {
	if h.selected < 0 || h.selected >= len(h.visible) {
		return entity.HistoryEntry{}, false
	}

	return h.visible[h.selected], true
}

func (h *historyTab) onCopyURL() {
	if e, ok := h.current(); ok {
		h.app.clipboard().SetContent(e.URL)
	}
}

func (h *historyTab) onRemove() {
	e, ok := h.current()
	if !ok {
		return
	}

	// selection indexes the filtered view; Remove takes an index into the full list
	index := indexOf(h.app.history.All(), e)
	if index < 0 {
		h.refresh()

		return
	}

	if err := h.app.history.Remove(index); err != nil {
		h.app.showError(err)
	}

	h.refresh()
}

func (h *historyTab) onPrune() {
	removed, err := h.app.history.PruneMissing(h.ctx)
	if err != nil {
		h.app.showError(err)

		return
	}

	h.app.log.InfoContext(h.ctx, "history pruned", slog.Int("removed", removed))
	h.refresh()
}

func (h *historyTab) onClear() {
	dialog.ShowConfirm("Clear history", "Remove every history entry?", func(ok bool) {
		if !ok {
			return
		}

		if err := h.app.history.Clear(); err != nil {
			h.app.showError(err)
		}

		h.refresh()
	}, h.app.window)
}

func indexOf(entries []entity.HistoryEntry, target entity.HistoryEntry) int {
	for i, e := range entries {
		if e.Timestamp.Equal(target.Timestamp) && e.URL == target.URL && e.Path == target.Path {
			return i
		}
	}

	return -1
}
