// Package desktop is the windowed front end built on Fyne.
package desktop

import (
	"context"
	"log/slog"

	"grabtube/internal/consts"
	"grabtube/internal/entity"
	"grabtube/internal/service"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
)

// Queue is the download manager as seen by the UI.
type Queue interface {
	Enqueue(ctx context.Context, req entity.Request) (string, error)
	CancelCurrent()
	Pending() []entity.Task
	Active() string
	Events() <-chan entity.Event
}

// Extractor resolves metadata for the preview panel.
type Extractor interface {
	Extract(ctx context.Context, url string) (*entity.VideoInfo, error)
}

// SettingsStore persists user preferences.
type SettingsStore interface {
	Get() entity.Preferences
	Set(update func(*entity.Preferences)) error
	Reset() error
}

// HistoryStore persists completed downloads.
type HistoryStore interface {
	Add(entry entity.HistoryEntry) error
	Remove(index int) error
	Clear() error
	All() []entity.HistoryEntry
	Search(query string) []entity.HistoryEntry
	PruneMissing(ctx context.Context) (int, error)
}

// App owns the main window and its tabs.
type App struct {
	log       *slog.Logger
	queue     Queue
	extractor Extractor
	settings  SettingsStore
	history   HistoryStore

	fyneApp fyne.App
	window  fyne.Window

	downloads   *downloadTab
	historyTab  *historyTab
	settingsTab *settingsTab
}

// New builds the window. Nothing is shown until Run.
func New(log *slog.Logger, queue Queue, extractor Extractor, settings SettingsStore, history HistoryStore) *App {
	a := &App{
		log:       log.With(slog.String("package", "desktop")),
		queue:     queue,
		extractor: extractor,
		settings:  settings,
		history:   history,
		fyneApp:   app.NewWithID(consts.AppID),
	}

	a.window = a.fyneApp.NewWindow(consts.AppName)

	width, height, ok := parseGeometry(settings.Get().WindowGeometry)
	if !ok {
		width, height, _ = parseGeometry(consts.DefaultWindowGeometry)
	}

	a.window.Resize(fyne.NewSize(width, height))

	return a
}

// Run shows the window and blocks until it is closed.
// Manager events are consumed on a separate goroutine and applied on the UI goroutine.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.historyTab = newHistoryTab(ctx, a)
	a.downloads = newDownloadTab(ctx, a)
	a.settingsTab = newSettingsTab(a)

	tabs := container.NewAppTabs(
		container.NewTabItem("Download", a.downloads.content()),
		container.NewTabItem("History", a.historyTab.content()),
		container.NewTabItem("Settings", a.settingsTab.content()),
	)
	tabs.OnSelected = func(item *container.TabItem) {
		if item.Text == "History" {
			a.historyTab.refresh()
		}
	}

	a.window.SetContent(tabs)
	a.window.SetCloseIntercept(func() {
		a.saveGeometry()
		a.window.Close()
	})

	go service.Dispatch(ctx, a.queue.Events(), service.ObserverFuncs{
		Progress: func(taskID string, p entity.Progress) {
			fyne.Do(func() { a.downloads.onProgress(taskID, p) })
		},
		Complete: func(taskID, path string, summary entity.Summary) {
			fyne.Do(func() { a.downloads.onComplete(taskID, path, summary) })
		},
		Error: func(taskID, message string) {
			fyne.Do(func() { a.downloads.onError(taskID, message) })
		},
	})

	a.log.InfoContext(ctx, "window opened")
	a.window.ShowAndRun()
	a.log.InfoContext(ctx, "window closed")
}

func (a *App) saveGeometry() {
	size := a.window.Canvas().Size()
	geometry := formatGeometry(size.Width, size.Height)

	err := a.settings.Set(func(p *entity.Preferences) { p.WindowGeometry = geometry })
	if err != nil {
		a.log.Error("save window geometry", slog.Any("error", err))
	}
}

func (a *App) clipboard() fyne.Clipboard {
	return a.fyneApp.Clipboard()
}

func (a *App) showError(err error) {
	a.log.Error("ui error", slog.Any("error", err))
	dialog.ShowError(err, a.window)
}

// Quit closes the window from any goroutine.
func (a *App) Quit() {
	fyne.Do(a.fyneApp.Quit)
}
