package desktop

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"grabtube/internal/consts"
	"grabtube/internal/entity"
	"grabtube/pkg/urls"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const (
	thumbnailTimeout = 10 * time.Second
	thumbnailMaxSize = 5 << 20
	thumbnailWidth   = 192
	thumbnailHeight  = 108
)

// taskMeta is what the UI remembers about a task it enqueued.
type taskMeta struct {
	url      string
	title    string
	duration string
	state    entity.State
}

// downloadTab is owned by the UI goroutine; every method must run there.
type downloadTab struct {
	app *App
	ctx context.Context //nolint:containedctx // lives as long as the window

	urlEntry  *widget.Entry
	fetchBtn  *widget.Button
	title     *widget.Label
	uploader  *widget.Label
	duration  *widget.Label
	playlist  *widget.Label
	thumbnail *canvas.Image

	kind         *widget.RadioGroup
	quality      *widget.Select
	sponsorBlock *widget.Check

	downloadBtn *widget.Button
	cancelBtn   *widget.Button
	progress    *widget.ProgressBar
	status      *widget.Label
	stats       *widget.Label

	queueList *widget.List
	queueRows []string

	info        *entity.VideoInfo
	extracting  bool
	outstanding int
	tasks       map[string]*taskMeta
}

func newDownloadTab(ctx context.Context, a *App) *downloadTab {
	prefs := a.settings.Get()

	t := &downloadTab{app: a, ctx: ctx, tasks: make(map[string]*taskMeta)}

	t.urlEntry = widget.NewEntry()
	t.urlEntry.SetPlaceHolder("Paste a YouTube URL")
	t.urlEntry.OnSubmitted = func(string) { t.onFetch() }

	t.fetchBtn = widget.NewButton("Fetch", t.onFetch)

	t.title = widget.NewLabel("")
	t.title.Truncation = fyne.TextTruncateEllipsis
	t.uploader = widget.NewLabel("")
	t.duration = widget.NewLabel("")
	t.playlist = widget.NewLabel("")

	t.thumbnail = canvas.NewImageFromResource(nil)
	t.thumbnail.FillMode = canvas.ImageFillContain
	t.thumbnail.SetMinSize(fyne.NewSize(thumbnailWidth, thumbnailHeight))

	t.kind = widget.NewRadioGroup([]string{"Video", "Audio"}, nil)
	t.kind.Horizontal = true
	t.kind.Required = true

	if prefs.Format == consts.KindAudio {
		t.kind.SetSelected("Audio")
	} else {
		t.kind.SetSelected("Video")
	}

	t.quality = widget.NewSelect(qualityOptions(nil), nil)
	t.quality.SetSelected(prefs.Quality)

	if t.quality.Selected == "" {
		t.quality.SetSelected(consts.QualityBest)
	}

	t.sponsorBlock = widget.NewCheck("Remove sponsor segments", nil)
	t.sponsorBlock.SetChecked(prefs.SponsorBlock)

	t.downloadBtn = widget.NewButtonWithIcon("Download", theme.DownloadIcon(), t.onDownload)
	t.downloadBtn.Importance = widget.HighImportance
	t.cancelBtn = widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), t.onCancel)
	t.cancelBtn.Disable()

	t.progress = widget.NewProgressBar()
	t.progress.Max = 100
	t.status = widget.NewLabel("Ready")
	t.status.Truncation = fyne.TextTruncateEllipsis
	t.stats = widget.NewLabel("")

	t.queueList = widget.NewList(
		func() int { return len(t.queueRows) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < len(t.queueRows) {
				obj.(*widget.Label).SetText(t.queueRows[id])
			}
		},
	)

	return t
}

func (t *downloadTab) content() fyne.CanvasObject {
	pasteBtn := widget.NewButtonWithIcon("", theme.ContentPasteIcon(), t.onPaste)

	urlRow := container.NewBorder(nil, nil, nil, container.NewHBox(pasteBtn, t.fetchBtn), t.urlEntry)

	meta := container.NewBorder(nil, nil, t.thumbnail, nil,
		container.NewVBox(t.title, t.uploader, t.duration, t.playlist))

	options := container.NewHBox(t.kind, widget.NewLabel("Quality"), t.quality, t.sponsorBlock)
	actions := container.NewHBox(t.downloadBtn, t.cancelBtn)

	top := container.NewVBox(urlRow, meta, options, actions, t.progress, t.status, t.stats,
		widget.NewLabelWithStyle("Queue", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))

	return container.NewBorder(top, nil, nil, nil, t.queueList)
}

func (t *downloadTab) onPaste() {
	text := strings.TrimSpace(t.app.clipboard().Content())
	if text == "" {
		return
	}

	t.urlEntry.SetText(text)
	t.onFetch()
}

func (t *downloadTab) onFetch() {
	raw := urls.FixScheme(t.urlEntry.Text)
	if raw == "" || t.extracting {
		return
	}

	if !urls.IsValid(raw) {
		t.status.SetText(errorText("not a valid http(s) URL"))

		return
	}

	t.urlEntry.SetText(raw)

	t.extracting = true
	t.fetchBtn.Disable()
	t.status.SetText("Extracting info...")
	t.title.SetText("Loading...")
	t.uploader.SetText("")
	t.duration.SetText("")
	t.playlist.SetText("")
	t.thumbnail.Resource = nil
	t.thumbnail.Refresh()

	go func() {
		info, err := t.app.extractor.Extract(t.ctx, raw)

		var thumb fyne.Resource
		if err == nil {
			thumb = t.fetchThumbnail(info.ThumbnailURL)
		}

		fyne.Do(func() {
			if err != nil {
				t.onExtractError(err)

				return
			}

			t.onExtracted(info, thumb)
		})
	}()
}

func (t *downloadTab) onExtracted(info *entity.VideoInfo, thumb fyne.Resource) {
	t.info = info
	t.extracting = false
	t.fetchBtn.Enable()

	t.title.SetText(info.Title)
	t.uploader.SetText(info.Uploader)
	t.duration.SetText(info.Duration)
	t.playlist.SetText(playlistLabel(info))
	t.downloadBtn.SetText(downloadLabel(info))
	t.status.SetText("Ready to download")

	if thumb != nil {
		t.thumbnail.Resource = thumb
		t.thumbnail.Refresh()
	}

	if len(info.Resolutions) > 0 {
		selected := t.quality.Selected
		t.quality.Options = qualityOptions(info.Resolutions)
		t.quality.Refresh()

		found := false

		for _, opt := range t.quality.Options {
			found = found || opt == selected
		}

		if !found {
			t.quality.SetSelected(consts.QualityBest)
		}
	}
}

func (t *downloadTab) onExtractError(err error) {
	t.info = nil
	t.extracting = false
	t.fetchBtn.Enable()
	t.title.SetText("Error fetching info")
	t.downloadBtn.SetText(downloadLabel(nil))
	t.status.SetText(errorText(err.Error()))
}

// fetchThumbnail downloads the preview image; failures leave the preview empty.
func (t *downloadTab) fetchThumbnail(url string) fyne.Resource {
	if url == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(t.ctx, thumbnailTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.app.log.DebugContext(ctx, "thumbnail download failed", slog.Any("error", err))

		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, thumbnailMaxSize))
	if err != nil {
		return nil
	}

	return fyne.NewStaticResource("thumbnail"+filepath.Ext(url), data)
}

func (t *downloadTab) onDownload() {
	raw := urls.FixScheme(t.urlEntry.Text)
	if raw == "" {
		return
	}

	prefs := t.app.settings.Get()

	base := entity.Request{
		OutputDir:      prefs.DownloadDir,
		Kind:           consts.KindVideo,
		Quality:        t.quality.Selected,
		AudioCodec:     prefs.AudioFormat,
		EmbedThumbnail: prefs.EmbedThumbnail,
		SponsorBlock:   t.sponsorBlock.Checked,
	}

	if t.kind.Selected == "Audio" {
		base.Kind = consts.KindAudio
	}

	var reqs []entity.Request

	info := t.info
	if info != nil && info.IsPlaylist && len(info.Entries) > 0 {
		for _, e := range info.Entries {
			req := base
			req.URL, req.Title = e.URL, e.Title
			reqs = append(reqs, req)
		}
	} else {
		req := base
		req.URL = raw

		if info != nil && info.URL == raw {
			req.Title = info.Title
		}

		reqs = append(reqs, req)
	}

	queued := 0

	for _, req := range reqs {
		id, err := t.app.queue.Enqueue(t.ctx, req)
		if err != nil {
			t.app.showError(fmt.Errorf("enqueue %s: %w", req.URL, err))

			break
		}

		meta := &taskMeta{url: req.URL, title: req.Title, state: entity.StateQueued}
		if info != nil && !info.IsPlaylist {
			meta.duration = info.Duration
		}

		t.tasks[id] = meta
		t.outstanding++
		queued++
	}

	if queued == 0 {
		return
	}

	if queued > 1 {
		t.status.SetText(fmt.Sprintf("Queued %d videos", queued))
	} else {
		t.status.SetText("Starting download...")
	}

	t.app.log.InfoContext(t.ctx, "tasks queued", slog.Int("count", queued), slog.String("kind", base.Kind))

	t.cancelBtn.Enable()
	t.refreshQueue()
}

func (t *downloadTab) onCancel() {
	t.app.queue.CancelCurrent()
	t.status.SetText("Cancelling...")
}

func (t *downloadTab) onProgress(taskID string, p entity.Progress) {
	if meta, ok := t.tasks[taskID]; ok {
		meta.state = p.State

		if p.Title != "" {
			meta.title = p.Title
		}
	}

	t.progress.SetValue(p.Percent)
	t.status.SetText(statusText(p))
	t.stats.SetText(statsText(p))

	if p.State == entity.StateCancelled {
		t.finish(taskID)
	}

	t.refreshQueue()
}

func (t *downloadTab) onComplete(taskID, path string, summary entity.Summary) {
	meta := t.tasks[taskID]
	if meta == nil {
		meta = &taskMeta{}
	}

	title := summary.Title
	if title == "" {
		title = meta.title
	}

	if title == "" {
		title = filepath.Base(path)
	}

	t.progress.SetValue(100)
	t.status.SetText("Complete: " + filepath.Base(path))
	t.stats.SetText("")

	err := t.app.history.Add(entity.HistoryEntry{
		URL:        summary.URL,
		Title:      title,
		Filename:   filepath.Base(path),
		Path:       path,
		Format:     summary.Kind,
		Quality:    summary.Quality,
		FileSizeMB: summary.FileSizeMB,
		Duration:   meta.duration,
	})
	if err != nil {
		t.app.log.ErrorContext(t.ctx, "add history entry", slog.Any("error", err))
	}

	t.app.historyTab.refresh()
	t.finish(taskID)
	t.refreshQueue()
}

func (t *downloadTab) onError(taskID, message string) {
	t.status.SetText(errorText(message))
	t.stats.SetText("")
	t.finish(taskID)
	t.refreshQueue()
}

// finish forgets a task that reached a terminal state and resets the controls once the queue drained.
func (t *downloadTab) finish(taskID string) {
	if _, ok := t.tasks[taskID]; !ok {
		return
	}

	delete(t.tasks, taskID)

	t.outstanding--
	if t.outstanding > 0 {
		return
	}

	t.outstanding = 0
	t.cancelBtn.Disable()
	t.downloadBtn.SetText(downloadLabel(t.info))
}

func (t *downloadTab) refreshQueue() {
	rows := make([]string, 0, len(t.tasks))

	if active := t.app.queue.Active(); active != "" {
		if meta, ok := t.tasks[active]; ok {
			rows = append(rows, queueLine(meta.state, meta.title, meta.url))
		}
	}

	for _, task := range t.app.queue.Pending() {
		title := task.Title
		if meta, ok := t.tasks[task.ID]; ok && meta.title != "" {
			title = meta.title
		}

		rows = append(rows, queueLine(entity.StateQueued, title, task.URL))
	}

	t.queueRows = rows
	t.queueList.Refresh()
}
