package desktop

import (
	"strings"

	"grabtube/internal/consts"
	"grabtube/internal/downloader"
	"grabtube/internal/entity"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

var audioFormats = []string{"mp3", "m4a", "opus", "wav", "flac"}

type settingsTab struct {
	app *App

	downloadDir    *widget.Entry
	format         *widget.Select
	quality        *widget.Select
	audioFormat    *widget.Select
	embedThumbnail *widget.Check
	sponsorBlock   *widget.Check
}

// settingsValues is what the form holds when Save is pressed.
type settingsValues struct {
	downloadDir    string
	format         string
	quality        string
	audioFormat    string
	embedThumbnail bool
	sponsorBlock   bool
}

// apply copies the form onto p. Empty fields keep the stored value.
func (v settingsValues) apply(p *entity.Preferences) {
	if dir := strings.TrimSpace(v.downloadDir); dir != "" {
		p.DownloadDir = dir
	}

	if v.format != "" {
		p.Format = v.format
	}

	if v.quality != "" {
		p.Quality = v.quality
	}

	if v.audioFormat != "" {
		p.AudioFormat = v.audioFormat
	}

	p.EmbedThumbnail = v.embedThumbnail
	p.SponsorBlock = v.sponsorBlock
}

func newSettingsTab(a *App) *settingsTab {
	s := &settingsTab{app: a}

	s.downloadDir = widget.NewEntry()
	s.format = widget.NewSelect([]string{consts.KindVideo, consts.KindAudio}, nil)
	s.quality = widget.NewSelect(downloader.QualityTokens(), nil)
	s.audioFormat = widget.NewSelect(audioFormats, nil)
	s.embedThumbnail = widget.NewCheck("Embed thumbnail in audio files", nil)
	s.sponsorBlock = widget.NewCheck("Remove sponsor segments by default", nil)

	s.load(a.settings.Get())

	return s
}

func (s *settingsTab) content() fyne.CanvasObject {
	form := widget.NewForm(
		widget.NewFormItem("Download folder", s.downloadDir),
		widget.NewFormItem("Default format", s.format),
		widget.NewFormItem("Default video quality", s.quality),
		widget.NewFormItem("Audio format", s.audioFormat),
		widget.NewFormItem("", s.embedThumbnail),
		widget.NewFormItem("", s.sponsorBlock),
	)

	buttons := container.NewHBox(
		widget.NewButton("Save", s.onSave),
		widget.NewButton("Reset to defaults", s.onReset),
	)

	return container.NewVBox(form, buttons)
}

func (s *settingsTab) load(p entity.Preferences) {
	s.downloadDir.SetText(p.DownloadDir)
	s.format.SetSelected(p.Format)
	s.quality.SetSelected(p.Quality)
	s.audioFormat.SetSelected(p.AudioFormat)
	s.embedThumbnail.SetChecked(p.EmbedThumbnail)
	s.sponsorBlock.SetChecked(p.SponsorBlock)
}

func (s *settingsTab) onSave() {
	values := settingsValues{
		downloadDir:    s.downloadDir.Text,
		format:         s.format.Selected,
		quality:        s.quality.Selected,
		audioFormat:    s.audioFormat.Selected,
		embedThumbnail: s.embedThumbnail.Checked,
		sponsorBlock:   s.sponsorBlock.Checked,
	}

	if err := s.app.settings.Set(values.apply); err != nil {
		s.app.showError(err)

		return
	}

	dialog.ShowInformation("Settings", "Settings saved", s.app.window)
}

func (s *settingsTab) onReset() {
	if err := s.app.settings.Reset(); err != nil {
		s.app.showError(err)

		return
	}

	s.load(s.app.settings.Get())
}
