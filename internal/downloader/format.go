package downloader

import (
	"slices"
	"strings"

	"grabtube/internal/consts"

	"github.com/lrstanley/go-ytdlp"
)

// FormatSpec is the stream selection and post-processing requested from yt-dlp.
type FormatSpec struct {
	Format            string
	ExtractAudio      bool
	AudioFormat       string
	AudioQuality      string
	MergeOutputFormat string
	EmbedThumbnail    bool
	WriteThumbnail    bool
}

// videoQualities lists the quality tokens from least to most constrained.
var videoQualities = []string{consts.QualityBest, consts.Quality1080p, consts.Quality720p, consts.Quality480p}

var qualityHeights = map[string]int{
	consts.Quality1080p: 1080,
	consts.Quality720p:  720,
	consts.Quality480p:  480,
}

var videoFormats = map[string]string{
	consts.QualityBest:  "bestvideo+bestaudio/best",
	consts.Quality1080p: "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
	consts.Quality720p:  "bestvideo[height<=720]+bestaudio/best[height<=720]",
	consts.Quality480p:  "bestvideo[height<=480]+bestaudio/best[height<=480]",
}

// QualityTokens returns every video quality token BuildFormatSpec understands.
func QualityTokens() []string {
	return slices.Clone(videoQualities)
}

// QualityHeight returns the height cap of a quality token, or 0 for best and unknown tokens.
func QualityHeight(quality string) int {
	return qualityHeights[strings.ToLower(strings.TrimSpace(quality))]
}

// BuildFormatSpec maps a media kind and quality token to a yt-dlp selection.
// Unknown quality tokens select the unconstrained best streams.
// Anything that is not audio is treated as video.
func BuildFormatSpec(kind, quality, codec string, embedThumbnail bool) FormatSpec {
	if kind == consts.KindAudio {
		codec = strings.ToLower(strings.TrimSpace(codec))
		if codec == "" {
			codec = consts.DefaultAudioCodec
		}

		return FormatSpec{
			Format:         "bestaudio/best",
			ExtractAudio:   true,
			AudioFormat:    codec,
			AudioQuality:   consts.DefaultAudioQuality,
			EmbedThumbnail: embedThumbnail,
			WriteThumbnail: embedThumbnail,
		}
	}

	format, ok := videoFormats[strings.ToLower(strings.TrimSpace(quality))]
	if !ok {
		format = videoFormats[consts.QualityBest]
	}

	return FormatSpec{
		Format:            format,
		MergeOutputFormat: consts.DefaultMergeFormat,
	}
}

// apply adds the selection flags to cmd.
func (f FormatSpec) apply(cmd *ytdlp.Command) *ytdlp.Command {
	cmd = cmd.Format(f.Format)

	if f.ExtractAudio {
		cmd = cmd.ExtractAudio().AudioFormat(f.AudioFormat).AudioQuality(f.AudioQuality)
	}

	if f.MergeOutputFormat != "" {
		cmd = cmd.MergeOutputFormat(f.MergeOutputFormat)
	}

	if f.EmbedThumbnail {
		cmd = cmd.EmbedThumbnail()
	}

	if f.WriteThumbnail {
		cmd = cmd.WriteThumbnail()
	}

	return cmd
}
