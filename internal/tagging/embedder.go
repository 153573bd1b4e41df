// Package tagging writes title, artist, album, cover art and lyrics into
// downloaded audio files.
package tagging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	"github.com/go-resty/resty/v2"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"

	"artistsync/internal/command"
)

// Metadata is what gets embedded into a tagged file
type Metadata struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`
	Lyrics   string `json:"lyrics,omitempty"`
}

const (
	// maxCoverSize bounds the longer side of embedded artwork
	maxCoverSize = 500
	coverQuality = 85
	lyricsLang   = "eng"
)

// Embedder tags audio files, transcoding to mp3 with ffmpeg when needed
type Embedder struct {
	runner     command.Runner
	ffmpegPath string
	client     *resty.Client
}

// NewEmbedder creates an embedder. client fetches cover art.
func NewEmbedder(runner command.Runner, ffmpegPath string, client *resty.Client) *Embedder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if client == nil {
		client = resty.New()
	}
	return &Embedder{runner: runner, ffmpegPath: ffmpegPath, client: client}
}

// Embed writes a tagged copy of inputPath to outputPath. Missing cover art or
// lyrics are tolerated, and a failed tag write leaves the untagged audio in
// place. An error means no audio could be produced at outputPath.
func (e *Embedder) Embed(ctx context.Context, inputPath, outputPath string, meta Metadata) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	taggable := true
	if strings.EqualFold(filepath.Ext(inputPath), ".mp3") {
		if err := copyFile(inputPath, outputPath); err != nil {
			return err
		}
	} else if err := e.transcode(ctx, inputPath, outputPath); err != nil {
		slog.Warn("Transcode failed, keeping original audio", "input", inputPath, "error", err)
		if err := copyFile(inputPath, outputPath); err != nil {
			return err
		}
		taggable = false
	}

	if !taggable {
		return nil
	}

	if err := e.writeTags(ctx, outputPath, meta); err != nil {
		slog.Warn("Failed to write tags", "path", outputPath, "title", meta.Title, "error", err)
		return nil
	}

	if written, err := ReadTags(outputPath); err != nil {
		slog.Warn("Failed to read back tags", "path", outputPath, "error", err)
	} else if written.Title != meta.Title {
		slog.Warn("Tag read-back mismatch", "path", outputPath, "want", meta.Title, "got", written.Title)
	}
	return nil
}

func (e *Embedder) transcode(ctx context.Context, inputPath, outputPath string) error {
	_, err := e.runner.Run(ctx, e.ffmpegPath,
		"-i", inputPath,
		"-vn",
		"-ar", "44100",
		"-ac", "2",
		"-b:a", "320k",
		"-f", "mp3",
		"-y", outputPath,
	)
	return err
}

func (e *Embedder) writeTags(ctx context.Context, path string, meta Metadata) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open for tagging: %w", err)
	}
	defer t.Close()

	t.SetDefaultEncoding(id3v2.EncodingUTF8)
	t.SetTitle(meta.Title)
	t.SetArtist(meta.Artist)
	if meta.Album != "" {
		t.SetAlbum(meta.Album)
	}

	if meta.CoverURL != "" {
		cover, err := e.fetchCover(ctx, meta.CoverURL)
		if err != nil {
			slog.Warn("Failed to fetch cover art", "url", meta.CoverURL, "error", err)
		} else {
			t.AddAttachedPicture(id3v2.PictureFrame{
				Encoding:    id3v2.EncodingUTF8,
				MimeType:    "image/jpeg",
				PictureType: id3v2.PTFrontCover,
				Description: "Cover",
				Picture:     cover,
			})
		}
	}

	if meta.Lyrics != "" {
		t.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          lyricsLang,
			ContentDescriptor: "",
			Lyrics:            meta.Lyrics,
		})
	}

	return t.Save()
}

// fetchCover downloads artwork and re-encodes it as a bounded JPEG
func (e *Embedder) fetchCover(ctx context.Context, url string) ([]byte, error) {
	resp, err := e.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cover request returned %d", resp.StatusCode())
	}
	return normalizeCover(resp.Body())
}

func normalizeCover(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxCoverSize || bounds.Dy() > maxCoverSize {
		if bounds.Dx() >= bounds.Dy() {
			img = resize.Resize(maxCoverSize, 0, img, resize.Lanczos3)
		} else {
			img = resize.Resize(0, maxCoverSize, img, resize.Lanczos3)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: coverQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadTags reads the metadata embedded in an audio file
func ReadTags(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
		Lyrics: m.Lyrics(),
	}, nil
}

// HasCover reports whether the file carries embedded artwork
func HasCover(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	return err == nil && m.Picture() != nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open audio: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy audio: %w", err)
	}
	return out.Close()
}
