package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"bible-rag/internal/helper"
	"bible-rag/internal/models"
)

const downloadTimeout = 5 * time.Minute

// DownloadBible fetches a corpus from url and stores it at path. The payload is
// validated before it replaces any existing file.
func DownloadBible(ctx context.Context, url, path string) (BibleStats, error) {
	log.Info().Str("url", url).Msg("Downloading bible data")

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return BibleStats{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return BibleStats{}, fmt.Errorf("download corpus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return BibleStats{}, fmt.Errorf("download corpus: %d, %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return BibleStats{}, fmt.Errorf("read corpus body: %w", err)
	}

	verses, err := ParseBible(data, models.DefaultTranslation)
	if err != nil {
		return BibleStats{}, err
	}

	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return BibleStats{}, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return BibleStats{}, fmt.Errorf("write corpus: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return BibleStats{}, fmt.Errorf("move corpus into place: %w", err)
	}

	stats := Stats(verses)
	log.Info().
		Int("books", stats.Books).
		Int("chapters", stats.Chapters).
		Int("verses", stats.Verses).
		Str("size", fmt.Sprintf("%.1f MB", float64(len(data))/1024/1024)).
		Msg("Downloaded bible data")
	return stats, nil
}
