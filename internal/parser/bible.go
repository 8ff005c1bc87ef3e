package parser

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"bible-rag/internal/helper"
	"bible-rag/internal/models"
)

//go:embed data/sample_kjv.json
var sampleBible []byte

// flat layout: [{"book": "Genesis", "chapter": 1, "verse": 1, "text": "..."}]
type flatVerse struct {
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	Verse       int    `json:"verse"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

// nested layout used by the scrollmapper bible_databases JSON exports
type nestedBible struct {
	Translation string `json:"translation"`
	Books       []struct {
		Name     string `json:"name"`
		Chapters []struct {
			Chapter int `json:"chapter"`
			Verses  []struct {
				Verse int    `json:"verse"`
				Text  string `json:"text"`
			} `json:"verses"`
		} `json:"chapters"`
	} `json:"books"`
}

type BibleStats struct {
	Translation string `json:"translation"`
	Books       int    `json:"total_books"`
	Chapters    int    `json:"total_chapters"`
	Verses      int    `json:"total_verses"`
}

// LoadBible returns the canonical ordered corpus stored at path.
// When the file does not exist the bundled sample is written there first.
func LoadBible(path, defaultTranslation string) ([]models.Verse, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("Bible data file not found, creating sample data")
		if err := SeedBible(path); err != nil {
			return nil, err
		}
		data = sampleBible
	} else if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}

	verses, err := ParseBible(data, defaultTranslation)
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", path, err)
	}
	log.Info().Int("verses", len(verses)).Str("path", path).Msg("Loaded bible data")
	return verses, nil
}

// SeedBible writes the bundled sample corpus to path.
func SeedBible(path string) error {
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, sampleBible, 0o644); err != nil {
		return fmt.Errorf("write sample corpus: %w", err)
	}
	log.Info().Str("path", path).Msg("Saved sample verses")
	return nil
}

// SampleBible returns the bundled sample corpus.
func SampleBible() []models.Verse {
	verses, err := ParseBible(sampleBible, models.DefaultTranslation)
	if err != nil {
		panic(err)
	}
	return verses
}

// ParseBible decodes either corpus layout, validates every record and returns the
// verses ordered by canonical book, chapter and verse.
func ParseBible(data []byte, defaultTranslation string) ([]models.Verse, error) {
	if defaultTranslation == "" {
		defaultTranslation = models.DefaultTranslation
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", models.ErrCorpusFormat)
	}

	var verses []models.Verse
	switch trimmed[0] {
	case '[':
		var records []flatVerse
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrCorpusFormat, err)
		}
		verses = make([]models.Verse, 0, len(records))
		for _, r := range records {
			verses = append(verses, models.Verse{
				Book:        models.CanonicalBook(r.Book),
				Chapter:     r.Chapter,
				Verse:       r.Verse,
				Text:        strings.TrimSpace(r.Text),
				Translation: firstNonEmpty(r.Translation, defaultTranslation),
			})
		}
	case '{':
		var nested nestedBible
		if err := json.Unmarshal(trimmed, &nested); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrCorpusFormat, err)
		}
		if nested.Books == nil {
			return nil, fmt.Errorf("%w: object without books", models.ErrCorpusFormat)
		}
		translation := firstNonEmpty(shortTranslation(nested.Translation), defaultTranslation)
		for _, b := range nested.Books {
			for _, c := range b.Chapters {
				for _, v := range c.Verses {
					verses = append(verses, models.Verse{
						Book:        models.CanonicalBook(b.Name),
						Chapter:     c.Chapter,
						Verse:       v.Verse,
						Text:        strings.TrimSpace(v.Text),
						Translation: translation,
					})
				}
			}
		}
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", models.ErrCorpusFormat)
	}

	if err := validateVerses(verses); err != nil {
		return nil, err
	}
	for i := range verses {
		verses[i].Testament = models.TestamentOf(verses[i].Book)
	}
	sortCanonical(verses)
	return verses, nil
}

func validateVerses(verses []models.Verse) error {
	if len(verses) == 0 {
		return fmt.Errorf("%w: no verses", models.ErrCorpusFormat)
	}
	seen := make(map[string]int, len(verses))
	for i, v := range verses {
		switch {
		case v.Book == "":
			return fmt.Errorf("%w: record %d: missing book", models.ErrCorpusFormat, i)
		case v.Chapter <= 0 || v.Verse <= 0:
			return fmt.Errorf("%w: record %d (%s): chapter and verse must be positive", models.ErrCorpusFormat, i, v.Book)
		case v.Text == "":
			return fmt.Errorf("%w: record %d (%s): empty text", models.ErrCorpusFormat, i, v.Reference())
		}
		if prev, ok := seen[v.Key()]; ok {
			return fmt.Errorf("%w: record %d duplicates record %d (%s)", models.ErrCorpusFormat, i, prev, v.Reference())
		}
		seen[v.Key()] = i
	}
	return nil
}

// sortCanonical orders by book number; unknown books follow in first-seen order.
func sortCanonical(verses []models.Verse) {
	rank := make(map[string]int)
	next := 1000
	for _, v := range verses {
		if _, ok := rank[v.Book]; ok {
			continue
		}
		if n := models.BookNumber(v.Book); n > 0 {
			rank[v.Book] = n
		} else {
			rank[v.Book] = next
			next++
		}
	}
	sort.SliceStable(verses, func(i, j int) bool {
		a, b := verses[i], verses[j]
		if rank[a.Book] != rank[b.Book] {
			return rank[a.Book] < rank[b.Book]
		}
		if a.Chapter != b.Chapter {
			return a.Chapter < b.Chapter
		}
		return a.Verse < b.Verse
	})
}

// Stats counts books, chapters and verses of a loaded corpus.
func Stats(verses []models.Verse) BibleStats {
	books := make(map[string]struct{})
	chapters := make(map[string]struct{})
	var translation string
	for _, v := range verses {
		books[v.Book] = struct{}{}
		chapters[fmt.Sprintf("%s:%d", v.Book, v.Chapter)] = struct{}{}
		if translation == "" {
			translation = v.Translation
		}
	}
	return BibleStats{
		Translation: translation,
		Books:       len(books),
		Chapters:    len(chapters),
		Verses:      len(verses),
	}
}

// "KJV: King James Version (1769)" -> "KJV"
func shortTranslation(s string) string {
	name, _, _ := strings.Cut(s, ":")
	return strings.TrimSpace(name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
