package parser

import (
	"strings"

	"bible-rag/internal/models"
)

const (
	defaultChunkSize    = 1000 // bytes
	defaultChunkOverlap = 200  // bytes
	passageSeparator    = " "
)

type ChunkOptions struct {
	ChunkSize    int
	ChunkOverlap int
	Passages     bool
}

// BuildChunks converts the corpus into verse chunks and, when enabled, passage chunks.
func BuildChunks(verses []models.Verse, opts ChunkOptions) (verseChunks, passageChunks []models.Chunk) {
	verseChunks = make([]models.Chunk, 0, len(verses))
	for _, v := range verses {
		verseChunks = append(verseChunks, newChunk([]models.Verse{v}, models.ChunkTypeVerse))
	}
	if !opts.Passages {
		return verseChunks, nil
	}
	for _, run := range consecutiveRuns(verses) {
		passageChunks = append(passageChunks, chunkPassages(run, opts.ChunkSize, opts.ChunkOverlap)...)
	}
	return verseChunks, passageChunks
}

// consecutiveRuns splits the ordered corpus wherever translation, book or chapter changes
// or the verse numbering has a gap, so a passage reference never spans missing verses.
func consecutiveRuns(verses []models.Verse) [][]models.Verse {
	var runs [][]models.Verse
	start := 0
	for i := 1; i <= len(verses); i++ {
		if i < len(verses) {
			prev, cur := verses[i-1], verses[i]
			if cur.Translation == prev.Translation && cur.Book == prev.Book &&
				cur.Chapter == prev.Chapter && cur.Verse == prev.Verse+1 {
				continue
			}
		}
		if i > start {
			runs = append(runs, verses[start:i])
		}
		start = i
	}
	return runs
}

// chunkPassages windows a run of whole verses. A window grows while its joined text fits
// in maxChars; the next window re-uses trailing verses totalling at most overlapChars and
// always starts at least one verse later.
func chunkPassages(run []models.Verse, maxChars, overlapChars int) []models.Chunk {
	if maxChars <= 0 {
		maxChars = defaultChunkSize
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	var chunks []models.Chunk
	start := 0
	for start < len(run) {
		end := start + 1
		size := len(run[start].Text)
		for end < len(run) && size+len(passageSeparator)+len(run[end].Text) <= maxChars {
			size += len(passageSeparator) + len(run[end].Text)
			end++
		}
		chunks = append(chunks, newChunk(run[start:end], models.ChunkTypePassage))
		if end == len(run) {
			break
		}

		next := end
		overlap := 0
		for next-1 > start {
			add := len(run[next-1].Text)
			if overlap > 0 {
				add += len(passageSeparator)
			}
			if overlap+add > overlapChars {
				break
			}
			overlap += add
			next--
		}
		start = next
	}
	return chunks
}

func newChunk(verses []models.Verse, chunkType models.ChunkType) models.Chunk {
	first, last := verses[0], verses[len(verses)-1]
	texts := make([]string, len(verses))
	for i, v := range verses {
		texts[i] = v.Text
	}
	meta := models.ChunkMetadata{
		Book:        first.Book,
		Chapter:     first.Chapter,
		Verse:       first.Verse,
		VerseEnd:    last.Verse,
		Reference:   models.FormatReference(first.Book, first.Chapter, first.Verse, last.Verse),
		Translation: first.Translation,
		Testament:   models.TestamentOf(first.Book),
		ChunkType:   chunkType,
		BookNumber:  models.BookNumber(first.Book),
	}
	return models.Chunk{
		ID:       models.ChunkID(meta),
		Text:     strings.Join(texts, passageSeparator),
		Metadata: meta,
	}
}

// PassageText rebuilds the text of a chunk from the verses its metadata references.
func PassageText(verses []models.Verse, meta models.ChunkMetadata) string {
	var texts []string
	for _, v := range verses {
		if v.Translation == meta.Translation && v.Book == meta.Book && v.Chapter == meta.Chapter &&
			v.Verse >= meta.Verse && v.Verse <= meta.VerseEnd {
			texts = append(texts, v.Text)
		}
	}
	return strings.Join(texts, passageSeparator)
}
