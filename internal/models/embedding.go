package models

import (
	"fmt"
	"strconv"
	"time"
)

type ChunkType string

const (
	ChunkTypeVerse   ChunkType = "verse"
	ChunkTypePassage ChunkType = "passage"
)

// ChunkMetadata carries enough to rebuild a human-readable reference.
type ChunkMetadata struct {
	Book        string    `json:"book"`
	Chapter     int       `json:"chapter"`
	Verse       int       `json:"verse"`
	VerseEnd    int       `json:"verse_end"`
	Reference   string    `json:"reference"`
	Translation string    `json:"translation"`
	Testament   Testament `json:"testament"`
	ChunkType   ChunkType `json:"chunk_type"`
	BookNumber  int       `json:"book_number"`
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
}

// ChunkID derives a stable identifier so rebuilds overwrite rather than duplicate.
func ChunkID(m ChunkMetadata) string {
	if m.ChunkType == ChunkTypePassage {
		return fmt.Sprintf("%s:%s:%s:%d:%d-%d", m.ChunkType, m.Translation, m.Book, m.Chapter, m.Verse, m.VerseEnd)
	}
	return fmt.Sprintf("%s:%s:%s:%d:%d", m.ChunkType, m.Translation, m.Book, m.Chapter, m.Verse)
}

// ToMap flattens the metadata for the vector index.
func (m ChunkMetadata) ToMap() map[string]string {
	return map[string]string{
		MetaBook:        m.Book,
		MetaChapter:     strconv.Itoa(m.Chapter),
		MetaVerse:       strconv.Itoa(m.Verse),
		MetaVerseEnd:    strconv.Itoa(m.VerseEnd),
		MetaReference:   m.Reference,
		MetaTranslation: m.Translation,
		MetaTestament:   string(m.Testament),
		MetaChunkType:   string(m.ChunkType),
		MetaBookNumber:  strconv.Itoa(m.BookNumber),
	}
}

// MetadataFromMap is the inverse of ToMap. Numeric fields that fail to parse are zero.
func MetadataFromMap(meta map[string]string) ChunkMetadata {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(meta[key])
		return n
	}
	m := ChunkMetadata{
		Book:        meta[MetaBook],
		Chapter:     atoi(MetaChapter),
		Verse:       atoi(MetaVerse),
		VerseEnd:    atoi(MetaVerseEnd),
		Reference:   meta[MetaReference],
		Translation: meta[MetaTranslation],
		Testament:   Testament(meta[MetaTestament]),
		ChunkType:   ChunkType(meta[MetaChunkType]),
		BookNumber:  atoi(MetaBookNumber),
	}
	if m.Reference == "" && m.Book != "" {
		m.Reference = FormatReference(m.Book, m.Chapter, m.Verse, m.VerseEnd)
	}
	return m
}

// Source is a retrieved chunk that was placed in the prompt.
type Source struct {
	ChunkMetadata
	Text       string  `json:"text"`
	Similarity float32 `json:"similarity"`
}

type Answer struct {
	Question  string   `json:"question"`
	Text      string   `json:"answer"`
	Sources   []Source `json:"sources"`
	NoContext bool     `json:"no_context"`
}

// References lists the source references in retrieval order.
func (a *Answer) References() []string {
	refs := make([]string, 0, len(a.Sources))
	for _, s := range a.Sources {
		refs = append(refs, s.Reference)
	}
	return refs
}

// Turn is one question/answer exchange in a chat session.
type Turn struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	NoContext bool      `json:"no_context"`
	Failed    bool      `json:"failed,omitempty"`
	AskedAt   time.Time `json:"asked_at"`
}

type IndexStats struct {
	Ready      bool   `json:"ready"`
	Count      int    `json:"document_count"`
	Path       string `json:"database_path"`
	Collection string `json:"collection"`
	Rebuilding bool   `json:"rebuilding"`
}
