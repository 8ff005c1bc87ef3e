package models

import (
	"fmt"
	"strings"
)

type Testament string

const (
	OldTestament Testament = "Old"
	NewTestament Testament = "New"
)

// Verse is a single record of the corpus. Identity is (Book, Chapter, Verse, Translation).
type Verse struct {
	Book        string    `json:"book"`
	Chapter     int       `json:"chapter"`
	Verse       int       `json:"verse"`
	Text        string    `json:"text"`
	Translation string    `json:"translation"`
	Testament   Testament `json:"testament,omitempty"`
}

// Reference formats the verse as "Book chapter:verse".
func (v Verse) Reference() string {
	return FormatReference(v.Book, v.Chapter, v.Verse, v.Verse)
}

// Key identifies the verse within the corpus.
func (v Verse) Key() string {
	return fmt.Sprintf("%s:%s:%d:%d", v.Translation, v.Book, v.Chapter, v.Verse)
}

// FormatReference renders "Genesis 1:1" or "Genesis 1:1-3" for a range.
func FormatReference(book string, chapter, verse, verseEnd int) string {
	if verseEnd <= verse {
		return fmt.Sprintf("%s %d:%d", book, chapter, verse)
	}
	return fmt.Sprintf("%s %d:%d-%d", book, chapter, verse, verseEnd)
}

// canonical Protestant ordering; index+1 is the book number
var bookNames = []string{
	"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy",
	"Joshua", "Judges", "Ruth", "1 Samuel", "2 Samuel",
	"1 Kings", "2 Kings", "1 Chronicles", "2 Chronicles",
	"Ezra", "Nehemiah", "Esther", "Job", "Psalms", "Proverbs",
	"Ecclesiastes", "Song of Solomon", "Isaiah", "Jeremiah",
	"Lamentations", "Ezekiel", "Daniel", "Hosea", "Joel",
	"Amos", "Obadiah", "Jonah", "Micah", "Nahum", "Habakkuk",
	"Zephaniah", "Haggai", "Zechariah", "Malachi",
	"Matthew", "Mark", "Luke", "John", "Acts",
	"Romans", "1 Corinthians", "2 Corinthians", "Galatians",
	"Ephesians", "Philippians", "Colossians", "1 Thessalonians",
	"2 Thessalonians", "1 Timothy", "2 Timothy", "Titus",
	"Philemon", "Hebrews", "James", "1 Peter", "2 Peter",
	"1 John", "2 John", "3 John", "Jude", "Revelation",
}

const lastOldTestamentBook = 39

var bookNumbers = func() map[string]int {
	m := make(map[string]int, len(bookNames))
	for i, name := range bookNames {
		m[name] = i + 1
	}
	// common alternate spellings seen in public corpora
	m["Psalm"] = m["Psalms"]
	m["Song of Songs"] = m["Song of Solomon"]
	m["Revelation of John"] = m["Revelation"]
	return m
}()

// scrollmapper exports number books with roman numerals ("I Samuel", "III John")
var romanPrefixes = map[string]string{"I": "1", "II": "2", "III": "3"}

// BookNumber returns the 1-based canonical number of a book, or 0 when unknown.
func BookNumber(book string) int {
	book = strings.TrimSpace(book)
	if n, ok := bookNumbers[book]; ok {
		return n
	}
	if prefix, rest, ok := strings.Cut(book, " "); ok {
		if arabic, ok := romanPrefixes[strings.ToUpper(prefix)]; ok {
			return bookNumbers[arabic+" "+strings.TrimSpace(rest)]
		}
	}
	return 0
}

// CanonicalBook maps alternate spellings such as "I Samuel" or "Psalm" to the canonical
// name. Unknown books are returned trimmed but otherwise unchanged.
func CanonicalBook(book string) string {
	if n := BookNumber(book); n > 0 {
		return bookNames[n-1]
	}
	return strings.TrimSpace(book)
}

// TestamentOf classifies a book; unknown books are treated as New Testament.
func TestamentOf(book string) Testament {
	n := BookNumber(book)
	if n >= 1 && n <= lastOldTestamentBook {
		return OldTestament
	}
	return NewTestament
}

// ParseTestament accepts "old"/"new" in any case. The empty string yields "".
func ParseTestament(s string) (Testament, error) {
	switch s {
	case "":
		return "", nil
	case "old", "Old", "OLD", "ot", "OT":
		return OldTestament, nil
	case "new", "New", "NEW", "nt", "NT":
		return NewTestament, nil
	}
	return "", fmt.Errorf("unknown testament %q", s)
}
