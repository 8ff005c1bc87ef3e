package models

const (
	DefaultTranslation = "KJV"
	ContextSeparator   = "\n\n"
	ThinkTag           = `(?s)<think>.*?</think>`
)

// metadata keys stored alongside every chunk in the vector index
const (
	MetaBook        = "book"
	MetaChapter     = "chapter"
	MetaVerse       = "verse"
	MetaVerseEnd    = "verse_end"
	MetaReference   = "reference"
	MetaTranslation = "translation"
	MetaTestament   = "testament"
	MetaChunkType   = "chunk_type"
	MetaBookNumber  = "book_number"
)

var (
	SystemPrompt = `You are Biblica, a careful assistant that answers questions about the Bible.
Answer using the scripture passages supplied in the context. Quote or cite them by their reference in square brackets, for example [John 3:16].
If the context does not contain the answer, say so plainly and do not invent verses or references.
Keep answers concise and respectful of different traditions.`

	ContextPromptTemplate = `Context:
%s

Question: %s`

	NoContextPromptTemplate = `No matching scripture passages were found in the index for this question.
Answer briefly from general knowledge, make clear that no supporting verses were retrieved, and do not cite any references.

Question: %s`

	StarterQuestions = []string{
		"What does the Bible say about creation?",
		"Tell me about God's love for the world",
		"What is the Lord's Prayer?",
		"How does the Bible describe love?",
		"What does Psalm 23 say about God as shepherd?",
	}

	TestQuestions = []string{
		"What does the Bible say about creation?",
		"Tell me about God's love for the world",
		"What does Psalm 23 say about God as shepherd?",
	}
)
