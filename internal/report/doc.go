// Package report renders run summaries as Markdown, HTML and styled terminal text.
package report
