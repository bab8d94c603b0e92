package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/matrixci/internal/build"
)

const htmlHead = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title>
<style>body{font-family:sans-serif}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:2px 6px}</style>
</head><body>
`

// HTML renders the Markdown summary as a standalone HTML page.
func HTML(res *build.RunResult) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert(Markdown(res), &body); err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}
	var out bytes.Buffer
	fmt.Fprintf(&out, htmlHead, res.Project+" matrix run")
	out.Write(body.Bytes())
	out.WriteString("</body></html>\n")
	return out.Bytes(), nil
}

// Write stores the summary at path, as HTML when it ends in .html and as
// Markdown otherwise.
func Write(path string, res *build.RunResult) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".html") {
		data, err = HTML(res)
		if err != nil {
			return err
		}
	} else {
		data = Markdown(res)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create summary directory: %w", err)
		}
	}
	// #nosec G306 -- run summaries are meant to be shared
	return os.WriteFile(path, data, 0o644)
}
