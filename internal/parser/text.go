package parser

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
)

// TextParser handles plain text filings. Paragraphs are joined onto a
// single synthetic page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	doc := &Document{Title: titleFromFilename(filename)}
	if text := strings.Join(paragraphs, "\n\n"); text != "" {
		doc.Pages = []Page{{Number: 1, Text: text}}
	}
	return doc, nil
}

// CSVParser flattens tabular filings into row-per-line text so the
// values remain searchable.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var sb strings.Builder
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Join(record, " | "))
	}

	doc := &Document{Title: titleFromFilename(filename)}
	if text := strings.TrimSpace(sb.String()); text != "" {
		doc.Pages = []Page{{Number: 1, Text: text}}
	}
	return doc, nil
}
