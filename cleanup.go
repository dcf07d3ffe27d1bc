package main

import (
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var (
	timestampTokenRe = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	artifactRe       = regexp.MustCompile(`(?i)[\[(]\s*(?:music|applause|laughter|laughs|inaudible|silence|cheering|cheers|noise|foreign)\s*[\])]|♪+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// captionConverter strips markup from caption lines. Escaping is disabled so
// plain text round-trips unchanged, and inline styling renders as its bare text.
var captionConverter = md.NewConverter("", true, &md.Options{EscapeMode: "disabled"}).
	AddRules(md.Rule{
		Filter: []string{"b", "strong", "i", "em", "u", "font", "span"},
		Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
			return md.String(content)
		},
	})

// CleanTranscript joins raw segment text into a single line, dropping
// timestamp tokens and bracketed annotations.
func CleanTranscript(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = timestampTokenRe.ReplaceAllString(seg, " ")
		seg = artifactRe.ReplaceAllString(seg, " ")
		seg = strings.TrimSpace(seg)
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return collapseWhitespace(strings.Join(parts, " "))
}

// cleanCaptionLine converts the inner markup of one caption line to text.
// Caption payloads are often escaped twice, hence the second unescape.
func cleanCaptionLine(raw string) string {
	text, err := captionConverter.ConvertString(raw)
	if err != nil {
		text = xmlTagRe.ReplaceAllString(raw, " ")
	}
	text = xmlTagRe.ReplaceAllString(html.UnescapeString(text), " ")
	return collapseWhitespace(text)
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
