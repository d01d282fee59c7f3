package extractor

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/webxcore/webx/internal/logging"
	"github.com/webxcore/webx/internal/mdconvert"
	"github.com/webxcore/webx/internal/normalize"
	"github.com/webxcore/webx/pkg/failure"
	"github.com/webxcore/webx/pkg/hashutil"
	"golang.org/x/net/html"
)

const ExtractorVersion = "v1"

// ExtractInput is the extractor's sole entrypoint payload per spec.md §4.3.
type ExtractInput struct {
	URL       url.URL
	HTML      []byte
	Mode      Mode
	Source    Source
	FetchedAt time.Time
}

// Extractor turns raw HTML into a structured Page. It is stateless across
// calls; all per-page state lives in the returned Page.
type Extractor struct {
	logger       *logging.Logger
	domExtractor DomExtractor
	mdRule       mdconvert.ConvertRule
}

func NewExtractor(logger *logging.Logger, params ExtractParam, customSelectors ...string) *Extractor {
	return &Extractor{
		logger:       logger,
		domExtractor: NewDomExtractor(params, customSelectors...),
		mdRule:       mdconvert.NewRule(logger),
	}
}

// caps for a given Mode, per spec.md §4.3 steps 3, 4, 8.
type caps struct {
	headings int
	links    int
	paras    int
}

func capsFor(mode Mode) caps {
	if mode == ModeFull {
		return caps{headings: 40, links: 80, paras: 35}
	}
	return caps{headings: 12, links: 25, paras: 10}
}

func (e *Extractor) Extract(input ExtractInput) (Page, failure.ClassifiedError) {
	doc, err := html.Parse(bytes.NewReader(input.HTML))
	if err != nil || !hasHTMLElement(doc) {
		return Page{}, &ExtractionError{
			Message: "input is not a valid HTML document",
			Cause:   ErrCauseNotHTML,
		}
	}

	baseURL := input.URL
	gq := goquery.NewDocumentFromNode(doc)
	c := capsFor(input.Mode)

	canonicalURL := extractCanonicalURL(gq, &baseURL)

	readabilityTitle, contentNode, ok := readabilityPass(input.HTML, &baseURL)
	if !ok {
		fallbackNode, extractionErr := e.domExtractor.FindContentContainer(doc)
		if extractionErr != nil {
			if e.logger != nil {
				e.logger.Warn("extraction failed: no content container found",
					logging.AttrURL, baseURL.String(),
					logging.AttrCause, string(extractionErr.Cause),
				)
			}
			return Page{}, extractionErr
		}
		contentNode = fallbackNode
	}

	keyParagraphsAll := collectParagraphs(contentNode)

	headings := collectHeadings(gq, c.headings)
	links := collectLinks(gq, &baseURL, c.links)
	forms := collectForms(gq, &baseURL)
	actions := synthesizeActions(doc, &baseURL)

	title := readabilityTitle
	if title == "" {
		title = normalizeWhitespace(gq.Find("title").First().Text())
	}

	keyParagraphs := keyParagraphsAll
	if len(keyParagraphs) > c.paras {
		keyParagraphs = keyParagraphs[:c.paras]
	}

	contentHash := hashutil.Sha256_16(title + "\n" + strings.Join(keyParagraphs, "\n"))
	fetchedAtISO := input.FetchedAt.UTC().Format(time.RFC3339)
	id := hashutil.Sha256_16(input.URL.String() + ":" + contentHash + ":" + fetchedAtISO)

	var renderedMarkdown *string
	if input.Mode == ModeFull {
		renderedMarkdown = e.renderMarkdown(contentNode, baseURL.String())
	}

	return Page{
		ID:               id,
		URL:              input.URL.String(),
		CanonicalURL:     canonicalURL,
		Title:            title,
		FetchedAt:        input.FetchedAt,
		ContentHash:      contentHash,
		ExtractorVersion: ExtractorVersion,
		Mode:             input.Mode,
		Source:           input.Source,
		Headings:         headings,
		KeyParagraphs:    keyParagraphs,
		Links:            links,
		Forms:            forms,
		Actions:          actions,
		Markdown:         renderedMarkdown,
	}, nil
}

// renderMarkdown implements SPEC_FULL.md §C.1: render contentNode to
// Markdown, then truncate to normalize.DefaultMaxRunes at a block boundary.
// Failures are non-fatal — the page is still returned with Markdown nil —
// since rendering is additive and must never block a crawl.
func (e *Extractor) renderMarkdown(contentNode *html.Node, url string) *string {
	converted, convertErr := e.mdRule.Convert(contentNode)
	if convertErr != nil {
		if e.logger != nil {
			e.logger.Warn("markdown rendering skipped",
				logging.AttrURL, url,
				logging.AttrCause, convertErr.Error(),
			)
		}
		return nil
	}

	truncated, truncErr := normalize.TruncateAtBlockBoundary(converted.GetMarkdownContent(), normalize.DefaultMaxRunes)
	if truncErr != nil {
		if e.logger != nil {
			e.logger.Warn("markdown truncation skipped",
				logging.AttrURL, url,
				logging.AttrCause, truncErr.Error(),
			)
		}
		md := string(converted.GetMarkdownContent())
		return &md
	}

	md := string(truncated.Content())
	return &md
}

func hasHTMLElement(doc *html.Node) bool {
	var find func(*html.Node) bool
	find = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "html" {
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if find(c) {
				return true
			}
		}
		return false
	}
	return find(doc)
}

func extractCanonicalURL(gq *goquery.Document, base *url.URL) string {
	href, exists := gq.Find(`link[rel="canonical"]`).First().Attr("href")
	if !exists || strings.TrimSpace(href) == "" {
		return ""
	}
	resolved, ok := resolveURL(base, href)
	if !ok {
		return ""
	}
	return resolved
}

// collectParagraphs implements step 2's paragraph collection: all <p> text
// within contentNode, whitespace-normalized, length > 40, first 20.
func collectParagraphs(contentNode *html.Node) []string {
	gq := goquery.NewDocumentFromNode(contentNode)
	var out []string
	gq.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeWhitespace(s.Text())
		if len(text) > 40 {
			out = append(out, text)
		}
		return len(out) < 20
	})
	return out
}

func collectHeadings(gq *goquery.Document, maxHeadings int) []string {
	var out []string
	gq.Find("h1,h2,h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeWhitespace(s.Text())
		if text != "" {
			out = append(out, text)
		}
		return len(out) < maxHeadings
	})
	return out
}

func collectLinks(gq *goquery.Document, base *url.URL, maxLinks int) []Link {
	var out []Link
	gq.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, exists := s.Attr("href")
		if !exists {
			return true
		}
		resolved, ok := resolveURL(base, href)
		if !ok {
			return true
		}
		text := normalizeWhitespace(s.Text())
		if text == "" {
			return true
		}
		text = truncateRunes(text, 160)

		resolvedURL, err := url.Parse(resolved)
		isInternal := err == nil && resolvedURL.Host == base.Host

		rel, _ := s.Attr("rel")
		out = append(out, Link{
			URL:        resolved,
			Text:       text,
			Rel:        rel,
			IsInternal: isInternal,
		})
		return len(out) < maxLinks
	})
	return out
}

func collectForms(gq *goquery.Document, base *url.URL) []Form {
	var out []Form
	gq.Find("form").Each(func(i int, s *goquery.Selection) {
		id, exists := s.Attr("id")
		if !exists || strings.TrimSpace(id) == "" {
			id = formIDFallback(i)
		}

		action := ""
		if rawAction, exists := s.Attr("action"); exists {
			if resolved, ok := resolveURL(base, rawAction); ok {
				action = resolved
			}
		}

		method := "get"
		if rawMethod, exists := s.Attr("method"); exists && strings.TrimSpace(rawMethod) != "" {
			method = strings.ToLower(strings.TrimSpace(rawMethod))
		}

		var fields []FormField
		s.Find("input, textarea, select").Each(func(_ int, f *goquery.Selection) {
			name, _ := f.Attr("name")
			fieldType, hasType := f.Attr("type")
			if !hasType {
				fieldType = "text"
			}
			if goquery.NodeName(f) == "textarea" {
				fieldType = "textarea"
			} else if goquery.NodeName(f) == "select" {
				fieldType = "select"
			}
			_, required := f.Attr("required")
			placeholder, _ := f.Attr("placeholder")

			label, hasLabel := f.Attr("aria-label")
			if !hasLabel {
				label = placeholder
			}

			fields = append(fields, FormField{
				Name:        name,
				Type:        fieldType,
				Required:    required,
				Placeholder: placeholder,
				Label:       label,
			})
		})

		out = append(out, Form{
			ID:     id,
			Action: action,
			Method: method,
			Fields: fields,
		})
	})
	return out
}

func formIDFallback(index int) string {
	return "form_" + strconv.Itoa(index+1)
}
