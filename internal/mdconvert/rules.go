package mdconvert

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/webxcore/webx/internal/logging"
	"github.com/webxcore/webx/pkg/failure"
	"golang.org/x/net/html"
)

/*
Design Principles
- Semantic fidelity over visual fidelity
- No inferred structure
- No code reformatting
- GitHub-Flavored Markdown compatibility

Conversion Rules
- Headings map directly (h1-h6 to # - ######)
- Code blocks preserved verbatim
- Tables converted structurally (GFM)
- Links and images preserved as-is (no resolution)
- DOM order preserved
*/

// ConvertRule renders an already-extracted content node to Markdown.
// Implementations must be deterministic.
type ConvertRule interface {
	Convert(contentNode *html.Node) (ConversionResult, failure.ClassifiedError)
}

var _ ConvertRule = (*StrictConversionRule)(nil)

type StrictConversionRule struct {
	logger *logging.Logger
}

func NewRule(logger *logging.Logger) *StrictConversionRule {
	return &StrictConversionRule{logger: logger}
}

func (s *StrictConversionRule) Convert(contentNode *html.Node) (ConversionResult, failure.ClassifiedError) {
	result, err := convert(contentNode)
	if err != nil {
		s.logger.Warn("mdconvert failed", logging.AttrCause, string(err.Cause), "message", err.Message)
		return ConversionResult{}, err
	}
	return result, nil
}

// convert is a stateless pure function that transforms a content node into a
// ConversionResult containing markdown content, using html-to-markdown/v2 for
// deterministic, semantic conversion.
func convert(htmlDoc *html.Node) (ConversionResult, *ConversionError) {
	if htmlDoc == nil {
		return ConversionResult{}, &ConversionError{
			Message:   "cannot convert nil HTML node",
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	markdown, err := conv.ConvertNode(htmlDoc)
	if err != nil {
		return ConversionResult{}, &ConversionError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
	}

	linkRefs := extractLinkRefs(htmlDoc)

	return NewConversionResult(markdown, linkRefs), nil
}

// extractLinkRefs walks the DOM and extracts <a href> / <img src> references
// in document order.
func extractLinkRefs(htmlDoc *html.Node) []LinkRef {
	var linkRefs []LinkRef

	doc := goquery.NewDocumentFromNode(htmlDoc)
	doc.Find("a[href], img[src]").Each(func(i int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "a":
			if href, exists := s.Attr("href"); exists {
				linkRefs = append(linkRefs, toLinkRef("a", href))
			}
		case "img":
			if src, exists := s.Attr("src"); exists {
				linkRefs = append(linkRefs, toLinkRef("img", src))
			}
		}
	})

	return linkRefs
}

func toLinkRef(tagName, raw string) LinkRef {
	tagName = strings.ToLower(tagName)

	var kind LinkKind
	switch tagName {
	case "img":
		kind = KindImage
	case "a":
		if strings.HasPrefix(raw, "#") {
			kind = KindAnchor
		} else {
			kind = KindNavigation
		}
	default:
		kind = KindNavigation
	}

	return NewLinkRef(raw, kind)
}
