package extractor

import (
	"time"

	"golang.org/x/net/html"
)

// ExtractionResult holds the DOM-isolation outcome, the intermediate stage
// before structured fields are collected from it.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// Mode selects extraction depth/caps: compact for cheap agent consumption,
// full for richer downstream rendering (e.g. markdown conversion).
type Mode string

const (
	ModeCompact Mode = "compact"
	ModeFull    Mode = "full"
)

// Source records how the HTML was obtained.
type Source string

const (
	SourceStatic     Source = "static"
	SourcePlaywright Source = "playwright"
)

// ActionKind is the action verb an agent can execute against a selector.
type ActionKind string

const (
	ActionClick    ActionKind = "click"
	ActionFill     ActionKind = "fill"
	ActionSelect   ActionKind = "select"
	ActionSubmit   ActionKind = "submit"
	ActionNavigate ActionKind = "navigate"
)

// Action is a handle an agent can execute.
type Action struct {
	ID       string
	Type     ActionKind
	Label    string
	Selector string
	// Params is a JSON-schema-shaped parameter description, always an
	// object schema (possibly with zero properties).
	Params map[string]any
}

// Link is a single discovered anchor.
type Link struct {
	URL        string
	Text       string
	Rel        string
	IsInternal bool
}

// FormField is a single input/textarea/select within a Form.
type FormField struct {
	Name        string
	Type        string
	Required    bool
	Placeholder string
	Label       string
}

// Form is a single <form> element and its fields.
type Form struct {
	ID     string
	Action string
	Method string
	Fields []FormField
}

// Page is the structured snapshot produced by the extractor for one URL at
// one point in time.
type Page struct {
	ID               string
	URL              string
	CanonicalURL     string
	Title            string
	FetchedAt        time.Time
	ContentHash      string
	ExtractorVersion string
	Mode             Mode
	Source           Source
	Headings         []string
	KeyParagraphs    []string
	Links            []Link
	Forms            []Form
	Actions          []Action
	// Markdown is the readability content node rendered to Markdown,
	// truncated to normalize.DefaultMaxRunes at a block boundary. Populated
	// only in ModeFull; nil in ModeCompact (SPEC_FULL.md §C.1).
	Markdown *string
}

// ExtractParam tunes the DomExtractor's layer-3 (chrome-removal + scoring)
// fallback heuristic; it has no effect when the readability pass (layer 0)
// or the semantic/known-selector layers (1-2) already resolve a container.
type ExtractParam struct {
	// BodySpecificityBias controls how much higher a child container's score
	// must be, relative to <body>, before it is preferred over <body> itself.
	BodySpecificityBias float64
	// LinkDensityThreshold is the link-text-to-total-text ratio above which
	// a candidate's score is penalized (likely navigation, not content).
	LinkDensityThreshold float64
}

// DefaultExtractParam returns the extractor's out-of-the-box tuning.
func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  0.5,
		LinkDensityThreshold: 0.5,
	}
}
