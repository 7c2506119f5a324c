package extractor

import "github.com/PuerkitoBio/goquery"

// WholeDocument is the selector label reported when no container selector
// matched and the entire document was treated as a single container.
const WholeDocument = ":document"

// DefaultContainerSelectors is the ordered fallback list of class-name
// heuristics used to locate repeated listing fragments. The first selector
// with at least one match wins.
var DefaultContainerSelectors = []string{
	".property-item",
	".listing-item",
	".property-card",
	".property",
	"[data-testid*='property']",
}

// ContainerPolicy is an ordered list of candidate container selectors with an
// explicit whole-document terminal fallback. Modeling the fallback chain as
// data keeps the policy visible and testable instead of buried in control
// flow.
type ContainerPolicy struct {
	Selectors []string
}

// DefaultContainerPolicy returns the built-in heuristic chain.
func DefaultContainerPolicy() ContainerPolicy {
	return ContainerPolicy{Selectors: DefaultContainerSelectors}
}

// Containers locates listing fragments in the document. It returns the
// matched selections and the selector that produced them; when nothing
// matches it degrades to the whole document as one container and reports
// WholeDocument.
func (p ContainerPolicy) Containers(doc *goquery.Document) ([]*goquery.Selection, string) {
	for _, sel := range p.Selectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}
		out := make([]*goquery.Selection, 0, matches.Length())
		matches.Each(func(_ int, s *goquery.Selection) {
			out = append(out, s)
		})
		return out, sel
	}
	return []*goquery.Selection{doc.Selection}, WholeDocument
}
