package domain

import "fmt"

// CitationStyle selects the output format of Citation.
type CitationStyle string

const (
	CitationAPA  CitationStyle = "APA"
	CitationIEEE CitationStyle = "IEEE"
)

// publicationYears is keyed by standard edition. An unknown standard falls
// back to 2021; a wrong year in a display field never blocks a response.
var publicationYears = map[Standard]string{
	StandardPMBOK:    "2021",
	StandardPRINCE2:  "2017",
	StandardISO21502: "2020",
}

// PublicationYear returns the edition year for a standard.
func PublicationYear(standard Standard) string {
	if year, ok := publicationYears[standard]; ok {
		return year
	}
	return "2021"
}

// Citation renders a deterministic citation string for a section. It is
// total: any well-formed section yields a string, missing optional fields
// never cause an error.
func Citation(section Section, style CitationStyle) string {
	year := PublicationYear(section.Standard)

	switch style {
	case CitationAPA:
		return fmt.Sprintf("%s (%s). Section %s: %s. %s.",
			section.Standard, year, section.SectionNumber, section.SectionTitle, pageRef(section))
	case CitationIEEE:
		// IEEE always cites the start page only.
		return fmt.Sprintf("%s, \"%s,\" sec. %s, p. %d, %s.",
			section.Standard, section.SectionTitle, section.SectionNumber, section.PageStart, year)
	default:
		return fmt.Sprintf("%s Section %s, Page %d", section.Standard, section.SectionNumber, section.PageStart)
	}
}

func pageRef(section Section) string {
	if section.PageEnd != 0 && section.PageEnd != section.PageStart {
		return fmt.Sprintf("pp. %d-%d", section.PageStart, section.PageEnd)
	}
	return fmt.Sprintf("p. %d", section.PageStart)
}
