package domain

import (
	"fmt"
	"time"
)

// Standard identifies one of the three fixed project-management standards.
type Standard string

const (
	StandardPMBOK    Standard = "PMBOK"
	StandardPRINCE2  Standard = "PRINCE2"
	StandardISO21502 Standard = "ISO_21502"
)

// Standards returns the fixed ordered set of supported standards.
func Standards() []Standard {
	return []Standard{StandardPMBOK, StandardPRINCE2, StandardISO21502}
}

func ParseStandard(s string) (Standard, error) {
	switch Standard(s) {
	case StandardPMBOK, StandardPRINCE2, StandardISO21502:
		return Standard(s), nil
	default:
		return "", WrapError(ErrInvalidRequest, "parse standard", fmt.Errorf("unknown standard %q", s))
	}
}

// Section is one retrievable, citable chunk of a standard's text.
// Content holds the cleaned display text used for generation input;
// ContentOriginal is kept for audit and is never sent to the generator.
type Section struct {
	ID              string   `json:"id"`
	Standard        Standard `json:"standard"`
	SectionNumber   string   `json:"section_number"`
	SectionTitle    string   `json:"section_title"`
	Level           int      `json:"level"`
	PageStart       int      `json:"page_start"`
	PageEnd         int      `json:"page_end,omitempty"`
	ParentChain     []string `json:"parent_chain,omitempty"`
	Content         string   `json:"content"`
	ContentOriginal string   `json:"-"`
	CitationKey     string   `json:"citation_key"`

	EmbeddingModel     string    `json:"embedding_model,omitempty"`
	EmbeddingCreatedAt time.Time `json:"embedding_created_at,omitempty"`
}

// ValidateForCitation enforces the fields every surfaced section must carry.
// A section missing any of them is a data-integrity failure, never silently
// tolerated.
func (s Section) ValidateForCitation() error {
	switch {
	case s.Standard == "":
		return WrapError(ErrMetadataLookup, "validate section", fmt.Errorf("section %s has no standard", s.ID))
	case s.SectionNumber == "":
		return WrapError(ErrMetadataLookup, "validate section", fmt.Errorf("section %s has no section number", s.ID))
	case s.PageStart <= 0:
		return WrapError(ErrMetadataLookup, "validate section", fmt.Errorf("section %s has no start page", s.ID))
	}
	return nil
}

// SectionPoint is the write-path projection of a section for the vector
// index: the embedding plus the payload fields needed by filtered search.
type SectionPoint struct {
	ID     string
	Vector []float32

	Standard      Standard
	SectionNumber string
	PageStart     int
	CitationKey   string
}
