package domain

import "testing"

func TestCitationAPASinglePage(t *testing.T) {
	section := Section{
		Standard:      StandardPMBOK,
		SectionNumber: "2.8.5",
		SectionTitle:  "Risk Management",
		PageStart:     122,
	}

	got := Citation(section, CitationAPA)
	want := "PMBOK (2021). Section 2.8.5: Risk Management. p. 122."
	if got != want {
		t.Fatalf("Citation() = %q, want %q", got, want)
	}
}

func TestCitationAPAPageRange(t *testing.T) {
	section := Section{
		Standard:      StandardPRINCE2,
		SectionNumber: "8.4",
		SectionTitle:  "Risk Theme",
		PageStart:     58,
		PageEnd:       61,
	}

	got := Citation(section, CitationAPA)
	want := "PRINCE2 (2017). Section 8.4: Risk Theme. pp. 58-61."
	if got != want {
		t.Fatalf("Citation() = %q, want %q", got, want)
	}
}

func TestCitationAPAEqualPagesCollapse(t *testing.T) {
	section := Section{
		Standard:      StandardISO21502,
		SectionNumber: "7.2",
		SectionTitle:  "Planning",
		PageStart:     30,
		PageEnd:       30,
	}

	got := Citation(section, CitationAPA)
	want := "ISO_21502 (2020). Section 7.2: Planning. p. 30."
	if got != want {
		t.Fatalf("Citation() = %q, want %q", got, want)
	}
}

func TestCitationIEEE(t *testing.T) {
	section := Section{
		Standard:      StandardPRINCE2,
		SectionNumber: "8.4",
		SectionTitle:  "Risk Theme",
		PageStart:     58,
		PageEnd:       61,
	}

	got := Citation(section, CitationIEEE)
	want := `PRINCE2, "Risk Theme," sec. 8.4, p. 58, 2017.`
	if got != want {
		t.Fatalf("Citation() = %q, want %q", got, want)
	}
}

func TestPublicationYearUnknownStandardFallsBack(t *testing.T) {
	if got := PublicationYear(Standard("AGILE_GUIDE")); got != "2021" {
		t.Fatalf("PublicationYear() = %q, want 2021", got)
	}
}

func TestValidateForCitation(t *testing.T) {
	tests := []struct {
		name    string
		section Section
		wantErr bool
	}{
		{
			name: "complete",
			section: Section{
				ID: "s-1", Standard: StandardPMBOK, SectionNumber: "1.2", PageStart: 10,
			},
		},
		{
			name:    "missing standard",
			section: Section{ID: "s-2", SectionNumber: "1.2", PageStart: 10},
			wantErr: true,
		},
		{
			name:    "missing section number",
			section: Section{ID: "s-3", Standard: StandardPMBOK, PageStart: 10},
			wantErr: true,
		},
		{
			name:    "missing start page",
			section: Section{ID: "s-4", Standard: StandardPMBOK, SectionNumber: "1.2"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.section.ValidateForCitation()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateForCitation() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsKind(err, ErrMetadataLookup) {
				t.Fatalf("expected metadata lookup error kind, got %v", err)
			}
		})
	}
}
