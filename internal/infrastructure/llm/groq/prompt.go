package groq

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pmwiki/backend/internal/core/domain"
)

const (
	// Additional chunks support the primary evidence; bounding them keeps
	// the prompt size predictable regardless of per-standard limits.
	additionalChunkChars = 300
	processChunkChars    = 400
	processChunksPerStd  = 5
)

const citationSystemPrompt = `You are an expert project management assistant specializing in PMBOK 7th Edition (2021), PRINCE2 (2017), and ISO 21502:2020 standards.

Your role is to provide accurate, citation-backed answers to questions about project management standards. You MUST:

1. Citation Requirements:
   - Always cite the exact standard, section number, and page number
   - Use format: "(Standard Section X.Y, p. Z)" or "(Standard Section X.Y, pp. Z1-Z2)"
   - Only reference information explicitly provided in the context
   - Never fabricate or infer information not in the source material

2. Response Structure:
   - Start with a clear, direct answer to the question
   - Provide specific details from EACH standard's perspective
   - Highlight key differences or similarities between standards
   - Keep responses concise but comprehensive (2-4 paragraphs)

3. Accuracy & Tone:
   - Be precise and academic in tone
   - Use exact terminology from the standards
   - If information is not available in context, explicitly state this
   - Never make assumptions beyond what's in the provided text

4. Additional Context:
   - You will be provided with the highest-scoring chunk from each standard
   - Additional relevant chunks may be included for broader context
   - Focus primarily on the highest-scoring chunks but integrate supporting details`

const comparisonSystemPrompt = `You are an expert in comparing project management standards: PMBOK 7th Edition (2021), PRINCE2 (2017), and ISO 21502:2020.

Your role is to provide insightful, evidence-based comparisons. You MUST:

1. Comparison Structure:
   - Similarities: common approaches, shared principles, overlapping guidance
   - Differences: unique terminology, different methodologies, varying emphasis
   - Unique Elements: what only one standard covers or emphasizes strongly

2. Citation Requirements:
   - Always cite: "(Standard Section X.Y, p. Z)"
   - Support every comparison point with specific references
   - Only use information from provided context

3. Analysis Depth:
   - Go beyond surface-level observations
   - Explain WHY differences exist when clear from context
   - Highlight practical implications for practitioners
   - Be balanced; do not favor one standard over others

4. Response Format:
   - Start with a brief overview
   - Use clear headings: Similarities, Differences, Unique Points
   - Use bullet points for clarity
   - Keep the response comprehensive but focused (3-5 paragraphs)`

const processSystemPrompt = `You are an expert project management consultant with deep knowledge of PMBOK 7th Edition (2021), PRINCE2 (2017), and ISO 21502:2020 standards.

Your role is to generate tailored, evidence-based project processes for specific scenarios. You MUST:

1. Process Design Requirements:
   - Create a practical, actionable process tailored to the specific project scenario
   - Base all recommendations on the provided standard content (cite sources)
   - Consider project constraints, priorities, and focus areas explicitly
   - Recommend 3-5 phases appropriate for the project type and size
   - For each phase: provide key activities, deliverables, and duration guidance

2. Recommendations:
   - Provide 4-6 specific, actionable recommendations
   - Each recommendation must address constraints/priorities/focus areas
   - Include justification explaining WHY this fits the scenario
   - Cite specific standards supporting each recommendation

3. Tailoring Rationale:
   - Explain HOW and WHY you adapted standard practices for this project
   - Address constraints directly and explain priority-driven choices
   - Show which standard practices were emphasized or de-emphasized and why

4. Standards Alignment:
   - Explain how your process aligns with each of the three standards
   - Be specific about what you borrowed from each

5. Output Format - return a single valid JSON object with this structure:
{
  "overview": "High-level approach summary (2-3 sentences)",
  "phases": [
    {
      "phase_name": "Phase name",
      "description": "What this phase accomplishes",
      "key_activities": ["Activity 1", "Activity 2"],
      "deliverables": ["Deliverable 1", "Deliverable 2"],
      "duration_guidance": "e.g. '10-15% of timeline' or '2-3 weeks'"
    }
  ],
  "key_recommendations": [
    {
      "area": "e.g. Risk Management",
      "recommendation": "Specific actionable recommendation",
      "justification": "Why this fits the scenario",
      "source_standards": ["PMBOK", "ISO_21502"],
      "citations": ["PMBOK (2021), Section X.Y, p. Z"]
    }
  ],
  "tailoring_rationale": "Detailed explanation of how/why the process was tailored",
  "standards_alignment": {
    "PMBOK": "How this process aligns with PMBOK",
    "PRINCE2": "How this process aligns with PRINCE2",
    "ISO_21502": "How this process aligns with ISO 21502"
  },
  "mermaid_diagram": "optional flowchart syntax for the process flow"
}

6. Critical Rules:
   - Only use information from provided context chunks
   - Always cite sources using exact section and page numbers
   - Be pragmatic; balance theory with practical implementation
   - Never invent practices not supported by the provided standards content`

func buildCitationUserPrompt(query string, evidence domain.EvidenceBundle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", query)

	if len(evidence.Primary) > 0 {
		b.WriteString("\n=== PRIMARY CONTEXT (Highest Relevance) ===\n")
		for _, ref := range evidence.Primary {
			fmt.Fprintf(&b, "\n**%s** - %s\n", ref.Standard, chunkCitation(ref))
			fmt.Fprintf(&b, "Content: %s\n", ref.Content)
		}
	}

	if len(evidence.Additional) > 0 {
		b.WriteString("\n=== ADDITIONAL CONTEXT (Supporting Information) ===\n")
		for _, ref := range evidence.Additional {
			fmt.Fprintf(&b, "\n**%s** - %s\n", ref.Standard, chunkCitation(ref))
			fmt.Fprintf(&b, "Content: %s\n", truncateChunk(ref.Content, additionalChunkChars))
		}
	}

	b.WriteString("\nProvide a comprehensive answer with proper citations:")
	return b.String()
}

func buildComparisonUserPrompt(topic string, sources map[domain.Standard][]domain.SourceRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic for Comparison: %s\n", topic)

	for _, standard := range domain.Standards() {
		refs := sources[standard]
		if len(refs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n=== %s (%s) ===\n", standard, domain.PublicationYear(standard))
		for _, ref := range refs {
			fmt.Fprintf(&b, "\n%s\n", chunkCitation(ref))
			fmt.Fprintf(&b, "Content: %s\n", ref.Content)
		}
	}

	b.WriteString("\nProvide a comprehensive comparison with proper citations:")
	return b.String()
}

func buildProcessUserPrompt(req domain.ProcessRequest, sections []domain.SourceRef) string {
	var b strings.Builder
	b.WriteString("=== PROJECT SCENARIO ===\n")
	fmt.Fprintf(&b, "Project Type: %s\n", req.Type)
	fmt.Fprintf(&b, "Project Size: %s\n", req.Size)
	fmt.Fprintf(&b, "Description: %s\n", req.Description)

	if len(req.Constraints) > 0 {
		fmt.Fprintf(&b, "\nConstraints: %s", strings.Join(req.Constraints, ", "))
	}
	if len(req.Priorities) > 0 {
		fmt.Fprintf(&b, "\nPriorities: %s", strings.Join(req.Priorities, ", "))
	}
	if len(req.FocusAreas) > 0 {
		fmt.Fprintf(&b, "\nFocus Areas: %s", strings.Join(req.FocusAreas, ", "))
	}

	b.WriteString("\n\n=== RELEVANT STANDARDS CONTENT ===\n")
	for _, standard := range domain.Standards() {
		refs := sectionsForStandard(sections, standard)
		if len(refs) == 0 {
			continue
		}
		if len(refs) > processChunksPerStd {
			refs = refs[:processChunksPerStd]
		}
		fmt.Fprintf(&b, "\n--- %s (%s) ---\n", standard, domain.PublicationYear(standard))
		for _, ref := range refs {
			fmt.Fprintf(&b, "\n%s\n%s\n", chunkCitation(ref), truncateChunk(ref.Content, processChunkChars))
		}
	}

	b.WriteString("\n=== TASK ===\n")
	b.WriteString("Generate a tailored project process for this scenario using the format specified in the system prompt. ")
	b.WriteString("Ensure all recommendations address the stated constraints, priorities, and focus areas. ")
	b.WriteString("Return ONLY the JSON object, no additional text.")
	return b.String()
}

// chunkCitation is the inline evidence label, distinct from the formal
// citation styles in domain.
func chunkCitation(ref domain.SourceRef) string {
	pageRef := fmt.Sprintf("p. %d", ref.PageStart)
	if ref.PageEnd != 0 && ref.PageEnd != ref.PageStart {
		pageRef = fmt.Sprintf("pp. %d-%d", ref.PageStart, ref.PageEnd)
	}
	return fmt.Sprintf("Section %s: %s (%s)", ref.SectionNumber, ref.SectionTitle, pageRef)
}

func sectionsForStandard(refs []domain.SourceRef, standard domain.Standard) []domain.SourceRef {
	out := make([]domain.SourceRef, 0, len(refs))
	for _, ref := range refs {
		if ref.Standard == standard {
			out = append(out, ref)
		}
	}
	return out
}

// truncateChunk bounds chunk content without splitting a multibyte rune.
func truncateChunk(content string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}
