package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

// Tags holds the metadata the model extracts from a paper.
type Tags struct {
	PartUsed   string `json:"part_used"`
	Extraction string `json:"extraction_method"`
}

// maxTaggingChars limits how much of the paper the tagger sees. Methods
// sections land early in most papers, so the head is enough.
const maxTaggingChars = 6000

const taggingPromptTemplate = `[INST] <<SYS>>
You are a scientific literature analyst for Ganoderma lucidum (Reishi) research.
Your task is to identify TWO specific details from the research paper text provided below:

1. **Part of the Mushroom Used**:
   - Options: "Fruiting Body" (子實體), "Mycelium" (菌絲體), "Spore" (孢子), "Mixed", or "Unknown".

2. **Extraction Method / Solvent**:
   - Options: "Water/Aqueous" (水萃取), "Ethanol/Alcohol" (醇萃取), "Methanol", "Polysaccharide Extract", "Triterpenoid Extract", "Powder" (Raw powder, no extract), or "Unknown".

Return ONLY a JSON object. Do not include any other text.
Format:
{
  "part_used": "...",
  "extraction_method": "..."
}
<</SYS>>

Paper Text:
%s

JSON Output:
[/INST]`

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// TagPaper classifies the mushroom part and extraction method used in a
// paper. Transient server errors propagate as *RetryableError so the
// pipeline can retry; unparseable model output degrades to Unknown tags.
func (c *Client) TagPaper(ctx context.Context, text string) (Tags, error) {
	if r := []rune(text); len(r) > maxTaggingChars {
		text = string(r[:maxTaggingChars])
	}

	prompt := fmt.Sprintf(taggingPromptTemplate, text)
	resp, err := c.generate(ctx, prompt, json.RawMessage(`"json"`))
	if err != nil {
		return unknownTags(), fmt.Errorf("tag paper: %w", err)
	}
	return parseTags(resp), nil
}

// parseTags pulls the first JSON object out of the model response. Anything
// unparseable or blank becomes Unknown.
func parseTags(resp string) Tags {
	tags := unknownTags()

	match := jsonObjectRe.FindString(resp)
	if match == "" {
		return tags
	}
	var parsed Tags
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return tags
	}
	if parsed.PartUsed != "" {
		tags.PartUsed = parsed.PartUsed
	}
	if parsed.Extraction != "" {
		tags.Extraction = parsed.Extraction
	}
	return tags
}

func unknownTags() Tags {
	return Tags{PartUsed: "Unknown", Extraction: "Unknown"}
}
