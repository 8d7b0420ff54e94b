package insight

import (
	"fmt"

	"github.com/BaSui01/readr/types"
)

const characterVisualizationTemplate = `Analyze the characters in the following text and generate a JSON object with:
1. A "characters" key containing a dictionary where:
   - Each key is a character name
   - Each value is a dictionary with:
     - "traits": list of character traits
     - "relationships": dictionary of relationships with other characters
     - "development": description of character development
     - "importance": number from 1-10
Text: %s
Example format:
{
    "characters": {
        "Captain Ahab": {
            "traits": ["obsessive", "determined", "tragic"],
            "relationships": {
                "Ishmael": "narrator and observer",
                "Moby Dick": "obsession and nemesis"
            },
            "development": "Starts as respected captain, descends into obsession",
            "importance": 10
        }
    }
}
Output only valid JSON without explanation.`

const themeVisualizationTemplate = `Identify the main themes in the following text and generate a JSON object with:
1. A "themes" key containing a dictionary where:
   - Each key is a theme name
   - Each value is a dictionary with:
     - "description": detailed explanation of the theme
     - "evidence": list of key examples from the text
     - "importance": number from 1-10
Text: %s
Example format:
{
    "themes": {
        "Revenge": {
            "description": "The destructive nature of revenge and obsession",
            "evidence": ["Ahab's quest for revenge", "The final confrontation"],
            "importance": 9
        }
    }
}
Output only valid JSON without explanation.`

const symbolVisualizationTemplate = `Identify symbols in the following text and generate a JSON object with:
1. A "symbols" key containing a dictionary where:
   - Each key is a symbol name
   - Each value is a dictionary with:
     - "meaning": detailed explanation of the symbol's meaning
     - "occurrences": list of key occurrences in the text
     - "significance": number from 1-10
Text: %s
Example format:
{
    "symbols": {
        "The White Whale": {
            "meaning": "Represents the unknowable and nature's power",
            "occurrences": ["First mentioned in Chapter 1", "Final confrontation"],
            "significance": 10
        }
    }
}
Output only valid JSON without explanation.`

const generalVisualizationTemplate = `Perform a general literary analysis of the following text and generate a JSON object with:
1. "characters": dictionary of character information
2. "themes": dictionary of theme information
3. "symbols": dictionary of symbol information
Each section should follow standard literary analysis structure.
Text: %s
Output only valid JSON without explanation.`

const comparisonTemplate = `Compare the following two literary texts and identify similarities and differences in:
1. Themes
2. Style
3. Characters
4. Setting
5. Tone

Text 1: %s

Text 2: %s

Generate a JSON object with these categories and detailed comparisons.
Output only valid JSON without explanation.`

const studyGuideTemplate = `Generate a comprehensive study guide for the following literary text:

%sText: %s

Include the following sections in JSON format:
1. Summary
2. Key Characters (name, description, significance)
3. Major Themes (name, explanation, textual evidence)
4. Important Symbols (for each symbol, use its actual name/object as the key, not "Symbol 1", "Symbol 2", etc. Include meaning and occurrences)
5. Discussion Questions (at least 5 thought-provoking questions)
6. Key Passages (passage text, page/location, significance)
7. Historical Context (relevant historical information)
8. Critical Perspectives (different ways to interpret the text)

For the Important Symbols section, use the actual symbol names as keys. For example:
{
    "Important Symbols": {
        "The White Whale": {
            "meaning": "Represents the unknowable and nature's power",
            "occurrences": "Appears throughout the novel as Ahab's obsession"
        },
        "The Sea": {
            "meaning": "Symbolizes both life and death",
            "occurrences": "Present in all major scenes"
        }
    }
}

Output only valid JSON without explanation.`

const progressTemplate = `The reader is currently at this point in the text:

%s

Generate contextual insights in JSON format including:
1. Current scene summary
2. Active characters
3. Important elements to pay attention to
4. Questions to consider while reading this section

Output only valid JSON without explanation.`

// visualizationPrompt 按分析模式选择提示词模板.
func visualizationPrompt(excerpt string, mode types.AnalysisMode) string {
	switch mode {
	case types.ModeCharacter:
		return fmt.Sprintf(characterVisualizationTemplate, excerpt)
	case types.ModeTheme:
		return fmt.Sprintf(themeVisualizationTemplate, excerpt)
	case types.ModeSymbolism:
		return fmt.Sprintf(symbolVisualizationTemplate, excerpt)
	default:
		return fmt.Sprintf(generalVisualizationTemplate, excerpt)
	}
}

func comparisonPrompt(excerpt1, excerpt2 string) string {
	return fmt.Sprintf(comparisonTemplate, excerpt1, excerpt2)
}

func studyGuidePrompt(header, excerpt string) string {
	return fmt.Sprintf(studyGuideTemplate, header, excerpt)
}

func progressPrompt(window string) string {
	return fmt.Sprintf(progressTemplate, window)
}
