package llm

import "github.com/raphaelgruber/contractflow/internal/models"

// Providers report token counts under different keys.
var (
	inputKeys  = []string{"InputTokens", "PromptTokens", "input_tokens", "prompt_tokens"}
	outputKeys = []string{"OutputTokens", "CompletionTokens", "output_tokens", "completion_tokens"}
	totalKeys  = []string{"TotalTokens", "total_tokens"}
)

// UsageFromGenerationInfo reads token usage from a langchaingo choice.
// Missing figures are reported as zero; absence is not an error.
func UsageFromGenerationInfo(info map[string]any) models.Usage {
	if len(info) == 0 {
		return models.Usage{}
	}
	u := models.Usage{
		InputTokens:  firstInt(info, inputKeys),
		OutputTokens: firstInt(info, outputKeys),
		TotalTokens:  firstInt(info, totalKeys),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

func firstInt(info map[string]any, keys []string) int64 {
	for _, k := range keys {
		v, ok := info[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		}
	}
	return 0
}
