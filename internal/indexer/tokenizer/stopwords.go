package tokenizer

var defaultStopWords = []string{
	"a", "about", "after", "against", "an", "and", "are", "as", "at",
	"be", "because", "before", "between", "both", "but", "by", "can",
	"do", "during", "each", "for", "from", "had", "has", "have", "he",
	"if", "in", "into", "is", "it", "its", "just", "no", "not", "of",
	"on", "or", "so", "such", "than", "that", "the", "their", "then",
	"these", "they", "this", "those", "through", "to", "was", "were",
	"what", "when", "where", "which", "who", "will", "with",
}

func stopWordSet(words []string) map[string]struct{} {
	if len(words) == 0 {
		words = defaultStopWords
	}
	set := make(map[string]struct{}, len(words))
	// Configured words go through the same folding as document text.
	for _, w := range words {
		if w = normalize(w); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}
