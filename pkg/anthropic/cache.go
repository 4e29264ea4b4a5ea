package anthropic

// BuildCachedSystemBlocks returns the system prompt as a single block with a
// cache breakpoint. The oracle's instructions and few-shot examples are
// identical across every file of a run, so later calls read them from cache.
// An empty ttl uses the API default of five minutes.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{{
		Text:         text,
		CacheControl: &CacheControl{TTL: ttl},
	}}
}
