package meshmsg

// ConfigCompositionDataGet encodes Config Composition Data Get for page.
func ConfigCompositionDataGet(page byte) []byte {
	return append(AppendOpcode(make([]byte, 0, 3), OpConfigCompositionDataGet), page)
}

// HealthAttentionSet encodes Health Attention Set with the attention
// timer in seconds.
func HealthAttentionSet(timer byte) []byte {
	return append(AppendOpcode(make([]byte, 0, 3), OpHealthAttentionSet), timer)
}
