package transfer

type SettingsRequest struct {
	LongPostEnabled bool `json:"long_post_enabled"`
	PreferOwnKeys   bool `json:"prefer_own_keys"`
}

type ProviderKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}
