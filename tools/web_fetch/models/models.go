package models

// Result is the raw page returned by a fetcher.
type Result struct {
	URL      string `json:"url"`
	HTML     string `json:"html"`
	HTMLHash string `json:"html_hash"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}
