package models

// BountyPage is a page of bounties plus the count of every row matching the filter.
type BountyPage struct {
	Data  []Bounty `json:"data"`
	Total int64    `json:"total"`
}

// BountySubmissions is a bounty together with the submissions visible for it.
type BountySubmissions struct {
	Bounty     *Bounty      `json:"bounty"`
	Submission []Submission `json:"submission"`
}

// OGImage is one og:image entry.
type OGImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// OpenGraph is the subset of Open Graph tags the dashboard reads.
type OpenGraph struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	SiteName    string    `json:"site_name,omitempty"`
	Images      []OGImage `json:"images"`
}

// OGResult is the body of POST /api/og.
type OGResult struct {
	URL       string    `json:"url"`
	OpenGraph OpenGraph `json:"open_graph"`
}
