package domain

// FoodMatch is one search result for a query: the canonical description
// and the detail page it links to
type FoodMatch struct {
	Query       string  `json:"query"`
	Description string  `json:"description"`
	URL         string  `json:"url,omitempty"`
	Score       float64 `json:"score"` // relevance 0-100, informational only
}

// Resolution is the outcome of resolving one FoodQuery
type Resolution struct {
	Query   string      `json:"query"`
	Matches []FoodMatch `json:"matches"`
	Missing bool        `json:"missing"`
	Cached  bool        `json:"cached"`
}

// URLs returns the detail links that were found
func (r *Resolution) URLs() []string {
	var urls []string
	for _, m := range r.Matches {
		if m.URL != "" {
			urls = append(urls, m.URL)
		}
	}
	return urls
}

// FoodPage is a rendered detail page reduced to what extraction needs
type FoodPage struct {
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
}

// Extraction is a classified detail page
type Extraction struct {
	Food    string   `json:"food"`
	Page    FoodPage `json:"page"`
	Buckets Buckets  `json:"buckets"`
	// Rendered lists every kept row with the category label it fell under
	Rendered []RenderedRow `json:"rendered"`
}

// RenderedRow is one row of the per-food CSV
type RenderedRow struct {
	Category string   `json:"category"`
	Cells    []string `json:"cells"`
}
