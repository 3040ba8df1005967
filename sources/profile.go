package sources

// ScrapeProfile carries per-site extraction overrides for publishers whose
// markup defeats generic content detection. Selectors are CSS and are tried
// before the generic extractors; an empty field falls through to the generic
// pass for that field.
type ScrapeProfile struct {
	ContentSelector string `json:"content_selector,omitempty"`
	TitleSelector   string `json:"title_selector,omitempty"`
	AuthorSelector  string `json:"author_selector,omitempty"`
	DateSelector    string `json:"date_selector,omitempty"`

	// DateFormat is a Go reference layout applied to DateSelector text.
	// When empty the text is parsed loosely.
	DateFormat string `json:"date_format,omitempty"`
}

// Empty reports whether the profile overrides nothing. A nil profile is
// empty.
func (p *ScrapeProfile) Empty() bool {
	if p == nil {
		return true
	}
	return p.ContentSelector == "" && p.TitleSelector == "" &&
		p.AuthorSelector == "" && p.DateSelector == ""
}
