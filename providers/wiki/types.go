package wiki

// queryResponse ist die generische Antwortform der MediaWiki Action API
// (formatversion=2).
type queryResponse struct {
	Query struct {
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Revisions []struct {
				RevID int64  `json:"revid"`
				User  string `json:"user"`
			} `json:"revisions"`
		} `json:"pages"`
		Users []struct {
			Name      string `json:"name"`
			EditCount int    `json:"editcount"`
			Missing   bool   `json:"missing"`
		} `json:"users"`
	} `json:"query"`
}

// parseResponse ist die Antwort von action=parse (Whitelist-Seite).
type parseResponse struct {
	Parse struct {
		Title    string `json:"title"`
		Wikitext string `json:"wikitext"`
	} `json:"parse"`
}
