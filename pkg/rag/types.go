package rag

// Document is the text of one PDF page. Page is 0-based.
type Document struct {
	Content string
	Source  string
	Page    int
}

// Chunk is a piece of a Document. ID has the form "<source>:<page>:<index>".
type Chunk struct {
	ID      string
	Content string
	Source  string
	Page    int
}

// QueryResponse is the answer to a query along with the IDs of the chunks it was based on.
type QueryResponse struct {
	QueryText    string   `json:"query_text"`
	ResponseText string   `json:"response_text"`
	Sources      []string `json:"sources"`
}

// PopulateResult summarizes an ingestion run.
type PopulateResult struct {
	Loaded   int `json:"loaded"`   // pages with text
	Chunks   int `json:"chunks"`   // chunks produced from them
	Existing int `json:"existing"` // records in the store before adding
	Added    int `json:"added"`
}
