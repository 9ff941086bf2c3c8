package dtos

type JobExtractionRequest struct {
	RawHTML string `json:"raw_html" binding:"required"`
	URL     string `json:"url"`
}

type JobCreateRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Title       string `json:"role_title" binding:"required"`
	Description string `json:"description" binding:"required"`

	// Optional Fields
	Location   string `json:"location"`
	PostingURL string `json:"posting_url"`
}

type JobUpdateRequest struct {
	CompanyName *string `json:"company_name"`
	Title       *string `json:"role_title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	PostingURL  *string `json:"posting_url"`
}
