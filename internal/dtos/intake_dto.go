package dtos

type IntakeMessageRequest struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type ProposalEditRequest struct {
	// Content is the full replacement payload, as JSON text matching the
	// proposal's declared type.
	Content string `json:"content" binding:"required"`
}
