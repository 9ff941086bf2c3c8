package dtos

type VersionCreateRequest struct {
	Content         string `json:"content" binding:"required"`
	TemplateName    string `json:"template_name"`
	ParentVersionID *uint  `json:"parent_version_id"`
}

type PinRequest struct {
	VersionID uint `json:"version_id" binding:"required"`
}

type RenderRequest struct {
	HTML string `json:"html" binding:"required"`
}
