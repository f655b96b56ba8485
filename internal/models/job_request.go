package models

// JobRequest is the start-job payload. Model, BaseURL and APIKey may be
// filled in from config defaults before validation when the caller omits
// them; after that every tagged field is enforced.
type JobRequest struct {
	PageURL string `json:"page_url" validate:"required,url"`
	PDFURL  string `json:"pdf_url"`
	Project string `json:"project" validate:"required"`
	BaseURL string `json:"base_url" validate:"required,url"`
	Model   string `json:"model" validate:"required"`
	APIKey  string `json:"api_key" validate:"required"`
}

// ToContext snapshots the request into an immutable job context
func (r *JobRequest) ToContext() JobContext {
	return JobContext{
		PageURL: r.PageURL,
		PDFURL:  r.PDFURL,
		Project: r.Project,
		BaseURL: r.BaseURL,
		Model:   r.Model,
		APIKey:  r.APIKey,
	}
}
