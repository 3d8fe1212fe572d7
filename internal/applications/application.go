package applications

import "github.com/job-portal/job-portal-server/internal/docstore"

const Collection = "applications"

const (
	FieldJobID          = "job_id"
	FieldApplicantEmail = "applicant_email"
	FieldStatus         = "status"

	// Read-time enrichment copied from the referenced job.
	FieldJobTitle    = "job_title"
	FieldCompanyName = "company_name"
	FieldCompanyLogo = "company_logo"
)

// JobID returns the referenced job id when the application carries one as a string.
func JobID(doc docstore.Document) (string, bool) {
	id, ok := doc[FieldJobID].(string)
	return id, ok && id != ""
}
