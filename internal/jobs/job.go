package jobs

import "github.com/job-portal/job-portal-server/internal/docstore"

const Collection = "jobs"

const (
	FieldTitle               = "title"
	FieldLocation            = "location"
	FieldJobType             = "jobType"
	FieldCategory            = "category"
	FieldApplicationDeadline = "applicationDeadline"
	FieldSalaryRange         = "salaryRange"
	FieldDescription         = "description"
	FieldCompany             = "company"
	FieldRequirements        = "requirements"
	FieldResponsibilities    = "responsibilities"
	FieldStatus              = "status"
	FieldHREmail             = "hr_email"
	FieldHRName              = "hr_name"
	FieldCompanyLogo         = "company_logo"
	FieldApplicationCount    = "applicationCount"
)

// ReplaceableFields are copied from a PUT payload; everything else in the
// payload is ignored.
var ReplaceableFields = []string{
	FieldTitle,
	FieldLocation,
	FieldJobType,
	FieldCategory,
	FieldApplicationDeadline,
	FieldSalaryRange,
	FieldDescription,
	FieldCompany,
	FieldRequirements,
	FieldResponsibilities,
	FieldStatus,
	FieldHREmail,
	FieldHRName,
	FieldCompanyLogo,
}

// ApplicationCount returns the job's counter and whether it is set.
func ApplicationCount(doc docstore.Document) (int64, bool) {
	n, ok := doc[FieldApplicationCount].(float64)
	return int64(n), ok
}
