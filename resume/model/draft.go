package model

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DraftResume is the structured résumé produced by one generation pass.
// Field names follow the JSON contract the model is asked to emit.
type DraftResume struct {
	Name                string               `json:"name" validate:"required"`
	Email               string               `json:"email"`
	Phone               string               `json:"phone"`
	Address             string               `json:"address"`
	LinkedIn            string               `json:"linkedIn,omitempty"`
	GitHub              string               `json:"github,omitempty"`
	Experience          []Experience         `json:"experience" validate:"dive"`
	Skills              Skills               `json:"skills"`
	Education           []Education          `json:"education" validate:"dive"`
	Certifications      []Certification      `json:"certifications,omitempty" validate:"dive"`
	PersonalProjects    []PersonalProject    `json:"personal_projects,omitempty" validate:"dive"`
	ProfessionalSummary *ProfessionalSummary `json:"professional_summary,omitempty"`
	Considerations      string               `json:"considerations,omitempty"`
}

// Experience is a work history entry; bullet points are ordered achievements.
type Experience struct {
	Company      string   `json:"company" validate:"required"`
	JobTitle     string   `json:"job_title" validate:"required"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date,omitempty"`
	BulletPoints []string `json:"bullet_points"`
	Location     string   `json:"location"`
}

// Skills groups skills by kind.
type Skills struct {
	TechnicalSkills []string `json:"technical_skills"`
	SoftSkills      []string `json:"soft_skills"`
	Languages       []string `json:"languages"`
}

// Education is an education entry.
type Education struct {
	Institution    string `json:"institution" validate:"required"`
	Degree         string `json:"degree" validate:"required"`
	GraduationYear string `json:"graduation_year"`
	Location       string `json:"location"`
}

// Certification is an optional credential entry.
type Certification struct {
	Name          string `json:"name" validate:"required"`
	Issuer        string `json:"issuer"`
	Date          string `json:"date"`
	ExpiryDate    string `json:"expiry_date,omitempty"`
	CredentialID  string `json:"credential_id,omitempty"`
	CredentialURL string `json:"credential_url,omitempty"`
}

// PersonalProject is an optional side project entry.
type PersonalProject struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Highlights   []string `json:"highlights"`
	URL          string   `json:"url,omitempty"`
}

// ProfessionalSummary wraps the free-text summary paragraph.
type ProfessionalSummary struct {
	Summary string `json:"summary"`
}

//go:embed draft.schema.json
var draftSchema string

// Schema returns the JSON schema the generation engine output must satisfy.
func Schema() string {
	return draftSchema
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate enforces required fields and link formatting.
func (d DraftResume) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%s failed %s", strings.TrimPrefix(first.Namespace(), "DraftResume."), first.Tag())
		}
		return err
	}
	links := map[string]string{
		"linkedIn": d.LinkedIn,
		"github":   d.GitHub,
	}
	for field, link := range links {
		if strings.TrimSpace(link) == "" {
			continue
		}
		if !isLink(link) {
			return fmt.Errorf("%s must be a URL or profile path", field)
		}
	}
	for i, project := range d.PersonalProjects {
		if project.URL != "" && !isLink(project.URL) {
			return fmt.Errorf("personal_projects[%d].url must be a URL", i)
		}
	}
	return nil
}

// isLink accepts full http(s) URLs and bare host/path forms such as
// "linkedin.com/in/jane", which models commonly emit.
func isLink(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(strings.ToUpper(trimmed), "TO-FILL:") {
		return true
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return strings.Contains(parsed.Host, ".")
}
