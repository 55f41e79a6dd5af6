package contract

import (
	"strings"

	"resume-workflow/resume/model"
)

const (
	PlaceholderPrefix      = "TO-FILL:"
	PlaceholderEmail       = "TO-FILL: Email"
	PlaceholderPhone       = "TO-FILL: Phone"
	PlaceholderAddress     = "TO-FILL: Address"
	PlaceholderSkills      = "TO-FILL: Skills"
	PlaceholderInstitution = "TO-FILL: Institution"
	PlaceholderDegree      = "TO-FILL: Degree"
	PlaceholderYear        = "TO-FILL: Year"
	PlaceholderLocation    = "TO-FILL: Location"
)

type MissingFieldsError struct {
	Fields []string
}

func (e MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Enforce ensures required contact fields and sections are present so the
// reviewer sees explicit gaps instead of silently empty sections.
// When strict is true, missing fields are reported without applying placeholders.
func Enforce(draft *model.DraftResume, strict bool) error {
	missing := collectMissing(draft)
	if strict && len(missing) > 0 {
		return MissingFieldsError{Fields: missing}
	}

	applyPlaceholders(draft, missing)
	return nil
}

// Clean trims whitespace, drops empty list entries and removes skills that
// repeat ignoring case, in place.
func Clean(draft *model.DraftResume) {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Email = strings.TrimSpace(draft.Email)
	draft.Phone = strings.TrimSpace(draft.Phone)
	draft.Address = strings.TrimSpace(draft.Address)
	draft.LinkedIn = strings.TrimSpace(draft.LinkedIn)
	draft.GitHub = strings.TrimSpace(draft.GitHub)
	for i := range draft.Experience {
		draft.Experience[i].BulletPoints = compact(draft.Experience[i].BulletPoints)
	}
	draft.Skills.TechnicalSkills = dedupeFold(compact(draft.Skills.TechnicalSkills))
	draft.Skills.SoftSkills = dedupeFold(compact(draft.Skills.SoftSkills))
	draft.Skills.Languages = dedupeFold(compact(draft.Skills.Languages))
	for i := range draft.PersonalProjects {
		draft.PersonalProjects[i].Technologies = compact(draft.PersonalProjects[i].Technologies)
		draft.PersonalProjects[i].Highlights = compact(draft.PersonalProjects[i].Highlights)
	}
	if draft.ProfessionalSummary != nil && strings.TrimSpace(draft.ProfessionalSummary.Summary) == "" {
		draft.ProfessionalSummary = nil
	}
}

func collectMissing(draft *model.DraftResume) []string {
	missing := make([]string, 0, 5)
	if !hasValue(draft.Email) {
		missing = append(missing, "email")
	}
	if !hasValue(draft.Phone) {
		missing = append(missing, "phone")
	}
	if !hasValue(draft.Address) {
		missing = append(missing, "address")
	}
	if !hasSkills(draft.Skills) {
		missing = append(missing, "skills")
	}
	if !hasEducation(draft.Education) {
		missing = append(missing, "education")
	}
	return missing
}

func applyPlaceholders(draft *model.DraftResume, missing []string) {
	for _, field := range missing {
		switch field {
		case "email":
			draft.Email = PlaceholderEmail
		case "phone":
			draft.Phone = PlaceholderPhone
		case "address":
			draft.Address = PlaceholderAddress
		case "skills":
			draft.Skills.TechnicalSkills = []string{PlaceholderSkills}
		case "education":
			draft.Education = []model.Education{{
				Institution:    PlaceholderInstitution,
				Degree:         PlaceholderDegree,
				GraduationYear: PlaceholderYear,
				Location:       PlaceholderLocation,
			}}
		}
	}
}

func hasValue(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	return !strings.HasPrefix(strings.ToUpper(trimmed), PlaceholderPrefix)
}

func hasSkills(skills model.Skills) bool {
	all := make([]string, 0, len(skills.TechnicalSkills)+len(skills.SoftSkills)+len(skills.Languages))
	all = append(all, skills.TechnicalSkills...)
	all = append(all, skills.SoftSkills...)
	all = append(all, skills.Languages...)
	for _, value := range all {
		if hasValue(value) {
			return true
		}
	}
	return false
}

func hasEducation(items []model.Education) bool {
	for _, edu := range items {
		if hasValue(edu.Institution) || hasValue(edu.Degree) {
			return true
		}
	}
	return false
}

func compact(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// dedupeFold keeps the first spelling of each case-insensitive value.
func dedupeFold(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
