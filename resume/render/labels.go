package render

// Labels holds the localized section titles and inline labels.
type Labels struct {
	BabelLanguage string

	ProfessionalSummary string
	Experience          string
	Skills              string
	Certifications      string
	PersonalProjects    string
	Education           string

	Technical    string
	Languages    string
	SoftSkills   string
	CredentialID string
	Technologies string
	Verify       string
}

var labelsByLanguage = map[string]Labels{
	"en": {
		BabelLanguage:       "english",
		ProfessionalSummary: "Professional Summary",
		Experience:          "Experience",
		Skills:              "Skills",
		Certifications:      "Professional Certifications",
		PersonalProjects:    "Personal Projects",
		Education:           "Education",
		Technical:           "Technical:",
		Languages:           "Languages:",
		SoftSkills:          "Soft Skills:",
		CredentialID:        "Credential ID:",
		Technologies:        "Technologies:",
		Verify:              "Verify",
	},
	"pt": {
		BabelLanguage:       "brazilian",
		ProfessionalSummary: "Resumo Profissional",
		Experience:          "Experiência",
		Skills:              "Habilidades",
		Certifications:      "Certificados",
		PersonalProjects:    "Projetos Pessoais",
		Education:           "Educação",
		Technical:           "Técnicas:",
		Languages:           "Idiomas:",
		SoftSkills:          "Habilidades Comportamentais:",
		CredentialID:        "ID da Credencial:",
		Technologies:        "Tecnologias:",
		Verify:              "Verificar",
	},
}

// LabelsFor returns the labels for language, falling back to English.
func LabelsFor(language string) Labels {
	if l, ok := labelsByLanguage[language]; ok {
		return l
	}
	return labelsByLanguage["en"]
}
