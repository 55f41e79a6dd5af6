package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleDraft() DraftResume {
	return DraftResume{
		Name:     "Jane Doe",
		Email:    "jane@example.com",
		Phone:    "+1 555 0100",
		Address:  "Lisbon, PT",
		LinkedIn: "linkedin.com/in/janedoe",
		Experience: []Experience{{
			Company:      "Acme",
			JobTitle:     "Backend Engineer",
			StartDate:    "2020-01",
			BulletPoints: []string{"Built services"},
			Location:     "Remote",
		}},
		Skills: Skills{TechnicalSkills: []string{"Go", "Python"}},
		Education: []Education{{
			Institution:    "Uni",
			Degree:         "BSc",
			GraduationYear: "2018",
			Location:       "Porto",
		}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *DraftResume)
		wantErr string
	}{
		{name: "valid", mutate: func(d *DraftResume) {}},
		{name: "missing name", mutate: func(d *DraftResume) { d.Name = "" }, wantErr: "Name"},
		{name: "experience without company", mutate: func(d *DraftResume) { d.Experience[0].Company = "" }, wantErr: "Company"},
		{name: "bad linkedin", mutate: func(d *DraftResume) { d.LinkedIn = "not a link" }, wantErr: "linkedIn"},
		{name: "full url github", mutate: func(d *DraftResume) { d.GitHub = "https://github.com/jane" }},
		{name: "bad project url", mutate: func(d *DraftResume) {
			d.PersonalProjects = []PersonalProject{{Name: "cli", URL: "ftp://x"}}
		}, wantErr: "personal_projects[0].url"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			d := sampleDraft()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestJSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(sampleDraft())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"job_title"`, `"bullet_points"`, `"technical_skills"`, `"graduation_year"`, `"linkedIn"`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("expected %s in %s", key, raw)
		}
	}
	if strings.Contains(string(raw), `"personal_projects"`) {
		t.Fatalf("empty projects should be omitted")
	}
}

func TestSchemaEmbedded(t *testing.T) {
	var schema map[string]any
	if err := json.Unmarshal([]byte(Schema()), &schema); err != nil {
		t.Fatalf("schema must be valid json: %v", err)
	}
	if schema["title"] != "DraftResume" {
		t.Fatalf("unexpected schema title: %v", schema["title"])
	}
}
