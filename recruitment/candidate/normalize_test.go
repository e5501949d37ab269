package candidate

import (
	"testing"

	"github.com/Abraxas-365/applyflow/pkg/errx"
	"github.com/google/go-cmp/cmp"
)

func TestNormalizeFlatSourceRecord(t *testing.T) {
	c, _, err := NormalizeJSON([]byte(`{
		"application_id": "APP-001",
		"first_name": " Jean ",
		"last_name": "Dupont",
		"job_title": "Ingénieur réseau",
		"job_id": 1042,
		"contract_type": "CDI",
		"department": "Technique",
		"status_offerts": "interne",
		"job_location": "Libreville",
		"job_description": "Superviser le réseau",
		"date_candidature": "2025-09-01",
		"questions_metier_offre": ["Q1", null, "Q2"],
		"questions_talent_offre": ["T1"],
		"reponses_mtp_candidat": {"metier": ["R1"], "talent": ["A", "B", "C"], "paradigme": null},
		"documents": []
	}`))
	if err != nil {
		t.Fatalf("NormalizeJSON: %v", err)
	}

	if c.ApplicationID != "APP-001" || c.FirstName != "Jean" || c.LastName != "Dupont" {
		t.Errorf("identity = %q %q %q", c.ApplicationID, c.FirstName, c.LastName)
	}

	wantOffer := Offer{
		Title:        "Ingénieur réseau",
		Reference:    "1042",
		ContractType: "CDI",
		Category:     "Technique",
		Status:       "interne",
		Active:       true,
		Location:     "Libreville",
		Missions:     "Superviser le réseau",
		PublishedAt:  "2025-09-01",
		Questions: MTP{
			Professional: []string{"Q1", "Q2"},
			Talent:       []string{"T1"},
			Paradigm:     []string{},
		},
	}
	if diff := cmp.Diff(wantOffer, c.Offer); diff != "" {
		t.Errorf("offer mismatch (-want +got):\n%s", diff)
	}

	// More answers than questions is accepted as-is.
	wantAnswers := MTP{Professional: []string{"R1"}, Talent: []string{"A", "B", "C"}, Paradigm: []string{}}
	if diff := cmp.Diff(wantAnswers, c.Answers); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}
	if c.Documents.Count() != 0 {
		t.Errorf("documents should start empty, got %d", c.Documents.Count())
	}
}

func TestNormalizeNestedAliases(t *testing.T) {
	c, _, err := NormalizeJSON([]byte(`{
		"prenom": "Awa",
		"nom": "Ndong",
		"offre": {"intitule": "Comptable", "active": "false", "questions_mtp": {"paradigme": ["P1"]}},
		"reponses_mtp": {"paradigme": ["Réponse"]}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if c.FirstName != "Awa" || c.LastName != "Ndong" {
		t.Errorf("name = %q %q", c.FirstName, c.LastName)
	}
	if c.Offer.Title != "Comptable" || c.Offer.Active {
		t.Errorf("offer = %+v", c.Offer)
	}
	if diff := cmp.Diff([]string{"P1"}, c.Offer.Questions.Paradigm); diff != "" {
		t.Errorf("questions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Réponse"}, c.Answers.Paradigm); diff != "" {
		t.Errorf("answers (-want +got):\n%s", diff)
	}
}

func TestNormalizeMissingEverythingUsesDefaults(t *testing.T) {
	c, _, err := NormalizeJSON([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	want := New()
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if !c.Offer.Active {
		t.Error("offer should default to active")
	}
}

func TestNormalizeMistypedFieldsDoNotFail(t *testing.T) {
	c, _, err := NormalizeJSON([]byte(`{"first_name": {"nested": true}, "offre": "not-an-object", "questions_metier_offre": 12}`))
	if err != nil {
		t.Fatalf("mistyped optional fields must not fail: %v", err)
	}
	if c.FirstName != "" || c.Offer.Title != "" || len(c.Offer.Questions.Professional) != 0 {
		t.Errorf("unexpected values: %+v", c)
	}
}

func TestNormalizeStructuralFailures(t *testing.T) {
	inputs := map[string]string{
		"null":      `null`,
		"empty":     ``,
		"array":     `[1, 2]`,
		"scalar":    `"text"`,
		"malformed": `{"first_name": `,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, _, err := NormalizeJSON([]byte(in))
			if !errx.IsCode(err, CodeInvalidRecord) {
				t.Fatalf("err = %v, want %s", err, CodeInvalidRecord)
			}
		})
	}

	if _, err := Normalize(nil); !errx.IsCode(err, CodeInvalidRecord) {
		t.Fatalf("Normalize(nil) err = %v", err)
	}
}
