package candidate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
)

// RawRecord is one loosely structured source entry.
type RawRecord map[string]any

// DecodeRecord parses one source entry. Only undecodable input, null or a
// non-object value is an error.
func DecodeRecord(data []byte) (RawRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrInvalidRecord().WithDetail("reason", "record is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, ErrRegistry.NewWithCause(CodeInvalidRecord, err).WithDetail("reason", "malformed json")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrInvalidRecord().WithDetail("reason", fmt.Sprintf("expected object, got %T", v))
	}
	return RawRecord(obj), nil
}

// fieldRule maps the first present alias onto a canonical field. Aliases
// are dotted paths into nested objects. When no alias is present the
// field keeps the value New assigned.
type fieldRule struct {
	field   string
	aliases []string
	apply   func(c *Candidate, v any)
}

func str(set func(c *Candidate, s string)) func(*Candidate, any) {
	return func(c *Candidate, v any) { set(c, toString(v)) }
}

func strs(set func(c *Candidate, s []string)) func(*Candidate, any) {
	return func(c *Candidate, v any) { set(c, toStrings(v)) }
}

var fieldRules = []fieldRule{
	{"application_id", []string{"application_id", "applicationId", "candidature_id"},
		str(func(c *Candidate, s string) { c.ApplicationID = kernel.ApplicationID(s) })},
	{"first_name", []string{"first_name", "prenom", "firstName"},
		str(func(c *Candidate, s string) { c.FirstName = s })},
	{"last_name", []string{"last_name", "nom", "lastName"},
		str(func(c *Candidate, s string) { c.LastName = s })},

	{"offre.intitule", []string{"offre.intitule", "job_title", "intitule"},
		str(func(c *Candidate, s string) { c.Offer.Title = s })},
	{"offre.reference", []string{"offre.reference", "job_id", "reference"},
		str(func(c *Candidate, s string) { c.Offer.Reference = s })},
	{"offre.ligne_hierarchique", []string{"offre.ligne_hierarchique", "ligne_hierarchique", "reporting_line"},
		str(func(c *Candidate, s string) { c.Offer.ReportingLine = s })},
	{"offre.type_contrat", []string{"offre.type_contrat", "contract_type", "type_contrat"},
		str(func(c *Candidate, s string) { c.Offer.ContractType = s })},
	{"offre.categorie", []string{"offre.categorie", "department", "categorie"},
		str(func(c *Candidate, s string) { c.Offer.Category = s })},
	{"offre.salaire_brut", []string{"offre.salaire_brut", "salaire_brut", "salary"},
		str(func(c *Candidate, s string) { c.Offer.GrossSalary = s })},
	{"offre.statut", []string{"offre.statut", "status_offerts", "statut"},
		str(func(c *Candidate, s string) { c.Offer.Status = s })},
	{"offre.campagne_recrutement", []string{"offre.campagne_recrutement", "campagne_recrutement", "campaign"},
		str(func(c *Candidate, s string) { c.Offer.Campaign = s })},
	{"offre.active", []string{"offre.active", "active"},
		func(c *Candidate, v any) { c.Offer.Active = toBool(v, true) }},
	{"offre.date_embauche", []string{"offre.date_embauche", "date_embauche", "hire_date"},
		str(func(c *Candidate, s string) { c.Offer.HireDate = s })},
	{"offre.lieu_travail", []string{"offre.lieu_travail", "job_location", "lieu_travail"},
		str(func(c *Candidate, s string) { c.Offer.Location = s })},
	{"offre.date_limite_candidature", []string{"offre.date_limite_candidature", "date_limite_candidature", "deadline"},
		str(func(c *Candidate, s string) { c.Offer.ApplicationDeadline = s })},
	{"offre.missions_principales", []string{"offre.missions_principales", "job_description", "missions_principales"},
		str(func(c *Candidate, s string) { c.Offer.Missions = s })},
	{"offre.connaissances_requises", []string{"offre.connaissances_requises", "connaissances_requises", "required_knowledge"},
		str(func(c *Candidate, s string) { c.Offer.RequiredKnowledge = s })},
	{"offre.date_publication", []string{"offre.date_publication", "date_candidature", "date_publication"},
		str(func(c *Candidate, s string) { c.Offer.PublishedAt = s })},
	{"offre.autres_informations", []string{"offre.autres_informations", "autres_informations"},
		str(func(c *Candidate, s string) { c.Offer.OtherInformation = s })},

	{"offre.questions_mtp.metier", []string{"offre.questions_mtp.metier", "questions_metier_offre", "questions_mtp.metier"},
		strs(func(c *Candidate, s []string) { c.Offer.Questions.Professional = s })},
	{"offre.questions_mtp.talent", []string{"offre.questions_mtp.talent", "questions_talent_offre", "questions_mtp.talent"},
		strs(func(c *Candidate, s []string) { c.Offer.Questions.Talent = s })},
	{"offre.questions_mtp.paradigme", []string{"offre.questions_mtp.paradigme", "questions_paradigme_offre", "questions_mtp.paradigme"},
		strs(func(c *Candidate, s []string) { c.Offer.Questions.Paradigm = s })},

	{"reponses_mtp.metier", []string{"reponses_mtp_candidat.metier", "reponses_mtp.metier"},
		strs(func(c *Candidate, s []string) { c.Answers.Professional = s })},
	{"reponses_mtp.talent", []string{"reponses_mtp_candidat.talent", "reponses_mtp.talent"},
		strs(func(c *Candidate, s []string) { c.Answers.Talent = s })},
	{"reponses_mtp.paradigme", []string{"reponses_mtp_candidat.paradigme", "reponses_mtp.paradigme"},
		strs(func(c *Candidate, s []string) { c.Answers.Paradigm = s })},
}

// Normalize builds a canonical record skeleton from a raw entry. Missing or
// mistyped optional fields fall back to defaults; the document set is empty.
func Normalize(raw RawRecord) (*Candidate, error) {
	if raw == nil {
		return nil, ErrInvalidRecord().WithDetail("reason", "record is missing")
	}

	c := New()
	for _, rule := range fieldRules {
		if v, ok := raw.lookupAny(rule.aliases); ok {
			rule.apply(c, v)
		}
	}
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.ApplicationID = kernel.ApplicationID(strings.TrimSpace(c.ApplicationID.String()))
	return c, nil
}

// NormalizeJSON decodes and normalizes one entry.
func NormalizeJSON(data []byte) (*Candidate, RawRecord, error) {
	raw, err := DecodeRecord(data)
	if err != nil {
		return nil, nil, err
	}
	c, err := Normalize(raw)
	return c, raw, err
}

func (r RawRecord) lookupAny(paths []string) (any, bool) {
	for _, p := range paths {
		if v, ok := r.lookup(p); ok {
			return v, true
		}
	}
	return nil, false
}

// lookup walks a dotted path. Null leaves count as absent.
func (r RawRecord) lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		return strings.Join(toStrings(t), "\n")
	case []string:
		return strings.Join(t, "\n")
	default:
		return ""
	}
}

func toStrings(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range t {
			if s != "" {
				out = append(out, s)
			}
		}
	case string:
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func toBool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n != 0
		}
	case float64:
		return t != 0
	}
	return def
}
