package candidate

import (
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
)

// DocumentKind names one of the four document slots of a candidate record.
type DocumentKind string

const (
	DocumentCV          DocumentKind = "cv"
	DocumentCoverLetter DocumentKind = "cover_letter"
	DocumentDiploma     DocumentKind = "diploma"
	DocumentCertificate DocumentKind = "certificate"
)

// DocumentKinds lists every kind in canonical order.
var DocumentKinds = []DocumentKind{DocumentCV, DocumentCoverLetter, DocumentDiploma, DocumentCertificate}

var documentKindLabels = map[string]DocumentKind{
	"cv":           DocumentCV,
	"resume":       DocumentCV,
	"cover_letter": DocumentCoverLetter,
	"diploma":      DocumentDiploma,
	"diplome":      DocumentDiploma,
	"certificate":  DocumentCertificate,
	"certificates": DocumentCertificate,
	"certificats":  DocumentCertificate,
}

// ParseDocumentKind resolves a source label. Unknown labels report false.
func ParseDocumentKind(label string) (DocumentKind, bool) {
	k, ok := documentKindLabels[strings.ToLower(strings.TrimSpace(label))]
	return k, ok
}

func (k DocumentKind) String() string { return string(k) }

// MTP groups the three questionnaire categories: métier, talent, paradigme.
// Questions and answers share this shape and are aligned by position only.
type MTP struct {
	Professional []string `bson:"metier" json:"metier"`
	Talent       []string `bson:"talent" json:"talent"`
	Paradigm     []string `bson:"paradigme" json:"paradigme"`
}

func emptyMTP() MTP {
	return MTP{Professional: []string{}, Talent: []string{}, Paradigm: []string{}}
}

// Offer is the job offer the candidate applied to.
type Offer struct {
	Title               string `bson:"intitule" json:"intitule"`
	Reference           string `bson:"reference" json:"reference"`
	ReportingLine       string `bson:"ligne_hierarchique" json:"ligne_hierarchique"`
	ContractType        string `bson:"type_contrat" json:"type_contrat"`
	Category            string `bson:"categorie" json:"categorie"`
	GrossSalary         string `bson:"salaire_brut" json:"salaire_brut"`
	Status              string `bson:"statut" json:"statut"`
	Campaign            string `bson:"campagne_recrutement" json:"campagne_recrutement"`
	Active              bool   `bson:"active" json:"active"`
	HireDate            string `bson:"date_embauche" json:"date_embauche"`
	Location            string `bson:"lieu_travail" json:"lieu_travail"`
	ApplicationDeadline string `bson:"date_limite_candidature" json:"date_limite_candidature"`
	Missions            string `bson:"missions_principales" json:"missions_principales"`
	RequiredKnowledge   string `bson:"connaissances_requises" json:"connaissances_requises"`
	Questions           MTP    `bson:"questions_mtp" json:"questions_mtp"`
	PublishedAt         string `bson:"date_publication" json:"date_publication"`
	OtherInformation    string `bson:"autres_informations" json:"autres_informations"`
}

// DocumentSet holds extracted text per slot. A nil slot is absent.
type DocumentSet struct {
	CV           *string `bson:"cv" json:"cv"`
	CoverLetter  *string `bson:"cover_letter" json:"cover_letter"`
	Diploma      *string `bson:"diplome" json:"diplome"`
	Certificates *string `bson:"certificats" json:"certificats"`
}

func (d *DocumentSet) slot(kind DocumentKind) **string {
	switch kind {
	case DocumentCV:
		return &d.CV
	case DocumentCoverLetter:
		return &d.CoverLetter
	case DocumentDiploma:
		return &d.Diploma
	case DocumentCertificate:
		return &d.Certificates
	}
	return nil
}

// Set stores text in the slot for kind. Slots are written at most once and
// empty text never fills a slot; it reports whether the slot was written.
func (d *DocumentSet) Set(kind DocumentKind, text string) bool {
	s := d.slot(kind)
	if s == nil || *s != nil || text == "" {
		return false
	}
	t := text
	*s = &t
	return true
}

// Get returns the slot text and whether it is present.
func (d DocumentSet) Get(kind DocumentKind) (string, bool) {
	s := d.slot(kind)
	if s == nil || *s == nil {
		return "", false
	}
	return **s, true
}

// Count returns the number of filled slots.
func (d DocumentSet) Count() int {
	n := 0
	for _, k := range DocumentKinds {
		if _, ok := d.Get(k); ok {
			n++
		}
	}
	return n
}

// Candidate is one job application plus its extracted documents.
type Candidate struct {
	ID            kernel.CandidateID   `bson:"_id,omitempty" json:"_id,omitempty"`
	ApplicationID kernel.ApplicationID `bson:"application_id,omitempty" json:"application_id,omitempty"`
	FirstName     string               `bson:"first_name" json:"first_name"`
	LastName      string               `bson:"last_name" json:"last_name"`
	Offer         Offer                `bson:"offre" json:"offre"`
	Answers       MTP                  `bson:"reponses_mtp" json:"reponses_mtp"`
	Documents     DocumentSet          `bson:"documents" json:"documents"`
	Embedding     kernel.Embedding     `bson:"-" json:"-"`
	UpdatedAt     time.Time            `bson:"updated_at" json:"updated_at"`
}

// New returns an empty record with offer defaults applied.
func New() *Candidate {
	return &Candidate{
		Offer:   Offer{Active: true, Questions: emptyMTP()},
		Answers: emptyMTP(),
	}
}

// ============================================================================
// Domain Methods
// ============================================================================

// GetFullName returns the candidate's full name
func (c *Candidate) GetFullName() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", c.FirstName, c.LastName))
}

// Key is the identity a record is upserted under.
type Key struct {
	ApplicationID kernel.ApplicationID
	FirstName     string
	LastName      string
}

// Key returns the external id when present, otherwise the name pair.
func (c *Candidate) Key() Key {
	if !c.ApplicationID.IsEmpty() {
		return Key{ApplicationID: c.ApplicationID}
	}
	return Key{FirstName: c.FirstName, LastName: c.LastName}
}

// ByApplicationID reports whether the key uses the external identifier.
func (k Key) ByApplicationID() bool { return !k.ApplicationID.IsEmpty() }

func (k Key) String() string {
	if k.ByApplicationID() {
		return "application_id=" + k.ApplicationID.String()
	}
	return fmt.Sprintf("name=%s/%s", k.FirstName, k.LastName)
}

// Touch stamps the record as modified now.
func (c *Candidate) Touch() {
	c.UpdatedAt = time.Now().UTC()
}
