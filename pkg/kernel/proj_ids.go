package kernel

// CandidateID is the store-assigned identifier of a persisted candidate record.
type CandidateID string

func NewCandidateID(id string) CandidateID { return CandidateID(id) }
func (r CandidateID) String() string       { return string(r) }
func (r CandidateID) IsEmpty() bool        { return string(r) == "" }

// ApplicationID is the external application identifier carried by source records.
type ApplicationID string

func NewApplicationID(id string) ApplicationID { return ApplicationID(id) }
func (r ApplicationID) String() string         { return string(r) }
func (r ApplicationID) IsEmpty() bool          { return string(r) == "" }

type RunID string

func NewRunID(id string) RunID  { return RunID(id) }
func (r RunID) String() string { return string(r) }
func (r RunID) IsEmpty() bool  { return string(r) == "" }

// Embedding is a dense vector produced for semantic lookup.
type Embedding []float32
