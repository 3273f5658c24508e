package tender

// Collection names in the destination document store. A NoticeID is the
// document key in all three; presence in any one of them bars re-ingestion.
const (
	CollectionUnresolved = "tender-unresolved"
	CollectionResolved   = "tender-resolved"
	CollectionDiscarded  = "tender-discarded"
)

// NoticeIDMissing is the sentinel NoticeID for a notice whose XML carried no
// resolvable publication identifier. Records carrying it must not be persisted.
const NoticeIDMissing = "N/A"

// Tender is the canonical record produced by the normalizer and stored in the
// triage collections. Field names match the persisted document keys.
type Tender struct {
	NoticeID              string  `json:"NoticeID"`
	ExternalURI           string  `json:"ExternalURI"`
	Title                 string  `json:"Title"`
	Description           string  `json:"Description"`
	BuyerName             string  `json:"BuyerName"`
	BuyerCountry          string  `json:"BuyerCountry"`
	CPV                   string  `json:"CPV"`
	CPVDescription        string  `json:"CPV_Description"`
	EstimatedValue        string  `json:"EstimatedValue"`
	TenderStatus          string  `json:"TenderStatus"`
	TenderApplicationDate string  `json:"TenderApplicationDate"`
	MatchedTrigger        *string `json:"MatchedTrigger"`

	// Cached machine translations, filled lazily by the translate service.
	TitleEN       string `json:"TitleEN,omitempty"`
	DescriptionEN string `json:"DescriptionEN,omitempty"`
}

// Parseable reports whether the record resolved a usable NoticeID.
func (t Tender) Parseable() bool {
	return t.NoticeID != "" && t.NoticeID != NoticeIDMissing
}
