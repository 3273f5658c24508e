package tender

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/david/tender-radar/internal/config"
	"github.com/david/tender-radar/internal/cpv"
	"github.com/david/tender-radar/internal/xmlnode"
)

const noticeURLFormat = "https://ted.europa.eu/en/notice/-/detail/%s"

// NormalizeOptions carries the per-notice data the search API supplied next
// to the XML body.
type NormalizeOptions struct {
	// APIDeadline, when present, always wins over any date found in the XML.
	APIDeadline string
	// APICodes is the full-granularity classification list used for match
	// trigger detection; distinct from the single leaf CPV in the XML.
	APICodes []string
	// APINoticeID is the publication number echoed by the search API. It is
	// accepted but deliberately not used as a fallback when the XML yields no
	// ID: such notices are treated as unparseable, matching the behavior the
	// triage flow was built around.
	APINoticeID string
}

// Normalizer turns a fetched eForms Contract Notice into a Tender record.
// All classification tables are injected at construction; a Normalizer is
// safe for concurrent use.
type Normalizer struct {
	tables    *config.Tables
	sanitizer *bluemonday.Policy

	// Now is overridable in tests to pin the open/closed status boundary.
	Now func() time.Time
}

func NewNormalizer(tables *config.Tables) *Normalizer {
	return &Normalizer{
		tables:    tables,
		sanitizer: bluemonday.UGCPolicy(),
		Now:       time.Now,
	}
}

// Normalize parses the XML body and resolves every Tender field, substituting
// documented defaults for anything missing. It fails only when the body has no
// recognizable root element; malformed or partially absent fields degrade to
// their sentinels instead. Callers must check Parseable() before persisting.
func (n *Normalizer) Normalize(xmlBody []byte, opts NormalizeOptions) (Tender, error) {
	root, err := xmlnode.ParseBytes(xmlBody)
	if err != nil {
		return Tender{}, fmt.Errorf("unparseable notice: %w", err)
	}

	// 1. Identification. Leading zeros are stripped so the ID matches the
	// publication number format used for dedup keys.
	idRaw := root.TextAt("UBLExtensions", "UBLExtension", "ExtensionContent",
		"EformsExtension", "Publication", "NoticePublicationID")
	noticeID := strings.TrimLeft(idRaw, "0")
	if noticeID == "" {
		noticeID = NoticeIDMissing
	}

	// 2. Title and description.
	project := root.GetPath("ProcurementProject")
	title := cleanText(htmlToText(project.TextAt("Name")))
	if title == "" {
		title = "No Title Found"
	}
	description := n.sanitizer.Sanitize(project.TextAt("Description"))

	// 3. Buyer and country.
	company := root.GetPath("UBLExtensions", "UBLExtension", "ExtensionContent",
		"EformsExtension", "Organizations", "Organization", "Company")
	buyerName := company.TextAt("PartyName", "Name")
	if buyerName == "" {
		buyerName = "Unknown Buyer"
	}
	countryRaw := company.TextAt("PostalAddress", "Country", "IdentificationCode")
	buyerCountry := n.tables.CountryName(countryRaw)
	if buyerCountry == "" {
		buyerCountry = "Unknown"
	}

	// 4. Primary CPV from the XML.
	cpvCode := project.TextAt("MainCommodityClassification", "ItemClassificationCode")

	// 5. Estimated value.
	amountNode := project.GetPath("RequestedTenderTotal", "EstimatedOverallContractAmount")
	currency := amountNode.Attr("currencyID")
	if currency == "" {
		currency = "EUR"
	}
	estimatedValue := formatEstimatedValue(amountNode.Text(), currency)

	// 6. Application date and derived status.
	cleanDate := resolveApplicationDate(root, opts.APIDeadline)

	t := Tender{
		NoticeID:              noticeID,
		ExternalURI:           fmt.Sprintf(noticeURLFormat, noticeID),
		Title:                 title,
		Description:           description,
		BuyerName:             buyerName,
		BuyerCountry:          buyerCountry,
		CPV:                   cpvCode,
		CPVDescription:        fmt.Sprintf("%s - %s", cpvCode, n.tables.CPVLabel(cpvCode)),
		EstimatedValue:        estimatedValue,
		TenderStatus:          statusFor(cleanDate, n.Now()),
		TenderApplicationDate: cleanDate,
	}

	// 7. Match trigger against the monitored categories.
	if len(opts.APICodes) > 0 {
		if m := cpv.FindFirstMatch(n.tables.Monitored, opts.APICodes); m != nil {
			trigger := fmt.Sprintf("%s - %s", m.Code, n.tables.CPVLabel(m.Code))
			t.MatchedTrigger = &trigger
		}
	}

	return t, nil
}

// resolveApplicationDate applies the date precedence rule: a deadline supplied
// by the search API always wins; only without one does the XML get scanned,
// preferring the tendering-process submission deadline over the issue date.
func resolveApplicationDate(root *xmlnode.Node, apiDeadline string) string {
	if apiDeadline != "" {
		return strings.SplitN(apiDeadline, "T", 2)[0]
	}

	dateStr := root.TextAt("IssueDate")
	if deadline := root.TextAt("TenderingProcess", "TenderSubmissionDeadlinePeriod", "EndDate"); deadline != "" {
		dateStr = deadline
	}
	if dateStr == "" {
		return "N/A"
	}
	// Strip a trailing timezone offset or Z suffix.
	dateStr = strings.SplitN(dateStr, "+", 2)[0]
	dateStr = strings.SplitN(dateStr, "Z", 2)[0]
	return dateStr
}

// statusFor derives Open/Closed from the application date. An unparseable or
// "N/A" date is never open.
func statusFor(cleanDate string, now time.Time) string {
	if len(cleanDate) < 10 {
		return "Closed"
	}
	d, err := time.Parse("2006-01-02", cleanDate[:10])
	if err != nil {
		return "Closed"
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(today) {
		return "Closed"
	}
	return "Open"
}

// formatEstimatedValue renders an amount with locale-style thousands grouping
// plus the currency code, e.g. "1.234.567 EUR". Absent or zero amounts yield
// "N/A"; a non-numeric amount passes through raw.
func formatEstimatedValue(raw, currency string) string {
	if raw == "" {
		return "N/A"
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Sprintf("%s %s", raw, currency)
	}
	if val == 0 {
		return "N/A"
	}
	p := message.NewPrinter(language.German)
	return p.Sprintf("%v %s", number.Decimal(val), currency)
}

// htmlToText strips markup from a field, falling back to the original text
// when it does not parse as HTML.
func htmlToText(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

// cleanText collapses runs of whitespace and trims the string.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
