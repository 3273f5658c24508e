package ted

import (
	"fmt"
	"strings"
	"time"

	"github.com/david/tender-radar/internal/config"
)

// DefaultLimit is the page size requested when a search config does not set
// one. The pipeline never paginates past page 1; callers are told the total
// match count instead.
const DefaultLimit = 5

// SearchConfig is the user-supplied search configuration.
type SearchConfig struct {
	Query    string `json:"query,omitempty"`
	CPVCode  string `json:"cpvCode,omitempty"`
	DaysBack int    `json:"daysBack,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	NoticeID string `json:"noticeId,omitempty"`
}

// searchFields is the exact field set downstream processing depends on:
// the XML link map, the API deadline array, the full classification list for
// trigger matching, and the publication number used as the dedup key.
// Narrowing this list silently breaks normalization or dedup.
var searchFields = []string{
	"links",
	"deadline-receipt-request",
	"classification-cpv",
	"publication-number",
}

const noticeTypeClause = "notice-type IN (cn-standard cn-social cn-desg pin-cfc-standard pin-cfc-social)"

// Request is the JSON body posted to the notice search service.
type Request struct {
	Query          string   `json:"query"`
	Fields         []string `json:"fields"`
	Page           int      `json:"page"`
	Limit          int      `json:"limit"`
	Scope          string   `json:"scope"`
	PaginationMode string   `json:"paginationMode"`
}

// BuildQuery translates a search config into the TED expert query language.
//
// A non-empty NoticeID collapses the whole query to an exact lookup; every
// other filter is ignored. Otherwise the query is a conjunction of the
// date window (only when DaysBack > 0), the CPV clause (explicit code, or an
// OR over all monitored codes), the optional free-text clause, and the fixed
// contract-notice type allowlist, sorted by publication number descending.
func BuildQuery(cfg SearchConfig, monitored []config.MonitoredCategory, now time.Time) string {
	if id := strings.TrimSpace(cfg.NoticeID); id != "" {
		return fmt.Sprintf("ND=%s", id)
	}

	var clauses []string

	if cfg.DaysBack > 0 {
		clauses = append(clauses, dateWindowClause(cfg.DaysBack, now))
	}

	if cfg.CPVCode != "" {
		clauses = append(clauses, fmt.Sprintf("pc=%s", cfg.CPVCode))
	} else {
		terms := make([]string, 0, len(monitored))
		for _, m := range monitored {
			terms = append(terms, fmt.Sprintf("pc=%s", m.Code))
		}
		clauses = append(clauses, "("+strings.Join(terms, " OR ")+")")
	}

	if cfg.Query != "" {
		clauses = append(clauses, fmt.Sprintf("ft=%q", cfg.Query))
	}

	clauses = append(clauses, noticeTypeClause)

	return strings.Join(clauses, " AND ") + " SORT BY publication-number DESC"
}

// dateWindowClause enumerates each of the last days calendar days, today
// inclusive, as an OR of exact publication-date terms.
func dateWindowClause(days int, now time.Time) string {
	terms := make([]string, 0, days)
	for i := 0; i < days; i++ {
		d := now.AddDate(0, 0, -i)
		terms = append(terms, "pd="+d.Format("20060102"))
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

// BuildRequest assembles the full search payload for a config.
func BuildRequest(cfg SearchConfig, monitored []config.MonitoredCategory, now time.Time) Request {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Request{
		Query:          BuildQuery(cfg, monitored, now),
		Fields:         searchFields,
		Page:           1,
		Limit:          limit,
		Scope:          "ACTIVE",
		PaginationMode: "PAGE_NUMBER",
	}
}
