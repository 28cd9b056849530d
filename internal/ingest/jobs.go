// internal/ingest/jobs.go
package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/textutil"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

var (
	siteSuffix   = regexp.MustCompile(`(?i)\s*[-|–—·:]\s*(indeed(\.com)?|linkedin|glassdoor|ziprecruiter|monster(\.com)?|simplyhired|careerbuilder|snagajob|jooble|talent\.com|lensa|dice|usajobs)\b.*$`)
	hiringPrefix = regexp.MustCompile(`(?i)^\s*(urgently hiring|now hiring|we('re| are) hiring|hiring now|hiring|job opening|immediate opening)\s*[:!\-–—|]*\s*`)
	jobCount     = regexp.MustCompile(`(?i)^\s*\d[\d,]*\+?\s+.*\bjobs?\b`)
	atCompany    = regexp.MustCompile(`^(.+?)\s+at\s+(.+)$`)
	dashCompany  = regexp.MustCompile(`^(.+?)\s+[-–—|]\s+(.+)$`)
	apprentice   = regexp.MustCompile(`\bapprentice\w*\b`)

	payRange = regexp.MustCompile(`(?i)\$\s?(\d[\d,]*(?:\.\d+)?)\s*(k)?(?:\s*(?:-|–|to)\s*\$?\s?(\d[\d,]*(?:\.\d+)?)\s*(k)?)?`)
)

// skill is one vocabulary entry matched against folded text.
type skill struct {
	name    string
	pattern *regexp.Regexp
}

var skillVocabulary = []skill{
	{"CNC", regexp.MustCompile(`\bcnc\b`)},
	{"Machining", regexp.MustCompile(`\bmachin(ing|ist)\b`)},
	{"Lathe", regexp.MustCompile(`\blathes?\b`)},
	{"Milling", regexp.MustCompile(`\bmill(ing)?\b`)},
	{"Welding", regexp.MustCompile(`\bweld(ing|er)?\b`)},
	{"MIG", regexp.MustCompile(`\bmig\b`)},
	{"TIG", regexp.MustCompile(`\btig\b`)},
	{"Stick Welding", regexp.MustCompile(`\b(stick|smaw)\b`)},
	{"Fabrication", regexp.MustCompile(`\bfabricat\w*\b`)},
	{"Blueprint Reading", regexp.MustCompile(`\bblue ?prints?\b`)},
	{"GD&T", regexp.MustCompile(`gd&t|\bgdt\b`)},
	{"CMM", regexp.MustCompile(`\bcmm\b`)},
	{"Quality Inspection", regexp.MustCompile(`\b(quality (control|inspection)|inspector)\b`)},
	{"PLC", regexp.MustCompile(`\bplcs?\b`)},
	{"Robotics", regexp.MustCompile(`\brobot\w*\b`)},
	{"Electrical", regexp.MustCompile(`\belectric(al|ian)\b`)},
	{"Hydraulics", regexp.MustCompile(`\bhydraulic\w*\b`)},
	{"Pneumatics", regexp.MustCompile(`\bpneumatic\w*\b`)},
	{"Preventive Maintenance", regexp.MustCompile(`\bpreventa?i?ve maintenance\b`)},
	{"Soldering", regexp.MustCompile(`\bsolder\w*\b`)},
	{"Forklift", regexp.MustCompile(`\bfork ?lift\b`)},
	{"Mastercam", regexp.MustCompile(`\bmastercam\b`)},
	{"SolidWorks", regexp.MustCompile(`\bsolidworks\b`)},
	{"AutoCAD", regexp.MustCompile(`\bautocad\b`)},
	{"Lean Manufacturing", regexp.MustCompile(`\blean\b`)},
	{"Six Sigma", regexp.MustCompile(`\bsix sigma\b`)},
	{"OSHA 10", regexp.MustCompile(`\bosha[ -]?10\b`)},
	{"OSHA 30", regexp.MustCompile(`\bosha[ -]?30\b`)},
}

// NormalizeTitle strips job board suffixes and "Hiring" prefixes.
func NormalizeTitle(raw string) string {
	t := strings.Join(strings.Fields(raw), " ")
	t = siteSuffix.ReplaceAllString(t, "")
	t = hiringPrefix.ReplaceAllString(t, "")
	return strings.TrimSpace(strings.Trim(t, "-–—|:· "))
}

// SplitTitleCompany reads "Title at Company" and "Company - Title". Anything
// else is all title.
func SplitTitleCompany(title string) (string, string) {
	if m := atCompany.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if m := dashCompany.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[2]), strings.TrimSpace(m[1])
	}
	return title, ""
}

// ExtractSkills returns vocabulary skills found in text, in vocabulary order.
func ExtractSkills(text string) []string {
	folded := textutil.Fold(text)
	out := []string{}
	for _, s := range skillVocabulary {
		if s.pattern.MatchString(folded) {
			out = append(out, s.name)
		}
	}
	return out
}

// IsApprenticeship reports apprenticeship wording in text.
func IsApprenticeship(text string) bool {
	return apprentice.MatchString(textutil.Fold(text))
}

// ParsePay reads the first dollar amount or range in text. Amounts under
// $7 or over $500k are ignored.
func ParsePay(text string) (*int, *int) {
	m := payRange.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	kLo := m[2] != ""
	if !kLo && m[4] != "" && !strings.Contains(m[1], ",") {
		// "$45-60k"
		kLo = true
	}
	lo, ok := dollars(m[1], kLo)
	if !ok {
		return nil, nil
	}
	if m[3] == "" {
		return &lo, nil
	}
	hi, ok := dollars(m[3], m[4] != "")
	if !ok || hi < lo {
		return &lo, nil
	}
	return &lo, &hi
}

func dollars(num string, thousands bool) (int, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if thousands {
		v *= 1000
	}
	n := int(math.Round(v))
	if n < 7 || n > 500000 {
		return 0, false
	}
	return n, true
}

// NormalizeJob turns one search hit into a job. Aggregate pages such as
// "120 Welder jobs in Ohio" are rejected.
func NormalizeJob(r models.SearchResult, location string) (*models.Job, bool) {
	url := strings.TrimSpace(r.URL)
	if url == "" || jobCount.MatchString(r.Title) {
		return nil, false
	}
	title, company := SplitTitleCompany(NormalizeTitle(r.Title))
	if title == "" {
		return nil, false
	}

	text := title + " " + r.Snippet
	payMin, payMax := ParsePay(r.Snippet)
	return &models.Job{
		Title:          title,
		Company:        company,
		Location:       location,
		Description:    strings.Join(strings.Fields(r.Snippet), " "),
		Skills:         ExtractSkills(text),
		PayMin:         payMin,
		PayMax:         payMax,
		Apprenticeship: IsApprenticeship(text),
		ExternalURL:    url,
		ApplyURL:       url,
	}, true
}
