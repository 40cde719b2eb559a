package scholar

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

// SearchPage is one parsed page of author search results.
type SearchPage struct {
	Candidates []Candidate

	// NextToken is the after_author value of the next page; empty on the last page.
	NextToken string

	// NextStart is the astart value that accompanies NextToken.
	NextStart string
}

// blockMarkers are page texts that only appear on Scholar's interstitials.
var blockMarkers = []string{
	"unusual traffic",
	"not a robot",
	"please show you're not a robot",
	"detected unusual",
}

// Scholar escapes the next-page URL inside an onclick handler, e.g.
// window.location='/citations?view_op\x3dsearch_authors\x26after_author\x3dabc'.
var (
	hexEscapeReplacer = strings.NewReplacer(`\x3d`, "=", `\x26`, "&", `\x3D`, "=")
	afterAuthorRegex  = regexp.MustCompile(`after_author=([^&'"]+)`)
	astartRegex       = regexp.MustCompile(`astart=(\d+)`)
)

// DetectBlock returns a *BlockedError when html is a CAPTCHA or traffic
// interstitial rather than a Scholar page.
func DetectBlock(pageURL string, html []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	if doc.Find("#gs_captcha_ccl, #captcha-form, #recaptcha, .g-recaptcha").Length() > 0 {
		return &BlockedError{URL: pageURL, Reason: "captcha"}
	}
	text := strings.ToLower(normSpace(doc.Find("body").Text()))
	for _, marker := range blockMarkers {
		if strings.Contains(text, marker) {
			return &BlockedError{URL: pageURL, Reason: marker}
		}
	}
	return nil
}

// ParseSearchPage extracts the author cards and the next-page token.
func ParseSearchPage(html []byte) (SearchPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return SearchPage{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	var page SearchPage
	doc.Find(".gsc_1usr").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(".gs_ai_name a").First()
		c := Candidate{
			Name:        normSpace(link.Text()),
			Affiliation: normSpace(s.Find(".gs_ai_aff").First().Text()),
			CitedBy:     normSpace(s.Find(".gs_ai_cby").First().Text()),
		}
		if href, ok := link.Attr("href"); ok {
			c.ID = userIDFromHref(href)
		}
		if c.ID == "" && c.Name == "" {
			return
		}
		page.Candidates = append(page.Candidates, c)
	})

	next := doc.Find("button.gs_btnPR").First()
	if _, disabled := next.Attr("disabled"); next.Length() > 0 && !disabled {
		onclick, _ := next.Attr("onclick")
		onclick = hexEscapeReplacer.Replace(onclick)
		if m := afterAuthorRegex.FindStringSubmatch(onclick); m != nil {
			page.NextToken = m[1]
		}
		if m := astartRegex.FindStringSubmatch(onclick); m != nil {
			page.NextStart = m[1]
		}
	}

	return page, nil
}

// ParseProfile extracts the profile header and the all-time citation count.
func ParseProfile(html []byte) (Profile, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	name := normSpace(doc.Find("#gsc_prf_in").First().Text())
	if name == "" {
		return Profile{}, fmt.Errorf("%w: profile page has no author name", domain.ErrMalformedResponse)
	}

	return Profile{
		Name:        name,
		Affiliation: normSpace(doc.Find(".gsc_prf_il").First().Text()),
		// first row is "Citations", first column is "All"
		Citations: domain.CitationsFromText(doc.Find("#gsc_rsb_st td.gsc_rsb_std").First().Text()),
	}, nil
}

func userIDFromHref(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return u.Query().Get("user")
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
