package scholar

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

const searchPageHTML = `<html><body>
<div id="gsc_sa_ccl">
  <div class="gsc_1usr">
    <div class="gs_ai gs_scl gs_ai_chpr">
      <div class="gs_ai_t">
        <h3 class="gs_ai_name"><a href="/citations?hl=en&amp;user=AbC123xyz">Jane   Doe</a></h3>
        <div class="gs_ai_aff">Professor of Climate Science, MIT</div>
        <div class="gs_ai_eml">Verified email at mit.edu</div>
        <div class="gs_ai_cby">Cited by 12,345</div>
      </div>
    </div>
  </div>
  <div class="gsc_1usr">
    <div class="gs_ai gs_scl gs_ai_chpr">
      <div class="gs_ai_t">
        <h3 class="gs_ai_name"><a href="/citations?hl=en&amp;user=Zz9">John Roe</a></h3>
        <div class="gs_ai_aff"></div>
      </div>
    </div>
  </div>
</div>
<div class="gsc_pgn">
  <button type="button" class="gs_btnPL gs_in_ib gs_btn_half gs_dis_t" disabled></button>
  <button type="button" onclick="window.location='/citations?view_op\x3dsearch_authors\x26hl\x3den\x26mauthors\x3dclimate+change\x26after_author\x3dNEXTtok_1\x26astart\x3d10'" class="gs_btnPR gs_in_ib gs_btn_half"></button>
</div>
</body></html>`

const lastSearchPageHTML = `<html><body>
<div class="gsc_1usr"><h3 class="gs_ai_name"><a href="/citations?user=last1">Last Author</a></h3></div>
<div class="gsc_pgn">
  <button type="button" class="gs_btnPR gs_in_ib gs_btn_half" disabled></button>
</div>
</body></html>`

const profileHTML = `<html><body>
<div id="gsc_prf_w">
  <div id="gsc_prf_in">Jane Doe</div>
  <div class="gsc_prf_il">Massachusetts Institute of Technology</div>
  <div class="gsc_prf_il" id="gsc_prf_ivh">Verified email at mit.edu</div>
</div>
<table id="gsc_rsb_st">
  <thead><tr><th></th><th class="gsc_rsb_sth">All</th><th class="gsc_rsb_sth">Since 2019</th></tr></thead>
  <tbody>
    <tr><td class="gsc_rsb_sc1"><a class="gsc_rsb_f">Citations</a></td><td class="gsc_rsb_std">42</td><td class="gsc_rsb_std">17</td></tr>
    <tr><td class="gsc_rsb_sc1"><a class="gsc_rsb_f">h-index</a></td><td class="gsc_rsb_std">5</td><td class="gsc_rsb_std">3</td></tr>
  </tbody>
</table>
</body></html>`

const captchaHTML = `<html><body><div id="gs_captcha_ccl"><h1>Please show you're not a robot</h1></div></body></html>`

const unusualTrafficHTML = `<html><body><p>Our systems have detected unusual traffic from your computer network.</p></body></html>`

func TestParseSearchPage(t *testing.T) {
	t.Run("extracts cards and next token", func(t *testing.T) {
		page, err := ParseSearchPage([]byte(searchPageHTML))
		require.NoError(t, err)

		require.Len(t, page.Candidates, 2)
		assert.Equal(t, Candidate{
			ID:          "AbC123xyz",
			Name:        "Jane Doe",
			Affiliation: "Professor of Climate Science, MIT",
			CitedBy:     "Cited by 12,345",
		}, page.Candidates[0])
		assert.Equal(t, "Zz9", page.Candidates[1].ID)
		assert.Empty(t, page.Candidates[1].Affiliation)
		assert.Equal(t, "NEXTtok_1", page.NextToken)
		assert.Equal(t, "10", page.NextStart)
	})

	t.Run("disabled next button ends paging", func(t *testing.T) {
		page, err := ParseSearchPage([]byte(lastSearchPageHTML))
		require.NoError(t, err)

		require.Len(t, page.Candidates, 1)
		assert.Empty(t, page.NextToken)
	})

	t.Run("page without cards", func(t *testing.T) {
		page, err := ParseSearchPage([]byte(`<html><body><p>No results</p></body></html>`))
		require.NoError(t, err)
		assert.Empty(t, page.Candidates)
		assert.Empty(t, page.NextToken)
	})
}

func TestParseProfile(t *testing.T) {
	t.Run("reads name, affiliation and all-time citations", func(t *testing.T) {
		profile, err := ParseProfile([]byte(profileHTML))
		require.NoError(t, err)

		assert.Equal(t, "Jane Doe", profile.Name)
		assert.Equal(t, "Massachusetts Institute of Technology", profile.Affiliation)
		n, ok := profile.Citations.Count()
		assert.True(t, ok)
		assert.Equal(t, 42, n)
	})

	t.Run("missing citation table", func(t *testing.T) {
		profile, err := ParseProfile([]byte(`<div id="gsc_prf_in">New Researcher</div>`))
		require.NoError(t, err)
		assert.False(t, profile.Citations.Available())
	})

	t.Run("not a profile page", func(t *testing.T) {
		_, err := ParseProfile([]byte(`<html><body>Oops</body></html>`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrMalformedResponse))
	})
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		blocked bool
	}{
		{name: "captcha container", html: captchaHTML, blocked: true},
		{name: "unusual traffic text", html: unusualTrafficHTML, blocked: true},
		{name: "search page", html: searchPageHTML, blocked: false},
		{name: "profile page", html: profileHTML, blocked: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DetectBlock("https://scholar.google.com/citations", []byte(tt.html))
			if !tt.blocked {
				assert.NoError(t, err)
				return
			}
			var blocked *BlockedError
			require.ErrorAs(t, err, &blocked)
			assert.ErrorIs(t, err, domain.ErrRateLimited)
		})
	}
}

func TestProfile_Record(t *testing.T) {
	candidate := Candidate{ID: "x", Name: "Card Name", Affiliation: "Card Aff", CitedBy: "Cited by 7"}

	t.Run("profile values win", func(t *testing.T) {
		rec := Profile{Name: "Full Name", Affiliation: "Full Aff", Citations: domain.CitationsFromInt(42)}.Record(candidate)
		assert.Equal(t, "Full Name", rec.Name)
		assert.Equal(t, "Full Aff", rec.Affiliation)
		assert.Equal(t, "42", rec.Citations.String())
	})

	t.Run("card fills gaps", func(t *testing.T) {
		rec := Profile{}.Record(candidate)
		assert.Equal(t, "Card Name", rec.Name)
		assert.Equal(t, "Card Aff", rec.Affiliation)
		assert.Equal(t, "7", rec.Citations.String())
	})

	t.Run("nothing known becomes N/A", func(t *testing.T) {
		rec := Profile{}.Record(Candidate{})
		assert.Equal(t, domain.NotAvailable, rec.Name)
		assert.Equal(t, domain.NotAvailable, rec.Affiliation)
		assert.Equal(t, domain.NotAvailable, rec.Citations.String())
	})
}

func TestProxyPool(t *testing.T) {
	t.Run("round robin", func(t *testing.T) {
		pool, err := NewProxyPool([]string{"http://p1:8080", " ", "http://p2:8080"})
		require.NoError(t, err)
		require.Equal(t, 2, pool.Len())

		assert.Equal(t, "p1:8080", pool.Next().Host)
		assert.Equal(t, "p2:8080", pool.Next().Host)
		assert.Equal(t, "p1:8080", pool.Next().Host)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := NewProxyPool([]string{"not a url"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("status", func(t *testing.T) {
		empty, err := NewProxyPool(nil)
		require.NoError(t, err)
		assert.Nil(t, empty.Next())

		assert.Equal(t, ProxyStatus{OK: true, Message: StatusDirect}, empty.Status(false))
		assert.Equal(t, ProxyStatus{OK: false, Message: StatusNoProxies}, empty.Status(true))

		pool, err := NewProxyPool([]string{"http://p1:8080"})
		require.NoError(t, err)
		assert.Equal(t, ProxyStatus{OK: true, Enabled: true, Message: "Proxies enabled (1 available)."}, pool.Status(true))
	})
}
