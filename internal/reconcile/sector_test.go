package reconcile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
)

const luatvnSearch = `<html><body>
<h2 class="doc-title"><a href="/dat-dai/luat-khac.html" title="Luật 99/2020/QH14">x</a></h2>
<h2 class="doc-title"><a href="/dat-dai/luat-dat-dai.html" title="Luật Đất đai 45/2013/QH13">y</a></h2>
</body></html>`

const luatvnDetail = `<html><body><div id="tomtat"><table>
<tr><td>Số hiệu:</td><td>45/2013/QH13</td></tr>
<tr><td>Lĩnh vực:</td><td><a title="Lĩnh vực: Đất đai-Nhà ở">a</a>, <a title="Lĩnh vực: Bất động sản">b</a><a title="no colon">c</a></td></tr>
</table></div></body></html>`

func newLuatVN(t *testing.T, search, detail string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tim-van-ban.html", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("SearchExact"))
		w.Write([]byte(search))
	})
	mux.HandleFunc("/dat-dai/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detail))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEnrichSectorJoinsTags(t *testing.T) {
	srv := newLuatVN(t, luatvnSearch, luatvnDetail)
	e := New(Config{LuatVN: fetch.NewClient(srv.URL+"/", time.Second)})

	doc := &doctree.Document{ID: 1, SerialNumber: doctree.Str("45/2013/QH13")}
	require.NoError(t, e.EnrichSector(context.Background(), doc))
	assert.Equal(t, "Đất đai-Nhà ở - Bất động sản", *doc.Sector)
}

func TestEnrichSectorSearchesSubTitleWithoutSerial(t *testing.T) {
	var options string
	mux := http.NewServeMux()
	mux.HandleFunc("/tim-van-ban.html", func(w http.ResponseWriter, r *http.Request) {
		options = r.URL.Query().Get("SearchOptions")
		assert.Equal(t, "Về đất đai", r.URL.Query().Get("Keywords"))
		w.Write([]byte(`<h2 class="doc-title"><a href="/d/1.html" title="Nghị quyết Về đất đai">x</a></h2>`))
	})
	mux.HandleFunc("/d/1.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(luatvnDetail))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := New(Config{LuatVN: fetch.NewClient(srv.URL, time.Second)})
	doc := &doctree.Document{
		ID:           2,
		SerialNumber: doctree.Str(doctree.NoSerialNumber),
		SubTitle:     doctree.Str("Về đất đai"),
	}
	require.NoError(t, e.EnrichSector(context.Background(), doc))
	assert.Equal(t, searchBySubTitle, options)
	assert.Equal(t, "Đất đai-Nhà ở - Bất động sản", *doc.Sector)
}

func TestEnrichSectorKeepsSpecificPersistedSector(t *testing.T) {
	srv := newLuatVN(t, `<html><body>no results</body></html>`, "")
	e := New(Config{
		LuatVN:  fetch.NewClient(srv.URL, time.Second),
		Sectors: fakeSectors{7: "Tài chính", 8: doctree.OtherSector},
	})

	doc := &doctree.Document{ID: 7, SerialNumber: doctree.Str("01/2020/TT-BTC")}
	require.NoError(t, e.EnrichSector(context.Background(), doc))
	assert.Equal(t, "Tài chính", *doc.Sector)

	doc = &doctree.Document{ID: 8, SerialNumber: doctree.Str("01/2020/TT-BTC")}
	require.NoError(t, e.EnrichSector(context.Background(), doc))
	assert.Equal(t, doctree.OtherSector, *doc.Sector)

	doc = &doctree.Document{ID: 9, SerialNumber: doctree.Str("01/2020/TT-BTC")}
	require.NoError(t, e.EnrichSector(context.Background(), doc))
	assert.Equal(t, doctree.OtherSector, *doc.Sector)
}

func TestEnrichSectorMissingSummaryFallsBack(t *testing.T) {
	srv := newLuatVN(t, luatvnSearch, `<html><body>moved</body></html>`)
	e := New(Config{LuatVN: fetch.NewClient(srv.URL, time.Second), Sectors: fakeSectors{}})

	doc := &doctree.Document{ID: 1, SerialNumber: doctree.Str("45/2013/QH13")}
	require.NoError(t, e.EnrichSector(context.Background(), doc))
	assert.Equal(t, doctree.OtherSector, *doc.Sector)
}
