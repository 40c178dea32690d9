package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	RecordCandidate(false, "unsupported_format")
	RecordAdmission("admitted", 0.3)
	RecordDelete("declined")
	SetEntries(2)
	SetLiveResources(2)
	RecordRequest("GET", "/healthz", "200", 0.001)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(b)

	assert.Contains(t, body, `vidpreview_candidates_total{code="unsupported_format",result="rejected"}`)
	assert.Contains(t, body, `vidpreview_admissions_total{status="admitted"}`)
	assert.Contains(t, body, `vidpreview_deletes_total{outcome="declined"}`)
	assert.Contains(t, body, "vidpreview_entries 2")
	assert.Contains(t, body, "vidpreview_preview_resources_live 2")
	assert.Contains(t, body, `vidpreview_http_requests_total{method="GET",route="/healthz",status="200"}`)
}
