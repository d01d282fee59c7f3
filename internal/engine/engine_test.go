package engine_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webxcore/webx/internal/appconfig"
	"github.com/webxcore/webx/internal/engine"
	"github.com/webxcore/webx/internal/extractor"
	"github.com/webxcore/webx/internal/fetcher"
	"github.com/webxcore/webx/internal/logging"
	"github.com/webxcore/webx/internal/robots"
	"github.com/webxcore/webx/internal/store"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	st, err := store.Open(":memory:")
	require.Nil(t, err)
	t.Cleanup(func() { st.Close() })

	logger := logging.NewStderr()
	robot := robots.NewRobot(logger, "webx-test/1.0", 0)
	htmlFetcher := fetcher.NewHtmlFetcher(logger)
	ext := extractor.NewExtractor(logger, extractor.DefaultExtractParam())
	cfg, err := appconfig.WithDefault().Build()
	require.NoError(t, err)

	return engine.New(st, robot, &htmlFetcher, ext, cfg, logger)
}

func TestEngine_Start_NormalizesDedupesAndEnqueuesSeeds(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	jobID, err := e.Start(ctx, []string{
		"https://example.com/a",
		"https://example.com/a#fragment",
		"not a url",
	}, appconfig.StartOptions{})
	require.Nil(t, err)
	require.NotEmpty(t, jobID)

	status, err := e.Status(ctx, jobID)
	require.Nil(t, err)
	assert.Equal(t, store.JobRunning, status.Job.Status)
	assert.Equal(t, 1, status.Stats.Pending)
	assert.Len(t, status.Job.SeedURLs, 1)
}

func TestEngine_Start_NoValidSeeds_ReturnsEngineError(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Start(context.Background(), []string{"not a url", "ftp://example.com"}, appconfig.StartOptions{})
	require.NotNil(t, err)
}

func TestEngine_Status_UnknownJob(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Status(context.Background(), "does-not-exist")
	require.NotNil(t, err)
}

const samplePageHTML = `<!DOCTYPE html>
<html><head><title>Example Domain Docs</title></head>
<body>
<article>
<h1>Example Domain Docs</h1>
<p>This domain exists purely to demonstrate a small crawl so the engine test
can exercise a realistic multi-paragraph article body that readability will
recognize as meaningful content rather than navigation chrome.</p>
<p>A second paragraph keeps the content well above the minimal thresholds the
extractor applies when deciding whether a container is meaningful enough to
keep as the page body.</p>
<a href="/page2">Read the second page</a>
</article>
</body></html>`

const samplePage2HTML = `<!DOCTYPE html>
<html><head><title>Second Page</title></head>
<body>
<article>
<h1>Second Page</h1>
<p>The second page exists only so the crawl engine has a same-host link to
discover, normalize, score, and enqueue at the next depth during the
processJobOnce tick under test.</p>
</article>
</body></html>`

func newCrawlableServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nAllow: /\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePageHTML)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage2HTML)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestEngine_ProcessActiveJobsOnce_CrawlsAndDiscoversLinks(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	ts := newCrawlableServer(t)

	jobID, err := e.Start(ctx, []string{ts.URL + "/"}, appconfig.StartOptions{})
	require.Nil(t, err)

	var status store.CrawlJobStatus
	for i := 0; i < 10; i++ {
		e.ProcessActiveJobsOnce(ctx)
		status, err = e.Status(ctx, jobID)
		require.Nil(t, err)
		if status.Job.Status != store.JobRunning {
			break
		}
	}

	assert.GreaterOrEqual(t, status.Stats.Done, 1)

	pages, err := e.Next(ctx, jobID, 10)
	require.Nil(t, err)
	assert.NotEmpty(t, pages)
}

func TestEngine_ProcessActiveJobsOnce_RobotsDisallowed_CompletesWithoutFetching(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /secret\n")
	})
	mux.HandleFunc("/secret", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("fetcher should never be called for a robots-disallowed URL")
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	jobID, err := e.Start(ctx, []string{ts.URL + "/secret"}, appconfig.StartOptions{})
	require.Nil(t, err)

	for i := 0; i < 5; i++ {
		e.ProcessActiveJobsOnce(ctx)
		status, statusErr := e.Status(ctx, jobID)
		require.Nil(t, statusErr)
		if status.Job.Status != store.JobRunning {
			break
		}
	}

	status, err := e.Status(ctx, jobID)
	require.Nil(t, err)
	assert.Equal(t, 0, status.Stats.Failed)
}

func TestEngine_ProcessActiveJobsOnce_MaxPagesReached_FinishesJob(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	ts := newCrawlableServer(t)

	maxPages := 1
	jobID, err := e.Start(ctx, []string{ts.URL + "/"}, appconfig.StartOptions{MaxPages: &maxPages})
	require.Nil(t, err)

	for i := 0; i < 10; i++ {
		e.ProcessActiveJobsOnce(ctx)
		status, statusErr := e.Status(ctx, jobID)
		require.Nil(t, statusErr)
		if status.Job.Status != store.JobRunning {
			break
		}
	}

	status, err := e.Status(ctx, jobID)
	require.Nil(t, err)
	assert.Equal(t, store.JobFinished, status.Job.Status)
	assert.LessOrEqual(t, status.Stats.Done, 1)
}
