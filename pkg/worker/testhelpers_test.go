package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/require"
	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/tinyopds/tinyopds/pkg/epub"
	"github.com/tinyopds/tinyopds/pkg/jobs"
	"github.com/tinyopds/tinyopds/pkg/library"
	"github.com/tinyopds/tinyopds/pkg/stats"
	"github.com/tinyopds/tinyopds/pkg/testutils"
	"github.com/uptrace/bun"
)

// testContext holds the dependencies needed for testing the worker.
type testContext struct {
	t              *testing.T
	ctx            context.Context
	db             *bun.DB
	worker         *Worker
	jobService     *jobs.Service
	libraryService *library.Service
}

// newTestContext creates a worker backed by an in-memory SQLite database
// with all migrations applied.
func newTestContext(t *testing.T) *testContext {
	t.Helper()

	db := testutils.NewDB(t)

	cfg := config.NewForTest()
	cfg.WorkerProcesses = 1

	w := New(cfg, db, stats.New())

	return &testContext{
		t:              t,
		ctx:            logger.New().WithContext(context.Background()),
		db:             db,
		worker:         w,
		jobService:     w.jobService,
		libraryService: w.libraryService,
	}
}

// scanJob persists a scan job so progress updates have a row to write to.
func (tc *testContext) scanJob(data jobs.JobScanData) *jobs.Job {
	tc.t.Helper()

	job := &jobs.Job{
		Type:       jobs.JobTypeScan,
		Status:     jobs.JobStatusInProgress,
		DataParsed: &data,
	}
	err := tc.jobService.CreateJob(tc.ctx, job)
	require.NoError(tc.t, err)
	return job
}

// runScan executes a scan job with the given data and returns the job row.
func (tc *testContext) runScan(data jobs.JobScanData) *jobs.Job {
	tc.t.Helper()

	job := tc.scanJob(data)
	err := tc.worker.ProcessScanJob(tc.ctx, job)
	require.NoError(tc.t, err)
	return job
}

// fb2Fixture describes the metadata of a generated FictionBook file. Empty
// fields are left out of the document.
type fb2Fixture struct {
	Title      string
	FirstName  string
	LastName   string
	Genre      string
	Lang       string
	Sequence   string
	SequenceNo string
	Annotation string
	Date       string
}

func (f fb2Fixture) bytes() []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<FictionBook xmlns=\"http://www.gribuser.ru/xml/fictionbook/2.0\" xmlns:l=\"http://www.w3.org/1999/xlink\">\n")
	b.WriteString("<description><title-info>\n")
	if f.Genre != "" {
		fmt.Fprintf(&b, "<genre>%s</genre>\n", f.Genre)
	}
	if f.FirstName != "" || f.LastName != "" {
		fmt.Fprintf(&b, "<author><first-name>%s</first-name><last-name>%s</last-name></author>\n", f.FirstName, f.LastName)
	}
	fmt.Fprintf(&b, "<book-title>%s</book-title>\n", f.Title)
	if f.Annotation != "" {
		fmt.Fprintf(&b, "<annotation><p>%s</p></annotation>\n", f.Annotation)
	}
	if f.Date != "" {
		fmt.Fprintf(&b, "<date value=%q>%s</date>\n", f.Date, f.Date)
	}
	if f.Lang != "" {
		fmt.Fprintf(&b, "<lang>%s</lang>\n", f.Lang)
	}
	if f.Sequence != "" {
		fmt.Fprintf(&b, "<sequence name=%q number=%q/>\n", f.Sequence, f.SequenceNo)
	}
	b.WriteString("</title-info></description>\n")
	b.WriteString("<body><section><p>Some text.</p></section></body>\n")
	b.WriteString("</FictionBook>\n")
	return b.Bytes()
}

// writeFile writes data to path, creating parent directories as needed.
func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

type zipEntry struct {
	name string
	data []byte
}

// writeZip writes a ZIP archive with the given entries in order.
func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = fw.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	writeFile(t, path, buf.Bytes())
}

// epubFixture describes the OPF metadata of a generated EPUB file.
type epubFixture struct {
	Title       string
	Author      string
	Language    string
	Date        string
	Series      string
	SeriesIndex string
	Subjects    []string
	Description string
}

func (f epubFixture) bytes(t *testing.T) []byte {
	t.Helper()

	var opf bytes.Buffer
	opf.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	opf.WriteString("<package xmlns=\"http://www.idpf.org/2007/opf\" version=\"3.0\" unique-identifier=\"uid\">\n")
	opf.WriteString("<metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\">\n")
	opf.WriteString("<dc:identifier id=\"uid\">urn:uuid:00000000-0000-0000-0000-000000000000</dc:identifier>\n")
	fmt.Fprintf(&opf, "<dc:title>%s</dc:title>\n", f.Title)
	if f.Author != "" {
		fmt.Fprintf(&opf, "<dc:creator>%s</dc:creator>\n", f.Author)
	}
	if f.Language != "" {
		fmt.Fprintf(&opf, "<dc:language>%s</dc:language>\n", f.Language)
	}
	if f.Date != "" {
		fmt.Fprintf(&opf, "<dc:date>%s</dc:date>\n", f.Date)
	}
	if f.Description != "" {
		fmt.Fprintf(&opf, "<dc:description>%s</dc:description>\n", f.Description)
	}
	for _, s := range f.Subjects {
		fmt.Fprintf(&opf, "<dc:subject>%s</dc:subject>\n", s)
	}
	if f.Series != "" {
		fmt.Fprintf(&opf, "<meta name=\"calibre:series\" content=%q/>\n", f.Series)
		if f.SeriesIndex != "" {
			fmt.Fprintf(&opf, "<meta name=\"calibre:series_index\" content=%q/>\n", f.SeriesIndex)
		}
	}
	opf.WriteString("</metadata>\n")
	opf.WriteString("<manifest><item id=\"text\" href=\"text.xhtml\" media-type=\"application/xhtml+xml\"/></manifest>\n")
	opf.WriteString("<spine><itemref idref=\"text\"/></spine>\n")
	opf.WriteString("</package>\n")

	container := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
		"<container version=\"1.0\" xmlns=\"urn:oasis:names:tc:opendocument:xmlns:container\">\n" +
		"<rootfiles><rootfile full-path=\"EPUB/package.opf\" media-type=\"application/oebps-package+xml\"/></rootfiles>\n" +
		"</container>\n"

	text := "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n" +
		"<html xmlns=\"http://www.w3.org/1999/xhtml\"><head><title>Text</title></head><body><p>Some text.</p></body></html>\n"

	var buf bytes.Buffer
	a, err := epub.NewArchive(&buf)
	require.NoError(t, err)
	require.NoError(t, a.Add("META-INF/container.xml", []byte(container)))
	require.NoError(t, a.Add("EPUB/package.opf", opf.Bytes()))
	require.NoError(t, a.Add("EPUB/text.xhtml", []byte(text)))
	require.NoError(t, a.Close())
	return buf.Bytes()
}
