package worker

import (
	"archive/zip"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tinyopds/tinyopds/pkg/epub"
	"github.com/tinyopds/tinyopds/pkg/fb2"
	"github.com/tinyopds/tinyopds/pkg/jobs"
	"github.com/tinyopds/tinyopds/pkg/library"
)

// extensionsToScan maps the file extensions we pick up during a walk onto
// the mime types they are allowed to have. Bare FB2 files are XML, so they
// detect as text/xml unless the file carries the FictionBook signature.
var extensionsToScan = map[string][]string{
	".epub": {"application/epub+zip"},
	".fb2":  {"text/xml", "application/x-fictionbook+xml"},
	".zip":  {"application/zip"},
}

func (w *Worker) ProcessScanJob(ctx context.Context, job *jobs.Job) error {
	log := logger.FromContext(ctx)
	log.Info("processing scan job")

	data := &jobs.JobScanData{}
	if parsed, ok := job.DataParsed.(*jobs.JobScanData); ok {
		data = parsed
	}
	root := data.LibraryPath
	if root == "" {
		root = w.config.LibraryPath
	}
	if root == "" {
		log.Info("no library path configured, skipping scan")
		return nil
	}
	log = log.Data(logger.Data{"library_path": root})

	filesToScan := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if info.IsDir() {
			// We don't do anything explicitly to directories.
			return nil
		}
		expectedMimeTypes, ok := extensionsToScan[strings.ToLower(filepath.Ext(path))]
		if !ok {
			// We're only looking for certain files right now.
			return nil
		}
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			// We can't detect the mime type, so we just skip it.
			log.Warn("can't detect the mime type of a file with a valid extension", logger.Data{"path": path, "err": err.Error()})
			return nil
		}
		matched := false
		for _, expected := range expectedMimeTypes {
			if mtype.Is(expected) {
				matched = true
				break
			}
		}
		if !matched {
			// Files can have any extension, so check the content against the
			// mime types we expect before trying to parse it as a book.
			log.Warn("mime type is not expected for extension", logger.Data{"path": path, "mimetype": mtype.String()})
			return nil
		}

		// This is a file that we care about, so store it in the slice. We do
		// this so that we know the total number of files before we start doing
		// any real work and can accurately update the progress of the job.
		filesToScan = append(filesToScan, path)

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	known, err := w.libraryService.BookPaths(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	seen := make(map[string]bool, len(known))
	added := 0
	for i, path := range filesToScan {
		n, err := w.scanFile(ctx, root, path, known, seen, data.Full)
		if err != nil {
			// One damaged file must not abort the whole scan.
			log.Warn("skipping file", logger.Data{"path": path, "err": err.Error()})
		}
		added += n
		w.reportProgress(ctx, job, (i+1)*100/len(filesToScan))
	}

	// Purge records whose files are gone. A scoped scan only walks part of
	// the library, so it must leave records outside its root alone.
	removed := 0
	if data.LibraryPath == "" {
		for path := range known {
			if seen[path] {
				continue
			}
			book, err := w.libraryService.BookByPath(ctx, path)
			if err != nil {
				return errors.WithStack(err)
			}
			if book == nil {
				continue
			}
			err = w.libraryService.DeleteBook(ctx, book.ID)
			if err != nil {
				return errors.WithStack(err)
			}
			removed++
		}
	}

	log.Info("finished scan job", logger.Data{"files": len(filesToScan), "added": added, "removed": removed})
	return nil
}

func (w *Worker) reportProgress(ctx context.Context, job *jobs.Job, progress int) {
	if progress == job.Progress {
		return
	}
	job.Progress = progress
	err := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{Columns: []string{"progress"}})
	if err != nil {
		logger.FromContext(ctx).Warn("can't update job progress", logger.Data{"err": err.Error()})
	}
}

// scanFile dispatches one file to the right parser and returns how many
// book records it added or refreshed. seen collects every library path the
// scan observed, including entries inside ZIP containers.
func (w *Worker) scanFile(ctx context.Context, root, path string, known, seen map[string]bool, full bool) (int, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	rel = filepath.ToSlash(rel)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".fb2":
		return w.scanFB2(ctx, path, rel, known, seen, full)
	case ".zip":
		return w.scanZip(ctx, path, rel, known, seen, full)
	case ".epub":
		return w.scanEPUB(ctx, path, rel, known, seen, full)
	}
	return 0, nil
}

func (w *Worker) scanFB2(ctx context.Context, path, rel string, known, seen map[string]bool, full bool) (int, error) {
	seen[rel] = true
	if known[rel] && !full {
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, errors.WithStack(err)
	}

	doc, err := fb2.Parse(f)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	book := bookFromFB2(doc, rel, info.Size())
	err = w.upsertBook(ctx, book, known)
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (w *Worker) scanZip(ctx context.Context, path, rel string, known, seen map[string]bool, full bool) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer zr.Close()

	log := logger.FromContext(ctx)
	added := 0
	for _, zf := range zr.File {
		if !strings.HasSuffix(strings.ToLower(zf.Name), ".fb2") {
			continue
		}
		entryPath := rel + library.PathSeparator + zf.Name
		seen[entryPath] = true
		if known[entryPath] && !full {
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			log.Warn("can't open archive entry", logger.Data{"path": path, "entry": zf.Name, "err": err.Error()})
			continue
		}
		doc, err := fb2.Parse(rc)
		rc.Close()
		if err != nil {
			log.Warn("can't parse archive entry", logger.Data{"path": path, "entry": zf.Name, "err": err.Error()})
			continue
		}

		book := bookFromFB2(doc, entryPath, int64(zf.UncompressedSize64))
		err = w.upsertBook(ctx, book, known)
		if err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func (w *Worker) scanEPUB(ctx context.Context, path, rel string, known, seen map[string]bool, full bool) (int, error) {
	seen[rel] = true
	if known[rel] && !full {
		return 0, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	meta, err := epub.ParseFile(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	book := bookFromEPUB(meta, rel, info.Size())
	err = w.upsertBook(ctx, book, known)
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// upsertBook stores a freshly parsed book, replacing the existing record
// when the path is already in the library.
func (w *Worker) upsertBook(ctx context.Context, book *library.Book, known map[string]bool) error {
	if known[book.FilePath] {
		return w.replaceBook(ctx, book)
	}
	return errors.WithStack(w.libraryService.CreateBook(ctx, book))
}

// replaceBook swaps the stored record for a rescanned file. The row ID and
// creation time carry over so cover cache keys stay stable and the book
// does not reappear in the new-arrivals feeds.
func (w *Worker) replaceBook(ctx context.Context, book *library.Book) error {
	existing, err := w.libraryService.BookByPath(ctx, book.FilePath)
	if err != nil {
		return errors.WithStack(err)
	}
	if existing != nil {
		book.ID = existing.ID
		book.CreatedAt = existing.CreatedAt
		err = w.libraryService.DeleteBook(ctx, existing.ID)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(w.libraryService.CreateBook(ctx, book))
}

func bookFromFB2(doc *fb2.Document, rel string, size int64) *library.Book {
	book := &library.Book{
		Title:    doc.Title,
		Language: doc.Lang,
		BookDate: doc.Date,
		FilePath: rel,
		BookType: library.BookTypeFB2,
		FileSize: size,
	}
	if book.Title == "" {
		book.Title = titleFromPath(rel)
	}
	if doc.Sequence != "" {
		sequence := doc.Sequence
		book.Sequence = &sequence
		if doc.SequenceNo > 0 {
			no := doc.SequenceNo
			book.SequenceNo = &no
		}
	}
	if doc.Annotation != "" {
		annotation := doc.Annotation
		book.Annotation = &annotation
	}
	for _, name := range doc.Authors {
		book.Authors = append(book.Authors, &library.Author{Name: name})
	}
	for _, code := range doc.Genres {
		book.Genres = append(book.Genres, &library.BookGenre{Code: code})
	}
	return book
}

func bookFromEPUB(meta *epub.Metadata, rel string, size int64) *library.Book {
	book := &library.Book{
		Title:    meta.Title,
		Language: meta.Language,
		FilePath: rel,
		BookType: library.BookTypeEPUB,
		FileSize: size,
	}
	if book.Title == "" {
		book.Title = titleFromPath(rel)
	}
	if meta.Year > 1 {
		book.BookDate = time.Date(meta.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if meta.Series != "" {
		series := meta.Series
		book.Sequence = &series
		if meta.SeriesNumber != nil && *meta.SeriesNumber > 0 {
			no := int(*meta.SeriesNumber)
			book.SequenceNo = &no
		}
	}
	if meta.Description != "" {
		description := meta.Description
		book.Annotation = &description
	}
	for _, name := range meta.Authors {
		book.Authors = append(book.Authors, &library.Author{Name: name})
	}
	for _, subject := range meta.Genres {
		code := genreCodeForSubject(subject)
		if code != "" {
			book.Genres = append(book.Genres, &library.BookGenre{Code: code})
		}
	}
	return book
}

func titleFromPath(rel string) string {
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// genreCodeForSubject maps a free-form OPF subject onto an FB2 genre code.
// EPUB subjects are arbitrary text, so accept either a literal code or a
// display name in any language the taxonomy carries.
func genreCodeForSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return ""
	}
	if library.KnownGenre(subject) {
		return subject
	}
	for _, section := range library.GenreTree() {
		for _, genre := range section.Genres {
			if strings.EqualFold(genre.NameEn, subject) || strings.EqualFold(genre.NameRu, subject) {
				return genre.Code
			}
		}
	}
	return ""
}
