package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Metadata is everything the library scanner reads out of an EPUB.
type Metadata struct {
	Title        string
	Authors      []string
	Series       string
	SeriesNumber *float64
	Language     string
	Genres       []string
	Description  string
	Year         int
	CoverPath    string
	CoverMime    string
	CoverData    []byte
}

// Package mirrors the OPF package document.
type Package struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Subject     []string `xml:"subject"`
		Description string   `xml:"description"`
		Date        string   `xml:"date"`
		Language    string   `xml:"language"`
		Meta        []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
}

// ParseFile reads the metadata of the EPUB at path.
func ParseFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return Parse(f, stats.Size())
}

// Parse reads the metadata of the EPUB presented by r. It locates the OPF
// inside the archive, parses it, and loads the cover image bytes when the
// OPF points at one.
func Parse(r io.ReaderAt, size int64) (*Metadata, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var meta *Metadata
	for _, file := range zipReader.File {
		if filepath.Ext(file.Name) != ".opf" {
			continue
		}
		fr, err := file.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		meta, err = ParseOPF(file.Name, fr)
		fr.Close()
		if err != nil {
			return nil, err
		}
		break
	}
	if meta == nil {
		return nil, errors.New("no opf file found")
	}

	if meta.CoverPath != "" {
		for _, file := range zipReader.File {
			if file.Name != meta.CoverPath {
				continue
			}
			fr, err := file.Open()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			b, err := io.ReadAll(fr)
			fr.Close()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			meta.CoverData = b
		}
	}

	return meta, nil
}

// ParseOPF parses a single OPF document. filename is the OPF's path inside
// the archive; manifest hrefs are resolved relative to it.
func ParseOPF(filename string, r io.Reader) (*Metadata, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{}
	if err := xml.Unmarshal(b, pkg); err != nil {
		return nil, errors.WithStack(err)
	}

	// All files are referenced from the location of the OPF file. If basePath
	// is `.` the OPF sits at the archive root and no prefix is needed.
	basePath := filepath.Dir(filename)
	if basePath == "." {
		basePath = ""
	} else {
		basePath += "/"
	}

	// Flatten the meta elements into lookup-friendly maps.
	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.ReplaceAll(m.Refines, "#", "")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = m.Text
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}

	title := ""
	if len(pkg.Metadata.Title) == 1 {
		title = pkg.Metadata.Title[0].Text
	} else if len(pkg.Metadata.Title) > 1 {
		for _, t := range pkg.Metadata.Title {
			if t.ID != "" && metaProperties[t.ID] != nil && metaProperties[t.ID]["title-type"] == "main" {
				title = t.Text
				break
			}
		}
		if title == "" {
			title = pkg.Metadata.Title[0].Text
		}
	}

	var authors []string
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" && metaProperties[creator.ID] != nil {
			role = metaProperties[creator.ID]["role"]
		}
		if role == "aut" || role == "" {
			authors = append(authors, strings.TrimSpace(creator.Text))
		}
	}

	coverPath := ""
	coverMime := ""
	if metaContent["cover"] != "" {
		for _, item := range pkg.Manifest.Item {
			if item.ID == metaContent["cover"] {
				coverPath = basePath + item.Href
				coverMime = item.MediaType
			}
		}
	}
	if coverPath == "" {
		// EPUB 3 marks the cover on the manifest item instead.
		for _, item := range pkg.Manifest.Item {
			if strings.Contains(item.Properties, "cover-image") {
				coverPath = basePath + item.Href
				coverMime = item.MediaType
				break
			}
		}
	}

	series := metaContent["calibre:series"]
	var seriesNumber *float64
	if s := metaContent["calibre:series_index"]; s != "" {
		if num, err := strconv.ParseFloat(s, 64); err == nil {
			seriesNumber = &num
		}
	}

	genres := make([]string, 0, len(pkg.Metadata.Subject))
	for _, s := range pkg.Metadata.Subject {
		if s = strings.TrimSpace(s); s != "" {
			genres = append(genres, s)
		}
	}

	return &Metadata{
		Title:        title,
		Authors:      authors,
		Series:       series,
		SeriesNumber: seriesNumber,
		Language:     pkg.Metadata.Language,
		Genres:       genres,
		Description:  strings.TrimSpace(pkg.Metadata.Description),
		Year:         dateYear(pkg.Metadata.Date),
		CoverPath:    coverPath,
		CoverMime:    coverMime,
	}, nil
}

// dateYear pulls the year out of a dc:date value, which may be a bare year,
// a date, or a full timestamp.
func dateYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return year
}
