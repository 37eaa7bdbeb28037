package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/ppiankov/certverify/internal/model"
)

// ErrInvalidArchive is returned when the upload is not a readable zip archive
var ErrInvalidArchive = errors.New("invalid archive")

var disableConfigDir sync.Once

// Ingester unpacks certificate archives into the object store and registry
type Ingester struct {
	store         ObjectStore
	registry      Registry
	prefix        string
	maxEntryBytes int64
	log           *slog.Logger
	now           func() time.Time
}

// NewIngester creates an ingester writing objects under prefix
func NewIngester(store ObjectStore, registry Registry, prefix string, maxEntryBytes int64, log *slog.Logger) *Ingester {
	if maxEntryBytes <= 0 {
		maxEntryBytes = 50 << 20
	}
	if log == nil {
		log = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Ingester{
		store:         store,
		registry:      registry,
		prefix:        strings.Trim(prefix, "/"),
		maxEntryBytes: maxEntryBytes,
		log:           log,
		now:           time.Now,
	}
}

// IngestZip stores every PDF entry of a zip archive. Entries already present
// in the store are reported as existing and left untouched, though they are
// still registered if an earlier run failed to record them. An unreadable or
// invalid PDF is reported on its own result; store and registry failures abort.
func (i *Ingester) IngestZip(ctx context.Context, data []byte, organization string) ([]model.IngestResult, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	results := []model.IngestResult{}
	for _, entry := range archive.File {
		name, ok := pdfEntryName(entry)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := i.ingestEntry(ctx, entry, name, organization)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

func (i *Ingester) ingestEntry(ctx context.Context, entry *zip.File, name, organization string) (model.IngestResult, error) {
	result := model.IngestResult{FileName: name}

	content, err := i.readEntry(entry)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	pages, err := CountPages(content)
	if err != nil {
		result.Error = fmt.Sprintf("invalid PDF: %v", err)
		i.log.Warn("skipping invalid PDF", "file", name, "error", err)
		return result, nil
	}
	result.Pages = pages

	objectName := name
	if i.prefix != "" {
		objectName = i.prefix + "/" + name
	}

	objectURL, created, err := i.store.PutIfAbsent(ctx, objectName, content, "application/pdf")
	if err != nil {
		return result, fmt.Errorf("store %s: %w", name, err)
	}
	result.URL = objectURL
	result.Existing = !created

	// The ID follows from the URL, so an object stored by an earlier run whose
	// registration failed is registered now
	record := model.CertificateRecord{
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte(objectURL)).String(),
		FileName:     name,
		URL:          objectURL,
		Organization: organization,
		Pages:        pages,
		Type:         ClassifyURL(objectURL),
		CreatedAt:    i.now().UTC(),
	}
	if err := i.registry.Save(ctx, record); err != nil {
		return result, fmt.Errorf("register %s: %w", name, err)
	}

	if result.Existing {
		i.log.Info("certificate already stored", "file", name, "url", objectURL)
	} else {
		i.log.Info("certificate stored", "file", name, "url", objectURL, "pages", pages)
	}
	return result, nil
}

func (i *Ingester) readEntry(entry *zip.File) ([]byte, error) {
	if entry.UncompressedSize64 > uint64(i.maxEntryBytes) {
		return nil, fmt.Errorf("entry exceeds %d bytes", i.maxEntryBytes)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer func() { _ = rc.Close() }()

	content, err := io.ReadAll(io.LimitReader(rc, i.maxEntryBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	if int64(len(content)) > i.maxEntryBytes {
		return nil, fmt.Errorf("entry exceeds %d bytes", i.maxEntryBytes)
	}
	return content, nil
}

// pdfEntryName returns the cleaned name of a PDF entry, skipping directories
// and archive metadata
func pdfEntryName(entry *zip.File) (string, bool) {
	if entry.FileInfo().Mode()&fs.ModeDir != 0 {
		return "", false
	}
	name := strings.TrimPrefix(path.Clean("/"+entry.Name), "/")
	if strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._") {
		return "", false
	}
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		return "", false
	}
	return name, true
}

// CountPages validates a PDF and returns its page count
func CountPages(content []byte) (pages int, err error) {
	disableConfigDir.Do(api.DisableConfigDir)

	// pdfcpu can panic on badly broken input
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("read PDF: %v", r)
		}
	}()

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	pages, err = api.PageCount(bytes.NewReader(content), conf)
	if err != nil {
		return 0, err
	}
	if pages == 0 {
		return 0, fmt.Errorf("document has no pages")
	}
	return pages, nil
}
