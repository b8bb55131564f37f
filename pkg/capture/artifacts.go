// pkg/capture/artifacts.go

package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PageSize is the number of binaries per page.
const PageSize = 9

// BinaryArtifactSummary describes one captured payload.
type BinaryArtifactSummary struct {
	Name       string    `json:"name"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	CapturedAt time.Time `json:"captured_at"`
}

// ArtifactPage is one page of ListArtifacts.
type ArtifactPage struct {
	Page       int                     `json:"page"`
	Items      []BinaryArtifactSummary `json:"items"`
	TotalCount int                     `json:"total_count"`
	TotalPages int                     `json:"total_pages"`
}

// NoMoreResultsError is returned for a page past the last one.
type NoMoreResultsError struct {
	Page  int
	Total int
}

func (e *NoMoreResultsError) Error() string {
	return fmt.Sprintf("no more results: page %d is past the end of %d artifacts", e.Page, e.Total)
}

// TotalPages is the number of pages needed for total items.
func TotalPages(total int) int {
	return (total + PageSize - 1) / PageSize
}

// ListArtifacts returns page (1-indexed) of the captured binaries sorted by
// name. Only the items on the page are hashed.
func (e *Engine) ListArtifacts(rc *honey_io.RuntimeContext, page int) (*ArtifactPage, error) {
	_, span := telemetry.Start(rc.Ctx, "capture.ListArtifacts", attribute.Int("page", page))
	defer span.End()
	logger := otelzap.Ctx(rc.Ctx)

	if page < 1 {
		return nil, honey_err.NewValidationError("page must be 1 or greater")
	}

	dir := filepath.Join(e.Root, binariesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, captureDirError(dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}

	total := len(names)
	start := (page - 1) * PageSize
	if start >= total {
		return nil, honey_err.NewExpectedError(&NoMoreResultsError{Page: page, Total: total})
	}
	end := min(start+PageSize, total)

	out := &ArtifactPage{
		Page:       page,
		Items:      make([]BinaryArtifactSummary, 0, end-start),
		TotalCount: total,
		TotalPages: TotalPages(total),
	}
	for _, name := range names[start:end] {
		s, err := summarize(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *s)
	}

	logger.Info("Listed captured binaries",
		zap.Int("page", page),
		zap.Int("items", len(out.Items)),
		zap.Int("total", total))
	return out, nil
}

func summarize(path string) (*BinaryArtifactSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, cerr.Wrapf(err, "stat %s", path)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, cerr.Wrapf(err, "hash %s", path)
	}
	return &BinaryArtifactSummary{
		Name:       filepath.Base(path),
		SHA256:     hex.EncodeToString(h.Sum(nil)),
		Size:       info.Size(),
		CapturedAt: birthTime(path, info),
	}, nil
}
