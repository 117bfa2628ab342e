package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// MaxEvidenceFiles is the most files accepted by one upload call.
	MaxEvidenceFiles = 5
	// MaxEvidenceBytes is the per-file size limit.
	MaxEvidenceBytes = 10 << 20
)

// allowedEvidenceTypes maps sniffed content types to the extension used for storage keys.
var allowedEvidenceTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// EvidenceFile is one uploaded file as received from the caller.
type EvidenceFile struct {
	FileName string
	Data     []byte
}

// EvidenceFailure reports a file that was not stored.
type EvidenceFailure struct {
	FileName string
	Reason   string
}

// UploadResult reports per-file outcomes of an upload together with the
// order's evidence set after the upload.
type UploadResult struct {
	Stored   []Evidence
	Failed   []EvidenceFailure
	Evidence []Evidence
}

// EvidenceService manages proof-of-delivery files on confirmed orders.
type EvidenceService interface {
	// Upload stores 1..MaxEvidenceFiles files on a CONFIRMED order. Files are
	// stored independently; failures are reported per file.
	Upload(ctx context.Context, ac *AccessContext, orderID int, files []EvidenceFile) (*UploadResult, error)

	// Delete removes one evidence file. Admin only, in any order state.
	Delete(ctx context.Context, ac *AccessContext, orderID int, fileName string) error

	List(ctx context.Context, ac *AccessContext, orderID int) ([]Evidence, error)

	// Open returns the metadata and content of one evidence file. The caller
	// closes the reader.
	Open(ctx context.Context, ac *AccessContext, orderID int, fileName string) (*Evidence, io.ReadCloser, error)

	// SweepOrphans deletes stored blobs older than olderThan that no evidence
	// row references, returning how many were removed.
	SweepOrphans(ctx context.Context, olderThan time.Duration) (int, error)
}

type evidenceService struct {
	repo  OrderRepository
	blobs BlobStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewEvidenceService constructs an EvidenceService storing content in blobs.
func NewEvidenceService(repo OrderRepository, blobs BlobStore, opts ...ServiceOption) EvidenceService {
	o := defaultOptions(opts)
	return &evidenceService{
		repo:  repo,
		blobs: blobs,
		log:   o.logger.With().Str("component", "evidence").Logger(),
		now:   o.now,
	}
}

func (s *evidenceService) Upload(ctx context.Context, ac *AccessContext, orderID int, files []EvidenceFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, invalid("files", "at least one file is required")
	}
	if len(files) > MaxEvidenceFiles {
		return nil, invalid("files", "at most %d files per upload, got %d", MaxEvidenceFiles, len(files))
	}

	// The state check reads committed state; the upload itself does not hold the order lock.
	po, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ac.RequireBranch(po.DestinationBranchID); err != nil {
		return nil, err
	}
	if po.Status != StatusConfirmed {
		return nil, fmt.Errorf("purchase order %d is %s, evidence requires %s: %w",
			orderID, po.Status, StatusConfirmed, ErrWrongState)
	}

	taken := make(map[string]struct{}, len(po.Evidence)+len(files))
	for _, e := range po.Evidence {
		taken[strings.ToLower(e.FileName)] = struct{}{}
	}

	res := &UploadResult{}
	for _, f := range files {
		ev, reason := s.storeOne(ctx, ac, po.ID, f, taken)
		if reason != "" {
			res.Failed = append(res.Failed, EvidenceFailure{FileName: f.FileName, Reason: reason})
			continue
		}
		res.Stored = append(res.Stored, *ev)
	}

	res.Evidence, err = s.repo.ListEvidence(ctx, po.ID)
	if err != nil {
		return nil, fmt.Errorf("list evidence of purchase order %d: %w", po.ID, err)
	}

	s.log.Info().
		Int("order_id", po.ID).
		Int("stored", len(res.Stored)).
		Int("failed", len(res.Failed)).
		Int("actor_id", ac.UserID()).
		Msg("evidence uploaded")
	return res, nil
}

// storeOne writes the blob first and the metadata row second, removing the
// blob again if the row cannot be written. A non-empty reason means failure.
func (s *evidenceService) storeOne(ctx context.Context, ac *AccessContext, orderID int, f EvidenceFile, taken map[string]struct{}) (*Evidence, string) {
	if len(f.Data) == 0 {
		return nil, "file is empty"
	}
	if len(f.Data) > MaxEvidenceBytes {
		return nil, fmt.Sprintf("file exceeds %d MB limit", MaxEvidenceBytes>>20)
	}

	contentType := DetectEvidenceType(f.Data)
	ext, ok := allowedEvidenceTypes[contentType]
	if !ok {
		return nil, fmt.Sprintf("unsupported content type %s", contentType)
	}

	name := uniqueFileName(SanitizeFileName(f.FileName, ext), taken)
	key := uuid.NewString() + ext

	sum, err := s.blobs.Put(ctx, key, f.Data)
	if err != nil {
		s.log.Error().Err(err).Int("order_id", orderID).Str("file", name).Msg("store evidence blob")
		return nil, "could not store file"
	}

	ev := &Evidence{
		OrderID:     orderID,
		FileName:    name,
		ContentType: contentType,
		SizeBytes:   int64(len(f.Data)),
		Checksum:    sum,
		StorageKey:  key,
		UploadedBy:  ac.UserID(),
		UploadedAt:  s.now(),
		URL:         EvidenceURL(orderID, name),
	}
	if err := s.repo.AddEvidence(ctx, ev); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", key).Msg("remove blob after failed evidence insert")
		}
		s.log.Error().Err(err).Int("order_id", orderID).Str("file", name).Msg("record evidence")
		return nil, "could not record file"
	}
	taken[strings.ToLower(name)] = struct{}{}
	return ev, ""
}

func (s *evidenceService) Delete(ctx context.Context, ac *AccessContext, orderID int, fileName string) error {
	if err := ac.RequireAdmin(); err != nil {
		return err
	}
	if strings.TrimSpace(fileName) == "" {
		return invalid("fileName", "file name is required")
	}
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return err
	}

	ev, err := s.repo.DeleteEvidence(ctx, orderID, fileName)
	if err != nil {
		return err
	}
	// A blob left behind here is collected by SweepOrphans.
	if err := s.blobs.Delete(ctx, ev.StorageKey); err != nil {
		s.log.Warn().Err(err).Str("key", ev.StorageKey).Msg("remove evidence blob")
	}

	s.log.Info().
		Int("order_id", orderID).
		Str("file", ev.FileName).
		Int("actor_id", ac.UserID()).
		Msg("evidence deleted")
	return nil
}

func (s *evidenceService) List(ctx context.Context, ac *AccessContext, orderID int) ([]Evidence, error) {
	po, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ac.RequireBranch(po.DestinationBranchID); err != nil {
		return nil, err
	}
	return s.repo.ListEvidence(ctx, orderID)
}

func (s *evidenceService) Open(ctx context.Context, ac *AccessContext, orderID int, fileName string) (*Evidence, io.ReadCloser, error) {
	po, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if err := ac.RequireBranch(po.DestinationBranchID); err != nil {
		return nil, nil, err
	}
	ev, err := s.repo.GetEvidence(ctx, orderID, fileName)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, ev.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open evidence %q: %w", ev.FileName, err)
	}
	return ev, rc, nil
}

func (s *evidenceService) SweepOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	referenced, err := s.repo.EvidenceStorageKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("load evidence keys: %w", err)
	}
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list blobs: %w", err)
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	var errs []error
	for _, b := range blobs {
		if _, ok := referenced[b.Key]; ok || b.ModTime.After(cutoff) {
			continue
		}
		if err := s.blobs.Delete(ctx, b.Key); err != nil {
			errs = append(errs, fmt.Errorf("delete orphan %s: %w", b.Key, err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("orphaned evidence swept")
	}
	return removed, errors.Join(errs...)
}

// DetectEvidenceType sniffs the content type from the leading bytes; the
// caller-supplied type is never trusted.
func DetectEvidenceType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// SanitizeFileName reduces a client file name to a safe base name with the
// extension matching its sniffed type.
func SanitizeFileName(name, ext string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '.':
			b.WriteRune('_')
		}
	}
	clean := strings.Trim(b.String(), "_")
	if clean == "" {
		clean = "evidence"
	}
	if r := []rune(clean); len(r) > 100 {
		clean = string(r[:100])
	}
	return clean + ext
}

func uniqueFileName(name string, taken map[string]struct{}) string {
	if _, ok := taken[strings.ToLower(name)]; !ok {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := stem + "-" + strconv.Itoa(i) + ext
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
	}
}
