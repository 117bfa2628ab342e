package core_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"branch-supply/internal/core"
	"branch-supply/internal/storage"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pdfBytes  = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

// failingBlobs fails Put for file contents equal to failOn.
type failingBlobs struct {
	core.BlobStore
	failOn string
}

func (b failingBlobs) Put(ctx context.Context, key string, data []byte) (string, error) {
	if string(data) == b.failOn {
		return "", errors.New("disk full")
	}
	return b.BlobStore.Put(ctx, key, data)
}

func newEvidenceFixture(t *testing.T) (*fixture, core.EvidenceService, string) {
	t.Helper()
	f := newFixture(t)
	dir := filepath.Join(t.TempDir(), "blobs")
	blobs, err := storage.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	svc := core.NewEvidenceService(f.store, blobs, core.WithClock(func() time.Time { return f.now }))
	return f, svc, dir
}

func (f *fixture) confirmedOrder(t *testing.T, branch int) *core.PurchaseOrder {
	t.Helper()
	po := f.createOrder(t, branch, 4)
	f.ship(t, po.ID)
	return f.confirm(t, po.ID)
}

func TestUploadEvidence_RequiresConfirmed(t *testing.T) {
	f, svc, _ := newEvidenceFixture(t)
	po := f.createOrder(t, branchNorth, 3)

	for _, step := range []string{"created", "in transit"} {
		_, err := svc.Upload(f.ctx, admin(t), po.ID, []core.EvidenceFile{{FileName: "a.png", Data: pngBytes}})
		if !errors.Is(err, core.ErrWrongState) {
			t.Fatalf("%s: want ErrWrongState, got %v", step, err)
		}
		if step == "created" {
			f.ship(t, po.ID)
		}
	}

	list, _ := svc.List(f.ctx, admin(t), po.ID)
	if len(list) != 0 {
		t.Errorf("evidence set must stay empty, got %d", len(list))
	}

	cancelled := f.createOrder(t, branchNorth, 1)
	if _, err := f.orders.CancelOrder(f.ctx, admin(t), core.CancelInput{OrderID: cancelled.ID}); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if _, err := svc.Upload(f.ctx, admin(t), cancelled.ID, []core.EvidenceFile{{FileName: "a.png", Data: pngBytes}}); !errors.Is(err, core.ErrWrongState) {
		t.Errorf("cancelled: want ErrWrongState, got %v", err)
	}
}

func TestUploadEvidence_Success(t *testing.T) {
	f, svc, dir := newEvidenceFixture(t)
	po := f.confirmedOrder(t, branchNorth)

	res, err := svc.Upload(f.ctx, staff(t, branchNorth), po.ID, []core.EvidenceFile{
		{FileName: "../../etc/delivery photo.PNG", Data: pngBytes},
		{FileName: "receipt.pdf", Data: pdfBytes},
		{FileName: "receipt.pdf", Data: pdfBytes},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(res.Stored) != 3 || len(res.Failed) != 0 {
		t.Fatalf("stored=%d failed=%v", len(res.Stored), res.Failed)
	}

	names := []string{res.Stored[0].FileName, res.Stored[1].FileName, res.Stored[2].FileName}
	want := []string{"delivery_photo.png", "receipt.pdf", "receipt-2.pdf"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("file %d: want %s, got %s", i, want[i], names[i])
		}
	}
	ev := res.Stored[0]
	if ev.ContentType != "image/png" || ev.SizeBytes != int64(len(pngBytes)) || !strings.HasPrefix(ev.Checksum, "blake3:") {
		t.Errorf("metadata: %+v", ev)
	}
	if ev.URL != core.EvidenceURL(po.ID, "delivery_photo.png") || ev.UploadedBy != 200 {
		t.Errorf("url/uploader: %s / %d", ev.URL, ev.UploadedBy)
	}
	if len(res.Evidence) != 3 {
		t.Errorf("evidence set: want 3, got %d", len(res.Evidence))
	}
	if _, err := os.Stat(filepath.Join(dir, ev.StorageKey)); err != nil {
		t.Errorf("blob missing: %v", err)
	}

	meta, rc, err := svc.Open(f.ctx, staff(t, branchNorth), po.ID, "receipt.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if meta.ContentType != "application/pdf" || string(data) != string(pdfBytes) {
		t.Errorf("Open returned %s / %q", meta.ContentType, data)
	}
}

func TestUploadEvidence_BatchLimitsAndPartialFailure(t *testing.T) {
	f, svc, _ := newEvidenceFixture(t)
	po := f.confirmedOrder(t, branchNorth)

	if _, err := svc.Upload(f.ctx, admin(t), po.ID, nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("no files: want ErrValidation, got %v", err)
	}
	six := make([]core.EvidenceFile, 6)
	for i := range six {
		six[i] = core.EvidenceFile{FileName: "p.png", Data: pngBytes}
	}
	if _, err := svc.Upload(f.ctx, admin(t), po.ID, six); !errors.Is(err, core.ErrValidation) {
		t.Errorf("six files: want ErrValidation, got %v", err)
	}

	big := append(append([]byte{}, jpegBytes...), make([]byte, core.MaxEvidenceBytes)...)
	res, err := svc.Upload(f.ctx, admin(t), po.ID, []core.EvidenceFile{
		{FileName: "ok.jpg", Data: jpegBytes},
		{FileName: "notes.txt", Data: []byte("plain text is not evidence")},
		{FileName: "huge.jpg", Data: big},
		{FileName: "empty.png"},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(res.Stored) != 1 || res.Stored[0].FileName != "ok.jpg" {
		t.Errorf("stored: %+v", res.Stored)
	}
	if len(res.Failed) != 3 {
		t.Fatalf("failed: want 3, got %+v", res.Failed)
	}
	if res.Failed[0].FileName != "notes.txt" || !strings.Contains(res.Failed[0].Reason, "unsupported") {
		t.Errorf("failure reason: %+v", res.Failed[0])
	}
}

func TestUploadEvidence_BlobFailureReported(t *testing.T) {
	f := newFixture(t)
	blobs, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	svc := core.NewEvidenceService(f.store, failingBlobs{BlobStore: blobs, failOn: string(pdfBytes)})
	po := f.confirmedOrder(t, branchNorth)

	res, err := svc.Upload(f.ctx, admin(t), po.ID, []core.EvidenceFile{
		{FileName: "a.png", Data: pngBytes},
		{FileName: "b.pdf", Data: pdfBytes},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(res.Stored) != 1 || len(res.Failed) != 1 || res.Failed[0].FileName != "b.pdf" {
		t.Errorf("want one stored and one failed, got %+v / %+v", res.Stored, res.Failed)
	}
}

func TestUploadEvidence_Access(t *testing.T) {
	f, svc, _ := newEvidenceFixture(t)
	po := f.confirmedOrder(t, branchNorth)

	_, err := svc.Upload(f.ctx, staff(t, branchSouth), po.ID, []core.EvidenceFile{{FileName: "a.png", Data: pngBytes}})
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("other branch: want ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Upload(f.ctx, admin(t), 999, []core.EvidenceFile{{FileName: "a.png", Data: pngBytes}}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing order: want ErrNotFound, got %v", err)
	}
}

func TestDeleteEvidence(t *testing.T) {
	f, svc, dir := newEvidenceFixture(t)
	po := f.confirmedOrder(t, branchNorth)
	res, err := svc.Upload(f.ctx, admin(t), po.ID, []core.EvidenceFile{{FileName: "a.png", Data: pngBytes}})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	key := res.Stored[0].StorageKey

	if err := svc.Delete(f.ctx, staff(t, branchNorth), po.ID, "a.png"); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("staff delete: want ErrUnauthorized, got %v", err)
	}
	if err := svc.Delete(f.ctx, admin(t), po.ID, "missing.png"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing file: want ErrNotFound, got %v", err)
	}
	if err := svc.Delete(f.ctx, admin(t), po.ID, "a.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, key)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("blob should be removed, stat err=%v", err)
	}
	list, _ := svc.List(f.ctx, admin(t), po.ID)
	if len(list) != 0 {
		t.Errorf("evidence left: %+v", list)
	}
}

// Uploads need a confirmed order, but admins may remove evidence whatever
// state the order is in, e.g. rows imported against open orders.
func TestDeleteEvidence_AdminIgnoresOrderState(t *testing.T) {
	f, svc, _ := newEvidenceFixture(t)

	created := f.createOrder(t, branchNorth, 2)
	inTransit := f.createOrder(t, branchNorth, 2)
	f.ship(t, inTransit.ID)
	cancelled := f.createOrder(t, branchNorth, 2)
	if _, err := f.orders.CancelOrder(f.ctx, admin(t), core.CancelInput{OrderID: cancelled.ID}); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	for name, id := range map[string]int{"created": created.ID, "in transit": inTransit.ID, "cancelled": cancelled.ID} {
		t.Run(name, func(t *testing.T) {
			if err := f.store.AddEvidence(f.ctx, &core.Evidence{
				OrderID:     id,
				FileName:    "imported.pdf",
				ContentType: "application/pdf",
				StorageKey:  "imported-" + strconv.Itoa(id) + ".pdf",
				UploadedAt:  f.now,
			}); err != nil {
				t.Fatalf("AddEvidence: %v", err)
			}
			if err := svc.Delete(f.ctx, staff(t, branchNorth), id, "imported.pdf"); !errors.Is(err, core.ErrUnauthorized) {
				t.Errorf("staff delete: want ErrUnauthorized, got %v", err)
			}
			if err := svc.Delete(f.ctx, admin(t), id, "imported.pdf"); err != nil {
				t.Fatalf("admin delete: %v", err)
			}
			if list, _ := svc.List(f.ctx, admin(t), id); len(list) != 0 {
				t.Errorf("evidence left: %+v", list)
			}
		})
	}
}

func TestSweepOrphans(t *testing.T) {
	f, svc, dir := newEvidenceFixture(t)
	po := f.confirmedOrder(t, branchNorth)
	res, err := svc.Upload(f.ctx, admin(t), po.ID, []core.EvidenceFile{{FileName: "keep.png", Data: pngBytes}})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	kept := res.Stored[0].StorageKey

	old := f.now.Add(-48 * time.Hour)
	for _, name := range []string{"orphan-old.png", kept} {
		p := filepath.Join(dir, name)
		if name != kept {
			if err := os.WriteFile(p, pngBytes, 0o600); err != nil {
				t.Fatalf("write orphan: %v", err)
			}
		}
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "orphan-fresh.png"), pngBytes, 0o600); err != nil {
		t.Fatalf("write fresh orphan: %v", err)
	}
	fresh := f.now.Add(-time.Minute)
	_ = os.Chtimes(filepath.Join(dir, "orphan-fresh.png"), fresh, fresh)

	removed, err := svc.SweepOrphans(f.ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("SweepOrphans: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed: want 1, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "orphan-old.png")); !errors.Is(err, os.ErrNotExist) {
		t.Error("old orphan should be gone")
	}
	for _, name := range []string{kept, "orphan-fresh.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s should be kept: %v", name, err)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"photo.jpeg":            "photo.jpg",
		`C:\Users\me\scan.PDF`:  "scan.jpg",
		"../../secret":          "secret.jpg",
		"...":                   "evidence.jpg",
		"recibo de entrega.png": "recibo_de_entrega.jpg",
	}
	for in, want := range tests {
		if got := core.SanitizeFileName(in, ".jpg"); got != want {
			t.Errorf("SanitizeFileName(%q): want %s, got %s", in, want, got)
		}
	}
}
