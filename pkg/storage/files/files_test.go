package files

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, max int64) *Store {
	t.Helper()
	s, err := New(t.TempDir(), max)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSaveListOpenDelete(t *testing.T) {
	s := newTestStore(t, 0)

	up, err := s.Save(7, "Notes.MD", strings.NewReader("# Title\n\nBody"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if up.Filename != "Notes.MD" {
		t.Errorf("Filename = %q, want original name", up.Filename)
	}
	if up.FileSize != int64(len("# Title\n\nBody")) {
		t.Errorf("FileSize = %d", up.FileSize)
	}
	if up.ContentType != "text/markdown" {
		t.Errorf("ContentType = %q, want text/markdown", up.ContentType)
	}

	list, err := s.List(7)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].FileID != up.FileID {
		t.Fatalf("List = %+v", list)
	}
	if list[0].Filename != "upload_"+up.FileID+".md" {
		t.Errorf("listed Filename = %q", list[0].Filename)
	}

	f, got, err := s.Open(7, up.FileID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "# Title\n\nBody" {
		t.Errorf("content = %q", data)
	}
	if got.FileID != up.FileID {
		t.Errorf("Open FileID = %q", got.FileID)
	}

	if err := s.Delete(7, up.FileID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(7, up.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	s := newTestStore(t, 0)
	up, err := s.Save(1, "a.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := s.Get(2, up.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get by other user = %v, want ErrNotFound", err)
	}
	list, err := s.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("other user sees %d files", len(list))
	}
}

func TestSaveRejects(t *testing.T) {
	s := newTestStore(t, 4)

	if _, err := s.Save(1, "virus.exe", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("exe upload = %v, want ErrUnsupportedType", err)
	}

	_, err := s.Save(1, "big.txt", strings.NewReader("12345"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversized upload = %v, want ErrTooLarge", err)
	}
	if !strings.Contains(err.Error(), "4 B") {
		t.Errorf("error %q should mention the limit", err)
	}

	list, _ := s.List(1)
	if len(list) != 0 {
		t.Errorf("rejected uploads left %d files behind", len(list))
	}

	if _, err := s.Save(1, "exact.txt", strings.NewReader("1234")); err != nil {
		t.Errorf("upload at the limit rejected: %v", err)
	}
}

func TestFindRejectsNonUUID(t *testing.T) {
	s := newTestStore(t, 0)
	for _, id := range []string{"../1/x", "*", ""} {
		if _, err := s.Get(1, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) = %v, want ErrNotFound", id, err)
		}
	}
}
