package document

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/koopa0/docchat/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestIngest(t *testing.T) {
	t.Run("writes file and returns document", func(t *testing.T) {
		store := newTestStore(t)

		doc, err := store.Ingest("notes.txt", strings.NewReader("hello world"))
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		if doc.Name != "notes.txt" {
			t.Errorf("Name = %q, want %q", doc.Name, "notes.txt")
		}
		if !doc.UseInRAG {
			t.Error("UseInRAG = false, want true")
		}
		if doc.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Error("ID not minted")
		}

		data, err := os.ReadFile(doc.Path)
		if err != nil {
			t.Fatalf("reading ingested file: %v", err)
		}
		if string(data) != "hello world" {
			t.Errorf("content = %q, want %q", data, "hello world")
		}
	})

	t.Run("flattens traversal attempts", func(t *testing.T) {
		store := newTestStore(t)

		doc, err := store.Ingest("../../etc/passwd", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if filepath.Dir(doc.Path) != store.Root() {
			t.Errorf("document escaped data root: %s", doc.Path)
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		store := newTestStore(t)

		if _, err := store.Ingest("a.txt", strings.NewReader("a")); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		entries, err := os.ReadDir(store.Root())
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".ingest-") {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})

	t.Run("same name overwrites in place", func(t *testing.T) {
		store := newTestStore(t)

		if _, err := store.Ingest("a.txt", strings.NewReader("first")); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		doc, err := store.Ingest("a.txt", strings.NewReader("second"))
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		data, _ := os.ReadFile(doc.Path)
		if string(data) != "second" {
			t.Errorf("content = %q, want %q", data, "second")
		}

		paths, err := store.ListAvailable()
		if err != nil {
			t.Fatalf("ListAvailable() error = %v", err)
		}
		if len(paths) != 1 {
			t.Errorf("got %d files, want exactly 1", len(paths))
		}
	})
}

func TestListAvailable(t *testing.T) {
	store := newTestStore(t)
	root := store.Root()

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("a.txt", "a")
	mustWrite("b.md", "b")
	mustWrite(".hidden", "h")
	if err := os.Mkdir(filepath.Join(root, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths, err := store.ListAvailable()
	if err != nil {
		t.Fatalf("ListAvailable() error = %v", err)
	}

	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2: %v", len(paths), paths)
	}
	if !slices.Contains(paths, filepath.Join(root, "a.txt")) {
		t.Error("a.txt missing from listing")
	}
	if slices.Contains(paths, filepath.Join(root, ".hidden")) {
		t.Error("hidden file included in listing")
	}
}

func TestResolve(t *testing.T) {
	store := newTestStore(t)
	root := store.Root()

	existing := filepath.Join(root, "present.txt")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("drops missing entries", func(t *testing.T) {
		got := store.Resolve([]string{existing, filepath.Join(root, "gone.txt")})
		if len(got) != 1 || got[0] != existing {
			t.Errorf("Resolve() = %v, want [%s]", got, existing)
		}
	})

	t.Run("resolves bare names against the root", func(t *testing.T) {
		got := store.Resolve([]string{"present.txt"})
		if len(got) != 1 || got[0] != existing {
			t.Errorf("Resolve() = %v, want [%s]", got, existing)
		}
	})

	t.Run("drops directories", func(t *testing.T) {
		got := store.Resolve([]string{root})
		if len(got) != 0 {
			t.Errorf("Resolve() = %v, want empty", got)
		}
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		if got := store.Resolve(nil); len(got) != 0 {
			t.Errorf("Resolve(nil) = %v, want empty", got)
		}
	})
}
