package modconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/lockmap"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

func newTestStore() *Store {
	return NewStore(nil, utils.NewDiscardLogger())
}

func sampleDoc() models.ModConfig {
	return models.ModConfig{
		"speed":   models.NumberValue(3),
		"ratio":   models.NumberValue(0.25),
		"enabled": models.BoolValue(true),
		"title":   models.StringValue("Jet: \"pack\""),
		"keys":    models.ListValue{models.StringValue("W"), models.NumberValue(2), models.BoolValue(false)},
		"nested": models.MapValue{
			"colors": models.ListValue{models.MapValue{"r": models.NumberValue(255)}},
			"empty":  models.MapValue{},
		},
	}
}

func TestGetMissingIsEmpty(t *testing.T) {
	doc, err := newTestStore().Get(t.TempDir(), "jetpack")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc == nil || len(doc) != 0 {
		t.Fatalf("Get = %#v, want empty document", doc)
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store := newTestStore()
	game := t.TempDir()
	want := sampleDoc()

	if err := store.Save(game, "jetpack", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(game, "jetpack")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, want)
	}

	if _, err := os.Stat(filepath.Join(game, "Silk", "Config", "Mods", "jetpack.yaml")); err != nil {
		t.Fatalf("document not at expected path: %v", err)
	}
}

func TestSetValueNoLostUpdates(t *testing.T) {
	store := newTestStore()
	game := t.TempDir()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.SetValue(game, "jetpack", fmt.Sprintf("k%d", i), models.NumberValue(i))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("SetValue: %v", err)
		}
	}

	doc, err := store.Get(game, "jetpack")
	if err != nil {
		t.Fatal(err)
	}
	if len(doc) != n {
		t.Fatalf("document has %d keys, want %d: %v", len(doc), n, doc)
	}
	for i := 0; i < n; i++ {
		if !models.Equal(doc[fmt.Sprintf("k%d", i)], models.NumberValue(i)) {
			t.Fatalf("k%d = %#v", i, doc[fmt.Sprintf("k%d", i)])
		}
	}
}

func TestSetValueKeepsOtherKeys(t *testing.T) {
	store := newTestStore()
	game := t.TempDir()

	if err := store.SetValue(game, "jetpack", "a", models.NumberValue(1)); err != nil {
		t.Fatal(err)
	}
	if err := store.SetValue(game, "jetpack", "b", models.NumberValue(2)); err != nil {
		t.Fatal(err)
	}
	doc, _ := store.Get(game, "jetpack")
	want := models.ModConfig{"a": models.NumberValue(1), "b": models.NumberValue(2)}
	if !doc.Equal(want) {
		t.Fatalf("doc = %v", doc)
	}
}

func TestSetPathCreatesMappings(t *testing.T) {
	store := newTestStore()
	game := t.TempDir()

	if err := store.SetPath(game, "jetpack", []string{"physics", "gravity"}, models.NumberValue(9.8)); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	doc, _ := store.Get(game, "jetpack")
	want := models.ModConfig{"physics": models.MapValue{"gravity": models.NumberValue(9.8)}}
	if !doc.Equal(want) {
		t.Fatalf("doc = %#v", doc)
	}

	err := store.SetPath(game, "jetpack", []string{"physics", "gravity", "x"}, models.NumberValue(1))
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("traversing a scalar: err = %v", err)
	}
}

// aliasBomb builds a document whose aliases expand to 9^levels leaves.
func aliasBomb(levels int) string {
	var b strings.Builder
	b.WriteString("l0: &l0 [x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i < levels; i++ {
		prev := fmt.Sprintf("*l%d", i-1)
		fmt.Fprintf(&b, "l%d: &l%d [%s]\n", i, i, strings.Repeat(prev+", ", 8)+prev)
	}
	return b.String()
}

func TestCorruptDocumentIsRecoverable(t *testing.T) {
	store := newTestStore()
	game := t.TempDir()
	path, _ := store.Path(game, "jetpack")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}

	corrupt := []string{
		"speed: [1, 2\n",
		"- just\n- a list\n",
		"a: &x [*x]\n",
		"a: &x {b: *x}\n",
		aliasBomb(9),
	}
	for _, content := range corrupt {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		doc, err := store.Get(game, "jetpack")
		if !errors.Is(err, apperrors.ErrConfigCorrupt) || !apperrors.IsRecoverable(err) {
			t.Fatalf("Get(%q) err = %v, want recoverable ErrConfigCorrupt", content, err)
		}
		if doc == nil || len(doc) != 0 {
			t.Fatalf("Get(%q) doc = %v, want empty", content, doc)
		}
	}

	if err := store.SetValue(game, "jetpack", "speed", models.NumberValue(4)); err != nil {
		t.Fatalf("SetValue over corrupt doc: %v", err)
	}
	doc, err := store.Get(game, "jetpack")
	if err != nil || !doc.Equal(models.ModConfig{"speed": models.NumberValue(4)}) {
		t.Fatalf("after repair: %v, %v", doc, err)
	}
}

func TestListAndDelete(t *testing.T) {
	store := newTestStore()
	game := t.TempDir()

	ids, err := store.List(game)
	if err != nil || len(ids) != 0 {
		t.Fatalf("List on fresh game = %v, %v", ids, err)
	}

	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := store.Save(game, id, models.ModConfig{"x": models.BoolValue(true)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(Dir(game), "notes.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	ids, err = store.List(game)
	if err != nil || fmt.Sprint(ids) != "[alpha mid zeta]" {
		t.Fatalf("List = %v, %v", ids, err)
	}

	for i := 0; i < 2; i++ {
		if err := store.Delete(game, "mid"); err != nil {
			t.Fatalf("Delete #%d: %v", i, err)
		}
	}
	ids, _ = store.List(game)
	if fmt.Sprint(ids) != "[alpha zeta]" {
		t.Fatalf("List after delete = %v", ids)
	}
}

func TestConfigSurvivesModRemoval(t *testing.T) {
	store := newTestStore()
	game := t.TempDir()
	modsDir := filepath.Join(game, "Silk", "Mods")
	if err := os.MkdirAll(modsDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modsDir, "jetpack.dll"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(game, "jetpack", sampleDoc()); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(modsDir, "jetpack.dll")); err != nil {
		t.Fatal(err)
	}

	doc, err := store.Get(game, "jetpack")
	if err != nil || !doc.Equal(sampleDoc()) {
		t.Fatalf("config lost with mod file: %v, %v", doc, err)
	}
}

func TestRejectsUnsafeModIDs(t *testing.T) {
	store := newTestStore()
	game := t.TempDir()
	for _, id := range []string{"", " ", "..", "../escape", `a\b`, "a/b"} {
		if _, err := store.Get(game, id); !errors.Is(err, apperrors.ErrInvalidArgument) {
			t.Errorf("Get(%q) err = %v, want ErrInvalidArgument", id, err)
		}
		if err := store.Save(game, id, models.ModConfig{}); !errors.Is(err, apperrors.ErrInvalidArgument) {
			t.Errorf("Save(%q) err = %v, want ErrInvalidArgument", id, err)
		}
	}
	if err := store.SetValue(game, "jetpack", "k", nil); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("nil value err = %v", err)
	}
}

func TestWritesWaitForExclusiveRootHolder(t *testing.T) {
	locks := &lockmap.Map{}
	store := NewStore(locks, utils.NewDiscardLogger())
	game := t.TempDir()

	// Writers for different mods only share the root.
	if err := store.SetValue(game, "a", "x", models.NumberValue(1)); err != nil {
		t.Fatal(err)
	}

	unlock := locks.Lock(lockmap.PathKey(Root(game)))
	done := make(chan error, 1)
	go func() {
		done <- store.SetValue(game, "jetpack", "speed", models.NumberValue(9))
	}()

	select {
	case err := <-done:
		t.Fatalf("write finished while root was held: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	if _, err := os.Stat(filepath.Join(Dir(game), "jetpack.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("config written while root was held: %v", err)
	}

	unlock()
	if err := <-done; err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	doc, err := store.Get(game, "jetpack")
	if err != nil || !models.Equal(doc["speed"], models.NumberValue(9)) {
		t.Fatalf("Get = %#v, %v", doc, err)
	}
}
