package mods

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/lockmap"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

const testBase = "https://silk.example"

type fakeFetcher struct {
	mu    sync.Mutex
	files map[string][]byte // url -> payload
	calls int
}

func (f *fakeFetcher) BaseURL() string { return testBase }

func (f *fakeFetcher) ResolveURL(p string) string {
	if strings.HasPrefix(p, "http") {
		return p
	}
	return testBase + p
}

func (f *fakeFetcher) Download(ctx context.Context, url, dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	data, ok := f.files[url]
	if !ok {
		return "", apperrors.NewNetworkError("HTTP 404", nil)
	}
	tmp, err := os.CreateTemp(dir, ".entwine-download-*.tmp")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	_, err = tmp.Write(data)
	return tmp.Name(), err
}

func newTestInstaller(files map[string][]byte) (*Installer, *fakeFetcher) {
	f := &fakeFetcher{files: files}
	logger := utils.NewDiscardLogger()
	return NewInstaller(NewScanner(logger), f, &lockmap.Map{}, logger), f
}

func jetpack() models.Mod {
	return models.Mod{
		ID:             "m1",
		Name:           "Jetpack",
		Description:    "Fly around",
		Version:        "1.2.0",
		Author:         "abby",
		FileName:       "Jetpack.dll",
		FilePath:       "/mods/Jetpack.dll",
		IconPath:       "/icons/jetpack.png",
		MinSilkVersion: "0.5.0",
		MaxSilkVersion: "0.6.1",
	}
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func byFileName(mods []models.InstalledMod) map[string]models.InstalledMod {
	out := make(map[string]models.InstalledMod, len(mods))
	for _, m := range mods {
		out[m.FileName] = m
	}
	return out
}

func TestScanEmptyState(t *testing.T) {
	s := NewScanner(utils.NewDiscardLogger())

	for _, dir := range []string{t.TempDir(), filepath.Join(t.TempDir(), "missing")} {
		mods, err := s.Scan(dir)
		if err != nil {
			t.Fatalf("Scan(%s): %v", dir, err)
		}
		if mods == nil || len(mods) != 0 {
			t.Fatalf("Scan(%s) = %#v, want empty non-nil slice", dir, mods)
		}
	}
}

func TestScanRecognizesForms(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Jetpack.dll"), "a")
	touch(t, filepath.Join(dir, "Grapple.dll.disabled"), "b")
	touch(t, filepath.Join(dir, "BigPack", "pack.dll"), "c")
	touch(t, filepath.Join(dir, "OldPack.disabled", "pack.dll"), "d")
	touch(t, filepath.Join(dir, "notes.txt"), "ignored")
	touch(t, filepath.Join(dir, ".hidden.dll"), "ignored")
	touch(t, filepath.Join(dir, MetadataFileName), `{
	  "Jetpack": {"id":"m1","name":"Jetpack","fileName":"Jetpack.dll","enabled":true,
	              "version":"1.2.0","author":"abby","description":"Fly","iconPath":"https://x/j.png"}
	}`)

	mods, err := NewScanner(utils.NewDiscardLogger()).Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	got := byFileName(mods)
	if len(got) != 4 {
		t.Fatalf("Scan returned %d mods: %+v", len(got), mods)
	}

	if m := got["Jetpack.dll"]; !m.Enabled || m.ID != "m1" || m.Version != "1.2.0" || m.Author != "abby" {
		t.Errorf("Jetpack = %+v", m)
	}
	if m := got["Grapple.dll.disabled"]; m.Enabled || m.ID != "Grapple" || m.Version != "Unknown" ||
		m.Author != "Unknown" || m.Description != "Locally installed mod" {
		t.Errorf("Grapple = %+v", m)
	}
	if m := got["BigPack"]; !m.Enabled || m.Name != "BigPack" {
		t.Errorf("BigPack = %+v", m)
	}
	if m := got["OldPack.disabled"]; m.Enabled || m.ID != "OldPack" {
		t.Errorf("OldPack = %+v", m)
	}
}

func TestScanToleratesCorruptMetadata(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Jetpack.dll"), "a")
	touch(t, filepath.Join(dir, MetadataFileName), "{not json")

	mods, err := NewScanner(utils.NewDiscardLogger()).Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(mods) != 1 || mods[0].Version != "Unknown" {
		t.Fatalf("Scan = %+v", mods)
	}
}

func TestInstallDLL(t *testing.T) {
	inst, _ := newTestInstaller(map[string][]byte{testBase + "/mods/Jetpack.dll": []byte("MZ jetpack")})
	dir := filepath.Join(t.TempDir(), "Silk", "Mods")

	if err := inst.Install(context.Background(), jetpack(), dir, InstallOptions{}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Jetpack.dll"))
	if err != nil || string(data) != "MZ jetpack" {
		t.Fatalf("installed file = %q, %v", data, err)
	}

	mods, err := inst.scanner.Scan(dir)
	if err != nil || len(mods) != 1 {
		t.Fatalf("Scan = %+v, %v", mods, err)
	}
	m := mods[0]
	if m.ID != "m1" || m.Name != "Jetpack" || !m.Enabled || m.IconPath != testBase+"/icons/jetpack.png" {
		t.Fatalf("installed record = %+v", m)
	}

	info, found, err := inst.scanner.VersionInfo(dir, "m1")
	if err != nil || !found {
		t.Fatalf("VersionInfo: found=%v err=%v", found, err)
	}
	if info.MinSilkVersion == nil || *info.MinSilkVersion != "0.5.0" || *info.MaxSilkVersion != "0.6.1" {
		t.Fatalf("VersionInfo = %+v", info)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestInstallArchiveBecomesFolder(t *testing.T) {
	mod := jetpack()
	mod.FileName = "BigPack.silkmod"
	mod.FilePath = "/mods/BigPack.silkmod"
	payload := zipBytes(t, map[string]string{"BigPack.dll": "code", "assets/tex.png": "png"})
	inst, _ := newTestInstaller(map[string][]byte{testBase + mod.FilePath: payload})
	dir := t.TempDir()

	if err := inst.Install(context.Background(), mod, dir, InstallOptions{}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !utils.IsFile(filepath.Join(dir, "BigPack", "assets", "tex.png")) {
		t.Fatal("archive not extracted into BigPack/")
	}

	mods, _ := inst.scanner.Scan(dir)
	if len(mods) != 1 || mods[0].FileName != "BigPack" || mods[0].ID != "m1" {
		t.Fatalf("Scan = %+v", mods)
	}
}

func TestInstallCollisionLeavesExistingFile(t *testing.T) {
	dir := t.TempDir()
	original := []byte("original bytes \x00\x01")
	if err := os.WriteFile(filepath.Join(dir, "Jetpack.dll.disabled"), original, 0644); err != nil {
		t.Fatal(err)
	}
	inst, fetcher := newTestInstaller(map[string][]byte{testBase + "/mods/Jetpack.dll": []byte("new")})

	err := inst.Install(context.Background(), jetpack(), dir, InstallOptions{})
	if !errors.Is(err, apperrors.ErrAlreadyInstalled) {
		t.Fatalf("err = %v, want ErrAlreadyInstalled", err)
	}
	if fetcher.calls != 0 {
		t.Fatal("download attempted despite collision")
	}

	data, _ := os.ReadFile(filepath.Join(dir, "Jetpack.dll.disabled"))
	if !bytes.Equal(data, original) {
		t.Fatalf("existing file modified: %q", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("directory changed: %v", entries)
	}
}

func TestInstallFailureLeavesNoArtifact(t *testing.T) {
	dir := t.TempDir()

	inst, _ := newTestInstaller(map[string][]byte{})
	if err := inst.Install(context.Background(), jetpack(), dir, InstallOptions{}); !errors.Is(err, apperrors.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}

	mod := jetpack()
	mod.FileName = "Broken.zip"
	mod.FilePath = "/mods/Broken.zip"
	inst, _ = newTestInstaller(map[string][]byte{testBase + mod.FilePath: []byte("not a zip")})
	if err := inst.Install(context.Background(), mod, dir, InstallOptions{}); !errors.Is(err, apperrors.ErrFileSystem) {
		t.Fatalf("err = %v, want ErrFileSystem", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("artifacts left behind: %v", entries)
	}
}

func TestInstallRejectsBadNames(t *testing.T) {
	inst, _ := newTestInstaller(nil)
	for _, name := range []string{"", "../evil.dll", ".hidden.dll", "readme.txt", "Jetpack.dll.disabled"} {
		mod := jetpack()
		mod.FileName = name
		if err := inst.Install(context.Background(), mod, t.TempDir(), InstallOptions{}); !errors.Is(err, apperrors.ErrInvalidArgument) {
			t.Errorf("Install(%q) err = %v, want ErrInvalidArgument", name, err)
		}
	}
}

func TestInstallRequireCompatible(t *testing.T) {
	inst, fetcher := newTestInstaller(map[string][]byte{testBase + "/mods/Jetpack.dll": []byte("x")})
	dir := t.TempDir()

	err := inst.Install(context.Background(), jetpack(), dir, InstallOptions{RequireCompatible: true, SilkVersion: "0.7.0"})
	if !errors.Is(err, apperrors.ErrIncompatibleVersion) {
		t.Fatalf("err = %v, want ErrIncompatibleVersion", err)
	}
	if fetcher.calls != 0 {
		t.Fatal("download attempted for incompatible mod")
	}

	if err := inst.Install(context.Background(), jetpack(), dir, InstallOptions{RequireCompatible: true, SilkVersion: "0.6.0"}); err != nil {
		t.Fatalf("compatible install: %v", err)
	}
}

func TestConcurrentInstallOfSameMod(t *testing.T) {
	inst, _ := newTestInstaller(map[string][]byte{testBase + "/mods/Jetpack.dll": []byte("x")})
	dir := t.TempDir()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = inst.Install(context.Background(), jetpack(), dir, InstallOptions{})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, apperrors.ErrAlreadyInstalled):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d installs succeeded, want exactly 1", ok)
	}
}

func TestToggleIdempotent(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Jetpack.dll"), "x")
	touch(t, filepath.Join(dir, "BigPack", "a.dll"), "y")
	tg := NewToggler(&lockmap.Map{}, utils.NewDiscardLogger())

	for i := 0; i < 2; i++ {
		if err := tg.Toggle(dir, "Jetpack.dll", false); err != nil {
			t.Fatalf("disable #%d: %v", i, err)
		}
	}
	if !utils.IsFile(filepath.Join(dir, "Jetpack.dll.disabled")) || utils.Exists(filepath.Join(dir, "Jetpack.dll")) {
		t.Fatal("Jetpack not disabled")
	}

	for i := 0; i < 2; i++ {
		if err := tg.Toggle(dir, "Jetpack.dll.disabled", true); err != nil {
			t.Fatalf("enable #%d: %v", i, err)
		}
	}
	if !utils.IsFile(filepath.Join(dir, "Jetpack.dll")) {
		t.Fatal("Jetpack not enabled")
	}

	if err := tg.Toggle(dir, "BigPack", false); err != nil {
		t.Fatalf("disable folder: %v", err)
	}
	mods, _ := NewScanner(utils.NewDiscardLogger()).Scan(dir)
	if m := byFileName(mods)["BigPack.disabled"]; m.Enabled || m.FileName == "" {
		t.Fatalf("folder state = %+v", m)
	}
}

func TestToggleErrors(t *testing.T) {
	dir := t.TempDir()
	tg := NewToggler(nil, utils.NewDiscardLogger())

	if err := tg.Toggle(dir, "Missing.dll", true); !errors.Is(err, apperrors.ErrPathNotFound) {
		t.Fatalf("missing: err = %v, want ErrPathNotFound", err)
	}

	touch(t, filepath.Join(dir, "Dup.dll"), "a")
	touch(t, filepath.Join(dir, "Dup.dll.disabled"), "b")
	if err := tg.Toggle(dir, "Dup.dll", false); !errors.Is(err, apperrors.ErrAlreadyInstalled) {
		t.Fatalf("both forms: err = %v, want ErrAlreadyInstalled", err)
	}
	if err := tg.Toggle(dir, "../Dup.dll", true); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("path name: err = %v, want ErrInvalidArgument", err)
	}
}

func TestUninstall(t *testing.T) {
	inst, _ := newTestInstaller(map[string][]byte{testBase + "/mods/Jetpack.dll": []byte("x")})
	dir := t.TempDir()
	if err := inst.Install(context.Background(), jetpack(), dir, InstallOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := NewToggler(inst.locks, nil).Toggle(dir, "Jetpack.dll", false); err != nil {
		t.Fatal(err)
	}

	if err := inst.Uninstall(dir, "Jetpack.dll"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	mods, _ := inst.scanner.Scan(dir)
	if len(mods) != 0 {
		t.Fatalf("mods after uninstall: %+v", mods)
	}
	meta, err := LoadMetadata(dir)
	if err != nil || len(meta) != 0 {
		t.Fatalf("metadata after uninstall: %v, %v", meta, err)
	}

	if err := inst.Uninstall(dir, "Jetpack.dll"); !errors.Is(err, apperrors.ErrPathNotFound) {
		t.Fatalf("second Uninstall err = %v, want ErrPathNotFound", err)
	}
}

func TestNaming(t *testing.T) {
	tests := []struct {
		in, canonical, base, installed string
	}{
		{"Jetpack.dll", "Jetpack.dll", "Jetpack", "Jetpack.dll"},
		{"Jetpack.dll.disabled", "Jetpack.dll", "Jetpack", "Jetpack.dll.disabled"},
		{"Pack.zip", "Pack.zip", "Pack", "Pack"},
		{"Pack.SILKMOD", "Pack.SILKMOD", "Pack", "Pack"},
		{"Pack.disabled", "Pack", "Pack", "Pack.disabled"},
	}
	for _, tt := range tests {
		if got := CanonicalName(tt.in); got != tt.canonical {
			t.Errorf("CanonicalName(%q) = %q, want %q", tt.in, got, tt.canonical)
		}
		if got := BaseName(tt.in); got != tt.base {
			t.Errorf("BaseName(%q) = %q, want %q", tt.in, got, tt.base)
		}
		if got := InstalledName(tt.in); got != tt.installed {
			t.Errorf("InstalledName(%q) = %q, want %q", tt.in, got, tt.installed)
		}
	}

	keys := []string{LockKey("/a/mods"), LockKey("/a/mods/"), LockKey("/a/./mods")}
	sort.Strings(keys)
	if keys[0] != keys[2] {
		t.Fatalf("lock keys differ for the same path: %q", keys)
	}
}
