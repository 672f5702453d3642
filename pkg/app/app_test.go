package app

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/huanfeng/entwine-cli/internal/config"
	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/mods"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

func silkZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"winhttp.dll":         "proxy",
		"doorstop_config.ini": "[General]",
		"Silk/Silk.dll":       "loader",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func iconPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	zipData := silkZip(t)
	icon := iconPNG(t)

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/api/mods", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.Mod{{
			ID:             "speedy",
			Name:           "Speedy",
			Version:        "1.0.0",
			Author:         "abby",
			FileName:       "Speedy.dll",
			FilePath:       "/files/Speedy.dll",
			MinSilkVersion: "1.0.0",
		}})
	})
	mux.HandleFunc("/files/Speedy.dll", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("MZ speedy"))
	})
	mux.HandleFunc("/default-mod.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(icon)
	})
	mux.HandleFunc("/silk-version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "v1.2.0")
	})
	mux.HandleFunc("/gh/repos/SilkModding/Silk/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"tag_name":"v1.2.0","assets":[{"name":"Silk-v1.2.0.zip","browser_download_url":"%s/dl/silk.zip"}]}]`, srv.URL)
	})
	mux.HandleFunc("/dl/silk.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipData)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newApp(t *testing.T, srv *httptest.Server, opts ...Option) *App {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Registry.BaseURL = srv.URL
	cfg.Registry.CatalogURL = srv.URL + "/api/mods"
	cfg.Registry.GitHubAPI = srv.URL + "/gh"
	cfg.Registry.SilkVersionURL = srv.URL + "/silk-version"
	cfg.Paths.StateFile = filepath.Join(dir, "state.yaml")
	cfg.Paths.CacheDir = filepath.Join(dir, "cache")

	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithLogger(utils.NewDiscardLogger()),
		WithDetector(nil),
	}, opts...)
	a, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func makeGame(t *testing.T) string {
	t.Helper()
	game := t.TempDir()
	if err := os.WriteFile(filepath.Join(game, "SpiderHeck.exe"), []byte("bin"), 0755); err != nil {
		t.Fatal(err)
	}
	return game
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	var launched []string
	a := newApp(t, srv, WithRunner(func(dir, name string, args ...string) error {
		launched = append(launched, name)
		return nil
	}))

	if st := a.GetAppStatus(ctx); st.GamePath != nil {
		t.Fatalf("fresh status = %+v", st)
	}
	if _, err := a.GamePath(); !errors.Is(err, apperrors.ErrInvalidGameDirectory) {
		t.Fatalf("GamePath err = %v", err)
	}

	game := makeGame(t)
	if _, err := a.SetGamePath(ctx, game); err != nil {
		t.Fatalf("SetGamePath: %v", err)
	}
	modsPath, err := a.ModsPath()
	if err != nil {
		t.Fatal(err)
	}

	if err := a.InstallSilk(ctx, game); err != nil {
		t.Fatalf("InstallSilk: %v", err)
	}
	if v, err := a.GetSilkVersion(game); err != nil || v != "1.2.0" {
		t.Fatalf("GetSilkVersion = %q, %v", v, err)
	}
	if !a.GetAppStatus(ctx).SilkInstalled {
		t.Fatal("status does not report Silk")
	}
	if up, err := a.CheckForSilkUpdates(ctx, game); err != nil || up != nil {
		t.Fatalf("CheckForSilkUpdates = %+v, %v", up, err)
	}

	mod, err := a.FindMod(ctx, "speedy", false)
	if err != nil {
		t.Fatalf("FindMod: %v", err)
	}
	if err := a.InstallMod(ctx, mod, modsPath, mods.InstallOptions{}); err != nil {
		t.Fatalf("InstallMod: %v", err)
	}
	installed, err := a.GetInstalledMods(modsPath)
	if err != nil || len(installed) != 1 || installed[0].FileName != "Speedy.dll" || !installed[0].Enabled {
		t.Fatalf("GetInstalledMods = %+v, %v", installed, err)
	}
	if ok, err := a.CheckModCompatibility(game, modsPath, "speedy"); err != nil || !ok {
		t.Fatalf("CheckModCompatibility = %v, %v", ok, err)
	}

	if err := a.ToggleMod(modsPath, "Speedy.dll", false); err != nil {
		t.Fatalf("ToggleMod: %v", err)
	}
	if installed, _ := a.GetInstalledMods(modsPath); installed[0].Enabled {
		t.Fatal("mod still enabled")
	}

	if err := a.SetModConfigValue(game, "speedy", "speed", models.NumberValue(3)); err != nil {
		t.Fatalf("SetModConfigValue: %v", err)
	}
	if err := a.UninstallMod(modsPath, "Speedy.dll"); err != nil {
		t.Fatalf("UninstallMod: %v", err)
	}
	doc, err := a.GetModConfig(game, "speedy")
	if err != nil || !models.Equal(doc["speed"], models.NumberValue(3)) {
		t.Fatalf("config after uninstall = %v, %v", doc, err)
	}

	icon, err := a.ModIcon(ctx, mod)
	if err != nil || !utils.IsFile(icon) {
		t.Fatalf("ModIcon = %q, %v", icon, err)
	}

	if err := a.Launch(game); err != nil || len(launched) != 1 {
		t.Fatalf("Launch = %v, runs %v", err, launched)
	}

	if err := a.UninstallSilk(ctx, game); err != nil {
		t.Fatalf("UninstallSilk: %v", err)
	}
	if _, err := a.GetSilkVersion(game); !errors.Is(err, apperrors.ErrNotInstalled) {
		t.Fatalf("version after uninstall err = %v", err)
	}
	if a.IsBepInExInstalled(game) {
		t.Fatal("BepInEx reported installed")
	}
}

func TestFetchModsOffline(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	a := newApp(t, srv)

	if _, err := a.FetchMods(ctx, true); !errors.Is(err, apperrors.ErrPathNotFound) {
		t.Fatalf("offline without cache err = %v", err)
	}
	online, err := a.FetchMods(ctx, false)
	if err != nil || len(online) != 1 {
		t.Fatalf("FetchMods = %v, %v", online, err)
	}

	srv.Close()
	if _, err := a.FetchMods(ctx, false); !errors.Is(err, apperrors.ErrNetwork) {
		t.Fatalf("online after shutdown err = %v, want ErrNetwork", err)
	}
	offline, err := a.FetchMods(ctx, true)
	if err != nil || len(offline) != 1 || offline[0].ID != "speedy" {
		t.Fatalf("offline = %v, %v", offline, err)
	}
}

func TestDetectionFillsEmptyStore(t *testing.T) {
	srv := newServer(t)
	detected := makeGame(t)
	a := newApp(t, srv, WithDetector(func() (string, bool) { return detected, true }))

	st := a.GetAppStatus(context.Background())
	if st.GamePath == nil || *st.GamePath != detected {
		t.Fatalf("detected path not used: %+v", st)
	}
	if utils.Exists(a.Config().Paths.StateFile) {
		t.Fatal("detected path persisted")
	}
}
