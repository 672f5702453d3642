package gamepath

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// GameFolder is the game's directory name inside a Steam library.
const GameFolder = "SpiderHeck"

// SteamLibraries lists the common Steam library "steamapps/common" folders
// for goos.
func SteamLibraries(goos, home string) []string {
	var paths []string

	switch goos {
	case "linux":
		if home != "" {
			paths = append(paths,
				filepath.Join(home, ".steam", "steam", "steamapps", "common"),
				filepath.Join(home, ".local", "share", "Steam", "steamapps", "common"),
				filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".steam", "steam", "steamapps", "common"),
				filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam", "steamapps", "common"),
			)
		}
		for _, pattern := range []string{"/run/media/*/*", "/media/*/*"} {
			drives, _ := filepath.Glob(pattern)
			for _, drive := range drives {
				paths = append(paths,
					filepath.Join(drive, "SteamLibrary", "steamapps", "common"),
					filepath.Join(drive, "steamapps", "common"),
				)
			}
		}
	case "windows":
		paths = append(paths,
			`C:\Program Files (x86)\Steam\steamapps\common`,
			`C:\Program Files\Steam\steamapps\common`,
		)
		for letter := 'D'; letter <= 'Z'; letter++ {
			paths = append(paths,
				fmt.Sprintf(`%c:\SteamLibrary\steamapps\common`, letter),
				fmt.Sprintf(`%c:\Steam\steamapps\common`, letter),
			)
		}
	case "darwin":
		if home != "" {
			paths = append(paths, filepath.Join(home, "Library", "Application Support", "Steam", "steamapps", "common"))
		}
	}

	return paths
}

// DetectIn returns the first valid game directory found in libraries.
func DetectIn(libraries []string) (string, bool) {
	for _, lib := range libraries {
		if path, err := Validate(filepath.Join(lib, GameFolder)); err == nil {
			return path, true
		}
	}
	return "", false
}

// Detect searches the platform's usual Steam libraries.
func Detect() (string, bool) {
	home, _ := os.UserHomeDir()
	return DetectIn(SteamLibraries(runtime.GOOS, home))
}
