package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

type call struct {
	dir  string
	name string
	args []string
}

func recorder(calls *[]call, err error) Runner {
	return func(dir, name string, args ...string) error {
		*calls = append(*calls, call{dir, name, args})
		return err
	}
}

func TestLaunchSteam(t *testing.T) {
	tests := []struct {
		goos string
		want call
	}{
		{"linux", call{"", "xdg-open", []string{"steam://rungameid/1329500"}}},
		{"darwin", call{"", "open", []string{"steam://rungameid/1329500"}}},
		{"windows", call{"", "cmd", []string{"/C", "start", "", "steam://rungameid/1329500"}}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			var calls []call
			l := NewFor(tt.goos, recorder(&calls, nil), utils.NewDiscardLogger())
			if err := l.Launch("/ignored", models.LaunchSteam); err != nil {
				t.Fatalf("Launch: %v", err)
			}
			if len(calls) != 1 || !reflect.DeepEqual(calls[0], tt.want) {
				t.Fatalf("calls = %+v, want %+v", calls, tt.want)
			}
		})
	}
}

func TestLaunchExecutable(t *testing.T) {
	game := t.TempDir()
	var calls []call
	l := NewFor("linux", recorder(&calls, nil), utils.NewDiscardLogger())

	if err := l.Launch(game, models.LaunchExecutable); !errors.Is(err, apperrors.ErrPathNotFound) {
		t.Fatalf("err = %v, want ErrPathNotFound", err)
	}
	if len(calls) != 0 {
		t.Fatalf("process started without executable: %+v", calls)
	}

	exe := filepath.Join(game, ExecutableName)
	if err := os.WriteFile(exe, []byte("bin"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := l.Launch(game, models.LaunchExecutable); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if len(calls) != 1 || calls[0].name != exe || calls[0].dir != game {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestLaunchRunnerFailure(t *testing.T) {
	var calls []call
	l := NewFor("linux", recorder(&calls, errors.New("no opener")), utils.NewDiscardLogger())
	if err := l.Launch("", models.LaunchSteam); !errors.Is(err, apperrors.ErrFileSystem) {
		t.Fatalf("err = %v, want ErrFileSystem", err)
	}
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod(""); err != nil || m != models.LaunchSteam {
		t.Fatalf("ParseMethod(\"\") = %q, %v", m, err)
	}
	if m, err := ParseMethod("executable"); err != nil || m != models.LaunchExecutable {
		t.Fatalf("ParseMethod(executable) = %q, %v", m, err)
	}
	if _, err := ParseMethod("proton"); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if err := NewFor("linux", nil, nil).Launch("", models.LaunchMethod("proton")); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("Launch err = %v, want ErrInvalidArgument", err)
	}
}
