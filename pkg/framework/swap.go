package framework

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/huanfeng/entwine-cli/pkg/utils"
)

const (
	workDirName     = ".entwine"
	stagingPrefix   = "staging-"
	journalFileName = "journal.yaml"

	newDirName     = "new"
	backupDirName  = "backup"
	discardDirName = "discard"

	phaseSwapping  = "swapping"
	phaseCommitted = "committed"
)

// journal records an in-flight swap so an interrupted install can be undone
// (before commit) or finished (after commit).
type journal struct {
	Framework string        `yaml:"framework"`
	Version   string        `yaml:"version"`
	Phase     string        `yaml:"phase"`
	Roots     []journalRoot `yaml:"roots"`
	Preserved []string      `yaml:"preserved,omitempty"`
}

type journalRoot struct {
	Name     string `yaml:"name"`
	HadPrior bool   `yaml:"had_prior"`
	// Remove marks a root that is taken away without a replacement.
	Remove bool `yaml:"remove,omitempty"`
}

// rename is replaced in tests to inject failures.
var rename = os.Rename

// staging is one install's scratch area inside the game directory.
type staging struct {
	gamePath string
	dir      string
}

func workDir(gamePath string) string {
	return filepath.Join(gamePath, workDirName)
}

// PendingRecovery reports whether gamePath holds leftovers of an interrupted
// install.
func PendingRecovery(gamePath string) bool {
	return utils.IsDir(workDir(gamePath))
}

func newStaging(gamePath string) (*staging, error) {
	base := workDir(gamePath)
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(base, stagingPrefix+"*")
	if err != nil {
		return nil, err
	}
	return &staging{gamePath: gamePath, dir: dir}, nil
}

func (s *staging) newTree() string     { return filepath.Join(s.dir, newDirName) }
func (s *staging) journalPath() string { return filepath.Join(s.dir, journalFileName) }

func (s *staging) in(area, rel string) string {
	return filepath.Join(s.dir, area, filepath.FromSlash(rel))
}

func (s *staging) live(rel string) string {
	return filepath.Join(s.gamePath, filepath.FromSlash(rel))
}

func (s *staging) writeJournal(j *journal) error {
	data, err := yaml.Marshal(j)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(s.journalPath(), data, 0644)
}

func (s *staging) readJournal() (*journal, error) {
	data, err := os.ReadFile(s.journalPath())
	if err != nil {
		return nil, err
	}
	var j journal
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse swap journal: %w", err)
	}
	return &j, nil
}

func (s *staging) remove() error {
	return os.RemoveAll(s.dir)
}

// swap moves the staged roots into the game directory in journal order. On
// failure everything already moved is put back.
func (s *staging) swap(j *journal) error {
	j.Phase = phaseSwapping
	if err := s.writeJournal(j); err != nil {
		return fmt.Errorf("write swap journal: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(s.dir, backupDirName), 0755); err != nil {
		return err
	}

	for _, root := range j.Roots {
		if root.HadPrior {
			if err := rename(s.live(root.Name), s.in(backupDirName, root.Name)); err != nil {
				return s.abort(j, fmt.Errorf("back up %s: %w", root.Name, err))
			}
		}
		if root.Remove {
			continue
		}
		if err := rename(s.in(newDirName, root.Name), s.live(root.Name)); err != nil {
			return s.abort(j, fmt.Errorf("install %s: %w", root.Name, err))
		}
	}

	j.Phase = phaseCommitted
	if err := s.writeJournal(j); err != nil {
		j.Phase = phaseSwapping
		return s.abort(j, fmt.Errorf("commit swap journal: %w", err))
	}

	return s.carryPreserved(j)
}

func (s *staging) abort(j *journal, cause error) error {
	if err := s.rollback(j); err != nil {
		return fmt.Errorf("%w (rollback failed: %v)", cause, err)
	}
	return cause
}

// rollback restores every root to its pre-swap state. It inspects the
// filesystem rather than trusting progress flags, so it is safe after a crash
// at any point of the swap.
func (s *staging) rollback(j *journal) error {
	var errs []error
	for i := len(j.Roots) - 1; i >= 0; i-- {
		root := j.Roots[i]
		staged := s.in(newDirName, root.Name)
		backup := s.in(backupDirName, root.Name)
		live := s.live(root.Name)

		movedIn := !utils.Exists(staged) && utils.Exists(live)
		backedUp := utils.Exists(backup)

		if movedIn && (backedUp || !root.HadPrior) {
			if err := s.discard(root.Name); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if backedUp {
			if err := rename(backup, live); err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", root.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// carryPreserved moves user subtrees from the backed up roots into the newly
// installed ones, replacing whatever the archive shipped at those paths.
func (s *staging) carryPreserved(j *journal) error {
	var errs []error
	for _, rel := range j.Preserved {
		backup := s.in(backupDirName, rel)
		if !utils.Exists(backup) {
			continue
		}
		live := s.live(rel)
		if utils.Exists(live) {
			if err := s.discard(rel); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if err := os.MkdirAll(filepath.Dir(live), 0755); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := rename(backup, live); err != nil {
			errs = append(errs, fmt.Errorf("carry over %s: %w", rel, err))
		}
	}
	return errors.Join(errs...)
}

// pending reports whether the staging area still holds data that belongs in
// the game directory: a backed up root of a swap that never committed, or a
// user subtree that was not carried over. Such an area is left for recovery.
func (s *staging) pending(j *journal) bool {
	if j.Phase != phaseCommitted {
		for _, root := range j.Roots {
			if utils.Exists(s.in(backupDirName, root.Name)) {
				return true
			}
		}
	}
	for _, rel := range j.Preserved {
		if utils.Exists(s.in(backupDirName, rel)) {
			return true
		}
	}
	return false
}

// discard moves a live path into the staging area so it is deleted together
// with the staging directory.
func (s *staging) discard(rel string) error {
	target := s.in(discardDirName, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if utils.Exists(target) {
		if err := os.RemoveAll(target); err != nil {
			return err
		}
	}
	if err := rename(s.live(rel), target); err != nil {
		return fmt.Errorf("discard %s: %w", rel, err)
	}
	return nil
}

// recoverStaging settles every staging directory left in gamePath by an
// interrupted install and returns how many were found.
func recoverStaging(gamePath string) (int, error) {
	entries, err := os.ReadDir(workDir(gamePath))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var errs []error
	found := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), stagingPrefix) {
			continue
		}
		found++
		s := &staging{gamePath: gamePath, dir: filepath.Join(workDir(gamePath), entry.Name())}

		j, err := s.readJournal()
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Interrupted before the swap began; nothing live was touched.
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		case j.Phase == phaseCommitted:
			if err := s.carryPreserved(j); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
				continue
			}
		default:
			if err := s.rollback(j); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
				continue
			}
		}

		if err := s.remove(); err != nil {
			errs = append(errs, err)
		}
	}

	if found > 0 {
		_ = os.Remove(workDir(gamePath)) // only succeeds when empty
	}
	return found, errors.Join(errs...)
}
