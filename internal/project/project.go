// Package project saves and loads full sequencer snapshots to timestamped
// JSON files under ~/.config/stepseq/projects/<name>/, mirroring the
// teacher's own project layout.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rbwalton/stepseq/sequencer"
)

// SaveInfo describes one saved snapshot file, for listing.
type SaveInfo struct {
	ID        string // stable ID independent of filename/timestamp
	Filename  string
	Name      string
	Timestamp time.Time
}

// file is the on-disk representation: the manager snapshot plus an ID
// that survives a rename, so references to "this save" don't depend on
// the timestamped filename.
type file struct {
	ID       string             `json:"id"`
	Snapshot sequencer.Snapshot `json:"snapshot"`
}

// Dir returns the projects directory root.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, ".config", "stepseq", "projects"), nil
}

// ProjectDir returns the path to a specific project's save directory.
func ProjectDir(name string) (string, error) {
	base, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, name), nil
}

// ListProjects returns all project folder names, sorted.
func ListProjects() ([]string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "list projects")
	}
	var projects []string
	for _, e := range entries {
		if e.IsDir() {
			projects = append(projects, e.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// ListSaves returns timestamped saves for a project, newest first.
func ListSaves(project string) ([]SaveInfo, error) {
	dir, err := ProjectDir(project)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, errors.Wrap(err, "list saves")
	}

	var saves []SaveInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".json")
		if len(base) < 19 {
			continue
		}
		ts, err := time.Parse("2006-01-02_15-04-05", base[:19])
		if err != nil {
			continue
		}
		name := ""
		if len(base) > 20 && base[19] == '_' {
			name = base[20:]
		}

		id := ""
		if data, err := os.ReadFile(filepath.Join(dir, e.Name())); err == nil {
			var f file
			if json.Unmarshal(data, &f) == nil {
				id = f.ID
			}
		}

		saves = append(saves, SaveInfo{ID: id, Filename: e.Name(), Name: name, Timestamp: ts})
	}
	sort.Slice(saves, func(i, j int) bool { return saves[i].Timestamp.After(saves[j].Timestamp) })
	return saves, nil
}

// Save writes manager's current snapshot to project with a fresh
// timestamped filename, creating the project directory if needed.
func Save(project, saveName string, manager *sequencer.PatternManager) error {
	if project == "" {
		project = "untitled"
	}
	dir, err := ProjectDir(project)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create project directory")
	}

	f := file{ID: uuid.NewString(), Snapshot: manager.Snapshot()}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	filename := time.Now().Format("2006-01-02_15-04-05")
	if saveName != "" {
		filename += "_" + sanitizeFilename(saveName)
	}
	path := filepath.Join(dir, filename+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	return nil
}

// Load reads a specific save (or the most recent, if filename is empty)
// and returns a freshly built PatternManager. It never touches a running
// Engine's manager; nothing in this package swaps the result into one.
func Load(project, filename string) (*sequencer.PatternManager, error) {
	dir, err := ProjectDir(project)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		saves, err := ListSaves(project)
		if err != nil {
			return nil, err
		}
		if len(saves) == 0 {
			return nil, errors.Errorf("no saves found in project %q", project)
		}
		filename = saves[0].Filename
	}

	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot")
	}
	return sequencer.FromSnapshot(f.Snapshot), nil
}

// DeleteSave removes a specific save file.
func DeleteSave(project, filename string) error {
	dir, err := ProjectDir(project)
	if err != nil {
		return err
	}
	return errors.Wrap(os.Remove(filepath.Join(dir, filename)), "delete save")
}

// RenameSave renames a save file, keeping its timestamp prefix.
func RenameSave(project, oldFilename, newName string) error {
	dir, err := ProjectDir(project)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(oldFilename, ".json")
	if len(base) < 19 {
		return errors.New("invalid save filename")
	}
	ts := base[:19]
	newFilename := ts + ".json"
	if newName != "" {
		newFilename = ts + "_" + sanitizeFilename(newName) + ".json"
	}
	return errors.Wrap(os.Rename(filepath.Join(dir, oldFilename), filepath.Join(dir, newFilename)), "rename save")
}

// DeleteProject removes a project and every save inside it.
func DeleteProject(name string) error {
	dir, err := ProjectDir(name)
	if err != nil {
		return err
	}
	return errors.Wrap(os.RemoveAll(dir), "delete project")
}

// RenameProject renames a project folder.
func RenameProject(oldName, newName string) error {
	oldDir, err := ProjectDir(oldName)
	if err != nil {
		return err
	}
	newDir, err := ProjectDir(newName)
	if err != nil {
		return err
	}
	return errors.Wrap(os.Rename(oldDir, newDir), "rename project")
}

func sanitizeFilename(name string) string {
	for _, r := range []string{" ", "/", "\\", ":", "*", "?", "\"", "<", ">", "|"} {
		name = strings.ReplaceAll(name, r, "-")
	}
	return name
}

// AutoSaver coalesces rapid-fire save requests (e.g. a control surface
// firing one per edit) into a single write via a debounced trigger.
type AutoSaver struct {
	trigger func(func())
}

// NewAutoSaver returns an AutoSaver that waits delay after the last
// Request before actually calling Save.
func NewAutoSaver(delay time.Duration) *AutoSaver {
	return &AutoSaver{trigger: debounce.New(delay)}
}

// Request schedules a save of manager's current state to project,
// coalesced with any other Request calls inside the debounce window.
func (a *AutoSaver) Request(project, saveName string, manager *sequencer.PatternManager, onErr func(error)) {
	a.trigger(func() {
		if err := Save(project, saveName, manager); err != nil && onErr != nil {
			onErr(err)
		}
	})
}
