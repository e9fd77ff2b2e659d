// Package group recognizes PhoneTrack export files and groups them by the
// (session, user) identity encoded in their names.
package group

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"phonetrack-timeline/internal/models"
	"phonetrack-timeline/internal/normalize"
)

var (
	// Daily exports: {SessionName}_daily_{YYYY-MM-DD}_{Username}.gpx
	dailyPattern = regexp.MustCompile(`^(.+)_daily_(\d{4}-\d{2}-\d{2})_(.+)\.gpx$`)
	// Full exports: {SessionName}_{Username}.gpx, greedy on the session.
	fullPattern = regexp.MustCompile(`^(.+)_([^_]+)\.gpx$`)
)

// reserved trailing segments mark derived files, not per-device exports.
var reserved = map[string]bool{
	"timeline": true,
	"merged":   true,
	"combined": true,
}

// Identity is the (session, user, optional date) parsed from a filename.
// Date is empty for full exports.
type Identity struct {
	Session string
	User    string
	Date    string
}

// ParseFilename decides whether a filename is a consolidatable export and
// extracts its identity. Timeline outputs and names matching neither export
// pattern report ok=false.
func ParseFilename(name string) (Identity, bool) {
	if strings.Contains(name, "_TIMELINE.gpx") {
		return Identity{}, false
	}
	if m := dailyPattern.FindStringSubmatch(name); m != nil {
		return Identity{Session: m[1], Date: m[2], User: m[3]}, true
	}
	if m := fullPattern.FindStringSubmatch(name); m != nil {
		if reserved[strings.ToLower(m[2])] {
			return Identity{}, false
		}
		return Identity{Session: m[1], User: m[2]}, true
	}
	return Identity{}, false
}

// StorageIdentity is a daily export located by its storage-relative path,
// {owner}/files/PhoneTrack_export/{filename}.gpx, as handed over by the
// host platform's workflow trigger.
type StorageIdentity struct {
	Owner   string
	Session string
	Device  string
	Date    string
}

// ParseStoragePath extracts the owning account and the export identity from
// a storage-relative path. Only daily exports trigger timeline updates.
func ParseStoragePath(p string) (StorageIdentity, bool) {
	parts := strings.Split(strings.ReplaceAll(p, `\`, "/"), "/")
	if len(parts) < 3 {
		return StorageIdentity{}, false
	}
	m := dailyPattern.FindStringSubmatch(parts[len(parts)-1])
	if m == nil {
		return StorageIdentity{}, false
	}
	return StorageIdentity{
		Owner:   parts[0],
		Session: m[1],
		Date:    m[2],
		Device:  m[3],
	}, true
}

// Scan walks root recursively and groups every recognized GPX export by its
// normalized (session, user) key. filepath.WalkDir visits entries in lexical
// order, so the first file seen for a key deterministically fixes the group's
// display names. Groups come back sorted by normalized key.
func Scan(root string) ([]*models.Group, error) {
	byKey := make(map[[2]string]*models.Group)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".gpx") {
			return nil
		}
		id, ok := ParseFilename(d.Name())
		if !ok {
			return nil
		}
		key := [2]string{normalize.Fold(id.Session), normalize.Fold(id.User)}
		g, exists := byKey[key]
		if !exists {
			g = &models.Group{
				Session:     id.Session,
				User:        id.User,
				NormSession: key[0],
				NormUser:    key[1],
			}
			byKey[key] = g
		}
		g.Files = append(g.Files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	groups := make([]*models.Group, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].NormSession != groups[j].NormSession {
			return groups[i].NormSession < groups[j].NormSession
		}
		return groups[i].NormUser < groups[j].NormUser
	})
	return groups, nil
}

// OutputName is the timeline filename for a group: accent-stripped,
// case-preserving session and user names.
func OutputName(session, user string) string {
	return normalize.Strip(session) + "_" + normalize.Strip(user) + "_TIMELINE.gpx"
}
