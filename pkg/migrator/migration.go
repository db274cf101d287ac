package migrator

import (
	"crypto/sha256"
	"encoding/base64"
	"io"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cqlward/cqlward/pkg/parser"
	"github.com/pkg/errors"
)

// migrationNameRE captures the version digits and description from a script
// file name. The description may contain any characters; underscores are
// rendered as spaces for display.
var migrationNameRE = regexp.MustCompile(`^V(\d+)__(.+)\.cql$`)

type (
	// MigrationFile represents a single discovered migration script. It is
	// derived from a file on disk each run and handed to the planner and
	// executor; nothing retains it past the run.
	MigrationFile struct {
		// Version is the totally ordered, unique identifier parsed from the
		// file name. Either a sequence number (1, 2, ...) or a sortable
		// timestamp (20240101120000).
		Version int64

		// Description is the human-readable label from the file name.
		// Non-semantic; used only for display.
		Description string

		// Checksum is the h1 hash of the raw script bytes. Computed before
		// splitting so comment-only edits still register as content changes.
		Checksum string

		// Statements holds the executable statements produced by the splitter,
		// in script order.
		Statements []string

		// Path is the file name within the migration directory.
		Path string
	}

	// MigrationDir is the validated result of discovering a script directory:
	// every script parsed, checksummed, and ordered ascending by version.
	MigrationDir struct {
		// Files contains all discovered migrations sorted ascending by version.
		Files []*MigrationFile

		byVersion map[int64]*MigrationFile
	}
)

// LoadMigrationDir discovers all migration scripts in the provided filesystem
// and returns them ordered ascending by version.
//
// Only files with a .cql extension are considered; subdirectories are not
// descended into. Every .cql file must match the naming convention.
//
// Example usage:
//
//	dir, err := migrator.LoadMigrationDir(os.DirFS("migrations"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, f := range dir.Files {
//		fmt.Printf("V%d %s (%d statements)\n", f.Version, f.Description, len(f.Statements))
//	}
//
// Returns *InvalidNameError, *DuplicateVersionError, *UnreadableScriptError,
// or a wrapped *parser.ParseError. All of these are detected before any
// cluster contact.
func LoadMigrationDir(fsys fs.FS) (*MigrationDir, error) {
	dir := &MigrationDir{byVersion: make(map[int64]*MigrationFile)}

	if err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".cql") {
			return nil
		}

		f, err := loadMigrationFile(fsys, path)
		if err != nil {
			return err
		}

		if prev, ok := dir.byVersion[f.Version]; ok {
			return &DuplicateVersionError{Version: f.Version, Paths: []string{prev.Path, f.Path}}
		}
		dir.byVersion[f.Version] = f
		dir.Files = append(dir.Files, f)
		return nil
	}); err != nil {
		return nil, err
	}

	sort.Slice(dir.Files, func(i, j int) bool { return dir.Files[i].Version < dir.Files[j].Version })
	return dir, nil
}

// Find returns the migration with the given version, or nil when the version
// was not discovered.
func (d *MigrationDir) Find(version int64) *MigrationFile {
	return d.byVersion[version]
}

func loadMigrationFile(fsys fs.FS, path string) (*MigrationFile, error) {
	m := migrationNameRE.FindStringSubmatch(path)
	if m == nil {
		return nil, &InvalidNameError{Path: path}
	}

	version, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// only reachable when the digits overflow int64
		return nil, &InvalidNameError{Path: path}
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, &UnreadableScriptError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, &UnreadableScriptError{Path: path, Err: err}
	}

	stmts, err := parser.SplitStatements(string(content))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	return &MigrationFile{
		Version:     version,
		Description: strings.ReplaceAll(m[2], "_", " "),
		Checksum:    Checksum(content),
		Statements:  stmts,
		Path:        path,
	}, nil
}

// Checksum computes the h1 content hash for a script: a SHA256 over the raw
// bytes, base64 encoded. Deterministic and stable across re-reads.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return "h1:" + base64.StdEncoding.EncodeToString(sum[:])
}
