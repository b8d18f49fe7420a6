// Package fs stores documents and annotations as one file per record under a
// directory tree, optionally versioned with git:
//
//	<root>/documents/<docID>/document.json
//	<root>/documents/<docID>/annotations/<annotationID>.json
//
// Records can be JSON or YAML; the configured format decides what is written
// and both are read.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/academiaflow/annotengine/pkg/core"
	"github.com/academiaflow/annotengine/pkg/git"
)

const (
	// DefaultSystemDir holds the index and the git lock. It is git-ignored.
	DefaultSystemDir = ".annot"

	documentsDir = "documents"
	documentBase = "document"
	annotDir     = "annotations"
)

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	AutoInit  bool // git init when Path is not a repository
	Gitless   bool // plain files, no commits
	MustExist bool // fail instead of creating Path
	ReadOnly  bool
	Logger    *slog.Logger
	SystemDir string // defaults to DefaultSystemDir
	Format    string // "json" (default) or "yaml"

	// ErrorHandler receives non-fatal errors such as unreadable records
	// skipped by List or watcher failures.
	ErrorHandler func(error)
}

// Repository implements core.Repository on the filesystem.
type Repository struct {
	Path       string
	git        *git.Client
	cache      *cache
	config     Config
	serializer Serializer

	mu            sync.RWMutex
	watcherActive bool
	lastReconcile *time.Time
}

// NewRepository creates a filesystem-backed repository. An unknown Format
// falls back to JSON.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ser, err := SerializerFor(config.Format)
	if err != nil {
		config.Logger.Warn("unknown record format, using json", "format", config.Format)
		ser = JSONSerializer{}
	}
	return &Repository{
		Path:       config.Path,
		git:        git.NewClient(config.Path, filepath.Join(config.SystemDir, "git.lock"), config.Logger),
		cache:      newCache(config.Path, config.SystemDir),
		config:     config,
		serializer: ser,
	}
}

// Initialize prepares the directory tree and, unless Gitless, the git repository.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist || r.config.ReadOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("store path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", r.Path)
		}
	}
	if r.config.ReadOnly {
		return r.cache.Load()
	}

	if err := os.MkdirAll(filepath.Join(r.Path, documentsDir), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	if !r.config.Gitless {
		if !git.IsInstalled() {
			return fmt.Errorf("git is not installed")
		}

		wasNewRepo := false
		if !r.git.IsRepo(ctx) {
			if !r.config.AutoInit {
				return fmt.Errorf("path is not a git repository: %s", r.Path)
			}
			if err := r.git.Init(ctx); err != nil {
				return fmt.Errorf("failed to git init: %w", err)
			}
			wasNewRepo = true
		}

		mod, err := r.ensureIgnore()
		if err != nil {
			return fmt.Errorf("failed to ensure .gitignore: %w", err)
		}
		if mod && wasNewRepo {
			if err := r.git.Add(ctx, ".gitignore"); err != nil {
				return fmt.Errorf("failed to add .gitignore: %w", err)
			}
			if err := r.git.Commit(ctx, fmt.Sprintf("chore: configure %s ignore", r.config.SystemDir)); err != nil {
				return fmt.Errorf("failed to commit .gitignore: %w", err)
			}
		}
	}

	if err := r.cache.Load(); err != nil {
		return err
	}
	if r.cache.Len() == 0 {
		return r.Reindex(ctx)
	}
	return nil
}

func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	entry := r.config.SystemDir + "/"

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == entry {
			return false, nil
		}
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(entry + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// Paths below are relative to the root and slash separated, the form used by
// doublestar, git and the index.

func documentPath(docID, ext string) string {
	return path.Join(documentsDir, docID, documentBase+ext)
}

func annotationPath(docID, id, ext string) string {
	return path.Join(documentsDir, docID, annotDir, id+ext)
}

func (r *Repository) abs(rel string) string {
	return filepath.Join(r.Path, filepath.FromSlash(rel))
}

func (r *Repository) glob(pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(r.Path), pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// findDocument returns the record file of docID, if any.
func (r *Repository) findDocument(docID string) (string, bool, error) {
	matches, err := r.glob(path.Join(documentsDir, docID, documentBase+"."+recordExts))
	if err != nil || len(matches) == 0 {
		return "", false, err
	}
	return matches[0], true, nil
}

// findAnnotation locates an annotation file through the index, falling back
// to a scan of every document when the entry is missing or stale.
func (r *Repository) findAnnotation(id string) (*indexEntry, bool, error) {
	if e, ok := r.cache.Get(id); ok {
		if _, err := os.Stat(r.abs(e.Path)); err == nil {
			return e, true, nil
		}
		r.cache.Delete(id)
	}

	matches, err := r.glob(path.Join(documentsDir, "*", annotDir, id+"."+recordExts))
	if err != nil || len(matches) == 0 {
		return nil, false, err
	}
	e := &indexEntry{DocumentID: docIDFromPath(matches[0]), Path: matches[0]}
	r.cache.Set(id, e)
	return e, true, nil
}

// docIDFromPath extracts <docID> from documents/<docID>/...
func docIDFromPath(rel string) string {
	parts := strings.Split(rel, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (r *Repository) readRecord(rel string, v any) error {
	data, err := os.ReadFile(r.abs(rel))
	if err != nil {
		return err
	}
	ser, err := serializerForPath(rel)
	if err != nil {
		return err
	}
	if err := ser.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", rel, err)
	}
	return nil
}

func (r *Repository) writeRecord(rel string, v any) error {
	data, err := r.serializer.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", rel, err)
	}
	if err := writeFileAtomic(r.abs(rel), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

func (r *Repository) writable(op, id string) error {
	if r.config.ReadOnly {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrReadOnly)
	}
	return nil
}

// lock takes the cross-process git lock. Gitless stores skip it.
func (r *Repository) lock(ctx context.Context) (func(), error) {
	if r.config.Gitless {
		return func() {}, nil
	}
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire git lock: %w", err)
	}
	return unlock, nil
}

// commit records added and removed paths in one commit. The caller holds the
// lock. On failure the paths are unstaged again so the index matches HEAD.
func (r *Repository) commit(ctx context.Context, msg string, added, removed []string) error {
	if r.config.Gitless {
		return nil
	}
	if reason, ok := ctx.Value(core.ChangeReasonKey).(string); ok && reason != "" {
		msg = reason
	}
	msg = git.AppendFooter(msg)

	err := r.git.Add(ctx, added...)
	if err != nil {
		err = fmt.Errorf("failed to git add: %w", err)
	} else if err = r.git.Rm(ctx, removed...); err != nil {
		err = fmt.Errorf("failed to git rm: %w", err)
	} else if err = r.git.Commit(ctx, msg); err != nil {
		err = fmt.Errorf("failed to git commit: %w", err)
	}
	if err != nil {
		paths := append(append([]string{}, added...), removed...)
		if uerr := r.git.Unstage(context.WithoutCancel(ctx), paths...); uerr != nil {
			r.config.Logger.Error("failed to unstage after aborted commit", "paths", paths, "error", uerr)
		}
		return err
	}
	return nil
}

func (r *Repository) flushCache() {
	if err := r.cache.Save(); err != nil {
		r.config.Logger.Warn("failed to save index", "error", err)
	}
}

func (r *Repository) handleError(err error) {
	r.config.Logger.Warn("skipping record", "error", err)
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
	}
}

// PutDocument creates or replaces a document record. A zero CreatedAt keeps
// the stored value, or is set to now for a new record.
func (r *Repository) PutDocument(ctx context.Context, doc core.Document) error {
	if err := r.writable("put document", doc.ID); err != nil {
		return err
	}
	if err := core.ValidateID(doc.ID); err != nil {
		return err
	}

	unlock, err := r.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	rel := documentPath(doc.ID, r.serializer.Ext())
	var stale []string
	if prevRel, ok, err := r.findDocument(doc.ID); err != nil {
		return err
	} else if ok {
		if doc.CreatedAt.IsZero() {
			var prev core.Document
			if err := r.readRecord(prevRel, &prev); err == nil {
				doc.CreatedAt = prev.CreatedAt
			}
		}
		if prevRel != rel {
			stale = append(stale, prevRel)
		}
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	var backups []backup
	for _, p := range append([]string{rel}, stale...) {
		b, err := r.backupFile(p)
		if err != nil {
			return err
		}
		backups = append(backups, b)
	}
	if err := r.writeRecord(rel, doc); err != nil {
		r.restoreFiles(backups)
		return err
	}
	for _, s := range stale {
		_ = os.Remove(r.abs(s))
	}
	if err := r.commit(ctx, "document: put "+doc.ID, []string{rel}, stale); err != nil {
		r.restoreFiles(backups)
		return err
	}
	return nil
}

// GetDocument reads a document record.
func (r *Repository) GetDocument(ctx context.Context, id string) (core.Document, error) {
	if err := core.ValidateID(id); err != nil {
		return core.Document{}, err
	}
	rel, ok, err := r.findDocument(id)
	if err != nil {
		return core.Document{}, err
	}
	if !ok {
		return core.Document{}, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	var doc core.Document
	if err := r.readRecord(rel, &doc); err != nil {
		return core.Document{}, err
	}
	doc.ID = id
	return doc, nil
}

// ListDocuments returns every readable document record, ordered by id.
func (r *Repository) ListDocuments(ctx context.Context) ([]core.Document, error) {
	matches, err := r.glob(path.Join(documentsDir, "*", documentBase+"."+recordExts))
	if err != nil {
		return nil, err
	}
	docs := make([]core.Document, 0, len(matches))
	for _, rel := range matches {
		var doc core.Document
		if err := r.readRecord(rel, &doc); err != nil {
			r.handleError(err)
			continue
		}
		doc.ID = docIDFromPath(rel)
		docs = append(docs, doc)
	}
	return docs, nil
}

// DeleteDocument removes the document directory, annotations included, in
// one commit.
func (r *Repository) DeleteDocument(ctx context.Context, id string) error {
	if err := r.writable("delete document", id); err != nil {
		return err
	}
	if err := core.ValidateID(id); err != nil {
		return err
	}

	unlock, err := r.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	// The directory is parked in the system dir until the commit succeeds,
	// so a failed commit can move it back.
	dir := path.Join(documentsDir, id)
	trash := path.Join(r.config.SystemDir, "trash", fmt.Sprintf("%s-%d", id, time.Now().UnixNano()))
	if err := os.MkdirAll(filepath.Dir(r.abs(trash)), 0755); err != nil {
		return fmt.Errorf("failed to prepare trash: %w", err)
	}
	if err := os.Rename(r.abs(dir), r.abs(trash)); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
		r.cache.DeleteDocument(id)
		r.flushCache()
		return nil
	}

	if err := r.commit(ctx, "document: delete "+id, nil, []string{dir}); err != nil {
		if rerr := os.Rename(r.abs(trash), r.abs(dir)); rerr != nil {
			r.config.Logger.Error("failed to restore document after aborted delete", "document", id, "trash", trash, "error", rerr)
		}
		return err
	}
	if err := os.RemoveAll(r.abs(trash)); err != nil {
		r.config.Logger.Warn("failed to empty trash", "path", trash, "error", err)
	}
	r.cache.DeleteDocument(id)
	r.flushCache()
	return nil
}

// Save writes an annotation file under its document. An id previously stored
// under another document or in another format has its old file removed.
// The write and its commit form one transaction: a failed commit restores
// the previous file.
func (r *Repository) Save(ctx context.Context, docID string, s core.Snapshot) error {
	if err := r.writable("save", s.ID); err != nil {
		return err
	}
	tx := r.begin()
	if err := tx.Save(ctx, docID, s); err != nil {
		return err
	}
	return tx.Commit(ctx, "annotation: save "+s.ID)
}

// Get reads one annotation.
func (r *Repository) Get(ctx context.Context, id string) (core.Snapshot, error) {
	if err := core.ValidateID(id); err != nil {
		return core.Snapshot{}, err
	}
	e, ok, err := r.findAnnotation(id)
	if err != nil {
		return core.Snapshot{}, err
	}
	if !ok {
		return core.Snapshot{}, fmt.Errorf("annotation %s: %w", id, core.ErrNotFound)
	}
	var s core.Snapshot
	if err := r.readRecord(e.Path, &s); err != nil {
		return core.Snapshot{}, err
	}
	return r.normalize(s, e.DocumentID, e.Path), nil
}

// normalize takes identity from the file location, which wins over the
// record body.
func (r *Repository) normalize(s core.Snapshot, docID, rel string) core.Snapshot {
	base := path.Base(rel)
	s.ID = strings.TrimSuffix(base, path.Ext(base))
	s.DocumentID = docID
	return s
}

// List reads every annotation of docID. Unreadable files are skipped and
// passed to the ErrorHandler.
func (r *Repository) List(ctx context.Context, docID string) ([]core.Snapshot, error) {
	if err := core.ValidateID(docID); err != nil {
		return nil, err
	}
	matches, err := r.glob(path.Join(documentsDir, docID, annotDir, "*."+recordExts))
	if err != nil {
		return nil, err
	}

	out := make([]core.Snapshot, 0, len(matches))
	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(path.Base(rel), TempFilePrefix) {
			continue
		}
		var s core.Snapshot
		if err := r.readRecord(rel, &s); err != nil {
			r.handleError(err)
			continue
		}
		s = r.normalize(s, docID, rel)
		r.cache.Set(s.ID, &indexEntry{DocumentID: docID, Path: rel})
		out = append(out, s)
	}
	r.flushCache()
	return out, nil
}

// Delete removes an annotation file. Unknown ids are not an error. A failed
// commit puts the file back.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.writable("delete", id); err != nil {
		return err
	}
	tx := r.begin()
	if err := tx.Delete(ctx, id); err != nil {
		return err
	}
	return tx.Commit(ctx, "annotation: delete "+id)
}

// Reindex rebuilds the annotation index from a full scan.
func (r *Repository) Reindex(ctx context.Context) error {
	if err := r.writable("reindex", ""); err != nil {
		return err
	}
	matches, err := r.glob(path.Join(documentsDir, "*", annotDir, "*."+recordExts))
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(matches))
	for _, rel := range matches {
		base := path.Base(rel)
		if strings.HasPrefix(base, TempFilePrefix) {
			continue
		}
		id := strings.TrimSuffix(base, path.Ext(base))
		keep[id] = true
		r.cache.Set(id, &indexEntry{DocumentID: docIDFromPath(rel), Path: rel})
	}
	r.cache.Prune(keep)
	r.recordReconcile()
	return r.cache.Save()
}

// IsGitInstalled reports whether versioned stores can be used on this machine.
func IsGitInstalled() bool {
	return git.IsInstalled()
}

var (
	_ core.Repository    = (*Repository)(nil)
	_ core.Transactional = (*Repository)(nil)
	_ core.Watchable     = (*Repository)(nil)
	_ core.Versioned     = (*Repository)(nil)
	_ core.Reindexable   = (*Repository)(nil)
)
