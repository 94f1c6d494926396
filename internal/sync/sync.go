package sync

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/conorfennell/studyset/internal/domain"
	"github.com/conorfennell/studyset/internal/genai"
	"github.com/conorfennell/studyset/internal/gitsource"
	"github.com/conorfennell/studyset/internal/knol"
	"github.com/conorfennell/studyset/internal/storage"
)

// Generator turns source material into a study set payload.
type Generator interface {
	ProcessSourceMaterial(ctx context.Context, m genai.Material) (*domain.GeneratedPayload, error)
}

// Options controls a sync run.
type Options struct {
	// ReposDir is where git sources are checked out.
	ReposDir string
	// Extensions lists the file suffixes treated as material, e.g. ".md".
	Extensions []string
	// MaxFileBytes skips larger files. Zero means no limit.
	MaxFileBytes int64
	// UserID restricts the run to one user's sources. Empty means all.
	UserID string
	Logger *slog.Logger
}

// DefaultExtensions are ingested when Options.Extensions is empty.
var DefaultExtensions = []string{".md", ".txt"}

// Report counts what a run did.
type Report struct {
	Sources int `json:"sources"`
	Files   int `json:"files"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RunSync iterates over the sources and turns new material into study sets.
// Failures are logged and counted per file and per source; only failing to list
// the sources or a canceled context ends the run early.
func RunSync(ctx context.Context, db *storage.DB, gen Generator, opts Options) (Report, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}

	var (
		sources []storage.Source
		err     error
	)
	if opts.UserID != "" {
		sources, err = db.GetSourcesForUser(ctx, opts.UserID)
	} else {
		sources, err = db.GetAllSources(ctx)
	}
	if err != nil {
		return Report{}, errors.Wrap(err, "list sources")
	}

	var report Report
	if len(sources) == 0 {
		log.Info("no sources configured")
		return report, nil
	}
	log.Info("starting sync", "sources", len(sources))

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log := log.With("source_id", source.ID, "type", source.Type, "path", source.Path)
		report.Sources++

		dir := source.Path
		if source.Type == storage.SourceGit {
			local, err := gitsource.LocalPath(opts.ReposDir, source.Path)
			if err != nil {
				log.Error("cannot determine checkout path", "error", err)
				report.Failed++
				continue
			}
			if err := gitsource.Sync(ctx, log, source.Path, local); err != nil {
				log.Error("git sync failed", "error", err)
				report.Failed++
				continue
			}
			dir = local
		}

		r := &reconciler{db: db, gen: gen, opts: opts, log: log, source: source}
		if err := r.walk(ctx, dir); err != nil {
			if ctx.Err() != nil {
				return report.add(r.report), ctx.Err()
			}
			log.Error("error walking directory", "dir", dir, "error", err)
			r.report.Failed++
		}
		report = report.add(r.report)

		if err := db.UpdateSourceLastScanned(ctx, source.ID); err != nil {
			log.Warn("failed to update last scanned for source", "error", err)
		}
		log.Info("reconciliation complete",
			"files", r.report.Files,
			"created", r.report.Created,
			"skipped", r.report.Skipped,
			"failed", r.report.Failed,
		)
	}

	log.Info("sync complete", "created", report.Created, "failed", report.Failed)
	return report, nil
}

func (r Report) add(o Report) Report {
	r.Files += o.Files
	r.Created += o.Created
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	return r
}

type reconciler struct {
	db     *storage.DB
	gen    Generator
	opts   Options
	log    *slog.Logger
	source storage.Source
	report Report
}

func (r *reconciler) walk(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !r.wanted(d.Name()) {
			return nil
		}
		r.report.Files++

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = d.Name()
		}
		if err := r.ingest(ctx, path, filepath.ToSlash(rel)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("failed to ingest material", "file", rel, "error", err)
			r.report.Failed++
		}
		return nil
	})
}

func (r *reconciler) wanted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.ContainsFunc(r.opts.Extensions, func(e string) bool {
		return strings.EqualFold(e, ext)
	})
}

func (r *reconciler) ingest(ctx context.Context, path, rel string) error {
	if r.opts.MaxFileBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return errors.Wrap(err, "stat")
		}
		if info.Size() > r.opts.MaxFileBytes {
			r.log.Info("skipping large file", "file", rel, "bytes", info.Size())
			r.report.Skipped++
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read")
	}
	hash := knol.Hash(data)

	existing, err := r.db.FindMaterial(ctx, r.source.ID, hash)
	if err != nil {
		return errors.Wrapf(err, "db check for %s", hash)
	}
	if existing != nil {
		r.report.Skipped++
		return nil
	}

	r.log.Info("new material found, generating", "file", rel, "hash", hash)
	payload, err := r.gen.ProcessSourceMaterial(ctx, genai.FileMaterial(filepath.Base(rel), data))
	if err != nil {
		return errors.Wrap(err, "generate")
	}
	m := storage.Material{Hash: hash, SourceID: r.source.ID, Path: rel}
	setID, err := r.db.AddStudySetFromMaterial(ctx, r.source.UserID, payload, m)
	if err != nil {
		return errors.Wrapf(err, "store study set for %s", hash)
	}
	r.log.Debug("study set stored", "file", rel, "study_set_id", setID)
	r.report.Created++
	return nil
}
