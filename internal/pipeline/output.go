package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/asp-search/internal/model"
	"github.com/sells-group/asp-search/internal/report"
	"github.com/sells-group/asp-search/internal/store"
)

// openSinks opens every requested sink. File sinks share one timestamped
// folder; when it cannot be created every sink degrades to console. A sink
// that fails to open is skipped with a warning.
func (r *run) openSinks() {
	kinds := r.opts.Sinks
	if r.needsFolder(kinds) {
		dir, err := r.makeOutputFolder()
		if err != nil {
			r.log.Warn("pipeline: output folder", zap.Error(err))
			r.warnf("Could not create output folder: %v. Falling back to console output.", err)
			kinds = []model.SinkKind{model.SinkConsole}
		} else {
			r.sum.OutputDir = dir
			r.infof("Output folder created at: %s", dir)
		}
	}

	for _, k := range kinds {
		s := r.openSink(k)
		if s == nil {
			continue
		}
		r.sinks = append(r.sinks, s)
		r.sum.Sinks = append(r.sum.Sinks, k)
	}
}

func (r *run) storeIsSQLite() bool {
	d := r.p.storeCfg.Driver
	return d == "" || d == "sqlite"
}

func (r *run) storeInFolder() bool {
	return r.opts.StorePath == "" && r.storeIsSQLite()
}

func (r *run) needsFolder(kinds []model.SinkKind) bool {
	for _, k := range kinds {
		if !k.IsFile() {
			continue
		}
		if k != model.SinkStore || r.storeInFolder() {
			return true
		}
	}
	return false
}

// makeOutputFolder creates <base>/<prefix><stamp>. base is the configured
// output directory when it exists, else the working directory.
func (r *run) makeOutputFolder() (string, error) {
	base := r.opts.OutputDir
	if fi, err := os.Stat(base); base == "" || err != nil || !fi.IsDir() {
		if base != "" {
			r.warnf("Output directory %s is not a usable directory; using the working directory.", base)
		}
		wd, err := r.p.getwd()
		if err != nil {
			return "", eris.Wrap(err, "pipeline: working directory")
		}
		base = wd
	}

	dir := filepath.Join(base, r.p.folderPrefix+r.stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "pipeline: create output folder %s", dir)
	}
	return dir, nil
}

func (r *run) artifactPath(ext string) string {
	return filepath.Join(r.sum.OutputDir, fmt.Sprintf("%s_output_%s.%s", model.Application, r.stamp, ext))
}

func (r *run) openSink(k model.SinkKind) *openSink {
	switch k {
	case model.SinkConsole:
		return &openSink{kind: k, sink: consoleSink{events: r.p.events}}

	case model.SinkText:
		path := r.artifactPath("txt")
		tw, err := report.NewTextWriter(path, r.sum.StartedAt)
		if err != nil {
			r.warnf("Could not open text file for writing: %v", err)
			return nil
		}
		r.infof("Text output will be saved to %s", path)
		return &openSink{kind: k, path: path, sink: tw}

	case model.SinkXLSX:
		path := r.artifactPath("xlsx")
		xw, err := report.NewXLSXWriter(path)
		if err != nil {
			r.warnf("Could not prepare spreadsheet: %v", err)
			return nil
		}
		r.infof("Spreadsheet output will be saved to %s", path)
		return &openSink{kind: k, path: path, sink: xw}

	case model.SinkStore:
		return r.openStoreSink()
	}
	return nil
}

func (r *run) openStoreSink() *openSink {
	cfg := r.p.storeCfg
	switch {
	case !r.storeIsSQLite():
		cfg.Path = ""
	case r.opts.StorePath != "":
		cfg.Path = r.opts.StorePath
	case r.storeInFolder():
		cfg.Path = r.artifactPath("db")
	}
	table := cfg.Tables.Data
	if table == "" {
		table = store.DefaultTables().Data
	}

	st, res, err := r.p.openStore(r.ctx, cfg)
	if err != nil {
		r.log.Error("pipeline: store setup", zap.Error(err))
		r.warnf("Store setup failed: %v. Skipping database output.", err)
		return nil
	}

	if res != nil && res.Reconciled {
		if res.Created {
			r.infof("Created table '%s'.", table)
		} else {
			r.infof("Schema mismatch detected in table '%s'; rebuilt it in the current column order and migrated %d row(s).",
				table, res.RowsCopied)
		}
	}
	label := cfg.Path
	if label == "" {
		label = cfg.Driver
	}
	r.infof("Database '%s' opened. Table '%s' ensured.", label, table)

	return &openSink{
		kind: model.SinkStore,
		path: cfg.Path,
		sink: &storeSink{ctx: r.ctx, st: st, metrics: r.p.metrics},
	}
}
