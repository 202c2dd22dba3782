package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"grimm.is/ipfeed/internal/brand"
	"grimm.is/ipfeed/internal/config"
	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/logging"
	"grimm.is/ipfeed/internal/render"
	"grimm.is/ipfeed/internal/storage"
	"grimm.is/ipfeed/internal/versions"
)

// RunCheck validates the configuration file and, if listFile is set, prints
// the feed that list would publish.
func RunCheck(out io.Writer, configFile, listFile string) error {
	if configFile == "" {
		return fmt.Errorf("usage: %s check -config <file> [-list <file>]", brand.BinaryName)
	}

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Fprintln(out, "Configuration valid!")
	printSummary(out, cfg)

	if listFile == "" {
		return nil
	}
	reduce, err := reduceOptions(cfg.Feed)
	if err != nil {
		return err
	}
	doc, err := preview(listFile, reduce)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d lines, checksum %s\n\n", doc.Lines, doc.Checksum)
	_, err = out.Write(doc.Body)
	return err
}

func printSummary(out io.Writer, cfg *config.Config) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Schema Version:\t%s\n", cfg.SchemaVersion)
	fmt.Fprintf(w, "Feed:\t%s (%s", cfg.Feed.Name, cfg.Feed.Reduction)
	if cfg.Feed.MergeOverlaps {
		fmt.Fprint(w, ", merge overlaps")
	}
	fmt.Fprintln(w, ")")

	where := cfg.Storage.Path
	if cfg.Storage.Backend == storage.KindPostgres {
		where = "(dsn)"
	}
	fmt.Fprintf(w, "Storage:\t%s %s\n", cfg.Storage.Backend, where)
	if cfg.Storage.KeepLast > 0 {
		fmt.Fprintf(w, "Retention:\tlast %d versions every %s\n", cfg.Storage.KeepLast, cfg.Storage.PruneInterval)
	} else {
		fmt.Fprintln(w, "Retention:\tkeep all versions")
	}
	fmt.Fprintf(w, "Listen:\t%s\n", cfg.API.Listen)
	if cfg.Redis != nil {
		fmt.Fprintf(w, "Redis:\t%s channel %s\n", cfg.Redis.Address, cfg.Redis.Channel)
	}
	if cfg.Audit.IsEnabled() {
		fmt.Fprintf(w, "Audit:\t%s (%d days)\n", cfg.Audit.Path, cfg.Audit.RetentionDays)
	} else {
		fmt.Fprintln(w, "Audit:\tdisabled")
	}
	w.Flush()
}

// preview runs a list through the same pipeline the daemon uses, against
// a throwaway in-memory history.
func preview(listFile string, reduce feed.ReduceOptions) (*render.Document, error) {
	f, err := os.Open(listFile)
	if err != nil {
		return nil, fmt.Errorf("open list: %w", err)
	}
	defer f.Close()

	raws, err := feed.ParseList(f)
	if err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	entries, err := feed.NormalizeAll(raws)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	store, err := versions.Open(ctx, storage.NewMemoryBackend(), versions.Options{Logger: logging.Discard()})
	if err != nil {
		return nil, err
	}
	snap, err := store.Commit(ctx, feed.Reduce(entries, reduce))
	if err != nil {
		return nil, err
	}
	return render.Render(snap), nil
}

// RunVersion prints build information.
func RunVersion(out io.Writer) {
	fmt.Fprintf(out, "%s %s (commit %s, built %s)\n", brand.Name, brand.Version, brand.GitCommit, brand.BuildTime)
}
