package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	colorable "github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/NGarate/webdav-backup/internal/auth"
	"github.com/NGarate/webdav-backup/internal/cache"
	"github.com/NGarate/webdav-backup/internal/config"
	"github.com/NGarate/webdav-backup/internal/logging"
	"github.com/NGarate/webdav-backup/internal/progress"
	"github.com/NGarate/webdav-backup/internal/sync"
	"github.com/NGarate/webdav-backup/internal/webdav"
)

// errUploadsFailed signals a run where at least one file failed; the
// summary has already been printed, so main exits 1 silently.
var errUploadsFailed = errors.New("some uploads failed")

type rootFlags struct {
	webdavURL   string
	target      string
	cores       int
	quiet       bool
	verbose     bool
	force       bool
	user        string
	password    string
	exclude     []string
	showVersion bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "webdav-backup <source-dir>",
		Short:         "Incrementally back up a local directory tree to a WebDAV server",
		Long: `webdav-backup mirrors a local directory tree to a remote WebDAV server.
Files are uploaded only when their content hash differs from the previous
run; unchanged files are skipped. Uploads run in parallel with a progress
bar, and remote directories are created as needed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "webdav-backup %s\n", version)
				return nil
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return runBackup(cmd, flags, args[0])
		},
	}

	addFlags(cmd.Flags(), flags)
	return cmd
}

func addFlags(fs *pflag.FlagSet, flags *rootFlags) {
	fs.StringVar(&flags.webdavURL, "webdav-url", "", "WebDAV server base URL (required)")
	fs.StringVar(&flags.target, "target", "", "remote base directory (defaults to the server root)")
	fs.IntVar(&flags.cores, "cores", 0, "maximum parallel uploads (default 2/3 of CPU count)")
	fs.BoolVar(&flags.quiet, "quiet", false, "suppress log output except errors; the progress bar and summary still print")
	fs.BoolVar(&flags.verbose, "verbose", false, "log per-file events")
	fs.BoolVar(&flags.force, "force", false, "treat every file as changed")
	fs.StringVar(&flags.user, "user", "", "Basic-auth username (default \"webdav\")")
	fs.StringVar(&flags.password, "password", "", "Basic-auth password (default \"password\")")
	fs.StringArrayVar(&flags.exclude, "exclude", nil, "glob pattern of paths to skip (repeatable)")
	fs.BoolVarP(&flags.showVersion, "version", "v", false, "print version and exit")
}

// buildOptions converts parsed flags into validated run options.
func buildOptions(flags *rootFlags, sourceDir string) (*config.Options, error) {
	verbosity := config.VerbosityNormal
	switch {
	case flags.quiet && flags.verbose:
		return nil, fmt.Errorf("--quiet and --verbose are mutually exclusive")
	case flags.quiet:
		verbosity = config.VerbosityQuiet
	case flags.verbose:
		verbosity = config.VerbosityVerbose
	}

	if flags.cores < 0 {
		return nil, fmt.Errorf("--cores must be a positive integer, got %d", flags.cores)
	}

	opts := &config.Options{
		SourceDir:   sourceDir,
		ServerURL:   flags.webdavURL,
		TargetDir:   flags.target,
		Concurrency: flags.cores,
		Force:       flags.force,
		Verbosity:   verbosity,
		Username:    flags.user,
		Password:    flags.password,
		Exclude:     flags.exclude,
	}
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func runBackup(cmd *cobra.Command, flags *rootFlags, sourceDir string) error {
	opts, err := buildOptions(flags, sourceDir)
	if err != nil {
		return err
	}

	tracker := progress.New(os.Stderr)
	log := logging.New(opts.Verbosity, tracker.LogWriter())

	client, err := webdav.NewHTTPClient(opts.ServerURL, auth.NewBasicAuth(opts.Username, opts.Password))
	if err != nil {
		return err
	}

	hashCache := cache.New(log)

	uploader, err := sync.NewUploader(opts, client, hashCache, tracker, log, colorable.NewColorableStdout())
	if err != nil {
		return err
	}

	// SIGINT/SIGTERM cancel the queue; in-flight uploads finish and the
	// cache is saved on a best-effort basis.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := uploader.Run(ctx)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return errUploadsFailed
	}
	return nil
}
