package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/internal/cloud"
	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/core"
	"github.com/inkbridge/inkbridge/internal/http"
	"github.com/inkbridge/inkbridge/internal/localfs"
	"github.com/inkbridge/inkbridge/internal/models"
	"github.com/inkbridge/inkbridge/internal/pipeline"
	"github.com/inkbridge/inkbridge/internal/progress"
)

// ErrUntranslated is returned when the command ends with items that were
// never translated.
var ErrUntranslated = errors.New("some images were not translated")

type translateFlags struct {
	language      string
	font          string
	sinkKind      string
	out           string
	format        string
	name          string
	noArchive     bool
	yes           bool
	recursive     bool
	includeHidden bool
	overwrite     bool
}

// followGrace bounds how long the renderer may lag behind a finished pass.
const followGrace = 2 * time.Second

func newTranslateCmd() *cobra.Command {
	var f translateFlags

	cmd := &cobra.Command{
		Use:   "translate [files or directories...]",
		Short: "Translate images and save the results as one archive",
		Long: `Translate images one at a time and pack the results into an archive.

Directories contribute the images they contain in natural order
(page2 before page10). Hidden files are skipped unless --include-hidden.

When a pass stops on an error, the images already translated are kept.
On a terminal you are offered another pass over the remaining images.

Examples:
  inkbridge translate ./chapter-12 --lang English
  inkbridge translate p1.png p2.png --font "Wild Words" --format tar.gz
  inkbridge translate ./scans -r --sink s3 --name chapter-12.zip`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyTranslateFlags(cmd, cfg, f)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runTranslate(GetContext(), cmd, cfg, f, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.language, "lang", "l", "", "Target language (default from config)")
	flags.StringVar(&f.font, "font", "", "Font family: Noto Sans or Wild Words (default from config)")
	flags.StringVar(&f.sinkKind, "sink", "", "Where to save the archive: local, s3, azure, gcs")
	flags.StringVarP(&f.out, "out", "o", "", "Output directory for the local sink")
	flags.StringVar(&f.format, "format", "", "Archive format: zip or tar.gz")
	flags.StringVar(&f.name, "name", "", "Archive file name")
	flags.BoolVar(&f.noArchive, "no-archive", false, "Translate only, do not save an archive")
	flags.BoolVarP(&f.yes, "yes", "y", false, "Save the archive without asking when images remain untranslated")
	flags.BoolVarP(&f.recursive, "recursive", "r", false, "Descend into subdirectories")
	flags.BoolVar(&f.includeHidden, "include-hidden", false, "Include hidden files and directories")
	flags.BoolVar(&f.overwrite, "overwrite", false, "Replace an existing archive with the same name")

	return cmd
}

// applyTranslateFlags copies explicitly set flags over the loaded config.
func applyTranslateFlags(cmd *cobra.Command, cfg *config.Config, f translateFlags) {
	flags := cmd.Flags()
	if flags.Changed("lang") {
		cfg.Language = f.language
	}
	if flags.Changed("font") {
		cfg.Font = f.font
	}
	if flags.Changed("sink") {
		cfg.Sink.Kind = f.sinkKind
	}
	if flags.Changed("out") {
		cfg.Sink.Dir = f.out
		if !flags.Changed("sink") {
			cfg.Sink.Kind = config.SinkLocal
		}
	}
	if flags.Changed("format") {
		cfg.ArchiveFormat = f.format
	}
	if flags.Changed("name") {
		cfg.ArchiveName = f.name
	}
	if flags.Changed("overwrite") {
		cfg.Sink.Overwrite = f.overwrite
	}
}

func runTranslate(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f translateFlags, args []string) error {
	logger := GetLogger()
	out := cmd.OutOrStdout()
	interactive := isInteractive()

	if http.NeedsProxyPassword(cfg) {
		if !interactive {
			return fmt.Errorf("proxy password required: set %s", config.EnvProxyPassword)
		}
		pw, err := promptPassword(cmd.ErrOrStderr(), fmt.Sprintf("Proxy password for %s", cfg.ProxyUser))
		if err != nil {
			return err
		}
		cfg.ProxyPassword = pw
	}

	paths, err := localfs.Expand(ctx, args, localfs.ExpandOptions{
		Recursive:     f.recursive,
		IncludeHidden: f.includeHidden,
	})
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no images found")
	}

	timer := cloud.StartTimer(cmd.ErrOrStderr(), "load")
	files, err := localfs.Load(ctx, paths)
	if err != nil {
		return err
	}
	var total int64
	for _, file := range files {
		total += file.Size()
	}
	timer.StopWithThroughput(total)

	ctrl, err := core.NewController(ctx, cfg, progress.NewCLIProgress(), progress.NewCLIByteProgress())
	if err != nil {
		return err
	}
	defer ctrl.Close()

	warning, err := ctrl.SetOptions(cfg.Language, cfg.Font)
	if err != nil {
		return err
	}
	if warning != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
	}

	if err := ctrl.SelectFiles(files); err != nil {
		return err
	}
	logger.Info().Int("images", len(files)).Msg("Images selected")

	reader := bufio.NewReader(cmd.InOrStdin())
	for {
		_, err := runPass(ctx, ctrl)
		if err == nil {
			break
		}
		if errors.Is(err, pipeline.ErrNothingToSubmit) || errors.Is(err, pipeline.ErrInvalidOptions) {
			return err
		}
		if ctx.Err() != nil || !interactive {
			break
		}
		snap := ctrl.Snapshot()
		again, perr := promptYesNo(reader, cmd.ErrOrStderr(),
			fmt.Sprintf("Retry the %d remaining image(s)?", pendingCount(snap)), true)
		if perr != nil || !again {
			break
		}
	}

	snap := ctrl.Snapshot()
	printOutcome(out, snap)
	remaining := pendingCount(snap)

	if !f.noArchive && ctx.Err() == nil {
		save := true
		if remaining > 0 && !f.yes {
			if interactive {
				save, err = promptYesNo(reader, cmd.ErrOrStderr(),
					fmt.Sprintf("Save the archive with %d untranslated original(s)?", remaining), false)
				if err != nil {
					save = false
				}
			} else {
				save = false
				fmt.Fprintln(cmd.ErrOrStderr(), "Archive not saved; use --yes to save partial results")
			}
		}
		if save {
			timer := cloud.StartTimer(cmd.ErrOrStderr(), "save")
			res, err := ctrl.Download(ctx)
			if err != nil {
				return err
			}
			timer.StopWithMessage("%d images, %s", res.Entries, cloud.FormatBytes(res.Size))
			fmt.Fprintf(out, "✓ Saved %s (%d images, %s) to %s\n",
				res.Name, res.Entries, cloud.FormatBytes(res.Size), res.Location)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if remaining > 0 {
		return fmt.Errorf("%w: %d of %d", ErrUntranslated, remaining, len(snap.Items))
	}
	return nil
}

// runPass submits once while a SubmitUI follows the pass on the event bus.
func runPass(ctx context.Context, ctrl *core.Controller) (models.BatchResult, error) {
	ui := progress.NewSubmitUI()
	bus := ctrl.Events()
	ch := ctrl.Subscribe()
	defer bus.UnsubscribeAll(ch)

	followCtx, stop := context.WithCancel(context.Background())
	defer stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ui.Follow(followCtx, ch)
	}()

	result, err := ctrl.Submit(ctx)

	// Every transition is published before Submit returns; a pass that never
	// started has nothing to render
	if errors.Is(err, pipeline.ErrNothingToSubmit) || errors.Is(err, pipeline.ErrInvalidOptions) || errors.Is(err, core.ErrBusy) {
		stop()
	}
	select {
	case <-done:
	case <-time.After(followGrace):
		stop()
		<-done
	}
	ui.Wait()
	if dropped := bus.ResetDroppedEventCount(); dropped > 0 {
		GetLogger().Debug().Int64("dropped", dropped).Msg("Progress events dropped during pass")
	}
	return result, err
}

func pendingCount(snap models.Snapshot) int {
	n := 0
	for _, it := range snap.Items {
		if it.Pending {
			n++
		}
	}
	return n
}

func printOutcome(out io.Writer, snap models.Snapshot) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%-4s %-40s %s\n", "#", "IMAGE", "STATUS")
	for i, it := range snap.Items {
		status := "translated"
		if it.Pending {
			status = "not translated"
		}
		fmt.Fprintf(out, "%-4d %-40s %s\n", i+1, it.Name, status)
	}
	if snap.ErrorMessage != "" {
		fmt.Fprintf(out, "Last error: %s\n", snap.ErrorMessage)
	}
}
