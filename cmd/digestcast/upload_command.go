package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"digestcast/internal/audio"
	"digestcast/internal/config"
	"digestcast/internal/media/ffprobe"
	"digestcast/internal/upload"
)

const defaultMaxUploadMB = 15

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var title string
	var maxSizeMB int64

	cmd := &cobra.Command{
		Use:   "upload <file.mp3>",
		Short: "Upload an existing MP3 without touching the ledger",
		Long: "Upload an MP3 with a single \"Part Start\" chapter. Files larger than " +
			"--max-size-mb are split into equal-length parts uploaded separately.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", path, err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			duration, err := ffprobe.New(cfg.FFprobeBinary()).Duration(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("measure duration: %w", err)
			}
			uploader, err := upload.Open(cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			baseTitle := strings.TrimSpace(title)
			if baseTitle == "" {
				baseTitle = "Manual Upload: " + filepath.Base(path)
			}
			parts := audio.PartCount(info.Size(), maxSizeMB*1024*1024)
			if parts == 1 {
				receipt, err := uploader.Upload(cmd.Context(), upload.ManualAudiobook(path, baseTitle, duration))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Uploaded %s (%s, %s) as %s\n", baseTitle, humanize.IBytes(uint64(info.Size())), formatClock(duration), receipt.ID)
				return nil
			}

			fmt.Fprintf(out, "%s is %s; splitting into %d parts\n", filepath.Base(path), humanize.IBytes(uint64(info.Size())), parts)
			dir, err := os.MkdirTemp(cfg.Paths.WorkDir, "upload-")
			if err != nil {
				return fmt.Errorf("create split dir: %w", err)
			}
			defer os.RemoveAll(dir)

			stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			pieces, err := audio.New(audio.OptionsFromConfig(cfg), logger).Split(cmd.Context(), path, duration, parts, dir, stem)
			if err != nil {
				return err
			}
			for i, piece := range pieces {
				partTitle := fmt.Sprintf("%s (Part %d of %d)", baseTitle, i+1, len(pieces))
				receipt, err := uploader.Upload(cmd.Context(), upload.ManualAudiobook(piece.Path, partTitle, piece.Duration))
				if err != nil {
					return fmt.Errorf("upload part %d of %d: %w", i+1, len(pieces), err)
				}
				fmt.Fprintf(out, "Uploaded %s (%s) as %s\n", partTitle, formatClock(piece.Duration), receipt.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Audiobook title (default \"Manual Upload: <file>\")")
	cmd.Flags().Int64Var(&maxSizeMB, "max-size-mb", defaultMaxUploadMB, "Split files larger than this many MiB; 0 disables splitting")
	return cmd
}
