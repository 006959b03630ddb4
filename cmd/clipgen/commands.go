package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"episode-studio/internal/assets"
	"episode-studio/internal/batch"
	"episode-studio/internal/clip"
	"episode-studio/internal/models"
	"episode-studio/internal/payload"
	"episode-studio/internal/provider"
)

type batchFile struct {
	Items []batch.Item `json:"items" yaml:"items"`
}

func newBuildCmd() *cobra.Command {
	var (
		requestPath string
		set         string
		submit      bool
		outputPath  string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the payload for one clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestPath == "" {
				return fmt.Errorf("--request is required")
			}

			var item batch.Item
			if err := readRequest(requestPath, &item); err != nil {
				return err
			}
			if set != "" {
				item = item.WithOverrides(payload.ParseOverrides(set, payload.Overrides{}))
			}

			a, cfg, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()

			p, err := batch.Build(ctx, a.Library, a.Factory, item)
			if err != nil {
				return err
			}

			out := any(p)
			if submit {
				if a.Submitter == nil {
					return errors.New("--submit needs PROVIDER_API_KEY")
				}
				task, err := a.Submitter.Submit(ctx, p)
				if err != nil {
					return fmt.Errorf("submit: %w", err)
				}
				out = struct {
					Payload payload.Payload `json:"payload"`
					Task    provider.Task   `json:"task"`
				}{p, task}
			}

			return writeOutput(cmd.OutOrStdout(), outputPath, out)
		},
	}

	cmd.Flags().StringVar(&requestPath, "request", "", "Clip request file (.json or .yaml)")
	cmd.Flags().StringVar(&set, "set", "", `Quick overrides, e.g. "ar=9:16 10s strength=7"`)
	cmd.Flags().BoolVar(&submit, "submit", false, "Submit the payload to the provider")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write JSON to this file instead of stdout")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var (
		requestPath string
		set         string
		dryRun      bool
		outputPath  string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build and submit every clip of a batch file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestPath == "" {
				return fmt.Errorf("--request is required")
			}

			var file batchFile
			if err := readRequest(requestPath, &file); err != nil {
				return err
			}
			if len(file.Items) == 0 {
				return fmt.Errorf("%s has no items", requestPath)
			}
			if set != "" {
				ov := payload.ParseOverrides(set, payload.Overrides{})
				for i := range file.Items {
					file.Items[i] = file.Items[i].WithOverrides(ov)
				}
			}

			a, cfg, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			runner := a.Runner
			if dryRun {
				runner = batch.New(batch.Options{
					Library:       a.Library,
					Factory:       a.Factory,
					MaxConcurrent: cfg.MaxConcurrent,
				})
			}

			report := runner.Run(cmd.Context(), file.Items)
			if err := writeOutput(cmd.OutOrStdout(), outputPath, report); err != nil {
				return err
			}
			if n := report.Failed(); n > 0 {
				return fmt.Errorf("%d of %d clips failed", n, len(report.Outcomes))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requestPath, "request", "", "Batch file with an items list (.json or .yaml)")
	cmd.Flags().StringVar(&set, "set", "", "Quick overrides applied to every item")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build payloads without submitting or notifying")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the JSON report to this file instead of stdout")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the model catalog and the default model per family",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Families:")
			for _, f := range []models.Family{models.StandardVideo, models.TransitionVideo, models.FlatImage, models.DenseImage} {
				fmt.Fprintf(w, "  %-10s %s\n", f, a.Catalog.DefaultModel(f))
			}
			fmt.Fprintln(w)

			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(a.Catalog); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newAssetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage the asset library (needs ASSETS_DB_PATH)",
	}

	var record clip.AssetRecord
	var kind string
	put := &cobra.Command{
		Use:   "put",
		Short: "Add or replace an asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			record.Kind = clip.Kind(strings.ToLower(kind))
			if !record.Kind.Valid() {
				return fmt.Errorf("unknown kind %q", kind)
			}
			if strings.TrimSpace(record.Name) == "" {
				return fmt.Errorf("--name is required")
			}

			lib, closeFn, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			return lib.Put(cmd.Context(), record)
		},
	}
	put.Flags().StringVar(&kind, "kind", "", "character, location, style or camera")
	put.Flags().StringVar(&record.Name, "name", "", "Asset name")
	put.Flags().StringVar(&record.Description, "description", "", "Prompt description")
	put.Flags().StringVar(&record.Negatives, "negatives", "", "Things to avoid")
	put.Flags().StringVar(&record.ImageURL, "image", "", "Primary image URL")
	put.Flags().StringVar(&record.ReferenceURL, "reference", "", "Secondary reference image URL")

	var listKind string
	list := &cobra.Command{
		Use:   "list",
		Short: "List assets of one kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			k := clip.Kind(strings.ToLower(listKind))
			if !k.Valid() {
				return fmt.Errorf("unknown kind %q", listKind)
			}

			lib, closeFn, err := openLibrary(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := lib.List(cmd.Context(), k)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\n", r.Name, r.ImageURL)
			}
			return nil
		},
	}
	list.Flags().StringVar(&listKind, "kind", "character", "character, location, style or camera")

	cmd.AddCommand(put, list)
	return cmd
}

func openLibrary(cmd *cobra.Command) (*assets.SQLiteLibrary, func(), error) {
	a, _, err := loadApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	lib, ok := a.Library.(*assets.SQLiteLibrary)
	if !ok {
		a.Close()
		return nil, nil, errors.New("ASSETS_DB_PATH is not set")
	}
	return lib, func() { _ = a.Close() }, nil
}

func readRequest(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, v)
	default:
		err = yaml.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parse request %s: %w", path, err)
	}
	return nil
}

func writeOutput(stdout io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
