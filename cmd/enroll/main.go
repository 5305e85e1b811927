package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/enroll"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/internal/vision"
)

var rootCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Build the known-identity registry from labeled photos",
	Long: `Enroll reads every photo in a directory and stores one face embedding per
photo in PostgreSQL. The file name is the person: "alice.jpg" enrolls "alice",
"jiří-novák.png" enrolls "jiri_novak" shown as "Jiří Novák".

When a photo contains several faces the largest one is used.

Examples:
  # Enroll everything in the configured known/ directory
  enroll --config configs/config.yaml

  # Re-enroll from another directory, dropping previous embeddings
  enroll --dir ~/family --replace`,
	RunE:         runEnroll,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(func() {
		// .env file is optional, don't fail if not found
		_ = godotenv.Load()
	})
	rootCmd.Flags().String("config", "configs/config.yaml", "path to config file")
	rootCmd.Flags().String("dir", "", "directory of labeled photos (default: media.known_dir)")
	rootCmd.Flags().Bool("replace", false, "replace existing embeddings of each enrolled identity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runEnroll(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dir, _ := cmd.Flags().GetString("dir")
	replace, _ := cmd.Flags().GetBool("replace")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	observability.SetupLogger("warn", "text")
	if dir == "" {
		dir = cfg.Media.KnownPath()
	}

	files, err := enroll.ListImages(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no photos found in %s", dir)
	}

	ctx := context.Background()

	fmt.Println("Connecting to PostgreSQL...")
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	destroy, err := vision.InitRuntime(cfg.Recognition.ONNXLibrary)
	if err != nil {
		return err
	}
	defer destroy()

	analyzer, err := vision.NewAnalyzer(cfg.Recognition, nil)
	if err != nil {
		return err
	}
	defer analyzer.Close()

	e := enroll.New(analyzer, db)
	e.Replace = replace

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var failed []enroll.Result
	enrolled := map[string]int{}
	for _, f := range files {
		res := e.EnrollFile(ctx, f)
		if res.Err != nil {
			failed = append(failed, res)
		} else {
			enrolled[res.Identity]++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	total, err := db.CountIdentities(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Processed %d photos: %d enrolled, %d failed\n", len(files), len(files)-len(failed), len(failed))
	fmt.Printf("Identities enrolled this run: %d (registry total: %d)\n", len(enrolled), total)
	for _, r := range failed {
		fmt.Printf("  FAILED %s: %v\n", filepath.Base(r.File), r.Err)
	}
	if len(failed) == len(files) {
		return fmt.Errorf("no photo could be enrolled")
	}
	return nil
}
