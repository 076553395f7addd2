package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cadenza/internal/config"
	"cadenza/internal/index"
	"cadenza/internal/library"
	"cadenza/internal/metadata"
	"cadenza/internal/resolver"
	"cadenza/internal/scanner"
	"cadenza/pkg/models"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Optional .env for local overrides; missing file is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "./config.toml", "path to the configuration file")
	query := flag.String("query", "", "resolve a single request and exit")
	flag.Parse()

	if env := os.Getenv("CADENZA_CONFIG"); env != "" {
		*configPath = env
	}

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}
	if env := os.Getenv("CADENZA_LIBRARY_PATH"); env != "" {
		cfg.Library.Roots = []string{env}
	}
	configureLogger(logger, cfg.Logging)

	extractor := metadata.NewExtractor(cfg.Library.SupportedFormats, cfg.Library.CacheDir, logger)
	sc := scanner.New(extractor, cfg.Scan.Workers,
		time.Duration(cfg.Scan.FileTimeoutSeconds)*time.Second, logger)
	ix := index.New(logger)
	res := resolver.New(ix, logger)
	manager := library.NewManager(cfg, sc, ix, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		if errors.Is(err, scanner.ErrInvalidRoot) {
			logger.WithError(err).WithField("roots", cfg.Library.Roots).
				Fatal("Library root does not exist. Please create it and add your music files.")
		}
		logger.WithError(err).Fatal("Error scanning music library")
	}

	if *query != "" {
		printResults(res.Resolve(*query))
		return
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go queryLoop(res, logger)

	<-c
	logger.Info("Received shutdown signal")
	cancel()
}

// configureLogger applies the logging section of the config.
func configureLogger(logger *logrus.Logger, cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.File != "" {
		if f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			logger.SetOutput(f)
		} else {
			logger.WithError(err).Warn("Could not open log file, logging to stderr")
		}
	}
}

// queryLoop reads requests from stdin, one per line, and prints the
// resolved track list. A "artist:", "album:", "genre:" or "song:"
// prefix sets the media-type hint.
func queryLoop(res *resolver.Resolver, logger *logrus.Logger) {
	fmt.Println("Enter a request (e.g. \"play some music\"), Ctrl+C to quit:")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		text, hint := splitHint(line)
		printResults(res.ResolveHint(text, hint))
	}
	if err := sc.Err(); err != nil {
		logger.WithError(err).Error("Error reading input")
	}
}

// splitHint peels a media-type prefix off an input line.
func splitHint(line string) (string, resolver.Hint) {
	for prefix, hint := range map[string]resolver.Hint{
		"artist:": resolver.HintArtist,
		"album:":  resolver.HintAlbum,
		"genre:":  resolver.HintGenre,
		"song:":   resolver.HintSong,
	} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), hint
		}
	}
	return line, resolver.HintGeneric
}

// printResults writes the ordered records a playback engine would
// receive: path, artist, album, title, track number and cover art.
func printResults(entries []models.MediaEntry) {
	if len(entries) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, e := range entries {
		line := fmt.Sprintf("%3d. %s / %s / %s", i+1, e.Artist, e.Album, e.Title)
		if e.TrackNumber > 0 {
			line += fmt.Sprintf(" (#%d)", e.TrackNumber)
		}
		fmt.Println(line)
		fmt.Printf("     %s\n", e.Path)
		if e.CoverArt != "" {
			fmt.Printf("     art: %s\n", e.CoverArt)
		}
	}
}
