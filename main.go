package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	apiKey       string
	settingsPath string
	strategyFlag string
	debugMode    bool
	jsonOutput   bool
	outputPath   string
	serveAddr    string

	config *Config
)

var rootCmd = &cobra.Command{
	Use:   "nutshell",
	Short: "Extract and summarize YouTube video transcripts",
	Long: `Acquires YouTube transcripts by driving the watch page the way a viewer would,
or through the captions API, and presents them for summarization.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set debug mode globally
		if debugMode {
			SetDebugMode(true)
		}

		// Build config overrides
		overrides := &ConfigOverrides{}
		if apiKey != "" {
			overrides.APIKey = &apiKey
		}
		if settingsPath != "" {
			overrides.SettingsPath = &settingsPath
		}
		if strategyFlag != "" {
			overrides.Strategy = &strategyFlag
		}

		var err error
		config, err = NewConfig(overrides)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return nil
	},
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript <video-url>",
	Short: "Extract the transcript of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID, err := extractVideoID(args[0])
		if err != nil {
			return fmt.Errorf("extracting video ID: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var presenter Presenter
		if !jsonOutput {
			presenter = newTextPresenter(cmd.OutOrStdout(), config.Settings.Overlay)
		}
		processor := NewVideoProcessor(NewTranscriptFetcher(config.Settings, nil), nil, presenter)

		result, err := processor.ExtractTranscript(ctx, videoID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, result)
		}
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <video-url>",
	Short: "Extract and summarize a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID, err := extractVideoID(args[0])
		if err != nil {
			return fmt.Errorf("extracting video ID: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var presenter Presenter
		if !jsonOutput {
			presenter = newTextPresenter(cmd.OutOrStdout(), config.Settings.Overlay)
		}
		processor := NewVideoProcessor(NewTranscriptFetcher(config.Settings, nil), StubSummarizer{}, presenter)

		result, err := processor.SummarizeVideo(ctx, videoID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, result)
		}
		return nil
	},
}

var viewCmd = &cobra.Command{
	Use:   "view <video-url>",
	Short: "Open a page and summarize it with interactive overlays",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID, err := extractVideoID(args[0])
		if err != nil {
			return fmt.Errorf("extracting video ID: %w", err)
		}

		// Overlays own the terminal, keep log lines out of it
		logFile, err := tea.LogToFile(GetConfigPath("nutshell.log"), "nutshell")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer logFile.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		loader := NewPageLoader(config.Settings)
		page, err := loader.Load(ctx, WatchURL(videoID))
		if err != nil {
			return err
		}

		program := tea.NewProgram(NewOverlayModel(config.Settings.Overlay))
		processor := NewVideoProcessor(NewTranscriptFetcher(config.Settings, page), StubSummarizer{}, programPresenter{program: program})

		injector := NewInjector(page, config.Settings.Watcher)
		injector.OnExtract = func(ctx context.Context, id string) error {
			_, err := processor.ExtractTranscript(ctx, id)
			return err
		}
		injector.OnSummarize = func(ctx context.Context, id string) error {
			_, err := processor.SummarizeVideo(ctx, id)
			return err
		}
		go func() {
			if err := injector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("✗ watcher stopped: %v", err)
			}
		}()

		go func() {
			if _, err := processor.SummarizeVideo(ctx, videoID); err != nil {
				debugLog("summarize %s: %v", videoID, err)
			}
		}()

		_, err = program.Run()
		return err
	},
}

var annotateCmd = &cobra.Command{
	Use:   "annotate <page-url>...",
	Short: "Insert summarize buttons into pages and list the annotated videos",
	Long: `Loads the first page and navigates the same page session through the rest,
the way a viewer moves around the site. Each page's annotated video IDs are printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			if !IsValidYouTubeURL(arg) {
				return fmt.Errorf("not a YouTube URL: %s", arg)
			}
		}

		ctx := cmd.Context()
		loader := NewPageLoader(config.Settings)
		page, err := loader.Load(ctx, args[0])
		if err != nil {
			return err
		}
		mutations, cancel := page.Subscribe()
		defer cancel()

		injector := NewInjector(page, config.Settings.Watcher)
		injector.ProcessExisting()
		printAnnotated(cmd, args[0], injector.IDs())

		for _, pageURL := range args[1:] {
			if err := loader.Navigate(ctx, page, pageURL); err != nil {
				return err
			}
			m, err := nextNavigation(ctx, mutations)
			if err != nil {
				return err
			}
			injector.HandleMutation(m)
			printAnnotated(cmd, pageURL, injector.IDs())
		}

		if outputPath == "" {
			return nil
		}
		markup, err := page.HTML()
		if err != nil {
			return fmt.Errorf("rendering page: %w", err)
		}
		if err := os.WriteFile(outputPath, []byte(markup), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", outputPath, err)
		}
		log.Printf("✓ Wrote %s", outputPath)
		return nil
	},
}

func printAnnotated(cmd *cobra.Command, pageURL string, ids []string) {
	log.Printf("✓ Annotated %d videos on %s", len(ids), pageURL)
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ids, "\n"))
}

// nextNavigation skips ordinary insertions until the document is replaced
func nextNavigation(ctx context.Context, mutations <-chan Mutation) (Mutation, error) {
	for {
		select {
		case m, ok := <-mutations:
			if !ok {
				return Mutation{}, errors.New("page closed before navigation")
			}
			if m.Navigated {
				return m, nil
			}
		case <-ctx.Done():
			return Mutation{}, ctx.Err()
		}
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer EXTRACT_TRANSCRIPT and SUMMARIZE_VIDEO messages over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := config.Settings.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		processor := NewVideoProcessor(NewTranscriptFetcher(config.Settings, nil), StubSummarizer{}, nil)
		srv := &http.Server{
			Addr:              addr,
			Handler:           NewRouter(NewDispatcher(processor)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			log.Printf("→ Listening on %s", addr)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "YouTube Data API key (or YOUTUBE_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to custom settings file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{transcriptCmd, summarizeCmd} {
		cmd.Flags().StringVar(&strategyFlag, "strategy", "", "Acquisition strategy: dom or api")
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	}
	annotateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the annotated page to a file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from settings)")

	rootCmd.AddCommand(transcriptCmd, summarizeCmd, viewCmd, annotateCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
