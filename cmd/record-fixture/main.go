package main

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

var videoIDRe = regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})`)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: record-fixture <fetch <video-url>|strip|dedupe> <fixtures-directory>")
	}

	command := os.Args[1]

	switch command {
	case "fetch":
		if len(os.Args) < 4 {
			log.Fatal("Usage: record-fixture fetch <video-url> <fixtures-directory>")
		}
		if err := fetchFixture(os.Args[2], os.Args[3]); err != nil {
			log.Fatal(err)
		}
	case "strip":
		if err := stripFixtures(os.Args[2]); err != nil {
			log.Fatal(err)
		}
	case "dedupe":
		if err := removeDuplicates(os.Args[2]); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

// fetchFixture records a raw watch page as <video-id>-<hash>.html
func fetchFixture(videoURL, fixturesDir string) error {
	m := videoIDRe.FindStringSubmatch(videoURL)
	if len(m) < 2 {
		return fmt.Errorf("no video ID found in %s", videoURL)
	}

	req, err := http.NewRequest(http.MethodGet, videoURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", videoURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: HTTP %d", videoURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s: %w", videoURL, err)
	}

	stripped, err := stripScripts(body)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(fixturesDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", fixturesDir, err)
	}
	path := filepath.Join(fixturesDir, fmt.Sprintf("%s-%s.html", m[1], contentHash(stripped)))
	if err := os.WriteFile(path, stripped, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Printf("Recorded %s (%d bytes)", path, len(stripped))
	return nil
}

func stripFixtures(fixturesDir string) error {
	return filepath.WalkDir(fixturesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}

		if !d.IsDir() && strings.HasSuffix(path, ".html") {
			if err := stripFile(path); err != nil {
				log.Printf("Error processing %s: %v", path, err)
			}
		}

		return nil
	})
}

func stripFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file %s: %w", path, err)
	}

	stripped, err := stripScripts(content)
	if err != nil {
		return err
	}
	if len(stripped) == len(content) {
		log.Printf("File %s has nothing to strip, skipping", filepath.Base(path))
		return nil
	}

	log.Printf("Stripped %s: %d -> %d bytes", filepath.Base(path), len(content), len(stripped))
	return os.WriteFile(path, stripped, 0644)
}

// stripScripts drops every script and style except the inline page data
// the loader reads the transcript token and related videos from.
func stripScripts(content []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if strings.Contains(text, "ytInitialPlayerResponse") || strings.Contains(text, "ytInitialData") {
			s.RemoveAttr("nonce")
			return
		}
		s.Remove()
	})
	doc.Find("style, link[rel=stylesheet], link[rel=preload]").Remove()

	html, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return []byte(html), nil
}

func contentHash(content []byte) string {
	h := sha256.Sum256(content)
	return fmt.Sprintf("%x", h)[:8]
}

func removeDuplicates(fixturesDir string) error {
	hashToFiles := make(map[string][]string)
	reader := bufio.NewReader(os.Stdin)

	if err := filepath.WalkDir(fixturesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}

		if !d.IsDir() && strings.HasSuffix(path, ".html") {
			content, err := os.ReadFile(path)
			if err != nil {
				log.Printf("Error reading %s: %v", path, err)
				return nil
			}
			hash := contentHash(content)
			hashToFiles[hash] = append(hashToFiles[hash], path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}

	totalRemoved := 0
	for hash, files := range hashToFiles {
		if len(files) <= 1 {
			continue
		}

		fmt.Printf("\nFound %d identical fixtures with hash %s:\n", len(files), hash)
		for i, file := range files {
			fileName := filepath.Base(file)
			if i == 0 {
				fmt.Printf("  KEEP: %s\n", fileName)
				continue
			}

			if confirmDelete(reader, file) {
				if err := os.Remove(file); err != nil {
					log.Printf("Error removing %s: %v", file, err)
				} else {
					totalRemoved++
					fmt.Printf("  REMOVED: %s\n", fileName)
				}
			} else {
				fmt.Printf("  SKIP: %s\n", fileName)
			}
		}
	}

	fmt.Printf("\nRemoved %d duplicate fixtures\n", totalRemoved)
	return nil
}

func confirmDelete(reader *bufio.Reader, path string) bool {
	for {
		fmt.Printf("  DELETE %s? [y/N]: ", filepath.Base(path))
		input, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("Error reading input: %v", err)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			fmt.Println("  Please enter y or n.")
		}
	}
}
