package main

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// The languages YouTube auto-captions most often. Transcripts are long, so
// low accuracy mode is enough and keeps the loaded models small.
var detectableLanguages = []lingua.Language{
	lingua.English, lingua.Spanish, lingua.Portuguese, lingua.French, lingua.German,
	lingua.Italian, lingua.Dutch, lingua.Russian, lingua.Polish, lingua.Turkish,
	lingua.Japanese, lingua.Korean, lingua.Chinese, lingua.Hindi, lingua.Arabic,
	lingua.Indonesian, lingua.Vietnamese,
}

// detectLanguage returns the ISO 639-1 code of text, or "" when unsure
func detectLanguage(text string) string {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectableLanguages...).
			WithLowAccuracyMode().
			Build()
	})

	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
