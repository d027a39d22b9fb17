// Package profile loads the candidate profile that jobs are scored against.
package profile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/amishk599/jobsieve/internal/model"
)

// Load reads the profile at path and attaches preferences. PDF files are
// converted to plain text; anything else is read as UTF-8 text. The hash is
// recomputed on every load so edits are picked up by the next run.
func Load(path string, preferences map[string]string) (model.CandidateProfile, error) {
	var (
		text string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = readPDF(path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	}
	if err != nil {
		return model.CandidateProfile{}, &model.ConfigurationError{Field: "profile.path", Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return model.CandidateProfile{}, &model.ConfigurationError{
			Field: "profile.path",
			Err:   fmt.Errorf("profile %s is empty", path),
		}
	}

	return model.CandidateProfile{
		Text:        text,
		Preferences: preferences,
		Hash:        Hash(text, preferences),
	}, nil
}

// Hash fingerprints the profile text together with its preferences.
func Hash(text string, preferences map[string]string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(text)))

	keys := make([]string, 0, len(preferences))
	for k := range preferences {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%s", k, preferences[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	if buf.Len() == 0 {
		return "", errors.New("pdf has no extractable text")
	}
	return buf.String(), nil
}
