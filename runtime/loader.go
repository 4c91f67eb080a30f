package runtime

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"github.com/samber/lo"

	"chat-relay/errors"
)

//go:embed censored/*
var censoredFolder embed.FS

// CensoredData carries the loading result plus metadata for logging.
type CensoredData struct {
	Words     []string
	Languages []string
}

// LoadCensoredWords merges the embedded censored/ dictionaries, one .txt
// file per language, into a unique word list. Blank lines and lines
// starting with # are skipped.
func LoadCensoredWords() (*CensoredData, error) {
	const dir = "censored"
	entries, err := fs.ReadDir(censoredFolder, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	unique := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// "fr.txt" -> "fr"
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := censoredFolder.ReadFile(dir + "/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner handles both \n and \r\n line endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			unique[word] = struct{}{}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(unique) == 0 {
		return nil, errors.ErrEmptyWords
	}

	return &CensoredData{Words: lo.Keys(unique), Languages: languages}, nil
}
