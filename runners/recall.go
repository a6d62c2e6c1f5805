package runners

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const defaultTopK = 3

// DirRecaller retrieves paragraphs from the text and markdown files under a directory.
type DirRecaller struct {
	Dir string
}

var _ Recaller = DirRecaller{}

func (d DirRecaller) Recall(ctx context.Context, query string, topK int) (string, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	type passage struct {
		text  string
		score float64
	}
	var passages []passage
	err := filepath.WalkDir(d.Dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
		default:
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, para := range strings.Split(string(content), "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			if score := similarity(query, para); score > 0 {
				passages = append(passages, passage{para, score})
			}
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", wrap(err)
	}

	slices.SortStableFunc(passages, func(a, b passage) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(passages) > topK {
		passages = passages[:topK]
	}
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.text)
	}
	return strings.Join(texts, "\n\n"), nil
}
