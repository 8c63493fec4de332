// Package seed imports static HTML pages into the content store so the
// portal starts with editable copies of its pages.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"serverPortal/internal/db"
	"serverPortal/models"
)

// DefaultExclude lists pages that are application screens, not content.
var DefaultExclude = []string{"login.html", "admin-panel.html"}

const parseWorkers = 4

// PageStore is the slice of the content repository the seeder writes to.
type PageStore interface {
	GetByName(ctx context.Context, name string) (*models.PageContent, error)
	Create(ctx context.Context, p *models.PageContent) (*models.PageContent, error)
}

// Result counts what a run did with each file.
type Result struct {
	Created int
	Skipped int
	Failed  int
}

type Seeder struct {
	Pages   PageStore
	Logger  *zap.Logger
	Exclude []string
}

type parsed struct {
	file  string
	name  string
	title string
	body  string
	err   error
}

// Run imports every *.html file in dir. A page whose name already exists is
// skipped; per-file failures are logged and counted, not returned. The error
// is non-nil only when dir cannot be listed or ctx ends.
func (s *Seeder) Run(ctx context.Context, dir string) (Result, error) {
	var res Result
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exclude := s.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}

	files, err := htmlFiles(dir, exclude)
	if err != nil {
		return res, err
	}

	pages := make([]parsed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages[i] = parseFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	// Inserts run in file-name order on the caller's goroutine.
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := logger.With(zap.String("file", p.file), zap.String("page", p.name))
		if p.err != nil {
			log.Error("seed page: parse failed", zap.Error(p.err))
			res.Failed++
			continue
		}
		existing, err := s.Pages.GetByName(ctx, p.name)
		if err != nil {
			log.Error("seed page: lookup failed", zap.Error(err))
			res.Failed++
			continue
		}
		if existing != nil {
			log.Info("seed page: already exists, skipping")
			res.Skipped++
			continue
		}
		title := p.title
		_, err = s.Pages.Create(ctx, &models.PageContent{
			PageName: p.name,
			Title:    &title,
			Content:  p.body,
			IsActive: true,
		})
		if errors.Is(err, db.ErrDuplicate) {
			log.Info("seed page: created concurrently, skipping")
			res.Skipped++
			continue
		}
		if err != nil {
			log.Error("seed page: insert failed", zap.Error(err))
			res.Failed++
			continue
		}
		log.Info("seed page: created", zap.Int("bytes", len(p.body)))
		res.Created++
	}
	return res, nil
}

func htmlFiles(dir string, exclude []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read seed dir: %w", err)
	}
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".html") || skip[e.Name()] {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func parseFile(path string) parsed {
	base := filepath.Base(path)
	p := parsed{file: base, name: strings.TrimSuffix(base, filepath.Ext(base))}
	if !models.ValidPageName(p.name) {
		p.err = fmt.Errorf("invalid page name %q", p.name)
		return p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		p.err = err
		return p
	}
	title, err := ExtractTitle(data)
	if err != nil {
		p.err = err
		return p
	}
	if title == "" {
		title = p.name
	}
	p.title = title
	p.body = string(data)
	return p
}

// ExtractTitle returns the trimmed text of the first <title> element, or ""
// when the document has none.
func ExtractTitle(doc []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return "", err
	}
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			title = strings.Join(strings.Fields(sb.String()), " ")
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return title, nil
}
