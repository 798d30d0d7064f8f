package report

import (
	"os"
	"path/filepath"

	apperrors "exocompare/internal/errors"
)

// WriteFiles renders the report and writes the Markdown and HTML copies.
func WriteFiles(mdPath, htmlPath string, in Input) error {
	md, err := RenderMarkdown(in)
	if err != nil {
		return apperrors.Wrap(err, "render report")
	}
	for _, dir := range []string{filepath.Dir(mdPath), filepath.Dir(htmlPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Wrap(err, "create report directory")
		}
	}
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return apperrors.Wrap(err, "write markdown report")
	}
	if err := os.WriteFile(htmlPath, RenderHTML(md), 0o644); err != nil {
		return apperrors.Wrap(err, "write html report")
	}
	return nil
}
