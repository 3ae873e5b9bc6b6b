package render

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/wpgc/quiz-archiver/internal/jobmodel"
)

// PostProcess runs pdfcpu's optimize pass over the PDF in place, with
// pdfcpu's default configuration. It does not resample or re-encode
// embedded raster images: opt.Width, opt.Height and opt.Quality are not
// applied.
func PostProcess(pdfPath string, opt jobmodel.ImageOptimize) error {
	return api.OptimizeFile(pdfPath, "", nil)
}
