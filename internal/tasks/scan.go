package tasks

import (
	"context"

	"panostitch/internal/fsutil"
	"panostitch/internal/imgio"
)

// ScanSummary describes the contents of a candidate input directory.
type ScanSummary struct {
	Images   []string
	RawFiles []string
	Metadata []imgio.Metadata
}

// Scan lists the stitchable content of a directory and extracts metadata
// from the decodable frames. Metadata extraction is best effort; frames
// without usable EXIF still appear in Images.
func Scan(ctx context.Context, root string) (ScanSummary, error) {
	var sum ScanSummary

	files, err := fsutil.ListImages(root)
	if err != nil {
		return sum, err
	}
	sum.RawFiles, sum.Images = fsutil.SeparateRAWAndProcessed(files)

	for _, p := range sum.Images {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		meta, err := imgio.ExtractMetadata(ctx, p)
		if err != nil {
			continue
		}
		sum.Metadata = append(sum.Metadata, meta)
	}
	return sum, nil
}
