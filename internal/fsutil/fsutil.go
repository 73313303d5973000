package fsutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tif":  {},
	".tiff": {},
	".bmp":  {},
	".webp": {},
	".dng":  {},
	".nef":  {},
	".cr2":  {},
	".cr3":  {},
	".arw":  {},
	".rw2":  {},
	".orf":  {},
	".pef":  {},
	".raf":  {},
	".srw":  {},
	".x3f":  {},
}

var rawExts = map[string]struct{}{
	".dng": {},
	".nef": {},
	".cr2": {},
	".cr3": {},
	".arw": {},
	".rw2": {},
	".orf": {},
	".pef": {},
	".raf": {},
	".srw": {},
	".x3f": {},
}

// ListImages returns all image-like files under root in name order.
// Handheld sweeps number their frames, so name order is capture order.
func ListImages(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := imageExts[ext]; ok {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// ListDecodable returns the images under root the pipeline can decode
// directly, skipping RAW files that need preprocessing first.
func ListDecodable(root string) ([]string, error) {
	files, err := ListImages(root)
	if err != nil {
		return nil, err
	}
	out := files[:0]
	for _, f := range files {
		if !IsRAWFile(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// IsRAWFile checks if a file is a RAW camera format.
func IsRAWFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, isRaw := rawExts[ext]
	return isRaw
}

// IsImageFile checks if a file is any supported image format.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, isImage := imageExts[ext]
	return isImage
}

// SeparateRAWAndProcessed separates RAW files from processed images.
func SeparateRAWAndProcessed(files []string) (rawFiles, processedFiles []string) {
	for _, file := range files {
		if IsRAWFile(file) {
			rawFiles = append(rawFiles, file)
		} else if IsImageFile(file) {
			processedFiles = append(processedFiles, file)
		}
	}
	return rawFiles, processedFiles
}
