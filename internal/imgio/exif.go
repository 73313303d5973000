package imgio

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
)

// Full-frame sensor width in millimeters, the reference for
// 35mm-equivalent focal lengths.
const fullFrameWidthMM = 36.0

// Sensor width assumed when the metadata gives no way to derive it.
// APS-C is the most common interchangeable-lens format.
const defaultSensorWidthMM = 23.6

// Metadata is the subset of EXIF fields the stitcher cares about.
type Metadata struct {
	FilePath      string  `json:"file_path"`
	CameraMake    string  `json:"camera_make,omitempty"`
	CameraModel   string  `json:"camera_model,omitempty"`
	FocalLengthMM float64 `json:"focal_length_mm,omitempty"`
	FocalIn35mm   float64 `json:"focal_in_35mm,omitempty"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	Timestamp     string  `json:"timestamp,omitempty"`
}

// ExtractMetadata tries exiftool -json to obtain metadata fields. A
// missing exiftool or unreadable metadata yields an empty Metadata, not
// an error; the caller falls back to configured defaults.
func ExtractMetadata(ctx context.Context, path string) (Metadata, error) {
	meta := Metadata{FilePath: path}
	if !commandExists("exiftool") {
		return meta, nil
	}
	cmd := exec.CommandContext(ctx, "exiftool", "-json", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return meta, nil
	}
	var parsed []map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil || len(parsed) == 0 {
		return meta, nil
	}
	m := parsed[0]
	if v, ok := m["Make"].(string); ok {
		meta.CameraMake = v
	}
	if v, ok := m["Model"].(string); ok {
		meta.CameraModel = v
	}
	if v, ok := m["FocalLength"].(string); ok {
		meta.FocalLengthMM = parseFloatSuffix(v)
	}
	if v, ok := m["FocalLength"].(float64); ok {
		meta.FocalLengthMM = v
	}
	if v, ok := m["FocalLengthIn35mmFormat"].(string); ok {
		meta.FocalIn35mm = parseFloatSuffix(v)
	}
	if v, ok := m["FocalLengthIn35mmFormat"].(float64); ok {
		meta.FocalIn35mm = v
	}
	if v, ok := m["ImageWidth"].(float64); ok {
		meta.Width = int(v)
	}
	if v, ok := m["ImageHeight"].(float64); ok {
		meta.Height = int(v)
	}
	if v, ok := m["DateTimeOriginal"].(string); ok {
		meta.Timestamp = v
	}
	return meta, nil
}

// EstimateFocalPixels converts the metadata's focal length to pixels for
// an image of the given width. The sensor width comes from the
// 35mm-equivalent crop factor when present. ok is false when the
// metadata has no focal length at all.
func EstimateFocalPixels(meta Metadata, imageWidth int) (float64, bool) {
	if meta.FocalLengthMM <= 0 || imageWidth <= 0 {
		return 0, false
	}
	sensorWidth := defaultSensorWidthMM
	if meta.FocalIn35mm > 0 {
		crop := meta.FocalIn35mm / meta.FocalLengthMM
		if crop > 0 {
			sensorWidth = fullFrameWidthMM / crop
		}
	}
	return meta.FocalLengthMM * float64(imageWidth) / sensorWidth, true
}

func parseFloatSuffix(s string) float64 {
	end := len(s)
	for end > 0 {
		c := s[end-1]
		if (c >= '0' && c <= '9') || c == '.' {
			break
		}
		end--
	}
	f, _ := strconv.ParseFloat(s[:end], 64)
	return f
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
