package dat2img

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/hevc"
	"github.com/Eyevinn/mp4ff/mp4"
)

const (
	ENV_FFMPEG_PATH = "FFMPEG_PATH"
	MinRatio        = 0.6

	// embeddedScanLimit bounds the search for a conventional image signature
	// inside a wrapped payload.
	embeddedScanLimit = 4096
)

var (
	FFmpegMode     = false
	FFMpegPath     = "ffmpeg"
	ConvertTimeout = 30 * time.Second
)

// ErrNeedConverter reports a wrapped payload that can only be rendered by the
// external converter.
var ErrNeedConverter = errors.New("unsupported format, requires external converter")

func init() {
	ffmpegPath := os.Getenv(ENV_FFMPEG_PATH)
	if len(ffmpegPath) > 0 {
		FFmpegMode = true
		FFMpegPath = ffmpegPath
	}
	if isFFmpegAvailable() {
		FFmpegMode = true
	}
}

// Wxgf2Image recovers a displayable image from a wxgf-wrapped payload.
// Some payloads embed a conventional image outright; those are returned
// directly. Otherwise the elementary stream is extracted and handed to the
// external converter, or packaged as fMP4 when no converter is available.
func Wxgf2Image(data []byte) ([]byte, string, error) {
	if len(data) < 15 || !bytes.Equal(data[0:4], WXGF.Header) {
		return nil, "", fmt.Errorf("invalid wxgf")
	}

	if img, ext, ok := findEmbeddedImage(data); ok {
		return img, ext, nil
	}

	offset, size, err := findDataPartition(data)
	if err != nil {
		return nil, "", err
	}

	if FFmpegMode {
		jpgData, err := Convert2JPG(data[offset : offset+size])
		if err != nil {
			return nil, "", err
		}
		return jpgData, JPG.Ext, nil
	}

	mp4Data, err := Convert2MP4(data[offset : offset+size])
	if err != nil {
		return nil, "", err
	}
	return mp4Data, "mp4", nil
}

// findEmbeddedImage scans the head of a wrapped payload for a conventional
// image signature. Wrapped payloads occasionally carry one verbatim.
func findEmbeddedImage(data []byte) ([]byte, string, bool) {
	limit := len(data)
	if limit > embeddedScanLimit {
		limit = embeddedScanLimit
	}
	headerLen := int(data[4])
	if headerLen < 5 || headerLen >= limit {
		headerLen = 5
	}
	for _, format := range []Format{JPG, PNG, GIF} {
		if idx := bytes.Index(data[headerLen:limit], format.Header); idx != -1 {
			return data[headerLen+idx:], format.Ext, true
		}
	}
	return nil, "", false
}

func findDataPartition(data []byte) (offset int, size int, err error) {

	headerLen := int(data[4])
	if headerLen >= len(data) {
		return 0, 0, fmt.Errorf("invalid wxgf")
	}

	patterns := [][]byte{
		{0x00, 0x00, 0x00, 0x01},
		{0x00, 0x00, 0x01},
	}

	for _, pattern := range patterns {
		offset := 0
		for {
			index := bytes.Index(data[headerLen+offset:], pattern)
			if index == -1 {
				break
			}

			absIndex := headerLen + offset + index
			offset += index + 1

			if absIndex < 4 {
				continue
			}

			length := int(data[absIndex-4])<<24 | int(data[absIndex-3])<<16 |
				int(data[absIndex-2])<<8 | int(data[absIndex-1])

			if length <= 0 || absIndex+length > len(data) {
				continue
			}

			ratio := float64(length) / float64(len(data))
			if ratio < MinRatio {
				continue
			}

			return absIndex, length, nil
		}

	}

	return 0, 0, fmt.Errorf("no partition found")
}

// Convert2JPG renders a single frame of the elementary stream through the
// external converter. The process is killed after ConvertTimeout; a converter
// that never emits output must not hang the caller.
func Convert2JPG(data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ConvertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, FFMpegPath,
		"-i", "-",
		"-vframes", "1",
		"-c:v", "mjpeg",
		"-q:v", "4",
		"-f", "image2",
		"-")

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("converter timed out: %w", ErrNeedConverter)
		}
		return nil, fmt.Errorf("converter failed: %w", err)
	}

	jpegData := stdout.Bytes()
	if len(jpegData) == 0 {
		return nil, ErrNeedConverter
	}

	return jpegData, nil
}

func Convert2MP4(data []byte) ([]byte, error) {

	vpsNALUs, spsNALUs, ppsNALUs := hevc.GetParameterSetsFromByteStream(data)

	videoTimescale := uint32(1000)
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(videoTimescale, "video", "und")

	trak := init.Moov.Trak
	err := trak.SetHEVCDescriptor("hvc1", vpsNALUs, spsNALUs, ppsNALUs, nil, true)
	if err != nil {
		return nil, err
	}

	seg := mp4.NewMediaSegment()
	seg.EncOptimize = mp4.OptimizeTrun
	frag, err := mp4.CreateFragment(1, mp4.DefaultTrakID)
	if err != nil {
		return nil, err
	}
	seg.AddFragment(frag)

	sampleData := avc.ConvertByteStreamToNaluSample(data)
	sample := mp4.FullSample{
		Sample: mp4.Sample{
			Flags:                 0x02000000,
			Dur:                   1000,
			Size:                  uint32(len(sampleData)),
			CompositionTimeOffset: 0,
		},
		DecodeTime: 0,
		Data:       sampleData,
	}

	frag.AddFullSample(sample)

	totalSize := init.Size() + seg.Size()
	sw := bits.NewFixedSliceWriter(int(totalSize))

	init.EncodeSW(sw)
	seg.EncodeSW(sw)

	return sw.Bytes(), nil
}

func isFFmpegAvailable() bool {
	cmd := exec.Command(FFMpegPath, "-version")
	return cmd.Run() == nil
}
